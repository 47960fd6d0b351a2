package memutils

import "math"

// Statistics is the bare summary of an instance-memory space: how many backing
// heaps feed it, how many allocations are live within them, and the byte totals
// for both.
type Statistics struct {
	HeapCount       int
	AllocationCount int
	HeapBytes       uint64
	AllocationBytes uint64
}

func (s *Statistics) Clear() {
	s.HeapCount = 0
	s.AllocationCount = 0
	s.HeapBytes = 0
	s.AllocationBytes = 0
}

func (s *Statistics) AddStatistics(other *Statistics) {
	s.HeapCount += other.HeapCount
	s.AllocationCount += other.AllocationCount
	s.HeapBytes += other.HeapBytes
	s.AllocationBytes += other.AllocationBytes
}

type DetailedStatistics struct {
	Statistics
	UnusedRangeCount   int
	AllocationSizeMin  uint64
	AllocationSizeMax  uint64
	UnusedRangeSizeMin uint64
	UnusedRangeSizeMax uint64
}

func (s *DetailedStatistics) Clear() {
	s.Statistics.Clear()
	s.UnusedRangeCount = 0
	s.AllocationSizeMin = math.MaxUint64
	s.AllocationSizeMax = 0
	s.UnusedRangeSizeMin = math.MaxUint64
	s.UnusedRangeSizeMax = 0
}

func (s *DetailedStatistics) AddUnusedRange(size uint64) {
	s.UnusedRangeCount++

	if size < s.UnusedRangeSizeMin {
		s.UnusedRangeSizeMin = size
	}

	if size > s.UnusedRangeSizeMax {
		s.UnusedRangeSizeMax = size
	}
}

func (s *DetailedStatistics) AddAllocation(size uint64) {
	s.AllocationCount++
	s.AllocationBytes += size

	if size < s.AllocationSizeMin {
		s.AllocationSizeMin = size
	}

	if size > s.AllocationSizeMax {
		s.AllocationSizeMax = size
	}
}

func (s *DetailedStatistics) AddDetailedStatistics(other *DetailedStatistics) {
	s.Statistics.AddStatistics(&other.Statistics)
	s.UnusedRangeCount += other.UnusedRangeCount

	if other.UnusedRangeSizeMin < s.UnusedRangeSizeMin {
		s.UnusedRangeSizeMin = other.UnusedRangeSizeMin
	}

	if other.UnusedRangeSizeMax > s.UnusedRangeSizeMax {
		s.UnusedRangeSizeMax = other.UnusedRangeSizeMax
	}

	if other.AllocationSizeMin < s.AllocationSizeMin {
		s.AllocationSizeMin = other.AllocationSizeMin
	}

	if other.AllocationSizeMax > s.AllocationSizeMax {
		s.AllocationSizeMax = other.AllocationSizeMax
	}
}
