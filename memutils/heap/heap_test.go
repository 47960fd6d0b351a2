package heap_test

import (
	"math"
	"testing"

	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/nvkit/instmem/memutils"
	"github.com/nvkit/instmem/memutils/heap"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestHeapInit(t *testing.T) {
	h := heap.New(1)
	h.Init(1000)

	require.NoError(t, h.Validate())
	require.True(t, h.IsEmpty())
	require.Equal(t, uint64(1000), h.Capacity())
	require.Equal(t, uint64(1000), h.FreeBytes())
	require.Equal(t, uint64(1), h.Granularity())

	var stats memutils.DetailedStatistics
	stats.Clear()
	h.AddDetailedStatistics(&stats)

	require.Equal(t, memutils.DetailedStatistics{
		Statistics: memutils.Statistics{
			HeapCount:       1,
			AllocationCount: 0,
			HeapBytes:       1000,
			AllocationBytes: 0,
		},
		UnusedRangeCount:   1,
		AllocationSizeMin:  math.MaxUint64,
		AllocationSizeMax:  0,
		UnusedRangeSizeMin: 1000,
		UnusedRangeSizeMax: 1000,
	}, stats)
}

func TestHeapReserveFirstFit(t *testing.T) {
	h := heap.New(1)
	h.Init(1000)

	first, err := h.Reserve(100, 1)
	require.NoError(t, err)
	require.Equal(t, uint64(0), first.Offset)
	require.Equal(t, uint64(100), first.Size)

	second, err := h.Reserve(150, 1)
	require.NoError(t, err)
	require.Equal(t, uint64(100), second.Offset)

	third, err := h.Reserve(250, 1)
	require.NoError(t, err)
	require.Equal(t, uint64(250), third.Offset)

	require.NoError(t, h.Validate())
	require.Equal(t, 3, h.ReservedCount())
	require.Equal(t, uint64(500), h.FreeBytes())

	// Freeing the middle range opens the lowest-addressed hole, so the next
	// reservation that fits in it must land there rather than in the tail space.
	require.NoError(t, h.Release(second.Handle))

	refill, err := h.Reserve(120, 1)
	require.NoError(t, err)
	require.Equal(t, uint64(100), refill.Offset)

	require.NoError(t, h.Validate())
}

func TestHeapReserveAlignment(t *testing.T) {
	h := heap.New(1)
	h.Init(1000)

	_, err := h.Reserve(10, 1)
	require.NoError(t, err)

	aligned, err := h.Reserve(16, 64)
	require.NoError(t, err)
	require.Equal(t, uint64(64), aligned.Offset)
	require.Equal(t, uint64(16), aligned.Size)

	require.NoError(t, h.Validate())

	// The 54 bytes skipped for alignment stay reservable
	pad, err := h.Reserve(54, 1)
	require.NoError(t, err)
	require.Equal(t, uint64(10), pad.Offset)

	require.NoError(t, h.Validate())
}

func TestHeapGranularityRounding(t *testing.T) {
	h := heap.New(256)
	h.Init(1024)

	small, err := h.Reserve(1, 1)
	require.NoError(t, err)
	require.Equal(t, uint64(0), small.Offset)
	require.Equal(t, uint64(256), small.Size)
	require.Equal(t, uint64(768), h.FreeBytes())

	next, err := h.Reserve(257, 1)
	require.NoError(t, err)
	require.Equal(t, uint64(256), next.Offset)
	require.Equal(t, uint64(512), next.Size)

	require.NoError(t, h.Validate())
}

func TestHeapReleaseMergesNeighbors(t *testing.T) {
	h := heap.New(1)
	h.Init(300)

	first, err := h.Reserve(100, 1)
	require.NoError(t, err)
	second, err := h.Reserve(100, 1)
	require.NoError(t, err)
	third, err := h.Reserve(100, 1)
	require.NoError(t, err)

	require.Equal(t, uint64(0), h.FreeBytes())

	require.NoError(t, h.Release(second.Handle))
	require.NoError(t, h.Release(first.Handle))
	require.NoError(t, h.Release(third.Handle))

	require.True(t, h.IsEmpty())
	require.NoError(t, h.Validate())

	var stats memutils.DetailedStatistics
	stats.Clear()
	h.AddDetailedStatistics(&stats)

	require.Equal(t, memutils.DetailedStatistics{
		Statistics: memutils.Statistics{
			HeapCount:       1,
			AllocationCount: 0,
			HeapBytes:       300,
			AllocationBytes: 0,
		},
		UnusedRangeCount:   1,
		AllocationSizeMin:  math.MaxUint64,
		AllocationSizeMax:  0,
		UnusedRangeSizeMin: 300,
		UnusedRangeSizeMax: 300,
	}, stats)

	// The merged space is usable as a single contiguous range again
	full, err := h.Reserve(300, 1)
	require.NoError(t, err)
	require.Equal(t, uint64(0), full.Offset)
}

func TestHeapReleaseAllRestoresCapacity(t *testing.T) {
	h := heap.New(1)
	h.Init(4096)

	live := make(map[heap.RangeHandle]bool)
	var ordered []heap.RangeHandle
	sizes := []uint64{64, 512, 32, 1024, 128, 256}
	for _, size := range sizes {
		rng, err := h.Reserve(size, 1)
		require.NoError(t, err)
		live[rng.Handle] = true
		ordered = append(ordered, rng.Handle)
	}

	require.NoError(t, h.Release(ordered[1]))
	delete(live, ordered[1])
	require.NoError(t, h.Release(ordered[4]))
	delete(live, ordered[4])

	rng, err := h.Reserve(96, 1)
	require.NoError(t, err)
	live[rng.Handle] = true

	for handle := range live {
		require.NoError(t, h.Release(handle))
	}

	require.True(t, h.IsEmpty())
	require.Equal(t, uint64(4096), h.FreeBytes())
	require.NoError(t, h.Validate())
}

func TestHeapOutOfSpaceLeavesHeapUntouched(t *testing.T) {
	h := heap.New(1)
	h.Init(200)

	_, err := h.Reserve(150, 1)
	require.NoError(t, err)

	var before memutils.DetailedStatistics
	before.Clear()
	h.AddDetailedStatistics(&before)

	rng, err := h.Reserve(100, 1)
	require.Error(t, err)
	require.ErrorIs(t, err, heap.OutOfSpaceError)
	require.Equal(t, heap.NoRange, rng.Handle)

	// An aligned request that only fails because of the alignment hole
	rng, err = h.Reserve(40, 128)
	require.Error(t, err)
	require.ErrorIs(t, err, heap.OutOfSpaceError)
	require.Equal(t, heap.NoRange, rng.Handle)

	var after memutils.DetailedStatistics
	after.Clear()
	h.AddDetailedStatistics(&after)

	require.Equal(t, before, after)
	require.NoError(t, h.Validate())
}

func TestHeapReserveZeroSize(t *testing.T) {
	h := heap.New(1)
	h.Init(100)

	_, err := h.Reserve(0, 1)
	require.Error(t, err)
	require.NoError(t, h.Validate())
}

func TestHeapSinglePage(t *testing.T) {
	h := heap.New(4096)
	h.Init(4096)

	rng, err := h.Reserve(1, 1)
	require.NoError(t, err)
	require.Equal(t, uint64(0), rng.Offset)
	require.Equal(t, uint64(4096), rng.Size)
	require.Equal(t, uint64(0), h.FreeBytes())

	_, err = h.Reserve(1, 1)
	require.Error(t, err)
	require.ErrorIs(t, err, heap.OutOfSpaceError)

	require.NoError(t, h.Release(rng.Handle))

	rng, err = h.Reserve(4096, 1)
	require.NoError(t, err)
	require.Equal(t, uint64(0), rng.Offset)
	require.NoError(t, h.Validate())
}

func TestHeapReserveAt(t *testing.T) {
	h := heap.New(1)
	h.Init(0x40000)

	vbios, err := h.ReserveAt(0x0, 0x10000)
	require.NoError(t, err)
	require.Equal(t, uint64(0x0), vbios.Offset)
	require.Equal(t, uint64(0x10000), vbios.Size)

	ramht, err := h.ReserveAt(0x10000, 0x8000)
	require.NoError(t, err)
	require.Equal(t, uint64(0x10000), ramht.Offset)

	// Overlapping an existing reservation fails without side effects
	_, err = h.ReserveAt(0x14000, 0x8000)
	require.Error(t, err)
	require.ErrorIs(t, err, heap.OutOfSpaceError)

	// Crossing from free space into a reservation fails too
	require.NoError(t, h.Release(vbios.Handle))
	_, err = h.ReserveAt(0x8000, 0x10000)
	require.Error(t, err)
	require.ErrorIs(t, err, heap.OutOfSpaceError)

	// Past the end of the span
	_, err = h.ReserveAt(0x40000, 0x1000)
	require.Error(t, err)
	require.ErrorIs(t, err, heap.OutOfSpaceError)

	require.NoError(t, h.Validate())
	require.Equal(t, 1, h.ReservedCount())
}

func TestHeapReserveAtUnalignedOffset(t *testing.T) {
	h := heap.New(4096)
	h.Init(0x10000)

	_, err := h.ReserveAt(100, 4096)
	require.Error(t, err)
	require.NoError(t, h.Validate())
}

func TestHeapReleaseTwice(t *testing.T) {
	h := heap.New(1)
	h.Init(100)

	rng, err := h.Reserve(50, 1)
	require.NoError(t, err)

	require.NoError(t, h.Release(rng.Handle))
	require.Error(t, h.Release(rng.Handle))
}

func TestHeapReleaseUnknownHandle(t *testing.T) {
	h := heap.New(1)
	h.Init(100)

	require.Error(t, h.Release(heap.RangeHandle(12345)))
	require.NoError(t, h.Validate())
}

func TestHeapClear(t *testing.T) {
	h := heap.New(1)
	h.Init(500)

	_, err := h.Reserve(100, 1)
	require.NoError(t, err)
	_, err = h.Reserve(200, 1)
	require.NoError(t, err)

	h.Clear()

	require.True(t, h.IsEmpty())
	require.Equal(t, uint64(500), h.FreeBytes())
	require.NoError(t, h.Validate())

	rng, err := h.Reserve(500, 1)
	require.NoError(t, err)
	require.Equal(t, uint64(0), rng.Offset)
}

func TestHeapVisitRanges(t *testing.T) {
	h := heap.New(1)
	h.Init(300)

	first, err := h.Reserve(100, 1)
	require.NoError(t, err)
	second, err := h.Reserve(50, 1)
	require.NoError(t, err)
	require.NoError(t, h.Release(first.Handle))

	var visited []heap.RangeInfo
	err = h.VisitRanges(func(info heap.RangeInfo) error {
		visited = append(visited, info)
		return nil
	})
	require.NoError(t, err)

	require.Len(t, visited, 3)
	require.Equal(t, uint64(0), visited[0].Offset)
	require.Equal(t, uint64(100), visited[0].Size)
	require.False(t, visited[0].Reserved)
	require.Equal(t, uint64(100), visited[1].Offset)
	require.Equal(t, uint64(50), visited[1].Size)
	require.True(t, visited[1].Reserved)
	require.Equal(t, second.Handle, visited[1].Handle)
	require.Equal(t, uint64(150), visited[2].Offset)
	require.Equal(t, uint64(150), visited[2].Size)
	require.False(t, visited[2].Reserved)

	stop := errors.New("stop the walk")
	visitCount := 0
	err = h.VisitRanges(func(info heap.RangeInfo) error {
		visitCount++
		return stop
	})
	require.ErrorIs(t, err, stop)
	require.Equal(t, 1, visitCount)
}

func TestHeapJSON(t *testing.T) {
	h := heap.New(1)
	h.Init(100)

	_, err := h.Reserve(40, 1)
	require.NoError(t, err)

	writer := jwriter.NewWriter()
	obj := writer.Object()
	h.HeapJSON(obj)
	obj.End()

	require.JSONEq(t, `{
		"TotalBytes": 100,
		"UnusedBytes": 60,
		"Reservations": 1,
		"UnusedRanges": 1,
		"Ranges": [
			{"Offset": 0, "Size": 40, "Type": "RESERVED"},
			{"Offset": 40, "Size": 60, "Type": "FREE"}
		]
	}`, string(writer.Bytes()))
}

func TestHeapStatistics(t *testing.T) {
	h := heap.New(1)
	h.Init(1000)

	_, err := h.Reserve(100, 1)
	require.NoError(t, err)
	middle, err := h.Reserve(300, 1)
	require.NoError(t, err)
	_, err = h.Reserve(200, 1)
	require.NoError(t, err)
	require.NoError(t, h.Release(middle.Handle))

	var stats memutils.Statistics
	stats.Clear()
	h.AddStatistics(&stats)

	require.Equal(t, memutils.Statistics{
		HeapCount:       1,
		AllocationCount: 2,
		HeapBytes:       1000,
		AllocationBytes: 300,
	}, stats)

	var detailed memutils.DetailedStatistics
	detailed.Clear()
	h.AddDetailedStatistics(&detailed)

	require.Equal(t, memutils.DetailedStatistics{
		Statistics: memutils.Statistics{
			HeapCount:       1,
			AllocationCount: 2,
			HeapBytes:       1000,
			AllocationBytes: 300,
		},
		UnusedRangeCount:   2,
		AllocationSizeMin:  100,
		AllocationSizeMax:  200,
		UnusedRangeSizeMin: 300,
		UnusedRangeSizeMax: 400,
	}, detailed)
}
