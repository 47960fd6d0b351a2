package instmem

import (
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/nvkit/instmem/internal/utils"
	"github.com/nvkit/instmem/memutils"
	"github.com/pkg/errors"
)

// objectList tracks every live instance object so the InstMem can refuse to
// shut down underneath them, aggregate their statistics, and sweep them for
// corruption markers.
type objectList struct {
	mutex utils.OptionalRWMutex

	count          int
	objectListHead *Object
	objectListTail *Object
}

func (l *objectList) Init(useMutex bool) {
	l.mutex = utils.OptionalRWMutex{UseMutex: useMutex}
}

func (l *objectList) Validate() error {
	declaredCount := l.count
	actualCount := 0

	l.mutex.RLock()
	defer l.mutex.RUnlock()

	for obj := l.objectListHead; obj != nil; obj = obj.nextObject {
		actualCount++
	}

	if declaredCount != actualCount {
		return errors.Errorf("the listed number of objects in the list (%d) does not match the actual number of objects (%d)", declaredCount, actualCount)
	}

	return nil
}

// AddStatistics sums the contiguous objects in the list into stats. Objects
// carved out of a heap are already counted by that heap and are skipped here.
func (l *objectList) AddStatistics(stats *memutils.Statistics) {
	l.mutex.RLock()
	defer l.mutex.RUnlock()

	for obj := l.objectListHead; obj != nil; obj = obj.nextObject {
		if obj.kind != backendContiguous {
			continue
		}

		stats.HeapCount++
		stats.HeapBytes += obj.size
		stats.AllocationCount++
		stats.AllocationBytes += obj.size
	}
}

// AddDetailedStatistics sums the contiguous objects in the list into stats.
// Objects carved out of a heap are already counted by that heap and are skipped
// here.
func (l *objectList) AddDetailedStatistics(stats *memutils.DetailedStatistics) {
	l.mutex.RLock()
	defer l.mutex.RUnlock()

	for obj := l.objectListHead; obj != nil; obj = obj.nextObject {
		if obj.kind != backendContiguous {
			continue
		}

		size := obj.size
		stats.Statistics.HeapCount++
		stats.Statistics.HeapBytes += size
		stats.AddAllocation(size)
	}
}

func (l *objectList) BuildStatsString(writer *jwriter.Writer) {
	l.mutex.RLock()
	defer l.mutex.RUnlock()

	s := writer.Array()
	defer s.End()

	for obj := l.objectListHead; obj != nil; obj = obj.nextObject {

		o := s.Object()
		obj.printParameters(&o)
		o.End()
	}
}

// CheckCorruption validates the anti-corruption marker trailing every live
// object. It always succeeds in builds without the debug_mem_utils tag.
func (l *objectList) CheckCorruption() error {
	l.mutex.RLock()
	defer l.mutex.RUnlock()

	for obj := l.objectListHead; obj != nil; obj = obj.nextObject {
		if !memutils.ValidateMagicValue(obj, obj.size) {
			return errors.Errorf("memory corruption detected after object at offset %d", obj.gpuOffset)
		}
	}

	return nil
}

func (l *objectList) IsEmpty() bool {
	l.mutex.RLock()
	defer l.mutex.RUnlock()

	return l.count == 0
}

func (l *objectList) Count() int {
	l.mutex.RLock()
	defer l.mutex.RUnlock()

	return l.count
}

func (l *objectList) Register(obj *Object) {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	l.pushObject(obj)
}

func (l *objectList) Unregister(obj *Object) {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	l.removeObject(obj)
}

func (l *objectList) removeObject(obj *Object) {
	prev := obj.prevObject
	next := obj.nextObject

	if prev != nil {
		prev.nextObject = next
	} else {
		l.objectListHead = next
	}

	if next != nil {
		next.prevObject = prev
	} else {
		l.objectListTail = prev
	}

	obj.nextObject = nil
	obj.prevObject = nil

	l.count--
}

func (l *objectList) pushObject(obj *Object) {
	if l.count == 0 {
		l.objectListHead = obj
		l.objectListTail = obj
		l.count = 1
	} else {
		obj.prevObject = l.objectListTail
		l.objectListTail.nextObject = obj

		l.objectListTail = obj
		l.count++
	}
}
