package heap

import (
	"math"
	"sync"
	"sync/atomic"

	"github.com/dolthub/swiss"
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/nvkit/instmem/memutils"
	"github.com/pkg/errors"
)

// OutOfSpaceError is returned from Reserve and ReserveAt when no free range can
// satisfy the request. The heap is left untouched when this error is returned.
var OutOfSpaceError error = errors.New("no free range can satisfy the request")

// RangeHandle is an opaque handle identifying a single range within a Heap
type RangeHandle uint64

const (
	// NoRange is a RangeHandle that intentionally points to no range at all
	NoRange RangeHandle = math.MaxUint64
)

// Range describes a single reserved range of a Heap. It is returned from Reserve
// and ReserveAt and handed back to Release when the range is no longer needed.
type Range struct {
	Handle RangeHandle
	Offset uint64
	Size   uint64
}

var nodeAllocator = sync.Pool{
	New: func() any {
		return &rangeNode{}
	},
}

type rangeNode struct {
	offset       uint64
	size         uint64
	prevPhysical *rangeNode
	nextPhysical *rangeNode

	taken  bool
	handle RangeHandle
}

// Heap is an address-ordered first-fit range allocator over a span of instance
// memory. It never touches the memory it manages: callers carve byte ranges out
// of the span and the Heap only tracks which ranges are reserved. Reservations
// are made at the lowest offset that fits, and free neighbors are merged as soon
// as a range is released.
//
// Heap is not externally synchronized. Consumers that share a Heap between
// goroutines must provide their own locking.
type Heap struct {
	granularity uint64
	capacity    uint64

	reservedCount int
	freeCount     int
	freeBytes     uint64

	head *rangeNode
	tail *rangeNode

	nextRangeHandle RangeHandle
	handleKey       *swiss.Map[RangeHandle, *rangeNode]
}

var _ memutils.Validatable = &Heap{}

// New creates a Heap that will round all reservations up to a multiple of
// granularity. granularity must be a power of two of at least 1. The heap cannot
// be used until Init has been called.
func New(granularity uint64) *Heap {
	memutils.DebugCheckPow2(granularity, "heap granularity")

	return &Heap{
		granularity: granularity,
	}
}

func (h *Heap) allocateNode() *rangeNode {
	n := nodeAllocator.Get().(*rangeNode)
	n.offset = 0
	n.size = 0
	n.prevPhysical = nil
	n.nextPhysical = nil
	n.taken = false
	n.handle = RangeHandle(atomic.AddUint64((*uint64)(&h.nextRangeHandle), 1))
	h.handleKey.Put(n.handle, n)
	return n
}

func (h *Heap) freeNode(n *rangeNode) {
	h.handleKey.Delete(n.handle)
	nodeAllocator.Put(n)
}

func (h *Heap) getNode(handle RangeHandle) (*rangeNode, error) {
	node, ok := h.handleKey.Get(handle)
	if !ok {
		return nil, errors.New("received a handle that was incompatible with this heap")
	}
	return node, nil
}

// Init must be called before the Heap is used. It sizes the managed span in bytes
// and places a single free range across the whole of it.
func (h *Heap) Init(capacity uint64) {
	h.capacity = capacity
	h.handleKey = swiss.NewMap[RangeHandle, *rangeNode](42)

	initial := h.allocateNode()
	initial.size = capacity
	h.head = initial
	h.tail = initial
	h.reservedCount = 0
	h.freeCount = 1
	h.freeBytes = capacity
}

// Capacity returns the size in bytes of the span this heap manages.
func (h *Heap) Capacity() uint64 { return h.capacity }

// Granularity returns the allocation unit in bytes that all reservations are
// rounded up to.
func (h *Heap) Granularity() uint64 { return h.granularity }

// ReservedCount returns the number of live reservations in the heap.
func (h *Heap) ReservedCount() int { return h.reservedCount }

// FreeBytes returns the number of unreserved bytes in the heap.
func (h *Heap) FreeBytes() uint64 { return h.freeBytes }

// IsEmpty will return true if this heap has no live reservations
func (h *Heap) IsEmpty() bool { return h.reservedCount == 0 }

// Reserve finds the lowest-addressed free range that can hold size bytes at the
// requested alignment and reserves it. size is rounded up to the heap granularity
// and alignment must be a power of two; alignments below the granularity are
// raised to it. On success the returned Range describes the reserved span. If no
// free range fits, an error wrapping OutOfSpaceError is returned and the heap is
// left exactly as it was.
func (h *Heap) Reserve(size uint64, alignment uint64) (Range, error) {
	memutils.DebugValidate(h)

	if size == 0 {
		return Range{Handle: NoRange}, errors.New("attempted to reserve an empty range")
	}
	memutils.DebugCheckPow2(alignment, "reserve alignment")

	size = memutils.AlignUp(size, h.granularity)
	if alignment < h.granularity {
		alignment = h.granularity
	}

	if size > h.freeBytes {
		return Range{Handle: NoRange}, errors.Wrapf(OutOfSpaceError, "%d bytes requested but only %d bytes are free", size, h.freeBytes)
	}

	for node := h.head; node != nil; node = node.nextPhysical {
		if node.taken {
			continue
		}

		start := memutils.AlignUp(node.offset, alignment)
		if start+size > node.offset+node.size {
			continue
		}

		return h.commit(node, start, size), nil
	}

	return Range{Handle: NoRange}, errors.Wrapf(OutOfSpaceError, "no free range can hold %d bytes at alignment %d", size, alignment)
}

// ReserveAt reserves the exact range [offset, offset+size), failing if any part
// of it is already reserved or lies beyond the heap capacity. offset must be
// aligned to the heap granularity and size is rounded up to it. On failure the
// heap is left exactly as it was.
func (h *Heap) ReserveAt(offset uint64, size uint64) (Range, error) {
	memutils.DebugValidate(h)

	if size == 0 {
		return Range{Handle: NoRange}, errors.New("attempted to reserve an empty range")
	}
	if offset%h.granularity != 0 {
		return Range{Handle: NoRange}, errors.Errorf("offset %d is not aligned to the heap granularity %d", offset, h.granularity)
	}

	size = memutils.AlignUp(size, h.granularity)
	if offset+size > h.capacity {
		return Range{Handle: NoRange}, errors.Wrapf(OutOfSpaceError, "range [%d, %d) extends past the heap capacity %d", offset, offset+size, h.capacity)
	}

	for node := h.head; node != nil; node = node.nextPhysical {
		end := node.offset + node.size
		if offset >= end {
			continue
		}

		// Free neighbors always merge, so a request crossing out of this node
		// necessarily overlaps a reserved range.
		if node.taken || offset+size > end {
			return Range{Handle: NoRange}, errors.Wrapf(OutOfSpaceError, "range [%d, %d) overlaps an existing reservation", offset, offset+size)
		}

		return h.commit(node, offset, size), nil
	}

	return Range{Handle: NoRange}, errors.Wrapf(OutOfSpaceError, "range [%d, %d) is outside the managed span", offset, offset+size)
}

// commit carves [start, start+size) out of the provided free node. The node must
// fully contain the requested range.
func (h *Heap) commit(node *rangeNode, start uint64, size uint64) Range {
	missingAlignment := start - node.offset

	// Free neighbors always merge on release, so any space skipped for alignment
	// can only border a reserved range and must become its own free node.
	if missingAlignment != 0 {
		prev := node.prevPhysical

		pad := h.allocateNode()
		pad.offset = node.offset
		pad.size = missingAlignment
		pad.prevPhysical = prev
		pad.nextPhysical = node
		node.prevPhysical = pad
		if prev != nil {
			prev.nextPhysical = pad
		} else {
			h.head = pad
		}
		h.freeCount++

		node.offset = start
		node.size -= missingAlignment
	}

	// Split off any remainder past the end of the requested range
	if node.size > size {
		remainder := h.allocateNode()
		remainder.offset = start + size
		remainder.size = node.size - size
		remainder.prevPhysical = node
		remainder.nextPhysical = node.nextPhysical
		if remainder.nextPhysical != nil {
			remainder.nextPhysical.prevPhysical = remainder
		} else {
			h.tail = remainder
		}
		node.nextPhysical = remainder
		node.size = size
		h.freeCount++
	}

	node.taken = true
	h.reservedCount++
	h.freeCount--
	h.freeBytes -= size

	return Range{Handle: node.handle, Offset: node.offset, Size: node.size}
}

// Release frees the reserved range identified by handle and merges it with any
// free neighbors, so the space becomes reservable as one contiguous range again.
func (h *Heap) Release(handle RangeHandle) error {
	node, err := h.getNode(handle)
	if err != nil {
		return err
	}
	if !node.taken {
		return errors.New("range is already free")
	}

	node.taken = false
	h.reservedCount--
	h.freeCount++
	h.freeBytes += node.size

	prev := node.prevPhysical
	if prev != nil && !prev.taken {
		h.mergeNode(node, prev)
	}

	next := node.nextPhysical
	if next != nil && !next.taken {
		h.mergeNode(next, node)
	}

	return nil
}

// mergeNode absorbs prev into node. prev must be node's physical predecessor.
func (h *Heap) mergeNode(node *rangeNode, prev *rangeNode) {
	if node.prevPhysical != prev {
		panic("cannot merge ranges that are not physical neighbors")
	}

	node.offset = prev.offset
	node.size += prev.size
	node.prevPhysical = prev.prevPhysical
	if node.prevPhysical != nil {
		node.prevPhysical.nextPhysical = node
	} else {
		h.head = node
	}

	h.freeNode(prev)
	h.freeCount--
}

// Clear instantly releases every reservation and returns the heap to a single
// free range covering the full capacity.
func (h *Heap) Clear() {
	node := h.head
	for node != nil {
		next := node.nextPhysical
		h.freeNode(node)
		node = next
	}

	initial := h.allocateNode()
	initial.size = h.capacity
	h.head = initial
	h.tail = initial
	h.reservedCount = 0
	h.freeCount = 1
	h.freeBytes = h.capacity
}

func (h *Heap) Validate() error {
	if h.freeBytes > h.capacity {
		return errors.New("invalid heap free size")
	}

	var calculatedCapacity, calculatedFreeBytes uint64
	var reservedCount, freeCount int

	nextOffset := uint64(0)
	var prev *rangeNode

	for node := h.head; node != nil; node = node.nextPhysical {
		if node.offset != nextOffset {
			return errors.Errorf("range at offset %d does not start at the previous range's end offset %d", node.offset, nextOffset)
		}
		if node.prevPhysical != prev {
			return errors.Errorf("range at offset %d has a previous range, but the reverse reference is broken", node.offset)
		}
		if node.size == 0 {
			return errors.Errorf("range at offset %d is empty", node.offset)
		}

		if node.taken {
			reservedCount++
		} else {
			freeCount++
			calculatedFreeBytes += node.size

			if prev != nil && !prev.taken {
				return errors.Errorf("free range at offset %d has an unmerged free neighbor", node.offset)
			}
		}

		mapped, ok := h.handleKey.Get(node.handle)
		if !ok || mapped != node {
			return errors.Errorf("range at offset %d is missing from the handle table", node.offset)
		}

		calculatedCapacity += node.size
		nextOffset = node.offset + node.size
		prev = node
	}

	if prev != h.tail {
		return errors.New("the physical chain does not end at the tail range")
	}
	if calculatedCapacity != h.capacity {
		return errors.Errorf("the full capacity of the heap is %d, but the ranges only added up to %d", h.capacity, calculatedCapacity)
	}
	if calculatedFreeBytes != h.freeBytes {
		return errors.Errorf("the free size of the heap is %d, but the free ranges only added up to %d", h.freeBytes, calculatedFreeBytes)
	}
	if reservedCount != h.reservedCount {
		return errors.Errorf("the reservation count of the heap is %d, but the taken ranges only added up to %d", h.reservedCount, reservedCount)
	}
	if freeCount != h.freeCount {
		return errors.Errorf("the free range count of the heap is %d, but there were only %d free ranges", h.freeCount, freeCount)
	}

	return nil
}

// AddStatistics sums this heap's reservation statistics into the statistics
// currently present in the provided memutils.Statistics object.
func (h *Heap) AddStatistics(stats *memutils.Statistics) {
	stats.HeapCount++
	stats.AllocationCount += h.reservedCount
	stats.HeapBytes += h.capacity
	stats.AllocationBytes += h.capacity - h.freeBytes
}

// AddDetailedStatistics sums this heap's reservation statistics into the
// statistics currently present in the provided memutils.DetailedStatistics object.
func (h *Heap) AddDetailedStatistics(stats *memutils.DetailedStatistics) {
	stats.HeapCount++
	stats.HeapBytes += h.capacity

	for node := h.head; node != nil; node = node.nextPhysical {
		if node.taken {
			stats.AddAllocation(node.size)
		} else {
			stats.AddUnusedRange(node.size)
		}
	}
}

// RangeInfo describes one physical range of the heap during a VisitRanges walk.
type RangeInfo struct {
	Handle   RangeHandle
	Offset   uint64
	Size     uint64
	Reserved bool
}

// VisitRanges will call the provided callback once for each reserved and free
// range in the heap, in address order.
func (h *Heap) VisitRanges(visit func(info RangeInfo) error) error {
	for node := h.head; node != nil; node = node.nextPhysical {
		err := visit(RangeInfo{
			Handle:   node.handle,
			Offset:   node.offset,
			Size:     node.size,
			Reserved: node.taken,
		})
		if err != nil {
			return err
		}
	}

	return nil
}

// HeapJSON writes a diagnostic summary of the heap and each of its ranges into
// the provided json object.
func (h *Heap) HeapJSON(json jwriter.ObjectState) {
	json.Name("TotalBytes").Int(int(h.capacity))
	json.Name("UnusedBytes").Int(int(h.freeBytes))
	json.Name("Reservations").Int(h.reservedCount)
	json.Name("UnusedRanges").Int(h.freeCount)

	rangesJson := json.Name("Ranges").Array()
	defer rangesJson.End()

	for node := h.head; node != nil; node = node.nextPhysical {
		nodeJson := rangesJson.Object()

		nodeJson.Name("Offset").Int(int(node.offset))
		nodeJson.Name("Size").Int(int(node.size))
		if node.taken {
			nodeJson.Name("Type").String("RESERVED")
		} else {
			nodeJson.Name("Type").String("FREE")
		}

		nodeJson.End()
	}
}
