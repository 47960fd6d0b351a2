package instmem

import (
	"math/bits"

	"github.com/nvkit/instmem/memutils/heap"
	"github.com/pkg/errors"
)

type ramhtSlot struct {
	chid   int
	handle uint32
}

// RamHT is the hash table the device walks to resolve object handles into
// instance-memory addresses. Each 8-byte slot holds a handle and a context
// word. The driver keeps a shadow of slot occupancy on the host so that probing
// never has to read the device copy back.
type RamHT struct {
	parentInstMem *InstMem
	region        *Region

	bits  uint
	slots []ramhtSlot
}

func newRamHT(instMem *InstMem, region *Region) *RamHT {
	slotCount := int(region.Size >> 3)

	slots := make([]ramhtSlot, slotCount)
	for slotIndex := range slots {
		slots[slotIndex].chid = -1
	}

	return &RamHT{
		parentInstMem: instMem,
		region:        region,
		bits:          uint(bits.Len(uint(slotCount)) - 1),
		slots:         slots,
	}
}

// SlotCount is the number of 8-byte slots in the table.
func (r *RamHT) SlotCount() int {
	return len(r.slots)
}

// hash folds a handle down to the table's index width and mixes the channel id
// in, the same way the device's lookup engine does.
func (r *RamHT) hash(chid int, handle uint32) int {
	hash := uint32(0)

	for handle != 0 {
		hash ^= handle & ((1 << r.bits) - 1)
		handle >>= r.bits
	}

	hash ^= uint32(chid) << (r.bits - 4)
	hash &= uint32(len(r.slots) - 1)
	return int(hash)
}

// Insert places a handle and its context word into the table, probing forward
// from the hashed slot until a free one is found. It returns the byte offset of
// the chosen slot within the table. A full table fails with an error wrapping
// heap.OutOfSpaceError.
func (r *RamHT) Insert(chid int, handle uint32, context uint32) (uint64, error) {
	if chid < 0 || chid >= r.parentInstMem.channelCount {
		return 0, errors.Errorf("channel id %d is out of range", chid)
	}

	co := r.hash(chid, handle)
	ho := co
	for {
		if r.slots[co].chid < 0 {
			r.slots[co].chid = chid
			r.slots[co].handle = handle

			offset := uint64(co) << 3
			r.parentInstMem.window.write32(r.region.Offset+offset+0, handle)
			r.parentInstMem.window.write32(r.region.Offset+offset+4, context)
			return offset, nil
		}

		co++
		if co >= len(r.slots) {
			co = 0
		}
		if co == ho {
			break
		}
	}

	return 0, errors.Wrapf(heap.OutOfSpaceError, "no free slot for handle %#x on channel %d", handle, chid)
}

// Remove clears the slot at the byte offset previously returned from Insert.
func (r *RamHT) Remove(offset uint64) error {
	if offset&7 != 0 || offset>>3 >= uint64(len(r.slots)) {
		return errors.Errorf("offset %d does not name a table slot", offset)
	}

	co := int(offset >> 3)
	if r.slots[co].chid < 0 {
		return errors.Errorf("the slot at offset %d is not occupied", offset)
	}

	r.slots[co].chid = -1
	r.slots[co].handle = 0

	r.parentInstMem.window.write32(r.region.Offset+offset+0, 0)
	r.parentInstMem.window.write32(r.region.Offset+offset+4, 0)
	return nil
}

// Search finds the slot currently holding a handle for the given channel,
// probing the same sequence the device would. The second return value is false
// when the handle is not present.
func (r *RamHT) Search(chid int, handle uint32) (uint64, bool) {
	co := r.hash(chid, handle)
	ho := co
	for {
		if r.slots[co].chid == chid && r.slots[co].handle == handle {
			return uint64(co) << 3, true
		}

		co++
		if co >= len(r.slots) {
			co = 0
		}
		if co == ho {
			return 0, false
		}
	}
}
