package instmem

import (
	"math/bits"

	"github.com/cockroachdb/errors"
	"github.com/nvkit/instmem/memutils"
	"github.com/nvkit/instmem/memutils/heap"
	"golang.org/x/exp/slog"
)

const (
	vbiosOffset = 0x00000
	vbiosSize   = 0x10000
	ramhtOffset = 0x10000
	ramhtSize   = 0x08000
	ramroOffset = 0x18000
	ramroSize   = 0x08000
	ramfcOffset = 0x20000
	ramfcSize   = 0x20000
)

// Region is one span carved out of the reserved area during Boot. The offset is
// absolute within instance memory, so it can be handed straight to the window
// accessors.
type Region struct {
	Name   string
	Offset uint64
	Size   uint64

	area heap.Range
}

// Layout hands out the structures living at the bottom of instance memory
// after Boot: space for the vbios image, the object hash table, the runout
// area, and the per-channel context blocks.
type Layout struct {
	parentInstMem *InstMem

	Vbios *Region
	RamHT *RamHT
	RamRO *Region
	RamFC *Region
}

// nv44ContextClass reports whether a chipset carries the nv44-style graphics
// context layout rather than the nv40 one.
func nv44ContextClass(chipset uint32) bool {
	return chipset&0xf0 == 0x60 || 0x0baf&(1<<(chipset&0x0f)) == 0
}

// computeReservedCapacity sizes the reserved area from the device's unit
// population. The per-unit context sizes are magic numbers lifted from the
// graphics engine of each chipset generation.
func (i *InstMem) computeReservedCapacity() uint64 {
	// The second byte of the unit config register is a bitmask of present
	// shader units, and every present unit needs its own context slot.
	vs := uint64(bits.OnesCount8(uint8((i.regs.ReadRegister(i.chip.UnitConfigReg) & 0x0000ff00) >> 8)))

	var capacity uint64
	switch {
	case i.chip.Chipset == 0x40:
		capacity = 0x6aa0 * vs
	case i.chip.Chipset < 0x43:
		capacity = 0x4f00 * vs
	case nv44ContextClass(i.chip.Chipset):
		capacity = 0x4980 * vs
	default:
		capacity = 0x4a40 * vs
	}

	capacity += 16 * 1024
	capacity *= uint64(i.channelCount)
	capacity += 512 * 1024 // gart table
	capacity += 512 * 1024 // object storage

	return memutils.AlignUp(capacity, 4096)
}

func reserveRegion(reserved *heap.Heap, name string, offset uint64, size uint64) (*Region, error) {
	area, err := reserved.ReserveAt(offset, size)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to carve the %s region", name)
	}

	return &Region{
		Name:   name,
		Offset: area.Offset,
		Size:   area.Size,
		area:   area,
	}, nil
}

// Boot sizes the reserved area and carves the boot-time structures out of its
// bottom. It must be called once, before any channel uses the device; calling
// it again without destroying the InstMem is an error.
func (i *InstMem) Boot() (*Layout, error) {
	i.logger.Debug("InstMem::Boot")

	if i.reserved != nil {
		return nil, errors.New("the reserved area has already been booted")
	}

	capacity := i.reservedCapacity
	if capacity == 0 {
		capacity = i.computeReservedCapacity()
	}

	reserved := heap.New(1)
	reserved.Init(capacity)

	layout := &Layout{parentInstMem: i}

	// 0x00000-0x10000: space for a probable vbios image
	vbios, err := reserveRegion(reserved, "vbios", vbiosOffset, vbiosSize)
	if err != nil {
		return nil, err
	}
	layout.Vbios = vbios

	// 0x10000-0x18000: the object hash table
	ramhtRegion, err := reserveRegion(reserved, "ramht", ramhtOffset, ramhtSize)
	if err != nil {
		return nil, err
	}

	// 0x18000-0x18200: the runout area, the rest is padding
	ramro, err := reserveRegion(reserved, "ramro", ramroOffset, ramroSize)
	if err != nil {
		return nil, err
	}
	layout.RamRO = ramro

	// 0x20000-0x40000: per-channel context blocks, scanned by the device
	ramfc, err := reserveRegion(reserved, "ramfc", ramfcOffset, ramfcSize)
	if err != nil {
		return nil, err
	}
	layout.RamFC = ramfc

	i.reservedMutex.Lock()
	i.reserved = reserved
	i.reservedMutex.Unlock()

	// The device walks context blocks before the driver ever writes them, so
	// they cannot be left holding stale data.
	i.zeroRange(ramfc.Offset, ramfc.Size)

	layout.RamHT = newRamHT(i, ramhtRegion)

	i.logger.Debug("  Booted reserved area",
		slog.Uint64("Capacity", capacity),
		slog.Int("Channels", i.channelCount))

	return layout, nil
}

// Release gives every carved region back to the reserved heap. The structures
// living in the regions must no longer be in use when this is called.
func (l *Layout) Release() error {
	i := l.parentInstMem

	i.reservedMutex.Lock()
	defer i.reservedMutex.Unlock()

	regions := []*Region{l.Vbios, l.RamRO, l.RamFC}
	if l.RamHT != nil {
		regions = append(regions, l.RamHT.region)
	}

	for _, region := range regions {
		if region == nil {
			continue
		}

		err := i.reserved.Release(region.area.Handle)
		if err != nil {
			return errors.Wrapf(err, "failed to release the %s region", region.Name)
		}
	}

	l.Vbios = nil
	l.RamHT = nil
	l.RamRO = nil
	l.RamFC = nil

	return nil
}
