package instmem

import (
	"github.com/pkg/errors"
)

// FakeRegisterIO models the register aperture of a device with a window over
// instance memory. Writes to the window base register repoint the window, and
// accesses inside the window's data range land in a backing map keyed by the
// absolute instance-memory offset, the way they would land in real backing
// storage.
type FakeRegisterIO struct {
	Chip ChipConfig

	Registers map[uint32]uint32
	Memory    map[uint64]uint32

	// Repoints counts writes to the window base register.
	Repoints int
}

func NewFakeRegisterIO(chip ChipConfig) *FakeRegisterIO {
	return &FakeRegisterIO{
		Chip:      chip,
		Registers: make(map[uint32]uint32),
		Memory:    make(map[uint64]uint32),
	}
}

func (f *FakeRegisterIO) windowBase() uint64 {
	return uint64(f.Registers[f.Chip.WindowBaseReg]) << f.Chip.WindowBaseShift
}

func (f *FakeRegisterIO) ReadRegister(reg uint32) uint32 {
	if reg >= f.Chip.WindowDataReg && uint64(reg-f.Chip.WindowDataReg) < f.Chip.WindowSize {
		return f.Memory[f.windowBase()+uint64(reg-f.Chip.WindowDataReg)]
	}

	return f.Registers[reg]
}

func (f *FakeRegisterIO) WriteRegister(reg uint32, value uint32) {
	if reg == f.Chip.WindowBaseReg {
		f.Repoints++
		f.Registers[reg] = value
		return
	}

	if reg >= f.Chip.WindowDataReg && uint64(reg-f.Chip.WindowDataReg) < f.Chip.WindowSize {
		f.Memory[f.windowBase()+uint64(reg-f.Chip.WindowDataReg)] = value
		return
	}

	f.Registers[reg] = value
}

// FakeCoherentAllocator hands out fake bus address spans with no real backing.
// Addresses count up from NextAddress and are never reused.
type FakeCoherentAllocator struct {
	NextAddress uint64

	// Misalign is added to every returned address to force misaligned spans.
	Misalign uint64

	// FailNext makes the next AllocCoherent call fail.
	FailNext bool

	Outstanding int
}

func (f *FakeCoherentAllocator) AllocCoherent(size uint64) (CoherentMemory, error) {
	if f.FailNext {
		f.FailNext = false
		return nil, errors.New("the fake coherent allocator was told to fail")
	}

	addr := f.NextAddress + f.Misalign
	f.NextAddress = addr + size
	f.Outstanding++

	return &FakeCoherentMemory{
		allocator: f,
		address:   addr,
		size:      size,
	}, nil
}

type FakeCoherentMemory struct {
	allocator *FakeCoherentAllocator
	address   uint64
	size      uint64
	Freed     bool
}

func (f *FakeCoherentMemory) BusAddress() uint64 { return f.address }
func (f *FakeCoherentMemory) Size() uint64       { return f.size }

func (f *FakeCoherentMemory) Free() {
	f.Freed = true
	f.allocator.Outstanding--
}

// FakePageAllocator hands out single fake pages, optionally failing once a set
// number of pages has been handed out.
type FakePageAllocator struct {
	PageSize    uint64
	NextAddress uint64

	// FailAfter fails any allocation once this many pages have been handed out.
	// Zero means never fail.
	FailAfter int

	Allocated   int
	Outstanding int
}

func (f *FakePageAllocator) AllocPage() (Page, error) {
	if f.FailAfter > 0 && f.Allocated >= f.FailAfter {
		return nil, errors.New("the fake page allocator was told to fail")
	}

	addr := f.NextAddress
	f.NextAddress += f.PageSize
	f.Allocated++
	f.Outstanding++

	return &FakePage{allocator: f, address: addr}, nil
}

type FakePage struct {
	allocator *FakePageAllocator
	address   uint64
	Freed     bool
}

func (f *FakePage) BusAddress() uint64 { return f.address }

func (f *FakePage) Free() {
	f.Freed = true
	f.allocator.Outstanding--
}

// FakeIommu tracks live page mappings in a table, optionally failing the Nth
// Map call.
type FakeIommu struct {
	Mapped map[uint64]uint64

	// FailOn fails the Nth Map call, counted from 1. Zero means never fail.
	FailOn int

	MapCalls   int
	UnmapCalls int
}

func NewFakeIommu() *FakeIommu {
	return &FakeIommu{Mapped: make(map[uint64]uint64)}
}

func (f *FakeIommu) Map(deviceAddr uint64, busAddr uint64) error {
	f.MapCalls++
	if f.FailOn > 0 && f.MapCalls == f.FailOn {
		return errors.New("the fake iommu was told to fail")
	}

	f.Mapped[deviceAddr] = busAddr
	return nil
}

func (f *FakeIommu) Unmap(deviceAddr uint64) {
	f.UnmapCalls++
	delete(f.Mapped, deviceAddr)
}
