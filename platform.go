package instmem

// RegisterIO provides 32-bit access to the device's register aperture. All
// instance-memory traffic ultimately flows through this interface, either as
// direct register reads and writes or as data accesses through the window the
// device exposes inside the aperture.
type RegisterIO interface {
	ReadRegister(reg uint32) uint32
	WriteRegister(reg uint32, value uint32)
}

// CoherentMemory is a physically contiguous, bus-addressable span of host
// memory. The device reads it directly over the bus, so the span's address is
// also the instance-memory offset of any object placed in it.
type CoherentMemory interface {
	// BusAddress returns the device-visible address of the span.
	BusAddress() uint64
	// Size returns the length of the span in bytes.
	Size() uint64
	// Free returns the span to the host.
	Free()
}

// CoherentAllocator allocates physically contiguous coherent memory for devices
// that sit directly on the host bus.
type CoherentAllocator interface {
	AllocCoherent(size uint64) (CoherentMemory, error)
}

// Page is a single page of bus-addressable host memory.
type Page interface {
	// BusAddress returns the device-visible address of the page.
	BusAddress() uint64
	// Free returns the page to the host.
	Free()
}

// PageAllocator hands out individual pages of host memory for devices that
// reach host memory through an IOMMU and so do not need physically contiguous
// spans.
type PageAllocator interface {
	AllocPage() (Page, error)
}

// Iommu remaps individual bus pages into a device-private address space, page
// by page.
type Iommu interface {
	// Map makes the page at busAddr visible to the device at deviceAddr. Both
	// addresses are page-aligned.
	Map(deviceAddr uint64, busAddr uint64) error
	// Unmap removes the mapping at deviceAddr.
	Unmap(deviceAddr uint64)
}

// Platform bundles the host services an InstMem needs. Regs is always required.
// When Iommu is non-nil, instance objects are built from individual pages
// remapped through it and Pages must also be provided; otherwise objects are
// carved from contiguous spans and Coherent must be provided.
type Platform struct {
	Regs     RegisterIO
	Coherent CoherentAllocator
	Pages    PageAllocator
	Iommu    Iommu
}

// ChipFamily identifies the generation a chipset belongs to. The window access
// path is shared across several generations, so most decisions key off the
// family rather than the exact chipset.
type ChipFamily byte

const (
	FamilyUnknown ChipFamily = iota
	FamilyCurie
	FamilyTesla
	FamilyFermi
	FamilyKepler
	FamilyMaxwell
	FamilyPascal
)

var chipFamilyMapping = make(map[ChipFamily]string)

func (f ChipFamily) String() string {
	return chipFamilyMapping[f]
}

func init() {
	chipFamilyMapping[FamilyUnknown] = "FamilyUnknown"
	chipFamilyMapping[FamilyCurie] = "FamilyCurie"
	chipFamilyMapping[FamilyTesla] = "FamilyTesla"
	chipFamilyMapping[FamilyFermi] = "FamilyFermi"
	chipFamilyMapping[FamilyKepler] = "FamilyKepler"
	chipFamilyMapping[FamilyMaxwell] = "FamilyMaxwell"
	chipFamilyMapping[FamilyPascal] = "FamilyPascal"
}

// FamilyForChipset maps a chipset id to its family. The 0x60 range belongs to
// the same family as the 0x40 range despite sitting above the 0x50 range.
func FamilyForChipset(chipset uint32) ChipFamily {
	switch {
	case chipset >= 0x130:
		return FamilyPascal
	case chipset >= 0x110:
		return FamilyMaxwell
	case chipset >= 0xe0:
		return FamilyKepler
	case chipset >= 0xc0:
		return FamilyFermi
	case chipset&0xf0 == 0x40 || chipset&0xf0 == 0x60:
		return FamilyCurie
	case chipset >= 0x50:
		return FamilyTesla
	default:
		return FamilyUnknown
	}
}

// ChipConfig describes the instance-memory geometry of one device: where the
// access window lives in the register aperture, how the window is repointed,
// and how the device addresses backing pages.
type ChipConfig struct {
	// Chipset is the device's chipset id, e.g. 0x40 or 0xea.
	Chipset uint32
	// Family is the chipset's generation. Usually FamilyForChipset(Chipset).
	Family ChipFamily
	// PageShift is log2 of the device page size.
	PageShift uint
	// WindowSize is the size in bytes of the instance-memory window inside the
	// register aperture. Must be a power of two.
	WindowSize uint64
	// WindowBaseReg is the register that selects which window-aligned region of
	// instance memory the window exposes.
	WindowBaseReg uint32
	// WindowBaseShift is the right shift applied to the window base address
	// before it is written to WindowBaseReg.
	WindowBaseShift uint
	// WindowDataReg is the aperture offset where the window's data begins.
	WindowDataReg uint32
	// UnitConfigReg is the register describing the device's unit population,
	// read during bring-up to size the reserved region.
	UnitConfigReg uint32
	// IommuAddrBit is the address bit set on device addresses that resolve
	// through the IOMMU rather than directly on the bus. Zero when the device
	// has no IOMMU path.
	IommuAddrBit uint
}

// GK20AConfig returns the ChipConfig for the Tegra K1's integrated GPU, which
// reaches host memory through an IOMMU and keeps a 1MiB window at the tail of
// its register aperture.
func GK20AConfig() ChipConfig {
	return ChipConfig{
		Chipset:         0xea,
		Family:          FamilyKepler,
		PageShift:       12,
		WindowSize:      1 << 20,
		WindowBaseReg:   0x001700,
		WindowBaseShift: 16,
		WindowDataReg:   0x700000,
		UnitConfigReg:   0x001540,
		IommuAddrBit:    34,
	}
}

// NV40Config returns the ChipConfig for a discrete chipset in the 0x40 or 0x60
// range. These devices keep instance memory in local RAM behind the same style
// of window and have no IOMMU path.
func NV40Config(chipset uint32) ChipConfig {
	return ChipConfig{
		Chipset:         chipset,
		Family:          FamilyForChipset(chipset),
		PageShift:       12,
		WindowSize:      1 << 20,
		WindowBaseReg:   0x001700,
		WindowBaseShift: 16,
		WindowDataReg:   0x700000,
		UnitConfigReg:   0x001540,
	}
}
