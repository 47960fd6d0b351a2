package instmem

import (
	"github.com/cockroachdb/errors"
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/nvkit/instmem/internal/utils"
	"github.com/nvkit/instmem/memutils"
	"github.com/nvkit/instmem/memutils/heap"
	"golang.org/x/exp/slog"
)

const (
	// defaultChannelCount is the number of channels the reserved region is sized
	// for when none is provided via CreateOptions
	defaultChannelCount = 32
)

// InstMem manages one device's instance memory: the address space the device
// interprets structurally rather than as bulk data. It owns the window used to
// access that space, the reserved region carved out during Boot, and the
// lifecycle of every instance object allocated from it.
type InstMem struct {
	useMutex bool
	logger   *slog.Logger

	chip      ChipConfig
	regs      RegisterIO
	coherent  CoherentAllocator
	pageAlloc PageAllocator
	iommu     Iommu

	kind   backendKind
	window *windowCache

	createFlags      CreateFlags
	channelCount     int
	reservedCapacity uint64

	reservedMutex utils.OptionalMutex
	reserved      *heap.Heap

	iommuMutex utils.OptionalMutex
	iommuHeap  *heap.Heap

	objects objectList
}

// New creates a new InstMem
//
// logger - The logger that debug traces will be written to
//
// platform - The host services backing instance memory. The backend is chosen
// here: a Platform carrying an Iommu gets the page-backed backend, any other
// gets the contiguous backend
//
// chip - The device's instance-memory geometry
//
// options - Optional parameters: it is valid to leave all the fields blank
func New(logger *slog.Logger, platform Platform, chip ChipConfig, options CreateOptions) (*InstMem, error) {
	if platform.Regs == nil {
		return nil, errors.New("provided Platform must carry a RegisterIO")
	}
	if chip.Family < FamilyCurie || chip.Family > FamilyMaxwell {
		return nil, errors.Wrapf(UnsupportedConfigurationError, "chipset %#x (%s) has no supported instance-memory window", chip.Chipset, chip.Family)
	}
	if chip.WindowSize == 0 {
		return nil, errors.New("provided ChipConfig must carry a window size")
	}
	err := memutils.CheckPow2(chip.WindowSize, "ChipConfig.WindowSize")
	if err != nil {
		return nil, err
	}
	if chip.PageShift == 0 {
		return nil, errors.New("provided ChipConfig must carry a page shift")
	}

	useMutex := options.Flags&CreateExternallySynchronized == 0

	instMem := &InstMem{
		useMutex: useMutex,
		logger:   logger,

		chip:      chip,
		regs:      platform.Regs,
		coherent:  platform.Coherent,
		pageAlloc: platform.Pages,
		iommu:     platform.Iommu,

		createFlags: options.Flags,

		reservedMutex: utils.OptionalMutex{UseMutex: useMutex},
		iommuMutex:    utils.OptionalMutex{UseMutex: useMutex},
	}
	instMem.window = newWindowCache(platform.Regs, chip, useMutex)
	instMem.objects.Init(useMutex)

	if options.ChannelCount == 0 {
		instMem.channelCount = defaultChannelCount
	} else {
		instMem.channelCount = options.ChannelCount
	}
	instMem.reservedCapacity = options.ReservedCapacity

	if platform.Iommu != nil {
		if platform.Pages == nil {
			return nil, errors.New("provided Platform carries an Iommu but no PageAllocator")
		}
		if chip.IommuAddrBit == 0 {
			return nil, errors.Wrapf(UnsupportedConfigurationError, "chipset %#x has an iommu path but no iommu address bit", chip.Chipset)
		}

		capacity := options.IommuCapacity
		if capacity == 0 {
			capacity = uint64(1) << chip.IommuAddrBit
		}
		pageSize := uint64(1) << chip.PageShift
		if capacity&(pageSize-1) != 0 {
			return nil, errors.Errorf("iommu capacity %d is not a multiple of the page size %d", capacity, pageSize)
		}

		instMem.kind = backendIommu
		instMem.iommuHeap = heap.New(pageSize)
		instMem.iommuHeap.Init(capacity)
	} else {
		if platform.Coherent == nil {
			return nil, errors.New("provided Platform must carry a CoherentAllocator when no Iommu is present")
		}

		instMem.kind = backendContiguous
	}

	return instMem, nil
}

// Alloc creates an instance object of at least size bytes aligned to align and
// initializes outObject to describe it. align must be a power of two or zero;
// sizes are rounded up to the device page size. The object's backing memory
// comes from the backend selected at New time. On failure outObject is left
// uninitialized and nothing is retained.
func (i *InstMem) Alloc(size uint64, align uint64, flags AllocFlags, outObject *Object) error {
	i.logger.Debug("InstMem::Alloc",
		slog.Uint64("Size", size),
		slog.Uint64("Alignment", align),
		slog.String("Flags", flags.String()))

	if outObject == nil {
		return errors.New("attempted to allocate into a nil object")
	}
	if size == 0 {
		return errors.New("attempted to allocate an empty object")
	}
	if align == 0 {
		align = 1
	}
	err := memutils.CheckPow2(align, "align")
	if err != nil {
		return err
	}

	pageSize := uint64(1) << i.chip.PageShift
	size = memutils.AlignUp(size+memutils.DebugMargin, pageSize)
	if align < pageSize {
		align = pageSize
	}

	outObject.init(i)

	switch i.kind {
	case backendContiguous:
		err = i.allocContiguous(size, align, flags, outObject)
	case backendIommu:
		err = i.allocIommu(size, align, flags, outObject)
	}
	if err != nil {
		i.logger.Debug("  InstMem::Alloc FAILED")
		return err
	}

	i.objects.Register(outObject)

	if flags&AllocZeroFill != 0 {
		i.zeroRange(outObject.gpuOffset, outObject.size)
	}

	memutils.WriteMagicValue(outObject, outObject.size)

	i.logger.Debug("  Allocated instance object",
		slog.String("Type", outObject.kind.String()),
		slog.Uint64("Offset", outObject.gpuOffset),
		slog.Uint64("Size", outObject.size))

	return nil
}

// Free tears down a live instance object, returning its backing memory to the
// host and its device address range, if any, to the address space heap.
func (i *InstMem) Free(obj *Object) error {
	if obj == nil {
		return errors.New("attempted to free a nil object")
	}

	i.logger.Debug("InstMem::Free",
		slog.String("Name", obj.Name()),
		slog.Uint64("Offset", obj.Offset()))

	if obj.kind == backendNone {
		return errors.New("attempted to free an object that is not live")
	}
	if obj.parentInstMem != i {
		return errors.New("attempted to free an object that belongs to a different InstMem")
	}

	if memutils.DebugMargin > 0 && !memutils.ValidateMagicValue(obj, obj.size) {
		panic("memory corruption detected after the object being freed")
	}

	i.objects.Unregister(obj)

	switch obj.kind {
	case backendContiguous:
		i.freeContiguous(obj)
	case backendIommu:
		i.freeIommu(obj)
	}

	obj.kind = backendNone

	return nil
}

// zeroRange clears size bytes of instance memory starting at offset, word by
// word through the window.
func (i *InstMem) zeroRange(offset uint64, size uint64) {
	for n := uint64(0); n < size; n += 4 {
		i.window.write32(offset+n, 0)
	}
}

// Fini releases the device across a suspend or reset: the cached window base is
// forgotten so the first access afterwards repoints the window. Objects and
// their backing memory survive Fini; it is the device's register state that
// does not.
func (i *InstMem) Fini() {
	i.logger.Debug("InstMem::Fini")

	i.window.invalidate()
}

// Destroy tears the InstMem down. It is an error to call Destroy while any
// instance object is still live; free them first so backing memory does not
// leak.
func (i *InstMem) Destroy() error {
	i.logger.Debug("InstMem::Destroy")

	if !i.objects.IsEmpty() {
		return errors.Errorf("attempted to destroy an InstMem with %d live objects", i.objects.Count())
	}

	i.window.invalidate()
	return nil
}

// CalculateStatistics sums usage numbers across the reserved region, the device
// address space, and directly placed objects into stats. Any statistics already
// in stats are cleared first.
func (i *InstMem) CalculateStatistics(stats *memutils.Statistics) {
	i.logger.Debug("InstMem::CalculateStatistics")

	stats.Clear()

	if i.reserved != nil {
		i.reservedMutex.Lock()
		i.reserved.AddStatistics(stats)
		i.reservedMutex.Unlock()
	}

	if i.iommuHeap != nil {
		i.iommuMutex.Lock()
		i.iommuHeap.AddStatistics(stats)
		i.iommuMutex.Unlock()
	}

	i.objects.AddStatistics(stats)
}

// CalculateDetailedStatistics sums usage numbers, including free-range detail,
// across the reserved region, the device address space, and directly placed
// objects into stats. Any statistics already in stats are cleared first.
func (i *InstMem) CalculateDetailedStatistics(stats *memutils.DetailedStatistics) {
	i.logger.Debug("InstMem::CalculateDetailedStatistics")

	stats.Clear()

	if i.reserved != nil {
		i.reservedMutex.Lock()
		i.reserved.AddDetailedStatistics(stats)
		i.reservedMutex.Unlock()
	}

	if i.iommuHeap != nil {
		i.iommuMutex.Lock()
		i.iommuHeap.AddDetailedStatistics(stats)
		i.iommuMutex.Unlock()
	}

	i.objects.AddDetailedStatistics(stats)
}

// CheckCorruption validates the anti-corruption markers trailing every live
// object. It only has teeth in builds with the debug_mem_utils tag; other
// builds return nil immediately.
func (i *InstMem) CheckCorruption() error {
	i.logger.Debug("InstMem::CheckCorruption")

	if memutils.DebugMargin == 0 {
		return nil
	}

	return i.objects.CheckCorruption()
}

// BuildStatsString writes a JSON summary of the InstMem's current state:
// aggregate totals, the reserved region's ranges, the device address space's
// ranges, and, when detailedMap is set, every live object.
func (i *InstMem) BuildStatsString(detailedMap bool) string {
	writer := jwriter.NewWriter()

	rootState := writer.Object()

	generalState := rootState.Name("General").Object()
	generalState.Name("Chipset").Int(int(i.chip.Chipset))
	generalState.Name("Family").String(i.chip.Family.String())
	generalState.Name("Backend").String(i.kind.String())
	generalState.End()

	var stats memutils.DetailedStatistics
	i.CalculateDetailedStatistics(&stats)

	totalState := rootState.Name("Total").Object()
	printDetailedStatistics(totalState, &stats)
	totalState.End()

	if i.reserved != nil {
		reservedState := rootState.Name("ReservedSpace").Object()
		i.reservedMutex.Lock()
		i.reserved.HeapJSON(reservedState)
		i.reservedMutex.Unlock()
		reservedState.End()
	}

	if i.iommuHeap != nil {
		addressState := rootState.Name("DeviceAddressSpace").Object()
		i.iommuMutex.Lock()
		i.iommuHeap.HeapJSON(addressState)
		i.iommuMutex.Unlock()
		addressState.End()
	}

	if detailedMap {
		i.objects.BuildStatsString(rootState.Name("Objects"))
	}

	rootState.End()

	return string(writer.Bytes())
}

func printDetailedStatistics(json jwriter.ObjectState, stats *memutils.DetailedStatistics) {
	json.Name("HeapCount").Int(stats.HeapCount)
	json.Name("HeapBytes").Int(int(stats.HeapBytes))
	json.Name("AllocationCount").Int(stats.AllocationCount)
	json.Name("AllocationBytes").Int(int(stats.AllocationBytes))
	json.Name("UnusedRangeCount").Int(stats.UnusedRangeCount)

	if stats.AllocationCount > 0 {
		json.Name("AllocationSizeMin").Int(int(stats.AllocationSizeMin))
		json.Name("AllocationSizeMax").Int(int(stats.AllocationSizeMax))
	}
	if stats.UnusedRangeCount > 0 {
		json.Name("UnusedRangeSizeMin").Int(int(stats.UnusedRangeSizeMin))
		json.Name("UnusedRangeSizeMax").Int(int(stats.UnusedRangeSizeMax))
	}
}
