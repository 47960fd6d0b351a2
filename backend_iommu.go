package instmem

import (
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/nvkit/instmem/memutils"
	"github.com/nvkit/instmem/memutils/heap"
	"golang.org/x/exp/slog"
)

// allocIommu builds an instance object from individual host pages remapped into
// the device's private address space: allocate the pages, reserve a device
// address range for them, then map each page at its slot in the range. Any
// failure rolls the earlier steps back completely. size must already be
// page-aligned.
func (i *InstMem) allocIommu(size uint64, align uint64, flags AllocFlags, outObject *Object) error {
	pageSize := uint64(1) << i.chip.PageShift
	pageCount := int(size >> i.chip.PageShift)

	pages := make([]Page, 0, pageCount)
	for pageIndex := 0; pageIndex < pageCount; pageIndex++ {
		page, err := i.pageAlloc.AllocPage()
		if err != nil {
			i.freePages(pages)
			return errors.Wrapf(AllocationFailedError, "failed to allocate backing page %d of %d: %v", pageIndex, pageCount, err)
		}
		pages = append(pages, page)
	}

	i.iommuMutex.Lock()
	area, err := i.iommuHeap.Reserve(size, align)
	i.iommuMutex.Unlock()
	if err != nil {
		i.freePages(pages)
		return errors.Wrapf(err, "failed to reserve %d bytes of device address space", size)
	}

	for pageIndex := 0; pageIndex < pageCount; pageIndex++ {
		deviceAddr := area.Offset + uint64(pageIndex)*pageSize

		err = i.iommu.Map(deviceAddr, pages[pageIndex].BusAddress())
		if err != nil {
			i.logger.Error("IOMMU mapping failure", slog.Any("error", err))

			for unmapIndex := pageIndex; unmapIndex > 0; unmapIndex-- {
				i.iommu.Unmap(area.Offset + uint64(unmapIndex-1)*pageSize)
			}

			i.releaseIommuArea(area.Handle)
			i.freePages(pages)
			return errors.Wrapf(MappingFailedError, "failed to map page %d at device address %d: %v", pageIndex, deviceAddr, err)
		}
	}

	// The device resolves addresses carrying the iommu bit through the IOMMU
	// instead of directly on the bus.
	gpuOffset := area.Offset | uint64(1)<<i.chip.IommuAddrBit

	outObject.initIommuObject(pages, area, gpuOffset, size-memutils.DebugMargin, align, flags)
	return nil
}

// freeIommu unmaps and frees an iommu object's backing pages and releases its
// device address range.
func (i *InstMem) freeIommu(obj *Object) {
	pageSize := uint64(1) << i.chip.PageShift

	for pageIndex, page := range obj.pages {
		i.iommu.Unmap(obj.area.Offset + uint64(pageIndex)*pageSize)
		page.Free()
	}
	obj.pages = nil

	i.releaseIommuArea(obj.area.Handle)
	obj.area = heap.Range{Handle: heap.NoRange}
}

func (i *InstMem) releaseIommuArea(handle heap.RangeHandle) {
	i.iommuMutex.Lock()
	err := i.iommuHeap.Release(handle)
	i.iommuMutex.Unlock()

	if err != nil {
		panic(fmt.Sprintf("failed to release device address range for handle %+v: %+v", handle, err))
	}
}

func (i *InstMem) freePages(pages []Page) {
	for _, page := range pages {
		page.Free()
	}
}
