package instmem

import (
	"encoding/binary"

	"github.com/nvkit/instmem/internal/utils"
	"github.com/nvkit/instmem/memutils"
	"github.com/pkg/errors"
)

// WindowMapper maps pages of the device aperture into the process. Map is
// called with a page-aligned byte offset into the aperture and returns a slice
// exactly one page long, which stays valid until it is passed to Unmap.
type WindowMapper interface {
	PageSize() uint64
	Map(offset uint64) ([]byte, error)
	Unmap(page []byte) error
}

// MappedWindow provides word access to instance memory over a memory-mapped
// aperture instead of register IO. It keeps a single page of the aperture
// mapped and remaps whenever an access lands outside it, so sequential accesses
// within a page cost nothing beyond the load or store.
type MappedWindow struct {
	mutex utils.OptionalMutex

	mapper   WindowMapper
	pageSize uint64

	base uint64
	page []byte
}

// NewMappedWindow builds a window over the given aperture mapper. Only the
// chipset families with a fixed aperture layout can be driven this way; for
// anything newer than Maxwell the aperture moved and the caller gets
// UnsupportedConfigurationError.
func NewMappedWindow(mapper WindowMapper, family ChipFamily, externallySynchronized bool) (*MappedWindow, error) {
	if mapper == nil {
		return nil, errors.New("a WindowMapper is required")
	}

	if family < FamilyCurie || family > FamilyMaxwell {
		return nil, errors.Wrapf(UnsupportedConfigurationError, "family %s has no mappable instance-memory aperture", family)
	}

	pageSize := mapper.PageSize()
	err := memutils.CheckPow2(pageSize, "mapper.PageSize()")
	if err != nil {
		return nil, err
	}

	return &MappedWindow{
		mutex:    utils.OptionalMutex{UseMutex: !externallySynchronized},
		mapper:   mapper,
		pageSize: pageSize,
		base:     windowUnset,
	}, nil
}

// repoint makes sure the page containing offset is mapped and returns the
// page-relative address of the word.
func (w *MappedWindow) repoint(offset uint64) (uint64, error) {
	base := offset &^ (w.pageSize - 1)
	if w.page == nil || base != w.base {
		if w.page != nil {
			err := w.mapper.Unmap(w.page)
			if err != nil {
				return 0, errors.Wrapf(err, "failed to unmap the aperture page at %#x", w.base)
			}

			w.page = nil
			w.base = windowUnset
		}

		page, err := w.mapper.Map(base)
		if err != nil {
			return 0, err
		}

		w.page = page
		w.base = base
	}

	return offset & (w.pageSize - 1), nil
}

// Read32 reads the naturally aligned 32-bit word at the given byte offset into
// instance memory.
func (w *MappedWindow) Read32(offset uint64) (uint32, error) {
	w.mutex.Lock()
	defer w.mutex.Unlock()

	addr, err := w.repoint(offset)
	if err != nil {
		return 0, err
	}

	return binary.LittleEndian.Uint32(w.page[addr : addr+4]), nil
}

// Write32 writes the naturally aligned 32-bit word at the given byte offset
// into instance memory.
func (w *MappedWindow) Write32(offset uint64, value uint32) error {
	w.mutex.Lock()
	defer w.mutex.Unlock()

	addr, err := w.repoint(offset)
	if err != nil {
		return err
	}

	binary.LittleEndian.PutUint32(w.page[addr:addr+4], value)
	return nil
}

// Close unmaps whatever page is currently mapped. The window can be used again
// afterwards; the next access simply remaps.
func (w *MappedWindow) Close() error {
	w.mutex.Lock()
	defer w.mutex.Unlock()

	if w.page == nil {
		return nil
	}

	err := w.mapper.Unmap(w.page)
	w.page = nil
	w.base = windowUnset

	return err
}
