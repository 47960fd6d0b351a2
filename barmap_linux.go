//go:build linux

package instmem

import (
	"os"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// BARMapper maps pages of a PCI BAR resource file, exposing the device
// aperture to a MappedWindow. The path is typically one of the resourceN files
// under the device's sysfs node.
type BARMapper struct {
	file     *os.File
	pageSize uint64
}

var _ WindowMapper = &BARMapper{}

// OpenBARMapper opens the BAR resource file at path for mapping.
func OpenBARMapper(path string) (*BARMapper, error) {
	file, err := os.OpenFile(path, os.O_RDWR|os.O_SYNC, 0)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open the aperture resource %s", path)
	}

	return &BARMapper{
		file:     file,
		pageSize: uint64(os.Getpagesize()),
	}, nil
}

func (m *BARMapper) PageSize() uint64 {
	return m.pageSize
}

func (m *BARMapper) Map(offset uint64) ([]byte, error) {
	page, err := unix.Mmap(int(m.file.Fd()), int64(offset), int(m.pageSize),
		unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to map the aperture page at %#x", offset)
	}

	return page, nil
}

func (m *BARMapper) Unmap(page []byte) error {
	return unix.Munmap(page)
}

// Close closes the underlying resource file. Pages already mapped stay valid
// until they are unmapped.
func (m *BARMapper) Close() error {
	return m.file.Close()
}
