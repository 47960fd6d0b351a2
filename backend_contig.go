package instmem

import (
	"github.com/cockroachdb/errors"
	"github.com/nvkit/instmem/memutils"
	"golang.org/x/exp/slog"
)

// allocContiguous builds an instance object from a single physically contiguous
// span of coherent memory. The span's bus address doubles as the object's
// device address, so no device address space bookkeeping is involved. size must
// already be page-aligned.
func (i *InstMem) allocContiguous(size uint64, align uint64, flags AllocFlags, outObject *Object) error {
	mem, err := i.coherent.AllocCoherent(size)
	if err != nil {
		return errors.Wrapf(AllocationFailedError, "failed to allocate %d contiguous bytes: %v", size, err)
	}

	// The allocator cannot steer the span's placement, so a missed alignment is
	// reported rather than failed.
	if align > 1 && mem.BusAddress()&(align-1) != 0 {
		i.logger.Warn("memory not aligned as requested",
			slog.Uint64("Address", mem.BusAddress()),
			slog.Uint64("Alignment", align))
	}

	outObject.initContiguousObject(mem, size-memutils.DebugMargin, align, flags)
	return nil
}

// freeContiguous returns a contiguous object's backing span to the host.
func (i *InstMem) freeContiguous(obj *Object) {
	obj.mem.Free()
	obj.mem = nil
}
