package instmem

import (
	"github.com/nvkit/instmem/internal/utils"
)

// windowUnset is a cached base address that matches no real region, forcing the
// next access to repoint the window.
const windowUnset = ^uint64(0)

// windowCache drives the instance-memory window in the register aperture. The
// window exposes one window-aligned, window-sized region of instance memory at a
// time; an access outside the exposed region repoints the window first. Caching
// the current base address makes a run of accesses to the same region cost a
// single repoint.
type windowCache struct {
	mutex utils.OptionalMutex

	regs      RegisterIO
	size      uint64
	baseReg   uint32
	baseShift uint
	dataReg   uint32

	addr uint64
}

func newWindowCache(regs RegisterIO, chip ChipConfig, useMutex bool) *windowCache {
	return &windowCache{
		mutex:     utils.OptionalMutex{UseMutex: useMutex},
		regs:      regs,
		size:      chip.WindowSize,
		baseReg:   chip.WindowBaseReg,
		baseShift: chip.WindowBaseShift,
		dataReg:   chip.WindowDataReg,
		addr:      windowUnset,
	}
}

// repoint ensures the window exposes the region containing offset and returns
// offset's position within the window. The caller must hold the mutex.
func (w *windowCache) repoint(offset uint64) uint64 {
	base := offset &^ (w.size - 1)
	if base != w.addr {
		w.regs.WriteRegister(w.baseReg, uint32(base>>w.baseShift))
		w.addr = base
	}

	return offset & (w.size - 1)
}

func (w *windowCache) read32(offset uint64) uint32 {
	w.mutex.Lock()
	defer w.mutex.Unlock()

	addr := w.repoint(offset)
	return w.regs.ReadRegister(w.dataReg + uint32(addr))
}

func (w *windowCache) write32(offset uint64, value uint32) {
	w.mutex.Lock()
	defer w.mutex.Unlock()

	addr := w.repoint(offset)
	w.regs.WriteRegister(w.dataReg+uint32(addr), value)
}

// invalidate forgets the cached base address. Called when the device's register
// state may no longer match the cache, such as across a suspend or reset.
func (w *windowCache) invalidate() {
	w.mutex.Lock()
	defer w.mutex.Unlock()

	w.addr = windowUnset
}
