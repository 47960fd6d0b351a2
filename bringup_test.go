package instmem_test

import (
	"os"
	"testing"

	"github.com/nvkit/instmem"
	"github.com/nvkit/instmem/memutils"
	"github.com/nvkit/instmem/memutils/heap"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/slog"
)

func bootInstMem(t *testing.T, chipset uint32, unitMask uint32, options instmem.CreateOptions) (*instmem.InstMem, *instmem.FakeRegisterIO) {
	logger := slog.New(slog.NewTextHandler(os.Stdout))
	chip := instmem.NV40Config(chipset)
	regs := instmem.NewFakeRegisterIO(chip)
	regs.Registers[chip.UnitConfigReg] = unitMask

	coherent := &instmem.FakeCoherentAllocator{NextAddress: 0x40000000}
	im, err := instmem.New(logger, instmem.Platform{Regs: regs, Coherent: coherent}, chip, options)
	require.NoError(t, err)

	return im, regs
}

func TestBootReservedCapacity(t *testing.T) {
	tests := []struct {
		name     string
		chipset  uint32
		unitMask uint32
		expected uint64
	}{
		{"nv40", 0x40, 0x0300, 0x32b000},
		{"nv41", 0x41, 0x0300, 0x2bc000},
		{"nv44", 0x44, 0x0300, 0x2a6000},
		{"nv49", 0x49, 0x0300, 0x2a9000},
		{"nv63", 0x63, 0x0300, 0x2a6000},
		{"nv40 all units", 0x40, 0xff00, 0x82a000},
		{"nv40 no units", 0x40, 0x0000, 0x180000},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			im, _ := bootInstMem(t, test.chipset, test.unitMask, instmem.CreateOptions{})

			_, err := im.Boot()
			require.NoError(t, err)

			var stats memutils.Statistics
			im.CalculateStatistics(&stats)

			require.Equal(t, memutils.Statistics{
				HeapCount:       1,
				AllocationCount: 4,
				HeapBytes:       test.expected,
				AllocationBytes: 0x40000,
			}, stats)
		})
	}
}

func TestBootChannelCountScalesReserved(t *testing.T) {
	im, _ := bootInstMem(t, 0x40, 0x0300, instmem.CreateOptions{ChannelCount: 16})

	_, err := im.Boot()
	require.NoError(t, err)

	var stats memutils.Statistics
	im.CalculateStatistics(&stats)
	require.Equal(t, uint64(0x216000), stats.HeapBytes)
}

func TestBootCapacityOverride(t *testing.T) {
	im, _ := bootInstMem(t, 0x40, 0x0300, instmem.CreateOptions{ReservedCapacity: 0x100000})

	_, err := im.Boot()
	require.NoError(t, err)

	var stats memutils.Statistics
	im.CalculateStatistics(&stats)
	require.Equal(t, uint64(0x100000), stats.HeapBytes)
}

func TestBootLayout(t *testing.T) {
	im, _ := bootInstMem(t, 0x40, 0x0300, instmem.CreateOptions{})

	layout, err := im.Boot()
	require.NoError(t, err)

	require.Equal(t, uint64(0x00000), layout.Vbios.Offset)
	require.Equal(t, uint64(0x10000), layout.Vbios.Size)
	require.Equal(t, uint64(0x18000), layout.RamRO.Offset)
	require.Equal(t, uint64(0x08000), layout.RamRO.Size)
	require.Equal(t, uint64(0x20000), layout.RamFC.Offset)
	require.Equal(t, uint64(0x20000), layout.RamFC.Size)

	// 0x8000 bytes of 8-byte slots
	require.Equal(t, 4096, layout.RamHT.SlotCount())

	statsString := im.BuildStatsString(false)
	require.Contains(t, statsString, `"ReservedSpace"`)
}

func TestBootZeroesContextArea(t *testing.T) {
	im, regs := bootInstMem(t, 0x40, 0x0300, instmem.CreateOptions{})

	regs.Memory[0x20000] = 0xdeadbeef
	regs.Memory[0x30000] = 0xfeedface
	regs.Memory[0x3fffc] = 0xbaadc0de
	regs.Memory[0x00000] = 0x56aa55aa

	_, err := im.Boot()
	require.NoError(t, err)

	require.Equal(t, uint32(0), regs.Memory[0x20000])
	require.Equal(t, uint32(0), regs.Memory[0x30000])
	require.Equal(t, uint32(0), regs.Memory[0x3fffc])

	// The vbios region is left alone
	require.Equal(t, uint32(0x56aa55aa), regs.Memory[0x00000])
}

func TestBootTwice(t *testing.T) {
	im, _ := bootInstMem(t, 0x40, 0x0300, instmem.CreateOptions{})

	_, err := im.Boot()
	require.NoError(t, err)

	_, err = im.Boot()
	require.Error(t, err)
}

func TestBootCapacityTooSmallForCarvings(t *testing.T) {
	im, _ := bootInstMem(t, 0x40, 0x0300, instmem.CreateOptions{ReservedCapacity: 0x20000})

	_, err := im.Boot()
	require.Error(t, err)
	require.ErrorIs(t, err, heap.OutOfSpaceError)

	require.NoError(t, im.Destroy())
}

func TestLayoutRelease(t *testing.T) {
	im, _ := bootInstMem(t, 0x40, 0x0300, instmem.CreateOptions{})

	layout, err := im.Boot()
	require.NoError(t, err)

	require.NoError(t, layout.Release())

	var detailed memutils.DetailedStatistics
	im.CalculateDetailedStatistics(&detailed)
	require.Equal(t, 0, detailed.AllocationCount)
	require.Equal(t, 1, detailed.UnusedRangeCount)

	require.NoError(t, im.Destroy())
}
