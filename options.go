package instmem

import (
	"github.com/nvkit/instmem/internal/utils"
)

// CreateFlags exposes several options for InstMem behavior that can be applied
// at New time.
type CreateFlags int32

var createFlagsMapping = utils.NewFlagStringMapping[CreateFlags]()

func (f CreateFlags) Register(str string) {
	createFlagsMapping.Register(f, str)
}
func (f CreateFlags) String() string {
	return createFlagsMapping.FlagsToString(f)
}

const (
	// CreateExternallySynchronized ensures that this InstMem and the objects it creates will not be used
	// from multiple goroutines simultaneously, or that the consumer will be handling all synchronization
	// themselves. Allows the InstMem to skip all internal locking.
	CreateExternallySynchronized CreateFlags = 1 << iota
)

func init() {
	CreateExternallySynchronized.Register("CreateExternallySynchronized")
}

// AllocFlags exposes several options that adjust the behavior of a single Alloc
// call.
type AllocFlags int32

var allocFlagsMapping = utils.NewFlagStringMapping[AllocFlags]()

func (f AllocFlags) Register(str string) {
	allocFlagsMapping.Register(f, str)
}
func (f AllocFlags) String() string {
	return allocFlagsMapping.FlagsToString(f)
}

const (
	// AllocZeroFill zeroes every word of the object before Alloc returns it. Used
	// for objects the device will scan before the driver has written them.
	AllocZeroFill AllocFlags = 1 << iota
)

func init() {
	AllocZeroFill.Register("AllocZeroFill")
}

// CreateOptions contains optional settings for a created InstMem
type CreateOptions struct {
	// Flags indicates specific behaviors for the created InstMem
	Flags CreateFlags

	// ReservedCapacity overrides the size in bytes of the reserved region at the
	// bottom of instance memory. When 0, the size is computed from the chip
	// configuration during Boot.
	ReservedCapacity uint64
	// ChannelCount is the number of channels the reserved region is sized for.
	// When 0, a default of 32 is used.
	ChannelCount int
	// IommuCapacity overrides the size in bytes of the device address space that
	// page-backed objects are mapped into. When 0, the full span addressable
	// below the chip's IommuAddrBit is used.
	IommuCapacity uint64
}
