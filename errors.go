package instmem

import "github.com/pkg/errors"

// AllocationFailedError is returned from Alloc when backing memory for an
// instance object could not be allocated
var AllocationFailedError error = errors.New("failed to allocate backing memory")

// MappingFailedError is returned from Alloc when backing pages were allocated but
// could not be mapped into the device address space
var MappingFailedError error = errors.New("failed to map backing memory into the device address space")

// UnsupportedConfigurationError is returned when a ChipConfig describes a device
// that this package cannot drive
var UnsupportedConfigurationError error = errors.New("the chip configuration is not supported")
