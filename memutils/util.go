package memutils

import (
	cerrors "github.com/cockroachdb/errors"
)

// Number covers the integer types the alignment helpers accept. Instance-memory
// offsets are 64-bit quantities even on 32-bit hosts, so the allocation paths use
// the unsigned 64-bit form throughout.
type Number interface {
	~int | ~uint | ~uint32 | ~uint64
}

func CheckPow2[T Number](number T, name string) error {
	if number&(number-1) != 0 {
		return cerrors.Wrapf(PowerOfTwoError, "%s is %d", name, number)
	}
	return nil
}

// AlignUp rounds value up to the next multiple of alignment. alignment must be a
// power of two.
func AlignUp(value uint64, alignment uint64) uint64 {
	return (value + alignment - 1) &^ (alignment - 1)
}

// AlignDown rounds value down to a multiple of alignment. alignment must be a
// power of two.
func AlignDown(value uint64, alignment uint64) uint64 {
	return value &^ (alignment - 1)
}
