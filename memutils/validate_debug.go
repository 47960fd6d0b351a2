//go:build debug_mem_utils

package memutils

const (
	// DebugMargin is the number of bytes of debug data that should be placed after allocations in heaps managed
	// by memutils
	DebugMargin uint64 = 16
	// corruptionDetectionMagicValue is a 4-byte pattern that should be copied into debug data placed after
	// allocations in heaps managed by memutils
	corruptionDetectionMagicValue uint32 = 0x7F84E666
)

// WriteMagicValue writes an easy-to-identify marker across DebugMargin bytes at the provided offset.
// This method no-ops unless the debug_mem_utils build tag is present.
func WriteMagicValue(mem Accessor32, offset uint64) {
	for written := uint64(0); written < DebugMargin; written += 4 {
		mem.Write32(offset+written, corruptionDetectionMagicValue)
	}
}

// ValidateMagicValue verifies that the easy-to-identify marker written by WriteMagicValue is still present.
// It returns true if the value is still present and false otherwise.
// This method no-ops unless the debug_mem_utils build tag is present.
func ValidateMagicValue(mem Accessor32, offset uint64) bool {
	for read := uint64(0); read < DebugMargin; read += 4 {
		if mem.Read32(offset+read) != corruptionDetectionMagicValue {
			return false
		}
	}

	return true
}

// DebugValidate will call Validate on the provided object and panics if any errors are returned. This
// method no-ops unless the debug_mem_utils build tag is present
func DebugValidate(validatable Validatable) {
	err := validatable.Validate()
	if err != nil {
		panic(err)
	}
}

// DebugCheckPow2 will verify that the numerical value passed in is a power of two, and panics if it is not.
// This method no-ops unless the debug_mem_utils build tag is present.
func DebugCheckPow2[T Number](value T, name string) {
	err := CheckPow2[T](value, name)
	if err != nil {
		panic(err)
	}
}
