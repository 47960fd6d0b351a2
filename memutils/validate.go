package memutils

// Validatable is used by the DebugValidate method to allow it to act upon
// all types with a Validate method
type Validatable interface {
	Validate() error
}

// Accessor32 represents backing storage that can be read and written in naturally
// aligned 32-bit words, which is the only access width instance memory supports.
// Offsets are relative to the start of the accessor's own storage.
type Accessor32 interface {
	Read32(offset uint64) uint32
	Write32(offset uint64, value uint32)
}
