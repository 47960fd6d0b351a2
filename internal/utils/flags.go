package utils

import "strings"

// FlagStringMapping maintains a registry of names for individual flag bits and
// renders combined flag values as pipe-delimited strings.
type FlagStringMapping[T ~int32] struct {
	mapping map[T]string
}

func NewFlagStringMapping[T ~int32]() FlagStringMapping[T] {
	return FlagStringMapping[T]{mapping: make(map[T]string)}
}

// Register assigns a name to a single flag bit.
func (m FlagStringMapping[T]) Register(flag T, name string) {
	m.mapping[flag] = name
}

// FlagsToString renders every registered bit present in flags, joined with '|'.
// Unregistered bits are omitted.
func (m FlagStringMapping[T]) FlagsToString(flags T) string {
	if flags == 0 {
		return ""
	}

	var sb strings.Builder
	for i := 0; i < 32; i++ {
		bit := T(1) << i
		if flags&bit == 0 {
			continue
		}

		name, ok := m.mapping[bit]
		if !ok {
			continue
		}

		if sb.Len() > 0 {
			sb.WriteRune('|')
		}
		sb.WriteString(name)
	}

	return sb.String()
}
