package heaputils

import (
	"strings"

	"golang.org/x/exp/constraints"
)

// FlagStringMapping maintains a registry of human-readable names for the individual
// bits of a flags type, so that combined flag values can be rendered for logs and
// debug output.
type FlagStringMapping[T constraints.Integer] struct {
	names map[T]string
}

// NewFlagStringMapping creates an empty mapping. Individual flag bits are added
// with Register.
func NewFlagStringMapping[T constraints.Integer]() FlagStringMapping[T] {
	return FlagStringMapping[T]{names: make(map[T]string)}
}

// Register assigns a name to a single flag bit.
func (m FlagStringMapping[T]) Register(value T, name string) {
	m.names[value] = name
}

// FlagsToString renders a combined flag value as the pipe-separated names of its
// set bits. Bits without a registered name are omitted.
func (m FlagStringMapping[T]) FlagsToString(flags T) string {
	if flags == 0 {
		return ""
	}

	var sb strings.Builder
	for bit := T(1); flags != 0 && bit != 0; bit <<= 1 {
		if flags&bit == 0 {
			continue
		}
		flags &^= bit

		name, ok := m.names[bit]
		if !ok {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteString("|")
		}
		sb.WriteString(name)
	}

	return sb.String()
}
