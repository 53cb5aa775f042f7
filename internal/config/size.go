package config

import (
	"fmt"
	"math"

	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"
)

// ByteSize is a byte count that accepts humanized values such as "64KiB",
// "1MB" or a bare integer. It implements pflag.Value.
type ByteSize int64

// String renders the size in IEC units.
func (s ByteSize) String() string {
	return humanize.IBytes(uint64(s))
}

// Int returns the size as an int.
func (s ByteSize) Int() int {
	return int(s)
}

// Set parses a humanized size.
func (s *ByteSize) Set(v string) error {
	n, err := humanize.ParseBytes(v)
	if err != nil {
		return fmt.Errorf("invalid size %q: %w", v, err)
	}
	if n > math.MaxInt32 {
		return fmt.Errorf("size %q exceeds %s", v, humanize.IBytes(math.MaxInt32))
	}
	*s = ByteSize(n)
	return nil
}

// Type names the flag value type in usage output.
func (s *ByteSize) Type() string {
	return "size"
}

// UnmarshalYAML accepts both integer and string scalars.
func (s *ByteSize) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: size must be a scalar", node.Line)
	}
	if err := s.Set(node.Value); err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	return nil
}

// MarshalYAML writes the humanized form so a dumped config round trips.
func (s ByteSize) MarshalYAML() (any, error) {
	return s.String(), nil
}
