package filter

import (
	"encoding/binary"
	"fmt"

	binpkg "github.com/robert-malhotra/go-coltab/internal/binary"
)

// Fletcher32Filter implements the Fletcher-32 checksum filter.
// The checksum is stored as the last 4 bytes of a chunk.
type Fletcher32Filter struct{}

// NewFletcher32 creates a new Fletcher-32 filter.
func NewFletcher32() *Fletcher32Filter {
	return &Fletcher32Filter{}
}

func (f *Fletcher32Filter) ID() string {
	return IDFletcher32
}

func (f *Fletcher32Filter) Config() Config {
	return Config{ID: IDFletcher32}
}

// Encode appends the checksum to a copy of input.
func (f *Fletcher32Filter) Encode(input []byte) ([]byte, error) {
	out := make([]byte, len(input), len(input)+4)
	copy(out, input)
	return binpkg.AppendFletcher32(out), nil
}

// Decode verifies the Fletcher-32 checksum and returns the data without it.
func (f *Fletcher32Filter) Decode(input []byte) ([]byte, error) {
	if len(input) < 4 {
		return nil, fmt.Errorf("fletcher32: input too short for checksum")
	}

	data := input[:len(input)-4]
	stored := binary.LittleEndian.Uint32(input[len(input)-4:])
	computed := binpkg.Fletcher32(data)

	if stored != computed {
		return nil, fmt.Errorf("fletcher32: %w (stored=0x%08x, computed=0x%08x)",
			ErrChecksum, stored, computed)
	}

	return data, nil
}
