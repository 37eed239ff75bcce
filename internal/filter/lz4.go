package filter

import (
	"encoding/binary"
	"fmt"

	"github.com/pierrec/lz4/v4"
)

// LZ4 implements the numcodecs lz4 compressor: a 4-byte little-endian
// uncompressed size followed by one LZ4 block.
type LZ4 struct {
	acceleration int
}

// NewLZ4 creates an LZ4 compressor. The acceleration factor is recorded
// in metadata; the block compressor itself runs at a single speed.
func NewLZ4(acceleration int) *LZ4 {
	if acceleration < 1 {
		acceleration = 1
	}
	return &LZ4{acceleration: acceleration}
}

func (f *LZ4) ID() string {
	return IDLZ4
}

func (f *LZ4) Config() Config {
	return Config{ID: IDLZ4, Acceleration: intPtr(f.acceleration)}
}

func (f *LZ4) Encode(input []byte) ([]byte, error) {
	out := make([]byte, 4+lz4.CompressBlockBound(len(input)))
	binary.LittleEndian.PutUint32(out, uint32(len(input)))

	var c lz4.Compressor
	n, err := c.CompressBlock(input, out[4:])
	if err != nil {
		return nil, fmt.Errorf("lz4 compress: %w", err)
	}
	if n == 0 {
		// Incompressible input: emit a literal-only block.
		return appendLiteralBlock(out[:4], input), nil
	}
	return out[:4+n], nil
}

func (f *LZ4) Decode(input []byte) ([]byte, error) {
	if len(input) < 4 {
		return nil, fmt.Errorf("lz4: input too short for size header")
	}
	size := binary.LittleEndian.Uint32(input)
	out := make([]byte, size)
	if size == 0 {
		return out, nil
	}
	n, err := lz4.UncompressBlock(input[4:], out)
	if err != nil {
		return nil, fmt.Errorf("lz4 decompress: %w", err)
	}
	if n != int(size) {
		return nil, fmt.Errorf("lz4 decompress: got %d bytes, header says %d", n, size)
	}
	return out, nil
}

// appendLiteralBlock appends an LZ4 block holding src as a single literal run.
func appendLiteralBlock(dst, src []byte) []byte {
	n := len(src)
	if n < 15 {
		dst = append(dst, byte(n<<4))
	} else {
		dst = append(dst, 0xF0)
		rest := n - 15
		for rest >= 255 {
			dst = append(dst, 255)
			rest -= 255
		}
		dst = append(dst, byte(rest))
	}
	return append(dst, src...)
}
