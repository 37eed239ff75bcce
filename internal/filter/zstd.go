package filter

import (
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"
)

// Zstd implements the Zstandard compressor. Encoders and decoders are
// pooled per codec instance.
type Zstd struct {
	level       int
	encoderPool sync.Pool
	decoderPool sync.Pool
}

// NewZstd creates a Zstandard compressor. Level follows the zstd CLI scale
// (1-22); klauspost/compress supports four speeds and picks the closest.
func NewZstd(level int) (*Zstd, error) {
	if level < 1 || level > 22 {
		return nil, fmt.Errorf("zstd: invalid level %d", level)
	}
	encLevel := zstd.EncoderLevelFromZstd(level)

	z := &Zstd{level: level}
	z.encoderPool.New = func() interface{} {
		enc, _ := zstd.NewWriter(nil, zstd.WithEncoderLevel(encLevel), zstd.WithEncoderConcurrency(1))
		return enc
	}
	z.decoderPool.New = func() interface{} {
		dec, _ := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
		return dec
	}
	return z, nil
}

func (f *Zstd) ID() string {
	return IDZstd
}

func (f *Zstd) Config() Config {
	return Config{ID: IDZstd, Level: intPtr(f.level)}
}

func (f *Zstd) Encode(input []byte) ([]byte, error) {
	enc := f.encoderPool.Get().(*zstd.Encoder)
	defer f.encoderPool.Put(enc)

	return enc.EncodeAll(input, nil), nil
}

func (f *Zstd) Decode(input []byte) ([]byte, error) {
	dec := f.decoderPool.Get().(*zstd.Decoder)
	defer f.decoderPool.Put(dec)

	out, err := dec.DecodeAll(input, nil)
	if err != nil {
		return nil, fmt.Errorf("zstd decompress: %w", err)
	}
	return out, nil
}
