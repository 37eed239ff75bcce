package filter

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
)

// DefaultLevel is the DEFLATE level used when a configuration omits it.
const DefaultLevel = 6

// Zlib implements the zlib compressor.
type Zlib struct {
	level int
}

// NewZlib creates a zlib compressor with the given level (0-9).
func NewZlib(level int) (*Zlib, error) {
	if level < 0 || level > 9 {
		return nil, fmt.Errorf("zlib: invalid level %d", level)
	}
	return &Zlib{level: level}, nil
}

func (f *Zlib) ID() string {
	return IDZlib
}

func (f *Zlib) Config() Config {
	return Config{ID: IDZlib, Level: intPtr(f.level)}
}

func (f *Zlib) Encode(input []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := zlib.NewWriterLevel(&buf, f.level)
	if err != nil {
		return nil, fmt.Errorf("zlib writer: %w", err)
	}
	if _, err := w.Write(input); err != nil {
		return nil, fmt.Errorf("zlib compress: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("zlib compress: %w", err)
	}
	return buf.Bytes(), nil
}

func (f *Zlib) Decode(input []byte) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(input))
	if err != nil {
		return nil, fmt.Errorf("zlib reader: %w", err)
	}
	defer r.Close()

	output, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("zlib decompress: %w", err)
	}
	return output, nil
}

// Gzip implements the gzip compressor.
type Gzip struct {
	level int
}

// NewGzip creates a gzip compressor with the given level (0-9).
func NewGzip(level int) (*Gzip, error) {
	if level < 0 || level > 9 {
		return nil, fmt.Errorf("gzip: invalid level %d", level)
	}
	return &Gzip{level: level}, nil
}

func (f *Gzip) ID() string {
	return IDGzip
}

func (f *Gzip) Config() Config {
	return Config{ID: IDGzip, Level: intPtr(f.level)}
}

func (f *Gzip) Encode(input []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := gzip.NewWriterLevel(&buf, f.level)
	if err != nil {
		return nil, fmt.Errorf("gzip writer: %w", err)
	}
	if _, err := w.Write(input); err != nil {
		return nil, fmt.Errorf("gzip compress: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("gzip compress: %w", err)
	}
	return buf.Bytes(), nil
}

func (f *Gzip) Decode(input []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(input))
	if err != nil {
		return nil, fmt.Errorf("gzip reader: %w", err)
	}
	defer r.Close()

	output, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("gzip decompress: %w", err)
	}
	return output, nil
}
