package filter

import (
	"errors"
	"fmt"
)

var (
	ErrUnsupportedCodec = errors.New("unsupported codec")
	ErrChecksum         = errors.New("checksum mismatch")
)

// Codec ids.
const (
	IDZlib       = "zlib"
	IDGzip       = "gzip"
	IDZstd       = "zstd"
	IDLZ4        = "lz4"
	IDShuffle    = "shuffle"
	IDFletcher32 = "fletcher32"
)

// Codec is one stage of a chunk pipeline.
type Codec interface {
	// ID returns the numcodecs codec identifier.
	ID() string

	// Encode transforms decoded data to its stored form.
	Encode(input []byte) ([]byte, error)

	// Decode transforms stored data back to decoded form.
	Decode(input []byte) ([]byte, error)

	// Config returns the configuration that recreates this codec.
	Config() Config
}

// Config is the metadata form of a codec: {"id": "zlib", "level": 6}.
// Only the fields a codec understands are set.
type Config struct {
	ID           string `json:"id"`
	Level        *int   `json:"level,omitempty"`
	ElementSize  *int   `json:"elementsize,omitempty"`
	Acceleration *int   `json:"acceleration,omitempty"`
}

func intPtr(v int) *int { return &v }

func intOr(p *int, def int) int {
	if p == nil {
		return def
	}
	return *p
}

// Registry maps codec ids to constructors.
var Registry = map[string]func(Config) (Codec, error){
	IDZlib:       func(c Config) (Codec, error) { return NewZlib(intOr(c.Level, DefaultLevel)) },
	IDGzip:       func(c Config) (Codec, error) { return NewGzip(intOr(c.Level, DefaultLevel)) },
	IDZstd:       func(c Config) (Codec, error) { return NewZstd(intOr(c.Level, 3)) },
	IDLZ4:        func(c Config) (Codec, error) { return NewLZ4(intOr(c.Acceleration, 1)), nil },
	IDShuffle:    func(c Config) (Codec, error) { return NewShuffle(intOr(c.ElementSize, 1)), nil },
	IDFletcher32: func(Config) (Codec, error) { return NewFletcher32(), nil },
}

// New creates a codec from its configuration.
func New(cfg Config) (Codec, error) {
	constructor, ok := Registry[cfg.ID]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedCodec, cfg.ID)
	}
	return constructor(cfg)
}

// CompressorConfig returns the configuration of a compressor by name and
// level. An empty name or "none" yields nil.
func CompressorConfig(name string, level int) (*Config, error) {
	switch name {
	case "", "none":
		return nil, nil
	case IDZlib, IDGzip, IDZstd:
		return &Config{ID: name, Level: intPtr(level)}, nil
	case IDLZ4:
		acc := level
		if acc < 1 {
			acc = 1
		}
		return &Config{ID: name, Acceleration: intPtr(acc)}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupportedCodec, name)
}
