package filter

import (
	"bytes"
	"errors"
	"testing"
)

func sampleData() []byte {
	var buf bytes.Buffer
	for i := 0; i < 512; i++ {
		buf.Write([]byte{byte(i), 0, 0, 0, byte(i % 7), 0, 0, 0})
	}
	return buf.Bytes()
}

func TestCodecRoundtrip(t *testing.T) {
	original := sampleData()

	tests := []Config{
		{ID: IDZlib, Level: intPtr(6)},
		{ID: IDGzip, Level: intPtr(1)},
		{ID: IDZstd, Level: intPtr(3)},
		{ID: IDLZ4, Acceleration: intPtr(1)},
		{ID: IDShuffle, ElementSize: intPtr(8)},
		{ID: IDFletcher32},
	}

	for _, cfg := range tests {
		t.Run(cfg.ID, func(t *testing.T) {
			c, err := New(cfg)
			if err != nil {
				t.Fatalf("New failed: %v", err)
			}
			if c.ID() != cfg.ID {
				t.Errorf("expected ID %q, got %q", cfg.ID, c.ID())
			}
			encoded, err := c.Encode(original)
			if err != nil {
				t.Fatalf("Encode failed: %v", err)
			}
			decoded, err := c.Decode(encoded)
			if err != nil {
				t.Fatalf("Decode failed: %v", err)
			}
			if !bytes.Equal(decoded, original) {
				t.Errorf("roundtrip mismatch: got %d bytes, want %d", len(decoded), len(original))
			}
		})
	}
}

func TestShuffleUnshuffle(t *testing.T) {
	// Original: [A0 A1 A2 A3] [B0 B1 B2 B3] [C0 C1 C2 C3] [D0 D1 D2 D3]
	// Shuffled: [A0 B0 C0 D0] [A1 B1 C1 D1] [A2 B2 C2 D2] [A3 B3 C3 D3]
	original := []byte{
		0x01, 0x02, 0x03, 0x04,
		0x11, 0x12, 0x13, 0x14,
		0x21, 0x22, 0x23, 0x24,
		0x31, 0x32, 0x33, 0x34,
	}
	shuffled := []byte{
		0x01, 0x11, 0x21, 0x31,
		0x02, 0x12, 0x22, 0x32,
		0x03, 0x13, 0x23, 0x33,
		0x04, 0x14, 0x24, 0x34,
	}

	f := NewShuffle(4)
	got, err := f.Encode(original)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if !bytes.Equal(got, shuffled) {
		t.Errorf("shuffle mismatch:\ngot:  %x\nwant: %x", got, shuffled)
	}

	back, err := f.Decode(shuffled)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if !bytes.Equal(back, original) {
		t.Errorf("unshuffle mismatch:\ngot:  %x\nwant: %x", back, original)
	}
}

func TestShuffleTrailingBytes(t *testing.T) {
	f := NewShuffle(2)
	in := []byte{1, 2, 3, 4, 5}
	enc, err := f.Encode(in)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if enc[4] != 5 {
		t.Errorf("trailing byte moved: %v", enc)
	}
	dec, _ := f.Decode(enc)
	if !bytes.Equal(dec, in) {
		t.Errorf("got %v, want %v", dec, in)
	}
}

func TestShuffleSingleByte(t *testing.T) {
	f := NewShuffle(1)
	in := []byte{1, 2, 3}
	out, err := f.Encode(in)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if !bytes.Equal(out, in) {
		t.Errorf("single-byte shuffle should be identity")
	}
}

func TestFletcher32Corruption(t *testing.T) {
	f := NewFletcher32()
	enc, err := f.Encode([]byte("some chunk data"))
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	enc[0] ^= 0xFF
	if _, err := f.Decode(enc); !errors.Is(err, ErrChecksum) {
		t.Errorf("expected ErrChecksum, got %v", err)
	}
	if _, err := f.Decode([]byte{1, 2}); err == nil {
		t.Error("expected error for short input")
	}
}

func TestLZ4Header(t *testing.T) {
	f := NewLZ4(1)
	in := []byte("abcabcabcabcabcabcabcabc")
	enc, err := f.Encode(in)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if enc[0] != byte(len(in)) || enc[1] != 0 {
		t.Errorf("expected size header %d, got % x", len(in), enc[:4])
	}
}

func TestLZ4Literal(t *testing.T) {
	for _, n := range []int{0, 3, 15, 300} {
		src := make([]byte, n)
		for i := range src {
			src[i] = byte(i * 31)
		}
		block := appendLiteralBlock([]byte{byte(n), byte(n >> 8), 0, 0}, src)
		got, err := NewLZ4(1).Decode(block)
		if err != nil {
			t.Fatalf("n=%d: Decode failed: %v", n, err)
		}
		if !bytes.Equal(got, src) {
			t.Errorf("n=%d: literal block mismatch", n)
		}
	}
}

func TestUnsupportedCodec(t *testing.T) {
	if _, err := New(Config{ID: "blosc"}); !errors.Is(err, ErrUnsupportedCodec) {
		t.Errorf("expected ErrUnsupportedCodec, got %v", err)
	}
	if _, err := NewZlib(12); err == nil {
		t.Error("expected error for level 12")
	}
}

func TestPipelineOrder(t *testing.T) {
	p, err := NewPipeline(
		[]Config{{ID: IDShuffle, ElementSize: intPtr(8)}, {ID: IDFletcher32}},
		&Config{ID: IDZlib, Level: intPtr(6)},
	)
	if err != nil {
		t.Fatalf("NewPipeline failed: %v", err)
	}
	if p.Len() != 3 || p.Empty() {
		t.Errorf("expected 3 stages, got %d", p.Len())
	}

	original := sampleData()
	stored, err := p.Encode(original)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if len(stored) >= len(original) {
		t.Errorf("expected compression, got %d >= %d", len(stored), len(original))
	}

	back, err := p.Decode(stored)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if !bytes.Equal(back, original) {
		t.Error("pipeline roundtrip mismatch")
	}

	if got := p.Compressor(); got == nil || got.ID != IDZlib || *got.Level != 6 {
		t.Errorf("unexpected compressor config %+v", got)
	}
	if fs := p.Filters(); len(fs) != 2 || fs[0].ID != IDShuffle || *fs[0].ElementSize != 8 {
		t.Errorf("unexpected filters %+v", fs)
	}
}

func TestEmptyPipeline(t *testing.T) {
	p, err := NewPipeline(nil, nil)
	if err != nil {
		t.Fatalf("NewPipeline failed: %v", err)
	}
	if !p.Empty() {
		t.Error("expected empty pipeline")
	}
	in := []byte{1, 2, 3}
	out, _ := p.Encode(in)
	if !bytes.Equal(out, in) {
		t.Error("empty pipeline should pass data through")
	}
}

func TestCompressorConfig(t *testing.T) {
	cfg, err := CompressorConfig("none", 0)
	if err != nil || cfg != nil {
		t.Errorf("expected nil config, got %+v, %v", cfg, err)
	}
	cfg, err = CompressorConfig(IDZstd, 5)
	if err != nil || cfg.ID != IDZstd || *cfg.Level != 5 {
		t.Errorf("unexpected config %+v, %v", cfg, err)
	}
	cfg, err = CompressorConfig(IDLZ4, 0)
	if err != nil || cfg.Level != nil || *cfg.Acceleration != 1 {
		t.Errorf("unexpected config %+v, %v", cfg, err)
	}
	if _, err := CompressorConfig("snappy", 1); !errors.Is(err, ErrUnsupportedCodec) {
		t.Errorf("expected ErrUnsupportedCodec, got %v", err)
	}
}
