package binary

import (
	"bytes"
	"testing"
)

func TestFletcher32(t *testing.T) {
	tests := []struct {
		name  string
		input []byte
		want  uint32
	}{
		{"empty", []byte{}, 0},
		{"odd length", []byte("abcde"), 0x4FF029C7},
		{"even length", []byte("abcdef"), 0x50562A2D},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Fletcher32(tt.input); got != tt.want {
				t.Errorf("Fletcher32(%q) = 0x%08x, want 0x%08x", tt.input, got, tt.want)
			}
		})
	}
}

func TestFletcher32OddLength(t *testing.T) {
	// Odd-length input is zero-padded in the low byte of the last word.
	odd := []byte{0x01, 0x02, 0x03}
	even := []byte{0x01, 0x02, 0x03, 0x00}

	if Fletcher32(odd) != Fletcher32(even) {
		t.Errorf("Fletcher32 should pad odd-length input: odd=0x%08x, even=0x%08x",
			Fletcher32(odd), Fletcher32(even))
	}
}

func TestVerifyFletcher32(t *testing.T) {
	data := []byte("test data for verification")
	checksum := Fletcher32(data)

	if !VerifyFletcher32(data, checksum) {
		t.Error("VerifyFletcher32 should return true for matching checksum")
	}
	if VerifyFletcher32(data, checksum+1) {
		t.Error("VerifyFletcher32 should return false for non-matching checksum")
	}
}

func TestAppendFletcher32(t *testing.T) {
	data := []byte("abcde")
	out := AppendFletcher32(append([]byte(nil), data...))
	if len(out) != len(data)+4 {
		t.Fatalf("expected %d bytes, got %d", len(data)+4, len(out))
	}
	if !bytes.Equal(out[len(data):], []byte{0xC7, 0x29, 0xF0, 0x4F}) {
		t.Errorf("unexpected trailer % x", out[len(data):])
	}
}

func BenchmarkFletcher32(b *testing.B) {
	data := make([]byte, 64*1024)
	b.SetBytes(int64(len(data)))
	for i := 0; i < b.N; i++ {
		Fletcher32(data)
	}
}
