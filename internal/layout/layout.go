package layout

import "fmt"

// TargetChunkBytes is the chunk size DefaultChunkLen aims for.
const TargetChunkBytes = 1 << 16

// Grid describes how an array is divided into chunks.
type Grid struct {
	ChunkLen int // elements per chunk
}

// NewGrid creates a grid with the given chunk length.
func NewGrid(chunkLen int) (Grid, error) {
	if chunkLen < 1 {
		return Grid{}, fmt.Errorf("invalid chunk length %d", chunkLen)
	}
	return Grid{ChunkLen: chunkLen}, nil
}

// DefaultChunkLen returns a chunk length of about TargetChunkBytes for
// elements of the given size.
func DefaultChunkLen(elemSize int) int {
	if elemSize < 1 {
		elemSize = 1
	}
	n := TargetChunkBytes / elemSize
	if n < 1 {
		n = 1
	}
	return n
}

// NumChunks returns the number of chunks covering n elements.
func (g Grid) NumChunks(n int) int {
	if n <= 0 {
		return 0
	}
	return (n + g.ChunkLen - 1) / g.ChunkLen
}

// ChunkBytes returns the byte size of one full chunk.
func (g Grid) ChunkBytes(elemSize int) int {
	return g.ChunkLen * elemSize
}

// Span is the part of one chunk overlapping an element range.
type Span struct {
	Chunk int // chunk index
	Lo    int // first element within the chunk
	Hi    int // one past the last element within the chunk
	Pos   int // offset of Lo within the requested range
}

// Len returns the number of elements in the span.
func (s Span) Len() int {
	return s.Hi - s.Lo
}

// Full reports whether the span covers its whole chunk.
func (s Span) Full(g Grid) bool {
	return s.Lo == 0 && s.Hi == g.ChunkLen
}

// Spans returns the chunk overlaps of the element range [lo, hi).
func (g Grid) Spans(lo, hi int) []Span {
	if hi <= lo {
		return nil
	}
	first := lo / g.ChunkLen
	last := (hi - 1) / g.ChunkLen
	spans := make([]Span, 0, last-first+1)
	for c := first; c <= last; c++ {
		start := c * g.ChunkLen
		s := Span{Chunk: c, Lo: 0, Hi: g.ChunkLen}
		if lo > start {
			s.Lo = lo - start
		}
		if hi < start+g.ChunkLen {
			s.Hi = hi - start
		}
		s.Pos = start + s.Lo - lo
		spans = append(spans, s)
	}
	return spans
}

// SplitIntoChunks splits contiguous data into chunks of chunkSize bytes.
// The last chunk may be shorter.
func SplitIntoChunks(data []byte, chunkSize int) [][]byte {
	if chunkSize < 1 || len(data) == 0 {
		return nil
	}
	chunks := make([][]byte, 0, (len(data)+chunkSize-1)/chunkSize)
	for offset := 0; offset < len(data); offset += chunkSize {
		end := offset + chunkSize
		if end > len(data) {
			end = len(data)
		}
		chunks = append(chunks, data[offset:end])
	}
	return chunks
}
