package alloc

import (
	"fmt"
	"sync"
)

// MinAlloc is the smallest capacity Grow allocates, in bytes.
const MinAlloc = 64

// Allocator hands out buffer capacity and tracks statistics.
// It is safe for concurrent use.
type Allocator struct {
	mu    sync.Mutex
	stats Stats
}

// Stats contains allocation statistics.
type Stats struct {
	TotalAllocations uint64 // Number of allocations made
	TotalBytesAlloc  uint64 // Total bytes allocated
	TotalBytesFree   uint64 // Total bytes released
	LargestAlloc     uint64 // Largest single allocation
}

// LiveBytes returns the bytes allocated and not yet released.
func (s Stats) LiveBytes() uint64 {
	return s.TotalBytesAlloc - s.TotalBytesFree
}

// New creates a new Allocator.
func New() *Allocator {
	return &Allocator{}
}

// Capacity returns the capacity to allocate when a buffer of capacity cur
// must hold need bytes. It doubles cur until need fits, starting from
// MinAlloc, and clamps the result to limit when limit > 0.
func Capacity(cur, need, limit int) int {
	if need <= cur {
		return cur
	}
	c := cur
	if c < MinAlloc {
		c = MinAlloc
	}
	for c < need {
		c *= 2
	}
	if limit > 0 && c > limit {
		c = limit
	}
	if c < need {
		c = need
	}
	return c
}

// Grow returns buf resized to need bytes. Bytes past the old length are
// zero. When buf lacks capacity, its contents move to a new allocation
// sized by Capacity and the old buffer is recorded as freed.
func (a *Allocator) Grow(buf []byte, need, limit int) []byte {
	if need <= cap(buf) {
		old := len(buf)
		buf = buf[:need]
		if need > old {
			clear(buf[old:])
		}
		return buf
	}

	c := Capacity(cap(buf), need, limit)
	out := make([]byte, need, c)
	copy(out, buf)

	a.mu.Lock()
	defer a.mu.Unlock()
	a.recordLocked(uint64(c))
	if cap(buf) > 0 {
		a.stats.TotalBytesFree += uint64(cap(buf))
	}
	return out
}

// Alloc returns a zeroed buffer of length n with at least that capacity.
func (a *Allocator) Alloc(n, limit int) []byte {
	return a.Grow(nil, n, limit)
}

func (a *Allocator) recordLocked(size uint64) {
	a.stats.TotalAllocations++
	a.stats.TotalBytesAlloc += size
	if size > a.stats.LargestAlloc {
		a.stats.LargestAlloc = size
	}
}

// Free records buf as released.
func (a *Allocator) Free(buf []byte) {
	if cap(buf) == 0 {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.stats.TotalBytesFree += uint64(cap(buf))
}

// Stats returns a snapshot of the allocation statistics.
func (a *Allocator) Stats() Stats {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stats
}

// Validate checks the statistics for consistency.
func (a *Allocator) Validate() error {
	s := a.Stats()
	if s.TotalBytesFree > s.TotalBytesAlloc {
		return fmt.Errorf("freed %d bytes but only allocated %d", s.TotalBytesFree, s.TotalBytesAlloc)
	}
	if s.TotalAllocations > 0 && s.LargestAlloc == 0 {
		return fmt.Errorf("%d allocations recorded with zero largest size", s.TotalAllocations)
	}
	return nil
}

// Reset clears the statistics.
func (a *Allocator) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.stats = Stats{}
}
