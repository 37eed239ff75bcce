// Package alloc manages backing buffers for in-memory growable arrays.
//
// Arrays that grow one append at a time would otherwise copy their contents
// on every resize. The [Allocator] hands out capacity in amortized doubling
// steps, never past an optional limit, and keeps statistics about the bytes
// it has allocated and released.
//
// # Usage
//
//	a := alloc.New()
//	buf = a.Grow(buf, need, limit) // len(buf) == need afterwards
//	a.Free(buf)                    // when the array is deleted
//
// Capacity handed out by Grow never shrinks: a buffer only ever moves to a
// larger allocation.
package alloc
