// Package layout maps one-dimensional arrays onto fixed-size chunks.
//
// A chunked array of length N with chunk length C is stored as
// ceil(N/C) chunks, chunk i holding elements [i*C, (i+1)*C). Reading or
// writing an element range touches only the chunks it overlaps; [Grid.Spans]
// lists them together with the slice of each chunk and of the caller's
// buffer involved.
//
// Edge chunks are always stored at full length so that a chunk's byte size
// depends only on the grid, never on the array's current length. Slots past
// the array end hold the fill value.
//
// # Key Types
//
//   - [Grid]: chunk geometry of one array
//   - [Span]: the overlap between a requested range and one chunk
package layout
