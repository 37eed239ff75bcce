// Package filter implements the chunk codec pipeline of an array.
//
// Codecs are identified by numcodecs ids so that chunks written here can be
// read by any Zarr v2 implementation, and vice versa. When writing, filters
// run in declaration order and the compressor runs last; reading undoes the
// compressor first and then the filters in reverse order.
//
// # Supported Codecs
//
//   - zlib, gzip: DEFLATE via github.com/klauspost/compress. Level 0-9.
//
//   - zstd: Zstandard via github.com/klauspost/compress/zstd. Level 1-22
//     is mapped to the nearest encoder speed.
//
//   - lz4: LZ4 block format via github.com/pierrec/lz4/v4, prefixed with
//     the little-endian uncompressed size as numcodecs does.
//
//   - shuffle: byte shuffling via [Shuffle]. Groups byte i of every element
//     together, which helps the compressor on numeric columns.
//
//   - fletcher32: appends a 4-byte checksum via [Fletcher32Filter] and
//     verifies it on read.
//
// # Pipeline
//
// A [Pipeline] is built from codec configurations as they appear in
// array metadata:
//
//	p, err := filter.NewPipeline(filters, compressor)
//	stored, err := p.Encode(chunk)
//	chunk, err = p.Decode(stored)
package filter
