// Package zmeta reads and writes the JSON metadata documents of the Zarr
// version 2 storage layout.
//
// A group is a key prefix holding a ".zgroup" document. An array is a key
// prefix holding an ".zarray" document that records shape, chunking,
// element type, fill value, and the codec pipeline applied to each chunk.
// Either may carry user attributes in a ".zattrs" document.
//
// Fill values follow the Zarr conventions: integers and booleans are JSON
// literals, non-finite floats are the strings "NaN", "Infinity" and
// "-Infinity", and fixed-width byte strings are base64 encoded.
package zmeta
