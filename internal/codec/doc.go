// Package codec maps in-memory columns onto fixed-width array encodings
// and back. It performs no I/O.
//
// Encoding rules, in priority order:
//
//  1. A single value is a one-row column of its native type.
//  2. A categorical column is stored as int32 codes with fill value -1.
//     Its labels travel as the dtype's enumeration and in
//     [Encoded.Categories], unless the caller drops them.
//  3. Strings and byte strings become a NUL-padded |S<width> array,
//     width being the longest encoded value. Strings are encoded as
//     ISO-8859-1; a character outside it is an error under [Strict] and
//     becomes 0x1A under [Replace].
//  4. Numeric and boolean columns keep their native type.
//
// Decoding reverses these rules. A categories list, either from the
// array's attribute or from the dtype's enumeration, turns integer codes
// back into an ordered categorical column.
package codec
