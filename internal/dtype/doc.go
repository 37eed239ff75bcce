// Package dtype describes the fixed-width element types an array store
// understands and converts between raw array bytes and Go slices.
//
// A [DataType] is spelled the way Zarr v2 and NumPy spell array-protocol
// type strings:
//
//	Kind   | Go slice   | Type string
//	-------|------------|-------------------------
//	int    | []intN     | <i1 <i2 <i4 <i8 (|i1)
//	uint   | []uintN    | <u1 <u2 <u4 <u8 (|u1)
//	float  | []floatN   | <f4 <f8
//	bool   | []bool     | |b1
//	bytes  | [][]byte   | |S<width>
//
// Byte strings are fixed width and NUL padded. Trailing NULs are stripped
// on decode, so a value ending in NUL does not round trip.
//
// An integer type may carry an enumeration: the labels of a categorical
// column indexed by code. The enumeration is metadata only and does not
// change the storage layout.
//
// # Reading Data
//
// Use [Decode] to turn raw bytes into a typed slice:
//
//	vals, err := dtype.Decode(dt, raw, n)
//	ints := vals.([]int64)
//
// # Writing Data
//
// Use [Encode] to pack a slice, and [Cast] first when the slice's element
// type differs from the target type:
//
//	vals, err := dtype.Cast(dtype.Int32, []int64{1, 2, 3})
//	raw, err := dtype.Encode(dtype.Int32, vals)
//
// [Cast] refuses any conversion that loses information.
package dtype
