// Package frame is the in-memory tabular model: ordered, named,
// equal-length columns of numeric, boolean, string and categorical data.
//
// A [Column] is one of a closed set of concrete types:
//
//	Int8 Int16 Int32 Int64 Uint8 Uint16 Uint32 Uint64
//	Float32 Float64 Bool String Bytes Categorical
//
// Code that handles columns switches over these types exhaustively. [Of]
// turns ordinary Go values ([]int, []string, a single float64, ...) into a
// column.
//
// A [Frame] holds columns in insertion order and may carry a [RangeIndex]
// naming the row numbers it was read from. A [Series] is a single named
// column with the same kind of index.
//
// Frames convert to and from Apache Arrow records with [ToArrow] and
// [FromArrow]; categorical columns map to dictionary arrays.
package frame
