package frame

import (
	"bytes"
	"fmt"
	"reflect"
)

// Of converts a Go value to a Column. Columns are returned unchanged;
// slices of the basic numeric types, bool, string and []byte map to the
// matching column type ([]int and []uint become Int64 and Uint64); a single
// value becomes a one-row column.
func Of(v any) (Column, error) {
	switch x := v.(type) {
	case Column:
		return x, nil
	case []int:
		out := make(Int64, len(x))
		for i, e := range x {
			out[i] = int64(e)
		}
		return out, nil
	case []uint:
		out := make(Uint64, len(x))
		for i, e := range x {
			out[i] = uint64(e)
		}
		return out, nil
	case []int8:
		return Int8(x), nil
	case []int16:
		return Int16(x), nil
	case []int32:
		return Int32(x), nil
	case []int64:
		return Int64(x), nil
	case []uint8:
		return Bytes{x}, nil
	case []uint16:
		return Uint16(x), nil
	case []uint32:
		return Uint32(x), nil
	case []uint64:
		return Uint64(x), nil
	case []float32:
		return Float32(x), nil
	case []float64:
		return Float64(x), nil
	case []bool:
		return Bool(x), nil
	case []string:
		return String(x), nil
	case [][]byte:
		return Bytes(x), nil
	case int:
		return Int64{int64(x)}, nil
	case uint:
		return Uint64{uint64(x)}, nil
	case int8:
		return Int8{x}, nil
	case int16:
		return Int16{x}, nil
	case int32:
		return Int32{x}, nil
	case int64:
		return Int64{x}, nil
	case uint8:
		return Uint8{x}, nil
	case uint16:
		return Uint16{x}, nil
	case uint32:
		return Uint32{x}, nil
	case uint64:
		return Uint64{x}, nil
	case float32:
		return Float32{x}, nil
	case float64:
		return Float64{x}, nil
	case bool:
		return Bool{x}, nil
	case string:
		return String{x}, nil
	}
	return nil, fmt.Errorf("%w: %T", ErrUnsupportedType, v)
}

// IsScalar reports whether v is a single value that Of wraps as one row.
// A []byte is one byte-string value; use Uint8 for a numeric byte column.
func IsScalar(v any) bool {
	switch v.(type) {
	case Column:
		return false
	case []byte, int, uint, int8, int16, int32, int64, uint8, uint16, uint32, uint64,
		float32, float64, bool, string:
		return true
	}
	return false
}

// Repeat returns a column of n copies of the single row of c.
func Repeat(c Column, n int) (Column, error) {
	if c.Len() != 1 {
		return nil, fmt.Errorf("%w: repeat needs one row, have %d", ErrLengthMismatch, c.Len())
	}
	if cat, ok := c.(Categorical); ok {
		codes := make([]int32, n)
		for i := range codes {
			codes[i] = cat.Codes[0]
		}
		return Categorical{Codes: codes, Categories: cat.Categories, Ordered: cat.Ordered}, nil
	}
	src := reflect.ValueOf(c)
	out := reflect.MakeSlice(src.Type(), n, n)
	for i := 0; i < n; i++ {
		out.Index(i).Set(src.Index(0))
	}
	return out.Interface().(Column), nil
}

// Equal reports whether a and b have the same kind and values.
// Categorical columns compare codes, categories and ordering.
func Equal(a, b Column) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if a.Kind() != b.Kind() || a.Len() != b.Len() {
		return false
	}
	if ca, ok := a.(Categorical); ok {
		cb := b.(Categorical)
		return ca.Ordered == cb.Ordered &&
			equalSlices(ca.Codes, cb.Codes) &&
			equalSlices(ca.Categories, cb.Categories)
	}
	if ba, ok := a.(Bytes); ok {
		bb := b.(Bytes)
		for i := range ba {
			if !bytes.Equal(ba[i], bb[i]) {
				return false
			}
		}
		return true
	}
	for i := 0; i < a.Len(); i++ {
		if !reflect.DeepEqual(a.Value(i), b.Value(i)) {
			return false
		}
	}
	return true
}

func equalSlices[T comparable](a, b []T) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
