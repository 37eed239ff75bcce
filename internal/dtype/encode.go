package dtype

import (
	"fmt"
	"math"
	"reflect"
)

// Encode converts Go values to raw bytes for dt.
// The src parameter should be a slice of a type matching dt's kind;
// a scalar is encoded as a single element.
func Encode(dt DataType, src interface{}) ([]byte, error) {
	if !dt.Valid() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidType, dt)
	}

	srcVal := reflect.ValueOf(src)
	if srcVal.Kind() == reflect.Ptr {
		srcVal = srcVal.Elem()
	}
	srcVal = asSlice(srcVal, dt.Kind)

	switch dt.Kind {
	case KindInt, KindUint:
		return encodeFixedPoint(dt, srcVal)
	case KindFloat:
		return encodeFloatPoint(dt, srcVal)
	case KindBool:
		return encodeBool(srcVal)
	case KindBytes:
		return encodeBytes(dt, srcVal)
	default:
		return nil, fmt.Errorf("unsupported kind for encoding: %s", dt.Kind)
	}
}

// asSlice wraps a scalar in a one-element slice. A []byte destined for a
// byte string column counts as a scalar.
func asSlice(v reflect.Value, k Kind) reflect.Value {
	if v.Kind() == reflect.Slice || v.Kind() == reflect.Array {
		if !(k == KindBytes && v.Type().Elem().Kind() == reflect.Uint8) {
			return v
		}
	}
	sliceVal := reflect.MakeSlice(reflect.SliceOf(v.Type()), 1, 1)
	sliceVal.Index(0).Set(v)
	return sliceVal
}

func encodeFixedPoint(dt DataType, srcVal reflect.Value) ([]byte, error) {
	order := dt.ByteOrder()
	size := dt.Size
	n := srcVal.Len()
	data := make([]byte, n*size)

	for i := 0; i < n; i++ {
		elem := srcVal.Index(i)
		var u uint64
		switch elem.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			u = uint64(elem.Int())
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			u = elem.Uint()
		default:
			return nil, fmt.Errorf("cannot encode %v as %s", elem.Kind(), dt.Kind)
		}

		offset := i * size
		switch size {
		case 1:
			data[offset] = byte(u)
		case 2:
			order.PutUint16(data[offset:], uint16(u))
		case 4:
			order.PutUint32(data[offset:], uint32(u))
		case 8:
			order.PutUint64(data[offset:], u)
		}
	}

	return data, nil
}

func encodeFloatPoint(dt DataType, srcVal reflect.Value) ([]byte, error) {
	order := dt.ByteOrder()
	size := dt.Size
	n := srcVal.Len()
	data := make([]byte, n*size)

	for i := 0; i < n; i++ {
		elem := srcVal.Index(i)
		if elem.Kind() != reflect.Float32 && elem.Kind() != reflect.Float64 {
			return nil, fmt.Errorf("cannot encode %v as float", elem.Kind())
		}
		offset := i * size
		if size == 4 {
			order.PutUint32(data[offset:], math.Float32bits(float32(elem.Float())))
		} else {
			order.PutUint64(data[offset:], math.Float64bits(elem.Float()))
		}
	}

	return data, nil
}

func encodeBool(srcVal reflect.Value) ([]byte, error) {
	n := srcVal.Len()
	data := make([]byte, n)
	for i := 0; i < n; i++ {
		elem := srcVal.Index(i)
		if elem.Kind() != reflect.Bool {
			return nil, fmt.Errorf("cannot encode %v as bool", elem.Kind())
		}
		if elem.Bool() {
			data[i] = 1
		}
	}
	return data, nil
}

// encodeBytes packs strings or byte slices into NUL-padded fixed-width
// slots. Strings are copied byte for byte; any character set conversion
// happens before this point.
func encodeBytes(dt DataType, srcVal reflect.Value) ([]byte, error) {
	size := dt.Size
	n := srcVal.Len()
	data := make([]byte, n*size)

	for i := 0; i < n; i++ {
		elem := srcVal.Index(i)
		var b []byte
		switch {
		case elem.Kind() == reflect.String:
			b = []byte(elem.String())
		case elem.Kind() == reflect.Slice && elem.Type().Elem().Kind() == reflect.Uint8:
			b = elem.Bytes()
		default:
			return nil, fmt.Errorf("cannot encode %v as byte string", elem.Kind())
		}
		if len(b) > size {
			return nil, fmt.Errorf("%w: element %d has %d bytes, width is %d", ErrTooWide, i, len(b), size)
		}
		copy(data[i*size:], b)
	}

	return data, nil
}

// Cast converts a numeric or bool slice to a slice of dt's Go element
// type. It fails with ErrInexact when a value would change.
func Cast(dt DataType, src interface{}) (interface{}, error) {
	elemType, err := GoType(dt)
	if err != nil {
		return nil, err
	}
	if dt.Kind == KindBytes {
		return nil, fmt.Errorf("%w: cannot cast to byte string", ErrInvalidType)
	}

	srcVal := reflect.ValueOf(src)
	if srcVal.Kind() != reflect.Slice {
		srcVal = asSlice(srcVal, dt.Kind)
	}
	if srcVal.Type().Elem() == elemType {
		return srcVal.Interface(), nil
	}

	n := srcVal.Len()
	dst := reflect.MakeSlice(reflect.SliceOf(elemType), n, n)
	for i := 0; i < n; i++ {
		if err := castElem(dst.Index(i), srcVal.Index(i)); err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
	}
	return dst.Interface(), nil
}

func castElem(dst, src reflect.Value) error {
	switch src.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return castInt(dst, src.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u := src.Uint()
		if u > math.MaxInt64 {
			if dst.Kind() == reflect.Uint64 || dst.Kind() == reflect.Uint {
				dst.SetUint(u)
				return nil
			}
			if dst.Kind() == reflect.Float64 && uint64(float64(u)) == u {
				dst.SetFloat(float64(u))
				return nil
			}
			return fmt.Errorf("%w: %d", ErrInexact, u)
		}
		return castInt(dst, int64(u))
	case reflect.Float32, reflect.Float64:
		return castFloat(dst, src.Float())
	case reflect.Bool:
		if dst.Kind() == reflect.Bool {
			dst.SetBool(src.Bool())
			return nil
		}
		var v int64
		if src.Bool() {
			v = 1
		}
		return castInt(dst, v)
	}
	return fmt.Errorf("%w: %v", ErrInexact, src.Kind())
}

func castInt(dst reflect.Value, v int64) error {
	switch dst.Kind() {
	case reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if dst.OverflowInt(v) {
			return fmt.Errorf("%w: %d overflows %v", ErrInexact, v, dst.Kind())
		}
		dst.SetInt(v)
	case reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		if v < 0 || dst.OverflowUint(uint64(v)) {
			return fmt.Errorf("%w: %d overflows %v", ErrInexact, v, dst.Kind())
		}
		dst.SetUint(uint64(v))
	case reflect.Float32, reflect.Float64:
		f := float64(v)
		if dst.Kind() == reflect.Float32 {
			f = float64(float32(f))
		}
		if f != float64(v) || int64(f) != v {
			return fmt.Errorf("%w: %d as %v", ErrInexact, v, dst.Kind())
		}
		dst.SetFloat(f)
	case reflect.Bool:
		if v != 0 && v != 1 {
			return fmt.Errorf("%w: %d as bool", ErrInexact, v)
		}
		dst.SetBool(v == 1)
	default:
		return fmt.Errorf("%w: %v", ErrInexact, dst.Kind())
	}
	return nil
}

func castFloat(dst reflect.Value, f float64) error {
	switch dst.Kind() {
	case reflect.Float64:
		dst.SetFloat(f)
		return nil
	case reflect.Float32:
		if !math.IsNaN(f) && float64(float32(f)) != f {
			return fmt.Errorf("%w: %v as float32", ErrInexact, f)
		}
		dst.SetFloat(f)
		return nil
	}
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return fmt.Errorf("%w: %v as %v", ErrInexact, f, dst.Kind())
	}
	if f < math.MinInt64 || f >= math.MaxInt64 {
		if (dst.Kind() == reflect.Uint64 || dst.Kind() == reflect.Uint) && f >= 0 && f < math.MaxUint64 {
			dst.SetUint(uint64(f))
			return nil
		}
		return fmt.Errorf("%w: %v as %v", ErrInexact, f, dst.Kind())
	}
	return castInt(dst, int64(f))
}
