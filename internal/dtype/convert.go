package dtype

import (
	"bytes"
	"fmt"
	"math"
)

// Decode converts raw bytes holding n elements of dt into a typed slice:
// []int8 through []uint64, []float32, []float64, []bool or [][]byte.
// Byte strings have their trailing NUL padding removed.
func Decode(dt DataType, data []byte, n int) (interface{}, error) {
	if !dt.Valid() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidType, dt)
	}
	if n < 0 {
		return nil, fmt.Errorf("negative element count %d", n)
	}
	needed := dt.DataSize(n)
	if needed > len(data) {
		return nil, fmt.Errorf("not enough data: need %d bytes, have %d", needed, len(data))
	}

	order := dt.ByteOrder()
	switch dt.Kind {
	case KindInt:
		switch dt.Size {
		case 1:
			return decodeWith(data, n, 1, func(b []byte) int8 { return int8(b[0]) }), nil
		case 2:
			return decodeWith(data, n, 2, func(b []byte) int16 { return int16(order.Uint16(b)) }), nil
		case 4:
			return decodeWith(data, n, 4, func(b []byte) int32 { return int32(order.Uint32(b)) }), nil
		case 8:
			return decodeWith(data, n, 8, func(b []byte) int64 { return int64(order.Uint64(b)) }), nil
		}
	case KindUint:
		switch dt.Size {
		case 1:
			out := make([]uint8, n)
			copy(out, data)
			return out, nil
		case 2:
			return decodeWith(data, n, 2, order.Uint16), nil
		case 4:
			return decodeWith(data, n, 4, order.Uint32), nil
		case 8:
			return decodeWith(data, n, 8, order.Uint64), nil
		}
	case KindFloat:
		if dt.Size == 4 {
			return decodeWith(data, n, 4, func(b []byte) float32 { return math.Float32frombits(order.Uint32(b)) }), nil
		}
		return decodeWith(data, n, 8, func(b []byte) float64 { return math.Float64frombits(order.Uint64(b)) }), nil
	case KindBool:
		return decodeWith(data, n, 1, func(b []byte) bool { return b[0] != 0 }), nil
	case KindBytes:
		return decodeWith(data, n, dt.Size, func(b []byte) []byte {
			b = bytes.TrimRight(b, "\x00")
			out := make([]byte, len(b))
			copy(out, b)
			return out
		}), nil
	}
	return nil, fmt.Errorf("%w: %s", ErrInvalidType, dt)
}

func decodeWith[T any](data []byte, n, size int, get func([]byte) T) []T {
	out := make([]T, n)
	for i := range out {
		off := i * size
		out[i] = get(data[off : off+size])
	}
	return out
}
