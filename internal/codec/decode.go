package codec

import (
	"fmt"

	"github.com/robert-malhotra/go-coltab/frame"
	"github.com/robert-malhotra/go-coltab/internal/dtype"
)

// Meta is the side metadata read alongside an array.
type Meta struct {
	// Categories is the array's categories attribute; HasCategories
	// distinguishes an empty list from a missing one.
	Categories    []string
	HasCategories bool

	// DecodeEnum turns codes into categorical columns.
	DecodeEnum bool
}

// Decode reconstructs a column of n rows from raw array bytes.
func Decode(raw []byte, n int, dt dtype.DataType, meta Meta) (frame.Column, error) {
	vals, err := dtype.Decode(dt.Storage(), raw, n)
	if err != nil {
		return nil, err
	}

	if meta.DecodeEnum && dt.Kind == dtype.KindInt && (meta.HasCategories || dt.IsEnum()) {
		cats := dt.Enum
		if meta.HasCategories {
			cats = meta.Categories
		}
		return decodeCategorical(vals, cats)
	}

	if dt.Kind == dtype.KindBytes {
		return fromLatin1(vals.([][]byte))
	}
	return wrap(vals)
}

func decodeCategorical(vals any, cats []string) (frame.Column, error) {
	c, err := dtype.Cast(CodeType, vals)
	if err != nil {
		return nil, fmt.Errorf("%w: codes: %v", ErrCorruptMetadata, err)
	}
	codes := c.([]int32)
	for i, code := range codes {
		if code < Unset || int(code) >= len(cats) {
			return nil, fmt.Errorf("%w: code %d at row %d but only %d categories", ErrCorruptMetadata, code, i, len(cats))
		}
	}
	return frame.Categorical{
		Codes:      codes,
		Categories: append([]string{}, cats...),
		Ordered:    true,
	}, nil
}

func wrap(vals any) (frame.Column, error) {
	switch v := vals.(type) {
	case []int8:
		return frame.Int8(v), nil
	case []int16:
		return frame.Int16(v), nil
	case []int32:
		return frame.Int32(v), nil
	case []int64:
		return frame.Int64(v), nil
	case []uint8:
		return frame.Uint8(v), nil
	case []uint16:
		return frame.Uint16(v), nil
	case []uint32:
		return frame.Uint32(v), nil
	case []uint64:
		return frame.Uint64(v), nil
	case []float32:
		return frame.Float32(v), nil
	case []float64:
		return frame.Float64(v), nil
	case []bool:
		return frame.Bool(v), nil
	}
	return nil, fmt.Errorf("%w: %T", ErrUnsupportedType, vals)
}
