package codec

import (
	"errors"
	"fmt"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"

	"github.com/robert-malhotra/go-coltab/frame"
	"github.com/robert-malhotra/go-coltab/internal/dtype"
)

var (
	ErrUnsupportedType = frame.ErrUnsupportedType
	ErrCorruptMetadata = errors.New("corrupt metadata")
	ErrUnencodable     = errors.New("character not representable in ISO-8859-1")
	ErrValueTooWide    = dtype.ErrTooWide
)

// CodeType is the storage type of categorical codes.
var CodeType = dtype.Int32

// Unset is the code of a categorical row without a label.
const Unset = -1

// Charset selects how characters outside ISO-8859-1 are handled.
type Charset int

const (
	// Strict fails with ErrUnencodable.
	Strict Charset = iota
	// Replace substitutes the ASCII SUB character (0x1A).
	Replace
)

// Options control Encode.
type Options struct {
	// Coerce, if set, is the storage type values are converted to.
	Coerce *dtype.DataType

	// DropCategories writes categorical codes without their labels.
	// The labels cannot be recovered afterwards.
	DropCategories bool

	Charset Charset
}

// Encoded is a column ready to be written to an array.
type Encoded struct {
	DType dtype.DataType
	Data  []byte
	Len   int

	// Fill is the encoded fill value, or nil.
	Fill []byte

	// Categorical is set for code columns; Categories holds their labels
	// unless they were dropped.
	Categorical bool
	Categories  []string
}

// Encode converts a column, or any value frame.Of accepts, to its stored
// form.
func Encode(v any, opts Options) (*Encoded, error) {
	col, err := frame.Of(v)
	if err != nil {
		return nil, err
	}

	switch c := col.(type) {
	case frame.Categorical:
		return encodeCategorical(c, opts)
	case frame.String:
		raw, err := toLatin1(c, opts.Charset)
		if err != nil {
			return nil, err
		}
		return encodeBytes(raw, opts)
	case frame.Bytes:
		return encodeBytes(c, opts)
	}
	return encodeNumeric(col, opts)
}

func encodeCategorical(c frame.Categorical, opts Options) (*Encoded, error) {
	for i, code := range c.Codes {
		if code < Unset || int(code) >= len(c.Categories) {
			return nil, fmt.Errorf("%w: code %d at row %d outside %d categories", ErrUnsupportedType, code, i, len(c.Categories))
		}
	}

	dt := CodeType
	var codes any = c.Codes
	if opts.Coerce != nil {
		dt = opts.Coerce.Storage()
		if dt.Kind != dtype.KindInt {
			return nil, fmt.Errorf("%w: categorical codes cannot be stored as %s", ErrUnsupportedType, dt)
		}
		var err error
		if codes, err = dtype.Cast(dt, c.Codes); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnsupportedType, err)
		}
	}

	data, err := dtype.Encode(dt, codes)
	if err != nil {
		return nil, err
	}
	fill, err := dtype.Encode(dt, int64(Unset))
	if err != nil {
		return nil, err
	}

	enc := &Encoded{DType: dt, Data: data, Len: c.Len(), Fill: fill, Categorical: true}
	if !opts.DropCategories {
		enc.Categories = append([]string{}, c.Categories...)
		enc.DType = dt.WithEnum(enc.Categories)
	}
	return enc, nil
}

func encodeBytes(vals [][]byte, opts Options) (*Encoded, error) {
	width := 1
	for _, v := range vals {
		if len(v) > width {
			width = len(v)
		}
	}
	dt := dtype.FixedBytes(width)
	if opts.Coerce != nil {
		if opts.Coerce.Kind != dtype.KindBytes {
			return nil, fmt.Errorf("%w: strings cannot be stored as %s", ErrUnsupportedType, opts.Coerce)
		}
		dt = opts.Coerce.Storage()
	}

	data, err := dtype.Encode(dt, vals)
	if err != nil {
		return nil, err
	}
	return &Encoded{DType: dt, Data: data, Len: len(vals)}, nil
}

func encodeNumeric(col frame.Column, opts Options) (*Encoded, error) {
	dt, vals, err := native(col)
	if err != nil {
		return nil, err
	}
	if opts.Coerce != nil && !opts.Coerce.SameStorage(dt) {
		dt = opts.Coerce.Storage()
		if dt.Kind == dtype.KindBytes {
			return nil, fmt.Errorf("%w: %s values cannot be stored as %s", ErrUnsupportedType, col.Kind(), dt)
		}
		if vals, err = dtype.Cast(dt, vals); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnsupportedType, err)
		}
	}

	data, err := dtype.Encode(dt, vals)
	if err != nil {
		return nil, err
	}
	return &Encoded{DType: dt, Data: data, Len: col.Len()}, nil
}

// native returns the storage type and underlying slice of a numeric or
// boolean column.
func native(col frame.Column) (dtype.DataType, any, error) {
	switch c := col.(type) {
	case frame.Int8:
		return dtype.Int8, []int8(c), nil
	case frame.Int16:
		return dtype.Int16, []int16(c), nil
	case frame.Int32:
		return dtype.Int32, []int32(c), nil
	case frame.Int64:
		return dtype.Int64, []int64(c), nil
	case frame.Uint8:
		return dtype.Uint8, []uint8(c), nil
	case frame.Uint16:
		return dtype.Uint16, []uint16(c), nil
	case frame.Uint32:
		return dtype.Uint32, []uint32(c), nil
	case frame.Uint64:
		return dtype.Uint64, []uint64(c), nil
	case frame.Float32:
		return dtype.Float32, []float32(c), nil
	case frame.Float64:
		return dtype.Float64, []float64(c), nil
	case frame.Bool:
		return dtype.Bool, []bool(c), nil
	}
	return dtype.DataType{}, nil, fmt.Errorf("%w: %s", ErrUnsupportedType, col.Kind())
}

// NativeType returns the storage type Encode would choose for col without
// coercion. Strings report a width of one byte.
func NativeType(col frame.Column) (dtype.DataType, error) {
	switch col.(type) {
	case frame.Categorical:
		return CodeType, nil
	case frame.String, frame.Bytes:
		return dtype.FixedBytes(1), nil
	}
	dt, _, err := native(col)
	return dt, err
}

func toLatin1(vals []string, cs Charset) ([][]byte, error) {
	enc := charmap.ISO8859_1.NewEncoder()
	if cs == Replace {
		enc = encoding.ReplaceUnsupported(enc)
	}
	out := make([][]byte, len(vals))
	for i, s := range vals {
		b, err := enc.Bytes([]byte(s))
		if err != nil {
			return nil, fmt.Errorf("%w: row %d %q", ErrUnencodable, i, s)
		}
		out[i] = b
	}
	return out, nil
}

func fromLatin1(vals [][]byte) (frame.String, error) {
	dec := charmap.ISO8859_1.NewDecoder()
	out := make(frame.String, len(vals))
	for i, b := range vals {
		s, err := dec.Bytes(b)
		if err != nil {
			return nil, err
		}
		out[i] = string(s)
	}
	return out, nil
}
