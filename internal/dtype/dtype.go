package dtype

import (
	"encoding/binary"
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

// Kind is the storage class of an element.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindInt
	KindUint
	KindFloat
	KindBool
	KindBytes
)

var kindNames = map[Kind]string{
	KindInvalid: "invalid",
	KindInt:     "int",
	KindUint:    "uint",
	KindFloat:   "float",
	KindBool:    "bool",
	KindBytes:   "bytes",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

var (
	ErrInvalidType = errors.New("invalid data type")
	ErrTooWide     = errors.New("value wider than fixed width")
	ErrInexact     = errors.New("value not representable in target type")
)

// DataType is a fixed-width element type.
type DataType struct {
	Kind      Kind
	Size      int
	BigEndian bool

	// Enum holds the labels of a categorical column indexed by code.
	// Only meaningful for KindInt.
	Enum []string
}

// Common types. All multi-byte types are little-endian.
var (
	Int8    = DataType{Kind: KindInt, Size: 1}
	Int16   = DataType{Kind: KindInt, Size: 2}
	Int32   = DataType{Kind: KindInt, Size: 4}
	Int64   = DataType{Kind: KindInt, Size: 8}
	Uint8   = DataType{Kind: KindUint, Size: 1}
	Uint16  = DataType{Kind: KindUint, Size: 2}
	Uint32  = DataType{Kind: KindUint, Size: 4}
	Uint64  = DataType{Kind: KindUint, Size: 8}
	Float32 = DataType{Kind: KindFloat, Size: 4}
	Float64 = DataType{Kind: KindFloat, Size: 8}
	Bool    = DataType{Kind: KindBool, Size: 1}
)

// FixedBytes returns a NUL-padded byte string type of the given width.
func FixedBytes(width int) DataType {
	if width < 1 {
		width = 1
	}
	return DataType{Kind: KindBytes, Size: width}
}

// WithEnum returns a copy of dt tagged with the given labels.
func (dt DataType) WithEnum(labels []string) DataType {
	dt.Enum = append([]string(nil), labels...)
	return dt
}

// IsEnum reports whether dt carries an enumeration.
func (dt DataType) IsEnum() bool {
	return dt.Kind == KindInt && len(dt.Enum) > 0
}

// Storage returns dt without its enumeration.
func (dt DataType) Storage() DataType {
	dt.Enum = nil
	return dt
}

// SameStorage reports whether a and b share a byte layout.
func (dt DataType) SameStorage(o DataType) bool {
	return dt.Kind == o.Kind && dt.Size == o.Size && (dt.Size == 1 || dt.BigEndian == o.BigEndian)
}

// ElementSize returns the size of a single element in bytes.
func (dt DataType) ElementSize() int {
	return dt.Size
}

// ByteOrder returns the binary.ByteOrder of multi-byte elements.
func (dt DataType) ByteOrder() binary.ByteOrder {
	if dt.BigEndian {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

// Valid reports whether dt names a supported type.
func (dt DataType) Valid() bool {
	switch dt.Kind {
	case KindInt, KindUint:
		return dt.Size == 1 || dt.Size == 2 || dt.Size == 4 || dt.Size == 8
	case KindFloat:
		return dt.Size == 4 || dt.Size == 8
	case KindBool:
		return dt.Size == 1
	case KindBytes:
		return dt.Size >= 1
	}
	return false
}

// String returns the array-protocol type string, e.g. "<i8" or "|S16".
func (dt DataType) String() string {
	var order byte = '<'
	if dt.BigEndian {
		order = '>'
	}
	if dt.Size == 1 || dt.Kind == KindBool || dt.Kind == KindBytes {
		order = '|'
	}
	var code byte
	switch dt.Kind {
	case KindInt:
		code = 'i'
	case KindUint:
		code = 'u'
	case KindFloat:
		code = 'f'
	case KindBool:
		code = 'b'
	case KindBytes:
		code = 'S'
	default:
		return "invalid"
	}
	return string([]byte{order, code}) + strconv.Itoa(dt.Size)
}

var names = map[string]DataType{
	"int8":    Int8,
	"int16":   Int16,
	"int32":   Int32,
	"int64":   Int64,
	"int":     Int64,
	"uint8":   Uint8,
	"uint16":  Uint16,
	"uint32":  Uint32,
	"uint64":  Uint64,
	"uint":    Uint64,
	"float32": Float32,
	"float64": Float64,
	"float":   Float64,
	"bool":    Bool,
}

// Parse accepts an array-protocol type string ("<i8", "|b1", "|S5"),
// a Go-style name ("int32", "float64", "bool") or "S<width>".
func Parse(s string) (DataType, error) {
	s = strings.TrimSpace(s)
	if dt, ok := names[strings.ToLower(s)]; ok {
		return dt, nil
	}
	if len(s) > 1 && s[0] == 'S' {
		w, err := strconv.Atoi(s[1:])
		if err != nil || w < 1 {
			return DataType{}, fmt.Errorf("%w: %q", ErrInvalidType, s)
		}
		return FixedBytes(w), nil
	}
	if len(s) < 3 {
		return DataType{}, fmt.Errorf("%w: %q", ErrInvalidType, s)
	}

	var dt DataType
	switch s[0] {
	case '<', '|', '=':
	case '>':
		dt.BigEndian = true
	default:
		return DataType{}, fmt.Errorf("%w: %q", ErrInvalidType, s)
	}
	switch s[1] {
	case 'i':
		dt.Kind = KindInt
	case 'u':
		dt.Kind = KindUint
	case 'f':
		dt.Kind = KindFloat
	case 'b':
		dt.Kind = KindBool
	case 'S':
		dt.Kind = KindBytes
	default:
		return DataType{}, fmt.Errorf("%w: %q", ErrInvalidType, s)
	}
	size, err := strconv.Atoi(s[2:])
	if err != nil {
		return DataType{}, fmt.Errorf("%w: %q", ErrInvalidType, s)
	}
	dt.Size = size
	if dt.Size == 1 {
		dt.BigEndian = false
	}
	if !dt.Valid() {
		return DataType{}, fmt.Errorf("%w: %q", ErrInvalidType, s)
	}
	return dt, nil
}

// GoType returns the Go element type that Decode produces for dt.
func GoType(dt DataType) (reflect.Type, error) {
	switch dt.Kind {
	case KindInt:
		switch dt.Size {
		case 1:
			return reflect.TypeOf(int8(0)), nil
		case 2:
			return reflect.TypeOf(int16(0)), nil
		case 4:
			return reflect.TypeOf(int32(0)), nil
		case 8:
			return reflect.TypeOf(int64(0)), nil
		}
	case KindUint:
		switch dt.Size {
		case 1:
			return reflect.TypeOf(uint8(0)), nil
		case 2:
			return reflect.TypeOf(uint16(0)), nil
		case 4:
			return reflect.TypeOf(uint32(0)), nil
		case 8:
			return reflect.TypeOf(uint64(0)), nil
		}
	case KindFloat:
		switch dt.Size {
		case 4:
			return reflect.TypeOf(float32(0)), nil
		case 8:
			return reflect.TypeOf(float64(0)), nil
		}
	case KindBool:
		return reflect.TypeOf(false), nil
	case KindBytes:
		return reflect.TypeOf([]byte(nil)), nil
	}
	return nil, fmt.Errorf("%w: %s size %d", ErrInvalidType, dt.Kind, dt.Size)
}

// DataSize returns the number of bytes needed to store n elements.
func (dt DataType) DataSize(n int) int {
	return dt.Size * n
}
