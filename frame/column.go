package frame

import (
	"errors"
	"fmt"
	"sort"
)

var (
	ErrUnsupportedType = errors.New("unsupported column type")
	ErrLengthMismatch  = errors.New("column length mismatch")
	ErrDuplicateColumn = errors.New("duplicate column name")
)

// Kind identifies the concrete type of a Column.
type Kind uint8

const (
	KindInt8 Kind = iota + 1
	KindInt16
	KindInt32
	KindInt64
	KindUint8
	KindUint16
	KindUint32
	KindUint64
	KindFloat32
	KindFloat64
	KindBool
	KindString
	KindBytes
	KindCategorical
)

var kindNames = [...]string{
	KindInt8:        "int8",
	KindInt16:       "int16",
	KindInt32:       "int32",
	KindInt64:       "int64",
	KindUint8:       "uint8",
	KindUint16:      "uint16",
	KindUint32:      "uint32",
	KindUint64:      "uint64",
	KindFloat32:     "float32",
	KindFloat64:     "float64",
	KindBool:        "bool",
	KindString:      "string",
	KindBytes:       "bytes",
	KindCategorical: "category",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) && kindNames[k] != "" {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// Column is a homogeneously typed sequence of values.
type Column interface {
	Len() int
	Kind() Kind

	// Slice returns the rows [lo, hi). The result may share memory.
	Slice(lo, hi int) Column

	// Value returns row i as a plain Go value. Unset categorical rows
	// return nil.
	Value(i int) any

	column()
}

type (
	Int8    []int8
	Int16   []int16
	Int32   []int32
	Int64   []int64
	Uint8   []uint8
	Uint16  []uint16
	Uint32  []uint32
	Uint64  []uint64
	Float32 []float32
	Float64 []float64
	Bool    []bool
	String  []string
	Bytes   [][]byte
)

func (c Int8) Len() int    { return len(c) }
func (c Int16) Len() int   { return len(c) }
func (c Int32) Len() int   { return len(c) }
func (c Int64) Len() int   { return len(c) }
func (c Uint8) Len() int   { return len(c) }
func (c Uint16) Len() int  { return len(c) }
func (c Uint32) Len() int  { return len(c) }
func (c Uint64) Len() int  { return len(c) }
func (c Float32) Len() int { return len(c) }
func (c Float64) Len() int { return len(c) }
func (c Bool) Len() int    { return len(c) }
func (c String) Len() int  { return len(c) }
func (c Bytes) Len() int   { return len(c) }

func (Int8) Kind() Kind    { return KindInt8 }
func (Int16) Kind() Kind   { return KindInt16 }
func (Int32) Kind() Kind   { return KindInt32 }
func (Int64) Kind() Kind   { return KindInt64 }
func (Uint8) Kind() Kind   { return KindUint8 }
func (Uint16) Kind() Kind  { return KindUint16 }
func (Uint32) Kind() Kind  { return KindUint32 }
func (Uint64) Kind() Kind  { return KindUint64 }
func (Float32) Kind() Kind { return KindFloat32 }
func (Float64) Kind() Kind { return KindFloat64 }
func (Bool) Kind() Kind    { return KindBool }
func (String) Kind() Kind  { return KindString }
func (Bytes) Kind() Kind   { return KindBytes }

func (c Int8) Slice(lo, hi int) Column    { return c[lo:hi] }
func (c Int16) Slice(lo, hi int) Column   { return c[lo:hi] }
func (c Int32) Slice(lo, hi int) Column   { return c[lo:hi] }
func (c Int64) Slice(lo, hi int) Column   { return c[lo:hi] }
func (c Uint8) Slice(lo, hi int) Column   { return c[lo:hi] }
func (c Uint16) Slice(lo, hi int) Column  { return c[lo:hi] }
func (c Uint32) Slice(lo, hi int) Column  { return c[lo:hi] }
func (c Uint64) Slice(lo, hi int) Column  { return c[lo:hi] }
func (c Float32) Slice(lo, hi int) Column { return c[lo:hi] }
func (c Float64) Slice(lo, hi int) Column { return c[lo:hi] }
func (c Bool) Slice(lo, hi int) Column    { return c[lo:hi] }
func (c String) Slice(lo, hi int) Column  { return c[lo:hi] }
func (c Bytes) Slice(lo, hi int) Column   { return c[lo:hi] }

func (c Int8) Value(i int) any    { return c[i] }
func (c Int16) Value(i int) any   { return c[i] }
func (c Int32) Value(i int) any   { return c[i] }
func (c Int64) Value(i int) any   { return c[i] }
func (c Uint8) Value(i int) any   { return c[i] }
func (c Uint16) Value(i int) any  { return c[i] }
func (c Uint32) Value(i int) any  { return c[i] }
func (c Uint64) Value(i int) any  { return c[i] }
func (c Float32) Value(i int) any { return c[i] }
func (c Float64) Value(i int) any { return c[i] }
func (c Bool) Value(i int) any    { return c[i] }
func (c String) Value(i int) any  { return c[i] }
func (c Bytes) Value(i int) any   { return c[i] }

func (Int8) column()    {}
func (Int16) column()   {}
func (Int32) column()   {}
func (Int64) column()   {}
func (Uint8) column()   {}
func (Uint16) column()  {}
func (Uint32) column()  {}
func (Uint64) column()  {}
func (Float32) column() {}
func (Float64) column() {}
func (Bool) column()    {}
func (String) column()  {}
func (Bytes) column()   {}

// Categorical holds integer codes into an ordered list of labels.
// Code -1 marks an unset row.
type Categorical struct {
	Codes      []int32
	Categories []string
	Ordered    bool
}

func (c Categorical) Len() int { return len(c.Codes) }
func (Categorical) Kind() Kind { return KindCategorical }
func (Categorical) column()    {}

func (c Categorical) Slice(lo, hi int) Column {
	return Categorical{Codes: c.Codes[lo:hi], Categories: c.Categories, Ordered: c.Ordered}
}

func (c Categorical) Value(i int) any {
	if l, ok := c.Label(i); ok {
		return l
	}
	return nil
}

// Label returns the label of row i, or false if the row is unset.
func (c Categorical) Label(i int) (string, bool) {
	code := c.Codes[i]
	if code < 0 || int(code) >= len(c.Categories) {
		return "", false
	}
	return c.Categories[code], true
}

// Labels returns the label of every row; unset rows are empty.
func (c Categorical) Labels() []string {
	out := make([]string, len(c.Codes))
	for i := range c.Codes {
		out[i], _ = c.Label(i)
	}
	return out
}

// NewCategorical encodes values with their sorted distinct labels as
// categories.
func NewCategorical(values []string) Categorical {
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		seen[v] = struct{}{}
	}
	cats := make([]string, 0, len(seen))
	for v := range seen {
		cats = append(cats, v)
	}
	sort.Strings(cats)

	codes := make(map[string]int32, len(cats))
	for i, v := range cats {
		codes[v] = int32(i)
	}
	out := Categorical{Codes: make([]int32, len(values)), Categories: cats}
	for i, v := range values {
		out.Codes[i] = codes[v]
	}
	return out
}

// NewCategoricalWith encodes values against a fixed category list.
// Values missing from categories become unset rows.
func NewCategoricalWith(values, categories []string, ordered bool) Categorical {
	codes := make(map[string]int32, len(categories))
	for i, v := range categories {
		codes[v] = int32(i)
	}
	out := Categorical{Codes: make([]int32, len(values)), Categories: categories, Ordered: ordered}
	for i, v := range values {
		code, ok := codes[v]
		if !ok {
			code = -1
		}
		out.Codes[i] = code
	}
	return out
}
