package zmeta

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"

	"github.com/goccy/go-json"

	"github.com/robert-malhotra/go-coltab/internal/dtype"
	"github.com/robert-malhotra/go-coltab/internal/filter"
)

// Document keys.
const (
	GroupKey = ".zgroup"
	ArrayKey = ".zarray"
	AttrsKey = ".zattrs"
)

// Format is the only supported zarr_format.
const Format = 2

// ErrInvalid is returned for malformed or unsupported documents.
var ErrInvalid = errors.New("invalid zarr metadata")

// Group is the ".zgroup" document.
type Group struct {
	ZarrFormat int `json:"zarr_format"`
}

// Array is the ".zarray" document.
type Array struct {
	ZarrFormat         int             `json:"zarr_format"`
	Shape              []int           `json:"shape"`
	Chunks             []int           `json:"chunks"`
	DType              string          `json:"dtype"`
	Compressor         *filter.Config  `json:"compressor"`
	FillValue          json.RawMessage `json:"fill_value"`
	Order              string          `json:"order"`
	Filters            []filter.Config `json:"filters"`
	DimensionSeparator string          `json:"dimension_separator,omitempty"`
}

// NewArray returns the document of a one-dimensional array.
func NewArray(dt dtype.DataType, n, chunkLen int, fill []byte, filters []filter.Config, compressor *filter.Config) (*Array, error) {
	fv, err := EncodeFill(dt, fill)
	if err != nil {
		return nil, err
	}
	if len(filters) == 0 {
		filters = nil
	}
	return &Array{
		ZarrFormat:         Format,
		Shape:              []int{n},
		Chunks:             []int{chunkLen},
		DType:              dt.Storage().String(),
		Compressor:         compressor,
		FillValue:          fv,
		Order:              "C",
		Filters:            filters,
		DimensionSeparator: ".",
	}, nil
}

// Len returns the array length.
func (a *Array) Len() int { return a.Shape[0] }

// ChunkLen returns the elements per chunk.
func (a *Array) ChunkLen() int { return a.Chunks[0] }

// DataType parses the dtype field.
func (a *Array) DataType() (dtype.DataType, error) {
	dt, err := dtype.Parse(a.DType)
	if err != nil {
		return dtype.DataType{}, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return dt, nil
}

// Fill decodes the fill_value field for the array's dtype.
func (a *Array) Fill() ([]byte, error) {
	dt, err := a.DataType()
	if err != nil {
		return nil, err
	}
	return DecodeFill(dt, a.FillValue)
}

// Validate checks the document describes a supported array.
func (a *Array) Validate() error {
	switch {
	case a.ZarrFormat != Format:
		return fmt.Errorf("%w: zarr_format %d", ErrInvalid, a.ZarrFormat)
	case len(a.Shape) != 1 || len(a.Chunks) != 1:
		return fmt.Errorf("%w: only one-dimensional arrays are supported, shape %v", ErrInvalid, a.Shape)
	case a.Shape[0] < 0 || a.Chunks[0] < 1:
		return fmt.Errorf("%w: shape %v chunks %v", ErrInvalid, a.Shape, a.Chunks)
	case a.Order != "" && a.Order != "C" && a.Order != "F":
		return fmt.Errorf("%w: order %q", ErrInvalid, a.Order)
	case a.DimensionSeparator != "" && a.DimensionSeparator != "." && a.DimensionSeparator != "/":
		return fmt.Errorf("%w: dimension_separator %q", ErrInvalid, a.DimensionSeparator)
	}
	if _, err := a.DataType(); err != nil {
		return err
	}
	return nil
}

// ParseArray decodes and validates a ".zarray" document.
func ParseArray(b []byte) (*Array, error) {
	var a Array
	if err := json.Unmarshal(b, &a); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if err := a.Validate(); err != nil {
		return nil, err
	}
	return &a, nil
}

// ParseGroup decodes and validates a ".zgroup" document.
func ParseGroup(b []byte) (*Group, error) {
	var g Group
	if err := json.Unmarshal(b, &g); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if g.ZarrFormat != Format {
		return nil, fmt.Errorf("%w: zarr_format %d", ErrInvalid, g.ZarrFormat)
	}
	return &g, nil
}

// Marshal encodes a metadata document with indentation, as zarr writes it.
func Marshal(v any) ([]byte, error) {
	return json.MarshalIndent(v, "", "    ")
}

// EncodeFill returns the fill_value literal of fill, or null.
func EncodeFill(dt dtype.DataType, fill []byte) (json.RawMessage, error) {
	if fill == nil {
		return json.RawMessage("null"), nil
	}
	if len(fill) != dt.Size {
		return nil, fmt.Errorf("%w: fill value of %d bytes for %s", ErrInvalid, len(fill), dt)
	}
	order := dt.ByteOrder()
	var s string
	switch dt.Kind {
	case dtype.KindInt:
		s = strconv.FormatInt(readInt(fill, dt), 10)
	case dtype.KindUint:
		s = strconv.FormatUint(readUint(fill, dt), 10)
	case dtype.KindFloat:
		var f float64
		if dt.Size == 4 {
			f = float64(math.Float32frombits(order.Uint32(fill)))
		} else {
			f = math.Float64frombits(order.Uint64(fill))
		}
		switch {
		case math.IsNaN(f):
			s = `"NaN"`
		case math.IsInf(f, 1):
			s = `"Infinity"`
		case math.IsInf(f, -1):
			s = `"-Infinity"`
		default:
			s = strconv.FormatFloat(f, 'g', -1, 64)
		}
	case dtype.KindBool:
		s = strconv.FormatBool(fill[0] != 0)
	case dtype.KindBytes:
		s = strconv.Quote(base64.StdEncoding.EncodeToString(fill))
	default:
		return nil, fmt.Errorf("%w: dtype %s", ErrInvalid, dt)
	}
	return json.RawMessage(s), nil
}

// DecodeFill parses a fill_value literal. It returns nil for null.
func DecodeFill(dt dtype.DataType, raw json.RawMessage) ([]byte, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	out := make([]byte, dt.Size)
	order := dt.ByteOrder()
	bad := func(err error) error {
		return fmt.Errorf("%w: fill_value %s for %s: %v", ErrInvalid, raw, dt, err)
	}

	switch dt.Kind {
	case dtype.KindInt, dtype.KindUint:
		var n json.Number
		if err := json.Unmarshal(raw, &n); err != nil {
			return nil, bad(err)
		}
		if dt.Kind == dtype.KindInt {
			v, err := strconv.ParseInt(n.String(), 10, dt.Size*8)
			if err != nil {
				return nil, bad(err)
			}
			putUint(out, uint64(v), dt)
		} else {
			v, err := strconv.ParseUint(n.String(), 10, dt.Size*8)
			if err != nil {
				return nil, bad(err)
			}
			putUint(out, v, dt)
		}
	case dtype.KindFloat:
		var f float64
		if raw[0] == '"' {
			var s string
			if err := json.Unmarshal(raw, &s); err != nil {
				return nil, bad(err)
			}
			switch s {
			case "NaN":
				f = math.NaN()
			case "Infinity":
				f = math.Inf(1)
			case "-Infinity":
				f = math.Inf(-1)
			default:
				return nil, bad(fmt.Errorf("unknown float literal %q", s))
			}
		} else if err := json.Unmarshal(raw, &f); err != nil {
			return nil, bad(err)
		}
		if dt.Size == 4 {
			order.PutUint32(out, math.Float32bits(float32(f)))
		} else {
			order.PutUint64(out, math.Float64bits(f))
		}
	case dtype.KindBool:
		var b bool
		if err := json.Unmarshal(raw, &b); err != nil {
			return nil, bad(err)
		}
		if b {
			out[0] = 1
		}
	case dtype.KindBytes:
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, bad(err)
		}
		b, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			return nil, bad(err)
		}
		if len(b) > dt.Size {
			return nil, bad(fmt.Errorf("%d bytes", len(b)))
		}
		copy(out, b)
	default:
		return nil, fmt.Errorf("%w: dtype %s", ErrInvalid, dt)
	}
	return out, nil
}

func readUint(b []byte, dt dtype.DataType) uint64 {
	order := dt.ByteOrder()
	switch dt.Size {
	case 1:
		return uint64(b[0])
	case 2:
		return uint64(order.Uint16(b))
	case 4:
		return uint64(order.Uint32(b))
	}
	return order.Uint64(b)
}

func readInt(b []byte, dt dtype.DataType) int64 {
	u := readUint(b, dt)
	shift := 64 - uint(dt.Size*8)
	return int64(u<<shift) >> shift
}

func putUint(b []byte, v uint64, dt dtype.DataType) {
	order := dt.ByteOrder()
	switch dt.Size {
	case 1:
		b[0] = byte(v)
	case 2:
		order.PutUint16(b, uint16(v))
	case 4:
		order.PutUint32(b, uint32(v))
	default:
		order.PutUint64(b, v)
	}
}

// MarshalAttrs encodes a ".zattrs" document. Keys are sorted.
func MarshalAttrs(attrs map[string]any) ([]byte, error) {
	if attrs == nil {
		attrs = map[string]any{}
	}
	return Marshal(attrs)
}

// ParseAttrs decodes a ".zattrs" document. Whole numbers decode as int64,
// other numbers as float64, and arrays as []any.
func ParseAttrs(b []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: attributes: %v", ErrInvalid, err)
	}
	out := make(map[string]any, len(raw))
	for k, v := range raw {
		out[k] = normalize(v)
	}
	return out, nil
}

func normalize(v any) any {
	switch x := v.(type) {
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return i
		}
		f, _ := x.Float64()
		return f
	case []any:
		for i := range x {
			x[i] = normalize(x[i])
		}
		return x
	case map[string]any:
		for k := range x {
			x[k] = normalize(x[k])
		}
		return x
	}
	return v
}

// SortedKeys returns the keys of attrs in order.
func SortedKeys(attrs map[string]any) []string {
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
