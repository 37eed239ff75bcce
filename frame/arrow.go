package frame

import (
	"fmt"
	"math"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// ToArrow converts a frame to an Arrow record. Categorical columns become
// dictionary arrays with int32 indices; unset rows are null. The caller
// must Release the record.
func ToArrow(f *Frame, mem memory.Allocator) (arrow.Record, error) {
	if mem == nil {
		mem = memory.DefaultAllocator
	}
	fields := make([]arrow.Field, 0, f.NumCols())
	arrs := make([]arrow.Array, 0, f.NumCols())
	defer func() {
		for _, a := range arrs {
			a.Release()
		}
	}()

	for _, name := range f.Names() {
		col, _ := f.Column(name)
		arr, err := columnToArrow(col, mem)
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", name, err)
		}
		arrs = append(arrs, arr)
		fields = append(fields, arrow.Field{
			Name:     name,
			Type:     arr.DataType(),
			Nullable: col.Kind() == KindCategorical,
		})
	}

	schema := arrow.NewSchema(fields, nil)
	return array.NewRecord(schema, arrs, int64(f.Len())), nil
}

func columnToArrow(col Column, mem memory.Allocator) (arrow.Array, error) {
	switch c := col.(type) {
	case Int8:
		b := array.NewInt8Builder(mem)
		defer b.Release()
		b.AppendValues(c, nil)
		return b.NewArray(), nil
	case Int16:
		b := array.NewInt16Builder(mem)
		defer b.Release()
		b.AppendValues(c, nil)
		return b.NewArray(), nil
	case Int32:
		b := array.NewInt32Builder(mem)
		defer b.Release()
		b.AppendValues(c, nil)
		return b.NewArray(), nil
	case Int64:
		b := array.NewInt64Builder(mem)
		defer b.Release()
		b.AppendValues(c, nil)
		return b.NewArray(), nil
	case Uint8:
		b := array.NewUint8Builder(mem)
		defer b.Release()
		b.AppendValues(c, nil)
		return b.NewArray(), nil
	case Uint16:
		b := array.NewUint16Builder(mem)
		defer b.Release()
		b.AppendValues(c, nil)
		return b.NewArray(), nil
	case Uint32:
		b := array.NewUint32Builder(mem)
		defer b.Release()
		b.AppendValues(c, nil)
		return b.NewArray(), nil
	case Uint64:
		b := array.NewUint64Builder(mem)
		defer b.Release()
		b.AppendValues(c, nil)
		return b.NewArray(), nil
	case Float32:
		b := array.NewFloat32Builder(mem)
		defer b.Release()
		b.AppendValues(c, nil)
		return b.NewArray(), nil
	case Float64:
		b := array.NewFloat64Builder(mem)
		defer b.Release()
		b.AppendValues(c, nil)
		return b.NewArray(), nil
	case Bool:
		b := array.NewBooleanBuilder(mem)
		defer b.Release()
		b.AppendValues(c, nil)
		return b.NewArray(), nil
	case String:
		b := array.NewStringBuilder(mem)
		defer b.Release()
		b.AppendValues(c, nil)
		return b.NewArray(), nil
	case Bytes:
		b := array.NewBinaryBuilder(mem, arrow.BinaryTypes.Binary)
		defer b.Release()
		b.AppendValues(c, nil)
		return b.NewArray(), nil
	case Categorical:
		return categoricalToArrow(c, mem), nil
	}
	return nil, fmt.Errorf("%w: %T", ErrUnsupportedType, col)
}

func categoricalToArrow(c Categorical, mem memory.Allocator) arrow.Array {
	ib := array.NewInt32Builder(mem)
	defer ib.Release()
	valid := make([]bool, len(c.Codes))
	for i, code := range c.Codes {
		valid[i] = code >= 0
	}
	ib.AppendValues(c.Codes, valid)
	indices := ib.NewArray()
	defer indices.Release()

	vb := array.NewStringBuilder(mem)
	defer vb.Release()
	vb.AppendValues(c.Categories, nil)
	dict := vb.NewArray()
	defer dict.Release()

	typ := &arrow.DictionaryType{
		IndexType: arrow.PrimitiveTypes.Int32,
		ValueType: arrow.BinaryTypes.String,
		Ordered:   c.Ordered,
	}
	return array.NewDictionaryArray(typ, indices, dict)
}

// FromArrow converts an Arrow record to a frame. Values are copied out of
// the record's buffers. Nulls are only supported in dictionary columns
// (unset rows) and floating point columns (NaN).
func FromArrow(rec arrow.Record) (*Frame, error) {
	f := &Frame{}
	schema := rec.Schema()
	for i := 0; i < int(rec.NumCols()); i++ {
		name := schema.Field(i).Name
		col, err := columnFromArrow(rec.Column(i))
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", name, err)
		}
		if err := f.Add(name, col); err != nil {
			return nil, err
		}
	}
	return f, nil
}

func columnFromArrow(arr arrow.Array) (Column, error) {
	if d, ok := arr.(*array.Dictionary); ok {
		return dictionaryFromArrow(d)
	}
	if arr.NullN() > 0 {
		switch arr.(type) {
		case *array.Float32, *array.Float64:
		default:
			return nil, fmt.Errorf("%w: %d null values in %s array", ErrUnsupportedType, arr.NullN(), arr.DataType())
		}
	}

	switch a := arr.(type) {
	case *array.Int8:
		return Int8(append([]int8(nil), a.Int8Values()...)), nil
	case *array.Int16:
		return Int16(append([]int16(nil), a.Int16Values()...)), nil
	case *array.Int32:
		return Int32(append([]int32(nil), a.Int32Values()...)), nil
	case *array.Int64:
		return Int64(append([]int64(nil), a.Int64Values()...)), nil
	case *array.Uint8:
		return Uint8(append([]uint8(nil), a.Uint8Values()...)), nil
	case *array.Uint16:
		return Uint16(append([]uint16(nil), a.Uint16Values()...)), nil
	case *array.Uint32:
		return Uint32(append([]uint32(nil), a.Uint32Values()...)), nil
	case *array.Uint64:
		return Uint64(append([]uint64(nil), a.Uint64Values()...)), nil
	case *array.Float32:
		out := Float32(append([]float32(nil), a.Float32Values()...))
		for i := range out {
			if a.IsNull(i) {
				out[i] = float32(math.NaN())
			}
		}
		return out, nil
	case *array.Float64:
		out := Float64(append([]float64(nil), a.Float64Values()...))
		for i := range out {
			if a.IsNull(i) {
				out[i] = math.NaN()
			}
		}
		return out, nil
	case *array.Boolean:
		out := make(Bool, a.Len())
		for i := range out {
			out[i] = a.Value(i)
		}
		return out, nil
	case *array.String:
		out := make(String, a.Len())
		for i := range out {
			out[i] = a.Value(i)
		}
		return out, nil
	case *array.LargeString:
		out := make(String, a.Len())
		for i := range out {
			out[i] = a.Value(i)
		}
		return out, nil
	case *array.Binary:
		out := make(Bytes, a.Len())
		for i := range out {
			out[i] = append([]byte(nil), a.Value(i)...)
		}
		return out, nil
	}
	return nil, fmt.Errorf("%w: arrow type %s", ErrUnsupportedType, arr.DataType())
}

func dictionaryFromArrow(d *array.Dictionary) (Column, error) {
	values, ok := d.Dictionary().(*array.String)
	if !ok {
		return nil, fmt.Errorf("%w: dictionary of %s", ErrUnsupportedType, d.Dictionary().DataType())
	}
	cats := make([]string, values.Len())
	for i := range cats {
		cats[i] = values.Value(i)
	}
	if len(cats) > math.MaxInt32 {
		return nil, fmt.Errorf("%w: %d categories", ErrUnsupportedType, len(cats))
	}

	codes := make([]int32, d.Len())
	for i := range codes {
		if d.IsNull(i) {
			codes[i] = -1
			continue
		}
		codes[i] = int32(d.GetValueIndex(i))
	}
	ordered := d.DataType().(*arrow.DictionaryType).Ordered
	return Categorical{Codes: codes, Categories: cats, Ordered: ordered}, nil
}
