package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robert-malhotra/go-coltab/frame"
	"github.com/robert-malhotra/go-coltab/internal/dtype"
)

func roundtrip(t *testing.T, v any, opts Options) frame.Column {
	t.Helper()
	enc, err := Encode(v, opts)
	require.NoError(t, err)
	meta := Meta{DecodeEnum: true}
	if enc.Categories != nil {
		meta.Categories, meta.HasCategories = enc.Categories, true
	}
	col, err := Decode(enc.Data, enc.Len, enc.DType, meta)
	require.NoError(t, err)
	return col
}

func TestRoundtrip(t *testing.T) {
	tests := []struct {
		name string
		col  frame.Column
	}{
		{"int8", frame.Int8{-1, 0, 127}},
		{"int64", frame.Int64{1, 2, 3}},
		{"uint32", frame.Uint32{0, 1 << 31}},
		{"float32", frame.Float32{1.5, -2}},
		{"float64", frame.Float64{4.1, 5.1, 6.1}},
		{"bool", frame.Bool{true, false}},
		{"latin1 strings", frame.String{"abc", "", "café"}},
		{"categorical", frame.Categorical{Codes: []int32{0, 1, 0, -1}, Categories: []string{"x", "y"}, Ordered: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := roundtrip(t, tt.col, Options{})
			assert.True(t, frame.Equal(tt.col, got), "got %v, want %v", got, tt.col)
		})
	}
}

func TestEncodeScalar(t *testing.T) {
	enc, err := Encode(3.5, Options{})
	require.NoError(t, err)
	assert.Equal(t, dtype.Float64, enc.DType)
	assert.Equal(t, 1, enc.Len)
	assert.Nil(t, enc.Fill)

	i16 := dtype.Int16
	enc, err = Encode(7, Options{Coerce: &i16})
	require.NoError(t, err)
	assert.Equal(t, dtype.Int16, enc.DType)
	assert.Equal(t, []byte{7, 0}, enc.Data)
}

func TestEncodeCategorical(t *testing.T) {
	enc, err := Encode(frame.NewCategorical([]string{"x", "y", "x"}), Options{})
	require.NoError(t, err)
	assert.True(t, enc.Categorical)
	assert.Equal(t, []string{"x", "y"}, enc.Categories)
	assert.Equal(t, []string{"x", "y"}, enc.DType.Enum)
	assert.True(t, enc.DType.SameStorage(dtype.Int32))
	assert.Equal(t, []byte{0xFF, 0xFF, 0xFF, 0xFF}, enc.Fill)
}

func TestEncodeCategoricalDropped(t *testing.T) {
	enc, err := Encode(frame.NewCategorical([]string{"x", "y"}), Options{DropCategories: true})
	require.NoError(t, err)
	assert.True(t, enc.Categorical)
	assert.Nil(t, enc.Categories)
	assert.False(t, enc.DType.IsEnum())
	assert.NotNil(t, enc.Fill)

	col, err := Decode(enc.Data, enc.Len, enc.DType, Meta{DecodeEnum: true})
	require.NoError(t, err)
	assert.Equal(t, frame.Int32{0, 1}, col)
}

func TestEncodeCategoricalBadCode(t *testing.T) {
	_, err := Encode(frame.Categorical{Codes: []int32{2}, Categories: []string{"a"}}, Options{})
	assert.ErrorIs(t, err, ErrUnsupportedType)
}

func TestEncodeStrings(t *testing.T) {
	enc, err := Encode([]string{"ab", "hello"}, Options{})
	require.NoError(t, err)
	assert.Equal(t, dtype.FixedBytes(5), enc.DType)
	assert.Nil(t, enc.Fill)

	enc, err = Encode([]string{"é"}, Options{})
	require.NoError(t, err)
	assert.Equal(t, []byte{0xE9}, enc.Data, "latin-1 is one byte per character")

	enc, err = Encode([]string{"", ""}, Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, enc.DType.Size)
}

func TestEncodeUnencodable(t *testing.T) {
	_, err := Encode([]string{"ok", "日本"}, Options{})
	assert.ErrorIs(t, err, ErrUnencodable)

	enc, err := Encode([]string{"a日"}, Options{Charset: Replace})
	require.NoError(t, err)
	assert.Equal(t, []byte{'a', 0x1A}, enc.Data)
}

func TestEncodeStringWidth(t *testing.T) {
	s8 := dtype.FixedBytes(8)
	enc, err := Encode([]string{"abc"}, Options{Coerce: &s8})
	require.NoError(t, err)
	assert.Len(t, enc.Data, 8)

	s2 := dtype.FixedBytes(2)
	_, err = Encode([]string{"abc"}, Options{Coerce: &s2})
	assert.ErrorIs(t, err, ErrValueTooWide)

	i64 := dtype.Int64
	_, err = Encode([]string{"abc"}, Options{Coerce: &i64})
	assert.ErrorIs(t, err, ErrUnsupportedType)
}

func TestEncodeBytesDecodeAsString(t *testing.T) {
	got := roundtrip(t, frame.Bytes{[]byte("ab"), []byte{0xE9}}, Options{})
	assert.Equal(t, frame.String{"ab", "é"}, got)
}

func TestCoerce(t *testing.T) {
	i32 := dtype.Int32
	enc, err := Encode([]int{1, 2}, Options{Coerce: &i32})
	require.NoError(t, err)
	assert.Equal(t, dtype.Int32, enc.DType)

	_, err = Encode([]float64{1.5}, Options{Coerce: &i32})
	assert.ErrorIs(t, err, ErrUnsupportedType)

	s4 := dtype.FixedBytes(4)
	_, err = Encode([]int{1}, Options{Coerce: &s4})
	assert.ErrorIs(t, err, ErrUnsupportedType)
}

func TestEncodeUnsupported(t *testing.T) {
	_, err := Encode(map[string]int{"a": 1}, Options{})
	assert.ErrorIs(t, err, ErrUnsupportedType)
}

func TestDecodeCategoriesAttributeWins(t *testing.T) {
	dt := dtype.Int32.WithEnum([]string{"stale"})
	raw, err := dtype.Encode(dtype.Int32, []int32{0, 1})
	require.NoError(t, err)

	col, err := Decode(raw, 2, dt, Meta{Categories: []string{"a", "b"}, HasCategories: true, DecodeEnum: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, col.(frame.Categorical).Labels())
}

func TestDecodeEnumTag(t *testing.T) {
	dt := dtype.Int8.WithEnum([]string{"a", "b"})
	col, err := Decode([]byte{1, 0xFF}, 2, dt, Meta{DecodeEnum: true})
	require.NoError(t, err)
	c := col.(frame.Categorical)
	assert.Equal(t, []int32{1, -1}, c.Codes)
	assert.True(t, c.Ordered)
}

func TestDecodeEnumDisabled(t *testing.T) {
	raw, _ := dtype.Encode(dtype.Int32, []int32{0, 1})
	col, err := Decode(raw, 2, dtype.Int32, Meta{Categories: []string{"a", "b"}, HasCategories: true})
	require.NoError(t, err)
	assert.Equal(t, frame.Int32{0, 1}, col)
}

func TestDecodeCorruptMetadata(t *testing.T) {
	raw, _ := dtype.Encode(dtype.Int32, []int32{0, 3})
	_, err := Decode(raw, 2, dtype.Int32, Meta{Categories: []string{"a"}, HasCategories: true, DecodeEnum: true})
	assert.ErrorIs(t, err, ErrCorruptMetadata)

	raw, _ = dtype.Encode(dtype.Int32, []int32{-2})
	_, err = Decode(raw, 1, dtype.Int32, Meta{Categories: []string{"a"}, HasCategories: true, DecodeEnum: true})
	assert.ErrorIs(t, err, ErrCorruptMetadata)
}

func TestDecodeFillRows(t *testing.T) {
	enc, err := Encode(frame.NewCategorical([]string{"x"}), Options{})
	require.NoError(t, err)
	raw := append(append([]byte{}, enc.Data...), enc.Fill...)

	col, err := Decode(raw, 2, enc.DType, Meta{Categories: enc.Categories, HasCategories: true, DecodeEnum: true})
	require.NoError(t, err)
	assert.Equal(t, []any{"x", nil}, []any{col.Value(0), col.Value(1)})
}

func TestNativeType(t *testing.T) {
	dt, err := NativeType(frame.Float32{1})
	require.NoError(t, err)
	assert.Equal(t, dtype.Float32, dt)

	dt, err = NativeType(frame.NewCategorical(nil))
	require.NoError(t, err)
	assert.Equal(t, CodeType, dt)
}

func TestConformCategorical(t *testing.T) {
	target := Target{DType: dtype.Int32, Categorical: true, Categories: []string{"x", "y"}}

	chunk := frame.Categorical{Codes: []int32{0, 1, -1}, Categories: []string{"y", "z"}}
	col, cats, err := Conform(chunk, target)
	require.NoError(t, err)
	assert.Equal(t, []string{"x", "y", "z"}, cats)
	assert.Equal(t, []int32{1, 2, -1}, col.(frame.Categorical).Codes)

	col, cats, err = Conform(frame.String{"x", "w"}, target)
	require.NoError(t, err)
	assert.Equal(t, []string{"x", "y", "w"}, cats)
	assert.Equal(t, []int32{0, 2}, col.(frame.Categorical).Codes)
	assert.Equal(t, []string{"x", "y"}, target.Categories, "target list must not be modified")

	_, _, err = Conform(frame.Int64{1}, target)
	assert.ErrorIs(t, err, ErrUnsupportedType)
}

func TestConformBytesTarget(t *testing.T) {
	target := Target{DType: dtype.FixedBytes(4)}
	col, cats, err := Conform(frame.NewCategorical([]string{"ab", "c"}), target)
	require.NoError(t, err)
	assert.Nil(t, cats)
	assert.Equal(t, frame.String{"ab", "c"}, col)

	col, _, err = Conform(frame.Int64{1}, Target{DType: dtype.Int64})
	require.NoError(t, err)
	assert.Equal(t, frame.Int64{1}, col)
}
