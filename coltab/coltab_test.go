package coltab_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/robert-malhotra/go-coltab/coltab"
	"github.com/robert-malhotra/go-coltab/frame"
	"github.com/robert-malhotra/go-coltab/internal/backend"
	"github.com/robert-malhotra/go-coltab/internal/backend/memory"
	"github.com/robert-malhotra/go-coltab/internal/backend/zarr"
	"github.com/robert-malhotra/go-coltab/internal/dtype"
	"github.com/robert-malhotra/go-coltab/internal/metrics"
	"github.com/robert-malhotra/go-coltab/kv"
)

type opener func(t *testing.T, opts ...coltab.Option) *coltab.Store

// backends opens an empty store on each backend.
func backends() map[string]opener {
	return map[string]opener{
		"memory": func(t *testing.T, opts ...coltab.Option) *coltab.Store {
			s, err := coltab.OpenHandle(context.Background(), memory.Open(""), "/", opts...)
			require.NoError(t, err)
			t.Cleanup(func() { s.Close() })
			return s
		},
		"zarr": func(t *testing.T, opts ...coltab.Option) *coltab.Store {
			h, err := zarr.Open(kv.NewMemory())
			require.NoError(t, err)
			s, err := coltab.OpenHandle(context.Background(), h, "/", opts...)
			require.NoError(t, err)
			t.Cleanup(func() { s.Close() })
			return s
		},
		"dir": func(t *testing.T, opts ...coltab.Option) *coltab.Store {
			s, err := coltab.Open(context.Background(), t.TempDir(), opts...)
			require.NoError(t, err)
			t.Cleanup(func() { s.Close() })
			return s
		},
	}
}

func forEachBackend(t *testing.T, fn func(t *testing.T, open opener)) {
	for name, open := range backends() {
		t.Run(name, func(t *testing.T) { fn(t, open) })
	}
}

// scenarioTable creates table t with A=[1,2,3] and B=[4.1,5.1,6.1].
func scenarioTable(t *testing.T, s *coltab.Store) {
	t.Helper()
	require.NoError(t, s.CreateTable("t", coltab.WithColumnTypes(
		coltab.ColumnSpec{Name: "A", Type: "int64"},
		coltab.ColumnSpec{Name: "B", Type: "float64"},
	)))
	require.NoError(t, s.Append("t", frame.MustNew(
		[]string{"A", "B"},
		frame.Int64{1, 2, 3},
		frame.Float64{4.1, 5.1, 6.1},
	)))
}

func TestScenarioCreateAppendSelect(t *testing.T) {
	forEachBackend(t, func(t *testing.T, open opener) {
		s := open(t)
		scenarioTable(t, s)

		f, err := s.Select("t")
		require.NoError(t, err)
		assert.Equal(t, []string{"A", "B"}, f.Names())
		assert.Equal(t, 3, f.Len())
		a, _ := f.Column("A")
		b, _ := f.Column("B")
		assert.Equal(t, frame.Int64{1, 2, 3}, a)
		assert.Equal(t, frame.Float64{4.1, 5.1, 6.1}, b)
		assert.Equal(t, &frame.RangeIndex{Start: 0, Stop: 3}, f.Index())
	})
}

func TestScenarioAddCategorical(t *testing.T) {
	forEachBackend(t, func(t *testing.T, open opener) {
		s := open(t)
		scenarioTable(t, s)

		require.NoError(t, s.AddColumn("t", "C", frame.NewCategorical([]string{"x", "y", "x"})))

		ser, err := s.SelectColumn("t", "C")
		require.NoError(t, err)
		c, ok := ser.Column.(frame.Categorical)
		require.True(t, ok, "got %T", ser.Column)
		assert.True(t, c.Ordered)
		assert.Equal(t, []string{"x", "y"}, c.Categories)
		assert.Equal(t, []string{"x", "y", "x"}, c.Labels())
		assert.Equal(t, "C", ser.Name)
	})
}

func TestScenarioDeleteColumn(t *testing.T) {
	forEachBackend(t, func(t *testing.T, open opener) {
		s := open(t)
		scenarioTable(t, s)
		require.NoError(t, s.AddColumn("t", "C", []string{"p", "q", "r"}))

		require.NoError(t, s.DeleteColumn("t", "A"))

		f, err := s.Select("t")
		require.NoError(t, err)
		assert.Equal(t, []string{"B", "C"}, f.Names())
		b, _ := f.Column("B")
		c, _ := f.Column("C")
		assert.Equal(t, frame.Float64{4.1, 5.1, 6.1}, b)
		assert.Equal(t, frame.String{"p", "q", "r"}, c)

		require.NoError(t, s.DeleteColumn("t", "A"), "deleting twice is a no-op")
	})
}

func TestScenarioDropTable(t *testing.T) {
	forEachBackend(t, func(t *testing.T, open opener) {
		s := open(t)
		scenarioTable(t, s)

		require.NoError(t, s.DropTable("t"))
		_, err := s.Select("t", coltab.WithRange(0, 1))
		assert.ErrorIs(t, err, coltab.ErrNotFound)
		assert.ErrorIs(t, s.DropTable("t"), coltab.ErrNotFound)
	})
}

func TestScenarioColumnMismatch(t *testing.T) {
	forEachBackend(t, func(t *testing.T, open opener) {
		s := open(t)
		scenarioTable(t, s)

		chunks := []*frame.Frame{
			frame.MustNew([]string{"A"}, frame.Int64{4}),
			frame.MustNew([]string{"A", "B", "Z"}, frame.Int64{4}, frame.Float64{1}, frame.Int64{0}),
			frame.MustNew([]string{"A", "Z"}, frame.Int64{4}, frame.Float64{1}),
		}
		for _, chunk := range chunks {
			err := s.Append("t", chunk)
			assert.ErrorIs(t, err, coltab.ErrColumnMismatch)
		}

		n, err := s.Len("t")
		require.NoError(t, err)
		assert.Equal(t, 3, n)
		f, _ := s.Select("t")
		a, _ := f.Column("A")
		assert.Equal(t, frame.Int64{1, 2, 3}, a)
	})
}

func TestAppendGrowsAndKeepsLengthsEqual(t *testing.T) {
	forEachBackend(t, func(t *testing.T, open opener) {
		s := open(t, coltab.WithStorage(coltab.StorageOptions{Compressor: "zlib", Level: 1, ChunkLen: 4}))
		require.NoError(t, s.CreateTable("t", coltab.WithColumnTypes(
			coltab.ColumnSpec{Name: "i", Type: "int32"},
			coltab.ColumnSpec{Name: "s", Type: "S3"},
			coltab.ColumnSpec{Name: "c", Type: "category"},
		)))

		prevCap := 0
		for k := 0; k < 10; k++ {
			chunk := frame.MustNew([]string{"c", "i", "s"},
				frame.NewCategorical([]string{"lo", "hi"}),
				frame.Int32{int32(2 * k), int32(2*k + 1)},
				frame.String{"ab", fmt.Sprint(k)},
			)
			require.NoError(t, s.Append("t", chunk))

			info, err := s.Describe("t")
			require.NoError(t, err)
			for _, ci := range info {
				assert.Equal(t, 2*(k+1), ci.Len, "column %s", ci.Name)
				assert.GreaterOrEqual(t, ci.Cap, ci.Len)
			}
			assert.GreaterOrEqual(t, info[0].Cap, prevCap, "capacity must not shrink")
			prevCap = info[0].Cap
		}

		f, err := s.Select("t", coltab.WithRange(17, -1))
		require.NoError(t, err)
		i, _ := f.Column("i")
		assert.Equal(t, frame.Int32{17, 18, 19}, i)
		str, _ := f.Column("s")
		assert.Equal(t, frame.String{"8", "ab", "9"}, str)
		c, _ := f.Column("c")
		cat := c.(frame.Categorical)
		assert.Equal(t, []string{"lo", "hi"}, cat.Categories, "labels keep first-seen order")
		assert.Equal(t, []string{"hi", "lo", "hi"}, cat.Labels())
		assert.Equal(t, &frame.RangeIndex{Start: 17, Stop: 20}, f.Index())
	})
}

func TestAppendEncodesBeforeWriting(t *testing.T) {
	forEachBackend(t, func(t *testing.T, open opener) {
		s := open(t)
		scenarioTable(t, s)

		err := s.Append("t", frame.MustNew([]string{"A", "B"}, frame.Int64{4}, frame.String{"x"}))
		assert.ErrorIs(t, err, coltab.ErrUnsupportedType)
		err = s.Append("t", frame.MustNew([]string{"B", "A"}, frame.Float64{1}, frame.Float64{1.5}))
		assert.ErrorIs(t, err, coltab.ErrUnsupportedType)

		info, err := s.Describe("t")
		require.NoError(t, err)
		for _, ci := range info {
			assert.Equal(t, 3, ci.Len)
		}

		require.NoError(t, s.Append("t", frame.MustNew([]string{"B", "A"}, frame.Int64{7}, frame.Float64{4})))
		f, _ := s.Select("t", coltab.WithRange(3, 4))
		a, _ := f.Column("A")
		b, _ := f.Column("B")
		assert.Equal(t, frame.Int64{4}, a)
		assert.Equal(t, frame.Float64{7}, b)
	})
}

func TestAppendEmpty(t *testing.T) {
	forEachBackend(t, func(t *testing.T, open opener) {
		s := open(t)
		require.NoError(t, s.CreateTable("empty"))
		assert.NoError(t, s.Append("empty", nil))
		assert.NoError(t, s.Append("empty", &frame.Frame{}))

		scenarioTable(t, s)
		assert.ErrorIs(t, s.Append("t", nil), coltab.ErrColumnMismatch)
		assert.ErrorIs(t, s.Append("missing", nil), coltab.ErrNotFound)
	})
}

func TestStrings(t *testing.T) {
	forEachBackend(t, func(t *testing.T, open opener) {
		s := open(t)
		require.NoError(t, s.CreateTable("t", coltab.WithColumnTypes(coltab.ColumnSpec{Name: "s", Type: "S2"})))

		assert.ErrorIs(t, s.Append("t", frame.MustNew([]string{"s"}, frame.String{"abc"})), coltab.ErrValueTooWide)
		require.NoError(t, s.Append("t", frame.MustNew([]string{"s"}, frame.String{"é", ""})))

		ser, err := s.SelectColumn("t", "s")
		require.NoError(t, err)
		assert.Equal(t, frame.String{"é", ""}, ser.Column)

		err = s.AddColumn("t", "u", []string{"ok", "日本"})
		assert.ErrorIs(t, err, coltab.ErrUnencodable)
	})
}

func TestLossyText(t *testing.T) {
	forEachBackend(t, func(t *testing.T, open opener) {
		s := open(t, coltab.WithLossyText())
		require.NoError(t, s.CreateTable("t"))
		require.NoError(t, s.AddColumn("t", "u", []string{"a日"}))

		ser, err := s.SelectColumn("t", "u")
		require.NoError(t, err)
		assert.Equal(t, frame.String{"a\x1a"}, ser.Column)
	})
}

func TestAddColumn(t *testing.T) {
	forEachBackend(t, func(t *testing.T, open opener) {
		s := open(t)
		scenarioTable(t, s)

		require.NoError(t, s.AddColumn("t", "k", 7), "scalars broadcast")
		require.NoError(t, s.AddColumn("t", "first", []bool{true, false, true}, coltab.WithPosition(0)))
		require.NoError(t, s.AddColumn("t", "f32", []int{1, 2, 3}, coltab.WithCoerce("float32"), coltab.WithPosition(99)))

		assert.ErrorIs(t, s.AddColumn("t", "A", []int{1, 2, 3}), coltab.ErrAlreadyExists)
		assert.ErrorIs(t, s.AddColumn("t", "short", []int{1, 2}), coltab.ErrLengthMismatch)
		assert.ErrorIs(t, s.AddColumn("t", "x", []float64{1.5, 2, 3}, coltab.WithCoerce("int64")), coltab.ErrUnsupportedType)
		assert.ErrorIs(t, s.AddColumn("t", "x", map[string]int{}), coltab.ErrUnsupportedType)
		assert.ErrorIs(t, s.AddColumn("nope", "x", 1), coltab.ErrNotFound)

		cols, err := s.Columns("t")
		require.NoError(t, err)
		assert.Equal(t, []string{"first", "A", "B", "k", "f32"}, cols)

		m, err := s.SelectMap("t")
		require.NoError(t, err)
		assert.Equal(t, frame.Int64{7, 7, 7}, m["k"])
		assert.Equal(t, frame.Float32{1, 2, 3}, m["f32"])
		assert.Equal(t, frame.Bool{true, false, true}, m["first"])
	})
}

func TestAddColumnToEmptyTable(t *testing.T) {
	forEachBackend(t, func(t *testing.T, open opener) {
		s := open(t)
		require.NoError(t, s.CreateTable("t"))
		require.NoError(t, s.AddColumn("t", "a", []int{1, 2}))
		n, err := s.Len("t")
		require.NoError(t, err)
		assert.Equal(t, 2, n)
	})
}

func TestCategoricalOptions(t *testing.T) {
	forEachBackend(t, func(t *testing.T, open opener) {
		s := open(t)
		require.NoError(t, s.CreateTable("t"))
		require.NoError(t, s.AddColumn("t", "c", []string{"b", "a", "b"}, coltab.WithCoerce("category")))
		require.NoError(t, s.AddColumn("t", "codes", frame.NewCategorical([]string{"x", "y", "x"}), coltab.WithoutCategories()))

		m, err := s.SelectMap("t")
		require.NoError(t, err)
		assert.Equal(t, []string{"b", "a", "b"}, m["c"].(frame.Categorical).Labels())
		assert.Equal(t, frame.Int32{0, 1, 0}, m["codes"], "labels were dropped")

		raw, err := s.SelectMap("t", coltab.WithoutEnumDecoding())
		require.NoError(t, err)
		assert.Equal(t, frame.Int32{1, 0, 1}, raw["c"])

		require.NoError(t, s.Append("t", frame.MustNew([]string{"c", "codes"},
			frame.String{"c"},
			frame.NewCategorical([]string{"y"}),
		)))
		m, err = s.SelectMap("t", coltab.WithRange(3, 4))
		require.NoError(t, err)
		c := m["c"].(frame.Categorical)
		assert.Equal(t, []string{"a", "b", "c"}, c.Categories)
		assert.Equal(t, []int32{2}, c.Codes)
		assert.Equal(t, frame.Int32{0}, m["codes"])

		info, err := s.Describe("t")
		require.NoError(t, err)
		assert.Equal(t, "category", info[0].Kind)
		assert.Equal(t, []string{"a", "b", "c"}, info[0].Categories)
		assert.Equal(t, "int32", info[1].Kind)
	})
}

func TestCategoricalUnset(t *testing.T) {
	forEachBackend(t, func(t *testing.T, open opener) {
		s := open(t)
		require.NoError(t, s.CreateTable("t", coltab.WithColumnTypes(coltab.ColumnSpec{Name: "c", Type: "category"}), coltab.WithInitialSize(2)))

		ser, err := s.SelectColumn("t", "c")
		require.NoError(t, err)
		c := ser.Column.(frame.Categorical)
		assert.Equal(t, []int32{-1, -1}, c.Codes, "new rows hold the unset code")

		chunk := frame.Categorical{Codes: []int32{-1, 0}, Categories: []string{"z"}}
		require.NoError(t, s.Append("t", frame.MustNew([]string{"c"}, chunk)))
		ser, _ = s.SelectColumn("t", "c")
		assert.Equal(t, []int32{-1, -1, -1, 0}, ser.Column.(frame.Categorical).Codes)
	})
}

func TestCreateTable(t *testing.T) {
	forEachBackend(t, func(t *testing.T, open opener) {
		s := open(t)

		data := frame.MustNew([]string{"z", "a"}, frame.Int8{1, 2}, frame.String{"p", "q"})
		require.NoError(t, s.CreateTable("grp/nested", coltab.WithInitialData(data)))
		cols, err := s.Columns("grp/nested")
		require.NoError(t, err)
		assert.Equal(t, []string{"z", "a"}, cols)

		assert.ErrorIs(t, s.CreateTable("grp/nested"), coltab.ErrAlreadyExists)
		assert.ErrorIs(t, s.CreateTable("grp/nested/z"), coltab.ErrAlreadyExists)
		assert.ErrorIs(t, s.CreateTable("grp"), coltab.ErrAlreadyExists)

		require.NoError(t, s.CreateTable("sized", coltab.WithInitialSize(4), coltab.WithColumnTypes(
			coltab.ColumnSpec{Name: "v", Type: "<u2"},
			coltab.ColumnSpec{Name: "ok", Type: "bool"},
		)))
		m, err := s.SelectMap("sized")
		require.NoError(t, err)
		assert.Equal(t, frame.Uint16{0, 0, 0, 0}, m["v"])
		assert.Equal(t, frame.Bool{false, false, false, false}, m["ok"])

		err = s.CreateTable("bad", coltab.WithColumnTypes(
			coltab.ColumnSpec{Name: "a", Type: "int64"},
			coltab.ColumnSpec{Name: "x", Type: "complex128"},
		))
		assert.ErrorIs(t, err, coltab.ErrUnsupportedType)
		err = s.CreateTable("dup", coltab.WithColumnTypes(
			coltab.ColumnSpec{Name: "a", Type: "int64"},
			coltab.ColumnSpec{Name: "a", Type: "float64"},
		))
		assert.ErrorIs(t, err, coltab.ErrAlreadyExists)

		require.NoError(t, s.CreateTable("blank"))
		tables, err := s.Tables()
		require.NoError(t, err)
		assert.Equal(t, []string{"blank", "grp/nested", "sized"}, tables, "rejected specs create nothing")

		require.NoError(t, s.CreateTable("bad", coltab.WithColumnTypes(
			coltab.ColumnSpec{Name: "a", Type: "int64"},
			coltab.ColumnSpec{Name: "x", Type: "float64"},
		)))
		cols, err = s.Columns("bad")
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "x"}, cols)
	})
}

func TestMaxSize(t *testing.T) {
	s := backends()["memory"](t)
	require.NoError(t, s.CreateTable("t", coltab.WithMaxSize(2), coltab.WithColumnTypes(coltab.ColumnSpec{Name: "a", Type: "int8"})))
	require.NoError(t, s.Append("t", frame.MustNew([]string{"a"}, frame.Int8{1, 2})))
	assert.ErrorIs(t, s.Append("t", frame.MustNew([]string{"a"}, frame.Int8{3})), coltab.ErrMaxSize)
	assert.ErrorIs(t, s.CreateTable("u", coltab.WithMaxSize(1), coltab.WithInitialSize(2)), coltab.ErrMaxSize)

	info, err := s.Describe("t")
	require.NoError(t, err)
	assert.Equal(t, 2, info[0].MaxLen)
	assert.Equal(t, 2, info[0].Len)
}

func TestDropTable(t *testing.T) {
	forEachBackend(t, func(t *testing.T, open opener) {
		s := open(t)
		require.NoError(t, s.CreateTable("outer/inner", coltab.WithColumnTypes(coltab.ColumnSpec{Name: "a", Type: "int8"})))

		assert.ErrorIs(t, s.DropTable("outer"), coltab.ErrNotATable)
		assert.ErrorIs(t, s.DropTable("outer/inner/a"), coltab.ErrNotATable)
		require.NoError(t, s.DropTable("outer/inner"))
		tables, _ := s.Tables()
		assert.Equal(t, []string{"outer"}, tables, "an empty group counts as a table")

		require.NoError(t, s.AddColumn("", "x", []int{1, 2}))
		require.NoError(t, s.AddColumn("/", "y", []int{3, 4}))
		assert.ErrorIs(t, s.DropTable("/"), coltab.ErrNotATable, "root still holds a group")
		require.NoError(t, s.DropTable("outer"))
		require.NoError(t, s.DropTable("/"))

		cols, err := s.Columns("/")
		require.NoError(t, err)
		assert.Empty(t, cols)
		tables, _ = s.Tables()
		assert.Empty(t, tables)
	})
}

func TestSelectOptions(t *testing.T) {
	forEachBackend(t, func(t *testing.T, open opener) {
		s := open(t)
		scenarioTable(t, s)

		f, err := s.Select("t", coltab.WithColumns("B", "A"), coltab.WithRange(1, 100))
		require.NoError(t, err)
		assert.Equal(t, []string{"B", "A"}, f.Names())
		assert.Equal(t, &frame.RangeIndex{Start: 1, Stop: 3}, f.Index())

		f, err = s.Select("t", coltab.WithRange(5, 9))
		require.NoError(t, err)
		assert.Equal(t, 0, f.Len())
		assert.Equal(t, &frame.RangeIndex{Start: 3, Stop: 3}, f.Index())

		f, err = s.Select("t", coltab.WithColumns())
		require.NoError(t, err)
		assert.Equal(t, 0, f.NumCols())
		assert.Nil(t, f.Index())

		_, err = s.Select("t", coltab.WithColumns("A", "nope"))
		assert.ErrorIs(t, err, coltab.ErrNotFound)
		_, err = s.SelectColumn("t", "nope")
		assert.ErrorIs(t, err, coltab.ErrNotFound)

		ser, err := s.SelectColumn("t", "B", coltab.WithRange(-4, 2))
		require.NoError(t, err)
		assert.Equal(t, frame.Float64{4.1, 5.1}, ser.Column)
		assert.Equal(t, &frame.RangeIndex{Start: 0, Stop: 2}, ser.Index)
	})
}

func TestRoundTrip(t *testing.T) {
	cols := map[string]frame.Column{
		"i8":  frame.Int8{-128, 0, 127},
		"i16": frame.Int16{-1, 2, 3},
		"i32": frame.Int32{1 << 30, 0, -5},
		"i64": frame.Int64{1 << 62, -1, 0},
		"u8":  frame.Uint8{0, 1, 255},
		"u16": frame.Uint16{65535, 1, 2},
		"u32": frame.Uint32{1 << 31, 2, 3},
		"u64": frame.Uint64{1 << 63, 0, 9},
		"f32": frame.Float32{1.5, -2.25, 0},
		"f64": frame.Float64{3.14159, -1e300, 0.1},
		"b":   frame.Bool{true, false, true},
		"s":   frame.String{"ÿ", "plain", ""},
		"cat": frame.NewCategoricalWith([]string{"lo", "", "hi"}, []string{"lo", "hi"}, true),
	}
	forEachBackend(t, func(t *testing.T, open opener) {
		s := open(t)
		f, err := frame.FromMap(cols)
		require.NoError(t, err)
		require.NoError(t, s.CreateTable("rt", coltab.WithInitialData(f)))

		got, err := s.SelectMap("rt")
		require.NoError(t, err)
		for name, want := range cols {
			assert.True(t, frame.Equal(want, got[name]), "column %s: got %#v want %#v", name, got[name], want)
		}
	})
}

func TestInlineEnums(t *testing.T) {
	h := memory.Open("")
	s, err := coltab.OpenHandle(context.Background(), h, "/")
	require.NoError(t, err)
	defer s.Close()
	assert.True(t, s.InlineEnums())

	require.NoError(t, s.CreateTable("t"))
	require.NoError(t, s.AddColumn("t", "c", frame.NewCategorical([]string{"a", "b"})))

	node, err := backend.Resolve(h.Root(), "/t/c")
	require.NoError(t, err)
	dt := node.(backend.Array).DType()
	assert.True(t, dt.IsEnum())
	assert.Equal(t, []string{"a", "b"}, dt.Enum)

	// A label list too large for the type is kept in the attribute only.
	big := make([]string, 0, 2)
	big = append(big, strings.Repeat("x", memory.InlineEnumLimit), "y")
	require.NoError(t, s.AddColumn("t", "big", frame.NewCategoricalWith([]string{"y", "y"}, big, true)))
	node, _ = backend.Resolve(h.Root(), "/t/big")
	assert.False(t, node.(backend.Array).DType().IsEnum())
	ser, err := s.SelectColumn("t", "big")
	require.NoError(t, err)
	assert.Equal(t, []string{"y", "y"}, ser.Column.(frame.Categorical).Labels())
}

func TestCorruptCategories(t *testing.T) {
	h := memory.Open("")
	s, err := coltab.OpenHandle(context.Background(), h, "/")
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.CreateTable("t"))
	require.NoError(t, s.AddColumn("t", "c", frame.NewCategorical([]string{"a", "b"})))
	node, _ := backend.Resolve(h.Root(), "/t/c")
	require.NoError(t, node.Attrs().Set("categories", []string{"a"}))

	_, err = s.Select("t")
	assert.ErrorIs(t, err, coltab.ErrCorruptMetadata)
	_, err = s.Select("t", coltab.WithoutEnumDecoding())
	assert.NoError(t, err)
}

func TestDesyncWarning(t *testing.T) {
	zh, err := zarr.Open(kv.NewMemory())
	require.NoError(t, err)
	handles := map[string]backend.Handle{
		"memory": memory.Open(""),
		"zarr":   zh,
	}
	for name, h := range handles {
		t.Run(name, func(t *testing.T) {
			core, logs := observer.New(zapcore.WarnLevel)
			storage := coltab.DefaultStorageOptions()
			storage.ChunkLen = 2
			s, err := coltab.OpenHandle(context.Background(), h, "/",
				coltab.WithLogger(zap.New(core)), coltab.WithStorage(storage))
			require.NoError(t, err)
			defer s.Close()

			scenarioTable(t, s)
			node, err := backend.Resolve(h.Root(), "/t/B")
			require.NoError(t, err)
			b := node.(backend.Array)
			require.NoError(t, b.Resize(8))
			tail := frame.Float64{7.1, 8.1, 9.1, 10.1, 11.1}
			enc, err := dtype.Encode(b.DType(), []float64(tail))
			require.NoError(t, err)
			require.NoError(t, b.WriteSlice(3, enc))
			capBefore := b.Cap()

			empty := frame.MustNew([]string{"A", "B"}, frame.Int64{}, frame.Float64{})
			require.NoError(t, s.Append("t", empty))
			assert.Equal(t, 1, logs.FilterMessage("column lengths out of sync").Len())
			assert.Equal(t, 8, b.Len(), "empty append leaves the longer column alone")
			assert.GreaterOrEqual(t, b.Cap(), capBefore)

			require.NoError(t, s.Append("t", frame.MustNew([]string{"A", "B"}, frame.Int64{4}, frame.Float64{99})))
			info, err := s.Describe("t")
			require.NoError(t, err)
			lens := map[string]int{}
			for _, ci := range info {
				lens[ci.Name] = ci.Len
			}
			assert.Equal(t, map[string]int{"A": 4, "B": 8}, lens)

			ser, err := s.SelectColumn("t", "B")
			require.NoError(t, err)
			assert.Equal(t, frame.Float64{4.1, 5.1, 6.1, 99, 8.1, 9.1, 10.1, 11.1}, ser.Column)
		})
	}
}

func TestClose(t *testing.T) {
	forEachBackend(t, func(t *testing.T, open opener) {
		s := open(t)
		scenarioTable(t, s)
		require.NoError(t, s.Close())
		require.NoError(t, s.Close(), "Close is idempotent")

		_, err := s.Select("t")
		assert.ErrorIs(t, err, coltab.ErrClosedStore)
		assert.ErrorIs(t, s.Append("t", nil), coltab.ErrClosedStore)
		assert.ErrorIs(t, s.CreateTable("u"), coltab.ErrClosedStore)
		assert.ErrorIs(t, s.AddColumn("t", "x", 1), coltab.ErrClosedStore)
		assert.ErrorIs(t, s.DeleteColumn("t", "A"), coltab.ErrClosedStore)
		assert.ErrorIs(t, s.DropTable("t"), coltab.ErrClosedStore)
		_, err = s.Tables()
		assert.ErrorIs(t, err, coltab.ErrClosedStore)
		assert.ErrorIs(t, s.Tree(&bytes.Buffer{}), coltab.ErrClosedStore)
	})
}

func TestOpenURIs(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	uri := "file://" + dir + "::/raw"

	err := coltab.With(ctx, uri, func(s *coltab.Store) error {
		assert.Equal(t, "/raw", s.Root())
		scenarioTable(t, s)
		return nil
	})
	require.NoError(t, err)

	err = coltab.With(ctx, dir, func(s *coltab.Store) error {
		tables, err := s.Tables()
		require.NoError(t, err)
		assert.Equal(t, []string{"raw/t"}, tables)
		return nil
	})
	require.NoError(t, err)

	err = coltab.With(ctx, uri, func(s *coltab.Store) error {
		f, err := s.Select("t")
		require.NoError(t, err)
		assert.Equal(t, 3, f.Len())
		return errors.New("from callback")
	})
	assert.EqualError(t, err, "from callback")

	const name = "coltab-open-test"
	defer memory.Forget(name)
	require.NoError(t, coltab.With(ctx, "mem://"+name, func(s *coltab.Store) error {
		return s.CreateTable("shared")
	}))
	require.NoError(t, coltab.With(ctx, "mem://"+name, func(s *coltab.Store) error {
		tables, err := s.Tables()
		assert.Equal(t, []string{"shared"}, tables)
		return err
	}))

	_, err = coltab.Open(ctx, "ftp://host/x")
	assert.ErrorIs(t, err, coltab.ErrInvalidURI)
}

func TestTree(t *testing.T) {
	forEachBackend(t, func(t *testing.T, open opener) {
		s := open(t)
		scenarioTable(t, s)
		require.NoError(t, s.CreateTable("g/h"))

		var buf bytes.Buffer
		require.NoError(t, s.Tree(&buf))
		want := "/\n" +
			"  g\n" +
			"    h\n" +
			"  t\n" +
			"    A (3,) <i8\n" +
			"    B (3,) <f8\n"
		assert.Equal(t, want, buf.String())
	})
}

func TestObservability(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))

	s := backends()["memory"](t, coltab.WithMetrics(m), coltab.WithTracer(tp.Tracer("test")))
	scenarioTable(t, s)
	_, err := s.Select("t")
	require.NoError(t, err)
	_, err = s.Select("missing")
	require.Error(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Operations.WithLabelValues("append", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Operations.WithLabelValues("select", "error")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.Rows.WithLabelValues("written")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.Rows.WithLabelValues("read")))

	var names []string
	for _, span := range rec.Ended() {
		names = append(names, span.Name())
	}
	assert.Equal(t, []string{"coltab.create_table", "coltab.append", "coltab.select", "coltab.select"}, names)
}

func TestInspect(t *testing.T) {
	forEachBackend(t, func(t *testing.T, open opener) {
		s := open(t)
		scenarioTable(t, s)

		var buf bytes.Buffer
		require.NoError(t, s.Inspect(&buf))
		out := buf.String()
		assert.Contains(t, out, "Group \"/t\":\n")
		assert.Contains(t, out, "    Members: 2\n")
		assert.Contains(t, out, "    Attrs: map[columns:[A B]]\n")
		assert.Contains(t, out, "    Array \"A\":\n")
		assert.Contains(t, out, "      Shape: (3,) of ")
		assert.Contains(t, out, "      DType: <i8\n")
	})
}

func TestOpenKV(t *testing.T) {
	store := kv.NewMemory()
	s, err := coltab.OpenKV(context.Background(), store, "/data")
	require.NoError(t, err)
	scenarioTable(t, s)
	require.NoError(t, s.Close())

	_, err = store.Get(context.Background(), "data/t/A/.zarray")
	require.NoError(t, err, "the key/value store stays open and holds the table")

	s, err = coltab.OpenKV(context.Background(), store, "/data")
	require.NoError(t, err)
	defer s.Close()
	n, err := s.Len("t")
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestSelectColumnKeepsCallerOptions(t *testing.T) {
	forEachBackend(t, func(t *testing.T, open opener) {
		s := open(t)
		scenarioTable(t, s)

		opts := make([]coltab.SelectOption, 1, 2)
		opts[0] = coltab.WithRange(0, 2)
		ser, err := s.SelectColumn("t", "B", opts...)
		require.NoError(t, err)
		assert.Equal(t, frame.Float64{4.1, 5.1}, ser.Column)
		assert.Nil(t, opts[:2][1], "spare capacity of the caller's slice is untouched")

		f, err := s.Select("t", opts...)
		require.NoError(t, err)
		assert.Equal(t, []string{"A", "B"}, f.Names())
	})
}
