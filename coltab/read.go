package coltab

import (
	"fmt"
	"slices"

	"go.opentelemetry.io/otel/attribute"

	"github.com/robert-malhotra/go-coltab/frame"
	"github.com/robert-malhotra/go-coltab/internal/backend"
	"github.com/robert-malhotra/go-coltab/internal/codec"
)

// column is one decoded column of a selection.
type column struct {
	name string
	col  frame.Column
	lo   int
}

// Select reads rows of table name as a frame. The frame's index holds the
// row numbers read; it is nil when no columns were selected.
func (s *Store) Select(name string, opts ...SelectOption) (f *frame.Frame, err error) {
	defer s.track("select", name)(&err)
	cols, err := s.read(name, opts)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(cols))
	values := make([]frame.Column, len(cols))
	for i, c := range cols {
		names[i] = c.name
		values[i] = c.col
	}
	f, err = frame.New(names, values)
	if err != nil {
		return nil, fmt.Errorf("table %q: %w", name, err)
	}
	if len(cols) > 0 {
		f.SetIndex(&frame.RangeIndex{Start: cols[0].lo, Stop: cols[0].lo + cols[0].col.Len()})
	}
	return f, nil
}

// SelectColumn reads rows of one column as a series. WithColumns is
// ignored.
func (s *Store) SelectColumn(name, colname string, opts ...SelectOption) (ser *frame.Series, err error) {
	defer s.track("select", name, attribute.String("coltab.column", colname))(&err)
	cols, err := s.read(name, append(slices.Clone(opts), WithColumns(colname)))
	if err != nil {
		return nil, err
	}
	c := cols[0]
	return &frame.Series{
		Name:   c.name,
		Column: c.col,
		Index:  &frame.RangeIndex{Start: c.lo, Stop: c.lo + c.col.Len()},
	}, nil
}

// SelectMap reads rows of table name as a map from column name to column.
func (s *Store) SelectMap(name string, opts ...SelectOption) (m map[string]frame.Column, err error) {
	defer s.track("select", name)(&err)
	cols, err := s.read(name, opts)
	if err != nil {
		return nil, err
	}
	m = make(map[string]frame.Column, len(cols))
	for _, c := range cols {
		m[c.name] = c.col
	}
	return m, nil
}

func (s *Store) read(name string, opts []SelectOption) ([]column, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	o := defaultSelectOptions()
	for _, opt := range opts {
		opt(o)
	}
	t, err := s.table(name)
	if err != nil {
		return nil, err
	}
	names := o.columns
	if names == nil {
		names = t.names
	}

	out := make([]column, 0, len(names))
	rows, bytes := 0, 0
	for _, colname := range names {
		arr, ok := t.arrays[colname]
		if !ok {
			return nil, fmt.Errorf("%w: column %q in table %q", ErrNotFound, colname, name)
		}
		lo, hi := clampRange(o.lo, o.hi, arr.Len())
		col, n, err := readColumn(arr, lo, hi, o.decodeEnum)
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", colname, err)
		}
		out = append(out, column{name: colname, col: col, lo: lo})
		rows = max(rows, col.Len())
		bytes += n
	}
	s.metrics.Read(rows, bytes)
	return out, nil
}

// clampRange resolves [lo, hi) against a column of length n.
func clampRange(lo, hi, n int) (int, int) {
	if hi < 0 || hi > n {
		hi = n
	}
	lo = max(0, min(lo, hi))
	return lo, hi
}

// readColumn decodes rows [lo, hi) of arr. It also returns the number of
// raw bytes read.
func readColumn(arr backend.Array, lo, hi int, decodeEnum bool) (frame.Column, int, error) {
	raw, err := arr.ReadSlice(lo, hi)
	if err != nil {
		return nil, 0, err
	}
	cats, ok, err := backend.StringList(arr.Attrs(), attrCategories)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrCorruptMetadata, err)
	}
	col, err := codec.Decode(raw, hi-lo, arr.DType(), codec.Meta{
		Categories:    cats,
		HasCategories: ok,
		DecodeEnum:    decodeEnum,
	})
	if err != nil {
		return nil, 0, err
	}
	return col, len(raw), nil
}
