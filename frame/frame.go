package frame

import (
	"fmt"
	"sort"
)

// RangeIndex labels rows with the integers [Start, Stop).
type RangeIndex struct {
	Start int
	Stop  int
}

// Len returns the number of labels.
func (r RangeIndex) Len() int {
	return r.Stop - r.Start
}

// At returns the label of row i.
func (r RangeIndex) At(i int) int {
	return r.Start + i
}

// Frame is an ordered set of named, equal-length columns.
type Frame struct {
	names []string
	cols  map[string]Column
	index *RangeIndex
}

// New builds a frame from parallel name and column lists.
func New(names []string, cols []Column) (*Frame, error) {
	if len(names) != len(cols) {
		return nil, fmt.Errorf("%d names for %d columns", len(names), len(cols))
	}
	f := &Frame{cols: make(map[string]Column, len(cols))}
	for i, name := range names {
		if err := f.Add(name, cols[i]); err != nil {
			return nil, err
		}
	}
	return f, nil
}

// FromMap builds a frame from a map of columns, ordered by name.
func FromMap(m map[string]Column) (*Frame, error) {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	cols := make([]Column, len(names))
	for i, name := range names {
		cols[i] = m[name]
	}
	return New(names, cols)
}

// MustNew is like New but panics on error. Intended for tests and
// literals.
func MustNew(names []string, cols ...Column) *Frame {
	f, err := New(names, cols)
	if err != nil {
		panic(err)
	}
	return f
}

// Add appends a column. It must match the length of the existing columns.
func (f *Frame) Add(name string, col Column) error {
	if f.cols == nil {
		f.cols = make(map[string]Column)
	}
	if _, dup := f.cols[name]; dup {
		return fmt.Errorf("%w: %q", ErrDuplicateColumn, name)
	}
	if len(f.names) > 0 && col.Len() != f.Len() {
		return fmt.Errorf("%w: column %q has %d rows, frame has %d", ErrLengthMismatch, name, col.Len(), f.Len())
	}
	f.names = append(f.names, name)
	f.cols[name] = col
	return nil
}

// Names returns the column names in order.
func (f *Frame) Names() []string {
	return append([]string(nil), f.names...)
}

// Column returns the named column.
func (f *Frame) Column(name string) (Column, bool) {
	c, ok := f.cols[name]
	return c, ok
}

// Columns returns the columns in order.
func (f *Frame) Columns() []Column {
	out := make([]Column, len(f.names))
	for i, name := range f.names {
		out[i] = f.cols[name]
	}
	return out
}

// NumCols returns the number of columns.
func (f *Frame) NumCols() int {
	return len(f.names)
}

// Len returns the number of rows.
func (f *Frame) Len() int {
	if len(f.names) == 0 {
		return 0
	}
	return f.cols[f.names[0]].Len()
}

// Index returns the row index, or nil if the frame has none.
func (f *Frame) Index() *RangeIndex {
	return f.index
}

// SetIndex sets the row index. A nil index removes it.
func (f *Frame) SetIndex(idx *RangeIndex) {
	f.index = idx
}

// Row returns row i as a map of column name to value.
func (f *Frame) Row(i int) map[string]any {
	row := make(map[string]any, len(f.names))
	for _, name := range f.names {
		row[name] = f.cols[name].Value(i)
	}
	return row
}

// Series is a single named column with an optional row index.
type Series struct {
	Name   string
	Column Column
	Index  *RangeIndex
}

// Len returns the number of rows.
func (s *Series) Len() int {
	return s.Column.Len()
}
