package coltab

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/robert-malhotra/go-coltab/frame"
	"github.com/robert-malhotra/go-coltab/internal/backend"
	"github.com/robert-malhotra/go-coltab/internal/codec"
	"github.com/robert-malhotra/go-coltab/internal/dtype"
)

// Attribute keys.
const (
	// attrColumns holds a table's column order.
	attrColumns = "columns"
	// attrCategories holds a categorical column's labels, by code.
	attrCategories = "categories"
)

// categoryType is the ColumnSpec type of categorical columns.
const categoryType = "category"

// table is a resolved table group with its columns in order.
type table struct {
	g      backend.Group
	names  []string
	arrays map[string]backend.Array
}

// table resolves name to a group and loads its columns.
func (s *Store) table(name string) (*table, error) {
	node, err := backend.Resolve(s.root, name)
	if err != nil {
		return nil, fmt.Errorf("table %q: %w", name, err)
	}
	g, ok := node.(backend.Group)
	if !ok {
		return nil, fmt.Errorf("%w: %q is an array", ErrNotATable, name)
	}
	return s.loadTable(g)
}

func (s *Store) loadTable(g backend.Group) (*table, error) {
	members, err := g.Members()
	if err != nil {
		return nil, err
	}
	t := &table{g: g, arrays: make(map[string]backend.Array, len(members))}
	for _, m := range members {
		child, err := g.Child(m)
		if err != nil {
			return nil, err
		}
		if arr, ok := child.(backend.Array); ok {
			t.arrays[m] = arr
		}
	}

	order, _, err := backend.StringList(g.Attrs(), attrColumns)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorruptMetadata, g.Path(), err)
	}
	seen := make(map[string]bool, len(t.arrays))
	for _, name := range order {
		if _, ok := t.arrays[name]; ok && !seen[name] {
			t.names = append(t.names, name)
			seen[name] = true
		}
	}
	for _, m := range members {
		if _, ok := t.arrays[m]; ok && !seen[m] {
			t.names = append(t.names, m)
		}
	}
	return t, nil
}

// isTable reports whether every child of t's group is a column.
func (t *table) isTable() (bool, error) {
	members, err := t.g.Members()
	if err != nil {
		return false, err
	}
	return len(members) == len(t.arrays), nil
}

// length returns the length of the first column, or zero.
func (t *table) length() int {
	if len(t.names) == 0 {
		return 0
	}
	return t.arrays[t.names[0]].Len()
}

func (t *table) saveOrder() error {
	return t.g.Attrs().Set(attrColumns, append([]string{}, t.names...))
}

// target describes an existing column for codec.Conform.
func target(arr backend.Array) (codec.Target, error) {
	dt := arr.DType()
	cats, ok, err := backend.StringList(arr.Attrs(), attrCategories)
	if err != nil {
		return codec.Target{}, fmt.Errorf("%w: %s: %v", ErrCorruptMetadata, arr.Path(), err)
	}
	switch {
	case ok:
		return codec.Target{DType: dt, Categorical: true, Categories: cats}, nil
	case dt.IsEnum():
		return codec.Target{DType: dt, Categorical: true, Categories: dt.Enum}, nil
	}
	return codec.Target{DType: dt}, nil
}

// arrayType applies the backend's inline enumeration limit to dt.
func (s *Store) arrayType(dt dtype.DataType) dtype.DataType {
	limit := s.h.InlineEnumLimit()
	if dt.IsEnum() && (limit <= 0 || backend.EnumSize(dt) > limit) {
		return dt.Storage()
	}
	return dt
}

// CreateTable creates the table name. Nested names such as "a/b" create
// intermediate groups.
//
// With WithColumnTypes, one empty column of WithInitialSize rows is made
// per ColumnSpec; with WithInitialData, the frame's columns are added in order;
// with neither, the table has no columns. It fails with ErrAlreadyExists
// if name is an array or a non-empty group.
func (s *Store) CreateTable(name string, opts ...TableOption) (err error) {
	defer s.track("create_table", name)(&err)
	if err := s.check(); err != nil {
		return err
	}
	o := &tableOptions{}
	for _, opt := range opts {
		opt(o)
	}
	if o.maxSize > 0 && o.initSize > o.maxSize {
		return fmt.Errorf("%w: initial size %d exceeds max size %d", ErrMaxSize, o.initSize, o.maxSize)
	}
	if err := s.checkColumnSpecs(o.columns); err != nil {
		return err
	}

	if node, err := backend.Resolve(s.root, name); err == nil {
		g, ok := node.(backend.Group)
		if !ok {
			return fmt.Errorf("%w: cannot create table %q, an array exists", ErrAlreadyExists, name)
		}
		members, err := g.Members()
		if err != nil {
			return err
		}
		if len(members) > 0 {
			return fmt.Errorf("%w: group %q is not empty", ErrAlreadyExists, name)
		}
	} else if !errors.Is(err, backend.ErrNotFound) {
		return err
	}

	g, err := backend.RequireGroup(s.root, name)
	if err != nil {
		return err
	}
	t, err := s.loadTable(g)
	if err != nil {
		return err
	}

	switch {
	case len(o.columns) > 0:
		for _, spec := range o.columns {
			if err := s.createEmptyColumn(t, spec, o.initSize, o.maxSize); err != nil {
				return err
			}
		}
		if err := t.saveOrder(); err != nil {
			return err
		}
	case o.data != nil:
		for _, colname := range o.data.Names() {
			col, _ := o.data.Column(colname)
			if err := s.addColumn(t, colname, col, &columnOptions{maxSize: o.maxSize}); err != nil {
				return err
			}
		}
	}
	s.log.Debug("created table", zap.String("table", name), zap.Strings("columns", t.names))
	return nil
}

// columnSpec resolves the storage layout of an empty column.
func (s *Store) columnSpec(spec ColumnSpec, n, max int) (backend.ArraySpec, bool, error) {
	arraySpec := backend.ArraySpec{Len: n, MaxLen: max, Storage: s.storage}
	if err := backend.CheckName(spec.Name); err != nil {
		return arraySpec, false, fmt.Errorf("column %q: %w", spec.Name, err)
	}
	if strings.EqualFold(spec.Type, categoryType) || strings.EqualFold(spec.Type, "categorical") {
		fill, err := dtype.Encode(codec.CodeType, int32(codec.Unset))
		if err != nil {
			return arraySpec, false, err
		}
		arraySpec.DType = codec.CodeType
		arraySpec.Fill = fill
		return arraySpec, true, nil
	}
	dt, err := dtype.Parse(spec.Type)
	if err != nil {
		return arraySpec, false, fmt.Errorf("%w: column %q: %v", ErrUnsupportedType, spec.Name, err)
	}
	arraySpec.DType = dt
	return arraySpec, false, nil
}

// checkColumnSpecs validates every spec so that a bad one creates nothing.
func (s *Store) checkColumnSpecs(specs []ColumnSpec) error {
	seen := make(map[string]bool, len(specs))
	for _, spec := range specs {
		if seen[spec.Name] {
			return fmt.Errorf("%w: column %q given twice", ErrAlreadyExists, spec.Name)
		}
		seen[spec.Name] = true
		if _, _, err := s.columnSpec(spec, 0, 0); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) createEmptyColumn(t *table, spec ColumnSpec, n, max int) error {
	if _, ok := t.arrays[spec.Name]; ok {
		return fmt.Errorf("%w: column %q", ErrAlreadyExists, spec.Name)
	}
	arraySpec, categorical, err := s.columnSpec(spec, n, max)
	if err != nil {
		return err
	}
	arr, err := t.g.CreateArray(spec.Name, arraySpec)
	if err != nil {
		return err
	}
	if categorical {
		if err := arr.Attrs().Set(attrCategories, []string{}); err != nil {
			return err
		}
	}
	t.arrays[spec.Name] = arr
	t.names = append(t.names, spec.Name)
	return nil
}

// Append writes the rows of chunk at the end of table name. The chunk's
// column set must equal the table's; otherwise ErrColumnMismatch is
// returned and nothing is written.
//
// Every column is encoded before any is written, so type errors leave the
// table untouched. A backend failure part way through the writes can
// leave columns of unequal length.
func (s *Store) Append(name string, chunk *frame.Frame) (err error) {
	rows := 0
	if chunk != nil {
		rows = chunk.Len()
	}
	defer s.track("append", name, attribute.Int("coltab.rows", rows))(&err)
	if err := s.check(); err != nil {
		return err
	}
	t, err := s.table(name)
	if err != nil {
		return err
	}
	if chunk == nil {
		chunk = &frame.Frame{}
	}
	if err := matchColumns(t.names, chunk.Names()); err != nil {
		return fmt.Errorf("append to %q: %w", name, err)
	}
	if len(t.names) == 0 {
		return nil
	}

	offset := t.length()
	for _, colname := range t.names[1:] {
		if n := t.arrays[colname].Len(); n != offset {
			s.log.Warn("column lengths out of sync",
				zap.String("table", name),
				zap.String("column", colname),
				zap.Int("length", n),
				zap.Int("expected", offset))
		}
	}

	type pending struct {
		arr     backend.Array
		data    []byte
		cats    []string
		catsNew bool
	}
	writes := make([]pending, 0, len(t.names))
	for _, colname := range t.names {
		arr := t.arrays[colname]
		col, _ := chunk.Column(colname)
		tgt, err := target(arr)
		if err != nil {
			return err
		}
		conformed, cats, err := codec.Conform(col, tgt)
		if err != nil {
			return fmt.Errorf("column %q: %w", colname, err)
		}
		dt := tgt.DType.Storage()
		enc, err := codec.Encode(conformed, codec.Options{
			Coerce:         &dt,
			DropCategories: !tgt.Categorical,
			Charset:        s.charset,
		})
		if err != nil {
			return fmt.Errorf("column %q: %w", colname, err)
		}
		writes = append(writes, pending{
			arr:     arr,
			data:    enc.Data,
			cats:    cats,
			catsNew: tgt.Categorical && len(cats) != len(tgt.Categories),
		})
	}

	total := 0
	for _, w := range writes {
		if end := offset + rows; end > w.arr.Len() {
			if err := w.arr.Resize(end); err != nil {
				return fmt.Errorf("column %q: %w", w.arr.Name(), err)
			}
		}
		if err := w.arr.WriteSlice(offset, w.data); err != nil {
			return fmt.Errorf("column %q: %w", w.arr.Name(), err)
		}
		if w.catsNew {
			if err := w.arr.Attrs().Set(attrCategories, w.cats); err != nil {
				return err
			}
		}
		total += len(w.data)
	}
	s.metrics.Written(rows, total)
	return nil
}

// matchColumns checks that got names the same set of columns as want.
func matchColumns(want, got []string) error {
	have := make(map[string]bool, len(want))
	for _, n := range want {
		have[n] = true
	}
	var extra, missing []string
	for _, n := range got {
		if !have[n] {
			extra = append(extra, n)
		}
		delete(have, n)
	}
	for _, n := range want {
		if have[n] {
			missing = append(missing, n)
		}
	}
	if len(extra) == 0 && len(missing) == 0 {
		return nil
	}
	return fmt.Errorf("%w: missing %v, unexpected %v", ErrColumnMismatch, missing, extra)
}

// AddColumn adds column colname to table name. values is a frame.Column
// or any value frame.Of accepts. A single value is repeated to the table
// length; otherwise values must have as many rows as the table, unless
// the table has no columns yet.
//
// It fails with ErrAlreadyExists if the column exists.
func (s *Store) AddColumn(name, colname string, values any, opts ...ColumnOption) (err error) {
	defer s.track("add_column", name, attribute.String("coltab.column", colname))(&err)
	if err := s.check(); err != nil {
		return err
	}
	o := &columnOptions{}
	for _, opt := range opts {
		opt(o)
	}
	t, err := s.table(name)
	if err != nil {
		return err
	}
	col, err := frame.Of(values)
	if err != nil {
		return fmt.Errorf("column %q: %w", colname, err)
	}
	if frame.IsScalar(values) && len(t.names) > 0 {
		if col, err = frame.Repeat(col, t.length()); err != nil {
			return err
		}
	}
	return s.addColumn(t, colname, col, o)
}

func (s *Store) addColumn(t *table, colname string, col frame.Column, o *columnOptions) error {
	if _, ok := t.arrays[colname]; ok {
		return fmt.Errorf("%w: column %q", ErrAlreadyExists, colname)
	}
	if _, err := t.g.Child(colname); err == nil {
		return fmt.Errorf("%w: %q is a group", ErrAlreadyExists, colname)
	}
	if len(t.names) > 0 && col.Len() != t.length() {
		return fmt.Errorf("%w: column %q has %d rows, table has %d", ErrLengthMismatch, colname, col.Len(), t.length())
	}

	opts := codec.Options{DropCategories: o.dropCategories, Charset: s.charset}
	if o.coerce != "" {
		if strings.EqualFold(o.coerce, categoryType) {
			if c, ok := col.(frame.String); ok {
				col = frame.NewCategorical(c)
			} else if _, ok := col.(frame.Categorical); !ok {
				return fmt.Errorf("%w: %s values cannot be stored as %s", ErrUnsupportedType, col.Kind(), categoryType)
			}
		} else {
			dt, err := dtype.Parse(o.coerce)
			if err != nil {
				return fmt.Errorf("%w: %v", ErrUnsupportedType, err)
			}
			opts.Coerce = &dt
		}
	}
	enc, err := codec.Encode(col, opts)
	if err != nil {
		return fmt.Errorf("column %q: %w", colname, err)
	}

	arr, err := t.g.CreateArray(colname, backend.ArraySpec{
		Len:     enc.Len,
		MaxLen:  o.maxSize,
		DType:   s.arrayType(enc.DType),
		Fill:    enc.Fill,
		Storage: s.storage,
		Data:    enc.Data,
	})
	if err != nil {
		return err
	}
	if enc.Categorical && !o.dropCategories {
		if err := arr.Attrs().Set(attrCategories, enc.Categories); err != nil {
			return err
		}
	}

	pos := len(t.names)
	if o.hasPosition && o.position >= 0 && o.position < pos {
		pos = o.position
	}
	t.names = slices.Insert(t.names, pos, colname)
	t.arrays[colname] = arr
	if err := t.saveOrder(); err != nil {
		return err
	}
	s.metrics.Written(enc.Len, len(enc.Data))
	return nil
}

// DeleteColumn removes column colname from table name. Removing a column
// that does not exist is not an error.
func (s *Store) DeleteColumn(name, colname string) (err error) {
	defer s.track("delete_column", name, attribute.String("coltab.column", colname))(&err)
	if err := s.check(); err != nil {
		return err
	}
	t, err := s.table(name)
	if err != nil {
		return err
	}
	return s.deleteColumn(t, colname)
}

func (s *Store) deleteColumn(t *table, colname string) error {
	if _, ok := t.arrays[colname]; ok {
		if err := t.g.Delete(colname); err != nil {
			return err
		}
		delete(t.arrays, colname)
	}
	i := slices.Index(t.names, colname)
	if i < 0 {
		return nil
	}
	t.names = slices.Delete(t.names, i, i+1)
	return t.saveOrder()
}

// DropTable removes table name and its columns. The name must refer to a
// group whose members are all columns, else ErrNotATable. Dropping the
// store's root table deletes its columns and keeps the group.
func (s *Store) DropTable(name string) (err error) {
	defer s.track("drop_table", name)(&err)
	if err := s.check(); err != nil {
		return err
	}
	t, err := s.table(name)
	if err != nil {
		return err
	}
	ok, err := t.isTable()
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %q contains groups", ErrNotATable, name)
	}

	if t.g.Path() == s.root.Path() {
		for _, colname := range append([]string{}, t.names...) {
			if err := s.deleteColumn(t, colname); err != nil {
				return err
			}
		}
		return t.g.Attrs().Delete(attrColumns)
	}

	parts := backend.SplitPath(name)
	parentNode, err := backend.Resolve(s.root, strings.Join(parts[:len(parts)-1], "/"))
	if err != nil {
		return err
	}
	return parentNode.(backend.Group).Delete(parts[len(parts)-1])
}
