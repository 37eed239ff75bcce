package coltab

import (
	"fmt"
	"io"
	"strings"

	"github.com/robert-malhotra/go-coltab/frame"
	"github.com/robert-malhotra/go-coltab/internal/backend"
)

// ColumnInfo describes a stored column.
type ColumnInfo struct {
	Name       string   `json:"name" yaml:"name"`
	DType      string   `json:"dtype" yaml:"dtype"`
	Kind       string   `json:"kind" yaml:"kind"`
	Len        int      `json:"len" yaml:"len"`
	Cap        int      `json:"cap" yaml:"cap"`
	MaxLen     int      `json:"max_len,omitempty" yaml:"max_len,omitempty"`
	Categories []string `json:"categories,omitempty" yaml:"categories,omitempty"`
}

// Tables returns the names of all tables below the store root, in sorted
// order. A table is a group whose members are all columns; the root counts
// only if it has columns.
func (s *Store) Tables() ([]string, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	var out []string
	err := backend.Walk(s.root, func(n backend.Node, depth int) error {
		g, ok := n.(backend.Group)
		if !ok {
			return nil
		}
		t, err := s.loadTable(g)
		if err != nil {
			return err
		}
		ok, err = t.isTable()
		if err != nil || !ok {
			return err
		}
		if depth == 0 && len(t.names) == 0 {
			return nil
		}
		out = append(out, s.relative(g.Path()))
		return backend.SkipGroup
	})
	return out, err
}

// relative returns path relative to the store root.
func (s *Store) relative(path string) string {
	root := s.root.Path()
	if root == "/" {
		return strings.TrimPrefix(path, "/")
	}
	return strings.TrimPrefix(strings.TrimPrefix(path, root), "/")
}

// Columns returns the column names of table name in order.
func (s *Store) Columns(name string) ([]string, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	t, err := s.table(name)
	if err != nil {
		return nil, err
	}
	return append([]string{}, t.names...), nil
}

// Len returns the number of rows in table name.
func (s *Store) Len(name string) (int, error) {
	if err := s.check(); err != nil {
		return 0, err
	}
	t, err := s.table(name)
	if err != nil {
		return 0, err
	}
	return t.length(), nil
}

// Describe returns the columns of table name in order.
func (s *Store) Describe(name string) ([]ColumnInfo, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	t, err := s.table(name)
	if err != nil {
		return nil, err
	}
	out := make([]ColumnInfo, 0, len(t.names))
	for _, colname := range t.names {
		arr := t.arrays[colname]
		tgt, err := target(arr)
		if err != nil {
			return nil, err
		}
		info := ColumnInfo{
			Name:   colname,
			DType:  arr.DType().String(),
			Kind:   kindOf(arr),
			Len:    arr.Len(),
			Cap:    arr.Cap(),
			MaxLen: arr.MaxLen(),
		}
		if tgt.Categorical {
			info.Kind = frame.KindCategorical.String()
			info.Categories = tgt.Categories
		}
		out = append(out, info)
	}
	return out, nil
}

// kindOf names the column kind Select returns for arr.
func kindOf(arr backend.Array) string {
	col, _, err := readColumn(arr, 0, 0, false)
	if err != nil {
		return "unknown"
	}
	return col.Kind().String()
}

// Tree writes an indented listing of the groups and columns below the
// store root.
func (s *Store) Tree(w io.Writer) error {
	if err := s.check(); err != nil {
		return err
	}
	return backend.Walk(s.root, func(n backend.Node, depth int) error {
		indent := strings.Repeat("  ", depth)
		var err error
		switch o := n.(type) {
		case backend.Group:
			name := o.Name()
			if depth == 0 {
				name = o.Path()
			}
			_, err = fmt.Fprintf(w, "%s%s\n", indent, name)
		case backend.Array:
			_, err = fmt.Fprintf(w, "%s%s (%d,) %s\n", indent, o.Name(), o.Len(), o.DType())
		}
		return err
	})
}

// Inspect writes every group and array below the store root with its
// attributes. It reads metadata only and is meant for debugging stores
// that fail to open as tables.
func (s *Store) Inspect(w io.Writer) error {
	if err := s.check(); err != nil {
		return err
	}
	return backend.Walk(s.root, func(n backend.Node, depth int) error {
		indent := strings.Repeat("  ", depth)
		attrs, err := attrMap(n.Attrs())
		if err != nil {
			fmt.Fprintf(w, "%s%q: ERROR reading attributes: %v\n", indent, n.Path(), err)
			attrs = nil
		}
		switch o := n.(type) {
		case backend.Group:
			members, err := o.Members()
			if err != nil {
				fmt.Fprintf(w, "%sGroup %q: ERROR getting members: %v\n", indent, o.Path(), err)
				return backend.SkipGroup
			}
			fmt.Fprintf(w, "%sGroup %q:\n", indent, o.Path())
			fmt.Fprintf(w, "%s  Members: %d\n", indent, len(members))
			fmt.Fprintf(w, "%s  Attrs: %v\n", indent, attrs)
		case backend.Array:
			fmt.Fprintf(w, "%sArray %q:\n", indent, o.Name())
			fmt.Fprintf(w, "%s  Shape: (%d,) of %d allocated\n", indent, o.Len(), o.Cap())
			fmt.Fprintf(w, "%s  DType: %s\n", indent, o.DType())
			fmt.Fprintf(w, "%s  Attrs: %v\n", indent, attrs)
		}
		return nil
	})
}

func attrMap(a backend.Attributes) (map[string]any, error) {
	keys, err := a.Keys()
	if err != nil {
		return nil, err
	}
	out := make(map[string]any, len(keys))
	for _, k := range keys {
		v, _, err := a.Get(k)
		if err != nil {
			return nil, err
		}
		out[k] = v
	}
	return out, nil
}
