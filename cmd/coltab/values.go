package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/robert-malhotra/go-coltab/coltab"
	"github.com/robert-malhotra/go-coltab/internal/dtype"
)

// parseColumnSpecs parses name:type pairs.
func parseColumnSpecs(specs []string) ([]coltab.ColumnSpec, error) {
	out := make([]coltab.ColumnSpec, 0, len(specs))
	for _, s := range specs {
		name, typ, ok := strings.Cut(s, ":")
		if !ok || name == "" || typ == "" {
			return nil, fmt.Errorf("column %q: want name:type", s)
		}
		out = append(out, coltab.ColumnSpec{Name: name, Type: typ})
	}
	return out, nil
}

// parseValues converts command line values to a column, or to a single
// value when only one is given. An empty typ infers int64, float64, bool
// or string, in that order.
func parseValues(typ string, args []string) (any, []coltab.ColumnOption, error) {
	var vals any
	var opts []coltab.ColumnOption
	var err error

	switch {
	case typ == "":
		vals = infer(args)
	case strings.EqualFold(typ, "category"):
		vals = args
		opts = append(opts, coltab.WithCoerce(typ))
	default:
		dt, perr := dtype.Parse(typ)
		if perr != nil {
			return nil, nil, perr
		}
		switch dt.Kind {
		case dtype.KindInt:
			vals, err = parseAll(args, func(s string) (int64, error) { return strconv.ParseInt(s, 0, 64) })
		case dtype.KindUint:
			vals, err = parseAll(args, func(s string) (uint64, error) { return strconv.ParseUint(s, 0, 64) })
		case dtype.KindFloat:
			vals, err = parseAll(args, func(s string) (float64, error) { return strconv.ParseFloat(s, 64) })
		case dtype.KindBool:
			vals, err = parseAll(args, strconv.ParseBool)
		default:
			vals = args
		}
		opts = append(opts, coltab.WithCoerce(typ))
	}
	if err != nil {
		return nil, nil, err
	}
	return scalar(vals), opts, nil
}

func infer(args []string) any {
	if v, err := parseAll(args, func(s string) (int64, error) { return strconv.ParseInt(s, 10, 64) }); err == nil {
		return v
	}
	if v, err := parseAll(args, func(s string) (float64, error) { return strconv.ParseFloat(s, 64) }); err == nil {
		return v
	}
	if v, err := parseAll(args, strconv.ParseBool); err == nil {
		return v
	}
	return args
}

func parseAll[T any](args []string, parse func(string) (T, error)) ([]T, error) {
	out := make([]T, len(args))
	for i, s := range args {
		v, err := parse(s)
		if err != nil {
			return nil, fmt.Errorf("value %q: %w", s, err)
		}
		out[i] = v
	}
	return out, nil
}

// scalar unwraps a one-element slice so that AddColumn repeats it.
func scalar(vals any) any {
	switch v := vals.(type) {
	case []int64:
		if len(v) == 1 {
			return v[0]
		}
	case []uint64:
		if len(v) == 1 {
			return v[0]
		}
	case []float64:
		if len(v) == 1 {
			return v[0]
		}
	case []bool:
		if len(v) == 1 {
			return v[0]
		}
	case []string:
		if len(v) == 1 {
			return v[0]
		}
	}
	return vals
}
