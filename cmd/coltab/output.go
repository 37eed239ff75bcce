package main

import (
	"fmt"
	"io"
	"math"
	"text/tabwriter"

	"github.com/apache/arrow-go/v18/arrow/csv"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/goccy/go-json"

	"github.com/robert-malhotra/go-coltab/frame"
)

func writeFrame(w io.Writer, f *frame.Frame, format string) error {
	switch format {
	case "table", "":
		return writeTable(w, f)
	case "csv":
		return writeCSV(w, f)
	case "json":
		rows := make([]map[string]any, f.Len())
		for i := range rows {
			row := f.Row(i)
			for k, v := range row {
				row[k] = jsonValue(v)
			}
			rows[i] = row
		}
		return writeJSON(w, rows)
	}
	return fmt.Errorf("unknown format %q", format)
}

func writeTable(w io.Writer, f *frame.Frame) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprint(tw, "#")
	for _, name := range f.Names() {
		fmt.Fprintf(tw, "\t%s", name)
	}
	fmt.Fprintln(tw)

	cols := f.Columns()
	start := 0
	if idx := f.Index(); idx != nil {
		start = idx.Start
	}
	for i := 0; i < f.Len(); i++ {
		fmt.Fprint(tw, start+i)
		for _, c := range cols {
			v := c.Value(i)
			if v == nil {
				v = ""
			}
			if b, ok := v.([]byte); ok {
				v = fmt.Sprintf("%q", b)
			}
			fmt.Fprintf(tw, "\t%v", v)
		}
		fmt.Fprintln(tw)
	}
	return tw.Flush()
}

// writeCSV writes f through the Arrow CSV writer. Categorical columns are
// written as their labels.
func writeCSV(w io.Writer, f *frame.Frame) error {
	if f.NumCols() == 0 {
		return nil
	}
	names := f.Names()
	cols := f.Columns()
	for i, c := range cols {
		if cat, ok := c.(frame.Categorical); ok {
			cols[i] = frame.String(cat.Labels())
		}
	}
	plain, err := frame.New(names, cols)
	if err != nil {
		return err
	}

	rec, err := frame.ToArrow(plain, memory.NewGoAllocator())
	if err != nil {
		return err
	}
	defer rec.Release()

	cw := csv.NewWriter(w, rec.Schema(), csv.WithHeader(true))
	if err := cw.Write(rec); err != nil {
		return err
	}
	return cw.Flush()
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// jsonValue replaces values JSON cannot represent with null.
func jsonValue(v any) any {
	switch x := v.(type) {
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return nil
		}
	case float32:
		if math.IsNaN(float64(x)) || math.IsInf(float64(x), 0) {
			return nil
		}
	}
	return v
}
