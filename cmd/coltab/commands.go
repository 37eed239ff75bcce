package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/csv"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/robert-malhotra/go-coltab/coltab"
	"github.com/robert-malhotra/go-coltab/frame"
	"github.com/robert-malhotra/go-coltab/internal/metrics"
	"github.com/robert-malhotra/go-coltab/internal/server"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "coltab v%s\n", version)
			fmt.Fprintf(w, "Go version: %s\n", runtime.Version())
			fmt.Fprintf(w, "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	}
}

func newTreeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "tree URI",
		Short: "List the groups and columns of a store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(cmd.Context(), args[0], func(s *coltab.Store) error {
				return s.Tree(cmd.OutOrStdout())
			})
		},
	}
}

func newInspectCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect URI",
		Short: "Print every group and array with its attributes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(cmd.Context(), args[0], func(s *coltab.Store) error {
				fmt.Fprintf(cmd.OutOrStdout(), "=== Inspecting %s ===\n\n", args[0])
				return s.Inspect(cmd.OutOrStdout())
			})
		},
	}
}

func newCreateCmd(a *app) *cobra.Command {
	var columns []string
	var size, maxSize int

	cmd := &cobra.Command{
		Use:   "create URI TABLE",
		Short: "Create a table",
		Long: `Create a table, optionally with typed empty columns.

Example:
  coltab create ./data sales --column id:int64 --column region:category --column price:float64`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			specs, err := parseColumnSpecs(columns)
			if err != nil {
				return err
			}
			opts := []coltab.TableOption{coltab.WithInitialSize(size), coltab.WithMaxSize(maxSize)}
			if len(specs) > 0 {
				opts = append(opts, coltab.WithColumnTypes(specs...))
			}
			return a.withStore(cmd.Context(), args[0], func(s *coltab.Store) error {
				return s.CreateTable(args[1], opts...)
			})
		},
	}
	cmd.Flags().StringArrayVarP(&columns, "column", "c", nil, "Column as name:type (repeatable)")
	cmd.Flags().IntVar(&size, "size", 0, "Initial number of rows, filled with the column fill value")
	cmd.Flags().IntVar(&maxSize, "max", 0, "Maximum number of rows; 0 is unbounded")
	return cmd
}

func newImportCmd(a *app) *cobra.Command {
	var format string
	var categories []string

	cmd := &cobra.Command{
		Use:   "import URI TABLE FILE",
		Short: "Append rows from a CSV or Arrow IPC file",
		Long: `Append rows from a CSV file (with a header row) or an Arrow IPC file.
The table is created from the first batch if it does not exist.`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[2])
			if err != nil {
				return err
			}
			defer f.Close()

			if format == "" {
				format = formatFromName(args[2])
			}
			return a.withStore(cmd.Context(), args[0], func(s *coltab.Store) error {
				rows := 0
				err := readRecords(f, format, func(rec arrow.Record) error {
					chunk, err := frame.FromArrow(rec)
					if err != nil {
						return err
					}
					if err := appendOrCreate(s, args[1], chunk, categories); err != nil {
						return err
					}
					rows += chunk.Len()
					return nil
				})
				if err != nil {
					return err
				}
				a.log.Info("imported", zap.String("table", args[1]), zap.Int("rows", rows))
				fmt.Fprintf(cmd.OutOrStdout(), "imported %d rows into %s\n", rows, args[1])
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "", "Input format: csv, arrow (IPC file) or arrows (IPC stream); default from the file extension")
	cmd.Flags().StringSliceVar(&categories, "category", nil, "String columns to store as categorical when creating the table")
	return cmd
}

func formatFromName(name string) string {
	switch {
	case strings.HasSuffix(name, ".arrow"), strings.HasSuffix(name, ".feather"):
		return "arrow"
	case strings.HasSuffix(name, ".arrows"):
		return "arrows"
	}
	return "csv"
}

// readRecords calls fn for each record batch of r.
func readRecords(r ipc.ReadAtSeeker, format string, fn func(arrow.Record) error) error {
	mem := memory.NewGoAllocator()
	switch format {
	case "csv":
		rd := csv.NewInferringReader(r, csv.WithHeader(true), csv.WithChunk(64<<10), csv.WithAllocator(mem))
		defer rd.Release()
		for rd.Next() {
			if err := fn(rd.Record()); err != nil {
				return err
			}
		}
		return rd.Err()
	case "arrow":
		rd, err := ipc.NewFileReader(r, ipc.WithAllocator(mem))
		if err != nil {
			return err
		}
		defer rd.Close()
		for i := 0; i < rd.NumRecords(); i++ {
			rec, err := rd.Record(i)
			if err != nil {
				return err
			}
			if err := fn(rec); err != nil {
				return err
			}
		}
		return nil
	case "arrows":
		rd, err := ipc.NewReader(r, ipc.WithAllocator(mem))
		if err != nil {
			return err
		}
		defer rd.Release()
		for rd.Next() {
			if err := fn(rd.Record()); err != nil {
				return err
			}
		}
		return rd.Err()
	}
	return fmt.Errorf("unknown format %q", format)
}

// appendOrCreate appends chunk to table, creating the table from it first
// if needed.
func appendOrCreate(s *coltab.Store, table string, chunk *frame.Frame, categories []string) error {
	cols, err := s.Columns(table)
	switch {
	case errors.Is(err, coltab.ErrNotFound):
	case err != nil:
		return err
	case len(cols) > 0:
		return s.Append(table, chunk)
	}

	for _, name := range categories {
		col, ok := chunk.Column(name)
		if !ok {
			return fmt.Errorf("category column %q not in input", name)
		}
		str, ok := col.(frame.String)
		if !ok {
			return fmt.Errorf("category column %q is %s, not string", name, col.Kind())
		}
		chunk, err = replaceColumn(chunk, name, frame.NewCategorical(str))
		if err != nil {
			return err
		}
	}
	if cols != nil {
		// An existing empty table: add the columns to it.
		for _, name := range chunk.Names() {
			col, _ := chunk.Column(name)
			if err := s.AddColumn(table, name, col); err != nil {
				return err
			}
		}
		return nil
	}
	return s.CreateTable(table, coltab.WithInitialData(chunk))
}

func replaceColumn(f *frame.Frame, name string, col frame.Column) (*frame.Frame, error) {
	names := f.Names()
	cols := f.Columns()
	for i, n := range names {
		if n == name {
			cols[i] = col
		}
	}
	return frame.New(names, cols)
}

func newSelectCmd(a *app) *cobra.Command {
	var columns []string
	var start, stop int
	var format string
	var codes bool

	cmd := &cobra.Command{
		Use:   "select URI TABLE",
		Short: "Print rows of a table",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := []coltab.SelectOption{coltab.WithRange(start, stop)}
			if cmd.Flags().Changed("columns") {
				opts = append(opts, coltab.WithColumns(columns...))
			}
			if codes {
				opts = append(opts, coltab.WithoutEnumDecoding())
			}
			return a.withStore(cmd.Context(), args[0], func(s *coltab.Store) error {
				f, err := s.Select(args[1], opts...)
				if err != nil {
					return err
				}
				return writeFrame(cmd.OutOrStdout(), f, format)
			})
		},
	}
	cmd.Flags().StringSliceVar(&columns, "columns", nil, "Columns to read, in order")
	cmd.Flags().IntVar(&start, "start", 0, "First row")
	cmd.Flags().IntVar(&stop, "stop", -1, "Row after the last; -1 reads to the end")
	cmd.Flags().StringVarP(&format, "format", "f", "table", "Output format: table, csv or json")
	cmd.Flags().BoolVar(&codes, "codes", false, "Print categorical codes instead of labels")
	return cmd
}

func newDescribeCmd(a *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "describe URI [TABLE]",
		Short: "Describe the columns of one table or of every table",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(cmd.Context(), args[0], func(s *coltab.Store) error {
				tables := args[1:]
				if len(tables) == 0 {
					var err error
					if tables, err = s.Tables(); err != nil {
						return err
					}
				}
				out := make([]tableInfo, 0, len(tables))
				for _, name := range tables {
					cols, err := s.Describe(name)
					if err != nil {
						return err
					}
					n, err := s.Len(name)
					if err != nil {
						return err
					}
					out = append(out, tableInfo{Table: name, Rows: n, Columns: cols})
				}
				if asJSON {
					return writeJSON(cmd.OutOrStdout(), out)
				}
				enc := yaml.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent(2)
				if err := enc.Encode(out); err != nil {
					return err
				}
				return enc.Close()
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON instead of YAML")
	return cmd
}

type tableInfo struct {
	Table   string              `json:"table" yaml:"table"`
	Rows    int                 `json:"rows" yaml:"rows"`
	Columns []coltab.ColumnInfo `json:"columns" yaml:"columns"`
}

func newAddColCmd(a *app) *cobra.Command {
	var typ string
	var position int
	var noCategories bool

	cmd := &cobra.Command{
		Use:   "addcol URI TABLE NAME [VALUE...]",
		Short: "Add a column",
		Long: `Add a column. A single value is repeated for every row; otherwise
there must be one value per row. An empty table takes any number.

Example:
  coltab addcol ./data sales region --type category east west east`,
		Args: cobra.MinimumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			values, opts, err := parseValues(typ, args[3:])
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("position") {
				opts = append(opts, coltab.WithPosition(position))
			}
			if noCategories {
				opts = append(opts, coltab.WithoutCategories())
			}
			return a.withStore(cmd.Context(), args[0], func(s *coltab.Store) error {
				return s.AddColumn(args[1], args[2], values, opts...)
			})
		},
	}
	cmd.Flags().StringVarP(&typ, "type", "t", "", "Stored type, such as int32, <f8, S10 or category; inferred if empty")
	cmd.Flags().IntVar(&position, "position", 0, "Position in the column order")
	cmd.Flags().BoolVar(&noCategories, "no-categories", false, "Store categorical codes without their labels")
	return cmd
}

func newDelColCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delcol URI TABLE NAME...",
		Short: "Delete columns",
		Args:  cobra.MinimumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(cmd.Context(), args[0], func(s *coltab.Store) error {
				for _, name := range args[2:] {
					if err := s.DeleteColumn(args[1], name); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}
}

func newDropCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "drop URI TABLE",
		Short: "Delete a table and its columns",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(cmd.Context(), args[0], func(s *coltab.Store) error {
				return s.DropTable(args[1])
			})
		},
	}
}

func newServeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve URI",
		Short: "Serve a store over a read-only HTTP API",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var gatherer prometheus.Gatherer
			if a.cfg.Server.Metrics {
				reg := prometheus.NewRegistry()
				reg.MustRegister(
					collectors.NewGoCollector(),
					collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
				)
				a.metrics = metrics.New(reg)
				gatherer = reg
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.withStore(ctx, args[0], func(s *coltab.Store) error {
				a.log.Info("serving", zap.String("store", s.URI()), zap.String("addr", a.cfg.Server.Addr))
				return server.Run(ctx, server.New(s, a.log, gatherer), a.cfg.Server.Addr)
			})
		},
	}
	cmd.Flags().String("addr", ":8080", "Listen address")
	cmd.Flags().Bool("metrics", true, "Expose /metrics")
	return cmd
}
