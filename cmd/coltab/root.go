package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/robert-malhotra/go-coltab/coltab"
	"github.com/robert-malhotra/go-coltab/internal/config"
	"github.com/robert-malhotra/go-coltab/internal/logging"
	"github.com/robert-malhotra/go-coltab/internal/metrics"
)

// app holds what PersistentPreRunE sets up for the subcommands.
type app struct {
	v       *viper.Viper
	cfgFile string
	trace   bool

	cfg     *config.Config
	log     *zap.Logger
	tp      *sdktrace.TracerProvider
	metrics *metrics.Metrics
}

// flagKeys maps configuration keys to the persistent flags that set them.
var flagKeys = map[string]string{
	"log.level":          "log-level",
	"log.encoding":       "log-encoding",
	"storage.compressor": "compressor",
	"storage.level":      "compression-level",
	"storage.chunk_len":  "chunk-len",
	"text":               "text",
	"server.addr":        "addr",
	"server.metrics":     "metrics",
}

func newRootCmd() *cobra.Command {
	a := &app{v: config.New()}

	root := &cobra.Command{
		Use:   "coltab",
		Short: "Columnar tables in hierarchical array stores",
		Long: `coltab stores tables as groups of one-dimensional arrays.

Stores are addressed by URI: a directory path, file://path, mem://name,
s3://bucket/prefix or gs://bucket/prefix, optionally followed by
::/group to use a group inside the store as the root.`,
		SilenceUsage:       true,
		PersistentPreRunE:  a.setup,
		PersistentPostRunE: a.teardown,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.cfgFile, "config", "", "Path to a YAML configuration file")
	pf.BoolVar(&a.trace, "trace", false, "Print trace spans to stderr")
	pf.String("log-level", "warn", "Log level (debug, info, warn, error)")
	pf.String("log-encoding", "console", "Log encoding (console or json)")
	pf.String("compressor", "zlib", "Chunk compressor for new columns (zlib, gzip, zstd, lz4, none)")
	pf.Int("compression-level", 6, "Compression level")
	pf.Int("chunk-len", 0, "Elements per chunk for new columns; 0 picks a default")
	pf.String("text", config.TextStrict, "Characters outside ISO-8859-1: strict fails, replace substitutes")

	root.AddCommand(
		newVersionCmd(),
		newTreeCmd(a),
		newInspectCmd(a),
		newCreateCmd(a),
		newImportCmd(a),
		newSelectCmd(a),
		newDescribeCmd(a),
		newAddColCmd(a),
		newDelColCmd(a),
		newDropCmd(a),
		newServeCmd(a),
	)
	return root
}

func (a *app) setup(cmd *cobra.Command, _ []string) error {
	// Only flags given on the command line override the file and the
	// environment.
	changed := make(map[string]string, len(flagKeys))
	for key, name := range flagKeys {
		if f := cmd.Flags().Lookup(name); f != nil && f.Changed {
			changed[key] = name
		}
	}
	a.v.SetDefault("log.level", "warn")
	if err := config.BindFlags(a.v, cmd.Flags(), changed); err != nil {
		return err
	}
	cfg, err := config.Load(a.v, a.cfgFile)
	if err != nil {
		return err
	}
	a.cfg = cfg

	if a.log, err = logging.New(cfg.Log); err != nil {
		return err
	}

	if a.trace {
		exp, err := stdouttrace.New(stdouttrace.WithWriter(cmd.ErrOrStderr()), stdouttrace.WithPrettyPrint())
		if err != nil {
			return fmt.Errorf("trace exporter: %w", err)
		}
		a.tp = sdktrace.NewTracerProvider(sdktrace.WithSyncer(exp))
		otel.SetTracerProvider(a.tp)
	}
	return nil
}

func (a *app) teardown(cmd *cobra.Command, _ []string) error {
	var err error
	if a.tp != nil {
		err = multierr.Append(err, a.tp.Shutdown(cmd.Context()))
	}
	if a.log != nil {
		// Syncing stderr fails on some platforms; nothing to recover.
		_ = a.log.Sync()
	}
	return err
}

// options returns the store options for the loaded configuration.
func (a *app) options() []coltab.Option {
	opts := append(a.cfg.StoreOptions(), coltab.WithLogger(a.log))
	if a.tp != nil {
		opts = append(opts, coltab.WithTracer(a.tp.Tracer("coltab")))
	}
	if a.metrics != nil {
		opts = append(opts, coltab.WithMetrics(a.metrics))
	}
	return opts
}

// withStore opens uri for the duration of fn.
func (a *app) withStore(ctx context.Context, uri string, fn func(*coltab.Store) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	return coltab.With(ctx, uri, fn, a.options()...)
}
