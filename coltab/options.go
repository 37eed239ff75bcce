package coltab

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/robert-malhotra/go-coltab/frame"
	"github.com/robert-malhotra/go-coltab/internal/backend"
	"github.com/robert-malhotra/go-coltab/internal/codec"
	"github.com/robert-malhotra/go-coltab/internal/metrics"
	"github.com/robert-malhotra/go-coltab/kv/gcskv"
	"github.com/robert-malhotra/go-coltab/kv/s3kv"
)

const tracerName = "github.com/robert-malhotra/go-coltab/coltab"

// StorageOptions are passed through to the backend when arrays are
// created: compressor name and level, shuffle, checksums, chunk length.
type StorageOptions = backend.StorageOptions

// DefaultStorageOptions returns zlib level 6 with byte shuffling.
func DefaultStorageOptions() StorageOptions {
	return backend.DefaultStorageOptions()
}

// Option configures a Store.
type Option func(*storeOptions)

type storeOptions struct {
	logger  *zap.Logger
	metrics *metrics.Metrics
	tracer  trace.Tracer
	storage StorageOptions
	charset codec.Charset
	s3      []s3kv.Option
	gcs     []gcskv.Option
}

func defaultStoreOptions() *storeOptions {
	return &storeOptions{
		logger:  zap.NewNop(),
		tracer:  otel.Tracer(tracerName),
		storage: DefaultStorageOptions(),
	}
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(o *storeOptions) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithMetrics records operation metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *storeOptions) { o.metrics = m }
}

// WithTracer sets the tracer spans are started on. The default uses the
// global tracer provider.
func WithTracer(t trace.Tracer) Option {
	return func(o *storeOptions) {
		if t != nil {
			o.tracer = t
		}
	}
}

// WithStorage sets the storage options of new columns.
func WithStorage(s StorageOptions) Option {
	return func(o *storeOptions) { o.storage = s }
}

// WithLossyText replaces characters outside ISO-8859-1 with the ASCII SUB
// character (0x1A) instead of failing. The original text is lost.
func WithLossyText() Option {
	return func(o *storeOptions) { o.charset = codec.Replace }
}

// WithS3 passes options to the S3 store of s3:// URIs.
func WithS3(opts ...s3kv.Option) Option {
	return func(o *storeOptions) { o.s3 = append(o.s3, opts...) }
}

// WithGCS passes options to the GCS store of gs:// URIs.
func WithGCS(opts ...gcskv.Option) Option {
	return func(o *storeOptions) { o.gcs = append(o.gcs, opts...) }
}

// ColumnSpec names a column and its type for CreateTable.
//
// Type is one of int8, int16, int32, int64, uint8, uint16, uint32, uint64,
// float32, float64, bool, S<width>, category, or an array-protocol type
// string such as "<i8" or "|S16".
type ColumnSpec struct {
	Name string
	Type string
}

// TableOption configures CreateTable.
type TableOption func(*tableOptions)

type tableOptions struct {
	columns  []ColumnSpec
	data     *frame.Frame
	initSize int
	maxSize  int
}

// WithColumnTypes creates one empty column per ColumnSpec, in order.
// It takes precedence over WithInitialData.
func WithColumnTypes(specs ...ColumnSpec) TableOption {
	return func(o *tableOptions) { o.columns = append(o.columns, specs...) }
}

// WithInitialData creates the table's columns from a frame.
func WithInitialData(f *frame.Frame) TableOption {
	return func(o *tableOptions) { o.data = f }
}

// WithInitialSize sets the length of columns created WithColumnTypes.
func WithInitialSize(n int) TableOption {
	return func(o *tableOptions) {
		if n >= 0 {
			o.initSize = n
		}
	}
}

// WithMaxSize bounds the length of the table's columns; zero is
// unbounded. Backends without bounded arrays ignore it.
func WithMaxSize(n int) TableOption {
	return func(o *tableOptions) {
		if n >= 0 {
			o.maxSize = n
		}
	}
}

// ColumnOption configures AddColumn.
type ColumnOption func(*columnOptions)

type columnOptions struct {
	position       int
	hasPosition    bool
	coerce         string
	dropCategories bool
	maxSize        int
}

// WithPosition inserts the column at index i of the table's column
// order. Out of range positions append.
func WithPosition(i int) ColumnOption {
	return func(o *columnOptions) {
		o.position = i
		o.hasPosition = true
	}
}

// WithCoerce stores the values as the given type, in the syntax of
// ColumnSpec.Type. Values that do not convert exactly fail with
// ErrUnsupportedType.
func WithCoerce(typ string) ColumnOption {
	return func(o *columnOptions) { o.coerce = typ }
}

// WithoutCategories stores the codes of categorical values without their
// labels. The labels cannot be recovered.
func WithoutCategories() ColumnOption {
	return func(o *columnOptions) { o.dropCategories = true }
}

// SelectOption configures Select, SelectColumn and SelectMap.
type SelectOption func(*selectOptions)

type selectOptions struct {
	lo, hi     int
	columns    []string
	decodeEnum bool
}

func defaultSelectOptions() *selectOptions {
	return &selectOptions{hi: -1, decodeEnum: true}
}

// WithRange selects rows [lo, hi). A negative hi reads to the end. The
// range is clamped to the column length.
func WithRange(lo, hi int) SelectOption {
	return func(o *selectOptions) {
		o.lo = lo
		o.hi = hi
	}
}

// WithColumns selects columns in the given order. The default is every
// column in table order.
func WithColumns(names ...string) SelectOption {
	return func(o *selectOptions) { o.columns = append([]string{}, names...) }
}

// WithoutEnumDecoding returns categorical columns as their integer codes.
func WithoutEnumDecoding() SelectOption {
	return func(o *selectOptions) { o.decodeEnum = false }
}
