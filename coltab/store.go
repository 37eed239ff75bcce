package coltab

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/robert-malhotra/go-coltab/internal/backend"
	"github.com/robert-malhotra/go-coltab/internal/backend/zarr"
	"github.com/robert-malhotra/go-coltab/internal/codec"
	"github.com/robert-malhotra/go-coltab/internal/metrics"
	"github.com/robert-malhotra/go-coltab/kv"
)

// Store is an open session on a hierarchical array store.
type Store struct {
	h       backend.Handle
	root    backend.Group
	uri     string
	ctx     context.Context
	log     *zap.Logger
	metrics *metrics.Metrics
	tracer  trace.Tracer
	storage StorageOptions
	charset codec.Charset
	closed  bool
}

// Open opens the store named by uri. See the package documentation for
// the URI syntax. ctx is used for all store I/O of the session.
func Open(ctx context.Context, uri string, opts ...Option) (*Store, error) {
	r, err := SplitURI(uri)
	if err != nil {
		return nil, err
	}
	o := defaultStoreOptions()
	for _, opt := range opts {
		opt(o)
	}

	h, err := openBackend(ctx, r, o)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", uri, err)
	}
	s, err := newStore(ctx, h, r.Group, o)
	if err != nil {
		return nil, multierr.Append(fmt.Errorf("opening %s: %w", uri, err), h.Close())
	}
	s.uri = r.String()
	s.log.Debug("opened store", zap.String("uri", s.uri))
	return s, nil
}

// OpenKV opens a Zarr hierarchy kept in a caller-supplied key/value
// store, such as a custom kv.Store implementation. Tables live under group.
// Closing the Store does not close kv.
func OpenKV(ctx context.Context, store kv.Store, group string, opts ...Option) (*Store, error) {
	h, err := zarr.Open(store, zarr.WithContext(ctx))
	if err != nil {
		return nil, err
	}
	s, err := OpenHandle(ctx, h, group, opts...)
	if err != nil {
		return nil, multierr.Append(err, h.Close())
	}
	return s, nil
}

// OpenHandle wraps an already open backend handle. Tables live under
// group. Closing the Store closes the handle. Handles come from the
// backends inside this module; other callers use Open or OpenKV.
func OpenHandle(ctx context.Context, h backend.Handle, group string, opts ...Option) (*Store, error) {
	o := defaultStoreOptions()
	for _, opt := range opts {
		opt(o)
	}
	return newStore(ctx, h, group, o)
}

func newStore(ctx context.Context, h backend.Handle, group string, o *storeOptions) (*Store, error) {
	root, err := backend.RequireGroup(h.Root(), group)
	if err != nil {
		return nil, err
	}
	return &Store{
		h:       h,
		root:    root,
		uri:     backend.CleanPath(group),
		ctx:     ctx,
		log:     o.logger,
		metrics: o.metrics,
		tracer:  o.tracer,
		storage: o.storage,
		charset: o.charset,
	}, nil
}

// With opens uri, calls fn, and closes the store. Errors from fn and from
// closing are combined.
func With(ctx context.Context, uri string, fn func(*Store) error, opts ...Option) (err error) {
	s, err := Open(ctx, uri, opts...)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, s.Close())
	}()
	return fn(s)
}

// Close closes the store. It is safe to call multiple times.
func (s *Store) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.log.Debug("closing store", zap.String("uri", s.uri))
	return s.h.Close()
}

// URI returns the normalized URI the store was opened with.
func (s *Store) URI() string { return s.uri }

// Root returns the path of the group tables are resolved against.
func (s *Store) Root() string { return s.root.Path() }

// InlineEnums reports whether the backend stores categorical labels on
// the array type as well as in attributes.
func (s *Store) InlineEnums() bool { return s.h.InlineEnumLimit() > 0 }

func (s *Store) check() error {
	if s.closed {
		return ErrClosedStore
	}
	return nil
}

// track starts a span and timer for an operation. The returned function
// ends them and records the outcome held in *errp.
func (s *Store) track(op, table string, attrs ...attribute.KeyValue) func(errp *error) {
	start := time.Now()
	attrs = append(attrs, attribute.String("coltab.table", table))
	_, span := s.tracer.Start(s.ctx, "coltab."+op, trace.WithAttributes(attrs...))
	return func(errp *error) {
		err := *errp
		s.metrics.Observe(op, start, err)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			s.log.Debug(op+" failed", zap.String("table", table), zap.Error(err))
		} else {
			s.log.Debug(op, zap.String("table", table), zap.Duration("elapsed", time.Since(start)))
		}
		span.End()
	}
}
