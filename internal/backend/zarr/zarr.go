// Package zarr implements the backend interfaces in the Zarr version 2
// layout on top of a kv.Store.
//
// Groups are key prefixes holding ".zgroup", arrays are prefixes holding
// ".zarray" plus one key per chunk, and attributes live in ".zattrs".
// Chunks that were never written read as the fill value. Zarr has no
// enumerated types, so InlineEnumLimit is zero and categorical labels
// always travel as attributes. Arrays are unbounded: a MaxLen in the
// ArraySpec is not recorded.
package zarr

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/multierr"

	"github.com/robert-malhotra/go-coltab/internal/backend"
	"github.com/robert-malhotra/go-coltab/internal/dtype"
	"github.com/robert-malhotra/go-coltab/internal/filter"
	"github.com/robert-malhotra/go-coltab/internal/layout"
	"github.com/robert-malhotra/go-coltab/internal/zmeta"
	"github.com/robert-malhotra/go-coltab/kv"
)

// ErrCorruptChunk is returned when a stored chunk does not decode to the
// expected size.
var ErrCorruptChunk = errors.New("corrupt chunk")

// Option configures a Handle.
type Option func(*Handle)

// WithContext sets the context used for store I/O.
func WithContext(ctx context.Context) Option {
	return func(h *Handle) { h.ctx = ctx }
}

// WithCloseStore makes Close also close the underlying store.
func WithCloseStore() Option {
	return func(h *Handle) { h.closeStore = true }
}

// Handle is an open Zarr hierarchy.
type Handle struct {
	store      kv.Store
	ctx        context.Context
	closeStore bool

	mu     sync.RWMutex
	closed bool
	arrays map[string]*arrayState
}

// arrayState is the cached metadata of one array, shared by every node
// referring to it so that resizes are seen consistently.
type arrayState struct {
	mu   sync.Mutex
	meta *zmeta.Array
	dt   dtype.DataType
	fill []byte
	grid layout.Grid
	pipe *filter.Pipeline
}

// Open opens the hierarchy in store, writing a root ".zgroup" if the store
// is empty.
func Open(store kv.Store, opts ...Option) (*Handle, error) {
	h := &Handle{
		store:  store,
		ctx:    context.Background(),
		arrays: map[string]*arrayState{},
	}
	for _, opt := range opts {
		opt(h)
	}

	b, err := store.Get(h.ctx, zmeta.GroupKey)
	switch {
	case err == nil:
		if _, err := zmeta.ParseGroup(b); err != nil {
			return nil, err
		}
	case errors.Is(err, kv.ErrNotExist):
		if _, err := store.Get(h.ctx, zmeta.ArrayKey); err == nil {
			return nil, fmt.Errorf("%w: store root is an array", zmeta.ErrInvalid)
		}
		if err := h.putJSON(zmeta.GroupKey, zmeta.Group{ZarrFormat: zmeta.Format}); err != nil {
			return nil, err
		}
	default:
		return nil, err
	}
	return h, nil
}

// Store returns the underlying key/value store.
func (h *Handle) Store() kv.Store { return h.store }

// Root implements backend.Handle.
func (h *Handle) Root() backend.Group {
	return &group{h: h, key: "", path: "/"}
}

// InlineEnumLimit implements backend.Handle.
func (h *Handle) InlineEnumLimit() int { return 0 }

// Close implements backend.Handle. It is safe to call multiple times.
func (h *Handle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	h.closed = true
	h.arrays = nil
	if h.closeStore {
		return h.store.Close()
	}
	return nil
}

func (h *Handle) check() error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		return backend.ErrClosed
	}
	return nil
}

func (h *Handle) putJSON(key string, v any) error {
	b, err := zmeta.Marshal(v)
	if err != nil {
		return err
	}
	return h.store.Put(h.ctx, key, b)
}

func (h *Handle) exists(key string) (bool, error) {
	_, err := h.store.Get(h.ctx, key)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, kv.ErrNotExist) {
		return false, nil
	}
	return false, err
}

// array returns the cached state of the array at key, loading it on first
// use. It returns nil without error if there is no array at key.
func (h *Handle) array(key string) (*arrayState, error) {
	h.mu.RLock()
	st, ok := h.arrays[key]
	h.mu.RUnlock()
	if ok {
		return st, nil
	}

	b, err := h.store.Get(h.ctx, kv.Join(key, zmeta.ArrayKey))
	if errors.Is(err, kv.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	meta, err := zmeta.ParseArray(b)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", key, err)
	}
	st, err = newArrayState(meta)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", key, err)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.arrays == nil {
		return nil, backend.ErrClosed
	}
	if cur, ok := h.arrays[key]; ok {
		return cur, nil
	}
	h.arrays[key] = st
	return st, nil
}

func newArrayState(meta *zmeta.Array) (*arrayState, error) {
	dt, err := meta.DataType()
	if err != nil {
		return nil, err
	}
	fill, err := meta.Fill()
	if err != nil {
		return nil, err
	}
	grid, err := layout.NewGrid(meta.ChunkLen())
	if err != nil {
		return nil, err
	}
	pipe, err := filter.NewPipeline(meta.Filters, meta.Compressor)
	if err != nil {
		return nil, err
	}
	return &arrayState{meta: meta, dt: dt, fill: fill, grid: grid, pipe: pipe}, nil
}

// forget drops cached array state at or below key.
func (h *Handle) forget(key string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for k := range h.arrays {
		if kv.Under(k, key) {
			delete(h.arrays, k)
		}
	}
}

type group struct {
	h    *Handle
	key  string
	path string
}

func (g *group) Name() string {
	if g.key == "" {
		return ""
	}
	return g.key[strings.LastIndexByte(g.key, '/')+1:]
}

func (g *group) Path() string { return g.path }

func (g *group) Attrs() backend.Attributes {
	return &attrs{h: g.h, key: kv.Join(g.key, zmeta.AttrsKey)}
}

func (g *group) Child(name string) (backend.Node, error) {
	if err := g.h.check(); err != nil {
		return nil, err
	}
	if err := backend.CheckName(name); err != nil {
		return nil, fmt.Errorf("%w: %s", backend.ErrNotFound, backend.JoinPath(g.path, name))
	}
	key := kv.Join(g.key, name)
	path := backend.JoinPath(g.path, name)

	st, err := g.h.array(key)
	if err != nil {
		return nil, err
	}
	if st != nil {
		return &array{h: g.h, key: key, name: name, path: path, st: st}, nil
	}
	ok, err := g.h.exists(kv.Join(key, zmeta.GroupKey))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", backend.ErrNotFound, path)
	}
	return &group{h: g.h, key: key, path: path}, nil
}

// taken reports whether a child called name already exists.
func (g *group) taken(name string) error {
	_, err := g.Child(name)
	if err == nil {
		return fmt.Errorf("%w: %s", backend.ErrExists, backend.JoinPath(g.path, name))
	}
	if errors.Is(err, backend.ErrNotFound) {
		return nil
	}
	return err
}

func (g *group) CreateGroup(name string) (backend.Group, error) {
	if err := backend.CheckName(name); err != nil {
		return nil, err
	}
	if err := g.taken(name); err != nil {
		return nil, err
	}
	key := kv.Join(g.key, name)
	if err := g.h.putJSON(kv.Join(key, zmeta.GroupKey), zmeta.Group{ZarrFormat: zmeta.Format}); err != nil {
		return nil, err
	}
	return &group{h: g.h, key: key, path: backend.JoinPath(g.path, name)}, nil
}

func (g *group) CreateArray(name string, spec backend.ArraySpec) (backend.Array, error) {
	if err := backend.CheckName(name); err != nil {
		return nil, err
	}
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	if spec.DType.IsEnum() {
		return nil, fmt.Errorf("%w: enumerated dtypes are not supported", backend.ErrInvalidValue)
	}
	if err := g.taken(name); err != nil {
		return nil, err
	}

	dt := spec.DType
	chunkLen := spec.Storage.ChunkLen
	if chunkLen <= 0 {
		chunkLen = layout.DefaultChunkLen(dt.Size)
	}
	var filters []filter.Config
	if spec.Storage.Shuffle && dt.Size > 1 {
		filters = append(filters, filter.NewShuffle(dt.Size).Config())
	}
	if spec.Storage.Fletcher32 {
		filters = append(filters, filter.NewFletcher32().Config())
	}
	comp, err := filter.CompressorConfig(spec.Storage.Compressor, spec.Storage.Level)
	if err != nil {
		return nil, err
	}
	meta, err := zmeta.NewArray(dt, spec.Len, chunkLen, spec.Fill, filters, comp)
	if err != nil {
		return nil, err
	}
	st, err := newArrayState(meta)
	if err != nil {
		return nil, err
	}

	key := kv.Join(g.key, name)
	if err := g.h.putJSON(kv.Join(key, zmeta.ArrayKey), meta); err != nil {
		return nil, err
	}
	g.h.mu.Lock()
	if g.h.arrays != nil {
		g.h.arrays[key] = st
	}
	g.h.mu.Unlock()

	a := &array{h: g.h, key: key, name: name, path: backend.JoinPath(g.path, name), st: st}
	if spec.Data != nil && spec.Len > 0 {
		if err := a.WriteSlice(0, spec.Data); err != nil {
			return nil, err
		}
	}
	return a, nil
}

func (g *group) Members() ([]string, error) {
	if err := g.h.check(); err != nil {
		return nil, err
	}
	names, err := g.h.store.List(g.h.ctx, g.key)
	if err != nil {
		return nil, err
	}
	out := names[:0]
	for _, n := range names {
		if !strings.HasPrefix(n, ".") {
			out = append(out, n)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (g *group) Delete(name string) error {
	if _, err := g.Child(name); err != nil {
		return err
	}
	key := kv.Join(g.key, name)
	g.h.forget(key)
	return g.h.store.DeletePrefix(g.h.ctx, key)
}

type array struct {
	h    *Handle
	key  string
	name string
	path string
	st   *arrayState
}

func (a *array) Name() string { return a.name }
func (a *array) Path() string { return a.path }

func (a *array) Attrs() backend.Attributes {
	return &attrs{h: a.h, key: kv.Join(a.key, zmeta.AttrsKey)}
}

func (a *array) DType() dtype.DataType { return a.st.dt }

func (a *array) Len() int {
	a.st.mu.Lock()
	defer a.st.mu.Unlock()
	return a.st.meta.Len()
}

// Cap is the element count of the chunks covering the array.
func (a *array) Cap() int {
	a.st.mu.Lock()
	defer a.st.mu.Unlock()
	g := a.st.grid
	return g.NumChunks(a.st.meta.Len()) * g.ChunkLen
}

func (a *array) MaxLen() int { return 0 }

func (a *array) Fill() []byte {
	if a.st.fill == nil {
		return nil
	}
	return append([]byte(nil), a.st.fill...)
}

func (a *array) chunkKey(i int) string {
	return kv.Join(a.key, strconv.Itoa(i))
}

// readChunk returns the decoded bytes of chunk i, or the fill pattern if
// it was never written.
func (a *array) readChunk(i int) ([]byte, error) {
	st := a.st
	size := st.grid.ChunkBytes(st.dt.Size)
	raw, err := a.h.store.Get(a.h.ctx, a.chunkKey(i))
	if errors.Is(err, kv.ErrNotExist) {
		return backend.FillPattern(st.fill, st.dt.Size, st.grid.ChunkLen), nil
	}
	if err != nil {
		return nil, err
	}
	data, err := st.pipe.Decode(raw)
	if err != nil {
		return nil, fmt.Errorf("%s chunk %d: %w", a.path, i, err)
	}
	if len(data) != size {
		return nil, fmt.Errorf("%w: %s chunk %d has %d bytes, want %d", ErrCorruptChunk, a.path, i, len(data), size)
	}
	return data, nil
}

func (a *array) writeChunk(i int, data []byte) error {
	enc, err := a.st.pipe.Encode(data)
	if err != nil {
		return fmt.Errorf("%s chunk %d: %w", a.path, i, err)
	}
	return a.h.store.Put(a.h.ctx, a.chunkKey(i), enc)
}

func (a *array) Resize(n int) error {
	if err := a.h.check(); err != nil {
		return err
	}
	if n < 0 {
		return fmt.Errorf("%w: negative length %d", backend.ErrOutOfRange, n)
	}
	st := a.st
	st.mu.Lock()
	defer st.mu.Unlock()

	old := st.meta.Len()
	if n < old {
		if err := a.truncate(old, n); err != nil {
			return err
		}
	}
	meta := *st.meta
	meta.Shape = []int{n}
	if err := a.h.putJSON(kv.Join(a.key, zmeta.ArrayKey), &meta); err != nil {
		return err
	}
	st.meta = &meta
	return nil
}

// truncate removes chunks past n and resets the tail of the last kept
// chunk to the fill value, so that growing again exposes fill.
func (a *array) truncate(old, n int) error {
	st := a.st
	g := st.grid
	keep := g.NumChunks(n)
	var errs error
	for i := keep; i < g.NumChunks(old); i++ {
		errs = multierr.Append(errs, a.h.store.Delete(a.h.ctx, a.chunkKey(i)))
	}
	if errs != nil {
		return errs
	}
	if n%g.ChunkLen == 0 {
		return nil
	}
	last := keep - 1
	data, err := a.readChunk(last)
	if err != nil {
		return err
	}
	size := st.dt.Size
	off := (n % g.ChunkLen) * size
	copy(data[off:], backend.FillPattern(st.fill, size, g.ChunkLen-n%g.ChunkLen))
	return a.writeChunk(last, data)
}

func (a *array) ReadSlice(lo, hi int) ([]byte, error) {
	if err := a.h.check(); err != nil {
		return nil, err
	}
	st := a.st
	st.mu.Lock()
	defer st.mu.Unlock()

	if err := backend.CheckRange(lo, hi, st.meta.Len()); err != nil {
		return nil, fmt.Errorf("%s: %w", a.path, err)
	}
	size := st.dt.Size
	out := make([]byte, size*(hi-lo))
	for _, sp := range st.grid.Spans(lo, hi) {
		data, err := a.readChunk(sp.Chunk)
		if err != nil {
			return nil, err
		}
		copy(out[sp.Pos*size:], data[sp.Lo*size:sp.Hi*size])
	}
	return out, nil
}

func (a *array) WriteSlice(lo int, data []byte) error {
	if err := a.h.check(); err != nil {
		return err
	}
	st := a.st
	st.mu.Lock()
	defer st.mu.Unlock()

	size := st.dt.Size
	if len(data)%size != 0 {
		return fmt.Errorf("%s: %d bytes is not a whole number of %d-byte elements", a.path, len(data), size)
	}
	hi := lo + len(data)/size
	if err := backend.CheckRange(lo, hi, st.meta.Len()); err != nil {
		return fmt.Errorf("%s: %w", a.path, err)
	}
	for _, sp := range st.grid.Spans(lo, hi) {
		part := data[sp.Pos*size : (sp.Pos+sp.Len())*size]
		if sp.Full(st.grid) {
			if err := a.writeChunk(sp.Chunk, part); err != nil {
				return err
			}
			continue
		}
		chunk, err := a.readChunk(sp.Chunk)
		if err != nil {
			return err
		}
		copy(chunk[sp.Lo*size:], part)
		if err := a.writeChunk(sp.Chunk, chunk); err != nil {
			return err
		}
	}
	return nil
}

type attrs struct {
	h   *Handle
	key string
}

func (r *attrs) load() (map[string]any, error) {
	if err := r.h.check(); err != nil {
		return nil, err
	}
	b, err := r.h.store.Get(r.h.ctx, r.key)
	if errors.Is(err, kv.ErrNotExist) {
		return map[string]any{}, nil
	}
	if err != nil {
		return nil, err
	}
	return zmeta.ParseAttrs(b)
}

func (r *attrs) save(m map[string]any) error {
	b, err := zmeta.MarshalAttrs(m)
	if err != nil {
		return err
	}
	return r.h.store.Put(r.h.ctx, r.key, b)
}

func (r *attrs) Get(key string) (any, bool, error) {
	m, err := r.load()
	if err != nil {
		return nil, false, err
	}
	v, ok := m[key]
	return v, ok, nil
}

func (r *attrs) Set(key string, value any) error {
	if err := backend.CheckValue(value); err != nil {
		return fmt.Errorf("attribute %q: %w", key, err)
	}
	m, err := r.load()
	if err != nil {
		return err
	}
	if i, ok := value.(int); ok {
		value = int64(i)
	}
	m[key] = value
	return r.save(m)
}

func (r *attrs) Delete(key string) error {
	m, err := r.load()
	if err != nil {
		return err
	}
	if _, ok := m[key]; !ok {
		return nil
	}
	delete(m, key)
	return r.save(m)
}

func (r *attrs) Keys() ([]string, error) {
	m, err := r.load()
	if err != nil {
		return nil, err
	}
	return zmeta.SortedKeys(m), nil
}

var (
	_ backend.Handle = (*Handle)(nil)
	_ backend.Group  = (*group)(nil)
	_ backend.Array  = (*array)(nil)
)
