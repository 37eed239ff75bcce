// Package memory implements the backend interfaces on in-process buffers.
//
// Handles opened with the same non-empty name share one tree, so a store
// can be closed and reopened within a process. Array buffers grow through
// an alloc.Allocator, whose statistics Stats reports.
package memory

import (
	"fmt"
	"sort"
	"sync"

	"github.com/robert-malhotra/go-coltab/internal/alloc"
	"github.com/robert-malhotra/go-coltab/internal/backend"
	"github.com/robert-malhotra/go-coltab/internal/dtype"
)

// InlineEnumLimit is the label text an array dtype may carry in memory.
const InlineEnumLimit = 64 << 10

type tree struct {
	mu    sync.RWMutex
	alloc *alloc.Allocator
	root  *group
}

func newTree() *tree {
	return &tree{alloc: alloc.New(), root: newGroup()}
}

var (
	registryMu sync.Mutex
	registry   = map[string]*tree{}
)

// Handle is an open in-memory store.
type Handle struct {
	t      *tree
	name   string
	mu     sync.RWMutex
	closed bool
}

// Open returns a handle on the named tree, creating it on first use.
// An empty name always yields a fresh private tree.
func Open(name string) *Handle {
	if name == "" {
		return &Handle{t: newTree()}
	}
	registryMu.Lock()
	defer registryMu.Unlock()
	t, ok := registry[name]
	if !ok {
		t = newTree()
		registry[name] = t
	}
	return &Handle{t: t, name: name}
}

// Forget drops a named tree from the registry. Open handles keep working
// on the old tree.
func Forget(name string) {
	registryMu.Lock()
	defer registryMu.Unlock()
	delete(registry, name)
}

// Name returns the registry name, empty for private trees.
func (h *Handle) Name() string { return h.name }

// Root implements backend.Handle.
func (h *Handle) Root() backend.Group {
	return &groupRef{h: h, g: h.t.root, path: "/"}
}

// InlineEnumLimit implements backend.Handle.
func (h *Handle) InlineEnumLimit() int { return InlineEnumLimit }

// Close implements backend.Handle. It is safe to call multiple times.
func (h *Handle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	return nil
}

// Stats returns the allocation statistics of the tree's array buffers.
func (h *Handle) Stats() alloc.Stats {
	return h.t.alloc.Stats()
}

// lock acquires the tree lock after checking the handle is open.
func (h *Handle) lock(write bool) (func(), error) {
	h.mu.RLock()
	closed := h.closed
	h.mu.RUnlock()
	if closed {
		return nil, backend.ErrClosed
	}
	if write {
		h.t.mu.Lock()
		return h.t.mu.Unlock, nil
	}
	h.t.mu.RLock()
	return h.t.mu.RUnlock, nil
}

type group struct {
	attrs    map[string]any
	children map[string]any // *group or *array
}

func newGroup() *group {
	return &group{attrs: map[string]any{}, children: map[string]any{}}
}

type array struct {
	attrs map[string]any
	dt    dtype.DataType
	n     int
	max   int
	fill  []byte
	buf   []byte
}

func (a *array) limit() int {
	if a.max <= 0 {
		return 0
	}
	return a.dt.DataSize(a.max)
}

type groupRef struct {
	h    *Handle
	g    *group
	path string
}

func (r *groupRef) Name() string {
	if r.path == "/" {
		return ""
	}
	parts := backend.SplitPath(r.path)
	return parts[len(parts)-1]
}

func (r *groupRef) Path() string { return r.path }

func (r *groupRef) Attrs() backend.Attributes {
	return &attrsRef{h: r.h, m: r.g.attrs}
}

func (r *groupRef) wrap(name string, child any) backend.Node {
	p := backend.JoinPath(r.path, name)
	switch c := child.(type) {
	case *group:
		return &groupRef{h: r.h, g: c, path: p}
	case *array:
		return &arrayRef{h: r.h, a: c, name: name, path: p}
	}
	return nil
}

func (r *groupRef) Child(name string) (backend.Node, error) {
	unlock, err := r.h.lock(false)
	if err != nil {
		return nil, err
	}
	defer unlock()

	child, ok := r.g.children[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", backend.ErrNotFound, backend.JoinPath(r.path, name))
	}
	return r.wrap(name, child), nil
}

func (r *groupRef) CreateGroup(name string) (backend.Group, error) {
	if err := backend.CheckName(name); err != nil {
		return nil, err
	}
	unlock, err := r.h.lock(true)
	if err != nil {
		return nil, err
	}
	defer unlock()

	if _, ok := r.g.children[name]; ok {
		return nil, fmt.Errorf("%w: %s", backend.ErrExists, backend.JoinPath(r.path, name))
	}
	g := newGroup()
	r.g.children[name] = g
	return r.wrap(name, g).(backend.Group), nil
}

func (r *groupRef) CreateArray(name string, spec backend.ArraySpec) (backend.Array, error) {
	if err := backend.CheckName(name); err != nil {
		return nil, err
	}
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	if backend.EnumSize(spec.DType) > InlineEnumLimit {
		return nil, fmt.Errorf("%w: enumeration of %d bytes exceeds %d", backend.ErrInvalidValue, backend.EnumSize(spec.DType), InlineEnumLimit)
	}
	unlock, err := r.h.lock(true)
	if err != nil {
		return nil, err
	}
	defer unlock()

	if _, ok := r.g.children[name]; ok {
		return nil, fmt.Errorf("%w: %s", backend.ErrExists, backend.JoinPath(r.path, name))
	}
	a := &array{
		attrs: map[string]any{},
		dt:    spec.DType,
		max:   spec.MaxLen,
	}
	if spec.Fill != nil {
		a.fill = append([]byte(nil), spec.Fill...)
	}
	a.buf = r.h.t.alloc.Alloc(a.dt.DataSize(spec.Len), a.limit())
	if spec.Data != nil {
		copy(a.buf, spec.Data)
	} else if a.fill != nil {
		copy(a.buf, backend.FillPattern(a.fill, a.dt.Size, spec.Len))
	}
	a.n = spec.Len
	r.g.children[name] = a
	return r.wrap(name, a).(backend.Array), nil
}

func (r *groupRef) Members() ([]string, error) {
	unlock, err := r.h.lock(false)
	if err != nil {
		return nil, err
	}
	defer unlock()

	names := make([]string, 0, len(r.g.children))
	for name := range r.g.children {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (r *groupRef) Delete(name string) error {
	unlock, err := r.h.lock(true)
	if err != nil {
		return err
	}
	defer unlock()

	child, ok := r.g.children[name]
	if !ok {
		return fmt.Errorf("%w: %s", backend.ErrNotFound, backend.JoinPath(r.path, name))
	}
	r.h.t.release(child)
	delete(r.g.children, name)
	return nil
}

// release records the buffers below node as freed.
func (t *tree) release(node any) {
	switch c := node.(type) {
	case *array:
		t.alloc.Free(c.buf)
	case *group:
		for _, child := range c.children {
			t.release(child)
		}
	}
}

type arrayRef struct {
	h    *Handle
	a    *array
	name string
	path string
}

func (r *arrayRef) Name() string { return r.name }
func (r *arrayRef) Path() string { return r.path }

func (r *arrayRef) Attrs() backend.Attributes {
	return &attrsRef{h: r.h, m: r.a.attrs}
}

func (r *arrayRef) DType() dtype.DataType { return r.a.dt }

func (r *arrayRef) Len() int {
	unlock, err := r.h.lock(false)
	if err != nil {
		return 0
	}
	defer unlock()
	return r.a.n
}

func (r *arrayRef) Cap() int {
	unlock, err := r.h.lock(false)
	if err != nil {
		return 0
	}
	defer unlock()
	return cap(r.a.buf) / r.a.dt.Size
}

func (r *arrayRef) MaxLen() int { return r.a.max }

func (r *arrayRef) Fill() []byte {
	if r.a.fill == nil {
		return nil
	}
	return append([]byte(nil), r.a.fill...)
}

func (r *arrayRef) Resize(n int) error {
	if n < 0 {
		return fmt.Errorf("%w: negative length %d", backend.ErrOutOfRange, n)
	}
	if r.a.max > 0 && n > r.a.max {
		return fmt.Errorf("%w: %s: %d > %d", backend.ErrMaxLen, r.path, n, r.a.max)
	}
	unlock, err := r.h.lock(true)
	if err != nil {
		return err
	}
	defer unlock()

	a := r.a
	old := a.n
	a.buf = r.h.t.alloc.Grow(a.buf, a.dt.DataSize(n), a.limit())
	if n > old && a.fill != nil {
		copy(a.buf[a.dt.DataSize(old):], backend.FillPattern(a.fill, a.dt.Size, n-old))
	}
	a.n = n
	return nil
}

func (r *arrayRef) ReadSlice(lo, hi int) ([]byte, error) {
	unlock, err := r.h.lock(false)
	if err != nil {
		return nil, err
	}
	defer unlock()

	a := r.a
	if err := backend.CheckRange(lo, hi, a.n); err != nil {
		return nil, fmt.Errorf("%s: %w", r.path, err)
	}
	out := make([]byte, a.dt.DataSize(hi-lo))
	copy(out, a.buf[a.dt.DataSize(lo):])
	return out, nil
}

func (r *arrayRef) WriteSlice(lo int, data []byte) error {
	unlock, err := r.h.lock(true)
	if err != nil {
		return err
	}
	defer unlock()

	a := r.a
	if len(data)%a.dt.Size != 0 {
		return fmt.Errorf("%s: %d bytes is not a whole number of %d-byte elements", r.path, len(data), a.dt.Size)
	}
	hi := lo + len(data)/a.dt.Size
	if err := backend.CheckRange(lo, hi, a.n); err != nil {
		return fmt.Errorf("%s: %w", r.path, err)
	}
	copy(a.buf[a.dt.DataSize(lo):], data)
	return nil
}

type attrsRef struct {
	h *Handle
	m map[string]any
}

func (r *attrsRef) Get(key string) (any, bool, error) {
	unlock, err := r.h.lock(false)
	if err != nil {
		return nil, false, err
	}
	defer unlock()
	v, ok := r.m[key]
	return copyValue(v), ok, nil
}

func (r *attrsRef) Set(key string, value any) error {
	if err := backend.CheckValue(value); err != nil {
		return fmt.Errorf("attribute %q: %w", key, err)
	}
	unlock, err := r.h.lock(true)
	if err != nil {
		return err
	}
	defer unlock()
	r.m[key] = copyValue(value)
	return nil
}

func (r *attrsRef) Delete(key string) error {
	unlock, err := r.h.lock(true)
	if err != nil {
		return err
	}
	defer unlock()
	delete(r.m, key)
	return nil
}

func (r *attrsRef) Keys() ([]string, error) {
	unlock, err := r.h.lock(false)
	if err != nil {
		return nil, err
	}
	defer unlock()
	keys := make([]string, 0, len(r.m))
	for k := range r.m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

// copyValue detaches list values so callers cannot alias stored state.
// Plain ints are widened to int64.
func copyValue(v any) any {
	switch x := v.(type) {
	case int:
		return int64(x)
	case []string:
		return append([]string{}, x...)
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = copyValue(e)
		}
		return out
	}
	return v
}

var (
	_ backend.Handle = (*Handle)(nil)
	_ backend.Group  = (*groupRef)(nil)
	_ backend.Array  = (*arrayRef)(nil)
)
