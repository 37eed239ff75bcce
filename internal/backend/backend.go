// Package backend defines the capability interface of a hierarchical
// array store: groups holding named child groups and growable,
// one-dimensional typed arrays, both carrying key/value attributes.
//
// Table logic is written once against these interfaces; each storage
// format implements them in its own subpackage.
package backend

import (
	"errors"
	"fmt"

	"github.com/robert-malhotra/go-coltab/internal/dtype"
)

var (
	ErrNotFound     = errors.New("object not found")
	ErrExists       = errors.New("object already exists")
	ErrClosed       = errors.New("operation on closed store")
	ErrMaxLen       = errors.New("length exceeds maximum")
	ErrOutOfRange   = errors.New("range out of bounds")
	ErrInvalidName  = errors.New("invalid name")
	ErrInvalidValue = errors.New("invalid attribute value")
)

// Handle is an open store.
type Handle interface {
	// Root returns the root group.
	Root() Group

	// InlineEnumLimit is the largest enumeration, in bytes of label text,
	// that an array's dtype may carry. Zero means never.
	InlineEnumLimit() int

	// Close releases the handle. It is idempotent.
	Close() error
}

// Node is a group or an array.
type Node interface {
	Name() string
	Path() string
	Attrs() Attributes
}

// Group is a namespace of child nodes.
type Group interface {
	Node

	// Child returns the named child or ErrNotFound.
	Child(name string) (Node, error)

	// CreateGroup creates a child group. It fails with ErrExists if the
	// name is taken.
	CreateGroup(name string) (Group, error)

	// CreateArray creates a child array. It fails with ErrExists if the
	// name is taken.
	CreateArray(name string, spec ArraySpec) (Array, error)

	// Members returns the child names in sorted order.
	Members() ([]string, error)

	// Delete removes a child and everything below it.
	Delete(name string) error
}

// Array is a growable one-dimensional typed array.
type Array interface {
	Node

	DType() dtype.DataType
	Len() int

	// Cap is the number of elements storage is allocated for. It never
	// shrinks while the array grows.
	Cap() int

	// MaxLen is the largest length Resize accepts; zero is unbounded.
	MaxLen() int

	// Fill is the encoded value of unwritten elements, or nil for zeros.
	Fill() []byte

	Resize(n int) error

	// ReadSlice returns the raw bytes of elements [lo, hi).
	ReadSlice(lo, hi int) ([]byte, error)

	// WriteSlice overwrites elements starting at lo. The array must
	// already be long enough.
	WriteSlice(lo int, data []byte) error
}

// Attributes are the key/value metadata of a node. Values are JSON-like:
// string, bool, int64, float64, []string, or []any of those.
type Attributes interface {
	Get(key string) (any, bool, error)
	Set(key string, value any) error
	Delete(key string) error
	Keys() ([]string, error)
}

// ArraySpec describes an array to create.
type ArraySpec struct {
	Len     int
	MaxLen  int
	DType   dtype.DataType
	Fill    []byte
	Storage StorageOptions

	// Data optionally holds the initial contents of all Len elements.
	Data []byte
}

// Validate checks the array spec for consistency.
func (s ArraySpec) Validate() error {
	if !s.DType.Valid() {
		return fmt.Errorf("%w: %s", dtype.ErrInvalidType, s.DType)
	}
	if s.Len < 0 {
		return fmt.Errorf("%w: negative length %d", ErrOutOfRange, s.Len)
	}
	if s.MaxLen > 0 && s.Len > s.MaxLen {
		return fmt.Errorf("%w: %d > %d", ErrMaxLen, s.Len, s.MaxLen)
	}
	if s.Fill != nil && len(s.Fill) != s.DType.Size {
		return fmt.Errorf("fill value has %d bytes, element size is %d", len(s.Fill), s.DType.Size)
	}
	if s.Data != nil && len(s.Data) != s.DType.DataSize(s.Len) {
		return fmt.Errorf("initial data has %d bytes, want %d", len(s.Data), s.DType.DataSize(s.Len))
	}
	return nil
}

// StorageOptions are passed through to the storage format.
type StorageOptions struct {
	Compressor string // "zlib", "gzip", "zstd", "lz4" or "none"
	Level      int
	Shuffle    bool
	Fletcher32 bool
	ChunkLen   int // elements per chunk; zero picks a default
}

// DefaultStorageOptions returns zlib level 6 with byte shuffling.
func DefaultStorageOptions() StorageOptions {
	return StorageOptions{
		Compressor: "zlib",
		Level:      6,
		Shuffle:    true,
	}
}

// EnumSize returns the bytes of label text an enumeration carries.
func EnumSize(dt dtype.DataType) int {
	n := 0
	for _, l := range dt.Enum {
		n += len(l)
	}
	return n
}

// CheckRange validates [lo, hi) against length n.
func CheckRange(lo, hi, n int) error {
	if lo < 0 || hi < lo || hi > n {
		return fmt.Errorf("%w: [%d, %d) of %d", ErrOutOfRange, lo, hi, n)
	}
	return nil
}

// FillPattern returns n elements of the fill value, or zeros.
func FillPattern(fill []byte, size, n int) []byte {
	out := make([]byte, size*n)
	if fill == nil {
		return out
	}
	for i := 0; i < n; i++ {
		copy(out[i*size:], fill)
	}
	return out
}
