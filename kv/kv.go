// Package kv defines the flat key/value object store that array metadata
// and chunks are persisted to, with in-memory and directory
// implementations. Cloud object stores live in the s3kv and gcskv
// subpackages.
//
// Keys are slash-separated relative paths such as "table/x/.zarray" or
// "table/x/0". A key is never a prefix of another key plus "/" and a
// value at the same time: stores model a tree whose leaves hold bytes.
package kv

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrNotExist is returned by Get when a key has no value.
var ErrNotExist = errors.New("key does not exist")

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("store is closed")

// ErrInvalidKey is returned for keys that are empty or not relative paths.
var ErrInvalidKey = errors.New("invalid key")

// Store is a key/value object store.
type Store interface {
	// Get returns the value stored at key, or ErrNotExist.
	Get(ctx context.Context, key string) ([]byte, error)

	// Put stores value at key, replacing any previous value.
	Put(ctx context.Context, key string, value []byte) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// DeletePrefix removes every key under prefix + "/", and prefix
	// itself. An empty prefix removes everything.
	DeletePrefix(ctx context.Context, prefix string) error

	// List returns the sorted names of the immediate children of prefix:
	// both values and sub-prefixes.
	List(ctx context.Context, prefix string) ([]string, error)

	Close() error
}

// Join joins key components with "/".
func Join(parts ...string) string {
	out := parts[:0:0]
	for _, p := range parts {
		p = strings.Trim(p, "/")
		if p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, "/")
}

// CheckKey validates a key.
func CheckKey(key string) error {
	if key == "" || strings.HasPrefix(key, "/") || strings.HasSuffix(key, "/") {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	for _, p := range strings.Split(key, "/") {
		if p == "" || p == "." || p == ".." {
			return fmt.Errorf("%w: %q", ErrInvalidKey, key)
		}
	}
	return nil
}

// Children returns the sorted immediate children of prefix among keys.
// Flat stores without a native delimiter listing use it.
func Children(keys []string, prefix string) []string {
	dir := dirPrefix(prefix)
	seen := map[string]bool{}
	for _, k := range keys {
		if !strings.HasPrefix(k, dir) {
			continue
		}
		rest := k[len(dir):]
		if rest == "" {
			continue
		}
		if i := strings.IndexByte(rest, '/'); i >= 0 {
			rest = rest[:i]
		}
		seen[rest] = true
	}
	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// dirPrefix returns prefix with a trailing slash, or "" for the root.
func dirPrefix(prefix string) string {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return ""
	}
	return prefix + "/"
}

// DirPrefix is the exported form of dirPrefix for store implementations.
func DirPrefix(prefix string) string { return dirPrefix(prefix) }

// Under reports whether key is prefix itself or lies below it.
func Under(key, prefix string) bool {
	prefix = strings.Trim(prefix, "/")
	return prefix == "" || key == prefix || strings.HasPrefix(key, prefix+"/")
}
