package kv

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// Dir is a Store rooted at a filesystem directory. Keys map to files
// below the root, so the tree can be inspected with ordinary tools.
type Dir struct {
	root string

	mu     sync.RWMutex
	closed bool
}

// NewDir opens a directory store, creating root if needed.
func NewDir(root string) (*Dir, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}
	return &Dir{root: root}, nil
}

// Root returns the store's directory.
func (d *Dir) Root() string { return d.root }

func (d *Dir) path(key string) string {
	return filepath.Join(d.root, filepath.FromSlash(key))
}

func (d *Dir) check() error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrClosed
	}
	return nil
}

func (d *Dir) Get(ctx context.Context, key string) ([]byte, error) {
	if err := d.check(); err != nil {
		return nil, err
	}
	if err := CheckKey(key); err != nil {
		return nil, err
	}
	b, err := os.ReadFile(d.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotExist, key)
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}

// Put writes value to a temporary file and renames it into place.
func (d *Dir) Put(ctx context.Context, key string, value []byte) error {
	if err := d.check(); err != nil {
		return err
	}
	if err := CheckKey(key); err != nil {
		return err
	}
	p := d.path(key)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(p), ".tmp-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(value); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), p); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return nil
}

func (d *Dir) Delete(ctx context.Context, key string) error {
	if err := d.check(); err != nil {
		return err
	}
	if err := CheckKey(key); err != nil {
		return err
	}
	err := os.Remove(d.path(key))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func (d *Dir) DeletePrefix(ctx context.Context, prefix string) error {
	if err := d.check(); err != nil {
		return err
	}
	if prefix == "" {
		entries, err := os.ReadDir(d.root)
		if err != nil {
			return err
		}
		for _, e := range entries {
			if err := os.RemoveAll(filepath.Join(d.root, e.Name())); err != nil {
				return err
			}
		}
		return nil
	}
	if err := CheckKey(prefix); err != nil {
		return err
	}
	return os.RemoveAll(d.path(prefix))
}

func (d *Dir) List(ctx context.Context, prefix string) ([]string, error) {
	if err := d.check(); err != nil {
		return nil, err
	}
	dir := d.root
	if prefix != "" {
		if err := CheckKey(prefix); err != nil {
			return nil, err
		}
		dir = d.path(prefix)
	}
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return []string{}, nil
	}
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".tmp-") {
			continue
		}
		out = append(out, e.Name())
	}
	sort.Strings(out)
	return out, nil
}

func (d *Dir) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}
