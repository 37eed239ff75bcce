package coltab

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/multierr"

	"github.com/robert-malhotra/go-coltab/internal/backend"
	"github.com/robert-malhotra/go-coltab/internal/backend/memory"
	"github.com/robert-malhotra/go-coltab/internal/backend/zarr"
	"github.com/robert-malhotra/go-coltab/kv"
	"github.com/robert-malhotra/go-coltab/kv/gcskv"
	"github.com/robert-malhotra/go-coltab/kv/s3kv"
)

// Resource is a parsed store URI.
type Resource struct {
	Scheme   string // "file", "mem", "s3" or "gs"
	Location string // directory, memory store name, or bucket/prefix
	Group    string // group inside the store, always starting with "/"
}

// String reassembles the URI.
func (r Resource) String() string {
	s := r.Scheme + "://" + r.Location
	if r.Group != "/" {
		s += "::" + r.Group
	}
	return s
}

// SplitURI parses scheme://location::/group. A URI without a scheme is a
// filesystem path, and a missing group is the root.
func SplitURI(uri string) (Resource, error) {
	if uri == "" {
		return Resource{}, fmt.Errorf("%w: empty", ErrInvalidURI)
	}
	r := Resource{Scheme: "file", Group: "/"}
	rest := uri
	if i := strings.Index(rest, "://"); i >= 0 {
		r.Scheme = strings.ToLower(rest[:i])
		rest = rest[i+3:]
	}
	if i := strings.Index(rest, "::"); i >= 0 {
		r.Group = backend.CleanPath(rest[i+2:])
		rest = rest[:i]
	}
	r.Location = rest

	switch r.Scheme {
	case "file":
		if r.Location == "" {
			return Resource{}, fmt.Errorf("%w: %q has no path", ErrInvalidURI, uri)
		}
	case "mem", "memory":
		r.Scheme = "mem"
	case "s3", "gs", "gcs":
		if r.Scheme == "gcs" {
			r.Scheme = "gs"
		}
		if strings.Trim(r.Location, "/") == "" {
			return Resource{}, fmt.Errorf("%w: %q has no bucket", ErrInvalidURI, uri)
		}
	default:
		return Resource{}, fmt.Errorf("%w: unknown scheme %q", ErrInvalidURI, r.Scheme)
	}
	for _, part := range backend.SplitPath(r.Group) {
		if err := backend.CheckName(part); err != nil {
			return Resource{}, fmt.Errorf("%w: %v", ErrInvalidURI, err)
		}
	}
	return r, nil
}

// bucketPrefix splits "bucket/some/prefix".
func bucketPrefix(loc string) (string, string) {
	loc = strings.Trim(loc, "/")
	if i := strings.IndexByte(loc, '/'); i >= 0 {
		return loc[:i], loc[i+1:]
	}
	return loc, ""
}

// openBackend opens the handle a resource names.
func openBackend(ctx context.Context, r Resource, o *storeOptions) (backend.Handle, error) {
	var store kv.Store
	switch r.Scheme {
	case "mem":
		return memory.Open(r.Location), nil
	case "file":
		d, err := kv.NewDir(r.Location)
		if err != nil {
			return nil, err
		}
		store = d
	case "s3":
		bucket, prefix := bucketPrefix(r.Location)
		s, err := s3kv.New(ctx, bucket, prefix, o.s3...)
		if err != nil {
			return nil, err
		}
		store = s
	case "gs":
		bucket, prefix := bucketPrefix(r.Location)
		s, err := gcskv.New(ctx, bucket, prefix, o.gcs...)
		if err != nil {
			return nil, err
		}
		store = s
	default:
		return nil, fmt.Errorf("%w: unknown scheme %q", ErrInvalidURI, r.Scheme)
	}

	h, err := zarr.Open(store, zarr.WithContext(ctx), zarr.WithCloseStore())
	if err != nil {
		return nil, multierr.Append(err, store.Close())
	}
	return h, nil
}
