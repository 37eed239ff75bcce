// Package gcskv implements kv.Store on a Google Cloud Storage bucket.
package gcskv

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/robert-malhotra/go-coltab/kv"
)

// Option configures a Store.
type Option func(*options)

type options struct {
	credentialsFile string
	endpoint        string
	client          *storage.Client
}

// WithCredentialsFile authenticates with a service account key file.
func WithCredentialsFile(path string) Option {
	return func(o *options) { o.credentialsFile = path }
}

// WithEndpoint points the client at an emulator or alternate endpoint.
func WithEndpoint(url string) Option {
	return func(o *options) { o.endpoint = url }
}

// WithClient uses an existing client. Close then leaves it open.
func WithClient(c *storage.Client) Option {
	return func(o *options) { o.client = c }
}

// Store is a kv.Store on a GCS bucket. Keys are stored below prefix.
type Store struct {
	client *storage.Client
	bucket *storage.BucketHandle
	prefix string
	owned  bool
}

// New connects to bucket using application default credentials unless
// WithCredentialsFile is given.
func New(ctx context.Context, bucket, prefix string, opts ...Option) (*Store, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if bucket == "" {
		return nil, errors.New("gcskv: bucket is required")
	}

	client, owned := o.client, false
	if client == nil {
		var copts []option.ClientOption
		if o.credentialsFile != "" {
			copts = append(copts, option.WithCredentialsFile(o.credentialsFile))
		}
		if o.endpoint != "" {
			copts = append(copts, option.WithEndpoint(o.endpoint))
		}
		c, err := storage.NewClient(ctx, copts...)
		if err != nil {
			return nil, fmt.Errorf("gcskv: create client: %w", err)
		}
		client, owned = c, true
	}

	return &Store{
		client: client,
		bucket: client.Bucket(bucket),
		prefix: strings.Trim(prefix, "/"),
		owned:  owned,
	}, nil
}

func (s *Store) objectName(key string) string {
	return kv.Join(s.prefix, key)
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	r, err := s.bucket.Object(s.objectName(key)).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, fmt.Errorf("%w: %s", kv.ErrNotExist, key)
	}
	if err != nil {
		return nil, fmt.Errorf("gcskv: get %s: %w", key, err)
	}
	defer r.Close()
	return io.ReadAll(r)
}

func (s *Store) Put(ctx context.Context, key string, value []byte) error {
	if err := kv.CheckKey(key); err != nil {
		return err
	}
	w := s.bucket.Object(s.objectName(key)).NewWriter(ctx)
	if strings.HasPrefix(key[strings.LastIndexByte(key, '/')+1:], ".z") {
		w.ContentType = "application/json"
	} else {
		w.ContentType = "application/octet-stream"
	}
	if _, err := w.Write(value); err != nil {
		_ = w.Close()
		return fmt.Errorf("gcskv: put %s: %w", key, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("gcskv: put %s: %w", key, err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	err := s.bucket.Object(s.objectName(key)).Delete(ctx)
	if err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		return fmt.Errorf("gcskv: delete %s: %w", key, err)
	}
	return nil
}

func (s *Store) DeletePrefix(ctx context.Context, prefix string) error {
	if prefix != "" {
		if err := s.Delete(ctx, prefix); err != nil {
			return err
		}
	}
	it := s.bucket.Objects(ctx, &storage.Query{Prefix: kv.DirPrefix(s.objectName(prefix))})
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			return nil
		}
		if err != nil {
			return fmt.Errorf("gcskv: list %s: %w", prefix, err)
		}
		err = s.bucket.Object(attrs.Name).Delete(ctx)
		if err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
			return fmt.Errorf("gcskv: delete %s: %w", attrs.Name, err)
		}
	}
}

func (s *Store) List(ctx context.Context, prefix string) ([]string, error) {
	dir := kv.DirPrefix(s.objectName(prefix))
	it := s.bucket.Objects(ctx, &storage.Query{Prefix: dir, Delimiter: "/"})
	var names []string
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("gcskv: list %s: %w", prefix, err)
		}
		if attrs.Prefix != "" {
			names = append(names, strings.TrimSuffix(strings.TrimPrefix(attrs.Prefix, dir), "/"))
			continue
		}
		names = append(names, strings.TrimPrefix(attrs.Name, dir))
	}
	sort.Strings(names)
	return names, nil
}

// Close closes the client if New created it.
func (s *Store) Close() error {
	if s.owned {
		return s.client.Close()
	}
	return nil
}

var _ kv.Store = (*Store)(nil)
