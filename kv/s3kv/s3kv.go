// Package s3kv implements kv.Store on an Amazon S3 (or S3-compatible)
// bucket.
package s3kv

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/robert-malhotra/go-coltab/kv"
)

// maxDeleteBatch is the DeleteObjects request limit.
const maxDeleteBatch = 1000

// Option configures a Store.
type Option func(*options)

type options struct {
	region    string
	endpoint  string
	pathStyle bool
	partSize  int64
	client    *s3.Client
}

// WithRegion sets the AWS region.
func WithRegion(region string) Option {
	return func(o *options) { o.region = region }
}

// WithEndpoint points the client at an S3-compatible service.
func WithEndpoint(url string) Option {
	return func(o *options) { o.endpoint = url }
}

// WithPathStyle selects path-style bucket addressing.
func WithPathStyle(v bool) Option {
	return func(o *options) { o.pathStyle = v }
}

// WithPartSize sets the multipart upload part size for large chunks.
func WithPartSize(n int64) Option {
	return func(o *options) { o.partSize = n }
}

// WithClient uses an existing client instead of loading configuration.
func WithClient(c *s3.Client) Option {
	return func(o *options) { o.client = c }
}

// Store is a kv.Store on an S3 bucket. Keys are stored below prefix.
type Store struct {
	client   *s3.Client
	uploader *manager.Uploader
	bucket   string
	prefix   string
}

// New connects to bucket. Credentials come from the default AWS chain.
func New(ctx context.Context, bucket, prefix string, opts ...Option) (*Store, error) {
	o := options{partSize: manager.DefaultUploadPartSize}
	for _, opt := range opts {
		opt(&o)
	}
	if bucket == "" {
		return nil, errors.New("s3kv: bucket is required")
	}

	client := o.client
	if client == nil {
		var loadOpts []func(*awsconfig.LoadOptions) error
		if o.region != "" {
			loadOpts = append(loadOpts, awsconfig.WithRegion(o.region))
		}
		cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
		if err != nil {
			return nil, fmt.Errorf("s3kv: load aws config: %w", err)
		}
		client = s3.NewFromConfig(cfg, func(so *s3.Options) {
			if o.endpoint != "" {
				so.BaseEndpoint = aws.String(o.endpoint)
			}
			so.UsePathStyle = o.pathStyle
		})
	}

	uploader := manager.NewUploader(client, func(u *manager.Uploader) {
		u.PartSize = o.partSize
	})
	return &Store{
		client:   client,
		uploader: uploader,
		bucket:   bucket,
		prefix:   strings.Trim(prefix, "/"),
	}, nil
}

func (s *Store) objectKey(key string) string {
	return kv.Join(s.prefix, key)
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(key)),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%w: %s", kv.ErrNotExist, key)
		}
		return nil, fmt.Errorf("s3kv: get %s: %w", key, err)
	}
	defer out.Body.Close()
	return io.ReadAll(out.Body)
}

func (s *Store) Put(ctx context.Context, key string, value []byte) error {
	if err := kv.CheckKey(key); err != nil {
		return err
	}
	_, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.objectKey(key)),
		Body:        bytes.NewReader(value),
		ContentType: aws.String(contentType(key)),
	})
	if err != nil {
		return fmt.Errorf("s3kv: put %s: %w", key, err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(key)),
	})
	if err != nil && !isNotFound(err) {
		return fmt.Errorf("s3kv: delete %s: %w", key, err)
	}
	return nil
}

func (s *Store) DeletePrefix(ctx context.Context, prefix string) error {
	var keys []string
	if prefix != "" {
		keys = append(keys, s.objectKey(prefix))
	}
	p := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(kv.DirPrefix(s.objectKey(prefix))),
	})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return fmt.Errorf("s3kv: list %s: %w", prefix, err)
		}
		for _, obj := range page.Contents {
			keys = append(keys, aws.ToString(obj.Key))
		}
	}

	for len(keys) > 0 {
		n := min(len(keys), maxDeleteBatch)
		ids := make([]types.ObjectIdentifier, n)
		for i, k := range keys[:n] {
			ids[i] = types.ObjectIdentifier{Key: aws.String(k)}
		}
		_, err := s.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(s.bucket),
			Delete: &types.Delete{Objects: ids, Quiet: aws.Bool(true)},
		})
		if err != nil {
			return fmt.Errorf("s3kv: delete %s: %w", prefix, err)
		}
		keys = keys[n:]
	}
	return nil
}

func (s *Store) List(ctx context.Context, prefix string) ([]string, error) {
	dir := kv.DirPrefix(s.objectKey(prefix))
	p := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket:    aws.String(s.bucket),
		Prefix:    aws.String(dir),
		Delimiter: aws.String("/"),
	})
	var names []string
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("s3kv: list %s: %w", prefix, err)
		}
		for _, cp := range page.CommonPrefixes {
			names = append(names, strings.TrimSuffix(strings.TrimPrefix(aws.ToString(cp.Prefix), dir), "/"))
		}
		for _, obj := range page.Contents {
			names = append(names, strings.TrimPrefix(aws.ToString(obj.Key), dir))
		}
	}
	sort.Strings(names)
	return names, nil
}

// Close is a no-op; the client holds no resources that need releasing.
func (s *Store) Close() error { return nil }

func isNotFound(err error) bool {
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var nf *types.NotFound
	if errors.As(err, &nf) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		code := apiErr.ErrorCode()
		return code == "NoSuchKey" || code == "NotFound"
	}
	return false
}

func contentType(key string) string {
	base := key[strings.LastIndexByte(key, '/')+1:]
	if strings.HasPrefix(base, ".z") {
		return "application/json"
	}
	return "application/octet-stream"
}

var _ kv.Store = (*Store)(nil)
