package gcskv

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robert-malhotra/go-coltab/kv"
)

func TestNewRequiresBucket(t *testing.T) {
	_, err := New(context.Background(), "", "p")
	assert.Error(t, err)
}

// TestBucket runs against a real bucket when COLTAB_TEST_GCS_BUCKET is set.
func TestBucket(t *testing.T) {
	bucket := os.Getenv("COLTAB_TEST_GCS_BUCKET")
	if bucket == "" {
		t.Skip("COLTAB_TEST_GCS_BUCKET not set")
	}
	ctx := context.Background()
	var opts []Option
	if f := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"); f != "" {
		opts = append(opts, WithCredentialsFile(f))
	}
	s, err := New(ctx, bucket, "coltab-test", opts...)
	require.NoError(t, err)
	defer s.Close()
	defer s.DeletePrefix(ctx, "")

	require.NoError(t, s.Put(ctx, "t/.zgroup", []byte(`{"zarr_format":2}`)))
	require.NoError(t, s.Put(ctx, "t/x/0", []byte{1, 2, 3}))

	got, err := s.Get(ctx, "t/x/0")
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, got)

	names, err := s.List(ctx, "t")
	require.NoError(t, err)
	assert.Equal(t, []string{".zgroup", "x"}, names)

	require.NoError(t, s.DeletePrefix(ctx, "t/x"))
	_, err = s.Get(ctx, "t/x/0")
	assert.ErrorIs(t, err, kv.ErrNotExist)
}
