package storage

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devlink/apiserver/config"
)

type fakeBackend struct {
	objects map[string][]byte
	types   map[string]string
}

func (f *fakeBackend) EnsureBucket(context.Context) error { return nil }

func (f *fakeBackend) Put(_ context.Context, key string, r io.Reader, _ int64, contentType string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	f.objects[key] = data
	f.types[key] = contentType
	return nil
}

func (f *fakeBackend) Get(_ context.Context, key string) (io.ReadCloser, error) {
	data, ok := f.objects[key]
	if !ok {
		return nil, ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (f *fakeBackend) Delete(_ context.Context, key string) error {
	delete(f.objects, key)
	return nil
}

func (f *fakeBackend) Bucket() string { return "test" }

func TestStorageDelegatesToBackend(t *testing.T) {
	ctx := context.Background()
	backend := &fakeBackend{objects: map[string][]byte{}, types: map[string]string{}}
	s := NewStorage(backend)

	require.NoError(t, s.Put(ctx, "avatars/u1", bytes.NewReader([]byte("png")), 3, "image/png"))
	assert.Equal(t, "image/png", backend.types["avatars/u1"])

	rc, err := s.Get(ctx, "avatars/u1")
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "png", string(data))

	require.NoError(t, s.Delete(ctx, "avatars/u1"))
	_, err = s.Get(ctx, "avatars/u1")
	assert.ErrorIs(t, err, ErrObjectNotFound)
	assert.Equal(t, "test", s.Bucket())
}

func TestOpenWithoutBackend(t *testing.T) {
	s, err := Open(context.Background(), config.StorageConfig{Backend: config.StorageNone})
	require.NoError(t, err)
	assert.Nil(t, s)

	_, err = Open(context.Background(), config.StorageConfig{Backend: "ftp"})
	assert.Error(t, err)
}

func TestNewClientsRequireBucket(t *testing.T) {
	_, err := NewMinioClient(config.MinioConfig{Endpoint: "localhost:9000", AccessKey: "a", SecretKey: "b"})
	assert.EqualError(t, err, "minio bucket is required")

	_, err = NewS3Client(context.Background(), config.S3Config{Region: "us-east-1"})
	assert.EqualError(t, err, "s3 bucket is required")
}
