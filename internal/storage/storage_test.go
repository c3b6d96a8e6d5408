package storage

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tasktrack/apiserver/config"
)

func TestConnectWithoutBackend(t *testing.T) {
	s, err := Connect(context.Background(), config.StorageConfig{})
	require.NoError(t, err)
	assert.Nil(t, s)

	_, err = Connect(context.Background(), config.StorageConfig{Backend: "s3"})
	assert.ErrorContains(t, err, `unknown storage backend "s3"`)
}

func TestMinioClientValidatesConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.MinioConfig
		want string
	}{
		{"endpoint", config.MinioConfig{}, "minio endpoint is required"},
		{"credentials", config.MinioConfig{Endpoint: "localhost:9000", Bucket: "b"}, "minio access key and secret key are required"},
		{"bucket", config.MinioConfig{Endpoint: "localhost:9000", AccessKey: "a", SecretKey: "s"}, "minio bucket is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewMinioClient(tt.cfg)
			assert.EqualError(t, err, tt.want)
		})
	}

	client, err := NewMinioClient(config.MinioConfig{Endpoint: "localhost:9000", AccessKey: "a", SecretKey: "s", Bucket: "exports"})
	require.NoError(t, err)
	assert.Equal(t, "exports", NewStorage(client).Bucket())
}

func TestGCSClientRequiresBucket(t *testing.T) {
	_, err := NewGCSClient(context.Background(), config.GCSConfig{})
	assert.EqualError(t, err, "gcs bucket is required")

	_, err = Connect(context.Background(), config.StorageConfig{Backend: BackendGCS})
	assert.ErrorContains(t, err, "gcs bucket is required")
}

type closeCounter struct {
	closed int
}

func (c *closeCounter) EnsureBucket(context.Context) error { return nil }
func (c *closeCounter) Put(context.Context, string, io.Reader, int64, string) error {
	return nil
}
func (c *closeCounter) Get(context.Context, string) (io.ReadCloser, error) {
	return nil, ErrObjectNotFound
}
func (c *closeCounter) List(context.Context, string) ([]ObjectInfo, error) { return nil, nil }
func (c *closeCounter) Bucket() string                                     { return "exports" }
func (c *closeCounter) Close() error {
	c.closed++
	return nil
}

func TestStorageCloseReleasesBackend(t *testing.T) {
	backend := &closeCounter{}
	s := NewStorage(backend)

	require.NoError(t, s.Close())
	assert.Equal(t, 1, backend.closed)

	client, err := NewMinioClient(config.MinioConfig{Endpoint: "localhost:9000", AccessKey: "a", SecretKey: "s", Bucket: "exports"})
	require.NoError(t, err)
	assert.NoError(t, client.Close())
}
