package objectstore

import (
	"context"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"

	miniodb "Minerva/internal/database/minio"
)

// Store keeps the raw bytes of uploaded documents in a MinIO bucket, so the
// original file survives independently of what the adapters extract.
type Store struct {
	client *minio.Client
	bucket string
}

// New creates a Store and ensures the bucket exists.
func New(ctx context.Context, client *minio.Client, bucket string) (*Store, error) {
	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("checking bucket %q: %w", bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("creating bucket %q: %w", bucket, err)
		}
	}
	return &Store{client: client, bucket: bucket}, nil
}

// Put stores an object and returns its name.
func (s *Store) Put(ctx context.Context, name string, r io.Reader, size int64, contentType string) error {
	_, err := s.client.PutObject(ctx, s.bucket, name, r, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("storing object %q: %w", name, err)
	}
	return nil
}

// Get retrieves an object. The caller must close the returned reader.
func (s *Store) Get(ctx context.Context, name string) (io.ReadCloser, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, name, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("fetching object %q: %w", name, err)
	}
	return obj, nil
}

// HealthCheck verifies the MinIO connection.
func (s *Store) HealthCheck(ctx context.Context) error {
	return miniodb.HealthCheck(ctx, s.client)
}
