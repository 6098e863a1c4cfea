package minio

import (
	"context"
	"fmt"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"Minerva/internal/config"
)

// Connect creates a MinIO client and verifies connectivity by listing buckets.
func Connect(ctx context.Context, cfg *config.MinIOConfig) (*minio.Client, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.Secure,
	})
	if err != nil {
		return nil, fmt.Errorf("cannot create MinIO client: %w", err)
	}

	if _, err := client.ListBuckets(ctx); err != nil {
		return nil, fmt.Errorf("MinIO connectivity check failed: %w", err)
	}
	return client, nil
}

// HealthCheck verifies a MinIO connection.
func HealthCheck(ctx context.Context, client *minio.Client) error {
	if client == nil {
		return fmt.Errorf("minio client is not initialized")
	}
	if _, err := client.ListBuckets(ctx); err != nil {
		return fmt.Errorf("MinIO health check failed: %w", err)
	}
	return nil
}
