package milvus

import (
	"context"
	"fmt"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"

	"Minerva/internal/config"
)

// Client wraps the Milvus SDK client together with its configuration.
type Client struct {
	Client client.Client
	Config *config.MilvusConfig
}

// Connect establishes a connection to Milvus.
func Connect(ctx context.Context, cfg *config.MilvusConfig) (*Client, error) {
	c, err := client.NewClient(ctx, client.Config{Address: cfg.Address})
	if err != nil {
		return nil, fmt.Errorf("cannot connect to Milvus: %w", err)
	}
	return &Client{Client: c, Config: cfg}, nil
}

// EnsureCollection creates the content collection and its vector index if
// they do not exist yet.
func (c *Client) EnsureCollection(ctx context.Context, collection string, dim int) error {
	exists, err := c.Client.HasCollection(ctx, collection)
	if err != nil {
		return fmt.Errorf("checking collection %q: %w", collection, err)
	}
	if exists {
		return nil
	}

	schema := entity.NewSchema().
		WithName(collection).
		WithDescription("ingested content chunks with embeddings").
		WithField(entity.NewField().WithName("id").
			WithDataType(entity.FieldTypeVarChar).WithMaxLength(128).WithIsPrimaryKey(true)).
		WithField(entity.NewField().WithName("embedding").
			WithDataType(entity.FieldTypeFloatVector).WithDim(int64(dim))).
		WithField(entity.NewField().WithName("content").
			WithDataType(entity.FieldTypeVarChar).WithMaxLength(65535)).
		WithField(entity.NewField().WithName("source_type").
			WithDataType(entity.FieldTypeVarChar).WithMaxLength(64)).
		WithField(entity.NewField().WithName("source_id").
			WithDataType(entity.FieldTypeVarChar).WithMaxLength(512)).
		WithField(entity.NewField().WithName("title").
			WithDataType(entity.FieldTypeVarChar).WithMaxLength(1024)).
		WithField(entity.NewField().WithName("url").
			WithDataType(entity.FieldTypeVarChar).WithMaxLength(2048))

	if err := c.Client.CreateCollection(ctx, schema, entity.DefaultShardNumber); err != nil {
		return fmt.Errorf("creating collection %q: %w", collection, err)
	}

	idx, err := entity.NewIndexIvfFlat(entity.COSINE, 128)
	if err != nil {
		return fmt.Errorf("building index definition: %w", err)
	}
	if err := c.Client.CreateIndex(ctx, collection, "embedding", idx, false); err != nil {
		return fmt.Errorf("creating index on %q: %w", collection, err)
	}
	return nil
}

// HealthCheck verifies the Milvus connection.
func (c *Client) HealthCheck(ctx context.Context) error {
	if c.Client == nil {
		return fmt.Errorf("milvus client is nil")
	}
	if _, err := c.Client.ListCollections(ctx); err != nil {
		return fmt.Errorf("milvus health check failed: %w", err)
	}
	return nil
}

// Close shuts down the connection.
func (c *Client) Close() error {
	if c.Client != nil {
		return c.Client.Close()
	}
	return nil
}
