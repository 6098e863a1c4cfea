package docstore

import (
	"context"

	"Minerva/internal/source/schema"
)

// DocStore stores the full text of content chunks keyed by their entry ID,
// so search hits can be enriched beyond what the vector store payload holds.
type DocStore interface {
	Add(ctx context.Context, records map[string]*schema.ContentRecord) error
	Get(ctx context.Context, ids []string) (map[string]*schema.ContentRecord, error)
	Delete(ctx context.Context, ids []string) error
}
