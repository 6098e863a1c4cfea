package vectorstore

import "context"

// Field names shared by every backend, used for payloads and filtering.
const (
	FieldID         = "id"
	FieldEmbedding  = "embedding"
	FieldContent    = "content"
	FieldSourceType = "source_type"
	FieldSourceID   = "source_id"
	FieldTitle      = "title"
	FieldURL        = "url"
)

// Entry is one vector plus its payload as stored in the backend. IDs are
// deterministic, so writing the same entry twice overwrites rather than
// duplicates.
type Entry struct {
	ID         string
	Vector     []float32
	Content    string
	SourceType string
	SourceID   string
	Title      string
	URL        string
	Metadata   map[string]interface{}
}

// Hit is one search result.
type Hit struct {
	ID         string
	Score      float32
	Content    string
	SourceType string
	SourceID   string
	Title      string
	URL        string
	Metadata   map[string]interface{}
}

// Store is the interface both vector store backends implement.
type Store interface {
	// Upsert writes entries, overwriting any existing entry with the same ID.
	Upsert(ctx context.Context, entries []*Entry) error

	// Search returns the topK nearest entries to the query vector,
	// optionally restricted by exact-match payload filters.
	Search(ctx context.Context, vector []float32, topK int, filters map[string]string) ([]*Hit, error)

	// HealthCheck verifies the backend is reachable.
	HealthCheck(ctx context.Context) error

	// Close releases the underlying connection.
	Close() error
}
