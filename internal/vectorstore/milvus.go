package vectorstore

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"

	"Minerva/internal/database/milvus"
	"Minerva/pkg/logger"
)

// MilvusStore implements Store on top of a Milvus collection with a varchar
// primary key. Upsert relies on Milvus primary-key semantics to overwrite
// entries on re-ingestion.
type MilvusStore struct {
	log        *logger.Logger
	db         *milvus.Client
	client     client.Client
	collection string
}

// NewMilvusStore creates a MilvusStore over an established connection,
// creating the collection on first use.
func NewMilvusStore(ctx context.Context, db *milvus.Client, collection string, dim int, log *logger.Logger) (*MilvusStore, error) {
	if db == nil || db.Client == nil {
		return nil, fmt.Errorf("milvus client is not initialized")
	}
	if err := db.EnsureCollection(ctx, collection, dim); err != nil {
		return nil, err
	}
	return &MilvusStore{
		log:        log,
		db:         db,
		client:     db.Client,
		collection: collection,
	}, nil
}

// Upsert writes entries as columns, overwriting rows with matching IDs.
func (s *MilvusStore) Upsert(ctx context.Context, entries []*Entry) error {
	if len(entries) == 0 {
		return nil
	}

	ids := make([]string, len(entries))
	vectors := make([][]float32, len(entries))
	contents := make([]string, len(entries))
	sourceTypes := make([]string, len(entries))
	sourceIDs := make([]string, len(entries))
	titles := make([]string, len(entries))
	urls := make([]string, len(entries))

	dim := 0
	for i, e := range entries {
		ids[i] = e.ID
		vectors[i] = e.Vector
		contents[i] = e.Content
		sourceTypes[i] = e.SourceType
		sourceIDs[i] = e.SourceID
		titles[i] = e.Title
		urls[i] = e.URL
		if len(e.Vector) > dim {
			dim = len(e.Vector)
		}
	}

	cols := []entity.Column{
		entity.NewColumnVarChar(FieldID, ids),
		entity.NewColumnFloatVector(FieldEmbedding, dim, vectors),
		entity.NewColumnVarChar(FieldContent, contents),
		entity.NewColumnVarChar(FieldSourceType, sourceTypes),
		entity.NewColumnVarChar(FieldSourceID, sourceIDs),
		entity.NewColumnVarChar(FieldTitle, titles),
		entity.NewColumnVarChar(FieldURL, urls),
	}

	s.log.WithFields(map[string]interface{}{"count": len(entries), "collection": s.collection}).
		Info("upserting entries into Milvus")
	if _, err := s.client.Upsert(ctx, s.collection, "" /* default partition */, cols...); err != nil {
		return fmt.Errorf("failed to upsert data into Milvus: %w", err)
	}
	return nil
}

// Search performs a vector similarity search with optional metadata filtering.
func (s *MilvusStore) Search(ctx context.Context, vector []float32, topK int, filters map[string]string) ([]*Hit, error) {
	if err := s.client.LoadCollection(ctx, s.collection, false); err != nil {
		return nil, fmt.Errorf("loading collection %q: %w", s.collection, err)
	}

	filterExpr := buildFilterExpression(filters)
	sp, _ := entity.NewIndexIvfFlatSearchParam(10)
	outputFields := []string{FieldID, FieldContent, FieldSourceType, FieldSourceID, FieldTitle, FieldURL}

	results, err := s.client.Search(
		ctx, s.collection, []string{}, filterExpr, outputFields,
		[]entity.Vector{entity.FloatVector(vector)},
		FieldEmbedding, entity.COSINE, topK, sp,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to search in Milvus: %w", err)
	}

	var hits []*Hit
	for _, res := range results {
		columns := make(map[string][]string)
		for _, field := range res.Fields {
			if col, ok := field.(*entity.ColumnVarChar); ok {
				columns[field.Name()] = col.Data()
			}
		}

		value := func(name string, i int) string {
			if data, ok := columns[name]; ok && i < len(data) {
				return data[i]
			}
			return ""
		}

		for i := 0; i < res.ResultCount; i++ {
			hits = append(hits, &Hit{
				ID:         value(FieldID, i),
				Score:      res.Scores[i],
				Content:    value(FieldContent, i),
				SourceType: value(FieldSourceType, i),
				SourceID:   value(FieldSourceID, i),
				Title:      value(FieldTitle, i),
				URL:        value(FieldURL, i),
			})
		}
	}
	return hits, nil
}

// HealthCheck verifies the backend is reachable.
func (s *MilvusStore) HealthCheck(ctx context.Context) error {
	return s.db.HealthCheck(ctx)
}

// Close shuts down the underlying connection.
func (s *MilvusStore) Close() error {
	return s.db.Close()
}

// buildFilterExpression creates a Milvus filter expression string from a map.
func buildFilterExpression(filters map[string]string) string {
	if len(filters) == 0 {
		return ""
	}

	conditions := make([]string, 0, len(filters))
	for key, value := range filters {
		conditions = append(conditions, fmt.Sprintf(`%s == "%s"`, key, value))
	}
	// Stable ordering keeps the expression deterministic.
	sort.Strings(conditions)
	return strings.Join(conditions, " and ")
}

// compile-time check to ensure MilvusStore implements the Store interface
var _ Store = (*MilvusStore)(nil)
