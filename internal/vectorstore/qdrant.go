package vectorstore

import (
	"context"
	"fmt"
	"sort"

	"github.com/qdrant/go-client/qdrant"

	"Minerva/internal/config"
	"Minerva/pkg/logger"
)

// QdrantStore implements Store on top of a Qdrant collection. Point IDs are
// deterministic UUIDs, so upserting the same entry twice overwrites it.
type QdrantStore struct {
	log        *logger.Logger
	client     *qdrant.Client
	collection string
}

// NewQdrantStore connects to Qdrant and creates the collection on first use.
func NewQdrantStore(ctx context.Context, cfg *config.QdrantConfig, collection string, dim int, log *logger.Logger) (*QdrantStore, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("cannot connect to Qdrant: %w", err)
	}

	s := &QdrantStore{log: log, client: client, collection: collection}
	if err := s.ensureCollection(ctx, dim); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *QdrantStore) ensureCollection(ctx context.Context, dim int) error {
	exists, err := s.client.CollectionExists(ctx, s.collection)
	if err != nil {
		return fmt.Errorf("checking collection %q: %w", s.collection, err)
	}
	if exists {
		return nil
	}

	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(dim),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("creating collection %q: %w", s.collection, err)
	}
	return nil
}

// Upsert writes entries as points. Payload carries the content alongside
// the source fields so hits are self-describing.
func (s *QdrantStore) Upsert(ctx context.Context, entries []*Entry) error {
	if len(entries) == 0 {
		return nil
	}

	points := make([]*qdrant.PointStruct, 0, len(entries))
	for _, e := range entries {
		payload := map[string]interface{}{
			FieldContent:    e.Content,
			FieldSourceType: e.SourceType,
			FieldSourceID:   e.SourceID,
			FieldTitle:      e.Title,
			FieldURL:        e.URL,
		}
		for k, v := range e.Metadata {
			payload[k] = v
		}

		points = append(points, &qdrant.PointStruct{
			Id:      qdrant.NewID(e.ID),
			Vectors: qdrant.NewVectors(e.Vector...),
			Payload: qdrant.NewValueMap(payload),
		})
	}

	s.log.WithFields(map[string]interface{}{"count": len(points), "collection": s.collection}).
		Info("upserting points into Qdrant")
	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.collection,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("failed to upsert points into Qdrant: %w", err)
	}
	return nil
}

// Search performs a vector similarity search with optional payload filtering.
func (s *QdrantStore) Search(ctx context.Context, vector []float32, topK int, filters map[string]string) ([]*Hit, error) {
	var filter *qdrant.Filter
	if len(filters) > 0 {
		keys := make([]string, 0, len(filters))
		for k := range filters {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		conditions := make([]*qdrant.Condition, 0, len(keys))
		for _, k := range keys {
			conditions = append(conditions, qdrant.NewMatch(k, filters[k]))
		}
		filter = &qdrant.Filter{Must: conditions}
	}

	points, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          qdrant.PtrOf(uint64(topK)),
		Filter:         filter,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to search in Qdrant: %w", err)
	}

	hits := make([]*Hit, 0, len(points))
	for _, p := range points {
		payload := p.GetPayload()
		str := func(key string) string {
			if v, ok := payload[key]; ok {
				return v.GetStringValue()
			}
			return ""
		}

		metadata := make(map[string]interface{})
		for k, v := range payload {
			switch k {
			case FieldContent, FieldSourceType, FieldSourceID, FieldTitle, FieldURL:
			default:
				metadata[k] = valueToInterface(v)
			}
		}

		hits = append(hits, &Hit{
			ID:         p.GetId().GetUuid(),
			Score:      p.GetScore(),
			Content:    str(FieldContent),
			SourceType: str(FieldSourceType),
			SourceID:   str(FieldSourceID),
			Title:      str(FieldTitle),
			URL:        str(FieldURL),
			Metadata:   metadata,
		})
	}
	return hits, nil
}

// valueToInterface unwraps a Qdrant payload value into a plain Go value.
func valueToInterface(v *qdrant.Value) interface{} {
	switch kind := v.GetKind().(type) {
	case *qdrant.Value_StringValue:
		return kind.StringValue
	case *qdrant.Value_IntegerValue:
		return kind.IntegerValue
	case *qdrant.Value_DoubleValue:
		return kind.DoubleValue
	case *qdrant.Value_BoolValue:
		return kind.BoolValue
	default:
		return v.String()
	}
}

// HealthCheck verifies the Qdrant connection.
func (s *QdrantStore) HealthCheck(ctx context.Context) error {
	if _, err := s.client.HealthCheck(ctx); err != nil {
		return fmt.Errorf("qdrant health check failed: %w", err)
	}
	return nil
}

// Close shuts down the underlying gRPC connection.
func (s *QdrantStore) Close() error {
	return s.client.Close()
}

// compile-time check to ensure QdrantStore implements the Store interface
var _ Store = (*QdrantStore)(nil)
