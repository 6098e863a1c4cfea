package docstore

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v8"

	"Minerva/internal/source/schema"
)

const keyPrefix = "doc:"

// RedisDocStore is a Redis-backed implementation of the DocStore interface.
// Records are stored as JSON values under a "doc:" key prefix.
type RedisDocStore struct {
	client *redis.Client
}

// NewRedisDocStore creates a RedisDocStore over an established connection.
func NewRedisDocStore(client *redis.Client) *RedisDocStore {
	return &RedisDocStore{client: client}
}

func redisKey(id string) string {
	return keyPrefix + id
}

// Add writes records in one pipeline round trip.
func (s *RedisDocStore) Add(ctx context.Context, records map[string]*schema.ContentRecord) error {
	if len(records) == 0 {
		return nil
	}

	pipe := s.client.Pipeline()
	for id, rec := range records {
		data, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("marshaling record %q: %w", id, err)
		}
		pipe.Set(ctx, redisKey(id), data, 0)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("writing records to redis: %w", err)
	}
	return nil
}

// Get fetches records by ID; missing IDs are simply absent from the result.
func (s *RedisDocStore) Get(ctx context.Context, ids []string) (map[string]*schema.ContentRecord, error) {
	result := make(map[string]*schema.ContentRecord, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = redisKey(id)
	}

	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("reading records from redis: %w", err)
	}

	for i, v := range values {
		if v == nil {
			continue
		}
		raw, ok := v.(string)
		if !ok {
			continue
		}
		var rec schema.ContentRecord
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			return nil, fmt.Errorf("unmarshaling record %q: %w", ids[i], err)
		}
		result[ids[i]] = &rec
	}
	return result, nil
}

// Delete removes records by ID.
func (s *RedisDocStore) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = redisKey(id)
	}
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("deleting records from redis: %w", err)
	}
	return nil
}

// compile-time check to ensure RedisDocStore implements the DocStore interface
var _ DocStore = (*RedisDocStore)(nil)
