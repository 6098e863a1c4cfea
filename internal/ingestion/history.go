package ingestion

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"Minerva/internal/source/schema"
)

// HistoryEntry is one persisted ingestion run.
type HistoryEntry struct {
	SourceType     string       `bson:"source_type" json:"source_type"`
	Input          schema.Input `bson:"input" json:"input"`
	Status         string       `bson:"status" json:"status"`
	PagesProcessed int          `bson:"pages_processed" json:"pages_processed"`
	ChunksUploaded int          `bson:"chunks_uploaded" json:"chunks_uploaded"`
	RecordsFailed  int          `bson:"records_failed" json:"records_failed"`
	Errors         []string     `bson:"errors,omitempty" json:"errors,omitempty"`
	StartedAt      time.Time    `bson:"started_at" json:"started_at"`
	FinishedAt     time.Time    `bson:"finished_at" json:"finished_at"`
}

// History records completed ingestion runs for later inspection.
type History interface {
	Insert(ctx context.Context, entry *HistoryEntry) error
	List(ctx context.Context, limit, offset int64) ([]*HistoryEntry, error)
}

// MongoHistory stores run history in a MongoDB collection.
type MongoHistory struct {
	coll *mongo.Collection
}

// NewMongoHistory uses the "ingestion_history" collection of db.
func NewMongoHistory(db *mongo.Database) *MongoHistory {
	return &MongoHistory{coll: db.Collection("ingestion_history")}
}

func (h *MongoHistory) Insert(ctx context.Context, entry *HistoryEntry) error {
	if _, err := h.coll.InsertOne(ctx, entry); err != nil {
		return fmt.Errorf("inserting ingestion history: %w", err)
	}
	return nil
}

// List returns runs newest first.
func (h *MongoHistory) List(ctx context.Context, limit, offset int64) ([]*HistoryEntry, error) {
	if limit <= 0 {
		limit = 20
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "started_at", Value: -1}}).
		SetLimit(limit).
		SetSkip(offset)

	cursor, err := h.coll.Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, fmt.Errorf("listing ingestion history: %w", err)
	}
	defer cursor.Close(ctx)

	var entries []*HistoryEntry
	if err := cursor.All(ctx, &entries); err != nil {
		return nil, fmt.Errorf("decoding ingestion history: %w", err)
	}
	return entries, nil
}

var _ History = (*MongoHistory)(nil)
