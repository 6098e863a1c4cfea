package ingestion

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"Minerva/internal/chunker"
	"Minerva/internal/docstore"
	"Minerva/internal/embedding"
	"Minerva/internal/source"
	"Minerva/internal/source/schema"
	"Minerva/internal/vectorstore"
	"Minerva/pkg/logger"
)

// Run statuses reported in summaries, history entries, and events.
const (
	StatusCompleted           = "completed"
	StatusCompletedWithErrors = "completed_with_errors"
	StatusFailed              = "failed"
)

// entryNamespace seeds deterministic entry IDs. The same source type and
// source ID always map to the same vector store ID, so re-ingesting content
// overwrites instead of duplicating.
var entryNamespace = uuid.MustParse("8c2e9f04-31a7-4a7e-9d3c-5b1f6e8a0d42")

// Events receives a notification after every ingestion run.
type Events interface {
	Publish(ctx context.Context, key string, v interface{}) error
}

// Request describes one ingestion run.
type Request struct {
	SourceType string        `json:"source_type"`
	Input      schema.Input  `json:"input"`
	Config     source.Config `json:"-"`
	MaxPages   int           `json:"max_pages,omitempty"`
}

// Summary is the outcome of one ingestion run. It is always produced, even
// when the run fails partway.
type Summary struct {
	Status         string    `json:"status"`
	SourceType     string    `json:"source_type"`
	PagesProcessed int       `json:"pages_processed"`
	ChunksUploaded int       `json:"chunks_uploaded"`
	RecordsFailed  int       `json:"records_failed"`
	// BySource counts processed records per content group (space, repository
	// or file), so multi-space or multi-file runs stay inspectable.
	BySource map[string]int `json:"by_source,omitempty"`
	Errors   []string       `json:"errors,omitempty"`
	StartedAt      time.Time `json:"started_at"`
	FinishedAt     time.Time `json:"finished_at"`
}

// Deps carries the pipeline's collaborators. History and Events are
// optional; the others are required.
type Deps struct {
	Registry *source.Registry
	Chunker  *chunker.Chunker
	Embedder embedding.Embedding
	Vectors  vectorstore.Store
	Docs     docstore.DocStore
	History  History
	Events   Events
	Log      *logger.Logger
}

// Pipeline runs content from a source adapter through chunking and embedding
// into the vector store and the document store.
type Pipeline struct {
	deps Deps
}

// New creates a Pipeline.
func New(deps Deps) *Pipeline {
	return &Pipeline{deps: deps}
}

// Ingest executes one run. The returned Summary is never nil; the error is
// non-nil only when the run aborted before any content could be stored.
func (p *Pipeline) Ingest(ctx context.Context, req Request) (*Summary, error) {
	summary := &Summary{
		Status:     StatusCompleted,
		SourceType: req.SourceType,
		StartedAt:  time.Now().UTC(),
	}
	defer func() {
		summary.FinishedAt = time.Now().UTC()
		p.record(ctx, req, summary)
	}()

	adapter, err := p.deps.Registry.Adapter(ctx, req.SourceType, req.Config)
	if err != nil {
		summary.Status = StatusFailed
		summary.Errors = append(summary.Errors, err.Error())
		return summary, err
	}

	if !adapter.ValidateInput(req.Input) {
		err := fmt.Errorf("%w: input not usable for source %s", source.ErrInvalidInput, req.SourceType)
		summary.Status = StatusFailed
		summary.Errors = append(summary.Errors, err.Error())
		return summary, err
	}

	records, err := adapter.ProcessSource(ctx, req.Input, source.ProcessOptions{MaxPages: req.MaxPages})
	if err != nil {
		summary.Status = StatusFailed
		summary.Errors = append(summary.Errors, err.Error())
		return summary, fmt.Errorf("processing source %s: %w", req.SourceType, err)
	}
	summary.PagesProcessed = len(records)

	var entries []*vectorstore.Entry
	docs := make(map[string]*schema.ContentRecord)
	for _, rec := range records {
		if group := groupKey(rec); group != "" {
			if summary.BySource == nil {
				summary.BySource = make(map[string]int)
			}
			summary.BySource[group]++
		}
		chunks := p.deps.Chunker.ChunkRecord(rec)

		texts := make([]string, len(chunks))
		for i, chunk := range chunks {
			texts[i] = chunk.Content
		}
		vectors, embedErr := p.deps.Embedder.EmbedBatch(ctx, texts)
		if embedErr != nil || len(vectors) != len(chunks) {
			if embedErr == nil {
				embedErr = fmt.Errorf("embedder returned %d vectors for %d chunks", len(vectors), len(chunks))
			}
			summary.RecordsFailed++
			summary.Errors = append(summary.Errors,
				fmt.Sprintf("embedding %s: %v", rec.SourceID, embedErr))
			p.deps.Log.WithError(embedErr).WithFields(map[string]interface{}{
				"source_id": rec.SourceID,
			}).Warn("skipping record that failed to embed")
			continue
		}

		for i, chunk := range chunks {
			id := EntryID(chunk.SourceType, chunk.SourceID)
			entries = append(entries, &vectorstore.Entry{
				ID:         id,
				Vector:     vectors[i],
				Content:    chunk.Content,
				SourceType: chunk.SourceType,
				SourceID:   chunk.SourceID,
				Title:      chunk.Title,
				URL:        chunk.URL,
				Metadata:   chunk.Metadata,
			})
			docs[id] = chunk
		}
	}

	if len(entries) > 0 {
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error { return p.deps.Vectors.Upsert(gctx, entries) })
		g.Go(func() error { return p.deps.Docs.Add(gctx, docs) })
		if err := g.Wait(); err != nil {
			summary.Status = StatusFailed
			summary.RecordsFailed = summary.PagesProcessed
			summary.ChunksUploaded = 0
			summary.Errors = append(summary.Errors, err.Error())
			return summary, fmt.Errorf("storing content: %w", err)
		}
		summary.ChunksUploaded = len(entries)
	}

	if summary.RecordsFailed > 0 {
		summary.Status = StatusCompletedWithErrors
	}
	p.deps.Log.WithFields(map[string]interface{}{
		"source_type": req.SourceType,
		"status":      summary.Status,
		"pages":       summary.PagesProcessed,
		"chunks":      summary.ChunksUploaded,
		"failed":      summary.RecordsFailed,
	}).Info("ingestion run finished")
	return summary, nil
}

// record persists the run and emits the event, best effort.
func (p *Pipeline) record(ctx context.Context, req Request, summary *Summary) {
	if p.deps.History != nil {
		entry := &HistoryEntry{
			SourceType:     summary.SourceType,
			Input:          req.Input,
			Status:         summary.Status,
			PagesProcessed: summary.PagesProcessed,
			ChunksUploaded: summary.ChunksUploaded,
			RecordsFailed:  summary.RecordsFailed,
			Errors:         summary.Errors,
			StartedAt:      summary.StartedAt,
			FinishedAt:     summary.FinishedAt,
		}
		if err := p.deps.History.Insert(ctx, entry); err != nil {
			p.deps.Log.WithError(err).Warn("failed to persist ingestion history")
		}
	}
	if p.deps.Events != nil {
		if err := p.deps.Events.Publish(ctx, summary.SourceType, summary); err != nil {
			p.deps.Log.WithError(err).Warn("failed to publish ingestion event")
		}
	}
}

// groupKey buckets a record for the summary's per-source breakdown: the
// Confluence space, the GitHub repository, or the uploaded file.
func groupKey(rec *schema.ContentRecord) string {
	for _, key := range []string{"space_key", "repository", "file_name"} {
		if v, ok := rec.Metadata[key].(string); ok && v != "" {
			return v
		}
	}
	return rec.SourceID
}

// EntryID derives the deterministic vector store ID for a chunk.
func EntryID(sourceType, sourceID string) string {
	return uuid.NewSHA1(entryNamespace, []byte(sourceType+":"+sourceID)).String()
}
