package chunker

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Minerva/internal/source/schema"
)

func newChunker(t *testing.T, limit int) *Chunker {
	t.Helper()
	c, err := New(limit)
	require.NoError(t, err)
	return c
}

func TestSmallTextPassesThrough(t *testing.T) {
	c := newChunker(t, 100)
	text := "A short paragraph.\n\nAnd another one."

	spans := c.Split(text)
	require.Len(t, spans, 1)
	assert.Equal(t, text, spans[0])
}

func TestSpansReconstructOriginal(t *testing.T) {
	c := newChunker(t, 20)

	var b strings.Builder
	for i := 0; i < 12; i++ {
		b.WriteString("The quick brown fox jumps over the lazy dog near the river bank.\n\n")
	}
	text := b.String()

	spans := c.Split(text)
	require.Greater(t, len(spans), 1, "text over the limit must split")

	assert.Equal(t, text, strings.Join(spans, ""), "concatenated spans must reconstruct the input exactly")
	for i, span := range spans {
		assert.LessOrEqual(t, c.CountTokens(span), 20, "span %d exceeds the token limit", i)
	}
}

func TestSentenceFallbackForLongParagraph(t *testing.T) {
	c := newChunker(t, 15)

	// One paragraph, many sentences, no blank lines anywhere.
	text := strings.Repeat("This sentence takes a fair number of tokens to say. ", 10)

	spans := c.Split(text)
	require.Greater(t, len(spans), 1)
	assert.Equal(t, text, strings.Join(spans, ""))
}

func TestIndivisibleUnitEmittedOversized(t *testing.T) {
	c := newChunker(t, 10)

	// No paragraph breaks, no sentence punctuation, no newlines: nothing
	// to cut at, so the text must come back whole rather than be dropped.
	text := strings.Repeat("abcdefgh ", 40)
	text = strings.TrimSuffix(text, " ")

	spans := c.Split(text)
	require.Len(t, spans, 1)
	assert.Equal(t, text, spans[0])
	assert.Greater(t, c.CountTokens(spans[0]), 10)
}

func TestChunkRecordSmallKeepsSourceID(t *testing.T) {
	c := newChunker(t, 1000)
	rec := &schema.ContentRecord{
		Content:    "small document",
		SourceType: "document_upload",
		SourceID:   "pdf_report_1700000000",
		Metadata:   map[string]interface{}{"file_name": "report.pdf"},
	}

	chunks := c.ChunkRecord(rec)
	require.Len(t, chunks, 1)

	got := chunks[0]
	assert.Equal(t, "pdf_report_1700000000", got.SourceID, "unchunked records keep their SourceID")
	assert.Equal(t, false, got.Metadata[schema.MetadataKeyWasChunked])
	assert.Equal(t, 0, got.Metadata[schema.MetadataKeyChunkIndex])
	assert.Equal(t, 1, got.Metadata[schema.MetadataKeyTotalChunks])
	assert.Equal(t, "report.pdf", got.Metadata["file_name"])
}

func TestChunkRecordLargeDerivesChunks(t *testing.T) {
	c := newChunker(t, 25)
	rec := &schema.ContentRecord{
		Content:    strings.Repeat("Some sentence with enough words to count. ", 20),
		SourceType: "confluence",
		SourceID:   "12345",
		Title:      "Big page",
		Metadata:   map[string]interface{}{"space_key": "ENG"},
	}

	chunks := c.ChunkRecord(rec)
	require.Greater(t, len(chunks), 1)

	var rebuilt strings.Builder
	for i, chunk := range chunks {
		assert.Equal(t, "confluence", chunk.SourceType)
		assert.Equal(t, "Big page", chunk.Title)
		assert.Equal(t, "ENG", chunk.Metadata["space_key"])
		assert.Equal(t, i, chunk.Metadata[schema.MetadataKeyChunkIndex])
		assert.Equal(t, len(chunks), chunk.Metadata[schema.MetadataKeyTotalChunks])
		assert.Equal(t, true, chunk.Metadata[schema.MetadataKeyWasChunked])
		assert.Contains(t, chunk.SourceID, "12345_chunk_")
		rebuilt.WriteString(chunk.Content)
	}
	assert.Equal(t, rec.Content, rebuilt.String())

	// Metadata maps must not be shared between chunks.
	chunks[0].Metadata["space_key"] = "OTHER"
	assert.Equal(t, "ENG", chunks[1].Metadata["space_key"])
}

func TestChunkTokenCounts(t *testing.T) {
	c := newChunker(t, 30)
	rec := &schema.ContentRecord{
		Content:    strings.Repeat("Counting tokens is cheap enough to do per chunk. ", 15),
		SourceType: "confluence",
		SourceID:   "99",
	}

	original := c.CountTokens(rec.Content)
	chunks := c.ChunkRecord(rec)
	require.Greater(t, len(chunks), 1)

	total := 0
	for _, chunk := range chunks {
		assert.Equal(t, original, chunk.Metadata[schema.MetadataKeyOriginalTokenCount])
		total += chunk.Metadata[schema.MetadataKeyChunkTokenCount].(int)
	}
	// Chunk token counts sum close to the original; tokenization at cut
	// points may merge or split a token or two.
	assert.InDelta(t, original, total, 8)
}
