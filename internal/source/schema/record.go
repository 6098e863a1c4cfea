package schema

import "time"

// Metadata keys shared by every adapter. Chunk-level keys are written by the
// chunker when a record is split.
const (
	MetadataKeyChunkIndex         = "chunk_index"
	MetadataKeyTotalChunks        = "total_chunks"
	MetadataKeyOriginalTokenCount = "original_token_count"
	MetadataKeyChunkTokenCount    = "chunk_token_count"
	MetadataKeyWasChunked         = "was_chunked"
)

// ContentRecord is the central data structure representing one logical unit
// of extracted content. It is the primary data carrier from source adapters
// through chunking, embedding and storage.
type ContentRecord struct {
	// Content is the extracted plain-text content.
	Content string `json:"content"`

	// Metadata holds arbitrary data about the record (versions, paths,
	// labels, chunk bookkeeping and so on).
	Metadata map[string]interface{} `json:"metadata"`

	// SourceType identifies the adapter that produced the record.
	SourceType string `json:"source_type"`

	// SourceID is stable and unique within a source type. Chunking derives
	// new IDs from it so re-ingesting the same content overwrites rather
	// than duplicates.
	SourceID string `json:"source_id"`

	Title     string     `json:"title,omitempty"`
	Author    string     `json:"author,omitempty"`
	CreatedAt *time.Time `json:"created_at,omitempty"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
	URL       string     `json:"url,omitempty"`
	Tags      []string   `json:"tags,omitempty"`
}

// Clone returns a deep copy of the record with its own metadata map.
func (r *ContentRecord) Clone() *ContentRecord {
	out := *r
	out.Metadata = CopyMetadata(r.Metadata)
	out.Tags = append([]string(nil), r.Tags...)
	return &out
}

// CopyMetadata deep-copies a metadata map so derived records never share maps.
func CopyMetadata(md map[string]interface{}) map[string]interface{} {
	newMd := make(map[string]interface{}, len(md))
	for k, v := range md {
		newMd[k] = v
	}
	return newMd
}
