package chunker

import (
	"fmt"
	"strings"

	"github.com/pkoukk/tiktoken-go"

	"Minerva/internal/source/schema"
)

// DefaultTokenLimit matches the embedding request ceiling of common
// embedding models.
const DefaultTokenLimit = 8000

// Chunker splits oversized content into token-bounded spans. Small content
// passes through untouched: a record at or under the limit yields exactly
// one span, byte-identical to the input.
//
// Splitting is conditional and lossless. The text is cut at paragraph
// boundaries first; paragraphs that are themselves over the limit are cut
// at sentence boundaries. Every span is a contiguous slice of the original
// string, so concatenating the spans in order reconstructs the input
// exactly. A single paragraph-less, sentence-less run over the limit is
// emitted as one oversized span rather than dropped.
type Chunker struct {
	tokenLimit int
	tokenizer  *tiktoken.Tiktoken
}

// New creates a Chunker with the given token limit. Zero or negative limits
// fall back to DefaultTokenLimit.
func New(tokenLimit int) (*Chunker, error) {
	// cl100k_base is the tokenizer for gpt-4, gpt-3.5-turbo, and
	// text-embedding-ada-002.
	tke, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return nil, fmt.Errorf("failed to get tiktoken encoding: %w", err)
	}
	if tokenLimit <= 0 {
		tokenLimit = DefaultTokenLimit
	}
	return &Chunker{tokenLimit: tokenLimit, tokenizer: tke}, nil
}

// TokenLimit returns the configured limit.
func (c *Chunker) TokenLimit() int { return c.tokenLimit }

// CountTokens returns the number of cl100k_base tokens in text.
func (c *Chunker) CountTokens(text string) int {
	return len(c.tokenizer.Encode(text, nil, nil))
}

// Split returns the token-bounded spans of text. See the type comment for
// the boundary rules.
func (c *Chunker) Split(text string) []string {
	if c.CountTokens(text) <= c.tokenLimit {
		return []string{text}
	}

	units := splitParagraphs(text)

	// Break oversized paragraphs down to sentences before packing.
	var refined []string
	for _, u := range units {
		if c.CountTokens(u) > c.tokenLimit {
			refined = append(refined, splitSentences(u)...)
		} else {
			refined = append(refined, u)
		}
	}

	return c.pack(refined)
}

// pack greedily merges consecutive units into spans that stay under the
// token limit. An indivisible unit over the limit becomes its own span.
func (c *Chunker) pack(units []string) []string {
	var spans []string
	var current strings.Builder

	for _, unit := range units {
		if current.Len() == 0 {
			current.WriteString(unit)
			continue
		}
		if c.CountTokens(current.String()+unit) <= c.tokenLimit {
			current.WriteString(unit)
			continue
		}
		spans = append(spans, current.String())
		current.Reset()
		current.WriteString(unit)
	}
	if current.Len() > 0 {
		spans = append(spans, current.String())
	}
	return spans
}

// ChunkRecord applies conditional chunking to a record. The returned
// records always carry chunk bookkeeping metadata; SourceID is only
// suffixed when the content was actually split, so small records keep
// their identity across re-ingestions.
func (c *Chunker) ChunkRecord(rec *schema.ContentRecord) []*schema.ContentRecord {
	originalTokens := c.CountTokens(rec.Content)
	spans := c.Split(rec.Content)

	if len(spans) == 1 {
		out := rec.Clone()
		if out.Metadata == nil {
			out.Metadata = make(map[string]interface{})
		}
		out.Metadata[schema.MetadataKeyChunkIndex] = 0
		out.Metadata[schema.MetadataKeyTotalChunks] = 1
		out.Metadata[schema.MetadataKeyOriginalTokenCount] = originalTokens
		out.Metadata[schema.MetadataKeyChunkTokenCount] = originalTokens
		out.Metadata[schema.MetadataKeyWasChunked] = false
		return []*schema.ContentRecord{out}
	}

	chunks := make([]*schema.ContentRecord, 0, len(spans))
	for i, span := range spans {
		chunk := rec.Clone()
		chunk.Content = span
		chunk.SourceID = fmt.Sprintf("%s_chunk_%d", rec.SourceID, i)
		if chunk.Metadata == nil {
			chunk.Metadata = make(map[string]interface{})
		}
		chunk.Metadata[schema.MetadataKeyChunkIndex] = i
		chunk.Metadata[schema.MetadataKeyTotalChunks] = len(spans)
		chunk.Metadata[schema.MetadataKeyOriginalTokenCount] = originalTokens
		chunk.Metadata[schema.MetadataKeyChunkTokenCount] = c.CountTokens(span)
		chunk.Metadata[schema.MetadataKeyWasChunked] = true
		chunks = append(chunks, chunk)
	}
	return chunks
}

// splitParagraphs cuts text after every blank-line separator, keeping the
// separator attached to the preceding paragraph so concatenation is exact.
func splitParagraphs(text string) []string {
	var units []string
	rest := text
	for {
		idx := strings.Index(rest, "\n\n")
		if idx < 0 {
			if rest != "" {
				units = append(units, rest)
			}
			return units
		}
		// Swallow any run of consecutive newlines into the separator.
		end := idx + 2
		for end < len(rest) && rest[end] == '\n' {
			end++
		}
		units = append(units, rest[:end])
		rest = rest[end:]
	}
}

// splitSentences cuts text after sentence-ending punctuation followed by a
// space, or after a newline. Cuts land between bytes of the original
// string, so the pieces concatenate back exactly.
func splitSentences(text string) []string {
	var units []string
	start := 0
	for i := 0; i < len(text); i++ {
		switch text[i] {
		case '.', '!', '?':
			if i+1 < len(text) && (text[i+1] == ' ' || text[i+1] == '\n') {
				units = append(units, text[start:i+2])
				i++
				start = i + 1
			}
		case '\n':
			units = append(units, text[start:i+1])
			start = i + 1
		}
	}
	if start < len(text) {
		units = append(units, text[start:])
	}
	return units
}
