package retrieval

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"Minerva/internal/docstore"
	"Minerva/internal/embedding"
	"Minerva/internal/llm"
	"Minerva/internal/vectorstore"
	"Minerva/pkg/logger"
)

// DefaultTopK is how many chunks back an answer when the request does not
// choose.
const DefaultTopK = 5

const systemPrompt = "You are a knowledge base assistant. Answer using only " +
	"the provided context. When the context does not contain the answer, say " +
	"so instead of guessing. Cite sources by their number."

// maxHistoryTurns bounds the retained conversation so the prompt stays small.
const maxHistoryTurns = 10

// SourceRef points an answer back at the chunk it came from.
type SourceRef struct {
	Title      string                 `json:"title"`
	Snippet    string                 `json:"snippet"`
	SourceType string                 `json:"source_type"`
	URL        string                 `json:"url,omitempty"`
	Score      float32                `json:"score"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
}

// Answer is the result of one question.
type Answer struct {
	Answer  string      `json:"answer"`
	Sources []SourceRef `json:"sources"`
}

// Pipeline answers questions over the ingested content: embed the question,
// search the vector store, enrich hits from the document store, and ask the
// chat model with the retrieved context.
type Pipeline struct {
	embedder embedding.Embedding
	vectors  vectorstore.Store
	docs     docstore.DocStore
	model    llm.LLM
	log      *logger.Logger
	topK     int

	mu      sync.Mutex
	history []llm.Message
}

// New creates a Pipeline. topK <= 0 falls back to DefaultTopK.
func New(embedder embedding.Embedding, vectors vectorstore.Store, docs docstore.DocStore, model llm.LLM, topK int, log *logger.Logger) *Pipeline {
	if topK <= 0 {
		topK = DefaultTopK
	}
	return &Pipeline{
		embedder: embedder,
		vectors:  vectors,
		docs:     docs,
		model:    model,
		log:      log,
		topK:     topK,
	}
}

// Ask answers one question. sourceType optionally restricts the search to a
// single source; topK <= 0 uses the pipeline default.
func (p *Pipeline) Ask(ctx context.Context, question, sourceType string, topK int) (*Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, fmt.Errorf("empty question")
	}
	if topK <= 0 {
		topK = p.topK
	}

	vector, err := p.embedder.Embed(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("embedding question: %w", err)
	}

	var filters map[string]string
	if sourceType != "" {
		filters = map[string]string{vectorstore.FieldSourceType: sourceType}
	}
	hits, err := p.vectors.Search(ctx, vector, topK, filters)
	if err != nil {
		return nil, fmt.Errorf("searching vector store: %w", err)
	}

	if len(hits) == 0 {
		return &Answer{Answer: "No relevant content was found for this question.", Sources: nil}, nil
	}

	sources, contextBlock := p.assembleContext(ctx, hits)

	messages := p.buildMessages(question, contextBlock)
	reply, err := p.model.Generate(ctx, messages)
	if err != nil {
		return nil, fmt.Errorf("generating answer: %w", err)
	}

	p.remember(question, reply)
	p.log.WithFields(map[string]interface{}{
		"hits":    len(hits),
		"sources": len(sources),
	}).Info("answered question")

	return &Answer{Answer: reply, Sources: sources}, nil
}

// assembleContext enriches hits with the document store's full chunks and
// renders the numbered context block for the prompt.
func (p *Pipeline) assembleContext(ctx context.Context, hits []*vectorstore.Hit) ([]SourceRef, string) {
	ids := make([]string, len(hits))
	for i, h := range hits {
		ids[i] = h.ID
	}
	full, err := p.docs.Get(ctx, ids)
	if err != nil {
		p.log.WithError(err).Warn("document store lookup failed, using payload content")
		full = nil
	}

	var b strings.Builder
	sources := make([]SourceRef, 0, len(hits))
	for i, hit := range hits {
		content := hit.Content
		title := hit.Title
		if rec, ok := full[hit.ID]; ok {
			content = rec.Content
			if rec.Title != "" {
				title = rec.Title
			}
		}

		fmt.Fprintf(&b, "Source %d (%s):\n%s\n\n", i+1, title, content)
		sources = append(sources, SourceRef{
			Title:      title,
			Snippet:    snippet(content, 200),
			SourceType: hit.SourceType,
			URL:        hit.URL,
			Score:      hit.Score,
			Metadata:   hit.Metadata,
		})
	}
	return sources, b.String()
}

// buildMessages composes system prompt, bounded history, and the current
// question with its context.
func (p *Pipeline) buildMessages(question, contextBlock string) []llm.Message {
	p.mu.Lock()
	history := append([]llm.Message(nil), p.history...)
	p.mu.Unlock()

	messages := make([]llm.Message, 0, len(history)+2)
	messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: systemPrompt})
	messages = append(messages, history...)
	messages = append(messages, llm.Message{
		Role:    llm.RoleUser,
		Content: fmt.Sprintf("Context:\n%s\nQuestion: %s", contextBlock, question),
	})
	return messages
}

// remember appends the turn to the conversation, dropping the oldest turns
// past the bound. Only the bare question is kept, not the context block.
func (p *Pipeline) remember(question, reply string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.history = append(p.history,
		llm.Message{Role: llm.RoleUser, Content: question},
		llm.Message{Role: llm.RoleAssistant, Content: reply},
	)
	if len(p.history) > maxHistoryTurns*2 {
		p.history = p.history[len(p.history)-maxHistoryTurns*2:]
	}
}

// Reset clears the conversation history.
func (p *Pipeline) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.history = nil
}

func snippet(text string, limit int) string {
	text = strings.Join(strings.Fields(text), " ")
	if len(text) <= limit {
		return text
	}
	cut := strings.LastIndex(text[:limit], " ")
	if cut <= 0 {
		cut = limit
	}
	return text[:cut] + "..."
}
