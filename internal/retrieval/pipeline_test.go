package retrieval

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Minerva/internal/docstore"
	"Minerva/internal/llm"
	"Minerva/internal/source/schema"
	"Minerva/internal/vectorstore"
	"Minerva/pkg/logger"
)

type fakeEmbedder struct{}

func (fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return []float32{1, 2, 3}, nil
}
func (fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 2, 3}
	}
	return out, nil
}

type fakeSearcher struct {
	hits        []*vectorstore.Hit
	lastTopK    int
	lastFilters map[string]string
}

func (f *fakeSearcher) Upsert(ctx context.Context, entries []*vectorstore.Entry) error { return nil }
func (f *fakeSearcher) Search(ctx context.Context, vector []float32, topK int, filters map[string]string) ([]*vectorstore.Hit, error) {
	f.lastTopK = topK
	f.lastFilters = filters
	if topK < len(f.hits) {
		return f.hits[:topK], nil
	}
	return f.hits, nil
}
func (f *fakeSearcher) HealthCheck(ctx context.Context) error { return nil }
func (f *fakeSearcher) Close() error                          { return nil }

type fakeLLM struct {
	reply    string
	received [][]llm.Message
}

func (f *fakeLLM) Generate(ctx context.Context, messages []llm.Message) (string, error) {
	f.received = append(f.received, messages)
	if f.reply == "" {
		return "the answer", nil
	}
	return f.reply, nil
}

func hit(id, title, content string) *vectorstore.Hit {
	return &vectorstore.Hit{
		ID:         id,
		Score:      0.9,
		Content:    content,
		SourceType: "confluence",
		SourceID:   id,
		Title:      title,
		URL:        "https://wiki.example.com/" + id,
	}
}

func newPipeline(t *testing.T, hits []*vectorstore.Hit) (*Pipeline, *fakeSearcher, *fakeLLM, *docstore.InMemoryDocStore) {
	t.Helper()
	logger.Init("error")

	searcher := &fakeSearcher{hits: hits}
	model := &fakeLLM{}
	docs := docstore.NewInMemoryDocStore()
	p := New(fakeEmbedder{}, searcher, docs, model, 5, logger.New("retrieval-test", ""))
	return p, searcher, model, docs
}

func TestAskReturnsAnswerWithSources(t *testing.T) {
	p, _, model, _ := newPipeline(t, []*vectorstore.Hit{
		hit("a", "Deploy Guide", "Run the deploy script."),
		hit("b", "Rollback", "Use the rollback runbook."),
	})

	answer, err := p.Ask(context.Background(), "how do I deploy?", "", 0)
	require.NoError(t, err)

	assert.Equal(t, "the answer", answer.Answer)
	require.Len(t, answer.Sources, 2)
	assert.Equal(t, "Deploy Guide", answer.Sources[0].Title)
	assert.Equal(t, "Run the deploy script.", answer.Sources[0].Snippet)
	assert.Equal(t, "confluence", answer.Sources[0].SourceType)

	// The model saw the numbered context and the question.
	require.Len(t, model.received, 1)
	prompt := model.received[0][len(model.received[0])-1].Content
	assert.Contains(t, prompt, "Source 1 (Deploy Guide)")
	assert.Contains(t, prompt, "Source 2 (Rollback)")
	assert.Contains(t, prompt, "how do I deploy?")
}

func TestAskUsesDocStoreContent(t *testing.T) {
	p, _, model, docs := newPipeline(t, []*vectorstore.Hit{
		hit("a", "Guide", "truncated payload"),
	})
	require.NoError(t, docs.Add(context.Background(), map[string]*schema.ContentRecord{
		"a": {Content: "the full untruncated chunk text", Title: "Guide"},
	}))

	answer, err := p.Ask(context.Background(), "question?", "", 0)
	require.NoError(t, err)

	assert.Equal(t, "the full untruncated chunk text", answer.Sources[0].Snippet)
	prompt := model.received[0][len(model.received[0])-1].Content
	assert.Contains(t, prompt, "the full untruncated chunk text")
	assert.NotContains(t, prompt, "truncated payload")
}

func TestAskSourceTypeFilter(t *testing.T) {
	p, searcher, _, _ := newPipeline(t, []*vectorstore.Hit{hit("a", "T", "c")})

	_, err := p.Ask(context.Background(), "q?", "github_repo", 3)
	require.NoError(t, err)

	assert.Equal(t, 3, searcher.lastTopK)
	assert.Equal(t, map[string]string{vectorstore.FieldSourceType: "github_repo"}, searcher.lastFilters)

	_, err = p.Ask(context.Background(), "q?", "", 0)
	require.NoError(t, err)
	assert.Nil(t, searcher.lastFilters)
	assert.Equal(t, 5, searcher.lastTopK)
}

func TestAskNoHits(t *testing.T) {
	p, _, model, _ := newPipeline(t, nil)

	answer, err := p.Ask(context.Background(), "anything?", "", 0)
	require.NoError(t, err)
	assert.Empty(t, answer.Sources)
	assert.Contains(t, answer.Answer, "No relevant content")
	assert.Empty(t, model.received, "the model is not called without context")
}

func TestAskEmptyQuestion(t *testing.T) {
	p, _, _, _ := newPipeline(t, nil)
	_, err := p.Ask(context.Background(), "   ", "", 0)
	assert.Error(t, err)
}

func TestConversationHistoryCarriesAcrossTurns(t *testing.T) {
	p, _, model, _ := newPipeline(t, []*vectorstore.Hit{hit("a", "T", "content")})

	_, err := p.Ask(context.Background(), "first question?", "", 0)
	require.NoError(t, err)
	_, err = p.Ask(context.Background(), "second question?", "", 0)
	require.NoError(t, err)

	require.Len(t, model.received, 2)
	second := model.received[1]

	var sawFirstTurn bool
	for _, m := range second {
		if m.Role == llm.RoleUser && m.Content == "first question?" {
			sawFirstTurn = true
		}
	}
	assert.True(t, sawFirstTurn, "earlier turns appear in later prompts without their context blocks")

	p.Reset()
	_, err = p.Ask(context.Background(), "third question?", "", 0)
	require.NoError(t, err)
	third := model.received[2]
	for _, m := range third {
		assert.NotEqual(t, "first question?", m.Content)
	}
}

func TestHistoryBounded(t *testing.T) {
	p, _, model, _ := newPipeline(t, []*vectorstore.Hit{hit("a", "T", "content")})

	for i := 0; i < maxHistoryTurns+5; i++ {
		_, err := p.Ask(context.Background(), fmt.Sprintf("question %d?", i), "", 0)
		require.NoError(t, err)
	}

	last := model.received[len(model.received)-1]
	// system + bounded history + current turn
	assert.LessOrEqual(t, len(last), 2+maxHistoryTurns*2)
}

func TestSnippetTruncatesAtWordBoundary(t *testing.T) {
	long := strings.Repeat("word ", 100)
	s := snippet(long, 50)
	assert.LessOrEqual(t, len(s), 54)
	assert.True(t, strings.HasSuffix(s, "..."))
	assert.False(t, strings.Contains(strings.TrimSuffix(s, "..."), "wor "), "no cut mid-word")

	assert.Equal(t, "short text", snippet("short   text", 50))
}
