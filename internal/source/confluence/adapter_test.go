package confluence

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Minerva/internal/source"
	"Minerva/internal/source/schema"
	"Minerva/pkg/logger"
)

func testLogger() *logger.Logger {
	logger.Init("error")
	return logger.New("confluence-test", "")
}

// fakeConfluence serves a fixed set of pages over the subset of the REST API
// the adapter uses.
func fakeConfluence(t *testing.T, pages []map[string]interface{}) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()

	mux.HandleFunc("/rest/api/user/current", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"displayName": "svc-bot"})
	})
	mux.HandleFunc("/rest/api/content/search", func(w http.ResponseWriter, r *http.Request) {
		writeWindow(w, r, pages)
	})
	mux.HandleFunc("/rest/api/content/", func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimPrefix(r.URL.Path, "/rest/api/content/")
		for _, p := range pages {
			if p["id"] == id {
				json.NewEncoder(w).Encode(p)
				return
			}
		}
		w.WriteHeader(http.StatusNotFound)
	})
	mux.HandleFunc("/rest/api/content", func(w http.ResponseWriter, r *http.Request) {
		writeWindow(w, r, pages)
	})

	return httptest.NewServer(mux)
}

func writeWindow(w http.ResponseWriter, r *http.Request, pages []map[string]interface{}) {
	start, _ := strconv.Atoi(r.URL.Query().Get("start"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 {
		limit = 25
	}
	end := start + limit
	if start > len(pages) {
		start = len(pages)
	}
	if end > len(pages) {
		end = len(pages)
	}
	window := pages[start:end]
	json.NewEncoder(w).Encode(map[string]interface{}{
		"results": window,
		"start":   start,
		"limit":   limit,
		"size":    len(window),
	})
}

func fakePage(id, title, spaceKey, body string, labels ...string) map[string]interface{} {
	labelResults := make([]map[string]string, 0, len(labels))
	for _, l := range labels {
		labelResults = append(labelResults, map[string]string{"name": l})
	}
	return map[string]interface{}{
		"id":     id,
		"type":   "page",
		"status": "current",
		"title":  title,
		"space":  map[string]string{"key": spaceKey, "name": "Engineering"},
		"body": map[string]interface{}{
			"storage": map[string]string{"value": body},
		},
		"version": map[string]interface{}{
			"number": 3,
			"when":   "2025-06-01T10:00:00.000Z",
			"by":     map[string]string{"displayName": "Dana Writer"},
		},
		"history": map[string]interface{}{
			"createdDate": "2025-01-15T08:30:00.000Z",
			"createdBy":   map[string]string{"displayName": "Dana Writer"},
		},
		"metadata": map[string]interface{}{
			"labels": map[string]interface{}{"results": labelResults},
		},
		"_links": map[string]string{"webui": "/spaces/" + spaceKey + "/pages/" + id},
	}
}

func newInitializedAdapter(t *testing.T, serverURL string, maxPages int) *Adapter {
	t.Helper()
	a := New(source.Config{
		BaseURL:  serverURL,
		Username: "svc-bot",
		APIToken: "token",
		MaxPages: maxPages,
	}, testLogger())
	require.NoError(t, a.Initialize(context.Background()))
	return a
}

func TestInitializeRequiresBaseURL(t *testing.T) {
	a := New(source.Config{Username: "u", APIToken: "t"}, testLogger())
	err := a.Initialize(context.Background())
	assert.ErrorIs(t, err, source.ErrInvalidInput)
}

func TestInitializeRequiresCredentials(t *testing.T) {
	a := New(source.Config{BaseURL: "https://wiki.example.com"}, testLogger())
	err := a.Initialize(context.Background())
	assert.ErrorIs(t, err, source.ErrAuthentication)
}

func TestInitializeRejectedCredentials(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	a := New(source.Config{BaseURL: srv.URL, Username: "u", APIToken: "bad"}, testLogger())
	err := a.Initialize(context.Background())
	assert.ErrorIs(t, err, source.ErrAuthentication)
}

func TestProcessSourceRequiresInitialize(t *testing.T) {
	a := New(source.Config{BaseURL: "https://wiki.example.com", Token: "t"}, testLogger())
	_, err := a.ProcessSource(context.Background(), schema.Input{PageID: "123"}, source.ProcessOptions{})
	assert.ErrorIs(t, err, source.ErrNotInitialized)
}

func TestBareStringClassification(t *testing.T) {
	a := New(source.Config{}, testLogger())

	cases := []struct {
		raw  string
		want schema.Input
	}{
		{"123456", schema.Input{PageID: "123456"}},
		{"ENG", schema.Input{SpaceKey: "ENG"}},
		{"DOCS2", schema.Input{SpaceKey: "DOCS2"}},
		{"deployment runbook", schema.Input{SearchQuery: "deployment runbook"}},
		// Mixed-case keys cannot be told apart from search terms.
		{"EngDocs", schema.Input{SearchQuery: "EngDocs"}},
		{"https://wiki.example.com/spaces/ENG/pages/42/Title", schema.Input{PageURL: "https://wiki.example.com/spaces/ENG/pages/42/Title"}},
	}

	for _, tc := range cases {
		t.Run(tc.raw, func(t *testing.T) {
			got := a.resolve(schema.Input{Raw: tc.raw})
			got.Raw = ""
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestResolveKeepsStructuredFields(t *testing.T) {
	a := New(source.Config{}, testLogger())
	in := schema.Input{SpaceKey: "ENG", Raw: "999"}
	got := a.resolve(in)
	assert.Equal(t, "ENG", got.SpaceKey)
	assert.Empty(t, got.PageID, "structured fields win over the bare string")
}

func TestExtractPageID(t *testing.T) {
	cases := []struct {
		url    string
		want   string
		wantOK bool
	}{
		{"https://wiki.example.com/spaces/ENG/pages/123456/Some+Title", "123456", true},
		{"https://wiki.example.com/pages/viewpage.action?pageId=7890", "7890", true},
		{"https://wiki.example.com/spaces/ENG/overview", "", false},
	}

	for _, tc := range cases {
		id, err := extractPageID(tc.url)
		if tc.wantOK {
			require.NoError(t, err, tc.url)
			assert.Equal(t, tc.want, id)
		} else {
			assert.ErrorIs(t, err, source.ErrInvalidInput, tc.url)
		}
	}
}

func TestValidateInputNoNetwork(t *testing.T) {
	// The adapter must not need a reachable instance to validate input.
	a := New(source.Config{BaseURL: "https://unreachable.invalid"}, testLogger())

	assert.True(t, a.ValidateInput(schema.Input{PageID: "123"}))
	assert.True(t, a.ValidateInput(schema.Input{Raw: "ENG"}))
	assert.False(t, a.ValidateInput(schema.Input{}))
	assert.False(t, a.ValidateInput(schema.Input{Raw: "   "}))
}

func TestProcessSourceSinglePage(t *testing.T) {
	srv := fakeConfluence(t, []map[string]interface{}{
		fakePage("1001", "Release Checklist", "ENG",
			"<h1>Steps</h1><p>Tag the release.</p><script>alert(1)</script>", "release"),
	})
	defer srv.Close()

	a := newInitializedAdapter(t, srv.URL, 0)
	records, err := a.ProcessSource(context.Background(), schema.Input{PageID: "1001"}, source.ProcessOptions{})
	require.NoError(t, err)
	require.Len(t, records, 1)

	rec := records[0]
	assert.Equal(t, SourceType, rec.SourceType)
	assert.Equal(t, "1001", rec.SourceID)
	assert.Equal(t, "Release Checklist", rec.Title)
	assert.Equal(t, "Dana Writer", rec.Author)
	assert.Contains(t, rec.Content, "Tag the release.")
	assert.NotContains(t, rec.Content, "alert(1)")
	assert.NotContains(t, rec.Content, "<p>")
	assert.Equal(t, []string{"release"}, rec.Tags)
	assert.Equal(t, "ENG", rec.Metadata["space_key"])
	assert.Equal(t, 3, rec.Metadata["version"])
	assert.Equal(t, srv.URL+"/spaces/ENG/pages/1001", rec.URL)
	require.NotNil(t, rec.CreatedAt)
	require.NotNil(t, rec.UpdatedAt)
	assert.True(t, rec.CreatedAt.Before(*rec.UpdatedAt))
}

func TestProcessSourcePageURL(t *testing.T) {
	srv := fakeConfluence(t, []map[string]interface{}{
		fakePage("42", "Onboarding", "HR", "<p>Welcome aboard.</p>"),
	})
	defer srv.Close()

	a := newInitializedAdapter(t, srv.URL, 0)
	records, err := a.ProcessSource(context.Background(),
		schema.Input{Raw: srv.URL + "/spaces/HR/pages/42/Onboarding"}, source.ProcessOptions{})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "42", records[0].SourceID)
}

func TestProcessSourceSpaceBoundedByMaxPages(t *testing.T) {
	pages := make([]map[string]interface{}, 0, 10)
	for i := 0; i < 10; i++ {
		pages = append(pages, fakePage(
			fmt.Sprintf("20%02d", i), fmt.Sprintf("Page %d", i), "ENG",
			fmt.Sprintf("<p>Body %d</p>", i)))
	}
	srv := fakeConfluence(t, pages)
	defer srv.Close()

	a := newInitializedAdapter(t, srv.URL, 0)
	records, err := a.ProcessSource(context.Background(),
		schema.Input{SpaceKey: "ENG"}, source.ProcessOptions{MaxPages: 3})
	require.NoError(t, err)
	assert.Len(t, records, 3)
}

func TestProcessSourceConfigMaxPagesFallback(t *testing.T) {
	pages := make([]map[string]interface{}, 0, 10)
	for i := 0; i < 10; i++ {
		pages = append(pages, fakePage(
			fmt.Sprintf("30%02d", i), fmt.Sprintf("Page %d", i), "ENG",
			fmt.Sprintf("<p>Body %d</p>", i)))
	}
	srv := fakeConfluence(t, pages)
	defer srv.Close()

	a := newInitializedAdapter(t, srv.URL, 4)
	records, err := a.ProcessSource(context.Background(),
		schema.Input{SpaceKey: "ENG"}, source.ProcessOptions{})
	require.NoError(t, err)
	assert.Len(t, records, 4)
}

func TestProcessSourceTitleAndLabelFilters(t *testing.T) {
	srv := fakeConfluence(t, []map[string]interface{}{
		fakePage("1", "Deploy Guide", "ENG", "<p>a</p>", "howto"),
		fakePage("2", "Deploy Runbook", "ENG", "<p>b</p>", "runbook"),
		fakePage("3", "Meeting Notes", "ENG", "<p>c</p>", "howto"),
	})
	defer srv.Close()

	a := newInitializedAdapter(t, srv.URL, 0)

	records, err := a.ProcessSource(context.Background(),
		schema.Input{SpaceKey: "ENG", TitleFilter: "deploy"}, source.ProcessOptions{})
	require.NoError(t, err)
	assert.Len(t, records, 2)

	records, err = a.ProcessSource(context.Background(),
		schema.Input{SpaceKey: "ENG", TitleFilter: "deploy", LabelFilter: "runbook"}, source.ProcessOptions{})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "Deploy Runbook", records[0].Title)
}

func TestProcessSourceSkipsEmptyPages(t *testing.T) {
	srv := fakeConfluence(t, []map[string]interface{}{
		fakePage("1", "Empty", "ENG", "<p>   </p>"),
		fakePage("2", "Full", "ENG", "<p>actual text</p>"),
	})
	defer srv.Close()

	a := newInitializedAdapter(t, srv.URL, 0)
	records, err := a.ProcessSource(context.Background(),
		schema.Input{SpaceKey: "ENG"}, source.ProcessOptions{})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "Full", records[0].Title)
}

func TestProcessSourceMissingPage(t *testing.T) {
	srv := fakeConfluence(t, nil)
	defer srv.Close()

	a := newInitializedAdapter(t, srv.URL, 0)
	_, err := a.ProcessSource(context.Background(),
		schema.Input{PageID: "9999"}, source.ProcessOptions{})
	assert.ErrorIs(t, err, source.ErrNotFound)
}

func TestProcessSourceRateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/rest/api/user/current" {
			json.NewEncoder(w).Encode(map[string]string{"displayName": "svc-bot"})
			return
		}
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	a := newInitializedAdapter(t, srv.URL, 0)
	_, err := a.ProcessSource(context.Background(),
		schema.Input{PageID: "1"}, source.ProcessOptions{})
	assert.ErrorIs(t, err, source.ErrRateLimited)
	assert.True(t, source.Retryable(err))
}

func TestCapabilitiesWithoutInitialize(t *testing.T) {
	a := New(source.Config{}, testLogger())
	caps := a.Capabilities()
	assert.Equal(t, SourceType, caps.SourceType)
	assert.Contains(t, caps.SupportedInputs, "space_key")
	assert.Contains(t, caps.SupportedInputs, "search_query")
}

func TestCleanupReturnsToUninitialized(t *testing.T) {
	srv := fakeConfluence(t, nil)
	defer srv.Close()

	a := newInitializedAdapter(t, srv.URL, 0)
	require.NoError(t, a.Cleanup())
	_, err := a.ProcessSource(context.Background(), schema.Input{PageID: "1"}, source.ProcessOptions{})
	assert.ErrorIs(t, err, source.ErrNotInitialized)
}
