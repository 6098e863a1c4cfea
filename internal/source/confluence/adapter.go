package confluence

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"sync"

	"Minerva/internal/source"
	"Minerva/internal/source/schema"
	"Minerva/pkg/httpclient"
	"Minerva/pkg/logger"
)

// SourceType is the registry identifier of this adapter.
const SourceType = "confluence"

// DefaultMaxPages bounds a single ingestion run when neither the config
// nor the request sets a limit.
const DefaultMaxPages = 50

const pageWindow = 25

var (
	pageIDRe    = regexp.MustCompile(`^\d+$`)
	spaceKeyRe  = regexp.MustCompile(`^[A-Z][A-Z0-9]*$`)
	urlPagesRe  = regexp.MustCompile(`/pages/(\d+)`)
	urlPageIDRe = regexp.MustCompile(`[?&]pageId=(\d+)`)
)

// Adapter pulls pages from a Confluence instance.
type Adapter struct {
	cfg source.Config
	log *logger.Logger

	mu          sync.Mutex
	client      *client
	initialized bool
}

// New constructs an uninitialized Confluence adapter.
func New(cfg source.Config, log *logger.Logger) *Adapter {
	return &Adapter{cfg: cfg, log: log}
}

// Constructor adapts New to the registry constructor signature.
func Constructor(log *logger.Logger) source.Constructor {
	return func(cfg source.Config) (source.Adapter, error) {
		return New(cfg, log), nil
	}
}

// SourceType returns the registry identifier of this adapter.
func (a *Adapter) SourceType() string { return SourceType }

// Initialize checks the configuration and verifies the credentials against
// the instance.
func (a *Adapter) Initialize(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	base := strings.TrimRight(strings.TrimSpace(a.cfg.BaseURL), "/")
	if base == "" {
		return fmt.Errorf("%w: confluence base_url is required", source.ErrInvalidInput)
	}
	hasBasic := a.cfg.Username != "" && a.cfg.APIToken != ""
	if !hasBasic && a.cfg.Token == "" {
		return fmt.Errorf("%w: confluence credentials are required", source.ErrAuthentication)
	}

	c := newClient(base, a.cfg.Username, a.cfg.APIToken, a.cfg.Token,
		httpclient.NewClient(httpclient.DefaultOptions()))
	if err := c.currentUser(ctx); err != nil {
		return fmt.Errorf("verifying confluence credentials: %w", err)
	}

	a.client = c
	a.initialized = true
	a.log.WithFields(map[string]interface{}{"base_url": base}).Info("confluence adapter initialized")
	return nil
}

// ValidateInput accepts any input that resolves to a fetch plan: a page ID,
// a space key, a search query, or a page URL. Bare strings are classified
// heuristically. No network access happens here.
func (a *Adapter) ValidateInput(input schema.Input) bool {
	resolved := a.resolve(input)
	return resolved.PageID != "" || resolved.SpaceKey != "" ||
		resolved.SearchQuery != "" || resolved.PageURL != ""
}

// ProcessSource fetches the selected pages and converts them into content
// records. The number of fetched pages is bounded by ProcessOptions.MaxPages,
// the adapter config, or DefaultMaxPages, in that order.
func (a *Adapter) ProcessSource(ctx context.Context, input schema.Input, opts source.ProcessOptions) ([]*schema.ContentRecord, error) {
	a.mu.Lock()
	c := a.client
	initialized := a.initialized
	a.mu.Unlock()
	if !initialized {
		return nil, fmt.Errorf("%w: %s", source.ErrNotInitialized, SourceType)
	}

	resolved := a.resolve(input)
	if resolved.PageID == "" && resolved.SpaceKey == "" &&
		resolved.SearchQuery == "" && resolved.PageURL == "" {
		return nil, fmt.Errorf("%w: no page id, space key, url or query given", source.ErrInvalidInput)
	}

	if resolved.PageURL != "" && resolved.PageID == "" {
		id, err := extractPageID(resolved.PageURL)
		if err != nil {
			return nil, err
		}
		resolved.PageID = id
	}

	maxPages := a.maxPages(opts)

	var (
		pages []page
		err   error
	)
	switch {
	case resolved.PageID != "":
		var p *page
		p, err = c.pageByID(ctx, resolved.PageID)
		if p != nil {
			pages = []page{*p}
		}
	case resolved.SearchQuery != "":
		pages, err = a.searchPages(ctx, c, resolved, maxPages)
	default:
		pages, err = a.listSpace(ctx, c, resolved.SpaceKey, maxPages)
	}
	if err != nil {
		return nil, err
	}

	records := make([]*schema.ContentRecord, 0, len(pages))
	for i := range pages {
		p := &pages[i]
		if !matchesFilters(p, resolved) {
			continue
		}
		rec, buildErr := a.buildRecord(c, p)
		if buildErr != nil {
			a.log.WithError(buildErr).WithFields(map[string]interface{}{
				"page_id": p.ID,
			}).Warn("skipping page with unconvertible body")
			continue
		}
		if rec == nil {
			continue
		}
		records = append(records, rec)
	}

	a.log.WithFields(map[string]interface{}{
		"fetched": len(pages),
		"records": len(records),
	}).Info("processed confluence source")
	return records, nil
}

// listSpace pages through the space content listing up to the limit.
func (a *Adapter) listSpace(ctx context.Context, c *client, spaceKey string, maxPages int) ([]page, error) {
	var out []page
	start := 0
	for len(out) < maxPages {
		window := pageWindow
		if remaining := maxPages - len(out); remaining < window {
			window = remaining
		}
		list, err := c.pagesInSpace(ctx, spaceKey, start, window)
		if err != nil {
			return nil, err
		}
		out = append(out, list.Results...)
		if list.Size < window || len(list.Results) == 0 {
			break
		}
		start += list.Size
	}
	if len(out) > maxPages {
		out = out[:maxPages]
	}
	return out, nil
}

// searchPages pages through a CQL text search up to the limit.
func (a *Adapter) searchPages(ctx context.Context, c *client, in schema.Input, maxPages int) ([]page, error) {
	cql := fmt.Sprintf(`type = page AND text ~ %q`, in.SearchQuery)
	if in.SpaceKey != "" {
		cql += fmt.Sprintf(` AND space = %q`, in.SpaceKey)
	}

	var out []page
	start := 0
	for len(out) < maxPages {
		window := pageWindow
		if remaining := maxPages - len(out); remaining < window {
			window = remaining
		}
		list, err := c.search(ctx, cql, start, window)
		if err != nil {
			return nil, err
		}
		out = append(out, list.Results...)
		if list.Size < window || len(list.Results) == 0 {
			break
		}
		start += list.Size
	}
	if len(out) > maxPages {
		out = out[:maxPages]
	}
	return out, nil
}

// matchesFilters applies the optional title and label filters.
func matchesFilters(p *page, in schema.Input) bool {
	if in.TitleFilter != "" &&
		!strings.Contains(strings.ToLower(p.Title), strings.ToLower(in.TitleFilter)) {
		return false
	}
	if in.LabelFilter != "" {
		found := false
		for _, l := range p.Metadata.Labels.Results {
			if l.Name == in.LabelFilter {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func (a *Adapter) buildRecord(c *client, p *page) (*schema.ContentRecord, error) {
	content, err := storageToText(p.Body.Storage.Value)
	if err != nil {
		return nil, err
	}
	if content == "" {
		return nil, nil
	}

	tags := make([]string, 0, len(p.Metadata.Labels.Results))
	for _, l := range p.Metadata.Labels.Results {
		tags = append(tags, l.Name)
	}

	metadata := map[string]interface{}{
		"page_id":    p.ID,
		"space_key":  p.Space.Key,
		"space_name": p.Space.Name,
		"version":    p.Version.Number,
		"status":     p.Status,
	}

	author := p.Version.By.DisplayName
	if author == "" {
		author = p.History.CreatedBy.DisplayName
	}

	pageURL := ""
	if webui := p.Links["webui"]; webui != "" {
		pageURL = c.baseURL + webui
	}

	rec := &schema.ContentRecord{
		Content:    content,
		Metadata:   metadata,
		SourceType: SourceType,
		SourceID:   p.ID,
		Title:      p.Title,
		Author:     author,
		URL:        pageURL,
		Tags:       tags,
	}
	if !p.History.CreatedDate.IsZero() {
		created := p.History.CreatedDate
		rec.CreatedAt = &created
	}
	if !p.Version.When.IsZero() {
		updated := p.Version.When
		rec.UpdatedAt = &updated
	}
	return rec, nil
}

// resolve normalizes the input: a bare string is classified into a page ID,
// a space key, or a search query.
func (a *Adapter) resolve(input schema.Input) schema.Input {
	out := input
	raw := strings.TrimSpace(input.Raw)
	if raw == "" {
		return out
	}
	if out.PageID != "" || out.SpaceKey != "" || out.SearchQuery != "" || out.PageURL != "" {
		return out
	}

	switch {
	case strings.HasPrefix(raw, "http://") || strings.HasPrefix(raw, "https://"):
		out.PageURL = raw
	case pageIDRe.MatchString(raw):
		out.PageID = raw
	case spaceKeyRe.MatchString(raw) && !strings.Contains(raw, " "):
		// Mixed-case space keys fall through to search; callers that need
		// them must pass space_key explicitly.
		out.SpaceKey = raw
	default:
		out.SearchQuery = raw
	}
	return out
}

// extractPageID pulls the numeric page ID out of a Confluence page URL.
func extractPageID(pageURL string) (string, error) {
	u, err := url.Parse(pageURL)
	if err != nil {
		return "", fmt.Errorf("%w: unparseable page url", source.ErrInvalidInput)
	}
	if m := urlPagesRe.FindStringSubmatch(u.Path); m != nil {
		return m[1], nil
	}
	if m := urlPageIDRe.FindStringSubmatch(pageURL); m != nil {
		return m[1], nil
	}
	return "", fmt.Errorf("%w: no page id in url %s", source.ErrInvalidInput, pageURL)
}

func (a *Adapter) maxPages(opts source.ProcessOptions) int {
	if opts.MaxPages > 0 {
		return opts.MaxPages
	}
	if a.cfg.MaxPages > 0 {
		return a.cfg.MaxPages
	}
	return DefaultMaxPages
}

// Capabilities describes the adapter without initializing it.
func (a *Adapter) Capabilities() schema.Capabilities {
	return schema.Capabilities{
		SourceType:  SourceType,
		Description: "Fetches pages from a Confluence instance by space, page, URL or search query",
		Features:    []string{"space_listing", "cql_search", "label_filter", "title_filter", "pagination"},
		SupportedInputs: []string{
			"space_key", "page_id", "page_url", "search_query", "title_filter", "label_filter",
		},
		SupportedFormats: []string{"storage_html"},
	}
}

// Cleanup drops the authenticated client and returns the adapter to the
// uninitialized state.
func (a *Adapter) Cleanup() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.client = nil
	a.initialized = false
	return nil
}

// compile-time check to ensure Adapter implements the source.Adapter interface
var _ source.Adapter = (*Adapter)(nil)
