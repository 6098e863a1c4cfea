package github

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"

	gh "github.com/google/go-github/v80/github"
	"github.com/gobwas/glob"
	"golang.org/x/oauth2"

	"Minerva/internal/source"
	"Minerva/internal/source/schema"
	"Minerva/pkg/logger"
)

// SourceType is the registry identifier of this adapter.
const SourceType = "github_repo"

// DefaultMaxItems bounds how many records a single repository ingestion
// produces when no limit is configured.
const DefaultMaxItems = 200

// DefaultMaxFileSize skips blobs larger than this many bytes.
const DefaultMaxFileSize = 100 * 1024

// Adapter ingests source and documentation files from a GitHub repository.
type Adapter struct {
	cfg source.Config
	log *logger.Logger

	mu          sync.Mutex
	client      *gh.Client
	ignore      []glob.Glob
	initialized bool
}

// New constructs an uninitialized GitHub adapter.
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

// Initialize builds the API client, verifies the token when one is set, and
// compiles the ignore patterns.
func (a *Adapter) Initialize(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	ignore := make([]glob.Glob, 0, len(a.cfg.IgnoreGlobs))
	for _, pattern := range a.cfg.IgnoreGlobs {
		g, err := glob.Compile(pattern)
		if err != nil {
			return fmt.Errorf("%w: bad ignore pattern %q: %v", source.ErrInvalidInput, pattern, err)
		}
		ignore = append(ignore, g)
	}

	httpClient := http.DefaultClient
	if a.cfg.Token != "" {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: a.cfg.Token})
		httpClient = oauth2.NewClient(ctx, ts)
	}
	client := gh.NewClient(httpClient)

	if a.cfg.Token != "" {
		if _, _, err := client.Users.Get(ctx, ""); err != nil {
			return fmt.Errorf("verifying github token: %w", mapError(err))
		}
	}

	a.client = client
	a.ignore = ignore
	a.initialized = true
	a.log.WithFields(map[string]interface{}{
		"authenticated": a.cfg.Token != "",
		"ignore_globs":  len(ignore),
	}).Info("github adapter initialized")
	return nil
}

// ValidateInput accepts an owner/repo pair or a github.com repository URL.
// No network access happens here.
func (a *Adapter) ValidateInput(input schema.Input) bool {
	_, _, ok := parseRepo(a.repoSpec(input))
	return ok
}

// ProcessSource walks the repository tree at the default branch and produces
// one record per semantic section of each recognized file.
func (a *Adapter) ProcessSource(ctx context.Context, input schema.Input, opts source.ProcessOptions) ([]*schema.ContentRecord, error) {
	a.mu.Lock()
	client := a.client
	ignore := a.ignore
	initialized := a.initialized
	a.mu.Unlock()
	if !initialized {
		return nil, fmt.Errorf("%w: %s", source.ErrNotInitialized, SourceType)
	}

	owner, repo, ok := parseRepo(a.repoSpec(input))
	if !ok {
		return nil, fmt.Errorf("%w: expected owner/repo or a github.com url", source.ErrInvalidInput)
	}

	repository, _, err := client.Repositories.Get(ctx, owner, repo)
	if err != nil {
		return nil, fmt.Errorf("fetching repository %s/%s: %w", owner, repo, mapError(err))
	}
	branch := repository.GetDefaultBranch()

	tree, _, err := client.Git.GetTree(ctx, owner, repo, branch, true)
	if err != nil {
		return nil, fmt.Errorf("fetching tree of %s/%s: %w", owner, repo, mapError(err))
	}

	maxItems := a.maxItems(opts)
	maxSize := a.maxFileSize()
	fullName := owner + "/" + repo

	var records []*schema.ContentRecord
	skipped := 0
	for _, entry := range tree.Entries {
		if len(records) >= maxItems {
			break
		}
		path := entry.GetPath()
		if entry.GetType() != "blob" || language(path) == "" || ignored(ignore, path) {
			continue
		}
		if int64(entry.GetSize()) > maxSize {
			skipped++
			continue
		}

		content, err := a.fetchBlob(ctx, client, owner, repo, entry.GetSHA())
		if err != nil {
			if source.Retryable(err) || errors.Is(err, source.ErrAuthentication) {
				return nil, fmt.Errorf("fetching %s: %w", path, err)
			}
			a.log.WithError(err).WithFields(map[string]interface{}{"path": path}).
				Warn("skipping unreadable blob")
			skipped++
			continue
		}
		if strings.TrimSpace(content) == "" {
			continue
		}

		records = append(records,
			a.buildRecords(fullName, branch, path, entry.GetSHA(), content, maxItems-len(records))...)
	}

	a.log.WithFields(map[string]interface{}{
		"repository": fullName,
		"records":    len(records),
		"skipped":    skipped,
	}).Info("processed github repository")
	return records, nil
}

// fetchBlob downloads and decodes a blob by SHA.
func (a *Adapter) fetchBlob(ctx context.Context, client *gh.Client, owner, repo, sha string) (string, error) {
	blob, _, err := client.Git.GetBlob(ctx, owner, repo, sha)
	if err != nil {
		return "", mapError(err)
	}
	if blob.GetEncoding() != "base64" {
		return blob.GetContent(), nil
	}
	decoded, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(blob.GetContent(), "\n", ""))
	if err != nil {
		return "", fmt.Errorf("%w: decoding blob %s: %v", source.ErrExtraction, sha, err)
	}
	return string(decoded), nil
}

// buildRecords turns one file into records, at most limit of them.
func (a *Adapter) buildRecords(fullName, branch, path, sha, content string, limit int) []*schema.ContentRecord {
	sections := splitSections(path, content)
	if len(sections) > limit {
		sections = sections[:limit]
	}
	lang := language(path)
	fileURL := fmt.Sprintf("https://github.com/%s/blob/%s/%s", fullName, branch, path)

	out := make([]*schema.ContentRecord, 0, len(sections))
	for i, sec := range sections {
		sourceID := fullName + "/" + path
		if len(sections) > 1 {
			sourceID = fmt.Sprintf("%s#%d", sourceID, i)
		}
		title := path
		if sec.Symbol != "" {
			title = fmt.Sprintf("%s: %s", path, sec.Symbol)
		}

		metadata := map[string]interface{}{
			"repository": fullName,
			"file_path":  path,
			"branch":     branch,
			"blob_sha":   sha,
			"language":   lang,
			"section":    sec.Kind,
		}
		if sec.Symbol != "" {
			metadata["symbol"] = sec.Symbol
		}

		out = append(out, &schema.ContentRecord{
			Content:    sec.Content,
			Metadata:   metadata,
			SourceType: SourceType,
			SourceID:   sourceID,
			Title:      title,
			URL:        fileURL,
			Tags:       []string{lang, sec.Kind},
		})
	}
	return out
}

func (a *Adapter) repoSpec(input schema.Input) string {
	if input.Repository != "" {
		return input.Repository
	}
	return strings.TrimSpace(input.Raw)
}

func (a *Adapter) maxItems(opts source.ProcessOptions) int {
	if opts.MaxPages > 0 {
		return opts.MaxPages
	}
	if a.cfg.MaxPages > 0 {
		return a.cfg.MaxPages
	}
	return DefaultMaxItems
}

func (a *Adapter) maxFileSize() int64 {
	if a.cfg.MaxFileSize > 0 {
		return a.cfg.MaxFileSize
	}
	return DefaultMaxFileSize
}

func ignored(patterns []glob.Glob, path string) bool {
	for _, g := range patterns {
		if g.Match(path) {
			return true
		}
	}
	return false
}

// parseRepo extracts owner and repository from "owner/repo" or a github.com
// URL, tolerating extra path segments and a trailing .git.
func parseRepo(spec string) (owner, repo string, ok bool) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return "", "", false
	}

	if strings.HasPrefix(spec, "http://") || strings.HasPrefix(spec, "https://") {
		u, err := url.Parse(spec)
		if err != nil || !strings.HasSuffix(u.Host, "github.com") {
			return "", "", false
		}
		spec = strings.Trim(u.Path, "/")
	} else if rest, found := strings.CutPrefix(spec, "github.com/"); found {
		spec = rest
	}

	parts := strings.Split(spec, "/")
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], strings.TrimSuffix(parts[1], ".git"), true
}

// mapError folds go-github errors into the source error taxonomy.
func mapError(err error) error {
	var rateErr *gh.RateLimitError
	var abuseErr *gh.AbuseRateLimitError
	if errors.As(err, &rateErr) || errors.As(err, &abuseErr) {
		return fmt.Errorf("%w: github rate limit: %v", source.ErrRateLimited, err)
	}

	var respErr *gh.ErrorResponse
	if errors.As(err, &respErr) && respErr.Response != nil {
		switch respErr.Response.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return fmt.Errorf("%w: %v", source.ErrAuthentication, err)
		case http.StatusNotFound:
			return fmt.Errorf("%w: %v", source.ErrNotFound, err)
		}
	}
	return fmt.Errorf("%w: %v", source.ErrConnectivity, err)
}

// Capabilities describes the adapter without initializing it.
func (a *Adapter) Capabilities() schema.Capabilities {
	return schema.Capabilities{
		SourceType:  SourceType,
		Description: "Ingests source and documentation files from a GitHub repository",
		Features:    []string{"tree_walk", "semantic_sections", "ignore_globs", "size_limit"},
		SupportedInputs: []string{
			"repository", "repository_url",
		},
		SupportedFormats: supportedLanguages(),
	}
}

func supportedLanguages() []string {
	seen := map[string]bool{}
	out := make([]string, 0, len(languageByExt))
	for _, lang := range languageByExt {
		if !seen[lang] {
			seen[lang] = true
			out = append(out, lang)
		}
	}
	return out
}

// Cleanup drops the API client and returns the adapter to the uninitialized
// state.
func (a *Adapter) Cleanup() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.client = nil
	a.ignore = nil
	a.initialized = false
	return nil
}

// compile-time check to ensure Adapter implements the source.Adapter interface
var _ source.Adapter = (*Adapter)(nil)
