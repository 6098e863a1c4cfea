package source

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"Minerva/internal/source/schema"
)

// Adapter is the contract every content source implements. An adapter moves
// through a small lifecycle: constructed (uninitialized), Initialize
// validates configuration and credentials, ProcessSource extracts records,
// Cleanup releases resources and returns the adapter to uninitialized.
type Adapter interface {
	// SourceType returns the stable identifier of this source
	// (e.g. "confluence", "github", "document_upload").
	SourceType() string

	// Initialize validates configuration and credentials. It must be called
	// before ProcessSource and may be called again after Cleanup.
	Initialize(ctx context.Context) error

	// ValidateInput reports whether the input is usable for this adapter.
	// It is pure: no network or filesystem access, safe before Initialize.
	ValidateInput(input schema.Input) bool

	// ProcessSource extracts content records for the given input. It fails
	// with ErrNotInitialized when called on an uninitialized adapter and
	// with ErrInvalidInput when the input does not validate.
	ProcessSource(ctx context.Context, input schema.Input, opts ProcessOptions) ([]*schema.ContentRecord, error)

	// Capabilities describes the adapter without requiring initialization.
	Capabilities() schema.Capabilities

	// Cleanup releases resources. The adapter is uninitialized afterwards;
	// calling Cleanup on an uninitialized adapter is a no-op.
	Cleanup() error
}

// ProcessOptions carries per-request knobs for ProcessSource.
type ProcessOptions struct {
	// MaxPages bounds the number of content units fetched from the source.
	// Zero means use the adapter's configured default.
	MaxPages int
}

// Config is the shared configuration shape handed to adapter constructors.
// Adapters pick the fields they understand and ignore the rest.
type Config struct {
	// BaseURL is the root URL of the source instance (Confluence).
	BaseURL string `yaml:"baseURL"`
	// Username pairs with APIToken for basic auth (Confluence Cloud).
	Username string `yaml:"username"`
	// APIToken is the API token used with Username.
	APIToken string `yaml:"apiToken"`
	// Token is a bearer token (Confluence Server PATs, GitHub).
	Token string `yaml:"token"`
	// MaxPages is the default bound on content units per request.
	MaxPages int `yaml:"maxPages"`
	// UploadDir is where the document adapter expects local files.
	UploadDir string `yaml:"uploadDir"`
	// MaxFileSize caps individual file sizes in bytes (GitHub blobs).
	MaxFileSize int64 `yaml:"maxFileSize"`
	// IgnoreGlobs lists path globs skipped during repository walks.
	IgnoreGlobs []string `yaml:"ignoreGlobs"`
}

// Fingerprint returns a stable key derived from every field, used by the
// registry to cache one initialized adapter per distinct configuration.
func (c Config) Fingerprint() string {
	globs := append([]string(nil), c.IgnoreGlobs...)
	sort.Strings(globs)
	return fmt.Sprintf("%s|%s|%s|%s|%d|%s|%d|%s",
		c.BaseURL, c.Username, c.APIToken, c.Token,
		c.MaxPages, c.UploadDir, c.MaxFileSize, strings.Join(globs, ","))
}

// Constructor builds an uninitialized adapter from configuration.
type Constructor func(cfg Config) (Adapter, error)
