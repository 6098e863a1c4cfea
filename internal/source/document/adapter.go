package document

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/djherbis/times"
	"github.com/gabriel-vasile/mimetype"

	"Minerva/internal/source"
	"Minerva/internal/source/schema"
	"Minerva/pkg/logger"
)

// SourceType is the registry identifier of this adapter.
const SourceType = "document_upload"

// Adapter processes locally uploaded documents through a set of
// format-specific processors.
type Adapter struct {
	cfg        source.Config
	log        *logger.Logger
	processors []Processor

	mu          sync.Mutex
	initialized bool
}

// New constructs an uninitialized document adapter with the default
// processor set.
func New(cfg source.Config, log *logger.Logger) *Adapter {
	return &Adapter{
		cfg: cfg,
		log: log,
		processors: []Processor{
			NewPDFProcessor(),
			NewDocxProcessor(),
			NewXlsxProcessor(),
			NewTextProcessor(),
		},
	}
}

// Constructor adapts New to the registry constructor signature.
func Constructor(log *logger.Logger) source.Constructor {
	return func(cfg source.Config) (source.Adapter, error) {
		return New(cfg, log), nil
	}
}

// SourceType returns the registry identifier of this adapter.
func (a *Adapter) SourceType() string { return SourceType }

// Initialize prepares the upload directory.
func (a *Adapter) Initialize(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.cfg.UploadDir != "" {
		if err := os.MkdirAll(a.cfg.UploadDir, 0o755); err != nil {
			return fmt.Errorf("preparing upload dir: %w", err)
		}
	}
	a.initialized = true
	return nil
}

// ValidateInput accepts a file path (structured or bare) with a supported
// extension. No filesystem access happens here; existence is checked during
// processing.
func (a *Adapter) ValidateInput(input schema.Input) bool {
	path := a.resolvePath(input)
	if strings.TrimSpace(path) == "" {
		return false
	}
	ext := strings.ToLower(filepath.Ext(path))
	if ext == "" {
		return false
	}
	return a.processorFor(ext) != nil
}

// ProcessSource extracts one content record from the file at the input path.
func (a *Adapter) ProcessSource(ctx context.Context, input schema.Input, opts source.ProcessOptions) ([]*schema.ContentRecord, error) {
	a.mu.Lock()
	initialized := a.initialized
	a.mu.Unlock()
	if !initialized {
		return nil, fmt.Errorf("%w: %s", source.ErrNotInitialized, SourceType)
	}
	if !a.ValidateInput(input) {
		return nil, fmt.Errorf("%w: unsupported or empty file path", source.ErrInvalidInput)
	}

	path := a.resolvePath(input)
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", source.ErrNotFound, path)
		}
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}

	ext := strings.ToLower(filepath.Ext(path))
	proc := a.processorFor(ext)
	if proc == nil {
		return nil, fmt.Errorf("%w: no processor for %s", source.ErrInvalidInput, ext)
	}

	extraction, err := proc.Process(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", source.ErrExtraction, filepath.Base(path), err)
	}
	if strings.TrimSpace(extraction.Content) == "" {
		return nil, fmt.Errorf("%w: %s produced no text", source.ErrExtraction, filepath.Base(path))
	}

	record := a.buildRecord(path, info.ModTime(), proc, extraction)
	a.log.WithFields(map[string]interface{}{
		"file":      filepath.Base(path),
		"kind":      proc.Kind(),
		"source_id": record.SourceID,
	}).Info("processed uploaded document")

	return []*schema.ContentRecord{record}, nil
}

func (a *Adapter) buildRecord(path string, modTime time.Time, proc Processor, extraction *Extraction) *schema.ContentRecord {
	filename := filepath.Base(path)

	metadata := map[string]interface{}{
		"file_name":      filename,
		"file_extension": strings.ToLower(filepath.Ext(path)),
		"processor":      proc.Kind(),
	}
	for k, v := range extraction.Metadata {
		metadata[k] = v
	}
	if mt, err := mimetype.DetectFile(path); err == nil {
		metadata["mime_type"] = mt.String()
	}

	createdAt := modTime
	updatedAt := modTime
	if ts, err := times.Stat(path); err == nil {
		updatedAt = ts.ModTime()
		if ts.HasBirthTime() {
			createdAt = ts.BirthTime()
		}
	}

	title := extraction.Title
	if title == "" {
		title = strings.TrimSuffix(filename, filepath.Ext(filename))
	}

	return &schema.ContentRecord{
		Content:    extraction.Content,
		Metadata:   metadata,
		SourceType: SourceType,
		SourceID:   fmt.Sprintf("%s_%s_%d", proc.Kind(), filename, modTime.Unix()),
		Title:      title,
		Author:     extraction.Author,
		CreatedAt:  &createdAt,
		UpdatedAt:  &updatedAt,
	}
}

// Capabilities describes the adapter without initializing it.
func (a *Adapter) Capabilities() schema.Capabilities {
	formats := make([]string, 0, 8)
	for _, p := range a.processors {
		formats = append(formats, p.SupportedFormats()...)
	}
	return schema.Capabilities{
		SourceType:       SourceType,
		Description:      "Processes locally uploaded documents (PDF, Word, Excel, text, Markdown)",
		Features:         []string{"text_extraction", "file_timestamps", "format_detection"},
		SupportedInputs:  []string{"file_path"},
		SupportedFormats: formats,
	}
}

// Cleanup returns the adapter to the uninitialized state.
func (a *Adapter) Cleanup() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.initialized = false
	return nil
}

func (a *Adapter) resolvePath(input schema.Input) string {
	if input.FilePath != "" {
		return input.FilePath
	}
	return strings.TrimSpace(input.Raw)
}

func (a *Adapter) processorFor(ext string) Processor {
	for _, p := range a.processors {
		if p.SupportsFormat(ext) {
			return p
		}
	}
	return nil
}

// compile-time check to ensure Adapter implements the source.Adapter interface
var _ source.Adapter = (*Adapter)(nil)
