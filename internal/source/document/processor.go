package document

// Extraction is the format-specific part of a processed document. The
// adapter fills in source identity, timestamps and file metadata.
type Extraction struct {
	Content  string
	Title    string
	Author   string
	Metadata map[string]interface{}
}

// Processor extracts text from one family of document formats.
type Processor interface {
	// Kind is the short format name used in source IDs (e.g. "pdf").
	Kind() string

	// SupportsFormat reports whether the processor handles the extension
	// (lowercase, with leading dot).
	SupportsFormat(ext string) bool

	// SupportedFormats lists the extensions the processor handles.
	SupportedFormats() []string

	// Process reads the file and extracts its text content.
	Process(path string) (*Extraction, error)
}
