package document

import (
	"fmt"
	"os"
	"strings"
)

// TextProcessor handles plain text and Markdown files.
type TextProcessor struct{}

// NewTextProcessor creates a new TextProcessor.
func NewTextProcessor() *TextProcessor {
	return &TextProcessor{}
}

// Kind returns the short format name.
func (p *TextProcessor) Kind() string { return "text" }

// SupportsFormat reports whether the extension is handled.
func (p *TextProcessor) SupportsFormat(ext string) bool {
	return ext == ".txt" || ext == ".md" || ext == ".markdown"
}

// SupportedFormats lists the handled extensions.
func (p *TextProcessor) SupportedFormats() []string {
	return []string{".txt", ".md", ".markdown"}
}

// Process reads the file. For Markdown, the first top-level heading becomes
// the title.
func (p *TextProcessor) Process(path string) (*Extraction, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading text file: %w", err)
	}
	content := string(data)

	ext := &Extraction{
		Content:  content,
		Metadata: map[string]interface{}{},
	}

	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "# ") {
			ext.Title = strings.TrimSpace(strings.TrimPrefix(trimmed, "# "))
			break
		}
		if trimmed != "" && !strings.HasPrefix(trimmed, "#") {
			break
		}
	}

	return ext, nil
}

var _ Processor = (*TextProcessor)(nil)
