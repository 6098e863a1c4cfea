package document

import (
	"fmt"
	"strings"

	"github.com/unidoc/unioffice/v2/document"
)

// DocxProcessor extracts text from Word (.docx) files.
type DocxProcessor struct{}

// NewDocxProcessor creates a new DocxProcessor.
func NewDocxProcessor() *DocxProcessor {
	return &DocxProcessor{}
}

// Kind returns the short format name.
func (p *DocxProcessor) Kind() string { return "docx" }

// SupportsFormat reports whether the extension is handled.
func (p *DocxProcessor) SupportsFormat(ext string) bool { return ext == ".docx" }

// SupportedFormats lists the handled extensions.
func (p *DocxProcessor) SupportedFormats() []string { return []string{".docx"} }

// Process reads a .docx file and extracts the text of every paragraph.
func (p *DocxProcessor) Process(path string) (*Extraction, error) {
	doc, err := document.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening docx: %w", err)
	}
	defer doc.Close()

	var textBuilder strings.Builder
	paragraphCount := 0
	for _, para := range doc.Paragraphs() {
		for _, run := range para.Runs() {
			textBuilder.WriteString(run.Text())
		}
		textBuilder.WriteString("\n")
		paragraphCount++
	}

	ext := &Extraction{
		Content: textBuilder.String(),
		Metadata: map[string]interface{}{
			"paragraph_count": paragraphCount,
		},
	}

	props := doc.CoreProperties
	if title := props.Title(); title != "" {
		ext.Title = title
	}
	if author := props.Author(); author != "" {
		ext.Author = author
	}

	return ext, nil
}

var _ Processor = (*DocxProcessor)(nil)
