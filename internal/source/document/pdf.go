package document

import (
	"bytes"
	"fmt"

	"github.com/ledongthuc/pdf"
)

// PDFProcessor extracts plain text from PDF files.
type PDFProcessor struct{}

// NewPDFProcessor creates a new PDFProcessor.
func NewPDFProcessor() *PDFProcessor {
	return &PDFProcessor{}
}

// Kind returns the short format name.
func (p *PDFProcessor) Kind() string { return "pdf" }

// SupportsFormat reports whether the extension is handled.
func (p *PDFProcessor) SupportsFormat(ext string) bool { return ext == ".pdf" }

// SupportedFormats lists the handled extensions.
func (p *PDFProcessor) SupportedFormats() []string { return []string{".pdf"} }

// Process reads a PDF file and extracts its plain text.
func (p *PDFProcessor) Process(path string) (*Extraction, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening pdf: %w", err)
	}
	defer f.Close()

	reader, err := r.GetPlainText()
	if err != nil {
		return nil, fmt.Errorf("extracting pdf text: %w", err)
	}

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(reader); err != nil {
		return nil, fmt.Errorf("reading pdf text: %w", err)
	}

	return &Extraction{
		Content: buf.String(),
		Metadata: map[string]interface{}{
			"page_count": r.NumPage(),
		},
	}, nil
}

var _ Processor = (*PDFProcessor)(nil)
