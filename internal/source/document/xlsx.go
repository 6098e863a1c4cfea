package document

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

// XlsxProcessor extracts spreadsheet content from Excel (.xlsx) files,
// converting each sheet to a Markdown table.
type XlsxProcessor struct{}

// NewXlsxProcessor creates a new XlsxProcessor.
func NewXlsxProcessor() *XlsxProcessor {
	return &XlsxProcessor{}
}

// Kind returns the short format name.
func (p *XlsxProcessor) Kind() string { return "xlsx" }

// SupportsFormat reports whether the extension is handled.
func (p *XlsxProcessor) SupportsFormat(ext string) bool { return ext == ".xlsx" }

// SupportedFormats lists the handled extensions.
func (p *XlsxProcessor) SupportedFormats() []string { return []string{".xlsx"} }

// Process reads an .xlsx file, rendering every sheet as a Markdown table
// under a sheet heading.
func (p *XlsxProcessor) Process(path string) (*Extraction, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("opening xlsx: %w", err)
	}
	defer f.Close()

	var sb strings.Builder
	sheets := f.GetSheetList()
	for _, sheetName := range sheets {
		rows, err := f.GetRows(sheetName)
		if err != nil || len(rows) == 0 {
			continue
		}

		sb.WriteString("## " + sheetName + "\n\n")
		sb.WriteString("| " + strings.Join(rows[0], " | ") + " |\n")
		sb.WriteString("|" + strings.Repeat(" --- |", len(rows[0])) + "\n")
		for _, row := range rows[1:] {
			sb.WriteString("| " + strings.Join(row, " | ") + " |\n")
		}
		sb.WriteString("\n")
	}

	return &Extraction{
		Content: sb.String(),
		Metadata: map[string]interface{}{
			"sheet_count": len(sheets),
			"sheet_names": sheets,
		},
	}, nil
}

var _ Processor = (*XlsxProcessor)(nil)
