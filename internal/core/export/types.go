package export

import (
	"io"
	"path/filepath"
	"strings"

	"github.com/MuhamadAgungGumelar/marksheetpro/internal/core/marksheet"
)

// Exporter writes a table to w
type Exporter interface {
	Export(data *ExportData, writer io.Writer) error
}

// ExportData represents the data to be exported
type ExportData struct {
	Sheet   string
	Headers []string
	Rows    [][]interface{}
}

// FromResult lays out an extraction result as one header row plus one row per page
func FromResult(res *marksheet.Result) *ExportData {
	return &ExportData{
		Sheet:   string(res.Type),
		Headers: res.Columns,
		Rows:    res.Table(),
	}
}

// OutputName derives the spreadsheet name for a source document:
// "scan.pdf" processed as semester becomes "scan_semester_processed.xlsx".
func OutputName(src string, docType marksheet.DocumentType) string {
	base := filepath.Base(src)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return stem + "_" + string(docType) + "_processed.xlsx"
}
