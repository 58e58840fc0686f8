package marksheet

import (
	"fmt"
	"image"
	"strings"
)

// DocumentType selects the extractor profile and column schema
type DocumentType string

const (
	TypeTenth    DocumentType = "10th"
	TypeTwelfth  DocumentType = "12th"
	TypeSemester DocumentType = "semester"
)

// ParseDocumentType normalizes a caller-supplied type tag
func ParseDocumentType(s string) (DocumentType, error) {
	switch DocumentType(strings.ToLower(strings.TrimSpace(s))) {
	case TypeTenth:
		return TypeTenth, nil
	case TypeTwelfth:
		return TypeTwelfth, nil
	case TypeSemester:
		return TypeSemester, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownDocumentType, s)
}

// IsResultCard reports whether the type uses the result-card profile (10th/12th)
func (t DocumentType) IsResultCard() bool {
	return t == TypeTenth || t == TypeTwelfth
}

// Column names, shared by the extractor output and the tabular export
const (
	ColName           = "Name"
	ColDOB            = "DOB"
	ColRegisterNumber = "Register Number"
	ColTotalMarks     = "Total Marks"
	ColPercentage     = "Percentage"
	ColDepartment     = "Department"
	ColCGPA           = "CGPA"
	ColSGPA           = "SGPA"
)

var (
	resultCardColumns = []string{ColName, ColDOB, ColRegisterNumber, ColTotalMarks, ColPercentage}
	semesterColumns   = []string{ColName, ColRegisterNumber, ColDepartment, ColCGPA, ColSGPA}
)

// Columns returns the ordered column set for a document type
func Columns(t DocumentType) []string {
	if t == TypeSemester {
		return append([]string(nil), semesterColumns...)
	}
	return append([]string(nil), resultCardColumns...)
}

// FieldSet is the extracted record for one page. Row values are aligned with
// Columns of the same document type and every column is always present.
type FieldSet interface {
	Row() []any
	Map() map[string]any
}

// ResultCardFields is the 10th/12th schema. Nil numerics mean "not found".
type ResultCardFields struct {
	Name           string   `json:"Name"`
	DOB            string   `json:"DOB"`
	RegisterNumber string   `json:"Register Number"`
	TotalMarks     *int     `json:"Total Marks"`
	Percentage     *float64 `json:"Percentage"`
}

func (f ResultCardFields) Row() []any {
	var total, pct any
	if f.TotalMarks != nil {
		total = *f.TotalMarks
	}
	if f.Percentage != nil {
		pct = *f.Percentage
	}
	return []any{f.Name, f.DOB, f.RegisterNumber, total, pct}
}

func (f ResultCardFields) Map() map[string]any {
	return rowMap(resultCardColumns, f.Row())
}

// SemesterFields is the semester transcript schema
type SemesterFields struct {
	Name           string `json:"Name"`
	RegisterNumber string `json:"Register Number"`
	Department     string `json:"Department"`
	CGPA           string `json:"CGPA"`
	SGPA           string `json:"SGPA"`
}

func (f SemesterFields) Row() []any {
	return []any{f.Name, f.RegisterNumber, f.Department, f.CGPA, f.SGPA}
}

func (f SemesterFields) Map() map[string]any {
	return rowMap(semesterColumns, f.Row())
}

func rowMap(cols []string, row []any) map[string]any {
	m := make(map[string]any, len(cols))
	for i, c := range cols {
		m[c] = row[i]
	}
	return m
}

// Variant is one preprocessed rendering of a page. Variants live only for the
// OCR pass of their page.
type Variant struct {
	Name  string
	Image image.Image
}

// Result is the ordered per-page output of one document call
type Result struct {
	Type    DocumentType `json:"type"`
	Columns []string     `json:"columns"`
	Rows    []FieldSet   `json:"rows"`
	// Pages is the number of pages the document produced, including skipped ones
	Pages int `json:"pages"`
}

// Table returns the rows as a column-aligned grid
func (r *Result) Table() [][]any {
	out := make([][]any, 0, len(r.Rows))
	for _, row := range r.Rows {
		out = append(out, row.Row())
	}
	return out
}

// Records returns the rows as name-keyed maps, used for JSON persistence
func (r *Result) Records() []map[string]any {
	out := make([]map[string]any, 0, len(r.Rows))
	for _, row := range r.Rows {
		out = append(out, row.Map())
	}
	return out
}
