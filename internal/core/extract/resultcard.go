package extract

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/MuhamadAgungGumelar/marksheetpro/internal/core/marksheet"
)

// nameStopLabels are field labels that commonly follow the name on the same line
var nameStopLabels = regexp.MustCompile(`(?i)\b(Date|Register|Roll|Number|Marks|School|Std|Gender|Father|Mother)\b`)

var (
	// CardNameRules read the candidate name and drop trailing labels and initials
	CardNameRules = []Rule{{
		Name:    "name",
		Pattern: regexp.MustCompile(`(?i)Name\s*(?:of\s+the\s+(?:Candidate|Student))?\s*[:\-]?\s*([A-Z\s.]{3,})`),
		Group:   1,
		Clean:   cleanCardName,
	}}

	// CardDOBRules read a day-month-year date and join its parts with dashes
	CardDOBRules = []Rule{{
		Name:    "date_of_birth",
		Pattern: regexp.MustCompile(`(?i)Date\s+of\s+Birth\s*[:\-]?\s*(\d{1,2}[-/.\s]\d{1,2}[-/.\s]\d{2,4})`),
		Group:   1,
		Clean:   func(s string) string { return strings.ReplaceAll(s, " ", "-") },
	}}

	// CardRegisterRules accept register, roll or admission numbers of at least five digits
	CardRegisterRules = []Rule{{
		Name:    "register_number",
		Pattern: regexp.MustCompile(`(?i)(Register|Roll|Admission)\s+Number\s*[:\-]?\s*(\d{5,})`),
		Group:   2,
		Clean:   strings.TrimSpace,
	}}

	// TotalMarksRules are ordered from the most to the least specific label
	TotalMarksRules = []Rule{
		totalRule("total_marks", `(?i)TOTAL\s*MARKS?\s*[:\-]?\s*([\dO l]{3,6})`),
		totalRule("marks_obtained", `(?i)MARKS\s*OBTAINED\s*[:\-]?\s*([\dO l]{3,6})`),
		totalRule("grand_total", `(?i)GRAND\s*TOTAL\s*[:\-]?\s*([\dO l]{3,6})`),
		totalRule("total", `(?i)TOTAL\s*[:\-]?\s*([\dO l]{3,6})`),
		totalRule("total_bare", `(?i)Total\s*([\dO l]{3,6})`),
		totalRule("trailing_label", `(?i)([\dO l]{3,6})\s*(marks|total|obtained)`),
	}
)

func totalRule(name, pattern string) Rule {
	return Rule{
		Name:    name,
		Pattern: regexp.MustCompile(pattern),
		Group:   1,
		Clean:   cleanTotal,
		Accept:  isDigits,
	}
}

// cleanCardName cuts the capture at the first following label and title-cases
// the purely alphabetic tokens
func cleanCardName(raw string) string {
	if loc := nameStopLabels.FindStringIndex(raw); loc != nil {
		raw = raw[:loc[0]]
	}
	var parts []string
	for _, tok := range strings.Fields(raw) {
		if isAlpha(tok) {
			parts = append(parts, capitalize(tok))
		}
	}
	return strings.Join(parts, " ")
}

func isAlpha(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsLetter(r) {
			return false
		}
	}
	return true
}

func capitalize(s string) string {
	r := []rune(strings.ToLower(s))
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}

// Denominator picks the maximum marks from the range of the raw total
func Denominator(total int) int {
	switch {
	case total <= 500:
		return 500
	case total <= 600:
		return 600
	}
	return 625
}

// Percentage is total over Denominator(total), rounded to 2 decimals.
// 600 gives 100.0 while 601 and 610 fall to the 625 scale (96.16, 97.6).
func Percentage(total int) float64 {
	pct := float64(total) / float64(Denominator(total)) * 100
	return math.Round(pct*100) / 100
}

// TotalMarks searches all candidate texts for the total and derives the percentage
func TotalMarks(texts []string) (*int, *float64) {
	m, ok := FirstMatch(texts, TotalMarksRules)
	if !ok {
		return nil, nil
	}
	total, err := strconv.Atoi(m.Value)
	if err != nil {
		return nil, nil
	}
	pct := Percentage(total)
	return &total, &pct
}

// ResultCard extracts the 10th/12th schema. Name, DOB and register number are
// read from the baseline text only.
func ResultCard(texts []string) marksheet.ResultCardFields {
	base := []string{baseline(texts)}
	var out marksheet.ResultCardFields
	if m, ok := FirstMatch(base, CardNameRules); ok {
		out.Name = m.Value
	}
	if m, ok := FirstMatch(base, CardDOBRules); ok {
		out.DOB = m.Value
	}
	if m, ok := FirstMatch(base, CardRegisterRules); ok {
		out.RegisterNumber = m.Value
	}
	out.TotalMarks, out.Percentage = TotalMarks(texts)
	return out
}
