package extract

import (
	"regexp"
	"strings"

	"github.com/MuhamadAgungGumelar/marksheetpro/internal/core/marksheet"
)

var (
	initialPair    = regexp.MustCompile(`\b([A-Z])\.([A-Z])`)
	nameDisallowed = regexp.MustCompile(`[^A-Za-z .]+`)
	deptGlyphs     = regexp.MustCompile(`[\x{00AE}\x{00A9}\x{2122}:]+`)
	scoreShape     = regexp.MustCompile(`^\d{1,2}(\.\d{0,2})?$`)
)

var (
	// SemesterNameRules read the name up to the next identity label
	SemesterNameRules = []Rule{{
		Name:    "name_of_candidate",
		Pattern: regexp.MustCompile(`(?i)Name\s*of\s*the\s*Candidate\s*[:\-]?\s*(.+?)\s+(?:Register|Reg|Department|Degree)`),
		Group:   1,
		Clean:   cleanSemesterName,
	}}

	// SemesterRegisterRules read an alphanumeric register number
	SemesterRegisterRules = []Rule{{
		Name:    "register_number",
		Pattern: regexp.MustCompile(`(?i)Register\s*Number\s*[:\-]?\s*([A-Z0-9]+)`),
		Group:   1,
		Clean:   strings.TrimSpace,
	}}

	// DepartmentRules read the degree/branch line without trademark glyphs
	DepartmentRules = []Rule{{
		Name:    "degree_branch",
		Pattern: regexp.MustCompile(`(?i)Degree\s*/\s*Branch\s*[:\-]?\s*(.+)`),
		Group:   1,
		Clean: func(s string) string {
			return strings.TrimSpace(deptGlyphs.ReplaceAllString(strings.TrimSpace(s), ""))
		},
	}}

	// CGPARules and SGPARules match the plain, dotted and spaced labels in that order
	CGPARules = scoreRules("cgpa", "CGPA", `C\.G\.P\.A\.?`, "C G P A")
	SGPARules = scoreRules("sgpa", "SGPA", `S\.G\.P\.A\.?`, "S G P A")
)

// scoreRules builds the plain, dotted and spaced label spellings of a grade point
func scoreRules(name string, labels ...string) []Rule {
	rules := make([]Rule, 0, len(labels))
	for _, label := range labels {
		rules = append(rules, Rule{
			Name:    name,
			Pattern: regexp.MustCompile(`(?i)` + label + `\s*[:\-]?\s*([0-9OIl]{1,2}\.?[0-9OIl]{1,2})`),
			Group:   1,
			Clean:   cleanScore,
			Accept:  scoreShape.MatchString,
		})
	}
	return rules
}

// spaceInitials turns "A.B" into "A. B" for every run of single-letter initials
func spaceInitials(s string) string {
	for {
		next := initialPair.ReplaceAllString(s, "$1. $2")
		if next == s {
			return s
		}
		s = next
	}
}

func cleanSemesterName(raw string) string {
	s := spaceInitials(strings.TrimSpace(raw))
	return strings.TrimSpace(nameDisallowed.ReplaceAllString(s, ""))
}

// Semester extracts the semester transcript schema. Identity fields come from
// the baseline text; CGPA and SGPA are searched independently across all texts.
func Semester(texts []string) marksheet.SemesterFields {
	base := []string{baseline(texts)}
	var out marksheet.SemesterFields
	if m, ok := FirstMatch(base, SemesterNameRules); ok {
		out.Name = m.Value
	}
	if m, ok := FirstMatch(base, SemesterRegisterRules); ok {
		out.RegisterNumber = m.Value
	}
	if m, ok := FirstMatch(base, DepartmentRules); ok {
		out.Department = m.Value
	}
	if m, ok := FirstMatch(texts, CGPARules); ok {
		out.CGPA = m.Value
	}
	if m, ok := FirstMatch(texts, SGPARules); ok {
		out.SGPA = m.Value
	}
	return out
}

// For returns the extractor profile of a document type
func For(t marksheet.DocumentType) func(texts []string) marksheet.FieldSet {
	if t == marksheet.TypeSemester {
		return func(texts []string) marksheet.FieldSet { return Semester(texts) }
	}
	return func(texts []string) marksheet.FieldSet { return ResultCard(texts) }
}
