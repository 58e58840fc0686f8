// Package extract recovers marksheet fields from OCR text.
//
// Every field is described by an ordered table of Rules. A Rule couples a
// pattern with the capture group to read, a cleaning step for OCR-confusable
// characters and an acceptance predicate. FirstMatch walks the candidate
// texts in variant order and, for each text, the rules in table order; the
// first accepted value wins.
package extract

import (
	"regexp"
	"strings"
)

// Rule is one row of a field's pattern table
type Rule struct {
	Name    string
	Pattern *regexp.Regexp
	// Group is the capture group holding the raw value
	Group int
	// Clean normalizes the raw capture; nil keeps it as is
	Clean func(string) string
	// Accept validates the cleaned value; nil accepts anything non-empty
	Accept func(string) bool
}

// Apply runs the rule against one text
func (r Rule) Apply(text string) (string, bool) {
	m := r.Pattern.FindStringSubmatch(text)
	if m == nil || r.Group >= len(m) {
		return "", false
	}
	return r.Evaluate(m[r.Group])
}

// Evaluate cleans and validates a raw capture without matching
func (r Rule) Evaluate(raw string) (string, bool) {
	v := raw
	if r.Clean != nil {
		v = r.Clean(v)
	}
	if r.Accept != nil {
		if !r.Accept(v) {
			return "", false
		}
	} else if v == "" {
		return "", false
	}
	return v, true
}

// Match is the outcome of FirstMatch
type Match struct {
	Value string
	Rule  string
	// Text is the index of the candidate text that produced the value
	Text int
}

// FirstMatch returns the first accepted value, texts outer and rules inner
func FirstMatch(texts []string, rules []Rule) (Match, bool) {
	for i, text := range texts {
		for _, r := range rules {
			if v, ok := r.Apply(text); ok {
				return Match{Value: v, Rule: r.Name, Text: i}, true
			}
		}
	}
	return Match{}, false
}

// baseline returns the OCR text of the unmodified grayscale variant
func baseline(texts []string) string {
	if len(texts) == 0 {
		return ""
	}
	return texts[0]
}

var confusableDigits = strings.NewReplacer("O", "0", "I", "1", "l", "1", " ", "")

// cleanScore maps OCR-confusable characters of a grade point to digits
func cleanScore(s string) string {
	return confusableDigits.Replace(s)
}

var nonDigit = regexp.MustCompile(`[^\d]`)

// cleanTotal maps O and l to digits, drops spaces and any other non-digit
func cleanTotal(s string) string {
	s = strings.NewReplacer("O", "0", "l", "1", " ", "").Replace(s)
	return nonDigit.ReplaceAllString(s, "")
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
