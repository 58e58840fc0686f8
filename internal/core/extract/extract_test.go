package extract

import (
	"testing"

	"github.com/MuhamadAgungGumelar/marksheetpro/internal/core/marksheet"
)

func TestTotalMarksNormalization(t *testing.T) {
	tests := []struct {
		name      string
		texts     []string
		wantTotal int
		wantPct   float64
		wantRule  string
	}{
		{"confusable O", []string{"TOTAL MARKS : 5O0\n"}, 500, 100.0, "total_marks"},
		{"upper bound of 600 scale", []string{"TOTAL MARKS : 600\n"}, 600, 100.0, "total_marks"},
		{"just above 600", []string{"TOTAL MARKS : 601\n"}, 601, 96.16, "total_marks"},
		{"above 600 with confusable", []string{"GRAND TOTAL 61O\n"}, 610, 97.6, "grand_total"},
		{"denominator 625", []string{"Marks Obtained: 625\n"}, 625, 100.0, "marks_obtained"},
		{"lowercase l", []string{"TOTAL: 4l2\n"}, 412, 82.4, "total"},
		{"trailing label", []string{"Result 488 marks\n"}, 488, 97.6, "trailing_label"},
		{"rejected capture falls through", []string{"TOTAL MARKS :    \nGRAND TOTAL 412\n"}, 412, 82.4, "grand_total"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, ok := FirstMatch(tt.texts, TotalMarksRules)
			if !ok {
				t.Fatalf("no match in %q", tt.texts)
			}
			if m.Rule != tt.wantRule {
				t.Errorf("rule = %s, want %s", m.Rule, tt.wantRule)
			}
			total, pct := TotalMarks(tt.texts)
			if total == nil || pct == nil {
				t.Fatalf("TotalMarks returned nil")
			}
			if *total != tt.wantTotal || *pct != tt.wantPct {
				t.Fatalf("got (%d, %v), want (%d, %v)", *total, *pct, tt.wantTotal, tt.wantPct)
			}
		})
	}
}

func TestTotalMarksEarlierVariantWins(t *testing.T) {
	texts := []string{"nothing useful", "TOTAL 480\n", "TOTAL MARKS 590\n"}
	m, ok := FirstMatch(texts, TotalMarksRules)
	if !ok || m.Text != 1 || m.Value != "480" {
		t.Fatalf("FirstMatch = %+v, %v; want text 1 value 480", m, ok)
	}
}

func TestTotalMarksAbsent(t *testing.T) {
	total, pct := TotalMarks([]string{"", "no figures"})
	if total != nil || pct != nil {
		t.Fatalf("expected (nil, nil), got (%v, %v)", total, pct)
	}
}

func TestDenominator(t *testing.T) {
	for total, want := range map[int]int{0: 500, 500: 500, 501: 600, 600: 600, 601: 625, 625: 625, 900: 625} {
		if got := Denominator(total); got != want {
			t.Errorf("Denominator(%d) = %d, want %d", total, got, want)
		}
	}
}

func TestResultCard(t *testing.T) {
	base := "STATE BOARD OF SCHOOL EXAMINATIONS\n" +
		"Name of the Candidate : RAVI KUMAR Date of Birth : 12 05 2004\n" +
		"Register Number : 20231234\n"
	other := "TOTAL MARKS : 456\n"
	got := ResultCard([]string{base, other})
	if got.Name != "Ravi Kumar" {
		t.Errorf("Name = %q", got.Name)
	}
	if got.DOB != "12-05-2004" {
		t.Errorf("DOB = %q", got.DOB)
	}
	if got.RegisterNumber != "20231234" {
		t.Errorf("RegisterNumber = %q", got.RegisterNumber)
	}
	if got.TotalMarks == nil || *got.TotalMarks != 456 {
		t.Fatalf("TotalMarks = %v", got.TotalMarks)
	}
	if *got.Percentage != 91.2 {
		t.Errorf("Percentage = %v", *got.Percentage)
	}
}

func TestResultCardIdentityOnlyFromBaseline(t *testing.T) {
	got := ResultCard([]string{"blurred", "Name: ANITA\nRoll Number 1234567\n"})
	if got.Name != "" || got.RegisterNumber != "" {
		t.Fatalf("identity fields must come from the baseline text, got %+v", got)
	}
}

func TestCardNameDropsInitialsAndStopsAtLabels(t *testing.T) {
	got := ResultCard([]string{"Name: PRIYA S.\nRoll Number: 1234567\n"})
	if got.Name != "Priya" {
		t.Fatalf("Name = %q, want Priya", got.Name)
	}
	if got.RegisterNumber != "1234567" {
		t.Fatalf("RegisterNumber = %q", got.RegisterNumber)
	}
}

func TestShortRegisterNumberIgnored(t *testing.T) {
	got := ResultCard([]string{"Roll Number 1234"})
	if got.RegisterNumber != "" {
		t.Fatalf("RegisterNumber = %q, want empty", got.RegisterNumber)
	}
}

func TestSemester(t *testing.T) {
	base := "Name of the Candidate : R.S.KUMAR Register Number : CS2021001\n" +
		"Degree / Branch : B.E. Computer Science®\n" +
		"CGPA : 8.75   SGPA : 9.10\n"
	got := Semester([]string{base})
	want := marksheet.SemesterFields{
		Name:           "R. S. KUMAR",
		RegisterNumber: "CS2021001",
		Department:     "B.E. Computer Science",
		CGPA:           "8.75",
		SGPA:           "9.10",
	}
	if got != want {
		t.Fatalf("Semester() = %+v, want %+v", got, want)
	}
}

func TestSemesterScoresSearchedIndependently(t *testing.T) {
	texts := []string{
		"CGPA 123\n",
		"C.G.P.A. : 7.5O\n",
		"S G P A - 8.0\n",
	}
	got := Semester(texts)
	if got.CGPA != "7.50" {
		t.Errorf("CGPA = %q, want 7.50", got.CGPA)
	}
	if got.SGPA != "8.0" {
		t.Errorf("SGPA = %q, want 8.0", got.SGPA)
	}
}

func TestScoreCleaning(t *testing.T) {
	rule := CGPARules[0]
	tests := []struct {
		raw  string
		want string
		ok   bool
	}{
		{"8.5O", "8.50", true},
		{"8.5X", "", false},
		{"l0", "10", true},
		{"9.I", "9.1", true},
		{"855", "", false},
	}
	for _, tt := range tests {
		got, ok := rule.Evaluate(tt.raw)
		if ok != tt.ok || got != tt.want {
			t.Errorf("Evaluate(%q) = (%q, %v), want (%q, %v)", tt.raw, got, ok, tt.want, tt.ok)
		}
	}
}

func TestSpaceInitials(t *testing.T) {
	tests := map[string]string{
		"A.B":       "A. B",
		"A.B.C":     "A. B. C",
		"AB.C":      "AB.C",
		"J. R.R.T":  "J. R. R. T",
		"no change": "no change",
	}
	for in, want := range tests {
		if got := spaceInitials(in); got != want {
			t.Errorf("spaceInitials(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNoPatternsNeverFails(t *testing.T) {
	for _, texts := range [][]string{nil, {}, {"", "~~ ## !!"}} {
		card := ResultCard(texts)
		if card != (marksheet.ResultCardFields{}) {
			t.Errorf("ResultCard(%q) = %+v, want zero value", texts, card)
		}
		sem := Semester(texts)
		if sem != (marksheet.SemesterFields{}) {
			t.Errorf("Semester(%q) = %+v, want zero value", texts, sem)
		}
		if n := len(For(marksheet.TypeSemester)(texts).Map()); n != 5 {
			t.Errorf("semester map has %d keys, want 5", n)
		}
	}
}
