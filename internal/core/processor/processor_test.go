package processor

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/MuhamadAgungGumelar/marksheetpro/internal/core/marksheet"
)

type fakeGenerator struct {
	mu    sync.Mutex
	calls int
	fail  map[int]error
	panic map[int]bool
}

func (g *fakeGenerator) Generate(img image.Image) ([]marksheet.Variant, error) {
	g.mu.Lock()
	g.calls++
	n := g.calls
	g.mu.Unlock()
	if g.panic[n] {
		panic("opencv exploded")
	}
	if err := g.fail[n]; err != nil {
		return nil, err
	}
	return []marksheet.Variant{
		{Name: "grayscale", Image: img},
		{Name: "otsu", Image: img},
	}, nil
}

// fakeRecognizer returns pages[i] for the i-th page it sees, one text per variant
type fakeRecognizer struct {
	mu    sync.Mutex
	calls int
	pages [][]string
}

func (r *fakeRecognizer) RecognizeAll(ctx context.Context, variants []marksheet.Variant) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	texts := r.pages[r.calls%len(r.pages)]
	r.calls++
	out := make([]string, len(variants))
	copy(out, texts)
	return out
}

type fakeRasterizer struct {
	pages     int
	countErr  error
	renderErr map[int]error
	rendered  []string
}

func (f *fakeRasterizer) PageCount(ctx context.Context, path string) (int, error) {
	return f.pages, f.countErr
}

func (f *fakeRasterizer) RenderPage(ctx context.Context, path string, page int, dir string) (string, error) {
	if err := f.renderErr[page]; err != nil {
		return "", err
	}
	out := filepath.Join(dir, fmt.Sprintf("page-%d.png", page))
	if err := writePNG(out); err != nil {
		return "", err
	}
	f.rendered = append(f.rendered, out)
	return out, nil
}

func writePNG(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return png.Encode(f, image.NewGray(image.Rect(0, 0, 8, 8)))
}

func touch(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte("%PDF-1.4"), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func workspaces(t *testing.T, root string) []string {
	t.Helper()
	entries, err := os.ReadDir(root)
	if err != nil {
		t.Fatal(err)
	}
	var out []string
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), "marksheet-") {
			out = append(out, e.Name())
		}
	}
	return out
}

const semesterPage = "Name of the Candidate : R.S.KUMAR Register Number : CS2021001\n" +
	"Degree / Branch : B.E. Computer Science\n" +
	"CGPA : 8.75   SGPA : 9.10\n"

func TestProcessInputErrorsSkipOCR(t *testing.T) {
	dir := t.TempDir()
	docx := filepath.Join(dir, "sheet.docx")
	corruptPNG := filepath.Join(dir, "scan.png")
	corruptJPG := filepath.Join(dir, "scan.jpg")
	for _, f := range []string{docx, corruptPNG, corruptJPG} {
		if err := os.WriteFile(f, []byte("not an image"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	tests := []struct {
		name    string
		path    string
		docType marksheet.DocumentType
		want    error
	}{
		{"missing pdf", filepath.Join(dir, "absent.pdf"), marksheet.TypeSemester, marksheet.ErrFileNotFound},
		{"missing jpg", filepath.Join(dir, "absent.jpg"), marksheet.TypeTenth, marksheet.ErrFileNotFound},
		{"missing jpeg", filepath.Join(dir, "absent.jpeg"), marksheet.TypeTenth, marksheet.ErrFileNotFound},
		{"missing png", filepath.Join(dir, "absent.png"), marksheet.TypeTwelfth, marksheet.ErrFileNotFound},
		{"directory", dir, marksheet.TypeTenth, marksheet.ErrFileNotFound},
		{"unsupported docx", docx, marksheet.TypeSemester, marksheet.ErrUnsupportedFormat},
		{"undecodable png", corruptPNG, marksheet.TypeTenth, marksheet.ErrUnreadableImage},
		{"undecodable jpg", corruptJPG, marksheet.TypeSemester, marksheet.ErrUnreadableImage},
		{"unknown type", docx, marksheet.DocumentType("diploma"), marksheet.ErrUnknownDocumentType},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := &fakeGenerator{}
			rec := &fakeRecognizer{pages: [][]string{{semesterPage}}}
			ras := &fakeRasterizer{pages: 1}
			p := New(gen, rec, ras, Options{TempRoot: t.TempDir()})

			_, err := p.Process(context.Background(), tt.docType, tt.path)
			if !errors.Is(err, tt.want) {
				t.Fatalf("Process() error = %v, want %v", err, tt.want)
			}
			var merr *marksheet.Error
			if !errors.As(err, &merr) || merr.Kind != marksheet.KindInput {
				t.Fatalf("error %v is not an input error", err)
			}
			if gen.calls != 0 || rec.calls != 0 || len(ras.rendered) != 0 {
				t.Fatalf("pipeline invoked on invalid input")
			}
		})
	}
}

func TestProcessImage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "card.PNG")
	if err := writePNG(path); err != nil {
		t.Fatal(err)
	}
	rec := &fakeRecognizer{pages: [][]string{{
		"Name: ANITA RAO\nRoll Number: 1234567\n",
		"TOTAL MARKS : 5O0\n",
	}}}
	ras := &fakeRasterizer{}
	p := New(&fakeGenerator{}, rec, ras, Options{})

	res, err := p.Process(context.Background(), marksheet.TypeTenth, path)
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if res.Pages != 1 || len(res.Rows) != 1 {
		t.Fatalf("got %d pages / %d rows, want 1 / 1", res.Pages, len(res.Rows))
	}
	row := res.Rows[0].(marksheet.ResultCardFields)
	if row.Name != "Anita Rao" || row.RegisterNumber != "1234567" {
		t.Errorf("identity = %+v", row)
	}
	if row.TotalMarks == nil || *row.TotalMarks != 500 || *row.Percentage != 100.0 {
		t.Errorf("totals = %v / %v", row.TotalMarks, row.Percentage)
	}
	if len(ras.rendered) != 0 {
		t.Errorf("image input was rasterized")
	}
}

func TestProcessSemesterPDFKeepsEmptyPage(t *testing.T) {
	root := t.TempDir()
	path := touch(t, "transcript.pdf")
	rec := &fakeRecognizer{pages: [][]string{
		{semesterPage, "noise"},
		{"%%%", ""},
	}}
	ras := &fakeRasterizer{pages: 2}
	p := New(&fakeGenerator{}, rec, ras, Options{TempRoot: root})

	res, err := p.Process(context.Background(), marksheet.TypeSemester, path)
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if len(res.Rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(res.Rows))
	}

	want := marksheet.SemesterFields{
		Name:           "R. S. KUMAR",
		RegisterNumber: "CS2021001",
		Department:     "B.E. Computer Science",
		CGPA:           "8.75",
		SGPA:           "9.10",
	}
	if res.Rows[0] != want {
		t.Errorf("row 1 = %+v, want %+v", res.Rows[0], want)
	}
	second := res.Rows[1].Map()
	if len(second) != 5 {
		t.Fatalf("row 2 has %d keys, want 5", len(second))
	}
	for k, v := range second {
		if v != "" {
			t.Errorf("row 2 %s = %v, want empty", k, v)
		}
	}

	for _, f := range ras.rendered {
		if _, err := os.Stat(f); !os.IsNotExist(err) {
			t.Errorf("page file %s not released", f)
		}
	}
	if ws := workspaces(t, root); len(ws) != 0 {
		t.Errorf("workspaces left behind: %v", ws)
	}
}

func TestProcessSkipsFailedPages(t *testing.T) {
	path := touch(t, "cards.pdf")
	gen := &fakeGenerator{
		fail:  map[int]error{1: errors.New("bad page")},
		panic: map[int]bool{3: true},
	}
	rec := &fakeRecognizer{pages: [][]string{{"TOTAL 480\n"}}}
	p := New(gen, rec, &fakeRasterizer{pages: 3}, Options{TempRoot: t.TempDir()})

	res, err := p.Process(context.Background(), marksheet.TypeTwelfth, path)
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if res.Pages != 3 || len(res.Rows) != 1 {
		t.Fatalf("got %d pages / %d rows, want 3 / 1", res.Pages, len(res.Rows))
	}
}

func TestProcessAllPagesFailing(t *testing.T) {
	root := t.TempDir()
	path := touch(t, "blank.pdf")
	gen := &fakeGenerator{fail: map[int]error{1: errors.New("x"), 2: errors.New("y")}}
	p := New(gen, &fakeRecognizer{pages: [][]string{{""}}}, &fakeRasterizer{pages: 2}, Options{TempRoot: root})

	res, err := p.Process(context.Background(), marksheet.TypeSemester, path)
	if !errors.Is(err, marksheet.ErrNoDataExtracted) {
		t.Fatalf("Process() = (%v, %v), want ErrNoDataExtracted", res, err)
	}
	if marksheet.KindOf(err) != marksheet.KindNoData {
		t.Fatalf("kind = %v, want no_data", marksheet.KindOf(err))
	}
	if ws := workspaces(t, root); len(ws) != 0 {
		t.Errorf("workspaces left behind: %v", ws)
	}
}

func TestProcessRasterizationFailure(t *testing.T) {
	tests := []struct {
		name string
		ras  *fakeRasterizer
	}{
		{"page count", &fakeRasterizer{countErr: fmt.Errorf("%w: corrupt xref", marksheet.ErrRasterization)}},
		{"render", &fakeRasterizer{pages: 2, renderErr: map[int]error{2: fmt.Errorf("%w: pdftoppm exit 1", marksheet.ErrRasterization)}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := t.TempDir()
			p := New(&fakeGenerator{}, &fakeRecognizer{pages: [][]string{{semesterPage}}}, tt.ras, Options{TempRoot: root})
			_, err := p.Process(context.Background(), marksheet.TypeSemester, touch(t, "doc.pdf"))
			if !errors.Is(err, marksheet.ErrRasterization) {
				t.Fatalf("Process() error = %v, want ErrRasterization", err)
			}
			if marksheet.KindOf(err) != marksheet.KindEnvironment {
				t.Fatalf("kind = %v, want environment", marksheet.KindOf(err))
			}
			if ws := workspaces(t, root); len(ws) != 0 {
				t.Errorf("workspaces left behind: %v", ws)
			}
		})
	}
}

func TestProcessCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := New(&fakeGenerator{}, &fakeRecognizer{pages: [][]string{{semesterPage}}}, &fakeRasterizer{pages: 2}, Options{TempRoot: t.TempDir()})
	_, err := p.Process(ctx, marksheet.TypeSemester, touch(t, "doc.pdf"))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Process() error = %v, want context.Canceled", err)
	}
}

func TestProcessDeterministic(t *testing.T) {
	path := touch(t, "doc.pdf")
	run := func() [][]any {
		rec := &fakeRecognizer{pages: [][]string{{semesterPage}, {"CGPA 7.1\n"}}}
		p := New(&fakeGenerator{}, rec, &fakeRasterizer{pages: 4}, Options{TempRoot: t.TempDir()})
		res, err := p.Process(context.Background(), marksheet.TypeSemester, path)
		if err != nil {
			t.Fatalf("Process() error = %v", err)
		}
		return res.Table()
	}
	first, second := run(), run()
	if fmt.Sprint(first) != fmt.Sprint(second) {
		t.Fatalf("results differ:\n%v\n%v", first, second)
	}
	if len(first) != 4 || first[1][3] != "7.1" {
		t.Fatalf("unexpected table %v", first)
	}
}

func TestSupported(t *testing.T) {
	for path, want := range map[string]bool{
		"a.pdf": true, "a.JPG": true, "a.jpeg": true, "a.png": true,
		"a.docx": false, "a.tiff": false, "noext": false,
	} {
		if got := Supported(path); got != want {
			t.Errorf("Supported(%q) = %v, want %v", path, got, want)
		}
	}
}

// lockingRasterizer makes the workspace root read-only once the last page is
// rendered, so the workspace cannot be removed afterwards
type lockingRasterizer struct {
	fakeRasterizer
	root string
}

func (l *lockingRasterizer) RenderPage(ctx context.Context, path string, page int, dir string) (string, error) {
	out, err := l.fakeRasterizer.RenderPage(ctx, path, page, dir)
	if err == nil && page == l.pages {
		err = os.Chmod(l.root, 0o555)
	}
	return out, err
}

func TestProcessSurvivesWorkspaceCleanupFailure(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("directory permissions are not enforced for root")
	}
	root := t.TempDir()
	t.Cleanup(func() { os.Chmod(root, 0o755) })

	ras := &lockingRasterizer{fakeRasterizer: fakeRasterizer{pages: 1}, root: root}
	p := New(&fakeGenerator{}, &fakeRecognizer{pages: [][]string{{semesterPage}}}, ras, Options{TempRoot: root})

	res, err := p.Process(context.Background(), marksheet.TypeSemester, touch(t, "doc.pdf"))
	if err != nil {
		t.Fatalf("Process() error = %v, want success despite cleanup failure", err)
	}
	if len(res.Rows) != 1 {
		t.Fatalf("got %d rows, want 1", len(res.Rows))
	}
	if ws := workspaces(t, root); len(ws) != 1 {
		t.Fatalf("workspaces = %v, want the one that could not be removed", ws)
	}
}
