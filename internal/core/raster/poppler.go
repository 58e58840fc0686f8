// Package raster turns PDF pages into images on disk, one page at a time.
package raster

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/MuhamadAgungGumelar/marksheetpro/internal/core/marksheet"
)

const (
	DefaultDPI         = 250
	DefaultJPEGQuality = 95
)

// Rasterizer renders individual PDF pages. Pages are 1-based.
type Rasterizer interface {
	PageCount(ctx context.Context, pdfPath string) (int, error)
	RenderPage(ctx context.Context, pdfPath string, page int, dir string) (string, error)
}

// Poppler renders pages with pdftoppm and counts them with pdfcpu
type Poppler struct {
	pdftoppmPath string
	dpi          int
	quality      int
}

func NewPoppler(pdftoppmPath string, dpi int) *Poppler {
	if pdftoppmPath == "" {
		pdftoppmPath = "pdftoppm"
	}
	if dpi <= 0 {
		dpi = DefaultDPI
	}
	return &Poppler{pdftoppmPath: pdftoppmPath, dpi: dpi, quality: DefaultJPEGQuality}
}

func (p *Poppler) DPI() int { return p.dpi }

// PageCount parses the document structure. A PDF that cannot be parsed is a
// rasterization failure.
func (p *Poppler) PageCount(ctx context.Context, pdfPath string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	f, err := os.Open(pdfPath)
	if err != nil {
		return 0, fmt.Errorf("%w: open %s: %v", marksheet.ErrRasterization, pdfPath, err)
	}
	defer f.Close()

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	n, err := api.PageCount(f, conf)
	if err != nil {
		return 0, fmt.Errorf("%w: read %s: %v", marksheet.ErrRasterization, filepath.Base(pdfPath), err)
	}
	if n <= 0 {
		return 0, fmt.Errorf("%w: %s has no pages", marksheet.ErrRasterization, filepath.Base(pdfPath))
	}
	return n, nil
}

// RenderPage writes page as a JPEG into dir and returns its path
func (p *Poppler) RenderPage(ctx context.Context, pdfPath string, page int, dir string) (string, error) {
	prefix := filepath.Join(dir, fmt.Sprintf("page-%04d", page))
	args := []string{
		"-jpeg",
		"-jpegopt", "quality=" + strconv.Itoa(p.quality),
		"-r", strconv.Itoa(p.dpi),
		"-f", strconv.Itoa(page),
		"-l", strconv.Itoa(page),
		"-singlefile",
		pdfPath,
		prefix,
	}
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, p.pdftoppmPath, args...)
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("%w: pdftoppm page %d: %v: %s", marksheet.ErrRasterization, page, err, strings.TrimSpace(stderr.String()))
	}

	out := prefix + ".jpg"
	if _, err := os.Stat(out); err != nil {
		return "", fmt.Errorf("%w: page %d not rendered: %v", marksheet.ErrRasterization, page, err)
	}
	return out, nil
}

// CheckAvailable verifies pdftoppm can be executed
func (p *Poppler) CheckAvailable(ctx context.Context) error {
	if _, err := exec.LookPath(p.pdftoppmPath); err != nil {
		return fmt.Errorf("%w: pdftoppm not found: %v", marksheet.ErrEngineUnavailable, err)
	}
	// pdftoppm -v prints to stderr and exits 0 on poppler, 99 on xpdf
	if out, err := exec.CommandContext(ctx, p.pdftoppmPath, "-v").CombinedOutput(); err != nil && len(out) == 0 {
		return fmt.Errorf("%w: pdftoppm -v: %v", marksheet.ErrEngineUnavailable, err)
	}
	return nil
}
