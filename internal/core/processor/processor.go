// Package processor drives one document through rasterization, variant
// generation, OCR and field extraction, producing one record per page.
package processor

import (
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/MuhamadAgungGumelar/marksheetpro/internal/core/extract"
	"github.com/MuhamadAgungGumelar/marksheetpro/internal/core/marksheet"
	"github.com/MuhamadAgungGumelar/marksheetpro/internal/core/raster"
)

// VariantGenerator renders a page into OCR variants, baseline grayscale first
type VariantGenerator interface {
	Generate(page image.Image) ([]marksheet.Variant, error)
}

// Recognizer returns one text per variant, in order
type Recognizer interface {
	RecognizeAll(ctx context.Context, variants []marksheet.Variant) []string
}

type inputKind int

const (
	inputImage inputKind = iota + 1
	inputPDF
)

var extensions = map[string]inputKind{
	".pdf":  inputPDF,
	".jpg":  inputImage,
	".jpeg": inputImage,
	".png":  inputImage,
}

// Supported reports whether path has an accepted document extension
func Supported(path string) bool {
	_, ok := extensions[strings.ToLower(filepath.Ext(path))]
	return ok
}

// Options configures a Processor
type Options struct {
	// TempRoot is where per-document workspaces are created; empty means the system temp dir
	TempRoot string
}

// Processor is safe for concurrent use when its collaborators are; every
// call owns its own workspace.
type Processor struct {
	generator  VariantGenerator
	recognizer Recognizer
	rasterizer raster.Rasterizer
	opts       Options
}

func New(generator VariantGenerator, recognizer Recognizer, rasterizer raster.Rasterizer, opts Options) *Processor {
	return &Processor{
		generator:  generator,
		recognizer: recognizer,
		rasterizer: rasterizer,
		opts:       opts,
	}
}

// pageSource yields the pages of one document, in order
type pageSource struct {
	count int
	load  func(ctx context.Context, page int) (image.Image, error)
	close func()
}

// Process extracts one record per page of the document at path. Pages whose
// pipeline fails are skipped; a document with no surviving page fails with
// ErrNoDataExtracted. Returned errors are *marksheet.Error.
func (p *Processor) Process(ctx context.Context, docType marksheet.DocumentType, path string) (*marksheet.Result, error) {
	const op = "process"

	t, err := marksheet.ParseDocumentType(string(docType))
	if err != nil {
		return nil, marksheet.NewError(op, path, err)
	}

	kind, err := validate(path)
	if err != nil {
		return nil, marksheet.NewError(op, path, err)
	}

	logger := log.With().
		Str("job_id", uuid.NewString()).
		Str("type", string(t)).
		Str("file", filepath.Base(path)).
		Logger()
	started := time.Now()

	var src *pageSource
	switch kind {
	case inputPDF:
		src, err = p.pdfPages(ctx, path, logger)
	default:
		src, err = imagePages(path)
	}
	if err != nil {
		return nil, marksheet.NewError(op, path, err)
	}
	defer src.close()

	profile := extract.For(t)
	result := &marksheet.Result{
		Type:    t,
		Columns: marksheet.Columns(t),
		Pages:   src.count,
	}

	for page := 1; page <= src.count; page++ {
		if err := ctx.Err(); err != nil {
			return nil, marksheet.NewError(op, path, err)
		}

		pageStart := time.Now()
		fields, err := p.extractPage(ctx, src, page, profile)
		if err != nil {
			if errors.Is(err, marksheet.ErrRasterization) {
				return nil, marksheet.NewError(op, path, err)
			}
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, marksheet.NewError(op, path, ctxErr)
			}
			logger.Error().Err(err).Int("page", page).Msg("page extraction failed, skipping")
			continue
		}
		result.Rows = append(result.Rows, fields)
		logger.Debug().Int("page", page).Dur("took", time.Since(pageStart)).Msg("page extracted")
	}

	if len(result.Rows) == 0 {
		return nil, marksheet.NewError(op, path, marksheet.ErrNoDataExtracted)
	}

	logger.Info().
		Int("pages", result.Pages).
		Int("rows", len(result.Rows)).
		Dur("took", time.Since(started)).
		Msg("document processed")
	return result, nil
}

// extractPage runs a single page end to end. The page image and its variants
// go out of scope when it returns.
func (p *Processor) extractPage(ctx context.Context, src *pageSource, page int, profile func([]string) marksheet.FieldSet) (fields marksheet.FieldSet, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("page %d: panic: %v", page, r)
		}
	}()

	img, err := src.load(ctx, page)
	if err != nil {
		return nil, err
	}
	variants, err := p.generator.Generate(img)
	if err != nil {
		return nil, fmt.Errorf("page %d: %w", page, err)
	}
	if len(variants) == 0 {
		return nil, fmt.Errorf("page %d: no variants", page)
	}
	texts := p.recognizer.RecognizeAll(ctx, variants)
	return profile(texts), nil
}

func validate(path string) (inputKind, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, marksheet.ErrFileNotFound
		}
		return 0, fmt.Errorf("%w: %v", marksheet.ErrFileNotFound, err)
	}
	if info.IsDir() {
		return 0, fmt.Errorf("%w: is a directory", marksheet.ErrFileNotFound)
	}
	ext := strings.ToLower(filepath.Ext(path))
	kind, ok := extensions[ext]
	if !ok {
		return 0, fmt.Errorf("%w: %q", marksheet.ErrUnsupportedFormat, ext)
	}
	return kind, nil
}

// imagePages decodes an image upload up front, so an unreadable file is
// reported as bad input rather than as a page without data.
func imagePages(path string) (*pageSource, error) {
	img, err := decodeFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", marksheet.ErrUnreadableImage, err)
	}
	return &pageSource{
		count: 1,
		load: func(context.Context, int) (image.Image, error) {
			return img, nil
		},
		close: func() {},
	}, nil
}

// pdfPages renders pages lazily into a workspace that is removed by close.
// Each rendered page file is deleted as soon as it is decoded.
func (p *Processor) pdfPages(ctx context.Context, path string, logger zerolog.Logger) (*pageSource, error) {
	ws, err := raster.NewWorkspace(p.opts.TempRoot)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", marksheet.ErrRasterization, err)
	}
	closeWS := func() {
		if err := ws.Close(); err != nil {
			logger.Warn().Err(err).Msg("workspace left behind")
		}
	}

	n, err := p.rasterizer.PageCount(ctx, path)
	if err != nil {
		closeWS()
		return nil, err
	}
	logger.Debug().Int("pages", n).Str("workspace", ws.Dir).Msg("rasterizing pdf")

	return &pageSource{
		count: n,
		load: func(ctx context.Context, page int) (image.Image, error) {
			file, err := p.rasterizer.RenderPage(ctx, path, page, ws.Dir)
			if err != nil {
				return nil, err
			}
			defer os.Remove(file)
			return decodeFile(file)
		},
		close: closeWS,
	}, nil
}

func decodeFile(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return img, nil
}
