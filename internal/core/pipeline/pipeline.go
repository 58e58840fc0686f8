// Package pipeline assembles the production processor from configuration.
package pipeline

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/MuhamadAgungGumelar/marksheetpro/internal/core/ocr"
	"github.com/MuhamadAgungGumelar/marksheetpro/internal/core/preprocess"
	"github.com/MuhamadAgungGumelar/marksheetpro/internal/core/processor"
	"github.com/MuhamadAgungGumelar/marksheetpro/internal/core/raster"
	"github.com/MuhamadAgungGumelar/marksheetpro/internal/shared/config"
)

// Build wires OpenCV preprocessing, the configured OCR provider and poppler
// into a Processor. Both engines are checked first; a missing engine fails
// with marksheet.ErrEngineUnavailable instead of degrading per document.
func Build(ctx context.Context, cfg *config.Config) (*processor.Processor, error) {
	provider, err := ocr.NewProvider(cfg.OCRProvider, cfg.TesseractPath, cfg.TesseractLanguage)
	if err != nil {
		return nil, err
	}
	ocrService := ocr.NewService(provider)
	poppler := raster.NewPoppler(cfg.PdftoppmPath, cfg.RasterDPI)

	if err := errors.Join(
		ocrService.CheckAvailable(ctx),
		poppler.CheckAvailable(ctx),
	); err != nil {
		return nil, err
	}

	log.Info().
		Str("ocr", ocrService.GetProviderName()).
		Str("language", cfg.TesseractLanguage).
		Int("dpi", poppler.DPI()).
		Msg("pipeline ready")

	return processor.New(preprocess.New(), ocrService, poppler, processor.Options{TempRoot: cfg.TempDir}), nil
}
