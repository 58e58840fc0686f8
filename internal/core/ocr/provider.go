package ocr

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"

	"github.com/rs/zerolog/log"

	"github.com/MuhamadAgungGumelar/marksheetpro/internal/core/marksheet"
)

// Provider interface for OCR engines
type Provider interface {
	// ExtractText extracts text from an encoded image
	ExtractText(ctx context.Context, imageData []byte) (*OCRResult, error)

	// GetProviderName returns the provider name
	GetProviderName() string
}

// Checker is implemented by providers that can verify their engine is installed
type Checker interface {
	CheckAvailable(ctx context.Context) error
}

// OCRResult contains the extracted text
type OCRResult struct {
	Text string `json:"text"`
}

// Service wraps the OCR provider
type Service struct {
	provider Provider
}

// NewService creates a new OCR service with the given provider
func NewService(provider Provider) *Service {
	return &Service{provider: provider}
}

// GetProviderName returns the name of the current provider
func (s *Service) GetProviderName() string {
	return s.provider.GetProviderName()
}

// CheckAvailable reports ErrEngineUnavailable when the provider's engine
// cannot run. Providers without a check are assumed available.
func (s *Service) CheckAvailable(ctx context.Context) error {
	c, ok := s.provider.(Checker)
	if !ok {
		return nil
	}
	if err := c.CheckAvailable(ctx); err != nil {
		if errors.Is(err, marksheet.ErrEngineUnavailable) {
			return err
		}
		return errors.Join(marksheet.ErrEngineUnavailable, err)
	}
	return nil
}

// Recognize runs OCR on a single image. A failing engine yields an empty
// string, so one bad variant never aborts a page.
func (s *Service) Recognize(ctx context.Context, img image.Image) string {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		log.Warn().Err(err).Msg("ocr: encode variant")
		return ""
	}
	res, err := s.provider.ExtractText(ctx, buf.Bytes())
	if err != nil {
		log.Debug().Err(err).Str("provider", s.provider.GetProviderName()).Msg("ocr: variant failed")
		return ""
	}
	if res == nil {
		return ""
	}
	return res.Text
}

// RecognizeAll returns one text per variant, in variant order
func (s *Service) RecognizeAll(ctx context.Context, variants []marksheet.Variant) []string {
	texts := make([]string, len(variants))
	for i, v := range variants {
		if ctx.Err() != nil {
			break
		}
		texts[i] = s.Recognize(ctx, v.Image)
	}
	return texts
}
