//go:build gosseract

package ocr

import (
	"context"
	"fmt"
	"strings"

	"github.com/otiai10/gosseract/v2"

	"github.com/MuhamadAgungGumelar/marksheetpro/internal/core/marksheet"
)

// GosseractProvider runs Tesseract in-process through libtesseract
type GosseractProvider struct {
	languages []string
}

func NewGosseractProvider(language string) (*GosseractProvider, error) {
	if language == "" {
		language = "eng"
	}
	return &GosseractProvider{languages: strings.Split(language, "+")}, nil
}

// ExtractText uses a fresh client per call; gosseract clients are not safe
// for concurrent use.
func (p *GosseractProvider) ExtractText(ctx context.Context, imageData []byte) (*OCRResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	client := gosseract.NewClient()
	defer client.Close()

	if err := client.SetLanguage(p.languages...); err != nil {
		return nil, fmt.Errorf("gosseract: set language: %w", err)
	}
	if err := client.SetPageSegMode(gosseract.PSM_SINGLE_BLOCK); err != nil {
		return nil, fmt.Errorf("gosseract: set psm: %w", err)
	}
	if err := client.SetImageFromBytes(imageData); err != nil {
		return nil, fmt.Errorf("gosseract: load image: %w", err)
	}
	text, err := client.Text()
	if err != nil {
		return nil, fmt.Errorf("gosseract: recognize: %w", err)
	}
	return &OCRResult{Text: text}, nil
}

func (p *GosseractProvider) CheckAvailable(ctx context.Context) error {
	if gosseract.Version() == "" {
		return fmt.Errorf("%w: libtesseract did not report a version", marksheet.ErrEngineUnavailable)
	}
	return nil
}

func (p *GosseractProvider) GetProviderName() string {
	return "Tesseract (gosseract)"
}
