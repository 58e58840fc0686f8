//go:build !gosseract

package ocr

import (
	"context"
	"fmt"

	"github.com/MuhamadAgungGumelar/marksheetpro/internal/core/marksheet"
)

// GosseractProvider is unavailable unless built with -tags gosseract
type GosseractProvider struct{}

func NewGosseractProvider(string) (*GosseractProvider, error) {
	return nil, fmt.Errorf("%w: binary built without the gosseract tag", marksheet.ErrEngineUnavailable)
}

func (p *GosseractProvider) ExtractText(context.Context, []byte) (*OCRResult, error) {
	return nil, marksheet.ErrEngineUnavailable
}

func (p *GosseractProvider) GetProviderName() string {
	return "Tesseract (gosseract)"
}
