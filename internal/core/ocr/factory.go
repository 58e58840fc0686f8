package ocr

import (
	"fmt"
	"strings"
)

// Provider names accepted by NewProvider
const (
	ProviderTesseract = "tesseract"
	ProviderGosseract = "gosseract"
)

// NewProvider builds the configured OCR provider
func NewProvider(name, tesseractPath, language string) (Provider, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", ProviderTesseract:
		return NewTesseractProvider(tesseractPath, language), nil
	case ProviderGosseract:
		return NewGosseractProvider(language)
	}
	return nil, fmt.Errorf("unknown OCR provider %q", name)
}
