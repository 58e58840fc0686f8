package ocr

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/MuhamadAgungGumelar/marksheetpro/internal/core/marksheet"
)

// PSMSingleBlock is the Tesseract layout mode used for every variant: a single
// uniform block of text.
const PSMSingleBlock = 6

// TesseractProvider implements OCR using the Tesseract command line
type TesseractProvider struct {
	tesseractPath string
	language      string
	psm           int
}

// NewTesseractProvider creates a new Tesseract OCR provider.
// language can be "eng" or a "+"-joined list such as "eng+tam".
func NewTesseractProvider(tesseractPath, language string) *TesseractProvider {
	if tesseractPath == "" {
		tesseractPath = "tesseract"
	}
	if language == "" {
		language = "eng"
	}
	return &TesseractProvider{
		tesseractPath: tesseractPath,
		language:      language,
		psm:           PSMSingleBlock,
	}
}

// ExtractText pipes the image through `tesseract stdin stdout`, which keeps
// concurrent calls from sharing temp files.
func (p *TesseractProvider) ExtractText(ctx context.Context, imageData []byte) (*OCRResult, error) {
	cmd := exec.CommandContext(ctx, p.tesseractPath, "stdin", "stdout",
		"--psm", strconv.Itoa(p.psm), "-l", p.language)
	cmd.Stdin = bytes.NewReader(imageData)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("tesseract command failed: %w, output: %s", err, strings.TrimSpace(stderr.String()))
	}

	return &OCRResult{Text: stdout.String()}, nil
}

// CheckAvailable runs `tesseract --version`
func (p *TesseractProvider) CheckAvailable(ctx context.Context) error {
	if _, err := exec.LookPath(p.tesseractPath); err != nil {
		return fmt.Errorf("%w: tesseract not found: %v", marksheet.ErrEngineUnavailable, err)
	}
	if out, err := exec.CommandContext(ctx, p.tesseractPath, "--version").CombinedOutput(); err != nil {
		return fmt.Errorf("%w: tesseract --version: %v: %s", marksheet.ErrEngineUnavailable, err, strings.TrimSpace(string(out)))
	}
	return nil
}

// GetProviderName returns the name of the provider
func (p *TesseractProvider) GetProviderName() string {
	return "Tesseract OCR"
}
