package export

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/MuhamadAgungGumelar/marksheetpro/internal/core/marksheet"
)

// Service writes extraction results to the output directory
type Service struct {
	excelExporter Exporter
	outputDir     string
}

// NewService creates a new export service writing into outputDir
func NewService(outputDir string) *Service {
	return &Service{
		excelExporter: NewExcelExporter(),
		outputDir:     outputDir,
	}
}

// ExportToExcel exports data to Excel format
func (s *Service) ExportToExcel(data *ExportData) ([]byte, error) {
	var buf bytes.Buffer
	if err := s.excelExporter.Export(data, &buf); err != nil {
		return nil, fmt.Errorf("Excel export failed: %w", err)
	}
	return buf.Bytes(), nil
}

// WriteResult saves res as OutputName(src, res.Type) in the output directory
// and returns the written path. The file is written atomically.
func (s *Service) WriteResult(src string, res *marksheet.Result) (string, error) {
	return s.WriteResultTo(filepath.Join(s.outputDir, OutputName(src, res.Type)), res)
}

// WriteResultTo saves res at path
func (s *Service) WriteResultTo(path string, res *marksheet.Result) (string, error) {
	content, err := s.ExportToExcel(FromResult(res))
	if err != nil {
		return "", err
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("create output dir: %w", err)
		}
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".export-*")
	if err != nil {
		return "", fmt.Errorf("create output file: %w", err)
	}
	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("write output file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("write output file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("move output file: %w", err)
	}
	return path, nil
}
