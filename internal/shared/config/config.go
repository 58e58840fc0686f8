package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// ConfigFileEnv names the optional YAML file read before the environment
const ConfigFileEnv = "MARKSHEET_CONFIG"

type Config struct {
	Env      string `yaml:"env"`
	LogLevel string `yaml:"log_level"`

	DatabaseURL string `yaml:"database_url"`
	SQLitePath  string `yaml:"sqlite_path"`
	AutoMigrate bool   `yaml:"auto_migrate"`

	OCRProvider       string `yaml:"ocr_provider"`
	TesseractPath     string `yaml:"tesseract_path"`
	TesseractLanguage string `yaml:"tesseract_language"`
	PdftoppmPath      string `yaml:"pdftoppm_path"`
	RasterDPI         int    `yaml:"raster_dpi"`
	TempDir           string `yaml:"temp_dir"`

	UploadDir string `yaml:"upload_dir"`
	OutputDir string `yaml:"output_dir"`

	InboxSchedule    string `yaml:"inbox_schedule"`
	InboxConcurrency int    `yaml:"inbox_concurrency"`
	InboxDefaultType string `yaml:"inbox_default_type"`
	SweepSchedule    string `yaml:"sweep_schedule"`
}

func defaults() Config {
	return Config{
		Env:               "development",
		LogLevel:          "info",
		SQLitePath:        "marksheetpro.db",
		AutoMigrate:       true,
		OCRProvider:       "tesseract",
		TesseractPath:     "tesseract",
		TesseractLanguage: "eng",
		PdftoppmPath:      "pdftoppm",
		RasterDPI:         250,
		UploadDir:         "uploads",
		OutputDir:         "output",
		InboxSchedule:     "@every 30s",
		InboxConcurrency:  2,
		InboxDefaultType:  "semester",
		SweepSchedule:     "@every 15m",
	}
}

// LoadConfig loads .env, the optional YAML file and the environment, in that
// order of increasing precedence. It exits on an invalid configuration.
func LoadConfig() *Config {
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg(".env file not found, using system environment variables")
	}
	cfg, err := Load(os.Getenv(ConfigFileEnv))
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	return cfg
}

// Load reads the YAML file at path (skipped when empty) and applies
// environment overrides on top of the defaults.
func Load(path string) (*Config, error) {
	cfg := defaults()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
	}
	if err := applyEnv(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyEnv(cfg *Config) error {
	strs := map[string]*string{
		"ENV":                &cfg.Env,
		"LOG_LEVEL":          &cfg.LogLevel,
		"DATABASE_URL":       &cfg.DatabaseURL,
		"SQLITE_PATH":        &cfg.SQLitePath,
		"OCR_PROVIDER":       &cfg.OCRProvider,
		"TESSERACT_PATH":     &cfg.TesseractPath,
		"TESSERACT_LANGUAGE": &cfg.TesseractLanguage,
		"PDFTOPPM_PATH":      &cfg.PdftoppmPath,
		"TEMP_DIR":           &cfg.TempDir,
		"UPLOAD_DIR":         &cfg.UploadDir,
		"OUTPUT_DIR":         &cfg.OutputDir,
		"INBOX_SCHEDULE":     &cfg.InboxSchedule,
		"INBOX_DEFAULT_TYPE": &cfg.InboxDefaultType,
		"SWEEP_SCHEDULE":     &cfg.SweepSchedule,
	}
	for key, dst := range strs {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			*dst = v
		}
	}

	ints := map[string]*int{
		"RASTER_DPI":        &cfg.RasterDPI,
		"INBOX_CONCURRENCY": &cfg.InboxConcurrency,
	}
	for key, dst := range ints {
		v := strings.TrimSpace(os.Getenv(key))
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = n
	}

	if v := strings.TrimSpace(os.Getenv("AUTO_MIGRATE")); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("AUTO_MIGRATE: %w", err)
		}
		cfg.AutoMigrate = b
	}
	return nil
}

// Validate rejects values the pipeline cannot run with
func (c *Config) Validate() error {
	var errs []error
	if c.RasterDPI <= 0 {
		errs = append(errs, fmt.Errorf("raster_dpi must be positive, got %d", c.RasterDPI))
	}
	switch strings.ToLower(c.OCRProvider) {
	case "", "tesseract", "gosseract":
	default:
		errs = append(errs, fmt.Errorf("unknown ocr_provider %q", c.OCRProvider))
	}
	if c.InboxConcurrency <= 0 {
		errs = append(errs, fmt.Errorf("inbox_concurrency must be positive, got %d", c.InboxConcurrency))
	}
	if c.DatabaseURL == "" && c.SQLitePath == "" {
		errs = append(errs, errors.New("one of database_url or sqlite_path is required"))
	}
	return errors.Join(errs...)
}

func (c *Config) IsDevelopment() bool {
	return c.Env == "" || c.Env == "development"
}
