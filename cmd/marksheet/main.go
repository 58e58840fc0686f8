package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/MuhamadAgungGumelar/marksheetpro/internal/core/export"
	"github.com/MuhamadAgungGumelar/marksheetpro/internal/core/history"
	"github.com/MuhamadAgungGumelar/marksheetpro/internal/core/marksheet"
	"github.com/MuhamadAgungGumelar/marksheetpro/internal/core/pipeline"
	"github.com/MuhamadAgungGumelar/marksheetpro/internal/shared/config"
	"github.com/MuhamadAgungGumelar/marksheetpro/internal/shared/database"
	"github.com/MuhamadAgungGumelar/marksheetpro/internal/shared/utils"
)

// Exit codes tell scripts who has to act
const (
	exitOK          = 0
	exitInput       = 2
	exitEnvironment = 3
	exitNoData      = 4
	exitUnknown     = 1
)

func main() {
	var (
		docType string
		output  string
		asJSON  bool
		record  bool
		timeout time.Duration
	)
	flag.StringVar(&docType, "type", "", "Marksheet type: 10th, 12th or semester")
	flag.StringVar(&output, "o", "", "Output .xlsx path (default: OUTPUT_DIR/<name>_<type>_processed.xlsx)")
	flag.BoolVar(&asJSON, "json", false, "Print extracted rows as JSON to stdout")
	flag.BoolVar(&record, "history", false, "Record the call in the history database")
	flag.DurationVar(&timeout, "timeout", 0, "Abort the document after this long (0 = no limit)")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s -type <10th|12th|semester> [flags] <file>\n", filepath.Base(os.Args[0]))
		flag.PrintDefaults()
	}
	flag.Parse()

	cfg := config.LoadConfig()
	utils.InitLogger(cfg.LogLevel, cfg.IsDevelopment())

	if flag.NArg() != 1 || docType == "" {
		flag.Usage()
		os.Exit(exitInput)
	}
	path := flag.Arg(0)

	t, err := marksheet.ParseDocumentType(docType)
	if err != nil {
		log.Error().Err(err).Msg("invalid -type")
		os.Exit(exitInput)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	os.Exit(run(ctx, cfg, t, path, output, asJSON, record))
}

func run(ctx context.Context, cfg *config.Config, t marksheet.DocumentType, path, output string, asJSON, record bool) int {
	proc, err := pipeline.Build(ctx, cfg)
	if err != nil {
		log.Error().Err(err).Msg("pipeline unavailable")
		return exitEnvironment
	}

	var repo *history.Repository
	var rec *history.Record
	if record {
		db, err := database.Open(cfg.DatabaseURL, cfg.SQLitePath, false)
		if err != nil {
			log.Error().Err(err).Msg("history database unavailable")
			return exitEnvironment
		}
		defer db.Close()
		if cfg.AutoMigrate {
			if err := history.Migrate(db.DB, db.Dialect); err != nil {
				log.Error().Err(err).Msg("history migration failed")
				return exitEnvironment
			}
		}
		repo = history.NewRepository(db.GORM)
		if rec, err = repo.Start(ctx, filepath.Base(path), t); err != nil {
			log.Error().Err(err).Msg("failed to record start")
			return exitEnvironment
		}
	}

	started := time.Now()
	result, err := proc.Process(ctx, t, path)
	if err != nil {
		if repo != nil {
			if herr := repo.MarkFailed(context.WithoutCancel(ctx), rec.ID, err, time.Since(started)); herr != nil {
				log.Warn().Err(herr).Msg("failed to record failure")
			}
		}
		kind := marksheet.KindOf(err)
		log.Error().Err(err).Str("kind", kind.String()).Msg("processing failed")
		return exitCode(kind)
	}

	exporter := export.NewService(cfg.OutputDir)
	var out string
	if output != "" {
		out, err = exporter.WriteResultTo(output, result)
	} else {
		out, err = exporter.WriteResult(path, result)
	}
	if err != nil {
		log.Error().Err(err).Msg("export failed")
		return exitEnvironment
	}

	if repo != nil {
		if err := repo.MarkProcessed(ctx, rec.ID, result, out, time.Since(started)); err != nil {
			log.Warn().Err(err).Msg("failed to record result")
		}
	}

	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(result.Records()); err != nil {
			log.Error().Err(err).Msg("failed to print rows")
			return exitUnknown
		}
	}

	log.Info().Int("rows", len(result.Rows)).Str("output", out).Msgf("processed %d records", len(result.Rows))
	return exitOK
}

func exitCode(kind marksheet.Kind) int {
	switch kind {
	case marksheet.KindInput:
		return exitInput
	case marksheet.KindEnvironment:
		return exitEnvironment
	case marksheet.KindNoData:
		return exitNoData
	}
	return exitUnknown
}
