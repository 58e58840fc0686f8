package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/MuhamadAgungGumelar/marksheetpro/internal/core/export"
	"github.com/MuhamadAgungGumelar/marksheetpro/internal/core/history"
	"github.com/MuhamadAgungGumelar/marksheetpro/internal/core/inbox"
	"github.com/MuhamadAgungGumelar/marksheetpro/internal/core/marksheet"
	"github.com/MuhamadAgungGumelar/marksheetpro/internal/core/pipeline"
	"github.com/MuhamadAgungGumelar/marksheetpro/internal/shared/config"
	"github.com/MuhamadAgungGumelar/marksheetpro/internal/shared/database"
	"github.com/MuhamadAgungGumelar/marksheetpro/internal/shared/utils"
)

func main() {
	cfg := config.LoadConfig()
	utils.InitLogger(cfg.LogLevel, cfg.IsDevelopment())
	log.Info().Str("env", cfg.Env).Str("inbox", cfg.UploadDir).Msg("starting marksheetd")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	proc, err := pipeline.Build(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("pipeline unavailable")
	}

	defaultType, err := marksheet.ParseDocumentType(cfg.InboxDefaultType)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid INBOX_DEFAULT_TYPE")
	}

	db, err := database.Open(cfg.DatabaseURL, cfg.SQLitePath, cfg.IsDevelopment() && cfg.LogLevel == "debug")
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open database")
	}
	defer db.Close()

	if cfg.AutoMigrate {
		if err := history.Migrate(db.DB, db.Dialect); err != nil {
			log.Fatal().Err(err).Msg("history migration failed")
		}
	}

	for _, dir := range []string{cfg.UploadDir, cfg.OutputDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			log.Fatal().Err(err).Str("dir", dir).Msg("failed to create directory")
		}
	}

	watcher := inbox.NewWatcher(proc, export.NewService(cfg.OutputDir), history.NewRepository(db.GORM), inbox.Config{
		Dir:         cfg.UploadDir,
		DefaultType: defaultType,
		Concurrency: cfg.InboxConcurrency,
		TempRoot:    cfg.TempDir,
	})

	log.Info().
		Str("schedule", cfg.InboxSchedule).
		Int("concurrency", cfg.InboxConcurrency).
		Msg("watching inbox, press Ctrl+C to stop")

	if err := watcher.Run(ctx, inbox.NewScheduler(), cfg.InboxSchedule, cfg.SweepSchedule, 30*time.Second); err != nil {
		log.Error().Err(err).Msg("inbox stopped")
		db.Close()
		os.Exit(1)
	}
	log.Info().Msg("inbox stopped")
}
