package main

import (
	"errors"
	"flag"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	"github.com/rs/zerolog/log"

	"github.com/MuhamadAgungGumelar/marksheetpro/internal/core/history"
	"github.com/MuhamadAgungGumelar/marksheetpro/internal/shared/config"
	"github.com/MuhamadAgungGumelar/marksheetpro/internal/shared/database"
	"github.com/MuhamadAgungGumelar/marksheetpro/internal/shared/utils"
)

func main() {
	var command string
	flag.StringVar(&command, "cmd", "up", "Migration command (up, down, version, force)")
	flag.Parse()

	cfg := config.LoadConfig()
	utils.InitLogger(cfg.LogLevel, true)

	db, err := database.Open(cfg.DatabaseURL, cfg.SQLitePath, false)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open database")
	}

	target := cfg.SQLitePath
	if cfg.DatabaseURL != "" {
		target = database.MaskURL(cfg.DatabaseURL)
	}
	log.Info().Str("dialect", db.Dialect).Str("database", target).Msg("running history migrations")

	m, err := history.NewMigrator(db.DB, db.Dialect)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create migrate instance")
	}
	// closes db too
	defer m.Close()

	switch command {
	case "up":
		if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			log.Fatal().Err(err).Msg("migration up failed")
		}
		log.Info().Msg("migrations up completed")

	case "down":
		if err := m.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			log.Fatal().Err(err).Msg("migration down failed")
		}
		log.Info().Msg("migrations down completed")

	case "version":
		version, dirty, err := m.Version()
		if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
			log.Fatal().Err(err).Msg("failed to get version")
		}
		log.Info().Uint("version", version).Bool("dirty", dirty).Msg("current version")

	case "force":
		if flag.NArg() < 1 {
			log.Fatal().Msg("please provide a version number for force")
		}
		v, err := strconv.Atoi(flag.Arg(0))
		if err != nil {
			log.Fatal().Err(err).Msg("invalid version")
		}
		if err := m.Force(v); err != nil {
			log.Fatal().Err(err).Msg("force failed")
		}
		log.Info().Int("version", v).Msg("forced version")

	default:
		log.Fatal().Str("cmd", command).Msg("unknown command (use: up, down, version, force)")
	}
}
