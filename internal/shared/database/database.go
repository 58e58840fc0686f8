package database

import (
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/lib/pq"
	"github.com/rs/zerolog/log"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	_ "modernc.org/sqlite"
)

// Dialects understood by Open and the migrations
const (
	DialectPostgres = "postgres"
	DialectSQLite   = "sqlite"
)

// DB wraps both GORM and sql.DB; migrations run on the raw handle
type DB struct {
	*sql.DB
	GORM    *gorm.DB
	Dialect string
}

// Open connects to Postgres when databaseURL is set, otherwise to the SQLite
// file at sqlitePath. Postgres goes through lib/pq and SQLite through the
// pure-Go modernc driver; GORM reuses those connections.
func Open(databaseURL, sqlitePath string, debug bool) (*DB, error) {
	var (
		sqlDB     *sql.DB
		dialector gorm.Dialector
		dialect   string
		err       error
	)

	if databaseURL != "" {
		dialect = DialectPostgres
		sqlDB, err = sql.Open("postgres", databaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		dialector = postgres.New(postgres.Config{Conn: sqlDB})
	} else {
		if sqlitePath == "" {
			return nil, fmt.Errorf("neither DATABASE_URL nor SQLITE_PATH is set")
		}
		if dir := filepath.Dir(sqlitePath); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create sqlite dir: %w", err)
			}
		}
		dialect = DialectSQLite
		sqlDB, err = sql.Open("sqlite", sqliteDSN(sqlitePath))
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		// SQLite serializes writers anyway
		sqlDB.SetMaxOpenConns(1)
		dialector = sqlite.New(sqlite.Config{DriverName: "sqlite", Conn: sqlDB})
	}

	level := logger.Warn
	if debug {
		level = logger.Info
	}
	gormDB, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(level),
	})
	if err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to open gorm: %w", err)
	}

	if dialect == DialectPostgres {
		sqlDB.SetMaxOpenConns(25)
		sqlDB.SetMaxIdleConns(5)
		sqlDB.SetConnMaxLifetime(time.Hour)
	}

	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Info().Str("dialect", dialect).Msg("database connected")
	return &DB{DB: sqlDB, GORM: gormDB, Dialect: dialect}, nil
}

func sqliteDSN(path string) string {
	if strings.Contains(path, "?") {
		return path
	}
	return path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
}

func (db *DB) Close() error {
	log.Debug().Msg("closing database connection")
	return db.DB.Close()
}

// MaskURL hides credentials in a database URL for logging
func MaskURL(raw string) string {
	if u, err := url.Parse(raw); err == nil && u.User != nil {
		return u.Redacted()
	}
	if len(raw) < 20 {
		return "***"
	}
	return raw[:20] + "***" + raw[len(raw)-10:]
}
