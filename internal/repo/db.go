// Package repo is the GORM persistence layer for users, threads, messages,
// documents and idempotency records. It runs on SQLite (pure Go driver, the
// default) or PostgreSQL; the only dialect-specific code is document search.
package repo

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/plugin/opentelemetry/tracing"

	"github.com/tbourn/smartlang-chat/internal/config"
	"github.com/tbourn/smartlang-chat/internal/domain"
)

const dialectPostgres = "postgres"

// Open connects to the backend selected by cfg.Driver and installs the
// OpenTelemetry tracing plugin so every statement is a child span of the
// request that issued it.
func Open(cfg config.DBConfig) (*gorm.DB, error) {
	var (
		db  *gorm.DB
		err error
	)
	switch cfg.Driver {
	case "sqlite", "":
		db, err = OpenSQLite(cfg.Path)
	case dialectPostgres:
		db, err = OpenPostgres(cfg.PostgresDSN())
	default:
		return nil, fmt.Errorf("unsupported db driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}
	if err := db.Use(tracing.NewPlugin(tracing.WithoutMetrics())); err != nil {
		return nil, err
	}
	return db, nil
}

// sqlitePragmas run on every new SQLite handle. WAL lets history reads
// proceed while a reply is being stored; cascades rely on foreign_keys.
var sqlitePragmas = []string{
	"PRAGMA journal_mode=WAL",
	"PRAGMA synchronous=NORMAL",
	"PRAGMA foreign_keys=ON",
	"PRAGMA busy_timeout=5000",
}

// OpenSQLite opens (or creates) the SQLite file at path. The parent
// directory must exist.
func OpenSQLite(path string) (*gorm.DB, error) {
	// sqlite reports a missing directory as "out of memory (14)"
	if dir := filepath.Dir(path); dir != "." {
		if _, err := os.Stat(dir); err != nil {
			return nil, err
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, err
	}
	for _, p := range sqlitePragmas {
		if err := db.Exec(p).Error; err != nil {
			return nil, fmt.Errorf("%s: %w", p, err)
		}
	}
	tunePool(db)
	return db, nil
}

// OpenPostgres opens a PostgreSQL connection using a pgx key/value DSN.
func OpenPostgres(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}
	tunePool(db)
	return db, nil
}

func tunePool(db *gorm.DB) {
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(10)
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetConnMaxIdleTime(5 * time.Minute)
		sqlDB.SetConnMaxLifetime(30 * time.Minute)
	}
}

// AutoMigrate creates or updates every table. On PostgreSQL it also creates
// the full-text index used by SearchDocuments.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&domain.User{},
		&domain.Thread{},
		&domain.Message{},
		&domain.Document{},
		&domain.Idempotency{},
	); err != nil {
		return err
	}
	if isPostgres(db) {
		return db.Exec(`CREATE INDEX IF NOT EXISTS idx_documents_fts ON documents USING GIN (to_tsvector('english', content))`).Error
	}
	return nil
}

// IsNotFound reports whether err means the requested row does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

func isPostgres(db *gorm.DB) bool {
	return db.Dialector != nil && db.Dialector.Name() == dialectPostgres
}
