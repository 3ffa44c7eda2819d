package repo

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/smartlang-chat/internal/domain"
)

// newRepoDB opens a fresh file-backed database. With migrate set, the full
// schema is created; otherwise the database is empty so error paths can be
// exercised.
func newRepoDB(t *testing.T, migrate bool) *gorm.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), fmt.Sprintf("repo_test_%d.db", time.Now().UnixNano()))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("db.DB(): %v", err)
	}
	// Single connection so foreign_keys stays on for every statement.
	sqlDB.SetMaxOpenConns(1)
	// Ensure the file handle is released before TempDir cleanup (Windows needs this).
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := db.Exec("PRAGMA foreign_keys=ON;").Error; err != nil {
		t.Fatalf("pragma: %v", err)
	}
	if migrate {
		if err := AutoMigrate(db); err != nil {
			t.Fatalf("automigrate: %v", err)
		}
	}
	return db
}

func seedUser(t *testing.T, db *gorm.DB, name string) *domain.User {
	t.Helper()
	u := &domain.User{Username: name, Password: "pw"}
	if err := db.Create(u).Error; err != nil {
		t.Fatalf("seed user %s: %v", name, err)
	}
	return u
}

func seedThread(t *testing.T, db *gorm.DB, id string, userID uint, at time.Time) *domain.Thread {
	t.Helper()
	th := &domain.Thread{ThreadID: id, Topic: domain.DefaultTopic, UserID: userID, LastUpdated: at}
	if err := db.Omit("User").Create(th).Error; err != nil {
		t.Fatalf("seed thread %s: %v", id, err)
	}
	return th
}
