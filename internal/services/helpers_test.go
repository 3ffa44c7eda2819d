package services

import (
	"context"
	"fmt"
	"testing"

	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/smartlang-chat/internal/domain"
	"github.com/tbourn/smartlang-chat/internal/repo"
)

// newSvcDB opens a private in-memory database. With migrate set the full
// schema is created.
func newSvcDB(t *testing.T, migrate bool) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:svc_%s?mode=memory&cache=shared", uuid.NewString())

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	db.Exec("PRAGMA foreign_keys=ON;")
	if migrate {
		if err := repo.AutoMigrate(db); err != nil {
			t.Fatalf("automigrate: %v", err)
		}
	}
	return db
}

// seedOwner creates a user and one thread and returns both ids.
func seedOwner(t *testing.T, db *gorm.DB, name, threadID string) (uint, string) {
	t.Helper()
	ctx := context.Background()
	if _, err := repo.CreateUser(ctx, db, name, "pw"); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	u, err := repo.AuthenticateUser(ctx, db, name, "pw")
	if err != nil {
		t.Fatalf("AuthenticateUser: %v", err)
	}
	if _, err := repo.CreateThread(ctx, db, threadID, domain.DefaultTopic, u.ID); err != nil {
		t.Fatalf("CreateThread: %v", err)
	}
	return u.ID, threadID
}
