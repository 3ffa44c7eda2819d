package services

import (
	"context"

	"gorm.io/gorm"

	"github.com/tbourn/smartlang-chat/internal/domain"
	"github.com/tbourn/smartlang-chat/internal/repo"
)

// RepoThreads adapts the repository free functions to ThreadRepo.
type RepoThreads struct{}

var _ ThreadRepo = RepoThreads{}

// CreateThread proxies repo.CreateThread.
func (RepoThreads) CreateThread(ctx context.Context, db *gorm.DB, threadID, topic string, userID uint) (*domain.Thread, error) {
	return repo.CreateThread(ctx, db, threadID, topic, userID)
}

// ListThreads proxies repo.ListThreads.
func (RepoThreads) ListThreads(ctx context.Context, db *gorm.DB, userID uint) ([]domain.Thread, error) {
	return repo.ListThreads(ctx, db, userID)
}

// CountThreads proxies repo.CountThreads.
func (RepoThreads) CountThreads(ctx context.Context, db *gorm.DB, userID uint) (int64, error) {
	return repo.CountThreads(ctx, db, userID)
}

// ListThreadsPage proxies repo.ListThreadsPage.
func (RepoThreads) ListThreadsPage(ctx context.Context, db *gorm.DB, userID uint, offset, limit int) ([]domain.Thread, error) {
	return repo.ListThreadsPage(ctx, db, userID, offset, limit)
}

// GetThread proxies repo.GetThread.
func (RepoThreads) GetThread(ctx context.Context, db *gorm.DB, threadID string, userID uint) (*domain.Thread, error) {
	return repo.GetThread(ctx, db, threadID, userID)
}

// RenameThread proxies repo.RenameThread.
func (RepoThreads) RenameThread(ctx context.Context, db *gorm.DB, threadID, topic string) error {
	return repo.RenameThread(ctx, db, threadID, topic)
}

// SetPinned proxies repo.SetPinned.
func (RepoThreads) SetPinned(ctx context.Context, db *gorm.DB, threadID string, pinned bool) error {
	return repo.SetPinned(ctx, db, threadID, pinned)
}

// TouchThread proxies repo.TouchThread.
func (RepoThreads) TouchThread(ctx context.Context, db *gorm.DB, threadID string) error {
	return repo.TouchThread(ctx, db, threadID)
}

// DeleteThread proxies repo.DeleteThread.
func (RepoThreads) DeleteThread(ctx context.Context, db *gorm.DB, threadID string) error {
	return repo.DeleteThread(ctx, db, threadID)
}
