// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides small aggregate queries used for
// conditional responses (ETag generation) in the HTTP layer.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/smartlang-chat/internal/domain"
)

// ThreadsStats returns the number of threads owned by userID and the most
// recent LastUpdated among them (nil when there are none).
func ThreadsStats(ctx context.Context, db *gorm.DB, userID uint) (count int64, maxUpdated *time.Time, err error) {
	q := func() *gorm.DB {
		return db.WithContext(ctx).Model(&domain.Thread{}).Where("user_id = ?", userID)
	}
	if err = q().Count(&count).Error; err != nil {
		return 0, nil, err
	}
	if count == 0 {
		return 0, nil, nil
	}

	// Get latest last_updated (avoid MAX() -> TEXT in SQLite)
	var row struct {
		LastUpdated time.Time
	}
	if err = q().Select("last_updated").Order("last_updated DESC").Limit(1).Scan(&row).Error; err != nil {
		return 0, nil, err
	}
	return count, &row.LastUpdated, nil
}

// MessagesStats returns the number of messages in a thread and the highest
// message ID. Messages are append-only, so the pair changes on every write.
func MessagesStats(ctx context.Context, db *gorm.DB, threadID string) (count int64, lastID uint, err error) {
	q := func() *gorm.DB {
		return db.WithContext(ctx).Model(&domain.Message{}).Where("thread_id = ?", threadID)
	}
	if err = q().Count(&count).Error; err != nil {
		return 0, 0, err
	}
	if count == 0 {
		return 0, 0, nil
	}
	var row struct {
		ID uint
	}
	if err = q().Select("id").Order("id DESC").Limit(1).Scan(&row).Error; err != nil {
		return 0, 0, err
	}
	return count, row.ID, nil
}
