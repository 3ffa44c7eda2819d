// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Thread
// model.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations.
// They follow the "thin repository" approach: no business logic, only CRUD
// persistence and query composition.
//
// Error semantics:
//   - When a thread is not found, functions return gorm.ErrRecordNotFound
//     (also exported here as ErrNotFound for convenience).
//   - On DB errors (constraint violations, connectivity issues, etc.),
//     the raw gorm error is propagated.
//
// Ordering: threads are listed pinned first, then by LastUpdated
// descending. TouchThread is the only function that moves a thread within
// that order; RenameThread leaves LastUpdated alone.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/smartlang-chat/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

const threadOrder = "pinned DESC, last_updated DESC, thread_id ASC"

// CreateThread inserts a thread with a caller-chosen ID. Inserting an ID that
// already exists is a no-op and the stored row is returned.
func CreateThread(ctx context.Context, db *gorm.DB, threadID, topic string, userID uint) (*domain.Thread, error) {
	if topic == "" {
		topic = domain.DefaultTopic
	}
	t := &domain.Thread{
		ThreadID:    threadID,
		Topic:       topic,
		UserID:      userID,
		LastUpdated: now(),
	}
	res := db.WithContext(ctx).
		Omit("User").
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "thread_id"}}, DoNothing: true}).
		Create(t)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		var existing domain.Thread
		if err := db.WithContext(ctx).Where("thread_id = ?", threadID).First(&existing).Error; err != nil {
			return nil, err
		}
		return &existing, nil
	}
	return t, nil
}

// ListThreads returns every thread owned by userID in display order.
func ListThreads(ctx context.Context, db *gorm.DB, userID uint) ([]domain.Thread, error) {
	var out []domain.Thread
	err := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order(threadOrder).
		Find(&out).Error
	return out, err
}

// CountThreads returns the total number of threads owned by userID.
func CountThreads(ctx context.Context, db *gorm.DB, userID uint) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.Thread{}).
		Where("user_id = ?", userID).
		Count(&total).Error
	return total, err
}

// ListThreadsPage returns a slice of ListThreads. Use CountThreads to obtain
// the total for pagination metadata.
func ListThreadsPage(ctx context.Context, db *gorm.DB, userID uint, offset, limit int) ([]domain.Thread, error) {
	var out []domain.Thread
	err := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order(threadOrder).
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// GetThread fetches a thread by ID and owner, or ErrNotFound.
func GetThread(ctx context.Context, db *gorm.DB, threadID string, userID uint) (*domain.Thread, error) {
	var t domain.Thread
	err := db.WithContext(ctx).
		Where("thread_id = ? AND user_id = ?", threadID, userID).
		First(&t).Error
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// RenameThread overwrites the topic. LastUpdated is not modified.
func RenameThread(ctx context.Context, db *gorm.DB, threadID, topic string) error {
	return updateThread(ctx, db, threadID, "topic", topic)
}

// SetPinned overwrites the pinned flag.
func SetPinned(ctx context.Context, db *gorm.DB, threadID string, pinned bool) error {
	return updateThread(ctx, db, threadID, "pinned", pinned)
}

// TouchThread sets LastUpdated to the current time. The new value is always
// strictly greater than the stored one, even when the clock has not advanced
// past the storage resolution.
func TouchThread(ctx context.Context, db *gorm.DB, threadID string) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var t domain.Thread
		if err := tx.Select("thread_id", "last_updated").Where("thread_id = ?", threadID).First(&t).Error; err != nil {
			return err
		}
		ts := now()
		if !ts.After(t.LastUpdated) {
			ts = t.LastUpdated.Add(time.Microsecond)
		}
		return tx.Model(&domain.Thread{}).Where("thread_id = ?", threadID).Update("last_updated", ts).Error
	})
}

// DeleteThread removes the thread's messages, documents and idempotency
// records, then the thread row, in one transaction. Deleting a thread that
// does not exist is a no-op.
func DeleteThread(ctx context.Context, db *gorm.DB, threadID string) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, child := range []any{&domain.Message{}, &domain.Document{}, &domain.Idempotency{}} {
			if err := tx.Where("thread_id = ?", threadID).Delete(child).Error; err != nil {
				return err
			}
		}
		return tx.Where("thread_id = ?", threadID).Delete(&domain.Thread{}).Error
	})
}

func updateThread(ctx context.Context, db *gorm.DB, threadID, column string, value any) error {
	res := db.WithContext(ctx).
		Model(&domain.Thread{}).
		Where("thread_id = ?", threadID).
		Update(column, value)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// now is UTC truncated to the microsecond, the finest resolution both
// backends store.
func now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}
