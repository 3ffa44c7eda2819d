package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/tbourn/smartlang-chat/internal/domain"
)

// ErrDuplicate means a live record already holds (user, thread, key).
var ErrDuplicate = errors.New("duplicate")

// GetIdempotency returns the live record for (userID, threadID, key) at now,
// or ErrNotFound.
func GetIdempotency(ctx context.Context, db *gorm.DB, userID uint, threadID, key string, now time.Time) (*domain.Idempotency, error) {
	if strings.TrimSpace(threadID) == "" {
		return nil, ErrNotFound
	}
	var rec domain.Idempotency
	err := db.WithContext(ctx).
		Where("user_id = ? AND thread_id = ? AND key = ? AND expires_at > ?", userID, threadID, key, now).
		First(&rec).Error
	if IsNotFound(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// CreateIdempotency records that key produced the reply messageID. An
// expired record under the same key is taken over, so clients may reuse keys
// after the TTL; a live one yields ErrDuplicate.
func CreateIdempotency(ctx context.Context, db *gorm.DB, userID uint, threadID, key string, messageID uint, status int, ttl time.Duration) (*domain.Idempotency, error) {
	now := time.Now().UTC()
	rec := &domain.Idempotency{
		ID:        uuid.NewString(),
		UserID:    userID,
		ThreadID:  threadID,
		Key:       key,
		MessageID: messageID,
		Status:    status,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
	err := db.WithContext(ctx).Create(rec).Error
	if err == nil {
		return rec, nil
	}
	if !isUniqueViolation(err) {
		return nil, err
	}

	res := db.WithContext(ctx).Model(&domain.Idempotency{}).
		Where("user_id = ? AND thread_id = ? AND key = ? AND expires_at <= ?", userID, threadID, key, now).
		Updates(map[string]any{
			"message_id": messageID,
			"status":     status,
			"created_at": rec.CreatedAt,
			"expires_at": rec.ExpiresAt,
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrDuplicate
	}
	return GetIdempotency(ctx, db, userID, threadID, key, now)
}

// PurgeIdempotency deletes records expired at now and reports how many.
func PurgeIdempotency(ctx context.Context, db *gorm.DB, now time.Time) (int64, error) {
	res := db.WithContext(ctx).Where("expires_at <= ?", now).Delete(&domain.Idempotency{})
	return res.RowsAffected, res.Error
}

// PurgeIdempotencyEvery runs PurgeIdempotency on every tick until ctx is
// done. Failures are logged with the logger in ctx and retried next tick.
func PurgeIdempotencyEvery(ctx context.Context, db *gorm.DB, every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			n, err := PurgeIdempotency(ctx, db, now.UTC())
			if err != nil {
				zerolog.Ctx(ctx).Warn().Err(err).Msg("purge idempotency records")
				continue
			}
			if n > 0 {
				zerolog.Ctx(ctx).Debug().Int64("purged", n).Msg("idempotency records purged")
			}
		}
	}
}

// glebarez/sqlite reports UNIQUE violations as plain text and pgx as SQLSTATE
// 23505 unless TranslateError is enabled.
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	low := strings.ToLower(err.Error())
	return strings.Contains(low, "unique constraint failed") ||
		strings.Contains(low, "constraint failed: unique") ||
		strings.Contains(low, "sqlstate 23505")
}
