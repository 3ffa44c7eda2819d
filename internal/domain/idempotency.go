package domain

import "time"

// Idempotency records the assistant message produced for a send request,
// keyed by (user_id, thread_id, key). A retried request with the same key
// replays that message instead of calling the model again.
type Idempotency struct {
	ID        string    `gorm:"type:varchar(36);primaryKey"`
	UserID    uint      `gorm:"not null;uniqueIndex:ux_user_thread_key,priority:1"`
	ThreadID  string    `gorm:"column:thread_id;type:varchar(36);not null;uniqueIndex:ux_user_thread_key,priority:2"`
	Key       string    `gorm:"type:varchar(255);not null;uniqueIndex:ux_user_thread_key,priority:3"`
	MessageID uint      `gorm:"not null"`
	Status    int       `gorm:"not null"`
	CreatedAt time.Time `gorm:"not null;autoCreateTime"`
	ExpiresAt time.Time `gorm:"not null;index"`
}

// TableName implements the GORM tabler interface.
func (Idempotency) TableName() string { return "idempotency" }
