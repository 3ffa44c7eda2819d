// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Message
// model. Messages are append-only.
package repo

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"github.com/tbourn/smartlang-chat/internal/domain"
)

const messageOrder = "created_at ASC, id ASC"

// AppendMessage inserts a message. role is stored as given.
func AppendMessage(ctx context.Context, db *gorm.DB, threadID, role, content string) (*domain.Message, error) {
	m := &domain.Message{
		ThreadID:  threadID,
		Role:      strings.TrimSpace(role),
		Content:   content,
		CreatedAt: now(),
	}
	if err := db.WithContext(ctx).Create(m).Error; err != nil {
		return nil, err
	}
	return m, nil
}

// ListMessages returns every message of a thread in insertion order.
func ListMessages(ctx context.Context, db *gorm.DB, threadID string) ([]domain.Message, error) {
	var out []domain.Message
	err := db.WithContext(ctx).
		Where("thread_id = ?", threadID).
		Order(messageOrder).
		Find(&out).Error
	return out, err
}

// CountMessages uses a raw COUNT so a missing table surfaces as an error.
func CountMessages(ctx context.Context, db *gorm.DB, threadID string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).Raw("SELECT COUNT(*) FROM messages WHERE thread_id = ?", threadID).Scan(&total).Error
	return total, err
}

// ListMessagesPage returns a slice of ListMessages.
func ListMessagesPage(ctx context.Context, db *gorm.DB, threadID string, offset, limit int) ([]domain.Message, error) {
	var out []domain.Message
	err := db.WithContext(ctx).
		Where("thread_id = ?", threadID).
		Order(messageOrder).
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// GetMessage fetches a message by ID.
func GetMessage(ctx context.Context, db *gorm.DB, id uint) (*domain.Message, error) {
	var m domain.Message
	if err := db.WithContext(ctx).First(&m, id).Error; err != nil {
		return nil, err
	}
	return &m, nil
}
