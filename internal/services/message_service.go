// Package services – MessageService
//
// This file implements MessageService, which owns the append-only message
// log of a thread. It validates roles and lengths, checks thread ownership
// for paginated reads and records every call as an OpenTelemetry span.
package services

import (
	"context"
	"strings"
	"unicode/utf8"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/smartlang-chat/internal/domain"
	"github.com/tbourn/smartlang-chat/internal/prompt"
	"github.com/tbourn/smartlang-chat/internal/repo"
	"github.com/tbourn/smartlang-chat/internal/utils"
)

// MessageService coordinates message persistence.
type MessageService struct {
	DB *gorm.DB

	// MaxRunes rejects longer user messages when > 0.
	MaxRunes int
}

func (s *MessageService) span(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return otel.Tracer("services/MessageService").Start(ctx, name, trace.WithAttributes(attrs...))
}

// Append stores one message. Blank user content is rejected; assistant
// content is stored as produced.
func (s *MessageService) Append(ctx context.Context, threadID string, role domain.Role, content string) (*domain.Message, error) {
	ctx, span := s.span(ctx, "Append",
		attribute.String("thread.id", threadID),
		attribute.String("message.role", string(role)))
	defer span.End()

	role, ok := domain.ParseRole(string(role))
	if !ok {
		return nil, ErrInvalidRole
	}
	if role == domain.RoleUser {
		if strings.TrimSpace(content) == "" {
			return nil, ErrEmptySubmission
		}
		if s.MaxRunes > 0 && utf8.RuneCountInString(content) > s.MaxRunes {
			return nil, ErrTooLong
		}
	}
	m, err := repo.AppendMessage(ctx, s.DB, threadID, string(role), content)
	if err != nil {
		return nil, storeErr(err, nil)
	}
	return m, nil
}

// List returns the whole conversation of a thread in insertion order.
func (s *MessageService) List(ctx context.Context, threadID string) ([]domain.Message, error) {
	ctx, span := s.span(ctx, "List", attribute.String("thread.id", threadID))
	defer span.End()

	items, err := repo.ListMessages(ctx, s.DB, threadID)
	return items, storeErr(err, nil)
}

// ListPage returns paginated messages of a thread owned by userID.
func (s *MessageService) ListPage(ctx context.Context, userID uint, threadID string, page, pageSize int) ([]domain.Message, int64, error) {
	ctx, span := s.span(ctx, "ListPage",
		attribute.String("thread.id", threadID),
		attribute.Int("page", page),
		attribute.Int("page_size", pageSize))
	defer span.End()

	win := utils.NewWindow(page, pageSize, true)

	if _, err := repo.GetThread(ctx, s.DB, threadID, userID); err != nil {
		return nil, 0, storeErr(err, ErrThreadNotFound)
	}

	total, err := repo.CountMessages(ctx, s.DB, threadID)
	if err != nil {
		return nil, 0, storeErr(err, nil)
	}
	if total == 0 {
		return []domain.Message{}, 0, nil
	}

	items, err := repo.ListMessagesPage(ctx, s.DB, threadID, win.Offset(), win.Size)
	return items, total, storeErr(err, nil)
}

// Get returns one message by id.
func (s *MessageService) Get(ctx context.Context, id uint) (*domain.Message, error) {
	m, err := repo.GetMessage(ctx, s.DB, id)
	if err != nil {
		return nil, storeErr(err, ErrMessageNotFound)
	}
	return m, nil
}

// Turns converts stored messages to prompt turns, mapping unknown roles to
// the assistant.
func Turns(msgs []domain.Message) []prompt.Turn {
	out := make([]prompt.Turn, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, prompt.Turn{Role: string(domain.DisplayRole(m.Role)), Content: m.Content})
	}
	return out
}
