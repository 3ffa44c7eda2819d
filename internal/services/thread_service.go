// Package services – ThreadService
//
// This file implements the ThreadService, which manages the lifecycle of
// threads. It normalizes topics, enforces ownership rules and coordinates
// repository operations for creating, listing (with pagination), renaming,
// pinning, touching and deleting threads. Automatic titling is driven by the
// session controller on the first submission.
package services

import (
	"context"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/smartlang-chat/internal/domain"
	"github.com/tbourn/smartlang-chat/internal/utils"
)

// ThreadRepo defines the repository contract required by ThreadService.
type ThreadRepo interface {
	// CreateThread inserts a thread with a caller-generated id.
	CreateThread(ctx context.Context, db *gorm.DB, threadID, topic string, userID uint) (*domain.Thread, error)

	// ListThreads returns all threads of the user, pinned first then most recent.
	ListThreads(ctx context.Context, db *gorm.DB, userID uint) ([]domain.Thread, error)

	// CountThreads returns the total number of threads for pagination.
	CountThreads(ctx context.Context, db *gorm.DB, userID uint) (int64, error)

	// ListThreadsPage returns a page of threads in list order.
	ListThreadsPage(ctx context.Context, db *gorm.DB, userID uint, offset, limit int) ([]domain.Thread, error)

	// GetThread fetches a thread ensuring it belongs to the user.
	GetThread(ctx context.Context, db *gorm.DB, threadID string, userID uint) (*domain.Thread, error)

	// RenameThread overwrites the topic.
	RenameThread(ctx context.Context, db *gorm.DB, threadID, topic string) error

	// SetPinned overwrites the pinned flag.
	SetPinned(ctx context.Context, db *gorm.DB, threadID string, pinned bool) error

	// TouchThread bumps last_updated.
	TouchThread(ctx context.Context, db *gorm.DB, threadID string) error

	// DeleteThread removes messages, documents and the thread.
	DeleteThread(ctx context.Context, db *gorm.DB, threadID string) error
}

// ThreadService provides thread-level operations and ensures ownership
// constraints.
type ThreadService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Repo is the thread repository used by this service.
	Repo ThreadRepo

	// NewID generates thread ids.
	NewID func() string
	// TopicMaxLen caps stored topics by rune length.
	TopicMaxLen int
}

// NewThreadService constructs a ThreadService with uuid ids and a 100 rune
// topic cap.
func NewThreadService(db *gorm.DB, r ThreadRepo) *ThreadService {
	return &ThreadService{
		DB:          db,
		Repo:        r,
		NewID:       uuid.NewString,
		TopicMaxLen: 100,
	}
}

func (s *ThreadService) span(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return otel.Tracer("services/ThreadService").Start(ctx, name, trace.WithAttributes(attrs...))
}

// Create inserts a new thread owned by userID with the default topic.
func (s *ThreadService) Create(ctx context.Context, userID uint) (*domain.Thread, error) {
	ctx, span := s.span(ctx, "Create", attribute.Int("user.id", int(userID)))
	defer span.End()

	th, err := s.Repo.CreateThread(ctx, s.DB, s.NewID(), domain.DefaultTopic, userID)
	return th, storeErr(err, nil)
}

// List returns all threads for a user.
func (s *ThreadService) List(ctx context.Context, userID uint) ([]domain.Thread, error) {
	ctx, span := s.span(ctx, "List", attribute.Int("user.id", int(userID)))
	defer span.End()

	items, err := s.Repo.ListThreads(ctx, s.DB, userID)
	return items, storeErr(err, nil)
}

// ListPage returns a page of threads for a user and the total count. It
// applies defaults for invalid page/pageSize.
func (s *ThreadService) ListPage(ctx context.Context, userID uint, page, pageSize int) ([]domain.Thread, int64, error) {
	ctx, span := s.span(ctx, "ListPage",
		attribute.Int("user.id", int(userID)),
		attribute.Int("page", page),
		attribute.Int("page_size", pageSize))
	defer span.End()

	win := utils.NewWindow(page, pageSize, true)

	total, err := s.Repo.CountThreads(ctx, s.DB, userID)
	if err != nil {
		return nil, 0, storeErr(err, nil)
	}
	if total == 0 {
		return []domain.Thread{}, 0, nil
	}

	items, err := s.Repo.ListThreadsPage(ctx, s.DB, userID, win.Offset(), win.Size)
	return items, total, storeErr(err, nil)
}

// Get returns a thread owned by userID or ErrThreadNotFound.
func (s *ThreadService) Get(ctx context.Context, userID uint, threadID string) (*domain.Thread, error) {
	th, err := s.Repo.GetThread(ctx, s.DB, threadID, userID)
	if err != nil {
		return nil, storeErr(err, ErrThreadNotFound)
	}
	return th, nil
}

// Rename sets a thread's topic after checking ownership. A blank topic
// becomes "Untitled", which stays eligible for automatic titling.
func (s *ThreadService) Rename(ctx context.Context, userID uint, threadID, topic string) (string, error) {
	ctx, span := s.span(ctx, "Rename", attribute.String("thread.id", threadID))
	defer span.End()

	topic = normalizeTopic(topic)
	if topic == "" {
		topic = "Untitled"
	}
	topic = s.clip(topic)
	if _, err := s.Get(ctx, userID, threadID); err != nil {
		return "", err
	}
	if err := s.Repo.RenameThread(ctx, s.DB, threadID, topic); err != nil {
		return "", storeErr(err, ErrThreadNotFound)
	}
	return topic, nil
}

// SetPinned overwrites the pinned flag of a thread owned by userID.
func (s *ThreadService) SetPinned(ctx context.Context, userID uint, threadID string, pinned bool) error {
	ctx, span := s.span(ctx, "SetPinned",
		attribute.String("thread.id", threadID), attribute.Bool("pinned", pinned))
	defer span.End()

	if _, err := s.Get(ctx, userID, threadID); err != nil {
		return err
	}
	return storeErr(s.Repo.SetPinned(ctx, s.DB, threadID, pinned), ErrThreadNotFound)
}

// TogglePin flips the pinned flag and returns the new value.
func (s *ThreadService) TogglePin(ctx context.Context, userID uint, threadID string) (bool, error) {
	th, err := s.Get(ctx, userID, threadID)
	if err != nil {
		return false, err
	}
	pinned := !th.Pinned
	if err := s.Repo.SetPinned(ctx, s.DB, threadID, pinned); err != nil {
		return th.Pinned, storeErr(err, ErrThreadNotFound)
	}
	return pinned, nil
}

// Touch marks a thread as just updated.
func (s *ThreadService) Touch(ctx context.Context, threadID string) error {
	return storeErr(s.Repo.TouchThread(ctx, s.DB, threadID), ErrThreadNotFound)
}

// Delete removes a thread owned by userID with its messages and documents.
// Threads that do not exist, or belong to someone else, are left alone and
// reported as success.
func (s *ThreadService) Delete(ctx context.Context, userID uint, threadID string) error {
	ctx, span := s.span(ctx, "Delete", attribute.String("thread.id", threadID))
	defer span.End()

	if _, err := s.Get(ctx, userID, threadID); err != nil {
		if err == ErrThreadNotFound {
			return nil
		}
		return err
	}
	return storeErr(s.Repo.DeleteThread(ctx, s.DB, threadID), nil)
}

// clip truncates a topic to the configured maximum rune length.
func (s *ThreadService) clip(topic string) string {
	if s.TopicMaxLen > 0 && utf8.RuneCountInString(topic) > s.TopicMaxLen {
		return string([]rune(topic)[:s.TopicMaxLen])
	}
	return topic
}

// normalizeTopic trims whitespace and collapses runs of whitespace to one
// space.
func normalizeTopic(s string) string {
	return whitespaceRE.ReplaceAllString(strings.TrimSpace(s), " ")
}

// whitespaceRE collapses consecutive whitespace to a single space.
var whitespaceRE = regexp.MustCompile(`\s+`)
