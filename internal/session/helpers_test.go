package session

import (
	"context"
	"fmt"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/smartlang-chat/internal/llm"
	"github.com/tbourn/smartlang-chat/internal/repo"
	"github.com/tbourn/smartlang-chat/internal/retrieval"
	"github.com/tbourn/smartlang-chat/internal/services"
)

// fakeLLM is a scripted completion client.
type fakeLLM struct {
	title      string
	titleErr   error
	titleCalls int
	titleSeeds []string

	reply     []string
	replyErr  error
	streamErr error
	prompts   []string
}

func (f *fakeLLM) GenerateTitle(_ context.Context, seed string) (string, error) {
	f.titleCalls++
	f.titleSeeds = append(f.titleSeeds, seed)
	return f.title, f.titleErr
}

func (f *fakeLLM) StreamReply(ctx context.Context, p string) (*llm.Stream, error) {
	f.prompts = append(f.prompts, p)
	if f.streamErr != nil {
		return nil, f.streamErr
	}
	frags, tail := f.reply, f.replyErr
	return llm.NewStream(ctx, 0, func(ctx context.Context, emit llm.EmitFunc) error {
		for _, s := range frags {
			if err := emit(s); err != nil {
				return err
			}
		}
		return tail
	}), nil
}

func (f *fakeLLM) lastPrompt() string {
	if len(f.prompts) == 0 {
		return ""
	}
	return f.prompts[len(f.prompts)-1]
}

type recordingObserver struct {
	extractions []string
	titles      []bool
	replies     []string
}

func (o *recordingObserver) Extraction(s string)   { o.extractions = append(o.extractions, s) }
func (o *recordingObserver) Title(fallback bool)   { o.titles = append(o.titles, fallback) }
func (o *recordingObserver) Reply(s string, _ int) { o.replies = append(o.replies, s) }

type harness struct {
	c   *Controller
	llm *fakeLLM
	obs *recordingObserver
	db  *gorm.DB
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	dsn := fmt.Sprintf("file:session_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	db.Exec("PRAGMA foreign_keys=ON;")
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}

	f := &fakeLLM{title: "Blockchain explained", reply: []string{"A blockchain ", "is a shared ledger."}}
	obs := &recordingObserver{}
	c := New(
		services.NewAuthService(db, "0123456789abcdef0123", time.Hour),
		services.NewThreadService(db, services.RepoThreads{}),
		&services.MessageService{DB: db},
		services.NewDocumentService(db),
		retrieval.New(db, 10),
		f,
		zerolog.Nop(),
	)
	c.Observer = obs
	return &harness{c: c, llm: f, obs: obs, db: db}
}

// loggedIn signs up and logs in name, returning a state with a new thread.
func (h *harness) loggedIn(t *testing.T, name string) State {
	t.Helper()
	ctx := context.Background()
	if _, err := h.c.Signup(ctx, State{}, name, "pw"); err != nil {
		t.Fatalf("Signup: %v", err)
	}
	st, _, err := h.c.Login(ctx, State{}, name, "pw")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	st, _, err = h.c.NewThread(ctx, st)
	if err != nil {
		t.Fatalf("NewThread: %v", err)
	}
	return st
}

func (h *harness) count(t *testing.T, model any, threadID string) int64 {
	t.Helper()
	var n int64
	if err := h.db.Model(model).Where("thread_id = ?", threadID).Count(&n).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	return n
}
