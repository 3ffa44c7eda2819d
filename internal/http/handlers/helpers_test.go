package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/smartlang-chat/internal/http/middleware"
	"github.com/tbourn/smartlang-chat/internal/llm"
	"github.com/tbourn/smartlang-chat/internal/repo"
	"github.com/tbourn/smartlang-chat/internal/retrieval"
	"github.com/tbourn/smartlang-chat/internal/services"
	"github.com/tbourn/smartlang-chat/internal/session"
)

// ---------- test plumbing ----------

// fakeLLM scripts the completion provider.
type fakeLLM struct {
	title     string
	reply     []string
	tail      error
	streamErr error
	prompts   []string
}

func (f *fakeLLM) GenerateTitle(context.Context, string) (string, error) {
	return f.title, nil
}

func (f *fakeLLM) StreamReply(ctx context.Context, p string) (*llm.Stream, error) {
	f.prompts = append(f.prompts, p)
	if f.streamErr != nil {
		return nil, f.streamErr
	}
	frags, tail := f.reply, f.tail
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

type testAPI struct {
	r   *gin.Engine
	db  *gorm.DB
	llm *fakeLLM
	ctl *session.Controller
}

const (
	testSecret    = "0123456789abcdef0123"
	testMaxRunes  = 50
	testMaxUpload = 64
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:handlers_%s?mode=memory&cache=shared", uuid.NewString())
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
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// newTestAPI mounts every handler behind the same middleware the server
// uses, on a fresh in-memory database.
func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	gin.SetMode(gin.TestMode)
	db := newTestDB(t)

	f := &fakeLLM{title: "Blockchain explained", reply: []string{"A blockchain ", "is a shared ledger."}}
	auth := services.NewAuthService(db, testSecret, time.Hour)
	ctl := session.New(
		auth,
		services.NewThreadService(db, services.RepoThreads{}),
		&services.MessageService{DB: db, MaxRunes: testMaxRunes},
		services.NewDocumentService(db),
		retrieval.New(db, 10),
		f,
		zerolog.Nop(),
	)
	h := New(ctl, Options{MaxUploadBytes: testMaxUpload})

	r := gin.New()
	r.Use(middleware.RequestID())
	r.POST("/auth/signup", h.Signup)
	r.POST("/auth/login", h.Login)

	api := r.Group("")
	api.Use(
		middleware.Auth(func(tok string) (uint, string, error) {
			id, err := auth.ParseToken(tok)
			return id.UserID, id.Username, err
		}),
		middleware.IdempotencyValidator(middleware.IdempotencyOptions{}, nil),
	)
	api.POST("/threads", h.CreateThread)
	api.GET("/threads", h.ListThreads)
	api.GET("/threads/:id", h.GetThread)
	api.PUT("/threads/:id/topic", h.RenameThread)
	api.PUT("/threads/:id/pin", h.TogglePin)
	api.DELETE("/threads/:id", h.DeleteThread)
	api.GET("/threads/:id/messages", h.ListMessages)
	api.POST("/threads/:id/messages", h.PostMessage)
	api.GET("/threads/:id/documents", h.ListDocuments)

	return &testAPI{r: r, db: db, llm: f, ctl: ctl}
}

// do sends a request. body may be nil, a string, or a value encoded as JSON.
// hdr holds header name/value pairs.
func (a *testAPI) do(t *testing.T, method, path, token string, body any, hdr ...string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		rd = bytes.NewBufferString(b)
	default:
		raw, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		rd = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, rd)
	if rd != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(hdr); i += 2 {
		req.Header.Set(hdr[i], hdr[i+1])
	}
	w := httptest.NewRecorder()
	a.r.ServeHTTP(w, req)
	return w
}

// login signs up name and returns a bearer token.
func (a *testAPI) login(t *testing.T, name string) string {
	t.Helper()
	creds := CredentialsRequest{Username: name, Password: "pw"}
	if w := a.do(t, http.MethodPost, "/auth/signup", "", creds); w.Code != http.StatusCreated {
		t.Fatalf("signup %s: %d %s", name, w.Code, w.Body.String())
	}
	w := a.do(t, http.MethodPost, "/auth/login", "", creds)
	if w.Code != http.StatusOK {
		t.Fatalf("login %s: %d %s", name, w.Code, w.Body.String())
	}
	return decode[LoginResponse](t, w).Token
}

// newThread creates a thread for token and returns its id.
func (a *testAPI) newThread(t *testing.T, token string) string {
	t.Helper()
	w := a.do(t, http.MethodPost, "/threads", token, nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("create thread: %d %s", w.Code, w.Body.String())
	}
	return decode[ThreadResponse](t, w).Thread.ThreadID
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %T: %v (%s)", v, err, w.Body.String())
	}
	return v
}
