package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func captureLogger(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := log.Logger
	t.Cleanup(func() { log.Logger = prev })
	log.Logger = zerolog.New(&buf)
	return &buf
}

// accessLines returns the decoded access log lines (message "request").
func accessLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		if err := json.Unmarshal([]byte(line), &m); err != nil {
			t.Fatalf("bad log line %q: %v", line, err)
		}
		if m["message"] == "request" {
			out = append(out, m)
		}
	}
	return out
}

func newLoggedRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestID(), Logger(), Recovery())
	return r
}

func TestLogger_Levels(t *testing.T) {
	buf := captureLogger(t)
	r := newLoggedRouter()
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/threads", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/threads/:id", func(c *gin.Context) { c.Status(http.StatusNotFound) })
	r.GET("/broken", func(c *gin.Context) {
		_ = c.Error(errSentinel{})
		c.Status(http.StatusOK)
	})

	for _, p := range []string{"/health", "/threads", "/threads/t-1", "/broken", "/nowhere"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, p, nil))
	}

	lines := accessLines(t, buf)
	if len(lines) != 5 {
		t.Fatalf("want 5 access lines, got %d:\n%s", len(lines), buf.String())
	}
	want := []struct{ level, path string }{
		{"debug", "/health"},
		{"info", "/threads"},
		{"warn", "/threads/:id"},
		{"error", "/broken"},
		{"warn", "/nowhere"},
	}
	for i, w := range want {
		if lines[i]["level"] != w.level || lines[i]["path"] != w.path {
			t.Errorf("line %d = %v/%v; want %s/%s", i, lines[i]["level"], lines[i]["path"], w.level, w.path)
		}
	}
	if lines[3]["errors"] == nil {
		t.Errorf("gin errors not logged: %v", lines[3])
	}
}

func TestLogger_ChatFields(t *testing.T) {
	buf := captureLogger(t)
	r := newLoggedRouter()
	r.Use(func(c *gin.Context) { c.Set("userID", uint(11)); c.Next() })
	r.POST("/threads/:id/messages", func(c *gin.Context) {
		if c.Query("stream") == "1" {
			c.SSEvent("done", gin.H{"ok": true})
			return
		}
		c.Header("Idempotency-Replayed", "true")
		c.JSON(http.StatusCreated, gin.H{"id": 1})
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/threads/th-7/messages?stream=1", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/threads/th-7/messages", nil))

	lines := accessLines(t, buf)
	if len(lines) != 2 {
		t.Fatalf("want 2 access lines, got:\n%s", buf.String())
	}
	streamed, replayed := lines[0], lines[1]
	if streamed["thread_id"] != "th-7" || streamed["user_id"] != float64(11) {
		t.Fatalf("scoped fields: %v", streamed)
	}
	if streamed["stream"] != true || streamed["replayed"] != false {
		t.Fatalf("stream line: %v", streamed)
	}
	if replayed["stream"] != false || replayed["replayed"] != true {
		t.Fatalf("replay line: %v", replayed)
	}
	if replayed["query"] != "" || streamed["query"] != "stream=1" {
		t.Fatalf("query: %v / %v", streamed["query"], replayed["query"])
	}
}

type errSentinel struct{}

func (errSentinel) Error() string { return "boom" }

func TestRecovery_PanicBecomesJSON500(t *testing.T) {
	buf := captureLogger(t)
	r := newLoggedRouter()
	r.GET("/threads/:id", func(c *gin.Context) { panic("kaboom") })

	req := httptest.NewRequest(http.MethodGet, "/threads/t-9", nil)
	req.Header.Set(requestIDHeader, "rid-panic")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", w.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid json body: %v", err)
	}
	if body["code"] != "internal_error" || body["request_id"] != "rid-panic" {
		t.Fatalf("unexpected body: %v", body)
	}

	// the panic line goes through the scoped logger, so it carries thread_id
	var found bool
	for _, line := range strings.Split(buf.String(), "\n") {
		if strings.Contains(line, "panic recovered") {
			found = true
			if !strings.Contains(line, `"thread_id":"t-9"`) || !strings.Contains(line, `"stack"`) {
				t.Fatalf("panic line lacks scope or stack: %s", line)
			}
		}
	}
	if !found {
		t.Fatalf("no panic log:\n%s", buf.String())
	}
}

func TestRecovery_PanicMidStream(t *testing.T) {
	buf := captureLogger(t)
	r := newLoggedRouter()
	r.GET("/stream", func(c *gin.Context) {
		c.SSEvent("fragment", gin.H{"text": "par"})
		c.Writer.Flush()
		panic("stream died")
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/stream", nil))

	if strings.Contains(w.Body.String(), "internal_error") {
		t.Fatalf("JSON written after stream start: %q", w.Body.String())
	}
	if !strings.Contains(w.Body.String(), "par") {
		t.Fatalf("streamed fragment lost: %q", w.Body.String())
	}
	if !strings.Contains(buf.String(), "panic recovered") {
		t.Fatalf("expected panic log, got:\n%s", buf.String())
	}
}

func TestLoggerFrom(t *testing.T) {
	gin.SetMode(gin.TestMode)

	t.Run("fallback without access logger", func(t *testing.T) {
		buf := captureLogger(t)
		r := gin.New()
		r.Use(RequestID())
		r.GET("/use", func(c *gin.Context) {
			withUser(c, 3) // no-op here
			LoggerFrom(c).Info().Msg("custom")
			c.Status(http.StatusOK)
		})
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/use", nil))
		out := buf.String()
		if !strings.Contains(out, `"message":"custom"`) || strings.Contains(out, "request_id") || strings.Contains(out, "user_id") {
			t.Fatalf("fallback log: %s", out)
		}
	})

	t.Run("request scoped and user enriched", func(t *testing.T) {
		buf := captureLogger(t)
		r := newLoggedRouter()
		r.GET("/use", func(c *gin.Context) {
			withUser(c, 3)
			LoggerFrom(c).Info().Msg("from handler")
			zerolog.Ctx(c.Request.Context()).Info().Msg("from service")
			c.Status(http.StatusOK)
		})
		req := httptest.NewRequest(http.MethodGet, "/use", nil)
		req.Header.Set(requestIDHeader, "rid-use")
		r.ServeHTTP(httptest.NewRecorder(), req)

		for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
			if strings.Contains(line, "from ") {
				if !strings.Contains(line, `"request_id":"rid-use"`) || !strings.Contains(line, `"user_id":3`) {
					t.Fatalf("scoped line: %s", line)
				}
			}
		}
	})
}

func TestRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestID())
	var seen string
	r.GET("/rid", func(c *gin.Context) {
		v, _ := c.Get(requestIDKey)
		seen = asString(v)
		c.Status(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/rid", nil)
	req.Header.Set(requestIDHeader, "Z-REQ-123")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if seen != "Z-REQ-123" || w.Header().Get(requestIDHeader) != "Z-REQ-123" {
		t.Fatalf("propagated id: ctx=%q header=%q", seen, w.Header().Get(requestIDHeader))
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/rid", nil))
	if len(seen) != 36 || w.Header().Get(requestIDHeader) != seen {
		t.Fatalf("generated id: ctx=%q header=%q", seen, w.Header().Get(requestIDHeader))
	}
}

func Test_asStringAndTruncate(t *testing.T) {
	if asString("x") != "x" || asString(123) != "" || asString(nil) != "" {
		t.Fatal("asString")
	}
	cases := []struct {
		in   string
		max  int
		want string
	}{
		{"hello", 10, "hello"},
		{"abcdefgh", 5, "abcde…"},
		{"abc", 0, "abc"},
		{"abc", -1, "abc"},
	}
	for _, tc := range cases {
		if got := truncate(tc.in, tc.max); got != tc.want {
			t.Errorf("truncate(%q, %d) = %q; want %q", tc.in, tc.max, got, tc.want)
		}
	}
}
