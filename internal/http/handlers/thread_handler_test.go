package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/tbourn/smartlang-chat/internal/domain"
)

// ---------- helpers-only unit tests ----------

func Test_clampPagination_and_paginate(t *testing.T) {
	gin.SetMode(gin.TestMode)

	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/?page=-3&page_size=9999", nil)
	if p, ps := clampPagination(c); p != 1 || ps != 100 {
		t.Fatalf("clamp: got page=%d size=%d; want 1,100", p, ps)
	}
	c, _ = gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/?page=&page_size=0", nil)
	if p, ps := clampPagination(c); p != 1 || ps != 1 {
		t.Fatalf("clamp defaults: got %d,%d", p, ps)
	}
	c, _ = gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	if p, ps := clampPagination(c); p != 1 || ps != 20 {
		t.Fatalf("clamp empty: got %d,%d", p, ps)
	}

	pg := paginate(2, 20, 41)
	if pg.TotalPages != 3 || !pg.HasNext || pg.Total != 41 {
		t.Fatalf("paginate: %+v", pg)
	}
	if pg := paginate(1, 20, 0); pg.TotalPages != 0 || pg.HasNext {
		t.Fatalf("paginate empty: %+v", pg)
	}
}

// ---------- Auth ----------

func TestAuth_SignupLoginFlow(t *testing.T) {
	a := newTestAPI(t)

	w := a.do(t, http.MethodPost, "/auth/signup", "", CredentialsRequest{Username: "alice", Password: "pw"})
	if w.Code != http.StatusCreated {
		t.Fatalf("signup: %d %s", w.Code, w.Body.String())
	}
	if resp := decode[SignupResponse](t, w); len(resp.Notices) != 1 || resp.Notices[0].Level != "success" {
		t.Fatalf("signup notices: %+v", resp.Notices)
	}

	// duplicate
	w = a.do(t, http.MethodPost, "/auth/signup", "", CredentialsRequest{Username: "alice", Password: "other"})
	if w.Code != http.StatusConflict {
		t.Fatalf("duplicate signup: %d", w.Code)
	}
	if e := decode[ErrorResponse](t, w); e.Code != ErrCodeConflict || e.Message != "Username already exists" {
		t.Fatalf("duplicate body: %+v", e)
	}

	// blank fields
	w = a.do(t, http.MethodPost, "/auth/signup", "", CredentialsRequest{Username: "  ", Password: ""})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("blank signup: %d", w.Code)
	}

	// malformed JSON
	w = a.do(t, http.MethodPost, "/auth/login", "", "{")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("bad json: %d", w.Code)
	}

	// wrong password and unknown user look the same
	wrong := a.do(t, http.MethodPost, "/auth/login", "", CredentialsRequest{Username: "alice", Password: "nope"})
	unknown := a.do(t, http.MethodPost, "/auth/login", "", CredentialsRequest{Username: "bob", Password: "pw"})
	if wrong.Code != http.StatusUnauthorized || unknown.Code != http.StatusUnauthorized {
		t.Fatalf("bad login codes: %d %d", wrong.Code, unknown.Code)
	}
	if decode[ErrorResponse](t, wrong).Message != decode[ErrorResponse](t, unknown).Message {
		t.Fatalf("login failures must not reveal which part was wrong")
	}

	w = a.do(t, http.MethodPost, "/auth/login", "", CredentialsRequest{Username: "alice", Password: "pw"})
	if w.Code != http.StatusOK {
		t.Fatalf("login: %d %s", w.Code, w.Body.String())
	}
	lr := decode[LoginResponse](t, w)
	if lr.Token == "" || lr.UserID == 0 || lr.Username != "alice" {
		t.Fatalf("login body: %+v", lr)
	}

	// token works on a protected route
	if w := a.do(t, http.MethodGet, "/threads", lr.Token, nil); w.Code != http.StatusOK {
		t.Fatalf("GET /threads with token: %d", w.Code)
	}
	if w := a.do(t, http.MethodGet, "/threads", "", nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("GET /threads without token: %d", w.Code)
	}
}

// ---------- Threads ----------

func TestThreads_CreateListETagAndOrder(t *testing.T) {
	a := newTestAPI(t)
	tok := a.login(t, "alice")

	w := a.do(t, http.MethodGet, "/threads", tok, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list: %d", w.Code)
	}
	if got := decode[ListThreadsResponse](t, w); len(got.Threads) != 0 || got.Pagination.Total != 0 {
		t.Fatalf("expected no threads: %+v", got)
	}

	w = a.do(t, http.MethodPost, "/threads", tok, nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("create: %d", w.Code)
	}
	first := decode[ThreadResponse](t, w).Thread
	if first == nil || first.Topic != domain.DefaultTopic || first.Pinned {
		t.Fatalf("new thread: %+v", first)
	}
	if _, err := uuid.Parse(first.ThreadID); err != nil {
		t.Fatalf("thread id is not a uuid: %q", first.ThreadID)
	}
	second := a.newThread(t, tok)

	w = a.do(t, http.MethodGet, "/threads?page=1&page_size=10", tok, nil)
	list := decode[ListThreadsResponse](t, w)
	if len(list.Threads) != 2 || list.Pagination.Total != 2 {
		t.Fatalf("list: %+v", list)
	}
	if w := a.do(t, http.MethodPost, "/threads/"+first.ThreadID+"/messages", tok, PostMessageRequest{Content: "hello"}); w.Code != http.StatusOK {
		t.Fatalf("post: %d %s", w.Code, w.Body.String())
	}
	w = a.do(t, http.MethodGet, "/threads", tok, nil)
	list = decode[ListThreadsResponse](t, w)
	if list.Threads[0].ThreadID != first.ThreadID {
		t.Fatalf("a new message should move the thread to the top: %+v", list.Threads)
	}
	etag := w.Header().Get("ETag")
	if etag == "" {
		t.Fatalf("missing ETag")
	}

	w = a.do(t, http.MethodGet, "/threads", tok, nil, "If-None-Match", etag)
	if w.Code != http.StatusNotModified {
		t.Fatalf("If-None-Match: %d", w.Code)
	}

	// pinning the older thread moves it to the top
	w = a.do(t, http.MethodPut, "/threads/"+second+"/pin", tok, nil)
	if w.Code != http.StatusOK || !decode[PinResponse](t, w).Pinned {
		t.Fatalf("pin: %d %s", w.Code, w.Body.String())
	}
	w = a.do(t, http.MethodGet, "/threads", tok, nil)
	list = decode[ListThreadsResponse](t, w)
	if list.Threads[0].ThreadID != second || !list.Threads[0].Pinned {
		t.Fatalf("pinned thread should lead: %+v", list.Threads)
	}

	// unpin
	w = a.do(t, http.MethodPut, "/threads/"+second+"/pin", tok, nil)
	if decode[PinResponse](t, w).Pinned {
		t.Fatalf("second toggle should unpin")
	}
}

func TestThreads_OwnershipIsolation(t *testing.T) {
	a := newTestAPI(t)
	alice := a.login(t, "alice")
	bob := a.login(t, "bob")
	tid := a.newThread(t, alice)

	for _, tc := range []struct {
		method, path string
		body         any
	}{
		{http.MethodGet, "/threads/" + tid, nil},
		{http.MethodPut, "/threads/" + tid + "/topic", RenameThreadRequest{Topic: "mine"}},
		{http.MethodPut, "/threads/" + tid + "/pin", nil},
		{http.MethodGet, "/threads/" + tid + "/messages", nil},
		{http.MethodGet, "/threads/" + tid + "/documents", nil},
		{http.MethodPost, "/threads/" + tid + "/messages", PostMessageRequest{Content: "hi"}},
	} {
		w := a.do(t, tc.method, tc.path, bob, tc.body)
		if w.Code != http.StatusNotFound {
			t.Fatalf("%s %s as bob: %d %s", tc.method, tc.path, w.Code, w.Body.String())
		}
		if e := decode[ErrorResponse](t, w); e.Code != ErrCodeNotFound {
			t.Fatalf("%s %s body: %+v", tc.method, tc.path, e)
		}
	}

	if got := decode[ListThreadsResponse](t, a.do(t, http.MethodGet, "/threads", bob, nil)); len(got.Threads) != 0 {
		t.Fatalf("bob sees alice's threads: %+v", got.Threads)
	}

	// bob's delete is a no-op
	if w := a.do(t, http.MethodDelete, "/threads/"+tid+"?confirm=true", bob, nil); w.Code != http.StatusNoContent {
		t.Fatalf("foreign delete: %d", w.Code)
	}
	if w := a.do(t, http.MethodGet, "/threads/"+tid, alice, nil); w.Code != http.StatusOK {
		t.Fatalf("alice's thread should survive bob's delete: %d", w.Code)
	}
}

func TestThreads_RenameAndHistory(t *testing.T) {
	a := newTestAPI(t)
	tok := a.login(t, "alice")
	tid := a.newThread(t, tok)

	w := a.do(t, http.MethodPut, "/threads/"+tid+"/topic", tok, RenameThreadRequest{Topic: "   "})
	if w.Code != http.StatusOK || decode[TopicResponse](t, w).Topic != "Untitled" {
		t.Fatalf("blank topic: %d %s", w.Code, w.Body.String())
	}
	w = a.do(t, http.MethodPut, "/threads/"+tid+"/topic", tok, RenameThreadRequest{Topic: "  Ledger \n notes  "})
	if w.Code != http.StatusOK || decode[TopicResponse](t, w).Topic != "Ledger notes" {
		t.Fatalf("rename: %d %s", w.Code, w.Body.String())
	}
	w = a.do(t, http.MethodPut, "/threads/"+tid+"/topic", tok, `{"topic": 5}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("bad rename body: %d", w.Code)
	}

	if w := a.do(t, http.MethodPost, "/threads/"+tid+"/messages", tok, PostMessageRequest{Content: "Explain blockchain simply"}); w.Code != http.StatusOK {
		t.Fatalf("post: %d %s", w.Code, w.Body.String())
	}

	w = a.do(t, http.MethodGet, "/threads/"+tid, tok, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get thread: %d", w.Code)
	}
	h := decode[ThreadHistoryResponse](t, w)
	if h.ThreadID != tid || len(h.History) != 2 {
		t.Fatalf("history: %+v", h)
	}
	if h.History[0].Role != "user" || h.History[0].Content != "Explain blockchain simply" ||
		h.History[1].Role != "assistant" || h.History[1].Content != "A blockchain is a shared ledger." {
		t.Fatalf("history order/content: %+v", h.History)
	}

	// a renamed thread is not auto-titled
	list := decode[ListThreadsResponse](t, a.do(t, http.MethodGet, "/threads", tok, nil))
	if list.Threads[0].Topic != "Ledger notes" {
		t.Fatalf("manual topic should survive the first message: %q", list.Threads[0].Topic)
	}
}

func TestThreads_DeleteNeedsConfirmation(t *testing.T) {
	a := newTestAPI(t)
	tok := a.login(t, "alice")
	tid := a.newThread(t, tok)
	if w := a.do(t, http.MethodPost, "/threads/"+tid+"/messages", tok, PostMessageRequest{Content: "hello"}); w.Code != http.StatusOK {
		t.Fatalf("post: %d", w.Code)
	}

	w := a.do(t, http.MethodDelete, "/threads/"+tid, tok, nil)
	if w.Code != http.StatusConflict {
		t.Fatalf("unconfirmed delete: %d", w.Code)
	}
	if e := decode[ErrorResponse](t, w); e.Code != ErrCodeConfirmationRequired {
		t.Fatalf("unconfirmed body: %+v", e)
	}
	if w := a.do(t, http.MethodGet, "/threads/"+tid, tok, nil); w.Code != http.StatusOK {
		t.Fatalf("thread must survive an unconfirmed delete: %d", w.Code)
	}

	if w := a.do(t, http.MethodDelete, "/threads/"+tid+"?confirm=true", tok, nil); w.Code != http.StatusNoContent {
		t.Fatalf("confirmed delete: %d %s", w.Code, w.Body.String())
	}
	if w := a.do(t, http.MethodGet, "/threads/"+tid, tok, nil); w.Code != http.StatusNotFound {
		t.Fatalf("deleted thread still visible: %d", w.Code)
	}
	var n int64
	a.db.Model(&domain.Message{}).Where("thread_id = ?", tid).Count(&n)
	if n != 0 {
		t.Fatalf("messages left after delete: %d", n)
	}

	// deleting again is still fine
	if w := a.do(t, http.MethodDelete, "/threads/"+tid+"?confirm=true", tok, nil); w.Code != http.StatusNoContent {
		t.Fatalf("repeat delete: %d", w.Code)
	}
}
