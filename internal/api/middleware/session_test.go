package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/agentoven/sqlchat/internal/api/middleware"
	"github.com/agentoven/sqlchat/internal/sessions"
)

func TestSessions_SetsCookieOnFirstRequest(t *testing.T) {
	store := sessions.NewMemoryStore(0)

	var seen string
	handler := middleware.Sessions(store)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if sess := middleware.GetSession(r.Context()); sess != nil {
			seen = sess.ID
		}
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	if seen == "" {
		t.Fatal("Expected a session in the request context")
	}
	cookies := w.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Name != middleware.SessionCookie || cookies[0].Value != seen {
		t.Fatalf("Cookies = %+v, want %s=%s", cookies, middleware.SessionCookie, seen)
	}
	if !cookies[0].HttpOnly {
		t.Error("Session cookie should be HttpOnly")
	}
}

func TestSessions_ReusesKnownSession(t *testing.T) {
	store := sessions.NewMemoryStore(0)
	sess, err := store.Create(t.Context())
	if err != nil {
		t.Fatal(err)
	}

	var seen string
	handler := middleware.Sessions(store)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = middleware.GetSession(r.Context()).AgentSessionID
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: middleware.SessionCookie, Value: sess.ID})
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if seen != sess.AgentSessionID {
		t.Errorf("Agent session = %q, want %q", seen, sess.AgentSessionID)
	}
	if len(w.Result().Cookies()) != 0 {
		t.Error("Known session must not reset the cookie")
	}
}

func TestSessions_ReplacesUnknownSession(t *testing.T) {
	store := sessions.NewMemoryStore(0)
	handler := middleware.Sessions(store)(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: middleware.SessionCookie, Value: "stale"})
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	cookies := w.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Value == "stale" {
		t.Fatalf("Expected a fresh session cookie, got %+v", cookies)
	}
	if store.Len() != 1 {
		t.Errorf("Store has %d sessions, want 1", store.Len())
	}
}

func TestGetSession_Empty(t *testing.T) {
	if middleware.GetSession(t.Context()) != nil {
		t.Error("Expected no session on a bare context")
	}
}
