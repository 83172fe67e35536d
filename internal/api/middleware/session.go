package middleware

import (
	"context"
	"net/http"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/agentoven/sqlchat/internal/sessions"
)

// SessionCookie is the cookie carrying the chat session id.
const SessionCookie = "sqlchat_session"

type contextKey string

const sessionKey contextKey = "session"

// SessionStore is the part of the session store the middleware needs.
type SessionStore interface {
	GetOrCreate(ctx context.Context, id string) (*sessions.Session, error)
}

// Sessions attaches the caller's chat session to the request context,
// starting a new one (and setting the cookie) when the cookie is missing
// or names an unknown session. The session id is also recorded on the
// request span.
func Sessions(store SessionStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var id string
			if c, err := r.Cookie(SessionCookie); err == nil {
				id = c.Value
			}

			sess, err := store.GetOrCreate(r.Context(), id)
			if err != nil {
				log.Error().Err(err).Msg("Failed to start session")
				http.Error(w, "session unavailable", http.StatusInternalServerError)
				return
			}
			if sess.ID != id {
				http.SetCookie(w, &http.Cookie{
					Name:     SessionCookie,
					Value:    sess.ID,
					Path:     "/",
					HttpOnly: true,
					SameSite: http.SameSiteLaxMode,
				})
			}

			trace.SpanFromContext(r.Context()).SetAttributes(
				attribute.String("sqlchat.session_id", sess.ID),
				attribute.Int("sqlchat.session_turns", sess.TurnCount),
			)

			next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), sess)))
		})
	}
}

// WithSession returns a context carrying sess.
func WithSession(ctx context.Context, sess *sessions.Session) context.Context {
	return context.WithValue(ctx, sessionKey, sess)
}

// GetSession retrieves the chat session from the request context.
func GetSession(ctx context.Context) *sessions.Session {
	if v, ok := ctx.Value(sessionKey).(*sessions.Session); ok {
		return v
	}
	return nil
}
