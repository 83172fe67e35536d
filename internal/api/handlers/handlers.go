// Package handlers implements the HTTP handlers of the chat UI and its
// JSON API.
package handlers

import (
	"bytes"
	"context"
	"embed"
	"encoding/json"
	"errors"
	"html/template"
	"io/fs"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/agentoven/sqlchat/internal/api/middleware"
	"github.com/agentoven/sqlchat/internal/chat"
	"github.com/agentoven/sqlchat/internal/conversation"
	"github.com/agentoven/sqlchat/internal/sessions"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

var pages = template.Must(template.ParseFS(templateFS, "templates/*.html"))

// ChatService answers one question and renders the conversation.
type ChatService interface {
	AskHTML(ctx context.Context, agentSessionID, question string) (conversation.Turn, string, error)
}

// SessionStore is the part of the session store the handlers need.
type SessionStore interface {
	GetOrCreate(ctx context.Context, id string) (*sessions.Session, error)
	RecordTurn(ctx context.Context, id string) error
}

// Page is what the chat page shows about the deployment.
type Page struct {
	Title     string
	Region    string
	AccountID string
	ChatPath  string
}

// Handlers holds all handler dependencies.
type Handlers struct {
	Chat         ChatService
	Sessions     SessionStore
	QuestionList []string
	Page         Page
}

// New creates a Handlers instance.
func New(svc ChatService, store SessionStore, questions []string, page Page) *Handlers {
	return &Handlers{
		Chat:         svc,
		Sessions:     store,
		QuestionList: questions,
		Page:         page,
	}
}

// ── UI ───────────────────────────────────────────────────────

// Index serves the chat page.
func (h *Handlers) Index(w http.ResponseWriter, r *http.Request) {
	respondHTML(w, http.StatusOK, "chat.html", h.Page)
}

// Questions serves the recommended-questions fragment.
func (h *Handlers) Questions(w http.ResponseWriter, r *http.Request) {
	respondHTML(w, http.StatusOK, "questions.html", struct {
		ChatPath  string
		Questions []string
	}{h.Page.ChatPath, h.QuestionList})
}

// Ask answers the form field "question" with the conversation fragment.
func (h *Handlers) Ask(w http.ResponseWriter, r *http.Request) {
	sess := middleware.GetSession(r.Context())
	if sess == nil {
		respondHTML(w, http.StatusInternalServerError, "error.html", "no chat session")
		return
	}
	question := r.PostFormValue("question")

	_, html, err := h.Chat.AskHTML(r.Context(), sess.AgentSessionID, question)
	if err != nil {
		status := askStatus(err)
		log.Warn().Err(err).Str("session", sess.ID).Int("status", status).Msg("Question failed")
		respondHTML(w, status, "error.html", err.Error())
		return
	}
	h.recordTurn(r.Context(), sess.ID)

	// Already escaped by conversation.Render.
	respondHTML(w, http.StatusOK, "answer.html", template.HTML(html))
}

// ── JSON API ─────────────────────────────────────────────────

type chatRequest struct {
	Question  string `json:"question"`
	SessionID string `json:"session_id,omitempty"`
}

type chatResponse struct {
	SessionID  string              `json:"session_id"`
	Completion string              `json:"completion"`
	Steps      []conversation.Step `json:"steps"`
	HTML       string              `json:"html"`
}

// APIChat answers a JSON question. Callers keep the conversation going by
// sending back the session_id of the previous answer.
func (h *Handlers) APIChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	sess, err := h.Sessions.GetOrCreate(r.Context(), req.SessionID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	turn, html, err := h.Chat.AskHTML(r.Context(), sess.AgentSessionID, req.Question)
	if err != nil {
		respondError(w, askStatus(err), err.Error())
		return
	}
	h.recordTurn(r.Context(), sess.ID)

	steps := turn.Steps
	if steps == nil {
		steps = []conversation.Step{}
	}
	respondJSON(w, http.StatusOK, chatResponse{
		SessionID:  sess.ID,
		Completion: turn.Completion,
		Steps:      steps,
		HTML:       html,
	})
}

// ── Assets ───────────────────────────────────────────────────

// Static serves the embedded assets under /static/.
func Static() http.Handler {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(err)
	}
	return http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
}

// Favicon serves the site icon.
func Favicon(w http.ResponseWriter, r *http.Request) {
	data, err := staticFS.ReadFile("static/favicon.svg")
	if err != nil {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "image/svg+xml")
	w.Header().Set("Cache-Control", "public, max-age=86400")
	w.Write(data)
}

// ── Helpers ──────────────────────────────────────────────────

func (h *Handlers) recordTurn(ctx context.Context, id string) {
	if err := h.Sessions.RecordTurn(ctx, id); err != nil {
		log.Warn().Err(err).Str("session", id).Msg("Failed to record turn")
	}
}

// askStatus maps a failed turn to a status: blank questions are the
// caller's fault, everything else is the agent's.
func askStatus(err error) int {
	if errors.Is(err, chat.ErrEmptyQuestion) {
		return http.StatusBadRequest
	}
	return http.StatusBadGateway
}

func respondHTML(w http.ResponseWriter, status int, name string, data any) {
	var buf bytes.Buffer
	if err := pages.ExecuteTemplate(&buf, name, data); err != nil {
		log.Error().Err(err).Str("template", name).Msg("Failed to render template")
		http.Error(w, "template error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	w.Write(buf.Bytes())
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
