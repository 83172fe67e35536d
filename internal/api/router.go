package api

import (
	"encoding/json"
	"net/http"

	"github.com/agentoven/sqlchat/internal/api/handlers"
	"github.com/agentoven/sqlchat/internal/api/middleware"
	"github.com/agentoven/sqlchat/internal/config"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates the HTTP router for the chat UI and the JSON API.
func NewRouter(cfg *config.Config, h *handlers.Handlers) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Compress(5))
	r.Use(middleware.Logger)
	r.Use(middleware.Telemetry)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-API-Key", "X-Request-Id", "HX-Request", "HX-Target", "HX-Trigger", "HX-Current-URL"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health & info
	r.Get("/health", healthHandler)
	r.Get("/version", versionHandler(cfg))

	// Assets
	r.Handle("/static/*", handlers.Static())
	r.Get("/favicon.ico", handlers.Favicon)

	// Browser UI, keyed by the session cookie
	r.Group(func(r chi.Router) {
		r.Use(middleware.Sessions(h.Sessions))
		r.Get("/", h.Index)
		r.Get("/use_case/questions", h.Questions)
		r.Post(cfg.UI.ChatPath, h.Ask)
	})

	// API v1
	auth := middleware.NewAPIKeyAuth(cfg.APIKeys)
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(auth.Middleware)
		r.Post("/chat", h.APIChat)
	})

	return r
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, map[string]string{
		"status":  "healthy",
		"service": "sqlchat",
	})
}

func versionHandler(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, map[string]string{
			"version": cfg.Version,
			"service": "sqlchat",
		})
	}
}

func respondJSON(w http.ResponseWriter, data map[string]string) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}
