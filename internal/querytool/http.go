package querytool

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

// NewRouter serves the action group over plain HTTP for local runs:
//
//	GET  /getschema
//	GET  /querydatabase?query=...
//	POST /invoke          (raw action-group event)
//	GET  /openapi.json
func NewRouter(svc *Service, mw ...func(http.Handler) http.Handler) http.Handler {
	h := NewActionGroupHandler(svc)

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(mw...)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "healthy", "service": "sqlchat-querytool"})
	})
	r.Get("/openapi.json", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write(OpenAPISchema)
	})

	r.Get(PathGetSchema, func(w http.ResponseWriter, r *http.Request) {
		tables, err := svc.GetSchema(r.Context())
		if err != nil {
			status, body := errorStatus(err)
			respondJSON(w, status, body)
			return
		}
		respondJSON(w, http.StatusOK, tables)
	})

	r.Get(PathQueryDatabase, func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query().Get("query")
		if query == "" {
			respondJSON(w, http.StatusBadRequest, ErrorBody{StatusCode: http.StatusBadRequest, Message: "Missing required parameter: query"})
			return
		}
		records, err := svc.QueryDatabase(r.Context(), query)
		if err != nil {
			status, body := errorStatus(err)
			respondJSON(w, status, body)
			return
		}
		respondJSON(w, http.StatusOK, records)
	})

	r.Post("/invoke", func(w http.ResponseWriter, r *http.Request) {
		var ev ActionGroupEvent
		if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
			respondJSON(w, http.StatusBadRequest, ErrorBody{StatusCode: http.StatusBadRequest, Message: "Invalid request body"})
			return
		}
		resp, err := h.Handle(r.Context(), ev)
		if err != nil {
			respondJSON(w, http.StatusInternalServerError, ErrorBody{StatusCode: http.StatusInternalServerError, Message: err.Error()})
			return
		}
		respondJSON(w, http.StatusOK, resp)
	})

	return r
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
