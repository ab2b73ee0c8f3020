// Package api exposes the admin HTTP surface: task CRUD, dashboard stats,
// user accounts, session tokens, and API keys. Handlers are thin; the
// admission rules live in internal/engine.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/nextlevelbuilder/dispatchd/internal/auth"
	"github.com/nextlevelbuilder/dispatchd/internal/engine"
	"github.com/nextlevelbuilder/dispatchd/internal/store"
)

// Server holds the handler dependencies for the admin API.
type Server struct {
	engine *engine.Engine
	tokens *auth.TokenIssuer
}

func NewServer(e *engine.Engine, tokens *auth.TokenIssuer) *Server {
	return &Server{engine: e, tokens: tokens}
}

// Routes builds the full admin mux.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/v1/tasks", s.requireUser(s.handleCreateTask))
	mux.HandleFunc("POST /api/v1/tasks/bulk", s.requireUser(s.handleCreateTasksBulk))
	mux.HandleFunc("GET /api/v1/tasks", s.requireUser(s.handleListTasks))
	mux.HandleFunc("GET /api/v1/tasks/{id}", s.requireUser(s.handleGetTask))
	mux.HandleFunc("DELETE /api/v1/tasks/{id}", s.requireUser(s.handleDeleteTask))

	mux.HandleFunc("GET /api/v1/stats/dashboard", s.requireUser(s.handleDashboard))

	mux.HandleFunc("POST /api/v1/users", s.handleCreateUser)
	mux.HandleFunc("POST /api/v1/users/token", s.handleToken)
	mux.HandleFunc("GET /api/v1/users/me", s.requireUser(s.handleGetMe))
	mux.HandleFunc("PUT /api/v1/users/me", s.requireUser(s.handleUpdateMe))
	mux.HandleFunc("DELETE /api/v1/users/me", s.requireUser(s.handleDeleteMe))

	mux.HandleFunc("POST /api/v1/apikeys", s.requireUser(s.handleCreateAPIKey))
	mux.HandleFunc("GET /api/v1/apikeys", s.requireUser(s.handleListAPIKeys))
	mux.HandleFunc("DELETE /api/v1/apikeys/{id}", s.requireUser(s.handleDeleteAPIKey))

	return mux
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("response encode failed", "error", err)
	}
}

// writeError maps domain errors onto the wire taxonomy: invalid cron is
// 400, other validation failures 422, conflicts 400, missing resources
// 404, everything else 500.
func writeError(w http.ResponseWriter, err error) {
	var ve *store.ValidationError
	switch {
	case errors.As(err, &ve):
		status := http.StatusUnprocessableEntity
		if strings.HasPrefix(ve.Msg, "Invalid cron expression") {
			status = http.StatusBadRequest
		}
		writeJSON(w, status, map[string]string{"detail": ve.Msg})
	case errors.Is(err, store.ErrConflict):
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "name or email already registered"})
	case errors.Is(err, store.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "not found"})
	default:
		slog.Error("request failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"detail": "internal error"})
	}
}

func writeUnauthorized(w http.ResponseWriter) {
	writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "unauthorized"})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"detail": "invalid JSON body"})
		return false
	}
	return true
}

// HTTPServer wraps the routes in a configured http.Server. Shutdown is
// the caller's responsibility.
func (s *Server) HTTPServer(addr string) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
}
