package api

import (
	"net/http"
	"time"

	"github.com/nextlevelbuilder/dispatchd/internal/auth"
	"github.com/nextlevelbuilder/dispatchd/internal/store"
)

type apiKeyCreateRequest struct {
	Name      string     `json:"name"`
	ExpiresAt *time.Time `json:"expires_at"`
}

// handleCreateAPIKey mints a new key. The raw secret appears in this
// response and nowhere else; the store only keeps its hash.
func (s *Server) handleCreateAPIKey(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())

	var req apiKeyCreateRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	secret, prefix, hash, err := auth.NewAPIKeySecret()
	if err != nil {
		writeError(w, err)
		return
	}
	key := &store.APIKey{
		UserID:    user.ID,
		Name:      req.Name,
		Prefix:    prefix,
		KeyHash:   hash,
		Active:    true,
		ExpiresAt: req.ExpiresAt,
	}
	if err := s.engine.Keys.Insert(r.Context(), key); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"id":     key.ID,
		"name":   key.Name,
		"prefix": key.Prefix,
		"key":    secret,
	})
}

func (s *Server) handleListAPIKeys(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())

	keys, err := s.engine.Keys.ListForUser(r.Context(), user.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"apikeys": keys})
}

func (s *Server) handleDeleteAPIKey(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	deleted, err := s.engine.Keys.DeleteForUser(r.Context(), id, user.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	if !deleted {
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "not found"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"detail": "deleted"})
}
