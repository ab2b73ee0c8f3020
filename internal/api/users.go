package api

import (
	"log/slog"
	"net/http"

	"github.com/nextlevelbuilder/dispatchd/internal/auth"
	"github.com/nextlevelbuilder/dispatchd/internal/store"
)

type userCreateRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req userCreateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Name == "" || req.Email == "" || req.Password == "" {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"detail": "name, email and password are required"})
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		writeError(w, err)
		return
	}
	user := &store.User{Name: req.Name, Email: req.Email, PasswordHash: hash}
	if err := s.engine.Users.Insert(r.Context(), user); err != nil {
		writeError(w, err)
		return
	}

	slog.Info("user registered", "user_id", user.ID, "name", user.Name)
	writeJSON(w, http.StatusOK, map[string]any{"uid": user.ID})
}

type tokenRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// handleToken exchanges credentials for a session token. The caller
// identifies by name or email; a missing identity is a schema error,
// wrong credentials are 401.
func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Name == "" && req.Email == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "name or email is required"})
		return
	}

	var (
		user *store.User
		err  error
	)
	if req.Name != "" {
		user, err = s.engine.Users.GetByName(r.Context(), req.Name)
	} else {
		user, err = s.engine.Users.GetByEmail(r.Context(), req.Email)
	}
	if err != nil || !auth.VerifyPassword(req.Password, user.PasswordHash) {
		writeUnauthorized(w)
		return
	}

	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.engine.Users.TouchLogin(r.Context(), user.ID); err != nil {
		slog.Warn("login_time update failed", "user_id", user.ID, "error", err)
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

func (s *Server) handleGetMe(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, userFrom(r.Context()))
}

type userUpdateRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) handleUpdateMe(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())

	var req userUpdateRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if req.Name != "" {
		user.Name = req.Name
	}
	if req.Email != "" {
		user.Email = req.Email
	}
	if req.Password != "" {
		hash, err := auth.HashPassword(req.Password)
		if err != nil {
			writeError(w, err)
			return
		}
		user.PasswordHash = hash
	}

	if err := s.engine.Users.Update(r.Context(), user); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (s *Server) handleDeleteMe(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())
	if err := s.engine.Users.Delete(r.Context(), user.ID); err != nil {
		writeError(w, err)
		return
	}
	slog.Info("user deleted", "user_id", user.ID)
	writeJSON(w, http.StatusOK, map[string]string{"detail": "deleted"})
}
