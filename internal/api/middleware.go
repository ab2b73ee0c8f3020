package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/nextlevelbuilder/dispatchd/internal/auth"
	"github.com/nextlevelbuilder/dispatchd/internal/store"
)

// APIKeyHeader carries a full key secret as an alternative to a bearer token.
const APIKeyHeader = "X-API-KEY"

type ctxKey int

const userKey ctxKey = iota

// userFrom returns the authenticated user stashed by requireUser.
func userFrom(ctx context.Context) *store.User {
	u, _ := ctx.Value(userKey).(*store.User)
	return u
}

func extractBearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if !strings.HasPrefix(h, "Bearer ") {
		return ""
	}
	return strings.TrimPrefix(h, "Bearer ")
}

// requireUser authenticates via bearer token or API key and injects the
// resolved user into the request context. A deleted user's token stops
// working immediately because the id is re-resolved on every request.
func (s *Server) requireUser(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := s.authenticate(r)
		if user == nil {
			writeUnauthorized(w)
			return
		}
		next(w, r.WithContext(context.WithValue(r.Context(), userKey, user)))
	}
}

func (s *Server) authenticate(r *http.Request) *store.User {
	if raw := extractBearerToken(r); raw != "" {
		uid, err := s.tokens.Verify(raw)
		if err != nil {
			return nil
		}
		user, err := s.engine.Users.GetByID(r.Context(), uid)
		if err != nil {
			return nil
		}
		return user
	}

	if secret := r.Header.Get(APIKeyHeader); secret != "" {
		return s.authenticateAPIKey(r, secret)
	}
	return nil
}

// authenticateAPIKey resolves candidates by prefix, then verifies the full
// secret against each stored hash. Prefix collisions are possible and
// handled by checking every candidate.
func (s *Server) authenticateAPIKey(r *http.Request, secret string) *store.User {
	if len(secret) < auth.APIKeyPrefixLen {
		return nil
	}
	candidates, err := s.engine.Keys.FindByPrefix(r.Context(), secret[:auth.APIKeyPrefixLen])
	if err != nil {
		return nil
	}
	now := time.Now()
	for i := range candidates {
		k := &candidates[i]
		if !k.Usable(now) {
			continue
		}
		if !auth.VerifyAPIKeySecret(secret, k.KeyHash) {
			continue
		}
		user, err := s.engine.Users.GetByID(r.Context(), k.UserID)
		if err != nil {
			return nil
		}
		return user
	}
	return nil
}
