package pg

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/nextlevelbuilder/dispatchd/internal/store"
)

// APIKeyStore implements store.APIKeyStore on Postgres.
type APIKeyStore struct {
	db *sqlx.DB
}

func NewAPIKeyStore(db *sqlx.DB) *APIKeyStore {
	return &APIKeyStore{db: db}
}

func (s *APIKeyStore) Insert(ctx context.Context, k *store.APIKey) error {
	row := s.db.QueryRowContext(ctx,
		`INSERT INTO api_keys (user_id, name, prefix, key_hash, active, expires_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, created_at`,
		k.UserID, k.Name, k.Prefix, k.KeyHash, k.Active, k.ExpiresAt,
	)
	if err := row.Scan(&k.ID, &k.CreatedAt); err != nil {
		return fmt.Errorf("insert api key: %w", err)
	}
	return nil
}

func (s *APIKeyStore) ListForUser(ctx context.Context, userID int64) ([]store.APIKey, error) {
	keys := []store.APIKey{}
	err := s.db.SelectContext(ctx, &keys,
		`SELECT id, user_id, name, prefix, key_hash, active, created_at, expires_at
		   FROM api_keys WHERE user_id = $1 ORDER BY id`, userID)
	if err != nil {
		return nil, fmt.Errorf("list api keys: %w", err)
	}
	return keys, nil
}

// FindByPrefix returns all candidate keys sharing the 8-char prefix. The
// caller verifies the full secret against each candidate's hash.
func (s *APIKeyStore) FindByPrefix(ctx context.Context, prefix string) ([]store.APIKey, error) {
	keys := []store.APIKey{}
	err := s.db.SelectContext(ctx, &keys,
		`SELECT id, user_id, name, prefix, key_hash, active, created_at, expires_at
		   FROM api_keys WHERE prefix = $1`, prefix)
	if err != nil {
		return nil, fmt.Errorf("find api keys: %w", err)
	}
	return keys, nil
}

func (s *APIKeyStore) DeleteForUser(ctx context.Context, id, userID int64) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM api_keys WHERE id = $1 AND user_id = $2", id, userID)
	if err != nil {
		return false, fmt.Errorf("delete api key: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}
