package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"

	"github.com/nextlevelbuilder/dispatchd/internal/store"
)

// UserStore implements store.UserStore on Postgres.
type UserStore struct {
	db *sqlx.DB
}

func NewUserStore(db *sqlx.DB) *UserStore {
	return &UserStore{db: db}
}

func (s *UserStore) Insert(ctx context.Context, u *store.User) error {
	row := s.db.QueryRowContext(ctx,
		`INSERT INTO users (name, email, password_hash, verified)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, register_time`,
		u.Name, u.Email, u.PasswordHash, u.Verified,
	)
	if err := row.Scan(&u.ID, &u.RegisterTime); err != nil {
		if isUniqueViolation(err) {
			return store.ErrConflict
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *UserStore) GetByID(ctx context.Context, id int64) (*store.User, error) {
	return s.getWhere(ctx, "id = $1", id)
}

func (s *UserStore) GetByName(ctx context.Context, name string) (*store.User, error) {
	return s.getWhere(ctx, "name = $1", name)
}

func (s *UserStore) GetByEmail(ctx context.Context, email string) (*store.User, error) {
	return s.getWhere(ctx, "email = $1", email)
}

func (s *UserStore) getWhere(ctx context.Context, where string, arg any) (*store.User, error) {
	var u store.User
	err := s.db.GetContext(ctx, &u,
		`SELECT id, name, email, password_hash, verified, register_time, login_time
		   FROM users WHERE `+where, arg)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &u, nil
}

func (s *UserStore) Update(ctx context.Context, u *store.User) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE users SET name = $1, email = $2, password_hash = $3, verified = $4
		  WHERE id = $5`,
		u.Name, u.Email, u.PasswordHash, u.Verified, u.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrConflict
		}
		return fmt.Errorf("update user: %w", err)
	}
	return nil
}

func (s *UserStore) Delete(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM users WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	return nil
}

func (s *UserStore) TouchLogin(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE users SET login_time = $1 WHERE id = $2", time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("touch login: %w", err)
	}
	return nil
}

// isUniqueViolation reports whether err is a Postgres unique-constraint error.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
