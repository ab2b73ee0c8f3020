// Package bootstrap seeds the default admin account at startup.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/nextlevelbuilder/dispatchd/internal/auth"
	"github.com/nextlevelbuilder/dispatchd/internal/config"
	"github.com/nextlevelbuilder/dispatchd/internal/store"
)

// EnsureAdmin creates the configured admin user if no user with that
// name exists yet. Idempotent: a second run is a no-op. Missing admin
// config skips seeding entirely.
func EnsureAdmin(ctx context.Context, users store.UserStore, cfg *config.Config) error {
	if cfg.AdminName == "" || cfg.AdminPassword == "" {
		slog.Debug("admin bootstrap skipped, no credentials configured")
		return nil
	}

	if _, err := users.GetByName(ctx, cfg.AdminName); err == nil {
		return nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("look up admin user: %w", err)
	}

	hash, err := auth.HashPassword(cfg.AdminPassword)
	if err != nil {
		return err
	}
	admin := &store.User{
		Name:         cfg.AdminName,
		Email:        cfg.AdminEmail,
		PasswordHash: hash,
		Verified:     true,
	}
	if err := users.Insert(ctx, admin); err != nil {
		// Lost a race with another process seeding the same user.
		if errors.Is(err, store.ErrConflict) {
			return nil
		}
		return fmt.Errorf("create admin user: %w", err)
	}

	slog.Info("admin user created", "user_id", admin.ID, "name", admin.Name)
	return nil
}
