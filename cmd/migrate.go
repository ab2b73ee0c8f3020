package cmd

import (
	"errors"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/dispatchd/internal/store/pg"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.DatabaseURL == "" {
				return errors.New("database URL is required (PG_URL)")
			}
			if err := pg.Migrate(cfg.DatabaseURL); err != nil {
				return err
			}
			slog.Info("migrations applied")
			return nil
		},
	}
}
