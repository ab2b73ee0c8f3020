package cmd

import (
	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/dispatchd/internal/bootstrap"
	"github.com/nextlevelbuilder/dispatchd/internal/store/pg"
)

func createAdminCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "createadmin",
		Short: "Create the default admin user from config",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			db, err := pg.Open(cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer db.Close()
			return bootstrap.EnsureAdmin(cmd.Context(), pg.NewUserStore(db), cfg)
		},
	}
}
