package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/dispatchd/internal/cron"
)

func schedulerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scheduler",
		Short: "Run the cron fire loop (exactly one instance)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			e, cleanup, err := buildEngine(cfg)
			if err != nil {
				return err
			}
			defer cleanup()
			if err := e.Init(ctx); err != nil {
				return err
			}

			reg := e.Cron.(*cron.Registry)
			reg.SetOnFire(e.FireEntry)
			reg.Start(ctx)
			defer reg.Stop()

			slog.Info("scheduler started", "tz", cfg.Location().String())
			<-ctx.Done()
			return nil
		},
	}
}
