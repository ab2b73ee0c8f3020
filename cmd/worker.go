package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/dispatchd/internal/queue"
)

func workerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Run a queue worker that dispatches tasks",
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

			consumer, err := queue.NewAsynqConsumer(cfg.RedisURL, cfg.WorkerConcurrency)
			if err != nil {
				return err
			}

			slog.Info("worker started", "concurrency", cfg.WorkerConcurrency)
			return consumer.Run(ctx, e.DispatchHandler())
		},
	}
}
