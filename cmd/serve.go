package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/nextlevelbuilder/dispatchd/internal/api"
	"github.com/nextlevelbuilder/dispatchd/internal/auth"
	"github.com/nextlevelbuilder/dispatchd/internal/bootstrap"
	"github.com/nextlevelbuilder/dispatchd/internal/config"
	"github.com/nextlevelbuilder/dispatchd/internal/cron"
	"github.com/nextlevelbuilder/dispatchd/internal/engine"
	"github.com/nextlevelbuilder/dispatchd/internal/queue"
	"github.com/nextlevelbuilder/dispatchd/internal/store/pg"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the admin API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return runServe(cfg)
		},
	}
}

// buildEngine wires the shared dependency set used by every process role.
func buildEngine(cfg *config.Config) (*engine.Engine, func(), error) {
	db, err := pg.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	q, err := queue.NewAsynqQueue(cfg.RedisURL)
	if err != nil {
		db.Close()
		return nil, nil, err
	}
	backend, err := cron.NewRedisBackend(cfg.RedisURL)
	if err != nil {
		db.Close()
		q.Close()
		return nil, nil, err
	}

	e := &engine.Engine{
		Tasks: pg.NewTaskStore(db),
		Users: pg.NewUserStore(db),
		Keys:  pg.NewAPIKeyStore(db),
		Queue: q,
		Cron:  cron.NewRegistry(backend, cfg.Location()),
	}
	cleanup := func() {
		q.Close()
		db.Close()
	}
	return e, cleanup, nil
}

func runServe(cfg *config.Config) error {
	if cfg.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
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
	if err := bootstrap.EnsureAdmin(ctx, e.Users, cfg); err != nil {
		return err
	}

	server := api.NewServer(e, auth.NewTokenIssuer(cfg.JWTSecret, auth.DefaultTokenTTL))
	httpSrv := server.HTTPServer(cfg.ListenAddr)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("admin API listening", "addr", cfg.ListenAddr)
		if err := httpSrv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
