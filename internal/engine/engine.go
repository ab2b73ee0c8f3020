// Package engine wires the dispatch core together. An Engine value holds the
// injected handles (store, queue, cron registry, HTTP client) and exposes the
// admission operations used by the API layer, the cron fire callback, and the
// worker-side dispatch handler. There is no process-wide mutable singleton;
// every process builds its own Engine at startup.
package engine

import (
	"context"
	"errors"
	"log/slog"

	"github.com/nextlevelbuilder/dispatchd/internal/cron"
	"github.com/nextlevelbuilder/dispatchd/internal/dispatch"
	"github.com/nextlevelbuilder/dispatchd/internal/httpclient"
	"github.com/nextlevelbuilder/dispatchd/internal/queue"
	"github.com/nextlevelbuilder/dispatchd/internal/store"
)

// CronScheduler is the slice of the cron registry the engine needs.
type CronScheduler interface {
	Validate(expr string) error
	Register(ctx context.Context, expr string, taskID int64) (string, error)
	Remove(ctx context.Context, jobID string) error
}

// Engine owns the dependency handles for one process.
type Engine struct {
	Tasks  store.TaskStore
	Users  store.UserStore
	Keys   store.APIKeyStore
	Queue  queue.Queue
	Cron   CronScheduler
	Client *httpclient.Client
}

// Init is the startup contract: a process must call Init before serving,
// consuming, or scheduling. It verifies the handles the process will use
// are wired.
func (e *Engine) Init(ctx context.Context) error {
	if e.Tasks == nil {
		return errors.New("engine: task store not configured")
	}
	if e.Queue == nil {
		return errors.New("engine: queue not configured")
	}
	if e.Client == nil {
		e.Client = httpclient.New(httpclient.DefaultTimeout)
	}
	return nil
}

// DispatchHandler returns the worker-side handler for dispatch units.
func (e *Engine) DispatchHandler() queue.Handler {
	actor := dispatch.NewActor(e.Tasks, e.Client)
	return actor.Handle
}

// FireEntry is the callback bound to every cron registration: enqueue one
// dispatch unit for the entry's task and atomically bump its cron_count.
// The count is not incremented when the enqueue fails.
func (e *Engine) FireEntry(ctx context.Context, entry cron.Entry) {
	if _, err := e.Queue.Enqueue(ctx, entry.TaskID); err != nil {
		slog.Error("cron fire enqueue failed", "job_id", entry.ID, "task_id", entry.TaskID, "error", err)
		return
	}
	if err := e.Tasks.IncrementCronCount(ctx, entry.TaskID); err != nil {
		slog.Error("cron_count increment failed", "task_id", entry.TaskID, "error", err)
	}
}
