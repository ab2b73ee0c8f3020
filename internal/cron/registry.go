package cron

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/adhocore/gronx"

	"github.com/nextlevelbuilder/dispatchd/internal/store"
)

// DefaultMisfireGrace is how long after an intended fire a catch-up is still
// issued. Misfires older than this are dropped; at most one catch-up fire is
// issued per missed window.
const DefaultMisfireGrace = 60 * time.Second

// Registry owns the cron entries and the fire loop. Exactly one process may
// run the loop at a time; producers may Register/Remove from anywhere.
type Registry struct {
	backend Backend
	loc     *time.Location
	grace   time.Duration
	gx      *gronx.Gronx

	mu      sync.Mutex
	onFire  FireFunc
	running bool
	stop    chan struct{}
}

// NewRegistry creates a registry over the given backend. loc is the single
// process-wide cron timezone; nil means time.Local.
func NewRegistry(backend Backend, loc *time.Location) *Registry {
	if loc == nil {
		loc = time.Local
	}
	return &Registry{
		backend: backend,
		loc:     loc,
		grace:   DefaultMisfireGrace,
		gx:      gronx.New(),
	}
}

// SetOnFire binds the fire callback. Must be called before Start.
func (r *Registry) SetOnFire(fn FireFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onFire = fn
}

// SetMisfireGrace overrides the default misfire grace window.
func (r *Registry) SetMisfireGrace(d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.grace = d
}

// Validate checks a 5-field cron expression without registering it.
func (r *Registry) Validate(expr string) error {
	if len(strings.Fields(expr)) != 5 {
		return &store.ValidationError{Msg: fmt.Sprintf("Invalid cron expression: %s", expr)}
	}
	if !r.gx.IsValid(expr) {
		return &store.ValidationError{Msg: fmt.Sprintf("Invalid cron expression: %s", expr)}
	}
	return nil
}

// Register stores a new entry and returns its job id. The expression is
// validated here; invalid expressions never reach the backend.
func (r *Registry) Register(ctx context.Context, expr string, taskID int64) (string, error) {
	if err := r.Validate(expr); err != nil {
		return "", err
	}

	now := time.Now().In(r.loc)
	next, err := gronx.NextTickAfter(expr, now, false)
	if err != nil {
		return "", &store.ValidationError{Msg: fmt.Sprintf("Invalid cron expression: %s", expr)}
	}

	e := Entry{
		ID:          newEntryID(),
		Expr:        expr,
		TaskID:      taskID,
		CreatedAtMS: now.UnixMilli(),
	}
	if err := r.backend.PutEntry(ctx, e, next.UnixMilli()); err != nil {
		return "", err
	}

	slog.Info("cron entry registered", "job_id", e.ID, "task_id", taskID, "expr", expr)
	return e.ID, nil
}

// Remove deletes an entry. Idempotent: removing an unknown id is not an error.
func (r *Registry) Remove(ctx context.Context, jobID string) error {
	if err := r.backend.DeleteEntry(ctx, jobID); err != nil {
		return err
	}
	slog.Info("cron entry removed", "job_id", jobID)
	return nil
}

// Entries lists all registered entries.
func (r *Registry) Entries(ctx context.Context) ([]Entry, error) {
	return r.backend.Entries(ctx)
}

// Start begins the fire loop. Returns immediately; Stop halts the loop.
func (r *Registry) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return
	}
	r.stop = make(chan struct{})
	r.running = true
	go r.runLoop(ctx, r.stop)
	slog.Info("cron registry started", "tz", r.loc.String())
}

// Stop halts the fire loop.
func (r *Registry) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.running {
		return
	}
	close(r.stop)
	r.running = false
	slog.Info("cron registry stopped")
}

func (r *Registry) runLoop(ctx context.Context, stop chan struct{}) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.tick(ctx)
		}
	}
}

// tick fires every due entry once and advances its next-fire instant.
// Misfires beyond the grace window are coalesced into the recompute: the
// next run is always derived from now, so at most one catch-up fires.
func (r *Registry) tick(ctx context.Context) {
	times, err := r.backend.RunTimes(ctx)
	if err != nil {
		slog.Error("cron: failed to load run times", "error", err)
		return
	}

	now := time.Now().In(r.loc)
	nowMS := now.UnixMilli()

	for id, dueMS := range times {
		if dueMS > nowMS {
			continue
		}

		e, ok, err := r.backend.GetEntry(ctx, id)
		if err != nil {
			slog.Error("cron: failed to load entry", "job_id", id, "error", err)
			continue
		}
		if !ok {
			// Orphaned run time, entry was removed.
			r.backend.DeleteEntry(ctx, id)
			continue
		}

		next, err := gronx.NextTickAfter(e.Expr, now, false)
		if err != nil {
			slog.Error("cron: failed to compute next run", "job_id", id, "expr", e.Expr, "error", err)
			continue
		}
		if err := r.backend.SetRunTime(ctx, id, next.UnixMilli()); err != nil {
			slog.Error("cron: failed to advance run time", "job_id", id, "error", err)
			continue
		}

		late := time.Duration(nowMS-dueMS) * time.Millisecond
		if late > r.grace {
			slog.Warn("cron misfire dropped", "job_id", id, "task_id", e.TaskID, "late", late)
			continue
		}

		r.mu.Lock()
		fn := r.onFire
		r.mu.Unlock()
		if fn == nil {
			continue
		}
		go fn(ctx, e)
	}
}
