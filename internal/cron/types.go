// Package cron is the durable cron registry: entries persist across process
// restarts, a single active instance fires them on schedule, and each fire
// invokes a registered callback. Expressions are standard 5-field cron.
package cron

import (
	"context"

	"github.com/google/uuid"
)

// Entry is one cron registration bound to a task.
type Entry struct {
	ID          string `json:"id"`
	Expr        string `json:"expr"`
	TaskID      int64  `json:"task_id"`
	CreatedAtMS int64  `json:"created_at_ms"`
}

// FireFunc is invoked once per matching instant for an entry.
type FireFunc func(ctx context.Context, e Entry)

// Backend persists entries and their next-fire bookkeeping. Implementations
// must survive process restarts.
type Backend interface {
	// Entries returns all registered entries.
	Entries(ctx context.Context) ([]Entry, error)

	// GetEntry returns an entry by id, or false when absent.
	GetEntry(ctx context.Context, id string) (Entry, bool, error)

	// PutEntry stores an entry and its next run time (unix ms).
	PutEntry(ctx context.Context, e Entry, nextMS int64) error

	// DeleteEntry removes an entry and its run time. Missing ids are not errors.
	DeleteEntry(ctx context.Context, id string) error

	// RunTimes returns the id → next-fire (unix ms) map.
	RunTimes(ctx context.Context) (map[string]int64, error)

	// SetRunTime updates an entry's next-fire instant.
	SetRunTime(ctx context.Context, id string, nextMS int64) error
}

func newEntryID() string {
	return uuid.Must(uuid.NewV7()).String()
}
