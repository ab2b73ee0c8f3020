// Package queue carries dispatch units between the admission layer and the
// worker processes. The backend is a durable at-least-once broker; the core
// only depends on enqueue, deferred enqueue, best-effort cancel, and consume.
package queue

import (
	"context"
	"encoding/json"
	"time"
)

// TypeDispatch is the task type carried on the wire for every dispatch unit.
const TypeDispatch = "task:dispatch"

// Unit is one scheduled execution of a task's outbound HTTP call.
type Unit struct {
	TaskID int64 `json:"task_id"`
}

// Marshal encodes a unit payload.
func (u Unit) Marshal() ([]byte, error) {
	return json.Marshal(u)
}

// DecodeUnit decodes a unit payload.
func DecodeUnit(data []byte) (Unit, error) {
	var u Unit
	err := json.Unmarshal(data, &u)
	return u, err
}

// Handler processes a single dispatch unit. A nil return acknowledges the
// unit; errors are terminal for the unit (the core does not re-queue).
type Handler func(ctx context.Context, u Unit) error

// Queue is the producer side of the broker.
type Queue interface {
	// Enqueue makes a unit immediately visible to workers.
	Enqueue(ctx context.Context, taskID int64) (messageID string, err error)

	// EnqueueAt hides the unit from workers until eta.
	EnqueueAt(ctx context.Context, taskID int64, eta time.Time) (messageID string, err error)

	// Cancel revokes an unclaimed unit. Best effort: after a worker claims
	// the unit this is a no-op and returns false.
	Cancel(ctx context.Context, messageID string) bool

	Close() error
}

// Consumer is the worker side of the broker.
type Consumer interface {
	// Run consumes units until ctx is cancelled, invoking handler for each.
	Run(ctx context.Context, handler Handler) error
}
