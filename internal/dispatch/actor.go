// Package dispatch executes dispatch units: the outbound HTTP call, the task
// status transitions, and the callback envelope delivery.
package dispatch

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/nextlevelbuilder/dispatchd/internal/httpclient"
	"github.com/nextlevelbuilder/dispatchd/internal/queue"
	"github.com/nextlevelbuilder/dispatchd/internal/store"
)

// Envelope statuses: COMPLETE means the HTTP call returned any status code;
// FAIL means the transport failed before a response arrived.
const (
	StatusComplete = "COMPLETE"
	StatusFail     = "FAIL"
)

// Envelope is the JSON object POSTed to the task's callback_url after each
// dispatch attempt.
type Envelope struct {
	Response  *string `json:"response"`
	Code      *int    `json:"code"`
	Exception *string `json:"exception"`
	Status    string  `json:"status"`
}

// CallbackTokenHeader carries the task's callback_token to the owner.
const CallbackTokenHeader = "X-Callback-Token"

// Actor is the unit-of-work executed by workers. Delivery is at-least-once:
// a duplicate unit re-runs the outbound call; the task row is last-write-wins.
type Actor struct {
	tasks  store.TaskStore
	client *httpclient.Client
}

func NewActor(tasks store.TaskStore, client *httpclient.Client) *Actor {
	return &Actor{tasks: tasks, client: client}
}

// Handle processes one dispatch unit end to end.
func (a *Actor) Handle(ctx context.Context, u queue.Unit) error {
	task, err := a.tasks.Get(ctx, u.TaskID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// Deleted after enqueue; stale unit, discard.
			slog.Info("dispatch unit for absent task discarded", "task_id", u.TaskID)
			return nil
		}
		return err
	}

	if err := a.tasks.Transition(ctx, task.ID, store.StatusRunning, ""); err != nil {
		return err
	}

	resp, callErr := a.client.Do(ctx, task.Method, task.RequestURL, task.Header, task.Body)

	var env Envelope
	if callErr != nil {
		msg := callErr.Error()
		env = Envelope{Exception: &msg, Status: StatusFail}
		if err := a.tasks.Transition(ctx, task.ID, store.StatusFailed, msg); err != nil {
			slog.Error("failed to record task failure", "task_id", task.ID, "error", err)
		}
		slog.Warn("task request failed", "task_id", task.ID, "url", task.RequestURL, "error", msg)
	} else {
		body := strings.ToValidUTF8(string(resp.Body), "�")
		code := resp.StatusCode
		env = Envelope{Response: &body, Code: &code, Status: StatusComplete}
		if err := a.tasks.Transition(ctx, task.ID, store.StatusCompleted, ""); err != nil {
			slog.Error("failed to record task completion", "task_id", task.ID, "error", err)
		}
		slog.Info("task request completed", "task_id", task.ID, "code", code)
	}

	a.deliverCallback(ctx, task, env)
	return nil
}

// deliverCallback posts the envelope to the task's callback_url, if any.
// Failures are logged and dropped; they never touch the task status.
func (a *Actor) deliverCallback(ctx context.Context, task *store.RequestTask, env Envelope) {
	if task.CallbackURL == "" {
		return
	}
	var header map[string]string
	if task.CallbackToken != "" {
		header = map[string]string{CallbackTokenHeader: task.CallbackToken}
	}
	if err := a.client.PostJSON(ctx, task.CallbackURL, header, env); err != nil {
		slog.Warn("callback delivery failed", "task_id", task.ID, "callback_url", task.CallbackURL, "error", err)
	}
}
