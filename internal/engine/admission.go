package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/nextlevelbuilder/dispatchd/internal/store"
)

// TaskDraft is the validated-at-admission input for one task.
type TaskDraft struct {
	Name          string            `json:"name"`
	RequestURL    string            `json:"request_url"`
	Method        string            `json:"method"`
	Header        map[string]string `json:"header"`
	Body          json.RawMessage   `json:"body"`
	StartTime     *float64          `json:"start_time"` // unix seconds, fractional permitted
	CallbackURL   string            `json:"callback_url"`
	CallbackToken string            `json:"callback_token"`
	Cron          string            `json:"cron"`
}

// CreateTask admits one task: insert the row PENDING, then either register
// the cron entry or enqueue the dispatch unit, then persist the handle.
// Failures after the insert roll the row back before surfacing.
func (e *Engine) CreateTask(ctx context.Context, userID int64, d TaskDraft) (*store.RequestTask, error) {
	// Cron syntax pre-check: reject before any state is committed.
	if d.Cron != "" {
		if err := e.Cron.Validate(d.Cron); err != nil {
			return nil, err
		}
	}

	task := &store.RequestTask{
		UserID:        userID,
		Name:          d.Name,
		RequestURL:    d.RequestURL,
		Method:        d.Method,
		Header:        d.Header,
		Body:          d.Body,
		StartTime:     epochToTime(d.StartTime),
		Cron:          d.Cron,
		CallbackURL:   d.CallbackURL,
		CallbackToken: d.CallbackToken,
		Status:        store.StatusPending,
	}
	if err := e.Tasks.Insert(ctx, task); err != nil {
		return nil, err
	}

	if task.Cron != "" {
		jobID, err := e.Cron.Register(ctx, task.Cron, task.ID)
		if err != nil {
			e.rollback(ctx, task.ID, "cron register failed")
			return nil, err
		}
		task.JobID = jobID
		if err := e.Tasks.UpdateHandles(ctx, task.ID, store.HandleUpdate{JobID: &jobID}); err != nil {
			// An unpersisted job_id would leave the entry firing forever
			// with no handle to remove it by.
			if rerr := e.Cron.Remove(ctx, jobID); rerr != nil {
				slog.Warn("cron removal during rollback failed", "task_id", task.ID, "job_id", jobID, "error", rerr)
			}
			e.rollback(ctx, task.ID, "persist job_id failed")
			return nil, err
		}
		return task, nil
	}

	var messageID string
	var err error
	if eta := task.StartTime; eta != nil && eta.After(time.Now()) {
		messageID, err = e.Queue.EnqueueAt(ctx, task.ID, *eta)
	} else {
		// Absent or past start_time dispatches immediately.
		messageID, err = e.Queue.Enqueue(ctx, task.ID)
	}
	if err != nil {
		e.rollback(ctx, task.ID, "enqueue failed")
		return nil, fmt.Errorf("enqueue task %d: %w", task.ID, err)
	}

	task.MessageID = messageID
	if err := e.Tasks.UpdateHandles(ctx, task.ID, store.HandleUpdate{MessageID: &messageID}); err != nil {
		e.Queue.Cancel(ctx, messageID)
		e.rollback(ctx, task.ID, "persist message_id failed")
		return nil, err
	}
	return task, nil
}

// CreateTasks admits a batch; element failures skip that element only.
// The returned ids correspond to the elements that were admitted.
func (e *Engine) CreateTasks(ctx context.Context, userID int64, drafts []TaskDraft) []int64 {
	ids := make([]int64, 0, len(drafts))
	for i, d := range drafts {
		task, err := e.CreateTask(ctx, userID, d)
		if err != nil {
			slog.Warn("bulk create element rejected", "index", i, "name", d.Name, "error", err)
			continue
		}
		ids = append(ids, task.ID)
	}
	return ids
}

// GetTask reads one task scoped to its owner.
func (e *Engine) GetTask(ctx context.Context, id, userID int64) (*store.RequestTask, error) {
	return e.Tasks.GetForUser(ctx, id, userID)
}

// ListTasks reads all of a user's tasks.
func (e *Engine) ListTasks(ctx context.Context, userID int64) ([]store.RequestTask, error) {
	return e.Tasks.ListForUser(ctx, userID)
}

// DeleteTask revokes the pending dispatch unit and the cron registration
// (both best-effort), then removes the row. A stale unit that fires after
// the delete finds the task absent and discards itself.
func (e *Engine) DeleteTask(ctx context.Context, id, userID int64) error {
	task, err := e.Tasks.GetForUser(ctx, id, userID)
	if err != nil {
		return err
	}

	if task.MessageID != "" {
		if !e.Queue.Cancel(ctx, task.MessageID) {
			slog.Debug("pending unit not cancelled", "task_id", id, "message_id", task.MessageID)
		}
	}
	if task.JobID != "" {
		if err := e.Cron.Remove(ctx, task.JobID); err != nil {
			slog.Warn("cron removal failed", "task_id", id, "job_id", task.JobID, "error", err)
		}
	}

	deleted, err := e.Tasks.DeleteForUser(ctx, id, userID)
	if err != nil {
		return err
	}
	if !deleted {
		return store.ErrNotFound
	}
	return nil
}

// DashboardStats summarizes a user's tasks. Statuses with zero tasks are
// omitted from the counts.
type DashboardStats struct {
	TotalTasks   int64                      `json:"total_tasks"`
	StatusCounts map[store.TaskStatus]int64 `json:"status_counts"`
}

func (e *Engine) Stats(ctx context.Context, userID int64) (*DashboardStats, error) {
	total, counts, err := e.Tasks.StatusCounts(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &DashboardStats{TotalTasks: total, StatusCounts: counts}, nil
}

func (e *Engine) rollback(ctx context.Context, taskID int64, reason string) {
	if err := e.Tasks.Delete(ctx, taskID); err != nil {
		slog.Error("task rollback failed", "task_id", taskID, "reason", reason, "error", err)
	}
}

func epochToTime(sec *float64) *time.Time {
	if sec == nil {
		return nil
	}
	t := time.UnixMilli(int64(math.Round(*sec * 1000)))
	return &t
}
