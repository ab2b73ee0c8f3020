package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/nextlevelbuilder/dispatchd/internal/cron"
	"github.com/nextlevelbuilder/dispatchd/internal/httpclient"
	"github.com/nextlevelbuilder/dispatchd/internal/store"
)

// fakeQueue records enqueues and cancellations in memory.
type fakeQueue struct {
	mu        sync.Mutex
	nextID    int
	enqueued  []int64
	deferred  map[string]time.Time
	cancelled []string
	failNext  bool
}

func newFakeQueue() *fakeQueue {
	return &fakeQueue{deferred: map[string]time.Time{}}
}

func (q *fakeQueue) Enqueue(ctx context.Context, taskID int64) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.failNext {
		q.failNext = false
		return "", errors.New("broker unavailable")
	}
	q.nextID++
	q.enqueued = append(q.enqueued, taskID)
	return fmt.Sprintf("msg-%d", q.nextID), nil
}

func (q *fakeQueue) EnqueueAt(ctx context.Context, taskID int64, eta time.Time) (string, error) {
	id, err := q.Enqueue(ctx, taskID)
	if err != nil {
		return "", err
	}
	q.mu.Lock()
	q.deferred[id] = eta
	q.mu.Unlock()
	return id, nil
}

func (q *fakeQueue) Cancel(ctx context.Context, messageID string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.cancelled = append(q.cancelled, messageID)
	return true
}

func (q *fakeQueue) Close() error { return nil }

func newTestEngine() (*Engine, *fakeQueue, *cron.Registry) {
	q := newFakeQueue()
	reg := cron.NewRegistry(cron.NewMemoryBackend(), time.UTC)
	e := &Engine{
		Tasks:  store.NewMemoryTaskStore(),
		Users:  store.NewMemoryUserStore(),
		Keys:   store.NewMemoryAPIKeyStore(),
		Queue:  q,
		Cron:   reg,
		Client: httpclient.New(time.Second),
	}
	return e, q, reg
}

func TestCreateTask_OneShotImmediate(t *testing.T) {
	e, q, _ := newTestEngine()
	ctx := context.Background()

	task, err := e.CreateTask(ctx, 1, TaskDraft{
		Name:       "t1",
		RequestURL: "http://example.com",
		Method:     "post",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if task.MessageID == "" {
		t.Error("one-shot task must have message_id after admission")
	}
	if task.JobID != "" {
		t.Error("one-shot task must not have job_id")
	}
	if task.Method != "POST" {
		t.Errorf("method should be upper-cased, got %q", task.Method)
	}
	if len(q.enqueued) != 1 || q.enqueued[0] != task.ID {
		t.Errorf("expected one enqueue for task %d, got %v", task.ID, q.enqueued)
	}

	// The handle is persisted, not just set on the returned value.
	stored, err := e.GetTask(ctx, task.ID, 1)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if stored.MessageID != task.MessageID {
		t.Errorf("message_id not persisted: %q vs %q", stored.MessageID, task.MessageID)
	}
}

func TestCreateTask_PastStartTimeIsImmediate(t *testing.T) {
	e, q, _ := newTestEngine()
	past := float64(time.Now().Add(-time.Hour).Unix())

	task, err := e.CreateTask(context.Background(), 1, TaskDraft{
		RequestURL: "http://example.com",
		StartTime:  &past,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if len(q.deferred) != 0 {
		t.Error("past start_time must enqueue immediately, not deferred")
	}
	if task.MessageID == "" {
		t.Error("expected message_id")
	}
}

func TestCreateTask_FutureStartTimeDefers(t *testing.T) {
	e, q, _ := newTestEngine()
	future := float64(time.Now().Add(time.Hour).UnixMilli()) / 1000

	task, err := e.CreateTask(context.Background(), 1, TaskDraft{
		RequestURL: "http://example.com",
		StartTime:  &future,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	eta, ok := q.deferred[task.MessageID]
	if !ok {
		t.Fatal("future start_time must use deferred enqueue")
	}
	if d := eta.Sub(time.Now()); d < 55*time.Minute || d > 65*time.Minute {
		t.Errorf("eta off: %v", d)
	}
}

func TestCreateTask_Cron(t *testing.T) {
	e, q, reg := newTestEngine()
	ctx := context.Background()

	task, err := e.CreateTask(ctx, 1, TaskDraft{
		RequestURL: "http://example.com",
		Cron:       "*/5 * * * *",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if task.JobID == "" {
		t.Error("cron task must have job_id after admission")
	}
	if task.MessageID != "" {
		t.Error("cron task must not have message_id after admission")
	}
	if task.CronCount != 0 {
		t.Errorf("fresh cron task must have cron_count 0, got %d", task.CronCount)
	}
	if len(q.enqueued) != 0 {
		t.Error("cron admission must not enqueue")
	}

	entries, _ := reg.Entries(ctx)
	if len(entries) != 1 || entries[0].TaskID != task.ID {
		t.Errorf("expected registry entry for task %d, got %+v", task.ID, entries)
	}
}

func TestCreateTask_InvalidCronLeavesNoRow(t *testing.T) {
	e, _, _ := newTestEngine()
	ctx := context.Background()

	_, err := e.CreateTask(ctx, 1, TaskDraft{
		RequestURL: "http://example.com",
		Cron:       "invalid * * *",
	})
	if err == nil {
		t.Fatal("expected error for invalid cron")
	}
	if !store.IsValidation(err) {
		t.Errorf("expected ValidationError, got %T", err)
	}

	tasks, _ := e.ListTasks(ctx, 1)
	if len(tasks) != 0 {
		t.Errorf("invalid cron must not leave a row behind, got %d", len(tasks))
	}
}

func TestCreateTask_InvalidMethodNeverCommits(t *testing.T) {
	e, q, _ := newTestEngine()
	ctx := context.Background()

	_, err := e.CreateTask(ctx, 1, TaskDraft{
		RequestURL: "http://example.com",
		Method:     "INVALID",
	})
	if err == nil {
		t.Fatal("expected validation error")
	}
	tasks, _ := e.ListTasks(ctx, 1)
	if len(tasks) != 0 || len(q.enqueued) != 0 {
		t.Error("validation failure must not commit state")
	}
}

func TestCreateTask_QueueFailureRollsBack(t *testing.T) {
	e, q, _ := newTestEngine()
	q.failNext = true
	ctx := context.Background()

	_, err := e.CreateTask(ctx, 1, TaskDraft{RequestURL: "http://example.com"})
	if err == nil {
		t.Fatal("expected queue error")
	}
	tasks, _ := e.ListTasks(ctx, 1)
	if len(tasks) != 0 {
		t.Error("queue failure at admission must roll the row back")
	}
}

// handleFailStore fails UpdateHandles while delegating everything else.
type handleFailStore struct {
	store.TaskStore
}

func (s *handleFailStore) UpdateHandles(ctx context.Context, id int64, upd store.HandleUpdate) error {
	return errors.New("connection reset")
}

func TestCreateTask_HandlePersistFailureCompensatesCron(t *testing.T) {
	e, q, reg := newTestEngine()
	e.Tasks = &handleFailStore{TaskStore: e.Tasks}
	ctx := context.Background()

	_, err := e.CreateTask(ctx, 1, TaskDraft{
		RequestURL: "http://example.com",
		Cron:       "* * * * *",
	})
	if err == nil {
		t.Fatal("expected error when job_id cannot be persisted")
	}

	// The registry entry must not be left firing with no handle to it.
	entries, _ := reg.Entries(ctx)
	if len(entries) != 0 {
		t.Errorf("cron entry should be removed on rollback, got %+v", entries)
	}
	tasks, _ := e.Tasks.ListForUser(ctx, 1)
	if len(tasks) != 0 {
		t.Errorf("row should be rolled back, got %d", len(tasks))
	}
	if len(q.enqueued) != 0 {
		t.Error("cron admission must not enqueue")
	}
}

func TestCreateTask_HandlePersistFailureCompensatesQueue(t *testing.T) {
	e, q, _ := newTestEngine()
	e.Tasks = &handleFailStore{TaskStore: e.Tasks}
	ctx := context.Background()

	_, err := e.CreateTask(ctx, 1, TaskDraft{RequestURL: "http://example.com"})
	if err == nil {
		t.Fatal("expected error when message_id cannot be persisted")
	}

	if len(q.cancelled) != 1 {
		t.Errorf("pending unit should be cancelled on rollback, got %v", q.cancelled)
	}
	tasks, _ := e.Tasks.ListForUser(ctx, 1)
	if len(tasks) != 0 {
		t.Errorf("row should be rolled back, got %d", len(tasks))
	}
}

func TestCreateTasks_BulkPartial(t *testing.T) {
	e, _, _ := newTestEngine()
	ctx := context.Background()

	ids := e.CreateTasks(ctx, 1, []TaskDraft{
		{Name: "a", RequestURL: "http://example.com/1"},
		{Name: "b", RequestURL: "http://example.com/2", Method: "INVALID"},
		{Name: "c", RequestURL: "http://example.com/3"},
	})
	if len(ids) != 2 {
		t.Fatalf("expected 2 admitted, got %d", len(ids))
	}

	tasks, _ := e.ListTasks(ctx, 1)
	if len(tasks) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(tasks))
	}
	if tasks[0].Name != "a" || tasks[1].Name != "c" {
		t.Errorf("expected elements 1 and 3 admitted, got %q %q", tasks[0].Name, tasks[1].Name)
	}
	for _, task := range tasks {
		if task.MessageID == "" {
			t.Errorf("task %d not dispatched", task.ID)
		}
	}
}

func TestGetTask_OwnerScoped(t *testing.T) {
	e, _, _ := newTestEngine()
	ctx := context.Background()

	task, err := e.CreateTask(ctx, 1, TaskDraft{RequestURL: "http://example.com"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// Another user's read is NOT_FOUND, never a permission error.
	if _, err := e.GetTask(ctx, task.ID, 2); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound for foreign owner, got %v", err)
	}
}

func TestDeleteTask_CancelsPendingUnit(t *testing.T) {
	e, q, _ := newTestEngine()
	ctx := context.Background()

	task, _ := e.CreateTask(ctx, 1, TaskDraft{RequestURL: "http://example.com"})
	if err := e.DeleteTask(ctx, task.ID, 1); err != nil {
		t.Fatalf("delete: %v", err)
	}

	if len(q.cancelled) != 1 || q.cancelled[0] != task.MessageID {
		t.Errorf("expected cancel of %q, got %v", task.MessageID, q.cancelled)
	}
	if _, err := e.GetTask(ctx, task.ID, 1); !errors.Is(err, store.ErrNotFound) {
		t.Error("row should be gone after delete")
	}
}

func TestDeleteTask_RemovesCronEntry(t *testing.T) {
	e, _, reg := newTestEngine()
	ctx := context.Background()

	task, _ := e.CreateTask(ctx, 1, TaskDraft{
		RequestURL: "http://example.com",
		Cron:       "* * * * *",
	})
	if err := e.DeleteTask(ctx, task.ID, 1); err != nil {
		t.Fatalf("delete: %v", err)
	}

	entries, _ := reg.Entries(ctx)
	if len(entries) != 0 {
		t.Errorf("cron entry should be removed, got %+v", entries)
	}
}

func TestDeleteTask_MissingCronEntryIsSwallowed(t *testing.T) {
	e, _, reg := newTestEngine()
	ctx := context.Background()

	task, _ := e.CreateTask(ctx, 1, TaskDraft{
		RequestURL: "http://example.com",
		Cron:       "* * * * *",
	})
	// Entry vanished out from under us (manual removal, expired, etc.).
	reg.Remove(ctx, task.JobID)

	if err := e.DeleteTask(ctx, task.ID, 1); err != nil {
		t.Fatalf("delete with missing cron entry must succeed: %v", err)
	}
}

func TestDeleteTask_ForeignOwnerNotFound(t *testing.T) {
	e, _, _ := newTestEngine()
	ctx := context.Background()

	task, _ := e.CreateTask(ctx, 1, TaskDraft{RequestURL: "http://example.com"})
	if err := e.DeleteTask(ctx, task.ID, 2); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	// Still present for the real owner.
	if _, err := e.GetTask(ctx, task.ID, 1); err != nil {
		t.Errorf("task should survive foreign delete: %v", err)
	}
}

func TestFireEntry_EnqueuesAndIncrements(t *testing.T) {
	e, q, _ := newTestEngine()
	ctx := context.Background()

	task, _ := e.CreateTask(ctx, 1, TaskDraft{
		RequestURL: "http://example.com",
		Cron:       "* * * * *",
	})

	e.FireEntry(ctx, cron.Entry{ID: task.JobID, TaskID: task.ID})
	e.FireEntry(ctx, cron.Entry{ID: task.JobID, TaskID: task.ID})

	got, _ := e.GetTask(ctx, task.ID, 1)
	if got.CronCount != 2 {
		t.Errorf("cron_count: expected 2, got %d", got.CronCount)
	}
	if len(q.enqueued) != 2 {
		t.Errorf("expected 2 enqueues, got %d", len(q.enqueued))
	}
}

func TestFireEntry_EnqueueFailureSkipsIncrement(t *testing.T) {
	e, q, _ := newTestEngine()
	ctx := context.Background()

	task, _ := e.CreateTask(ctx, 1, TaskDraft{
		RequestURL: "http://example.com",
		Cron:       "* * * * *",
	})

	q.failNext = true
	e.FireEntry(ctx, cron.Entry{ID: task.JobID, TaskID: task.ID})

	got, _ := e.GetTask(ctx, task.ID, 1)
	if got.CronCount != 0 {
		t.Errorf("failed enqueue must not increment cron_count, got %d", got.CronCount)
	}
}

func TestStats(t *testing.T) {
	e, _, _ := newTestEngine()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		e.CreateTask(ctx, 1, TaskDraft{RequestURL: "http://example.com"})
	}
	tasks, _ := e.ListTasks(ctx, 1)
	e.Tasks.Transition(ctx, tasks[0].ID, store.StatusCompleted, "")

	stats, err := e.Stats(ctx, 1)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.TotalTasks != 3 {
		t.Errorf("total: expected 3, got %d", stats.TotalTasks)
	}
	if stats.StatusCounts[store.StatusPending] != 2 || stats.StatusCounts[store.StatusCompleted] != 1 {
		t.Errorf("counts: %v", stats.StatusCounts)
	}
	if _, ok := stats.StatusCounts[store.StatusFailed]; ok {
		t.Error("zero-count statuses must be omitted")
	}
}
