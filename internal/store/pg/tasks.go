package pg

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/nextlevelbuilder/dispatchd/internal/store"
)

// TaskStore implements store.TaskStore on Postgres.
type TaskStore struct {
	db *sqlx.DB
}

func NewTaskStore(db *sqlx.DB) *TaskStore {
	return &TaskStore{db: db}
}

const taskColumns = `id, user_id, name, request_url, method, header, body,
	start_time, cron, callback_url, callback_token, message_id, job_id,
	cron_count, status, error_message, created_at`

func (s *TaskStore) Insert(ctx context.Context, t *store.RequestTask) error {
	if err := store.ValidateTask(t); err != nil {
		return err
	}
	if t.Status == "" {
		t.Status = store.StatusPending
	}

	header, err := json.Marshal(headerOrEmpty(t.Header))
	if err != nil {
		return fmt.Errorf("marshal header: %w", err)
	}
	body := t.Body
	if len(body) == 0 {
		body = json.RawMessage(`{}`)
	}

	row := s.db.QueryRowContext(ctx,
		`INSERT INTO request_tasks
		   (user_id, name, request_url, method, header, body, start_time,
		    cron, callback_url, callback_token, status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 RETURNING id, created_at`,
		t.UserID, t.Name, t.RequestURL, t.Method, header, []byte(body),
		t.StartTime, t.Cron, t.CallbackURL, t.CallbackToken, t.Status,
	)
	if err := row.Scan(&t.ID, &t.CreatedAt); err != nil {
		return fmt.Errorf("insert task: %w", err)
	}
	return nil
}

func (s *TaskStore) Get(ctx context.Context, id int64) (*store.RequestTask, error) {
	return s.getWhere(ctx, "id = $1", id)
}

func (s *TaskStore) GetForUser(ctx context.Context, id, userID int64) (*store.RequestTask, error) {
	return s.getWhere(ctx, "id = $1 AND user_id = $2", id, userID)
}

func (s *TaskStore) getWhere(ctx context.Context, where string, args ...any) (*store.RequestTask, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+taskColumns+" FROM request_tasks WHERE "+where, args...)
	t, err := scanTask(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("get task: %w", err)
	}
	return t, nil
}

func (s *TaskStore) ListForUser(ctx context.Context, userID int64) ([]store.RequestTask, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+taskColumns+" FROM request_tasks WHERE user_id = $1 ORDER BY id", userID)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	result := []store.RequestTask{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		result = append(result, *t)
	}
	return result, rows.Err()
}

func (s *TaskStore) UpdateHandles(ctx context.Context, id int64, upd store.HandleUpdate) error {
	var sets []string
	var args []any
	i := 1
	if upd.MessageID != nil {
		sets = append(sets, fmt.Sprintf("message_id = $%d", i))
		args = append(args, *upd.MessageID)
		i++
	}
	if upd.JobID != nil {
		sets = append(sets, fmt.Sprintf("job_id = $%d", i))
		args = append(args, *upd.JobID)
		i++
	}
	if len(sets) == 0 {
		return nil
	}
	args = append(args, id)
	q := fmt.Sprintf("UPDATE request_tasks SET %s WHERE id = $%d", strings.Join(sets, ", "), i)
	_, err := s.db.ExecContext(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("update handles: %w", err)
	}
	return nil
}

func (s *TaskStore) Transition(ctx context.Context, id int64, status store.TaskStatus, errorMessage string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE request_tasks SET status = $1, error_message = $2 WHERE id = $3",
		status, errorMessage, id)
	if err != nil {
		return fmt.Errorf("transition task: %w", err)
	}
	return nil
}

// IncrementCronCount is a single-statement atomic increment.
func (s *TaskStore) IncrementCronCount(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE request_tasks SET cron_count = cron_count + 1 WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("increment cron_count: %w", err)
	}
	return nil
}

func (s *TaskStore) Delete(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM request_tasks WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	return nil
}

func (s *TaskStore) DeleteForUser(ctx context.Context, id, userID int64) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM request_tasks WHERE id = $1 AND user_id = $2", id, userID)
	if err != nil {
		return false, fmt.Errorf("delete task: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (s *TaskStore) StatusCounts(ctx context.Context, userID int64) (int64, map[store.TaskStatus]int64, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT status, COUNT(*) FROM request_tasks WHERE user_id = $1 GROUP BY status", userID)
	if err != nil {
		return 0, nil, fmt.Errorf("status counts: %w", err)
	}
	defer rows.Close()

	var total int64
	counts := map[store.TaskStatus]int64{}
	for rows.Next() {
		var status store.TaskStatus
		var n int64
		if err := rows.Scan(&status, &n); err != nil {
			return 0, nil, fmt.Errorf("scan count: %w", err)
		}
		counts[status] = n
		total += n
	}
	return total, counts, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(r rowScanner) (*store.RequestTask, error) {
	var t store.RequestTask
	var header, body []byte
	var startTime sql.NullTime
	err := r.Scan(
		&t.ID, &t.UserID, &t.Name, &t.RequestURL, &t.Method, &header, &body,
		&startTime, &t.Cron, &t.CallbackURL, &t.CallbackToken, &t.MessageID,
		&t.JobID, &t.CronCount, &t.Status, &t.ErrorMessage, &t.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if startTime.Valid {
		st := startTime.Time
		t.StartTime = &st
	}
	t.Header = map[string]string{}
	if len(header) > 0 {
		if err := json.Unmarshal(header, &t.Header); err != nil {
			return nil, fmt.Errorf("decode header: %w", err)
		}
	}
	t.Body = json.RawMessage(body)
	return &t, nil
}

func headerOrEmpty(h map[string]string) map[string]string {
	if h == nil {
		return map[string]string{}
	}
	return h
}
