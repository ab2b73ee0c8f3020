// Package store defines the domain types and storage interfaces for the
// dispatch core: users, API keys, and request tasks. Implementations live
// in subpackages (store/pg for Postgres).
package store

import (
	"context"
	"encoding/json"
	"time"
)

// TaskStatus is the lifecycle status of a request task.
type TaskStatus string

const (
	StatusPending   TaskStatus = "PENDING"
	StatusRunning   TaskStatus = "RUNNING"
	StatusCompleted TaskStatus = "COMPLETED"
	StatusFailed    TaskStatus = "FAILED"

	// StatusCancelled is part of the taxonomy but no code path writes it yet.
	// Reserved for pre-claim cancellation bookkeeping.
	StatusCancelled TaskStatus = "CANCELLED"
)

// User owns tasks and API keys.
type User struct {
	ID           int64      `db:"id" json:"id"`
	Name         string     `db:"name" json:"name"`
	Email        string     `db:"email" json:"email"`
	PasswordHash string     `db:"password_hash" json:"-"`
	Verified     bool       `db:"verified" json:"verified"`
	RegisterTime time.Time  `db:"register_time" json:"register_time"`
	LoginTime    *time.Time `db:"login_time" json:"login_time,omitempty"`
}

// APIKey is the stored form of an issued key. The raw secret is never
// persisted; only its hash and an 8-char prefix used for lookup.
type APIKey struct {
	ID        int64      `db:"id" json:"id"`
	UserID    int64      `db:"user_id" json:"user_id"`
	Name      string     `db:"name" json:"name"`
	Prefix    string     `db:"prefix" json:"prefix"`
	KeyHash   string     `db:"key_hash" json:"-"`
	Active    bool       `db:"active" json:"active"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	ExpiresAt *time.Time `db:"expires_at" json:"expires_at,omitempty"`
}

// Usable reports whether the key may authenticate a request right now.
func (k *APIKey) Usable(now time.Time) bool {
	if !k.Active {
		return false
	}
	if k.ExpiresAt != nil && now.After(*k.ExpiresAt) {
		return false
	}
	return true
}

// RequestTask is the central entity: one outbound HTTP request to dispatch
// once, at a wall-clock time, or on a cron schedule.
type RequestTask struct {
	ID            int64             `db:"id"`
	UserID        int64             `db:"user_id"`
	Name          string            `db:"name"`
	RequestURL    string            `db:"request_url"`
	Method        string            `db:"method"`
	Header        map[string]string `db:"-"`
	Body          json.RawMessage   `db:"body"`
	StartTime     *time.Time        `db:"start_time"`
	Cron          string            `db:"cron"`
	CallbackURL   string            `db:"callback_url"`
	CallbackToken string            `db:"callback_token"`
	MessageID     string            `db:"message_id"`
	JobID         string            `db:"job_id"`
	CronCount     int64             `db:"cron_count"`
	Status        TaskStatus        `db:"status"`
	ErrorMessage  string            `db:"error_message"`
	CreatedAt     time.Time         `db:"created_at"`
}

// ToDict returns the wire form returned by the admin API. Input fields
// come back verbatim, with method upper-cased at persistence time.
func (t *RequestTask) ToDict() map[string]any {
	header := t.Header
	if header == nil {
		header = map[string]string{}
	}
	body := t.Body
	if len(body) == 0 {
		body = json.RawMessage(`{}`)
	}
	d := map[string]any{
		"id":             t.ID,
		"user_id":        t.UserID,
		"name":           t.Name,
		"request_url":    t.RequestURL,
		"method":         t.Method,
		"header":         header,
		"body":           body,
		"cron":           nullableStr(t.Cron),
		"callback_url":   nullableStr(t.CallbackURL),
		"callback_token": nullableStr(t.CallbackToken),
		"message_id":     nullableStr(t.MessageID),
		"job_id":         nullableStr(t.JobID),
		"cron_count":     t.CronCount,
		"status":         string(t.Status),
		"error_message":  nullableStr(t.ErrorMessage),
		"created_at":     t.CreatedAt,
	}
	if t.StartTime != nil {
		d["start_time"] = float64(t.StartTime.UnixMilli()) / 1000
	} else {
		d["start_time"] = nil
	}
	return d
}

func nullableStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// HandleUpdate carries the schedule handles written back after admission.
// A nil field leaves the column untouched.
type HandleUpdate struct {
	MessageID *string
	JobID     *string
}

// TaskStore persists request tasks. It is the source of truth for task
// lifecycle; only workers transition status.
type TaskStore interface {
	Insert(ctx context.Context, t *RequestTask) error
	Get(ctx context.Context, id int64) (*RequestTask, error)
	GetForUser(ctx context.Context, id, userID int64) (*RequestTask, error)
	ListForUser(ctx context.Context, userID int64) ([]RequestTask, error)
	UpdateHandles(ctx context.Context, id int64, upd HandleUpdate) error
	Transition(ctx context.Context, id int64, status TaskStatus, errorMessage string) error
	IncrementCronCount(ctx context.Context, id int64) error
	Delete(ctx context.Context, id int64) error
	DeleteForUser(ctx context.Context, id, userID int64) (bool, error)
	StatusCounts(ctx context.Context, userID int64) (total int64, counts map[TaskStatus]int64, err error)
}

// UserStore persists users. Insert and Update surface unique-constraint
// violations on name/email as ErrConflict.
type UserStore interface {
	Insert(ctx context.Context, u *User) error
	GetByID(ctx context.Context, id int64) (*User, error)
	GetByName(ctx context.Context, name string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	Update(ctx context.Context, u *User) error
	Delete(ctx context.Context, id int64) error
	TouchLogin(ctx context.Context, id int64) error
}

// APIKeyStore persists API keys.
type APIKeyStore interface {
	Insert(ctx context.Context, k *APIKey) error
	ListForUser(ctx context.Context, userID int64) ([]APIKey, error)
	FindByPrefix(ctx context.Context, prefix string) ([]APIKey, error)
	DeleteForUser(ctx context.Context, id, userID int64) (bool, error)
}
