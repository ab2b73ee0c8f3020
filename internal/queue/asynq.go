package queue

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
)

const queueName = "default"

// AsynqQueue is the Redis-backed producer built on hibiken/asynq. The
// message_id handed back to callers is the asynq task id, which stays valid
// for cancellation until a worker claims the unit.
type AsynqQueue struct {
	client    *asynq.Client
	inspector *asynq.Inspector
}

// NewAsynqQueue connects a producer to the Redis broker.
func NewAsynqQueue(redisURL string) (*AsynqQueue, error) {
	opt, err := asynq.ParseRedisURI(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return &AsynqQueue{
		client:    asynq.NewClient(opt),
		inspector: asynq.NewInspector(opt),
	}, nil
}

func (q *AsynqQueue) Enqueue(ctx context.Context, taskID int64) (string, error) {
	return q.enqueue(ctx, taskID)
}

func (q *AsynqQueue) EnqueueAt(ctx context.Context, taskID int64, eta time.Time) (string, error) {
	return q.enqueue(ctx, taskID, asynq.ProcessAt(eta))
}

func (q *AsynqQueue) enqueue(ctx context.Context, taskID int64, opts ...asynq.Option) (string, error) {
	payload, err := Unit{TaskID: taskID}.Marshal()
	if err != nil {
		return "", fmt.Errorf("marshal unit: %w", err)
	}
	// Worker errors are terminal for the unit; the core never re-queues.
	opts = append(opts, asynq.MaxRetry(0), asynq.Queue(queueName))
	info, err := q.client.EnqueueContext(ctx, asynq.NewTask(TypeDispatch, payload), opts...)
	if err != nil {
		return "", fmt.Errorf("enqueue dispatch unit: %w", err)
	}
	slog.Debug("dispatch unit enqueued", "task_id", taskID, "message_id", info.ID)
	return info.ID, nil
}

func (q *AsynqQueue) Cancel(ctx context.Context, messageID string) bool {
	if messageID == "" {
		return false
	}
	if err := q.inspector.DeleteTask(queueName, messageID); err != nil {
		// Already claimed, already done, or unknown: all fine, best effort.
		slog.Debug("queue cancel skipped", "message_id", messageID, "error", err)
		return false
	}
	return true
}

func (q *AsynqQueue) Close() error {
	q.inspector.Close()
	return q.client.Close()
}

// AsynqConsumer runs an asynq worker server over the same broker.
type AsynqConsumer struct {
	opt         asynq.RedisConnOpt
	concurrency int
}

// NewAsynqConsumer prepares a worker for the given Redis broker.
// concurrency bounds the number of units executing at once per process.
func NewAsynqConsumer(redisURL string, concurrency int) (*AsynqConsumer, error) {
	opt, err := asynq.ParseRedisURI(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	if concurrency <= 0 {
		concurrency = 10
	}
	return &AsynqConsumer{opt: opt, concurrency: concurrency}, nil
}

func (c *AsynqConsumer) Run(ctx context.Context, handler Handler) error {
	srv := asynq.NewServer(c.opt, asynq.Config{
		Concurrency: c.concurrency,
		Queues:      map[string]int{queueName: 1},
	})

	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeDispatch, func(ctx context.Context, t *asynq.Task) error {
		u, err := DecodeUnit(t.Payload())
		if err != nil {
			slog.Error("malformed dispatch unit discarded", "error", err)
			return nil
		}
		return handler(ctx, u)
	})

	if err := srv.Start(mux); err != nil {
		return fmt.Errorf("start worker server: %w", err)
	}
	<-ctx.Done()
	srv.Shutdown()
	return nil
}
