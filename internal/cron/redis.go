package cron

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
)

const (
	jobsKey     = "cron:jobs"
	runTimesKey = "cron:run_times"
)

// RedisBackend stores entries in a Redis hash ("jobs") and their next-fire
// instants in a second hash ("run_times").
type RedisBackend struct {
	rdb *redis.Client
}

// NewRedisBackend connects the registry backend to Redis.
func NewRedisBackend(redisURL string) (*RedisBackend, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return &RedisBackend{rdb: redis.NewClient(opt)}, nil
}

func (b *RedisBackend) Entries(ctx context.Context) ([]Entry, error) {
	raw, err := b.rdb.HGetAll(ctx, jobsKey).Result()
	if err != nil {
		return nil, fmt.Errorf("load cron jobs: %w", err)
	}
	entries := make([]Entry, 0, len(raw))
	for _, data := range raw {
		var e Entry
		if err := json.Unmarshal([]byte(data), &e); err != nil {
			return nil, fmt.Errorf("decode cron entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func (b *RedisBackend) GetEntry(ctx context.Context, id string) (Entry, bool, error) {
	data, err := b.rdb.HGet(ctx, jobsKey, id).Result()
	if err == redis.Nil {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("get cron entry: %w", err)
	}
	var e Entry
	if err := json.Unmarshal([]byte(data), &e); err != nil {
		return Entry{}, false, fmt.Errorf("decode cron entry: %w", err)
	}
	return e, true, nil
}

func (b *RedisBackend) PutEntry(ctx context.Context, e Entry, nextMS int64) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode cron entry: %w", err)
	}
	pipe := b.rdb.TxPipeline()
	pipe.HSet(ctx, jobsKey, e.ID, data)
	pipe.HSet(ctx, runTimesKey, e.ID, nextMS)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store cron entry: %w", err)
	}
	return nil
}

func (b *RedisBackend) DeleteEntry(ctx context.Context, id string) error {
	pipe := b.rdb.TxPipeline()
	pipe.HDel(ctx, jobsKey, id)
	pipe.HDel(ctx, runTimesKey, id)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("delete cron entry: %w", err)
	}
	return nil
}

func (b *RedisBackend) RunTimes(ctx context.Context) (map[string]int64, error) {
	raw, err := b.rdb.HGetAll(ctx, runTimesKey).Result()
	if err != nil {
		return nil, fmt.Errorf("load cron run times: %w", err)
	}
	times := make(map[string]int64, len(raw))
	for id, v := range raw {
		ms, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("decode run time for %s: %w", id, err)
		}
		times[id] = ms
	}
	return times, nil
}

func (b *RedisBackend) SetRunTime(ctx context.Context, id string, nextMS int64) error {
	if err := b.rdb.HSet(ctx, runTimesKey, id, nextMS).Err(); err != nil {
		return fmt.Errorf("set cron run time: %w", err)
	}
	return nil
}

// Close releases the Redis connection.
func (b *RedisBackend) Close() error {
	return b.rdb.Close()
}
