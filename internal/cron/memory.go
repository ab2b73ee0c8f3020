package cron

import (
	"context"
	"sync"
)

// MemoryBackend is a non-durable Backend for tests and local development.
type MemoryBackend struct {
	mu      sync.Mutex
	entries map[string]Entry
	times   map[string]int64
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		entries: make(map[string]Entry),
		times:   make(map[string]int64),
	}
}

func (b *MemoryBackend) Entries(ctx context.Context) ([]Entry, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	result := make([]Entry, 0, len(b.entries))
	for _, e := range b.entries {
		result = append(result, e)
	}
	return result, nil
}

func (b *MemoryBackend) GetEntry(ctx context.Context, id string) (Entry, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	e, ok := b.entries[id]
	return e, ok, nil
}

func (b *MemoryBackend) PutEntry(ctx context.Context, e Entry, nextMS int64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries[e.ID] = e
	b.times[e.ID] = nextMS
	return nil
}

func (b *MemoryBackend) DeleteEntry(ctx context.Context, id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.entries, id)
	delete(b.times, id)
	return nil
}

func (b *MemoryBackend) RunTimes(ctx context.Context) (map[string]int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	times := make(map[string]int64, len(b.times))
	for id, ms := range b.times {
		times[id] = ms
	}
	return times, nil
}

func (b *MemoryBackend) SetRunTime(ctx context.Context, id string, nextMS int64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.times[id] = nextMS
	return nil
}
