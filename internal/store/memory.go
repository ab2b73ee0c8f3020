package store

import (
	"context"
	"strings"
	"sync"
	"time"
)

// In-memory store implementations. Not durable; used by tests and local
// development. Semantics mirror the Postgres implementations, including
// conflict detection and owner scoping.

// MemoryTaskStore implements TaskStore in memory.
type MemoryTaskStore struct {
	mu     sync.Mutex
	nextID int64
	tasks  map[int64]*RequestTask
}

func NewMemoryTaskStore() *MemoryTaskStore {
	return &MemoryTaskStore{tasks: make(map[int64]*RequestTask)}
}

func (s *MemoryTaskStore) Insert(ctx context.Context, t *RequestTask) error {
	if err := ValidateTask(t); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	t.ID = s.nextID
	if t.Status == "" {
		t.Status = StatusPending
	}
	t.CreatedAt = time.Now()
	cp := *t
	s.tasks[t.ID] = &cp
	return nil
}

func (s *MemoryTaskStore) Get(ctx context.Context, id int64) (*RequestTask, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (s *MemoryTaskStore) GetForUser(ctx context.Context, id, userID int64) (*RequestTask, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok || t.UserID != userID {
		return nil, ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (s *MemoryTaskStore) ListForUser(ctx context.Context, userID int64) ([]RequestTask, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	result := []RequestTask{}
	for id := int64(1); id <= s.nextID; id++ {
		if t, ok := s.tasks[id]; ok && t.UserID == userID {
			result = append(result, *t)
		}
	}
	return result, nil
}

func (s *MemoryTaskStore) UpdateHandles(ctx context.Context, id int64, upd HandleUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return nil
	}
	if upd.MessageID != nil {
		t.MessageID = *upd.MessageID
	}
	if upd.JobID != nil {
		t.JobID = *upd.JobID
	}
	return nil
}

func (s *MemoryTaskStore) Transition(ctx context.Context, id int64, status TaskStatus, errorMessage string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.tasks[id]; ok {
		t.Status = status
		t.ErrorMessage = errorMessage
	}
	return nil
}

func (s *MemoryTaskStore) IncrementCronCount(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.tasks[id]; ok {
		t.CronCount++
	}
	return nil
}

func (s *MemoryTaskStore) Delete(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tasks, id)
	return nil
}

func (s *MemoryTaskStore) DeleteForUser(ctx context.Context, id, userID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok || t.UserID != userID {
		return false, nil
	}
	delete(s.tasks, id)
	return true, nil
}

func (s *MemoryTaskStore) StatusCounts(ctx context.Context, userID int64) (int64, map[TaskStatus]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var total int64
	counts := map[TaskStatus]int64{}
	for _, t := range s.tasks {
		if t.UserID == userID {
			counts[t.Status]++
			total++
		}
	}
	return total, counts, nil
}

// MemoryUserStore implements UserStore in memory.
type MemoryUserStore struct {
	mu     sync.Mutex
	nextID int64
	users  map[int64]*User
}

func NewMemoryUserStore() *MemoryUserStore {
	return &MemoryUserStore{users: make(map[int64]*User)}
}

func (s *MemoryUserStore) Insert(ctx context.Context, u *User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, other := range s.users {
		if strings.EqualFold(other.Name, u.Name) || strings.EqualFold(other.Email, u.Email) {
			return ErrConflict
		}
	}
	s.nextID++
	u.ID = s.nextID
	u.RegisterTime = time.Now()
	cp := *u
	s.users[u.ID] = &cp
	return nil
}

func (s *MemoryUserStore) GetByID(ctx context.Context, id int64) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *MemoryUserStore) GetByName(ctx context.Context, name string) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Name == name {
			cp := *u
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryUserStore) GetByEmail(ctx context.Context, email string) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryUserStore) Update(ctx context.Context, u *User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[u.ID]; !ok {
		return ErrNotFound
	}
	for id, other := range s.users {
		if id == u.ID {
			continue
		}
		if strings.EqualFold(other.Name, u.Name) || strings.EqualFold(other.Email, u.Email) {
			return ErrConflict
		}
	}
	cp := *u
	s.users[u.ID] = &cp
	return nil
}

func (s *MemoryUserStore) Delete(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.users, id)
	return nil
}

func (s *MemoryUserStore) TouchLogin(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[id]; ok {
		now := time.Now()
		u.LoginTime = &now
	}
	return nil
}

// MemoryAPIKeyStore implements APIKeyStore in memory.
type MemoryAPIKeyStore struct {
	mu     sync.Mutex
	nextID int64
	keys   map[int64]*APIKey
}

func NewMemoryAPIKeyStore() *MemoryAPIKeyStore {
	return &MemoryAPIKeyStore{keys: make(map[int64]*APIKey)}
}

func (s *MemoryAPIKeyStore) Insert(ctx context.Context, k *APIKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	k.ID = s.nextID
	k.CreatedAt = time.Now()
	cp := *k
	s.keys[k.ID] = &cp
	return nil
}

func (s *MemoryAPIKeyStore) ListForUser(ctx context.Context, userID int64) ([]APIKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	result := []APIKey{}
	for id := int64(1); id <= s.nextID; id++ {
		if k, ok := s.keys[id]; ok && k.UserID == userID {
			result = append(result, *k)
		}
	}
	return result, nil
}

func (s *MemoryAPIKeyStore) FindByPrefix(ctx context.Context, prefix string) ([]APIKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	result := []APIKey{}
	for _, k := range s.keys {
		if k.Prefix == prefix {
			result = append(result, *k)
		}
	}
	return result, nil
}

func (s *MemoryAPIKeyStore) DeleteForUser(ctx context.Context, id, userID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k, ok := s.keys[id]
	if !ok || k.UserID != userID {
		return false, nil
	}
	delete(s.keys, id)
	return true, nil
}
