package tasks

import "sync"

// Store is the concurrent-safe registry of all known tasks.
//
// The map owns structural integrity (insert/lookup); the lifecycle fields of
// the Task values it holds are guarded by each task's own mutex. History is
// bounded: once more than maxHistory tasks exist, the oldest terminal tasks
// are evicted on insert so a long-running server does not grow without limit.
type Store struct {
	mu         sync.RWMutex
	tasks      map[string]*Task
	order      []*Task // insertion order, oldest first
	maxHistory int
}

// DefaultMaxHistory caps retained tasks when no explicit limit is configured.
const DefaultMaxHistory = 1000

// NewStore creates an empty task store. maxHistory <= 0 selects
// DefaultMaxHistory.
func NewStore(maxHistory int) *Store {
	if maxHistory <= 0 {
		maxHistory = DefaultMaxHistory
	}
	return &Store{
		tasks:      make(map[string]*Task),
		maxHistory: maxHistory,
	}
}

// Create allocates a fresh pending task and inserts it.
// Safe to call concurrently with reads and other creations.
func (s *Store) Create(prompt string, seed int64) *Task {
	t := newTask(prompt, seed)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.tasks[t.ID] = t
	s.order = append(s.order, t)
	s.evictLocked()
	return t
}

// Get returns the task for the given id, or NotFoundError.
func (s *Store) Get(id string) (*Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tasks[id]
	if !ok {
		return nil, NewNotFoundError(id)
	}
	return t, nil
}

// List returns snapshots of the most recently created tasks, newest first,
// at most limit entries. limit <= 0 returns an empty slice.
func (s *Store) List(limit int) []Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		return []Snapshot{}
	}
	if limit > len(s.order) {
		limit = len(s.order)
	}

	out := make([]Snapshot, 0, limit)
	for i := len(s.order) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.order[i].Snapshot())
	}
	return out
}

// Len returns the number of retained tasks.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}

// evictLocked drops the oldest terminal tasks while over the history cap.
// Pending and running tasks are never evicted. Callers must hold s.mu.
func (s *Store) evictLocked() {
	if len(s.order) <= s.maxHistory {
		return
	}

	kept := s.order[:0]
	excess := len(s.order) - s.maxHistory
	for _, t := range s.order {
		if excess > 0 && t.Snapshot().Status.IsTerminal() {
			delete(s.tasks, t.ID)
			excess--
			continue
		}
		kept = append(kept, t)
	}
	s.order = kept
}
