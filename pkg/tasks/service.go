package tasks

import (
	"context"

	"github.com/rs/zerolog/log"
)

// Service is the read/write surface the transport layer consumes: task
// creation plus read-only queries. All asynchronous failure detail is
// discovered through Status, never through Submit.
type Service struct {
	store  *Store
	runner *Runner
}

// NewService wires a store and runner into the query surface.
func NewService(store *Store, runner *Runner) *Service {
	return &Service{store: store, runner: runner}
}

// Submit creates a pending task, hands it to the execution unit and returns
// its id immediately. The actual generation proceeds independently of the
// caller.
func (s *Service) Submit(ctx context.Context, prompt string, seed int64) (string, error) {
	t := s.store.Create(prompt, seed)

	log.Info().
		Str("component", "tasks.service").
		Str("task_id", t.ID).
		Int64("seed", seed).
		Msg("Task created")

	s.runner.Dispatch(ctx, t.ID)
	return t.ID, nil
}

// Status returns a read-only snapshot of the task, or NotFoundError.
func (s *Service) Status(id string) (Snapshot, error) {
	t, err := s.store.Get(id)
	if err != nil {
		return Snapshot{}, err
	}
	return t.Snapshot(), nil
}

// Result returns the artifact of a completed task. A known but unfinished
// task (including failed ones) yields NotReadyError carrying the current
// status; an unknown id yields NotFoundError.
func (s *Service) Result(id string) (*Artifact, error) {
	t, err := s.store.Get(id)
	if err != nil {
		return nil, err
	}

	snap := t.Snapshot()
	if snap.Status != StatusCompleted || snap.Result == nil {
		return nil, NewNotReadyError(id, snap.Status)
	}
	return snap.Result, nil
}

// List returns snapshots of the most recent tasks, newest first, at most
// limit entries.
func (s *Service) List(limit int) []Snapshot {
	return s.store.List(limit)
}

// GenerateSync runs a blocking generation through the shared admission slot
// without tracking a task.
func (s *Service) GenerateSync(ctx context.Context, prompt string, seed int64) (*Artifact, error) {
	return s.runner.RunBlocking(ctx, prompt, seed)
}
