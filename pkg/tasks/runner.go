package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"
)

// Engine is the subset of the compute engine the runner needs.
// Defined here so the tasks package never depends on a concrete engine.
type Engine interface {
	// EnsureLoaded prepares the engine for generation. It is idempotent and
	// may be slow on first call (model loading).
	EnsureLoaded(ctx context.Context) error

	// Generate produces an image synchronously. It blocks for the duration
	// of the generation and offers no progress callback.
	Generate(ctx context.Context, prompt string, seed int64, steps int) ([]byte, error)
}

// ArtifactWriter persists a generated image and returns its file path.
type ArtifactWriter interface {
	Save(ctx context.Context, taskID string, image []byte) (string, error)
}

// Runner is the admission and execution unit. It guarantees the engine
// never runs two generations concurrently and drives each task from pending
// to a terminal state.
//
// The admission slot is a weighted semaphore of size 1: waiters queue FIFO,
// so tasks are admitted in the order their executions requested the slot.
type Runner struct {
	store     *Store
	engine    Engine
	artifacts ArtifactWriter
	slot      *semaphore.Weighted
	steps     int
	tick      time.Duration
}

// NewRunner creates a Runner. steps is the inference step count recorded on
// each admitted task (from model configuration); tick is the progress
// estimator interval (0 selects the default).
func NewRunner(store *Store, eng Engine, artifacts ArtifactWriter, steps int, tick time.Duration) *Runner {
	if steps < 1 {
		steps = 1
	}
	return &Runner{
		store:     store,
		engine:    eng,
		artifacts: artifacts,
		slot:      semaphore.NewWeighted(1),
		steps:     steps,
		tick:      tick,
	}
}

// Dispatch hands a freshly created task to the execution unit and returns
// immediately. The task runs asynchronously relative to the caller; failures
// after this point are recorded on the task and surface only through
// polling.
//
// The caller's cancellation is stripped: a task submitted over HTTP must
// outlive its request, which ends the moment the id is returned.
func (r *Runner) Dispatch(ctx context.Context, id string) {
	go r.run(context.WithoutCancel(ctx), id)
}

func (r *Runner) run(ctx context.Context, id string) {
	t, err := r.store.Get(id)
	if err != nil {
		log.Error().
			Str("component", "tasks.runner").
			Str("task_id", id).
			Err(err).
			Msg("Dispatched task missing from store")
		return
	}

	// The engine implementation is external code; a panic there must not
	// take the server down or leak the admission slot.
	defer func() {
		if rec := recover(); rec != nil {
			r.failTask(t, fmt.Errorf("generation panicked: %v", rec))
		}
	}()

	if err := r.slot.Acquire(ctx, 1); err != nil {
		r.failTask(t, fmt.Errorf("waiting for generation slot: %w", err))
		return
	}
	defer r.slot.Release(1)

	if err := r.engine.EnsureLoaded(ctx); err != nil {
		r.failTask(t, err)
		return
	}

	if err := t.Start(r.steps); err != nil {
		log.Error().
			Str("component", "tasks.runner").
			Str("task_id", id).
			Err(err).
			Msg("Task refused running transition")
		return
	}

	log.Info().
		Str("component", "tasks.runner").
		Str("task_id", id).
		Int("steps", r.steps).
		Msg("Task admitted, starting generation")

	estCtx, stopEstimator := context.WithCancel(ctx)
	est := startEstimator(estCtx, t, r.tick)

	image, genErr := r.engine.Generate(ctx, t.Prompt, t.Seed, r.steps)

	// Stop the estimator and wait it out before the final progress write so
	// a late tick cannot race the completion value.
	stopEstimator()
	est.wait()

	if genErr != nil {
		r.failTask(t, genErr)
		return
	}

	path, err := r.artifacts.Save(ctx, t.ID, image)
	if err != nil {
		r.failTask(t, fmt.Errorf("persist artifact: %w", err))
		return
	}

	artifact := &Artifact{
		Image:       image,
		FilePath:    path,
		Prompt:      t.Prompt,
		Seed:        t.Seed,
		CompletedAt: time.Now().UTC(),
	}
	if err := t.Complete(artifact); err != nil {
		log.Error().
			Str("component", "tasks.runner").
			Str("task_id", id).
			Err(err).
			Msg("Task refused completed transition")
		return
	}

	log.Info().
		Str("component", "tasks.runner").
		Str("task_id", id).
		Str("file_path", path).
		Msg("Task completed")
}

// RunBlocking performs a one-off synchronous generation through the same
// admission slot, without creating a task record. Used by the synchronous
// generate endpoint; sharing the slot keeps the engine single-occupancy
// across both entry points.
func (r *Runner) RunBlocking(ctx context.Context, prompt string, seed int64) (*Artifact, error) {
	if err := r.slot.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("waiting for generation slot: %w", err)
	}
	defer r.slot.Release(1)

	if err := r.engine.EnsureLoaded(ctx); err != nil {
		return nil, err
	}

	image, err := r.engine.Generate(ctx, prompt, seed, r.steps)
	if err != nil {
		return nil, err
	}

	path, err := r.artifacts.Save(ctx, uuid.New().String(), image)
	if err != nil {
		return nil, fmt.Errorf("persist artifact: %w", err)
	}

	return &Artifact{
		Image:       image,
		FilePath:    path,
		Prompt:      prompt,
		Seed:        seed,
		CompletedAt: time.Now().UTC(),
	}, nil
}

func (r *Runner) failTask(t *Task, cause error) {
	// A pending task that never got admitted has to pass through running to
	// reach failed; the transition table allows nothing else.
	snap := t.Snapshot()
	if snap.Status == StatusPending {
		if err := t.Start(r.steps); err != nil {
			log.Error().
				Str("component", "tasks.runner").
				Str("task_id", t.ID).
				Err(err).
				Msg("Task refused running transition during failure")
			return
		}
	}
	if err := t.Fail(cause); err != nil {
		log.Error().
			Str("component", "tasks.runner").
			Str("task_id", t.ID).
			Err(err).
			Msg("Task refused failed transition")
		return
	}
	log.Warn().
		Str("component", "tasks.runner").
		Str("task_id", t.ID).
		Err(cause).
		Msg("Task failed")
}
