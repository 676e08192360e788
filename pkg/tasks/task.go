package tasks

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Artifact is the output attached to a completed task: the generated image
// plus the metadata needed to reproduce it.
type Artifact struct {
	// Image is the raw JPEG payload produced by the engine.
	Image []byte `json:"-"`

	// FilePath is where the image was persisted on disk.
	// Keyed by task id, so two completions can never collide.
	FilePath string `json:"file_path"`

	// Prompt and Seed echo the task inputs for reproducibility.
	Prompt string `json:"prompt"`
	Seed   int64  `json:"seed"`

	// CompletedAt is when generation finished (UTC).
	CompletedAt time.Time `json:"completed_at"`
}

// Task tracks one generation request through its lifecycle.
//
// Identity fields (ID, Prompt, Seed, CreatedAt) are immutable after
// construction. Lifecycle fields are guarded by mu and mutated only through
// the transition methods below; the Runner is the sole caller of Start,
// Complete and Fail, and the progress estimator only calls advanceProgress.
// Everything else reads through Snapshot.
type Task struct {
	ID        string
	Prompt    string
	Seed      int64
	CreatedAt time.Time

	mu          sync.Mutex
	status      Status
	progress    int
	totalSteps  int
	completedAt time.Time
	result      *Artifact
	errMsg      string
}

// newTask constructs a pending task with a fresh unique id.
func newTask(prompt string, seed int64) *Task {
	return &Task{
		ID:        uuid.New().String(),
		Prompt:    prompt,
		Seed:      seed,
		CreatedAt: time.Now().UTC(),
		status:    StatusPending,
	}
}

// Snapshot is a read-only copy of a task's observable state.
type Snapshot struct {
	ID          string
	Prompt      string
	Seed        int64
	Status      Status
	Progress    int
	TotalSteps  int
	CreatedAt   time.Time
	CompletedAt time.Time
	Result      *Artifact
	Error       string
}

// Snapshot returns a consistent copy of the task's current state.
// Safe to call at any time; never blocks on in-flight generation.
func (t *Task) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	return Snapshot{
		ID:          t.ID,
		Prompt:      t.Prompt,
		Seed:        t.Seed,
		Status:      t.status,
		Progress:    t.progress,
		TotalSteps:  t.totalSteps,
		CreatedAt:   t.CreatedAt,
		CompletedAt: t.completedAt,
		Result:      t.result,
		Error:       t.errMsg,
	}
}

// Start transitions the task to running and fixes its step count.
func (t *Task) Start(totalSteps int) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.transition(StatusRunning); err != nil {
		return err
	}
	if totalSteps < 1 {
		totalSteps = 1
	}
	t.totalSteps = totalSteps
	return nil
}

// Complete moves the task to its successful terminal state, attaches the
// artifact and forces progress to the full step count.
func (t *Task) Complete(result *Artifact) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.transition(StatusCompleted); err != nil {
		return err
	}
	t.progress = t.totalSteps
	t.result = result
	t.completedAt = time.Now().UTC()
	return nil
}

// Fail moves the task to its failed terminal state and records the error.
func (t *Task) Fail(cause error) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.transition(StatusFailed); err != nil {
		return err
	}
	t.errMsg = cause.Error()
	t.completedAt = time.Now().UTC()
	return nil
}

// transition is the single authorized mutation path for status.
// Callers must hold t.mu.
func (t *Task) transition(next Status) error {
	if !t.status.canTransition(next) {
		return &TransitionError{TaskID: t.ID, From: t.status, To: next}
	}
	t.status = next
	return nil
}

// advanceProgress bumps progress by step while the task is running, capped
// at totalSteps-1. The cap keeps the observable progress below 100% until
// the engine call actually returns; only Complete writes the final value.
//
// Returns false once there is no more room to advance (or the task left the
// running state), signalling the estimator to stop.
func (t *Task) advanceProgress(step int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.status != StatusRunning {
		return false
	}
	limit := t.totalSteps - 1
	if t.progress >= limit {
		return false
	}
	t.progress += step
	if t.progress > limit {
		t.progress = limit
	}
	return t.progress < limit
}
