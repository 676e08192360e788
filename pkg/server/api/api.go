package api

import (
	"context"
	"encoding/base64"
	"sync/atomic"
	"time"

	"github.com/fluxgate/fluxgate/pkg/tasks"
)

// Deps holds dependencies for API handlers.
// This pattern enables dependency injection and easier testing.
type Deps struct {
	// Tasks provides task submission and queries.
	Tasks TaskService

	// Engine reports model readiness for health endpoints.
	Engine EngineStatus

	// Config holds API-level configuration (limits, etc.)
	Config Config

	// Ready flag for readiness check
	Ready *atomic.Bool
}

// TaskService is the subset of the task service the API needs.
// Defined here to avoid circular dependencies and ease mocking.
type TaskService interface {
	Submit(ctx context.Context, prompt string, seed int64) (string, error)
	Status(id string) (tasks.Snapshot, error)
	Result(id string) (*tasks.Artifact, error)
	List(limit int) []tasks.Snapshot
	GenerateSync(ctx context.Context, prompt string, seed int64) (*tasks.Artifact, error)
}

// EngineStatus exposes model readiness for health reporting.
type EngineStatus interface {
	Ready() bool
}

// Config holds API-level tunables.
type Config struct {
	// DefaultListLimit applies when a list request names no limit.
	DefaultListLimit int

	// MaxListLimit caps the list page size.
	MaxListLimit int
}

// DefaultConfig returns the API defaults.
func DefaultConfig() Config {
	return Config{
		DefaultListLimit: 50,
		MaxListLimit:     100,
	}
}

// TaskCreated is the response to task submission.
type TaskCreated struct {
	TaskID string `json:"task_id"`
	Status string `json:"status"`
}

// TaskStatus is the polling snapshot of one task.
type TaskStatus struct {
	ID          string `json:"id"`
	Status      string `json:"status"`
	Progress    int    `json:"progress"`
	TotalSteps  int    `json:"total_steps"`
	Prompt      string `json:"prompt"`
	Seed        int64  `json:"seed"`
	CreatedAt   string `json:"created_at"`
	CompletedAt string `json:"completed_at,omitempty"`
	Error       string `json:"error,omitempty"`
}

// GenerationResult is the artifact payload returned to clients.
type GenerationResult struct {
	ImageBase64 string `json:"image_base64"`
	FilePath    string `json:"file_path"`
	Prompt      string `json:"prompt"`
	Seed        int64  `json:"seed"`
	Timestamp   string `json:"timestamp"`
}

// NewGenerationResult converts an artifact to its API representation,
// base64-encoding the image payload.
func NewGenerationResult(a *tasks.Artifact) GenerationResult {
	return GenerationResult{
		ImageBase64: base64.StdEncoding.EncodeToString(a.Image),
		FilePath:    a.FilePath,
		Prompt:      a.Prompt,
		Seed:        a.Seed,
		Timestamp:   a.CompletedAt.Format(time.RFC3339),
	}
}

// NewTaskStatus converts a task snapshot to its API representation.
func NewTaskStatus(snap tasks.Snapshot) TaskStatus {
	status := TaskStatus{
		ID:         snap.ID,
		Status:     snap.Status.String(),
		Progress:   snap.Progress,
		TotalSteps: snap.TotalSteps,
		Prompt:     snap.Prompt,
		Seed:       snap.Seed,
		CreatedAt:  snap.CreatedAt.Format(time.RFC3339),
		Error:      snap.Error,
	}
	if !snap.CompletedAt.IsZero() {
		status.CompletedAt = snap.CompletedAt.Format(time.RFC3339)
	}
	return status
}
