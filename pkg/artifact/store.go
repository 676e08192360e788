// Package artifact persists generated images to the local filesystem.
//
// Files are keyed by task id (one image per task), so two generations
// completing in the same second can never collide on a filename.
package artifact

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// Store writes artifacts under a single output directory.
//
// Thread-safety: writes are protected by per-file locks so an external
// consumer (or a second process sharing the directory) never observes a
// partially written image.
type Store struct {
	root string
}

// NewStore creates a store rooted at dir.
func NewStore(dir string) *Store {
	return &Store{root: dir}
}

// Root returns the output directory.
func (s *Store) Root() string {
	return s.root
}

// Initialize creates the output directory structure.
func (s *Store) Initialize(ctx context.Context) error {
	if s.root == "" {
		return fmt.Errorf("artifact store: output directory not configured")
	}
	if err := os.MkdirAll(s.root, 0o755); err != nil {
		return fmt.Errorf("create output directory %s: %w", s.root, err)
	}
	return nil
}

// Save writes the image payload for a task and returns the file path.
func (s *Store) Save(ctx context.Context, taskID string, image []byte) (string, error) {
	if taskID == "" {
		return "", fmt.Errorf("artifact store: task id is required")
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	path := s.path(taskID)

	lock := flock.New(path + ".lock")
	if err := lock.Lock(); err != nil {
		return "", fmt.Errorf("acquire write lock: %w", err)
	}
	defer func() { _ = lock.Unlock() }()

	if err := os.WriteFile(path, image, 0o644); err != nil {
		return "", fmt.Errorf("write artifact: %w", err)
	}
	return path, nil
}

// Read returns the persisted image payload for a task.
func (s *Store) Read(ctx context.Context, taskID string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path := s.path(taskID)

	lock := flock.New(path + ".lock")
	if err := lock.RLock(); err != nil {
		return nil, fmt.Errorf("acquire read lock: %w", err)
	}
	defer func() { _ = lock.Unlock() }()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read artifact: %w", err)
	}
	return data, nil
}

func (s *Store) path(taskID string) string {
	return filepath.Join(s.root, taskID+".jpg")
}
