// Package engine defines the boundary with the image-generation pipeline.
//
// The pipeline is an external, resource-heavy process: generation is
// synchronous, blocking, possibly slow, and not safely re-entrant from
// multiple concurrent callers (single shared accelerator). Callers are
// expected to serialize access themselves; the engine does not.
package engine

import (
	"context"
	"fmt"
)

// Engine produces images from (prompt, seed, steps).
type Engine interface {
	// EnsureLoaded prepares the engine (model loading). Idempotent; may be
	// called lazily before the first generation. A failed load may be
	// retried by a later call.
	EnsureLoaded(ctx context.Context) error

	// Generate synthesizes one image and returns the JPEG payload. Blocks
	// until the pipeline finishes; no progress callback is available.
	Generate(ctx context.Context, prompt string, seed int64, steps int) ([]byte, error)

	// Ready reports whether the model is loaded, for health reporting.
	Ready() bool
}

// InitError indicates the engine failed to initialize (model load).
type InitError struct {
	Cause error
}

func (e *InitError) Error() string {
	return fmt.Sprintf("engine initialization failed: %v", e.Cause)
}

func (e *InitError) Unwrap() error {
	return e.Cause
}

// GenerateError indicates the pipeline raised during generation.
type GenerateError struct {
	Cause  error
	Detail string // trailing pipeline stderr, when available
}

func (e *GenerateError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("generation failed: %v: %s", e.Cause, e.Detail)
	}
	return fmt.Sprintf("generation failed: %v", e.Cause)
}

func (e *GenerateError) Unwrap() error {
	return e.Cause
}
