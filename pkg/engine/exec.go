package engine

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog/log"
)

// ExecEngine runs the generation pipeline as an external command.
//
// The command receives --prompt, --seed and --steps and writes the JPEG
// payload to stdout. Model identity is passed through --model so the same
// wrapper script can serve different checkpoints.
type ExecEngine struct {
	command string
	args    []string
	modelID string

	mu     sync.Mutex
	loaded bool
	ready  atomic.Bool
}

// NewExecEngine creates an engine around the given pipeline command.
// Extra args are prepended before the per-request flags.
func NewExecEngine(command string, args []string, modelID string) *ExecEngine {
	return &ExecEngine{
		command: command,
		args:    args,
		modelID: modelID,
	}
}

// EnsureLoaded verifies the pipeline command is invocable. Idempotent:
// once loaded, subsequent calls return immediately. A failed load is not
// sticky; the next caller triggers another attempt.
func (e *ExecEngine) EnsureLoaded(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.loaded {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return &InitError{Cause: err}
	}

	path, err := exec.LookPath(e.command)
	if err != nil {
		return &InitError{Cause: fmt.Errorf("pipeline command %q: %w", e.command, err)}
	}

	log.Info().
		Str("component", "engine").
		Str("command", path).
		Str("model_id", e.modelID).
		Msg("Pipeline command resolved, engine ready")

	e.loaded = true
	e.ready.Store(true)
	return nil
}

// Generate invokes the pipeline once and returns its stdout as the image
// payload.
func (e *ExecEngine) Generate(ctx context.Context, prompt string, seed int64, steps int) ([]byte, error) {
	args := make([]string, 0, len(e.args)+8)
	args = append(args, e.args...)
	if e.modelID != "" {
		args = append(args, "--model", e.modelID)
	}
	args = append(args,
		"--prompt", prompt,
		"--seed", strconv.FormatInt(seed, 10),
		"--steps", strconv.Itoa(steps),
	)

	cmd := exec.CommandContext(ctx, e.command, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, &GenerateError{Cause: err, Detail: lastStderrLine(&stderr)}
	}
	if stdout.Len() == 0 {
		return nil, &GenerateError{Cause: fmt.Errorf("pipeline produced no image data")}
	}
	return stdout.Bytes(), nil
}

// Ready reports whether EnsureLoaded has succeeded.
func (e *ExecEngine) Ready() bool {
	return e.ready.Load()
}

// lastStderrLine extracts the final non-empty stderr line for error context.
// Pipeline stacks dump pages of traceback; the last line is the message.
func lastStderrLine(buf *bytes.Buffer) string {
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if line := strings.TrimSpace(lines[i]); line != "" {
			return line
		}
	}
	return ""
}
