package engine

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEnsureLoadedResolvesCommand(t *testing.T) {
	eng := NewExecEngine("sh", nil, "test-model")
	require.False(t, eng.Ready())

	require.NoError(t, eng.EnsureLoaded(context.Background()))
	require.True(t, eng.Ready())

	// Idempotent.
	require.NoError(t, eng.EnsureLoaded(context.Background()))
}

func TestEnsureLoadedMissingCommand(t *testing.T) {
	eng := NewExecEngine("definitely-not-a-command-xyz", nil, "test-model")

	err := eng.EnsureLoaded(context.Background())
	require.Error(t, err)

	var initErr *InitError
	require.ErrorAs(t, err, &initErr)
	require.False(t, eng.Ready())

	// Failure is not sticky; the next call retries the lookup.
	err = eng.EnsureLoaded(context.Background())
	require.ErrorAs(t, err, &initErr)
}

func TestEnsureLoadedCancelledContext(t *testing.T) {
	eng := NewExecEngine("sh", nil, "")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := eng.EnsureLoaded(ctx)
	var initErr *InitError
	require.ErrorAs(t, err, &initErr)
	require.ErrorIs(t, err, context.Canceled)
}

func TestGenerateReturnsStdout(t *testing.T) {
	// Echo back a fixed payload regardless of flags.
	eng := NewExecEngine("sh", []string{"-c", `printf 'fake-jpeg'`, "sh"}, "")

	image, err := eng.Generate(context.Background(), "a prompt", 42, 23)
	require.NoError(t, err)
	require.Equal(t, []byte("fake-jpeg"), image)
}

func TestGeneratePassesFlags(t *testing.T) {
	eng := NewExecEngine("sh", []string{"-c", `echo "$@"`, "sh"}, "model-x")

	out, err := eng.Generate(context.Background(), "red fox", 7, 12)
	require.NoError(t, err)

	args := string(out)
	require.Contains(t, args, "--model model-x")
	require.Contains(t, args, "--prompt red fox")
	require.Contains(t, args, "--seed 7")
	require.Contains(t, args, "--steps 12")
}

func TestGenerateCommandFailure(t *testing.T) {
	eng := NewExecEngine("sh", []string{"-c", `echo "Traceback..." >&2; echo "OOM: out of memory" >&2; exit 1`, "sh"}, "")

	_, err := eng.Generate(context.Background(), "p", 1, 1)
	require.Error(t, err)

	var genErr *GenerateError
	require.ErrorAs(t, err, &genErr)
	require.Equal(t, "OOM: out of memory", genErr.Detail)
	require.Contains(t, genErr.Error(), "OOM")
}

func TestGenerateEmptyOutput(t *testing.T) {
	eng := NewExecEngine("true", nil, "")

	_, err := eng.Generate(context.Background(), "p", 1, 1)
	var genErr *GenerateError
	require.ErrorAs(t, err, &genErr)
}

func TestGenerateCancelledContext(t *testing.T) {
	eng := NewExecEngine("sleep", []string{"10"}, "")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := eng.Generate(ctx, "p", 1, 1)
	var genErr *GenerateError
	require.ErrorAs(t, err, &genErr)
}

func TestLastStderrLine(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"single line", "single line"},
		{"first\nsecond\nlast", "last"},
		{"message\n\n  \n", "message"},
	}

	for _, tt := range tests {
		var buf bytes.Buffer
		buf.WriteString(tt.in)
		require.Equal(t, tt.want, lastStderrLine(&buf), "input %q", tt.in)
	}
}
