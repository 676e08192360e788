package tasks

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestEstimatorAdvancesWhileRunning(t *testing.T) {
	task := newTask("prompt", 1)
	require.NoError(t, task.Start(100))

	ctx, cancel := context.WithCancel(context.Background())
	est := startEstimator(ctx, task, time.Millisecond)

	require.Eventually(t, func() bool {
		return task.Snapshot().Progress > 0
	}, time.Second, time.Millisecond)

	cancel()
	est.wait()

	snap := task.Snapshot()
	require.Less(t, snap.Progress, snap.TotalSteps, "estimator never reports completion")
	require.Equal(t, StatusRunning, snap.Status, "estimator never touches status")
}

func TestEstimatorStopsAtCap(t *testing.T) {
	task := newTask("prompt", 1)
	require.NoError(t, task.Start(3))

	est := startEstimator(context.Background(), task, time.Millisecond)

	// With 3 steps the cap is 2; the loop exits on its own once it gets there.
	est.wait()
	require.Equal(t, 2, task.Snapshot().Progress)
}

func TestEstimatorWaitBlocksUntilLoopExit(t *testing.T) {
	task := newTask("prompt", 1)
	require.NoError(t, task.Start(1000))

	ctx, cancel := context.WithCancel(context.Background())
	est := startEstimator(ctx, task, time.Millisecond)

	cancel()
	est.wait()

	// After wait returns, no further ticks can land; progress is frozen.
	frozen := task.Snapshot().Progress
	time.Sleep(10 * time.Millisecond)
	require.Equal(t, frozen, task.Snapshot().Progress)
}
