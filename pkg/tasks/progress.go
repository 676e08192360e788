package tasks

import (
	"context"
	"time"
)

// defaultTickInterval is how often the estimator advances progress while the
// engine call is blocking.
const defaultTickInterval = 500 * time.Millisecond

// estimator approximates progress for a running task. The engine offers no
// incremental callback, so a background ticker bumps the task's progress by
// roughly 5% of the step count per tick, never reaching the final step; the
// true completion value is written by the Runner when the engine returns.
//
// The estimator mutates only its own task's progress field and never touches
// status.
type estimator struct {
	task     *Task
	interval time.Duration
	done     chan struct{}
}

// startEstimator launches the progress loop for a task that just entered the
// running state. Cancel ctx to stop it; wait blocks until the loop has fully
// exited, so the caller's final progress write cannot race a late tick.
func startEstimator(ctx context.Context, t *Task, interval time.Duration) *estimator {
	if interval <= 0 {
		interval = defaultTickInterval
	}
	e := &estimator{
		task:     t,
		interval: interval,
		done:     make(chan struct{}),
	}
	go e.loop(ctx)
	return e
}

func (e *estimator) loop(ctx context.Context) {
	defer close(e.done)

	step := e.task.Snapshot().TotalSteps / 20
	if step < 1 {
		step = 1
	}

	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !e.task.advanceProgress(step) {
				// Capped at totalSteps-1; nothing left to report.
				return
			}
		}
	}
}

// wait blocks until the estimator loop has exited.
func (e *estimator) wait() {
	<-e.done
}
