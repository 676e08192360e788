package tasks

import "fmt"

// NotFoundError indicates that a task id is unknown to the store.
type NotFoundError struct {
	TaskID string
}

// NewNotFoundError creates a NotFoundError for the given task id.
func NewNotFoundError(taskID string) *NotFoundError {
	return &NotFoundError{TaskID: taskID}
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("task %q not found", e.TaskID)
}

// NotReadyError indicates that a result was requested before the task
// reached the completed state. Status carries the task's current state so
// callers can tell "keep polling" (pending/running) apart from a terminal
// failure.
type NotReadyError struct {
	TaskID string
	Status Status
}

// NewNotReadyError creates a NotReadyError for the given task and its
// current status.
func NewNotReadyError(taskID string, status Status) *NotReadyError {
	return &NotReadyError{TaskID: taskID, Status: status}
}

func (e *NotReadyError) Error() string {
	return fmt.Sprintf("task %q has no result yet (status: %s)", e.TaskID, e.Status)
}

// TransitionError indicates an attempted illegal lifecycle transition.
type TransitionError struct {
	TaskID string
	From   Status
	To     Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("task %q: illegal transition %s -> %s", e.TaskID, e.From, e.To)
}
