package tasks

// Status represents the lifecycle state of a generation task.
type Status string

// Valid task statuses.
const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// String returns the string representation of Status.
func (s Status) String() string {
	return string(s)
}

// IsValid checks if the Status is one of the known states.
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusRunning, StatusCompleted, StatusFailed:
		return true
	default:
		return false
	}
}

// IsTerminal returns true if the status indicates the task is finished.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// canTransition reports whether moving from s to next is a legal lifecycle
// step. The lifecycle is strictly forward:
//
//	pending -> running -> completed
//	                   -> failed
//
// Terminal states accept no further transitions.
func (s Status) canTransition(next Status) bool {
	switch s {
	case StatusPending:
		return next == StatusRunning
	case StatusRunning:
		return next == StatusCompleted || next == StatusFailed
	default:
		return false
	}
}
