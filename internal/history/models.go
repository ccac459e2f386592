package history

import (
	"strings"
	"time"
)

// Status is the lifecycle state of an export run.
type Status string

const (
	StatusRunning     Status = "running"
	StatusCompleted   Status = "completed"
	StatusFailed      Status = "failed"
	StatusCancelled   Status = "cancelled"
	StatusInterrupted Status = "interrupted"
)

// InterruptedReason is the error message recorded for runs left running by a dead process.
const InterruptedReason = "process exited before the export finished"

// ParseStatus converts a string into a Status, reporting whether it is known.
func ParseStatus(value string) (Status, bool) {
	status := Status(strings.ToLower(strings.TrimSpace(value)))
	switch status {
	case StatusRunning, StatusCompleted, StatusFailed, StatusCancelled, StatusInterrupted:
		return status, true
	default:
		return "", false
	}
}

// Terminal reports whether the status is final.
func (s Status) Terminal() bool {
	return s != StatusRunning && s != ""
}

// Run is one recorded export.
type Run struct {
	ID           string
	Project      string
	Output       string
	Items        int
	ClipDuration uint32
	Status       Status
	Frame        uint64
	TotalFrames  uint64
	Error        string
	StartedAt    time.Time
	FinishedAt   *time.Time
}

// Elapsed returns how long the run took, or has taken so far.
func (r Run) Elapsed(now time.Time) time.Duration {
	if r.StartedAt.IsZero() {
		return 0
	}
	end := now
	if r.FinishedAt != nil {
		end = *r.FinishedAt
	}
	if end.Before(r.StartedAt) {
		return 0
	}
	return end.Sub(r.StartedAt)
}
