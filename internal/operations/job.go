package operations

import (
	"errors"
	"time"

	"reportexport/internal/report"
)

// JobStatus represents the status of a job
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// Terminal reports whether no further transitions can happen.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// StatusMessageType is the broadcast type for job transitions.
const StatusMessageType = "export:status"

var (
	// ErrJobNotFound is returned for unknown or expired job ids.
	ErrJobNotFound = errors.New("export job not found")
	// ErrQueueFull is returned when no more jobs can be buffered.
	ErrQueueFull = errors.New("export queue is full")
	// ErrJobNotReady is returned when downloading a job that has not completed.
	ErrJobNotReady = errors.New("export job has not completed")
	// ErrQueueStopped is returned by Enqueue after Stop.
	ErrQueueStopped = errors.New("export queue is stopped")
)

// ExportRequest describes one export to run in the background.
type ExportRequest struct {
	Owner    string
	Format   report.Format
	Filename string
	Report   report.Report
	TraceID  string
}

// Job is the externally visible record of a background export.
type Job struct {
	ID          string        `json:"id"`
	Owner       string        `json:"owner"`
	Format      report.Format `json:"format"`
	Mode        report.Mode   `json:"mode"`
	Status      JobStatus     `json:"status"`
	Message     string        `json:"message,omitempty"`
	Error       string        `json:"error,omitempty"`
	Filename    string        `json:"filename,omitempty"`
	ContentType string        `json:"content_type,omitempty"`
	Rows        int           `json:"rows,omitempty"`
	Size        int           `json:"size,omitempty"`
	TraceID     string        `json:"trace_id,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
	StartedAt   *time.Time    `json:"started_at,omitempty"`
	CompletedAt *time.Time    `json:"completed_at,omitempty"`
	ExpiresAt   *time.Time    `json:"expires_at,omitempty"`
}

// JobFilter for querying jobs
type JobFilter struct {
	Owner  string
	Status JobStatus
	Limit  int
}

func (f JobFilter) matches(job *Job) bool {
	if f.Owner != "" && job.Owner != f.Owner {
		return false
	}
	if f.Status != "" && job.Status != f.Status {
		return false
	}
	return true
}
