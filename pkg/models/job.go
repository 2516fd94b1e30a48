// Package models defines the core domain models for desktop automation jobs.
package models

import "time"

// JobStatus represents the lifecycle state of a job.
type JobStatus string

const (
	JobStatusCreated   JobStatus = "created"
	JobStatusRunning   JobStatus = "running"
	JobStatusDone      JobStatus = "done"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// Terminal reports whether the status is final. Terminal jobs never change
// state again.
func (s JobStatus) Terminal() bool {
	switch s {
	case JobStatusDone, JobStatusFailed, JobStatusCancelled:
		return true
	default:
		return false
	}
}

// CanTransition reports whether moving from s to next is a legal, monotone
// transition. Resurrection from a terminal state is never legal.
func (s JobStatus) CanTransition(next JobStatus) bool {
	if s.Terminal() {
		return false
	}

	switch s {
	case JobStatusCreated:
		return next == JobStatusRunning || next == JobStatusCancelled || next == JobStatusFailed
	case JobStatusRunning:
		return next.Terminal()
	default:
		return false
	}
}

// Job is one supervised run of a workflow against a target application
// instance.
type Job struct {
	ID         string         `json:"id"`
	WorkflowID string         `json:"workflow_id"`
	Status     JobStatus      `json:"status"`
	PID        int32          `json:"pid,omitempty"` // owned OS process, 0 when none attached
	Inputs     map[string]any `json:"inputs,omitempty"`

	// StepCursor is the index of the step currently executing (0-based).
	// It only moves forward while the job is running.
	StepCursor int          `json:"step_cursor"`
	TotalSteps int          `json:"total_steps"`
	Records    []StepRecord `json:"records,omitempty"`

	CreatedAt  time.Time  `json:"created_at"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	LastError  string     `json:"last_error,omitempty"`
}

// StepRecord captures the outcome of one executed step, attached to the job
// for progress reporting.
type StepRecord struct {
	Index      int        `json:"index"`
	Kind       ActionKind `json:"kind"`
	Name       string     `json:"name"`
	Success    bool       `json:"success"`
	Error      string     `json:"error,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	DurationMs int64      `json:"duration_ms"`
}

// JobProgress is the externally observable snapshot returned to pollers.
type JobProgress struct {
	JobID       string    `json:"job_id"`
	Status      JobStatus `json:"status"`
	CurrentStep int       `json:"current_step"`
	TotalSteps  int       `json:"total_steps"`
	LastError   string    `json:"last_error,omitempty"`
}

// Progress builds the poller-facing snapshot for the job.
func (j *Job) Progress() JobProgress {
	return JobProgress{
		JobID:       j.ID,
		Status:      j.Status,
		CurrentStep: j.StepCursor,
		TotalSteps:  j.TotalSteps,
		LastError:   j.LastError,
	}
}
