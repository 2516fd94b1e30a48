// Package web provides HTTP request and response types for the automation API.
package web

import "github.com/deskpilot/deskpilot/pkg/models"

// SubmitJobRequest represents the request body for submitting a new job.
type SubmitJobRequest struct {
	WorkflowID string         `json:"workflow_id" validate:"required"`
	Inputs     map[string]any `json:"inputs"`
	PID        int32          `json:"pid"         validate:"omitempty,gt=0"`
}

// CompleteJobRequest is the optional body for force-completing a job. Status
// defaults to done when the body is omitted.
type CompleteJobRequest struct {
	Status models.JobStatus `json:"status" validate:"omitempty,oneof=done failed"`
	Reason string           `json:"reason"`
}

// SubmitJobResponse represents the response for a submitted job.
type SubmitJobResponse struct {
	JobID         string           `json:"job_id"`
	Status        models.JobStatus `json:"status"`
	QueuePosition int              `json:"queue_position"`
}

// JobResponse represents the full externally visible state of a job.
type JobResponse struct {
	ID          string              `json:"id"`
	WorkflowID  string              `json:"workflow_id"`
	Status      models.JobStatus    `json:"status"`
	PID         int32               `json:"pid,omitempty"`
	CurrentStep int                 `json:"current_step"`
	TotalSteps  int                 `json:"total_steps"`
	Records     []models.StepRecord `json:"records,omitempty"`
	LastError   string              `json:"last_error,omitempty"`
	CreatedAt   string              `json:"created_at"`
	StartedAt   string              `json:"started_at,omitempty"`
	FinishedAt  string              `json:"finished_at,omitempty"`
}

// TransformJobResponse builds the API view of a job.
func TransformJobResponse(job *models.Job) JobResponse {
	resp := JobResponse{
		ID:          job.ID,
		WorkflowID:  job.WorkflowID,
		Status:      job.Status,
		PID:         job.PID,
		CurrentStep: job.StepCursor,
		TotalSteps:  job.TotalSteps,
		Records:     job.Records,
		LastError:   job.LastError,
		CreatedAt:   job.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}

	if job.StartedAt != nil {
		resp.StartedAt = job.StartedAt.Format("2006-01-02T15:04:05Z07:00")
	}

	if job.FinishedAt != nil {
		resp.FinishedAt = job.FinishedAt.Format("2006-01-02T15:04:05Z07:00")
	}

	return resp
}
