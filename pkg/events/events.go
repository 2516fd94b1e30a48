// Package events defines event types and structures for job lifecycle
// notifications. The event stream is the only progress surface the core
// exposes; UI and monitoring consume it without the engine knowing.
package events

import (
	"time"

	"github.com/deskpilot/deskpilot/pkg/models"
	"github.com/google/uuid"
)

type EventType string

const Topic = "deskpilot.events"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	JobSubmittedEvent EventType = "job.submitted"
	JobStartedEvent   EventType = "job.started"
	JobFinishedEvent  EventType = "job.finished"
	JobFailedEvent    EventType = "job.failed"
	JobCancelledEvent EventType = "job.cancelled"

	StepStartedEvent  EventType = "job.step.started"
	StepFinishedEvent EventType = "job.step.finished"
)

type BaseEvent struct {
	ID         string         `json:"id"`
	Type       EventType      `json:"type"`
	Timestamp  time.Time      `json:"timestamp"`
	JobID      string         `json:"job_id"`
	WorkflowID string         `json:"workflow_id"`
	AgentID    string         `json:"agent_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

func NewBaseEvent(eventType EventType, jobID, workflowID string) BaseEvent {
	return BaseEvent{
		ID:         "evt-" + uuid.New().String()[:8],
		Type:       eventType,
		Timestamp:  time.Now().UTC(),
		JobID:      jobID,
		WorkflowID: workflowID,
	}
}

type JobSubmitted struct {
	BaseEvent

	QueuePosition int `json:"queue_position"`

	// Inputs and PID carry the submission payload so a remote agent can
	// enqueue the job from the event alone.
	Inputs map[string]any `json:"inputs,omitempty"`
	PID    int32          `json:"pid,omitempty"`
}

func (e JobSubmitted) GetType() EventType { return JobSubmittedEvent }

type JobStarted struct {
	BaseEvent

	PID        int32 `json:"pid,omitempty"`
	TotalSteps int   `json:"total_steps"`
}

func (e JobStarted) GetType() EventType { return JobStartedEvent }

type JobFinished struct {
	BaseEvent

	Duration time.Duration `json:"duration"`
}

func (e JobFinished) GetType() EventType { return JobFinishedEvent }

type JobFailed struct {
	BaseEvent

	Error    string        `json:"error"`
	Duration time.Duration `json:"duration"`
}

func (e JobFailed) GetType() EventType { return JobFailedEvent }

type JobCancelled struct {
	BaseEvent

	Duration time.Duration `json:"duration"`
}

func (e JobCancelled) GetType() EventType { return JobCancelledEvent }

type StepStarted struct {
	BaseEvent

	StepIndex int               `json:"step_index"`
	StepName  string            `json:"step_name"`
	Kind      models.ActionKind `json:"kind"`
}

func (e StepStarted) GetType() EventType { return StepStartedEvent }

type StepFinished struct {
	BaseEvent

	Record models.StepRecord `json:"record"`
}

func (e StepFinished) GetType() EventType { return StepFinishedEvent }
