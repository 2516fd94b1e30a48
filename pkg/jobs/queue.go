package jobs

import (
	"context"
	"errors"
	"log/slog"

	"github.com/deskpilot/deskpilot/pkg/eventbus"
	"github.com/deskpilot/deskpilot/pkg/events"
	"github.com/deskpilot/deskpilot/pkg/models"
	"github.com/deskpilot/deskpilot/pkg/workflow"
)

// ErrQueueFull indicates the pending queue is at capacity.
var ErrQueueFull = errors.New("job queue full")

// queued pairs a job ID with the workflow it will run.
type queued struct {
	jobID    string
	workflow *models.Workflow
}

// Queue runs jobs strictly one at a time, in submission order. Desktop
// automation owns the machine's single mouse and keyboard; two concurrent
// jobs would fight over them.
type Queue struct {
	manager *Manager
	engine  *workflow.Engine
	bus     eventbus.EventPublisher
	logger  *slog.Logger

	pending chan queued
	done    chan struct{}
}

func NewQueue(manager *Manager, engine *workflow.Engine, bus eventbus.EventPublisher, logger *slog.Logger, capacity int) *Queue {
	if capacity <= 0 {
		capacity = 64
	}

	return &Queue{
		manager: manager,
		engine:  engine,
		bus:     bus,
		logger:  logger.With("module", "job_queue"),
		pending: make(chan queued, capacity),
		done:    make(chan struct{}),
	}
}

// Submit enqueues a created job and returns its queue position at submission
// time. Position 0 means it is next (or already about to run).
func (q *Queue) Submit(ctx context.Context, job *models.Job, wf *models.Workflow) (int, error) {
	position := len(q.pending)

	select {
	case q.pending <- queued{jobID: job.ID, workflow: wf}:
	default:
		return 0, ErrQueueFull
	}

	q.publish(ctx, job.ID, events.JobSubmitted{
		BaseEvent:     q.baseEvent(events.JobSubmittedEvent, job.ID, wf.ID),
		QueuePosition: position,
		Inputs:        job.Inputs,
		PID:           job.PID,
	})

	q.logger.Info("Job queued", "job_id", job.ID, "workflow_id", wf.ID, "position", position)

	return position, nil
}

// Start launches the runner goroutine. It drains the queue until ctx is
// cancelled; Wait blocks until the in-flight job (if any) has finished.
func (q *Queue) Start(ctx context.Context) {
	go q.run(ctx)
}

// Wait blocks until the runner has stopped.
func (q *Queue) Wait() {
	<-q.done
}

func (q *Queue) run(ctx context.Context) {
	defer close(q.done)

	for {
		select {
		case <-ctx.Done():
			return
		case item := <-q.pending:
			q.execute(ctx, item)
		}
	}
}

func (q *Queue) execute(ctx context.Context, item queued) {
	jobID := item.jobID

	if !q.manager.markRunning(jobID) {
		// Cancelled or otherwise finalized while queued.
		q.logger.Info("Skipping finalized job", "job_id", jobID)

		return
	}

	job, err := q.manager.Job(jobID)
	if err != nil {
		q.logger.Error("Queued job vanished", "job_id", jobID, "error", err)

		return
	}

	q.publish(ctx, jobID, events.JobStarted{
		BaseEvent:  q.baseEvent(events.JobStartedEvent, jobID, item.workflow.ID),
		PID:        job.PID,
		TotalSteps: len(item.workflow.Steps),
	})

	run := &workflow.Run{
		Job:      job,
		Workflow: item.workflow,
		Inputs:   job.Inputs,
		Cancelled: func() bool {
			return q.manager.CancelRequested(jobID)
		},
		OnCursor: func(cursor int) {
			q.manager.recordProgress(jobID, cursor, nil)
		},
	}

	outcome := q.engine.Execute(ctx, run)

	q.manager.recordProgress(jobID, len(outcome.Records), outcome.Records)

	// The engine's outcome finalizes the job unless process-exit inference
	// or an external completion signal won the race.
	if q.manager.finalize(jobID, outcome.Status, outcome.Reason) {
		q.manager.publishTerminal(ctx, jobID, outcome.Status, outcome.Reason)
	}

	q.logger.Info("Job finished", "job_id", jobID, "status", outcome.Status, "reason", outcome.Reason)
}

func (q *Queue) publish(ctx context.Context, key string, event eventbus.Event) {
	if q.bus == nil {
		return
	}

	if err := q.bus.Publish(ctx, key, event); err != nil {
		q.logger.Warn("Failed to publish event", "event_type", event.GetType(), "error", err)
	}
}

func (q *Queue) baseEvent(eventType events.EventType, jobID, workflowID string) events.BaseEvent {
	base := events.NewBaseEvent(eventType, jobID, workflowID)
	base.AgentID = q.manager.agentID

	return base
}
