// Package jobs supervises job lifecycle: creation, queueing, execution,
// completion inference, and retention. Status transitions are monotone and
// serialized under the manager's lock; a terminal job never changes again.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/deskpilot/deskpilot/pkg/eventbus"
	"github.com/deskpilot/deskpilot/pkg/events"
	"github.com/deskpilot/deskpilot/pkg/models"
	"github.com/deskpilot/deskpilot/pkg/protocol"
	"github.com/google/uuid"
)

// ErrJobNotFound indicates a job was not found by the given identifier.
var ErrJobNotFound = errors.New("job not found")

// IsJobNotFound checks if an error indicates a job was not found.
func IsJobNotFound(err error) bool {
	return errors.Is(err, ErrJobNotFound)
}

// jobEntry pairs a job with its runtime-only supervision state.
type jobEntry struct {
	job *models.Job

	// cancelRequested is the cooperative cancellation flag probed by the
	// engine between steps.
	cancelRequested bool

	// forceComplete marks a pending external completion signal. It is
	// consumed exactly once, by whichever finalization path wins.
	forceComplete bool
}

// Manager owns every job's record and arbitrates all status transitions.
type Manager struct {
	mu      sync.Mutex
	entries map[string]*jobEntry

	watcher protocol.ProcessWatcher
	bus     eventbus.EventPublisher
	logger  *slog.Logger
	agentID string
}

func NewManager(watcher protocol.ProcessWatcher, bus eventbus.EventPublisher, logger *slog.Logger, agentID string) *Manager {
	return &Manager{
		entries: make(map[string]*jobEntry),
		watcher: watcher,
		bus:     bus,
		logger:  logger.With("module", "job_manager"),
		agentID: agentID,
	}
}

// Create registers a new job in the created state. PID, when non-zero, is the
// target application's OS process; its exit implies the job is finished.
func (m *Manager) Create(workflowID string, inputs map[string]any, pid int32, totalSteps int) *models.Job {
	job := &models.Job{
		ID:         "job-" + uuid.New().String()[:8],
		WorkflowID: workflowID,
		Status:     models.JobStatusCreated,
		PID:        pid,
		Inputs:     inputs,
		TotalSteps: totalSteps,
		CreatedAt:  time.Now().UTC(),
	}

	m.mu.Lock()
	m.entries[job.ID] = &jobEntry{job: job}
	m.mu.Unlock()

	m.logger.Info("Job created", "job_id", job.ID, "workflow_id", workflowID, "pid", pid)

	return job
}

// Job returns a snapshot copy of the job's current record.
func (m *Manager) Job(id string) (*models.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.entries[id]
	if !ok {
		return nil, fmt.Errorf("job %s: %w", id, ErrJobNotFound)
	}

	return snapshot(entry.job), nil
}

// Jobs returns snapshots of every known job.
func (m *Manager) Jobs() []*models.Job {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]*models.Job, 0, len(m.entries))
	for _, entry := range m.entries {
		out = append(out, snapshot(entry.job))
	}

	return out
}

// Poll returns the job's progress snapshot. For a running job with an
// attached process, a dead process is taken as completion: the UI the
// workflow drives is gone, so no further step can execute. Polling a
// terminal job is a pure read and always reports the same status.
func (m *Manager) Poll(ctx context.Context, id string) (models.JobProgress, error) {
	m.mu.Lock()
	entry, ok := m.entries[id]
	if !ok {
		m.mu.Unlock()

		return models.JobProgress{}, fmt.Errorf("job %s: %w", id, ErrJobNotFound)
	}

	job := entry.job
	pid := job.PID
	running := job.Status == models.JobStatusRunning
	m.mu.Unlock()

	if running && pid > 0 && m.watcher != nil {
		alive, err := m.watcher.Alive(ctx, pid)
		if err != nil {
			m.logger.Warn("Process liveness check failed", "job_id", id, "pid", pid, "error", err)
		} else if !alive {
			m.inferCompletion(ctx, id)
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if entry, ok := m.entries[id]; ok {
		return entry.job.Progress(), nil
	}

	return models.JobProgress{}, fmt.Errorf("job %s: %w", id, ErrJobNotFound)
}

// inferCompletion finalizes a running job whose process has exited. The final
// status depends on the last recorded step: a failed fatal step means the
// process died on a failure path.
func (m *Manager) inferCompletion(ctx context.Context, id string) {
	m.mu.Lock()

	entry, ok := m.entries[id]
	if !ok || entry.job.Status != models.JobStatusRunning {
		m.mu.Unlock()

		return
	}

	status := models.JobStatusDone
	reason := ""

	if n := len(entry.job.Records); n > 0 && !entry.job.Records[n-1].Success {
		status = models.JobStatusFailed
		reason = entry.job.Records[n-1].Error
	}

	m.finalizeLocked(entry, status, reason)
	m.mu.Unlock()

	m.logger.Info("Job completed by process exit", "job_id", id, "status", status)
	m.publishTerminal(ctx, id, status, reason)
}

// Cancel requests cooperative cancellation. A created job cancels
// immediately; a running job's flag is observed by the engine at the next
// step boundary or poll. Cancelling a terminal job is an error.
func (m *Manager) Cancel(ctx context.Context, id string) error {
	m.mu.Lock()

	entry, ok := m.entries[id]
	if !ok {
		m.mu.Unlock()

		return fmt.Errorf("job %s: %w", id, ErrJobNotFound)
	}

	job := entry.job

	if job.Status.Terminal() {
		m.mu.Unlock()

		return fmt.Errorf("job %s already %s", id, job.Status)
	}

	if job.Status == models.JobStatusCreated {
		m.finalizeLocked(entry, models.JobStatusCancelled, "cancelled before start")
		m.mu.Unlock()

		m.logger.Info("Queued job cancelled", "job_id", id)
		m.publishTerminal(ctx, id, models.JobStatusCancelled, "cancelled before start")

		return nil
	}

	entry.cancelRequested = true
	m.mu.Unlock()

	m.logger.Info("Cancellation requested", "job_id", id)

	return nil
}

// ForceComplete finalizes a running job on an external completion signal,
// with the outcome the signaller observed (done or failed). The signal is
// consumed exactly once: if process-exit inference or the engine finalizes
// the job first, ForceComplete reports the conflict instead of
// double-finalizing. A queued job cannot be force-completed; it has not
// touched the desktop yet.
func (m *Manager) ForceComplete(ctx context.Context, id string, status models.JobStatus, reason string) error {
	if status != models.JobStatusDone && status != models.JobStatusFailed {
		return fmt.Errorf("job %s: %q is not a completion outcome", id, status)
	}

	m.mu.Lock()

	entry, ok := m.entries[id]
	if !ok {
		m.mu.Unlock()

		return fmt.Errorf("job %s: %w", id, ErrJobNotFound)
	}

	job := entry.job

	if job.Status.Terminal() {
		m.mu.Unlock()

		return fmt.Errorf("job %s already %s", id, job.Status)
	}

	if entry.forceComplete {
		m.mu.Unlock()

		return fmt.Errorf("job %s completion already signalled", id)
	}

	if job.Status != models.JobStatusRunning || !m.finalizeLocked(entry, status, reason) {
		from := job.Status
		m.mu.Unlock()

		return fmt.Errorf("job %s is %s, not running", id, from)
	}

	entry.forceComplete = true
	m.mu.Unlock()

	m.logger.Info("Job force-completed", "job_id", id, "status", status)
	m.publishTerminal(ctx, id, status, reason)

	return nil
}

// CancelRequested is the engine-facing cancellation probe for a job.
func (m *Manager) CancelRequested(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.entries[id]

	return ok && entry.cancelRequested
}

// markRunning transitions a queued job to running. Returns false when the
// job was cancelled or finalized while it waited in the queue.
func (m *Manager) markRunning(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.entries[id]
	if !ok || !entry.job.Status.CanTransition(models.JobStatusRunning) {
		return false
	}

	now := time.Now().UTC()
	entry.job.Status = models.JobStatusRunning
	entry.job.StartedAt = &now

	return true
}

// recordProgress updates the step cursor and records for a running job.
func (m *Manager) recordProgress(id string, cursor int, records []models.StepRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.entries[id]
	if !ok || entry.job.Status.Terminal() {
		return
	}

	if cursor > entry.job.StepCursor {
		entry.job.StepCursor = cursor
	}

	if records != nil {
		entry.job.Records = records
	}
}

// finalize moves the job to a terminal status, if still legal. Returns false
// when another path already finalized it.
func (m *Manager) finalize(id string, status models.JobStatus, reason string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.entries[id]
	if !ok {
		return false
	}

	return m.finalizeLocked(entry, status, reason)
}

func (m *Manager) finalizeLocked(entry *jobEntry, status models.JobStatus, reason string) bool {
	if !entry.job.Status.CanTransition(status) {
		return false
	}

	now := time.Now().UTC()
	entry.job.Status = status
	entry.job.FinishedAt = &now

	if status == models.JobStatusFailed || status == models.JobStatusCancelled {
		entry.job.LastError = reason
	}

	return true
}

// PruneTerminal removes terminal jobs that finished before the retention
// cutoff. Returns how many were removed.
func (m *Manager) PruneTerminal(retention time.Duration) int {
	cutoff := time.Now().UTC().Add(-retention)

	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0

	for id, entry := range m.entries {
		job := entry.job
		if job.Status.Terminal() && job.FinishedAt != nil && job.FinishedAt.Before(cutoff) {
			delete(m.entries, id)

			removed++
		}
	}

	if removed > 0 {
		m.logger.Info("Pruned terminal jobs", "removed", removed)
	}

	return removed
}

func (m *Manager) publishTerminal(ctx context.Context, id string, status models.JobStatus, reason string) {
	if m.bus == nil {
		return
	}

	m.mu.Lock()
	entry, ok := m.entries[id]

	var (
		workflowID string
		duration   time.Duration
	)

	if ok {
		workflowID = entry.job.WorkflowID
		if entry.job.StartedAt != nil && entry.job.FinishedAt != nil {
			duration = entry.job.FinishedAt.Sub(*entry.job.StartedAt)
		}
	}
	m.mu.Unlock()

	if !ok {
		return
	}

	var event eventbus.Event

	switch status {
	case models.JobStatusDone:
		event = events.JobFinished{
			BaseEvent: m.baseEvent(events.JobFinishedEvent, id, workflowID),
			Duration:  duration,
		}
	case models.JobStatusFailed:
		event = events.JobFailed{
			BaseEvent: m.baseEvent(events.JobFailedEvent, id, workflowID),
			Error:     reason,
			Duration:  duration,
		}
	case models.JobStatusCancelled:
		event = events.JobCancelled{
			BaseEvent: m.baseEvent(events.JobCancelledEvent, id, workflowID),
			Duration:  duration,
		}
	default:
		return
	}

	if err := m.bus.Publish(ctx, id, event); err != nil {
		m.logger.Warn("Failed to publish job event", "job_id", id, "error", err)
	}
}

func (m *Manager) baseEvent(eventType events.EventType, jobID, workflowID string) events.BaseEvent {
	base := events.NewBaseEvent(eventType, jobID, workflowID)
	base.AgentID = m.agentID

	return base
}

func snapshot(job *models.Job) *models.Job {
	copied := *job
	copied.Records = append([]models.StepRecord(nil), job.Records...)

	return &copied
}
