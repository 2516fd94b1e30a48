// Package workflow implements the step-execution engine: it interprets a
// workflow's ordered steps, calling the resolver, matcher, and actuator as
// each step directs, under explicit timeout and failure policy.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/deskpilot/deskpilot/pkg/eventbus"
	"github.com/deskpilot/deskpilot/pkg/events"
	"github.com/deskpilot/deskpilot/pkg/models"
	"github.com/deskpilot/deskpilot/pkg/otelhelper"
	"github.com/deskpilot/deskpilot/pkg/protocol"
	"github.com/deskpilot/deskpilot/pkg/registry"
	"github.com/deskpilot/deskpilot/pkg/resolver"
	"github.com/deskpilot/deskpilot/pkg/vision"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// ErrCancelled reports that the run observed its cancellation flag. It is a
// distinct terminal outcome, not a failure.
var ErrCancelled = errors.New("cancelled")

// TemplateStore loads reference templates by name.
type TemplateStore interface {
	Load(name string) (vision.Template, error)
}

// Deps are the collaborators the engine consumes. All are required except
// Screenshots and Notifier, which back diagnostic-only steps and may be nil.
type Deps struct {
	Actuator    protocol.Actuator
	Clipboard   protocol.Clipboard
	Capturer    protocol.ScreenCapturer
	Screenshots protocol.ScreenshotSink
	Closer      protocol.WindowCloser
	Notifier    protocol.Notifier
	Resolver    *resolver.Resolver
	Templates   TemplateStore
}

// Run describes one engine invocation. Cancelled is the cooperative
// cancellation probe, checked between steps and on every detect-loop poll.
// OnCursor reports forward progress of the step cursor.
type Run struct {
	Job       *models.Job
	Workflow  *models.Workflow
	Inputs    map[string]any
	Cancelled func() bool
	OnCursor  func(cursor int)
}

// Outcome is the terminal result of a run. Status is one of done, failed, or
// cancelled; the engine never returns a non-terminal status.
type Outcome struct {
	Status  models.JobStatus
	Reason  string
	Records []models.StepRecord
}

// runState carries per-run caches: the resolved target window and the last
// successful match, both reusable by later steps.
type runState struct {
	run       *Run
	window    *models.WindowInfo
	lastMatch *models.MatchResult
	logger    *slog.Logger
}

type Engine struct {
	deps     Deps
	registry *registry.Registry
	bus      eventbus.EventPublisher
	tracer   trace.Tracer
	logger   *slog.Logger
	agentID  string
}

func NewEngine(deps Deps, reg *registry.Registry, bus eventbus.EventPublisher, tracer trace.Tracer, logger *slog.Logger, agentID string) *Engine {
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("deskpilot")
	}

	return &Engine{
		deps:     deps,
		registry: reg,
		bus:      bus,
		tracer:   tracer,
		logger:   logger.With("module", "workflow_engine"),
		agentID:  agentID,
	}
}

// Execute walks the workflow's steps strictly in order and returns a
// terminal outcome. No error path escapes a step boundary: every failure is
// captured in a step record and folded into the outcome.
func (e *Engine) Execute(ctx context.Context, run *Run) Outcome {
	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "workflow.execute",
		attribute.String(otelhelper.JobIDKey, run.Job.ID),
		attribute.String(otelhelper.WorkflowIDKey, run.Workflow.ID),
	)
	defer span.End()

	logger := e.logger.With("job_id", run.Job.ID, "workflow_id", run.Workflow.ID)
	logger.InfoContext(ctx, "Starting workflow execution", "total_steps", len(run.Workflow.Steps))

	state := &runState{run: run, logger: logger}
	records := make([]models.StepRecord, 0, len(run.Workflow.Steps))

	for i, step := range run.Workflow.Steps {
		if e.cancelled(ctx, run) {
			logger.InfoContext(ctx, "Cancellation observed between steps", "step_index", i)

			return Outcome{Status: models.JobStatusCancelled, Reason: "cancelled", Records: records}
		}

		record := e.executeStep(ctx, state, i, step)
		records = append(records, record)

		if run.OnCursor != nil {
			run.OnCursor(i + 1)
		}

		if !record.Success {
			if record.Error == ErrCancelled.Error() {
				return Outcome{Status: models.JobStatusCancelled, Reason: "cancelled", Records: records}
			}

			if step.Fatal {
				logger.WarnContext(ctx, "Fatal step failed, aborting workflow",
					"step_index", i, "step", step.Name, "error", record.Error)

				reason := fmt.Sprintf("step %q failed: %s", step.Name, record.Error)

				return Outcome{Status: models.JobStatusFailed, Reason: reason, Records: records}
			}

			logger.WarnContext(ctx, "Step failed, continuing (non-fatal)",
				"step_index", i, "step", step.Name, "error", record.Error)
		}
	}

	logger.InfoContext(ctx, "Workflow completed", "steps_executed", len(records))

	return Outcome{Status: models.JobStatusDone, Records: records}
}

func (e *Engine) executeStep(ctx context.Context, state *runState, index int, step models.Step) models.StepRecord {
	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "workflow.step",
		attribute.String(otelhelper.StepNameKey, step.Name),
		attribute.String(otelhelper.ActionKindKey, string(step.Kind)),
		attribute.Int(otelhelper.StepIndexKey, index),
	)
	defer span.End()

	record := models.StepRecord{
		Index:     index,
		Kind:      step.Kind,
		Name:      step.Name,
		StartedAt: time.Now().UTC(),
	}

	e.publish(ctx, state.run, events.StepStarted{
		BaseEvent: e.baseEvent(events.StepStartedEvent, state.run),
		StepIndex: index,
		StepName:  step.Name,
		Kind:      step.Kind,
	})

	err := e.runStep(ctx, state, step)

	record.DurationMs = time.Since(record.StartedAt).Milliseconds()
	record.Success = err == nil

	if err != nil {
		record.Error = err.Error()

		otelhelper.SetError(span, err)
	}

	e.publish(ctx, state.run, events.StepFinished{
		BaseEvent: e.baseEvent(events.StepFinishedEvent, state.run),
		Record:    record,
	})

	return record
}

// runStep applies the universal delays, validates parameters, and dispatches
// to the kind's handler. Diagnostic-only kinds have their failures demoted
// to log lines here.
func (e *Engine) runStep(ctx context.Context, state *runState, step models.Step) error {
	if step.PreDelay > 0 {
		if err := e.sleep(ctx, state.run, step.PreDelay); err != nil {
			return err
		}
	}

	if err := e.registry.Validate(step.Kind, step.Params); err != nil {
		return err
	}

	err := e.dispatch(ctx, state, step)

	if err != nil && diagnosticOnly(step.Kind) {
		state.logger.WarnContext(ctx, "Diagnostic step failed, ignoring",
			"step", step.Name, "kind", step.Kind, "error", err)

		err = nil
	}

	if err != nil {
		return err
	}

	if step.PostDelay > 0 {
		if err := e.sleep(ctx, state.run, step.PostDelay); err != nil {
			return err
		}
	}

	return nil
}

// dispatch is the exhaustive handler table over the closed action set.
func (e *Engine) dispatch(ctx context.Context, state *runState, step models.Step) error {
	switch step.Kind {
	case models.ActionClick:
		return e.handleClick(ctx, state, step)
	case models.ActionClickAndType:
		return e.handleClickAndType(ctx, state, step)
	case models.ActionDetect:
		return e.handleDetect(ctx, state, step)
	case models.ActionDetectLoop:
		return e.handleDetectLoop(ctx, state, step)
	case models.ActionWait:
		return e.handleWait(ctx, state, step)
	case models.ActionKeyPress:
		return e.handleKeyPress(ctx, state, step)
	case models.ActionClipboard:
		return e.handleClipboard(ctx, state, step)
	case models.ActionScreenshot:
		return e.handleScreenshot(ctx, state, step)
	case models.ActionCloseWindow:
		return e.handleCloseWindow(ctx, state, step)
	case models.ActionWebhook:
		return e.handleWebhook(ctx, state, step)
	case models.ActionComposite:
		return e.handleComposite(ctx, state, step)
	case models.ActionCompletion:
		return e.handleCompletion(ctx, state, step)
	default:
		return fmt.Errorf("unhandled action kind %q", step.Kind)
	}
}

func diagnosticOnly(kind models.ActionKind) bool {
	return kind == models.ActionScreenshot || kind == models.ActionWebhook
}

func (e *Engine) cancelled(ctx context.Context, run *Run) bool {
	if ctx.Err() != nil {
		return true
	}

	return run.Cancelled != nil && run.Cancelled()
}

// sleep blocks for d, waking early on cancellation. The wake granularity
// bounds how stale a cancellation can go unobserved inside a wait.
func (e *Engine) sleep(ctx context.Context, run *Run, d time.Duration) error {
	const tick = 50 * time.Millisecond

	deadline := time.Now().Add(d)

	for {
		if e.cancelled(ctx, run) {
			return ErrCancelled
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil
		}

		if remaining > tick {
			remaining = tick
		}

		select {
		case <-ctx.Done():
			return ErrCancelled
		case <-time.After(remaining):
		}
	}
}

func (e *Engine) baseEvent(eventType events.EventType, run *Run) events.BaseEvent {
	base := events.NewBaseEvent(eventType, run.Job.ID, run.Workflow.ID)
	base.AgentID = e.agentID

	return base
}

func (e *Engine) publish(ctx context.Context, run *Run, event eventbus.Event) {
	if e.bus == nil {
		return
	}

	if err := e.bus.Publish(ctx, run.Job.ID, event); err != nil {
		e.logger.WarnContext(ctx, "Failed to publish event", "event_type", event.GetType(), "error", err)
	}
}
