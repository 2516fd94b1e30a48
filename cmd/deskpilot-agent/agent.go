// Package main provides the headless Deskpilot agent. It executes jobs on
// the local desktop, driven by job.submitted events published by a remote
// submission surface on a shared bus.
package main

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/deskpilot/deskpilot/pkg/eventbus"
	"github.com/deskpilot/deskpilot/pkg/events"
	"github.com/deskpilot/deskpilot/pkg/jobs"
	"github.com/deskpilot/deskpilot/pkg/otelhelper"
	"github.com/deskpilot/deskpilot/pkg/persistence"
	"github.com/deskpilot/deskpilot/pkg/platform"
	"github.com/deskpilot/deskpilot/pkg/procwatch"
	"github.com/deskpilot/deskpilot/pkg/registry"
	"github.com/deskpilot/deskpilot/pkg/resolver"
	"github.com/deskpilot/deskpilot/pkg/vision"
	"github.com/deskpilot/deskpilot/pkg/workflow"
	"go.opentelemetry.io/otel/trace"
)

const (
	defaultRetention = time.Hour
	janitorSchedule  = "*/10 * * * *"
)

type AgentConfig struct {
	ID             string
	WorkflowsPath  string
	TemplatesPath  string
	ScreenshotsDir string
	Retention      time.Duration
	TracingEnabled bool
}

type Agent struct {
	cfg         AgentConfig
	logger      *slog.Logger
	persistence persistence.Persistence
	eventBus    eventbus.EventBus
	loader      *workflow.Loader
	manager     *jobs.Manager
	queue       *jobs.Queue
	janitor     *jobs.Janitor
}

func NewAgent(ctx context.Context, cfg AgentConfig, persist persistence.Persistence, eventBus eventbus.EventBus, logger *slog.Logger) (*Agent, error) {
	reg, err := registry.NewRegistry(logger)
	if err != nil {
		return nil, err
	}

	var tracer trace.Tracer

	if cfg.TracingEnabled {
		tracer, err = otelhelper.NewTracer(ctx, "deskpilot-agent")
		if err != nil {
			return nil, err
		}
	}

	drivers := platform.New(cfg.ScreenshotsDir, logger)

	deps := workflow.Deps{
		Actuator:    drivers.Actuator,
		Clipboard:   drivers.Clipboard,
		Capturer:    drivers.Capturer,
		Screenshots: drivers.Screenshots,
		Closer:      drivers.Closer,
		Notifier:    drivers.Notifier,
		Resolver:    resolver.NewResolver(drivers.Enumerator, resolver.DefaultScoringConfig(), logger),
		Templates:   vision.NewDirStore(cfg.TemplatesPath),
	}

	engine := workflow.NewEngine(deps, reg, eventBus, tracer, logger, cfg.ID)
	manager := jobs.NewManager(procwatch.NewWatcher(), eventBus, logger, cfg.ID)
	queue := jobs.NewQueue(manager, engine, eventBus, logger, 0)

	retention := cfg.Retention
	if retention <= 0 {
		retention = defaultRetention
	}

	janitor, err := jobs.NewJanitor(manager, janitorSchedule, retention, logger)
	if err != nil {
		return nil, err
	}

	return &Agent{
		cfg:         cfg,
		logger:      logger,
		persistence: persist,
		eventBus:    eventBus,
		loader:      workflow.NewLoader(reg),
		manager:     manager,
		queue:       queue,
		janitor:     janitor,
	}, nil
}

// Run imports workflow files, starts the execution loop, and blocks until
// SIGINT or SIGTERM.
func (a *Agent) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if a.cfg.WorkflowsPath != "" {
		if err := a.importWorkflows(ctx); err != nil {
			return err
		}
	}

	if err := a.eventBus.Handle(events.JobSubmittedEvent, a.handleJobSubmitted(ctx)); err != nil {
		return err
	}

	if err := a.eventBus.Subscribe(ctx); err != nil {
		return err
	}

	a.queue.Start(ctx)
	a.janitor.Start()

	defer a.janitor.Stop()

	a.logger.InfoContext(ctx, "Agent running")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		a.logger.InfoContext(ctx, "Shutting down", "signal", sig.String())
	case <-ctx.Done():
	}

	cancel()
	a.queue.Wait()

	return nil
}

// importWorkflows loads every YAML file in the workflows directory into
// persistence. Invalid files abort startup: a silently skipped workflow is a
// job that can never run.
func (a *Agent) importWorkflows(ctx context.Context) error {
	root := os.DirFS(a.cfg.WorkflowsPath)

	matches, err := fs.Glob(root, "*.yaml")
	if err != nil {
		return err
	}

	ymlMatches, err := fs.Glob(root, "*.yml")
	if err != nil {
		return err
	}

	matches = append(matches, ymlMatches...)

	for _, name := range matches {
		wf, err := a.loader.LoadFile(filepath.Join(a.cfg.WorkflowsPath, name))
		if err != nil {
			return fmt.Errorf("import %s: %w", name, err)
		}

		if wf.ID == "" {
			wf.ID = "wf-" + name[:len(name)-len(filepath.Ext(name))]
		}

		if err := a.persistence.SaveWorkflow(ctx, wf); err != nil {
			return fmt.Errorf("save %s: %w", name, err)
		}

		a.logger.InfoContext(ctx, "Workflow imported", "workflow_id", wf.ID, "file", name)
	}

	a.logger.InfoContext(ctx, "Workflow import complete", "count", len(matches))

	return nil
}

// handleJobSubmitted enqueues direct submission requests from remote
// submitters. Every in-process queue stamps its owner's agent ID when it
// republishes job.submitted, so any event carrying an agent ID is already
// claimed; enqueueing it again would run the job twice.
func (a *Agent) handleJobSubmitted(runCtx context.Context) eventbus.EventHandler {
	return func(ctx context.Context, event any) error {
		submitted, ok := event.(*events.JobSubmitted)
		if !ok {
			return fmt.Errorf("unexpected event payload %T", event)
		}

		if submitted.AgentID != "" {
			return nil
		}

		wf, err := a.persistence.WorkflowByID(ctx, submitted.WorkflowID)
		if err != nil {
			a.logger.WarnContext(ctx, "Submitted workflow unknown",
				"workflow_id", submitted.WorkflowID, "error", err)

			return nil
		}

		job := a.manager.Create(wf.ID, submitted.Inputs, submitted.PID, len(wf.Steps))

		if _, err := a.queue.Submit(runCtx, job, wf); err != nil {
			a.logger.ErrorContext(ctx, "Failed to enqueue job", "job_id", job.ID, "error", err)
		}

		return nil
	}
}
