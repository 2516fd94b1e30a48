// Package main provides the Deskpilot API server implementation.
package main

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	pkgcmd "github.com/deskpilot/deskpilot/pkg/cmd"
	"github.com/deskpilot/deskpilot/pkg/eventbus"
	"github.com/deskpilot/deskpilot/pkg/jobs"
	"github.com/deskpilot/deskpilot/pkg/otelhelper"
	"github.com/deskpilot/deskpilot/pkg/persistence"
	"github.com/deskpilot/deskpilot/pkg/platform"
	"github.com/deskpilot/deskpilot/pkg/procwatch"
	"github.com/deskpilot/deskpilot/pkg/registry"
	"github.com/deskpilot/deskpilot/pkg/resolver"
	"github.com/deskpilot/deskpilot/pkg/vision"
	"github.com/deskpilot/deskpilot/pkg/web"
	"github.com/deskpilot/deskpilot/pkg/workflow"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v3/middleware/logger"
	"go.opentelemetry.io/otel/trace"
)

const (
	janitorSchedule  = "*/10 * * * *"
	janitorRetention = time.Hour
)

type APIConfig struct {
	DatabaseURL    string
	TemplatesPath  string
	ScreenshotsDir string
	EventBus       string
	AgentID        string
	TracingEnabled bool
}

// API owns the full in-process stack: persistence, event bus, engine, job
// supervision, and the HTTP surface.
type API struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	eventBus    eventbus.EventBus
	manager     *jobs.Manager
	queue       *jobs.Queue
	janitor     *jobs.Janitor
	validate    *validator.Validate
}

func NewAPI(ctx context.Context, logger *slog.Logger, cfg APIConfig) (*API, error) {
	reg, err := registry.NewRegistry(logger)
	if err != nil {
		return nil, err
	}

	persist := pkgcmd.NewPersistence(cfg.DatabaseURL)
	eventBus := pkgcmd.NewEventBus(cfg.EventBus, logger)

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

	var tracer trace.Tracer

	if cfg.TracingEnabled {
		tracer, err = otelhelper.NewTracer(ctx, "deskpilot-api")
		if err != nil {
			return nil, err
		}
	}

	engine := workflow.NewEngine(deps, reg, eventBus, tracer, logger, cfg.AgentID)
	manager := jobs.NewManager(procwatch.NewWatcher(), eventBus, logger, cfg.AgentID)
	queue := jobs.NewQueue(manager, engine, eventBus, logger, 0)

	janitor, err := jobs.NewJanitor(manager, janitorSchedule, janitorRetention, logger)
	if err != nil {
		return nil, err
	}

	return &API{
		logger:      logger,
		persistence: persist,
		eventBus:    eventBus,
		manager:     manager,
		queue:       queue,
		janitor:     janitor,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
	}, nil
}

func (a *API) App() *fiber.App {
	handlers := web.NewAPIHandlers(a.manager, a.queue, a.persistence, a.validate)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(fiberlogger.New(fiberlogger.Config{
		DisableColors: true,
	}))

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Deskpilot API")
	})

	handlers.Register(app)

	return app
}

func (a *API) Start(ctx context.Context, port int) error {
	a.queue.Start(ctx)
	a.janitor.Start()

	return a.App().Listen(":" + strconv.Itoa(port))
}

func (a *API) Close(ctx context.Context) {
	a.janitor.Stop()

	if err := a.persistence.Close(ctx); err != nil {
		a.logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
	}

	if err := a.eventBus.Close(); err != nil {
		a.logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
	}
}
