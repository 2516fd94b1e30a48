package main

import (
	"context"
	"os"

	pkgcmd "github.com/deskpilot/deskpilot/pkg/cmd"
	"github.com/deskpilot/deskpilot/pkg/log"
	"github.com/google/uuid"
	cli "github.com/urfave/cli/v3"
)

func main() {
	cmd := &cli.Command{
		Name:                  "deskpilot-agent",
		EnableShellCompletion: true,
		Usage:                 "Run desktop automation workflows on this machine",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "agent-id",
				Aliases: []string{"id"},
				Usage:   "Custom agent ID (auto-generated if not provided)",
				Value:   "",
				Sources: cli.EnvVars("AGENT_ID"),
			},
			&cli.StringFlag{
				Name:    "database-url",
				Usage:   "Storage location for workflow definitions",
				Value:   "file://./data",
				Sources: cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "workflows-path",
				Usage:   "Directory of workflow YAML files to import on startup",
				Sources: cli.EnvVars("WORKFLOWS_PATH"),
			},
			&cli.StringFlag{
				Name:    "templates-path",
				Usage:   "Directory containing detection template images",
				Value:   "./templates",
				Sources: cli.EnvVars("TEMPLATES_PATH"),
			},
			&cli.StringFlag{
				Name:    "screenshots-path",
				Usage:   "Directory for diagnostic screenshots (empty disables)",
				Sources: cli.EnvVars("SCREENSHOTS_PATH"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus provider (gochannel, kafka)",
				Value:   "gochannel",
				Sources: cli.EnvVars("EVENT_BUS"),
			},
			&cli.DurationFlag{
				Name:    "retention",
				Usage:   "How long to keep finished jobs before pruning",
				Value:   defaultRetention,
				Sources: cli.EnvVars("JOB_RETENTION"),
			},
			&cli.BoolFlag{
				Name:    "tracing",
				Usage:   "Enable OpenTelemetry tracing (OTLP HTTP exporter)",
				Sources: cli.EnvVars("TRACING_ENABLED"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			agentID := command.String("agent-id")
			if agentID == "" {
				agentID = "agent-" + uuid.New().String()[:8]
			}

			logger := log.WithModule("deskpilot-agent").With("agent_id", agentID)
			logger.InfoContext(ctx, "Initializing Deskpilot Agent")

			eventBus := pkgcmd.NewEventBus(command.String("event-bus"), logger)
			defer func() {
				if err := eventBus.Close(); err != nil {
					logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
				}
			}()

			persist := pkgcmd.NewPersistence(command.String("database-url"))
			defer func() {
				if err := persist.Close(ctx); err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
				}
			}()

			agent, err := NewAgent(ctx, AgentConfig{
				ID:             agentID,
				WorkflowsPath:  command.String("workflows-path"),
				TemplatesPath:  command.String("templates-path"),
				ScreenshotsDir: command.String("screenshots-path"),
				Retention:      command.Duration("retention"),
				TracingEnabled: command.Bool("tracing"),
			}, persist, eventBus, logger)
			if err != nil {
				return err
			}

			return agent.Run(ctx)
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		panic(err)
	}
}
