package main

import (
	"context"
	"os"

	"github.com/deskpilot/deskpilot/pkg/log"
	cli "github.com/urfave/cli/v3"
)

const defaultPort = 9091

func main() {
	logger := log.WithModule("api")

	cmd := &cli.Command{
		Name:                  "deskpilot-api",
		Usage:                 "Submit and supervise desktop automation jobs",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to run the API server on",
				Value:   defaultPort,
				Sources: cli.EnvVars("PORT"),
			},
			&cli.StringFlag{
				Name:    "database-url",
				Usage:   "Storage location for workflow definitions",
				Value:   "file://./data",
				Sources: cli.EnvVars("DATABASE_URL"),
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
			&cli.StringFlag{
				Name:    "agent-id",
				Usage:   "Identifier stamped on published events",
				Value:   "deskpilot-api",
				Sources: cli.EnvVars("AGENT_ID"),
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

			logger.InfoContext(ctx, "Initializing Deskpilot API")

			api, err := NewAPI(ctx, logger, APIConfig{
				DatabaseURL:    command.String("database-url"),
				TemplatesPath:  command.String("templates-path"),
				ScreenshotsDir: command.String("screenshots-path"),
				EventBus:       command.String("event-bus"),
				AgentID:        command.String("agent-id"),
				TracingEnabled: command.Bool("tracing"),
			})
			if err != nil {
				return err
			}

			defer api.Close(ctx)

			return api.Start(ctx, command.Int("port"))
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		panic(err)
	}
}
