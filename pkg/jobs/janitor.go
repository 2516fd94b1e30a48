package jobs

import (
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Janitor periodically removes terminal jobs older than the retention
// window, keeping the in-memory job table bounded on long-lived agents.
type Janitor struct {
	manager   *Manager
	retention time.Duration
	cron      *cron.Cron
	logger    *slog.Logger
}

// NewJanitor schedules pruning on the given cron expression, e.g.
// "*/10 * * * *" for every ten minutes.
func NewJanitor(manager *Manager, schedule string, retention time.Duration, logger *slog.Logger) (*Janitor, error) {
	j := &Janitor{
		manager:   manager,
		retention: retention,
		cron:      cron.New(),
		logger:    logger.With("module", "job_janitor"),
	}

	if _, err := j.cron.AddFunc(schedule, j.prune); err != nil {
		return nil, err
	}

	return j, nil
}

func (j *Janitor) Start() {
	j.cron.Start()
	j.logger.Info("Janitor started", "retention", j.retention)
}

func (j *Janitor) Stop() {
	ctx := j.cron.Stop()
	<-ctx.Done()
}

func (j *Janitor) prune() {
	removed := j.manager.PruneTerminal(j.retention)
	if removed > 0 {
		j.logger.Info("Retention pruning ran", "removed", removed)
	}
}
