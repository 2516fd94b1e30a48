// Package procwatch reports process liveness for completion inference.
package procwatch

import (
	"context"

	"github.com/shirou/gopsutil/v3/process"
)

// Watcher checks whether a PID refers to a live process.
type Watcher struct{}

func NewWatcher() *Watcher {
	return &Watcher{}
}

// Alive reports whether the process exists and is not a zombie. A reused PID
// belonging to another program still counts as alive; callers attach PIDs
// they own, so the window for reuse is the job's own lifetime.
func (*Watcher) Alive(ctx context.Context, pid int32) (bool, error) {
	exists, err := process.PidExistsWithContext(ctx, pid)
	if err != nil || !exists {
		return false, err
	}

	proc, err := process.NewProcessWithContext(ctx, pid)
	if err != nil {
		return false, nil
	}

	statuses, err := proc.StatusWithContext(ctx)
	if err != nil {
		// Status can be unreadable on some platforms; existence is enough.
		return true, nil
	}

	for _, s := range statuses {
		if s == process.Zombie {
			return false, nil
		}
	}

	return true, nil
}
