package protocol

import "github.com/deskpilot/deskpilot/pkg/models"

// WindowEnumerator snapshots the OS window list. The snapshot order is the
// enumeration order; the resolver relies on it for deterministic
// tie-breaking.
type WindowEnumerator interface {
	Snapshot() ([]models.WindowInfo, error)
}

// WindowCloser asks the OS to close a window gracefully.
type WindowCloser interface {
	Close(handle uintptr) error
}
