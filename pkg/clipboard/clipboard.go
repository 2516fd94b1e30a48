// Package clipboard adapts the system clipboard to the engine's interface.
package clipboard

import (
	"fmt"

	"github.com/atotto/clipboard"
)

// Indirected for tests; CI runners have no clipboard.
var (
	readAll  = clipboard.ReadAll
	writeAll = clipboard.WriteAll
)

// System is the real OS clipboard.
type System struct{}

func NewSystem() *System {
	return &System{}
}

func (*System) Read() (string, error) {
	content, err := readAll()
	if err != nil {
		return "", fmt.Errorf("read clipboard: %w", err)
	}

	return content, nil
}

func (*System) Write(text string) error {
	if err := writeAll(text); err != nil {
		return fmt.Errorf("write clipboard: %w", err)
	}

	return nil
}
