package cmd

import (
	"github.com/deskpilot/deskpilot/pkg/persistence"
	"github.com/deskpilot/deskpilot/pkg/persistence/file"
)

// NewPersistence creates a persistence backend from a database URL. Only the
// file backend is wired today; the URL scheme keeps the flag forward
// compatible.
func NewPersistence(databaseURL string) persistence.Persistence {
	return file.NewPersistence(databaseURL)
}
