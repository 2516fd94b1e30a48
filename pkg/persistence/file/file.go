// Package file provides file-based persistence for workflow definitions,
// storing one JSON document per workflow.
package file

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/deskpilot/deskpilot/pkg/models"
	"github.com/deskpilot/deskpilot/pkg/persistence"
)

const workflowsDir = "workflows"

// Persistence implements persistence.Persistence on the local file system.
type Persistence struct {
	root string
}

// NewPersistence creates a file persistence rooted at the given directory.
// Accepts a plain path or a file:// URL.
func NewPersistence(root string) *Persistence {
	return &Persistence{root: strings.Replace(root, "file://", "", 1)}
}

func (fp *Persistence) workflowPath(id string) string {
	return filepath.Join(fp.root, workflowsDir, id+".json")
}

func (fp *Persistence) Workflows(ctx context.Context) ([]*models.Workflow, error) {
	dir := os.DirFS(filepath.Join(fp.root, workflowsDir))

	jsonFiles, err := fs.Glob(dir, "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list workflow files: %w", err)
	}

	workflows := make([]*models.Workflow, 0, len(jsonFiles))

	for _, file := range jsonFiles {
		id := strings.TrimSuffix(file, ".json")

		workflow, err := fp.WorkflowByID(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("failed to load workflow %s: %w", id, err)
		}

		workflows = append(workflows, workflow)
	}

	return workflows, nil
}

func (fp *Persistence) WorkflowByID(_ context.Context, id string) (*models.Workflow, error) {
	data, err := os.ReadFile(fp.workflowPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, persistence.NewWorkflowError("WorkflowByID", id, persistence.ErrWorkflowNotFound)
		}

		return nil, persistence.NewWorkflowError("WorkflowByID", id, err)
	}

	var workflow models.Workflow
	if err := json.Unmarshal(data, &workflow); err != nil {
		return nil, persistence.NewWorkflowError("WorkflowByID", id, err)
	}

	return &workflow, nil
}

func (fp *Persistence) SaveWorkflow(_ context.Context, workflow *models.Workflow) error {
	if workflow.CreatedAt.IsZero() {
		workflow.CreatedAt = time.Now().UTC()
	}

	workflow.UpdatedAt = time.Now().UTC()

	if err := os.MkdirAll(filepath.Join(fp.root, workflowsDir), 0o755); err != nil {
		return persistence.NewWorkflowError("Save", workflow.ID, err)
	}

	data, err := json.MarshalIndent(workflow, "", "  ")
	if err != nil {
		return persistence.NewWorkflowError("Save", workflow.ID, err)
	}

	if err := os.WriteFile(fp.workflowPath(workflow.ID), data, 0o644); err != nil {
		return persistence.NewWorkflowError("Save", workflow.ID, err)
	}

	return nil
}

func (fp *Persistence) DeleteWorkflow(_ context.Context, id string) error {
	if err := os.Remove(fp.workflowPath(id)); err != nil {
		if os.IsNotExist(err) {
			return persistence.NewWorkflowError("Delete", id, persistence.ErrWorkflowNotFound)
		}

		return persistence.NewWorkflowError("Delete", id, err)
	}

	return nil
}

// HealthCheck verifies the root directory exists.
func (fp *Persistence) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(fp.root); os.IsNotExist(err) {
		return os.ErrNotExist
	}

	return nil
}

// Close performs any necessary cleanup. For file-based persistence, there is nothing to clean up.
func (fp *Persistence) Close(_ context.Context) error {
	return nil
}
