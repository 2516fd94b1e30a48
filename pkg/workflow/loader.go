package workflow

import (
	"fmt"
	"os"
	"time"

	"github.com/deskpilot/deskpilot/pkg/models"
	"github.com/deskpilot/deskpilot/pkg/registry"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// workflowDoc is the on-disk YAML shape of a workflow. Delays are seconds,
// matching step params.
type workflowDoc struct {
	ID          string         `yaml:"id"`
	Name        string         `yaml:"name"`
	Version     string         `yaml:"version"`
	Description string         `yaml:"description"`
	Window      *windowDoc     `yaml:"window"`
	Inputs      []inputDoc     `yaml:"inputs"`
	Steps       []stepDoc      `yaml:"steps"`
	Metadata    map[string]any `yaml:"metadata"`
}

type windowDoc struct {
	ClassName           string   `yaml:"class_name"`
	ProcessName         string   `yaml:"process_name"`
	ProcessPathContains string   `yaml:"process_path_contains"`
	TitleAnyOf          []string `yaml:"title_any_of"`
	TitleNoneOf         []string `yaml:"title_none_of"`
	RequireTitleMatch   bool     `yaml:"require_title_match"`
	MinWidth            int      `yaml:"min_width"`
	MinHeight           int      `yaml:"min_height"`
}

type inputDoc struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Required    bool   `yaml:"required"`
}

type stepDoc struct {
	ID        string         `yaml:"id"`
	Name      string         `yaml:"name"`
	Kind      string         `yaml:"kind"`
	Params    map[string]any `yaml:"params"`
	Fatal     bool           `yaml:"fatal"`
	PreDelay  float64        `yaml:"pre_delay"`
	PostDelay float64        `yaml:"post_delay"`
	Steps     []stepDoc      `yaml:"steps"`
}

// Loader parses workflow YAML documents into validated models. Every step's
// kind must be a member of the closed action set and its params must satisfy
// the registry's schema for that kind.
type Loader struct {
	registry *registry.Registry
	validate *validator.Validate
}

func NewLoader(reg *registry.Registry) *Loader {
	return &Loader{
		registry: reg,
		validate: validator.New(),
	}
}

// LoadFile reads and parses a workflow YAML file.
func (l *Loader) LoadFile(path string) (*models.Workflow, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read workflow file: %w", err)
	}

	return l.Load(data)
}

// Load parses a workflow from YAML bytes.
func (l *Loader) Load(data []byte) (*models.Workflow, error) {
	var doc workflowDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse workflow yaml: %w", err)
	}

	wf := &models.Workflow{
		ID:          doc.ID,
		Name:        doc.Name,
		Version:     doc.Version,
		Description: doc.Description,
		Metadata:    doc.Metadata,
	}

	if doc.Window != nil {
		wf.Window = &models.WindowDescriptor{
			ClassName:           doc.Window.ClassName,
			ProcessName:         doc.Window.ProcessName,
			ProcessPathContains: doc.Window.ProcessPathContains,
			TitleAnyOf:          doc.Window.TitleAnyOf,
			TitleNoneOf:         doc.Window.TitleNoneOf,
			RequireTitleMatch:   doc.Window.RequireTitleMatch,
			MinWidth:            doc.Window.MinWidth,
			MinHeight:           doc.Window.MinHeight,
		}
	}

	for _, in := range doc.Inputs {
		wf.Inputs = append(wf.Inputs, models.WorkflowInput{
			Name:        in.Name,
			Description: in.Description,
			Required:    in.Required,
		})
	}

	steps, err := l.convertSteps(doc.Steps, 0)
	if err != nil {
		return nil, err
	}

	wf.Steps = steps

	if err := l.validate.Struct(wf); err != nil {
		return nil, fmt.Errorf("workflow validation failed: %w", err)
	}

	return wf, nil
}

// Composite steps may nest one level deep; deeper nesting is rejected.
const maxNesting = 1

func (l *Loader) convertSteps(docs []stepDoc, depth int) ([]models.Step, error) {
	steps := make([]models.Step, 0, len(docs))

	for i, doc := range docs {
		kind := models.ActionKind(doc.Kind)
		if !l.registry.Known(kind) {
			return nil, fmt.Errorf("step %d (%s): unknown action kind %q", i, doc.Name, doc.Kind)
		}

		if err := l.registry.Validate(kind, doc.Params); err != nil {
			return nil, fmt.Errorf("step %d (%s): %w", i, doc.Name, err)
		}

		step := models.Step{
			ID:        doc.ID,
			Name:      doc.Name,
			Kind:      kind,
			Params:    doc.Params,
			Fatal:     doc.Fatal,
			PreDelay:  time.Duration(doc.PreDelay * float64(time.Second)),
			PostDelay: time.Duration(doc.PostDelay * float64(time.Second)),
		}

		if step.ID == "" {
			step.ID = fmt.Sprintf("step-%d", i+1)
		}

		if kind == models.ActionComposite {
			if depth >= maxNesting {
				return nil, fmt.Errorf("step %d (%s): composite steps cannot nest further", i, doc.Name)
			}

			if len(doc.Steps) == 0 {
				return nil, fmt.Errorf("step %d (%s): composite step has no sub-steps", i, doc.Name)
			}

			sub, err := l.convertSteps(doc.Steps, depth+1)
			if err != nil {
				return nil, err
			}

			step.Steps = sub
		}

		steps = append(steps, step)
	}

	return steps, nil
}
