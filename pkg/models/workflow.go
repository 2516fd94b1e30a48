package models

import "time"

// ActionKind identifies one of the closed set of step actions. Adding a kind
// means extending this list and the engine's handler table; the registry
// refuses unknown kinds at load time.
type ActionKind string

const (
	ActionClick        ActionKind = "click"
	ActionClickAndType ActionKind = "click_and_type"
	ActionDetect       ActionKind = "detect"
	ActionDetectLoop   ActionKind = "detect_loop"
	ActionWait         ActionKind = "wait"
	ActionKeyPress     ActionKind = "key_press"
	ActionClipboard    ActionKind = "clipboard"
	ActionScreenshot   ActionKind = "screenshot"
	ActionCloseWindow  ActionKind = "close_window"
	ActionWebhook      ActionKind = "webhook"
	ActionComposite    ActionKind = "composite"
	ActionCompletion   ActionKind = "completion"
)

// ActionKinds lists every valid kind, in a stable order.
func ActionKinds() []ActionKind {
	return []ActionKind{
		ActionClick, ActionClickAndType, ActionDetect, ActionDetectLoop,
		ActionWait, ActionKeyPress, ActionClipboard, ActionScreenshot,
		ActionCloseWindow, ActionWebhook, ActionComposite, ActionCompletion,
	}
}

// Valid reports whether k is a member of the closed action set.
func (k ActionKind) Valid() bool {
	for _, known := range ActionKinds() {
		if k == known {
			return true
		}
	}

	return false
}

// Step is one declarative instruction in a workflow.
//
// Fatal controls failure policy: a fatal step aborts the workflow on failure,
// a non-fatal one logs and advances. PreDelay/PostDelay apply to every kind.
type Step struct {
	ID        string         `json:"id"         validate:"required"`
	Name      string         `json:"name"       validate:"required"`
	Kind      ActionKind     `json:"kind"       validate:"required"`
	Params    map[string]any `json:"params,omitempty"`
	Fatal     bool           `json:"fatal"`
	PreDelay  time.Duration  `json:"pre_delay,omitempty"`
	PostDelay time.Duration  `json:"post_delay,omitempty"`

	// Steps holds the nested sub-steps of a composite step.
	Steps []Step `json:"steps,omitempty"`
}

// WorkflowInput declares a named input value the caller supplies at
// submission time. String parameters of the form "inputs.<name>" resolve to
// the submitted value.
type WorkflowInput struct {
	Name        string `json:"name"        validate:"required"`
	Description string `json:"description,omitempty"`
	Required    bool   `json:"required"`
}

// Workflow is an ordered, immutable sequence of steps plus the criteria used
// to locate the target application's window. It is loaded once per job and
// read-only for the job's duration.
type Workflow struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"        validate:"required,min=3"`
	Version     string            `json:"version"`
	Description string            `json:"description"`
	Window      *WindowDescriptor `json:"window,omitempty"`
	Inputs      []WorkflowInput   `json:"inputs,omitempty"`
	Steps       []Step            `json:"steps"       validate:"required,min=1,dive"`
	Metadata    map[string]any    `json:"metadata,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}
