package workflow

import (
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/deskpilot/deskpilot/pkg/models"
	"github.com/deskpilot/deskpilot/pkg/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLoader(t *testing.T) *Loader {
	t.Helper()

	reg, err := registry.NewRegistry(slog.New(slog.NewTextHandler(os.Stderr, nil)))
	require.NoError(t, err)

	return NewLoader(reg)
}

const sampleYAML = `
id: wf-send-message
name: Send chat message
version: "2"
window:
  class_name: Chrome_WidgetWin_1
  process_name: chat.exe
  title_any_of: ["Chat"]
  min_width: 400
  min_height: 300
inputs:
  - name: message
    description: Text to send
    required: true
steps:
  - name: Wait for composer
    kind: detect_loop
    fatal: true
    params:
      template: composer.png
      timeout: 30
      poll_interval: 2
  - name: Type message
    kind: click_and_type
    fatal: true
    pre_delay: 0.5
    params:
      text: inputs.message
  - name: Send
    kind: key_press
    params:
      key: enter
  - name: Done
    kind: completion
`

func TestLoadWorkflow(t *testing.T) {
	l := newTestLoader(t)

	wf, err := l.Load([]byte(sampleYAML))
	require.NoError(t, err)

	assert.Equal(t, "wf-send-message", wf.ID)
	assert.Equal(t, "2", wf.Version)
	require.NotNil(t, wf.Window)
	assert.Equal(t, "chat.exe", wf.Window.ProcessName)
	require.Len(t, wf.Inputs, 1)
	assert.True(t, wf.Inputs[0].Required)

	require.Len(t, wf.Steps, 4)
	assert.Equal(t, models.ActionDetectLoop, wf.Steps[0].Kind)
	assert.True(t, wf.Steps[0].Fatal)
	assert.Equal(t, 500*time.Millisecond, wf.Steps[1].PreDelay)
	assert.Equal(t, "step-3", wf.Steps[2].ID)
}

func TestLoadRejectsUnknownKind(t *testing.T) {
	l := newTestLoader(t)

	_, err := l.Load([]byte(`
name: Bad workflow
steps:
  - name: Teleport
    kind: teleport
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown action kind")
}

func TestLoadRejectsInvalidParams(t *testing.T) {
	l := newTestLoader(t)

	_, err := l.Load([]byte(`
name: Bad params
steps:
  - name: Wait forever
    kind: detect_loop
    params:
      timeout: 30
`))
	require.Error(t, err)
}

func TestLoadRejectsEmptySteps(t *testing.T) {
	l := newTestLoader(t)

	_, err := l.Load([]byte(`
name: Empty workflow
steps: []
`))
	require.Error(t, err)
}

func TestLoadCompositeSingleLevel(t *testing.T) {
	l := newTestLoader(t)

	wf, err := l.Load([]byte(`
name: With composite
steps:
  - name: Copy response
    kind: composite
    steps:
      - name: Select all
        kind: key_press
        params:
          key: ctrl+a
      - name: Copy
        kind: clipboard
        params:
          operation: copy
`))
	require.NoError(t, err)
	require.Len(t, wf.Steps, 1)
	assert.Len(t, wf.Steps[0].Steps, 2)
}

func TestLoadRejectsNestedComposite(t *testing.T) {
	l := newTestLoader(t)

	_, err := l.Load([]byte(`
name: Too deep
steps:
  - name: Outer
    kind: composite
    steps:
      - name: Inner
        kind: composite
        steps:
          - name: Leaf
            kind: completion
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot nest")
}
