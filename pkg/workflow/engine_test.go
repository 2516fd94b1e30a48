package workflow

import (
	"context"
	"image"
	"log/slog"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/deskpilot/deskpilot/pkg/models"
	"github.com/deskpilot/deskpilot/pkg/registry"
	"github.com/deskpilot/deskpilot/pkg/resolver"
	"github.com/deskpilot/deskpilot/pkg/vision"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeActuator struct {
	moves     []int
	clicks    int
	doubles   int
	rights    int
	typed     []string
	keys      []string
	hotkeys   [][]string
	failClick error
}

func (f *fakeActuator) MoveTo(x, y int) error {
	f.moves = append(f.moves, x, y)

	return nil
}

func (f *fakeActuator) Click() error {
	f.clicks++

	return f.failClick
}

func (f *fakeActuator) DoubleClick() error {
	f.doubles++

	return nil
}

func (f *fakeActuator) RightClick() error {
	f.rights++

	return nil
}

func (f *fakeActuator) TypeText(text string) error {
	f.typed = append(f.typed, text)

	return nil
}

func (f *fakeActuator) KeyPress(key string) error {
	f.keys = append(f.keys, key)

	return nil
}

func (f *fakeActuator) Hotkey(keys ...string) error {
	f.hotkeys = append(f.hotkeys, keys)

	return nil
}

type fakeClipboard struct {
	content string
}

func (f *fakeClipboard) Read() (string, error) { return f.content, nil }

func (f *fakeClipboard) Write(text string) error {
	f.content = text

	return nil
}

type fakeCapturer struct {
	captures atomic.Int32
}

func (f *fakeCapturer) CaptureRegion(_ models.Rect) (image.Image, error) {
	f.captures.Add(1)

	// Flat gray never correlates with any template.
	return image.NewGray(image.Rect(0, 0, 64, 64)), nil
}

type fakeEnumerator struct{ windows []models.WindowInfo }

func (f *fakeEnumerator) Snapshot() ([]models.WindowInfo, error) { return f.windows, nil }

type fakeCloser struct{ closed []uintptr }

func (f *fakeCloser) Close(handle uintptr) error {
	f.closed = append(f.closed, handle)

	return nil
}

type fakeTemplates struct{}

func (fakeTemplates) Load(name string) (vision.Template, error) {
	img := image.NewGray(image.Rect(0, 0, 4, 4))
	for i := range img.Pix {
		img.Pix[i] = uint8(i * 16)
	}

	return vision.Template{Name: name, Image: img}, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func targetWindowInfo() models.WindowInfo {
	return models.WindowInfo{
		Handle:      0x1234,
		Title:       "Chat",
		ClassName:   "Chrome_WidgetWin_1",
		PID:         4321,
		ProcessName: "chat.exe",
		Rect:        models.Rect{X: 100, Y: 100, Width: 1200, Height: 800},
		Visible:     true,
		TopLevel:    true,
	}
}

type engineFixture struct {
	engine   *Engine
	actuator *fakeActuator
	clip     *fakeClipboard
	capturer *fakeCapturer
	closer   *fakeCloser
}

func newEngineFixture(t *testing.T) *engineFixture {
	t.Helper()

	logger := testLogger()

	reg, err := registry.NewRegistry(logger)
	require.NoError(t, err)

	actuator := &fakeActuator{}
	clip := &fakeClipboard{}
	capturer := &fakeCapturer{}
	closer := &fakeCloser{}

	res := resolver.NewResolver(
		&fakeEnumerator{windows: []models.WindowInfo{targetWindowInfo()}},
		resolver.DefaultScoringConfig(),
		logger,
	)

	deps := Deps{
		Actuator:  actuator,
		Clipboard: clip,
		Capturer:  capturer,
		Closer:    closer,
		Resolver:  res,
		Templates: fakeTemplates{},
	}

	return &engineFixture{
		engine:   NewEngine(deps, reg, nil, nil, logger, "agent-test"),
		actuator: actuator,
		clip:     clip,
		capturer: capturer,
		closer:   closer,
	}
}

func newRun(wf *models.Workflow, inputs map[string]any) *Run {
	return &Run{
		Job:      &models.Job{ID: "job-test", WorkflowID: wf.ID},
		Workflow: wf,
		Inputs:   inputs,
	}
}

func chatWorkflow(steps ...models.Step) *models.Workflow {
	return &models.Workflow{
		ID:   "wf-test",
		Name: "Test workflow",
		Window: &models.WindowDescriptor{
			ClassName:   "Chrome_WidgetWin_1",
			ProcessName: "chat.exe",
		},
		Steps: steps,
	}
}

func TestExecuteCompletesSimpleWorkflow(t *testing.T) {
	fx := newEngineFixture(t)

	wf := chatWorkflow(
		models.Step{ID: "s1", Name: "Click composer", Kind: models.ActionClick,
			Params: map[string]any{"coordinates": []any{150, 250}}},
		models.Step{ID: "s2", Name: "Type message", Kind: models.ActionClickAndType,
			Params: map[string]any{"coordinates": []any{150, 250}, "text": "inputs.message"}},
		models.Step{ID: "s3", Name: "Send", Kind: models.ActionKeyPress,
			Params: map[string]any{"key": "enter"}},
		models.Step{ID: "s4", Name: "Done", Kind: models.ActionCompletion},
	)

	outcome := fx.engine.Execute(context.Background(),
		newRun(wf, map[string]any{"message": "hello there"}))

	assert.Equal(t, models.JobStatusDone, outcome.Status)
	require.Len(t, outcome.Records, 4)

	for _, rec := range outcome.Records {
		assert.True(t, rec.Success, "step %s failed: %s", rec.Name, rec.Error)
	}

	assert.Equal(t, 2, fx.actuator.clicks)
	require.Len(t, fx.actuator.typed, 1)
	assert.Equal(t, "hello there", fx.actuator.typed[0])
	assert.Equal(t, []string{"enter"}, fx.actuator.keys)
}

func TestExecuteCursorAdvances(t *testing.T) {
	fx := newEngineFixture(t)

	wf := chatWorkflow(
		models.Step{ID: "s1", Name: "A", Kind: models.ActionCompletion},
		models.Step{ID: "s2", Name: "B", Kind: models.ActionCompletion},
	)

	var cursors []int

	run := newRun(wf, nil)
	run.OnCursor = func(c int) { cursors = append(cursors, c) }

	fx.engine.Execute(context.Background(), run)

	assert.Equal(t, []int{1, 2}, cursors)
}

func TestFatalStepAbortsWorkflow(t *testing.T) {
	fx := newEngineFixture(t)
	fx.actuator.failClick = assert.AnError

	wf := chatWorkflow(
		models.Step{ID: "s1", Name: "Bad click", Kind: models.ActionClick, Fatal: true,
			Params: map[string]any{"coordinates": []any{10, 10}}},
		models.Step{ID: "s2", Name: "Never runs", Kind: models.ActionCompletion},
	)

	outcome := fx.engine.Execute(context.Background(), newRun(wf, nil))

	assert.Equal(t, models.JobStatusFailed, outcome.Status)
	assert.Contains(t, outcome.Reason, "Bad click")
	assert.Len(t, outcome.Records, 1)
}

func TestNonFatalStepFailureContinues(t *testing.T) {
	fx := newEngineFixture(t)
	fx.actuator.failClick = assert.AnError

	wf := chatWorkflow(
		models.Step{ID: "s1", Name: "Bad click", Kind: models.ActionClick,
			Params: map[string]any{"coordinates": []any{10, 10}}},
		models.Step{ID: "s2", Name: "Still runs", Kind: models.ActionCompletion},
	)

	outcome := fx.engine.Execute(context.Background(), newRun(wf, nil))

	assert.Equal(t, models.JobStatusDone, outcome.Status)
	require.Len(t, outcome.Records, 2)
	assert.False(t, outcome.Records[0].Success)
	assert.True(t, outcome.Records[1].Success)
}

func TestDetectLoopTimesOutWithinBound(t *testing.T) {
	fx := newEngineFixture(t)

	wf := chatWorkflow(
		models.Step{ID: "s1", Name: "Wait for button", Kind: models.ActionDetectLoop, Fatal: true,
			Params: map[string]any{"template": "button.png", "timeout": 2.0, "poll_interval": 0.5}},
	)

	start := time.Now()
	outcome := fx.engine.Execute(context.Background(), newRun(wf, nil))
	elapsed := time.Since(start)

	assert.Equal(t, models.JobStatusFailed, outcome.Status)
	assert.Contains(t, outcome.Reason, "timeout")
	assert.GreaterOrEqual(t, int(fx.capturer.captures.Load()), 3)
	assert.Less(t, elapsed, 4*time.Second)
}

func TestDetectLoopOnTimeoutContinue(t *testing.T) {
	fx := newEngineFixture(t)

	wf := chatWorkflow(
		models.Step{ID: "s1", Name: "Optional wait", Kind: models.ActionDetectLoop, Fatal: true,
			Params: map[string]any{
				"template": "button.png", "timeout": 1.0, "poll_interval": 0.3,
				"on_timeout": "continue",
			}},
		models.Step{ID: "s2", Name: "Done", Kind: models.ActionCompletion},
	)

	outcome := fx.engine.Execute(context.Background(), newRun(wf, nil))

	assert.Equal(t, models.JobStatusDone, outcome.Status)
	require.Len(t, outcome.Records, 2)
	assert.True(t, outcome.Records[0].Success)
}

func TestDetectLoopDisappearModeSucceedsWhenAbsent(t *testing.T) {
	fx := newEngineFixture(t)

	wf := chatWorkflow(
		models.Step{ID: "s1", Name: "Wait for spinner gone", Kind: models.ActionDetectLoop, Fatal: true,
			Params: map[string]any{
				"template": "spinner.png", "timeout": 5.0, "poll_interval": 0.2,
				"mode": "wait_until_disappears",
			}},
	)

	outcome := fx.engine.Execute(context.Background(), newRun(wf, nil))

	assert.Equal(t, models.JobStatusDone, outcome.Status)
}

func TestCancellationObservedBetweenSteps(t *testing.T) {
	fx := newEngineFixture(t)

	wf := chatWorkflow(
		models.Step{ID: "s1", Name: "A", Kind: models.ActionCompletion},
		models.Step{ID: "s2", Name: "B", Kind: models.ActionCompletion},
	)

	var ran atomic.Int32

	run := newRun(wf, nil)
	run.OnCursor = func(int) { ran.Add(1) }
	run.Cancelled = func() bool { return ran.Load() >= 1 }

	outcome := fx.engine.Execute(context.Background(), run)

	assert.Equal(t, models.JobStatusCancelled, outcome.Status)
	assert.Len(t, outcome.Records, 1)
}

func TestCancellationDuringWait(t *testing.T) {
	fx := newEngineFixture(t)

	wf := chatWorkflow(
		models.Step{ID: "s1", Name: "Long wait", Kind: models.ActionWait, Fatal: true,
			Params: map[string]any{"duration": 30.0}},
	)

	cancelled := atomic.Bool{}

	run := newRun(wf, nil)
	run.Cancelled = cancelled.Load

	go func() {
		time.Sleep(200 * time.Millisecond)
		cancelled.Store(true)
	}()

	start := time.Now()
	outcome := fx.engine.Execute(context.Background(), run)

	assert.Equal(t, models.JobStatusCancelled, outcome.Status)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestDiagnosticStepNeverFailsWorkflow(t *testing.T) {
	fx := newEngineFixture(t)

	// No screenshot sink and no notifier configured, both steps error
	// internally but stay diagnostic.
	wf := chatWorkflow(
		models.Step{ID: "s1", Name: "Snap", Kind: models.ActionScreenshot, Fatal: true},
		models.Step{ID: "s2", Name: "Notify", Kind: models.ActionWebhook, Fatal: true,
			Params: map[string]any{"url": "https://example.com/hook"}},
		models.Step{ID: "s3", Name: "Done", Kind: models.ActionCompletion},
	)

	outcome := fx.engine.Execute(context.Background(), newRun(wf, nil))

	assert.Equal(t, models.JobStatusDone, outcome.Status)

	for _, rec := range outcome.Records {
		assert.True(t, rec.Success)
	}
}

func TestCompositeRunsSubSteps(t *testing.T) {
	fx := newEngineFixture(t)

	wf := chatWorkflow(
		models.Step{ID: "s1", Name: "Copy response", Kind: models.ActionComposite, Fatal: true,
			Steps: []models.Step{
				{ID: "s1a", Name: "Select all", Kind: models.ActionKeyPress,
					Params: map[string]any{"key": "ctrl+a"}},
				{ID: "s1b", Name: "Copy", Kind: models.ActionClipboard,
					Params: map[string]any{"operation": "copy"}},
			}},
	)

	outcome := fx.engine.Execute(context.Background(), newRun(wf, nil))

	assert.Equal(t, models.JobStatusDone, outcome.Status)
	assert.Equal(t, []string{"ctrl+a"}, fx.actuator.keys)
	require.Len(t, fx.actuator.hotkeys, 1)
	assert.Equal(t, []string{"ctrl", "c"}, fx.actuator.hotkeys[0])
}

func TestCompositeFatalSubStepFailsComposite(t *testing.T) {
	fx := newEngineFixture(t)
	fx.actuator.failClick = assert.AnError

	wf := chatWorkflow(
		models.Step{ID: "s1", Name: "Grouped", Kind: models.ActionComposite, Fatal: true,
			Steps: []models.Step{
				{ID: "s1a", Name: "Bad click", Kind: models.ActionClick, Fatal: true,
					Params: map[string]any{"coordinates": []any{5, 5}}},
			}},
	)

	outcome := fx.engine.Execute(context.Background(), newRun(wf, nil))

	assert.Equal(t, models.JobStatusFailed, outcome.Status)
	assert.Contains(t, outcome.Reason, "Grouped")
}

func TestSlashCommandGetsDoubleEnter(t *testing.T) {
	fx := newEngineFixture(t)

	wf := chatWorkflow(
		models.Step{ID: "s1", Name: "Run command", Kind: models.ActionKeyPress, Fatal: true,
			Params: map[string]any{"key": "enter", "text_context": "/summarize today"}},
	)

	outcome := fx.engine.Execute(context.Background(), newRun(wf, nil))

	assert.Equal(t, models.JobStatusDone, outcome.Status)
	assert.Equal(t, []string{"enter", "enter"}, fx.actuator.keys)
}

func TestClipboardSetResolvesInputs(t *testing.T) {
	fx := newEngineFixture(t)

	wf := chatWorkflow(
		models.Step{ID: "s1", Name: "Stage text", Kind: models.ActionClipboard, Fatal: true,
			Params: map[string]any{"operation": "set", "text": "inputs.payload"}},
	)

	outcome := fx.engine.Execute(context.Background(),
		newRun(wf, map[string]any{"payload": "from-input"}))

	assert.Equal(t, models.JobStatusDone, outcome.Status)
	assert.Equal(t, "from-input", fx.clip.content)
}

func TestCloseWindowUsesResolvedTarget(t *testing.T) {
	fx := newEngineFixture(t)

	wf := chatWorkflow(
		models.Step{ID: "s1", Name: "Close it", Kind: models.ActionCloseWindow, Fatal: true},
	)

	outcome := fx.engine.Execute(context.Background(), newRun(wf, nil))

	assert.Equal(t, models.JobStatusDone, outcome.Status)
	assert.Equal(t, []uintptr{0x1234}, fx.closer.closed)
}

func TestClickWithoutTargetFails(t *testing.T) {
	fx := newEngineFixture(t)

	wf := chatWorkflow(
		models.Step{ID: "s1", Name: "Blind click", Kind: models.ActionClick, Fatal: true},
	)

	outcome := fx.engine.Execute(context.Background(), newRun(wf, nil))

	assert.Equal(t, models.JobStatusFailed, outcome.Status)
	assert.Contains(t, outcome.Records[0].Error, "no coordinates")
}
