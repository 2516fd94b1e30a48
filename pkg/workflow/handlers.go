package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/deskpilot/deskpilot/pkg/models"
	"github.com/deskpilot/deskpilot/pkg/vision"
)

const (
	defaultThreshold    = 0.80
	defaultLoopTimeout  = 300 * time.Second
	defaultPollInterval = 2 * time.Second
	defaultClickSettle  = 300 * time.Millisecond
)

// targetWindow resolves the workflow's window descriptor, caching the result
// for the rest of the run. Workflows without a descriptor cannot use
// window-dependent steps.
func (e *Engine) targetWindow(state *runState) (*models.WindowInfo, error) {
	if state.window != nil {
		return state.window, nil
	}

	if state.run.Workflow.Window == nil {
		return nil, errors.New("workflow declares no window descriptor")
	}

	res, err := e.deps.Resolver.Resolve(*state.run.Workflow.Window)
	if err != nil {
		return nil, err
	}

	if !res.Found() {
		return nil, fmt.Errorf("no window matched descriptor (%d rejected)", len(res.Rejections))
	}

	state.window = res.Window

	return state.window, nil
}

// clickTarget picks explicit coordinates when the step declares them,
// otherwise falls back to the centre of the run's last successful match.
func (e *Engine) clickTarget(state *runState, step models.Step) (int, int, error) {
	if x, y, ok := coordinatesParam(step.Params, "coordinates"); ok {
		return x, y, nil
	}

	if state.lastMatch != nil {
		x, y := state.lastMatch.Center()

		return x, y, nil
	}

	return 0, 0, errors.New("no coordinates given and no prior match to reuse")
}

func (e *Engine) handleClick(ctx context.Context, state *runState, step models.Step) error {
	x, y, err := e.clickTarget(state, step)
	if err != nil {
		return err
	}

	if err := e.deps.Actuator.MoveTo(x, y); err != nil {
		return fmt.Errorf("move to (%d,%d): %w", x, y, err)
	}

	clickType := resolveString(step.Params, "click_type", state.run.Inputs, "single")

	switch clickType {
	case "double":
		err = e.deps.Actuator.DoubleClick()
	case "right":
		err = e.deps.Actuator.RightClick()
	default:
		err = e.deps.Actuator.Click()
	}

	if err != nil {
		return fmt.Errorf("%s click at (%d,%d): %w", clickType, x, y, err)
	}

	state.logger.DebugContext(ctx, "Clicked", "x", x, "y", y, "click_type", clickType)

	return nil
}

func (e *Engine) handleClickAndType(ctx context.Context, state *runState, step models.Step) error {
	if err := e.handleClick(ctx, state, step); err != nil {
		return err
	}

	if err := e.sleep(ctx, state.run, defaultClickSettle); err != nil {
		return err
	}

	text := resolveString(step.Params, "text", state.run.Inputs, "")

	if err := e.deps.Actuator.TypeText(text); err != nil {
		return fmt.Errorf("type text: %w", err)
	}

	state.logger.DebugContext(ctx, "Typed text", "length", len(text))

	return nil
}

func (e *Engine) handleDetect(ctx context.Context, state *runState, step models.Step) error {
	match, err := e.detectOnce(state, step)
	if err != nil {
		return err
	}

	if match == nil {
		return fmt.Errorf("template %q not found above threshold",
			resolveString(step.Params, "template", state.run.Inputs, ""))
	}

	state.lastMatch = match
	state.logger.DebugContext(ctx, "Template detected",
		"template", match.Template,
		"confidence", match.Confidence,
		"x", match.Bounds.X, "y", match.Bounds.Y)

	return nil
}

func (e *Engine) handleDetectLoop(ctx context.Context, state *runState, step models.Step) error {
	timeout := secondsParam(step.Params, "timeout", defaultLoopTimeout)
	interval := secondsParam(step.Params, "poll_interval", defaultPollInterval)
	mode := resolveString(step.Params, "mode", state.run.Inputs, "wait_until_appears")
	onTimeout := resolveString(step.Params, "on_timeout", state.run.Inputs, "fail")

	deadline := time.Now().Add(timeout)
	attempts := 0

	for {
		if e.cancelled(ctx, state.run) {
			return ErrCancelled
		}

		if time.Now().After(deadline) {
			break
		}

		attempts++

		match, err := e.detectOnce(state, step)
		if err != nil {
			// Transient capture/resolution errors don't end the loop; the
			// deadline bounds them.
			state.logger.WarnContext(ctx, "Detect poll errored", "attempt", attempts, "error", err)
		} else {
			switch mode {
			case "wait_until_disappears":
				if match == nil {
					state.logger.DebugContext(ctx, "Template disappeared", "attempts", attempts)

					return nil
				}
			default: // wait_until_appears
				if match != nil {
					state.lastMatch = match
					state.logger.DebugContext(ctx, "Template appeared",
						"attempts", attempts, "confidence", match.Confidence)

					return nil
				}
			}
		}

		if err := e.sleep(ctx, state.run, interval); err != nil {
			return err
		}
	}

	if onTimeout == "continue" {
		state.logger.WarnContext(ctx, "Detect loop timed out, continuing per policy", "attempts", attempts)

		return nil
	}

	return fmt.Errorf("timeout after %d attempts waiting for %s", attempts, mode)
}

// detectOnce resolves the target window, captures it, and runs one match.
// Returns nil match (no error) when the template scores below threshold.
func (e *Engine) detectOnce(state *runState, step models.Step) (*models.MatchResult, error) {
	templateName := resolveString(step.Params, "template", state.run.Inputs, "")
	threshold := floatParam(step.Params, "threshold", defaultThreshold)

	tpl, err := e.deps.Templates.Load(templateName)
	if err != nil {
		return nil, fmt.Errorf("load template %q: %w", templateName, err)
	}

	win, err := e.targetWindow(state)
	if err != nil {
		return nil, err
	}

	region, err := e.deps.Capturer.CaptureRegion(win.Rect)
	if err != nil {
		return nil, fmt.Errorf("capture window region: %w", err)
	}

	match, found := vision.Match(tpl, region, threshold)
	if !found {
		return nil, nil
	}

	// Matcher coordinates are window-relative; convert to screen space.
	match.Bounds.X += win.Rect.X
	match.Bounds.Y += win.Rect.Y

	return match, nil
}

func (e *Engine) handleWait(ctx context.Context, state *runState, step models.Step) error {
	duration := secondsParam(step.Params, "duration", time.Second)

	return e.sleep(ctx, state.run, duration)
}

func (e *Engine) handleKeyPress(ctx context.Context, state *runState, step models.Step) error {
	key := resolveString(step.Params, "key", state.run.Inputs, "")
	textContext := resolveString(step.Params, "text_context", state.run.Inputs, "")

	repeat := 1

	// Slash commands need a second enter: the first one selects the command
	// from the application's suggestion popup.
	if key == "enter" && strings.HasPrefix(strings.TrimSpace(textContext), "/") {
		repeat = 2
	}

	for i := 0; i < repeat; i++ {
		if err := e.deps.Actuator.KeyPress(key); err != nil {
			return fmt.Errorf("key press %q: %w", key, err)
		}

		if i < repeat-1 {
			if err := e.sleep(ctx, state.run, 100*time.Millisecond); err != nil {
				return err
			}
		}
	}

	state.logger.DebugContext(ctx, "Key pressed", "key", key, "repeat", repeat)

	return nil
}

func (e *Engine) handleClipboard(ctx context.Context, state *runState, step models.Step) error {
	operation := resolveString(step.Params, "operation", state.run.Inputs, "get")

	switch operation {
	case "get":
		content, err := e.deps.Clipboard.Read()
		if err != nil {
			return fmt.Errorf("read clipboard: %w", err)
		}

		state.logger.DebugContext(ctx, "Clipboard read", "length", len(content))

		return nil
	case "set":
		text := resolveString(step.Params, "text", state.run.Inputs, "")

		if err := e.deps.Clipboard.Write(text); err != nil {
			return fmt.Errorf("write clipboard: %w", err)
		}

		return nil
	case "copy":
		if err := e.deps.Actuator.Hotkey("ctrl", "c"); err != nil {
			return fmt.Errorf("synthesize copy: %w", err)
		}

		return e.sleep(ctx, state.run, defaultClickSettle)
	case "paste":
		if err := e.deps.Actuator.Hotkey("ctrl", "v"); err != nil {
			return fmt.Errorf("synthesize paste: %w", err)
		}

		return nil
	default:
		return fmt.Errorf("unknown clipboard operation %q", operation)
	}
}

func (e *Engine) handleScreenshot(ctx context.Context, state *runState, step models.Step) error {
	if e.deps.Screenshots == nil {
		return errors.New("no screenshot sink configured")
	}

	win, err := e.targetWindow(state)
	if err != nil {
		return err
	}

	img, err := e.deps.Capturer.CaptureRegion(win.Rect)
	if err != nil {
		return fmt.Errorf("capture for screenshot: %w", err)
	}

	name := resolveString(step.Params, "name", state.run.Inputs, step.ID)

	path, err := e.deps.Screenshots.Save(name, img)
	if err != nil {
		return fmt.Errorf("save screenshot: %w", err)
	}

	state.logger.InfoContext(ctx, "Screenshot saved", "path", path)

	return nil
}

func (e *Engine) handleCloseWindow(ctx context.Context, state *runState, step models.Step) error {
	titlePattern := resolveString(step.Params, "title_pattern", state.run.Inputs, "")

	var handle uintptr

	if titlePattern != "" {
		res, err := e.deps.Resolver.Resolve(models.WindowDescriptor{
			TitleAnyOf:        []string{titlePattern},
			RequireTitleMatch: true,
		})
		if err != nil {
			return err
		}

		if !res.Found() {
			return fmt.Errorf("no window matched title pattern %q", titlePattern)
		}

		handle = res.Window.Handle
	} else {
		win, err := e.targetWindow(state)
		if err != nil {
			return err
		}

		handle = win.Handle
	}

	if err := e.deps.Closer.Close(handle); err != nil {
		return fmt.Errorf("close window: %w", err)
	}

	// Cached window is gone now.
	state.window = nil
	state.logger.InfoContext(ctx, "Window closed", "handle", handle)

	return nil
}

func (e *Engine) handleWebhook(ctx context.Context, state *runState, step models.Step) error {
	if e.deps.Notifier == nil {
		return errors.New("no notifier configured")
	}

	url := resolveString(step.Params, "url", state.run.Inputs, "")
	method := resolveString(step.Params, "method", state.run.Inputs, "POST")

	headers := map[string]string{}
	if raw, ok := step.Params["headers"].(map[string]any); ok {
		for k, v := range raw {
			headers[k] = fmt.Sprintf("%v", v)
		}
	}

	var body []byte

	if raw, ok := step.Params["body"]; ok {
		encoded, err := json.Marshal(raw)
		if err != nil {
			return fmt.Errorf("encode webhook body: %w", err)
		}

		body = encoded
	}

	status, err := e.deps.Notifier.Notify(ctx, url, method, headers, body)
	if err != nil {
		return fmt.Errorf("webhook %s %s: %w", method, url, err)
	}

	state.logger.InfoContext(ctx, "Webhook delivered", "url", url, "status", status)

	return nil
}

// handleComposite runs the nested sub-steps as one atomic unit. A failing
// fatal sub-step fails the whole composite; non-fatal sub-step failures are
// logged and skipped, mirroring top-level policy.
func (e *Engine) handleComposite(ctx context.Context, state *runState, step models.Step) error {
	if len(step.Steps) == 0 {
		return errors.New("composite step has no sub-steps")
	}

	for i, sub := range step.Steps {
		if e.cancelled(ctx, state.run) {
			return ErrCancelled
		}

		if err := e.runStep(ctx, state, sub); err != nil {
			if errors.Is(err, ErrCancelled) {
				return err
			}

			if sub.Fatal {
				return fmt.Errorf("sub-step %d (%s) failed: %w", i, sub.Name, err)
			}

			state.logger.WarnContext(ctx, "Non-fatal sub-step failed",
				"composite", step.Name, "sub_step", sub.Name, "error", err)
		}
	}

	return nil
}

func (e *Engine) handleCompletion(ctx context.Context, state *runState, step models.Step) error {
	status := resolveString(step.Params, "status", state.run.Inputs, "success")
	message := resolveString(step.Params, "message", state.run.Inputs, "workflow completed")

	state.logger.InfoContext(ctx, "Workflow completion marker reached",
		"status", status, "message", message)

	return nil
}
