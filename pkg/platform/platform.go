// Package platform assembles the OS-facing drivers the engine consumes.
// Clipboard, process watching, screenshots, and webhooks are portable and
// always available; input synthesis and window enumeration are provided by
// per-OS drivers registered at build time.
package platform

import (
	"errors"
	"image"
	"log/slog"

	"github.com/deskpilot/deskpilot/pkg/clipboard"
	"github.com/deskpilot/deskpilot/pkg/models"
	"github.com/deskpilot/deskpilot/pkg/notify"
	"github.com/deskpilot/deskpilot/pkg/protocol"
	"github.com/deskpilot/deskpilot/pkg/vision"
)

// ErrDriverUnavailable indicates no OS driver is registered for the
// requested capability on this build.
var ErrDriverUnavailable = errors.New("platform driver unavailable")

// Drivers is the full set of OS adapters handed to the engine.
type Drivers struct {
	Actuator    protocol.Actuator
	Clipboard   protocol.Clipboard
	Capturer    protocol.ScreenCapturer
	Enumerator  protocol.WindowEnumerator
	Closer      protocol.WindowCloser
	Screenshots protocol.ScreenshotSink
	Notifier    protocol.Notifier
}

// Registered OS drivers. Platform build files replace these with real
// implementations; the defaults reject every call.
var (
	NewActuator   = func() protocol.Actuator { return unsupportedActuator{} }
	NewCapturer   = func() protocol.ScreenCapturer { return unsupportedCapturer{} }
	NewEnumerator = func() protocol.WindowEnumerator { return unsupportedEnumerator{} }
	NewCloser     = func() protocol.WindowCloser { return unsupportedCloser{} }
)

// New assembles the driver set. screenshotDir may be empty to disable the
// screenshot sink.
func New(screenshotDir string, logger *slog.Logger) Drivers {
	d := Drivers{
		Actuator:   NewActuator(),
		Clipboard:  clipboard.NewSystem(),
		Capturer:   NewCapturer(),
		Enumerator: NewEnumerator(),
		Closer:     NewCloser(),
		Notifier:   notify.NewHTTPNotifier(logger),
	}

	if screenshotDir != "" {
		d.Screenshots = vision.NewDirSink(screenshotDir)
	}

	return d
}

type unsupportedActuator struct{}

func (unsupportedActuator) MoveTo(int, int) error  { return ErrDriverUnavailable }
func (unsupportedActuator) Click() error           { return ErrDriverUnavailable }
func (unsupportedActuator) DoubleClick() error     { return ErrDriverUnavailable }
func (unsupportedActuator) RightClick() error      { return ErrDriverUnavailable }
func (unsupportedActuator) TypeText(string) error  { return ErrDriverUnavailable }
func (unsupportedActuator) KeyPress(string) error  { return ErrDriverUnavailable }
func (unsupportedActuator) Hotkey(...string) error { return ErrDriverUnavailable }

type unsupportedCapturer struct{}

func (unsupportedCapturer) CaptureRegion(models.Rect) (image.Image, error) {
	return nil, ErrDriverUnavailable
}

type unsupportedEnumerator struct{}

func (unsupportedEnumerator) Snapshot() ([]models.WindowInfo, error) {
	return nil, ErrDriverUnavailable
}

type unsupportedCloser struct{}

func (unsupportedCloser) Close(uintptr) error { return ErrDriverUnavailable }
