package protocol

import (
	"image"

	"github.com/deskpilot/deskpilot/pkg/models"
)

// ScreenCapturer captures the pixels of a screen region. Captures are
// assumed to be at the same DPI/scale as the reference templates.
type ScreenCapturer interface {
	CaptureRegion(rect models.Rect) (image.Image, error)
}

// ScreenshotSink stores a diagnostic capture. Failures are diagnostic-only
// and never fail a workflow.
type ScreenshotSink interface {
	Save(name string, img image.Image) (string, error)
}
