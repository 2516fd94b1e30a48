// Package resolver locates the target application's window among all
// on-screen candidates. Validation runs as ordered, short-circuiting layers
// so the cheapest checks run first and every rejection is attributable to
// exactly one layer.
package resolver

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/deskpilot/deskpilot/pkg/models"
	"github.com/deskpilot/deskpilot/pkg/protocol"
)

// Layer identifies the validation layer that rejected a window. Values are
// ordered; a window failing layer k is never reported against a later layer.
type Layer string

const (
	LayerVisible      Layer = "visible"
	LayerTopLevel     Layer = "top_level"
	LayerToolWindow   Layer = "tool_window"
	LayerClass        Layer = "class"
	LayerProcessName  Layer = "process_name"
	LayerProcessPath  Layer = "process_path"
	LayerTitleExclude Layer = "title_exclude"
	LayerTitleInclude Layer = "title_include"
	LayerMinSize      Layer = "min_size"
)

// Rejection records why one enumerated window was not a candidate.
type Rejection struct {
	Window models.WindowInfo `json:"window"`
	Layer  Layer             `json:"layer"`
	Reason string            `json:"reason"`
}

// Candidate is a window that passed every required layer, with its computed
// score. Candidates live only for the duration of one Resolve call.
type Candidate struct {
	Window models.WindowInfo `json:"window"`
	Score  int               `json:"score"`
}

// Resolution is the full outcome of one resolve call. Window is nil when no
// candidate survived; Rejections always lists every evaluated window that
// was ruled out, in enumeration order.
type Resolution struct {
	Window     *models.WindowInfo `json:"window,omitempty"`
	Score      int                `json:"score,omitempty"`
	Candidates []Candidate        `json:"candidates,omitempty"`
	Rejections []Rejection        `json:"rejections"`
}

// Found reports whether a window was selected.
func (r *Resolution) Found() bool { return r.Window != nil }

type Resolver struct {
	enum   protocol.WindowEnumerator
	cfg    ScoringConfig
	logger *slog.Logger
}

func NewResolver(enum protocol.WindowEnumerator, cfg ScoringConfig, logger *slog.Logger) *Resolver {
	return &Resolver{
		enum:   enum,
		cfg:    cfg,
		logger: logger.With("module", "resolver"),
	}
}

// Resolve evaluates every enumerated window against the descriptor and
// returns the highest-scoring survivor. Ties break by enumeration order. A
// descriptor matching nothing yields a Resolution with nil Window and full
// diagnostics, not an error; the error return covers enumeration failure
// only.
func (r *Resolver) Resolve(desc models.WindowDescriptor) (*Resolution, error) {
	windows, err := r.enum.Snapshot()
	if err != nil {
		return nil, fmt.Errorf("window enumeration failed: %w", err)
	}

	res := &Resolution{Rejections: make([]Rejection, 0, len(windows))}

	for _, w := range windows {
		if layer, reason := r.validate(desc, w); layer != "" {
			res.Rejections = append(res.Rejections, Rejection{Window: w, Layer: layer, Reason: reason})

			continue
		}

		res.Candidates = append(res.Candidates, Candidate{Window: w, Score: r.score(desc, w)})
	}

	if len(res.Candidates) == 0 {
		r.logger.Warn("No window matched descriptor",
			"evaluated", len(windows),
			"class", desc.ClassName,
			"process", desc.ProcessName)

		return res, nil
	}

	best := res.Candidates[0]
	for _, c := range res.Candidates[1:] {
		// Strictly greater keeps the first-seen window on ties.
		if c.Score > best.Score {
			best = c
		}
	}

	win := best.Window
	res.Window = &win
	res.Score = best.Score

	r.logger.Debug("Resolved window",
		"title", win.Title,
		"pid", win.PID,
		"score", best.Score,
		"candidates", len(res.Candidates))

	return res, nil
}

// validate runs the ordered layers and returns the first failing layer, or
// ("", "") when the window survives them all.
func (r *Resolver) validate(desc models.WindowDescriptor, w models.WindowInfo) (Layer, string) {
	if !w.Visible || w.Minimized {
		return LayerVisible, "window is not visible or minimized"
	}

	if !w.TopLevel {
		return LayerTopLevel, "not a top-level window"
	}

	if w.ToolWindow {
		return LayerToolWindow, "tool-style window (overlay or utility pane)"
	}

	if desc.ClassName != "" && w.ClassName != desc.ClassName {
		return LayerClass, fmt.Sprintf("class %q != required %q", w.ClassName, desc.ClassName)
	}

	if desc.ProcessName != "" && !strings.EqualFold(w.ProcessName, desc.ProcessName) {
		return LayerProcessName, fmt.Sprintf("process %q != required %q", w.ProcessName, desc.ProcessName)
	}

	if desc.ProcessPathContains != "" &&
		!strings.Contains(strings.ToLower(w.ProcessPath), strings.ToLower(desc.ProcessPathContains)) {
		return LayerProcessPath, fmt.Sprintf("process path does not contain %q", desc.ProcessPathContains)
	}

	title := strings.ToLower(w.Title)

	for _, kw := range desc.TitleNoneOf {
		if kw != "" && strings.Contains(title, strings.ToLower(kw)) {
			return LayerTitleExclude, fmt.Sprintf("title contains excluded keyword %q", kw)
		}
	}

	if desc.RequireTitleMatch && len(desc.TitleAnyOf) > 0 && countKeywords(title, desc.TitleAnyOf) == 0 {
		return LayerTitleInclude, "title matches none of the include keywords"
	}

	if desc.MinWidth > 0 && w.Rect.Width < desc.MinWidth {
		return LayerMinSize, fmt.Sprintf("width %d < minimum %d", w.Rect.Width, desc.MinWidth)
	}

	if desc.MinHeight > 0 && w.Rect.Height < desc.MinHeight {
		return LayerMinSize, fmt.Sprintf("height %d < minimum %d", w.Rect.Height, desc.MinHeight)
	}

	return "", ""
}

func (r *Resolver) score(desc models.WindowDescriptor, w models.WindowInfo) int {
	score := r.cfg.BaseScore

	score += r.cfg.KeywordBonus * countKeywords(strings.ToLower(w.Title), desc.TitleAnyOf)

	if w.Rect.Width > r.cfg.LargeWidth {
		score += r.cfg.WidthBonus
	}

	if w.Rect.Height > r.cfg.LargeHeight {
		score += r.cfg.HeightBonus
	}

	if w.Rect.X != 0 || w.Rect.Y != 0 {
		score += r.cfg.OffOriginBonus
	}

	return score
}

func countKeywords(lowerTitle string, keywords []string) int {
	n := 0

	for _, kw := range keywords {
		if kw != "" && strings.Contains(lowerTitle, strings.ToLower(kw)) {
			n++
		}
	}

	return n
}
