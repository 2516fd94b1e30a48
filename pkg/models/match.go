package models

// MatchResult is the output of a successful pattern match: where the template
// was found and how confident the match is. Produced per matcher call and
// consumed by the issuing step.
type MatchResult struct {
	Bounds     Rect    `json:"bounds"`
	Confidence float64 `json:"confidence"`
	Template   string  `json:"template"`
}

// Center returns the screen coordinates of the match centre, the point input
// actions aim at.
func (m MatchResult) Center() (int, int) {
	return m.Bounds.X + m.Bounds.Width/2, m.Bounds.Y + m.Bounds.Height/2
}
