package models

// Rect is a window or match rectangle in screen coordinates.
type Rect struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// WindowDescriptor is the criteria used to identify the target application's
// window among all OS windows. Empty string fields disable their layer.
type WindowDescriptor struct {
	ClassName           string   `json:"class_name,omitempty"`
	ProcessName         string   `json:"process_name,omitempty"`
	ProcessPathContains string   `json:"process_path_contains,omitempty"`
	TitleAnyOf          []string `json:"title_any_of,omitempty"`
	TitleNoneOf         []string `json:"title_none_of,omitempty"`
	// RequireTitleMatch makes the include-keyword layer mandatory instead of
	// score-only.
	RequireTitleMatch bool `json:"require_title_match,omitempty"`
	MinWidth          int  `json:"min_width,omitempty"`
	MinHeight         int  `json:"min_height,omitempty"`
}

// WindowInfo is one enumerated OS window, snapshotted at resolution time.
type WindowInfo struct {
	Handle      uintptr `json:"handle"`
	Title       string  `json:"title"`
	ClassName   string  `json:"class_name"`
	PID         int32   `json:"pid"`
	ProcessName string  `json:"process_name"`
	ProcessPath string  `json:"process_path"`
	Rect        Rect    `json:"rect"`
	Visible     bool    `json:"visible"`
	Minimized   bool    `json:"minimized"`
	TopLevel    bool    `json:"top_level"`
	ToolWindow  bool    `json:"tool_window"`
}
