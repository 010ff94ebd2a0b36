package types

// ToggleRequest replaces the device-local disabled list and modes
type ToggleRequest struct {
	Disabled     []string     `json:"disabled"`
	DisabledMode DisabledMode `json:"disabledMode"`
}

// ModeRequest sets the rendering mode of a single application
type ModeRequest struct {
	App  string     `json:"app" binding:"required"`
	Mode RenderMode `json:"mode" binding:"required"`
}

// VisibilityRequest flips the page visibility state
type VisibilityRequest struct {
	Visible bool `json:"visible"`
}

// PanelPosition is the perf panel's on-screen anchor
type PanelPosition struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// PanelState is the persisted perf panel state
type PanelState struct {
	Visible  bool           `json:"visible"`
	Position *PanelPosition `json:"position,omitempty"`
}

// WSMessage represents a WebSocket message
type WSMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload,omitempty"`
}
