package types

// EventType identifies a UI-facing shell event
type EventType string

const (
	EventToggleChanged       EventType = "toggle-changed"
	EventAvailabilityChanged EventType = "availability-changed"
	EventAppLoadError        EventType = "app-load-error"
)

// Event is a notification published for UI consumers.
// Exactly one of the payload fields is set, matching Type.
type Event struct {
	Type      EventType    `json:"type"`
	Toggle    *ToggleState `json:"toggle,omitempty"`
	Available []string     `json:"available,omitempty"`
	LoadError *LoadError   `json:"loadError,omitempty"`
}

// LoadError carries a failing application's name and a truncated message
type LoadError struct {
	App     string `json:"app"`
	Message string `json:"message"`
}
