package sandbox

import (
	"context"
	"errors"
	"time"
)

var (
	ErrClosed         = errors.New("window is closed")
	ErrTimeout        = errors.New("execution timeout exceeded")
	ErrGlobalNotFound = errors.New("global not found")
	ErrModuleNotFound = errors.New("module not found")
	ErrNoSystem       = errors.New("no System host configured")
	ErrNoRegistration = errors.New("script did not call System.register")
	ErrCircularImport = errors.New("circular dependency")
	ErrPending        = errors.New("promise still pending after job queue drained")
)

// Config defines window configuration
type Config struct {
	Timeout       time.Duration // Per-call execution timeout
	MaxCallStack  int           // Maximum JS call stack depth
	EnableConsole bool          // Capture console.log/warn/error/info
}

// DefaultConfig returns the default window configuration
func DefaultConfig() Config {
	return Config{
		Timeout:       5 * time.Second,
		MaxCallStack:  1024,
		EnableConsole: true,
	}
}

// LogEntry represents console output
type LogEntry struct {
	Level   string    `json:"level"`
	Message string    `json:"message"`
	Time    time.Time `json:"time"`
}

// DOMChange represents a document mutation
type DOMChange struct {
	Type   string `json:"type"` // append_child, set_attribute, set_text
	Target string `json:"target"`
	Name   string `json:"name,omitempty"`
	Value  string `json:"value,omitempty"`
}

// Resolver maps a bare module specifier to a URL
type Resolver interface {
	Resolve(specifier string) (string, bool)
}

// Fetcher retrieves module or script source
type Fetcher func(ctx context.Context, url string) (string, error)

// RejectionError carries the reason of a rejected promise
type RejectionError struct {
	Reason string
}

func (e *RejectionError) Error() string {
	return "promise rejected: " + e.Reason
}
