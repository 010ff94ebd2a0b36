package storage

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/shell/internal/shared/id"
)

// ErrClosed is returned by a backend after Close
var ErrClosed = errors.New("storage closed")

// Event describes a change to one key
type Event struct {
	Key     string   `json:"key"`
	Value   string   `json:"value,omitempty"`
	Removed bool     `json:"removed,omitempty"`
	Source  id.TabID `json:"source"`
}

// Backend is a shared key-value store with change notification
type Backend interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, source id.TabID) error
	Remove(ctx context.Context, key string, source id.TabID) error
	Keys(ctx context.Context) ([]string, error)
	// Subscribe streams every change until ctx is done
	Subscribe(ctx context.Context) (<-chan Event, error)
	Close() error
}

// Tab is one tab's view of a Backend
type Tab struct {
	backend Backend
	id      id.TabID
	logger  *zap.Logger
}

// ForTab binds backend to a tab
func ForTab(backend Backend, tab id.TabID, logger *zap.Logger) *Tab {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tab{backend: backend, id: tab, logger: logger}
}

// ID returns the tab identifier writes are tagged with
func (t *Tab) ID() id.TabID {
	return t.id
}

// Get reads a key
func (t *Tab) Get(ctx context.Context, key string) (string, bool, error) {
	return t.backend.Get(ctx, key)
}

// Lookup reads a key, logging and swallowing failures
func (t *Tab) Lookup(ctx context.Context, key string) (string, bool) {
	v, ok, err := t.backend.Get(ctx, key)
	if err != nil {
		t.logger.Debug("Storage read failed", zap.String("key", key), zap.Error(err))
		return "", false
	}
	return v, ok
}

// Set writes a key
func (t *Tab) Set(ctx context.Context, key, value string) error {
	return t.backend.Set(ctx, key, value, t.id)
}

// Store writes a key, logging and swallowing failures
func (t *Tab) Store(ctx context.Context, key, value string) {
	if err := t.backend.Set(ctx, key, value, t.id); err != nil {
		t.logger.Debug("Storage write failed", zap.String("key", key), zap.Error(err))
	}
}

// Remove deletes a key
func (t *Tab) Remove(ctx context.Context, key string) error {
	return t.backend.Remove(ctx, key, t.id)
}

// Events streams changes made by other tabs until ctx is done
func (t *Tab) Events(ctx context.Context) (<-chan Event, error) {
	in, err := t.backend.Subscribe(ctx)
	if err != nil {
		return nil, err
	}

	out := make(chan Event, cap(in))
	go func() {
		defer close(out)
		for ev := range in {
			if ev.Source == t.id {
				continue
			}
			select {
			case out <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}
