package shell

import (
	"context"
	"sync/atomic"

	"go.uber.org/zap"
)

// Tab runs page generations over a Context until its context is done
type Tab struct {
	sc         *Context
	page       atomic.Pointer[Page]
	generation atomic.Uint64
	changed    chan struct{}
}

// NewTab creates a tab over an initialized context
func NewTab(sc *Context) (*Tab, error) {
	if !sc.Initialized() {
		return nil, ErrNotInitialized
	}
	return &Tab{sc: sc, changed: make(chan struct{}, 1)}, nil
}

// Context returns the process-wide context
func (t *Tab) Context() *Context {
	return t.sc
}

// Page returns the current generation, or nil before the first one
func (t *Tab) Page() *Page {
	return t.page.Load()
}

// Generation returns the current generation number
func (t *Tab) Generation() uint64 {
	return t.generation.Load()
}

// Changed signals each time a new generation is installed
func (t *Tab) Changed() <-chan struct{} {
	return t.changed
}

// Run builds and runs generations. A reload ends the current generation
// and starts the next; Run returns when ctx is done or a page cannot be
// built.
func (t *Tab) Run(ctx context.Context) error {
	logger := t.sc.logger
	for {
		gen := t.generation.Add(1)
		page, err := NewPage(t.sc, gen)
		if err != nil {
			return err
		}
		t.page.Store(page)
		select {
		case t.changed <- struct{}{}:
		default:
		}

		reason, err := page.Run(ctx)
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			logger.Info("Tab stopped", zap.Uint64("generation", gen))
			return nil
		}

		logger.Info("Reloading page", zap.Uint64("generation", gen), zap.String("reason", reason))
		t.sc.events.Reset()
	}
}
