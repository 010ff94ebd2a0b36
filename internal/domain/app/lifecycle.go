package app

import (
	"context"
	"fmt"

	"github.com/GriffinCanCode/AgentOS/shell/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/AgentOS/shell/internal/infrastructure/perf"
	"github.com/GriffinCanCode/AgentOS/shell/internal/shared/types"
)

// Phase names a lifecycle step
type Phase string

const (
	PhaseLoad      Phase = "load"
	PhaseBootstrap Phase = "bootstrap"
	PhaseMount     Phase = "mount"
	PhaseUnmount   Phase = "unmount"
)

// Props are passed to every lifecycle function
type Props map[string]interface{}

// LifecycleFunc is a single lifecycle step
type LifecycleFunc func(ctx context.Context, props Props) error

// Lifecycles are the functions an application module exposes. Each phase
// runs its functions in order and stops at the first error.
type Lifecycles struct {
	Bootstrap []LifecycleFunc
	Mount     []LifecycleFunc
	Unmount   []LifecycleFunc
}

// Handle is an application's instrumented lifecycle triple
type Handle struct {
	name     string
	strategy types.Strategy
	format   types.ModuleFormat
	noop     bool

	lifecycles Lifecycles
	recorder   *perf.Recorder
	metrics    *monitoring.Metrics
}

// Name returns the application name
func (h *Handle) Name() string { return h.name }

// Noop reports whether this is the placeholder handle of a disabled or
// failed application
func (h *Handle) Noop() bool { return h.noop }

// Strategy returns the declared strategy
func (h *Handle) Strategy() types.Strategy { return h.strategy }

// Format returns the detected module format, if detection ran
func (h *Handle) Format() types.ModuleFormat { return h.format }

// Bootstrap runs the bootstrap functions
func (h *Handle) Bootstrap(ctx context.Context, props Props) error {
	return h.invoke(ctx, PhaseBootstrap, h.lifecycles.Bootstrap, props)
}

// Mount runs the mount functions
func (h *Handle) Mount(ctx context.Context, props Props) error {
	return h.invoke(ctx, PhaseMount, h.lifecycles.Mount, props)
}

// Unmount runs the unmount functions
func (h *Handle) Unmount(ctx context.Context, props Props) error {
	return h.invoke(ctx, PhaseUnmount, h.lifecycles.Unmount, props)
}

func (h *Handle) invoke(ctx context.Context, phase Phase, fns []LifecycleFunc, props Props) (err error) {
	end := h.recorder.Span(markName(h.name, phase))
	defer func() {
		end()
		outcome := "success"
		if err != nil {
			outcome = "failure"
		}
		h.metrics.RecordLifecycle(h.name, string(phase), outcome)
	}()

	if props == nil {
		props = Props{}
	}
	if _, ok := props["name"]; !ok {
		props["name"] = h.name
	}
	for i, fn := range fns {
		if err := fn(ctx, props); err != nil {
			return fmt.Errorf("%s %s[%d]: %w", h.name, phase, i, err)
		}
	}
	return nil
}

func markName(app string, phase Phase) string {
	return app + ":" + string(phase)
}
