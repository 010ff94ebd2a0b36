// Package layout is a minimal layout engine: it registers applications in
// order, activates them by route and drives their lifecycles.
package layout

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/shell/internal/domain/app"
	"github.com/GriffinCanCode/AgentOS/shell/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/AgentOS/shell/internal/shared/types"
)

// ErrDuplicate is returned when a name is registered twice
var ErrDuplicate = errors.New("application already registered")

// Loader produces lifecycle handles
type Loader interface {
	Load(ctx context.Context, name string) *app.Handle
}

// entry is one registered application; protected by Engine.mu
type entry struct {
	name         string
	activeWhen   string
	status       types.AppStatus
	handle       *app.Handle
	bootstrapped bool
	lastErr      error
}

// Stats summarizes the application table
type Stats struct {
	Total   int `json:"total"`
	Mounted int `json:"mounted"`
	Broken  int `json:"broken"`
	Skipped int `json:"skipped"`
}

// Engine owns the handles of registered applications
type Engine struct {
	mu      sync.RWMutex
	apps    map[string]*entry // Protected by mu
	order   []string          // Protected by mu
	mounted []string          // Protected by mu, mount order
	route   string            // Protected by mu

	// serializes reroutes so lifecycles run outside mu
	routeMu sync.Mutex

	loader   Loader
	disabled app.DisabledSet
	metrics  *monitoring.Metrics
	logger   *zap.Logger
}

// NewEngine creates a layout engine
func NewEngine(loader Loader, disabled app.DisabledSet, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		apps:     make(map[string]*entry),
		loader:   loader,
		disabled: disabled,
		logger:   logger,
	}
}

// WithMetrics adds metrics tracking to the engine
func (e *Engine) WithMetrics(metrics *monitoring.Metrics) *Engine {
	e.metrics = metrics
	return e
}

// Register adds an application active on routes starting with activeWhen
// (all routes when empty)
func (e *Engine) Register(name, activeWhen string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, exists := e.apps[name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicate, name)
	}
	e.apps[name] = &entry{name: name, activeWhen: activeWhen, status: types.StatusNotLoaded}
	e.order = append(e.order, name)
	e.metrics.SetRegistryApps(len(e.order))
	return nil
}

// Start activates the applications matching route
func (e *Engine) Start(ctx context.Context, route string) {
	e.Reroute(ctx, route)
}

// Reroute unmounts applications no longer active on route, then loads and
// mounts newly active ones in registration order. A failing application
// is marked broken; its siblings are unaffected.
func (e *Engine) Reroute(ctx context.Context, route string) {
	e.routeMu.Lock()
	defer e.routeMu.Unlock()

	e.mu.Lock()
	e.route = route
	var leaving, entering []*entry
	for _, name := range e.order {
		ent := e.apps[name]
		active := matches(ent.activeWhen, route)
		switch {
		case active && ent.status != types.StatusMounted:
			entering = append(entering, ent)
		case !active && ent.status == types.StatusMounted:
			leaving = append(leaving, ent)
		}
	}
	e.mu.Unlock()

	for i := len(leaving) - 1; i >= 0; i-- {
		e.unmount(ctx, leaving[i])
	}
	for _, ent := range entering {
		e.mount(ctx, ent)
	}
}

// Stop unmounts every mounted application in reverse mount order
func (e *Engine) Stop(ctx context.Context) {
	e.routeMu.Lock()
	defer e.routeMu.Unlock()

	e.mu.RLock()
	mounted := append([]string(nil), e.mounted...)
	e.mu.RUnlock()

	for i := len(mounted) - 1; i >= 0; i-- {
		e.mu.RLock()
		ent := e.apps[mounted[i]]
		e.mu.RUnlock()
		e.unmount(ctx, ent)
	}
}

// mount loads (once per successful load), bootstraps (once) and mounts
func (e *Engine) mount(ctx context.Context, ent *entry) {
	e.mu.Lock()
	handle := ent.handle
	if handle == nil {
		ent.status = types.StatusLoading
	}
	e.mu.Unlock()

	if handle == nil {
		handle = e.loader.Load(ctx, ent.name)
	}

	if handle.Noop() {
		e.setStatus(ent, handle, types.StatusSkipped, nil)
		return
	}

	e.mu.RLock()
	bootstrapped := ent.bootstrapped
	e.mu.RUnlock()

	props := app.Props{"name": ent.name}
	if !bootstrapped {
		if err := handle.Bootstrap(ctx, props); err != nil {
			e.broken(ent, err)
			return
		}
		e.mu.Lock()
		ent.bootstrapped = true
		e.mu.Unlock()
	}
	if err := handle.Mount(ctx, props); err != nil {
		e.broken(ent, err)
		return
	}

	e.mu.Lock()
	ent.handle = handle
	ent.status = types.StatusMounted
	ent.lastErr = nil
	e.mounted = append(e.mounted, ent.name)
	e.mu.Unlock()
}

func (e *Engine) unmount(ctx context.Context, ent *entry) {
	e.mu.RLock()
	handle := ent.handle
	e.mu.RUnlock()
	if handle == nil {
		return
	}

	if err := handle.Unmount(ctx, app.Props{"name": ent.name}); err != nil {
		e.broken(ent, err)
	} else {
		e.setStatus(ent, handle, types.StatusUnmounted, nil)
	}

	e.mu.Lock()
	for i, name := range e.mounted {
		if name == ent.name {
			e.mounted = append(e.mounted[:i], e.mounted[i+1:]...)
			break
		}
	}
	e.mu.Unlock()
}

func (e *Engine) broken(ent *entry, err error) {
	e.logger.Error("Application lifecycle failed",
		zap.String("app", ent.name),
		zap.Error(err))
	// a broken application is reloaded on its next mount attempt
	e.setStatus(ent, nil, types.StatusBroken, err)
}

func (e *Engine) setStatus(ent *entry, handle *app.Handle, status types.AppStatus, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	ent.handle = handle
	ent.status = status
	ent.lastErr = err
	if handle == nil {
		ent.bootstrapped = false
	}
}

// Get returns the status of one application
func (e *Engine) Get(name string) (types.AppInfo, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	ent, ok := e.apps[name]
	if !ok {
		return types.AppInfo{}, false
	}
	return e.info(ent), true
}

// List returns application statuses in registration order
func (e *Engine) List() []types.AppInfo {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make([]types.AppInfo, 0, len(e.order))
	for _, name := range e.order {
		out = append(out, e.info(e.apps[name]))
	}
	return out
}

// Route returns the last route passed to Start or Reroute
func (e *Engine) Route() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.route
}

// Stats returns engine statistics
func (e *Engine) Stats() Stats {
	e.mu.RLock()
	defer e.mu.RUnlock()

	s := Stats{Total: len(e.order)}
	for _, ent := range e.apps {
		switch ent.status {
		case types.StatusMounted:
			s.Mounted++
		case types.StatusBroken:
			s.Broken++
		case types.StatusSkipped:
			s.Skipped++
		}
	}
	return s
}

// info must be called with mu held
func (e *Engine) info(ent *entry) types.AppInfo {
	info := types.AppInfo{Name: ent.name, Status: ent.status}
	if ent.handle != nil {
		info.Strategy = ent.handle.Strategy()
		info.Noop = ent.handle.Noop()
	}
	if e.disabled != nil {
		info.Disabled = e.disabled.IsDisabled(ent.name)
	}
	if ent.lastErr != nil {
		info.Error = ent.lastErr.Error()
	}
	return info
}

func matches(activeWhen, route string) bool {
	if activeWhen == "" || activeWhen == "/" {
		return true
	}
	if !strings.HasPrefix(route, activeWhen) {
		return false
	}
	rest := route[len(activeWhen):]
	return rest == "" || strings.HasSuffix(activeWhen, "/") || rest[0] == '/' || rest[0] == '?' || rest[0] == '#'
}
