package reconcile

import (
	"bytes"
	"context"
	"errors"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/GriffinCanCode/AgentOS/shell/internal/domain/availability"
	"github.com/GriffinCanCode/AgentOS/shell/internal/domain/toggle"
	"github.com/GriffinCanCode/AgentOS/shell/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/AgentOS/shell/internal/infrastructure/poll"
	"github.com/GriffinCanCode/AgentOS/shell/internal/shared/types"
)

// ErrAlreadyStarted is returned by a second Start
var ErrAlreadyStarted = errors.New("reconciler already started")

// Phase is the reconciler's lifecycle state
type Phase string

const (
	PhaseUninitialized Phase = "uninitialized"
	PhaseCacheHydrated Phase = "cache-hydrated"
	PhaseReconciled    Phase = "reconciled"
	PhaseWatching      Phase = "watching"
)

// Reload reasons
const (
	ReasonRemoteChanged = "remote-toggle-changed"
	ReasonDiverged      = "availability-diverged"
)

// Registry is the application set being reconciled
type Registry interface {
	Names() []string
	AlwaysOn() []string
	URLs() map[string]string
}

// Remote fetches the remote toggle state
type Remote interface {
	Fetch(ctx context.Context) (types.ToggleState, []byte, error)
}

// Prober checks reachability of application URLs
type Prober interface {
	ProbeAll(ctx context.Context, urls map[string]string) []string
}

// Publisher receives UI-facing events
type Publisher interface {
	Publish(ev types.Event)
}

// Reloader issues a guarded page reload
type Reloader interface {
	Reload(reason string) bool
}

// Options configures a Reconciler
type Options struct {
	Env        types.Env
	Registry   Registry
	Remote     Remote
	Overrides  *toggle.Overrides
	Prober     Prober
	Cache      *availability.Cache
	Events     Publisher
	Reloader   Reloader
	Visibility poll.Visibility
	Clock      clockwork.Clock

	PollActive time.Duration // remote poll interval while visible
	PollHidden time.Duration // remote poll interval while hidden
	ReprobeMin time.Duration // lower bound of the background re-probe delay

	Metrics *monitoring.Metrics
	Logger  *zap.Logger
}

// Result is what Start decided
type Result struct {
	Phase    Phase
	State    types.ToggleState
	Register []string // names to register, in registry order
}

// Reconciler owns the published toggle and availability state
type Reconciler struct {
	opts     Options
	alwaysOn []string

	state     atomic.Pointer[types.ToggleState]
	available atomic.Pointer[[]string]
	phase     atomic.Value // Phase
	started   atomic.Bool

	mu       sync.Mutex
	remote   types.ToggleState     // Protected by mu
	lastRaw  []byte                // Protected by mu
	snapshot availability.Snapshot // Protected by mu
	hydrated bool                  // Protected by mu
}

// New creates a reconciler in PhaseUninitialized
func New(opts Options) *Reconciler {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.PollActive <= 0 {
		opts.PollActive = 5 * time.Second
	}
	if opts.PollHidden <= 0 {
		opts.PollHidden = 15 * time.Second
	}
	if opts.ReprobeMin <= 0 {
		opts.ReprobeMin = 15 * time.Second
	}

	r := &Reconciler{opts: opts, alwaysOn: opts.Registry.AlwaysOn(), remote: toggle.Empty()}
	r.phase.Store(PhaseUninitialized)
	empty := toggle.Empty()
	r.state.Store(&empty)
	none := []string{}
	r.available.Store(&none)
	return r
}

// Phase returns the current lifecycle state
func (r *Reconciler) Phase() Phase {
	return r.phase.Load().(Phase)
}

// State returns the published toggle state
func (r *Reconciler) State() types.ToggleState {
	return r.state.Load().Clone()
}

// IsDisabled reports whether name is in the published disabled set
func (r *Reconciler) IsDisabled(name string) bool {
	return r.state.Load().IsDisabled(name)
}

// Available returns the published available set
func (r *Reconciler) Available() []string {
	return slices.Clone(*r.available.Load())
}

// Start reconciles once and returns the names to register. It publishes
// before returning, so callers may register immediately.
func (r *Reconciler) Start(ctx context.Context) (Result, error) {
	if !r.started.CompareAndSwap(false, true) {
		return Result{}, ErrAlreadyStarted
	}
	if !r.opts.Env.IsLocal() {
		return r.startProduction(ctx), nil
	}
	if snap, ok := r.opts.Cache.Load(ctx); ok {
		return r.hydrate(ctx, snap), nil
	}
	return r.startProbe(ctx), nil
}

func (r *Reconciler) startProduction(ctx context.Context) Result {
	remote, raw, err := r.opts.Remote.Fetch(ctx)
	if err != nil {
		r.opts.Logger.Warn("Remote toggle fetch failed, assuming nothing disabled", zap.Error(err))
	}
	local := r.opts.Overrides.Load(ctx)
	state := toggle.Merge(remote, local, r.alwaysOn)

	r.mu.Lock()
	r.remote = remote
	r.lastRaw = raw
	r.mu.Unlock()

	names := r.opts.Registry.Names()
	r.publish(state, names)
	r.phase.Store(PhaseReconciled)
	r.opts.Metrics.RecordReconcile("startup", "reconciled")
	return Result{Phase: PhaseReconciled, State: state.Clone(), Register: names}
}

func (r *Reconciler) hydrate(ctx context.Context, snap availability.Snapshot) Result {
	local := r.opts.Overrides.Load(ctx)
	state := toggle.Merge(snap.Toggle(), local, r.alwaysOn)

	r.mu.Lock()
	r.snapshot = snap
	r.hydrated = true
	r.mu.Unlock()

	r.publish(state, snap.Available)
	r.phase.Store(PhaseCacheHydrated)
	r.opts.Metrics.RecordReconcile("startup", "hydrated")
	r.opts.Logger.Info("Hydrated from availability cache",
		zap.Int("available", len(snap.Available)),
		zap.Int("disabled", len(state.Disabled)))
	return Result{Phase: PhaseCacheHydrated, State: state.Clone(), Register: r.registrable(snap.Available)}
}

func (r *Reconciler) startProbe(ctx context.Context) Result {
	snap, state := r.probe(ctx)

	r.mu.Lock()
	r.snapshot = snap
	r.mu.Unlock()

	r.publish(state, snap.Available)
	r.phase.Store(PhaseReconciled)
	r.opts.Metrics.RecordReconcile("startup", "reconciled")
	return Result{Phase: PhaseReconciled, State: state.Clone(), Register: r.registrable(snap.Available)}
}

// probe runs the reachability round and the remote fetch concurrently,
// merges, and writes the cache
func (r *Reconciler) probe(ctx context.Context) (availability.Snapshot, types.ToggleState) {
	var (
		available []string
		remote    = toggle.Empty()
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		available = r.opts.Prober.ProbeAll(gctx, r.opts.Registry.URLs())
		return nil
	})
	g.Go(func() error {
		state, _, err := r.opts.Remote.Fetch(gctx)
		if err != nil {
			r.opts.Logger.Debug("Remote toggle fetch failed during probe", zap.Error(err))
		}
		remote = state
		return nil
	})
	_ = g.Wait()

	local := r.opts.Overrides.Load(ctx)
	state := toggle.Merge(remote, local, r.alwaysOn)

	r.mu.Lock()
	r.remote = remote
	r.mu.Unlock()

	snap := r.opts.Cache.Save(ctx, availability.Snapshot{
		Available:    available,
		Disabled:     state.Disabled,
		DisabledMode: state.DisabledMode,
	})
	return snap, state
}

// Run watches until ctx is done: the remote poll in production, the
// background re-probe after a cache hydration in local mode
func (r *Reconciler) Run(ctx context.Context) {
	if r.Phase() == PhaseUninitialized {
		return
	}
	r.phase.Store(PhaseWatching)

	if !r.opts.Env.IsLocal() {
		poll.New(r.pollRemote, poll.Options{
			Name:       "toggle",
			Active:     r.opts.PollActive,
			Hidden:     r.opts.PollHidden,
			Visibility: r.opts.Visibility,
			Clock:      r.opts.Clock,
			Metrics:    r.opts.Metrics,
			Logger:     r.opts.Logger,
		}).Run(ctx)
		return
	}

	r.mu.Lock()
	hydrated := r.hydrated
	r.mu.Unlock()
	if !hydrated || (r.opts.Visibility != nil && !r.opts.Visibility.Visible()) {
		<-ctx.Done()
		return
	}

	delay := max(r.opts.Cache.TTL(), r.opts.ReprobeMin)
	select {
	case <-ctx.Done():
		return
	case <-r.opts.Clock.After(delay):
	}
	r.Reprobe(ctx)
	<-ctx.Done()
}

// pollRemote reloads when the raw payload differs from the last one seen.
// Failed fetches are not observations.
func (r *Reconciler) pollRemote(ctx context.Context) {
	_, raw, err := r.opts.Remote.Fetch(ctx)
	if err != nil {
		return
	}

	r.mu.Lock()
	changed := !bytes.Equal(raw, r.lastRaw)
	r.lastRaw = raw
	r.mu.Unlock()

	if changed {
		r.opts.Logger.Info("Remote toggle payload changed")
		r.opts.Metrics.RecordReconcile("poll", "changed")
		r.opts.Reloader.Reload(ReasonRemoteChanged)
	}
}

// Reprobe re-runs the probe against the last snapshot and reloads once on
// divergence. It reports whether a divergence was found.
func (r *Reconciler) Reprobe(ctx context.Context) bool {
	r.mu.Lock()
	prev := r.snapshot
	r.mu.Unlock()

	next, _ := r.probe(ctx)

	r.mu.Lock()
	r.snapshot = next
	r.mu.Unlock()

	if !Diverged(prev, next) {
		r.opts.Metrics.RecordReconcile("reprobe", "unchanged")
		return false
	}
	r.opts.Logger.Info("Availability diverged from cache",
		zap.Strings("cached", prev.Available),
		zap.Strings("probed", next.Available))
	r.opts.Metrics.RecordReconcile("reprobe", "diverged")
	r.opts.Reloader.Reload(ReasonDiverged)
	return true
}

// Apply replaces the device-local override and republishes without a
// reload
func (r *Reconciler) Apply(ctx context.Context, local types.ToggleState) types.ToggleState {
	local.Disabled = toggle.Sanitize(local.Disabled, r.alwaysOn)
	r.opts.Overrides.Save(ctx, local)
	return r.remerge(ctx, "apply")
}

// SetMode changes one application's local rendering mode and republishes
func (r *Reconciler) SetMode(ctx context.Context, app string, mode types.RenderMode) types.ToggleState {
	r.opts.Overrides.SetMode(ctx, app, mode)
	return r.remerge(ctx, "set-mode")
}

// Remerge recomputes from the last remote state and the current local
// overrides. It reports whether the published state changed.
func (r *Reconciler) Remerge(ctx context.Context) (types.ToggleState, bool) {
	before := r.State()
	after := r.remerge(ctx, "remerge")
	return after, !toggle.Equal(before, after)
}

func (r *Reconciler) remerge(ctx context.Context, trigger string) types.ToggleState {
	r.mu.Lock()
	remote := r.remote.Clone()
	r.mu.Unlock()

	state := toggle.Merge(remote, r.opts.Overrides.Load(ctx), r.alwaysOn)
	available := r.Available()
	r.publish(state, available)

	if r.opts.Env.IsLocal() {
		r.mu.Lock()
		r.snapshot = r.opts.Cache.Save(ctx, availability.Snapshot{
			Available:    available,
			Disabled:     state.Disabled,
			DisabledMode: state.DisabledMode,
		})
		r.mu.Unlock()
	}
	r.opts.Metrics.RecordReconcile(trigger, "published")
	return state
}

// publish swaps in a fully merged state and notifies subscribers
func (r *Reconciler) publish(state types.ToggleState, available []string) {
	state.Disabled = toggle.Sanitize(state.Disabled, r.alwaysOn)
	avail := types.SortedUnique(available)

	r.state.Store(&state)
	r.available.Store(&avail)
	r.opts.Metrics.SetDisabled(len(state.Disabled))

	if r.opts.Events == nil {
		return
	}
	published := state.Clone()
	r.opts.Events.Publish(types.Event{Type: types.EventToggleChanged, Toggle: &published})
	r.opts.Events.Publish(types.Event{Type: types.EventAvailabilityChanged, Available: slices.Clone(avail)})
}

// registrable returns available and always-on names in registry order
func (r *Reconciler) registrable(available []string) []string {
	out := make([]string, 0, len(available)+len(r.alwaysOn))
	for _, name := range r.opts.Registry.Names() {
		if slices.Contains(available, name) || slices.Contains(r.alwaysOn, name) {
			out = append(out, name)
		}
	}
	return out
}
