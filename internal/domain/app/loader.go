package app

import (
	"context"
	"errors"
	"fmt"
	"html"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/shell/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/AgentOS/shell/internal/infrastructure/perf"
	"github.com/GriffinCanCode/AgentOS/shell/internal/providers/browser/sandbox"
	"github.com/GriffinCanCode/AgentOS/shell/internal/shared/types"
	"github.com/GriffinCanCode/AgentOS/shell/internal/shared/utils"
)

// ErrUnknownApp is returned for a name missing from the registry
var ErrUnknownApp = errors.New("application not registered")

// Registry provides descriptors by name
type Registry interface {
	Get(name string) (types.Descriptor, bool)
}

// DisabledSet reports the current runtime-disabled state
type DisabledSet interface {
	IsDisabled(name string) bool
}

// Detector classifies module URLs
type Detector interface {
	Detect(ctx context.Context, url string) types.ModuleFormat
}

// ScriptLoader injects global-exposing scripts
type ScriptLoader interface {
	Load(ctx context.Context, url string) error
}

// Publisher receives UI-facing events
type Publisher interface {
	Publish(ev types.Event)
}

// FallbackError carries both errors of a native import that fell back to
// the legacy module system
type FallbackError struct {
	Primary  error
	Fallback error
}

func (e *FallbackError) Error() string {
	return fmt.Sprintf("native import: %v; System import fallback: %v", e.Primary, e.Fallback)
}

func (e *FallbackError) Unwrap() []error {
	return []error{e.Primary, e.Fallback}
}

// Options configures a Loader
type Options struct {
	Env      types.Env
	Registry Registry
	Disabled DisabledSet
	Window   *sandbox.Window
	Scripts  ScriptLoader
	Detector Detector
	Native   NativeImporter
	Events   Publisher
	Recorder *perf.Recorder
	Metrics  *monitoring.Metrics
	Logger   *zap.Logger
}

// loadFunc is one strategy or format handler
type loadFunc func(ctx context.Context, d types.Descriptor) (Lifecycles, types.ModuleFormat, error)

// Loader turns application names into lifecycle handles
type Loader struct {
	env      types.Env
	registry Registry
	disabled DisabledSet
	window   *sandbox.Window
	scripts  ScriptLoader
	detector Detector
	native   NativeImporter
	events   Publisher
	recorder *perf.Recorder
	metrics  *monitoring.Metrics
	logger   *zap.Logger
	policy   *bluemonday.Policy
}

// NewLoader creates an application loader
func NewLoader(opts Options) *Loader {
	if opts.Native == nil {
		opts.Native = NewModuleTable()
	}
	if opts.Recorder == nil {
		opts.Recorder = perf.New(perf.Options{Metrics: opts.Metrics})
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Loader{
		env:      opts.Env,
		registry: opts.Registry,
		disabled: opts.Disabled,
		window:   opts.Window,
		scripts:  opts.Scripts,
		detector: opts.Detector,
		native:   opts.Native,
		events:   opts.Events,
		recorder: opts.Recorder,
		metrics:  opts.Metrics,
		logger:   opts.Logger,
		policy:   bluemonday.StrictPolicy(),
	}
}

// Load returns name's lifecycle handle. It never fails: disabled and
// broken applications get the no-op handle.
func (l *Loader) Load(ctx context.Context, name string) *Handle {
	end := l.recorder.Span(markName(name, PhaseLoad))
	defer end()
	start := time.Now()

	d, ok := l.registry.Get(name)
	if !ok {
		l.fail(name, types.StrategyNative, fmt.Errorf("%w: %s", ErrUnknownApp, name), start)
		return l.noop(name, types.StrategyNative, types.FormatUnknown)
	}

	if l.disabled != nil && l.disabled.IsDisabled(name) {
		l.metrics.RecordAppLoad(name, string(d.Strategy), "disabled", time.Since(start))
		l.logger.Debug("Application disabled, using no-op handle", zap.String("app", name))
		return l.noop(name, d.Strategy, types.FormatUnknown)
	}

	lc, format, err := l.byStrategy(d.Strategy)(ctx, d)
	if err != nil {
		l.fail(name, d.Strategy, err, start)
		return l.noop(name, d.Strategy, format)
	}

	l.metrics.RecordAppLoad(name, string(d.Strategy), "success", time.Since(start))
	l.logger.Debug("Application loaded",
		zap.String("app", name),
		zap.String("strategy", string(d.Strategy)),
		zap.String("format", format.String()))
	return l.handle(name, d.Strategy, format, lc, false)
}

func (l *Loader) byStrategy(s types.Strategy) loadFunc {
	switch s {
	case types.StrategyGlobalScript:
		return l.loadGlobalScript
	case types.StrategyFormatAdaptive:
		return l.loadAdaptive
	default:
		return l.loadNative
	}
}

func (l *Loader) byFormat(f types.ModuleFormat) loadFunc {
	switch f {
	case types.FormatLegacyRegistration:
		return l.loadLegacy
	case types.FormatGlobalScript:
		return l.loadGlobalScript
	default:
		return l.loadNativeWithFallback
	}
}

func (l *Loader) loadAdaptive(ctx context.Context, d types.Descriptor) (Lifecycles, types.ModuleFormat, error) {
	if !l.env.IsLocal() {
		if l.window != nil && l.window.HasSystem() {
			lc, err := l.systemImport(ctx, d.Name)
			return lc, types.FormatLegacyRegistration, err
		}
		lc, err := l.native.Import(ctx, d.Name)
		return lc, types.FormatNative, err
	}

	if l.detector == nil {
		return l.loadNativeWithFallback(ctx, d)
	}
	format := l.detector.Detect(ctx, d.URL(l.env))
	lc, _, err := l.byFormat(format)(ctx, d)
	return lc, format, err
}

func (l *Loader) loadLegacy(ctx context.Context, d types.Descriptor) (Lifecycles, types.ModuleFormat, error) {
	lc, err := l.systemImport(ctx, d.URL(l.env))
	return lc, types.FormatLegacyRegistration, err
}

func (l *Loader) loadGlobalScript(ctx context.Context, d types.Descriptor) (Lifecycles, types.ModuleFormat, error) {
	if l.scripts == nil || l.window == nil {
		return Lifecycles{}, types.FormatGlobalScript, errors.New("no script loader configured")
	}
	if err := l.scripts.Load(ctx, d.URL(l.env)); err != nil {
		return Lifecycles{}, types.FormatGlobalScript, err
	}
	exports, err := l.window.Lookup(d.GlobalName())
	if err != nil {
		return Lifecycles{}, types.FormatGlobalScript, err
	}
	lc, err := fromExports(ctx, l.window, exports)
	return lc, types.FormatGlobalScript, err
}

func (l *Loader) loadNative(ctx context.Context, d types.Descriptor) (Lifecycles, types.ModuleFormat, error) {
	lc, err := l.native.Import(ctx, d.Name)
	return lc, types.FormatNative, err
}

func (l *Loader) loadNativeWithFallback(ctx context.Context, d types.Descriptor) (Lifecycles, types.ModuleFormat, error) {
	lc, err := l.native.Import(ctx, d.Name)
	if err == nil {
		return lc, types.FormatNative, nil
	}
	lc, fallbackErr := l.systemImport(ctx, d.URL(l.env))
	if fallbackErr != nil {
		return Lifecycles{}, types.FormatNative, &FallbackError{Primary: err, Fallback: fallbackErr}
	}
	return lc, types.FormatLegacyRegistration, nil
}

func (l *Loader) systemImport(ctx context.Context, specifier string) (Lifecycles, error) {
	if l.window == nil {
		return Lifecycles{}, sandbox.ErrNoSystem
	}
	ns, err := l.window.SystemImport(ctx, specifier)
	if err != nil {
		return Lifecycles{}, err
	}
	return fromExports(ctx, l.window, ns)
}

// fail logs, counts and publishes a load failure
func (l *Loader) fail(name string, strategy types.Strategy, err error, start time.Time) {
	fields := []zap.Field{
		zap.String("app", name),
		zap.String("strategy", string(strategy)),
		zap.Error(err),
	}
	var fb *FallbackError
	if errors.As(err, &fb) {
		fields = append(fields, zap.NamedError("primary", fb.Primary), zap.NamedError("fallback", fb.Fallback))
	}
	l.logger.Error("Application load failed, using no-op handle", fields...)
	l.metrics.RecordAppLoad(name, string(strategy), "failure", time.Since(start))

	if l.events != nil {
		l.events.Publish(types.Event{
			Type: types.EventAppLoadError,
			LoadError: &types.LoadError{
				App:     name,
				Message: l.message(err),
			},
		})
	}
}

// message strips markup from err and truncates it for display
func (l *Loader) message(err error) string {
	text := html.UnescapeString(l.policy.Sanitize(err.Error()))
	return utils.Truncate(text, utils.MaxErrorMessageRunes)
}

func (l *Loader) noop(name string, strategy types.Strategy, format types.ModuleFormat) *Handle {
	return l.handle(name, strategy, format, Lifecycles{}, true)
}

func (l *Loader) handle(name string, strategy types.Strategy, format types.ModuleFormat, lc Lifecycles, noop bool) *Handle {
	return &Handle{
		name:       name,
		strategy:   strategy,
		format:     format,
		noop:       noop,
		lifecycles: lc,
		recorder:   l.recorder,
		metrics:    l.metrics,
	}
}
