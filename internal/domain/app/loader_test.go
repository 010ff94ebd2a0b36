package app

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/GriffinCanCode/AgentOS/shell/internal/infrastructure/perf"
	"github.com/GriffinCanCode/AgentOS/shell/internal/providers/browser/sandbox"
	"github.com/GriffinCanCode/AgentOS/shell/internal/shared/types"
)

type fakeRegistry map[string]types.Descriptor

func (r fakeRegistry) Get(name string) (types.Descriptor, bool) {
	d, ok := r[name]
	return d, ok
}

func (r fakeRegistry) Resolve(specifier string) (string, bool) {
	d, ok := r[specifier]
	if !ok {
		return "", false
	}
	return d.URL(types.EnvProduction), true
}

type disabledSet []string

func (s disabledSet) IsDisabled(name string) bool {
	for _, n := range s {
		if n == name {
			return true
		}
	}
	return false
}

type fakeDetector struct {
	format types.ModuleFormat
	calls  atomic.Int32
}

func (d *fakeDetector) Detect(context.Context, string) types.ModuleFormat {
	d.calls.Add(1)
	return d.format
}

// scriptRunner executes sources from a table in the window
type scriptRunner struct {
	win     *sandbox.Window
	sources map[string]string
	calls   atomic.Int32
}

func (s *scriptRunner) Load(ctx context.Context, url string) error {
	s.calls.Add(1)
	src, ok := s.sources[url]
	if !ok {
		return errors.New("failed to load script " + url)
	}
	return s.win.Exec(ctx, src, url)
}

type eventLog struct {
	mu     sync.Mutex
	events []types.Event
}

func (e *eventLog) Publish(ev types.Event) {
	e.mu.Lock()
	e.events = append(e.events, ev)
	e.mu.Unlock()
}

func (e *eventLog) all() []types.Event {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]types.Event(nil), e.events...)
}

const globalApp = `window.catalog = {
  bootstrap: function () { window.calls = (window.calls || []).concat("bootstrap"); },
  mount: [
    function (props) { window.calls = window.calls.concat("mount:" + props.name); },
    function () { return Promise.resolve().then(function () { window.calls = window.calls.concat("mount:async"); }); }
  ],
  unmount: function () { window.calls = window.calls.concat("unmount"); }
};`

const legacyApp = `System.register([], function (_export) {
  return {
    execute: function () {
      _export({
        bootstrap: function () {},
        mount: function (props) { window.mounted = props.name; },
        unmount: function () { window.mounted = null; }
      });
    }
  };
});`

type fixture struct {
	win      *sandbox.Window
	scripts  *scriptRunner
	detector *fakeDetector
	native   *ModuleTable
	events   *eventLog
	recorder *perf.Recorder
	fetches  atomic.Int32
	logs     *observer.ObservedLogs
}

func newFixture(t *testing.T, sources map[string]string) *fixture {
	t.Helper()
	win, err := sandbox.New(sandbox.DefaultConfig(), nil, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = win.Close() })

	f := &fixture{
		win:      win,
		scripts:  &scriptRunner{win: win, sources: sources},
		detector: &fakeDetector{format: types.FormatUnknown},
		native:   NewModuleTable(),
		events:   &eventLog{},
		recorder: perf.New(perf.Options{}),
	}
	return f
}

func (f *fixture) enableSystem(t *testing.T, reg fakeRegistry, sources map[string]string) {
	t.Helper()
	require.NoError(t, f.win.EnableSystem(reg, func(_ context.Context, url string) (string, error) {
		f.fetches.Add(1)
		src, ok := sources[url]
		if !ok {
			return "", errors.New("404 " + url)
		}
		return src, nil
	}))
}

func (f *fixture) loader(env types.Env, reg fakeRegistry, disabled DisabledSet) *Loader {
	core, logs := observer.New(zap.DebugLevel)
	f.logs = logs
	return NewLoader(Options{
		Env:      env,
		Registry: reg,
		Disabled: disabled,
		Window:   f.win,
		Scripts:  f.scripts,
		Detector: f.detector,
		Native:   f.native,
		Events:   f.events,
		Recorder: f.recorder,
		Logger:   zap.New(core),
	})
}

func TestDisabledAppGetsNoopWithoutNetwork(t *testing.T) {
	reg := fakeRegistry{
		"@org/catalog": {
			Name:     "@org/catalog",
			Strategy: types.StrategyFormatAdaptive,
			URLs:     map[types.Env]string{types.EnvLocal: "http://localhost:9001/catalog.js"},
		},
	}
	f := newFixture(t, nil)
	l := f.loader(types.EnvLocal, reg, disabledSet{"@org/catalog"})

	h := l.Load(context.Background(), "@org/catalog")

	assert.True(t, h.Noop())
	assert.Equal(t, int32(0), f.detector.calls.Load())
	assert.Equal(t, int32(0), f.scripts.calls.Load())
	assert.Empty(t, f.events.all())

	ctx := context.Background()
	assert.NoError(t, h.Bootstrap(ctx, nil))
	assert.NoError(t, h.Mount(ctx, nil))
	assert.NoError(t, h.Unmount(ctx, nil))
}

func TestGlobalScriptApp(t *testing.T) {
	url := "https://cdn.example.com/catalog.js"
	reg := fakeRegistry{
		"@org/catalog": {
			Name:     "@org/catalog",
			Global:   "catalog",
			Strategy: types.StrategyGlobalScript,
			URLs:     map[types.Env]string{types.EnvProduction: url},
		},
	}
	f := newFixture(t, map[string]string{url: globalApp})
	l := f.loader(types.EnvProduction, reg, disabledSet{})

	h := l.Load(context.Background(), "@org/catalog")
	require.False(t, h.Noop())
	assert.Equal(t, types.FormatGlobalScript, h.Format())

	ctx := context.Background()
	require.NoError(t, h.Bootstrap(ctx, nil))
	require.NoError(t, h.Mount(ctx, nil))
	require.NoError(t, h.Unmount(ctx, nil))

	calls, err := f.win.Eval(ctx, `window.calls.join(",")`)
	require.NoError(t, err)
	assert.Equal(t, "bootstrap,mount:@org/catalog,mount:async,unmount", calls)
}

func TestAdaptiveLocalLegacyUsesSystemImport(t *testing.T) {
	url := "http://localhost:9002/orders.js"
	reg := fakeRegistry{
		"@org/orders": {
			Name:     "@org/orders",
			Strategy: types.StrategyFormatAdaptive,
			URLs:     map[types.Env]string{types.EnvLocal: url},
		},
	}
	f := newFixture(t, nil)
	f.detector.format = types.FormatLegacyRegistration
	f.enableSystem(t, reg, map[string]string{url: legacyApp})
	l := f.loader(types.EnvLocal, reg, nil)

	h := l.Load(context.Background(), "@org/orders")
	require.False(t, h.Noop())
	assert.Equal(t, types.FormatLegacyRegistration, h.Format())
	assert.Equal(t, int32(1), f.detector.calls.Load())

	require.NoError(t, h.Mount(context.Background(), Props{"name": "orders-root"}))
	mounted, err := f.win.Eval(context.Background(), `window.mounted`)
	require.NoError(t, err)
	assert.Equal(t, "orders-root", mounted)
}

func TestAdaptiveLocalGlobalFallsBackToName(t *testing.T) {
	url := "http://localhost:9003/reports.js"
	reg := fakeRegistry{
		"reports": {
			Name:     "reports",
			Strategy: types.StrategyFormatAdaptive,
			URLs:     map[types.Env]string{types.EnvLocal: url},
		},
	}
	f := newFixture(t, map[string]string{url: strings.ReplaceAll(globalApp, "window.catalog", "window.reports")})
	f.detector.format = types.FormatGlobalScript
	l := f.loader(types.EnvLocal, reg, nil)

	h := l.Load(context.Background(), "reports")
	assert.False(t, h.Noop())
	assert.Equal(t, int32(1), f.scripts.calls.Load())
}

func TestAdaptiveLocalPrefersNativeImport(t *testing.T) {
	reg := fakeRegistry{
		"@org/search": {
			Name:     "@org/search",
			Strategy: types.StrategyFormatAdaptive,
			URLs:     map[types.Env]string{types.EnvLocal: "http://localhost:9004/search.js"},
		},
	}
	f := newFixture(t, nil)
	f.detector.format = types.FormatNative
	f.enableSystem(t, reg, nil)

	var mounted atomic.Bool
	f.native.Register("@org/search", Lifecycles{
		Mount: []LifecycleFunc{func(context.Context, Props) error { mounted.Store(true); return nil }},
	})
	l := f.loader(types.EnvLocal, reg, nil)

	h := l.Load(context.Background(), "@org/search")
	require.False(t, h.Noop())
	assert.Equal(t, types.FormatNative, h.Format())
	assert.Equal(t, int32(0), f.fetches.Load())

	require.NoError(t, h.Mount(context.Background(), nil))
	assert.True(t, mounted.Load())
}

func TestAdaptiveFallbackFailureLogsBothErrors(t *testing.T) {
	reg := fakeRegistry{
		"@org/legacy": {
			Name:     "@org/legacy",
			Strategy: types.StrategyFormatAdaptive,
			URLs:     map[types.Env]string{types.EnvLocal: "http://localhost:9005/legacy.js"},
		},
	}
	f := newFixture(t, nil)
	f.enableSystem(t, reg, map[string]string{})
	l := f.loader(types.EnvLocal, reg, nil)

	h := l.Load(context.Background(), "@org/legacy")
	assert.True(t, h.Noop())
	assert.Equal(t, int32(1), f.fetches.Load())

	entries := f.logs.FilterMessage("Application load failed, using no-op handle").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Contains(t, fields["primary"], "native module not found")
	assert.Contains(t, fields["fallback"], "404")

	events := f.events.all()
	require.Len(t, events, 1)
	assert.Equal(t, types.EventAppLoadError, events[0].Type)
	assert.Equal(t, "@org/legacy", events[0].LoadError.App)
}

func TestAdaptiveProductionImportsByNameThroughSystem(t *testing.T) {
	url := "https://cdn.example.com/orders.js"
	reg := fakeRegistry{
		"@org/orders": {
			Name:     "@org/orders",
			Strategy: types.StrategyFormatAdaptive,
			URLs:     map[types.Env]string{types.EnvProduction: url},
		},
	}
	f := newFixture(t, nil)
	f.enableSystem(t, reg, map[string]string{url: legacyApp})
	l := f.loader(types.EnvProduction, reg, nil)

	h := l.Load(context.Background(), "@org/orders")
	assert.False(t, h.Noop())
	assert.Equal(t, int32(0), f.detector.calls.Load())
	assert.Equal(t, int32(1), f.fetches.Load())
}

func TestNativeStrategyWithoutModuleIsNoop(t *testing.T) {
	reg := fakeRegistry{"@org/missing": {Name: "@org/missing", Strategy: types.StrategyNative}}
	f := newFixture(t, nil)
	l := f.loader(types.EnvProduction, reg, nil)

	h := l.Load(context.Background(), "@org/missing")
	assert.True(t, h.Noop())
	require.Len(t, f.events.all(), 1)

	h = l.Load(context.Background(), "@org/unregistered")
	assert.True(t, h.Noop())
	assert.Len(t, f.events.all(), 2)
}

func TestLoadErrorMessageIsStrippedAndTruncated(t *testing.T) {
	url := "https://cdn.example.com/broken.js"
	long := strings.Repeat("x", 400)
	reg := fakeRegistry{
		"broken": {
			Name:     "broken",
			Strategy: types.StrategyGlobalScript,
			URLs:     map[types.Env]string{types.EnvProduction: url},
		},
	}
	f := newFixture(t, map[string]string{url: `throw new Error("<b>boom</b> ` + long + `")`})
	l := f.loader(types.EnvProduction, reg, nil)

	h := l.Load(context.Background(), "broken")
	assert.True(t, h.Noop())

	events := f.events.all()
	require.Len(t, events, 1)
	msg := events[0].LoadError.Message
	assert.Contains(t, msg, "boom")
	assert.NotContains(t, msg, "<b>")
	assert.LessOrEqual(t, len([]rune(msg)), 200)
}

func TestMarksAreRecordedEvenOnFailure(t *testing.T) {
	reg := fakeRegistry{"@org/flaky": {Name: "@org/flaky", Strategy: types.StrategyNative}}
	f := newFixture(t, nil)
	f.native.Register("@org/flaky", Lifecycles{
		Bootstrap: []LifecycleFunc{func(context.Context, Props) error { return errors.New("bootstrap failed") }},
	})
	l := f.loader(types.EnvProduction, reg, nil)

	h := l.Load(context.Background(), "@org/flaky")
	require.False(t, h.Noop())
	assert.Error(t, h.Bootstrap(context.Background(), nil))

	names := func(kind perf.Kind, prefix string) []string {
		var out []string
		for _, e := range f.recorder.Entries(kind, prefix) {
			out = append(out, e.Name)
		}
		return out
	}
	assert.Equal(t, []string{"@org/flaky:load:start", "@org/flaky:load:end"}, names(perf.KindMark, "@org/flaky:load"))
	assert.Equal(t, []string{"@org/flaky:bootstrap:start", "@org/flaky:bootstrap:end"}, names(perf.KindMark, "@org/flaky:bootstrap"))
	assert.Equal(t, []string{"@org/flaky:load", "@org/flaky:bootstrap"}, names(perf.KindMeasure, "@org/flaky"))
}

func TestInvalidExportsFailLoad(t *testing.T) {
	url := "https://cdn.example.com/partial.js"
	reg := fakeRegistry{
		"partial": {
			Name:     "partial",
			Strategy: types.StrategyGlobalScript,
			URLs:     map[types.Env]string{types.EnvProduction: url},
		},
	}
	f := newFixture(t, map[string]string{url: `window.partial = { mount: function () {} };`})
	l := f.loader(types.EnvProduction, reg, nil)

	assert.True(t, l.Load(context.Background(), "partial").Noop())
	events := f.events.all()
	require.Len(t, events, 1)
	assert.Contains(t, events[0].LoadError.Message, "bootstrap")
}
