package shell

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/shell/internal/domain/app"
	"github.com/GriffinCanCode/AgentOS/shell/internal/domain/availability"
	"github.com/GriffinCanCode/AgentOS/shell/internal/domain/crosstab"
	"github.com/GriffinCanCode/AgentOS/shell/internal/domain/detect"
	"github.com/GriffinCanCode/AgentOS/shell/internal/domain/layout"
	"github.com/GriffinCanCode/AgentOS/shell/internal/domain/reconcile"
	"github.com/GriffinCanCode/AgentOS/shell/internal/domain/script"
	"github.com/GriffinCanCode/AgentOS/shell/internal/domain/toggle"
	"github.com/GriffinCanCode/AgentOS/shell/internal/infrastructure/perf"
	"github.com/GriffinCanCode/AgentOS/shell/internal/providers/broadcast"
	"github.com/GriffinCanCode/AgentOS/shell/internal/providers/browser/sandbox"
	"github.com/GriffinCanCode/AgentOS/shell/internal/shared/types"
)

const teardownTimeout = 10 * time.Second

// ErrPageStarted is returned by a second Start on the same page
var ErrPageStarted = errors.New("page already started")

// Page is one generation of the tab: everything a browser reload throws
// away and rebuilds.
type Page struct {
	Generation uint64
	Window     *sandbox.Window
	Recorder   *perf.Recorder
	Detector   *detect.Detector
	Scripts    *script.Loader
	Apps       *app.Loader
	Layout     *layout.Engine
	Reconciler *reconcile.Reconciler
	Sync       *crosstab.Sync
	Reloader   *Reloader

	sc      *Context
	logger  *zap.Logger
	startup atomic.Value // reconcile.Phase

	startOnce sync.Once
	ready     chan struct{}
}

// NewPage builds generation gen over an initialized context
func NewPage(sc *Context, gen uint64) (*Page, error) {
	if !sc.Initialized() {
		return nil, ErrNotInitialized
	}
	cfg := sc.cfg
	env := sc.Env()
	logger := sc.logger.With(zap.Uint64("generation", gen))

	dom := sandbox.NewDOM()
	if len(sc.document) > 0 {
		parsed, err := sandbox.ParseDocument(bytes.NewReader(sc.document))
		if err != nil {
			return nil, fmt.Errorf("parse shell document: %w", err)
		}
		dom = parsed
	}

	window, err := sandbox.New(sandbox.DefaultConfig(), dom, logger.Named("window"))
	if err != nil {
		return nil, fmt.Errorf("create window: %w", err)
	}
	if err := window.EnableSystem(sc.registry, sc.http.GetText); err != nil {
		window.Close()
		return nil, fmt.Errorf("enable System host: %w", err)
	}

	p := &Page{
		Generation: gen,
		Window:     window,
		Reloader:   NewReloader(sc.metrics, logger.Named("reload")),
		sc:         sc,
		logger:     logger,
		ready:      make(chan struct{}),
	}

	p.Recorder = perf.New(perf.Options{Clock: sc.clock, Metrics: sc.metrics, Logger: logger.Named("perf")})

	partial, full := cfg.DetectTimeouts()
	p.Detector = detect.New(detect.Options{
		HTTP:           sc.http,
		Env:            env,
		PartialTimeout: partial,
		FullTimeout:    full,
		Clock:          sc.clock,
		Metrics:        sc.metrics,
		Logger:         logger.Named("detect"),
	})

	p.Scripts = script.New(script.Options{
		Window:     window,
		Fetch:      sc.http.GetText,
		Env:        env,
		Generation: gen,
		Metrics:    sc.metrics,
		Logger:     logger.Named("script"),
	})

	p.Reconciler = reconcile.New(reconcile.Options{
		Env:      env,
		Registry: sc.registry,
		Remote: toggle.NewClient(toggle.ClientOptions{
			URL:     cfg.Shell.ToggleURL,
			HTTP:    sc.http,
			Metrics: sc.metrics,
			Logger:  logger.Named("toggle"),
		}),
		Overrides:  toggle.NewOverrides(sc.local),
		Prober:     availability.NewProber(sc.http, cfg.Poll.ProbeTimeout, sc.metrics, logger.Named("probe")),
		Cache:      availability.NewCache(sc.session, cfg.Poll.CacheTTL, sc.clock),
		Events:     sc.events,
		Reloader:   p.Reloader,
		Visibility: sc.visibility,
		Clock:      sc.clock,
		PollActive: cfg.Poll.Active,
		PollHidden: cfg.Poll.Hidden,
		ReprobeMin: cfg.Poll.ReprobeMin,
		Metrics:    sc.metrics,
		Logger:     logger.Named("reconcile"),
	})

	p.Apps = app.NewLoader(app.Options{
		Env:      env,
		Registry: sc.registry,
		Disabled: p.Reconciler,
		Window:   window,
		Scripts:  p.Scripts,
		Detector: p.Detector,
		Native:   sc.native,
		Events:   sc.events,
		Recorder: p.Recorder,
		Metrics:  sc.metrics,
		Logger:   logger.Named("app"),
	})

	p.Layout = layout.NewEngine(p.Apps, p.Reconciler, logger.Named("layout")).WithMetrics(sc.metrics)

	p.Sync = crosstab.New(
		broadcast.Open(sc.broadcast, crosstab.ChannelName, sc.tab),
		sc.local,
		p.Reloader,
		sc.metrics,
		logger.Named("crosstab"),
	)

	return p, nil
}

// Start reconciles, starts listening for cross-tab changes, registers the
// resulting applications and mounts the configured route. It never
// fails because of an individual application.
func (p *Page) Start(ctx context.Context) error {
	err := ErrPageStarted
	p.startOnce.Do(func() {
		err = p.start(ctx)
		close(p.ready)
	})
	return err
}

func (p *Page) start(ctx context.Context) error {
	end := p.Recorder.Span("shell:start")
	defer end()

	res, err := p.Reconciler.Start(ctx)
	if err != nil {
		return fmt.Errorf("reconcile: %w", err)
	}
	p.startup.Store(res.Phase)

	// subscribe before mounting so changes made meanwhile still reload
	if err := p.Sync.Listen(ctx); err != nil {
		p.logger.Warn("Cross-tab sync unavailable", zap.Error(err))
	}

	for _, name := range res.Register {
		d, ok := p.sc.registry.Get(name)
		if !ok {
			continue
		}
		if err := p.Layout.Register(name, d.ActiveWhen); err != nil {
			p.logger.Warn("Failed to register application", zap.String("app", name), zap.Error(err))
		}
	}
	p.Layout.Start(ctx, p.sc.cfg.Shell.Route)

	stats := p.Layout.Stats()
	p.logger.Info("Page started",
		zap.String("phase", string(res.Phase)),
		zap.Int("registered", stats.Total),
		zap.Int("mounted", stats.Mounted),
		zap.Int("broken", stats.Broken),
		zap.Strings("disabled", res.State.Disabled))
	return nil
}

// Ready is closed once Start has returned
func (p *Page) Ready() <-chan struct{} {
	return p.ready
}

// Run starts the page and watches until ctx is done or a reload is
// requested, then tears the page down. It returns the reload reason, or
// "" when ctx ended the page.
func (p *Page) Run(ctx context.Context) (string, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := p.Start(ctx); err != nil {
		p.teardown()
		return "", err
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		p.Reconciler.Run(ctx)
	}()
	if w := p.devBuildWatcher(); w != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.Run(ctx)
		}()
	}

	var reason string
	select {
	case <-ctx.Done():
	case reason = <-p.Reloader.Requested():
	}

	cancel()
	wg.Wait()
	p.Sync.Wait()
	p.teardown()
	return reason, nil
}

// teardown unmounts applications and closes the window
func (p *Page) teardown() {
	ctx, cancel := context.WithTimeout(context.Background(), teardownTimeout)
	defer cancel()

	p.Layout.Stop(ctx)
	if err := p.Window.Close(); err != nil {
		p.logger.Debug("Window close failed", zap.Error(err))
	}
}

// State is the page's published view for status listings
type State struct {
	Generation uint64            `json:"generation"`
	Startup    reconcile.Phase   `json:"startup"` // phase Start ended in
	Phase      reconcile.Phase   `json:"phase"`
	Toggle     types.ToggleState `json:"toggle"`
	Available  []string          `json:"available"`
	Route      string            `json:"route"`
	Apps       []types.AppInfo   `json:"apps"`
	Stats      layout.Stats      `json:"stats"`
}

// Snapshot returns the page's current state
func (p *Page) Snapshot() State {
	startup, _ := p.startup.Load().(reconcile.Phase)
	return State{
		Generation: p.Generation,
		Startup:    startup,
		Phase:      p.Reconciler.Phase(),
		Toggle:     p.Reconciler.State(),
		Available:  p.Reconciler.Available(),
		Route:      p.Layout.Route(),
		Apps:       p.Layout.List(),
		Stats:      p.Layout.Stats(),
	}
}
