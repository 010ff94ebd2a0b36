// Package script loads global-exposing scripts into the shell window
// exactly once per cache key.
package script

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/shell/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/AgentOS/shell/internal/providers/browser/sandbox"
	"github.com/GriffinCanCode/AgentOS/shell/internal/shared/types"
	"github.com/GriffinCanCode/AgentOS/shell/internal/shared/utils"
)

// ErrLoadFailed is wrapped by every failed load
var ErrLoadFailed = errors.New("failed to load script")

// Options configures a Loader
type Options struct {
	Window     *sandbox.Window
	Fetch      sandbox.Fetcher
	Env        types.Env
	Generation uint64 // cache-busting token appended in local mode
	Timeout    time.Duration
	Metrics    *monitoring.Metrics
	Logger     *zap.Logger
}

// Loader injects and executes scripts. Pending and settled loads are
// shared per key; a failed load is evicted so a later call retries.
type Loader struct {
	window  *sandbox.Window
	fetch   sandbox.Fetcher
	env     types.Env
	gen     uint64
	timeout time.Duration
	metrics *monitoring.Metrics
	logger  *zap.Logger

	mu      sync.Mutex
	entries map[string]*future
}

// future is a load shared by every caller of one key
type future struct {
	done chan struct{}
	err  error
}

func (f *future) wait(ctx context.Context) error {
	select {
	case <-f.done:
		return f.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// New creates a script loader
func New(opts Options) *Loader {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Loader{
		window:  opts.Window,
		fetch:   opts.Fetch,
		env:     opts.Env,
		gen:     opts.Generation,
		timeout: opts.Timeout,
		metrics: opts.Metrics,
		logger:  opts.Logger,
		entries: make(map[string]*future),
	}
}

// Key returns the cache key and script src for url
func (l *Loader) Key(url string) string {
	if l.env.IsLocal() {
		return utils.WithQuery(url, "v", strconv.FormatUint(l.gen, 10))
	}
	return url
}

// Load injects the script for url once and waits for it to execute.
// Every caller of a failed attempt observes the same error.
func (l *Loader) Load(ctx context.Context, url string) error {
	key := l.Key(url)

	l.mu.Lock()
	f, ok := l.entries[key]
	if !ok {
		f = &future{done: make(chan struct{})}
		l.entries[key] = f
	}
	l.mu.Unlock()

	if !ok {
		// the load outlives the first caller so later waiters are not
		// failed by its cancellation
		go l.run(context.WithoutCancel(ctx), key, url, f)
	} else {
		l.metrics.RecordScriptLoad("shared")
	}
	return f.wait(ctx)
}

// Loaded reports whether url has a settled successful load
func (l *Loader) Loaded(url string) bool {
	l.mu.Lock()
	f, ok := l.entries[l.Key(url)]
	l.mu.Unlock()
	if !ok {
		return false
	}
	select {
	case <-f.done:
		return f.err == nil
	default:
		return false
	}
}

func (l *Loader) run(ctx context.Context, key, url string, f *future) {
	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	err := l.inject(ctx, key)
	if err != nil {
		err = fmt.Errorf("%w %s: %w", ErrLoadFailed, url, err)

		l.mu.Lock()
		if l.entries[key] == f {
			delete(l.entries, key)
		}
		l.mu.Unlock()

		l.metrics.RecordScriptLoad("failure")
		l.logger.Warn("Script load failed", zap.String("url", url), zap.Error(err))
	} else {
		l.metrics.RecordScriptLoad("success")
		l.logger.Debug("Script loaded", zap.String("url", url), zap.String("key", key))
	}

	f.err = err
	close(f.done)
}

// inject appends the script element, then fetches and executes its source
func (l *Loader) inject(ctx context.Context, src string) error {
	if l.window == nil || l.fetch == nil {
		return fmt.Errorf("no window to load into")
	}
	dom := l.window.DOM()

	attrs := map[string]string{"src": src}
	if !l.env.IsLocal() {
		attrs["crossorigin"] = "anonymous"
	}
	if nonce := dom.Nonce(); nonce != "" {
		attrs["nonce"] = nonce
	}
	dom.AppendChild(dom.Head(), sandbox.NewElement("script", attrs))

	source, err := l.fetch(ctx, src)
	if err != nil {
		return err
	}
	return l.window.Exec(ctx, source, src)
}
