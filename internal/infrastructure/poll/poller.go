// Package poll runs a function on an interval that backs off while the tab
// is hidden and never overlaps itself.
package poll

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/shell/internal/infrastructure/monitoring"
)

// Visibility reports and streams the tab's visibility.
// Watch returns a channel of visibility changes and a cancel func.
type Visibility interface {
	Visible() bool
	Watch() (<-chan bool, func())
}

// Func is the polled operation
type Func func(ctx context.Context)

// Options configures a Poller
type Options struct {
	Name       string
	Active     time.Duration
	Hidden     time.Duration
	Visibility Visibility
	Clock      clockwork.Clock
	Metrics    *monitoring.Metrics
	Logger     *zap.Logger
}

// Stats counts executed and skipped ticks
type Stats struct {
	Executed int64
	Skipped  int64
}

// Poller invokes a Func every Active interval (Hidden while hidden).
// A tick that fires while the previous run is still in flight is skipped.
// Becoming visible triggers a run immediately.
type Poller struct {
	opts Options
	fn   Func

	inFlight atomic.Bool
	executed atomic.Int64
	skipped  atomic.Int64
	wg       sync.WaitGroup
}

// New creates a poller
func New(fn Func, opts Options) *Poller {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Active <= 0 {
		opts.Active = 5 * time.Second
	}
	if opts.Hidden < opts.Active {
		opts.Hidden = opts.Active
	}
	return &Poller{opts: opts, fn: fn}
}

// Run blocks until ctx is cancelled, then waits for an in-flight run
func (p *Poller) Run(ctx context.Context) {
	defer p.wg.Wait()

	var changes <-chan bool
	if p.opts.Visibility != nil {
		ch, cancel := p.opts.Visibility.Watch()
		defer cancel()
		changes = ch
	}

	for {
		timer := p.opts.Clock.NewTimer(p.interval())

		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.Chan():
			p.tick(ctx)
		case visible, ok := <-changes:
			timer.Stop()
			if !ok {
				changes = nil
				continue
			}
			if visible {
				p.opts.Logger.Debug("Tab visible, polling now", zap.String("poller", p.opts.Name))
				p.tick(ctx)
			}
		}
	}
}

// Stats returns tick counters
func (p *Poller) Stats() Stats {
	return Stats{Executed: p.executed.Load(), Skipped: p.skipped.Load()}
}

func (p *Poller) interval() time.Duration {
	if p.opts.Visibility != nil && !p.opts.Visibility.Visible() {
		return p.opts.Hidden
	}
	return p.opts.Active
}

func (p *Poller) tick(ctx context.Context) {
	if !p.inFlight.CompareAndSwap(false, true) {
		p.skipped.Add(1)
		p.opts.Metrics.RecordPollTick(p.opts.Name, "skipped")
		return
	}
	p.executed.Add(1)
	p.opts.Metrics.RecordPollTick(p.opts.Name, "executed")

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer p.inFlight.Store(false)
		p.fn(ctx)
	}()
}
