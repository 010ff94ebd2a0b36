package shell

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/shell/internal/infrastructure/poll"
	"github.com/GriffinCanCode/AgentOS/shell/internal/providers/browser/sandbox"
)

const devBuildTimeout = 5 * time.Second

// buildWatcher reloads the page when the dev server's build id changes.
// The first successful fetch sets the baseline.
type buildWatcher struct {
	url      string
	fetch    sandbox.Fetcher
	reloader *Reloader
	logger   *zap.Logger

	mu   sync.Mutex
	last string // Protected by mu
	seen bool   // Protected by mu
}

func (w *buildWatcher) check(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, devBuildTimeout)
	defer cancel()

	body, err := w.fetch(ctx, w.url)
	if err != nil {
		w.logger.Debug("Dev build poll failed", zap.Error(err))
		return
	}
	build := strings.TrimSpace(body)

	w.mu.Lock()
	changed := w.seen && build != w.last
	w.last, w.seen = build, true
	w.mu.Unlock()

	if changed {
		w.logger.Info("Dev build changed", zap.String("build", build))
		w.reloader.Reload(ReasonDevBuild)
	}
}

// devBuildWatcher returns the dev-build poller, or nil outside local mode
// or without a build URL
func (p *Page) devBuildWatcher() *poll.Poller {
	url := p.sc.cfg.Shell.DevBuildURL
	if url == "" || !p.sc.Env().IsLocal() {
		return nil
	}
	w := &buildWatcher{
		url:      url,
		fetch:    p.sc.http.GetText,
		reloader: p.Reloader,
		logger:   p.logger.Named("devbuild"),
	}
	return poll.New(w.check, poll.Options{
		Name:       "dev-build",
		Active:     p.sc.cfg.Poll.Active,
		Hidden:     p.sc.cfg.Poll.Hidden,
		Visibility: p.sc.visibility,
		Clock:      p.sc.clock,
		Metrics:    p.sc.metrics,
		Logger:     p.logger.Named("devbuild"),
	})
}
