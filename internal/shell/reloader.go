package shell

import (
	"sync"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/shell/internal/infrastructure/monitoring"
)

// ReasonDevBuild is the reload reason used by the dev-build watcher
const ReasonDevBuild = "dev-build"

// Reloader is one page generation's reload guard: however many signals
// ask for a reload, at most one is issued.
type Reloader struct {
	mu     sync.Mutex
	reason string // Protected by mu; empty until scheduled

	requested chan string
	metrics   *monitoring.Metrics
	logger    *zap.Logger
}

// NewReloader creates an unscheduled guard
func NewReloader(metrics *monitoring.Metrics, logger *zap.Logger) *Reloader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reloader{
		requested: make(chan string, 1),
		metrics:   metrics,
		logger:    logger,
	}
}

// Reload schedules the reload. It reports false if one was already
// scheduled for this generation.
func (r *Reloader) Reload(reason string) bool {
	r.mu.Lock()
	if r.reason != "" {
		r.mu.Unlock()
		r.logger.Debug("Reload already scheduled", zap.String("reason", reason))
		return false
	}
	if reason == "" {
		reason = "unspecified"
	}
	r.reason = reason
	r.mu.Unlock()

	r.logger.Info("Reload scheduled", zap.String("reason", reason))
	r.metrics.RecordReload(reason)
	r.requested <- reason
	return true
}

// Scheduled returns the reason of the scheduled reload, if any
func (r *Reloader) Scheduled() (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.reason, r.reason != ""
}

// Requested delivers the reason once a reload is scheduled
func (r *Reloader) Requested() <-chan string {
	return r.requested
}
