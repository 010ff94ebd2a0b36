package availability

import (
	"context"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/GriffinCanCode/AgentOS/shell/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/AgentOS/shell/internal/providers/http/client"
)

// DefaultProbeTimeout bounds each HEAD request
const DefaultProbeTimeout = 700 * time.Millisecond

// maxConcurrentProbes caps in-flight HEAD requests per round
const maxConcurrentProbes = 16

// Prober checks whether module URLs answer
type Prober struct {
	http    *client.Client
	timeout time.Duration
	metrics *monitoring.Metrics
	logger  *zap.Logger
}

// NewProber creates a prober; a zero timeout uses DefaultProbeTimeout
func NewProber(httpClient *client.Client, timeout time.Duration, metrics *monitoring.Metrics, logger *zap.Logger) *Prober {
	if httpClient == nil {
		httpClient = client.New(client.Options{Name: "probe", Logger: logger})
	}
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Prober{http: httpClient, timeout: timeout, metrics: metrics, logger: logger}
}

// Probe reports whether url answers a HEAD request with a status below
// 400. Errors and timeouts count as unavailable.
func (p *Prober) Probe(ctx context.Context, url string) bool {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	ok := p.head(ctx, url)
	p.metrics.RecordProbe(ok)
	return ok
}

func (p *Prober) head(ctx context.Context, url string) bool {
	req, err := p.http.Request(ctx, url)
	if err != nil {
		return false
	}
	resp, err := p.http.Do(url, func() (*resty.Response, error) {
		return req.Head(url)
	})
	if err != nil {
		p.logger.Debug("Probe failed", zap.String("url", url), zap.Error(err))
		return false
	}
	return resp.StatusCode() < http.StatusBadRequest
}

// ProbeAll probes every name's URL concurrently and returns the available
// names, sorted
func (p *Prober) ProbeAll(ctx context.Context, urls map[string]string) []string {
	start := time.Now()

	var (
		mu        sync.Mutex
		available = make([]string, 0, len(urls))
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentProbes)
	for name, url := range urls {
		g.Go(func() error {
			if p.Probe(gctx, url) {
				mu.Lock()
				available = append(available, name)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	sort.Strings(available)
	p.metrics.RecordProbeRound(time.Since(start), len(available))
	p.logger.Debug("Probe round finished",
		zap.Int("probed", len(urls)),
		zap.Int("available", len(available)),
		zap.Duration("duration", time.Since(start)))
	return available
}
