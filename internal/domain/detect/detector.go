package detect

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-resty/resty/v2"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/GriffinCanCode/AgentOS/shell/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/AgentOS/shell/internal/providers/http/client"
	"github.com/GriffinCanCode/AgentOS/shell/internal/shared/types"
	"github.com/GriffinCanCode/AgentOS/shell/internal/shared/utils"
)

// Options configures a Detector
type Options struct {
	HTTP           *client.Client
	Env            types.Env
	PartialTimeout time.Duration
	FullTimeout    time.Duration
	Clock          clockwork.Clock
	Metrics        *monitoring.Metrics
	Logger         *zap.Logger
}

// Detector determines module formats with memoization per URL
type Detector struct {
	http    *client.Client
	env     types.Env
	partial time.Duration
	full    time.Duration
	clock   clockwork.Clock
	metrics *monitoring.Metrics
	logger  *zap.Logger

	cache sync.Map // url -> types.ModuleFormat
	group singleflight.Group
}

// New creates a detector
func New(opts Options) *Detector {
	if opts.HTTP == nil {
		opts.HTTP = client.New(client.Options{Name: "detect", Logger: opts.Logger})
	}
	if opts.Env == "" {
		opts.Env = types.EnvProduction
	}
	if opts.PartialTimeout <= 0 {
		opts.PartialTimeout = 3 * time.Second
	}
	if opts.FullTimeout <= 0 {
		opts.FullTimeout = 8 * time.Second
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Detector{
		http:    opts.HTTP,
		env:     opts.Env,
		partial: opts.PartialTimeout,
		full:    opts.FullTimeout,
		clock:   opts.Clock,
		metrics: opts.Metrics,
		logger:  opts.Logger,
	}
}

// Detect returns the format of the module at url. It never fails: network
// errors, unexpected statuses and timeouts yield FormatUnknown. Concurrent
// callers share one detection that outlives any single caller's ctx; a
// caller whose ctx ends first gets FormatUnknown while the others still
// receive the real result.
func (d *Detector) Detect(ctx context.Context, url string) types.ModuleFormat {
	if f, ok := d.Cached(url); ok {
		return f
	}

	shared := context.WithoutCancel(ctx)
	ch := d.group.DoChan(url, func() (interface{}, error) {
		if f, ok := d.Cached(url); ok {
			return f, nil
		}
		f := d.detect(shared, url)
		d.cache.Store(url, f)
		d.metrics.RecordDetection(string(f))
		d.logger.Debug("Module format detected",
			zap.String("url", url),
			zap.String("format", f.String()))
		return f, nil
	})

	select {
	case res := <-ch:
		return res.Val.(types.ModuleFormat)
	case <-ctx.Done():
		return types.FormatUnknown
	}
}

// Cached returns a memoized result
func (d *Detector) Cached(url string) (types.ModuleFormat, bool) {
	v, ok := d.cache.Load(url)
	if !ok {
		return "", false
	}
	return v.(types.ModuleFormat), true
}

func (d *Detector) detect(ctx context.Context, url string) types.ModuleFormat {
	body, status, err := d.fetch(ctx, url, true)
	if err != nil {
		d.logger.Debug("Partial probe failed", zap.String("url", url), zap.Error(err))
		return types.FormatUnknown
	}

	switch {
	case status == http.StatusPartialContent:
		if isHTML(body) {
			return types.FormatUnknown
		}
		if f := ClassifyPrefix(string(body)); f != types.FormatUnknown {
			return f
		}
		full, status, err := d.fetch(ctx, url, false)
		if err != nil || !success(status) {
			d.logger.Debug("Full-body fetch failed",
				zap.String("url", url),
				zap.Int("status", status),
				zap.Error(err))
			return types.FormatUnknown
		}
		return classify(full)
	case success(status):
		// range ignored: the body is already complete
		return classify(body)
	default:
		return types.FormatUnknown
	}
}

func (d *Detector) fetch(ctx context.Context, url string, partial bool) ([]byte, int, error) {
	timeout := d.full
	if partial {
		timeout = d.partial
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	target := url
	if d.env.IsLocal() {
		target = utils.WithQuery(url, "t", strconv.FormatInt(d.clock.Now().UnixMilli(), 10))
	}

	req, err := d.http.Request(ctx, target)
	if err != nil {
		return nil, 0, err
	}
	if partial {
		req.SetHeader("Range", fmt.Sprintf("bytes=0-%d", PrefixSize-1))
	}
	resp, err := d.http.Do(target, func() (*resty.Response, error) {
		return req.Get(target)
	})
	if err != nil {
		return nil, 0, err
	}
	return resp.Body(), resp.StatusCode(), nil
}

func classify(body []byte) types.ModuleFormat {
	if isHTML(body) {
		return types.FormatUnknown
	}
	return ClassifyFull(string(body))
}

// dev servers answer unknown paths with their SPA index page
func isHTML(body []byte) bool {
	return mimetype.Detect(body).Is("text/html")
}

func success(status int) bool {
	return status >= 200 && status < 300
}
