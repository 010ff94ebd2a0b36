package client

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

var (
	// ErrCircuitOpen is returned while a host's breaker is open
	ErrCircuitOpen = gobreaker.ErrOpenState

	// ErrServerStatus marks a 5xx response; the response is still returned
	ErrServerStatus = errors.New("server error status")
)

// Options configures a Client
type Options struct {
	Name         string
	Timeout      time.Duration
	Retries      int
	RetryWait    time.Duration
	RetryMaxWait time.Duration
	RateLimit    float64 // requests per second, 0 = unlimited
	TripAfter    uint32  // consecutive failures before a host breaker opens
	OpenTimeout  time.Duration
	UserAgent    string
	Logger       *zap.Logger
}

// Client wraps resty with rate limiting and per-host circuit breakers
type Client struct {
	Resty   *resty.Client
	Limiter *rate.Limiter

	name        string
	tripAfter   uint32
	openTimeout time.Duration
	logger      *zap.Logger

	mu       sync.RWMutex
	breakers map[string]*gobreaker.CircuitBreaker
}

// New creates an HTTP client
func New(opts Options) *Client {
	if opts.Name == "" {
		opts.Name = "http"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.TripAfter == 0 {
		opts.TripAfter = 10
	}
	if opts.OpenTimeout <= 0 {
		opts.OpenTimeout = 30 * time.Second
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "mfe-shell/1.0"
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	// Pooled transport; retries are handled by resty so they respect ctx
	retryClient := retryablehttp.NewClient()
	retryClient.Logger = nil

	restyClient := resty.New()
	restyClient.
		SetTimeout(opts.Timeout).
		SetRetryCount(opts.Retries).
		SetHeader("User-Agent", opts.UserAgent).
		SetTransport(retryClient.HTTPClient.Transport)
	if opts.RetryWait > 0 {
		restyClient.SetRetryWaitTime(opts.RetryWait)
	}
	if opts.RetryMaxWait > 0 {
		restyClient.SetRetryMaxWaitTime(opts.RetryMaxWait)
	}

	c := &Client{
		Resty:       restyClient,
		Limiter:     rate.NewLimiter(rate.Inf, 0),
		name:        opts.Name,
		tripAfter:   opts.TripAfter,
		openTimeout: opts.OpenTimeout,
		logger:      opts.Logger,
		breakers:    make(map[string]*gobreaker.CircuitBreaker),
	}
	c.SetRateLimit(opts.RateLimit)
	return c
}

// SetHeader adds a default header
func (c *Client) SetHeader(key, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Resty.SetHeader(key, value)
}

// SetTimeout configures the whole-request timeout
func (c *Client) SetTimeout(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Resty.SetTimeout(d)
}

// SetRateLimit configures rate limiting (requests per second)
func (c *Client) SetRateLimit(rps float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if rps <= 0 {
		c.Limiter = rate.NewLimiter(rate.Inf, 0)
		return
	}
	burst := int(rps)
	if burst < 1 {
		burst = 1
	}
	c.Limiter = rate.NewLimiter(rate.Limit(rps), burst)
}

// Request creates a request bound to ctx after the breaker and limiter admit it
func (c *Client) Request(ctx context.Context, target string) (*resty.Request, error) {
	if c.breaker(target).State() == gobreaker.StateOpen {
		return nil, ErrCircuitOpen
	}

	c.mu.RLock()
	limiter := c.Limiter
	c.mu.RUnlock()
	if err := limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit error: %w", err)
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Resty.R().SetContext(ctx), nil
}

// Do runs fn under the breaker of target's host. A 5xx response is returned
// together with an error wrapping ErrServerStatus.
func (c *Client) Do(target string, fn func() (*resty.Response, error)) (*resty.Response, error) {
	result, err := c.breaker(target).Execute(func() (interface{}, error) {
		resp, err := fn()
		if err != nil {
			return resp, err
		}
		if resp.StatusCode() >= 500 {
			return resp, fmt.Errorf("%w: %d", ErrServerStatus, resp.StatusCode())
		}
		return resp, nil
	})

	resp, _ := result.(*resty.Response)
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, ErrCircuitOpen
	}
	return resp, err
}

// ErrStatus marks a non-2xx response to GetText
var ErrStatus = errors.New("unexpected status")

// GetText fetches target and returns its body. Non-2xx responses fail
// with ErrStatus.
func (c *Client) GetText(ctx context.Context, target string) (string, error) {
	req, err := c.Request(ctx, target)
	if err != nil {
		return "", err
	}
	resp, err := c.Do(target, func() (*resty.Response, error) {
		return req.Get(target)
	})
	if err != nil {
		return "", fmt.Errorf("get %s: %w", target, err)
	}
	if !resp.IsSuccess() {
		return "", fmt.Errorf("get %s: %w %d", target, ErrStatus, resp.StatusCode())
	}
	return resp.String(), nil
}

// BreakerState returns the breaker state for target's host
func (c *Client) BreakerState(target string) gobreaker.State {
	return c.breaker(target).State()
}

// BreakerCounts returns breaker statistics for target's host
func (c *Client) BreakerCounts(target string) gobreaker.Counts {
	return c.breaker(target).Counts()
}

func (c *Client) breaker(target string) *gobreaker.CircuitBreaker {
	host := hostOf(target)

	c.mu.RLock()
	cb, ok := c.breakers[host]
	c.mu.RUnlock()
	if ok {
		return cb
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if cb, ok := c.breakers[host]; ok {
		return cb
	}

	tripAfter := c.tripAfter
	logger := c.logger
	cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        c.name + ":" + host,
		MaxRequests: 1,
		Timeout:     c.openTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= tripAfter
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Info("Circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})
	c.breakers[host] = cb
	return cb
}

func hostOf(target string) string {
	u, err := url.Parse(target)
	if err != nil || u.Host == "" {
		return target
	}
	return u.Host
}
