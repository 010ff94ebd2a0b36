package toggle

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/shell/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/AgentOS/shell/internal/providers/http/client"
	"github.com/GriffinCanCode/AgentOS/shell/internal/shared/types"
	"github.com/GriffinCanCode/AgentOS/shell/internal/shared/utils"
)

// ErrStatus is returned for a non-2xx toggle endpoint response
var ErrStatus = errors.New("toggle endpoint returned non-2xx status")

// Client talks to the remote toggle endpoint
type Client struct {
	url     string
	http    *client.Client
	timeout time.Duration
	metrics *monitoring.Metrics
	logger  *zap.Logger
}

// ClientOptions configures a remote toggle client
type ClientOptions struct {
	URL     string
	HTTP    *client.Client
	Timeout time.Duration
	Metrics *monitoring.Metrics
	Logger  *zap.Logger
}

// NewClient creates a remote toggle client
func NewClient(opts ClientOptions) *Client {
	if opts.HTTP == nil {
		opts.HTTP = client.New(client.Options{Name: "toggle", Logger: opts.Logger})
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Client{
		url:     opts.URL,
		http:    opts.HTTP,
		timeout: opts.Timeout,
		metrics: opts.Metrics,
		logger:  opts.Logger,
	}
}

// URL returns the endpoint address
func (c *Client) URL() string {
	return c.url
}

// Fetch reads the remote state. Transport failures and non-2xx responses
// return Empty with a nil raw payload and an error; a 2xx body is always
// returned as raw, and a malformed one decodes to Empty.
func (c *Client) Fetch(ctx context.Context) (types.ToggleState, []byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := c.http.Request(ctx, c.url)
	if err != nil {
		c.metrics.RecordToggleCall("fetch", "rejected")
		return Empty(), nil, err
	}
	requestID := uuid.NewString()
	resp, err := c.http.Do(c.url, func() (*resty.Response, error) {
		return req.
			SetHeader("Accept", "application/json").
			SetHeader("X-Request-ID", requestID).
			Get(c.url)
	})
	if err != nil {
		c.metrics.RecordToggleCall("fetch", "error")
		c.logger.Debug("Toggle fetch failed",
			zap.String("url", c.url),
			zap.String("request_id", requestID),
			zap.Error(err))
		return Empty(), nil, fmt.Errorf("fetch toggle state: %w", err)
	}
	if resp.StatusCode() < http.StatusOK || resp.StatusCode() >= http.StatusMultipleChoices {
		c.metrics.RecordToggleCall("fetch", "status")
		return Empty(), nil, fmt.Errorf("%w: %d", ErrStatus, resp.StatusCode())
	}

	raw := resp.Body()
	if err := utils.ValidateSize(raw, utils.MaxTogglePayloadSize); err != nil {
		c.metrics.RecordToggleCall("fetch", "oversized")
		c.logger.Warn("Toggle payload discarded", zap.Error(err))
		return Empty(), raw, nil
	}
	c.metrics.RecordToggleCall("fetch", "success")
	return Decode(raw), raw, nil
}

// Save persists state at the remote endpoint
func (c *Client) Save(ctx context.Context, state types.ToggleState) error {
	body, err := Encode(state)
	if err != nil {
		return fmt.Errorf("encode toggle state: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := c.http.Request(ctx, c.url)
	if err != nil {
		c.metrics.RecordToggleCall("save", "rejected")
		return err
	}
	resp, err := c.http.Do(c.url, func() (*resty.Response, error) {
		return req.
			SetHeader("Content-Type", "application/json").
			SetHeader("X-Request-ID", uuid.NewString()).
			SetBody(body).
			Post(c.url)
	})
	if err != nil {
		c.metrics.RecordToggleCall("save", "error")
		return fmt.Errorf("save toggle state: %w", err)
	}
	if resp.StatusCode() < http.StatusOK || resp.StatusCode() >= http.StatusMultipleChoices {
		c.metrics.RecordToggleCall("save", "status")
		return fmt.Errorf("%w: %d", ErrStatus, resp.StatusCode())
	}
	c.metrics.RecordToggleCall("save", "success")
	return nil
}
