package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientDoReturnsResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "mfe-shell/1.0", r.Header.Get("User-Agent"))
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := New(Options{Timeout: time.Second})
	req, err := c.Request(context.Background(), srv.URL)
	require.NoError(t, err)

	resp, err := c.Do(srv.URL, func() (*resty.Response, error) { return req.Get(srv.URL) })
	require.NoError(t, err, "4xx is not a breaker failure")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode())
}

func TestClientServerErrorTripsBreaker(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := New(Options{Timeout: time.Second, TripAfter: 2})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		req, err := c.Request(ctx, srv.URL)
		require.NoError(t, err)
		resp, err := c.Do(srv.URL, func() (*resty.Response, error) { return req.Get(srv.URL) })
		assert.ErrorIs(t, err, ErrServerStatus)
		require.NotNil(t, resp)
		assert.Equal(t, http.StatusBadGateway, resp.StatusCode())
	}

	assert.Equal(t, gobreaker.StateOpen, c.BreakerState(srv.URL))

	_, err := c.Request(ctx, srv.URL)
	assert.ErrorIs(t, err, ErrCircuitOpen)

	_, err = c.Do(srv.URL, func() (*resty.Response, error) {
		t.Fatal("must not run while open")
		return nil, nil
	})
	assert.ErrorIs(t, err, ErrCircuitOpen)
}

func TestClientBreakersArePerHost(t *testing.T) {
	c := New(Options{TripAfter: 1})
	_, _ = c.Do("http://a.example/x.js", func() (*resty.Response, error) {
		return nil, errors.New("dial failed")
	})

	assert.Equal(t, gobreaker.StateOpen, c.BreakerState("http://a.example/y.js"))
	assert.Equal(t, gobreaker.StateClosed, c.BreakerState("http://b.example/x.js"))
	assert.Equal(t, uint32(0), c.BreakerCounts("http://b.example/x.js").Requests)
}

func TestClientRateLimitHonoursContext(t *testing.T) {
	c := New(Options{RateLimit: 1})
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := c.Request(ctx, "http://a.example/")
	require.NoError(t, err, "first request uses the burst")

	_, err = c.Request(ctx, "http://a.example/")
	assert.Error(t, err)
}

func TestClientGetText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing.js" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte("window.app = {};"))
	}))
	defer srv.Close()

	c := New(Options{Timeout: time.Second})

	src, err := c.GetText(context.Background(), srv.URL+"/app.js")
	require.NoError(t, err)
	assert.Equal(t, "window.app = {};", src)

	_, err = c.GetText(context.Background(), srv.URL+"/missing.js")
	assert.ErrorIs(t, err, ErrStatus)
}
