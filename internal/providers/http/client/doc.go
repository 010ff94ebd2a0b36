// Package client builds the shell's outbound HTTP client.
//
// Built on go-resty/resty over the pooled transport of
// hashicorp/go-retryablehttp, with:
//   - a sony/gobreaker circuit breaker per target host
//   - an optional token-bucket rate limiter (golang.org/x/time/rate)
//   - context-based cancellation on every request
//
// A 5xx response or a transport error counts as a breaker failure; any other
// status is a success from the breaker's point of view and is left to the
// caller to interpret.
//
// Example Usage:
//
//	c := client.New(client.Options{Name: "detect", Timeout: 3 * time.Second})
//	req, err := c.Request(ctx, url)
//	if err != nil {
//		return err
//	}
//	resp, err := c.Do(url, func() (*resty.Response, error) {
//		return req.SetHeader("Range", "bytes=0-8191").Get(url)
//	})
package client
