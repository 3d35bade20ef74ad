// Package upstream is the pooled HTTP client that talks to the Ollama
// backend (C5): connection reuse, transport-error retries, and a
// streaming-body abort handle the orchestrator can call to force-close an
// in-flight response.
package upstream

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Client wraps a pooled *http.Client aimed at one backend base URL.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
	maxRetries int
}

// Option configures a Client at construction time.
type Option func(*Client)

// WithMaxRetries bounds the number of transport-error retries. Default 2.
func WithMaxRetries(n int) Option {
	return func(c *Client) { c.maxRetries = n }
}

// WithDisableHTTP2 turns off HTTP/2 negotiation, for backends that don't
// speak it cleanly over the Ollama Unix/TCP transport.
func WithDisableHTTP2(disable bool) Option {
	return func(c *Client) {
		if disable {
			if t, ok := c.httpClient.Transport.(*http.Transport); ok {
				t.TLSNextProto = make(map[string]func(authority string, c *tls.Conn) http.RoundTripper)
				t.ForceAttemptHTTP2 = false
			}
		}
	}
}

// New builds a Client. requestTimeout bounds a single non-streaming
// request end-to-end; streaming callers pass their own context deadline.
func New(baseURL string, requestTimeout time.Duration, logger *zap.Logger, opts ...Option) *Client {
	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ResponseHeaderTimeout: requestTimeout,
		IdleConnTimeout:       90 * time.Second,
		MaxIdleConns:          64,
		MaxIdleConnsPerHost:   16,
		ForceAttemptHTTP2:     true,
		TLSClientConfig:       &tls.Config{MinVersion: tls.VersionTLS12},
	}

	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   requestTimeout,
		},
		logger:     logger,
		maxRetries: 2,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Do issues method against path (relative to baseURL), retrying on
// transport-level errors only — a non-2xx HTTP status is returned to the
// caller, never retried here.
func (c *Client) Do(ctx context.Context, method, path string, body io.Reader, headers map[string]string) (*http.Response, error) {
	var bodyBytes []byte
	if body != nil {
		b, err := io.ReadAll(body)
		if err != nil {
			return nil, fmt.Errorf("upstream: read request body: %w", err)
		}
		bodyBytes = b
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			if err := sleepBackoff(ctx, attempt); err != nil {
				return nil, err
			}
		}

		var reqBody io.Reader
		if bodyBytes != nil {
			reqBody = bytes.NewReader(bodyBytes)
		}

		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
		if err != nil {
			return nil, fmt.Errorf("upstream: build request: %w", err)
		}
		for k, v := range headers {
			req.Header.Set(k, v)
		}

		resp, err := c.httpClient.Do(req)
		if err == nil {
			return resp, nil
		}

		lastErr = err
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		c.logger.Debug("upstream: transport error, retrying", zap.Int("attempt", attempt), zap.Error(err))
	}
	return nil, fmt.Errorf("upstream: request failed after %d attempts: %w", c.maxRetries+1, lastErr)
}

// StreamRequest issues a streaming request and returns the response plus an
// abort handle. Calling abort cancels the request context, force-closing
// the response body; the streaming guard calls it when it decides to stop
// the upstream early.
func (c *Client) StreamRequest(ctx context.Context, method, path string, body io.Reader, headers map[string]string) (*http.Response, context.CancelFunc, error) {
	streamCtx, cancel := context.WithCancel(ctx)

	req, err := http.NewRequestWithContext(streamCtx, method, c.baseURL+path, body)
	if err != nil {
		cancel()
		return nil, nil, fmt.Errorf("upstream: build stream request: %w", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		cancel()
		return nil, nil, err
	}
	return resp, cancel, nil
}
