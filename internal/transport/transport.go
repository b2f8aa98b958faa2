// Package transport is the async HTTP JSON request/response primitive
// consumed only by provider adapters. It owns retry/timeout policy;
// translators never see it and never perform I/O themselves.
package transport

import (
	"bytes"
	"context"
	"errors"
	"io"
	"math/rand"
	"net/http"
	"time"

	"github.com/llmbridge/llmbridge/internal/bridgeerrors"
	"github.com/llmbridge/llmbridge/internal/canon"
)

// RetryPolicy bounds how many times a failed call is retried and how the
// delay between attempts grows. A zero-value RetryPolicy makes every call
// only once.
type RetryPolicy struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
}

// DefaultRetryPolicy matches common provider-SDK defaults: a handful of
// retries with capped exponential backoff.
var DefaultRetryPolicy = RetryPolicy{
	MaxRetries: 3,
	BaseDelay:  250 * time.Millisecond,
	MaxDelay:   4 * time.Second,
}

// Request is one outbound HTTP JSON call.
type Request struct {
	Method   string
	URL      string
	Headers  map[string]string
	Body     []byte
	Provider canon.ProviderID
}

// Response is a successfully-received HTTP response (any status code); the
// caller (an adapter) interprets non-2xx bodies itself since provider error
// envelopes vary.
type Response struct {
	StatusCode int
	Body       []byte
	Header     http.Header
}

// Client performs retried, timed-out HTTP JSON calls.
type Client struct {
	httpClient *http.Client
	retry      RetryPolicy
	timeout    time.Duration
}

// New builds a Client. A nil httpClient uses http.DefaultClient.
func New(httpClient *http.Client, timeout time.Duration, retry RetryPolicy) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{httpClient: httpClient, retry: retry, timeout: timeout}
}

// Do executes req, retrying idempotent failure kinds (connection errors,
// 5xx, 429) up to the configured policy. The final classified error
// surfaces unchanged; cancellation of ctx aborts the in-flight call.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	var lastErr error

	for attempt := 0; attempt <= c.retry.MaxRetries; attempt++ {
		if attempt > 0 {
			if err := c.wait(ctx, attempt); err != nil {
				return nil, err
			}
		}

		resp, err := c.doOnce(ctx, req)
		if err == nil {
			if !shouldRetryStatus(resp.StatusCode) || attempt == c.retry.MaxRetries {
				return resp, nil
			}
			lastErr = &bridgeerrors.ProviderProtocolError{
				Provider: req.Provider,
				Status:   intPtr(resp.StatusCode),
				Message:  "transient provider status",
			}
			continue
		}

		var transportErr *bridgeerrors.TransportError
		if errors.As(err, &transportErr) && transportErr.Kind == bridgeerrors.TransportCancelled {
			return nil, err
		}
		lastErr = err
		if !isRetryableErr(err) || attempt == c.retry.MaxRetries {
			return nil, err
		}
	}

	return nil, lastErr
}

func (c *Client) doOnce(ctx context.Context, req Request) (*Response, error) {
	callCtx := ctx
	var cancel context.CancelFunc
	if c.timeout > 0 {
		callCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	httpReq, err := http.NewRequestWithContext(callCtx, req.Method, req.URL, bytes.NewReader(req.Body))
	if err != nil {
		return nil, &bridgeerrors.TransportError{
			Kind:     bridgeerrors.TransportIO,
			Provider: req.Provider,
			Message:  "build request: " + err.Error(),
			Err:      err,
		}
	}
	for key, value := range req.Headers {
		httpReq.Header.Set(key, value)
	}

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, classifyDoErr(req.Provider, callCtx, err)
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, &bridgeerrors.TransportError{
			Kind:     bridgeerrors.TransportIO,
			Provider: req.Provider,
			Message:  "read response body: " + err.Error(),
			Err:      err,
		}
	}

	return &Response{StatusCode: httpResp.StatusCode, Body: body, Header: httpResp.Header.Clone()}, nil
}

func (c *Client) wait(ctx context.Context, attempt int) error {
	delay := c.retry.BaseDelay << uint(attempt-1)
	if c.retry.MaxDelay > 0 && delay > c.retry.MaxDelay {
		delay = c.retry.MaxDelay
	}
	if delay <= 0 {
		return nil
	}
	jitter := time.Duration(rand.Int63n(int64(delay) / 4 + 1))
	timer := time.NewTimer(delay + jitter)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return &bridgeerrors.TransportError{
			Kind:    bridgeerrors.TransportCancelled,
			Message: "cancelled while waiting to retry",
			Err:     ctx.Err(),
		}
	case <-timer.C:
		return nil
	}
}

func classifyDoErr(provider canon.ProviderID, ctx context.Context, err error) error {
	if ctx.Err() != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			return &bridgeerrors.TransportError{Kind: bridgeerrors.TransportCancelled, Provider: provider, Message: "request cancelled", Err: err}
		}
		return &bridgeerrors.TransportError{Kind: bridgeerrors.TransportTimeout, Provider: provider, Message: "request timed out", Err: err}
	}
	return &bridgeerrors.TransportError{Kind: bridgeerrors.TransportConnect, Provider: provider, Message: "connection failed: " + err.Error(), Err: err}
}

func isRetryableErr(err error) bool {
	var transportErr *bridgeerrors.TransportError
	if errors.As(err, &transportErr) {
		return transportErr.Kind == bridgeerrors.TransportConnect
	}
	var protocolErr *bridgeerrors.ProviderProtocolError
	if errors.As(err, &protocolErr) {
		return protocolErr.Status != nil && shouldRetryStatus(*protocolErr.Status)
	}
	return false
}

func shouldRetryStatus(status int) bool {
	return status == http.StatusTooManyRequests || status >= 500
}

func intPtr(v int) *int { return &v }
