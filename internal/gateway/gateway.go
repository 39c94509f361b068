// Package gateway performs JSON POSTs against the generative endpoint with
// bounded exponential backoff on HTTP 429 and transport failures, and checks
// that a successful body actually carries the field the caller needs.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"time"

	"commlink/internal/logging"
	"commlink/internal/types"
)

const (
	// DefaultMaxAttempts is the total number of requests per Call.
	DefaultMaxAttempts = 3

	baseDelay  = time.Second
	maxBackoff = 5 * time.Minute
	maxJitter  = time.Second

	// slowCallThreshold is when a Call, retries included, is logged as slow.
	slowCallThreshold = 10 * time.Second
)

// Expectation names the nested field a 2xx body must contain.
type Expectation int

const (
	ExpectNone Expectation = iota
	// ExpectCandidateText requires candidates[0].content.parts[*].text.
	ExpectCandidateText
	// ExpectInlineAudio requires candidates[0].content.parts[*].inlineData.data.
	ExpectInlineAudio
)

// StatusError is a non-2xx, non-429 response. It is never retried.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("API request failed with status %d: %s", e.Code, e.Body)
}

// Response is a successful call result.
type Response struct {
	StatusCode int
	Body       []byte
	// Generate is set when an expectation was requested.
	Generate *GenerateResponse
	Attempts int
}

// Sleeper waits for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// Gateway is safe for concurrent use.
type Gateway struct {
	httpClient *http.Client
	sleep      Sleeper
	jitter     func() time.Duration
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(g *Gateway) { g.httpClient = c }
}

// WithSleeper overrides how backoff intervals are waited out.
func WithSleeper(s Sleeper) Option {
	return func(g *Gateway) { g.sleep = s }
}

// WithJitter overrides the random component added to each backoff.
func WithJitter(f func() time.Duration) Option {
	return func(g *Gateway) { g.jitter = f }
}

// New creates a Gateway.
func New(opts ...Option) *Gateway {
	g := &Gateway{
		httpClient: &http.Client{Timeout: 60 * time.Second},
		sleep:      sleepContext,
		jitter:     func() time.Duration { return rand.N(maxJitter) },
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

type callOptions struct {
	maxAttempts int
	expect      Expectation
	headers     map[string]string
}

// CallOption configures a single Call.
type CallOption func(*callOptions)

// WithMaxAttempts sets the total number of requests (minimum 1).
func WithMaxAttempts(n int) CallOption {
	return func(o *callOptions) {
		if n > 0 {
			o.maxAttempts = n
		}
	}
}

// WithExpectation requires a structured field in the 2xx body.
func WithExpectation(e Expectation) CallOption {
	return func(o *callOptions) { o.expect = e }
}

// WithHeader adds a request header, e.g. the API key.
func WithHeader(key, value string) CallOption {
	return func(o *callOptions) { o.headers[key] = value }
}

// BackoffBounds returns the range the delay after a failed attempt falls in.
// attempt is 0-based; both bounds are non-decreasing in attempt and the
// lower bound never exceeds five minutes.
func BackoffBounds(attempt int) (lo, hi time.Duration) {
	if attempt < 0 {
		attempt = 0
	}
	lo = maxBackoff
	// 1s<<9 already passes the cap; larger shifts would overflow.
	if attempt < 9 {
		lo = min(baseDelay<<uint(attempt), maxBackoff)
	}
	return lo, lo + maxJitter
}

// Call POSTs payload as JSON to endpoint.
//
// HTTP 429 and transport failures are retried after 2^attempt seconds plus
// jitter until maxAttempts requests were made, then reported as
// types.ErrServiceUnavailable. Any other non-2xx status returns a *StatusError
// at once. A 2xx body missing the expected field is types.ErrMalformedResponse.
func (g *Gateway) Call(ctx context.Context, endpoint string, payload any, opts ...CallOption) (*Response, error) {
	o := callOptions{maxAttempts: DefaultMaxAttempts, headers: map[string]string{}}
	for _, opt := range opts {
		opt(&o)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	timer := logging.StartTimer(logging.CategoryAPI, "gateway call")
	defer timer.StopWithThreshold(slowCallThreshold)

	var lastErr error
	for attempt := 0; attempt < o.maxAttempts; attempt++ {
		status, respBody, err := g.do(ctx, endpoint, body, o.headers)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return nil, fmt.Errorf("call abandoned: %w", ctx.Err())
			}
			lastErr = fmt.Errorf("request failed: %w", err)
		case status == http.StatusTooManyRequests:
			lastErr = fmt.Errorf("rate limit exceeded (429)")
		case status < 200 || status > 299:
			logging.Get(logging.CategoryAPI).Warn("non-retryable status %d from %s", status, endpoint)
			return nil, &StatusError{Code: status, Body: string(respBody)}
		default:
			resp := &Response{StatusCode: status, Body: respBody, Attempts: attempt + 1}
			if err := check(resp, o.expect); err != nil {
				return nil, err
			}
			return resp, nil
		}

		if attempt+1 >= o.maxAttempts {
			break
		}
		floor, _ := BackoffBounds(attempt)
		delay := floor + g.jitter()
		logging.APIDebug("attempt %d/%d failed (%v), retrying in %v", attempt+1, o.maxAttempts, lastErr, delay)
		if err := g.sleep(ctx, delay); err != nil {
			return nil, fmt.Errorf("call abandoned during backoff: %w", err)
		}
	}

	logging.Get(logging.CategoryAPI).Error("max attempts (%d) exceeded for %s: %v", o.maxAttempts, endpoint, lastErr)
	return nil, fmt.Errorf("%w: %d attempts: %v", types.ErrServiceUnavailable, o.maxAttempts, lastErr)
}

func (g *Gateway) do(ctx context.Context, endpoint string, body []byte, headers map[string]string) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to read response: %w", err)
	}
	return resp.StatusCode, respBody, nil
}

func check(resp *Response, expect Expectation) error {
	if expect == ExpectNone {
		return nil
	}

	var gr GenerateResponse
	if err := json.Unmarshal(resp.Body, &gr); err != nil {
		return fmt.Errorf("%w: %v", types.ErrMalformedResponse, err)
	}
	resp.Generate = &gr

	switch expect {
	case ExpectCandidateText:
		if gr.Text() == "" {
			return fmt.Errorf("%w: no candidate text", types.ErrMalformedResponse)
		}
	case ExpectInlineAudio:
		if gr.InlineAudio() == nil {
			return fmt.Errorf("%w: no inline audio", types.ErrMalformedResponse)
		}
	default:
		return errors.New("unknown expectation")
	}
	return nil
}
