package sonar

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/teilomillet/reprompt/circuitbreaker"
	"github.com/teilomillet/reprompt/errors"
	"github.com/teilomillet/reprompt/metrics"
)

const (
	// DefaultBaseURL is the public Sonar API root.
	DefaultBaseURL = "https://api.perplexity.ai"

	// DefaultTimeout bounds a single completion call.
	DefaultTimeout = 60 * time.Second

	// DefaultModel is sent when a request names no model.
	DefaultModel = "sonar"

	completionsPath = "/chat/completions"
)

// APIError is returned for a non-2xx response. Its message is exactly the
// response body.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return e.Body
}

// Completer is the part of the client the orchestrator depends on.
type Completer interface {
	ChatCompletions(ctx context.Context, req *ChatRequest) (*ChatResponse, error)
}

// Verify at compile time that Client implements Completer
var _ Completer = (*Client)(nil)

// Client calls the chat completions endpoint.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	timeout    time.Duration
	breaker    *circuitbreaker.CircuitBreaker
	metrics    *metrics.Metrics
	logger     *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the API root.
func WithBaseURL(u string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(u, "/")
	}
}

// WithHTTPClient sets the HTTP client used for requests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithTimeout sets the per-call timeout. Non-positive values are ignored.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithCircuitBreaker guards every call with cb.
func WithCircuitBreaker(cb *circuitbreaker.CircuitBreaker) Option {
	return func(c *Client) {
		c.breaker = cb
	}
}

// WithMetrics records call counts and durations.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewClient creates a client authenticating with apiKey.
func NewClient(apiKey string, opts ...Option) *Client {
	c := &Client{
		apiKey:     apiKey,
		baseURL:    DefaultBaseURL,
		httpClient: http.DefaultClient,
		timeout:    DefaultTimeout,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Timeout returns the per-call timeout.
func (c *Client) Timeout() time.Duration {
	return c.timeout
}

// ChatCompletions sends req and decodes the response.
//
// When the client's own deadline fires the returned error is a timeout error
// carrying errors.TimeoutMarker; cancellation of ctx returns ctx's error. A
// non-2xx status returns *APIError. Transport errors are returned unmodified.
func (c *Client) ChatCompletions(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	if req == nil {
		return nil, errors.NewValidationError("", "invalid chat request", map[string]interface{}{"request": "required"})
	}

	body := *req
	if body.Model == "" {
		body.Model = DefaultModel
	}
	if err := body.Validate(); err != nil {
		return nil, err
	}

	payload, err := json.Marshal(&body)
	if err != nil {
		return nil, fmt.Errorf("encode chat request: %w", err)
	}

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	var resp *ChatResponse
	var callErr error
	call := func() error {
		resp, callErr = c.do(callCtx, payload)
		if countsAsFailure(callErr, ctx) {
			return callErr
		}
		return nil
	}

	if c.breaker != nil {
		if err := c.breaker.Execute(call); stderrors.Is(err, circuitbreaker.ErrCircuitOpen) {
			c.metrics.ObserveAPICall(body.Model, "circuit_open", time.Since(start))
			return nil, errors.NewProviderError("", "the completion API is unavailable, try again shortly", err)
		}
	} else {
		_ = call()
	}

	elapsed := time.Since(start)
	if callErr != nil {
		switch {
		case ctx.Err() != nil:
			c.metrics.ObserveAPICall(body.Model, "canceled", elapsed)
			return nil, ctx.Err()
		case stderrors.Is(callCtx.Err(), context.DeadlineExceeded):
			c.metrics.ObserveAPICall(body.Model, "timeout", elapsed)
			c.logger.Warn("Completion call timed out",
				zap.String("model", body.Model),
				zap.Duration("timeout", c.timeout),
			)
			return nil, errors.NewTimeoutError(c.timeout, callErr)
		}

		status := "error"
		var apiErr *APIError
		if stderrors.As(callErr, &apiErr) {
			status = strconv.Itoa(apiErr.StatusCode)
		}
		c.metrics.ObserveAPICall(body.Model, status, elapsed)
		c.logger.Debug("Completion call failed",
			zap.String("model", body.Model),
			zap.String("status", status),
			zap.Error(callErr),
		)
		return nil, callErr
	}

	c.metrics.ObserveAPICall(body.Model, "200", elapsed)
	c.logger.Debug("Completion call succeeded",
		zap.String("model", body.Model),
		zap.Duration("elapsed", elapsed),
		zap.Int("choices", len(resp.Choices)),
	)
	return resp, nil
}

func (c *Client) do(ctx context.Context, payload []byte) (*ChatResponse, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+completionsPath, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	data, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, err
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		return nil, &APIError{StatusCode: httpResp.StatusCode, Body: string(data)}
	}

	var out ChatResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decode chat response: %w", err)
	}
	return &out, nil
}

// countsAsFailure reports whether err should count against the circuit
// breaker. Client errors and caller cancellation say nothing about the
// health of the API.
func countsAsFailure(err error, parent context.Context) bool {
	if err == nil || parent.Err() != nil {
		return false
	}
	var apiErr *APIError
	if stderrors.As(err, &apiErr) {
		return apiErr.StatusCode >= 500 || apiErr.StatusCode == http.StatusTooManyRequests
	}
	return true
}
