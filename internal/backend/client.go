// Package backend implements the authenticated request/response core against
// the remote music service: credential headers, per-call correlation ids,
// bounded timeouts, transient-failure retry, and error classification. All
// authorization, quota, and ownership checks live on the backend side; this
// package only makes well-formed calls and relays what comes back.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/musehub/musehub/internal/telemetry"
)

const (
	defaultTimeout    = 30 * time.Second
	defaultMaxRetries = 2

	backoffBase = 500 * time.Millisecond
	backoffMax  = 5 * time.Second

	retryAfterFallback = 5 * time.Second
	retryAfterMax      = 30 * time.Second
)

// Config carries the immutable client identity. The privileged ServiceKey is
// only ever placed in the Authorization header of server-to-server calls.
type Config struct {
	BaseURL    string
	PublicKey  string
	ServiceKey string
	ClientID   string
	AgentID    string

	Timeout    time.Duration
	MaxRetries int

	// IdentitySources overrides the default agent-identity resolution chain
	// (context value, then MUSEHUB_AGENT_ID, then the static AgentID).
	IdentitySources []IdentitySource
}

type Client struct {
	baseURL    string
	publicKey  string
	serviceKey string
	clientID   string

	timeout    time.Duration
	maxRetries int
	sources    []IdentitySource

	httpClient *http.Client

	// Overridable in tests to keep retry tests fast.
	backoffBase time.Duration
}

func NewClient(cfg Config) (*Client, error) {
	parsed, err := url.Parse(cfg.BaseURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("invalid backend base URL %q", cfg.BaseURL)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}

	sources := cfg.IdentitySources
	if sources == nil {
		sources = []IdentitySource{
			ContextSource(),
			EnvSource("MUSEHUB_AGENT_ID"),
			StaticSource(cfg.AgentID),
		}
	}

	return &Client{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		publicKey:   cfg.PublicKey,
		serviceKey:  cfg.ServiceKey,
		clientID:    cfg.ClientID,
		timeout:     timeout,
		maxRetries:  maxRetries,
		sources:     sources,
		httpClient:  &http.Client{},
		backoffBase: backoffBase,
	}, nil
}

// CallOptions tunes a single call. Zero values fall back to client defaults.
type CallOptions struct {
	Method     string
	Timeout    time.Duration
	MaxRetries int

	// AgentID is an explicit per-call identity override. It beats every
	// ambient identity source.
	AgentID string

	Query   url.Values
	Headers map[string]string
}

// Call performs an authenticated request against target (a path under the
// base endpoint) and returns the raw response body. A 2xx response with an
// empty body yields a nil RawMessage, which callers treat as a deliberately
// empty result. Every failure returns a *Error.
//
// The header set, including the correlation id, is built once per call and
// reused across retry attempts so the backend can tie retries together.
func (c *Client) Call(ctx context.Context, target string, body any, opts CallOptions) (json.RawMessage, error) {
	method := opts.Method
	if method == "" {
		method = http.MethodPost
	}
	maxRetries := c.maxRetries
	if opts.MaxRetries > 0 {
		maxRetries = opts.MaxRetries
	}
	timeout := c.timeout
	if opts.Timeout > 0 {
		timeout = opts.Timeout
	}

	callURL := c.baseURL + target
	if len(opts.Query) > 0 {
		callURL += "?" + opts.Query.Encode()
	}

	var payload []byte
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, Wrap(fmt.Errorf("marshal request body: %w", err))
		}
		payload = b
	}

	correlationID := uuid.New().String()
	headers := map[string]string{
		"Content-Type": "application/json",
		"apikey":       c.publicKey,
		"X-Client-Id":  c.clientID,
		"X-Request-Id": correlationID,
	}
	if c.serviceKey != "" {
		headers["Authorization"] = "Bearer " + c.serviceKey
	}
	if agentID := resolveIdentity(ctx, opts.AgentID, c.sources); agentID != "" {
		headers["X-Agent-Id"] = agentID
	}
	for k, v := range opts.Headers {
		headers[k] = v
	}

	maxAttempts := maxRetries + 1
	var lastErr *Error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		raw, callErr := c.attempt(ctx, method, callURL, target, payload, headers, timeout, correlationID)
		if callErr == nil {
			return raw, nil
		}
		lastErr = callErr

		if ctx.Err() != nil {
			return nil, lastErr
		}
		if !retryable(callErr) || attempt == maxAttempts {
			return nil, lastErr
		}

		telemetry.IncBackendRetry(target)
		if !c.sleepBeforeRetry(ctx, attempt, callErr) {
			return nil, lastErr
		}
	}
	return nil, lastErr
}

func (c *Client) attempt(ctx context.Context, method, callURL, target string, payload []byte, headers map[string]string, timeout time.Duration, correlationID string) (json.RawMessage, *Error) {
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var bodyReader io.Reader
	if payload != nil {
		bodyReader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(attemptCtx, method, callURL, bodyReader)
	if err != nil {
		return nil, Wrap(fmt.Errorf("build request: %w", err))
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		msg := "request to music service failed: " + err.Error()
		if errors.Is(err, context.DeadlineExceeded) {
			msg = fmt.Sprintf("request to music service timed out after %s", timeout)
		}
		telemetry.IncBackendAPIError(target, 0)
		return nil, &Error{
			Message:       msg,
			Status:        http.StatusServiceUnavailable,
			Code:          CodeNetworkError,
			CorrelationID: correlationID,
		}
	}
	defer resp.Body.Close()

	raw, readErr := io.ReadAll(resp.Body)
	if readErr != nil {
		telemetry.IncBackendAPIError(target, 0)
		return nil, &Error{
			Message:       "read response from music service: " + readErr.Error(),
			Status:        http.StatusServiceUnavailable,
			Code:          CodeNetworkError,
			CorrelationID: correlationID,
		}
	}

	if resp.StatusCode >= 200 && resp.StatusCode <= 299 {
		if len(bytes.TrimSpace(raw)) == 0 {
			return nil, nil
		}
		return json.RawMessage(raw), nil
	}

	telemetry.IncBackendAPIError(target, resp.StatusCode)
	classified := classifyResponse(resp.StatusCode, raw, correlationID)
	classified.retryAfter, classified.retryAfterSet = retryAfterDuration(resp)
	return nil, classified
}

// errorBody is the backend's error payload shape.
type errorBody struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	ErrorID string `json:"errorId,omitempty"`
}

func classifyResponse(status int, raw []byte, correlationID string) *Error {
	var parsed errorBody
	if err := json.Unmarshal(raw, &parsed); err == nil && parsed.Error != "" {
		id := parsed.ErrorID
		if id == "" {
			id = correlationID
		}
		return &Error{Message: parsed.Error, Status: status, Code: parsed.Code, CorrelationID: id}
	}

	msg := strings.TrimSpace(string(raw))
	if msg == "" {
		msg = http.StatusText(status)
	}
	return &Error{Message: msg, Status: status, Code: CodeUnknownError, CorrelationID: correlationID}
}

// retryAfterDuration parses the Retry-After header, reporting whether the
// backend declared one at all. A declared zero (or a date in the past) means
// "retry immediately" and is distinct from an absent or unparseable header.
func retryAfterDuration(resp *http.Response) (time.Duration, bool) {
	v := resp.Header.Get("Retry-After")
	if v == "" {
		return 0, false
	}
	if secs, err := strconv.Atoi(v); err == nil {
		if secs < 0 {
			return 0, true
		}
		return time.Duration(secs) * time.Second, true
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := time.Until(t); d > 0 {
			return d, true
		}
		return 0, true
	}
	return 0, false
}

// retryWait computes the interval before the next attempt: the
// backend-declared Retry-After (clamped) for rate limiting, the fallback when
// the backend declared none, exponential backoff with jitter for everything
// else.
func (c *Client) retryWait(attempt int, failure *Error) time.Duration {
	if failure.IsRateLimited() {
		if !failure.retryAfterSet {
			return retryAfterFallback
		}
		if failure.retryAfter > retryAfterMax {
			return retryAfterMax
		}
		return failure.retryAfter
	}

	wait := c.backoffBase * time.Duration(1<<(attempt-1))
	if wait > backoffMax {
		wait = backoffMax
	}
	return wait + time.Duration(rand.Intn(100))*time.Millisecond
}

// sleepBeforeRetry waits out retryWait. Returns false if the context ends
// first.
func (c *Client) sleepBeforeRetry(ctx context.Context, attempt int, failure *Error) bool {
	t := time.NewTimer(c.retryWait(attempt, failure))
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
