package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/climate-tracker/internal/circuitbreaker"
	"github.com/kjstillabower/climate-tracker/internal/observability"
)

// ErrMissingAPIKey is returned when a provider key is not configured. It is a
// server configuration fault, not an upstream failure.
var ErrMissingAPIKey = errors.New("API key not configured")

// maxErrorBody bounds how much of a failed response is read for its message.
const maxErrorBody = 64 << 10

// UpstreamError is any failed call to a third-party API: a non-2xx response,
// a transport failure, a timeout, or an open circuit.
type UpstreamError struct {
	Provider string
	// URL is the request URL without query parameters, so keys never leak into logs.
	URL string
	// StatusCode is the upstream HTTP status, or 0 when no response was received.
	StatusCode int
	// Message is the upstream body's "message" field, when it had one.
	Message string
	Err     error
}

func (e *UpstreamError) Error() string {
	switch {
	case e.StatusCode != 0 && e.Message != "":
		return fmt.Sprintf("%s: %s returned %d: %s", e.Provider, e.URL, e.StatusCode, e.Message)
	case e.StatusCode != 0:
		return fmt.Sprintf("%s: %s returned %d", e.Provider, e.URL, e.StatusCode)
	case e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Provider, e.URL, e.Err)
	default:
		return fmt.Sprintf("%s: %s failed", e.Provider, e.URL)
	}
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// NotFound reports whether the upstream answered 404.
func (e *UpstreamError) NotFound() bool { return e.StatusCode == http.StatusNotFound }

// IsUpstreamError reports whether err is or wraps an *UpstreamError, returning it.
func IsUpstreamError(err error) (*UpstreamError, bool) {
	var ue *UpstreamError
	if errors.As(err, &ue) {
		return ue, true
	}
	return nil, false
}

// Options configures an Upstream.
type Options struct {
	// Timeout bounds every call made through the shared client.
	Timeout        time.Duration
	RetryAttempts  int
	RetryBaseDelay time.Duration
	RetryMaxDelay  time.Duration

	CircuitBreakerEnabled bool
	CircuitBreaker        circuitbreaker.Config

	Logger *zap.Logger
}

// Upstream is the single outbound HTTP client shared by every provider.
type Upstream struct {
	client         *http.Client
	retryAttempts  int
	retryBaseDelay time.Duration
	retryMaxDelay  time.Duration
	breakers       map[string]*circuitbreaker.CircuitBreaker
	breakerCfg     *circuitbreaker.Config
	logger         *zap.Logger
}

// NewHTTPClient returns an http.Client with the given timeout that dials IPv4 only.
func NewHTTPClient(timeout time.Duration) *http.Client {
	dialer := &net.Dialer{Timeout: 5 * time.Second, KeepAlive: 30 * time.Second}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = func(ctx context.Context, _, addr string) (net.Conn, error) {
		return dialer.DialContext(ctx, "tcp4", addr)
	}
	return &http.Client{Timeout: timeout, Transport: transport}
}

// NewUpstream builds the shared client. Providers get their own circuit
// breaker, created on first use.
func NewUpstream(opts Options) *Upstream {
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	if opts.RetryAttempts <= 0 {
		opts.RetryAttempts = 1
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	u := &Upstream{
		client:         NewHTTPClient(opts.Timeout),
		retryAttempts:  opts.RetryAttempts,
		retryBaseDelay: opts.RetryBaseDelay,
		retryMaxDelay:  opts.RetryMaxDelay,
		breakers:       make(map[string]*circuitbreaker.CircuitBreaker),
		logger:         opts.Logger,
	}
	if opts.CircuitBreakerEnabled {
		cfg := opts.CircuitBreaker
		u.breakerCfg = &cfg
	}
	return u
}

// RegisterProvider creates the circuit breaker for provider up front so its
// state gauge is exported before the first call. Call before serving traffic.
func (u *Upstream) RegisterProvider(provider string) {
	if u.breakerCfg == nil {
		return
	}
	if _, ok := u.breakers[provider]; ok {
		return
	}
	cfg := *u.breakerCfg
	cfg.Component = provider
	cfg.IsFailure = countsAgainstCircuit
	onChange := u.breakerCfg.OnStateChange
	cfg.OnStateChange = func(from, to circuitbreaker.State) {
		observability.CircuitBreakerState.WithLabelValues(provider).Set(to.Gauge())
		observability.RecordCircuitBreakerTransition(provider, from.String(), to.String())
		u.logger.Warn("circuit breaker state change", zap.String("provider", provider), zap.String("from", from.String()), zap.String("to", to.String()))
		if onChange != nil {
			onChange(from, to)
		}
	}
	u.breakers[provider] = circuitbreaker.New(cfg)
	observability.CircuitBreakerState.WithLabelValues(provider).Set(circuitbreaker.StateClosed.Gauge())
}

// countsAgainstCircuit treats 5xx, 429 and transport failures as provider
// faults; other 4xx answers mean the provider is healthy.
func countsAgainstCircuit(err error) bool {
	ue, ok := IsUpstreamError(err)
	if !ok {
		return true
	}
	return ue.StatusCode == 0 || ue.StatusCode == http.StatusTooManyRequests || ue.StatusCode >= 500
}

// GetJSON performs a GET and decodes a 2xx JSON body into out.
func (u *Upstream) GetJSON(ctx context.Context, provider, rawURL string, params url.Values, out any) error {
	body, err := u.get(ctx, provider, rawURL, params, 0)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &UpstreamError{Provider: provider, URL: rawURL, Err: fmt.Errorf("parse response: %w", err)}
	}
	return nil
}

// GetBytes performs a GET and returns the raw 2xx body. A positive timeout
// tightens the shared client timeout for this call.
func (u *Upstream) GetBytes(ctx context.Context, provider, rawURL string, params url.Values, timeout time.Duration) ([]byte, error) {
	return u.get(ctx, provider, rawURL, params, timeout)
}

func (u *Upstream) get(ctx context.Context, provider, rawURL string, params url.Values, timeout time.Duration) ([]byte, error) {
	breaker := u.breakers[provider]

	var lastErr error
	for attempt := 0; attempt < u.retryAttempts; attempt++ {
		if attempt > 0 {
			observability.UpstreamRetriesTotal.WithLabelValues(provider).Inc()
			select {
			case <-ctx.Done():
				return nil, &UpstreamError{Provider: provider, URL: rawURL, Err: ctx.Err()}
			case <-time.After(u.calculateBackoff(attempt)):
			}
		}

		var body []byte
		call := func() error {
			var err error
			body, err = u.callOnce(ctx, provider, rawURL, params, timeout)
			return err
		}
		var err error
		if breaker != nil {
			err = breaker.Call(ctx, call)
			if errors.Is(err, circuitbreaker.ErrOpen) {
				observability.UpstreamCallsTotal.WithLabelValues(provider, "circuit_open").Inc()
				return nil, &UpstreamError{Provider: provider, URL: rawURL, Err: err}
			}
		} else {
			err = call()
		}
		if err == nil {
			return body, nil
		}

		lastErr = err
		if !isRetryable(ctx, err) {
			break
		}
	}
	if _, ok := IsUpstreamError(lastErr); ok {
		return nil, lastErr
	}
	return nil, &UpstreamError{Provider: provider, URL: rawURL, Err: lastErr}
}

func (u *Upstream) callOnce(ctx context.Context, provider, rawURL string, params url.Values, timeout time.Duration) ([]byte, error) {
	start := time.Now()
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	req, err := buildRequest(ctx, rawURL, params)
	if err != nil {
		return nil, &UpstreamError{Provider: provider, URL: rawURL, Err: err}
	}

	resp, err := u.client.Do(req)
	if err != nil {
		observe(provider, "error", start)
		return nil, &UpstreamError{Provider: provider, URL: rawURL, Err: fmt.Errorf("http request failed: %w", err)}
	}
	defer resp.Body.Close()
	observe(provider, statusLabel(resp.StatusCode), start)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &UpstreamError{
			Provider:   provider,
			URL:        rawURL,
			StatusCode: resp.StatusCode,
			Message:    extractMessage(raw),
		}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &UpstreamError{Provider: provider, URL: rawURL, Err: fmt.Errorf("read response body: %w", err)}
	}
	return body, nil
}

func observe(provider, status string, start time.Time) {
	observability.UpstreamCallsTotal.WithLabelValues(provider, status).Inc()
	observability.UpstreamDuration.WithLabelValues(provider, status).Observe(time.Since(start).Seconds())
}

func buildRequest(ctx context.Context, rawURL string, params url.Values) (*http.Request, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid API URL: %w", err)
	}
	if len(params) > 0 {
		u.RawQuery = params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if id := observability.CorrelationID(ctx); id != "" {
		req.Header.Set("X-Correlation-ID", id)
	}
	return req, nil
}

// extractMessage returns the "message" field of a JSON error body, or "".
func extractMessage(body []byte) string {
	var payload struct {
		Message any `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	if s, ok := payload.Message.(string); ok {
		return s
	}
	return ""
}

// isRetryable reports whether another attempt may succeed: 5xx, 429, and
// transport timeouts, but never once the caller's context is done.
func isRetryable(ctx context.Context, err error) bool {
	if err == nil || ctx.Err() != nil {
		return false
	}
	ue, ok := IsUpstreamError(err)
	if !ok {
		return false
	}
	if ue.StatusCode == http.StatusTooManyRequests || ue.StatusCode >= 500 {
		return true
	}
	if ue.StatusCode != 0 {
		return false
	}
	if errors.Is(ue.Err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(ue.Err, &netErr) && netErr.Timeout()
}

func (u *Upstream) calculateBackoff(attempt int) time.Duration {
	delay := float64(u.retryBaseDelay) * math.Pow(2, float64(attempt-1))
	if delay > float64(u.retryMaxDelay) {
		delay = float64(u.retryMaxDelay)
	}

	jitter := delay * 0.1 * rand.Float64()
	return time.Duration(delay + jitter)
}

func statusLabel(statusCode int) string {
	if statusCode >= 200 && statusCode < 300 {
		return "success"
	}
	if statusCode == 429 {
		return "rate_limited"
	}
	if statusCode >= 400 && statusCode < 500 {
		return "client_error"
	}
	if statusCode >= 500 {
		return "server_error"
	}
	return "error"
}
