// Package isamurai is a client for the iSamurai face swap API.
//
// A Client is built once from an immutable Config and is safe for concurrent
// use. Job submission returns a JobID; WaitForJob polls the job until it
// reaches a terminal status or the wait times out.
package isamurai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"
)

const (
	DefaultBaseURL      = "https://isamur.ai/api"
	DefaultPollInterval = 5 * time.Second
	DefaultWaitTimeout  = 600 * time.Second

	tracerName = "github.com/manthysbr/isamurai-go/pkg/isamurai"
	userAgent  = "isamurai-go/1.0"
)

// Config is captured by New and never mutated afterwards.
type Config struct {
	// APIKey is the account key, usually prefixed "isk_".
	APIKey  string
	BaseURL string

	// HTTPClient performs the requests. Timeouts, TLS and pooling belong here.
	HTTPClient *http.Client
	Logger     *slog.Logger

	// RequestsPerSecond throttles outgoing requests; zero disables throttling.
	RequestsPerSecond float64
	Burst             int

	PollInterval   time.Duration
	WaitTimeout    time.Duration
	TerminalStates TerminalStates

	Metrics        *Metrics
	TracerProvider trace.TracerProvider

	// ValidateResponses checks every JSON response against the bundled
	// OpenAPI description.
	ValidateResponses bool
}

// Client talks to the iSamurai API.
type Client struct {
	apiKey    string
	baseURL   string
	http      *http.Client
	logger    *slog.Logger
	limiter   *rate.Limiter
	metrics   *Metrics
	tracer    trace.Tracer
	validator *responseValidator

	pollInterval time.Duration
	waitTimeout  time.Duration
	terminal     TerminalStates
}

// New validates cfg and builds a Client.
func New(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrMissingAPIKey
	}

	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("%w: base url %q: %v", ErrInvalidArgument, cfg.BaseURL, err)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 120 * time.Second}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}

	tp := cfg.TracerProvider
	if tp == nil {
		tp = otel.GetTracerProvider()
	}

	c := &Client{
		apiKey:       cfg.APIKey,
		baseURL:      baseURL,
		http:         httpClient,
		logger:       logger,
		limiter:      rate.NewLimiter(limit, burst),
		metrics:      cfg.Metrics,
		tracer:       tp.Tracer(tracerName),
		pollInterval: cfg.PollInterval,
		waitTimeout:  cfg.WaitTimeout,
		terminal:     cfg.TerminalStates,
	}
	if c.pollInterval <= 0 {
		c.pollInterval = DefaultPollInterval
	}
	if c.waitTimeout <= 0 {
		c.waitTimeout = DefaultWaitTimeout
	}
	if c.terminal.empty() {
		c.terminal = DefaultTerminalStates()
	}

	if cfg.ValidateResponses {
		v, err := newResponseValidator(baseURL)
		if err != nil {
			return nil, fmt.Errorf("load api description: %w", err)
		}
		c.validator = v
	}

	return c, nil
}

// BaseURL returns the endpoint root the client was configured with.
func (c *Client) BaseURL() string { return c.baseURL }

// request describes one API call.
type request struct {
	method      string
	path        string
	query       url.Values
	body        io.Reader
	contentType string
}

// do sends req and decodes a 2xx JSON body into out. The raw body is
// returned so callers can keep the full object.
func (c *Client) do(ctx context.Context, req request, out any) ([]byte, error) {
	ctx, span := c.tracer.Start(ctx, "isamurai "+req.method+" "+req.path,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", req.method),
			attribute.String("isamurai.endpoint", req.path),
		),
	)
	defer span.End()

	raw, err := c.send(ctx, req, out)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	if code := StatusCode(err); code > 0 {
		span.SetAttributes(attribute.Int("http.response.status_code", code))
	}
	return raw, err
}

func (c *Client) send(ctx context.Context, req request, out any) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	u := c.baseURL + req.path
	if len(req.query) > 0 {
		u += "?" + req.query.Encode()
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, u, req.body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	reqID := uuid.New().String()
	httpReq.Header.Set("Authorization", "Api-Key "+c.apiKey)
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", userAgent)
	httpReq.Header.Set("X-Request-ID", reqID)
	if req.contentType != "" {
		httpReq.Header.Set("Content-Type", req.contentType)
	}

	c.logger.Debug("isamurai.http.request",
		"req_id", reqID,
		"method", req.method,
		"path", req.path,
	)

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		c.metrics.recordRequest(req.path, 0, time.Since(start))
		c.logger.Error("isamurai.http.send_error",
			"req_id", reqID,
			"path", req.path,
			"error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return nil, &TransportError{Method: req.method, Path: req.path, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	elapsed := time.Since(start)
	c.metrics.recordRequest(req.path, resp.StatusCode, elapsed)
	if err != nil {
		return nil, &TransportError{Method: req.method, Path: req.path, Err: fmt.Errorf("read body: %w", err)}
	}

	c.logger.Debug("isamurai.http.response",
		"req_id", reqID,
		"path", req.path,
		"status", resp.StatusCode,
		"bytes", len(raw),
		"elapsed_ms", elapsed.Milliseconds(),
	)

	if resp.StatusCode/100 != 2 {
		return raw, &TransportError{
			Method:     req.method,
			Path:       req.path,
			StatusCode: resp.StatusCode,
			Message:    errorMessage(raw),
		}
	}

	if c.validator != nil {
		if err := c.validator.validate(ctx, httpReq, resp, raw); err != nil {
			return raw, &ValidationError{Path: req.path, Err: err}
		}
	}

	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return raw, fmt.Errorf("%w: decode %s: %v", ErrUnexpectedResponse, req.path, err)
		}
	}
	return raw, nil
}

// errorMessage pulls the "error" field out of an error body, falling back to
// the body text.
func errorMessage(raw []byte) string {
	var body struct {
		Error json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(raw, &body); err == nil && len(body.Error) > 0 && string(body.Error) != "null" {
		var s string
		if err := json.Unmarshal(body.Error, &s); err == nil {
			return s
		}
		return string(bytes.TrimSpace(body.Error))
	}
	return strings.TrimSpace(string(raw))
}
