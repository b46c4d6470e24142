package isamurai

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// WaitOption tunes a single wait.
type WaitOption func(*waitConfig)

type waitConfig struct {
	interval time.Duration
	timeout  time.Duration
	multi    bool
	terminal TerminalStates
	onPoll   func(*JobStatus)
}

// WithInterval sets the pause between polls.
func WithInterval(d time.Duration) WaitOption {
	return func(c *waitConfig) { c.interval = d }
}

// WithTimeout sets the maximum total wait.
func WithTimeout(d time.Duration) WaitOption {
	return func(c *waitConfig) { c.timeout = d }
}

// WithMultiJob polls the multi face swap status endpoint.
func WithMultiJob(multi bool) WaitOption {
	return func(c *waitConfig) { c.multi = multi }
}

// WithTerminalStates overrides which status strings end the wait.
func WithTerminalStates(t TerminalStates) WaitOption {
	return func(c *waitConfig) { c.terminal = t }
}

// WithProgress is called with every status observed, terminal or not.
func WithProgress(fn func(*JobStatus)) WaitOption {
	return func(c *waitConfig) { c.onPoll = fn }
}

// Watcher polls a StatusFetcher until a job finishes. It holds no per-job
// state, so one Watcher may run many waits concurrently.
type Watcher struct {
	fetcher  StatusFetcher
	logger   *slog.Logger
	metrics  *Metrics
	tracer   trace.Tracer
	defaults waitConfig
}

// WatcherConfig configures NewWatcher. Zero values fall back to the
// package defaults.
type WatcherConfig struct {
	Interval       time.Duration
	Timeout        time.Duration
	TerminalStates TerminalStates
	Logger         *slog.Logger
	Metrics        *Metrics
	TracerProvider trace.TracerProvider
}

// NewWatcher builds a watcher over fetcher.
func NewWatcher(fetcher StatusFetcher, cfg WatcherConfig) *Watcher {
	w := &Watcher{
		fetcher: fetcher,
		logger:  cfg.Logger,
		metrics: cfg.Metrics,
		defaults: waitConfig{
			interval: cfg.Interval,
			timeout:  cfg.Timeout,
			terminal: cfg.TerminalStates,
		},
	}
	if w.logger == nil {
		w.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if w.defaults.interval <= 0 {
		w.defaults.interval = DefaultPollInterval
	}
	if w.defaults.timeout <= 0 {
		w.defaults.timeout = DefaultWaitTimeout
	}
	if w.defaults.terminal.empty() {
		w.defaults.terminal = DefaultTerminalStates()
	}
	tp := cfg.TracerProvider
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	w.tracer = tp.Tracer(tracerName)
	return w
}

// Watcher returns a watcher that polls through this client with the
// client's configured defaults.
func (c *Client) Watcher() *Watcher {
	return &Watcher{
		fetcher: c,
		logger:  c.logger,
		metrics: c.metrics,
		tracer:  c.tracer,
		defaults: waitConfig{
			interval: c.pollInterval,
			timeout:  c.waitTimeout,
			terminal: c.terminal,
		},
	}
}

// WaitForJob blocks until the job succeeds, fails or the wait times out.
// See Watcher.Wait.
func (c *Client) WaitForJob(ctx context.Context, id JobID, opts ...WaitOption) (*JobStatus, error) {
	return c.Watcher().Wait(ctx, id, opts...)
}

// Wait polls the job until it reaches a terminal status.
//
// On success the final status is returned. A failure-terminal status yields
// *JobFailedError, an expired wait yields *JobTimeoutError, and any error
// from the fetcher is returned as is without retrying.
//
// The deadline is checked before each poll, never during one: a poll that
// starts before the deadline runs to completion and its result is honored
// even if it arrives late. A slow status call can therefore overrun the
// timeout by up to one call's latency. The pause between polls is always a
// full interval, so a wait lasts at most timeout + interval plus that call.
//
// Cancelling ctx stops the wait between polls and interrupts the pause.
func (w *Watcher) Wait(ctx context.Context, id JobID, opts ...WaitOption) (*JobStatus, error) {
	cfg := w.defaults
	for _, opt := range opts {
		opt(&cfg)
	}
	if strings.TrimSpace(string(id)) == "" {
		return nil, fmt.Errorf("%w: empty job id", ErrInvalidArgument)
	}
	if cfg.interval <= 0 || cfg.timeout <= 0 {
		return nil, fmt.Errorf("%w: interval and timeout must be positive", ErrInvalidArgument)
	}
	if cfg.terminal.empty() {
		cfg.terminal = DefaultTerminalStates()
	}

	ctx, span := w.tracer.Start(ctx, "isamurai.WaitForJob", trace.WithAttributes(
		attribute.String("isamurai.job_id", string(id)),
		attribute.Bool("isamurai.multi", cfg.multi),
		attribute.Int64("isamurai.interval_ms", cfg.interval.Milliseconds()),
		attribute.Int64("isamurai.timeout_ms", cfg.timeout.Milliseconds()),
	))
	defer span.End()

	start := time.Now()
	w.logger.Info("isamurai.wait.start", "job_id", id, "interval", cfg.interval, "timeout", cfg.timeout)

	status, polls, err := w.poll(ctx, id, cfg, start)

	outcome := OutcomeOf(err)
	elapsed := time.Since(start)
	w.metrics.recordWait(outcome, elapsed)
	span.SetAttributes(
		attribute.String("isamurai.outcome", string(outcome)),
		attribute.Int("isamurai.polls", polls),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		w.logger.Warn("isamurai.wait.end", "job_id", id, "outcome", outcome, "polls", polls, "elapsed", elapsed, "error", err)
		return nil, err
	}
	w.logger.Info("isamurai.wait.end", "job_id", id, "outcome", outcome, "polls", polls, "elapsed", elapsed)
	return status, nil
}

func (w *Watcher) poll(ctx context.Context, id JobID, cfg waitConfig, start time.Time) (*JobStatus, int, error) {
	var (
		last  *JobStatus
		polls int
	)

	for time.Since(start) < cfg.timeout {
		if err := ctx.Err(); err != nil {
			return nil, polls, err
		}

		status, err := w.fetcher.GetJobStatus(ctx, id, WithMulti(cfg.multi))
		polls++
		if err != nil {
			return nil, polls, err
		}
		if status == nil {
			return nil, polls, fmt.Errorf("%w: empty status for job %s", ErrUnexpectedResponse, id)
		}
		last = status
		w.metrics.recordPoll(status.Status)
		if cfg.onPoll != nil {
			cfg.onPoll(status)
		}

		switch cfg.terminal.Classify(status.Status) {
		case OutcomeSucceeded:
			return status, polls, nil
		case OutcomeFailed:
			reason := status.Error
			if reason == "" {
				reason = UnknownJobError
			}
			return nil, polls, &JobFailedError{JobID: id, Reason: reason, Status: status}
		}

		w.logger.Debug("isamurai.wait.poll",
			"job_id", id,
			"status", status.Status,
			"progress", status.Progress(),
		)

		timer := time.NewTimer(cfg.interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, polls, ctx.Err()
		case <-timer.C:
		}
	}

	return nil, polls, &JobTimeoutError{JobID: id, Timeout: cfg.timeout, LastStatus: last}
}
