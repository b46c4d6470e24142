package isamurai

import (
	"context"

	"golang.org/x/sync/errgroup"
)

const defaultWaitConcurrency = 4

// WaitResult is the outcome of one job in WaitAll.
type WaitResult struct {
	JobID   JobID
	Status  *JobStatus
	Outcome Outcome
	Err     error
}

// BatchOption tunes WaitAll.
type BatchOption func(*batchConfig)

type batchConfig struct {
	concurrency int
	wait        []WaitOption
}

// WithConcurrency bounds how many jobs are polled at once.
func WithConcurrency(n int) BatchOption {
	return func(c *batchConfig) { c.concurrency = n }
}

// WithWaitOptions applies opts to every job's wait.
func WithWaitOptions(opts ...WaitOption) BatchOption {
	return func(c *batchConfig) { c.wait = append(c.wait, opts...) }
}

// WaitAll waits for every job independently. Results come back in the order
// of ids; a failed job is reported in its result and does not stop the
// others. The returned error is non-nil only if ctx was cancelled.
func (w *Watcher) WaitAll(ctx context.Context, ids []JobID, opts ...BatchOption) ([]WaitResult, error) {
	cfg := batchConfig{concurrency: defaultWaitConcurrency}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.concurrency <= 0 {
		cfg.concurrency = defaultWaitConcurrency
	}

	results := make([]WaitResult, len(ids))
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.concurrency)

	for i, id := range ids {
		i, id := i, id
		g.Go(func() error {
			status, err := w.Wait(gCtx, id, cfg.wait...)
			results[i] = WaitResult{
				JobID:   id,
				Status:  status,
				Outcome: OutcomeOf(err),
				Err:     err,
			}
			return nil
		})
	}

	_ = g.Wait()
	return results, ctx.Err()
}

// WaitAll waits for several jobs through this client. See Watcher.WaitAll.
func (c *Client) WaitAll(ctx context.Context, ids []JobID, opts ...BatchOption) ([]WaitResult, error) {
	return c.Watcher().WaitAll(ctx, ids, opts...)
}
