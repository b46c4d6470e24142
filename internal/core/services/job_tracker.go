package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/manthysbr/isamurai-go/internal/core/domain"
	"github.com/manthysbr/isamurai-go/internal/core/ports"
	"github.com/manthysbr/isamurai-go/pkg/isamurai"
)

// JobTracker submits jobs through the API client and mirrors their progress
// into the local history.
type JobTracker struct {
	logger *slog.Logger
	client ports.JobClient
	repo   ports.Repository
	now    func() time.Time
}

func NewJobTracker(logger *slog.Logger, client ports.JobClient, repo ports.Repository) *JobTracker {
	return &JobTracker{
		logger: logger,
		client: client,
		repo:   repo,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// WaitRequest tunes Wait and WaitPending. Zero durations use the client's
// defaults.
type WaitRequest struct {
	// Multi forces the multi swap status endpoint for jobs the history does
	// not know about.
	Multi       bool
	Interval    time.Duration
	Timeout     time.Duration
	Concurrency int
	OnProgress  func(*isamurai.JobStatus)
}

func (r WaitRequest) options(multi bool) []isamurai.WaitOption {
	opts := []isamurai.WaitOption{isamurai.WithMultiJob(multi)}
	if r.Interval > 0 {
		opts = append(opts, isamurai.WithInterval(r.Interval))
	}
	if r.Timeout > 0 {
		opts = append(opts, isamurai.WithTimeout(r.Timeout))
	}
	if r.OnProgress != nil {
		opts = append(opts, isamurai.WithProgress(r.OnProgress))
	}
	return opts
}

func (t *JobTracker) SubmitFaceSwap(ctx context.Context, req isamurai.FaceSwapRequest) (domain.JobRecord, error) {
	return t.submit(ctx, isamurai.KindFaceSwap, req.Name, func() (isamurai.JobID, error) {
		return t.client.ProcessFaceSwap(ctx, req)
	})
}

func (t *JobTracker) SubmitMultiSwap(ctx context.Context, req isamurai.MultiSwapRequest) (domain.JobRecord, error) {
	return t.submit(ctx, isamurai.KindMultiSwap, req.Name, func() (isamurai.JobID, error) {
		return t.client.ProcessMultiSwap(ctx, req)
	})
}

func (t *JobTracker) SubmitSlowMotion(ctx context.Context, req isamurai.SlowMotionRequest) (domain.JobRecord, error) {
	return t.submit(ctx, isamurai.KindSlowMotion, req.Name, func() (isamurai.JobID, error) {
		return t.client.ProcessSlowMotion(ctx, req)
	})
}

func (t *JobTracker) SubmitRestore(ctx context.Context, req isamurai.RestoreRequest) (domain.JobRecord, error) {
	return t.submit(ctx, isamurai.KindRestore, req.Name, func() (isamurai.JobID, error) {
		return t.client.ProcessRestore(ctx, req)
	})
}

func (t *JobTracker) submit(ctx context.Context, kind isamurai.JobKind, name string, call func() (isamurai.JobID, error)) (domain.JobRecord, error) {
	id, err := call()
	if err != nil {
		return domain.JobRecord{}, fmt.Errorf("submit %s: %w", kind, err)
	}

	rec := domain.NewJobRecord(id, kind, name, t.now())
	if err := t.repo.SaveJobRecord(context.WithoutCancel(ctx), rec); err != nil {
		// The job is already running remotely; still hand back its id.
		t.logger.Error("failed to record submitted job", "job_id", id, "error", err)
	}
	return rec, nil
}

// Wait blocks until the job finishes and stores the final observation. The
// returned error is the watcher's error, unchanged.
func (t *JobTracker) Wait(ctx context.Context, id isamurai.JobID, req WaitRequest) (domain.JobRecord, error) {
	rec, err := t.recordFor(ctx, id, req.Multi)
	if err != nil {
		return domain.JobRecord{}, err
	}

	status, waitErr := t.client.WaitForJob(ctx, id, req.options(rec.Multi)...)
	t.settle(&rec, status, waitErr)
	t.save(ctx, rec)
	return rec, waitErr
}

// Refresh fetches the current status once and updates the history.
func (t *JobTracker) Refresh(ctx context.Context, id isamurai.JobID, multi bool) (domain.JobRecord, *isamurai.JobStatus, error) {
	rec, err := t.recordFor(ctx, id, multi)
	if err != nil {
		return domain.JobRecord{}, nil, err
	}

	status, err := t.client.GetJobStatus(ctx, id, isamurai.WithMulti(rec.Multi))
	if err != nil {
		return rec, nil, err
	}

	rec.Apply(status, t.now())
	switch outcome := isamurai.DefaultTerminalStates().Classify(status.Status); outcome {
	case isamurai.OutcomeSucceeded, isamurai.OutcomeFailed:
		rec.Outcome = outcome
	}
	t.save(ctx, rec)
	return rec, status, nil
}

// WaitAll waits for ids concurrently and stores each outcome. Per-job
// failures are reported in the results; only cancellation is returned as an
// error.
func (t *JobTracker) WaitAll(ctx context.Context, ids []isamurai.JobID, req WaitRequest) ([]domain.JobRecord, []isamurai.WaitResult, error) {
	records := make([]domain.JobRecord, len(ids))
	var single, multi []int
	for i, id := range ids {
		rec, err := t.recordFor(ctx, id, req.Multi)
		if err != nil {
			return nil, nil, err
		}
		records[i] = rec
		if rec.Multi {
			multi = append(multi, i)
		} else {
			single = append(single, i)
		}
	}

	results := make([]isamurai.WaitResult, len(ids))
	g, gCtx := errgroup.WithContext(ctx)
	for _, group := range []struct {
		idx   []int
		multi bool
	}{{single, false}, {multi, true}} {
		if len(group.idx) == 0 {
			continue
		}
		group := group
		g.Go(func() error {
			groupIDs := make([]isamurai.JobID, len(group.idx))
			for j, i := range group.idx {
				groupIDs[j] = ids[i]
			}
			out, err := t.client.WaitAll(gCtx, groupIDs,
				isamurai.WithConcurrency(req.Concurrency),
				isamurai.WithWaitOptions(req.options(group.multi)...),
			)
			for j, i := range group.idx {
				if j < len(out) {
					results[i] = out[j]
				}
			}
			return err
		})
	}
	waitErr := g.Wait()

	for i := range records {
		if results[i].JobID == "" {
			continue
		}
		t.settle(&records[i], results[i].Status, results[i].Err)
		t.save(ctx, records[i])
	}
	return records, results, waitErr
}

// WaitPending waits for every job in the history that has not finished.
func (t *JobTracker) WaitPending(ctx context.Context, req WaitRequest) ([]domain.JobRecord, []isamurai.WaitResult, error) {
	all, err := t.repo.ListJobRecords(ctx, domain.JobFilter{})
	if err != nil {
		return nil, nil, fmt.Errorf("list history: %w", err)
	}

	var ids []isamurai.JobID
	for _, rec := range all {
		if !rec.Finished() {
			ids = append(ids, rec.ID)
		}
	}
	if len(ids) == 0 {
		return nil, nil, nil
	}
	t.logger.Info("waiting for pending jobs", "count", len(ids))
	return t.WaitAll(ctx, ids, req)
}

// History lists stored records.
func (t *JobTracker) History(ctx context.Context, filter domain.JobFilter) ([]domain.JobRecord, error) {
	return t.repo.ListJobRecords(ctx, filter)
}

// recordFor returns the stored record, or a fresh one for a job submitted
// elsewhere. Such jobs have no kind.
func (t *JobTracker) recordFor(ctx context.Context, id isamurai.JobID, multi bool) (domain.JobRecord, error) {
	rec, err := t.repo.GetJobRecord(ctx, id)
	if err == nil {
		return rec, nil
	}
	if !errors.Is(err, domain.ErrJobNotFound) {
		return domain.JobRecord{}, err
	}

	now := t.now()
	rec = domain.NewJobRecord(id, "", "", now)
	rec.Multi = multi
	return rec, nil
}

// settle folds a wait result into rec. A cancelled wait says nothing about
// the job itself, so only the observations are kept.
func (t *JobTracker) settle(rec *domain.JobRecord, status *isamurai.JobStatus, err error) {
	now := t.now()

	var (
		failed  *isamurai.JobFailedError
		timeout *isamurai.JobTimeoutError
	)
	switch {
	case err == nil:
		rec.Apply(status, now)
	case errors.As(err, &failed):
		rec.Apply(failed.Status, now)
		rec.Error = failed.Reason
	case errors.As(err, &timeout):
		rec.Apply(timeout.LastStatus, now)
	default:
		rec.UpdatedAt = now
	}

	if outcome := isamurai.OutcomeOf(err); outcome != isamurai.OutcomeCanceled {
		rec.Outcome = outcome
	}
}

func (t *JobTracker) save(ctx context.Context, rec domain.JobRecord) {
	if err := t.repo.SaveJobRecord(context.WithoutCancel(ctx), rec); err != nil {
		t.logger.Error("failed to update job history", "job_id", rec.ID, "error", err)
	}
}
