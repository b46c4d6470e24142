package services

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/manthysbr/isamurai-go/internal/adapters/duckdb"
	"github.com/manthysbr/isamurai-go/internal/core/domain"
	"github.com/manthysbr/isamurai-go/pkg/isamurai"
)

type MockJobClient struct {
	mock.Mock
}

func (m *MockJobClient) ProcessFaceSwap(ctx context.Context, req isamurai.FaceSwapRequest) (isamurai.JobID, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(isamurai.JobID), args.Error(1)
}

func (m *MockJobClient) ProcessMultiSwap(ctx context.Context, req isamurai.MultiSwapRequest) (isamurai.JobID, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(isamurai.JobID), args.Error(1)
}

func (m *MockJobClient) ProcessSlowMotion(ctx context.Context, req isamurai.SlowMotionRequest) (isamurai.JobID, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(isamurai.JobID), args.Error(1)
}

func (m *MockJobClient) ProcessRestore(ctx context.Context, req isamurai.RestoreRequest) (isamurai.JobID, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(isamurai.JobID), args.Error(1)
}

func (m *MockJobClient) GetJobStatus(ctx context.Context, id isamurai.JobID, opts ...isamurai.StatusOption) (*isamurai.JobStatus, error) {
	args := m.Called(ctx, id)
	status, _ := args.Get(0).(*isamurai.JobStatus)
	return status, args.Error(1)
}

func (m *MockJobClient) WaitForJob(ctx context.Context, id isamurai.JobID, opts ...isamurai.WaitOption) (*isamurai.JobStatus, error) {
	args := m.Called(ctx, id)
	status, _ := args.Get(0).(*isamurai.JobStatus)
	return status, args.Error(1)
}

func (m *MockJobClient) WaitAll(ctx context.Context, ids []isamurai.JobID, opts ...isamurai.BatchOption) ([]isamurai.WaitResult, error) {
	args := m.Called(ctx, ids)
	results, _ := args.Get(0).([]isamurai.WaitResult)
	return results, args.Error(1)
}

func newTestTracker(t *testing.T) (*JobTracker, *MockJobClient, *duckdb.Repository) {
	t.Helper()
	repo, err := duckdb.NewRepository(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	client := new(MockJobClient)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	tracker := NewJobTracker(logger, client, repo)

	clock := time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)
	tracker.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	return tracker, client, repo
}

func progress(p float64) *float64 { return &p }

func TestJobTracker_SubmitRecordsPendingJob(t *testing.T) {
	tracker, client, repo := newTestTracker(t)
	ctx := context.Background()

	req := isamurai.MultiSwapRequest{SourcePaths: []string{"a.jpg", "b.jpg"}, TargetPath: "group.jpg", Name: "team"}
	client.On("ProcessMultiSwap", mock.Anything, req).Return(isamurai.JobID("m-1"), nil)

	rec, err := tracker.SubmitMultiSwap(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, isamurai.JobID("m-1"), rec.ID)
	assert.True(t, rec.Multi)

	stored, err := repo.GetJobRecord(ctx, "m-1")
	require.NoError(t, err)
	assert.Equal(t, isamurai.KindMultiSwap, stored.Kind)
	assert.Equal(t, "team", stored.Name)
	assert.Equal(t, isamurai.OutcomePolling, stored.Outcome)
	client.AssertExpectations(t)
}

func TestJobTracker_SubmitErrorRecordsNothing(t *testing.T) {
	tracker, client, repo := newTestTracker(t)
	ctx := context.Background()

	boom := &isamurai.TransportError{StatusCode: 402, Message: "insufficient credits"}
	client.On("ProcessRestore", mock.Anything, mock.Anything).Return(isamurai.JobID(""), boom)

	_, err := tracker.SubmitRestore(ctx, isamurai.RestoreRequest{TargetPath: "x.jpg"})
	require.ErrorIs(t, err, isamurai.ErrTransport)
	assert.Contains(t, err.Error(), "submit restore")

	records, err := repo.ListJobRecords(ctx, domain.JobFilter{})
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestJobTracker_WaitOutcomes(t *testing.T) {
	tests := []struct {
		name        string
		status      *isamurai.JobStatus
		err         error
		wantOutcome isamurai.Outcome
		wantStatus  isamurai.State
		wantError   string
		wantURL     string
	}{
		{
			name:        "succeeded",
			status:      &isamurai.JobStatus{Status: isamurai.StateDone, ProgressPercentage: progress(100), OutputMediaURL: "https://cdn.example/o.mp4"},
			wantOutcome: isamurai.OutcomeSucceeded,
			wantStatus:  isamurai.StateDone,
			wantURL:     "https://cdn.example/o.mp4",
		},
		{
			name: "failed",
			err: &isamurai.JobFailedError{JobID: "j", Reason: "no face detected",
				Status: &isamurai.JobStatus{Status: isamurai.StateFailed, Error: "no face detected"}},
			wantOutcome: isamurai.OutcomeFailed,
			wantStatus:  isamurai.StateFailed,
			wantError:   "no face detected",
		},
		{
			name: "failed without reason",
			err: &isamurai.JobFailedError{JobID: "j", Reason: isamurai.UnknownJobError,
				Status: &isamurai.JobStatus{Status: isamurai.StateCancelled}},
			wantOutcome: isamurai.OutcomeFailed,
			wantStatus:  isamurai.StateCancelled,
			wantError:   isamurai.UnknownJobError,
		},
		{
			name: "timed out keeps last status",
			err: &isamurai.JobTimeoutError{JobID: "j", Timeout: time.Minute,
				LastStatus: &isamurai.JobStatus{Status: isamurai.StateProcessing, ProgressPercentage: progress(40)}},
			wantOutcome: isamurai.OutcomeTimedOut,
			wantStatus:  isamurai.StateProcessing,
		},
		{
			name:        "transport error",
			err:         &isamurai.TransportError{StatusCode: 500, Message: "oops"},
			wantOutcome: isamurai.OutcomeError,
			wantStatus:  isamurai.StatePending,
		},
		{
			name:        "cancelled wait leaves the job pending",
			err:         context.Canceled,
			wantOutcome: isamurai.OutcomePolling,
			wantStatus:  isamurai.StatePending,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tracker, client, repo := newTestTracker(t)
			ctx := context.Background()

			client.On("ProcessFaceSwap", mock.Anything, mock.Anything).Return(isamurai.JobID("j"), nil)
			client.On("WaitForJob", mock.Anything, isamurai.JobID("j")).Return(tt.status, tt.err)

			_, err := tracker.SubmitFaceSwap(ctx, isamurai.FaceSwapRequest{})
			require.NoError(t, err)

			rec, err := tracker.Wait(ctx, "j", WaitRequest{Interval: time.Second})
			if tt.err != nil {
				assert.Same(t, tt.err, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.wantOutcome, rec.Outcome)

			stored, err := repo.GetJobRecord(ctx, "j")
			require.NoError(t, err)
			assert.Equal(t, tt.wantOutcome, stored.Outcome)
			assert.Equal(t, tt.wantStatus, stored.Status)
			assert.Equal(t, tt.wantError, stored.Error)
			assert.Equal(t, tt.wantURL, stored.OutputURL)
			assert.True(t, stored.UpdatedAt.After(stored.SubmittedAt))
		})
	}
}

func TestJobTracker_WaitUntrackedJob(t *testing.T) {
	tracker, client, repo := newTestTracker(t)
	ctx := context.Background()

	client.On("WaitForJob", mock.Anything, isamurai.JobID("ext-9")).
		Return(&isamurai.JobStatus{ID: "ext-9", Status: isamurai.StateComplete}, nil)

	rec, err := tracker.Wait(ctx, "ext-9", WaitRequest{Multi: true})
	require.NoError(t, err)
	assert.True(t, rec.Multi)

	stored, err := repo.GetJobRecord(ctx, "ext-9")
	require.NoError(t, err)
	assert.Equal(t, isamurai.JobKind(""), stored.Kind)
	assert.True(t, stored.Multi)
	assert.Equal(t, isamurai.OutcomeSucceeded, stored.Outcome)
}

func TestJobTracker_Refresh(t *testing.T) {
	tracker, client, repo := newTestTracker(t)
	ctx := context.Background()

	client.On("GetJobStatus", mock.Anything, isamurai.JobID("r")).
		Return(&isamurai.JobStatus{ID: "r", Status: isamurai.StateProcessing, ProgressPercentage: progress(12)}, nil).Once()
	client.On("GetJobStatus", mock.Anything, isamurai.JobID("r")).
		Return(&isamurai.JobStatus{ID: "r", Status: isamurai.StateFailedLow, Error: "bad input"}, nil).Once()

	rec, status, err := tracker.Refresh(ctx, "r", false)
	require.NoError(t, err)
	assert.Equal(t, isamurai.StateProcessing, status.Status)
	assert.Equal(t, isamurai.OutcomePolling, rec.Outcome)
	require.NotNil(t, rec.Progress)
	assert.Equal(t, 12.0, *rec.Progress)

	rec, _, err = tracker.Refresh(ctx, "r", false)
	require.NoError(t, err)
	assert.Equal(t, isamurai.OutcomeFailed, rec.Outcome)

	stored, err := repo.GetJobRecord(ctx, "r")
	require.NoError(t, err)
	assert.Equal(t, "bad input", stored.Error)
	assert.True(t, stored.Finished())
}

func TestJobTracker_RefreshError(t *testing.T) {
	tracker, client, repo := newTestTracker(t)
	ctx := context.Background()

	client.On("GetJobStatus", mock.Anything, isamurai.JobID("gone")).
		Return(nil, &isamurai.TransportError{StatusCode: 404, Message: "not found"})

	_, _, err := tracker.Refresh(ctx, "gone", false)
	assert.Equal(t, 404, isamurai.StatusCode(err))

	_, err = repo.GetJobRecord(ctx, "gone")
	assert.ErrorIs(t, err, domain.ErrJobNotFound)
}

func TestJobTracker_WaitPendingGroupsByEndpoint(t *testing.T) {
	tracker, client, repo := newTestTracker(t)
	ctx := context.Background()

	seed := func(id isamurai.JobID, kind isamurai.JobKind, outcome isamurai.Outcome) {
		rec := domain.NewJobRecord(id, kind, "", tracker.now())
		rec.Outcome = outcome
		require.NoError(t, repo.SaveJobRecord(ctx, rec))
	}
	seed("done", isamurai.KindFaceSwap, isamurai.OutcomeSucceeded)
	seed("s1", isamurai.KindFaceSwap, isamurai.OutcomePolling)
	seed("m1", isamurai.KindMultiSwap, isamurai.OutcomeTimedOut)
	seed("s2", isamurai.KindRestore, isamurai.OutcomeError)

	// History lists newest first: s2, m1, s1.
	client.On("WaitAll", mock.Anything, []isamurai.JobID{"s2", "s1"}).Return([]isamurai.WaitResult{
		{JobID: "s2", Status: &isamurai.JobStatus{Status: isamurai.StateDone}, Outcome: isamurai.OutcomeSucceeded},
		{JobID: "s1", Outcome: isamurai.OutcomeFailed, Err: &isamurai.JobFailedError{JobID: "s1", Reason: "nsfw",
			Status: &isamurai.JobStatus{Status: isamurai.StateFailed, Error: "nsfw"}}},
	}, nil)
	client.On("WaitAll", mock.Anything, []isamurai.JobID{"m1"}).Return([]isamurai.WaitResult{
		{JobID: "m1", Status: &isamurai.JobStatus{Status: isamurai.StateComplete}, Outcome: isamurai.OutcomeSucceeded},
	}, nil)

	records, results, err := tracker.WaitPending(ctx, WaitRequest{Concurrency: 2})
	require.NoError(t, err)
	require.Len(t, records, 3)
	require.Len(t, results, 3)

	got := map[isamurai.JobID]isamurai.Outcome{}
	for _, r := range records {
		got[r.ID] = r.Outcome
	}
	assert.Equal(t, map[isamurai.JobID]isamurai.Outcome{
		"s2": isamurai.OutcomeSucceeded,
		"m1": isamurai.OutcomeSucceeded,
		"s1": isamurai.OutcomeFailed,
	}, got)

	stored, err := repo.GetJobRecord(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "nsfw", stored.Error)
	client.AssertExpectations(t)
}

func TestJobTracker_WaitPendingNothingToDo(t *testing.T) {
	tracker, client, _ := newTestTracker(t)

	records, results, err := tracker.WaitPending(context.Background(), WaitRequest{})
	require.NoError(t, err)
	assert.Empty(t, records)
	assert.Empty(t, results)
	client.AssertNotCalled(t, "WaitAll", mock.Anything, mock.Anything)
}

func TestJobTracker_WaitAllCancelled(t *testing.T) {
	tracker, client, repo := newTestTracker(t)
	ctx := context.Background()

	client.On("WaitAll", mock.Anything, []isamurai.JobID{"a"}).Return([]isamurai.WaitResult{
		{JobID: "a", Outcome: isamurai.OutcomeCanceled, Err: context.Canceled},
	}, context.Canceled)

	_, _, err := tracker.WaitAll(ctx, []isamurai.JobID{"a"}, WaitRequest{})
	assert.True(t, errors.Is(err, context.Canceled))

	stored, err := repo.GetJobRecord(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, isamurai.OutcomePolling, stored.Outcome)
}
