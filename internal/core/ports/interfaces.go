package ports

import (
	"context"

	"github.com/manthysbr/isamurai-go/internal/core/domain"
	"github.com/manthysbr/isamurai-go/pkg/isamurai"
)

// JobClient abstracts the remote API (isamurai.Client).
type JobClient interface {
	ProcessFaceSwap(ctx context.Context, req isamurai.FaceSwapRequest) (isamurai.JobID, error)
	ProcessMultiSwap(ctx context.Context, req isamurai.MultiSwapRequest) (isamurai.JobID, error)
	ProcessSlowMotion(ctx context.Context, req isamurai.SlowMotionRequest) (isamurai.JobID, error)
	ProcessRestore(ctx context.Context, req isamurai.RestoreRequest) (isamurai.JobID, error)

	GetJobStatus(ctx context.Context, id isamurai.JobID, opts ...isamurai.StatusOption) (*isamurai.JobStatus, error)
	WaitForJob(ctx context.Context, id isamurai.JobID, opts ...isamurai.WaitOption) (*isamurai.JobStatus, error)
	WaitAll(ctx context.Context, ids []isamurai.JobID, opts ...isamurai.BatchOption) ([]isamurai.WaitResult, error)
}

// Repository abstracts the persistent storage (DuckDB)
type Repository interface {
	// SaveJobRecord inserts or replaces a history entry.
	SaveJobRecord(ctx context.Context, rec domain.JobRecord) error

	// GetJobRecord returns domain.ErrJobNotFound for unknown ids.
	GetJobRecord(ctx context.Context, id isamurai.JobID) (domain.JobRecord, error)

	// ListJobRecords returns matching records, newest first.
	ListJobRecords(ctx context.Context, filter domain.JobFilter) ([]domain.JobRecord, error)

	// Settings
	GetSetting(ctx context.Context, key string) (string, error)
	SaveSetting(ctx context.Context, key string, value string) error

	Close() error
}
