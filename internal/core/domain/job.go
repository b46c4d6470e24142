package domain

import (
	"errors"
	"time"

	"github.com/manthysbr/isamurai-go/pkg/isamurai"
)

// JobRecord is the local history entry for a submitted job.
type JobRecord struct {
	ID          isamurai.JobID   `json:"id"`
	Kind        isamurai.JobKind `json:"kind"`
	Name        string           `json:"name"`
	Multi       bool             `json:"multi"`
	Status      isamurai.State   `json:"status"`
	Progress    *float64         `json:"progress,omitempty"`
	OutputURL   string           `json:"output_url,omitempty"`
	Error       string           `json:"error,omitempty"`
	Outcome     isamurai.Outcome `json:"outcome"`
	SubmittedAt time.Time        `json:"submitted_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

// NewJobRecord starts a history entry for a job the API just accepted.
func NewJobRecord(id isamurai.JobID, kind isamurai.JobKind, name string, now time.Time) JobRecord {
	return JobRecord{
		ID:          id,
		Kind:        kind,
		Name:        name,
		Multi:       kind.Multi(),
		Status:      isamurai.StatePending,
		Outcome:     isamurai.OutcomePolling,
		SubmittedAt: now,
		UpdatedAt:   now,
	}
}

// Apply copies a fresh status observation onto the record.
func (r *JobRecord) Apply(s *isamurai.JobStatus, now time.Time) {
	if s == nil {
		return
	}
	r.Status = s.Status
	if s.ProgressPercentage != nil {
		p := *s.ProgressPercentage
		r.Progress = &p
	}
	if s.OutputMediaURL != "" {
		r.OutputURL = s.OutputMediaURL
	}
	if s.Error != "" {
		r.Error = s.Error
	}
	r.UpdatedAt = now
}

// Finished reports whether the record reached a final outcome.
func (r JobRecord) Finished() bool {
	switch r.Outcome {
	case isamurai.OutcomeSucceeded, isamurai.OutcomeFailed:
		return true
	}
	return false
}

// JobFilter narrows ListJobRecords. Zero values match everything.
type JobFilter struct {
	Outcome isamurai.Outcome
	Kind    isamurai.JobKind
	Limit   int
}

var (
	ErrJobNotFound     = errors.New("job not found")
	ErrSettingNotFound = errors.New("setting not found")
)
