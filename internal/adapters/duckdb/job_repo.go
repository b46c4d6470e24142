package duckdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/manthysbr/isamurai-go/internal/core/domain"
	"github.com/manthysbr/isamurai-go/pkg/isamurai"
)

const jobColumns = `id, kind, name, multi, status, progress, output_url, error, outcome, submitted_at, updated_at`

// SaveJobRecord upserts a history entry. submitted_at is kept from the first
// insert.
func (r *Repository) SaveJobRecord(ctx context.Context, rec domain.JobRecord) error {
	var progress sql.NullFloat64
	if rec.Progress != nil {
		progress = sql.NullFloat64{Float64: *rec.Progress, Valid: true}
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO job_records (`+jobColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			name       = excluded.name,
			status     = excluded.status,
			progress   = excluded.progress,
			output_url = excluded.output_url,
			error      = excluded.error,
			outcome    = excluded.outcome,
			updated_at = excluded.updated_at`,
		string(rec.ID),
		string(rec.Kind),
		rec.Name,
		rec.Multi,
		string(rec.Status),
		progress,
		rec.OutputURL,
		rec.Error,
		string(rec.Outcome),
		rec.SubmittedAt.UTC(),
		rec.UpdatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("upsert job record %s: %w", rec.ID, err)
	}
	return nil
}

// GetJobRecord retrieves a history entry by job id.
func (r *Repository) GetJobRecord(ctx context.Context, id isamurai.JobID) (domain.JobRecord, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM job_records WHERE id = ?`, string(id))

	rec, err := scanJobRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.JobRecord{}, fmt.Errorf("%w: %s", domain.ErrJobNotFound, id)
	}
	if err != nil {
		return domain.JobRecord{}, fmt.Errorf("get job record %s: %w", id, err)
	}
	return rec, nil
}

// ListJobRecords returns history entries, newest first.
func (r *Repository) ListJobRecords(ctx context.Context, filter domain.JobFilter) ([]domain.JobRecord, error) {
	var (
		where []string
		args  []any
	)
	if filter.Outcome != "" {
		where = append(where, "outcome = ?")
		args = append(args, string(filter.Outcome))
	}
	if filter.Kind != "" {
		where = append(where, "kind = ?")
		args = append(args, string(filter.Kind))
	}

	query := `SELECT ` + jobColumns + ` FROM job_records`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY submitted_at DESC, id"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list job records: %w", err)
	}
	defer rows.Close()

	var records []domain.JobRecord
	for rows.Next() {
		rec, err := scanJobRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job record: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJobRecord(row rowScanner) (domain.JobRecord, error) {
	var (
		rec                       domain.JobRecord
		id, kind, status, outcome string
		progress                  sql.NullFloat64
	)
	err := row.Scan(
		&id, &kind, &rec.Name, &rec.Multi, &status, &progress,
		&rec.OutputURL, &rec.Error, &outcome, &rec.SubmittedAt, &rec.UpdatedAt,
	)
	if err != nil {
		return domain.JobRecord{}, err
	}

	rec.ID = isamurai.JobID(id)
	rec.Kind = isamurai.JobKind(kind)
	rec.Status = isamurai.State(status)
	rec.Outcome = isamurai.Outcome(outcome)
	if progress.Valid {
		p := progress.Float64
		rec.Progress = &p
	}
	return rec, nil
}
