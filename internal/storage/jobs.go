package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mfairbanks/jobsignal/internal/common"
	"github.com/mfairbanks/jobsignal/internal/model"
)

// SaveJob upserts a job candidate row. The matching engine treats jobs as a
// read-only projection; only ingestion writes here.
func (s *SQLiteStorage) SaveJob(ctx context.Context, job *model.JobCandidate) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if job == nil {
		return fmt.Errorf("%w: job", ErrNilParameter)
	}
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if err := job.Validate(); err != nil {
		return fmt.Errorf("%w: %v", common.ErrInvalidInput, err)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO jobs (id, company_name, position_title, company_domain, effort_level, applied_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			company_name = excluded.company_name,
			position_title = excluded.position_title,
			company_domain = excluded.company_domain,
			effort_level = excluded.effort_level,
			applied_at = excluded.applied_at`,
		job.ID, job.CompanyName, job.PositionTitle, job.CompanyDomain,
		job.EffortLevel, job.AppliedAt)
	if err != nil {
		return fmt.Errorf("failed to save job: %w", err)
	}
	return nil
}

// FetchCandidates returns jobs applied to at or after since, most recent
// first.
func (s *SQLiteStorage) FetchCandidates(ctx context.Context, since time.Time) ([]model.JobCandidate, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, company_name, position_title, company_domain, effort_level, applied_at
		FROM jobs
		WHERE applied_at >= ?
		ORDER BY applied_at DESC, id ASC`, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query jobs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var jobs []model.JobCandidate
	for rows.Next() {
		var job model.JobCandidate
		if err := rows.Scan(&job.ID, &job.CompanyName, &job.PositionTitle,
			&job.CompanyDomain, &job.EffortLevel, &job.AppliedAt); err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// GetJobByID fetches a single job candidate.
func (s *SQLiteStorage) GetJobByID(ctx context.Context, id string) (*model.JobCandidate, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}

	var job model.JobCandidate
	err := s.db.QueryRowContext(ctx, `
		SELECT id, company_name, position_title, company_domain, effort_level, applied_at
		FROM jobs WHERE id = ?`, id).
		Scan(&job.ID, &job.CompanyName, &job.PositionTitle,
			&job.CompanyDomain, &job.EffortLevel, &job.AppliedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: job %s", common.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return &job, nil
}
