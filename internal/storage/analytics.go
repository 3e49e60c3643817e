package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/mfairbanks/jobsignal/internal/model"
)

// RecordResponse writes one response-analytics row. One row per email; a
// repeat write for the same email updates in place.
func (s *SQLiteStorage) RecordResponse(ctx context.Context, r *model.ResponseRecord) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if r == nil {
		return fmt.Errorf("%w: response record", ErrNilParameter)
	}
	if err := validateString(r.EmailID, "emailID"); err != nil {
		return err
	}
	if err := validateString(r.CompanyName, "companyName"); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO response_analytics (id, email_id, job_id, response_type,
			company_name, position_title, effort_level,
			application_date, response_date, days_to_response, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(email_id) DO UPDATE SET
			job_id = excluded.job_id,
			response_type = excluded.response_type,
			company_name = excluded.company_name,
			position_title = excluded.position_title,
			effort_level = excluded.effort_level,
			application_date = excluded.application_date,
			response_date = excluded.response_date,
			days_to_response = excluded.days_to_response`,
		r.ID, r.EmailID, r.JobID, string(r.ResponseType),
		r.CompanyName, r.PositionTitle, r.EffortLevel,
		r.ApplicationDate, r.ResponseDate, r.DaysToResponse, r.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to record response: %w", err)
	}
	return nil
}

// CountCompanyRejections counts rejection responses from a company since the
// given time.
func (s *SQLiteStorage) CountCompanyRejections(ctx context.Context, companyName string, since time.Time) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	if err := validateString(companyName, "companyName"); err != nil {
		return 0, err
	}

	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM response_analytics
		WHERE company_name = ? AND response_type = ? AND response_date >= ?`,
		companyName, string(model.CategoryRejection), since).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count rejections: %w", err)
	}
	return count, nil
}
