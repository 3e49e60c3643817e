package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mfairbanks/jobsignal/internal/common"
	"github.com/mfairbanks/jobsignal/internal/model"
)

const outcomeColumns = `id, email_id, job_id, method, score,
	signal_name, signal_domain, signal_title, signal_timeline,
	rationale, reviewer_notes, needs_review, resolved, resolved_at, created_at`

// UpsertOutcome writes a match outcome idempotently. Re-processing an email
// updates the row it wrote before instead of inserting a duplicate: matching
// is done first by id, then by the email's single unresolved row, then by the
// (email, job) pair, then by the email's no-match row.
func (s *SQLiteStorage) UpsertOutcome(ctx context.Context, outcome *model.MatchOutcome) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if outcome == nil {
		return fmt.Errorf("%w: outcome", ErrNilParameter)
	}
	if err := outcome.Validate(); err != nil {
		return fmt.Errorf("%w: %v", common.ErrInvalidInput, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	existingID, err := findOutcomeRow(ctx, tx, outcome)
	if err != nil {
		return err
	}

	if existingID != "" {
		outcome.ID = existingID
		_, err = tx.ExecContext(ctx, `
			UPDATE match_outcomes SET
				job_id = ?, method = ?, score = ?,
				signal_name = ?, signal_domain = ?, signal_title = ?, signal_timeline = ?,
				rationale = ?, reviewer_notes = ?, needs_review = ?, resolved = ?, resolved_at = ?
			WHERE id = ?`,
			outcome.JobID, string(outcome.Method), outcome.Score,
			outcome.Signals.Name, outcome.Signals.Domain, outcome.Signals.Title, outcome.Signals.Timeline,
			nullString(outcome.Rationale), nullString(outcome.ReviewerNotes),
			outcome.NeedsReview, outcome.Resolved, outcome.ResolvedAt,
			existingID)
		if err != nil {
			return fmt.Errorf("failed to update outcome: %w", err)
		}
	} else {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO match_outcomes (id, email_id, job_id, method, score,
				signal_name, signal_domain, signal_title, signal_timeline,
				rationale, reviewer_notes, needs_review, resolved, resolved_at, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			outcome.ID, outcome.EmailID, outcome.JobID, string(outcome.Method), outcome.Score,
			outcome.Signals.Name, outcome.Signals.Domain, outcome.Signals.Title, outcome.Signals.Timeline,
			nullString(outcome.Rationale), nullString(outcome.ReviewerNotes),
			outcome.NeedsReview, outcome.Resolved, outcome.ResolvedAt, outcome.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to insert outcome: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit outcome: %w", err)
	}
	return nil
}

// findOutcomeRow locates the existing row this write should land on, if any.
func findOutcomeRow(ctx context.Context, tx *sql.Tx, outcome *model.MatchOutcome) (string, error) {
	queries := []struct {
		query string
		args  []any
	}{
		{`SELECT id FROM match_outcomes WHERE id = ?`, []any{outcome.ID}},
		{`SELECT id FROM match_outcomes WHERE email_id = ? AND resolved = 0`, []any{outcome.EmailID}},
	}
	if outcome.JobID != nil {
		queries = append(queries, struct {
			query string
			args  []any
		}{`SELECT id FROM match_outcomes WHERE email_id = ? AND job_id = ?`, []any{outcome.EmailID, *outcome.JobID}})
	} else {
		queries = append(queries, struct {
			query string
			args  []any
		}{`SELECT id FROM match_outcomes WHERE email_id = ? AND job_id IS NULL`, []any{outcome.EmailID}})
	}

	for _, q := range queries {
		var id string
		err := tx.QueryRowContext(ctx, q.query, q.args...).Scan(&id)
		if errors.Is(err, sql.ErrNoRows) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("failed to look up outcome: %w", err)
		}
		return id, nil
	}
	return "", nil
}

// GetOutcomeByEmail returns the email's active outcome: the unresolved row if
// one exists, otherwise the most recent resolved one.
func (s *SQLiteStorage) GetOutcomeByEmail(ctx context.Context, emailID string) (*model.MatchOutcome, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(emailID, "emailID"); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT `+outcomeColumns+` FROM match_outcomes
		WHERE email_id = ?
		ORDER BY resolved ASC, created_at DESC
		LIMIT 1`, emailID)

	outcome, err := scanOutcome(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: outcome for email %s", common.ErrNotFound, emailID)
	}
	return outcome, err
}

func scanOutcome(row rowScanner) (*model.MatchOutcome, error) {
	var (
		outcome       model.MatchOutcome
		jobID         sql.NullString
		rationale     sql.NullString
		reviewerNotes sql.NullString
		resolvedAt    sql.NullTime
		method        string
	)

	err := row.Scan(&outcome.ID, &outcome.EmailID, &jobID, &method, &outcome.Score,
		&outcome.Signals.Name, &outcome.Signals.Domain, &outcome.Signals.Title, &outcome.Signals.Timeline,
		&rationale, &reviewerNotes, &outcome.NeedsReview, &outcome.Resolved,
		&resolvedAt, &outcome.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan outcome: %w", err)
	}

	outcome.Method = model.MatchMethod(method)
	outcome.Rationale = rationale.String
	outcome.ReviewerNotes = reviewerNotes.String
	if jobID.Valid {
		outcome.JobID = &jobID.String
	}
	if resolvedAt.Valid {
		outcome.ResolvedAt = &resolvedAt.Time
	}
	return &outcome, nil
}
