package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/mfairbanks/jobsignal/internal/common"
	"github.com/mfairbanks/jobsignal/internal/model"
)

const reviewColumns = `id, email_id, reason, status, assignee,
	resolution_action, resolution_notes, priority, skip_count, resolved_at, created_at`

// EnqueueReview inserts a new queue entry. The partial unique index on
// non-terminal statuses rejects a second active entry for the same email;
// that constraint violation is surfaced as common.ErrDuplicateEntry.
func (s *SQLiteStorage) EnqueueReview(ctx context.Context, entry *model.ReviewQueueEntry) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if entry == nil {
		return fmt.Errorf("%w: entry", ErrNilParameter)
	}
	if err := entry.Validate(); err != nil {
		return fmt.Errorf("%w: %v", common.ErrInvalidInput, err)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO review_queue (id, email_id, reason, status, assignee,
			resolution_action, resolution_notes, priority, skip_count, resolved_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.EmailID, string(entry.Reason), string(entry.Status),
		nullString(entry.Assignee), nullString(string(entry.ResolutionAction)),
		nullString(entry.ResolutionNotes), entry.Priority, entry.SkipCount,
		entry.ResolvedAt, entry.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: active review entry exists for email %s",
				common.ErrDuplicateEntry, entry.EmailID)
		}
		return fmt.Errorf("failed to enqueue review entry: %w", err)
	}
	return nil
}

// GetReviewEntry fetches one queue entry by id.
func (s *SQLiteStorage) GetReviewEntry(ctx context.Context, id string) (*model.ReviewQueueEntry, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT `+reviewColumns+` FROM review_queue WHERE id = ?`, id)

	entry, err := scanReviewEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: review entry %s", common.ErrNotFound, id)
	}
	return entry, err
}

// GetActiveReviewEntry returns the email's non-terminal entry, if any.
func (s *SQLiteStorage) GetActiveReviewEntry(ctx context.Context, emailID string) (*model.ReviewQueueEntry, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(emailID, "emailID"); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT `+reviewColumns+` FROM review_queue
		WHERE email_id = ? AND status IN ('pending', 'in_progress')
		LIMIT 1`, emailID)

	entry, err := scanReviewEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: active review entry for email %s", common.ErrNotFound, emailID)
	}
	return entry, err
}

// GetPendingReviews returns entries awaiting triage. Abandoned in_progress
// claims come back first so an interrupted session can resume them, then
// pending entries, highest priority first, oldest first within a priority.
func (s *SQLiteStorage) GetPendingReviews(ctx context.Context, limit int) ([]model.ReviewQueueEntry, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+reviewColumns+` FROM review_queue
		WHERE status IN ('pending', 'in_progress')
		ORDER BY CASE status WHEN 'in_progress' THEN 0 ELSE 1 END,
			priority DESC, created_at ASC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query review queue: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []model.ReviewQueueEntry
	for rows.Next() {
		entry, scanErr := scanReviewEntry(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		entries = append(entries, *entry)
	}
	return entries, rows.Err()
}

// UpdateReviewEntry persists a state transition. The stored status must allow
// the transition; stale writes fail rather than corrupt the state machine.
func (s *SQLiteStorage) UpdateReviewEntry(ctx context.Context, entry *model.ReviewQueueEntry) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if entry == nil {
		return fmt.Errorf("%w: entry", ErrNilParameter)
	}
	if err := entry.Validate(); err != nil {
		return fmt.Errorf("%w: %v", common.ErrInvalidInput, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var storedStatus string
	err = tx.QueryRowContext(ctx,
		`SELECT status FROM review_queue WHERE id = ?`, entry.ID).Scan(&storedStatus)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: review entry %s", common.ErrNotFound, entry.ID)
	}
	if err != nil {
		return fmt.Errorf("failed to read review entry: %w", err)
	}

	current := model.ReviewStatus(storedStatus)
	if current != entry.Status && !current.CanTransitionTo(entry.Status) {
		if current.IsTerminal() {
			return fmt.Errorf("%w: review entry %s is %s", common.ErrAlreadyResolved, entry.ID, current)
		}
		return fmt.Errorf("%w: cannot transition review entry from %s to %s",
			common.ErrInvalidInput, current, entry.Status)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE review_queue SET
			reason = ?, status = ?, assignee = ?,
			resolution_action = ?, resolution_notes = ?,
			priority = ?, skip_count = ?, resolved_at = ?
		WHERE id = ?`,
		string(entry.Reason), string(entry.Status), nullString(entry.Assignee),
		nullString(string(entry.ResolutionAction)), nullString(entry.ResolutionNotes),
		entry.Priority, entry.SkipCount, entry.ResolvedAt,
		entry.ID)
	if err != nil {
		return fmt.Errorf("failed to update review entry: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit review update: %w", err)
	}
	return nil
}

func scanReviewEntry(row rowScanner) (*model.ReviewQueueEntry, error) {
	var (
		entry      model.ReviewQueueEntry
		reason     string
		status     string
		assignee   sql.NullString
		action     sql.NullString
		notes      sql.NullString
		resolvedAt sql.NullTime
	)

	err := row.Scan(&entry.ID, &entry.EmailID, &reason, &status, &assignee,
		&action, &notes, &entry.Priority, &entry.SkipCount, &resolvedAt, &entry.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan review entry: %w", err)
	}

	entry.Reason = model.ReviewReason(reason)
	entry.Status = model.ReviewStatus(status)
	entry.Assignee = assignee.String
	entry.ResolutionAction = model.ReviewAction(action.String)
	entry.ResolutionNotes = notes.String
	if resolvedAt.Valid {
		entry.ResolvedAt = &resolvedAt.Time
	}
	return &entry, nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
