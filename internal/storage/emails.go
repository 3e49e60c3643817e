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

const emailColumns = `id, external_id, thread_id, subject, sender_name, sender_email,
	recipient_email, body_text, body_html, category, sentiment, confidence,
	received_at, processed, processed_at, error`

// SaveEmail persists an email record. Saving the same external id twice is a
// no-op that returns the stored record, so repeated ingestion is idempotent.
func (s *SQLiteStorage) SaveEmail(ctx context.Context, email *model.EmailRecord) (*model.EmailRecord, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if email == nil {
		return nil, fmt.Errorf("%w: email", ErrNilParameter)
	}
	if err := email.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrInvalidInput, err)
	}

	if email.ID == "" {
		email.ID = uuid.NewString()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO emails (id, external_id, thread_id, subject, sender_name, sender_email,
			recipient_email, body_text, body_html, category, sentiment, confidence,
			received_at, processed, processed_at, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(external_id) DO NOTHING`,
		email.ID, email.ExternalID, email.ThreadID, email.Subject, email.SenderName,
		email.SenderEmail, email.RecipientEmail, email.BodyText, email.BodyHTML,
		string(email.Category), string(email.Sentiment), email.Confidence,
		email.ReceivedAt, email.Processed, email.ProcessedAt, nullString(email.Error))
	if err != nil {
		return nil, fmt.Errorf("failed to save email: %w", err)
	}

	return s.GetEmailByExternalID(ctx, email.ExternalID)
}

// GetEmailByExternalID fetches an email by the mail provider's message id.
func (s *SQLiteStorage) GetEmailByExternalID(ctx context.Context, externalID string) (*model.EmailRecord, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(externalID, "externalID"); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT `+emailColumns+` FROM emails WHERE external_id = ?`, externalID)
	return scanEmail(row)
}

// GetEmailByID fetches an email by its internal id.
func (s *SQLiteStorage) GetEmailByID(ctx context.Context, id string) (*model.EmailRecord, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT `+emailColumns+` FROM emails WHERE id = ?`, id)
	return scanEmail(row)
}

// GetEmailsToProcess returns unprocessed emails, oldest first.
func (s *SQLiteStorage) GetEmailsToProcess(ctx context.Context, limit int) ([]model.EmailRecord, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+emailColumns+` FROM emails WHERE processed = 0 ORDER BY received_at ASC LIMIT ?`,
		limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query emails: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var emails []model.EmailRecord
	for rows.Next() {
		email, scanErr := scanEmailRow(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		emails = append(emails, *email)
	}
	return emails, rows.Err()
}

// MarkEmailProcessed flags an email as processed, recording the failure text
// when processErr is non-nil.
func (s *SQLiteStorage) MarkEmailProcessed(ctx context.Context, id string, processErr error) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(id, "id"); err != nil {
		return err
	}

	errText := sql.NullString{}
	if processErr != nil {
		errText = sql.NullString{String: processErr.Error(), Valid: true}
	}

	result, err := s.db.ExecContext(ctx,
		`UPDATE emails SET processed = 1, processed_at = ?, error = ? WHERE id = ?`,
		time.Now().UTC(), errText, id)
	if err != nil {
		return fmt.Errorf("failed to mark email processed: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: email %s", common.ErrNotFound, id)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEmail(row *sql.Row) (*model.EmailRecord, error) {
	email, err := scanEmailRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: email", common.ErrNotFound)
	}
	return email, err
}

func scanEmailRow(row rowScanner) (*model.EmailRecord, error) {
	var (
		email       model.EmailRecord
		category    sql.NullString
		sentiment   sql.NullString
		processedAt sql.NullTime
		errText     sql.NullString
	)

	err := row.Scan(&email.ID, &email.ExternalID, &email.ThreadID, &email.Subject,
		&email.SenderName, &email.SenderEmail, &email.RecipientEmail,
		&email.BodyText, &email.BodyHTML, &category, &sentiment, &email.Confidence,
		&email.ReceivedAt, &email.Processed, &processedAt, &errText)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan email: %w", err)
	}

	email.Category = model.EmailCategory(category.String)
	email.Sentiment = model.Sentiment(sentiment.String)
	email.Error = errText.String
	if processedAt.Valid {
		email.ProcessedAt = &processedAt.Time
	}
	return &email, nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
