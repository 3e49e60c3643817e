package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// ExpectedSchemaVersion is the latest schema version that the application expects.
// If the database cannot be migrated to this version, it's a fatal error.
const ExpectedSchemaVersion = 2

// Migration represents a database schema migration.
type Migration struct {
	Up          func(*sql.Tx) error
	Description string
	Version     int
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "Initial schema",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE TABLE IF NOT EXISTS emails (
					id TEXT PRIMARY KEY,
					external_id TEXT UNIQUE NOT NULL,
					thread_id TEXT,
					subject TEXT,
					sender_name TEXT,
					sender_email TEXT,
					recipient_email TEXT,
					body_text TEXT,
					body_html TEXT,
					category TEXT,
					sentiment TEXT,
					confidence REAL DEFAULT 0,
					received_at DATETIME NOT NULL,
					processed INTEGER NOT NULL DEFAULT 0,
					processed_at DATETIME,
					error TEXT,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,
				`CREATE INDEX idx_emails_processed ON emails(processed, received_at)`,

				`CREATE TABLE IF NOT EXISTS jobs (
					id TEXT PRIMARY KEY,
					company_name TEXT NOT NULL,
					position_title TEXT NOT NULL,
					company_domain TEXT,
					effort_level TEXT,
					applied_at DATETIME NOT NULL,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,
				`CREATE INDEX idx_jobs_applied_at ON jobs(applied_at)`,

				`CREATE TABLE IF NOT EXISTS match_outcomes (
					id TEXT PRIMARY KEY,
					email_id TEXT NOT NULL,
					job_id TEXT,
					method TEXT NOT NULL,
					score REAL NOT NULL DEFAULT 0,
					signal_name REAL NOT NULL DEFAULT 0,
					signal_domain REAL NOT NULL DEFAULT 0,
					signal_title REAL NOT NULL DEFAULT 0,
					signal_timeline REAL NOT NULL DEFAULT 0,
					rationale TEXT,
					reviewer_notes TEXT,
					needs_review INTEGER NOT NULL DEFAULT 0,
					resolved INTEGER NOT NULL DEFAULT 0,
					resolved_at DATETIME,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					FOREIGN KEY (email_id) REFERENCES emails(id),
					FOREIGN KEY (job_id) REFERENCES jobs(id)
				)`,
				// At most one resolved link per (email, job) pair
				`CREATE UNIQUE INDEX idx_outcomes_email_job ON match_outcomes(email_id, job_id)
					WHERE job_id IS NOT NULL`,
				// At most one unresolved outcome per email
				`CREATE UNIQUE INDEX idx_outcomes_unresolved ON match_outcomes(email_id)
					WHERE resolved = 0`,
				`CREATE INDEX idx_outcomes_email ON match_outcomes(email_id)`,

				`CREATE TABLE IF NOT EXISTS review_queue (
					id TEXT PRIMARY KEY,
					email_id TEXT NOT NULL,
					reason TEXT NOT NULL,
					status TEXT NOT NULL DEFAULT 'pending',
					assignee TEXT,
					resolution_action TEXT,
					resolution_notes TEXT,
					priority INTEGER NOT NULL DEFAULT 5,
					skip_count INTEGER NOT NULL DEFAULT 0,
					resolved_at DATETIME,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					FOREIGN KEY (email_id) REFERENCES emails(id)
				)`,
				// At most one non-terminal entry per email
				`CREATE UNIQUE INDEX idx_review_active ON review_queue(email_id)
					WHERE status IN ('pending', 'in_progress')`,
				`CREATE INDEX idx_review_status ON review_queue(status, priority DESC, created_at)`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query: %w", err)
				}
			}
			return nil
		},
	},
	{
		Version:     2,
		Description: "Response analytics",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE TABLE IF NOT EXISTS response_analytics (
					id TEXT PRIMARY KEY,
					email_id TEXT NOT NULL,
					job_id TEXT,
					response_type TEXT NOT NULL,
					company_name TEXT NOT NULL,
					position_title TEXT,
					effort_level TEXT,
					application_date DATETIME,
					response_date DATETIME NOT NULL,
					days_to_response INTEGER,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					FOREIGN KEY (email_id) REFERENCES emails(id)
				)`,
				`CREATE UNIQUE INDEX idx_analytics_email ON response_analytics(email_id)`,
				`CREATE INDEX idx_analytics_company ON response_analytics(company_name, response_type, response_date)`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query: %w", err)
				}
			}
			return nil
		},
	},
}

// Migrate brings the database schema up to the expected version.
func (s *SQLiteStorage) Migrate(ctx context.Context) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	var currentVersion int
	err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&currentVersion)
	if err != nil {
		return fmt.Errorf("failed to get schema version: %w", err)
	}

	for _, migration := range migrations {
		if migration.Version <= currentVersion {
			continue
		}

		tx, txErr := s.db.BeginTx(ctx, nil)
		if txErr != nil {
			return fmt.Errorf("failed to begin transaction: %w", txErr)
		}

		if upErr := migration.Up(tx); upErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d failed: %w", migration.Version, upErr)
		}

		if _, execErr := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", migration.Version)); execErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to update schema version: %w", execErr)
		}

		if commitErr := tx.Commit(); commitErr != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, commitErr)
		}

		slog.Info("Applied migration",
			"version", migration.Version,
			"description", migration.Description)
	}

	var finalVersion int
	err = s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&finalVersion)
	if err != nil {
		return fmt.Errorf("failed to verify final schema version: %w", err)
	}

	if finalVersion != ExpectedSchemaVersion {
		return fmt.Errorf("database schema version mismatch: expected %d, got %d", ExpectedSchemaVersion, finalVersion)
	}

	return nil
}
