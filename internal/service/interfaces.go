// Package service defines the interfaces for all application services.
package service

import (
	"context"
	"time"

	"github.com/mfairbanks/jobsignal/internal/model"
)

// Storage defines the contract for our persistence layer.
type Storage interface {
	// Email operations
	SaveEmail(ctx context.Context, email *model.EmailRecord) (*model.EmailRecord, error)
	GetEmailByExternalID(ctx context.Context, externalID string) (*model.EmailRecord, error)
	GetEmailByID(ctx context.Context, id string) (*model.EmailRecord, error)
	GetEmailsToProcess(ctx context.Context, limit int) ([]model.EmailRecord, error)
	MarkEmailProcessed(ctx context.Context, id string, processErr error) error

	// Job candidate operations (read-only projection of the external store)
	FetchCandidates(ctx context.Context, since time.Time) ([]model.JobCandidate, error)
	GetJobByID(ctx context.Context, id string) (*model.JobCandidate, error)

	// Match outcome operations
	UpsertOutcome(ctx context.Context, outcome *model.MatchOutcome) error
	GetOutcomeByEmail(ctx context.Context, emailID string) (*model.MatchOutcome, error)

	// Review queue operations
	EnqueueReview(ctx context.Context, entry *model.ReviewQueueEntry) error
	GetReviewEntry(ctx context.Context, id string) (*model.ReviewQueueEntry, error)
	GetActiveReviewEntry(ctx context.Context, emailID string) (*model.ReviewQueueEntry, error)
	GetPendingReviews(ctx context.Context, limit int) ([]model.ReviewQueueEntry, error)
	UpdateReviewEntry(ctx context.Context, entry *model.ReviewQueueEntry) error

	// Response analytics
	RecordResponse(ctx context.Context, r *model.ResponseRecord) error
	CountCompanyRejections(ctx context.Context, companyName string, since time.Time) (int, error)

	// Database management
	Migrate(ctx context.Context) error
	Close() error
}

// MatchStats shows the results of one processing cycle.
type MatchStats struct {
	Processed     int
	AutoMatched   int
	Disambiguated int
	QueuedReview  int
	NoMatch       int
	Errors        int
}

// RetryOptions configures retry behavior for operations.
type RetryOptions struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}
