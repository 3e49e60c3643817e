// Package review implements the manual-review queue: escalated emails wait
// here until a human links them to a job, records a no-match, or skips them.
package review

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/mfairbanks/jobsignal/internal/common"
	"github.com/mfairbanks/jobsignal/internal/model"
	"github.com/mfairbanks/jobsignal/internal/service"
)

// skipPriorityPenalty is subtracted from the entry's priority when it is
// skipped, so a re-enqueued email sorts behind fresher work.
const skipPriorityPenalty = 2

// Manager owns every state transition of review queue entries. Nothing else
// writes to the queue.
type Manager struct {
	storage service.Storage
	logger  *slog.Logger
}

// NewManager creates a review queue manager.
func NewManager(storage service.Storage, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{storage: storage, logger: logger}
}

// Enqueue creates a pending entry for the email. It fails with
// common.ErrDuplicateEntry when a non-terminal entry already exists, keeping
// re-processed emails from piling up in the queue.
func (m *Manager) Enqueue(ctx context.Context, emailID string, reason model.ReviewReason, priority int) (*model.ReviewQueueEntry, error) {
	if emailID == "" {
		return nil, fmt.Errorf("%w: email id is required", common.ErrInvalidInput)
	}
	if priority == 0 {
		priority = model.PriorityNormal
	}

	existing, err := m.storage.GetActiveReviewEntry(ctx, emailID)
	if err != nil && !errors.Is(err, common.ErrNotFound) {
		return nil, fmt.Errorf("failed to check for active review entry: %w", err)
	}
	if existing != nil {
		return nil, fmt.Errorf("%w: email %s already has review entry %s (%s)",
			common.ErrDuplicateEntry, emailID, existing.ID, existing.Status)
	}

	entry := &model.ReviewQueueEntry{
		ID:        uuid.NewString(),
		EmailID:   emailID,
		Reason:    reason,
		Status:    model.ReviewPending,
		Priority:  priority,
		CreatedAt: time.Now().UTC(),
	}
	if err := entry.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrInvalidInput, err)
	}

	if err := m.storage.EnqueueReview(ctx, entry); err != nil {
		return nil, fmt.Errorf("failed to enqueue review entry: %w", err)
	}

	m.logger.Info("Queued email for manual review",
		"entry_id", entry.ID,
		"email_id", emailID,
		"reason", reason,
		"priority", priority)

	return entry, nil
}

// Begin claims a pending entry for a reviewer, moving it to in_progress.
// Claiming an entry that is already in_progress reassigns it, so a session
// that died mid-triage can be resumed.
func (m *Manager) Begin(ctx context.Context, entryID, assignee string) (*model.ReviewQueueEntry, error) {
	entry, err := m.storage.GetReviewEntry(ctx, entryID)
	if err != nil {
		return nil, err
	}

	if entry.Status.IsTerminal() {
		return nil, fmt.Errorf("%w: entry %s is %s", common.ErrAlreadyResolved, entryID, entry.Status)
	}
	if entry.Status != model.ReviewInProgress && !entry.Status.CanTransitionTo(model.ReviewInProgress) {
		return nil, fmt.Errorf("%w: cannot begin review from %s", common.ErrInvalidInput, entry.Status)
	}

	entry.Status = model.ReviewInProgress
	entry.Assignee = assignee

	if err := m.storage.UpdateReviewEntry(ctx, entry); err != nil {
		return nil, fmt.Errorf("failed to update review entry: %w", err)
	}
	return entry, nil
}

// ListPending returns entries awaiting triage, abandoned in_progress claims
// first, then pending entries by priority.
func (m *Manager) ListPending(ctx context.Context, limit int) ([]model.ReviewQueueEntry, error) {
	return m.storage.GetPendingReviews(ctx, limit)
}

// Resolve applies a human decision to a queue entry.
//
// link completes the entry and points the email's outcome at jobID; no_match
// completes the entry and nulls the outcome's job reference. skip is terminal
// for the entry itself but not for the email: the entry moves to skipped with
// a lowered priority, and the email may be enqueued again later.
//
// Resolving an entry that is already terminal fails with
// common.ErrAlreadyResolved.
func (m *Manager) Resolve(ctx context.Context, entryID string, action model.ReviewAction, jobID, notes string) (*model.ReviewQueueEntry, error) {
	entry, err := m.storage.GetReviewEntry(ctx, entryID)
	if err != nil {
		return nil, err
	}

	if entry.Status.IsTerminal() {
		return nil, fmt.Errorf("%w: entry %s is %s", common.ErrAlreadyResolved, entryID, entry.Status)
	}

	now := time.Now().UTC()

	switch action {
	case model.ActionLink:
		if jobID == "" {
			return nil, fmt.Errorf("%w: link requires a job id", common.ErrInvalidInput)
		}
		if _, err := m.storage.GetJobByID(ctx, jobID); err != nil {
			return nil, fmt.Errorf("failed to load job %s: %w", jobID, err)
		}
		if err := m.resolveOutcome(ctx, entry.EmailID, &jobID, notes, now); err != nil {
			return nil, err
		}
		entry.Status = model.ReviewCompleted

	case model.ActionNoMatch:
		if err := m.resolveOutcome(ctx, entry.EmailID, nil, notes, now); err != nil {
			return nil, err
		}
		entry.Status = model.ReviewCompleted

	case model.ActionSkip:
		entry.Status = model.ReviewSkipped
		entry.SkipCount++
		entry.Priority = max(1, entry.Priority-skipPriorityPenalty)

	default:
		return nil, fmt.Errorf("%w: unknown review action %q", common.ErrInvalidInput, action)
	}

	entry.ResolutionAction = action
	entry.ResolutionNotes = notes
	entry.ResolvedAt = &now

	if err := m.storage.UpdateReviewEntry(ctx, entry); err != nil {
		return nil, fmt.Errorf("failed to update review entry: %w", err)
	}

	m.logger.Info("Resolved review entry",
		"entry_id", entry.ID,
		"email_id", entry.EmailID,
		"action", action,
		"status", entry.Status)

	return entry, nil
}

// resolveOutcome updates the email's match outcome for a link or no_match
// decision, creating one if the email somehow has none.
func (m *Manager) resolveOutcome(ctx context.Context, emailID string, jobID *string, notes string, now time.Time) error {
	outcome, err := m.storage.GetOutcomeByEmail(ctx, emailID)
	if errors.Is(err, common.ErrNotFound) {
		outcome = &model.MatchOutcome{
			ID:        uuid.NewString(),
			EmailID:   emailID,
			CreatedAt: now,
		}
	} else if err != nil {
		return fmt.Errorf("failed to load outcome for email %s: %w", emailID, err)
	}

	outcome.JobID = jobID
	outcome.Method = model.MethodManual
	outcome.NeedsReview = false
	outcome.Resolved = true
	outcome.ResolvedAt = &now
	outcome.ReviewerNotes = notes

	if err := m.storage.UpsertOutcome(ctx, outcome); err != nil {
		return fmt.Errorf("failed to update outcome for email %s: %w", emailID, err)
	}
	return nil
}
