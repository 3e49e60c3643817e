package storage

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mfairbanks/jobsignal/internal/common"
	"github.com/mfairbanks/jobsignal/internal/model"
)

func newTestReviewEntry(emailID string) *model.ReviewQueueEntry {
	return &model.ReviewQueueEntry{
		ID:        uuid.NewString(),
		EmailID:   emailID,
		Reason:    model.ReasonLowConfidenceMatch,
		Status:    model.ReviewPending,
		Priority:  model.PriorityNormal,
		CreatedAt: time.Now().UTC(),
	}
}

func TestEnqueueReviewAndGet(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()
	email := saveTestEmail(t, store, "msg-1")

	entry := newTestReviewEntry(email.ID)
	require.NoError(t, store.EnqueueReview(ctx, entry))

	got, err := store.GetReviewEntry(ctx, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ReviewPending, got.Status)
	assert.Equal(t, model.ReasonLowConfidenceMatch, got.Reason)
	assert.Equal(t, model.PriorityNormal, got.Priority)
}

func TestEnqueueReviewDuplicateActive(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()
	email := saveTestEmail(t, store, "msg-1")

	require.NoError(t, store.EnqueueReview(ctx, newTestReviewEntry(email.ID)))

	err := store.EnqueueReview(ctx, newTestReviewEntry(email.ID))
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrDuplicateEntry)
}

func TestEnqueueReviewAfterTerminalEntry(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()
	email := saveTestEmail(t, store, "msg-1")

	entry := newTestReviewEntry(email.ID)
	require.NoError(t, store.EnqueueReview(ctx, entry))

	now := time.Now().UTC()
	entry.Status = model.ReviewSkipped
	entry.ResolutionAction = model.ActionSkip
	entry.ResolvedAt = &now
	require.NoError(t, store.UpdateReviewEntry(ctx, entry))

	// Terminal entries don't block a fresh escalation
	require.NoError(t, store.EnqueueReview(ctx, newTestReviewEntry(email.ID)))
}

func TestGetActiveReviewEntry(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()
	email := saveTestEmail(t, store, "msg-1")

	_, err := store.GetActiveReviewEntry(ctx, email.ID)
	assert.ErrorIs(t, err, common.ErrNotFound)

	entry := newTestReviewEntry(email.ID)
	require.NoError(t, store.EnqueueReview(ctx, entry))

	got, err := store.GetActiveReviewEntry(ctx, email.ID)
	require.NoError(t, err)
	assert.Equal(t, entry.ID, got.ID)
}

func TestGetPendingReviewsOrdering(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	low := saveTestEmail(t, store, "msg-low")
	urgent := saveTestEmail(t, store, "msg-urgent")

	lowEntry := newTestReviewEntry(low.ID)
	lowEntry.CreatedAt = time.Now().UTC().Add(-time.Hour)
	require.NoError(t, store.EnqueueReview(ctx, lowEntry))

	urgentEntry := newTestReviewEntry(urgent.ID)
	urgentEntry.Priority = model.PriorityUrgent
	require.NoError(t, store.EnqueueReview(ctx, urgentEntry))

	entries, err := store.GetPendingReviews(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, urgentEntry.ID, entries[0].ID, "urgent entries sort first")
	assert.Equal(t, lowEntry.ID, entries[1].ID)
}

func TestGetPendingReviewsIncludesInProgress(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	claimed := saveTestEmail(t, store, "msg-claimed")
	fresh := saveTestEmail(t, store, "msg-fresh")

	claimedEntry := newTestReviewEntry(claimed.ID)
	require.NoError(t, store.EnqueueReview(ctx, claimedEntry))
	claimedEntry.Status = model.ReviewInProgress
	claimedEntry.Assignee = "morgan"
	require.NoError(t, store.UpdateReviewEntry(ctx, claimedEntry))

	freshEntry := newTestReviewEntry(fresh.ID)
	freshEntry.Priority = model.PriorityUrgent
	require.NoError(t, store.EnqueueReview(ctx, freshEntry))

	// An abandoned claim is still triageable and sorts ahead of pending
	// work regardless of priority
	entries, err := store.GetPendingReviews(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, claimedEntry.ID, entries[0].ID)
	assert.Equal(t, model.ReviewInProgress, entries[0].Status)
	assert.Equal(t, freshEntry.ID, entries[1].ID)
}

func TestUpdateReviewEntryTransitions(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()
	email := saveTestEmail(t, store, "msg-1")

	entry := newTestReviewEntry(email.ID)
	require.NoError(t, store.EnqueueReview(ctx, entry))

	entry.Status = model.ReviewInProgress
	entry.Assignee = "morgan"
	require.NoError(t, store.UpdateReviewEntry(ctx, entry))

	now := time.Now().UTC()
	entry.Status = model.ReviewCompleted
	entry.ResolutionAction = model.ActionLink
	entry.ResolutionNotes = "linked by hand"
	entry.ResolvedAt = &now
	require.NoError(t, store.UpdateReviewEntry(ctx, entry))

	got, err := store.GetReviewEntry(ctx, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ReviewCompleted, got.Status)
	assert.Equal(t, "morgan", got.Assignee)
	assert.Equal(t, model.ActionLink, got.ResolutionAction)
	require.NotNil(t, got.ResolvedAt)
}

func TestUpdateReviewEntryRejectsTerminalTransition(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()
	email := saveTestEmail(t, store, "msg-1")

	entry := newTestReviewEntry(email.ID)
	require.NoError(t, store.EnqueueReview(ctx, entry))

	entry.Status = model.ReviewCompleted
	require.NoError(t, store.UpdateReviewEntry(ctx, entry))

	entry.Status = model.ReviewInProgress
	err := store.UpdateReviewEntry(ctx, entry)
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrAlreadyResolved)
}

func TestUpdateReviewEntryMissing(t *testing.T) {
	store := newTestStorage(t)

	entry := newTestReviewEntry("email-1")
	err := store.UpdateReviewEntry(context.Background(), entry)
	assert.ErrorIs(t, err, common.ErrNotFound)
}
