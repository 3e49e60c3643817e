package review

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mfairbanks/jobsignal/internal/common"
	"github.com/mfairbanks/jobsignal/internal/model"
	"github.com/mfairbanks/jobsignal/internal/storage"
)

type fixture struct {
	store   *storage.SQLiteStorage
	manager *Manager
	email   *model.EmailRecord
	job     *model.JobCandidate
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	store, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	require.NoError(t, store.Migrate(ctx))

	email, err := store.SaveEmail(ctx, &model.EmailRecord{
		ExternalID:  "msg-1",
		Subject:     "Interview availability",
		SenderEmail: "dana@acme.com",
		Category:    model.CategoryInterviewInvite,
		ReceivedAt:  time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	job := &model.JobCandidate{
		ID:            uuid.NewString(),
		CompanyName:   "Acme",
		PositionTitle: "Platform Engineer",
		AppliedAt:     time.Date(2026, 2, 20, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, store.SaveJob(ctx, job))

	return &fixture{
		store:   store,
		manager: NewManager(store, nil),
		email:   email,
		job:     job,
	}
}

func (f *fixture) enqueue(t *testing.T) *model.ReviewQueueEntry {
	t.Helper()
	entry, err := f.manager.Enqueue(context.Background(), f.email.ID, model.ReasonLowConfidenceMatch, 0)
	require.NoError(t, err)
	return entry
}

func (f *fixture) seedOutcome(t *testing.T) *model.MatchOutcome {
	t.Helper()
	outcome := &model.MatchOutcome{
		ID:          uuid.NewString(),
		EmailID:     f.email.ID,
		JobID:       &f.job.ID,
		Method:      model.MethodAuto,
		Score:       0.65,
		NeedsReview: true,
		CreatedAt:   time.Now().UTC(),
	}
	require.NoError(t, f.store.UpsertOutcome(context.Background(), outcome))
	return outcome
}

func TestEnqueueDefaultsPriority(t *testing.T) {
	f := newFixture(t)

	entry := f.enqueue(t)
	assert.Equal(t, model.PriorityNormal, entry.Priority)
	assert.Equal(t, model.ReviewPending, entry.Status)
}

func TestEnqueueDuplicate(t *testing.T) {
	f := newFixture(t)
	f.enqueue(t)

	_, err := f.manager.Enqueue(context.Background(), f.email.ID, model.ReasonNoMatchFound, 0)
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrDuplicateEntry)
}

func TestBegin(t *testing.T) {
	f := newFixture(t)
	entry := f.enqueue(t)

	claimed, err := f.manager.Begin(context.Background(), entry.ID, "morgan")
	require.NoError(t, err)
	assert.Equal(t, model.ReviewInProgress, claimed.Status)
	assert.Equal(t, "morgan", claimed.Assignee)
}

func TestBeginResumesAbandonedClaim(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	entry := f.enqueue(t)

	_, err := f.manager.Begin(ctx, entry.ID, "morgan")
	require.NoError(t, err)

	// A claimed entry stays triageable: it is still listed and a later
	// session can claim it again and resolve it.
	pending, err := f.manager.ListPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, entry.ID, pending[0].ID)
	assert.Equal(t, model.ReviewInProgress, pending[0].Status)

	resumed, err := f.manager.Begin(ctx, entry.ID, "riley")
	require.NoError(t, err)
	assert.Equal(t, model.ReviewInProgress, resumed.Status)
	assert.Equal(t, "riley", resumed.Assignee)

	resolved, err := f.manager.Resolve(ctx, entry.ID, model.ActionSkip, "", "")
	require.NoError(t, err)
	assert.Equal(t, model.ReviewSkipped, resolved.Status)
}

func TestResolveLink(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedOutcome(t)
	entry := f.enqueue(t)

	resolved, err := f.manager.Resolve(ctx, entry.ID, model.ActionLink, f.job.ID, "clearly the same role")
	require.NoError(t, err)
	assert.Equal(t, model.ReviewCompleted, resolved.Status)
	assert.Equal(t, model.ActionLink, resolved.ResolutionAction)
	require.NotNil(t, resolved.ResolvedAt)

	outcome, err := f.store.GetOutcomeByEmail(ctx, f.email.ID)
	require.NoError(t, err)
	require.NotNil(t, outcome.JobID)
	assert.Equal(t, f.job.ID, *outcome.JobID)
	assert.Equal(t, model.MethodManual, outcome.Method)
	assert.False(t, outcome.NeedsReview)
	assert.True(t, outcome.Resolved)
	assert.Equal(t, "clearly the same role", outcome.ReviewerNotes)
}

func TestResolveLinkRequiresJob(t *testing.T) {
	f := newFixture(t)
	entry := f.enqueue(t)

	_, err := f.manager.Resolve(context.Background(), entry.ID, model.ActionLink, "", "")
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrInvalidInput)

	_, err = f.manager.Resolve(context.Background(), entry.ID, model.ActionLink, "no-such-job", "")
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestResolveNoMatch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedOutcome(t)
	entry := f.enqueue(t)

	resolved, err := f.manager.Resolve(ctx, entry.ID, model.ActionNoMatch, "", "not one of ours")
	require.NoError(t, err)
	assert.Equal(t, model.ReviewCompleted, resolved.Status)

	outcome, err := f.store.GetOutcomeByEmail(ctx, f.email.ID)
	require.NoError(t, err)
	assert.Nil(t, outcome.JobID)
	assert.True(t, outcome.Resolved)
	assert.False(t, outcome.NeedsReview)
}

func TestResolveNoMatchWithoutExistingOutcome(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	entry := f.enqueue(t)

	_, err := f.manager.Resolve(ctx, entry.ID, model.ActionNoMatch, "", "")
	require.NoError(t, err)

	outcome, err := f.store.GetOutcomeByEmail(ctx, f.email.ID)
	require.NoError(t, err)
	assert.Nil(t, outcome.JobID)
	assert.Equal(t, model.MethodManual, outcome.Method)
}

func TestResolveSkip(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	entry := f.enqueue(t)

	resolved, err := f.manager.Resolve(ctx, entry.ID, model.ActionSkip, "", "come back later")
	require.NoError(t, err)
	assert.Equal(t, model.ReviewSkipped, resolved.Status)
	assert.Equal(t, 1, resolved.SkipCount)
	assert.Equal(t, model.PriorityNormal-2, resolved.Priority)

	// skipped is terminal for the entry, not the email
	again, err := f.manager.Enqueue(ctx, f.email.ID, model.ReasonLowConfidenceMatch, 0)
	require.NoError(t, err)
	assert.NotEqual(t, entry.ID, again.ID)
}

func TestResolveAlreadyResolved(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	entry := f.enqueue(t)

	_, err := f.manager.Resolve(ctx, entry.ID, model.ActionSkip, "", "")
	require.NoError(t, err)

	_, err = f.manager.Resolve(ctx, entry.ID, model.ActionNoMatch, "", "")
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrAlreadyResolved)
}

func TestResolveUnknownAction(t *testing.T) {
	f := newFixture(t)
	entry := f.enqueue(t)

	_, err := f.manager.Resolve(context.Background(), entry.ID, model.ReviewAction("archive"), "", "")
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrInvalidInput)
}
