package disambig

import (
	"context"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mfairbanks/jobsignal/internal/common"
	"github.com/mfairbanks/jobsignal/internal/llm"
	"github.com/mfairbanks/jobsignal/internal/model"
	"github.com/mfairbanks/jobsignal/internal/service"
)

var fastRetry = service.RetryOptions{
	MaxAttempts:  2,
	InitialDelay: time.Millisecond,
	MaxDelay:     5 * time.Millisecond,
}

// stubClient replays scripted responses and records the prompts it saw.
type stubClient struct {
	responses []llm.SelectionResponse
	errs      []error
	prompts   []string
	calls     int
	delay     time.Duration
}

func (s *stubClient) SelectCandidate(ctx context.Context, prompt string) (llm.SelectionResponse, error) {
	idx := s.calls
	s.calls++
	s.prompts = append(s.prompts, prompt)

	if s.delay > 0 {
		select {
		case <-ctx.Done():
			return llm.SelectionResponse{}, ctx.Err()
		case <-time.After(s.delay):
		}
	}

	var err error
	if idx < len(s.errs) {
		err = s.errs[idx]
	}
	if err != nil {
		return llm.SelectionResponse{}, err
	}

	var resp llm.SelectionResponse
	if idx < len(s.responses) {
		resp = s.responses[idx]
	}
	return resp, nil
}

func testEmail() model.EmailRecord {
	return model.EmailRecord{
		ID:          "email-1",
		ExternalID:  "ext-1",
		Subject:     "Interview availability",
		SenderName:  "Dana Recruiter",
		SenderEmail: "dana@acme.com",
		BodyText:    "We would like to schedule an interview for the Platform Engineer role.",
		ReceivedAt:  time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC),
	}
}

func testCandidates() model.MatchCandidates {
	applied := time.Date(2026, 2, 20, 0, 0, 0, 0, time.UTC)
	return model.MatchCandidates{
		{
			Job:       model.JobCandidate{ID: "job-1", CompanyName: "Acme", PositionTitle: "Platform Engineer", AppliedAt: applied},
			Composite: 0.72,
		},
		{
			Job:       model.JobCandidate{ID: "job-2", CompanyName: "Acme Labs", PositionTitle: "Backend Engineer", AppliedAt: applied},
			Composite: 0.69,
		},
	}
}

func TestResolverSelect(t *testing.T) {
	client := &stubClient{
		responses: []llm.SelectionResponse{
			{JobID: "job-1", Confident: true, Reasoning: "title matches the body"},
		},
	}
	r := NewResolver(client, time.Second, nil)

	sel, err := r.Select(context.Background(), testEmail(), testCandidates())
	require.NoError(t, err)
	require.NotNil(t, sel.Candidate)
	assert.Equal(t, "job-1", sel.Candidate.Job.ID)
	assert.True(t, sel.Confident)
	assert.Equal(t, "title matches the body", sel.Reasoning)
	assert.Equal(t, 1, client.calls)

	require.Len(t, client.prompts, 1)
	assert.Contains(t, client.prompts[0], "Interview availability")
	assert.Contains(t, client.prompts[0], "job-1")
	assert.Contains(t, client.prompts[0], "job-2")
}

func TestResolverPromptTruncatesOnRuneBoundary(t *testing.T) {
	client := &stubClient{
		responses: []llm.SelectionResponse{
			{JobID: "job-1", Confident: true},
		},
	}
	r := NewResolver(client, time.Second, nil)

	email := testEmail()
	// Leading ASCII byte puts every two-byte rune off the limit's parity, so
	// a byte-index cut would split one
	email.BodyText = "a" + strings.Repeat("ü", promptBodyLimit)

	_, err := r.Select(context.Background(), email, testCandidates())
	require.NoError(t, err)

	require.Len(t, client.prompts, 1)
	assert.True(t, utf8.ValidString(client.prompts[0]))
}

func TestResolverDeclinedChoice(t *testing.T) {
	client := &stubClient{
		responses: []llm.SelectionResponse{
			{JobID: "", Confident: false, Reasoning: "neither fits"},
		},
	}
	r := NewResolver(client, time.Second, nil)

	sel, err := r.Select(context.Background(), testEmail(), testCandidates())
	require.NoError(t, err)
	assert.Nil(t, sel.Candidate)
	assert.False(t, sel.Confident)
}

func TestResolverUnknownCandidate(t *testing.T) {
	client := &stubClient{
		responses: []llm.SelectionResponse{
			{JobID: "job-99", Confident: true, Reasoning: "made up"},
		},
	}
	r := NewResolver(client, time.Second, nil)

	_, err := r.Select(context.Background(), testEmail(), testCandidates())
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrMalformedResponse)
}

func TestResolverRetriesRateLimitOnce(t *testing.T) {
	client := &stubClient{
		errs: []error{common.ErrRateLimited, nil},
		responses: []llm.SelectionResponse{
			{},
			{JobID: "job-2", Confident: true, Reasoning: "second try"},
		},
	}
	r := NewResolver(client, 30*time.Second, nil)
	r.retry = fastRetry

	sel, err := r.Select(context.Background(), testEmail(), testCandidates())
	require.NoError(t, err)
	require.NotNil(t, sel.Candidate)
	assert.Equal(t, "job-2", sel.Candidate.Job.ID)
	assert.Equal(t, 2, client.calls)
}

func TestResolverRateLimitExhausted(t *testing.T) {
	client := &stubClient{
		errs: []error{common.ErrRateLimited, common.ErrRateLimited},
	}
	r := NewResolver(client, 30*time.Second, nil)
	r.retry = fastRetry

	_, err := r.Select(context.Background(), testEmail(), testCandidates())
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrMaxRetries)
	assert.Equal(t, 2, client.calls, "rate limits get exactly one retry")
}

func TestResolverNonRetryableErrorFailsFast(t *testing.T) {
	client := &stubClient{
		errs: []error{common.ErrMalformedResponse},
	}
	r := NewResolver(client, time.Second, nil)

	_, err := r.Select(context.Background(), testEmail(), testCandidates())
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrMalformedResponse)
	assert.Equal(t, 1, client.calls)
}

func TestResolverTimeout(t *testing.T) {
	client := &stubClient{delay: 500 * time.Millisecond}
	r := NewResolver(client, 50*time.Millisecond, nil)

	_, err := r.Select(context.Background(), testEmail(), testCandidates())
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrDisambiguationTimeout)
}

func TestResolverRequiresTwoCandidates(t *testing.T) {
	r := NewResolver(&stubClient{}, time.Second, nil)

	_, err := r.Select(context.Background(), testEmail(), testCandidates()[:1])
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrInvalidInput)
}
