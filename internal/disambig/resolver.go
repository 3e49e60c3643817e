// Package disambig asks the completion service to choose between near-tied
// match candidates that fuzzy scoring alone could not separate.
package disambig

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/mfairbanks/jobsignal/internal/common"
	"github.com/mfairbanks/jobsignal/internal/llm"
	"github.com/mfairbanks/jobsignal/internal/model"
	"github.com/mfairbanks/jobsignal/internal/service"
)

const (
	defaultTimeout  = 30 * time.Second
	promptBodyLimit = 1000
)

// Selection is the resolver's verdict for one ambiguous email.
type Selection struct {
	Candidate *model.MatchCandidate // nil when the service declined to choose
	Reasoning string
	Confident bool
}

// Resolver sends ambiguous candidate sets to the completion service and
// validates the structured choice that comes back.
type Resolver struct {
	client  llm.Client
	logger  *slog.Logger
	timeout time.Duration
	retry   service.RetryOptions
}

// NewResolver creates a resolver with the given client and per-request timeout.
func NewResolver(client llm.Client, timeout time.Duration, logger *slog.Logger) *Resolver {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		client:  client,
		logger:  logger,
		timeout: timeout,
		retry: service.RetryOptions{
			MaxAttempts:  2,
			InitialDelay: time.Second,
			MaxDelay:     5 * time.Second,
		},
	}
}

// Select asks the completion service to pick among the offered candidates.
// Rate-limited requests are retried exactly once with backoff; a request that
// outlives the timeout fails with common.ErrDisambiguationTimeout. The
// returned choice must name one of the offered candidates, anything else is
// common.ErrMalformedResponse.
func (r *Resolver) Select(ctx context.Context, email model.EmailRecord, candidates model.MatchCandidates) (*Selection, error) {
	if len(candidates) < 2 {
		return nil, fmt.Errorf("%w: disambiguation needs at least two candidates, got %d",
			common.ErrInvalidInput, len(candidates))
	}

	prompt := buildPrompt(email, candidates)

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var resp llm.SelectionResponse
	err := common.WithRetry(ctx, func() error {
		var callErr error
		resp, callErr = r.client.SelectCandidate(ctx, prompt)
		if callErr != nil {
			return &common.RetryableError{
				Err:       callErr,
				Retryable: errors.Is(callErr, common.ErrRateLimited),
			}
		}
		return nil
	}, r.retry)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %v", common.ErrDisambiguationTimeout, err)
		}
		return nil, err
	}

	if resp.JobID == "" {
		r.logger.Info("Disambiguation declined to choose",
			"email_id", email.ID,
			"candidates", len(candidates))
		return &Selection{Reasoning: resp.Reasoning, Confident: false}, nil
	}

	for i := range candidates {
		if candidates[i].Job.ID == resp.JobID {
			return &Selection{
				Candidate: &candidates[i],
				Reasoning: resp.Reasoning,
				Confident: resp.Confident,
			}, nil
		}
	}

	return nil, fmt.Errorf("%w: selection %q is not among the offered candidates",
		common.ErrMalformedResponse, resp.JobID)
}

// buildPrompt renders the email context and the offered candidates.
func buildPrompt(email model.EmailRecord, candidates model.MatchCandidates) string {
	var b strings.Builder

	b.WriteString("An email needs to be linked to exactly one of the job applications below, or to none.\n\n")
	b.WriteString("Email:\n")
	fmt.Fprintf(&b, "  Subject: %s\n", email.Subject)
	fmt.Fprintf(&b, "  From: %s <%s>\n", email.SenderName, email.SenderEmail)
	fmt.Fprintf(&b, "  Received: %s\n", email.ReceivedAt.Format("2006-01-02"))

	if excerpt := bodyExcerpt(email); excerpt != "" {
		fmt.Fprintf(&b, "  Body excerpt: %s\n", excerpt)
	}

	b.WriteString("\nCandidate applications:\n")
	for _, c := range candidates {
		fmt.Fprintf(&b, "  - id: %s | company: %s | title: %s | score: %.4f | applied: %s\n",
			c.Job.ID, c.Job.CompanyName, c.Job.PositionTitle, c.Composite,
			c.Job.AppliedAt.Format("2006-01-02"))
	}

	b.WriteString("\nRespond with JSON: {\"job_id\": \"<id or empty string>\", \"confident\": <bool>, \"reasoning\": \"<one sentence>\"}\n")
	b.WriteString("Use an empty job_id with confident=false if no candidate is clearly the right one.")

	return b.String()
}

func bodyExcerpt(email model.EmailRecord) string {
	body := email.BodyText
	if body == "" {
		body = email.BodyHTML
	}
	body = strings.Join(strings.Fields(body), " ")
	if len(body) > promptBodyLimit {
		cut := promptBodyLimit
		for cut > 0 && !utf8.RuneStart(body[cut]) {
			cut--
		}
		body = body[:cut]
	}
	return body
}
