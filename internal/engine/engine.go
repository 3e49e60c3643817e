// Package engine drives the matching pipeline: it pulls unprocessed emails,
// scores them against the windowed candidate pool, escalates ambiguous or
// low-confidence results, and persists exactly one outcome per email.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mfairbanks/jobsignal/internal/common"
	"github.com/mfairbanks/jobsignal/internal/disambig"
	"github.com/mfairbanks/jobsignal/internal/model"
	"github.com/mfairbanks/jobsignal/internal/review"
	"github.com/mfairbanks/jobsignal/internal/scoring"
	"github.com/mfairbanks/jobsignal/internal/service"
)

const (
	defaultMaxConcurrent = 4
	defaultBatchSize     = 50

	// rejectionStreakWindow bounds the lookback for the repeated-rejection
	// warning; rejectionStreakLimit is how many trigger it.
	rejectionStreakWindow = 180 * 24 * time.Hour
	rejectionStreakLimit  = 3
)

// Selector chooses among near-tied candidates. It abstracts the completion
// service so the engine never touches transport details and tests can inject
// a deterministic double.
type Selector interface {
	Select(ctx context.Context, email model.EmailRecord, candidates model.MatchCandidates) (*disambig.Selection, error)
}

// Config holds engine tuning knobs.
type Config struct {
	MaxConcurrent int // concurrent per-email workers per cycle
	BatchSize     int // emails pulled per cycle
}

// Engine matches emails to job applications.
type Engine struct {
	storage  service.Storage
	scorer   *scoring.Scorer
	selector Selector // nil disables disambiguation entirely
	reviews  *review.Manager
	logger   *slog.Logger
	scoreCfg scoring.Config
	cfg      Config
}

// New creates a matching engine. selector may be nil, in which case ambiguous
// rankings fall through to the undisambiguated top candidate.
func New(storage service.Storage, selector Selector, scoreCfg scoring.Config, cfg Config, logger *slog.Logger) (*Engine, error) {
	scorer, err := scoring.NewScorer(scoreCfg)
	if err != nil {
		return nil, err
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = defaultMaxConcurrent
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Engine{
		storage:  storage,
		scorer:   scorer,
		selector: selector,
		reviews:  review.NewManager(storage, logger),
		logger:   logger,
		scoreCfg: scoreCfg,
		cfg:      cfg,
	}, nil
}

// ProcessCycle matches one batch of unprocessed emails. Distinct emails are
// independent and run concurrently up to MaxConcurrent; a failure on one email
// never stops the rest of the batch.
func (e *Engine) ProcessCycle(ctx context.Context) (*service.MatchStats, error) {
	emails, err := e.storage.GetEmailsToProcess(ctx, e.cfg.BatchSize)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch emails to process: %w", err)
	}
	if len(emails) == 0 {
		return &service.MatchStats{}, nil
	}

	e.logger.Info("Starting match cycle",
		"emails", len(emails),
		"workers", e.cfg.MaxConcurrent)

	var (
		stats service.MatchStats
		mu    sync.Mutex
		wg    sync.WaitGroup
	)
	sem := make(chan struct{}, e.cfg.MaxConcurrent)

	for i := range emails {
		select {
		case <-ctx.Done():
			wg.Wait()
			return &stats, ctx.Err()
		case sem <- struct{}{}:
		}

		wg.Add(1)
		go func(email model.EmailRecord) {
			defer wg.Done()
			defer func() { <-sem }()

			res, err := e.ProcessEmail(ctx, email)

			mu.Lock()
			defer mu.Unlock()
			stats.Processed++
			if err != nil {
				stats.Errors++
				return
			}
			switch res.Decision {
			case DecisionAutoMatch:
				stats.AutoMatched++
			case DecisionReview:
				stats.QueuedReview++
			case DecisionNoMatch:
				stats.NoMatch++
			}
			if res.Disambiguated {
				stats.Disambiguated++
			}
		}(emails[i])
	}

	wg.Wait()

	e.logger.Info("Match cycle complete",
		"processed", stats.Processed,
		"auto_matched", stats.AutoMatched,
		"disambiguated", stats.Disambiguated,
		"queued_review", stats.QueuedReview,
		"no_match", stats.NoMatch,
		"errors", stats.Errors)

	return &stats, nil
}

// Result describes what happened to one email.
type Result struct {
	Outcome       *model.MatchOutcome
	Decision      Decision
	Disambiguated bool
}

// ProcessEmail matches a single email and persists its outcome. All writes
// are idempotent; re-processing the same email updates rather than duplicates.
func (e *Engine) ProcessEmail(ctx context.Context, email model.EmailRecord) (Result, error) {
	if err := email.Validate(); err != nil {
		verr := fmt.Errorf("%w: %v", common.ErrInvalidInput, err)
		e.logger.Error("Skipping malformed email",
			"email_id", email.ID,
			"error", err)
		if email.ID != "" {
			_ = e.storage.MarkEmailProcessed(ctx, email.ID, verr)
		}
		return Result{}, verr
	}

	jobs, err := e.storage.FetchCandidates(ctx, e.scorer.WindowStart(email.ReceivedAt))
	if err != nil {
		return Result{}, fmt.Errorf("failed to fetch candidates: %w", err)
	}

	ranking := e.scorer.Rank(email, jobs)

	if len(ranking.Candidates) == 0 {
		res, err := e.recordNoCandidates(ctx, email)
		if err != nil {
			return Result{}, err
		}
		return res, e.storage.MarkEmailProcessed(ctx, email.ID, nil)
	}

	chosen := *ranking.Top()
	method := model.MethodAuto
	rationale := ""
	disambiguated := false

	if ranking.Ambiguous && e.selector != nil {
		sel, err := e.selector.Select(ctx, email, ranking.Candidates.TopN(e.scoreCfg.DisambiguationTopK))
		switch {
		case err != nil:
			// Degrade to the undisambiguated top candidate and keep going.
			e.logger.Warn("Disambiguation failed, using top-ranked candidate",
				"email_id", email.ID,
				"error", err)
		case sel.Candidate != nil && sel.Confident:
			chosen = *sel.Candidate
			method = model.MethodAIDisambiguated
			rationale = sel.Reasoning
			disambiguated = true
		default:
			rationale = sel.Reasoning
		}
	}

	decision := Decide(chosen.Composite, e.scoreCfg)
	now := time.Now().UTC()

	outcome := &model.MatchOutcome{
		ID:        uuid.NewString(),
		EmailID:   email.ID,
		Method:    method,
		Rationale: rationale,
		Signals:   chosen.Signals,
		Score:     chosen.Composite,
		CreatedAt: now,
	}

	switch decision {
	case DecisionAutoMatch:
		jobID := chosen.Job.ID
		outcome.JobID = &jobID
		outcome.Resolved = true
		outcome.ResolvedAt = &now
	case DecisionReview:
		jobID := chosen.Job.ID
		outcome.JobID = &jobID
		outcome.NeedsReview = true
	case DecisionNoMatch:
		outcome.Resolved = true
		outcome.ResolvedAt = &now
	}

	if err := e.storage.UpsertOutcome(ctx, outcome); err != nil {
		return Result{}, fmt.Errorf("failed to persist outcome for email %s: %w", email.ID, err)
	}

	if decision == DecisionReview {
		reason := model.ReasonLowConfidenceMatch
		if email.Category == model.CategoryUnknown || email.Category == "" {
			reason = model.ReasonAmbiguousCategory
		}
		e.enqueueReview(ctx, email, reason)
	}
	if decision == DecisionNoMatch && email.IsApplicationResponse() {
		e.enqueueReview(ctx, email, model.ReasonNoMatchFound)
	}
	if decision == DecisionAutoMatch {
		e.recordResponse(ctx, email, chosen.Job)
	}

	e.logger.Info("Matched email",
		"email_id", email.ID,
		"decision", decision.String(),
		"method", method,
		"score", chosen.Composite,
		"company", chosen.Job.CompanyName)

	return Result{
		Outcome:       outcome,
		Decision:      decision,
		Disambiguated: disambiguated,
	}, e.storage.MarkEmailProcessed(ctx, email.ID, nil)
}

// recordNoCandidates handles an empty recency window: the email gets a
// terminal no-match outcome without invoking the scorers, and application
// responses are escalated since a missing match there usually means a missing
// job row.
func (e *Engine) recordNoCandidates(ctx context.Context, email model.EmailRecord) (Result, error) {
	now := time.Now().UTC()
	outcome := &model.MatchOutcome{
		ID:         uuid.NewString(),
		EmailID:    email.ID,
		Method:     model.MethodAuto,
		Resolved:   true,
		ResolvedAt: &now,
		CreatedAt:  now,
	}
	if err := e.storage.UpsertOutcome(ctx, outcome); err != nil {
		return Result{}, fmt.Errorf("failed to persist no-match outcome for email %s: %w", email.ID, err)
	}

	if email.IsApplicationResponse() {
		e.enqueueReview(ctx, email, model.ReasonNoMatchFound)
	}

	e.logger.Info("No candidates in window",
		"email_id", email.ID,
		"received_at", email.ReceivedAt)

	return Result{Outcome: outcome, Decision: DecisionNoMatch}, nil
}

// enqueueReview escalates the email, treating an existing active entry as
// success so re-processing stays idempotent.
func (e *Engine) enqueueReview(ctx context.Context, email model.EmailRecord, reason model.ReviewReason) {
	priority := model.PriorityNormal
	if email.Category == model.CategoryInterviewInvite || email.Category == model.CategoryOffer {
		priority = model.PriorityUrgent
	}

	_, err := e.reviews.Enqueue(ctx, email.ID, reason, priority)
	if errors.Is(err, common.ErrDuplicateEntry) {
		e.logger.Debug("Email already queued for review", "email_id", email.ID)
		return
	}
	if err != nil {
		e.logger.Error("Failed to enqueue review entry",
			"email_id", email.ID,
			"reason", reason,
			"error", err)
	}
}

// recordResponse writes a response-analytics row for auto-matched application
// responses and warns on repeated rejections from the same company.
func (e *Engine) recordResponse(ctx context.Context, email model.EmailRecord, job model.JobCandidate) {
	switch email.Category {
	case model.CategoryRejection, model.CategoryInterviewInvite, model.CategoryOffer:
	default:
		return
	}

	appliedAt := job.AppliedAt
	days := int(email.ReceivedAt.Sub(appliedAt).Hours() / 24)
	jobID := job.ID

	record := &model.ResponseRecord{
		ID:              uuid.NewString(),
		EmailID:         email.ID,
		JobID:           &jobID,
		ResponseType:    email.Category,
		CompanyName:     job.CompanyName,
		PositionTitle:   job.PositionTitle,
		EffortLevel:     job.EffortLevel,
		ApplicationDate: &appliedAt,
		ResponseDate:    email.ReceivedAt,
		DaysToResponse:  &days,
		CreatedAt:       time.Now().UTC(),
	}

	if err := e.storage.RecordResponse(ctx, record); err != nil {
		e.logger.Error("Failed to record response analytics",
			"email_id", email.ID,
			"error", err)
		return
	}

	if email.Category == model.CategoryRejection {
		since := email.ReceivedAt.Add(-rejectionStreakWindow)
		count, err := e.storage.CountCompanyRejections(ctx, job.CompanyName, since)
		if err == nil && count >= rejectionStreakLimit {
			e.logger.Warn("Repeated rejections from company",
				"company", job.CompanyName,
				"rejections", count)
		}
	}
}
