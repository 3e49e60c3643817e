package model

import (
	"fmt"
	"sort"
	"time"
)

// MatchMethod indicates how an email-to-job match was determined.
type MatchMethod string

// Match method constants.
const (
	MethodAuto            MatchMethod = "auto"
	MethodManual          MatchMethod = "manual"
	MethodAIDisambiguated MatchMethod = "ai_disambiguated"
)

// SignalScores holds the four component scores for one (email, job) pair.
// Each value is in [0,1].
type SignalScores struct {
	Name     float64 `json:"name"`
	Domain   float64 `json:"domain"`
	Title    float64 `json:"title"`
	Timeline float64 `json:"timeline"`
}

// MatchCandidate pairs one email with one job candidate and carries the
// component signal scores plus the rounded composite. It is transient and
// never persisted; only the chosen outcome is.
type MatchCandidate struct {
	Job       JobCandidate
	Signals   SignalScores
	Composite float64
}

// MatchCandidates supports deterministic ranking of scored candidates.
type MatchCandidates []MatchCandidate

// Sort orders candidates by composite score descending, breaking ties by more
// recent application date and then by candidate identifier.
func (m MatchCandidates) Sort() {
	sort.SliceStable(m, func(i, j int) bool {
		if m[i].Composite != m[j].Composite {
			return m[i].Composite > m[j].Composite
		}
		if !m[i].Job.AppliedAt.Equal(m[j].Job.AppliedAt) {
			return m[i].Job.AppliedAt.After(m[j].Job.AppliedAt)
		}
		return m[i].Job.ID < m[j].Job.ID
	})
}

// Top returns the highest-ranked candidate, or nil if empty. The slice must
// already be sorted.
func (m MatchCandidates) Top() *MatchCandidate {
	if len(m) == 0 {
		return nil
	}
	return &m[0]
}

// TopN returns the first n candidates of an already-sorted slice.
func (m MatchCandidates) TopN(n int) MatchCandidates {
	if n <= 0 {
		return MatchCandidates{}
	}
	if n > len(m) {
		n = len(m)
	}
	out := make(MatchCandidates, n)
	copy(out, m[:n])
	return out
}

// MatchOutcome is the persisted result of matching one email. A nil JobID
// records a no-match decision; those rows are kept for analytics.
type MatchOutcome struct {
	CreatedAt     time.Time
	ResolvedAt    *time.Time
	JobID         *string
	ID            string
	EmailID       string
	Method        MatchMethod
	Rationale     string // disambiguation reasoning, audit only
	ReviewerNotes string
	Signals       SignalScores
	Score         float64
	NeedsReview   bool
	Resolved      bool
}

// Validate ensures the outcome satisfies basic invariants before persistence.
func (o *MatchOutcome) Validate() error {
	if o.EmailID == "" {
		return fmt.Errorf("match outcome email id is required")
	}
	if o.Score < 0.0 || o.Score > 1.0 {
		return fmt.Errorf("match score must be between 0.0 and 1.0, got %.4f", o.Score)
	}
	switch o.Method {
	case MethodAuto, MethodManual, MethodAIDisambiguated:
	default:
		return fmt.Errorf("unknown match method %q", o.Method)
	}
	if o.JobID != nil && *o.JobID == "" {
		return fmt.Errorf("match outcome job id must not be empty when set")
	}
	return nil
}
