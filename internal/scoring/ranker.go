package scoring

import (
	"github.com/mfairbanks/jobsignal/internal/model"
)

// Ranking is the ordered result of scoring one email against its candidate
// pool.
type Ranking struct {
	Candidates model.MatchCandidates
	Ambiguous  bool
}

// Top returns the highest-ranked candidate, or nil when the pool was empty.
func (r Ranking) Top() *model.MatchCandidate {
	return r.Candidates.Top()
}

// Rank windows, scores, and orders the candidate pool for one email, then
// flags ambiguity. Candidates outside the recency window are excluded before
// scoring, not merely down-weighted.
//
// Ambiguity only matters when it could change the auto-match/review boundary
// decision: the top two scores must be within the configured margin AND both
// at or above the review threshold.
func (s *Scorer) Rank(email model.EmailRecord, jobs []model.JobCandidate) Ranking {
	scored := make(model.MatchCandidates, 0, len(jobs))
	for _, job := range jobs {
		if !s.InWindow(email, job) {
			continue
		}
		scored = append(scored, s.ScoreCandidate(email, job))
	}
	scored.Sort()

	ambiguous := false
	if len(scored) >= 2 {
		first, second := scored[0].Composite, scored[1].Composite
		if first-second < s.cfg.AmbiguityMargin &&
			first >= s.cfg.ReviewThreshold &&
			second >= s.cfg.ReviewThreshold {
			ambiguous = true
		}
	}

	return Ranking{Candidates: scored, Ambiguous: ambiguous}
}
