package engine

import (
	"github.com/mfairbanks/jobsignal/internal/scoring"
)

// Decision is the three-way verdict for one email's top score.
type Decision int

// Decision constants, ordered from weakest to strongest.
const (
	DecisionNoMatch Decision = iota
	DecisionReview
	DecisionAutoMatch
)

// String returns a stable label for logs and stats.
func (d Decision) String() string {
	switch d {
	case DecisionAutoMatch:
		return "auto_match"
	case DecisionReview:
		return "review"
	default:
		return "no_match"
	}
}

// Decide maps a composite score onto a decision using the configured
// thresholds. It is a pure function of its inputs; the score is expected to
// already be rounded to comparison precision.
func Decide(score float64, cfg scoring.Config) Decision {
	switch {
	case score >= cfg.AutoMatchThreshold:
		return DecisionAutoMatch
	case score >= cfg.ReviewThreshold:
		return DecisionReview
	default:
		return DecisionNoMatch
	}
}
