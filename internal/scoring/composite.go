package scoring

import (
	"math"

	"github.com/mfairbanks/jobsignal/internal/model"
)

// scorePrecision is the number of decimal places composite scores are rounded
// to before any threshold comparison, keeping decisions stable and testable.
const scorePrecision = 4

// Round rounds a score to the fixed comparison precision.
func Round(score float64) float64 {
	shift := math.Pow(10, scorePrecision)
	return math.Round(score*shift) / shift
}

// Composite combines the signal scores into one weighted match score,
// rounded to the comparison precision.
func (s *Scorer) Composite(signals model.SignalScores) float64 {
	w := s.cfg.Weights
	raw := w.Name*signals.Name +
		w.Domain*signals.Domain +
		w.Title*signals.Title +
		w.Timeline*signals.Timeline
	return Round(clampScore(raw))
}

// ScoreCandidate scores one (email, job) pair.
func (s *Scorer) ScoreCandidate(email model.EmailRecord, job model.JobCandidate) model.MatchCandidate {
	signals := s.ScoreSignals(email, job)
	return model.MatchCandidate{
		Job:       job,
		Signals:   signals,
		Composite: s.Composite(signals),
	}
}
