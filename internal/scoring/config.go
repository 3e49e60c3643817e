// Package scoring implements the multi-signal match scorer: four independent
// signal scorers, the weighted composite, and the candidate ranker with
// ambiguity detection.
package scoring

import (
	"fmt"
	"math"

	"github.com/mfairbanks/jobsignal/internal/common"
)

// weightTolerance is the allowed floating-point slack when checking that
// weights sum to 1.0.
const weightTolerance = 1e-9

// Weights holds the composite weight of each signal. They must sum to 1.0.
type Weights struct {
	Name     float64
	Domain   float64
	Title    float64
	Timeline float64
}

// DefaultWeights returns the standard signal weights.
func DefaultWeights() Weights {
	return Weights{
		Name:     0.40,
		Domain:   0.20,
		Title:    0.30,
		Timeline: 0.10,
	}
}

// Validate rejects weight sets that are negative or do not sum to 1.0.
func (w Weights) Validate() error {
	for name, v := range map[string]float64{
		"name":     w.Name,
		"domain":   w.Domain,
		"title":    w.Title,
		"timeline": w.Timeline,
	} {
		if v < 0 {
			return fmt.Errorf("%w: %s weight must not be negative, got %v", common.ErrInvalidConfig, name, v)
		}
	}

	sum := w.Name + w.Domain + w.Title + w.Timeline
	if math.Abs(sum-1.0) > weightTolerance {
		return fmt.Errorf("%w: signal weights must sum to 1.0, got %v", common.ErrInvalidConfig, sum)
	}
	return nil
}

// Config holds all scoring and decision parameters. It is immutable once
// constructed and passed explicitly into the engine; scoring never reads
// ambient process state.
type Config struct {
	ATSDomains         []string
	Weights            Weights
	AutoMatchThreshold float64
	ReviewThreshold    float64
	AmbiguityMargin    float64
	NeutralDomainScore float64
	NeutralTitleScore  float64
	TimelineWindowDays int
	GracePeriodDays    int
	DisambiguationTopK int
}

// DefaultConfig returns the default scoring configuration.
func DefaultConfig() Config {
	return Config{
		Weights:            DefaultWeights(),
		AutoMatchThreshold: 0.85,
		ReviewThreshold:    0.50,
		AmbiguityMargin:    0.05,
		NeutralDomainScore: 0.3,
		NeutralTitleScore:  0.3,
		TimelineWindowDays: 90,
		GracePeriodDays:    2,
		DisambiguationTopK: 3,
		ATSDomains: []string{
			"greenhouse.io",
			"lever.co",
			"myworkday.com",
			"myworkdayjobs.com",
			"ashbyhq.com",
			"smartrecruiters.com",
			"icims.com",
			"jobvite.com",
			"taleo.net",
			"bamboohr.com",
			"workablemail.com",
		},
	}
}

// Validate rejects configurations that would make decisions undefined.
func (c Config) Validate() error {
	if err := c.Weights.Validate(); err != nil {
		return err
	}
	if c.AutoMatchThreshold <= 0 || c.AutoMatchThreshold > 1 {
		return fmt.Errorf("%w: auto_match_threshold must be in (0,1], got %v", common.ErrInvalidConfig, c.AutoMatchThreshold)
	}
	if c.ReviewThreshold < 0 || c.ReviewThreshold >= c.AutoMatchThreshold {
		return fmt.Errorf("%w: review_threshold must be in [0, auto_match_threshold), got %v", common.ErrInvalidConfig, c.ReviewThreshold)
	}
	if c.AmbiguityMargin < 0 {
		return fmt.Errorf("%w: ambiguity_margin must not be negative, got %v", common.ErrInvalidConfig, c.AmbiguityMargin)
	}
	if c.NeutralDomainScore < 0 || c.NeutralDomainScore > 1 {
		return fmt.Errorf("%w: neutral_domain_score must be in [0,1], got %v", common.ErrInvalidConfig, c.NeutralDomainScore)
	}
	if c.TimelineWindowDays <= 0 {
		return fmt.Errorf("%w: timeline_window_days must be positive, got %d", common.ErrInvalidConfig, c.TimelineWindowDays)
	}
	if c.GracePeriodDays < 0 {
		return fmt.Errorf("%w: grace_period_days must not be negative, got %d", common.ErrInvalidConfig, c.GracePeriodDays)
	}
	if c.DisambiguationTopK < 2 {
		return fmt.Errorf("%w: disambiguation_top_k must be at least 2, got %d", common.ErrInvalidConfig, c.DisambiguationTopK)
	}
	return nil
}
