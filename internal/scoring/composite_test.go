package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mfairbanks/jobsignal/internal/common"
	"github.com/mfairbanks/jobsignal/internal/model"
)

func TestComposite(t *testing.T) {
	s := newTestScorer(t)

	tests := []struct {
		name    string
		signals model.SignalScores
		want    float64
	}{
		{
			name:    "all perfect",
			signals: model.SignalScores{Name: 1, Domain: 1, Title: 1, Timeline: 1},
			want:    1.0,
		},
		{
			name:    "all zero",
			signals: model.SignalScores{},
			want:    0.0,
		},
		{
			name:    "weighted mix",
			signals: model.SignalScores{Name: 0.9, Domain: 1.0, Title: 0.3, Timeline: 0.89},
			want:    0.739, // 0.40*0.9 + 0.20*1.0 + 0.30*0.3 + 0.10*0.89
		},
		{
			name:    "rounded to four decimals",
			signals: model.SignalScores{Name: 1.0 / 3.0},
			want:    0.1333,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := s.Composite(tt.signals)
			assert.InDelta(t, tt.want, got, 1e-9)
			assert.Equal(t, got, s.Composite(tt.signals), "composite must be deterministic")
		})
	}
}

func TestRound(t *testing.T) {
	assert.InDelta(t, 0.1235, Round(0.12345), 1e-12)
	assert.InDelta(t, 0.85, Round(0.85), 1e-12)
	assert.InDelta(t, 0.0, Round(0.00004), 1e-12)
}

func TestWeightsValidate(t *testing.T) {
	assert.NoError(t, DefaultWeights().Validate())

	bad := Weights{Name: 0.5, Domain: 0.5, Title: 0.5, Timeline: 0.5}
	err := bad.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrInvalidConfig)

	negative := Weights{Name: -0.1, Domain: 0.5, Title: 0.3, Timeline: 0.3}
	assert.ErrorIs(t, negative.Validate(), common.ErrInvalidConfig)
}

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{name: "auto threshold above one", mutate: func(c *Config) { c.AutoMatchThreshold = 1.5 }},
		{name: "auto threshold zero", mutate: func(c *Config) { c.AutoMatchThreshold = 0 }},
		{name: "review above auto", mutate: func(c *Config) { c.ReviewThreshold = 0.9 }},
		{name: "negative margin", mutate: func(c *Config) { c.AmbiguityMargin = -0.1 }},
		{name: "zero window", mutate: func(c *Config) { c.TimelineWindowDays = 0 }},
		{name: "negative grace", mutate: func(c *Config) { c.GracePeriodDays = -1 }},
		{name: "top k below two", mutate: func(c *Config) { c.DisambiguationTopK = 1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			assert.ErrorIs(t, cfg.Validate(), common.ErrInvalidConfig)
		})
	}
}

func TestGoogleReviewBandScenario(t *testing.T) {
	// hr@google.com announcing an interview, with the stored title never
	// mentioned: strong name and domain signals alone must not auto-link.
	s := newTestScorer(t)

	email := emailFrom("hr@google.com", "Interview with Google")
	job := model.JobCandidate{
		CompanyName:   "Google LLC",
		PositionTitle: "Software Engineer",
		CompanyDomain: "google.com",
		AppliedAt:     baseReceived.AddDate(0, 0, -10),
	}

	candidate := s.ScoreCandidate(email, job)
	assert.InDelta(t, 1.0, candidate.Signals.Name, 1e-9)
	assert.InDelta(t, 1.0, candidate.Signals.Domain, 1e-9)
	assert.Less(t, candidate.Signals.Title, 0.5)
	assert.InDelta(t, 1.0-10.0/90.0, candidate.Signals.Timeline, 1e-9)

	assert.GreaterOrEqual(t, candidate.Composite, s.cfg.ReviewThreshold)
	assert.Less(t, candidate.Composite, s.cfg.AutoMatchThreshold)
}
