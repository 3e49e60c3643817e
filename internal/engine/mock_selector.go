package engine

import (
	"context"
	"sync"

	"github.com/mfairbanks/jobsignal/internal/disambig"
	"github.com/mfairbanks/jobsignal/internal/model"
)

// MockSelector is a deterministic Selector double for tests and dry runs. By
// default it confidently picks the candidate whose job id equals PickJobID;
// SelectFunc overrides the whole behavior when set.
type MockSelector struct {
	SelectFunc func(ctx context.Context, email model.EmailRecord, candidates model.MatchCandidates) (*disambig.Selection, error)
	PickJobID  string
	Reasoning  string

	mu    sync.Mutex
	calls []model.EmailRecord
}

// Select implements the Selector interface.
func (m *MockSelector) Select(ctx context.Context, email model.EmailRecord, candidates model.MatchCandidates) (*disambig.Selection, error) {
	m.mu.Lock()
	m.calls = append(m.calls, email)
	m.mu.Unlock()

	if m.SelectFunc != nil {
		return m.SelectFunc(ctx, email, candidates)
	}

	for i := range candidates {
		if candidates[i].Job.ID == m.PickJobID {
			return &disambig.Selection{
				Candidate: &candidates[i],
				Reasoning: m.Reasoning,
				Confident: true,
			}, nil
		}
	}
	return &disambig.Selection{Reasoning: m.Reasoning, Confident: false}, nil
}

// Calls returns the emails the selector was asked about.
func (m *MockSelector) Calls() []model.EmailRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.EmailRecord, len(m.calls))
	copy(out, m.calls)
	return out
}
