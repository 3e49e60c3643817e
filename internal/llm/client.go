// Package llm provides clients for the external completion service used to
// disambiguate near-tied match candidates.
package llm

import (
	"context"
)

// Client defines the interface for completion-service providers.
type Client interface {
	// SelectCandidate sends a disambiguation prompt and returns the service's
	// structured choice. Implementations must honor ctx deadlines and return
	// common.ErrRateLimited when the provider throttles the request.
	SelectCandidate(ctx context.Context, prompt string) (SelectionResponse, error)
}

// SelectionResponse is the structured result of a disambiguation request.
type SelectionResponse struct {
	JobID     string // chosen candidate identifier, empty for "none confident"
	Reasoning string // short rationale, attached to the outcome for audit
	Confident bool
}
