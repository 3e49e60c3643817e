package model

import (
	"fmt"
	"time"
)

// ReviewStatus is the state of a review queue entry.
//
// Valid status graph:
//
//	pending ──► in_progress ──► completed
//	    │            │
//	    └────────────┴────────► skipped
//
// completed and skipped are terminal states.
type ReviewStatus string

// Review status constants.
const (
	ReviewPending    ReviewStatus = "pending"
	ReviewInProgress ReviewStatus = "in_progress"
	ReviewCompleted  ReviewStatus = "completed"
	ReviewSkipped    ReviewStatus = "skipped"
)

// validReviewTransitions lists every allowed (from → to) pair.
var validReviewTransitions = map[ReviewStatus][]ReviewStatus{
	ReviewPending:    {ReviewInProgress, ReviewCompleted, ReviewSkipped},
	ReviewInProgress: {ReviewCompleted, ReviewSkipped},
	// completed and skipped are terminal, no outgoing transitions
}

// ParseReviewStatus converts a raw string to a ReviewStatus, returning an
// error for unknown values.
func ParseReviewStatus(s string) (ReviewStatus, error) {
	st := ReviewStatus(s)
	switch st {
	case ReviewPending, ReviewInProgress, ReviewCompleted, ReviewSkipped:
		return st, nil
	}
	return "", fmt.Errorf("unknown review status %q", s)
}

// IsTerminal reports whether no further transitions are allowed from s.
func (s ReviewStatus) IsTerminal() bool {
	return s == ReviewCompleted || s == ReviewSkipped
}

// CanTransitionTo reports whether moving from s to next is permitted.
func (s ReviewStatus) CanTransitionTo(next ReviewStatus) bool {
	for _, allowed := range validReviewTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// ReviewReason explains why an email was escalated to manual review.
type ReviewReason string

// Review reason constants.
const (
	ReasonLowConfidenceMatch ReviewReason = "low_confidence_match"
	ReasonNoMatchFound       ReviewReason = "no_match_found"
	ReasonAmbiguousCategory  ReviewReason = "ambiguous_category"
)

// ReviewAction is a human resolution applied to a queue entry.
type ReviewAction string

// Review action constants.
const (
	ActionLink    ReviewAction = "link"
	ActionNoMatch ReviewAction = "no_match"
	ActionSkip    ReviewAction = "skip"
)

// Default priorities for new queue entries. Interview invitations and offers
// are time-sensitive and jump ahead of routine review work.
const (
	PriorityNormal = 5
	PriorityUrgent = 8
)

// ReviewQueueEntry is a persisted escalation awaiting human resolution.
type ReviewQueueEntry struct {
	CreatedAt        time.Time
	ResolvedAt       *time.Time
	ID               string
	EmailID          string
	Reason           ReviewReason
	Status           ReviewStatus
	Assignee         string
	ResolutionAction ReviewAction
	ResolutionNotes  string
	Priority         int
	SkipCount        int
}

// Validate ensures the entry satisfies basic invariants before persistence.
func (r *ReviewQueueEntry) Validate() error {
	if r.EmailID == "" {
		return fmt.Errorf("review entry email id is required")
	}
	if _, err := ParseReviewStatus(string(r.Status)); err != nil {
		return err
	}
	if r.Priority < 1 || r.Priority > 10 {
		return fmt.Errorf("review priority must be between 1 and 10, got %d", r.Priority)
	}
	return nil
}
