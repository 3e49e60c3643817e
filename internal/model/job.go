package model

import (
	"fmt"
	"time"
)

// JobCandidate is a read-only projection of a job application supplied by the
// external store. Candidates are windowed by application recency before any
// scoring happens.
type JobCandidate struct {
	AppliedAt     time.Time `json:"applied_at"`
	ID            string    `json:"id"`
	CompanyName   string    `json:"company_name"`
	PositionTitle string    `json:"position_title"`
	CompanyDomain string    `json:"company_domain,omitempty"`
	EffortLevel   string    `json:"effort_level,omitempty"`
}

// Validate checks the fields matching depends on.
func (j *JobCandidate) Validate() error {
	if j.ID == "" {
		return fmt.Errorf("job candidate id is required")
	}
	if j.AppliedAt.IsZero() {
		return fmt.Errorf("job candidate application date is required")
	}
	return nil
}
