package model

import "time"

// ResponseRecord tracks a company response (rejection, interview invitation,
// offer) for analytics. One row is written per qualifying inbound email.
type ResponseRecord struct {
	CreatedAt       time.Time
	ApplicationDate *time.Time
	ResponseDate    time.Time
	JobID           *string
	ID              string
	EmailID         string
	ResponseType    EmailCategory
	CompanyName     string
	PositionTitle   string
	EffortLevel     string
	DaysToResponse  *int
}
