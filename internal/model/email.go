// Package model defines the core domain models used throughout the application.
package model

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// EmailCategory is the classifier-assigned category for a message.
type EmailCategory string

// Email category constants. Inbound categories describe mail received from
// companies and recruiters; sent_* categories describe outbound mail.
const (
	CategoryInterviewInvite EmailCategory = "interview_invite"
	CategoryAssignment      EmailCategory = "assignment"
	CategoryRejection       EmailCategory = "rejection"
	CategoryOffer           EmailCategory = "offer"
	CategoryInfo            EmailCategory = "info"
	CategoryFollowUpNeeded  EmailCategory = "follow_up_needed"
	CategoryUnknown         EmailCategory = "unknown"

	CategorySentApplication  EmailCategory = "sent_application"
	CategorySentAvailability EmailCategory = "sent_availability"
	CategorySentFollowUp     EmailCategory = "sent_follow_up"
	CategorySentDocuments    EmailCategory = "sent_documents"
)

// Sentiment is the classifier-assigned sentiment for a message.
type Sentiment string

// Sentiment constants.
const (
	SentimentPositive Sentiment = "positive"
	SentimentNegative Sentiment = "negative"
	SentimentNeutral  Sentiment = "neutral"
)

// EmailRecord is a normalized email message as delivered by the mail client.
// Records are immutable once created; classification fields are set exactly
// once by the external classifier and treated as read-only input to matching.
type EmailRecord struct {
	ReceivedAt     time.Time     `json:"received_at"`
	ProcessedAt    *time.Time    `json:"processed_at,omitempty"`
	ID             string        `json:"id"`
	ExternalID     string        `json:"external_id"` // Unique message id from the mail provider
	ThreadID       string        `json:"thread_id,omitempty"`
	Subject        string        `json:"subject"`
	SenderName     string        `json:"sender_name,omitempty"`
	SenderEmail    string        `json:"sender_email"`
	RecipientEmail string        `json:"recipient_email,omitempty"`
	BodyText       string        `json:"body_text,omitempty"`
	BodyHTML       string        `json:"body_html,omitempty"`
	Category       EmailCategory `json:"category,omitempty"`
	Sentiment      Sentiment     `json:"sentiment,omitempty"`
	Error          string        `json:"error,omitempty"`
	Confidence     float64       `json:"confidence,omitempty"`
	Processed      bool          `json:"processed,omitempty"`
}

// Validate checks the fields matching depends on.
func (e *EmailRecord) Validate() error {
	if e.ExternalID == "" {
		return fmt.Errorf("email external id is required")
	}
	if e.ReceivedAt.IsZero() {
		return fmt.Errorf("email received timestamp is required")
	}
	return nil
}

// SenderDomain extracts the domain portion of the sender address, lowercased.
// Returns an empty string when no domain is present.
func (e *EmailRecord) SenderDomain() string {
	at := strings.LastIndex(e.SenderEmail, "@")
	if at < 0 || at == len(e.SenderEmail)-1 {
		return ""
	}
	return strings.ToLower(e.SenderEmail[at+1:])
}

// MatchText returns the text the signal scorers search for company and title
// mentions: subject plus a bounded prefix of the plain-text body. The prefix
// is cut on a rune boundary so multi-byte text stays valid UTF-8.
func (e *EmailRecord) MatchText(bodyLimit int) string {
	body := e.BodyText
	if body == "" {
		body = e.BodyHTML
	}
	if bodyLimit > 0 && len(body) > bodyLimit {
		for bodyLimit > 0 && !utf8.RuneStart(body[bodyLimit]) {
			bodyLimit--
		}
		body = body[:bodyLimit]
	}
	return strings.TrimSpace(e.Subject + " " + body)
}

// IsApplicationResponse reports whether the classifier category indicates the
// email is a response to a job application.
func (e *EmailRecord) IsApplicationResponse() bool {
	switch e.Category {
	case CategoryInterviewInvite, CategoryAssignment, CategoryRejection, CategoryOffer:
		return true
	default:
		return false
	}
}
