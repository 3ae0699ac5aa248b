// Package certificate defines the issued certificate record and the
// participant and event data a certificate is generated from.
package certificate

import (
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"
)

// DateLayout is the format used for event dates printed on certificates.
const DateLayout = "January 2, 2006"

// Certificate is an issued certificate. Records are immutable once
// created; at most one exists per (EventID, UserID).
type Certificate struct {
	ID              string    `json:"id"`
	EventID         string    `json:"event_id"`
	UserID          string    `json:"user_id"`
	Number          string    `json:"certificate_number"`
	Sequence        *int64    `json:"sequence,omitempty"`
	ParticipantName string    `json:"participant_name"`
	EventTitle      string    `json:"event_title"`
	CompletionDate  time.Time `json:"completion_date"`
	VectorRef       string    `json:"vector_artifact_ref"`
	RasterRef       string    `json:"raster_artifact_ref"`
	GeneratedAt     time.Time `json:"generated_at"`
}

// NewID returns a fresh certificate identifier.
func NewID() string {
	return uuid.NewString()
}

// Participant is the profile a certificate is issued to.
type Participant struct {
	UserID     string `json:"user_id"`
	Prefix     string `json:"prefix,omitempty"`
	FirstName  string `json:"first_name"`
	MiddleName string `json:"middle_name,omitempty"`
	LastName   string `json:"last_name"`
	Suffix     string `json:"suffix,omitempty"`
}

// FullName joins prefix, first name, middle initial, last name and suffix
// with single spaces, skipping empty parts.
func (p Participant) FullName() string {
	parts := []string{
		p.Prefix,
		p.FirstName,
		MiddleInitial(p.MiddleName),
		p.LastName,
		p.Suffix,
	}
	out := parts[:0]
	for _, s := range parts {
		if s = strings.Join(strings.Fields(s), " "); s != "" {
			out = append(out, s)
		}
	}
	return strings.Join(out, " ")
}

// MiddleInitial returns the upper-cased first letter of name followed by a
// period, or "" for an empty name.
func MiddleInitial(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	r, _ := utf8.DecodeRuneInString(name)
	return string(unicode.ToUpper(r)) + "."
}

// Event is the event metadata printed on a certificate.
type Event struct {
	ID             string    `json:"id"`
	Title          string    `json:"title"`
	StartDate      time.Time `json:"start_date"`
	Venue          string    `json:"venue"`
	RequiresSurvey bool      `json:"requires_survey"`
}

// FormattedDate returns the start date in [DateLayout], or "" when unset.
func (e Event) FormattedDate() string {
	if e.StartDate.IsZero() {
		return ""
	}
	return e.StartDate.Format(DateLayout)
}
