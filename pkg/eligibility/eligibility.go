// Package eligibility decides whether a participant may receive a
// certificate for an event.
package eligibility

import (
	"fmt"

	"github.com/matzehuels/certforge/pkg/certificate"
	"github.com/matzehuels/certforge/pkg/errors"
)

// Attestation is what the registration system knows about a participant's
// involvement in an event.
type Attestation struct {
	Attended        bool `json:"attended"`
	SurveyCompleted bool `json:"survey_completed"`
}

// Policy decides eligibility. Check returns nil when the participant is
// eligible and an [errors.ErrCodeNotEligible] error explaining why not
// otherwise.
type Policy interface {
	Check(ev certificate.Event, att Attestation) error
}

// PolicyFunc adapts a function to [Policy].
type PolicyFunc func(certificate.Event, Attestation) error

func (f PolicyFunc) Check(ev certificate.Event, att Attestation) error { return f(ev, att) }

// Standard requires attendance, and a completed survey when the event asks
// for one.
var Standard Policy = PolicyFunc(func(ev certificate.Event, att Attestation) error {
	if !att.Attended {
		return errors.New(errors.ErrCodeNotEligible, "attendance for %s has not been recorded", describe(ev))
	}
	if ev.RequiresSurvey && !att.SurveyCompleted {
		return errors.New(errors.ErrCodeNotEligible, "the feedback survey for %s has not been completed", describe(ev))
	}
	return nil
})

// Always accepts every participant. Useful for previews and imports.
var Always Policy = PolicyFunc(func(certificate.Event, Attestation) error { return nil })

func describe(ev certificate.Event) string {
	if ev.Title != "" {
		return fmt.Sprintf("%q", ev.Title)
	}
	return "event " + ev.ID
}
