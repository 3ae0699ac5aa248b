package eligibility

import (
	"testing"

	"github.com/matzehuels/certforge/pkg/certificate"
	"github.com/matzehuels/certforge/pkg/errors"
)

func TestStandard(t *testing.T) {
	survey := certificate.Event{ID: "ev-1", Title: "GopherCon", RequiresSurvey: true}
	plain := certificate.Event{ID: "ev-2"}

	tests := []struct {
		name     string
		ev       certificate.Event
		att      Attestation
		eligible bool
	}{
		{"attended no survey needed", plain, Attestation{Attended: true}, true},
		{"attended with survey", survey, Attestation{Attended: true, SurveyCompleted: true}, true},
		{"attended survey missing", survey, Attestation{Attended: true}, false},
		{"absent", plain, Attestation{}, false},
		{"absent but surveyed", survey, Attestation{SurveyCompleted: true}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Standard.Check(tt.ev, tt.att)
			if (err == nil) != tt.eligible {
				t.Fatalf("Check() = %v, eligible %v", err, tt.eligible)
			}
			if err != nil && !errors.Is(err, errors.ErrCodeNotEligible) {
				t.Errorf("error code = %v, want NOT_ELIGIBLE", errors.GetCode(err))
			}
		})
	}
}

func TestAlways(t *testing.T) {
	if err := Always.Check(certificate.Event{RequiresSurvey: true}, Attestation{}); err != nil {
		t.Errorf("Always.Check() = %v", err)
	}
}
