package certificate

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestFullName(t *testing.T) {
	tests := []struct {
		name string
		p    Participant
		want string
	}{
		{"all parts", Participant{Prefix: "Dr.", FirstName: "Ada", MiddleName: "augusta", LastName: "Lovelace", Suffix: "PhD"}, "Dr. Ada A. Lovelace PhD"},
		{"first and last", Participant{FirstName: "Grace", LastName: "Hopper"}, "Grace Hopper"},
		{"missing first", Participant{Prefix: "Ms.", LastName: "Hamilton"}, "Ms. Hamilton"},
		{"whitespace parts", Participant{FirstName: "  Alan ", MiddleName: "  ", LastName: "Turing"}, "Alan Turing"},
		{"inner spaces collapse", Participant{FirstName: "Mary  Jane", LastName: "Doe"}, "Mary Jane Doe"},
		{"unicode middle", Participant{FirstName: "Zoë", MiddleName: "élise", LastName: "Faure"}, "Zoë É. Faure"},
		{"empty", Participant{}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.p.FullName(); got != tt.want {
				t.Errorf("FullName() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFormattedDate(t *testing.T) {
	e := Event{StartDate: time.Date(2025, time.June, 3, 9, 0, 0, 0, time.UTC)}
	if got := e.FormattedDate(); got != "June 3, 2025" {
		t.Errorf("FormattedDate() = %q", got)
	}
	if got := (Event{}).FormattedDate(); got != "" {
		t.Errorf("zero date = %q, want empty", got)
	}
}

func TestNewID(t *testing.T) {
	a, b := NewID(), NewID()
	if a == b {
		t.Error("NewID returned duplicates")
	}
	if _, err := uuid.Parse(a); err != nil {
		t.Errorf("NewID() = %q is not a UUID", a)
	}
}
