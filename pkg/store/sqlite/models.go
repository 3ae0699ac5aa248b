package sqlite

import (
	"time"

	"github.com/matzehuels/certforge/pkg/certificate"
)

// Certificate is the certificates table. The composite unique indexes
// carry the store's uniqueness rules.
type Certificate struct {
	ID              string `gorm:"primaryKey;size:36"`
	EventID         string `gorm:"size:128;not null;uniqueIndex:idx_cert_event_user,priority:1;uniqueIndex:idx_cert_event_number,priority:1;uniqueIndex:idx_cert_event_sequence,priority:1"`
	UserID          string `gorm:"size:128;not null;uniqueIndex:idx_cert_event_user,priority:2"`
	Number          string `gorm:"size:160;not null;uniqueIndex:idx_cert_event_number,priority:2"`
	Sequence        *int64 `gorm:"uniqueIndex:idx_cert_event_sequence,priority:2"`
	ParticipantName string
	EventTitle      string
	CompletionDate  time.Time
	VectorRef       string
	RasterRef       string
	GeneratedAt     time.Time `gorm:"not null"`
}

func (Certificate) TableName() string { return "certificates" }

// EventSequence is the compare-and-swap counter per event.
type EventSequence struct {
	EventID string `gorm:"primaryKey;size:128"`
	Value   int64  `gorm:"not null"`
}

func (EventSequence) TableName() string { return "event_sequences" }

// GenerationClaim marks an in-flight generation. ClaimedAt is Unix
// nanoseconds so it can be compared exactly in conditional updates.
type GenerationClaim struct {
	EventID   string `gorm:"primaryKey;size:128"`
	UserID    string `gorm:"primaryKey;size:128"`
	Owner     string `gorm:"size:64;not null"`
	ClaimedAt int64  `gorm:"not null"`
}

func (GenerationClaim) TableName() string { return "generation_claims" }

var migrateModels = []any{
	&Certificate{},
	&EventSequence{},
	&GenerationClaim{},
}

func fromCertificate(c *certificate.Certificate) Certificate {
	return Certificate{
		ID:              c.ID,
		EventID:         c.EventID,
		UserID:          c.UserID,
		Number:          c.Number,
		Sequence:        c.Sequence,
		ParticipantName: c.ParticipantName,
		EventTitle:      c.EventTitle,
		CompletionDate:  c.CompletionDate.UTC(),
		VectorRef:       c.VectorRef,
		RasterRef:       c.RasterRef,
		GeneratedAt:     c.GeneratedAt.UTC(),
	}
}

func (m Certificate) toCertificate() *certificate.Certificate {
	return &certificate.Certificate{
		ID:              m.ID,
		EventID:         m.EventID,
		UserID:          m.UserID,
		Number:          m.Number,
		Sequence:        m.Sequence,
		ParticipantName: m.ParticipantName,
		EventTitle:      m.EventTitle,
		CompletionDate:  m.CompletionDate.UTC(),
		VectorRef:       m.VectorRef,
		RasterRef:       m.RasterRef,
		GeneratedAt:     m.GeneratedAt.UTC(),
	}
}
