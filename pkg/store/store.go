// Package store defines persistence for issued certificates, per-event
// number sequences and generation claims.
//
// Uniqueness is enforced here rather than by callers: a backend must reject
// a second certificate for the same (event, user) and a reused number or
// sequence within an event. Sequences may be persisted out of order when
// generations overlap; issuance order is sequence order, which List
// returns. Implementations live in the sqlite and mongo subpackages.
package store

import (
	"context"
	"time"

	"github.com/matzehuels/certforge/pkg/certificate"
	"github.com/matzehuels/certforge/pkg/errors"
)

var (
	// ErrNotFound is returned when no certificate matches.
	ErrNotFound = errors.New(errors.ErrCodeNotFound, "certificate not found")

	// ErrDuplicateCertificate is returned by Insert when the (event, user)
	// pair already holds a certificate.
	ErrDuplicateCertificate = errors.New(errors.ErrCodeDuplicateCertificate, "certificate already issued for this participant")

	// ErrNumberTaken is returned by Insert when the number or sequence is
	// already used within the event.
	ErrNumberTaken = errors.New(errors.ErrCodeAllocationConflict, "certificate number already taken")

	// ErrClaimHeld is returned by Claim when another live generation owns
	// the (event, user) pair.
	ErrClaimHeld = errors.New(errors.ErrCodeAllocationConflict, "generation already in progress")
)

// Records persists issued certificates.
type Records interface {
	// Get returns the certificate for (eventID, userID) or ErrNotFound.
	Get(ctx context.Context, eventID, userID string) (*certificate.Certificate, error)

	// GetByNumber returns the certificate with number in eventID or
	// ErrNotFound.
	GetByNumber(ctx context.Context, eventID, number string) (*certificate.Certificate, error)

	// List returns an event's certificates in issuance order.
	List(ctx context.Context, eventID string) ([]certificate.Certificate, error)

	// Insert persists c atomically. It returns ErrDuplicateCertificate or
	// ErrNumberTaken when a uniqueness rule would be violated.
	Insert(ctx context.Context, c *certificate.Certificate) error
}

// Sequences holds the per-event counter behind prefixed numbers.
type Sequences interface {
	// Sequence returns the last reserved value for eventID, 0 if none.
	Sequence(ctx context.Context, eventID string) (int64, error)

	// CompareAndSwapSequence sets the counter to next if it currently
	// equals prev. It reports whether the swap happened.
	CompareAndSwapSequence(ctx context.Context, eventID string, prev, next int64) (bool, error)
}

// Claims coordinates generations across processes.
type Claims interface {
	// Claim records owner as the generator for (eventID, userID). A claim
	// older than ttl is considered abandoned and may be taken over.
	// It returns ErrClaimHeld when a live claim belongs to someone else.
	Claim(ctx context.Context, eventID, userID, owner string, ttl time.Duration) error

	// Release drops owner's claim. Releasing a claim owned by someone
	// else is a no-op.
	Release(ctx context.Context, eventID, userID, owner string) error
}

// Store combines all persistence concerns of the generator.
type Store interface {
	Records
	Sequences
	Claims
	Close() error
}
