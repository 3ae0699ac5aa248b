// Package numbering reserves certificate numbers.
//
// Two formats exist. With a prefix, numbers are the prefix followed by a
// zero-padded per-event sequence (CERT-000001, CERT-000002, ...) reserved
// through the store's compare-and-swap counter. Without one, numbers are
// derived from the event, a monotonic millisecond clock and the user:
//
//	CERT-{EVENT8}-{CLOCK}-{USER8}
//
// where CLOCK is base 36 padded to nine characters, so that within one
// event lexicographic order matches issuance order.
package numbering

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/certforge/pkg/errors"
	"github.com/matzehuels/certforge/pkg/observability"
	"github.com/matzehuels/certforge/pkg/store"
)

// ErrAllocationConflict is returned when another allocator reserved the
// number this one tried to take. Callers may retry.
var ErrAllocationConflict = errors.New(errors.ErrCodeAllocationConflict, "certificate number allocation conflict")

// SequenceWidth is the zero-padding of prefixed sequence numbers.
const SequenceWidth = 6

// Number is a reserved certificate number.
type Number struct {
	Value string
	// Sequence is set for prefixed numbers.
	Sequence *int64
}

// Allocator reserves certificate numbers. It is safe for concurrent use;
// calls for the same event are serialized within the process.
type Allocator struct {
	seqs   store.Sequences
	clock  *Clock
	logger *log.Logger

	mu     sync.Mutex
	events map[string]*sync.Mutex
}

// NewAllocator creates an Allocator backed by seqs.
func NewAllocator(seqs store.Sequences, logger *log.Logger) *Allocator {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Allocator{
		seqs:   seqs,
		clock:  NewClock(nil),
		logger: logger,
		events: make(map[string]*sync.Mutex),
	}
}

func (a *Allocator) eventLock(eventID string) *sync.Mutex {
	a.mu.Lock()
	defer a.mu.Unlock()
	l, ok := a.events[eventID]
	if !ok {
		l = new(sync.Mutex)
		a.events[eventID] = l
	}
	return l
}

// Next reserves the next number for userID in eventID. With a non-empty
// prefix it advances the event's sequence; a lost compare-and-swap
// returns ErrAllocationConflict. A prefix outside the identifier charset
// is rejected before anything is reserved.
func (a *Allocator) Next(ctx context.Context, eventID, userID, prefix string) (Number, error) {
	if err := errors.ValidatePrefix(prefix); err != nil {
		return Number{}, err
	}
	if prefix == "" {
		n := Number{Value: Derive(eventID, userID, a.clock.Now())}
		observability.Generation().OnAllocate(ctx, eventID, nil)
		return n, nil
	}

	l := a.eventLock(eventID)
	l.Lock()
	defer l.Unlock()

	n, err := a.reserve(ctx, eventID, prefix)
	observability.Generation().OnAllocate(ctx, eventID, err)
	return n, err
}

func (a *Allocator) reserve(ctx context.Context, eventID, prefix string) (Number, error) {
	cur, err := a.seqs.Sequence(ctx, eventID)
	if err != nil {
		return Number{}, fmt.Errorf("read sequence: %w", err)
	}
	next := cur + 1
	ok, err := a.seqs.CompareAndSwapSequence(ctx, eventID, cur, next)
	if err != nil {
		return Number{}, fmt.Errorf("advance sequence: %w", err)
	}
	if !ok {
		a.logger.Debug("sequence advanced concurrently", "event", eventID, "seen", cur)
		return Number{}, ErrAllocationConflict
	}
	return Number{Value: Format(prefix, next), Sequence: &next}, nil
}

// Format renders a prefixed sequence number.
func Format(prefix string, seq int64) string {
	return fmt.Sprintf("%s%0*d", prefix, SequenceWidth, seq)
}

// Derive renders a prefix-less number from the event, a clock reading in
// milliseconds and the user.
func Derive(eventID, userID string, millis int64) string {
	clock := strings.ToUpper(strconv.FormatInt(millis, 36))
	if len(clock) < 9 {
		clock = strings.Repeat("0", 9-len(clock)) + clock
	}
	return "CERT-" + short(eventID) + "-" + clock + "-" + short(userID)
}

// short returns the first eight letters or digits of id, upper-cased.
func short(id string) string {
	var b strings.Builder
	for _, r := range id {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			b.WriteRune(unicode.ToUpper(r))
			if b.Len() == 8 {
				break
			}
		}
	}
	if b.Len() == 0 {
		return "X"
	}
	return b.String()
}

// Clock yields strictly increasing millisecond readings, even when the
// wall clock stalls or steps backwards.
type Clock struct {
	mu   sync.Mutex
	now  func() time.Time
	last int64
}

// NewClock creates a Clock reading from now; nil means time.Now.
func NewClock(now func() time.Time) *Clock {
	if now == nil {
		now = time.Now
	}
	return &Clock{now: now}
}

// Now returns a reading greater than every previous one.
func (c *Clock) Now() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	ms := c.now().UnixMilli()
	if ms <= c.last {
		ms = c.last + 1
	}
	c.last = ms
	return ms
}
