// Package storetest provides a conformance suite for [store.Store]
// implementations.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/matzehuels/certforge/pkg/certificate"
	"github.com/matzehuels/certforge/pkg/store"
)

// Factory returns an empty store. The suite closes it.
type Factory func(t *testing.T) store.Store

// Run executes the conformance suite against stores produced by newStore.
func Run(t *testing.T, newStore Factory) {
	tests := []struct {
		name string
		fn   func(t *testing.T, s store.Store)
	}{
		{"InsertAndGet", testInsertAndGet},
		{"DuplicateParticipant", testDuplicateParticipant},
		{"DuplicateNumber", testDuplicateNumber},
		{"OutOfOrderSequence", testOutOfOrderSequence},
		{"ListOrder", testListOrder},
		{"CompareAndSwap", testCompareAndSwap},
		{"CompareAndSwapRace", testCompareAndSwapRace},
		{"Claims", testClaims},
		{"StaleClaimTakeover", testStaleClaimTakeover},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newStore(t)
			defer s.Close()
			tt.fn(t, s)
		})
	}
}

func seq(n int64) *int64 { return &n }

// Cert builds a certificate for tests.
func Cert(eventID, userID, number string, sequence *int64) *certificate.Certificate {
	now := time.Now().UTC().Truncate(time.Millisecond)
	return &certificate.Certificate{
		ID:              certificate.NewID(),
		EventID:         eventID,
		UserID:          userID,
		Number:          number,
		Sequence:        sequence,
		ParticipantName: "Ada Lovelace",
		EventTitle:      "Analytical Engines 101",
		CompletionDate:  now.Add(-24 * time.Hour),
		VectorRef:       eventID + "/" + number + ".pdf",
		RasterRef:       eventID + "/" + number + ".png",
		GeneratedAt:     now,
	}
}

func testInsertAndGet(t *testing.T, s store.Store) {
	ctx := context.Background()
	c := Cert("ev-1", "u-1", "CERT-000001", seq(1))
	if err := s.Insert(ctx, c); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	got, err := s.Get(ctx, "ev-1", "u-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.ID != c.ID || got.Number != c.Number || got.ParticipantName != c.ParticipantName {
		t.Errorf("Get = %+v, want %+v", got, c)
	}
	if got.Sequence == nil || *got.Sequence != 1 {
		t.Errorf("Sequence = %v, want 1", got.Sequence)
	}
	if !got.GeneratedAt.Equal(c.GeneratedAt) {
		t.Errorf("GeneratedAt = %v, want %v", got.GeneratedAt, c.GeneratedAt)
	}

	byNum, err := s.GetByNumber(ctx, "ev-1", "CERT-000001")
	if err != nil || byNum.ID != c.ID {
		t.Errorf("GetByNumber = %v, %v", byNum, err)
	}

	if _, err := s.Get(ctx, "ev-1", "u-2"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Get missing = %v, want ErrNotFound", err)
	}
	if _, err := s.GetByNumber(ctx, "ev-2", "CERT-000001"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("GetByNumber other event = %v, want ErrNotFound", err)
	}
}

func testDuplicateParticipant(t *testing.T, s store.Store) {
	ctx := context.Background()
	if err := s.Insert(ctx, Cert("ev-1", "u-1", "A-1", nil)); err != nil {
		t.Fatal(err)
	}
	err := s.Insert(ctx, Cert("ev-1", "u-1", "A-2", nil))
	if !errors.Is(err, store.ErrDuplicateCertificate) {
		t.Errorf("second Insert = %v, want ErrDuplicateCertificate", err)
	}
	// Same user, different event is fine.
	if err := s.Insert(ctx, Cert("ev-2", "u-1", "A-1", nil)); err != nil {
		t.Errorf("Insert in other event: %v", err)
	}
}

func testDuplicateNumber(t *testing.T, s store.Store) {
	ctx := context.Background()
	if err := s.Insert(ctx, Cert("ev-1", "u-1", "N-1", nil)); err != nil {
		t.Fatal(err)
	}
	err := s.Insert(ctx, Cert("ev-1", "u-2", "N-1", nil))
	if !errors.Is(err, store.ErrNumberTaken) {
		t.Errorf("Insert reused number = %v, want ErrNumberTaken", err)
	}
	if _, err := s.Get(ctx, "ev-1", "u-2"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("rejected insert left a record: %v", err)
	}
}

func testOutOfOrderSequence(t *testing.T, s store.Store) {
	ctx := context.Background()
	tests := []struct {
		user    string
		number  string
		seq     int64
		wantErr error
	}{
		{"u-2", "CERT-000002", 2, nil},
		{"u-1", "CERT-000001", 1, nil},
		{"u-3", "OTHER-000002", 2, store.ErrNumberTaken},
		{"u-4", "CERT-000004", 4, nil},
		{"u-5", "CERT-000003", 3, nil},
	}
	for _, tt := range tests {
		err := s.Insert(ctx, Cert("ev-1", tt.user, tt.number, seq(tt.seq)))
		if !errors.Is(err, tt.wantErr) {
			t.Errorf("Insert %s (sequence %d) = %v, want %v", tt.number, tt.seq, err, tt.wantErr)
		}
	}
	if err := s.Insert(ctx, Cert("ev-2", "u-1", "CERT-000002", seq(2))); err != nil {
		t.Errorf("sequence reuse across events: %v", err)
	}

	got, err := s.List(ctx, "ev-1")
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"CERT-000001", "CERT-000002", "CERT-000003", "CERT-000004"}
	if len(got) != len(want) {
		t.Fatalf("List returned %d records, want %d", len(got), len(want))
	}
	for i, c := range got {
		if c.Number != want[i] {
			t.Errorf("List[%d] = %s, want %s", i, c.Number, want[i])
		}
	}
}

func testListOrder(t *testing.T, s store.Store) {
	ctx := context.Background()
	for i := int64(1); i <= 5; i++ {
		c := Cert("ev-1", fmt.Sprintf("u-%d", i), fmt.Sprintf("CERT-%06d", i), seq(i))
		if err := s.Insert(ctx, c); err != nil {
			t.Fatal(err)
		}
	}
	if err := s.Insert(ctx, Cert("ev-2", "u-1", "CERT-000001", seq(1))); err != nil {
		t.Fatal(err)
	}

	list, err := s.List(ctx, "ev-1")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 5 {
		t.Fatalf("List returned %d, want 5", len(list))
	}
	for i, c := range list {
		if want := fmt.Sprintf("CERT-%06d", i+1); c.Number != want {
			t.Errorf("list[%d] = %s, want %s", i, c.Number, want)
		}
	}

	empty, err := s.List(ctx, "ev-none")
	if err != nil || len(empty) != 0 {
		t.Errorf("List empty event = %v, %v", empty, err)
	}
}

func testCompareAndSwap(t *testing.T, s store.Store) {
	ctx := context.Background()
	if v, err := s.Sequence(ctx, "ev-1"); err != nil || v != 0 {
		t.Fatalf("Sequence fresh = %d, %v", v, err)
	}
	if ok, err := s.CompareAndSwapSequence(ctx, "ev-1", 0, 1); err != nil || !ok {
		t.Fatalf("CAS 0->1 = %v, %v", ok, err)
	}
	if ok, err := s.CompareAndSwapSequence(ctx, "ev-1", 0, 1); err != nil || ok {
		t.Errorf("stale CAS 0->1 = %v, %v; want false", ok, err)
	}
	if ok, err := s.CompareAndSwapSequence(ctx, "ev-1", 1, 2); err != nil || !ok {
		t.Errorf("CAS 1->2 = %v, %v", ok, err)
	}
	if v, _ := s.Sequence(ctx, "ev-1"); v != 2 {
		t.Errorf("Sequence = %d, want 2", v)
	}
	if v, _ := s.Sequence(ctx, "ev-2"); v != 0 {
		t.Errorf("other event Sequence = %d, want 0", v)
	}
}

func testCompareAndSwapRace(t *testing.T, s store.Store) {
	ctx := context.Background()
	const workers = 8

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := s.CompareAndSwapSequence(ctx, "ev-race", 0, 1)
			if err != nil {
				t.Errorf("CAS: %v", err)
				return
			}
			if ok {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if wins != 1 {
		t.Errorf("CAS winners = %d, want 1", wins)
	}
}

func testClaims(t *testing.T, s store.Store) {
	ctx := context.Background()
	if err := s.Claim(ctx, "ev-1", "u-1", "owner-a", time.Minute); err != nil {
		t.Fatalf("Claim: %v", err)
	}
	if err := s.Claim(ctx, "ev-1", "u-1", "owner-a", time.Minute); err != nil {
		t.Errorf("re-Claim by owner: %v", err)
	}
	if err := s.Claim(ctx, "ev-1", "u-1", "owner-b", time.Minute); !errors.Is(err, store.ErrClaimHeld) {
		t.Errorf("Claim by other = %v, want ErrClaimHeld", err)
	}
	if err := s.Claim(ctx, "ev-1", "u-2", "owner-b", time.Minute); err != nil {
		t.Errorf("Claim other user: %v", err)
	}

	// Release by a non-owner is ignored.
	if err := s.Release(ctx, "ev-1", "u-1", "owner-b"); err != nil {
		t.Fatal(err)
	}
	if err := s.Claim(ctx, "ev-1", "u-1", "owner-b", time.Minute); !errors.Is(err, store.ErrClaimHeld) {
		t.Errorf("claim survived foreign release: got %v", err)
	}

	if err := s.Release(ctx, "ev-1", "u-1", "owner-a"); err != nil {
		t.Fatal(err)
	}
	if err := s.Claim(ctx, "ev-1", "u-1", "owner-b", time.Minute); err != nil {
		t.Errorf("Claim after release: %v", err)
	}
}

func testStaleClaimTakeover(t *testing.T, s store.Store) {
	ctx := context.Background()
	if err := s.Claim(ctx, "ev-1", "u-1", "crashed", time.Millisecond); err != nil {
		t.Fatal(err)
	}
	time.Sleep(10 * time.Millisecond)
	if err := s.Claim(ctx, "ev-1", "u-1", "fresh", 5*time.Millisecond); err != nil {
		t.Errorf("takeover of stale claim: %v", err)
	}
	if err := s.Claim(ctx, "ev-1", "u-1", "crashed", time.Hour); !errors.Is(err, store.ErrClaimHeld) {
		t.Errorf("old owner reclaimed = %v, want ErrClaimHeld", err)
	}
}
