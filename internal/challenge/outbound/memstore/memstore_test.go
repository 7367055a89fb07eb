package memstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shandysiswandi/otpgate/internal/challenge/entity"
	"github.com/shandysiswandi/otpgate/internal/pkg/goerror"
)

type fakeClock struct {
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	return f.now
}

type seqID struct {
	next int64
}

func (s *seqID) Generate() int64 {
	s.next++
	return s.next
}

func newTestStore() (*Store, *fakeClock) {
	clk := &fakeClock{now: time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)}
	return New(clk, &seqID{}, 30*24*time.Hour, 24*time.Hour), clk
}

func testChallenge(subject string, now time.Time) entity.Challenge {
	return entity.Challenge{
		Subject:     subject,
		Method:      entity.MethodSMS,
		CodeHash:    "salt:digest",
		MaxAttempts: 5,
		CreatedAt:   now,
		ExpiresAt:   now.Add(5 * time.Minute),
	}
}

func TestStoreUpsertSupersedes(t *testing.T) {
	store, clk := newTestStore()
	ctx := context.Background()

	first := testChallenge("+6281234567890", clk.now)
	first.CodeHash = "old"
	if err := store.Upsert(ctx, first); err != nil {
		t.Fatalf("Upsert returned error: %v", err)
	}

	second := testChallenge("+6281234567890", clk.now)
	second.CodeHash = "new"
	if err := store.Upsert(ctx, second); err != nil {
		t.Fatalf("Upsert returned error: %v", err)
	}

	got, err := store.Get(ctx, "+6281234567890")
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if got.CodeHash != "new" {
		t.Errorf("CodeHash = %q, the earlier challenge survived the reissue", got.CodeHash)
	}
}

func TestStoreGetReturnsExpired(t *testing.T) {
	store, clk := newTestStore()
	ctx := context.Background()

	if err := store.Upsert(ctx, testChallenge("alice@example.com", clk.now)); err != nil {
		t.Fatalf("Upsert returned error: %v", err)
	}

	clk.now = clk.now.Add(5 * time.Minute)

	// Expired challenges stay readable so the caller can tell EXPIRED apart
	// from NOT_FOUND. Deletion is the caller's move, not the store's.
	got, err := store.Get(ctx, "alice@example.com")
	if err != nil {
		t.Fatalf("Get after TTL returned error: %v", err)
	}
	if !got.ExpiredAt(clk.now) {
		t.Errorf("ExpiredAt(%v) = false, want true", clk.now)
	}

	if err := store.Delete(ctx, "alice@example.com"); err != nil {
		t.Fatalf("Delete returned error: %v", err)
	}
	if _, err := store.Get(ctx, "alice@example.com"); !errors.Is(err, goerror.ErrNotFound) {
		t.Errorf("Get after Delete error = %v, want ErrNotFound", err)
	}
}

func TestStoreRecordAttempt(t *testing.T) {
	store, clk := newTestStore()
	ctx := context.Background()

	if err := store.Upsert(ctx, testChallenge("alice@example.com", clk.now)); err != nil {
		t.Fatalf("Upsert returned error: %v", err)
	}

	at := clk.now.Add(10 * time.Second)
	ch, err := store.RecordAttempt(ctx, "alice@example.com", at)
	if err != nil {
		t.Fatalf("RecordAttempt returned error: %v", err)
	}

	if ch.Attempts != 1 {
		t.Errorf("Attempts = %d, want 1", ch.Attempts)
	}
	if !ch.LastAttemptAt.Equal(at) {
		t.Errorf("LastAttemptAt = %v, want %v", ch.LastAttemptAt, at)
	}

	ch, err = store.RecordAttempt(ctx, "alice@example.com", at.Add(time.Second))
	if err != nil {
		t.Fatalf("RecordAttempt returned error: %v", err)
	}
	if ch.Attempts != 2 {
		t.Errorf("Attempts = %d, want 2", ch.Attempts)
	}
}

func TestStoreFraudEscalation(t *testing.T) {
	store, clk := newTestStore()
	ctx := context.Background()
	key := entity.FraudKey{Subject: "alice@example.com", Origin: "login", Fingerprint: "fp"}

	var rec *entity.FraudRecord
	var err error
	for i := 0; i < 5; i++ {
		rec, err = store.RecordFailure(ctx, key, clk.now, 5, 30*time.Minute)
		if err != nil {
			t.Fatalf("RecordFailure returned error: %v", err)
		}
	}

	if rec.FailureCount != 5 {
		t.Errorf("FailureCount = %d, want 5", rec.FailureCount)
	}
	if !rec.BlockedAt(clk.now) {
		t.Fatal("record not blocked after reaching threshold")
	}
	if want := clk.now.Add(30 * time.Minute); !rec.BlockedUntil.Equal(want) {
		t.Errorf("BlockedUntil = %v, want %v", rec.BlockedUntil, want)
	}
}

func TestStoreFraudSelfClear(t *testing.T) {
	store, clk := newTestStore()
	ctx := context.Background()
	key := entity.FraudKey{Subject: "alice@example.com", Origin: "login", Fingerprint: "fp"}

	for i := 0; i < 3; i++ {
		if _, err := store.RecordFailure(ctx, key, clk.now, 3, 30*time.Minute); err != nil {
			t.Fatalf("RecordFailure returned error: %v", err)
		}
	}

	// inside the window the record is visible and blocked
	rec, err := store.GetFraud(ctx, key, clk.now.Add(time.Minute))
	if err != nil {
		t.Fatalf("GetFraud returned error: %v", err)
	}
	if !rec.BlockedAt(clk.now.Add(time.Minute)) {
		t.Fatal("record not blocked inside the window")
	}

	// past the window the record clears itself on read
	if _, err := store.GetFraud(ctx, key, clk.now.Add(31*time.Minute)); !errors.Is(err, goerror.ErrNotFound) {
		t.Fatalf("GetFraud after block elapsed error = %v, want ErrNotFound", err)
	}
	if _, err := store.GetFraud(ctx, key, clk.now.Add(time.Minute)); !errors.Is(err, goerror.ErrNotFound) {
		t.Errorf("record came back after self-clear, error = %v", err)
	}
}

func TestStoreFraudClear(t *testing.T) {
	store, clk := newTestStore()
	ctx := context.Background()
	key := entity.FraudKey{Subject: "alice@example.com", Origin: "login", Fingerprint: "fp"}

	if _, err := store.RecordFailure(ctx, key, clk.now, 5, 30*time.Minute); err != nil {
		t.Fatalf("RecordFailure returned error: %v", err)
	}
	if err := store.ClearFraud(ctx, key); err != nil {
		t.Fatalf("ClearFraud returned error: %v", err)
	}

	if _, err := store.GetFraud(ctx, key, clk.now); !errors.Is(err, goerror.ErrNotFound) {
		t.Errorf("GetFraud after clear error = %v, want ErrNotFound", err)
	}
}

func TestStoreDeviceFirstSeenKept(t *testing.T) {
	store, clk := newTestStore()
	ctx := context.Background()

	first := clk.now
	if err := store.SaveDevice(ctx, entity.TrustedDevice{
		Subject: "alice@example.com", Fingerprint: "fp", FirstSeen: first, LastSeen: first,
	}); err != nil {
		t.Fatalf("SaveDevice returned error: %v", err)
	}

	later := first.Add(48 * time.Hour)
	if err := store.SaveDevice(ctx, entity.TrustedDevice{
		Subject: "alice@example.com", Fingerprint: "fp", FirstSeen: later, LastSeen: later,
	}); err != nil {
		t.Fatalf("SaveDevice returned error: %v", err)
	}

	dev, err := store.GetDevice(ctx, "alice@example.com", "fp")
	if err != nil {
		t.Fatalf("GetDevice returned error: %v", err)
	}
	if !dev.FirstSeen.Equal(first) {
		t.Errorf("FirstSeen = %v, want the original sighting %v", dev.FirstSeen, first)
	}
	if !dev.LastSeen.Equal(later) {
		t.Errorf("LastSeen = %v, want %v", dev.LastSeen, later)
	}
}

func TestStoreListDevicesOrder(t *testing.T) {
	store, clk := newTestStore()
	ctx := context.Background()

	for i, fp := range []string{"fp-a", "fp-b", "fp-c"} {
		seen := clk.now.Add(time.Duration(i) * time.Hour)
		if err := store.SaveDevice(ctx, entity.TrustedDevice{
			Subject: "alice@example.com", Fingerprint: fp, FirstSeen: seen, LastSeen: seen,
		}); err != nil {
			t.Fatalf("SaveDevice returned error: %v", err)
		}
	}

	devs, err := store.ListDevices(ctx, "alice@example.com")
	if err != nil {
		t.Fatalf("ListDevices returned error: %v", err)
	}

	want := []string{"fp-c", "fp-b", "fp-a"}
	if len(devs) != len(want) {
		t.Fatalf("got %d devices, want %d", len(devs), len(want))
	}
	for i, fp := range want {
		if devs[i].Fingerprint != fp {
			t.Errorf("devs[%d].Fingerprint = %q, want %q", i, devs[i].Fingerprint, fp)
		}
	}
}

func TestStoreVaultSingleUse(t *testing.T) {
	store, _ := newTestStore()
	ctx := context.Background()

	if err := store.ReplaceBackupCodes(ctx, "alice@example.com", []string{"h1", "h2"}); err != nil {
		t.Fatalf("ReplaceBackupCodes returned error: %v", err)
	}

	codes, err := store.ListBackupCodes(ctx, "alice@example.com")
	if err != nil {
		t.Fatalf("ListBackupCodes returned error: %v", err)
	}
	if len(codes) != 2 {
		t.Fatalf("got %d codes, want 2", len(codes))
	}

	spent, err := store.MarkBackupCodeUsed(ctx, codes[0].ID, "alice@example.com")
	if err != nil {
		t.Fatalf("MarkBackupCodeUsed returned error: %v", err)
	}
	if !spent {
		t.Fatal("first redemption reported not spent")
	}

	spent, err = store.MarkBackupCodeUsed(ctx, codes[0].ID, "alice@example.com")
	if err != nil {
		t.Fatalf("MarkBackupCodeUsed returned error: %v", err)
	}
	if spent {
		t.Error("second redemption of the same code succeeded")
	}
}

func TestStoreVaultReplaceDropsOldSet(t *testing.T) {
	store, _ := newTestStore()
	ctx := context.Background()

	if err := store.ReplaceBackupCodes(ctx, "alice@example.com", []string{"old1", "old2"}); err != nil {
		t.Fatalf("ReplaceBackupCodes returned error: %v", err)
	}
	if err := store.ReplaceBackupCodes(ctx, "alice@example.com", []string{"new1"}); err != nil {
		t.Fatalf("ReplaceBackupCodes returned error: %v", err)
	}

	codes, err := store.ListBackupCodes(ctx, "alice@example.com")
	if err != nil {
		t.Fatalf("ListBackupCodes returned error: %v", err)
	}
	if len(codes) != 1 || codes[0].Hash != "new1" {
		t.Errorf("codes after replace = %+v, want only the new set", codes)
	}
}

func TestStoreSweep(t *testing.T) {
	store, clk := newTestStore()
	ctx := context.Background()

	if err := store.Upsert(ctx, testChallenge("alice@example.com", clk.now)); err != nil {
		t.Fatalf("Upsert returned error: %v", err)
	}
	key := entity.FraudKey{Subject: "alice@example.com", Origin: "login", Fingerprint: "fp"}
	if _, err := store.RecordFailure(ctx, key, clk.now, 10, 30*time.Minute); err != nil {
		t.Fatalf("RecordFailure returned error: %v", err)
	}
	if err := store.SaveDevice(ctx, entity.TrustedDevice{
		Subject: "alice@example.com", Fingerprint: "fp", FirstSeen: clk.now, LastSeen: clk.now,
	}); err != nil {
		t.Fatalf("SaveDevice returned error: %v", err)
	}

	// nothing is stale yet
	if n := store.Sweep(ctx); n != 0 {
		t.Fatalf("Sweep removed %d entries, want 0", n)
	}

	// past the fraud retention and the device horizon everything goes
	clk.now = clk.now.Add(31 * 24 * time.Hour)
	if n := store.Sweep(ctx); n != 3 {
		t.Errorf("Sweep removed %d entries, want 3", n)
	}
	if got := store.SweptTotal(); got != 3 {
		t.Errorf("SweptTotal = %d, want 3", got)
	}
}
