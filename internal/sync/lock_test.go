package sync

import (
	"context"
	"testing"
	"time"

	"github.com/creatorpulse/creatorpulse/internal/models"
)

func lockFixture(t *testing.T, maxAge time.Duration) (*LockService, *MemoryAccountRepository, *models.TrackedAccount) {
	t.Helper()

	accounts := NewMemoryAccountRepository()
	account := &models.TrackedAccount{
		ID:             "acc-1",
		OrganizationID: "org-1",
		ProjectID:      "proj-1",
		Platform:       models.PlatformTikTok,
		Username:       "creator",
		CreatorType:    models.CreatorTypeAutomatic,
		Enabled:        true,
	}
	if err := accounts.Store(context.Background(), account); err != nil {
		t.Fatalf("store account: %v", err)
	}

	return NewLockService(accounts, maxAge, testLogger()), accounts, account
}

func TestAcquireFreshLock(t *testing.T) {
	locks, _, account := lockFixture(t, time.Minute)

	result, err := locks.Acquire(context.Background(), account.ID, "holder-1")
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if !result.Acquired {
		t.Fatalf("fresh lock not acquired: %s", result.Reason)
	}
}

func TestAcquireContendedLock(t *testing.T) {
	locks, _, account := lockFixture(t, time.Minute)

	if result, _ := locks.Acquire(context.Background(), account.ID, "holder-1"); !result.Acquired {
		t.Fatal("first acquire failed")
	}

	result, err := locks.Acquire(context.Background(), account.ID, "holder-2")
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if result.Acquired {
		t.Fatal("second holder acquired a held lock")
	}
	if result.Reason == "" {
		t.Error("refusal should carry a reason")
	}
}

func TestAcquireTakesOverStaleLock(t *testing.T) {
	locks, accounts, account := lockFixture(t, time.Minute)

	// Simulate a crashed worker: lock held longer than the staleness threshold.
	stale := time.Now().Add(-2 * time.Minute)
	account.LockToken = "dead-worker"
	account.LockAcquiredAt = &stale
	if err := accounts.Store(context.Background(), account); err != nil {
		t.Fatalf("store account: %v", err)
	}

	result, err := locks.Acquire(context.Background(), account.ID, "holder-2")
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if !result.Acquired {
		t.Fatalf("stale lock not taken over: %s", result.Reason)
	}
}

func TestAcquireUnknownAccount(t *testing.T) {
	locks, _, _ := lockFixture(t, time.Minute)

	result, err := locks.Acquire(context.Background(), "missing", "holder-1")
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if result.Acquired {
		t.Fatal("acquired a lock on a missing account")
	}
}

func TestReleaseAllowsReacquire(t *testing.T) {
	locks, _, account := lockFixture(t, time.Minute)

	if result, _ := locks.Acquire(context.Background(), account.ID, "holder-1"); !result.Acquired {
		t.Fatal("first acquire failed")
	}
	locks.Release(context.Background(), account.ID, "holder-1")

	result, err := locks.Acquire(context.Background(), account.ID, "holder-2")
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if !result.Acquired {
		t.Fatal("lock not reacquirable after release")
	}
}

func TestReleaseWithWrongTokenIsNoop(t *testing.T) {
	locks, accounts, account := lockFixture(t, time.Minute)

	if result, _ := locks.Acquire(context.Background(), account.ID, "holder-1"); !result.Acquired {
		t.Fatal("first acquire failed")
	}

	// A late release from a superseded holder must not clear the live lock.
	locks.Release(context.Background(), account.ID, "stale-holder")

	stored, err := accounts.GetByID(context.Background(), account.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if stored.LockToken != "holder-1" {
		t.Errorf("lock token = %q, want holder-1 untouched", stored.LockToken)
	}
}

func TestLockServiceDefaultsMaxAge(t *testing.T) {
	locks := NewLockService(NewMemoryAccountRepository(), 0, testLogger())
	if locks.MaxAge() != DefaultLockMaxAge {
		t.Errorf("MaxAge = %v, want default %v", locks.MaxAge(), DefaultLockMaxAge)
	}
}
