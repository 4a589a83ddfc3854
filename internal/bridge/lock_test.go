package bridge

import (
	"errors"
	"testing"
	"time"
)

func TestLockManager(t *testing.T) {
	m := NewLockManager()
	now := time.Unix(1_700_000_000, 0)
	m.now = func() time.Time { return now }

	tabID := "tab1"
	ttl := 100 * time.Millisecond

	if err := m.TryLock(tabID, "pass1", ttl); err != nil {
		t.Fatalf("lock failed: %v", err)
	}

	if err := m.TryLock(tabID, "pass1", ttl); err != nil {
		t.Fatalf("re-lock same owner failed: %v", err)
	}

	if err := m.TryLock(tabID, "pass2", ttl); !errors.Is(err, ErrTabBusy) {
		t.Errorf("expected ErrTabBusy, got %v", err)
	}

	if err := m.Unlock(tabID, "pass2"); err == nil {
		t.Error("foreign unlock should fail")
	}

	if err := m.Unlock(tabID, "pass1"); err != nil {
		t.Fatalf("unlock failed: %v", err)
	}

	if err := m.TryLock(tabID, "pass2", ttl); err != nil {
		t.Fatalf("lock after unlock failed: %v", err)
	}

	now = now.Add(150 * time.Millisecond)
	if err := m.TryLock(tabID, "pass1", ttl); err != nil {
		t.Fatalf("lock after expiration failed: %v", err)
	}
}

func TestLockManagerGet(t *testing.T) {
	m := NewLockManager()
	tabID := "tab1"
	owner := "pass1"

	if info := m.Get(tabID); info != nil {
		t.Error("expected nil info for unlocked tab")
	}

	_ = m.TryLock(tabID, owner, time.Hour)
	info := m.Get(tabID)
	if info == nil {
		t.Fatal("expected info")
	}
	if info.Owner != owner {
		t.Errorf("expected owner %s, got %s", owner, info.Owner)
	}
}
