package bridge

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// DefaultLockTimeout bounds how long a crashed pass can hold a tab.
const DefaultLockTimeout = time.Minute

// ErrTabBusy is returned when another fill pass holds the tab.
var ErrTabBusy = errors.New("tab busy")

type lockEntry struct {
	owner   string
	expires time.Time
}

// LockManager serializes fill passes per tab. A lock expires after its
// TTL so a pass that never unlocks cannot wedge the tab.
type LockManager struct {
	locks map[string]lockEntry
	mu    sync.Mutex
	now   func() time.Time
}

func NewLockManager() *LockManager {
	return &LockManager{
		locks: make(map[string]lockEntry),
		now:   time.Now,
	}
}

func (m *LockManager) TryLock(tabID, owner string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	l, ok := m.locks[tabID]
	if ok && now.Before(l.expires) && l.owner != owner {
		return fmt.Errorf("%w: tab %s is held by pass %s for another %v", ErrTabBusy, tabID, l.owner, l.expires.Sub(now).Round(time.Second))
	}

	m.locks[tabID] = lockEntry{
		owner:   owner,
		expires: now.Add(ttl),
	}
	return nil
}

func (m *LockManager) Unlock(tabID, owner string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	l, ok := m.locks[tabID]
	if !ok || m.now().After(l.expires) {
		delete(m.locks, tabID)
		return nil
	}

	if l.owner != owner {
		return fmt.Errorf("cannot unlock: tab %s is held by pass %s", tabID, l.owner)
	}

	delete(m.locks, tabID)
	return nil
}

func (m *LockManager) Get(tabID string) *LockInfo {
	m.mu.Lock()
	defer m.mu.Unlock()

	l, ok := m.locks[tabID]
	if !ok || m.now().After(l.expires) {
		return nil
	}

	return &LockInfo{
		Owner:     l.owner,
		ExpiresAt: l.expires,
	}
}

// Release drops the lock of tabID whoever holds it.
func (m *LockManager) Release(tabID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.locks, tabID)
}
