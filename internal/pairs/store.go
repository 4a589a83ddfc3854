package pairs

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Store persists the ordered pair list.
type Store interface {
	Load(ctx context.Context) ([]Pair, error)
	Save(ctx context.Context, list []Pair) error
}

// Manager serializes read-modify-write cycles against a Store so concurrent
// edits never drop each other.
type Manager struct {
	store Store
	now   func() time.Time
	mu    sync.Mutex
}

func NewManager(store Store) *Manager {
	return &Manager{store: store, now: time.Now}
}

func (m *Manager) Load(ctx context.Context) ([]Pair, error) {
	return m.store.Load(ctx)
}

func (m *Manager) List(ctx context.Context, query string) ([]Pair, error) {
	list, err := m.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	return Search(list, query), nil
}

// Add stores a new pair or updates the value of an existing one with the
// same label. created reports which happened.
func (m *Manager) Add(ctx context.Context, label, value string) (p Pair, created bool, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	list, err := m.store.Load(ctx)
	if err != nil {
		return Pair{}, false, err
	}
	list, p, created, err = Add(list, label, value, m.now())
	if err != nil {
		return Pair{}, false, err
	}
	if err := m.store.Save(ctx, list); err != nil {
		return Pair{}, false, err
	}
	return p, created, nil
}

func (m *Manager) Delete(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	list, err := m.store.Load(ctx)
	if err != nil {
		return err
	}
	list, err = Delete(list, id)
	if err != nil {
		return err
	}
	return m.store.Save(ctx, list)
}

// Import merges incoming pairs in order through Add, so duplicate labels
// update values instead of piling up. It returns how many pairs were
// created and how many were updated.
func (m *Manager) Import(ctx context.Context, incoming []Pair) (created, updated int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	list, err := m.store.Load(ctx)
	if err != nil {
		return 0, 0, err
	}
	for i, in := range incoming {
		var isNew bool
		list, _, isNew, err = Add(list, in.Label, in.Value, m.now())
		if err != nil {
			return 0, 0, fmt.Errorf("pair %d: %w", i, err)
		}
		if isNew {
			created++
		} else {
			updated++
		}
	}
	if err := m.store.Save(ctx, list); err != nil {
		return 0, 0, err
	}
	return created, updated, nil
}

// MemoryStore keeps pairs in process memory.
type MemoryStore struct {
	mu   sync.Mutex
	list []Pair
	// Err, when set, is returned wrapped by every call.
	Err error
}

func NewMemoryStore(list ...Pair) *MemoryStore {
	return &MemoryStore{list: Clone(list)}
}

func (s *MemoryStore) Load(ctx context.Context) ([]Pair, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, s.Err)
	}
	return Clone(s.list), nil
}

func (s *MemoryStore) Save(ctx context.Context, list []Pair) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, s.Err)
	}
	s.list = Clone(list)
	return nil
}
