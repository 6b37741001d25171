package store

import (
	"context"
	"sync"

	"github.com/BUICUONGG/courseauth/internal/notify"
)

// MemoryStore keeps the token pair in process memory. One MemoryStore shared by
// several clients behaves like the shared storage of several tabs.
type MemoryStore struct {
	mu      sync.RWMutex
	access  string
	refresh string

	watchers notify.Registry[Change]
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Access(context.Context) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.access, nil
}

func (m *MemoryStore) Refresh(context.Context) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.refresh, nil
}

func (m *MemoryStore) SetAccess(_ context.Context, token string) error {
	m.mu.Lock()
	m.access = token
	m.mu.Unlock()
	m.watchers.Emit(Change{Slot: SlotAccess})
	return nil
}

func (m *MemoryStore) SetRefresh(_ context.Context, token string) error {
	m.mu.Lock()
	m.refresh = token
	m.mu.Unlock()
	m.watchers.Emit(Change{Slot: SlotRefresh})
	return nil
}

func (m *MemoryStore) SetPair(_ context.Context, access, refresh string) error {
	m.mu.Lock()
	m.access = access
	m.refresh = refresh
	m.mu.Unlock()
	m.watchers.Emit(Change{Slot: SlotPair})
	return nil
}

func (m *MemoryStore) Clear(context.Context) error {
	m.mu.Lock()
	m.access = ""
	m.refresh = ""
	m.mu.Unlock()
	m.watchers.Emit(Change{Slot: SlotClear})
	return nil
}

func (m *MemoryStore) SwapPair(_ context.Context, expect, access, refresh string) (bool, error) {
	m.mu.Lock()
	if m.refresh != expect {
		m.mu.Unlock()
		return false, nil
	}
	m.access = access
	m.refresh = refresh
	m.mu.Unlock()
	m.watchers.Emit(Change{Slot: swapSlot(access, refresh)})
	return true, nil
}

// Watch never fails for a MemoryStore. Listeners run synchronously on the
// writer's goroutine, after the write is visible.
func (m *MemoryStore) Watch(_ context.Context, fn func(Change)) (func(), error) {
	return m.watchers.Subscribe(fn), nil
}
