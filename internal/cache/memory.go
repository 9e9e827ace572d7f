package cache

import (
	"context"
	"sync"
)

// MemoryUnread is an in-process Unread store for tests.
type MemoryUnread struct {
	mu     sync.Mutex
	counts map[string]int
}

func NewMemoryUnread() *MemoryUnread {
	return &MemoryUnread{counts: make(map[string]int)}
}

func (m *MemoryUnread) IncrUnread(_ context.Context, convType, readerID, peerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counts[unreadKey(convType, readerID, peerID)]++
	return nil
}

func (m *MemoryUnread) ResetUnread(_ context.Context, convType, readerID, peerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.counts, unreadKey(convType, readerID, peerID))
	return nil
}

func (m *MemoryUnread) GetUnread(_ context.Context, convType, readerID, peerID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counts[unreadKey(convType, readerID, peerID)], nil
}

// MemoryPresence is an in-process Presence store for tests.
type MemoryPresence struct {
	mu     sync.Mutex
	online map[string]bool
}

func NewMemoryPresence() *MemoryPresence {
	return &MemoryPresence{online: make(map[string]bool)}
}

func (m *MemoryPresence) TouchPresence(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.online[userID] = true
	return nil
}

func (m *MemoryPresence) Online(_ context.Context, userID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online[userID], nil
}
