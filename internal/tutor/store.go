package tutor

import (
	"context"
	"sync"
	"time"
)

// Store persists sessions by user id.
type Store interface {
	// GetOrCreate returns the session of userID, creating the initial one if
	// none exists. The caller owns the returned value until Save.
	GetOrCreate(ctx context.Context, userID int64) (*Session, error)
	Save(ctx context.Context, s *Session) error
}

// MemoryStore keeps sessions for the lifetime of the process. Reads and
// writes copy, so callers never share a *Session.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[int64]*Session
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[int64]*Session)}
}

func (m *MemoryStore) GetOrCreate(ctx context.Context, userID int64) (*Session, error) {
	m.mu.RLock()
	s, ok := m.sessions[userID]
	m.mu.RUnlock()
	if ok {
		return s.Clone(), nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[userID]; ok {
		return s.Clone(), nil
	}
	s = NewSession(userID)
	m.sessions[userID] = s
	return s.Clone(), nil
}

func (m *MemoryStore) Save(ctx context.Context, s *Session) error {
	c := s.Clone()
	c.UpdatedAt = time.Now()

	m.mu.Lock()
	m.sessions[s.UserID] = c
	m.mu.Unlock()
	return nil
}

// Len returns the number of known users.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Locker provides per-user mutual exclusion around load, transition and save.
type Locker struct {
	mu    sync.Mutex
	locks map[int64]*userLock
}

type userLock struct {
	mu   sync.Mutex
	refs int
}

// NewLocker returns an empty Locker.
func NewLocker() *Locker {
	return &Locker{locks: make(map[int64]*userLock)}
}

// Lock blocks until userID is free and returns the matching unlock function.
func (l *Locker) Lock(userID int64) func() {
	l.mu.Lock()
	ul, ok := l.locks[userID]
	if !ok {
		ul = &userLock{}
		l.locks[userID] = ul
	}
	ul.refs++
	l.mu.Unlock()

	ul.mu.Lock()
	return func() {
		ul.mu.Unlock()

		l.mu.Lock()
		ul.refs--
		if ul.refs == 0 {
			delete(l.locks, userID)
		}
		l.mu.Unlock()
	}
}
