// Package session keeps the volatile per-participant dialog state.
package session

import (
	"sync"
	"time"

	"github.com/xiaot623/studybuddy/internal/clock"
	"github.com/xiaot623/studybuddy/internal/domain"
)

// Store maps a participant key to its dialog session.
//
// Lock serializes a participant's turns: callers hold the returned unlock for
// the whole read-modify-write of a turn. Keys never contend with each other.
type Store interface {
	Get(key string) domain.Session
	Put(key string, s domain.Session)
	Clear(key string)
	Lock(key string) (unlock func())
}

// MemoryStore is an in-memory Store. Contents are lost on restart.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]domain.Session

	locksMu sync.Mutex
	locks   map[string]*keyLock

	clock clock.Clock
	ttl   time.Duration
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

// NewMemoryStore creates a store. Sessions untouched for longer than ttl read
// back as idle; ttl <= 0 disables expiry.
func NewMemoryStore(c clock.Clock, ttl time.Duration) *MemoryStore {
	if c == nil {
		c = clock.New(time.UTC)
	}
	return &MemoryStore{
		sessions: make(map[string]domain.Session),
		locks:    make(map[string]*keyLock),
		clock:    c,
		ttl:      ttl,
	}
}

// Get returns a copy of the participant's session, or an idle one.
func (s *MemoryStore) Get(key string) domain.Session {
	s.mu.RLock()
	sess, ok := s.sessions[key]
	s.mu.RUnlock()
	if !ok {
		return domain.Session{}
	}
	if s.ttl > 0 && s.clock.Now().Sub(sess.UpdatedAt) > s.ttl {
		s.Clear(key)
		return domain.Session{}
	}
	return sess.Clone()
}

// Put stores a copy of sess. An idle session is the same as Clear.
func (s *MemoryStore) Put(key string, sess domain.Session) {
	if !sess.Active() {
		s.Clear(key)
		return
	}
	sess = sess.Clone()
	sess.UpdatedAt = s.clock.Now()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[key] = sess
}

func (s *MemoryStore) Clear(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, key)
}

// Lock acquires the participant's turn lock.
func (s *MemoryStore) Lock(key string) func() {
	s.locksMu.Lock()
	l, ok := s.locks[key]
	if !ok {
		l = &keyLock{}
		s.locks[key] = l
	}
	l.refs++
	s.locksMu.Unlock()

	l.mu.Lock()

	return func() {
		l.mu.Unlock()

		s.locksMu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(s.locks, key)
		}
		s.locksMu.Unlock()
	}
}

// Len returns the number of active sessions.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
