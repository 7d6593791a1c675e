// Package session keeps per-user conversation state between requests.
//
// Sessions are identified by random UUIDs and expire after a period of
// inactivity. Each session is accessed under its own lock, so two
// requests for the same session run one after the other while requests
// for different sessions proceed in parallel.
package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultTTL is the idle time after which a session is swept.
const DefaultTTL = time.Hour

// ErrNotFound is returned for unknown or expired session IDs.
var ErrNotFound = errors.New("session not found")

type entry[T any] struct {
	mu       sync.Mutex // held while a caller's fn runs
	value    T
	lastSeen time.Time // guarded by Store.mu
	busy     int       // guarded by Store.mu
}

// Store maps session IDs to state of type T.
type Store[T any] struct {
	ttl    time.Duration
	logger *slog.Logger
	now    func() time.Time

	mu       sync.Mutex
	sessions map[string]*entry[T]
}

// NewStore creates an empty store. A ttl of zero uses DefaultTTL.
func NewStore[T any](ttl time.Duration, logger *slog.Logger) *Store[T] {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store[T]{
		ttl:      ttl,
		logger:   logger.With("component", "sessions"),
		now:      time.Now,
		sessions: make(map[string]*entry[T]),
	}
}

// Create registers a new session holding the zero value of T and
// returns its ID.
func (s *Store[T]) Create() string {
	id := uuid.New().String()

	s.mu.Lock()
	s.sessions[id] = &entry[T]{lastSeen: s.now()}
	n := len(s.sessions)
	s.mu.Unlock()

	s.logger.Debug("session created", "session_id", id, "active", n)
	return id
}

// With runs fn with exclusive access to the session's state. Changes
// fn makes through the pointer are kept. The session's idle timer is
// reset before and after fn.
func (s *Store[T]) With(id string, fn func(*T) error) error {
	s.mu.Lock()
	e, ok := s.sessions[id]
	if ok && s.expired(e) {
		delete(s.sessions, id)
		ok = false
	}
	if !ok {
		s.mu.Unlock()
		return ErrNotFound
	}
	e.busy++
	e.lastSeen = s.now()
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		e.busy--
		e.lastSeen = s.now()
		s.mu.Unlock()
	}()

	e.mu.Lock()
	defer e.mu.Unlock()
	return fn(&e.value)
}

// Exists reports whether id names a live session.
func (s *Store[T]) Exists(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.sessions[id]
	return ok && !s.expired(e)
}

// Delete removes a session and reports whether it was live.
func (s *Store[T]) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.sessions[id]
	delete(s.sessions, id)
	return ok && !s.expired(e)
}

// Len returns the number of stored sessions, expired or not.
func (s *Store[T]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func (s *Store[T]) expired(e *entry[T]) bool {
	return e.busy == 0 && s.now().Sub(e.lastSeen) > s.ttl
}

// Sweep removes idle sessions and returns how many were removed.
// Sessions with a call in progress are never removed.
func (s *Store[T]) Sweep() int {
	s.mu.Lock()
	removed := 0
	for id, e := range s.sessions {
		if s.expired(e) {
			delete(s.sessions, id)
			removed++
		}
	}
	remaining := len(s.sessions)
	s.mu.Unlock()

	if removed > 0 {
		s.logger.Info("swept idle sessions", "removed", removed, "active", remaining)
	}
	return removed
}

// Run sweeps every interval until ctx is cancelled, then sweeps once more.
func (s *Store[T]) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = s.ttl / 4
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.Sweep()
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}
