// Package sessions keeps track of chat sessions so that consecutive
// questions from one browser reach the agent under one session id.
package sessions

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned for unknown session ids.
var ErrNotFound = errors.New("session not found")

// Session is one browser's conversation with the agent. The agent keeps
// the actual conversation state; we only keep the id it knows it by.
type Session struct {
	ID             string    `json:"id"`
	AgentSessionID string    `json:"agent_session_id"`
	TurnCount      int       `json:"turn_count"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// MemoryStore is a thread-safe in-memory session store. Sessions idle for
// longer than the TTL are treated as gone.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	ttl      time.Duration
	now      func() time.Time
}

// NewMemoryStore creates a store. A zero ttl keeps sessions forever.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*Session),
		ttl:      ttl,
		now:      time.Now,
	}
}

// Create starts a new session with fresh ids.
func (s *MemoryStore) Create(_ context.Context) (*Session, error) {
	now := s.now().UTC()
	sess := &Session{
		ID:             uuid.New().String(),
		AgentSessionID: uuid.New().String(),
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.sessions[sess.ID]; exists {
		return nil, fmt.Errorf("session %s already exists", sess.ID)
	}
	s.sessions[sess.ID] = sess
	cp := *sess
	return &cp, nil
}

// Get returns a copy of the session.
func (s *MemoryStore) Get(_ context.Context, id string) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[id]
	if !ok || s.expired(sess) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	cp := *sess
	return &cp, nil
}

// GetOrCreate returns the session for id, or a new one when id is unknown
// or expired.
func (s *MemoryStore) GetOrCreate(ctx context.Context, id string) (*Session, error) {
	if id != "" {
		if sess, err := s.Get(ctx, id); err == nil {
			return sess, nil
		}
	}
	return s.Create(ctx)
}

// RecordTurn bumps the turn count of a session.
func (s *MemoryStore) RecordTurn(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	sess.TurnCount++
	sess.UpdatedAt = s.now().UTC()
	return nil
}

// Delete removes a session.
func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.sessions[id]; !exists {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	delete(s.sessions, id)
	return nil
}

// Sweep drops expired sessions and returns how many were removed.
func (s *MemoryStore) Sweep(_ context.Context) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for id, sess := range s.sessions {
		if s.expired(sess) {
			delete(s.sessions, id)
			n++
		}
	}
	return n
}

// Len returns the number of stored sessions, expired or not.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

func (s *MemoryStore) expired(sess *Session) bool {
	return s.ttl > 0 && s.now().Sub(sess.UpdatedAt) > s.ttl
}
