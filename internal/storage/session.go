package storage

import (
	"context"
	"sync"
	"time"

	"github.com/aliskhannn/pathway-quiz-bot/internal/domain/entities"
)

type storedSession struct {
	session entities.AuthSession
	savedAt time.Time
}

// SessionStorage provides in-memory storage for auth sessions by storage key.
type SessionStorage struct {
	mu       sync.RWMutex
	sessions map[string]storedSession
}

// NewSessionStorage creates a new SessionStorage.
func NewSessionStorage() *SessionStorage {
	return &SessionStorage{
		sessions: make(map[string]storedSession),
	}
}

// LoadSession returns the session stored under key, or nil.
func (s *SessionStorage) LoadSession(_ context.Context, key string) (*entities.AuthSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored, ok := s.sessions[key]
	if !ok {
		return nil, nil
	}
	sess := stored.session
	return &sess, nil
}

// SaveSession stores a copy of sess under key.
func (s *SessionStorage) SaveSession(_ context.Context, key string, sess *entities.AuthSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[key] = storedSession{session: *sess, savedAt: time.Now()}
	return nil
}

// DeleteSession removes the session stored under key.
func (s *SessionStorage) DeleteSession(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, key)
	return nil
}

// TouchSession marks the session under key as used now. Missing keys are
// ignored.
func (s *SessionStorage) TouchSession(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.sessions[key]
	if !ok {
		return nil
	}
	stored.savedAt = time.Now()
	s.sessions[key] = stored
	return nil
}

// DeleteSessionsBefore removes sessions last saved or touched before t.
func (s *SessionStorage) DeleteSessionsBefore(_ context.Context, t time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for key, stored := range s.sessions {
		if stored.savedAt.Before(t) {
			delete(s.sessions, key)
			n++
		}
	}
	return n, nil
}
