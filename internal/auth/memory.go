package auth

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// MemoryStore is an in-memory Store for development and tests.
type MemoryStore struct {
	mu       sync.RWMutex
	users    map[uuid.UUID]User
	sessions map[string]StoredSession
	tokens   map[string]OneTimeToken
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:    make(map[uuid.UUID]User),
		sessions: make(map[string]StoredSession),
		tokens:   make(map[string]OneTimeToken),
	}
}

// CreateUser stores a new user.
func (s *MemoryStore) CreateUser(_ context.Context, u *User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.users {
		if strings.EqualFold(existing.Email, u.Email) {
			return ErrUserExists
		}
	}
	s.users[u.ID] = *u
	return nil
}

// GetUserByID returns the user with id.
func (s *MemoryStore) GetUserByID(_ context.Context, id uuid.UUID) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	return &u, nil
}

// GetUserByEmail returns the user with email, compared case-insensitively.
func (s *MemoryStore) GetUserByEmail(_ context.Context, email string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			return &u, nil
		}
	}
	return nil, ErrUserNotFound
}

// UpdateUser replaces the stored user.
func (s *MemoryStore) UpdateUser(_ context.Context, u *User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[u.ID]; !ok {
		return ErrUserNotFound
	}
	s.users[u.ID] = *u
	return nil
}

// DeleteUser removes the user and everything that references it.
func (s *MemoryStore) DeleteUser(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[id]; !ok {
		return ErrUserNotFound
	}
	delete(s.users, id)
	for key, sess := range s.sessions {
		if sess.UserID == id {
			delete(s.sessions, key)
		}
	}
	for key, t := range s.tokens {
		if t.UserID == id {
			delete(s.tokens, key)
		}
	}
	return nil
}

// CreateSession stores a new session.
func (s *MemoryStore) CreateSession(_ context.Context, sess *StoredSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions[sess.ID] = *sess
	return nil
}

// GetSession returns the session with id.
func (s *MemoryStore) GetSession(_ context.Context, id string) (*StoredSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, ErrSessionMissing
	}
	return &sess, nil
}

// GetSessionByRefresh returns the session holding the refresh token hash.
func (s *MemoryStore) GetSessionByRefresh(_ context.Context, refreshHash string) (*StoredSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, sess := range s.sessions {
		if sess.RefreshHash == refreshHash {
			return &sess, nil
		}
	}
	return nil, ErrSessionMissing
}

// UpdateSession replaces the stored session.
func (s *MemoryStore) UpdateSession(_ context.Context, sess *StoredSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[sess.ID]; !ok {
		return ErrSessionMissing
	}
	s.sessions[sess.ID] = *sess
	return nil
}

// DeleteSession removes the session. Missing sessions are not an error.
func (s *MemoryStore) DeleteSession(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, id)
	return nil
}

// DeleteUserSessions removes every session of userID.
func (s *MemoryStore) DeleteUserSessions(_ context.Context, userID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, sess := range s.sessions {
		if sess.UserID == userID {
			delete(s.sessions, key)
		}
	}
	return nil
}

// CreateToken stores a one-time token.
func (s *MemoryStore) CreateToken(_ context.Context, t *OneTimeToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tokens[t.Hash] = *t
	return nil
}

// GetToken returns the token with hash.
func (s *MemoryStore) GetToken(_ context.Context, hash string) (*OneTimeToken, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tokens[hash]
	if !ok {
		return nil, ErrInvalidToken
	}
	return &t, nil
}

// DeleteToken removes the token with hash.
func (s *MemoryStore) DeleteToken(_ context.Context, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tokens[hash]; !ok {
		return ErrInvalidToken
	}
	delete(s.tokens, hash)
	return nil
}

// Ensure MemoryStore implements Store.
var _ Store = (*MemoryStore)(nil)
