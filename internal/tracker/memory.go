package tracker

import (
	"context"
	"reflect"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// MemoryStore is an in-memory Store for development and tests.
type MemoryStore struct {
	mu       sync.RWMutex
	entries  map[Kind]map[string]Entry
	profiles map[uuid.UUID]Profile
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries:  make(map[Kind]map[string]Entry),
		profiles: make(map[uuid.UUID]Profile),
	}
}

func memKey(userID uuid.UUID, date Date) string {
	return userID.String() + "|" + string(date)
}

// clone returns a shallow copy so callers cannot mutate stored entries.
func clone(e Entry) Entry {
	v := reflect.ValueOf(e).Elem()
	c := reflect.New(v.Type())
	c.Elem().Set(v)
	return c.Interface().(Entry)
}

// GetEntry returns the entry for userID and date.
func (s *MemoryStore) GetEntry(_ context.Context, kind Kind, userID uuid.UUID, date Date) (Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[kind][memKey(userID, date)]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(e), nil
}

// InsertEntry stores a new entry.
func (s *MemoryStore) InsertEntry(_ context.Context, e Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m := e.Base()
	if s.entries[e.Kind()] == nil {
		s.entries[e.Kind()] = make(map[string]Entry)
	}
	s.entries[e.Kind()][memKey(m.UserID, m.Date)] = clone(e)
	return nil
}

// UpdateEntry replaces the stored entry with the same user and date.
func (s *MemoryStore) UpdateEntry(_ context.Context, e Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m := e.Base()
	key := memKey(m.UserID, m.Date)
	if _, ok := s.entries[e.Kind()][key]; !ok {
		return ErrNotFound
	}
	s.entries[e.Kind()][key] = clone(e)
	return nil
}

// ListEntries returns entries within [from, to], oldest first.
func (s *MemoryStore) ListEntries(_ context.Context, kind Kind, userID uuid.UUID, from, to Date) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Entry
	for _, e := range s.entries[kind] {
		m := e.Base()
		if m.UserID != userID || m.Date < from || m.Date > to {
			continue
		}
		out = append(out, clone(e))
	}
	slices.SortFunc(out, func(a, b Entry) int {
		return strings.Compare(string(a.Base().Date), string(b.Base().Date))
	})
	return out, nil
}

// GetProfile returns the stored profile.
func (s *MemoryStore) GetProfile(_ context.Context, userID uuid.UUID) (*Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.profiles[userID]
	if !ok {
		return nil, ErrNotFound
	}
	return &p, nil
}

// UpsertProfile creates or replaces the profile.
func (s *MemoryStore) UpsertProfile(_ context.Context, p *Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.profiles[p.UserID]; ok {
		p.CreatedAt = existing.CreatedAt
	}
	s.profiles[p.UserID] = *p
	return nil
}

// DeleteUser removes every entry and the profile belonging to userID.
func (s *MemoryStore) DeleteUser(_ context.Context, userID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, byKey := range s.entries {
		for key, e := range byKey {
			if e.Base().UserID == userID {
				delete(byKey, key)
			}
		}
	}
	delete(s.profiles, userID)
	return nil
}

// Ensure MemoryStore implements Store.
var _ Store = (*MemoryStore)(nil)
