// Package realtime delivers record change notifications to subscribers so
// that open dashboards can refetch when an entry is saved.
package realtime

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/justestif/wellness-tracker/internal/metrics"
)

// EventType describes what happened to a record.
type EventType string

// Event types.
const (
	EventInsert EventType = "INSERT"
	EventUpdate EventType = "UPDATE"
	EventDelete EventType = "DELETE"
)

// DefaultBuffer is the number of undelivered changes a subscription holds
// before further changes are dropped.
const DefaultBuffer = 16

// Change is a notification that a record in Table changed for UserID.
type Change struct {
	Table    string    `json:"table"`
	Type     EventType `json:"type"`
	UserID   uuid.UUID `json:"user_id"`
	RecordID uuid.UUID `json:"record_id"`
	Date     string    `json:"date,omitempty"`
	At       time.Time `json:"at"`
}

// Publisher accepts change notifications.
type Publisher interface {
	Publish(c Change)
}

// Hub fans changes out to the subscriptions of the affected user.
type Hub struct {
	mu     sync.RWMutex
	subs   map[uuid.UUID]map[*Subscription]struct{}
	buffer int
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		subs:   make(map[uuid.UUID]map[*Subscription]struct{}),
		buffer: DefaultBuffer,
	}
}

// Subscription receives changes for one user, optionally filtered by table.
// C is closed once the subscription is released.
type Subscription struct {
	C <-chan Change

	ch     chan Change
	userID uuid.UUID
	tables map[string]struct{}
	hub    *Hub
	once   sync.Once
	stop   func() bool
}

// Subscribe registers interest in userID's changes. With no tables every
// change for the user is delivered. The subscription is released when ctx is
// done or Close is called, whichever happens first.
func (h *Hub) Subscribe(ctx context.Context, userID uuid.UUID, tables ...string) *Subscription {
	ch := make(chan Change, h.buffer)
	sub := &Subscription{
		C:      ch,
		ch:     ch,
		userID: userID,
		hub:    h,
	}
	if len(tables) > 0 {
		sub.tables = make(map[string]struct{}, len(tables))
		for _, t := range tables {
			sub.tables[t] = struct{}{}
		}
	}

	h.mu.Lock()
	if h.subs[userID] == nil {
		h.subs[userID] = make(map[*Subscription]struct{})
	}
	h.subs[userID][sub] = struct{}{}
	h.mu.Unlock()
	metrics.SubscriptionOpened()

	sub.stop = context.AfterFunc(ctx, sub.Close)
	return sub
}

// Close releases the subscription. It is safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(func() {
		if s.stop != nil {
			s.stop()
		}
		s.hub.remove(s)
		close(s.ch)
	})
}

func (s *Subscription) wants(table string) bool {
	if s.tables == nil {
		return true
	}
	_, ok := s.tables[table]
	return ok
}

func (h *Hub) remove(s *Subscription) {
	h.mu.Lock()
	removed := false
	if set := h.subs[s.userID]; set != nil {
		if _, ok := set[s]; ok {
			delete(set, s)
			removed = true
		}
		if len(set) == 0 {
			delete(h.subs, s.userID)
		}
	}
	h.mu.Unlock()
	if removed {
		metrics.SubscriptionClosed()
	}
}

// Publish delivers c to every matching subscription without blocking. A
// subscriber whose buffer is full already has a pending refetch, so the
// change is dropped for it.
func (h *Hub) Publish(c Change) {
	if c.At.IsZero() {
		c.At = time.Now().UTC()
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for sub := range h.subs[c.UserID] {
		if !sub.wants(c.Table) {
			continue
		}
		select {
		case sub.ch <- c:
		default:
			metrics.ChangeDropped()
		}
	}
}

// Subscribers returns the number of open subscriptions for userID.
func (h *Hub) Subscribers(userID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[userID])
}

// Ensure Hub implements Publisher.
var _ Publisher = (*Hub)(nil)
