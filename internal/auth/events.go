package auth

import "github.com/justestif/wellness-tracker/internal/metrics"

// Event is an auth state change.
type Event string

const (
	EventSignedIn         Event = "SIGNED_IN"
	EventSignedOut        Event = "SIGNED_OUT"
	EventPasswordRecovery Event = "PASSWORD_RECOVERY"
	EventUserUpdated      Event = "USER_UPDATED"
	EventTokenRefreshed   Event = "TOKEN_REFRESHED"
	EventUserDeleted      Event = "USER_DELETED"
)

// Listener receives auth state changes. It runs synchronously on the
// goroutine that caused the change and must not block.
type Listener func(event Event, sess *Session)

// OnAuthStateChange registers fn and returns a function that removes it.
func (s *Service) OnAuthStateChange(fn Listener) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

func (s *Service) emit(event Event, sess *Session) {
	metrics.AuthEvent(string(event))

	s.mu.RLock()
	listeners := make([]Listener, 0, len(s.listeners))
	for _, fn := range s.listeners {
		listeners = append(listeners, fn)
	}
	s.mu.RUnlock()

	for _, fn := range listeners {
		fn(event, sess)
	}
}
