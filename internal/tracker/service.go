package tracker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/justestif/wellness-tracker/internal/metrics"
	"github.com/justestif/wellness-tracker/internal/realtime"
)

// DefaultWindowDays is the history window used by lists and charts.
const DefaultWindowDays = 30

// Store persists entries and profiles. Implementations return ErrNotFound
// for missing rows.
type Store interface {
	GetEntry(ctx context.Context, kind Kind, userID uuid.UUID, date Date) (Entry, error)
	InsertEntry(ctx context.Context, e Entry) error
	UpdateEntry(ctx context.Context, e Entry) error
	// ListEntries returns entries with from <= date <= to, oldest first.
	ListEntries(ctx context.Context, kind Kind, userID uuid.UUID, from, to Date) ([]Entry, error)

	GetProfile(ctx context.Context, userID uuid.UUID) (*Profile, error)
	UpsertProfile(ctx context.Context, p *Profile) error
}

// Service implements the tracker operations on top of a Store.
type Service struct {
	store     Store
	publisher realtime.Publisher
	now       func() time.Time
	window    int
}

// Option configures a Service.
type Option func(*Service)

// WithPublisher sets where change notifications are sent.
func WithPublisher(p realtime.Publisher) Option {
	return func(s *Service) {
		s.publisher = p
	}
}

// WithClock overrides the clock used for timestamps and "today".
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// WithWindow sets the default history window in days.
func WithWindow(days int) Option {
	return func(s *Service) {
		if days > 0 {
			s.window = days
		}
	}
}

// NewService creates a tracker service.
func NewService(store Store, opts ...Option) *Service {
	s := &Service{
		store:  store,
		now:    time.Now,
		window: DefaultWindowDays,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Today returns the current UTC date.
func (s *Service) Today() Date {
	return DateOf(s.now().UTC())
}

// Window returns the default history window in days.
func (s *Service) Window() int {
	return s.window
}

// Save stores e as the entry for its user and date, updating the existing
// entry for that day if there is one. It reports whether a new entry was created.
func (s *Service) Save(ctx context.Context, e Entry) (bool, error) {
	m := e.Base()
	if m.UserID == uuid.Nil {
		return false, fmt.Errorf("%w: user_id is required", ErrInvalidEntry)
	}
	if m.Date == "" {
		m.Date = s.Today()
	}
	if _, err := ParseDate(string(m.Date)); err != nil {
		return false, fmt.Errorf("%w: date must be YYYY-MM-DD", ErrInvalidEntry)
	}

	// Water entries without an explicit goal use the profile's goal
	if w, ok := e.(*WaterEntry); ok && w.Goal == 0 {
		w.Goal = s.waterGoal(ctx, m.UserID)
	}

	if err := e.Prepare(); err != nil {
		return false, fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}

	existing, err := s.store.GetEntry(ctx, e.Kind(), m.UserID, m.Date)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return false, fmt.Errorf("looking up %s entry: %w", e.Kind(), err)
	}

	now := s.now().UTC()
	created := existing == nil
	if created {
		m.ID = uuid.New()
		m.CreatedAt = now
		m.UpdatedAt = now
		if err := s.store.InsertEntry(ctx, e); err != nil {
			return false, fmt.Errorf("inserting %s entry: %w", e.Kind(), err)
		}
	} else {
		prev := existing.Base()
		m.ID = prev.ID
		m.CreatedAt = prev.CreatedAt
		m.UpdatedAt = now
		if err := s.store.UpdateEntry(ctx, e); err != nil {
			return false, fmt.Errorf("updating %s entry: %w", e.Kind(), err)
		}
	}

	op, event := "update", realtime.EventUpdate
	if created {
		op, event = "insert", realtime.EventInsert
	}
	metrics.EntrySaved(string(e.Kind()), op)

	if s.publisher != nil {
		s.publisher.Publish(realtime.Change{
			Table:    e.Kind().Table(),
			Type:     event,
			UserID:   m.UserID,
			RecordID: m.ID,
			Date:     string(m.Date),
			At:       now,
		})
	}

	return created, nil
}

// Get returns the user's entry of kind for date.
func (s *Service) Get(ctx context.Context, kind Kind, userID uuid.UUID, date Date) (Entry, error) {
	if _, err := New(kind); err != nil {
		return nil, err
	}
	return s.store.GetEntry(ctx, kind, userID, date)
}

// List returns the user's entries of kind between from and to inclusive, oldest first.
func (s *Service) List(ctx context.Context, kind Kind, userID uuid.UUID, from, to Date) ([]Entry, error) {
	if _, err := New(kind); err != nil {
		return nil, err
	}
	if from > to {
		from, to = to, from
	}
	entries, err := s.store.ListEntries(ctx, kind, userID, from, to)
	if err != nil {
		return nil, fmt.Errorf("listing %s entries: %w", kind, err)
	}
	return entries, nil
}

// Recent returns the entries of the last days days, ending today.
func (s *Service) Recent(ctx context.Context, kind Kind, userID uuid.UUID, days int) ([]Entry, error) {
	if days <= 0 {
		days = s.window
	}
	today := s.Today()
	return s.List(ctx, kind, userID, today.AddDays(-(days - 1)), today)
}

// Summarize aggregates the entries of the last days days.
func (s *Service) Summarize(ctx context.Context, kind Kind, userID uuid.UUID, days int) (*Summary, error) {
	if days <= 0 {
		days = s.window
	}
	entries, err := s.Recent(ctx, kind, userID, days)
	if err != nil {
		return nil, err
	}
	today := s.Today()
	return Summarize(kind, today.AddDays(-(days-1)), today, entries), nil
}

// Profile returns the user's profile, or defaults if none was saved yet.
func (s *Service) Profile(ctx context.Context, userID uuid.UUID) (*Profile, error) {
	p, err := s.store.GetProfile(ctx, userID)
	if errors.Is(err, ErrNotFound) {
		return NewProfile(userID, ""), nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting profile: %w", err)
	}
	return p, nil
}

// SaveProfile validates and stores p.
func (s *Service) SaveProfile(ctx context.Context, p *Profile) error {
	if err := p.Prepare(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}
	now := s.now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	if err := s.store.UpsertProfile(ctx, p); err != nil {
		return fmt.Errorf("saving profile: %w", err)
	}
	if s.publisher != nil {
		s.publisher.Publish(realtime.Change{
			Table:    "profiles",
			Type:     realtime.EventUpdate,
			UserID:   p.UserID,
			RecordID: p.UserID,
			At:       now,
		})
	}
	return nil
}

// waterGoal returns the user's daily cup goal, falling back to the default.
func (s *Service) waterGoal(ctx context.Context, userID uuid.UUID) int {
	p, err := s.store.GetProfile(ctx, userID)
	if err != nil || p.WaterGoal <= 0 {
		return DefaultWaterGoal
	}
	return p.WaterGoal
}
