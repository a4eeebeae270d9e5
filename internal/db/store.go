package db

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/justestif/wellness-tracker/internal/auth"
	"github.com/justestif/wellness-tracker/internal/tracker"
)

// AuthStore adapts the user, session and token repositories to auth.Store.
type AuthStore struct {
	users    *UserRepository
	sessions *SessionRepository
	tokens   *TokenRepository
}

// AuthStore returns the auth.Store backed by this database.
func (db *DB) AuthStore() *AuthStore {
	return &AuthStore{users: db.Users(), sessions: db.Sessions(), tokens: db.Tokens()}
}

func (s *AuthStore) CreateUser(ctx context.Context, u *auth.User) error {
	return s.users.Create(ctx, u)
}

func (s *AuthStore) GetUserByID(ctx context.Context, id uuid.UUID) (*auth.User, error) {
	return s.users.Get(ctx, id)
}

func (s *AuthStore) GetUserByEmail(ctx context.Context, email string) (*auth.User, error) {
	return s.users.GetByEmail(ctx, email)
}

func (s *AuthStore) UpdateUser(ctx context.Context, u *auth.User) error {
	return s.users.Update(ctx, u)
}

func (s *AuthStore) DeleteUser(ctx context.Context, id uuid.UUID) error {
	return s.users.Delete(ctx, id)
}

func (s *AuthStore) CreateSession(ctx context.Context, sess *auth.StoredSession) error {
	return s.sessions.Create(ctx, sess)
}

func (s *AuthStore) GetSession(ctx context.Context, id string) (*auth.StoredSession, error) {
	return s.sessions.Get(ctx, id)
}

func (s *AuthStore) GetSessionByRefresh(ctx context.Context, refreshHash string) (*auth.StoredSession, error) {
	return s.sessions.GetByRefresh(ctx, refreshHash)
}

func (s *AuthStore) UpdateSession(ctx context.Context, sess *auth.StoredSession) error {
	return s.sessions.Update(ctx, sess)
}

func (s *AuthStore) DeleteSession(ctx context.Context, id string) error {
	return s.sessions.Delete(ctx, id)
}

func (s *AuthStore) DeleteUserSessions(ctx context.Context, userID uuid.UUID) error {
	return s.sessions.DeleteForUser(ctx, userID)
}

func (s *AuthStore) CreateToken(ctx context.Context, t *auth.OneTimeToken) error {
	return s.tokens.Create(ctx, t)
}

func (s *AuthStore) GetToken(ctx context.Context, hash string) (*auth.OneTimeToken, error) {
	return s.tokens.Get(ctx, hash)
}

func (s *AuthStore) DeleteToken(ctx context.Context, hash string) error {
	return s.tokens.Delete(ctx, hash)
}

// PurgeExpired removes expired sessions and one-time tokens.
func (s *AuthStore) PurgeExpired(ctx context.Context) (int64, error) {
	sessions, err := s.sessions.DeleteExpired(ctx)
	if err != nil {
		return 0, err
	}
	tokens, err := s.tokens.DeleteExpired(ctx)
	if err != nil {
		return sessions, err
	}
	return sessions + tokens, nil
}

// TrackerStore adapts the entry and profile repositories to tracker.Store.
type TrackerStore struct {
	entries  *EntryRepository
	profiles *ProfileRepository
}

// TrackerStore returns the tracker.Store backed by this database.
func (db *DB) TrackerStore() *TrackerStore {
	return &TrackerStore{entries: db.Entries(), profiles: db.Profiles()}
}

func (s *TrackerStore) GetEntry(ctx context.Context, kind tracker.Kind, userID uuid.UUID, date tracker.Date) (tracker.Entry, error) {
	return s.entries.Get(ctx, kind, userID, date)
}

func (s *TrackerStore) InsertEntry(ctx context.Context, e tracker.Entry) error {
	return s.entries.Insert(ctx, e)
}

func (s *TrackerStore) UpdateEntry(ctx context.Context, e tracker.Entry) error {
	return s.entries.Update(ctx, e)
}

func (s *TrackerStore) ListEntries(ctx context.Context, kind tracker.Kind, userID uuid.UUID, from, to tracker.Date) ([]tracker.Entry, error) {
	return s.entries.List(ctx, kind, userID, from, to)
}

func (s *TrackerStore) GetProfile(ctx context.Context, userID uuid.UUID) (*tracker.Profile, error) {
	return s.profiles.Get(ctx, userID)
}

func (s *TrackerStore) UpsertProfile(ctx context.Context, p *tracker.Profile) error {
	if p.UserID == uuid.Nil {
		return fmt.Errorf("upserting profile: missing user id")
	}
	return s.profiles.Upsert(ctx, p)
}

var (
	_ auth.Store    = (*AuthStore)(nil)
	_ tracker.Store = (*TrackerStore)(nil)
)
