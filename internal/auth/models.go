package auth

import (
	"context"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

// User is an account.
type User struct {
	ID           uuid.UUID  `json:"id"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"`
	FullName     string     `json:"full_name,omitempty"`
	DateOfBirth  *time.Time `json:"date_of_birth,omitempty"`
	ConfirmedAt  *time.Time `json:"confirmed_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// Confirmed reports whether the user has confirmed their email address.
func (u *User) Confirmed() bool {
	return u.ConfirmedAt != nil
}

// Session is an authenticated session as handed to clients.
type Session struct {
	ID    string        `json:"id"`
	User  *User         `json:"user"`
	Token *oauth2.Token `json:"token"`
}

// StoredSession is the server-side record of a session. Only the hash of
// the refresh token is kept.
type StoredSession struct {
	ID          string
	UserID      uuid.UUID
	RefreshHash string
	ExpiresAt   time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Purpose identifies what a one-time token unlocks.
type Purpose string

const (
	PurposeConfirmation Purpose = "confirmation"
	PurposeRecovery     Purpose = "recovery"
)

// OneTimeToken is an emailed single-use token, stored hashed.
type OneTimeToken struct {
	Hash      string
	UserID    uuid.UUID
	Purpose   Purpose
	ExpiresAt time.Time
	CreatedAt time.Time
}

// SignUpMetadata is the profile data collected on the sign-up form.
type SignUpMetadata struct {
	FullName    string
	DateOfBirth *time.Time
}

// SignUpResult is the outcome of SignUp. Session is nil while the email
// address awaits confirmation.
type SignUpResult struct {
	User    *User
	Session *Session
}

// Store persists users, sessions and one-time tokens.
//
// Lookups return ErrUserNotFound, ErrSessionMissing or ErrInvalidToken when
// nothing matches. CreateUser returns ErrUserExists for a taken email.
type Store interface {
	CreateUser(ctx context.Context, u *User) error
	GetUserByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	UpdateUser(ctx context.Context, u *User) error
	DeleteUser(ctx context.Context, id uuid.UUID) error

	CreateSession(ctx context.Context, s *StoredSession) error
	GetSession(ctx context.Context, id string) (*StoredSession, error)
	GetSessionByRefresh(ctx context.Context, refreshHash string) (*StoredSession, error)
	UpdateSession(ctx context.Context, s *StoredSession) error
	DeleteSession(ctx context.Context, id string) error
	DeleteUserSessions(ctx context.Context, userID uuid.UUID) error

	CreateToken(ctx context.Context, t *OneTimeToken) error
	GetToken(ctx context.Context, hash string) (*OneTimeToken, error)
	// DeleteToken removes the token and returns ErrInvalidToken if it was
	// already gone, so a token can be redeemed once.
	DeleteToken(ctx context.Context, hash string) error
}
