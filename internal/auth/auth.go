// Package auth provides email/password accounts, sessions with JWT access
// tokens, email confirmation and password recovery.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/oauth2"

	"github.com/justestif/wellness-tracker/internal/metrics"
	"github.com/justestif/wellness-tracker/internal/validate"
)

const (
	DefaultAccessTokenTTL = time.Hour
	DefaultSessionTTL     = 30 * 24 * time.Hour
	DefaultEmailCooldown  = 60 * time.Second

	confirmationTTL = 24 * time.Hour
	recoveryTTL     = time.Hour
)

// ErrMissingSecret is returned by NewService without a signing secret.
var ErrMissingSecret = errors.New("jwt secret is required")

// Config holds the auth service settings.
type Config struct {
	JWTSecret      []byte
	Issuer         string
	AccessTokenTTL time.Duration
	SessionTTL     time.Duration
	// RequireConfirmation blocks sign-in until the email link is opened.
	RequireConfirmation bool
	// BaseURL prefixes the links sent by email.
	BaseURL       string
	EmailCooldown time.Duration
	BcryptCost    int
}

// Service implements the auth operations on top of a Store.
type Service struct {
	store  Store
	cfg    Config
	mailer Mailer
	logger *slog.Logger
	now    func() time.Time

	onUserCreated func(ctx context.Context, u *User) error
	onDelete      func(ctx context.Context, userID uuid.UUID) error

	mu        sync.RWMutex
	listeners map[int]Listener
	nextID    int

	sendMu   sync.Mutex
	lastSent map[string]time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithMailer sets the mailer used for confirmation and recovery emails.
func WithMailer(m Mailer) Option {
	return func(s *Service) {
		s.mailer = m
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		s.logger = l
	}
}

// WithClock overrides the clock.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// WithUserCreatedHook runs fn after a user is stored by SignUp. A failing
// hook fails the sign-up.
func WithUserCreatedHook(fn func(ctx context.Context, u *User) error) Option {
	return func(s *Service) {
		s.onUserCreated = fn
	}
}

// WithDeleteHook runs fn before a user is deleted by DeleteAccount.
func WithDeleteHook(fn func(ctx context.Context, userID uuid.UUID) error) Option {
	return func(s *Service) {
		s.onDelete = fn
	}
}

// NewService creates an auth service.
func NewService(store Store, cfg Config, opts ...Option) (*Service, error) {
	if len(cfg.JWTSecret) == 0 {
		return nil, ErrMissingSecret
	}
	if cfg.Issuer == "" {
		cfg.Issuer = "wellness-tracker"
	}
	if cfg.AccessTokenTTL <= 0 {
		cfg.AccessTokenTTL = DefaultAccessTokenTTL
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = DefaultSessionTTL
	}
	if cfg.EmailCooldown <= 0 {
		cfg.EmailCooldown = DefaultEmailCooldown
	}
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = bcrypt.DefaultCost
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	s := &Service{
		store:     store,
		cfg:       cfg,
		logger:    slog.Default(),
		now:       time.Now,
		listeners: make(map[int]Listener),
		lastSent:  make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.mailer == nil {
		s.mailer = NewLogMailer(s.logger)
	}
	return s, nil
}

// ============================================================================
// Sign up / sign in
// ============================================================================

// SignUp creates an account. When confirmation is required a link is emailed
// and no session is returned.
func (s *Service) SignUp(ctx context.Context, email, password string, meta SignUpMetadata) (*SignUpResult, error) {
	email = normalizeEmail(email)
	if !validate.Email(email) {
		return nil, ErrInvalidEmail
	}
	if !validate.Password(password).Valid() {
		return nil, ErrWeakPassword
	}
	if meta.DateOfBirth != nil && !validate.OldEnough(*meta.DateOfBirth, s.now()) {
		return nil, ErrUnderage
	}

	if _, err := s.store.GetUserByEmail(ctx, email); err == nil {
		return nil, ErrUserExists
	} else if !errors.Is(err, ErrUserNotFound) {
		return nil, fmt.Errorf("looking up user: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cfg.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	now := s.now()
	user := &User{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: string(hash),
		FullName:     strings.TrimSpace(meta.FullName),
		DateOfBirth:  meta.DateOfBirth,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if !s.cfg.RequireConfirmation {
		user.ConfirmedAt = &now
	}

	if err := s.store.CreateUser(ctx, user); err != nil {
		if errors.Is(err, ErrUserExists) {
			return nil, ErrUserExists
		}
		return nil, fmt.Errorf("creating user: %w", err)
	}
	if s.onUserCreated != nil {
		if err := s.onUserCreated(ctx, user); err != nil {
			s.rollbackSignUp(ctx, user)
			return nil, fmt.Errorf("initializing user: %w", err)
		}
	}

	if s.cfg.RequireConfirmation {
		if err := s.sendLink(ctx, user, PurposeConfirmation); err != nil {
			s.rollbackSignUp(ctx, user)
			return nil, err
		}
		metrics.AuthEvent("sign_up")
		return &SignUpResult{User: user}, nil
	}
	metrics.AuthEvent("sign_up")

	sess, err := s.issueSession(ctx, user)
	if err != nil {
		return nil, err
	}
	s.emit(EventSignedIn, sess)
	return &SignUpResult{User: user, Session: sess}, nil
}

// rollbackSignUp removes a user whose sign-up did not complete, so the
// address can register again.
func (s *Service) rollbackSignUp(ctx context.Context, user *User) {
	ctx = context.WithoutCancel(ctx)
	if s.onDelete != nil {
		if err := s.onDelete(ctx, user.ID); err != nil {
			s.logger.Error("rolling back sign-up data", "user", user.ID, "error", err)
		}
	}
	if err := s.store.DeleteUser(ctx, user.ID); err != nil {
		s.logger.Error("rolling back sign-up", "user", user.ID, "error", err)
	}
}

// SignIn authenticates with email and password.
func (s *Service) SignIn(ctx context.Context, email, password string) (*Session, error) {
	user, err := s.store.GetUserByEmail(ctx, normalizeEmail(email))
	if errors.Is(err, ErrUserNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("looking up user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	if s.cfg.RequireConfirmation && !user.Confirmed() {
		return nil, ErrEmailNotConfirmed
	}

	sess, err := s.issueSession(ctx, user)
	if err != nil {
		return nil, err
	}
	s.emit(EventSignedIn, sess)
	return sess, nil
}

// SignOut ends the session the access token belongs to.
func (s *Service) SignOut(ctx context.Context, accessToken string) error {
	claims, err := s.verify(accessToken)
	if err != nil {
		return err
	}
	if err := s.store.DeleteSession(ctx, claims.SessionID); err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}

	s.emit(EventSignedOut, &Session{ID: claims.SessionID, User: &User{ID: claims.UserID, Email: claims.Email}})
	return nil
}

// ============================================================================
// Sessions
// ============================================================================

// GetSession validates an access token and returns its live session.
// Signed-out and expired sessions return ErrSessionMissing.
func (s *Service) GetSession(ctx context.Context, accessToken string) (*Session, error) {
	claims, err := s.verify(accessToken)
	if err != nil {
		return nil, err
	}

	stored, err := s.store.GetSession(ctx, claims.SessionID)
	if err != nil {
		if errors.Is(err, ErrSessionMissing) {
			return nil, ErrSessionMissing
		}
		return nil, fmt.Errorf("loading session: %w", err)
	}
	if !s.now().Before(stored.ExpiresAt) {
		return nil, ErrSessionMissing
	}

	user, err := s.store.GetUserByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrSessionMissing
		}
		return nil, fmt.Errorf("loading user: %w", err)
	}

	return &Session{
		ID:   stored.ID,
		User: user,
		Token: &oauth2.Token{
			AccessToken: accessToken,
			TokenType:   "bearer",
			Expiry:      claims.ExpiresAt,
		},
	}, nil
}

// GetUser returns the current user of the access token.
func (s *Service) GetUser(ctx context.Context, accessToken string) (*User, error) {
	sess, err := s.GetSession(ctx, accessToken)
	if err != nil {
		return nil, err
	}
	return sess.User, nil
}

// Refresh exchanges a refresh token for a new access token. The refresh
// token is rotated; the old one stops working.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*Session, error) {
	if refreshToken == "" {
		return nil, ErrSessionMissing
	}
	stored, err := s.store.GetSessionByRefresh(ctx, hashToken(refreshToken))
	if err != nil {
		if errors.Is(err, ErrSessionMissing) {
			return nil, ErrSessionMissing
		}
		return nil, fmt.Errorf("loading session: %w", err)
	}

	now := s.now()
	if !now.Before(stored.ExpiresAt) {
		_ = s.store.DeleteSession(ctx, stored.ID)
		return nil, ErrSessionMissing
	}

	user, err := s.store.GetUserByID(ctx, stored.UserID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrSessionMissing
		}
		return nil, fmt.Errorf("loading user: %w", err)
	}

	refresh, err := randomToken(32)
	if err != nil {
		return nil, fmt.Errorf("generating refresh token: %w", err)
	}
	stored.RefreshHash = hashToken(refresh)
	stored.ExpiresAt = now.Add(s.cfg.SessionTTL)
	stored.UpdatedAt = now
	if err := s.store.UpdateSession(ctx, stored); err != nil {
		return nil, fmt.Errorf("rotating session: %w", err)
	}

	sess, err := s.sessionFor(user, stored, refresh)
	if err != nil {
		return nil, err
	}
	s.emit(EventTokenRefreshed, sess)
	return sess, nil
}

func (s *Service) issueSession(ctx context.Context, user *User) (*Session, error) {
	id, err := randomToken(32)
	if err != nil {
		return nil, fmt.Errorf("generating session id: %w", err)
	}
	refresh, err := randomToken(32)
	if err != nil {
		return nil, fmt.Errorf("generating refresh token: %w", err)
	}

	now := s.now()
	stored := &StoredSession{
		ID:          id,
		UserID:      user.ID,
		RefreshHash: hashToken(refresh),
		ExpiresAt:   now.Add(s.cfg.SessionTTL),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.CreateSession(ctx, stored); err != nil {
		return nil, fmt.Errorf("creating session: %w", err)
	}
	return s.sessionFor(user, stored, refresh)
}

func (s *Service) sessionFor(user *User, stored *StoredSession, refresh string) (*Session, error) {
	now := s.now()
	expiry := now.Add(s.cfg.AccessTokenTTL)
	access, err := signAccessToken(s.cfg.JWTSecret, s.cfg.Issuer, Claims{
		UserID:    user.ID,
		SessionID: stored.ID,
		Email:     user.Email,
		ExpiresAt: expiry,
	}, now)
	if err != nil {
		return nil, err
	}

	return &Session{
		ID:   stored.ID,
		User: user,
		Token: &oauth2.Token{
			AccessToken:  access,
			TokenType:    "bearer",
			RefreshToken: refresh,
			Expiry:       expiry,
		},
	}, nil
}

func (s *Service) verify(accessToken string) (*Claims, error) {
	if accessToken == "" {
		return nil, ErrSessionMissing
	}
	return parseAccessToken(accessToken, s.cfg.JWTSecret, s.cfg.Issuer, s.now)
}

// ============================================================================
// Passwords
// ============================================================================

// UpdatePassword changes the password of the signed-in user.
func (s *Service) UpdatePassword(ctx context.Context, accessToken, newPassword string) (*User, error) {
	sess, err := s.GetSession(ctx, accessToken)
	if err != nil {
		return nil, err
	}
	if err := s.setPassword(ctx, sess.User, newPassword); err != nil {
		return nil, err
	}
	s.emit(EventUserUpdated, sess)
	return sess.User, nil
}

// SendPasswordReset emails a recovery link. Unknown addresses succeed
// silently so the response does not reveal which emails are registered.
func (s *Service) SendPasswordReset(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	if !validate.Email(email) {
		return ErrInvalidEmail
	}

	user, err := s.store.GetUserByEmail(ctx, email)
	if errors.Is(err, ErrUserNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("looking up user: %w", err)
	}
	return s.sendLink(ctx, user, PurposeRecovery)
}

// ResetPassword sets a new password using an emailed recovery token. Every
// existing session of the user is revoked and a fresh one returned.
func (s *Service) ResetPassword(ctx context.Context, token, newPassword string) (*Session, error) {
	t, user, err := s.lookupToken(ctx, token, PurposeRecovery)
	if err != nil {
		return nil, err
	}
	if err := s.checkNewPassword(user, newPassword); err != nil {
		return nil, err
	}
	if err := s.store.DeleteToken(ctx, t.Hash); err != nil {
		return nil, err
	}
	if err := s.setPassword(ctx, user, newPassword); err != nil {
		return nil, err
	}
	if err := s.store.DeleteUserSessions(ctx, user.ID); err != nil {
		return nil, fmt.Errorf("revoking sessions: %w", err)
	}

	sess, err := s.issueSession(ctx, user)
	if err != nil {
		return nil, err
	}
	s.emit(EventPasswordRecovery, sess)
	s.emit(EventUserUpdated, sess)
	return sess, nil
}

func (s *Service) checkNewPassword(user *User, newPassword string) error {
	if !validate.Password(newPassword).Valid() {
		return ErrWeakPassword
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(newPassword)) == nil {
		return ErrSamePassword
	}
	return nil
}

func (s *Service) setPassword(ctx context.Context, user *User, newPassword string) error {
	if err := s.checkNewPassword(user, newPassword); err != nil {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), s.cfg.BcryptCost)
	if err != nil {
		return fmt.Errorf("hashing password: %w", err)
	}
	user.PasswordHash = string(hash)
	user.UpdatedAt = s.now()
	if err := s.store.UpdateUser(ctx, user); err != nil {
		return fmt.Errorf("updating user: %w", err)
	}
	return nil
}

// ============================================================================
// Email confirmation
// ============================================================================

// ResendConfirmation emails a new confirmation link. Unknown or already
// confirmed addresses succeed silently.
func (s *Service) ResendConfirmation(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	if !validate.Email(email) {
		return ErrInvalidEmail
	}

	user, err := s.store.GetUserByEmail(ctx, email)
	if errors.Is(err, ErrUserNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("looking up user: %w", err)
	}
	if user.Confirmed() {
		return nil
	}
	return s.sendLink(ctx, user, PurposeConfirmation)
}

// ConfirmEmail redeems a confirmation token and signs the user in.
func (s *Service) ConfirmEmail(ctx context.Context, token string) (*Session, error) {
	t, user, err := s.lookupToken(ctx, token, PurposeConfirmation)
	if err != nil {
		return nil, err
	}
	if err := s.store.DeleteToken(ctx, t.Hash); err != nil {
		return nil, err
	}

	if !user.Confirmed() {
		now := s.now()
		user.ConfirmedAt = &now
		user.UpdatedAt = now
		if err := s.store.UpdateUser(ctx, user); err != nil {
			return nil, fmt.Errorf("confirming user: %w", err)
		}
	}

	sess, err := s.issueSession(ctx, user)
	if err != nil {
		return nil, err
	}
	s.emit(EventSignedIn, sess)
	return sess, nil
}

// lookupToken returns the unexpired token of purpose and its user without
// redeeming it.
func (s *Service) lookupToken(ctx context.Context, token string, purpose Purpose) (*OneTimeToken, *User, error) {
	if token == "" {
		return nil, nil, ErrInvalidToken
	}
	t, err := s.store.GetToken(ctx, hashToken(token))
	if err != nil {
		if errors.Is(err, ErrInvalidToken) {
			return nil, nil, ErrInvalidToken
		}
		return nil, nil, fmt.Errorf("loading token: %w", err)
	}
	if t.Purpose != purpose || !s.now().Before(t.ExpiresAt) {
		return nil, nil, ErrInvalidToken
	}

	user, err := s.store.GetUserByID(ctx, t.UserID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, nil, ErrInvalidToken
		}
		return nil, nil, fmt.Errorf("loading user: %w", err)
	}
	return t, user, nil
}

// sendLink creates a one-time token and emails its link, honouring the
// per-address cooldown.
func (s *Service) sendLink(ctx context.Context, user *User, purpose Purpose) error {
	reserved, ok := s.reserveSend(user.Email)
	if !ok {
		return ErrEmailRateLimited
	}

	raw, err := randomToken(32)
	if err != nil {
		s.releaseSend(user.Email, reserved)
		return fmt.Errorf("generating token: %w", err)
	}

	now := s.now()
	ttl, path := confirmationTTL, "/auth/confirm"
	if purpose == PurposeRecovery {
		ttl, path = recoveryTTL, "/reset-password"
	}
	t := &OneTimeToken{
		Hash:      hashToken(raw),
		UserID:    user.ID,
		Purpose:   purpose,
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	}
	if err := s.store.CreateToken(ctx, t); err != nil {
		s.releaseSend(user.Email, reserved)
		return fmt.Errorf("storing token: %w", err)
	}

	link := s.cfg.BaseURL + path + "?token=" + url.QueryEscape(raw)
	msg := confirmationMessage(user.Email, link)
	if purpose == PurposeRecovery {
		msg = recoveryMessage(user.Email, link)
	}
	if err := s.mailer.Send(ctx, msg); err != nil {
		// The link never arrived: forget it and let the user try again at once.
		if delErr := s.store.DeleteToken(context.WithoutCancel(ctx), t.Hash); delErr != nil {
			s.logger.Warn("deleting unsent token", "error", delErr)
		}
		s.releaseSend(user.Email, reserved)
		return fmt.Errorf("sending %s email: %w", purpose, err)
	}
	metrics.AuthEvent("email_" + string(purpose))
	return nil
}

// reserveSend records a send to email unless one happened within the
// cooldown. It returns the recorded time for releaseSend.
func (s *Service) reserveSend(email string) (time.Time, bool) {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()

	now := s.now()
	if last, ok := s.lastSent[email]; ok && now.Sub(last) < s.cfg.EmailCooldown {
		return time.Time{}, false
	}
	s.lastSent[email] = now
	return now, true
}

// releaseSend undoes the reservation made at reserved, unless a later send
// has replaced it.
func (s *Service) releaseSend(email string, reserved time.Time) {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()

	if last, ok := s.lastSent[email]; ok && last.Equal(reserved) {
		delete(s.lastSent, email)
	}
}

// PruneEmailCooldowns forgets sends older than the cooldown and returns how
// many were dropped. Call it periodically to bound memory.
func (s *Service) PruneEmailCooldowns() int {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()

	now := s.now()
	n := 0
	for email, last := range s.lastSent {
		if now.Sub(last) >= s.cfg.EmailCooldown {
			delete(s.lastSent, email)
			n++
		}
	}
	return n
}

// ============================================================================
// Account
// ============================================================================

// DeleteAccount removes the signed-in user and all of their data.
func (s *Service) DeleteAccount(ctx context.Context, accessToken string) error {
	sess, err := s.GetSession(ctx, accessToken)
	if err != nil {
		return err
	}

	if s.onDelete != nil {
		if err := s.onDelete(ctx, sess.User.ID); err != nil {
			return fmt.Errorf("deleting user data: %w", err)
		}
	}
	if err := s.store.DeleteUser(ctx, sess.User.ID); err != nil {
		return fmt.Errorf("deleting user: %w", err)
	}

	s.sendMu.Lock()
	delete(s.lastSent, sess.User.Email)
	s.sendMu.Unlock()

	s.emit(EventUserDeleted, sess)
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
