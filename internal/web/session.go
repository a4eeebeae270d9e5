// Package web provides the HTTP server, the dashboard pages and the JSON API
// of the wellness tracker.
package web

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/justestif/wellness-tracker/internal/auth"
)

const (
	// sessionCookieName holds the access token, refreshCookieName the
	// refresh token used once the access token has expired.
	sessionCookieName = "session_id"
	refreshCookieName = "refresh_token"
)

// SessionManager keeps the auth session in cookies.
type SessionManager struct {
	auth   *auth.Service
	ttl    time.Duration
	secure bool
	logger *slog.Logger
}

// NewSessionManager creates a session manager. ttl is the cookie lifetime and
// should match the server-side session lifetime.
func NewSessionManager(svc *auth.Service, ttl time.Duration, secure bool, logger *slog.Logger) *SessionManager {
	if ttl <= 0 {
		ttl = auth.DefaultSessionTTL
	}
	return &SessionManager{
		auth:   svc,
		ttl:    ttl,
		secure: secure,
		logger: logger,
	}
}

// GetFromRequest returns the session behind the request cookies, or nil.
// An expired access token is exchanged for a new one with the refresh cookie
// and the cookies are rewritten. Cookies of a session that no longer exists
// are cleared.
func (m *SessionManager) GetFromRequest(w http.ResponseWriter, r *http.Request) *auth.Session {
	ctx := r.Context()

	access := cookieValue(r, sessionCookieName)
	if access != "" {
		sess, err := m.auth.GetSession(ctx, access)
		if err == nil {
			return sess
		}
		if !errors.Is(err, auth.ErrSessionMissing) {
			m.logger.Error("loading session", "error", err)
			return nil
		}
	}

	refresh := cookieValue(r, refreshCookieName)
	if refresh == "" {
		if access != "" {
			m.ClearCookie(w)
		}
		return nil
	}

	sess, err := m.auth.Refresh(ctx, refresh)
	if err != nil {
		if errors.Is(err, auth.ErrSessionMissing) {
			m.ClearCookie(w)
		} else {
			m.logger.Error("refreshing session", "error", err)
		}
		return nil
	}
	m.SetCookie(w, sess)
	return sess
}

// SetCookie stores the session tokens on the response.
func (m *SessionManager) SetCookie(w http.ResponseWriter, sess *auth.Session) {
	if sess == nil || sess.Token == nil {
		return
	}
	m.set(w, sessionCookieName, sess.Token.AccessToken, int(m.ttl.Seconds()))
	if sess.Token.RefreshToken != "" {
		m.set(w, refreshCookieName, sess.Token.RefreshToken, int(m.ttl.Seconds()))
	}
}

// ClearCookie removes the session cookies from the response.
func (m *SessionManager) ClearCookie(w http.ResponseWriter) {
	m.set(w, sessionCookieName, "", -1)
	m.set(w, refreshCookieName, "", -1)
}

func (m *SessionManager) set(w http.ResponseWriter, name, value string, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   maxAge,
	})
}

func cookieValue(r *http.Request, name string) string {
	c, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return c.Value
}

// ============================================================================
// Request context
// ============================================================================

type contextKey int

const sessionKey contextKey = iota

func withSession(ctx context.Context, sess *auth.Session) context.Context {
	return context.WithValue(ctx, sessionKey, sess)
}

// SessionFrom returns the session attached by the guard or bearer middleware.
func SessionFrom(ctx context.Context) *auth.Session {
	sess, _ := ctx.Value(sessionKey).(*auth.Session)
	return sess
}
