package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/justestif/wellness-tracker/internal/auth"
)

// SessionRepository handles session database operations.
type SessionRepository struct {
	pool *pgxpool.Pool
}

// Create inserts a new session.
func (r *SessionRepository) Create(ctx context.Context, session *auth.StoredSession) error {
	query := `
		INSERT INTO sessions (id, user_id, refresh_hash, expires_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.pool.Exec(ctx, query,
		session.ID,
		session.UserID,
		session.RefreshHash,
		session.ExpiresAt,
		session.CreatedAt,
		session.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting session: %w", err)
	}
	return nil
}

// Get retrieves a session by ID.
func (r *SessionRepository) Get(ctx context.Context, id string) (*auth.StoredSession, error) {
	return r.queryOne(ctx, `
		SELECT id, user_id, refresh_hash, expires_at, created_at, updated_at
		FROM sessions
		WHERE id = $1
	`, id)
}

// GetByRefresh retrieves the session holding a refresh token hash.
func (r *SessionRepository) GetByRefresh(ctx context.Context, refreshHash string) (*auth.StoredSession, error) {
	return r.queryOne(ctx, `
		SELECT id, user_id, refresh_hash, expires_at, created_at, updated_at
		FROM sessions
		WHERE refresh_hash = $1
	`, refreshHash)
}

func (r *SessionRepository) queryOne(ctx context.Context, query, arg string) (*auth.StoredSession, error) {
	var session auth.StoredSession
	err := r.pool.QueryRow(ctx, query, arg).Scan(
		&session.ID,
		&session.UserID,
		&session.RefreshHash,
		&session.ExpiresAt,
		&session.CreatedAt,
		&session.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, auth.ErrSessionMissing
	}
	if err != nil {
		return nil, fmt.Errorf("querying session: %w", err)
	}
	return &session, nil
}

// Update stores a rotated refresh token and the new expiry.
func (r *SessionRepository) Update(ctx context.Context, session *auth.StoredSession) error {
	query := `
		UPDATE sessions
		SET refresh_hash = $2, expires_at = $3, updated_at = $4
		WHERE id = $1
	`
	result, err := r.pool.Exec(ctx, query, session.ID, session.RefreshHash, session.ExpiresAt, session.UpdatedAt)
	if err != nil {
		return fmt.Errorf("updating session: %w", err)
	}
	if result.RowsAffected() == 0 {
		return auth.ErrSessionMissing
	}
	return nil
}

// Delete removes a session by ID.
func (r *SessionRepository) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM sessions WHERE id = $1`
	_, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	return nil
}

// DeleteExpired removes all expired sessions.
func (r *SessionRepository) DeleteExpired(ctx context.Context) (int64, error) {
	query := `DELETE FROM sessions WHERE expires_at <= NOW()`
	result, err := r.pool.Exec(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("deleting expired sessions: %w", err)
	}
	return result.RowsAffected(), nil
}

// DeleteForUser removes all sessions for a user.
func (r *SessionRepository) DeleteForUser(ctx context.Context, userID uuid.UUID) error {
	query := `DELETE FROM sessions WHERE user_id = $1`
	_, err := r.pool.Exec(ctx, query, userID)
	if err != nil {
		return fmt.Errorf("deleting user sessions: %w", err)
	}
	return nil
}
