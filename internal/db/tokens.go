package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/justestif/wellness-tracker/internal/auth"
)

// TokenRepository handles one-time confirmation and recovery tokens.
type TokenRepository struct {
	pool *pgxpool.Pool
}

// Create inserts a token.
func (r *TokenRepository) Create(ctx context.Context, t *auth.OneTimeToken) error {
	query := `
		INSERT INTO auth_tokens (hash, user_id, purpose, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := r.pool.Exec(ctx, query, t.Hash, t.UserID, string(t.Purpose), t.ExpiresAt, t.CreatedAt)
	if err != nil {
		return fmt.Errorf("inserting token: %w", err)
	}
	return nil
}

// Get retrieves a token by hash.
func (r *TokenRepository) Get(ctx context.Context, hash string) (*auth.OneTimeToken, error) {
	query := `
		SELECT hash, user_id, purpose, expires_at, created_at
		FROM auth_tokens
		WHERE hash = $1
	`
	var (
		t       auth.OneTimeToken
		purpose string
	)
	err := r.pool.QueryRow(ctx, query, hash).Scan(&t.Hash, &t.UserID, &purpose, &t.ExpiresAt, &t.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, auth.ErrInvalidToken
	}
	if err != nil {
		return nil, fmt.Errorf("querying token: %w", err)
	}
	t.Purpose = auth.Purpose(purpose)
	return &t, nil
}

// Delete removes a token. It returns auth.ErrInvalidToken when the token
// was already redeemed.
func (r *TokenRepository) Delete(ctx context.Context, hash string) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM auth_tokens WHERE hash = $1`, hash)
	if err != nil {
		return fmt.Errorf("deleting token: %w", err)
	}
	if result.RowsAffected() == 0 {
		return auth.ErrInvalidToken
	}
	return nil
}

// DeleteExpired removes all expired tokens.
func (r *TokenRepository) DeleteExpired(ctx context.Context) (int64, error) {
	result, err := r.pool.Exec(ctx, `DELETE FROM auth_tokens WHERE expires_at <= NOW()`)
	if err != nil {
		return 0, fmt.Errorf("deleting expired tokens: %w", err)
	}
	return result.RowsAffected(), nil
}
