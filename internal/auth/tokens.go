package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Claims are the verified contents of an access token.
type Claims struct {
	UserID    uuid.UUID
	SessionID string
	Email     string
	ExpiresAt time.Time
}

type accessClaims struct {
	SessionID string `json:"sid"`
	Email     string `json:"email"`
	jwt.RegisteredClaims
}

// signAccessToken issues an HS256 access token for the session.
func signAccessToken(secret []byte, issuer string, c Claims, issuedAt time.Time) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, accessClaims{
		SessionID: c.SessionID,
		Email:     c.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   c.UserID.String(),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(c.ExpiresAt),
		},
	})
	signed, err := token.SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("signing access token: %w", err)
	}
	return signed, nil
}

// parseAccessToken validates signature, issuer and expiry and returns the claims.
func parseAccessToken(raw string, secret []byte, issuer string, now func() time.Time) (*Claims, error) {
	var ac accessClaims
	_, err := jwt.ParseWithClaims(raw, &ac, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return secret, nil
	},
		jwt.WithIssuer(issuer),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSessionMissing, err)
	}

	userID, err := uuid.Parse(ac.Subject)
	if err != nil || ac.SessionID == "" {
		return nil, ErrSessionMissing
	}

	return &Claims{
		UserID:    userID,
		SessionID: ac.SessionID,
		Email:     ac.Email,
		ExpiresAt: ac.ExpiresAt.Time,
	}, nil
}

// randomToken returns n random bytes hex-encoded.
func randomToken(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// hashToken returns the SHA-256 of a bearer secret. Only hashes are stored.
func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
