package auth

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestAccessTokenRoundTrip(t *testing.T) {
	now := time.Date(2024, time.June, 15, 9, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	secret := []byte("secret")
	want := Claims{
		UserID:    uuid.New(),
		SessionID: "abc",
		Email:     "sam@example.com",
		ExpiresAt: now.Add(time.Hour),
	}

	raw, err := signAccessToken(secret, "issuer", want, now)
	if err != nil {
		t.Fatalf("signAccessToken() error = %v", err)
	}

	got, err := parseAccessToken(raw, secret, "issuer", clock)
	if err != nil {
		t.Fatalf("parseAccessToken() error = %v", err)
	}
	if got.UserID != want.UserID || got.SessionID != want.SessionID || got.Email != want.Email {
		t.Errorf("parseAccessToken() = %+v, want %+v", got, want)
	}
	if !got.ExpiresAt.Equal(want.ExpiresAt) {
		t.Errorf("ExpiresAt = %v, want %v", got.ExpiresAt, want.ExpiresAt)
	}

	tests := []struct {
		name   string
		secret []byte
		issuer string
		now    time.Time
	}{
		{name: "wrong secret", secret: []byte("other"), issuer: "issuer", now: now},
		{name: "wrong issuer", secret: secret, issuer: "someone-else", now: now},
		{name: "expired", secret: secret, issuer: "issuer", now: now.Add(2 * time.Hour)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseAccessToken(raw, tt.secret, tt.issuer, func() time.Time { return tt.now })
			if err == nil {
				t.Error("parseAccessToken() should fail")
			}
		})
	}
}

func TestRandomToken(t *testing.T) {
	a, err := randomToken(32)
	if err != nil {
		t.Fatalf("randomToken() error = %v", err)
	}
	if len(a) != 64 {
		t.Errorf("randomToken(32) length = %d, want 64", len(a))
	}

	b, err := randomToken(32)
	if err != nil {
		t.Fatalf("randomToken() error = %v", err)
	}
	if a == b {
		t.Error("randomToken() returned the same value twice")
	}
}

func TestHashToken(t *testing.T) {
	if hashToken("abc") != hashToken("abc") {
		t.Error("hashToken() is not deterministic")
	}
	if hashToken("abc") == hashToken("abd") {
		t.Error("hashToken() collided")
	}
	if len(hashToken("abc")) != 64 {
		t.Errorf("hashToken() length = %d, want 64", len(hashToken("abc")))
	}
}
