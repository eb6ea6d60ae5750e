package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"strings"
	"time"
)

const (
	defaultRefreshTTL = 7 * 24 * time.Hour

	// refreshTokenBytes yields 256 bits of entropy per token.
	refreshTokenBytes = 32
)

// RefreshManager issues, rotates and redeems refresh tokens. A refresh token
// is an opaque random value stored on the identity row; issuing a new one
// overwrites the previous value, so at most one token is live per identity.
// There is no separate revocation state: replacement is the only way to kill
// an outstanding token before its expiry.
type RefreshManager struct {
	identities IdentityStore
	ttl        time.Duration
	now        func() time.Time
}

// RefreshOption configures a RefreshManager.
type RefreshOption func(*RefreshManager)

// WithRefreshTTL overrides the refresh token lifetime.
func WithRefreshTTL(ttl time.Duration) RefreshOption {
	return func(m *RefreshManager) {
		if ttl > 0 {
			m.ttl = ttl
		}
	}
}

// WithRefreshClock overrides the time source (useful for tests).
func WithRefreshClock(fn func() time.Time) RefreshOption {
	return func(m *RefreshManager) {
		if fn != nil {
			m.now = fn
		}
	}
}

// NewRefreshManager constructs a RefreshManager over the identity store.
func NewRefreshManager(identities IdentityStore, opts ...RefreshOption) *RefreshManager {
	m := &RefreshManager{
		identities: identities,
		ttl:        defaultRefreshTTL,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// TTL reports the configured refresh token lifetime.
func (m *RefreshManager) TTL() time.Duration { return m.ttl }

// Issue generates a fresh opaque token for the identity and persists it,
// superseding whatever token was stored before.
func (m *RefreshManager) Issue(ctx context.Context, identityID string) (string, time.Time, error) {
	if strings.TrimSpace(identityID) == "" {
		return "", time.Time{}, errors.New("auth: identity id is required")
	}
	raw := make([]byte, refreshTokenBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", time.Time{}, err
	}
	token := base64.RawURLEncoding.EncodeToString(raw)
	expiry := m.now().UTC().Add(m.ttl)
	if err := m.identities.UpdateRefreshToken(ctx, identityID, token, expiry); err != nil {
		return "", time.Time{}, err
	}
	return token, expiry, nil
}

// Redeem resolves a presented refresh token to its identity. It fails with
// ErrInvalidToken when no identity holds the value or the stored expiry has
// passed. Callers must rotate immediately by calling Issue on success; the
// redeemed value is dead once its replacement is written.
func (m *RefreshManager) Redeem(ctx context.Context, token string) (*Identity, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrInvalidToken
	}
	identity, err := m.identities.FindByRefreshToken(ctx, token)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}
	if identity.RefreshTokenExpiry == nil || m.now().After(*identity.RefreshTokenExpiry) {
		return nil, ErrInvalidToken
	}
	return identity, nil
}
