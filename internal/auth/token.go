package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	defaultAccessTTL = 15 * time.Minute

	// minSigningKeyLen guards against weak symmetric keys. An issuer with a
	// short key is a security defect, so construction fails outright instead
	// of deferring the problem to request time.
	minSigningKeyLen = 32
)

// Claims is the verified claim set embedded in access tokens. Roles are
// normalized role names; authorization decisions read them without a
// database round-trip.
type Claims struct {
	Email string   `json:"email"`
	Roles []string `json:"roles"`
	jwt.RegisteredClaims
}

// Issuer mints and validates signed access tokens (HS256).
type Issuer struct {
	key      []byte
	issuer   string
	audience string
	ttl      time.Duration
	now      func() time.Time
}

// IssuerOption configures an Issuer.
type IssuerOption func(*Issuer)

// WithIssuerName overrides the iss claim.
func WithIssuerName(name string) IssuerOption {
	return func(i *Issuer) {
		if strings.TrimSpace(name) != "" {
			i.issuer = strings.TrimSpace(name)
		}
	}
}

// WithAudience overrides the aud claim.
func WithAudience(aud string) IssuerOption {
	return func(i *Issuer) {
		if strings.TrimSpace(aud) != "" {
			i.audience = strings.TrimSpace(aud)
		}
	}
}

// WithAccessTTL overrides the access token lifetime.
func WithAccessTTL(ttl time.Duration) IssuerOption {
	return func(i *Issuer) {
		if ttl > 0 {
			i.ttl = ttl
		}
	}
}

// WithIssuerClock overrides the time source (useful for tests).
func WithIssuerClock(fn func() time.Time) IssuerOption {
	return func(i *Issuer) {
		if fn != nil {
			i.now = fn
		}
	}
}

// NewIssuer constructs an Issuer. The signing key must carry at least
// minSigningKeyLen bytes.
func NewIssuer(key []byte, opts ...IssuerOption) (*Issuer, error) {
	if len(key) < minSigningKeyLen {
		return nil, errors.New("auth: signing key must be at least 32 bytes")
	}
	i := &Issuer{
		key:      append([]byte(nil), key...),
		issuer:   "eshop",
		audience: "eshop-clients",
		ttl:      defaultAccessTTL,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i, nil
}

// AccessTTL reports the configured access token lifetime.
func (i *Issuer) AccessTTL() time.Duration { return i.ttl }

// Issue signs an access token for the identity carrying the given role
// names. The claim set is deterministic apart from jti and timestamps.
func (i *Issuer) Issue(identity *Identity, roles []string) (string, time.Time, error) {
	if identity == nil || strings.TrimSpace(identity.ID) == "" {
		return "", time.Time{}, errors.New("auth: identity is required")
	}
	now := i.now().UTC()
	exp := now.Add(i.ttl)
	claims := Claims{
		Email: normalize(identity.Email),
		Roles: dedupeRoles(roles),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    i.issuer,
			Subject:   identity.ID,
			Audience:  jwt.ClaimStrings{i.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
			ID:        uuid.NewString(),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.key)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// Verify validates signature, issuer, audience and expiry. Every failure
// collapses into ErrInvalidToken so callers cannot distinguish why a token
// was rejected.
func (i *Issuer) Verify(token string) (*Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrInvalidToken
	}
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, ErrInvalidToken
		}
		return i.key, nil
	},
		jwt.WithIssuer(i.issuer),
		jwt.WithAudience(i.audience),
		jwt.WithIssuedAt(),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return i.now() }),
	)
	if err != nil {
		return nil, ErrInvalidToken
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return nil, ErrInvalidToken
	}
	claims.Roles = dedupeRoles(claims.Roles)
	return claims, nil
}

func dedupeRoles(roles []string) []string {
	if len(roles) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(roles))
	var normalized []string
	for _, role := range roles {
		role = normalize(role)
		if role == "" {
			continue
		}
		if _, ok := seen[role]; ok {
			continue
		}
		seen[role] = struct{}{}
		normalized = append(normalized, role)
	}
	return normalized
}
