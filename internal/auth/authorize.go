package auth

// Gate evaluates whether a presented access token satisfies a required role
// set. Decisions are claim-only: no database round-trip.
type Gate struct {
	issuer *Issuer
}

// NewGate constructs a Gate over the token issuer.
func NewGate(issuer *Issuer) *Gate {
	return &Gate{issuer: issuer}
}

// Authorize verifies the token and checks its role claims against the
// required set with OR semantics: possession of any one required role is
// sufficient. An empty required set admits any authenticated identity.
// A missing or invalid token yields ErrUnauthenticated; a valid token
// lacking every required role yields ErrForbidden.
func (g *Gate) Authorize(token string, requiredRoles ...string) (*Claims, error) {
	claims, err := g.issuer.Verify(token)
	if err != nil {
		return nil, ErrUnauthenticated
	}
	required := dedupeRoles(requiredRoles)
	if len(required) == 0 {
		return claims, nil
	}
	held := make(map[string]struct{}, len(claims.Roles))
	for _, r := range claims.Roles {
		held[r] = struct{}{}
	}
	for _, r := range required {
		if _, ok := held[r]; ok {
			return claims, nil
		}
	}
	return nil, ErrForbidden
}
