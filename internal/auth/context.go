package auth

import (
	"context"
	"strings"
)

type ctxKey string

const (
	identityIDKey ctxKey = "auth_identity_id"
	emailKey      ctxKey = "auth_email"
	rolesKey      ctxKey = "auth_roles"
)

// ContextWithClaims stores the verified token claims in the context for
// downstream handlers.
func ContextWithClaims(ctx context.Context, claims *Claims) context.Context {
	if claims == nil {
		return ctx
	}
	ctx = context.WithValue(ctx, identityIDKey, strings.TrimSpace(claims.Subject))
	if claims.Email != "" {
		ctx = context.WithValue(ctx, emailKey, claims.Email)
	}
	if len(claims.Roles) > 0 {
		ctx = context.WithValue(ctx, rolesKey, dedupeRoles(claims.Roles))
	}
	return ctx
}

// IdentityIDFromContext extracts the authenticated identity id from context.
func IdentityIDFromContext(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(identityIDKey).(string)
	if !ok || strings.TrimSpace(v) == "" {
		return "", false
	}
	return v, true
}

// EmailFromContext extracts the authenticated email from context.
func EmailFromContext(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(emailKey).(string)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

// RolesFromContext returns the roles stored in context (deduplicated and
// lower-cased).
func RolesFromContext(ctx context.Context) []string {
	v, ok := ctx.Value(rolesKey).([]string)
	if !ok || len(v) == 0 {
		return nil
	}
	out := make([]string, len(v))
	copy(out, v)
	return out
}

// HasRole checks whether the context carries the specified role claim.
func HasRole(ctx context.Context, role string) bool {
	role = normalize(role)
	if role == "" {
		return false
	}
	for _, r := range RolesFromContext(ctx) {
		if r == role {
			return true
		}
	}
	return false
}
