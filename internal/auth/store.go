package auth

import (
	"context"
	"time"
)

// Store bundles the persistence surfaces the auth subsystem depends on.
// Implementations must translate duplicate-key failures into ErrConflict and
// missing rows into ErrNotFound.
type Store interface {
	Identities() IdentityStore
	Roles() RoleStore
	Assignments() AssignmentStore
}

// IdentityStore owns identity records.
type IdentityStore interface {
	Create(ctx context.Context, identity *Identity) error
	FindByID(ctx context.Context, id string) (*Identity, error)
	// FindByEmail matches case-insensitively.
	FindByEmail(ctx context.Context, email string) (*Identity, error)
	// FindByRefreshToken matches the stored refresh token exactly. Used only
	// by the refresh rotation path.
	FindByRefreshToken(ctx context.Context, token string) (*Identity, error)
	UpdateProfile(ctx context.Context, identity *Identity) error
	// UpdateRefreshToken overwrites the identity's refresh token and expiry,
	// superseding any previously issued token.
	UpdateRefreshToken(ctx context.Context, identityID, token string, expiry time.Time) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]*Identity, error)
}

// RoleStore owns the role catalog. Role names are unique case-insensitively.
type RoleStore interface {
	Create(ctx context.Context, role *Role) error
	FindByID(ctx context.Context, id string) (*Role, error)
	FindByName(ctx context.Context, name string) (*Role, error)
	List(ctx context.Context) ([]*Role, error)
	// Update rewrites name and description. A rename colliding with another
	// role's name fails with ErrConflict.
	Update(ctx context.Context, role *Role) error
	// Delete removes the role and, via the store's cascade, every assignment
	// referencing it.
	Delete(ctx context.Context, id string) error
}

// AssignmentStore owns the identity-role relation.
type AssignmentStore interface {
	// Assign fails with ErrConflict when the pair already exists, leaving
	// state untouched.
	Assign(ctx context.Context, identityID, roleID string) error
	// Unassign fails with ErrNotFound when the pair does not exist.
	Unassign(ctx context.Context, identityID, roleID string) error
	// RolesOf returns the identity's roles; an identity with no assignments
	// yields an empty slice, not an error.
	RolesOf(ctx context.Context, identityID string) ([]Role, error)
	// CountByRole reports how many identities hold the role. The bootstrap
	// path uses it to decide whether an admin already exists.
	CountByRole(ctx context.Context, roleID string) (int, error)
}
