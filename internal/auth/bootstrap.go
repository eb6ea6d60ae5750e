package auth

import (
	"context"
	"errors"
	"fmt"

	"eshop.dev/internal/ids"
)

// Bootstrapper idempotently seeds the baseline roles and a default
// administrative identity. It runs once per process startup, after schema
// migration and before the listener accepts traffic. Re-running it never
// duplicates roles or admins: every insert is guarded by an existence query
// and backstopped by the store's unique constraints.
type Bootstrapper struct {
	store         Store
	adminEmail    string
	adminPassword string
	logf          func(event string, fields map[string]any)
}

// NewBootstrapper constructs a Bootstrapper. The admin credential comes from
// configuration; the well-known defaults are demo values and operators are
// expected to override them.
func NewBootstrapper(store Store, adminEmail, adminPassword string) *Bootstrapper {
	return &Bootstrapper{
		store:         store,
		adminEmail:    normalize(adminEmail),
		adminPassword: adminPassword,
		logf:          func(string, map[string]any) {},
	}
}

// WithLogger injects a logging callback for seed events. Logging stays off
// the failure path: the callback is fire-and-forget.
func (b *Bootstrapper) WithLogger(logf func(event string, fields map[string]any)) *Bootstrapper {
	if logf != nil {
		b.logf = logf
	}
	return b
}

// Run executes the full seeding sequence.
func (b *Bootstrapper) Run(ctx context.Context) error {
	if err := b.ensureBaselineRoles(ctx); err != nil {
		return fmt.Errorf("seed roles: %w", err)
	}
	if err := b.ensureDefaultAdmin(ctx); err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}
	return nil
}

func (b *Bootstrapper) ensureBaselineRoles(ctx context.Context) error {
	for _, name := range []string{RoleAdmin, RoleUser} {
		_, err := b.store.Roles().FindByName(ctx, name)
		if err == nil {
			continue
		}
		if !errors.Is(err, ErrNotFound) {
			return err
		}
		role := &Role{ID: ids.New(), Name: name, Description: "Baseline " + name + " role"}
		if err := b.store.Roles().Create(ctx, role); err != nil {
			// Another starter won the insert race; the role exists either way.
			if errors.Is(err, ErrConflict) {
				continue
			}
			return err
		}
		b.logf("bootstrap.role.created", map[string]any{"role": name})
	}
	return nil
}

func (b *Bootstrapper) ensureDefaultAdmin(ctx context.Context) error {
	adminRole, err := b.store.Roles().FindByName(ctx, RoleAdmin)
	if err != nil {
		return err
	}
	holders, err := b.store.Assignments().CountByRole(ctx, adminRole.ID)
	if err != nil {
		return err
	}
	if holders > 0 {
		return nil
	}

	identity, err := b.store.Identities().FindByEmail(ctx, b.adminEmail)
	if errors.Is(err, ErrNotFound) {
		hash, hashErr := HashPassword(b.adminPassword)
		if hashErr != nil {
			return hashErr
		}
		identity = &Identity{
			ID:           ids.New(),
			Email:        b.adminEmail,
			PasswordHash: hash,
			FirstName:    "Super",
			LastName:     "Admin",
			PhoneNumber:  "0000000000",
			Address:      "System Default",
			Gender:       GenderUnspecified,
		}
		if err := b.store.Identities().Create(ctx, identity); err != nil {
			if !errors.Is(err, ErrConflict) {
				return err
			}
			// Another starter won the insert race; assignment must use the
			// persisted row's id, not the one generated here.
			identity, err = b.store.Identities().FindByEmail(ctx, b.adminEmail)
			if err != nil {
				return err
			}
		}
	} else if err != nil {
		return err
	}

	if err := b.store.Assignments().Assign(ctx, identity.ID, adminRole.ID); err != nil && !errors.Is(err, ErrConflict) {
		return err
	}
	b.logf("bootstrap.admin.created", map[string]any{"email": b.adminEmail})
	return nil
}
