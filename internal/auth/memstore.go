package auth

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemStore is an in-memory Store. It backs unit tests and local development
// without a database; semantics (conflict, not-found, cascade on delete)
// match the Postgres implementation.
type MemStore struct {
	mu          sync.RWMutex
	identities  map[string]*Identity
	roles       map[string]*Role
	assignments map[string]map[string]time.Time // identity id -> role id -> created at
	now         func() time.Time
}

// NewMemStore constructs an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{
		identities:  make(map[string]*Identity),
		roles:       make(map[string]*Role),
		assignments: make(map[string]map[string]time.Time),
		now:         time.Now,
	}
}

var _ Store = (*MemStore)(nil)

func (m *MemStore) Identities() IdentityStore   { return (*memIdentities)(m) }
func (m *MemStore) Roles() RoleStore            { return (*memRoles)(m) }
func (m *MemStore) Assignments() AssignmentStore { return (*memAssignments)(m) }

// Identity store ------------------------------------------------------------

type memIdentities MemStore

func (m *memIdentities) Create(_ context.Context, identity *Identity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	email := normalize(identity.Email)
	for _, existing := range m.identities {
		if normalize(existing.Email) == email {
			return ErrConflict
		}
	}
	now := m.now().UTC()
	identity.CreatedAt = now
	identity.UpdatedAt = now
	cp := *identity
	m.identities[identity.ID] = &cp
	return nil
}

func (m *memIdentities) FindByID(_ context.Context, id string) (*Identity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	identity, ok := m.identities[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *identity
	return &cp, nil
}

func (m *memIdentities) FindByEmail(_ context.Context, email string) (*Identity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	email = normalize(email)
	for _, identity := range m.identities {
		if normalize(identity.Email) == email {
			cp := *identity
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *memIdentities) FindByRefreshToken(_ context.Context, token string) (*Identity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if token == "" {
		return nil, ErrNotFound
	}
	for _, identity := range m.identities {
		if identity.RefreshToken == token {
			cp := *identity
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *memIdentities) UpdateProfile(_ context.Context, identity *Identity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.identities[identity.ID]
	if !ok {
		return ErrNotFound
	}
	existing.FirstName = identity.FirstName
	existing.LastName = identity.LastName
	existing.OtherName = identity.OtherName
	existing.PhoneNumber = identity.PhoneNumber
	existing.Address = identity.Address
	existing.Gender = identity.Gender
	existing.UpdatedAt = identity.UpdatedAt
	return nil
}

func (m *memIdentities) UpdateRefreshToken(_ context.Context, identityID, token string, expiry time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	identity, ok := m.identities[identityID]
	if !ok {
		return ErrNotFound
	}
	identity.RefreshToken = token
	identity.RefreshTokenExpiry = &expiry
	identity.UpdatedAt = m.now().UTC()
	return nil
}

func (m *memIdentities) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.identities[id]; !ok {
		return ErrNotFound
	}
	delete(m.identities, id)
	delete(m.assignments, id)
	return nil
}

func (m *memIdentities) List(_ context.Context) ([]*Identity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Identity, 0, len(m.identities))
	for _, identity := range m.identities {
		cp := *identity
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Role store -----------------------------------------------------------------

type memRoles MemStore

func (m *memRoles) Create(_ context.Context, role *Role) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	name := normalize(role.Name)
	for _, existing := range m.roles {
		if normalize(existing.Name) == name {
			return ErrConflict
		}
	}
	now := m.now().UTC()
	role.CreatedAt = now
	role.UpdatedAt = now
	cp := *role
	m.roles[role.ID] = &cp
	return nil
}

func (m *memRoles) FindByID(_ context.Context, id string) (*Role, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	role, ok := m.roles[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *role
	return &cp, nil
}

func (m *memRoles) FindByName(_ context.Context, name string) (*Role, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	name = normalize(name)
	for _, role := range m.roles {
		if normalize(role.Name) == name {
			cp := *role
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *memRoles) List(_ context.Context) ([]*Role, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Role, 0, len(m.roles))
	for _, role := range m.roles {
		cp := *role
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return normalize(out[i].Name) < normalize(out[j].Name) })
	return out, nil
}

func (m *memRoles) Update(_ context.Context, role *Role) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.roles[role.ID]
	if !ok {
		return ErrNotFound
	}
	name := normalize(role.Name)
	for id, other := range m.roles {
		if id != role.ID && normalize(other.Name) == name {
			return ErrConflict
		}
	}
	existing.Name = role.Name
	existing.Description = role.Description
	existing.UpdatedAt = role.UpdatedAt
	return nil
}

func (m *memRoles) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.roles[id]; !ok {
		return ErrNotFound
	}
	delete(m.roles, id)
	for identityID := range m.assignments {
		delete(m.assignments[identityID], id)
	}
	return nil
}

// Assignment store -----------------------------------------------------------

type memAssignments MemStore

func (m *memAssignments) Assign(_ context.Context, identityID, roleID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.identities[identityID]; !ok {
		return ErrNotFound
	}
	if _, ok := m.roles[roleID]; !ok {
		return ErrNotFound
	}
	byRole, ok := m.assignments[identityID]
	if !ok {
		byRole = make(map[string]time.Time)
		m.assignments[identityID] = byRole
	}
	if _, exists := byRole[roleID]; exists {
		return ErrConflict
	}
	byRole[roleID] = m.now().UTC()
	return nil
}

func (m *memAssignments) Unassign(_ context.Context, identityID, roleID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	byRole, ok := m.assignments[identityID]
	if !ok {
		return ErrNotFound
	}
	if _, exists := byRole[roleID]; !exists {
		return ErrNotFound
	}
	delete(byRole, roleID)
	return nil
}

func (m *memAssignments) RolesOf(_ context.Context, identityID string) ([]Role, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []Role{}
	for roleID := range m.assignments[identityID] {
		if role, ok := m.roles[roleID]; ok {
			out = append(out, *role)
		}
	}
	sort.Slice(out, func(i, j int) bool { return normalize(out[i].Name) < normalize(out[j].Name) })
	return out, nil
}

func (m *memAssignments) CountByRole(_ context.Context, roleID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	count := 0
	for _, byRole := range m.assignments {
		if _, ok := byRole[roleID]; ok {
			count++
		}
	}
	return count, nil
}
