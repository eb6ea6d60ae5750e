package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"eshop.dev/internal/ids"
)

// RoleUser is assigned to every fresh registration; RoleAdmin gates the
// administrative surface. Both are seeded by the Bootstrapper.
const (
	RoleAdmin = "Admin"
	RoleUser  = "User"
)

// RegisterRequest carries the inputs for creating an identity.
type RegisterRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	OtherName   string `json:"other_name"`
	PhoneNumber string `json:"phone_number"`
	Address     string `json:"address"`
	Gender      string `json:"gender"`
}

// ProfileUpdate carries mutable profile fields. Email and password are not
// updatable through this path.
type ProfileUpdate struct {
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	OtherName   string `json:"other_name"`
	PhoneNumber string `json:"phone_number"`
	Address     string `json:"address"`
	Gender      string `json:"gender"`
}

// Service provides credential, role and token operations over a Store.
type Service struct {
	store   Store
	issuer  *Issuer
	refresh *RefreshManager
	policy  EmailPolicy
	now     func() time.Time
}

// ServiceOption configures Service behavior.
type ServiceOption func(*Service)

// WithEmailPolicy restricts which addresses may register.
func WithEmailPolicy(policy EmailPolicy) ServiceOption {
	return func(s *Service) { s.policy = policy }
}

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) ServiceOption {
	return func(s *Service) {
		if fn != nil {
			s.now = fn
		}
	}
}

// NewService constructs the Service. The issuer and refresh manager are
// required; both are validated at construction so a misconfigured signing
// key fails at startup, not per-request.
func NewService(store Store, issuer *Issuer, refresh *RefreshManager, opts ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, errors.New("auth: store is required")
	}
	if issuer == nil {
		return nil, errors.New("auth: token issuer is required")
	}
	if refresh == nil {
		return nil, errors.New("auth: refresh manager is required")
	}
	s := &Service{
		store:   store,
		issuer:  issuer,
		refresh: refresh,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Register validates the request, hashes the password and persists a new
// identity. Every fresh registration receives the baseline User role when
// the role exists.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*Identity, error) {
	if err := req.Validate(s.policy); err != nil {
		return nil, err
	}
	hash, err := HashPassword(req.Password)
	if err != nil {
		return nil, err
	}
	identity := &Identity{
		ID:           ids.New(),
		Email:        normalize(req.Email),
		PasswordHash: hash,
		FirstName:    strings.TrimSpace(req.FirstName),
		LastName:     strings.TrimSpace(req.LastName),
		OtherName:    strings.TrimSpace(req.OtherName),
		PhoneNumber:  strings.TrimSpace(req.PhoneNumber),
		Address:      strings.TrimSpace(req.Address),
		Gender:       ParseGender(req.Gender),
	}
	if err := s.store.Identities().Create(ctx, identity); err != nil {
		return nil, err
	}
	// Default-role assignment. The role may be absent before bootstrap has
	// run; registration still succeeds in that case.
	if role, err := s.store.Roles().FindByName(ctx, RoleUser); err == nil {
		if err := s.store.Assignments().Assign(ctx, identity.ID, role.ID); err != nil && !errors.Is(err, ErrConflict) {
			return nil, err
		}
	}
	return identity, nil
}

// VerifyCredentials resolves an email/password pair to an identity. Unknown
// email and wrong password fail identically with ErrInvalidCredentials.
func (s *Service) VerifyCredentials(ctx context.Context, email, password string) (*Identity, error) {
	email = normalize(email)
	if email == "" || password == "" {
		return nil, ErrInvalidCredentials
	}
	identity, err := s.store.Identities().FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if err := VerifyPassword(identity.PasswordHash, password); err != nil {
		return nil, ErrInvalidCredentials
	}
	return identity, nil
}

// Login authenticates credentials and mints a fresh access/refresh pair.
func (s *Service) Login(ctx context.Context, email, password string) (*Session, error) {
	identity, err := s.VerifyCredentials(ctx, email, password)
	if err != nil {
		return nil, err
	}
	return s.mintSession(ctx, identity)
}

// Refresh redeems a refresh token and rotates it: the redeemed value is
// superseded by the newly issued one before the response leaves this method.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*Session, error) {
	identity, err := s.refresh.Redeem(ctx, refreshToken)
	if err != nil {
		return nil, err
	}
	return s.mintSession(ctx, identity)
}

func (s *Service) mintSession(ctx context.Context, identity *Identity) (*Session, error) {
	roles, err := s.store.Assignments().RolesOf(ctx, identity.ID)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(roles))
	for _, r := range roles {
		names = append(names, r.Name)
	}
	access, accessExp, err := s.issuer.Issue(identity, names)
	if err != nil {
		return nil, err
	}
	refresh, refreshExp, err := s.refresh.Issue(ctx, identity.ID)
	if err != nil {
		return nil, err
	}
	return &Session{
		Identity: identity,
		Roles:    names,
		Tokens: TokenPair{
			AccessToken:      access,
			RefreshToken:     refresh,
			AccessExpiresAt:  accessExp,
			RefreshExpiresAt: refreshExp,
		},
	}, nil
}

// CreateRole adds a role to the catalog. Duplicate names (case-insensitive)
// fail with ErrConflict.
func (s *Service) CreateRole(ctx context.Context, name, description string) (*Role, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		ve := &ValidationError{}
		ve.add("name", "role name is required")
		return nil, ve
	}
	role := &Role{
		ID:          ids.New(),
		Name:        name,
		Description: strings.TrimSpace(description),
	}
	if err := s.store.Roles().Create(ctx, role); err != nil {
		return nil, err
	}
	return role, nil
}

// GetRole returns a role by id.
func (s *Service) GetRole(ctx context.Context, roleID string) (*Role, error) {
	return s.store.Roles().FindByID(ctx, roleID)
}

// UpdateRole renames or redescribes a role. Assignments key on the role id,
// so a rename is safe for identities already holding the role.
func (s *Service) UpdateRole(ctx context.Context, roleID, name, description string) (*Role, error) {
	role, err := s.store.Roles().FindByID(ctx, roleID)
	if err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		ve := &ValidationError{}
		ve.add("name", "role name is required")
		return nil, ve
	}
	role.Name = name
	role.Description = strings.TrimSpace(description)
	role.UpdatedAt = s.now().UTC()
	if err := s.store.Roles().Update(ctx, role); err != nil {
		return nil, err
	}
	return role, nil
}

// DeleteRole removes a role from the catalog; the store's cascade drops its
// assignments. Access tokens already carrying the role name stay valid until
// their expiry.
func (s *Service) DeleteRole(ctx context.Context, roleID string) error {
	return s.store.Roles().Delete(ctx, roleID)
}

// ListRoles returns the full role catalog.
func (s *Service) ListRoles(ctx context.Context) ([]*Role, error) {
	return s.store.Roles().List(ctx)
}

// AssignRole links an identity to a role. Both ids must resolve; assigning
// an already-held role fails with ErrConflict without touching state.
func (s *Service) AssignRole(ctx context.Context, identityID, roleID string) error {
	if _, err := s.store.Identities().FindByID(ctx, identityID); err != nil {
		return err
	}
	if _, err := s.store.Roles().FindByID(ctx, roleID); err != nil {
		return err
	}
	return s.store.Assignments().Assign(ctx, identityID, roleID)
}

// UnassignRole removes an identity-role link, failing with ErrNotFound when
// the pair does not exist.
func (s *Service) UnassignRole(ctx context.Context, identityID, roleID string) error {
	return s.store.Assignments().Unassign(ctx, identityID, roleID)
}

// RolesOf returns the identity's roles. No assignments yields an empty set.
func (s *Service) RolesOf(ctx context.Context, identityID string) ([]Role, error) {
	return s.store.Assignments().RolesOf(ctx, identityID)
}

// GetIdentity returns an identity by id.
func (s *Service) GetIdentity(ctx context.Context, id string) (*Identity, error) {
	return s.store.Identities().FindByID(ctx, id)
}

// ListIdentities returns all identities.
func (s *Service) ListIdentities(ctx context.Context) ([]*Identity, error) {
	return s.store.Identities().List(ctx)
}

// UpdateProfile applies profile changes to an existing identity.
func (s *Service) UpdateProfile(ctx context.Context, id string, upd ProfileUpdate) (*Identity, error) {
	identity, err := s.store.Identities().FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	ve := &ValidationError{}
	if strings.TrimSpace(upd.FirstName) == "" {
		ve.add("first_name", "first name is required")
	}
	if strings.TrimSpace(upd.LastName) == "" {
		ve.add("last_name", "last name is required")
	}
	if err := ve.orNil(); err != nil {
		return nil, err
	}
	identity.FirstName = strings.TrimSpace(upd.FirstName)
	identity.LastName = strings.TrimSpace(upd.LastName)
	identity.OtherName = strings.TrimSpace(upd.OtherName)
	identity.PhoneNumber = strings.TrimSpace(upd.PhoneNumber)
	identity.Address = strings.TrimSpace(upd.Address)
	identity.Gender = ParseGender(upd.Gender)
	identity.UpdatedAt = s.now().UTC()
	if err := s.store.Identities().UpdateProfile(ctx, identity); err != nil {
		return nil, err
	}
	return identity, nil
}

// DeleteIdentity removes an identity and, via the store's cascade, its role
// assignments.
func (s *Service) DeleteIdentity(ctx context.Context, id string) error {
	return s.store.Identities().Delete(ctx, id)
}
