package auth

import "time"

// Gender is a profile attribute carried on identities.
type Gender string

const (
	GenderUnspecified Gender = "unspecified"
	GenderMale        Gender = "male"
	GenderFemale      Gender = "female"
)

// ParseGender normalizes raw input into a Gender. Unknown values map to
// GenderUnspecified rather than failing; gender is informational only.
func ParseGender(raw string) Gender {
	switch Gender(normalize(raw)) {
	case GenderMale:
		return GenderMale
	case GenderFemale:
		return GenderFemale
	default:
		return GenderUnspecified
	}
}

// Identity is an account record. PasswordHash is the only credential form
// ever persisted; raw passwords never leave the registration/login paths.
// The refresh token columns hold at most one live token per identity.
type Identity struct {
	ID                 string     `json:"id"`
	Email              string     `json:"email"`
	PasswordHash       string     `json:"-"`
	FirstName          string     `json:"first_name"`
	LastName           string     `json:"last_name"`
	OtherName          string     `json:"other_name,omitempty"`
	PhoneNumber        string     `json:"phone_number,omitempty"`
	Address            string     `json:"address,omitempty"`
	Gender             Gender     `json:"gender"`
	RefreshToken       string     `json:"-"`
	RefreshTokenExpiry *time.Time `json:"-"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// Role names a capability set. Lookups for authorization decisions go by id;
// the name only surfaces inside token claims.
type Role struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// RoleAssignment links an identity to a role, unique per pair.
type RoleAssignment struct {
	IdentityID string    `json:"identity_id"`
	RoleID     string    `json:"role_id"`
	CreatedAt  time.Time `json:"created_at"`
}

// TokenPair carries the credentials returned by login and refresh.
type TokenPair struct {
	AccessToken      string    `json:"access_token"`
	RefreshToken     string    `json:"refresh_token"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}

// Session is the full result of a successful login or refresh.
type Session struct {
	Identity *Identity `json:"identity"`
	Roles    []string  `json:"roles"`
	Tokens   TokenPair `json:"tokens"`
}
