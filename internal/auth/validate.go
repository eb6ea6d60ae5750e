package auth

import (
	"regexp"
	"strings"
)

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

const minPasswordLen = 8

// EmailPolicy decides which addresses may register. An empty domain list
// accepts any syntactically valid address.
type EmailPolicy struct {
	AllowedDomains []string
}

// Validate returns a non-empty message when the address is rejected.
func (p EmailPolicy) Validate(email string) string {
	email = normalize(email)
	if email == "" {
		return "email is required"
	}
	if !emailPattern.MatchString(email) {
		return "email is not a valid address"
	}
	if len(p.AllowedDomains) == 0 {
		return ""
	}
	at := strings.LastIndex(email, "@")
	domain := email[at+1:]
	for _, allowed := range p.AllowedDomains {
		if domain == normalize(allowed) {
			return ""
		}
	}
	return "email domain is not allowed"
}

// Validate checks a registration request field by field. It returns nil when
// the request is acceptable, otherwise a *ValidationError listing every
// failing field.
func (r RegisterRequest) Validate(policy EmailPolicy) error {
	ve := &ValidationError{}
	if msg := policy.Validate(r.Email); msg != "" {
		ve.add("email", msg)
	}
	if len(r.Password) < minPasswordLen {
		ve.add("password", "password must be at least 8 characters")
	}
	if strings.TrimSpace(r.FirstName) == "" {
		ve.add("first_name", "first name is required")
	}
	if strings.TrimSpace(r.LastName) == "" {
		ve.add("last_name", "last name is required")
	}
	return ve.orNil()
}

// normalize lower-cases and trims identifier-like input (emails, role names,
// domains) so comparisons are case-insensitive everywhere.
func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
