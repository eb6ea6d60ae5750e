package auth

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound reports a missing identity, role or assignment.
	ErrNotFound = errors.New("auth: not found")
	// ErrConflict reports a duplicate email, role name or assignment pair.
	ErrConflict = errors.New("auth: already exists")
	// ErrInvalidCredentials is returned uniformly for unknown email and
	// wrong password so callers cannot probe which emails are registered.
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	// ErrInvalidToken reports an access or refresh token that failed any
	// validation check.
	ErrInvalidToken = errors.New("auth: invalid token")
	// ErrUnauthenticated means no valid token was presented at all.
	ErrUnauthenticated = errors.New("auth: unauthenticated")
	// ErrForbidden means the token is valid but lacks a required role.
	ErrForbidden = errors.New("auth: forbidden")
)

// FieldError describes a single invalid input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError aggregates field-level failures for one request.
type ValidationError struct {
	Fields []FieldError `json:"fields"`
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "auth: invalid input"
	}
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, fmt.Sprintf("%s: %s", f.Field, f.Message))
	}
	return "auth: invalid input: " + strings.Join(parts, "; ")
}

func (e *ValidationError) add(field, message string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: message})
}

func (e *ValidationError) orNil() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}

// AsValidation unwraps err into a *ValidationError when it is one.
func AsValidation(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}
