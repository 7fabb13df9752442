// Package errs contains sentinel errors used across layers for stable error mapping.
package errs

import (
	"errors"
	"sort"
	"strings"
)

var (
	// ErrNotFound indicates the entity does not exist for the calling user.
	// Ownership misses and true misses are deliberately indistinguishable.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateEmail indicates the email is already registered.
	ErrDuplicateEmail = errors.New("email already registered")

	// ErrInvalidCredentials indicates a failed login. The same value is
	// returned for unknown emails and wrong passwords to avoid account
	// enumeration.
	ErrInvalidCredentials = errors.New("invalid email or password")
)

// ValidationError carries field-level messages for rejected input.
// It implies no persistence side effect occurred.
type ValidationError struct {
	Fields map[string]string
}

func NewValidationError() *ValidationError {
	return &ValidationError{Fields: map[string]string{}}
}

func (e *ValidationError) Add(field, message string) {
	e.Fields[field] = message
}

func (e *ValidationError) Empty() bool {
	return len(e.Fields) == 0
}

// Messages returns the field messages in a stable order for display.
func (e *ValidationError) Messages() []string {
	fields := make([]string, 0, len(e.Fields))
	for f := range e.Fields {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	msgs := make([]string, 0, len(fields))
	for _, f := range fields {
		msgs = append(msgs, e.Fields[f])
	}
	return msgs
}

func (e *ValidationError) Error() string {
	return "validation: " + strings.Join(e.Messages(), "; ")
}

// AsValidation unwraps err into a ValidationError if it is one.
func AsValidation(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}
