package application

import (
	"errors"
	"fmt"
	"strings"

	"github.com/example/room-booking/internal/scheduler"
	"github.com/example/room-booking/internal/timezone"
)

var (
	// ErrUnauthorized is returned when the acting principal lacks permission for an operation.
	ErrUnauthorized = errors.New("application: unauthorized")
	// ErrNotFound is returned when the requested resource does not exist.
	ErrNotFound = errors.New("application: not found")
	// ErrAlreadyExists is returned when a unique attribute is already taken.
	ErrAlreadyExists = errors.New("application: already exists")
	// ErrInvalidCredentials is returned when an email/password pair or token does not match.
	ErrInvalidCredentials = errors.New("application: invalid credentials")
	// ErrAccountDisabled is returned when an inactive user tries to sign in.
	ErrAccountDisabled = errors.New("application: account disabled")
	// ErrSessionExpired is returned for sessions past their expiry.
	ErrSessionExpired = errors.New("application: session expired")
	// ErrSessionRevoked is returned for sessions that were logged out.
	ErrSessionRevoked = errors.New("application: session revoked")
)

// ValidationError captures field level validation issues that callers can surface to users.
type ValidationError struct {
	FieldErrors map[string]string
}

// Error implements the error interface.
func (v *ValidationError) Error() string {
	if v == nil {
		return ""
	}
	return "validation failed"
}

// HasErrors reports whether any field level issues were recorded.
func (v *ValidationError) HasErrors() bool {
	return v != nil && len(v.FieldErrors) > 0
}

func (v *ValidationError) add(field, message string) {
	if v.FieldErrors == nil {
		v.FieldErrors = make(map[string]string)
	}
	v.FieldErrors[field] = message
}

func (v *ValidationError) merge(other *ValidationError) {
	if other == nil || len(other.FieldErrors) == 0 {
		return
	}
	for field, msg := range other.FieldErrors {
		v.add(field, msg)
	}
}

func newValidationError(field, message string) *ValidationError {
	vErr := &ValidationError{}
	vErr.add(field, message)
	return vErr
}

// WeekdayConflict describes one rejected weekday and the free starts offered instead.
type WeekdayConflict struct {
	Kind         scheduler.ConflictKind
	Weekday      timezone.Weekday
	Start        timezone.TimeOfDay
	Alternatives []scheduler.Slot
}

// ConflictError reports that the requested slot overlaps an existing occupation.
// Nothing was written when it is returned.
type ConflictError struct {
	Kind     scheduler.ConflictKind
	Weekdays []WeekdayConflict
}

// Error implements the error interface.
func (c *ConflictError) Error() string {
	if c == nil {
		return ""
	}
	if len(c.Weekdays) == 0 {
		return fmt.Sprintf("conflict: %s", c.Kind)
	}
	labels := make([]string, len(c.Weekdays))
	for i, wd := range c.Weekdays {
		labels[i] = wd.Weekday.Label()
	}
	return fmt.Sprintf("conflict: %s on %s", c.Kind, strings.Join(labels, ", "))
}
