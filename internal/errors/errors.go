package errors

import (
	"errors"
	"fmt"
)

// Common error types for the identity server
var (
	// Login denials
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrAccountDeactivated = errors.New("account deactivated")
	ErrAccountUnconfirmed = errors.New("email not confirmed")
	ErrAccountLocked      = errors.New("account temporarily locked")

	// Token denials
	ErrInvalidToken   = errors.New("invalid token")
	ErrInvalidRefresh = errors.New("invalid or expired refresh token")

	// Registration / account management
	ErrDuplicateEmail           = errors.New("email already registered")
	ErrDuplicateUsername        = errors.New("username already taken")
	ErrInvalidResetToken        = errors.New("invalid or expired reset token")
	ErrInvalidConfirmationToken = errors.New("invalid confirmation token")

	// Storage
	ErrNotFound        = errors.New("not found")
	ErrRefreshConflict = errors.New("refresh token changed concurrently")

	// General
	ErrInternal = errors.New("internal error")
)

// ValidationError carries a user-facing reason for rejecting input, such as
// a weak password. Handlers surface the reason verbatim.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

// Validation builds a ValidationError.
func Validation(reason string) error {
	return &ValidationError{Reason: reason}
}

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}
