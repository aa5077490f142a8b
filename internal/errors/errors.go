package errors

import (
	"errors"
	"fmt"
)

// Common error types for the storefront API access layer
var (
	// Classified gateway errors
	ErrAuthRequired       = errors.New("authentication required")
	ErrSessionExpired     = errors.New("session expired")
	ErrRequestFailed      = errors.New("request failed")
	ErrNetworkUnavailable = errors.New("network unavailable")

	// Refresh errors
	ErrNoRefreshToken      = errors.New("no refresh token")
	ErrInvalidRefreshReply = errors.New("refresh response carried no access token")

	// Login errors
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrNoTokensIssued     = errors.New("login response carried no access token")

	// Storage errors
	ErrUnknownRealm = errors.New("unknown realm")
	ErrUnknownKind  = errors.New("unknown credential kind")
	ErrSealedValue  = errors.New("sealed value could not be opened")
)

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

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
