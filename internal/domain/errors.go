package domain

import "errors"

// Domain errors
var (
	ErrInvalidScore       = errors.New("score must be a non-negative integer")
	ErrInvalidRequest     = errors.New("invalid request")
	ErrGameNotFound       = errors.New("game not found")
	ErrUserNotFound       = errors.New("user not found")
	ErrUserExists         = errors.New("user already exists")
	ErrNoScore            = errors.New("no score recorded for user")
	ErrSessionNotFound    = errors.New("game session not found")
	ErrAuthRequired       = errors.New("authentication required")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrPermissionDenied   = errors.New("permission denied")
	ErrInternalError      = errors.New("internal server error")
)

// IsNotFoundError checks if an error is a not-found type error
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrGameNotFound) || errors.Is(err, ErrUserNotFound) || errors.Is(err, ErrSessionNotFound)
}

// IsValidationError checks if an error is caused by invalid caller input
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidScore) || errors.Is(err, ErrInvalidRequest)
}
