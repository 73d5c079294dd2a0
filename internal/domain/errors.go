package domain

import "errors"

// Domain errors
var (
	ErrSessionNotFound     = errors.New("session not found")
	ErrSessionNotJoinable  = errors.New("session is not accepting players")
	ErrSessionFull         = errors.New("session is at maximum capacity")
	ErrPlayerExists        = errors.New("player already joined this session")
	ErrPlayerNotFound      = errors.New("player not found in session")
	ErrSessionNotActive    = errors.New("session is not active")
	ErrSessionNotStartable = errors.New("session cannot be started")
	ErrInvalidAction       = errors.New("invalid action")
	ErrInvalidConfig       = errors.New("invalid game configuration")
	ErrNoProviderAvailable = errors.New("no AI provider available")
	ErrInvalidRequest      = errors.New("invalid request")
	ErrInternalError       = errors.New("internal server error")
)

// IsNotFoundError checks if an error is a not-found type error
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrSessionNotFound) || errors.Is(err, ErrPlayerNotFound)
}

// IsRejectionError checks if an error represents a rejected engine
// operation rather than an internal failure
func IsRejectionError(err error) bool {
	return errors.Is(err, ErrSessionNotJoinable) ||
		errors.Is(err, ErrSessionFull) ||
		errors.Is(err, ErrPlayerExists) ||
		errors.Is(err, ErrSessionNotActive) ||
		errors.Is(err, ErrSessionNotStartable) ||
		errors.Is(err, ErrInvalidAction)
}
