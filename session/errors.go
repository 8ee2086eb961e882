package session

import (
	"errors"
	"fmt"
)

var (
	// ErrStoreUnavailable wraps every Redis transport or timeout failure.
	// Callers may retry.
	ErrStoreUnavailable = errors.New("session store unavailable")

	ErrSessionNotFound    = errors.New("session not found")
	ErrSessionRevoked     = errors.New("session revoked")
	ErrSessionExpired     = errors.New("session expired")
	ErrSessionCorrupt     = errors.New("session record corrupt")
	ErrSessionIDCollision = errors.New("session id collision")
)

func unavailable(err error) error {
	return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
}
