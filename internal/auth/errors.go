package auth

import (
	"errors"
	"time"
)

// Authentication failures are surfaced uniformly at the HTTP boundary; the
// distinct sentinels below exist for status mapping and audit logging, never
// for response bodies that would reveal which check failed.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountDisabled    = errors.New("account is disabled")
	ErrInvalidToken       = errors.New("invalid token")
	ErrSessionExpired     = errors.New("session expired")

	ErrUserNotFound      = errors.New("user not found")
	ErrDuplicateEmail    = errors.New("email already in use")
	ErrDuplicateUsername = errors.New("username already in use")
	ErrInvalidEmail      = errors.New("email format is invalid")
	ErrInvalidUsername   = errors.New("username format is invalid")
)

// AccountLockedError reports a lockout along with when it ends, so the
// transport layer can emit Retry-After.
type AccountLockedError struct {
	Until time.Time
}

func (e AccountLockedError) Error() string {
	return "account temporarily locked"
}

// WeakPasswordError carries the full ordered violation list; callers surface
// the first entry as the primary message.
type WeakPasswordError struct {
	Violations []string
}

func (e WeakPasswordError) Error() string {
	if len(e.Violations) > 0 {
		return e.Violations[0]
	}
	return "password is too weak"
}
