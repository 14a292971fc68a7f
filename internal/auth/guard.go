package auth

import (
	"context"
	"time"
)

// GuardStore is the persistence AccountGuard needs: both writes are atomic
// single-statement updates so concurrent attempts never lose a count.
type GuardStore interface {
	RecordLoginFailure(ctx context.Context, userID string, threshold int, lockUntil, now time.Time) (int, *time.Time, error)
	RecordLoginSuccess(ctx context.Context, userID string, now time.Time) error
}

// AccountGuard tracks failed logins per account and locks the account for
// lockDuration once the counter reaches threshold. The lock is checked
// lazily on the next attempt, never cleared proactively.
type AccountGuard struct {
	store        GuardStore
	threshold    int
	lockDuration time.Duration
}

func NewAccountGuard(store GuardStore, threshold int, lockDuration time.Duration) *AccountGuard {
	if threshold <= 0 {
		threshold = 5
	}
	if lockDuration <= 0 {
		lockDuration = 30 * time.Minute
	}

	return &AccountGuard{
		store:        store,
		threshold:    threshold,
		lockDuration: lockDuration,
	}
}

func (g *AccountGuard) IsLocked(u User, now time.Time) bool {
	return u.LockedUntil != nil && now.Before(*u.LockedUntil)
}

// RecordFailure increments the account's counter; if the counter reaches the
// threshold the returned time is the new lockout expiry.
func (g *AccountGuard) RecordFailure(ctx context.Context, u User, now time.Time) (*time.Time, error) {
	_, lockedUntil, err := g.store.RecordLoginFailure(ctx, u.ID, g.threshold, now.Add(g.lockDuration), now)
	if err != nil {
		return nil, err
	}
	if lockedUntil != nil && now.Before(*lockedUntil) {
		return lockedUntil, nil
	}
	return nil, nil
}

// RecordSuccess resets the counter, clears any lockout and stamps the last
// login time.
func (g *AccountGuard) RecordSuccess(ctx context.Context, u User, now time.Time) error {
	return g.store.RecordLoginSuccess(ctx, u.ID, now)
}
