// Package auth holds the pure pieces of the authentication core: the
// lockout policy that decides state transitions for failed-attempt counters.
// Persistence of the transitions is the repository layer's job so that every
// counter mutation commits atomically with its audit-log row.
package auth

import "time"

// LockoutPolicy captures the two knobs of progressive lockout: how many
// consecutive failures an account may accumulate and how long it stays
// locked once it crosses the threshold.
type LockoutPolicy struct {
	MaxAttempts int
	Duration    time.Duration
}

// LockStatus describes where an account currently sits in the lockout state
// machine, evaluated lazily against the clock.
type LockStatus struct {
	Locked    bool          // account is locked and the lock has not elapsed
	Remaining time.Duration // time left on the lock; zero unless Locked
	Expired   bool          // a past lock has elapsed and must be cleared before credentials are evaluated
}

// Status evaluates the stored counter state against now.  A lock whose
// expiry has passed is reported as Expired, not Locked: callers reset the
// counters first and then evaluate credentials fresh.
func (p LockoutPolicy) Status(failed int, lockedUntil *time.Time, now time.Time) LockStatus {
	if lockedUntil == nil {
		return LockStatus{}
	}
	if now.Before(*lockedUntil) {
		return LockStatus{Locked: true, Remaining: lockedUntil.Sub(now)}
	}
	return LockStatus{Expired: true}
}

// OnFailure advances the counter after a wrong password.  When the new count
// reaches MaxAttempts the returned lockedUntil is non-nil and the account
// transitions to LOCKED; otherwise it stays unlocked with the bumped count.
func (p LockoutPolicy) OnFailure(failed int, now time.Time) (newFailed int, lockedUntil *time.Time) {
	newFailed = failed + 1
	if newFailed >= p.MaxAttempts {
		t := now.Add(p.Duration)
		return newFailed, &t
	}
	return newFailed, nil
}

// AttemptsLeft reports how many more wrong passwords are tolerated before
// the account locks.  Never negative.
func (p LockoutPolicy) AttemptsLeft(failed int) int {
	left := p.MaxAttempts - failed
	if left < 0 {
		return 0
	}
	return left
}

// RemainingMinutes rounds a lock's remaining time up to whole minutes for
// client-facing messages; a lock with any time left reports at least 1.
func RemainingMinutes(remaining time.Duration) int {
	if remaining <= 0 {
		return 0
	}
	mins := int((remaining + time.Minute - 1) / time.Minute)
	return mins
}
