package goAccess

import (
	"math"
	"time"
)

// LockoutPolicy is the failure threshold and lock duration of the MFA lockout.
type LockoutPolicy struct {
	Threshold int
	Duration  time.Duration
}

// LockState is the per-user lockout counter. Unlocking is lazy: a state whose
// LockedUntil is not after now is unlocked, no job clears it.
type LockState struct {
	FailedAttempts int
	LockedUntil    time.Time
	// JustLocked is set by [ApplyMFAFailure] on the failure that reached the
	// threshold. It is never persisted.
	JustLocked bool
}

// Locked reports whether now falls inside the lock window.
func (s LockState) Locked(now time.Time) bool {
	return !s.LockedUntil.IsZero() && now.Before(s.LockedUntil)
}

// RetryAfterMinutes is the remaining lock time rounded up to whole minutes,
// or 0 when unlocked.
func (s LockState) RetryAfterMinutes(now time.Time) int {
	if !s.Locked(now) {
		return 0
	}
	return int(math.Ceil(s.LockedUntil.Sub(now).Minutes()))
}

// AttemptsRemaining is the number of failures left before the lock engages.
func (s LockState) AttemptsRemaining(policy LockoutPolicy) int {
	left := policy.Threshold - s.FailedAttempts
	if left < 0 {
		return 0
	}
	return left
}

// ApplyMFAFailure is the Unlocked/Locked transition for one failed
// verification. A locked state is returned unchanged. Otherwise the counter
// grows by one, and reaching the threshold locks until now+Duration.
//
// The counter is not reset when a lock expires, so a failure after expiry
// locks again immediately; only a successful verification clears it.
func ApplyMFAFailure(state LockState, now time.Time, policy LockoutPolicy) LockState {
	state.JustLocked = false
	if state.Locked(now) {
		return state
	}
	state.FailedAttempts++
	if policy.Threshold > 0 && state.FailedAttempts >= policy.Threshold {
		state.LockedUntil = now.Add(policy.Duration)
		state.JustLocked = true
	}
	return state
}
