package goAccess

import (
	"context"
	"fmt"
	"time"

	"github.com/MrEthical07/goAccess/internal/limiters"
)

// lockoutBackend owns the failure counter consulted by every verification
// entry point.
type lockoutBackend interface {
	State(ctx context.Context, user *User) (LockState, error)
	RecordFailure(ctx context.Context, userID string, now time.Time) (LockState, error)
	// Reset clears state kept outside the user record. Store patches already
	// reset the record itself.
	Reset(ctx context.Context, userID string) error
}

var (
	_ lockoutBackend = (*storeLockout)(nil)
	_ lockoutBackend = (*redisLockout)(nil)
)

// storeLockout keeps the counter on the user record.
type storeLockout struct {
	store  Store
	policy LockoutPolicy
}

func (l *storeLockout) State(_ context.Context, user *User) (LockState, error) {
	return user.lockState(), nil
}

func (l *storeLockout) RecordFailure(ctx context.Context, userID string, now time.Time) (LockState, error) {
	state, err := l.store.RecordMFAFailure(ctx, userID, now, l.policy)
	if err != nil {
		return LockState{}, storeFailure(err)
	}
	return state, nil
}

func (l *storeLockout) Reset(context.Context, string) error { return nil }

// redisLockout keeps the counter in Redis through the Lua-backed limiter.
type redisLockout struct {
	limiter *limiters.LockoutLimiter
}

func (l *redisLockout) State(ctx context.Context, user *User) (LockState, error) {
	s, err := l.limiter.State(ctx, user.ID)
	if err != nil {
		return LockState{}, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	return LockState{FailedAttempts: s.Attempts, LockedUntil: s.LockedUntil}, nil
}

func (l *redisLockout) RecordFailure(ctx context.Context, userID string, now time.Time) (LockState, error) {
	s, err := l.limiter.RecordFailure(ctx, userID, now)
	if err != nil {
		return LockState{}, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	return LockState{FailedAttempts: s.Attempts, LockedUntil: s.LockedUntil, JustLocked: s.JustLocked}, nil
}

func (l *redisLockout) Reset(ctx context.Context, userID string) error {
	if err := l.limiter.Reset(ctx, userID); err != nil {
		return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	return nil
}
