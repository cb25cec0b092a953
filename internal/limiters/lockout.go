package limiters

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// LockoutConfig holds the MFA lockout policy for the Redis backend.
type LockoutConfig struct {
	Prefix    string
	Threshold int
	Duration  time.Duration
}

var (
	// ErrLockoutUnavailable indicates the lockout backend is unreachable.
	ErrLockoutUnavailable = errors.New("lockout backend unavailable")
)

// LockoutState is one user's counter as stored in Redis.
type LockoutState struct {
	Attempts    int
	LockedUntil time.Time
	JustLocked  bool
}

// recordFailureScript increments and compares in one step so concurrent
// failures can neither be lost nor push the lock window forward.
//
// KEYS[1] lock hash; ARGV: now (unix ms), threshold, duration (ms).
// Returns {attempts, locked_until_ms, just_locked}.
var recordFailureScript = redis.NewScript(`
local now = tonumber(ARGV[1])
local threshold = tonumber(ARGV[2])
local duration = tonumber(ARGV[3])
local vals = redis.call('HMGET', KEYS[1], 'attempts', 'locked_until')
local attempts = tonumber(vals[1]) or 0
local locked_until = tonumber(vals[2]) or 0
if locked_until > now then
	return {attempts, locked_until, 0}
end
attempts = attempts + 1
local just = 0
if attempts >= threshold then
	locked_until = now + duration
	just = 1
end
redis.call('HSET', KEYS[1], 'attempts', attempts, 'locked_until', locked_until)
return {attempts, locked_until, just}
`)

// LockoutLimiter keeps MFA failure counters in Redis hashes. Keys carry no
// TTL: the counter survives lock expiry and only Reset clears it.
type LockoutLimiter struct {
	redis  redis.UniversalClient
	config LockoutConfig
}

// NewLockoutLimiter creates a new lockout limiter.
func NewLockoutLimiter(redisClient redis.UniversalClient, cfg LockoutConfig) *LockoutLimiter {
	if cfg.Prefix == "" {
		cfg.Prefix = "mfa:lock"
	}
	return &LockoutLimiter{redis: redisClient, config: cfg}
}

func (l *LockoutLimiter) key(userID string) string {
	return l.config.Prefix + ":" + userID
}

// RecordFailure counts one failed verification at now.
func (l *LockoutLimiter) RecordFailure(ctx context.Context, userID string, now time.Time) (LockoutState, error) {
	if l == nil || userID == "" {
		return LockoutState{}, nil
	}

	res, err := recordFailureScript.Run(ctx, l.redis, []string{l.key(userID)},
		now.UnixMilli(), l.config.Threshold, l.config.Duration.Milliseconds(),
	).Int64Slice()
	if err != nil {
		return LockoutState{}, fmt.Errorf("%w: %v", ErrLockoutUnavailable, err)
	}
	if len(res) != 3 {
		return LockoutState{}, fmt.Errorf("%w: unexpected script reply %v", ErrLockoutUnavailable, res)
	}

	return LockoutState{
		Attempts:    int(res[0]),
		LockedUntil: fromUnixMilli(res[1]),
		JustLocked:  res[2] == 1,
	}, nil
}

// State returns the stored counter without changing it.
func (l *LockoutLimiter) State(ctx context.Context, userID string) (LockoutState, error) {
	if l == nil || userID == "" {
		return LockoutState{}, nil
	}

	vals, err := l.redis.HMGet(ctx, l.key(userID), "attempts", "locked_until").Result()
	if err != nil {
		return LockoutState{}, fmt.Errorf("%w: %v", ErrLockoutUnavailable, err)
	}

	var state LockoutState
	if attempts, ok := parseInt(vals, 0); ok {
		state.Attempts = int(attempts)
	}
	if until, ok := parseInt(vals, 1); ok {
		state.LockedUntil = fromUnixMilli(until)
	}
	return state, nil
}

// Reset clears the counter and any lock for a user.
func (l *LockoutLimiter) Reset(ctx context.Context, userID string) error {
	if l == nil || userID == "" {
		return nil
	}

	if err := l.redis.Del(ctx, l.key(userID)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrLockoutUnavailable, err)
	}
	return nil
}

func parseInt(vals []interface{}, i int) (int64, bool) {
	if i >= len(vals) || vals[i] == nil {
		return 0, false
	}
	s, ok := vals[i].(string)
	if !ok {
		return 0, false
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

func fromUnixMilli(ms int64) time.Time {
	if ms <= 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}
