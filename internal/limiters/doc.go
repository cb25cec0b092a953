// Package limiters holds the Redis-backed MFA lockout counter.
//
// [LockoutLimiter] keeps one hash per user (attempts, locked_until) and
// updates it with a single Lua script, so the read-increment-compare-write
// of a failed verification is atomic across engine instances.
//
// All methods are nil-safe: calling any method on a nil receiver is a no-op.
//
// # Architecture boundaries
//
// The limiter owns its Redis key namespace and error type. Policy comes from
// [LockoutConfig] at construction time.
//
// # What this package must NOT do
//
//   - Import goAccess or any sibling internal package.
//   - Decide consequences of a lock; flow functions do that.
package limiters
