// Package goAccess is the access-control core of a multi-tenant business application.
// It turns an opaque caller-supplied user id into a verified, tenant-scoped,
// permission-checked actor, and guards privileged accounts with step-up TOTP
// verification, one-time backup codes and a brute-force lockout policy.
//
// Engine methods are safe to call from multiple goroutines after initialization
// through [Builder.Build].
//
// # Architecture boundaries
//
// goAccess is the public surface. It exposes [Engine], [Builder], [Config], [Store]
// and value types (User, TenantContext, MFAStatus, etc.). Flow orchestration, the
// Redis lockout backend and audit dispatch live under internal/ and are never exported.
//
// # Composition
//
// Privileged handlers call [Engine.ResolveTenant] first (identity and tenant), then
// [Engine.Authorize] (entitlement), then, for MFA-gated accounts, [Engine.VerifyMFAAtLogin].
// [Engine.RequirePermission] performs the first two steps in that order.
//
// # What this package must NOT do
//
//   - Cache identity or organization state across calls.
//   - Perform read-then-write updates of the MFA failure counter; failure accounting is
//     a single atomic [Store.RecordMFAFailure] call (or one Redis script).
//   - Let audit sink failures fail a security operation.
package goAccess
