// Package flows holds the MFA lifecycle orchestrators behind the Engine.
//
// Each Run* function takes an [MFADeps] closure struct and touches the
// outside world only through it: user loading, the store patch, lockout
// accounting, audit and metrics are all injected. Backup code generation and
// hashing live here as plain helpers.
//
// # What this package must NOT do
//
//   - Hold mutable state between calls.
//   - Import goAccess (to avoid import cycles).
//   - Perform I/O directly.
package flows
