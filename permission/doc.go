// Package permission provides the static role → resource → action matrix used by
// goAccess authorization checks.
//
// # Layout
//
// Every (resource, action) pair is assigned a stable bit by a [Registry]; each role
// owns a frozen 128-bit [Mask] with the bits of the pairs it is granted. A lookup is
// two map reads and one bit test. Anything not granted, including unknown roles,
// resources or actions, evaluates to deny.
//
// # Architecture boundaries
//
// This package is a pure in-memory data structure with no I/O. The matrix is built
// once at initialization and never mutated afterwards.
//
// # What this package must NOT do
//
//   - Access stores, Redis, or the network.
//   - Import goAccess.
//   - Allow grants to change after [NewMatrix] returns.
package permission
