// Package memstore is an in-memory [goAccess.Store]. It backs tests, the
// load tool and single-process deployments.
//
// Every method takes one mutex, so ConsumeBackupCode and RecordMFAFailure
// are atomic with respect to each other and to PatchUser.
package memstore
