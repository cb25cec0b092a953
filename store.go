package goAccess

import (
	"context"
	"time"
)

// Store is the persistence boundary of the access-control core. Every method
// must be safe for concurrent use. ConsumeBackupCode and RecordMFAFailure must
// each execute as one atomic unit against the user record.
//
// GetUser and GetOrganization return [ErrRecordNotFound] (possibly wrapped)
// for absent records; any other error is treated as a transient backend
// failure.
type Store interface {
	GetUser(ctx context.Context, userID string) (*User, error)
	GetOrganization(ctx context.Context, orgID string) (*Organization, error)
	PatchUser(ctx context.Context, userID string, patch UserPatch) error
	// ConsumeBackupCode removes exactly one stored hash equal to codeHash and
	// reports how many remain. ok is false when no entry matched.
	ConsumeBackupCode(ctx context.Context, userID, codeHash string) (remaining int, ok bool, err error)
	// RecordMFAFailure applies [ApplyMFAFailure] to the stored lock state and
	// persists the result in the same atomic operation.
	RecordMFAFailure(ctx context.Context, userID string, now time.Time, policy LockoutPolicy) (LockState, error)
}

// UserPatch is a partial update of the MFA fields of a user. Nil pointers
// leave the field untouched.
type UserPatch struct {
	MFAEnabled *bool
	// MFASecret set to "" clears the secret.
	MFASecret *string
	// ReplaceBackupCodes swaps the stored hash set for MFABackupCodes
	// (nil clears it).
	ReplaceBackupCodes bool
	MFABackupCodes     []string
	// ResetLockout zeroes the failure counter and clears the lock.
	ResetLockout bool
}

// Apply writes the patch onto u. Store implementations that keep whole user
// records use it so patch semantics stay identical across backends.
func (p UserPatch) Apply(u *User) {
	if u == nil {
		return
	}
	if p.MFAEnabled != nil {
		u.MFAEnabled = *p.MFAEnabled
	}
	if p.MFASecret != nil {
		u.MFASecret = *p.MFASecret
	}
	if p.ReplaceBackupCodes {
		if p.MFABackupCodes == nil {
			u.MFABackupCodes = nil
		} else {
			u.MFABackupCodes = append([]string(nil), p.MFABackupCodes...)
		}
	}
	if p.ResetLockout {
		u.MFAFailedAttempts = 0
		u.MFALockedUntil = time.Time{}
	}
}

func boolPtr(v bool) *bool       { return &v }
func stringPtr(v string) *string { return &v }
