package goAccess

import (
	"context"
	"errors"
	"fmt"
	"time"

	internalflows "github.com/MrEthical07/goAccess/internal/flows"
	"github.com/MrEthical07/goAccess/permission"
)

// BeginMFAEnrollment generates a new secret and backup code set for an
// eligible user and leaves MFA pending until [Engine.ConfirmMFAEnrollment].
// The returned backup codes are the only plaintext copy that will ever exist.
//
// Calling it again while pending discards the previous secret and codes.
// Enabled accounts get [ErrMFAAlreadyEnabled]; roles outside
// MFAConfig.EligibleRoles get [ErrMFANotEligible].
func (e *Engine) BeginMFAEnrollment(ctx context.Context, userID string) (*MFAEnrollment, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	out, err := internalflows.RunBeginEnrollment(ctx, userID, e.mfaFlowDeps())
	if err != nil {
		return nil, err
	}
	return &MFAEnrollment{
		Secret:          out.Secret,
		ProvisioningURI: out.ProvisioningURI,
		QRCodeDataURL:   out.QRCodeDataURL,
		BackupCodes:     out.BackupCodes,
	}, nil
}

// ConfirmMFAEnrollment enables MFA once code validates against the pending
// secret. Failures count toward the lockout like login failures.
func (e *Engine) ConfirmMFAEnrollment(ctx context.Context, userID, code string) error {
	if !e.ready() {
		return ErrEngineNotReady
	}
	return internalflows.RunConfirmEnrollment(ctx, userID, code, e.mfaFlowDeps())
}

// VerifyMFAAtLogin checks a TOTP or backup code for an MFA-enabled user.
//
// While the account is locked every call fails with [ErrMFALockedOut]
// without touching the counter. A backup code is consumed on success and can
// never be used again. A code that matches neither factor counts one failure;
// the failure that reaches the threshold still reports [ErrInvalidMFACode]
// but carries the lock expiry.
func (e *Engine) VerifyMFAAtLogin(ctx context.Context, userID, code string) (*MFAVerification, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	out, err := internalflows.RunVerifyAtLogin(ctx, userID, code, e.mfaFlowDeps())
	if err != nil {
		return nil, err
	}
	return &MFAVerification{
		Success:              true,
		Method:               MFAMethod(out.Method),
		RemainingBackupCodes: out.RemainingBackupCodes,
	}, nil
}

// DisableMFA turns MFA off and clears the secret, backup codes and lockout
// state. The owner of an enabled account must supply a valid TOTP code. An
// administrator of the same organization may disable another user's MFA
// without one; a code, when given, is always verified.
func (e *Engine) DisableMFA(ctx context.Context, req DisableMFARequest) error {
	if !e.ready() {
		return ErrEngineNotReady
	}
	return internalflows.RunDisable(ctx, internalflows.DisableRequest{
		UserID:       req.UserID,
		ActingUserID: req.ActingUserID,
		TOTPCode:     req.TOTPCode,
	}, e.mfaFlowDeps())
}

// RegenerateBackupCodes replaces all backup codes after a TOTP check and
// returns the new plaintext set once. Backup codes are not accepted as proof.
func (e *Engine) RegenerateBackupCodes(ctx context.Context, userID, totpCode string) ([]string, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	return internalflows.RunRegenerateBackupCodes(ctx, userID, totpCode, e.mfaFlowDeps())
}

// MFAStatus reports the MFA state of a user without exposing the secret or
// code hashes.
func (e *Engine) MFAStatus(ctx context.Context, userID string) (*MFAStatus, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}

	user, _, err := e.validateIdentity(ctx, userID)
	if err != nil {
		return nil, err
	}
	state, err := e.lockout.State(ctx, user)
	if err != nil {
		return nil, err
	}

	now := e.clock()
	status := &MFAStatus{
		Enabled: user.MFAEnabled,
		Pending: user.MFAPending(),
		Locked:  state.Locked(now),
	}
	if user.MFAEnabled {
		status.BackupCodesRemaining = len(user.MFABackupCodes)
	}
	if status.Locked {
		status.LockedUntil = state.LockedUntil
	}
	return status, nil
}

func (e *Engine) mfaEligible(role string) bool {
	for _, r := range e.config.MFA.EligibleRoles {
		if string(r) == role {
			return true
		}
	}
	return false
}

func (e *Engine) mfaFlowDeps() internalflows.MFADeps {
	cfg := e.config
	policy := cfg.Lockout.Policy()

	return internalflows.MFADeps{
		BackupCodeCount:  cfg.BackupCodes.Count,
		BackupCodeLength: cfg.BackupCodes.Length,
		AdminRole:        string(cfg.MFA.AdminRole),
		Now:              e.clock,
		Eligible:         e.mfaEligible,
		LoadUser: func(ctx context.Context, userID string) (internalflows.MFAUser, error) {
			user, _, err := e.validateIdentity(ctx, userID)
			if err != nil {
				return internalflows.MFAUser{}, err
			}
			return toFlowMFAUser(user), nil
		},
		LoadSubject: func(ctx context.Context, userID string) (internalflows.MFAUser, error) {
			user, err := e.loadUser(ctx, userID)
			if err != nil {
				return internalflows.MFAUser{}, err
			}
			return toFlowMFAUser(user), nil
		},
		GenerateSecret: func(user internalflows.MFAUser) (string, string, error) {
			account := user.Email
			if account == "" {
				account = user.UserID
			}
			return e.totp.GenerateSecret(account)
		},
		RenderQR: e.totp.QRCodeDataURL,
		VerifyTOTP: func(user internalflows.MFAUser, code string, now time.Time) (bool, error) {
			ok, err := e.totp.Verify(user.Secret, code, now)
			if errors.Is(err, errInvalidSecret) {
				return false, &ConfigurationError{UserID: user.UserID, Reason: "stored mfa secret is not valid base32"}
			}
			return ok, err
		},
		BeginEnrollment: func(ctx context.Context, userID, secret string, hashes []string) error {
			return e.patchMFA(ctx, userID, UserPatch{
				MFAEnabled:         boolPtr(false),
				MFASecret:          stringPtr(secret),
				ReplaceBackupCodes: true,
				MFABackupCodes:     hashes,
				ResetLockout:       true,
			})
		},
		Enable: func(ctx context.Context, userID string) error {
			return e.patchMFA(ctx, userID, UserPatch{
				MFAEnabled:   boolPtr(true),
				ResetLockout: true,
			})
		},
		Disable: func(ctx context.Context, userID string) error {
			return e.patchMFA(ctx, userID, UserPatch{
				MFAEnabled:         boolPtr(false),
				MFASecret:          stringPtr(""),
				ReplaceBackupCodes: true,
				ResetLockout:       true,
			})
		},
		ReplaceBackupCodes: func(ctx context.Context, userID string, hashes []string) error {
			return userWriteFailure(userID, e.store.PatchUser(ctx, userID, UserPatch{
				ReplaceBackupCodes: true,
				MFABackupCodes:     hashes,
			}))
		},
		ConsumeBackupCode: func(ctx context.Context, userID, hash string) (int, bool, error) {
			remaining, ok, err := e.store.ConsumeBackupCode(ctx, userID, hash)
			if err != nil {
				return 0, false, userWriteFailure(userID, err)
			}
			return remaining, ok, nil
		},
		LockState: func(ctx context.Context, user internalflows.MFAUser) (internalflows.LockState, error) {
			state, err := e.lockout.State(ctx, &User{
				ID:                user.UserID,
				MFAFailedAttempts: user.FailedAttempts,
				MFALockedUntil:    user.LockedUntil,
			})
			if err != nil {
				return internalflows.LockState{}, err
			}
			return toFlowLockState(state), nil
		},
		RecordFailure: func(ctx context.Context, userID string, now time.Time) (internalflows.LockState, error) {
			state, err := e.lockout.RecordFailure(ctx, userID, now)
			if err != nil {
				return internalflows.LockState{}, userWriteFailure(userID, err)
			}
			return toFlowLockState(state), nil
		},
		ResetLockout: e.resetLockout,
		MetricInc: func(id int) {
			e.metricInc(MetricID(id))
		},
		Observe: func(id int, d time.Duration) {
			e.metricObserve(MetricID(id), d)
		},
		EmitAudit: e.emitFlowAudit,
		Warn: func(msg string, args ...any) {
			e.logger.WarnContext(context.Background(), msg, args...)
		},
		Metrics: internalflows.MFAMetrics{
			EnrollmentStarted:      int(MetricMFAEnrollmentStarted),
			Enabled:                int(MetricMFAEnabled),
			TOTPSuccess:            int(MetricMFATOTPSuccess),
			BackupCodeUsed:         int(MetricMFABackupCodeUsed),
			VerifyFailure:          int(MetricMFAVerifyFailure),
			Lockout:                int(MetricMFALockout),
			LockedOutRejected:      int(MetricMFALockedOutRejected),
			Disabled:               int(MetricMFADisabled),
			BackupCodesRegenerated: int(MetricBackupCodesRegenerated),
			VerifyLatency:          int(MetricMFAVerifyLatency),
		},
		Events: internalflows.MFAEvents{
			EnrollmentStarted:      auditEventMFAEnrollmentStarted,
			Enabled:                auditEventMFAEnabled,
			TOTPSuccess:            auditEventMFATOTPSuccess,
			BackupCodeUsed:         auditEventBackupCodeUsed,
			VerificationFailed:     auditEventMFAVerificationFailed,
			Lockout:                auditEventMFALockout,
			Disabled:               auditEventMFADisabled,
			BackupCodesRegenerated: auditEventBackupCodesRegenerated,
		},
		Errors: internalflows.MFAErrors{
			EngineNotReady: ErrEngineNotReady,
			Unavailable: func(err error) error {
				return fmt.Errorf("%w: %w", ErrMFAUnavailable, err)
			},
			NotEligible: func(userID string) error {
				return &MFASetupError{Kind: MFASetupNotEligible, UserID: userID}
			},
			NotPending: func(userID string) error {
				return &MFASetupError{Kind: MFASetupNotPending, UserID: userID}
			},
			AlreadyEnabled: func(userID string) error {
				return &MFASetupError{Kind: MFASetupAlreadyEnabled, UserID: userID}
			},
			NotEnabled: func(userID string) error {
				return &MFASetupError{Kind: MFASetupNotEnabled, UserID: userID}
			},
			Forbidden: func() error {
				return &AuthorizationError{Resource: permission.ResourceUsers, Action: permission.ActionUpdate}
			},
			InvalidCode: func(s internalflows.LockState, now time.Time) error {
				state := fromFlowLockState(s)
				err := &MFAVerificationError{
					Kind:              MFAInvalidCode,
					AttemptsRemaining: state.AttemptsRemaining(policy),
				}
				if state.Locked(now) {
					err.LockedUntil = state.LockedUntil
					err.RetryAfterMinutes = state.RetryAfterMinutes(now)
				}
				return err
			},
			LockedOut: func(s internalflows.LockState, now time.Time) error {
				state := fromFlowLockState(s)
				return &MFAVerificationError{
					Kind:              MFALockedOut,
					LockedUntil:       state.LockedUntil,
					RetryAfterMinutes: state.RetryAfterMinutes(now),
				}
			},
			CodeRequired: func() error {
				return &MFAVerificationError{Kind: MFACodeRequired}
			},
			Corrupt: func(userID, reason string) error {
				return &ConfigurationError{UserID: userID, Reason: reason}
			},
		},
	}
}

// patchMFA writes a lifecycle patch and clears any lockout state kept outside
// the user record.
func (e *Engine) patchMFA(ctx context.Context, userID string, patch UserPatch) error {
	if err := e.store.PatchUser(ctx, userID, patch); err != nil {
		return userWriteFailure(userID, err)
	}
	if patch.ResetLockout {
		if err := e.lockout.Reset(ctx, userID); err != nil {
			e.logger.WarnContext(ctx, "goAccess: lockout reset failed", "user_id", userID, "error", err)
		}
	}
	return nil
}

func (e *Engine) resetLockout(ctx context.Context, userID string) error {
	return e.patchMFA(ctx, userID, UserPatch{ResetLockout: true})
}

func (e *Engine) emitFlowAudit(ctx context.Context, rec internalflows.AuditRecord) {
	e.emitAudit(ctx, auditRecord{
		eventType:  rec.EventType,
		action:     rec.Action,
		actorView:  fromFlowActor(rec.Actor),
		entityType: "user",
		entityID:   rec.Subject.UserID,
		entityName: rec.Subject.Name,
		success:    rec.Success,
		err:        rec.Err,
		metadata:   rec.Metadata,
	})
}

func toFlowMFAUser(u *User) internalflows.MFAUser {
	return internalflows.MFAUser{
		UserID:         u.ID,
		Email:          u.Email,
		Name:           u.DisplayName(),
		OrganizationID: u.OrganizationID,
		Role:           string(u.Role),
		Enabled:        u.MFAEnabled,
		Secret:         u.MFASecret,
		BackupCodes:    len(u.MFABackupCodes),
		FailedAttempts: u.MFAFailedAttempts,
		LockedUntil:    u.MFALockedUntil,
	}
}

func fromFlowActor(u internalflows.MFAUser) auditActor {
	return auditActor{ID: u.UserID, Email: u.Email, Name: u.Name, OrganizationID: u.OrganizationID}
}

func toFlowLockState(s LockState) internalflows.LockState {
	return internalflows.LockState{
		FailedAttempts: s.FailedAttempts,
		LockedUntil:    s.LockedUntil,
		JustLocked:     s.JustLocked,
	}
}

func fromFlowLockState(s internalflows.LockState) LockState {
	return LockState{
		FailedAttempts: s.FailedAttempts,
		LockedUntil:    s.LockedUntil,
		JustLocked:     s.JustLocked,
	}
}
