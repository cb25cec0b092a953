package flows

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"
)

var errFlowNotConfigured = errors.New("mfa flow not configured")

// MFAUser is the flow view of a user record.
type MFAUser struct {
	UserID         string
	Email          string
	Name           string
	OrganizationID string
	Role           string
	Enabled        bool
	Secret         string
	BackupCodes    int
	FailedAttempts int
	LockedUntil    time.Time
}

// LockState mirrors the lockout counter of a user.
type LockState struct {
	FailedAttempts int
	LockedUntil    time.Time
	JustLocked     bool
}

// Locked reports whether now falls inside the lock window.
func (s LockState) Locked(now time.Time) bool {
	return !s.LockedUntil.IsZero() && now.Before(s.LockedUntil)
}

// Enrollment is the one-time output of RunBeginEnrollment.
type Enrollment struct {
	Secret          string
	ProvisioningURI string
	QRCodeDataURL   string
	BackupCodes     []string
}

// Verification is the outcome of a successful RunVerifyAtLogin.
type Verification struct {
	Method               string
	RemainingBackupCodes int
}

const (
	MethodTOTP       = "totp"
	MethodBackupCode = "backup_code"
)

// AuditRecord is handed to EmitAudit. Actor performed the operation on Subject.
type AuditRecord struct {
	EventType string
	Action    string
	Actor     MFAUser
	Subject   MFAUser
	Success   bool
	Err       error
	Metadata  map[string]string
}

type MFAMetrics struct {
	EnrollmentStarted      int
	Enabled                int
	TOTPSuccess            int
	BackupCodeUsed         int
	VerifyFailure          int
	Lockout                int
	LockedOutRejected      int
	Disabled               int
	BackupCodesRegenerated int
	VerifyLatency          int
}

type MFAEvents struct {
	EnrollmentStarted      string
	Enabled                string
	TOTPSuccess            string
	BackupCodeUsed         string
	VerificationFailed     string
	Lockout                string
	Disabled               string
	BackupCodesRegenerated string
}

// MFAErrors builds the typed errors returned to callers.
type MFAErrors struct {
	EngineNotReady error
	Unavailable    func(error) error
	NotEligible    func(userID string) error
	NotPending     func(userID string) error
	AlreadyEnabled func(userID string) error
	NotEnabled     func(userID string) error
	Forbidden      func() error
	InvalidCode    func(state LockState, now time.Time) error
	LockedOut      func(state LockState, now time.Time) error
	CodeRequired   func() error
	Corrupt        func(userID, reason string) error
}

// MFADeps wires the MFA flows to storage, crypto and observability owned by
// the engine.
type MFADeps struct {
	BackupCodeCount  int
	BackupCodeLength int
	AdminRole        string

	Now      func() time.Time
	Eligible func(role string) bool

	// LoadUser returns a user that passed identity validation.
	LoadUser func(ctx context.Context, userID string) (MFAUser, error)
	// LoadSubject returns any existing user; identity is not validated.
	LoadSubject func(ctx context.Context, userID string) (MFAUser, error)

	GenerateSecret func(user MFAUser) (secret, uri string, err error)
	RenderQR       func(uri string) (string, error)
	// VerifyTOTP returns an error only when the stored secret is unusable.
	VerifyTOTP func(user MFAUser, code string, now time.Time) (bool, error)

	// BeginEnrollment stores a pending secret and hashes and clears lockout state.
	BeginEnrollment func(ctx context.Context, userID, secret string, hashes []string) error
	// Enable marks MFA enabled and clears lockout state.
	Enable func(ctx context.Context, userID string) error
	// Disable clears the secret, the hashes and lockout state.
	Disable            func(ctx context.Context, userID string) error
	ReplaceBackupCodes func(ctx context.Context, userID string, hashes []string) error
	ConsumeBackupCode  func(ctx context.Context, userID, hash string) (int, bool, error)

	LockState     func(ctx context.Context, user MFAUser) (LockState, error)
	RecordFailure func(ctx context.Context, userID string, now time.Time) (LockState, error)
	ResetLockout  func(ctx context.Context, userID string) error

	RandomIndex func(int) (int, error)

	MetricInc func(int)
	Observe   func(int, time.Duration)
	EmitAudit func(context.Context, AuditRecord)
	Warn      func(msg string, args ...any)

	Metrics MFAMetrics
	Events  MFAEvents
	Errors  MFAErrors
}

// RunBeginEnrollment moves a user to the pending state with a fresh secret and
// backup code set. Calling it again while pending replaces both.
func RunBeginEnrollment(ctx context.Context, userID string, deps MFADeps) (*Enrollment, error) {
	normalizeMFADeps(&deps)
	if deps.LoadUser == nil || deps.GenerateSecret == nil || deps.BeginEnrollment == nil {
		return nil, deps.Errors.EngineNotReady
	}

	user, err := deps.LoadUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !deps.Eligible(user.Role) {
		return nil, deps.Errors.NotEligible(user.UserID)
	}
	if user.Enabled {
		return nil, deps.Errors.AlreadyEnabled(user.UserID)
	}

	secret, uri, err := deps.GenerateSecret(user)
	if err != nil {
		return nil, deps.Errors.Unavailable(err)
	}
	qr, err := deps.RenderQR(uri)
	if err != nil {
		return nil, deps.Errors.Unavailable(err)
	}
	codes, hashes, err := GenerateBackupCodes(user.UserID, deps.BackupCodeCount, deps.BackupCodeLength, deps.RandomIndex)
	if err != nil {
		return nil, deps.Errors.Unavailable(err)
	}

	if err := deps.BeginEnrollment(ctx, user.UserID, secret, hashes); err != nil {
		return nil, err
	}

	deps.MetricInc(deps.Metrics.EnrollmentStarted)
	deps.EmitAudit(ctx, AuditRecord{
		EventType: deps.Events.EnrollmentStarted,
		Action:    "update",
		Actor:     user,
		Subject:   user,
		Success:   true,
		Metadata:  map[string]string{"backup_codes": strconv.Itoa(len(codes))},
	})

	return &Enrollment{
		Secret:          secret,
		ProvisioningURI: uri,
		QRCodeDataURL:   qr,
		BackupCodes:     codes,
	}, nil
}

// RunConfirmEnrollment moves a pending user to enabled once they prove
// possession of the secret with a TOTP code.
func RunConfirmEnrollment(ctx context.Context, userID, code string, deps MFADeps) error {
	normalizeMFADeps(&deps)
	if deps.LoadUser == nil || deps.VerifyTOTP == nil || deps.Enable == nil {
		return deps.Errors.EngineNotReady
	}

	user, err := deps.LoadUser(ctx, userID)
	if err != nil {
		return err
	}
	if user.Enabled {
		return deps.Errors.AlreadyEnabled(user.UserID)
	}
	if user.Secret == "" {
		return deps.Errors.NotPending(user.UserID)
	}
	if !deps.Eligible(user.Role) {
		return deps.Errors.NotEligible(user.UserID)
	}

	if err := verifyPossession(ctx, user, user, code, deps); err != nil {
		return err
	}
	if err := deps.Enable(ctx, user.UserID); err != nil {
		return err
	}

	deps.MetricInc(deps.Metrics.Enabled)
	deps.EmitAudit(ctx, AuditRecord{
		EventType: deps.Events.Enabled,
		Action:    "update",
		Actor:     user,
		Subject:   user,
		Success:   true,
	})
	return nil
}

// RunVerifyAtLogin checks a login-time code. The lockout gate runs first, then
// TOTP, then the backup codes. Only when both factors reject the code does
// failure accounting run.
func RunVerifyAtLogin(ctx context.Context, userID, code string, deps MFADeps) (*Verification, error) {
	normalizeMFADeps(&deps)
	if deps.LoadUser == nil || deps.VerifyTOTP == nil || deps.ConsumeBackupCode == nil {
		return nil, deps.Errors.EngineNotReady
	}

	started := time.Now()
	defer func() {
		deps.Observe(deps.Metrics.VerifyLatency, time.Since(started))
	}()

	user, err := deps.LoadUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !user.Enabled {
		return nil, deps.Errors.NotEnabled(user.UserID)
	}
	if user.Secret == "" {
		return nil, deps.Errors.Corrupt(user.UserID, "mfa enabled without a secret")
	}
	now := deps.Now()
	if err := lockGate(ctx, user, now, deps); err != nil {
		return nil, err
	}
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, deps.Errors.CodeRequired()
	}

	ok, err := deps.VerifyTOTP(user, code, now)
	if err != nil {
		return nil, err
	}
	if ok {
		resetAfterSuccess(ctx, user.UserID, deps)
		deps.MetricInc(deps.Metrics.TOTPSuccess)
		deps.EmitAudit(ctx, AuditRecord{
			EventType: deps.Events.TOTPSuccess,
			Action:    "login",
			Actor:     user,
			Subject:   user,
			Success:   true,
			Metadata:  map[string]string{"method": MethodTOTP},
		})
		return &Verification{Method: MethodTOTP}, nil
	}

	if canonical := CanonicalizeBackupCode(code); len(canonical) == deps.BackupCodeLength {
		remaining, consumed, err := deps.ConsumeBackupCode(ctx, user.UserID, BackupCodeHash(user.UserID, canonical))
		if err != nil {
			return nil, err
		}
		if consumed {
			resetAfterSuccess(ctx, user.UserID, deps)
			deps.MetricInc(deps.Metrics.BackupCodeUsed)
			deps.EmitAudit(ctx, AuditRecord{
				EventType: deps.Events.BackupCodeUsed,
				Action:    "login",
				Actor:     user,
				Subject:   user,
				Success:   true,
				Metadata: map[string]string{
					"method":    MethodBackupCode,
					"remaining": strconv.Itoa(remaining),
				},
			})
			return &Verification{Method: MethodBackupCode, RemainingBackupCodes: remaining}, nil
		}
	}

	return nil, recordFailure(ctx, user, user, now, deps)
}

// DisableRequest mirrors the engine's disable input.
type DisableRequest struct {
	UserID       string
	ActingUserID string
	TOTPCode     string
}

// RunDisable turns MFA off. The owner must prove possession when MFA is
// enabled; an administrator of the same organization may disable it for
// another user without a code, but a supplied code is still verified.
func RunDisable(ctx context.Context, req DisableRequest, deps MFADeps) error {
	normalizeMFADeps(&deps)
	if deps.LoadUser == nil || deps.LoadSubject == nil || deps.VerifyTOTP == nil || deps.Disable == nil {
		return deps.Errors.EngineNotReady
	}

	actingID := req.ActingUserID
	if actingID == "" {
		actingID = req.UserID
	}
	actor, err := deps.LoadUser(ctx, actingID)
	if err != nil {
		return err
	}

	self := req.UserID == "" || req.UserID == actor.UserID
	target := actor
	if !self {
		if actor.Role != deps.AdminRole {
			return deps.Errors.Forbidden()
		}
		target, err = deps.LoadSubject(ctx, req.UserID)
		if err != nil {
			return err
		}
		if target.OrganizationID == "" || target.OrganizationID != actor.OrganizationID {
			return deps.Errors.Forbidden()
		}
	}

	if !target.Enabled && target.Secret == "" {
		return deps.Errors.NotEnabled(target.UserID)
	}
	if target.Enabled && target.Secret == "" {
		return deps.Errors.Corrupt(target.UserID, "mfa enabled without a secret")
	}

	code := strings.TrimSpace(req.TOTPCode)
	switch {
	case code != "":
		if err := verifyPossession(ctx, actor, target, code, deps); err != nil {
			return err
		}
	case self && target.Enabled:
		if err := lockGate(ctx, target, deps.Now(), deps); err != nil {
			return err
		}
		return deps.Errors.CodeRequired()
	}

	if err := deps.Disable(ctx, target.UserID); err != nil {
		return err
	}

	mode := "self"
	if !self {
		mode = "admin"
	}
	deps.MetricInc(deps.Metrics.Disabled)
	deps.EmitAudit(ctx, AuditRecord{
		EventType: deps.Events.Disabled,
		Action:    "update",
		Actor:     actor,
		Subject:   target,
		Success:   true,
		Metadata: map[string]string{
			"mode":          mode,
			"code_verified": strconv.FormatBool(code != ""),
		},
	})
	return nil
}

// RunRegenerateBackupCodes replaces every backup code after a TOTP check.
// Backup codes are not accepted as proof here.
func RunRegenerateBackupCodes(ctx context.Context, userID, code string, deps MFADeps) ([]string, error) {
	normalizeMFADeps(&deps)
	if deps.LoadUser == nil || deps.VerifyTOTP == nil || deps.ReplaceBackupCodes == nil {
		return nil, deps.Errors.EngineNotReady
	}

	user, err := deps.LoadUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !user.Enabled {
		return nil, deps.Errors.NotEnabled(user.UserID)
	}
	if user.Secret == "" {
		return nil, deps.Errors.Corrupt(user.UserID, "mfa enabled without a secret")
	}
	if err := verifyPossession(ctx, user, user, code, deps); err != nil {
		return nil, err
	}

	codes, hashes, err := GenerateBackupCodes(user.UserID, deps.BackupCodeCount, deps.BackupCodeLength, deps.RandomIndex)
	if err != nil {
		return nil, deps.Errors.Unavailable(err)
	}
	if err := deps.ReplaceBackupCodes(ctx, user.UserID, hashes); err != nil {
		return nil, err
	}

	deps.MetricInc(deps.Metrics.BackupCodesRegenerated)
	deps.EmitAudit(ctx, AuditRecord{
		EventType: deps.Events.BackupCodesRegenerated,
		Action:    "update",
		Actor:     user,
		Subject:   user,
		Success:   true,
		Metadata:  map[string]string{"backup_codes": strconv.Itoa(len(codes))},
	})
	return codes, nil
}

// verifyPossession is the TOTP-only check behind confirmation, disable and
// regeneration. It shares the lockout gate and failure accounting with login.
func verifyPossession(ctx context.Context, actor, subject MFAUser, code string, deps MFADeps) error {
	now := deps.Now()
	if err := lockGate(ctx, subject, now, deps); err != nil {
		return err
	}
	code = strings.TrimSpace(code)
	if code == "" {
		return deps.Errors.CodeRequired()
	}

	ok, err := deps.VerifyTOTP(subject, code, now)
	if err != nil {
		return err
	}
	if !ok {
		return recordFailure(ctx, actor, subject, now, deps)
	}

	resetAfterSuccess(ctx, subject.UserID, deps)
	return nil
}

// lockGate runs first at every verification entry point and never touches
// the counter.
func lockGate(ctx context.Context, user MFAUser, now time.Time, deps MFADeps) error {
	state, err := deps.LockState(ctx, user)
	if err != nil {
		return err
	}
	if state.Locked(now) {
		deps.MetricInc(deps.Metrics.LockedOutRejected)
		return deps.Errors.LockedOut(state, now)
	}
	return nil
}

func recordFailure(ctx context.Context, actor, subject MFAUser, now time.Time, deps MFADeps) error {
	state, err := deps.RecordFailure(ctx, subject.UserID, now)
	if err != nil {
		return err
	}
	// A concurrent attempt locked the account between the gate and this write.
	if state.Locked(now) && !state.JustLocked {
		deps.MetricInc(deps.Metrics.LockedOutRejected)
		return deps.Errors.LockedOut(state, now)
	}

	invalid := deps.Errors.InvalidCode(state, now)
	deps.MetricInc(deps.Metrics.VerifyFailure)
	deps.EmitAudit(ctx, AuditRecord{
		EventType: deps.Events.VerificationFailed,
		Action:    "login",
		Actor:     actor,
		Subject:   subject,
		Success:   false,
		Err:       invalid,
		Metadata:  map[string]string{"attempts": strconv.Itoa(state.FailedAttempts)},
	})

	if state.JustLocked {
		deps.MetricInc(deps.Metrics.Lockout)
		deps.EmitAudit(ctx, AuditRecord{
			EventType: deps.Events.Lockout,
			Action:    "update",
			Actor:     actor,
			Subject:   subject,
			Success:   true,
			Metadata: map[string]string{
				"attempts":     strconv.Itoa(state.FailedAttempts),
				"locked_until": state.LockedUntil.UTC().Format(time.RFC3339),
			},
		})
	}
	return invalid
}

// resetAfterSuccess clears the counter unconditionally. The state read by the
// gate may predate a failure recorded by a concurrent attempt.
func resetAfterSuccess(ctx context.Context, userID string, deps MFADeps) {
	if deps.ResetLockout == nil {
		return
	}
	if err := deps.ResetLockout(ctx, userID); err != nil {
		deps.Warn("goAccess: lockout reset failed", "user_id", userID, "error", err)
	}
}

func normalizeMFADeps(deps *MFADeps) {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Eligible == nil {
		deps.Eligible = func(string) bool { return false }
	}
	if deps.RenderQR == nil {
		deps.RenderQR = func(string) (string, error) { return "", nil }
	}
	if deps.LockState == nil {
		deps.LockState = func(_ context.Context, u MFAUser) (LockState, error) {
			return LockState{FailedAttempts: u.FailedAttempts, LockedUntil: u.LockedUntil}, nil
		}
	}
	if deps.RecordFailure == nil {
		deps.RecordFailure = func(context.Context, string, time.Time) (LockState, error) {
			return LockState{}, deps.Errors.EngineNotReady
		}
	}
	if deps.RandomIndex == nil {
		deps.RandomIndex = cryptoRandomIndex
	}
	if deps.MetricInc == nil {
		deps.MetricInc = func(int) {}
	}
	if deps.Observe == nil {
		deps.Observe = func(int, time.Duration) {}
	}
	if deps.EmitAudit == nil {
		deps.EmitAudit = func(context.Context, AuditRecord) {}
	}
	if deps.Warn == nil {
		deps.Warn = func(string, ...any) {}
	}
	e := &deps.Errors
	if e.EngineNotReady == nil {
		e.EngineNotReady = errFlowNotConfigured
	}
	if e.Unavailable == nil {
		e.Unavailable = func(err error) error { return err }
	}
	fallback := func(string) error { return e.EngineNotReady }
	if e.NotEligible == nil {
		e.NotEligible = fallback
	}
	if e.NotPending == nil {
		e.NotPending = fallback
	}
	if e.AlreadyEnabled == nil {
		e.AlreadyEnabled = fallback
	}
	if e.NotEnabled == nil {
		e.NotEnabled = fallback
	}
	if e.Forbidden == nil {
		e.Forbidden = func() error { return e.EngineNotReady }
	}
	if e.InvalidCode == nil {
		e.InvalidCode = func(LockState, time.Time) error { return e.EngineNotReady }
	}
	if e.LockedOut == nil {
		e.LockedOut = func(LockState, time.Time) error { return e.EngineNotReady }
	}
	if e.CodeRequired == nil {
		e.CodeRequired = func() error { return e.EngineNotReady }
	}
	if e.Corrupt == nil {
		e.Corrupt = func(string, string) error { return e.EngineNotReady }
	}
}
