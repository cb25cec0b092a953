package flows

import (
	"context"
	"errors"
	"testing"
	"time"
)

var (
	errTestInvalid  = errors.New("invalid")
	errTestLocked   = errors.New("locked")
	errTestRequired = errors.New("required")
)

type flowFixture struct {
	user      MFAUser
	state     LockState
	totpOK    bool
	consumed  bool
	totpCalls int
	consumes  int
	failures  int
	resets    int
	events    []string
}

func (f *flowFixture) deps(now time.Time) MFADeps {
	return MFADeps{
		BackupCodeCount:  10,
		BackupCodeLength: 8,
		AdminRole:        "admin",
		Now:              func() time.Time { return now },
		Eligible:         func(role string) bool { return role == "admin" },
		LoadUser: func(context.Context, string) (MFAUser, error) {
			return f.user, nil
		},
		LoadSubject: func(context.Context, string) (MFAUser, error) {
			return f.user, nil
		},
		VerifyTOTP: func(MFAUser, string, time.Time) (bool, error) {
			f.totpCalls++
			return f.totpOK, nil
		},
		ConsumeBackupCode: func(context.Context, string, string) (int, bool, error) {
			f.consumes++
			if f.consumed {
				return 9, true, nil
			}
			return 0, false, nil
		},
		LockState: func(context.Context, MFAUser) (LockState, error) {
			return f.state, nil
		},
		RecordFailure: func(_ context.Context, _ string, now time.Time) (LockState, error) {
			f.failures++
			f.state.FailedAttempts++
			f.state.JustLocked = false
			if f.state.FailedAttempts >= 5 {
				f.state.LockedUntil = now.Add(15 * time.Minute)
				f.state.JustLocked = true
			}
			return f.state, nil
		},
		ResetLockout: func(context.Context, string) error {
			f.resets++
			return nil
		},
		EmitAudit: func(_ context.Context, rec AuditRecord) {
			f.events = append(f.events, rec.EventType)
		},
		Events: MFAEvents{
			TOTPSuccess:        "totp",
			BackupCodeUsed:     "backup",
			VerificationFailed: "failed",
			Lockout:            "lockout",
		},
		Errors: MFAErrors{
			InvalidCode:  func(LockState, time.Time) error { return errTestInvalid },
			LockedOut:    func(LockState, time.Time) error { return errTestLocked },
			CodeRequired: func() error { return errTestRequired },
		},
	}
}

func enabledUser() MFAUser {
	return MFAUser{UserID: "u1", OrganizationID: "o1", Role: "admin", Enabled: true, Secret: "SECRET"}
}

func TestRunVerifyAtLoginLockGateShortCircuits(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	f := &flowFixture{user: enabledUser(), totpOK: true}
	f.state = LockState{FailedAttempts: 5, LockedUntil: now.Add(time.Minute)}

	if _, err := RunVerifyAtLogin(context.Background(), "u1", "123456", f.deps(now)); !errors.Is(err, errTestLocked) {
		t.Fatalf("expected locked error, got %v", err)
	}
	if f.totpCalls != 0 || f.consumes != 0 || f.failures != 0 {
		t.Fatalf("locked account must not reach verification: totp=%d consume=%d failures=%d", f.totpCalls, f.consumes, f.failures)
	}
}

func TestRunVerifyAtLoginBackupCodeFallback(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	f := &flowFixture{user: enabledUser(), consumed: true, state: LockState{FailedAttempts: 2}}

	v, err := RunVerifyAtLogin(context.Background(), "u1", "abcd-efgh", f.deps(now))
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if v.Method != MethodBackupCode || v.RemainingBackupCodes != 9 {
		t.Fatalf("unexpected verification %+v", v)
	}
	if f.totpCalls != 1 || f.consumes != 1 {
		t.Fatalf("expected TOTP then backup code, got totp=%d consume=%d", f.totpCalls, f.consumes)
	}
	if f.resets != 1 {
		t.Fatalf("expected lockout reset after success, got %d", f.resets)
	}
}

func TestRunVerifyAtLoginSkipsBackupForWrongLength(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	f := &flowFixture{user: enabledUser(), consumed: true}

	if _, err := RunVerifyAtLogin(context.Background(), "u1", "654321", f.deps(now)); !errors.Is(err, errTestInvalid) {
		t.Fatalf("expected invalid code, got %v", err)
	}
	if f.consumes != 0 {
		t.Fatal("six digit code must not be tried as a backup code")
	}
	if f.failures != 1 {
		t.Fatalf("expected one recorded failure, got %d", f.failures)
	}
}

func TestRunVerifyAtLoginFifthFailureEmitsLockout(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	f := &flowFixture{user: enabledUser(), state: LockState{FailedAttempts: 4}}

	if _, err := RunVerifyAtLogin(context.Background(), "u1", "000000", f.deps(now)); !errors.Is(err, errTestInvalid) {
		t.Fatalf("fifth failure must report invalid code, got %v", err)
	}
	if len(f.events) != 2 || f.events[0] != "failed" || f.events[1] != "lockout" {
		t.Fatalf("unexpected events %v", f.events)
	}

	if _, err := RunVerifyAtLogin(context.Background(), "u1", "000000", f.deps(now)); !errors.Is(err, errTestLocked) {
		t.Fatalf("sixth attempt must be locked out, got %v", err)
	}
	if f.failures != 1 {
		t.Fatalf("locked attempt must not count, failures=%d", f.failures)
	}
}

func TestRunVerifyAtLoginEmptyCodeNotCounted(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	f := &flowFixture{user: enabledUser()}

	if _, err := RunVerifyAtLogin(context.Background(), "u1", "   ", f.deps(now)); !errors.Is(err, errTestRequired) {
		t.Fatalf("expected code required, got %v", err)
	}
	if f.failures != 0 {
		t.Fatal("empty code must not count as a failure")
	}
}

func TestRunRegenerateRejectsBackupCodeAsProof(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	f := &flowFixture{user: enabledUser(), consumed: true}
	deps := f.deps(now)
	deps.ReplaceBackupCodes = func(context.Context, string, []string) error {
		t.Fatal("codes must not be replaced")
		return nil
	}

	if _, err := RunRegenerateBackupCodes(context.Background(), "u1", "ABCD-EFGH", deps); !errors.Is(err, errTestInvalid) {
		t.Fatalf("expected invalid code, got %v", err)
	}
	if f.consumes != 0 {
		t.Fatal("regeneration must never consume a backup code")
	}
}

func TestRunFlowsWithoutDepsReportNotConfigured(t *testing.T) {
	if _, err := RunVerifyAtLogin(context.Background(), "u1", "123456", MFADeps{}); !errors.Is(err, errFlowNotConfigured) {
		t.Fatalf("expected errFlowNotConfigured, got %v", err)
	}
	if err := RunDisable(context.Background(), DisableRequest{UserID: "u1"}, MFADeps{}); !errors.Is(err, errFlowNotConfigured) {
		t.Fatalf("expected errFlowNotConfigured, got %v", err)
	}
}

func TestLockGateRunsBeforeCodeRequired(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	locked := LockState{FailedAttempts: 5, LockedUntil: now.Add(10 * time.Minute)}
	ctx := context.Background()

	f := &flowFixture{user: enabledUser(), state: locked}
	if _, err := RunVerifyAtLogin(ctx, "u1", "", f.deps(now)); !errors.Is(err, errTestLocked) {
		t.Fatalf("login: expected locked error, got %v", err)
	}
	if _, err := RunRegenerateBackupCodes(ctx, "u1", "  ", withReplace(f.deps(now))); !errors.Is(err, errTestLocked) {
		t.Fatalf("regenerate: expected locked error, got %v", err)
	}

	deps := f.deps(now)
	deps.Disable = func(context.Context, string) error {
		t.Fatal("locked owner must not disable")
		return nil
	}
	if err := RunDisable(ctx, DisableRequest{UserID: "u1"}, deps); !errors.Is(err, errTestLocked) {
		t.Fatalf("disable: expected locked error, got %v", err)
	}

	pending := &flowFixture{user: MFAUser{UserID: "u1", OrganizationID: "o1", Role: "admin", Secret: "SECRET"}, state: locked}
	deps = pending.deps(now)
	deps.Enable = func(context.Context, string) error {
		t.Fatal("locked confirmation must not enable")
		return nil
	}
	if err := RunConfirmEnrollment(ctx, "u1", "", deps); !errors.Is(err, errTestLocked) {
		t.Fatalf("confirm: expected locked error, got %v", err)
	}

	if f.failures != 0 || pending.failures != 0 || f.totpCalls != 0 {
		t.Fatalf("locked attempts must not reach verification: failures=%d totp=%d", f.failures+pending.failures, f.totpCalls)
	}
}

func TestSuccessResetsEvenWhenGateSawCleanState(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	f := &flowFixture{user: enabledUser(), totpOK: true}

	if _, err := RunVerifyAtLogin(context.Background(), "u1", "123456", f.deps(now)); err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if f.resets != 1 {
		t.Fatalf("a concurrent failure may follow the gate read; success must always reset, got %d", f.resets)
	}

	f.resets = 0
	if _, err := RunRegenerateBackupCodes(context.Background(), "u1", "123456", withReplace(f.deps(now))); err != nil {
		t.Fatalf("expected regeneration, got %v", err)
	}
	if f.resets != 1 {
		t.Fatalf("possession check must reset on success, got %d", f.resets)
	}
}

func withReplace(deps MFADeps) MFADeps {
	deps.ReplaceBackupCodes = func(context.Context, string, []string) error { return nil }
	return deps
}
