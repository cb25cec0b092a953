package goAccess

import (
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/goAccess/permission"
)

var (
	// ErrIdentity matches every [IdentityError].
	ErrIdentity = errors.New("identity check failed")
	// ErrUserNotFound indicates the caller id does not reference a user record.
	ErrUserNotFound = errors.New("user not found")
	// ErrAccountDisabled indicates the user record is inactive.
	ErrAccountDisabled = errors.New("account disabled")
	// ErrNoOrganization indicates a user with no organization, a misconfigured account.
	ErrNoOrganization = errors.New("user has no organization")
	// ErrOrganizationNotFound indicates the user's organization record is missing.
	ErrOrganizationNotFound = errors.New("organization not found")
	// ErrOrganizationDeactivated indicates the user's organization is inactive.
	ErrOrganizationDeactivated = errors.New("organization deactivated")

	// ErrAccessDenied matches every [AuthorizationError].
	ErrAccessDenied = errors.New("access denied")

	// ErrMFASetup matches every [MFASetupError].
	ErrMFASetup = errors.New("mfa setup rejected")
	// ErrMFANotEligible indicates the account role may not enroll in MFA.
	ErrMFANotEligible = errors.New("mfa not available for this role")
	// ErrMFANotPending indicates confirmation without a pending secret.
	ErrMFANotPending = errors.New("mfa setup not initiated")
	// ErrMFAAlreadyEnabled indicates enrollment or confirmation on an enabled account.
	ErrMFAAlreadyEnabled = errors.New("mfa already enabled")
	// ErrMFANotEnabled indicates verification against an account without MFA.
	ErrMFANotEnabled = errors.New("mfa not enabled")

	// ErrMFAVerification matches every [MFAVerificationError].
	ErrMFAVerification = errors.New("mfa verification failed")
	// ErrInvalidMFACode indicates a code that matched neither TOTP nor a backup code.
	ErrInvalidMFACode = errors.New("invalid mfa code")
	// ErrMFALockedOut indicates verification was refused because of an active lockout.
	ErrMFALockedOut = errors.New("mfa locked out")
	// ErrMFACodeRequired indicates an operation that needs a TOTP code received none.
	ErrMFACodeRequired = errors.New("mfa code required")

	// ErrConfiguration matches every [ConfigurationError].
	ErrConfiguration = errors.New("invalid stored security state")

	// ErrRecordNotFound is returned by [Store] implementations for absent records.
	ErrRecordNotFound = errors.New("record not found")
	// ErrStoreUnavailable wraps store failures other than not-found.
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrMFAUnavailable indicates secret or code generation failed.
	ErrMFAUnavailable = errors.New("mfa backend unavailable")
	// ErrEngineNotReady indicates a nil or partially built engine.
	ErrEngineNotReady = errors.New("engine not initialized")
)

// IdentityErrorKind tags the step of identity validation that failed.
type IdentityErrorKind uint8

const (
	IdentityNotFound IdentityErrorKind = iota + 1
	IdentityAccountDisabled
	IdentityNoOrganization
	IdentityOrganizationNotFound
	IdentityOrganizationDeactivated
)

func (k IdentityErrorKind) sentinel() error {
	switch k {
	case IdentityNotFound:
		return ErrUserNotFound
	case IdentityAccountDisabled:
		return ErrAccountDisabled
	case IdentityNoOrganization:
		return ErrNoOrganization
	case IdentityOrganizationNotFound:
		return ErrOrganizationNotFound
	case IdentityOrganizationDeactivated:
		return ErrOrganizationDeactivated
	default:
		return ErrIdentity
	}
}

// String returns the kind name used in audit events.
func (k IdentityErrorKind) String() string {
	switch k {
	case IdentityNotFound:
		return "not_found"
	case IdentityAccountDisabled:
		return "account_disabled"
	case IdentityNoOrganization:
		return "no_organization"
	case IdentityOrganizationNotFound:
		return "organization_not_found"
	case IdentityOrganizationDeactivated:
		return "organization_deactivated"
	default:
		return "unknown"
	}
}

// IdentityError reports why a caller id did not resolve to a usable user.
type IdentityError struct {
	Kind   IdentityErrorKind
	UserID string
}

func (e *IdentityError) Error() string {
	return "identity: " + e.Kind.sentinel().Error()
}

// Is matches [ErrIdentity] and the sentinel of the error's kind.
func (e *IdentityError) Is(target error) bool {
	return target == ErrIdentity || target == e.Kind.sentinel()
}

// AuthorizationError reports a denied resource/action. It carries nothing about
// what other roles may do.
type AuthorizationError struct {
	Resource permission.Resource
	Action   permission.Action
}

func (e *AuthorizationError) Error() string {
	return fmt.Sprintf("access denied: cannot %s %s", e.Action, e.Resource)
}

// Is matches [ErrAccessDenied].
func (e *AuthorizationError) Is(target error) bool {
	return target == ErrAccessDenied
}

// MFASetupErrorKind tags why an enrollment-lifecycle request was rejected.
type MFASetupErrorKind uint8

const (
	MFASetupNotEligible MFASetupErrorKind = iota + 1
	MFASetupNotPending
	MFASetupAlreadyEnabled
	MFASetupNotEnabled
)

func (k MFASetupErrorKind) sentinel() error {
	switch k {
	case MFASetupNotEligible:
		return ErrMFANotEligible
	case MFASetupNotPending:
		return ErrMFANotPending
	case MFASetupAlreadyEnabled:
		return ErrMFAAlreadyEnabled
	case MFASetupNotEnabled:
		return ErrMFANotEnabled
	default:
		return ErrMFASetup
	}
}

// MFASetupError reports a rejected enrollment, confirmation or lifecycle request.
type MFASetupError struct {
	Kind   MFASetupErrorKind
	UserID string
}

func (e *MFASetupError) Error() string {
	return "mfa setup: " + e.Kind.sentinel().Error()
}

// Is matches [ErrMFASetup] and the sentinel of the error's kind.
func (e *MFASetupError) Is(target error) bool {
	return target == ErrMFASetup || target == e.Kind.sentinel()
}

// MFAVerificationErrorKind tags a failed code check.
type MFAVerificationErrorKind uint8

const (
	MFAInvalidCode MFAVerificationErrorKind = iota + 1
	MFALockedOut
	MFACodeRequired
)

func (k MFAVerificationErrorKind) sentinel() error {
	switch k {
	case MFAInvalidCode:
		return ErrInvalidMFACode
	case MFALockedOut:
		return ErrMFALockedOut
	case MFACodeRequired:
		return ErrMFACodeRequired
	default:
		return ErrMFAVerification
	}
}

// MFAVerificationError reports a failed verification with the data a UI needs to
// tell the user what to do next.
type MFAVerificationError struct {
	Kind MFAVerificationErrorKind
	// AttemptsRemaining is the number of failures left before lockout.
	AttemptsRemaining int
	// LockedUntil is set when the account is (now) locked.
	LockedUntil time.Time
	// RetryAfterMinutes is the remaining lockout rounded up to whole minutes.
	RetryAfterMinutes int
}

func (e *MFAVerificationError) Error() string {
	switch e.Kind {
	case MFALockedOut:
		return fmt.Sprintf("mfa: locked out, retry in %d minute(s)", e.RetryAfterMinutes)
	case MFAInvalidCode:
		if !e.LockedUntil.IsZero() {
			return fmt.Sprintf("mfa: invalid code, account locked for %d minute(s)", e.RetryAfterMinutes)
		}
		return fmt.Sprintf("mfa: invalid code, %d attempt(s) remaining", e.AttemptsRemaining)
	default:
		return "mfa: " + e.Kind.sentinel().Error()
	}
}

// Is matches [ErrMFAVerification] and the sentinel of the error's kind.
func (e *MFAVerificationError) Is(target error) bool {
	return target == ErrMFAVerification || target == e.Kind.sentinel()
}

// ConfigurationError reports stored security state that cannot be valid, for
// example MFA enabled without a secret. It indicates corruption, never user error.
type ConfigurationError struct {
	UserID string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return "configuration: user " + e.UserID + ": " + e.Reason
}

// Is matches [ErrConfiguration].
func (e *ConfigurationError) Is(target error) bool {
	return target == ErrConfiguration
}

// ErrorClass groups errors by the remediation they imply.
type ErrorClass uint8

const (
	ClassNone ErrorClass = iota
	ClassIdentity
	ClassAuthorization
	ClassMFASetup
	ClassMFAVerification
	ClassConfiguration
	ClassInternal
)

// Classify maps err onto its [ErrorClass].
func Classify(err error) ErrorClass {
	switch {
	case err == nil:
		return ClassNone
	case errors.Is(err, ErrIdentity):
		return ClassIdentity
	case errors.Is(err, ErrAccessDenied):
		return ClassAuthorization
	case errors.Is(err, ErrMFASetup):
		return ClassMFASetup
	case errors.Is(err, ErrMFAVerification):
		return ClassMFAVerification
	case errors.Is(err, ErrConfiguration):
		return ClassConfiguration
	default:
		return ClassInternal
	}
}

// PublicMessage renders err for end users. Identity and authorization failures
// stay generic; MFA failures are actionable because the user is expected to retry.
func PublicMessage(err error) string {
	switch Classify(err) {
	case ClassNone:
		return ""
	case ClassIdentity:
		var idErr *IdentityError
		if errors.As(err, &idErr) && (idErr.Kind == IdentityNoOrganization || idErr.Kind == IdentityOrganizationNotFound) {
			return "Access denied. Your account is not fully configured; contact your administrator."
		}
		if errors.Is(err, ErrAccountDisabled) || errors.Is(err, ErrOrganizationDeactivated) {
			return "Access denied. Your account is disabled; contact your administrator."
		}
		return "Access denied. Please sign in again."
	case ClassAuthorization:
		var authErr *AuthorizationError
		if errors.As(err, &authErr) {
			return fmt.Sprintf("Access denied. You don't have permission to %s %s.", authErr.Action, authErr.Resource)
		}
		return "Access denied."
	case ClassMFASetup:
		switch {
		case errors.Is(err, ErrMFANotEligible):
			return "Two-factor authentication is only available for administrator accounts."
		case errors.Is(err, ErrMFANotPending):
			return "Two-factor setup has not been started."
		case errors.Is(err, ErrMFAAlreadyEnabled):
			return "Two-factor authentication is already enabled."
		default:
			return "Two-factor authentication is not enabled for this account."
		}
	case ClassMFAVerification:
		var vErr *MFAVerificationError
		if !errors.As(err, &vErr) {
			return "Invalid verification code."
		}
		switch vErr.Kind {
		case MFALockedOut:
			return fmt.Sprintf("Too many failed attempts. Try again in %d minute(s).", vErr.RetryAfterMinutes)
		case MFACodeRequired:
			return "Enter the code from your authenticator app."
		default:
			if !vErr.LockedUntil.IsZero() {
				return fmt.Sprintf("Invalid verification code. Too many failed attempts; try again in %d minute(s).", vErr.RetryAfterMinutes)
			}
			return fmt.Sprintf("Invalid verification code. %d attempt(s) remaining.", vErr.AttemptsRemaining)
		}
	default:
		return "Something went wrong. Please try again later."
	}
}
