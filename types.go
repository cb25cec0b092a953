package goAccess

import (
	"io"
	"time"

	internalaudit "github.com/MrEthical07/goAccess/internal/audit"
	"github.com/MrEthical07/goAccess/permission"
)

// User is the account record the access-control core reads and the MFA
// engine mutates through [Store].
type User struct {
	ID             string
	Email          string
	FirstName      string
	LastName       string
	Role           permission.Role
	IsActive       bool
	OrganizationID string

	MFAEnabled bool
	// MFASecret is the base32 TOTP secret. Empty when MFA is disabled.
	MFASecret string
	// MFABackupCodes holds hex SHA-256 hashes of the unused backup codes.
	MFABackupCodes    []string
	MFAFailedAttempts int
	// MFALockedUntil is zero when no lockout was ever recorded.
	MFALockedUntil time.Time
}

// DisplayName joins first and last name, falling back to the email.
func (u *User) DisplayName() string {
	if u == nil {
		return ""
	}
	switch {
	case u.FirstName != "" && u.LastName != "":
		return u.FirstName + " " + u.LastName
	case u.FirstName != "":
		return u.FirstName
	case u.LastName != "":
		return u.LastName
	default:
		return u.Email
	}
}

// MFAPending reports a generated but unconfirmed secret.
func (u *User) MFAPending() bool {
	return u != nil && !u.MFAEnabled && u.MFASecret != ""
}

func (u *User) lockState() LockState {
	if u == nil {
		return LockState{}
	}
	return LockState{FailedAttempts: u.MFAFailedAttempts, LockedUntil: u.MFALockedUntil}
}

// Organization is the tenant boundary.
type Organization struct {
	ID       string
	Name     string
	IsActive bool
}

// TenantContext is a user that passed identity validation together with the
// organization it is bound to. The zero value is not valid; only
// [Engine.ResolveTenant] and [Engine.RequirePermission] produce usable values.
type TenantContext struct {
	organizationID string
	user           *User
}

// OrganizationID returns the tenant every downstream query must scope to.
func (tc TenantContext) OrganizationID() string { return tc.organizationID }

// User returns a copy of the validated user record.
func (tc TenantContext) User() User {
	if tc.user == nil {
		return User{}
	}
	return cloneUser(*tc.user)
}

// UserID returns the validated user's id.
func (tc TenantContext) UserID() string {
	if tc.user == nil {
		return ""
	}
	return tc.user.ID
}

// Role returns the validated user's role.
func (tc TenantContext) Role() permission.Role {
	if tc.user == nil {
		return ""
	}
	return tc.user.Role
}

// Valid reports whether tc was produced by the resolver.
func (tc TenantContext) Valid() bool {
	return tc.user != nil && tc.organizationID != ""
}

// MFAEnrollment is returned once by [Engine.BeginMFAEnrollment]. The
// plaintext backup codes are never retrievable again.
type MFAEnrollment struct {
	// Secret is the base32 secret for manual entry.
	Secret string
	// ProvisioningURI is the otpauth:// URI encoded in the QR image.
	ProvisioningURI string
	// QRCodeDataURL is a data:image/png;base64 rendering of ProvisioningURI.
	QRCodeDataURL string
	BackupCodes   []string
}

// MFAMethod names the factor that satisfied a verification.
type MFAMethod string

const (
	MFAMethodTOTP       MFAMethod = "totp"
	MFAMethodBackupCode MFAMethod = "backup_code"
)

// MFAVerification is the successful outcome of [Engine.VerifyMFAAtLogin].
type MFAVerification struct {
	Success bool
	Method  MFAMethod
	// RemainingBackupCodes is set only when Method is MFAMethodBackupCode.
	RemainingBackupCodes int
}

// MFAStatus is the read-only view returned by [Engine.MFAStatus]. It never
// carries the secret or code hashes.
type MFAStatus struct {
	Enabled              bool
	Pending              bool
	BackupCodesRemaining int
	Locked               bool
	LockedUntil          time.Time
}

// DisableMFARequest is the input for [Engine.DisableMFA]. ActingUserID must be
// the account owner or an administrator of the same organization.
type DisableMFARequest struct {
	UserID       string
	ActingUserID string
	TOTPCode     string
}

// AuditEvent is a structured audit record emitted by the engine.
type AuditEvent = internalaudit.Event

// AuditSink receives [AuditEvent] values from the engine's audit dispatcher.
type AuditSink = internalaudit.Sink

// NoOpSink discards all events.
type NoOpSink = internalaudit.NoOpSink

// ChannelSink is a buffered channel-based [AuditSink].
type ChannelSink = internalaudit.ChannelSink

// JSONWriterSink writes one JSON-encoded event per line.
type JSONWriterSink = internalaudit.JSONWriterSink

// NewChannelSink creates a [ChannelSink] with the given buffer capacity.
func NewChannelSink(buffer int) *ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}

// NewJSONWriterSink creates a [JSONWriterSink] that writes to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return internalaudit.NewJSONWriterSink(w)
}

func cloneUser(u User) User {
	out := u
	if u.MFABackupCodes != nil {
		out.MFABackupCodes = append([]string(nil), u.MFABackupCodes...)
	}
	return out
}
