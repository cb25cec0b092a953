package goAccess

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

const (
	auditEventAccessDenied           = "access_denied"
	auditEventMFAEnrollmentStarted   = "mfa_enrollment_started"
	auditEventMFAEnabled             = "mfa_enabled"
	auditEventMFATOTPSuccess         = "mfa_totp_success"
	auditEventBackupCodeUsed         = "backup_code_used"
	auditEventMFAVerificationFailed  = "mfa_verification_failed"
	auditEventMFALockout             = "mfa_lockout"
	auditEventMFADisabled            = "mfa_disabled"
	auditEventBackupCodesRegenerated = "backup_codes_regenerated"
)

// AuditErrorCode is the stable error label written into [AuditEvent.Error].
type AuditErrorCode string

const (
	auditErrUserNotFound        AuditErrorCode = "user_not_found"
	auditErrAccountDisabled     AuditErrorCode = "account_disabled"
	auditErrNoOrganization      AuditErrorCode = "no_organization"
	auditErrOrganizationMissing AuditErrorCode = "organization_not_found"
	auditErrOrganizationOff     AuditErrorCode = "organization_deactivated"
	auditErrAccessDenied        AuditErrorCode = "access_denied"
	auditErrMFASetup            AuditErrorCode = "mfa_setup_rejected"
	auditErrInvalidCode         AuditErrorCode = "invalid_code"
	auditErrLockedOut           AuditErrorCode = "locked_out"
	auditErrCodeRequired        AuditErrorCode = "code_required"
	auditErrConfiguration       AuditErrorCode = "configuration"
	auditErrUnavailable         AuditErrorCode = "backend_unavailable"
	auditErrInternal            AuditErrorCode = "internal_error"
)

type auditActor struct {
	ID             string
	Email          string
	Name           string
	OrganizationID string
}

func actorOf(u *User) auditActor {
	if u == nil {
		return auditActor{}
	}
	return auditActor{ID: u.ID, Email: u.Email, Name: u.DisplayName(), OrganizationID: u.OrganizationID}
}

type auditRecord struct {
	eventType  string
	action     string
	actor      *User
	actorView  auditActor
	entityType string
	entityID   string
	entityName string
	success    bool
	err        error
	metadata   map[string]string
}

func (e *Engine) emitAudit(ctx context.Context, rec auditRecord) {
	if e == nil || e.audit == nil {
		return
	}

	actor := rec.actorView
	if rec.actor != nil {
		actor = actorOf(rec.actor)
	}

	event := AuditEvent{
		ID:             uuid.NewString(),
		Timestamp:      e.clock().UTC(),
		EventType:      rec.eventType,
		Action:         rec.action,
		UserID:         actor.ID,
		UserEmail:      actor.Email,
		UserName:       actor.Name,
		OrganizationID: actor.OrganizationID,
		EntityType:     rec.entityType,
		EntityID:       rec.entityID,
		EntityName:     rec.entityName,
		IP:             clientIPFromContext(ctx),
		Success:        rec.success,
		Metadata:       rec.metadata,
	}
	if code := auditErrorCode(rec.err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrUserNotFound):
		return auditErrUserNotFound
	case errors.Is(err, ErrAccountDisabled):
		return auditErrAccountDisabled
	case errors.Is(err, ErrNoOrganization):
		return auditErrNoOrganization
	case errors.Is(err, ErrOrganizationNotFound):
		return auditErrOrganizationMissing
	case errors.Is(err, ErrOrganizationDeactivated):
		return auditErrOrganizationOff
	case errors.Is(err, ErrAccessDenied):
		return auditErrAccessDenied
	case errors.Is(err, ErrMFASetup):
		return auditErrMFASetup
	case errors.Is(err, ErrMFALockedOut):
		return auditErrLockedOut
	case errors.Is(err, ErrInvalidMFACode):
		return auditErrInvalidCode
	case errors.Is(err, ErrMFACodeRequired):
		return auditErrCodeRequired
	case errors.Is(err, ErrConfiguration):
		return auditErrConfiguration
	case errors.Is(err, ErrStoreUnavailable),
		errors.Is(err, ErrMFAUnavailable):
		return auditErrUnavailable
	default:
		return auditErrInternal
	}
}
