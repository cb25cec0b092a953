package goAccess

import (
	"context"

	"github.com/MrEthical07/goAccess/permission"
)

// CheckPermission is the pure matrix lookup for user's role. It performs no
// identity checks; pair it with [Engine.ResolveTenant] or use
// [Engine.RequirePermission].
func (e *Engine) CheckPermission(user *User, resource permission.Resource, action permission.Action) bool {
	if e == nil || user == nil {
		return false
	}
	return e.matrix.Allowed(user.Role, resource, action)
}

// Authorize checks a resolved tenant context against the matrix. Denials
// return *AuthorizationError and emit an access_denied audit event.
func (e *Engine) Authorize(ctx context.Context, tc TenantContext, resource permission.Resource, action permission.Action) error {
	if !e.ready() {
		return ErrEngineNotReady
	}
	if !tc.Valid() {
		return &IdentityError{Kind: IdentityNotFound}
	}

	if e.matrix.Allowed(tc.user.Role, resource, action) {
		e.metricInc(MetricPermissionAllowed)
		return nil
	}

	denied := &AuthorizationError{Resource: resource, Action: action}
	e.metricInc(MetricPermissionDenied)
	e.emitAudit(ctx, auditRecord{
		eventType:  auditEventAccessDenied,
		action:     string(action),
		actor:      tc.user,
		entityType: string(resource),
		err:        denied,
		metadata: map[string]string{
			"role": string(tc.user.Role),
		},
	})
	return denied
}

// RequirePermission resolves the caller's tenant and then checks the matrix.
// Identity failures are returned as such and are never reported as
// authorization failures.
func (e *Engine) RequirePermission(ctx context.Context, userID string, resource permission.Resource, action permission.Action) (TenantContext, error) {
	tc, err := e.ResolveTenant(ctx, userID)
	if err != nil {
		return TenantContext{}, err
	}
	if err := e.Authorize(ctx, tc, resource, action); err != nil {
		return TenantContext{}, err
	}
	return tc, nil
}
