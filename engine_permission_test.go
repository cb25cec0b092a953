package goAccess

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/MrEthical07/goAccess/permission"
)

func TestCheckPermissionFollowsMatrix(t *testing.T) {
	env := newTestEnv(t)
	admin := env.store.user(t, "u-admin")
	staff := env.store.user(t, "u-staff")

	if !env.engine.CheckPermission(&admin, permission.ResourceUsers, permission.ActionDelete) {
		t.Fatal("admin must be allowed to delete users")
	}
	if env.engine.CheckPermission(&staff, permission.ResourceUsers, permission.ActionView) {
		t.Fatal("staff must not view users")
	}
	if !env.engine.CheckPermission(&staff, permission.ResourceProperties, permission.ActionView) {
		t.Fatal("staff must view properties")
	}

	rogue := User{ID: "x", Role: "superuser"}
	if env.engine.CheckPermission(&rogue, permission.ResourceProperties, permission.ActionView) {
		t.Fatal("unknown role must be denied")
	}
	if env.engine.CheckPermission(&admin, "spaceships", permission.ActionView) {
		t.Fatal("unknown resource must be denied")
	}
	if env.engine.CheckPermission(nil, permission.ResourceProperties, permission.ActionView) {
		t.Fatal("nil user must be denied")
	}
}

func TestAuthorizeDenialAuditsAndCounts(t *testing.T) {
	env := newTestEnv(t)
	ctx := WithClientIP(context.Background(), "198.51.100.4")

	tc, err := env.engine.ResolveTenant(ctx, "u-staff")
	if err != nil {
		t.Fatalf("ResolveTenant failed: %v", err)
	}

	err = env.engine.Authorize(ctx, tc, permission.ResourcePayments, permission.ActionCreate)
	var authErr *AuthorizationError
	if !errors.As(err, &authErr) || authErr.Resource != permission.ResourcePayments || authErr.Action != permission.ActionCreate {
		t.Fatalf("expected AuthorizationError for payments/create, got %v", err)
	}
	if strings.Contains(err.Error(), string(permission.RoleAccountant)) {
		t.Fatalf("error must not name other roles: %v", err)
	}

	if err := env.engine.Authorize(ctx, tc, permission.ResourceProperties, permission.ActionView); err != nil {
		t.Fatalf("expected allow, got %v", err)
	}

	snap := env.engine.MetricsSnapshot()
	if snap.Counters[MetricPermissionDenied] != 1 || snap.Counters[MetricPermissionAllowed] != 1 {
		t.Fatalf("unexpected permission counters %v", snap.Counters)
	}

	events := env.drainAudit(t)
	ev, ok := findEvent(events, auditEventAccessDenied)
	if !ok {
		t.Fatalf("expected access_denied event, got %v", eventTypes(events))
	}
	if ev.UserID != "u-staff" || ev.OrganizationID != "o1" || ev.EntityType != "payments" || ev.Action != "create" {
		t.Fatalf("unexpected event %+v", ev)
	}
	if ev.IP != "198.51.100.4" || ev.Success || ev.Error != string(auditErrAccessDenied) {
		t.Fatalf("unexpected event outcome %+v", ev)
	}
}

func TestAuthorizeRejectsUnresolvedContext(t *testing.T) {
	env := newTestEnv(t)
	err := env.engine.Authorize(context.Background(), TenantContext{}, permission.ResourceProperties, permission.ActionView)
	if !errors.Is(err, ErrIdentity) {
		t.Fatalf("zero tenant context must fail identity, got %v", err)
	}
}

func TestRequirePermissionIdentityBeforeAuthorization(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	// A disabled admin would pass the matrix; identity must fail first.
	env.store.update("u-admin2", func(u *User) { u.IsActive = false })

	_, err := env.engine.RequirePermission(ctx, "u-admin2", permission.ResourceUsers, permission.ActionView)
	if !errors.Is(err, ErrAccountDisabled) {
		t.Fatalf("expected identity failure, got %v", err)
	}
	if errors.Is(err, ErrAccessDenied) {
		t.Fatal("identity failure must not be reported as authorization failure")
	}

	_, err = env.engine.RequirePermission(ctx, "u-staff", permission.ResourceUsers, permission.ActionView)
	if !errors.Is(err, ErrAccessDenied) {
		t.Fatalf("expected authorization failure, got %v", err)
	}

	tc, err := env.engine.RequirePermission(ctx, "u-admin", permission.ResourceUsers, permission.ActionView)
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if tc.OrganizationID() != "o1" {
		t.Fatalf("unexpected org %q", tc.OrganizationID())
	}
}

func TestCustomMatrixReplacesDefault(t *testing.T) {
	m := permission.MustNewMatrix(permission.Grants{
		permission.RoleStaff: {permission.ResourceUsers: {permission.ActionView}},
	})
	store := newFakeStore()
	store.putOrg(Organization{ID: "o1", IsActive: true})
	store.putUser(User{ID: "s", Role: permission.RoleStaff, IsActive: true, OrganizationID: "o1"})

	e, err := New().WithStore(store).WithPermissionMatrix(m).Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer e.Close()

	if _, err := e.RequirePermission(context.Background(), "s", permission.ResourceUsers, permission.ActionView); err != nil {
		t.Fatalf("custom grant must allow, got %v", err)
	}
	if _, err := e.RequirePermission(context.Background(), "s", permission.ResourceProperties, permission.ActionView); !errors.Is(err, ErrAccessDenied) {
		t.Fatalf("pairs outside the custom matrix must be denied, got %v", err)
	}
}
