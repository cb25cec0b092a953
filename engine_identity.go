package goAccess

import (
	"context"
	"errors"
	"fmt"
)

// ValidateIdentity turns a caller-supplied user id into a user record that is
// active and bound to an active organization. Checks run in order and the
// first failure wins:
//
//  1. the user exists
//  2. the user is active
//  3. the user has an organization
//  4. the organization exists
//  5. the organization is active
//
// Nothing is cached: every call reads the store, so a disablement is visible
// on the very next request. Store failures other than not-found are returned
// wrapped in [ErrStoreUnavailable], never as identity errors.
func (e *Engine) ValidateIdentity(ctx context.Context, userID string) (*User, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	user, _, err := e.validateIdentity(ctx, userID)
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (e *Engine) validateIdentity(ctx context.Context, userID string) (*User, *Organization, error) {
	user, err := e.loadUser(ctx, userID)
	if err != nil {
		return nil, nil, e.identityFailure(err)
	}
	if !user.IsActive {
		return nil, nil, e.identityFailure(&IdentityError{Kind: IdentityAccountDisabled, UserID: user.ID})
	}
	if user.OrganizationID == "" {
		return nil, nil, e.identityFailure(&IdentityError{Kind: IdentityNoOrganization, UserID: user.ID})
	}

	org, err := e.store.GetOrganization(ctx, user.OrganizationID)
	if err != nil {
		if errors.Is(err, ErrRecordNotFound) {
			return nil, nil, e.identityFailure(&IdentityError{Kind: IdentityOrganizationNotFound, UserID: user.ID})
		}
		return nil, nil, storeFailure(err)
	}
	if org == nil {
		return nil, nil, e.identityFailure(&IdentityError{Kind: IdentityOrganizationNotFound, UserID: user.ID})
	}
	if !org.IsActive {
		return nil, nil, e.identityFailure(&IdentityError{Kind: IdentityOrganizationDeactivated, UserID: user.ID})
	}

	return user, org, nil
}

// ResolveTenant validates the caller and returns the tenant every downstream
// query must be scoped to. The organization id comes from the record just
// read, never from caller input.
func (e *Engine) ResolveTenant(ctx context.Context, userID string) (TenantContext, error) {
	if !e.ready() {
		return TenantContext{}, ErrEngineNotReady
	}

	user, _, err := e.validateIdentity(ctx, userID)
	if err != nil {
		return TenantContext{}, err
	}
	if user.OrganizationID == "" {
		return TenantContext{}, e.identityFailure(&IdentityError{Kind: IdentityNoOrganization, UserID: user.ID})
	}

	e.metricInc(MetricTenantResolved)
	return TenantContext{organizationID: user.OrganizationID, user: user}, nil
}

// loadUser reads a user without validating it. Absent users become
// IdentityNotFound.
func (e *Engine) loadUser(ctx context.Context, userID string) (*User, error) {
	if userID == "" {
		return nil, &IdentityError{Kind: IdentityNotFound}
	}
	user, err := e.store.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrRecordNotFound) {
			return nil, &IdentityError{Kind: IdentityNotFound, UserID: userID}
		}
		return nil, storeFailure(err)
	}
	if user == nil {
		return nil, &IdentityError{Kind: IdentityNotFound, UserID: userID}
	}
	return user, nil
}

func (e *Engine) identityFailure(err error) error {
	var idErr *IdentityError
	if errors.As(err, &idErr) {
		e.metricInc(MetricIdentityFailure)
	}
	return err
}

// storeFailure wraps a backend error in ErrStoreUnavailable unless it is
// already classified.
func storeFailure(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrStoreUnavailable) || Classify(err) != ClassInternal {
		return err
	}
	return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
}

// userWriteFailure maps errors of writes against a user that was read moments
// earlier. A vanished record is reported as not found.
func userWriteFailure(userID string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrRecordNotFound) {
		return &IdentityError{Kind: IdentityNotFound, UserID: userID}
	}
	return storeFailure(err)
}
