package goAccess

import "context"

type clientIPContextKey struct{}
type tenantContextKey struct{}

// WithClientIP attaches the caller's IP address to ctx. The engine copies it
// into audit events.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPContextKey{}, ip)
}

// WithTenantContext attaches a resolved [TenantContext] to ctx so handlers
// further down the chain can scope their queries without re-resolving.
// Invalid contexts are not attached.
func WithTenantContext(ctx context.Context, tc TenantContext) context.Context {
	if !tc.Valid() {
		return ctx
	}
	return context.WithValue(ctx, tenantContextKey{}, tc)
}

// TenantContextFromContext returns the [TenantContext] attached by
// [WithTenantContext].
func TenantContextFromContext(ctx context.Context) (TenantContext, bool) {
	if ctx == nil {
		return TenantContext{}, false
	}
	tc, ok := ctx.Value(tenantContextKey{}).(TenantContext)
	if !ok || !tc.Valid() {
		return TenantContext{}, false
	}
	return tc, true
}

func clientIPFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}

	ip, _ := ctx.Value(clientIPContextKey{}).(string)
	return ip
}
