// Package middleware adapts [goAccess.Engine.RequirePermission] to net/http.
//
// [Guard] takes the caller id from an [IdentityFunc], resolves the tenant,
// checks one resource/action pair and injects the resulting
// [goAccess.TenantContext] into the request context. Identity failures map to
// 401, authorization failures to 403 and store outages to 503, each with
// [goAccess.PublicMessage] as the body.
//
// # What this package must NOT do
//
//   - Authenticate callers. Session handling happens upstream.
//   - Make authorization decisions itself.
package middleware
