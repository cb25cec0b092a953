package middleware

import (
	"net"
	"net/http"

	goAccess "github.com/MrEthical07/goAccess"
	"github.com/MrEthical07/goAccess/permission"
)

// IdentityFunc extracts the already-authenticated user id from a request.
// It returns false when the request carries no identity.
type IdentityFunc func(r *http.Request) (string, bool)

// HeaderIdentity reads the user id from a trusted header set by an upstream
// session layer.
func HeaderIdentity(name string) IdentityFunc {
	return func(r *http.Request) (string, bool) {
		v := r.Header.Get(name)
		return v, v != ""
	}
}

// Guard resolves the caller's tenant and checks resource/action before next
// runs. On success the [goAccess.TenantContext] is attached to the request
// context; read it back with [goAccess.TenantContextFromContext].
func Guard(engine *goAccess.Engine, identify IdentityFunc, resource permission.Resource, action permission.Action) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil || identify == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			userID, ok := identify(r)
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			ctx := goAccess.WithClientIP(r.Context(), clientIP(r))
			tc, err := engine.RequirePermission(ctx, userID, resource, action)
			if err != nil {
				http.Error(w, goAccess.PublicMessage(err), statusFor(err))
				return
			}

			next.ServeHTTP(w, r.WithContext(goAccess.WithTenantContext(ctx, tc)))
		})
	}
}

func statusFor(err error) int {
	switch goAccess.Classify(err) {
	case goAccess.ClassIdentity:
		return http.StatusUnauthorized
	case goAccess.ClassAuthorization:
		return http.StatusForbidden
	default:
		return http.StatusServiceUnavailable
	}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
