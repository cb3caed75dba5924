package middleware

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"go-tenant-rbac-service/internal/http/response"
	"go-tenant-rbac-service/internal/security"
)

type claimsContextKey struct{}

// Authenticator validates the access token from the auth cookie or the
// Authorization header and stores its claims on the request context.
func Authenticator(jwtMgr *security.JWTManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := security.GetCookie(r, "access_token")
			if raw == "" {
				raw = bearerToken(r)
			}
			if raw == "" {
				response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "missing access token", nil)
				return
			}
			claims, err := jwtMgr.ParseAccessToken(raw)
			if err != nil {
				response.Error(w, r, http.StatusUnauthorized, "INVALID_OR_EXPIRED_TOKEN", "invalid or expired access token", nil)
				return
			}
			ctx := context.WithValue(r.Context(), claimsContextKey{}, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func ClaimsFromContext(ctx context.Context) (*security.Claims, bool) {
	claims, ok := ctx.Value(claimsContextKey{}).(*security.Claims)
	return claims, ok
}

func bearerToken(r *http.Request) string {
	auth := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(auth) >= len("bearer ")+1 && strings.EqualFold(auth[:len("bearer ")], "bearer ") {
		return strings.TrimSpace(auth[len("bearer "):])
	}
	return ""
}

// TenantIDFromRequest reads the optional X-Tenant-ID header. A missing header
// selects aggregate resolution; a malformed one is reported to the caller.
func TenantIDFromRequest(r *http.Request) (*uint, bool) {
	raw := strings.TrimSpace(r.Header.Get("X-Tenant-ID"))
	if raw == "" {
		return nil, true
	}
	id64, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id64 == 0 {
		return nil, false
	}
	id := uint(id64)
	return &id, true
}
