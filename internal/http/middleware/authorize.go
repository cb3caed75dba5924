package middleware

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"go-tenant-rbac-service/internal/http/response"
	"go-tenant-rbac-service/internal/service"
)

// RequirePermission gates a route on an exact resource:action permission.
// The tenant context comes from the X-Tenant-ID header; without it the check
// runs against the user's aggregate permission set.
func RequirePermission(access service.AccessService, resource, action string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tenantID, ok := TenantIDFromRequest(r)
			if !ok {
				response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "invalid X-Tenant-ID header", nil)
				return
			}
			authorize(access, resource, action, tenantID, next, w, r)
		})
	}
}

// RequirePermissionForTenant gates a tenant-targeted route. The check's
// tenant context is the route's tenant path parameter, never the
// X-Tenant-ID header: a TENANT-scoped grant in one tenant must not
// authorize actions against another tenant named in the path.
func RequirePermissionForTenant(access service.AccessService, resource, action, param string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tid64, err := strconv.ParseUint(chi.URLParam(r, param), 10, 64)
			if err != nil || tid64 == 0 {
				response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "invalid tenant id", nil)
				return
			}
			tenantID := uint(tid64)
			authorize(access, resource, action, &tenantID, next, w, r)
		})
	}
}

func authorize(access service.AccessService, resource, action string, tenantID *uint, next http.Handler, w http.ResponseWriter, r *http.Request) {
	claims, ok := ClaimsFromContext(r.Context())
	if !ok {
		response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "missing auth context", nil)
		return
	}
	userID64, err := strconv.ParseUint(claims.Subject, 10, 64)
	if err != nil {
		response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "invalid subject", nil)
		return
	}

	allowed, err := access.HasPermission(r.Context(), uint(userID64), tenantID, resource, action)
	if err != nil {
		response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "permission check failed", nil)
		return
	}
	if !allowed {
		response.Error(w, r, http.StatusForbidden, "FORBIDDEN", "missing permission "+resource+":"+action, nil)
		return
	}
	next.ServeHTTP(w, r)
}
