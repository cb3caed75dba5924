package handler

import (
	"net/http"
	"strings"

	"go-tenant-rbac-service/internal/http/middleware"
	"go-tenant-rbac-service/internal/http/response"
	"go-tenant-rbac-service/internal/service"
)

// AccessHandler exposes permission resolution and checks over HTTP. The
// tenant context comes from the X-Tenant-ID header; without it resolution
// aggregates across every membership of the user.
type AccessHandler struct {
	accessSvc service.AccessService
}

func NewAccessHandler(accessSvc service.AccessService) *AccessHandler {
	return &AccessHandler{accessSvc: accessSvc}
}

func (h *AccessHandler) MyPermissions(w http.ResponseWriter, r *http.Request) {
	userID, _, err := authUserIDAndClaims(r)
	if err != nil {
		response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "invalid user", nil)
		return
	}
	tenantID, ok := middleware.TenantIDFromRequest(r)
	if !ok {
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "invalid X-Tenant-ID header", nil)
		return
	}

	perms, err := h.accessSvc.ResolvePermissions(r.Context(), userID, tenantID)
	if err != nil {
		writeServiceError(w, r, err, "failed to resolve permissions")
		return
	}
	payload := map[string]any{"user_id": userID, "permissions": perms}
	if tenantID != nil {
		payload["tenant_id"] = *tenantID
	}
	response.JSON(w, r, http.StatusOK, payload)
}

func (h *AccessHandler) Check(w http.ResponseWriter, r *http.Request) {
	userID, _, err := authUserIDAndClaims(r)
	if err != nil {
		response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "invalid user", nil)
		return
	}
	tenantID, ok := middleware.TenantIDFromRequest(r)
	if !ok {
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "invalid X-Tenant-ID header", nil)
		return
	}

	resource := strings.TrimSpace(r.URL.Query().Get("resource"))
	action := strings.TrimSpace(r.URL.Query().Get("action"))
	if resource == "" || action == "" {
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "resource and action are required", nil)
		return
	}

	allowed, err := h.accessSvc.HasPermission(r.Context(), userID, tenantID, resource, action)
	if err != nil {
		writeServiceError(w, r, err, "permission check failed")
		return
	}
	response.JSON(w, r, http.StatusOK, map[string]any{
		"user_id":    userID,
		"permission": resource + ":" + action,
		"allowed":    allowed,
	})
}
