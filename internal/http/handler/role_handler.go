package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"go-tenant-rbac-service/internal/domain"
	"go-tenant-rbac-service/internal/http/response"
	"go-tenant-rbac-service/internal/observability"
	"go-tenant-rbac-service/internal/service"
)

type RoleHandler struct {
	roleSvc service.RoleService
}

func NewRoleHandler(roleSvc service.RoleService) *RoleHandler {
	return &RoleHandler{roleSvc: roleSvc}
}

type roleRequest struct {
	Name          string `json:"name"`
	DisplayName   string `json:"display_name"`
	Description   string `json:"description"`
	Scope         string `json:"scope"`
	TenantID      *uint  `json:"tenant_id"`
	PermissionIDs []uint `json:"permission_ids"`
	IsActive      *bool  `json:"is_active"`
}

func (h *RoleHandler) Create(w http.ResponseWriter, r *http.Request) {
	actorID, _, err := authUserIDAndClaims(r)
	if err != nil {
		response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "invalid user", nil)
		return
	}
	var req roleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "invalid request body", nil)
		return
	}

	role, err := h.roleSvc.Create(service.CreateRoleInput{
		Name:          req.Name,
		DisplayName:   req.DisplayName,
		Description:   req.Description,
		Scope:         domain.Scope(strings.ToUpper(strings.TrimSpace(req.Scope))),
		TenantID:      req.TenantID,
		PermissionIDs: req.PermissionIDs,
	})
	if err != nil {
		writeServiceError(w, r, err, "failed to create role")
		return
	}

	observability.EmitAudit(r, observability.AuditInput{
		EventName:   "role.create",
		ActorUserID: observability.ActorUserID(actorID),
		TargetType:  "role",
		TargetID:    strconv.FormatUint(uint64(role.ID), 10),
		Action:      "create",
		Outcome:     "success",
		Reason:      "role_created",
	}, "name", role.Name, "scope", string(role.Scope))
	response.JSON(w, r, http.StatusCreated, role)
}

func (h *RoleHandler) Update(w http.ResponseWriter, r *http.Request) {
	actorID, _, err := authUserIDAndClaims(r)
	if err != nil {
		response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "invalid user", nil)
		return
	}
	id, err := urlParamID(r, "role_id")
	if err != nil {
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "invalid role id", nil)
		return
	}
	var req roleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "invalid request body", nil)
		return
	}

	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}
	role, err := h.roleSvc.Update(id, service.UpdateRoleInput{
		Name:        req.Name,
		DisplayName: req.DisplayName,
		Description: req.Description,
		IsActive:    active,
	})
	if err != nil {
		writeServiceError(w, r, err, "failed to update role")
		return
	}

	observability.EmitAudit(r, observability.AuditInput{
		EventName:   "role.update",
		ActorUserID: observability.ActorUserID(actorID),
		TargetType:  "role",
		TargetID:    strconv.FormatUint(uint64(role.ID), 10),
		Action:      "update",
		Outcome:     "success",
		Reason:      "role_updated",
	})
	response.JSON(w, r, http.StatusOK, role)
}

func (h *RoleHandler) Delete(w http.ResponseWriter, r *http.Request) {
	actorID, _, err := authUserIDAndClaims(r)
	if err != nil {
		response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "invalid user", nil)
		return
	}
	id, err := urlParamID(r, "role_id")
	if err != nil {
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "invalid role id", nil)
		return
	}

	if err := h.roleSvc.Delete(id); err != nil {
		writeServiceError(w, r, err, "failed to delete role")
		return
	}

	observability.EmitAudit(r, observability.AuditInput{
		EventName:   "role.delete",
		ActorUserID: observability.ActorUserID(actorID),
		TargetType:  "role",
		TargetID:    strconv.FormatUint(uint64(id), 10),
		Action:      "delete",
		Outcome:     "success",
		Reason:      "role_deleted",
	})
	response.JSON(w, r, http.StatusOK, map[string]any{"role_id": id, "deleted": true})
}

func (h *RoleHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := urlParamID(r, "role_id")
	if err != nil {
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "invalid role id", nil)
		return
	}
	role, err := h.roleSvc.GetByID(id)
	if err != nil {
		writeServiceError(w, r, err, "failed to load role")
		return
	}
	response.JSON(w, r, http.StatusOK, role)
}

func (h *RoleHandler) List(w http.ResponseWriter, r *http.Request) {
	roles, err := h.roleSvc.List()
	if err != nil {
		response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "failed to list roles", nil)
		return
	}
	response.JSON(w, r, http.StatusOK, roles)
}

// SetPermissions replaces the role's grant set with exactly the submitted
// permission ids. An empty list clears every grant.
func (h *RoleHandler) SetPermissions(w http.ResponseWriter, r *http.Request) {
	actorID, _, err := authUserIDAndClaims(r)
	if err != nil {
		response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "invalid user", nil)
		return
	}
	id, err := urlParamID(r, "role_id")
	if err != nil {
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "invalid role id", nil)
		return
	}
	var req struct {
		PermissionIDs []uint `json:"permission_ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "invalid request body", nil)
		return
	}
	if req.PermissionIDs == nil {
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "permission_ids is required", nil)
		return
	}

	if err := h.roleSvc.AssignPermissions(id, req.PermissionIDs, actorID); err != nil {
		writeServiceError(w, r, err, "failed to assign permissions")
		return
	}

	observability.EmitAudit(r, observability.AuditInput{
		EventName:   "role.permissions.replace",
		ActorUserID: observability.ActorUserID(actorID),
		TargetType:  "role",
		TargetID:    strconv.FormatUint(uint64(id), 10),
		Action:      "replace_permissions",
		Outcome:     "success",
		Reason:      "grant_set_replaced",
	}, "permission_count", len(req.PermissionIDs))
	response.JSON(w, r, http.StatusOK, map[string]any{
		"role_id":        id,
		"permission_ids": req.PermissionIDs,
	})
}

func (h *RoleHandler) Permissions(w http.ResponseWriter, r *http.Request) {
	id, err := urlParamID(r, "role_id")
	if err != nil {
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "invalid role id", nil)
		return
	}
	perms, err := h.roleSvc.GetRolePermissions(id)
	if err != nil {
		writeServiceError(w, r, err, "failed to load role permissions")
		return
	}
	response.JSON(w, r, http.StatusOK, perms)
}
