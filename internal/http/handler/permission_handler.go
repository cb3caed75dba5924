package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"go-tenant-rbac-service/internal/domain"
	"go-tenant-rbac-service/internal/http/response"
	"go-tenant-rbac-service/internal/observability"
	"go-tenant-rbac-service/internal/repository"
	"go-tenant-rbac-service/internal/service"
)

type PermissionHandler struct {
	permissionSvc service.PermissionService
}

func NewPermissionHandler(permissionSvc service.PermissionService) *PermissionHandler {
	return &PermissionHandler{permissionSvc: permissionSvc}
}

type permissionRequest struct {
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
	Description string `json:"description"`
	Resource    string `json:"resource"`
	Action      string `json:"action"`
	Scope       string `json:"scope"`
	TenantID    *uint  `json:"tenant_id"`
	IsActive    *bool  `json:"is_active"`
}

func (h *PermissionHandler) Create(w http.ResponseWriter, r *http.Request) {
	actorID, _, err := authUserIDAndClaims(r)
	if err != nil {
		response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "invalid user", nil)
		return
	}
	var req permissionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "invalid request body", nil)
		return
	}

	perm, err := h.permissionSvc.Create(service.CreatePermissionInput{
		Name:        req.Name,
		DisplayName: req.DisplayName,
		Description: req.Description,
		Resource:    req.Resource,
		Action:      req.Action,
		Scope:       domain.Scope(strings.ToUpper(strings.TrimSpace(req.Scope))),
		TenantID:    req.TenantID,
	})
	if err != nil {
		writeServiceError(w, r, err, "failed to create permission")
		return
	}

	observability.EmitAudit(r, observability.AuditInput{
		EventName:   "permission.create",
		ActorUserID: observability.ActorUserID(actorID),
		TargetType:  "permission",
		TargetID:    strconv.FormatUint(uint64(perm.ID), 10),
		Action:      "create",
		Outcome:     "success",
		Reason:      "permission_created",
	}, "name", perm.Name, "scope", string(perm.Scope))
	response.JSON(w, r, http.StatusCreated, perm)
}

func (h *PermissionHandler) Update(w http.ResponseWriter, r *http.Request) {
	actorID, _, err := authUserIDAndClaims(r)
	if err != nil {
		response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "invalid user", nil)
		return
	}
	id, err := urlParamID(r, "permission_id")
	if err != nil {
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "invalid permission id", nil)
		return
	}
	var req permissionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "invalid request body", nil)
		return
	}

	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}
	perm, err := h.permissionSvc.Update(id, service.UpdatePermissionInput{
		DisplayName: req.DisplayName,
		Description: req.Description,
		IsActive:    active,
	})
	if err != nil {
		writeServiceError(w, r, err, "failed to update permission")
		return
	}

	observability.EmitAudit(r, observability.AuditInput{
		EventName:   "permission.update",
		ActorUserID: observability.ActorUserID(actorID),
		TargetType:  "permission",
		TargetID:    strconv.FormatUint(uint64(perm.ID), 10),
		Action:      "update",
		Outcome:     "success",
		Reason:      "permission_updated",
	})
	response.JSON(w, r, http.StatusOK, perm)
}

func (h *PermissionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	actorID, _, err := authUserIDAndClaims(r)
	if err != nil {
		response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "invalid user", nil)
		return
	}
	id, err := urlParamID(r, "permission_id")
	if err != nil {
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "invalid permission id", nil)
		return
	}

	if err := h.permissionSvc.Delete(id); err != nil {
		writeServiceError(w, r, err, "failed to delete permission")
		return
	}

	observability.EmitAudit(r, observability.AuditInput{
		EventName:   "permission.delete",
		ActorUserID: observability.ActorUserID(actorID),
		TargetType:  "permission",
		TargetID:    strconv.FormatUint(uint64(id), 10),
		Action:      "delete",
		Outcome:     "success",
		Reason:      "permission_deleted",
	})
	response.JSON(w, r, http.StatusOK, map[string]any{"permission_id": id, "deleted": true})
}

func (h *PermissionHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := urlParamID(r, "permission_id")
	if err != nil {
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "invalid permission id", nil)
		return
	}
	perm, err := h.permissionSvc.GetByID(id)
	if err != nil {
		writeServiceError(w, r, err, "failed to load permission")
		return
	}
	response.JSON(w, r, http.StatusOK, perm)
}

func (h *PermissionHandler) List(w http.ResponseWriter, r *http.Request) {
	q := repository.PermissionListQuery{
		PageRequest: pageRequestFromQuery(r),
		SortBy:      r.URL.Query().Get("sort_by"),
		SortOrder:   r.URL.Query().Get("sort_order"),
		Resource:    r.URL.Query().Get("resource"),
		Scope:       domain.Scope(strings.ToUpper(r.URL.Query().Get("scope"))),
	}
	if raw := r.URL.Query().Get("tenant_id"); raw != "" {
		id64, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "invalid tenant_id filter", nil)
			return
		}
		id := uint(id64)
		q.TenantID = &id
	}

	page, err := h.permissionSvc.ListPaged(q)
	if err != nil {
		response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "failed to list permissions", nil)
		return
	}
	response.JSON(w, r, http.StatusOK, page)
}

func pageRequestFromQuery(r *http.Request) repository.PageRequest {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	size, _ := strconv.Atoi(q.Get("page_size"))
	return repository.PageRequest{Page: page, PageSize: size}
}
