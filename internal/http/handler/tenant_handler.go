package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"go-tenant-rbac-service/internal/http/response"
	"go-tenant-rbac-service/internal/observability"
	"go-tenant-rbac-service/internal/repository"
	"go-tenant-rbac-service/internal/service"
)

type TenantHandler struct {
	tenantSvc service.TenantService
}

func NewTenantHandler(tenantSvc service.TenantService) *TenantHandler {
	return &TenantHandler{tenantSvc: tenantSvc}
}

type tenantRequest struct {
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
	Description string `json:"description"`
	IsActive    *bool  `json:"is_active"`
}

func (h *TenantHandler) Create(w http.ResponseWriter, r *http.Request) {
	actorID, _, err := authUserIDAndClaims(r)
	if err != nil {
		response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "invalid user", nil)
		return
	}
	var req tenantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "invalid request body", nil)
		return
	}

	tenant, err := h.tenantSvc.Create(service.CreateTenantInput{
		Name:        req.Name,
		DisplayName: req.DisplayName,
		Description: req.Description,
	})
	if err != nil {
		writeServiceError(w, r, err, "failed to create tenant")
		return
	}

	observability.EmitAudit(r, observability.AuditInput{
		EventName:   "tenant.create",
		ActorUserID: observability.ActorUserID(actorID),
		TargetType:  "tenant",
		TargetID:    strconv.FormatUint(uint64(tenant.ID), 10),
		Action:      "create",
		Outcome:     "success",
		Reason:      "tenant_created",
	}, "name", tenant.Name)
	response.JSON(w, r, http.StatusCreated, tenant)
}

func (h *TenantHandler) Update(w http.ResponseWriter, r *http.Request) {
	actorID, _, err := authUserIDAndClaims(r)
	if err != nil {
		response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "invalid user", nil)
		return
	}
	id, err := urlParamID(r, "tenant_id")
	if err != nil {
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "invalid tenant id", nil)
		return
	}
	var req tenantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "invalid request body", nil)
		return
	}

	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}
	tenant, err := h.tenantSvc.Update(id, service.UpdateTenantInput{
		DisplayName: req.DisplayName,
		Description: req.Description,
		IsActive:    active,
	})
	if err != nil {
		writeServiceError(w, r, err, "failed to update tenant")
		return
	}

	observability.EmitAudit(r, observability.AuditInput{
		EventName:   "tenant.update",
		ActorUserID: observability.ActorUserID(actorID),
		TargetType:  "tenant",
		TargetID:    strconv.FormatUint(uint64(tenant.ID), 10),
		Action:      "update",
		Outcome:     "success",
		Reason:      "tenant_updated",
	})
	response.JSON(w, r, http.StatusOK, tenant)
}

func (h *TenantHandler) Delete(w http.ResponseWriter, r *http.Request) {
	actorID, _, err := authUserIDAndClaims(r)
	if err != nil {
		response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "invalid user", nil)
		return
	}
	id, err := urlParamID(r, "tenant_id")
	if err != nil {
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "invalid tenant id", nil)
		return
	}

	if err := h.tenantSvc.Delete(id); err != nil {
		writeServiceError(w, r, err, "failed to delete tenant")
		return
	}

	observability.EmitAudit(r, observability.AuditInput{
		EventName:   "tenant.delete",
		ActorUserID: observability.ActorUserID(actorID),
		TargetType:  "tenant",
		TargetID:    strconv.FormatUint(uint64(id), 10),
		Action:      "delete",
		Outcome:     "success",
		Reason:      "tenant_deleted",
	})
	response.JSON(w, r, http.StatusOK, map[string]any{"tenant_id": id, "deleted": true})
}

func (h *TenantHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := urlParamID(r, "tenant_id")
	if err != nil {
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "invalid tenant id", nil)
		return
	}
	tenant, err := h.tenantSvc.GetByID(id)
	if err != nil {
		writeServiceError(w, r, err, "failed to load tenant")
		return
	}
	response.JSON(w, r, http.StatusOK, tenant)
}

func (h *TenantHandler) List(w http.ResponseWriter, r *http.Request) {
	q := repository.TenantListQuery{
		PageRequest: pageRequestFromQuery(r),
		SortBy:      r.URL.Query().Get("sort_by"),
		SortOrder:   r.URL.Query().Get("sort_order"),
		Name:        r.URL.Query().Get("name"),
	}
	page, err := h.tenantSvc.ListPaged(q)
	if err != nil {
		response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "failed to list tenants", nil)
		return
	}
	response.JSON(w, r, http.StatusOK, page)
}

// AssignRoles binds tenant-scoped roles to the tenant so memberships there
// can use them.
func (h *TenantHandler) AssignRoles(w http.ResponseWriter, r *http.Request) {
	actorID, _, err := authUserIDAndClaims(r)
	if err != nil {
		response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "invalid user", nil)
		return
	}
	id, err := urlParamID(r, "tenant_id")
	if err != nil {
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "invalid tenant id", nil)
		return
	}
	var req struct {
		RoleIDs []uint `json:"role_ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "invalid request body", nil)
		return
	}

	if err := h.tenantSvc.AssignRoles(id, req.RoleIDs); err != nil {
		writeServiceError(w, r, err, "failed to assign roles")
		return
	}

	observability.EmitAudit(r, observability.AuditInput{
		EventName:   "tenant.roles.assign",
		ActorUserID: observability.ActorUserID(actorID),
		TargetType:  "tenant",
		TargetID:    strconv.FormatUint(uint64(id), 10),
		Action:      "assign_roles",
		Outcome:     "success",
		Reason:      "roles_bound",
	}, "role_count", len(req.RoleIDs))
	response.JSON(w, r, http.StatusOK, map[string]any{"tenant_id": id, "role_ids": req.RoleIDs})
}

// AssignUser creates or updates a membership. Marking it primary demotes
// the user's previous primary tenant.
func (h *TenantHandler) AssignUser(w http.ResponseWriter, r *http.Request) {
	actorID, _, err := authUserIDAndClaims(r)
	if err != nil {
		response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "invalid user", nil)
		return
	}
	tenantID, err := urlParamID(r, "tenant_id")
	if err != nil {
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "invalid tenant id", nil)
		return
	}
	var req struct {
		UserID    uint `json:"user_id"`
		RoleID    uint `json:"role_id"`
		IsPrimary bool `json:"is_primary"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "invalid request body", nil)
		return
	}
	if req.UserID == 0 || req.RoleID == 0 {
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "user_id and role_id are required", nil)
		return
	}

	membership, err := h.tenantSvc.AssignUser(req.UserID, tenantID, req.RoleID, req.IsPrimary)
	if err != nil {
		writeServiceError(w, r, err, "failed to assign user")
		return
	}

	observability.EmitAudit(r, observability.AuditInput{
		EventName:   "tenant.member.assign",
		ActorUserID: observability.ActorUserID(actorID),
		TargetType:  "membership",
		TargetID:    strconv.FormatUint(uint64(req.UserID), 10),
		Action:      "assign_user",
		Outcome:     "success",
		Reason:      "membership_upserted",
	}, "tenant_id", tenantID, "role_id", req.RoleID, "is_primary", req.IsPrimary)
	response.JSON(w, r, http.StatusOK, membership)
}

func (h *TenantHandler) RemoveUser(w http.ResponseWriter, r *http.Request) {
	actorID, _, err := authUserIDAndClaims(r)
	if err != nil {
		response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "invalid user", nil)
		return
	}
	tenantID, err := urlParamID(r, "tenant_id")
	if err != nil {
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "invalid tenant id", nil)
		return
	}
	userID, err := urlParamID(r, "user_id")
	if err != nil {
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "invalid user id", nil)
		return
	}

	if err := h.tenantSvc.RemoveUser(userID, tenantID); err != nil {
		writeServiceError(w, r, err, "failed to remove user")
		return
	}

	observability.EmitAudit(r, observability.AuditInput{
		EventName:   "tenant.member.remove",
		ActorUserID: observability.ActorUserID(actorID),
		TargetType:  "membership",
		TargetID:    strconv.FormatUint(uint64(userID), 10),
		Action:      "remove_user",
		Outcome:     "success",
		Reason:      "membership_removed",
	}, "tenant_id", tenantID)
	response.JSON(w, r, http.StatusOK, map[string]any{"tenant_id": tenantID, "user_id": userID, "removed": true})
}

func (h *TenantHandler) Members(w http.ResponseWriter, r *http.Request) {
	id, err := urlParamID(r, "tenant_id")
	if err != nil {
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "invalid tenant id", nil)
		return
	}
	members, err := h.tenantSvc.ListMembers(id)
	if err != nil {
		writeServiceError(w, r, err, "failed to list members")
		return
	}
	response.JSON(w, r, http.StatusOK, members)
}

func (h *TenantHandler) UploadLogo(w http.ResponseWriter, r *http.Request) {
	actorID, _, err := authUserIDAndClaims(r)
	if err != nil {
		response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "invalid user", nil)
		return
	}
	id, err := urlParamID(r, "tenant_id")
	if err != nil {
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "invalid tenant id", nil)
		return
	}

	if err := r.ParseMultipartForm(4 << 20); err != nil {
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "failed to parse multipart form", nil)
		return
	}
	file, header, err := r.FormFile("logo")
	if err != nil {
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "logo file is required", nil)
		return
	}
	defer func() { _ = file.Close() }()

	objectKey, err := h.tenantSvc.UploadLogo(r.Context(), id, file, header.Size, header.Header.Get("Content-Type"))
	if err != nil {
		if errors.Is(err, service.ErrFileTooBig) {
			response.Error(w, r, http.StatusBadRequest, "FILE_TOO_LARGE", "file size exceeds 2MB limit", nil)
			return
		}
		if errors.Is(err, service.ErrInvalidFileType) {
			response.Error(w, r, http.StatusBadRequest, "INVALID_FILE_TYPE", "only JPEG and PNG images are allowed", nil)
			return
		}
		writeServiceError(w, r, err, "failed to upload logo")
		return
	}

	observability.EmitAudit(r, observability.AuditInput{
		EventName:   "tenant.logo.upload",
		ActorUserID: observability.ActorUserID(actorID),
		TargetType:  "tenant",
		TargetID:    strconv.FormatUint(uint64(id), 10),
		Action:      "upload_logo",
		Outcome:     "success",
		Reason:      "logo_uploaded",
	}, "object_key", objectKey, "file_size", header.Size)
	response.JSON(w, r, http.StatusOK, map[string]any{"tenant_id": id, "object_key": objectKey})
}

func (h *TenantHandler) LogoURL(w http.ResponseWriter, r *http.Request) {
	id, err := urlParamID(r, "tenant_id")
	if err != nil {
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "invalid tenant id", nil)
		return
	}
	url, err := h.tenantSvc.LogoURL(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err, "failed to generate logo url")
		return
	}
	response.JSON(w, r, http.StatusOK, map[string]any{"tenant_id": id, "logo_url": url})
}
