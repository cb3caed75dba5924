package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"go-tenant-rbac-service/internal/http/response"
	"go-tenant-rbac-service/internal/observability"
	"go-tenant-rbac-service/internal/repository"
	"go-tenant-rbac-service/internal/service"
)

type UserHandler struct {
	userSvc   service.UserService
	tenantSvc service.TenantService
}

func NewUserHandler(userSvc service.UserService, tenantSvc service.TenantService) *UserHandler {
	return &UserHandler{userSvc: userSvc, tenantSvc: tenantSvc}
}

// Me returns the authenticated user together with the permission keys of
// their global roles and their tenant memberships.
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID, _, err := authUserIDAndClaims(r)
	if err != nil {
		response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "invalid user", nil)
		return
	}
	u, perms, err := h.userSvc.GetByID(userID)
	if err != nil {
		response.Error(w, r, http.StatusNotFound, "NOT_FOUND", "user not found", nil)
		return
	}
	memberships, err := h.tenantSvc.ListUserMemberships(userID)
	if err != nil {
		response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "failed to load memberships", nil)
		return
	}
	response.JSON(w, r, http.StatusOK, map[string]any{
		"user":        u,
		"permissions": perms,
		"memberships": memberships,
	})
}

type userRequest struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
	Status   string `json:"status"`
}

func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	actorID, _, err := authUserIDAndClaims(r)
	if err != nil {
		response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "invalid user", nil)
		return
	}
	var req userRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "invalid request body", nil)
		return
	}

	u, err := h.userSvc.Create(service.CreateUserInput{
		Email:    req.Email,
		Name:     req.Name,
		Password: req.Password,
	})
	if err != nil {
		writeServiceError(w, r, err, "failed to create user")
		return
	}

	observability.EmitAudit(r, observability.AuditInput{
		EventName:   "user.create",
		ActorUserID: observability.ActorUserID(actorID),
		TargetType:  "user",
		TargetID:    strconv.FormatUint(uint64(u.ID), 10),
		Action:      "create",
		Outcome:     "success",
		Reason:      "user_created",
	}, "email", u.Email)
	response.JSON(w, r, http.StatusCreated, u)
}

func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	actorID, _, err := authUserIDAndClaims(r)
	if err != nil {
		response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "invalid user", nil)
		return
	}
	id, err := urlParamID(r, "user_id")
	if err != nil {
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "invalid user id", nil)
		return
	}
	var req userRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "invalid request body", nil)
		return
	}

	u, err := h.userSvc.Update(id, service.UpdateUserInput{
		Name:   req.Name,
		Status: req.Status,
	})
	if err != nil {
		writeServiceError(w, r, err, "failed to update user")
		return
	}

	observability.EmitAudit(r, observability.AuditInput{
		EventName:   "user.update",
		ActorUserID: observability.ActorUserID(actorID),
		TargetType:  "user",
		TargetID:    strconv.FormatUint(uint64(u.ID), 10),
		Action:      "update",
		Outcome:     "success",
		Reason:      "user_updated",
	}, "status", u.Status)
	response.JSON(w, r, http.StatusOK, u)
}

func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	actorID, _, err := authUserIDAndClaims(r)
	if err != nil {
		response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "invalid user", nil)
		return
	}
	id, err := urlParamID(r, "user_id")
	if err != nil {
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "invalid user id", nil)
		return
	}

	if err := h.userSvc.Delete(id); err != nil {
		writeServiceError(w, r, err, "failed to delete user")
		return
	}

	observability.EmitAudit(r, observability.AuditInput{
		EventName:   "user.delete",
		ActorUserID: observability.ActorUserID(actorID),
		TargetType:  "user",
		TargetID:    strconv.FormatUint(uint64(id), 10),
		Action:      "delete",
		Outcome:     "success",
		Reason:      "user_deleted",
	})
	response.JSON(w, r, http.StatusOK, map[string]any{"user_id": id, "deleted": true})
}

func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := urlParamID(r, "user_id")
	if err != nil {
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "invalid user id", nil)
		return
	}
	u, perms, err := h.userSvc.GetByID(id)
	if err != nil {
		writeServiceError(w, r, err, "failed to load user")
		return
	}
	response.JSON(w, r, http.StatusOK, map[string]any{"user": u, "permissions": perms})
}

func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	q := repository.UserListQuery{
		PageRequest: pageRequestFromQuery(r),
		SortBy:      r.URL.Query().Get("sort_by"),
		SortOrder:   r.URL.Query().Get("sort_order"),
		Email:       r.URL.Query().Get("email"),
		Status:      r.URL.Query().Get("status"),
	}
	page, err := h.userSvc.ListPaged(q)
	if err != nil {
		response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "failed to list users", nil)
		return
	}
	response.JSON(w, r, http.StatusOK, page)
}

// SetRoles replaces the user's global role bindings with exactly the
// submitted role ids.
func (h *UserHandler) SetRoles(w http.ResponseWriter, r *http.Request) {
	actorID, _, err := authUserIDAndClaims(r)
	if err != nil {
		response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "invalid user", nil)
		return
	}
	id, err := urlParamID(r, "user_id")
	if err != nil {
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "invalid user id", nil)
		return
	}
	var req struct {
		RoleIDs []uint `json:"role_ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "invalid request body", nil)
		return
	}
	if req.RoleIDs == nil {
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "role_ids is required", nil)
		return
	}

	if err := h.userSvc.SetRoles(id, req.RoleIDs); err != nil {
		writeServiceError(w, r, err, "failed to set roles")
		return
	}

	observability.EmitAudit(r, observability.AuditInput{
		EventName:   "user.roles.replace",
		ActorUserID: observability.ActorUserID(actorID),
		TargetType:  "user",
		TargetID:    strconv.FormatUint(uint64(id), 10),
		Action:      "replace_roles",
		Outcome:     "success",
		Reason:      "role_set_replaced",
	}, "role_count", len(req.RoleIDs))
	response.JSON(w, r, http.StatusOK, map[string]any{"user_id": id, "role_ids": req.RoleIDs})
}
