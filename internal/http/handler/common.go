package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"go-tenant-rbac-service/internal/http/middleware"
	"go-tenant-rbac-service/internal/http/response"
	"go-tenant-rbac-service/internal/repository"
	"go-tenant-rbac-service/internal/security"
	"go-tenant-rbac-service/internal/service"
)

func authUserIDAndClaims(r *http.Request) (uint, *security.Claims, error) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		return 0, nil, errors.New("missing auth context")
	}
	id64, err := strconv.ParseUint(claims.Subject, 10, 64)
	if err != nil {
		return 0, nil, err
	}
	return uint(id64), claims, nil
}

func urlParamID(r *http.Request, name string) (uint, error) {
	id64, err := strconv.ParseUint(chi.URLParam(r, name), 10, 64)
	if err != nil || id64 == 0 {
		return 0, errors.New("invalid id")
	}
	return uint(id64), nil
}

// writeServiceError maps the shared service sentinels onto the response
// envelope. Callers handle their own not-found sentinels first when they
// need a more specific message.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	switch {
	case errors.Is(err, service.ErrValidation):
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
	case errors.Is(err, service.ErrConflict):
		response.Error(w, r, http.StatusConflict, "CONFLICT", err.Error(), nil)
	case errors.Is(err, service.ErrSystemRoleProtected):
		response.Error(w, r, http.StatusForbidden, "SYSTEM_ROLE_PROTECTED", "system roles cannot be modified", nil)
	case errors.Is(err, repository.ErrPermissionNotFound),
		errors.Is(err, repository.ErrRoleNotFound),
		errors.Is(err, repository.ErrTenantNotFound),
		errors.Is(err, repository.ErrUserNotFound),
		errors.Is(err, repository.ErrMembershipNotFound):
		response.Error(w, r, http.StatusNotFound, "NOT_FOUND", err.Error(), nil)
	default:
		response.Error(w, r, http.StatusInternalServerError, "INTERNAL", fallback, nil)
	}
}
