package handler

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"go-tenant-rbac-service/internal/http/response"
	"go-tenant-rbac-service/internal/observability"
	"go-tenant-rbac-service/internal/security"
	"go-tenant-rbac-service/internal/service"
)

type AuthHandler struct {
	authSvc   service.AuthService
	cookieMgr *security.CookieManager

	accessTTL  time.Duration
	refreshTTL time.Duration
}

func NewAuthHandler(authSvc service.AuthService, cookieMgr *security.CookieManager, accessTTL, refreshTTL time.Duration) *AuthHandler {
	return &AuthHandler{
		authSvc:    authSvc,
		cookieMgr:  cookieMgr,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
	}
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "invalid request body", nil)
		return
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "email and password are required", nil)
		return
	}

	user, pair, err := h.authSvc.Login(r.Context(), req.Email, req.Password, r.UserAgent(), clientIP(r))
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "invalid email or password", nil)
			return
		}
		response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "login failed", nil)
		return
	}

	csrf, err := security.NewCSRFToken()
	if err != nil {
		response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "login failed", nil)
		return
	}
	h.cookieMgr.SetTokenCookies(w, pair.AccessToken, pair.RefreshToken, csrf, h.accessTTL, h.refreshTTL)

	observability.EmitAudit(r, observability.AuditInput{
		EventName:   "auth.login",
		ActorUserID: observability.ActorUserID(user.ID),
		TargetType:  "session",
		TargetID:    "self",
		Action:      "login",
		Outcome:     "success",
		Reason:      "credentials_verified",
	})
	response.JSON(w, r, http.StatusOK, map[string]any{
		"user":               user,
		"access_expires_at":  pair.AccessExpiresAt,
		"refresh_expires_at": pair.RefreshExpiresAt,
		"csrf_token":         csrf,
	})
}

func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	if err := security.RequireCSRFFromHeader(r); err != nil {
		response.Error(w, r, http.StatusForbidden, "FORBIDDEN", "missing or mismatched csrf token", nil)
		return
	}
	raw := security.GetCookie(r, "refresh_token")
	if raw == "" {
		response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "missing refresh token", nil)
		return
	}

	user, pair, err := h.authSvc.Refresh(r.Context(), raw, r.UserAgent(), clientIP(r))
	if err != nil {
		h.cookieMgr.ClearTokenCookies(w)
		if errors.Is(err, service.ErrSessionInvalid) {
			response.Error(w, r, http.StatusUnauthorized, "INVALID_OR_EXPIRED_TOKEN", "refresh token is no longer valid", nil)
			return
		}
		response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "token refresh failed", nil)
		return
	}

	csrf, err := security.NewCSRFToken()
	if err != nil {
		response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "token refresh failed", nil)
		return
	}
	h.cookieMgr.SetTokenCookies(w, pair.AccessToken, pair.RefreshToken, csrf, h.accessTTL, h.refreshTTL)

	observability.EmitAudit(r, observability.AuditInput{
		EventName:   "auth.refresh",
		ActorUserID: observability.ActorUserID(user.ID),
		TargetType:  "session",
		TargetID:    "self",
		Action:      "refresh",
		Outcome:     "success",
		Reason:      "session_rotated",
	})
	response.JSON(w, r, http.StatusOK, map[string]any{
		"access_expires_at":  pair.AccessExpiresAt,
		"refresh_expires_at": pair.RefreshExpiresAt,
		"csrf_token":         csrf,
	})
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	raw := security.GetCookie(r, "refresh_token")
	if raw != "" {
		if err := h.authSvc.Logout(r.Context(), raw); err != nil {
			h.cookieMgr.ClearTokenCookies(w)
			response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "logout failed", nil)
			return
		}
	}
	h.cookieMgr.ClearTokenCookies(w)
	response.JSON(w, r, http.StatusOK, map[string]any{"logged_out": true})
}

func (h *AuthHandler) LogoutAll(w http.ResponseWriter, r *http.Request) {
	userID, _, err := authUserIDAndClaims(r)
	if err != nil {
		response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "invalid user", nil)
		return
	}

	revoked, err := h.authSvc.LogoutAll(r.Context(), userID)
	if err != nil {
		response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "logout failed", nil)
		return
	}
	h.cookieMgr.ClearTokenCookies(w)

	observability.EmitAudit(r, observability.AuditInput{
		EventName:   "auth.logout.all",
		ActorUserID: observability.ActorUserID(userID),
		TargetType:  "session",
		TargetID:    "all",
		Action:      "revoke",
		Outcome:     "success",
		Reason:      "bulk_revoke",
	}, "revoked_count", revoked)
	response.JSON(w, r, http.StatusOK, map[string]any{"revoked_count": revoked})
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err != nil {
		return strings.TrimSpace(r.RemoteAddr)
	}
	return host
}
