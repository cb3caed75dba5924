package router

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"go-tenant-rbac-service/internal/http/handler"
	"go-tenant-rbac-service/internal/http/middleware"
	"go-tenant-rbac-service/internal/http/response"
	"go-tenant-rbac-service/internal/security"
	"go-tenant-rbac-service/internal/service"
)

// Dependencies carries everything the router mounts. Redis is optional;
// without it rate limiting falls back to the in-process limiter.
type Dependencies struct {
	Logger *slog.Logger
	DB     *gorm.DB
	Redis  redis.UniversalClient

	AuthHandler       *handler.AuthHandler
	UserHandler       *handler.UserHandler
	RoleHandler       *handler.RoleHandler
	PermissionHandler *handler.PermissionHandler
	TenantHandler     *handler.TenantHandler
	AccessHandler     *handler.AccessHandler

	JWTManager *security.JWTManager
	AccessSvc  service.AccessService

	CORSOrigins       []string
	AuthRateLimitRPM  int
	APIRateLimitRPM   int
	RateLimitFailOpen bool
	TrustedActorCIDRs []string
}

func New(dep Dependencies) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(requestLogger(dep.Logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(dep.CORSOrigins))

	r.Get("/health/live", func(w http.ResponseWriter, req *http.Request) {
		response.JSON(w, req, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/health/ready", readiness(dep.DB, dep.Redis))

	authLimiter, apiLimiter := buildRateLimiters(dep)

	r.Route("/api/v1", func(api chi.Router) {
		api.Route("/auth", func(auth chi.Router) {
			auth.Use(authLimiter.Middleware())
			auth.Post("/login", dep.AuthHandler.Login)
			auth.Post("/refresh", dep.AuthHandler.Refresh)
			auth.Post("/logout", dep.AuthHandler.Logout)
			auth.With(middleware.Authenticator(dep.JWTManager)).
				Post("/logout-all", dep.AuthHandler.LogoutAll)
		})

		api.Group(func(authd chi.Router) {
			authd.Use(middleware.Authenticator(dep.JWTManager))
			authd.Use(apiLimiter.Middleware())

			authd.Get("/me", dep.UserHandler.Me)
			authd.Get("/me/permissions", dep.AccessHandler.MyPermissions)
			authd.Get("/access/check", dep.AccessHandler.Check)

			authd.Route("/users", func(users chi.Router) {
				users.With(requirePerm(dep, "user", "read")).Get("/", dep.UserHandler.List)
				users.With(requirePerm(dep, "user", "read")).Get("/{user_id}", dep.UserHandler.Get)
				users.With(requirePerm(dep, "user", "write")).Post("/", dep.UserHandler.Create)
				users.With(requirePerm(dep, "user", "write")).Put("/{user_id}", dep.UserHandler.Update)
				users.With(requirePerm(dep, "user", "write")).Delete("/{user_id}", dep.UserHandler.Delete)
				users.With(requirePerm(dep, "role", "assign")).Put("/{user_id}/roles", dep.UserHandler.SetRoles)
			})

			authd.Route("/roles", func(roles chi.Router) {
				roles.With(requirePerm(dep, "role", "read")).Get("/", dep.RoleHandler.List)
				roles.With(requirePerm(dep, "role", "read")).Get("/{role_id}", dep.RoleHandler.Get)
				roles.With(requirePerm(dep, "role", "read")).Get("/{role_id}/permissions", dep.RoleHandler.Permissions)
				roles.With(requirePerm(dep, "role", "write")).Post("/", dep.RoleHandler.Create)
				roles.With(requirePerm(dep, "role", "write")).Put("/{role_id}", dep.RoleHandler.Update)
				roles.With(requirePerm(dep, "role", "write")).Delete("/{role_id}", dep.RoleHandler.Delete)
				roles.With(requirePerm(dep, "role", "assign")).Put("/{role_id}/permissions", dep.RoleHandler.SetPermissions)
			})

			authd.Route("/permissions", func(perms chi.Router) {
				perms.With(requirePerm(dep, "permission", "read")).Get("/", dep.PermissionHandler.List)
				perms.With(requirePerm(dep, "permission", "read")).Get("/{permission_id}", dep.PermissionHandler.Get)
				perms.With(requirePerm(dep, "permission", "write")).Post("/", dep.PermissionHandler.Create)
				perms.With(requirePerm(dep, "permission", "write")).Put("/{permission_id}", dep.PermissionHandler.Update)
				perms.With(requirePerm(dep, "permission", "write")).Delete("/{permission_id}", dep.PermissionHandler.Delete)
			})

			// Routes naming a tenant in the path authorize against that
			// tenant, not the X-Tenant-ID header.
			authd.Route("/tenants", func(tenants chi.Router) {
				tenants.With(requirePerm(dep, "tenant", "read")).Get("/", dep.TenantHandler.List)
				tenants.With(requireTenantPerm(dep, "tenant", "read")).Get("/{tenant_id}", dep.TenantHandler.Get)
				tenants.With(requireTenantPerm(dep, "tenant", "read")).Get("/{tenant_id}/members", dep.TenantHandler.Members)
				tenants.With(requireTenantPerm(dep, "tenant", "read")).Get("/{tenant_id}/logo", dep.TenantHandler.LogoURL)
				tenants.With(requirePerm(dep, "tenant", "write")).Post("/", dep.TenantHandler.Create)
				tenants.With(requireTenantPerm(dep, "tenant", "write")).Put("/{tenant_id}", dep.TenantHandler.Update)
				tenants.With(requireTenantPerm(dep, "tenant", "write")).Delete("/{tenant_id}", dep.TenantHandler.Delete)
				tenants.With(requireTenantPerm(dep, "tenant", "write")).Post("/{tenant_id}/logo", dep.TenantHandler.UploadLogo)
				tenants.With(requireTenantPerm(dep, "role", "assign")).Put("/{tenant_id}/roles", dep.TenantHandler.AssignRoles)
				tenants.With(requireTenantPerm(dep, "role", "assign")).Post("/{tenant_id}/users", dep.TenantHandler.AssignUser)
				tenants.With(requireTenantPerm(dep, "role", "assign")).Delete("/{tenant_id}/users/{user_id}", dep.TenantHandler.RemoveUser)
			})
		})
	})

	return r
}

func requirePerm(dep Dependencies, resource, action string) func(http.Handler) http.Handler {
	return middleware.RequirePermission(dep.AccessSvc, resource, action)
}

func requireTenantPerm(dep Dependencies, resource, action string) func(http.Handler) http.Handler {
	return middleware.RequirePermissionForTenant(dep.AccessSvc, resource, action, "tenant_id")
}

func buildRateLimiters(dep Dependencies) (*middleware.RateLimiter, *middleware.RateLimiter) {
	authPolicy := middleware.RateLimitPolicy{
		SustainedLimit:    dep.AuthRateLimitRPM,
		SustainedWindow:   time.Minute,
		BurstCapacity:     dep.AuthRateLimitRPM,
		BurstRefillPerSec: float64(dep.AuthRateLimitRPM) / 60,
	}
	apiPolicy := middleware.RateLimitPolicy{
		SustainedLimit:    dep.APIRateLimitRPM,
		SustainedWindow:   time.Minute,
		BurstCapacity:     dep.APIRateLimitRPM,
		BurstRefillPerSec: float64(dep.APIRateLimitRPM) / 60,
	}

	// Separate backends per scope so the login surface and the admin surface
	// never draw from the same budget for one caller.
	var authBackend, apiBackend middleware.Limiter
	if dep.Redis != nil {
		authBackend = middleware.NewRedisLimiter(dep.Redis, "auth")
		apiBackend = middleware.NewRedisLimiter(dep.Redis, "api")
	} else {
		authBackend = middleware.NewLocalLimiter()
		apiBackend = middleware.NewLocalLimiter()
	}

	apiMode := middleware.FailClosed
	if dep.RateLimitFailOpen {
		apiMode = middleware.FailOpen
	}

	// Auth endpoints always fail closed; a limiter outage must not open
	// the credential-stuffing window.
	authLimiter := middleware.NewDistributedRateLimiter(authBackend, authPolicy, middleware.FailClosed, "auth")

	bypass := middleware.NewRequestBypassEvaluator(middleware.RequestBypassConfig{
		EnableInternalProbeBypass: true,
		EnableTrustedActorBypass:  len(dep.TrustedActorCIDRs) > 0,
		TrustedActorCIDRs:         dep.TrustedActorCIDRs,
	}, dep.JWTManager)
	apiLimiter := middleware.NewDistributedRateLimiterWithKey(
		apiBackend, apiPolicy, apiMode, "api", middleware.SubjectOrIPKeyFunc(dep.JWTManager),
	)
	if bypass != nil {
		apiLimiter = apiLimiter.WithBypass(bypass)
	}
	return authLimiter, apiLimiter
}

func readiness(db *gorm.DB, rdb redis.UniversalClient) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if db != nil {
			sqlDB, err := db.DB()
			if err != nil || sqlDB.PingContext(ctx) != nil {
				response.Error(w, r, http.StatusServiceUnavailable, "DEPENDENCY_UNREADY", "database is unreachable", nil)
				return
			}
		}
		if rdb != nil {
			if err := rdb.Ping(ctx).Err(); err != nil {
				response.Error(w, r, http.StatusServiceUnavailable, "DEPENDENCY_UNREADY", "redis is unreachable", nil)
				return
			}
		}
		response.JSON(w, r, http.StatusOK, map[string]string{"status": "ready"})
	}
}

func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			logger.InfoContext(r.Context(), "http_request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration_ms", time.Since(start).Milliseconds(),
				"request_id", chimiddleware.GetReqID(r.Context()),
			)
		})
	}
}
