package di

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/wire"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"go-tenant-rbac-service/internal/app"
	"go-tenant-rbac-service/internal/config"
	"go-tenant-rbac-service/internal/database"
	"go-tenant-rbac-service/internal/http/handler"
	"go-tenant-rbac-service/internal/http/router"
	"go-tenant-rbac-service/internal/observability"
	"go-tenant-rbac-service/internal/repository"
	"go-tenant-rbac-service/internal/security"
	"go-tenant-rbac-service/internal/service"
)

var ConfigSet = wire.NewSet(config.Load)

var ObservabilitySet = wire.NewSet(
	provideLogger,
	provideRuntime,
)

var RepositorySet = wire.NewSet(
	provideDB,
	repository.NewUserRepository,
	repository.NewRoleRepository,
	repository.NewPermissionRepository,
	repository.NewTenantRepository,
	repository.NewMembershipRepository,
	repository.NewSessionRepository,
)

var SecuritySet = wire.NewSet(
	provideJWTManager,
	provideCookieManager,
)

var ServiceSet = wire.NewSet(
	provideStorageService,
	service.NewUserService,
	service.NewRoleService,
	service.NewPermissionService,
	service.NewTenantService,
	service.NewAccessService,
	provideAuthService,
)

var HTTPSet = wire.NewSet(
	provideAuthHandler,
	handler.NewUserHandler,
	handler.NewRoleHandler,
	handler.NewPermissionHandler,
	handler.NewTenantHandler,
	handler.NewAccessHandler,
	provideRedisClient,
	provideRouterDependencies,
	provideHTTPServer,
)

var AppSet = wire.NewSet(app.New)

func provideLogger(cfg *config.Config) *slog.Logger {
	logger := observability.NewLogger(cfg)
	slog.SetDefault(logger)
	return logger
}

func provideRuntime(cfg *config.Config, logger *slog.Logger) (*observability.Runtime, error) {
	return observability.InitRuntime(context.Background(), cfg, logger)
}

func provideDB(cfg *config.Config) (*gorm.DB, error) {
	db, err := database.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := database.Migrate(db); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return db, nil
}

// provideOpenDB opens the database without migrating, for runners that
// control migration themselves.
func provideOpenDB(cfg *config.Config) (*gorm.DB, error) {
	return database.Open(cfg)
}

func provideJWTManager(cfg *config.Config) *security.JWTManager {
	return security.NewJWTManager(cfg.JWTIssuer, cfg.JWTAudience, cfg.JWTAccessSecret, cfg.JWTRefreshSecret)
}

func provideCookieManager(cfg *config.Config) *security.CookieManager {
	return security.NewCookieManager(cfg.CookieDomain, cfg.CookieSecure, cfg.CookieSameSite)
}

// provideStorageService returns a nil StorageService when no object store
// is configured; logo endpoints then answer with a validation error.
func provideStorageService(cfg *config.Config) (service.StorageService, error) {
	if !cfg.StorageEnabled() {
		return nil, nil
	}
	return service.NewMinIOStorageService(
		cfg.StorageEndpoint,
		cfg.StorageAccessKey,
		cfg.StorageSecretKey,
		cfg.StorageBucket,
		cfg.StorageUseSSL,
	)
}

func provideAuthService(
	cfg *config.Config,
	users repository.UserRepository,
	sessions repository.SessionRepository,
	access service.AccessService,
	jwtMgr *security.JWTManager,
) service.AuthService {
	return service.NewAuthService(users, sessions, access, jwtMgr, cfg.JWTAccessTTL, cfg.JWTRefreshTTL, cfg.RefreshTokenPepper)
}

func provideAuthHandler(cfg *config.Config, authSvc service.AuthService, cookieMgr *security.CookieManager) *handler.AuthHandler {
	return handler.NewAuthHandler(authSvc, cookieMgr, cfg.JWTAccessTTL, cfg.JWTRefreshTTL)
}

func provideRedisClient(cfg *config.Config) redis.UniversalClient {
	if cfg.RedisAddr == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
}

func provideRouterDependencies(
	logger *slog.Logger,
	db *gorm.DB,
	rdb redis.UniversalClient,
	authHandler *handler.AuthHandler,
	userHandler *handler.UserHandler,
	roleHandler *handler.RoleHandler,
	permissionHandler *handler.PermissionHandler,
	tenantHandler *handler.TenantHandler,
	accessHandler *handler.AccessHandler,
	jwtMgr *security.JWTManager,
	accessSvc service.AccessService,
	cfg *config.Config,
) router.Dependencies {
	return router.Dependencies{
		Logger:            logger,
		DB:                db,
		Redis:             rdb,
		AuthHandler:       authHandler,
		UserHandler:       userHandler,
		RoleHandler:       roleHandler,
		PermissionHandler: permissionHandler,
		TenantHandler:     tenantHandler,
		AccessHandler:     accessHandler,
		JWTManager:        jwtMgr,
		AccessSvc:         accessSvc,
		CORSOrigins:       cfg.CORSAllowedOrigins,
		AuthRateLimitRPM:  cfg.AuthRateLimitPerMin,
		APIRateLimitRPM:   cfg.APIRateLimitPerMin,
		RateLimitFailOpen: cfg.RateLimitFailOpen,
		TrustedActorCIDRs: cfg.TrustedActorCIDRs,
	}
}

func provideHTTPServer(cfg *config.Config, dep router.Dependencies) *http.Server {
	return &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router.New(dep),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

// MigrationRunner applies schema migrations and exits, for deploy hooks
// that migrate before rolling the service.
type MigrationRunner struct {
	db *gorm.DB
}

func NewMigrationRunner(db *gorm.DB) *MigrationRunner {
	return &MigrationRunner{db: db}
}

func (m *MigrationRunner) Run() error {
	return database.Migrate(m.db)
}

// SeedRunner installs the baseline permission catalog and the system admin
// role, optionally binding the bootstrap admin user.
type SeedRunner struct {
	db         *gorm.DB
	adminEmail string
}

func NewSeedRunner(db *gorm.DB, cfg *config.Config) *SeedRunner {
	return &SeedRunner{db: db, adminEmail: cfg.BootstrapAdminEmail}
}

func (s *SeedRunner) Run() (database.SeedReport, error) {
	return database.SeedSync(s.db, s.adminEmail)
}
