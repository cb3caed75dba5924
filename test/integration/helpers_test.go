package integration

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"go-tenant-rbac-service/internal/database"
	"go-tenant-rbac-service/internal/domain"
	"go-tenant-rbac-service/internal/http/handler"
	"go-tenant-rbac-service/internal/http/router"
	"go-tenant-rbac-service/internal/repository"
	"go-tenant-rbac-service/internal/security"
	"go-tenant-rbac-service/internal/service"
)

const testPassword = "Valid#Pass1234"

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type apiEnvelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *apiError       `json:"error"`
}

type testEnv struct {
	BaseURL string
	Client  *http.Client
	DB      *gorm.DB
}

func newTestEnv(t *testing.T) (*testEnv, func()) {
	t.Helper()

	db, err := gorm.Open(
		sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"),
		&gorm.Config{Logger: logger.Default.LogMode(logger.Silent)},
	)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	users := repository.NewUserRepository(db)
	roles := repository.NewRoleRepository(db)
	permissions := repository.NewPermissionRepository(db)
	tenants := repository.NewTenantRepository(db)
	memberships := repository.NewMembershipRepository(db)
	sessions := repository.NewSessionRepository(db)

	jwtMgr := security.NewJWTManager(
		"integration-issuer",
		"integration-audience",
		"integration-access-secret-32chars!!",
		"integration-refresh-secret-32char!!",
	)
	cookieMgr := security.NewCookieManager("", false, "lax")

	accessSvc := service.NewAccessService(users, roles, permissions, memberships)
	userSvc := service.NewUserService(users, roles)
	roleSvc := service.NewRoleService(roles, permissions, tenants)
	permissionSvc := service.NewPermissionService(permissions, tenants)
	tenantSvc := service.NewTenantService(tenants, roles, users, memberships, nil)
	authSvc := service.NewAuthService(users, sessions, accessSvc, jwtMgr, 15*time.Minute, time.Hour, "integration-pepper-16ch")

	mux := router.New(router.Dependencies{
		Logger:            slog.New(slog.NewTextHandler(io.Discard, nil)),
		DB:                db,
		AuthHandler:       handler.NewAuthHandler(authSvc, cookieMgr, 15*time.Minute, time.Hour),
		UserHandler:       handler.NewUserHandler(userSvc, tenantSvc),
		RoleHandler:       handler.NewRoleHandler(roleSvc),
		PermissionHandler: handler.NewPermissionHandler(permissionSvc),
		TenantHandler:     handler.NewTenantHandler(tenantSvc),
		AccessHandler:     handler.NewAccessHandler(accessSvc),
		JWTManager:        jwtMgr,
		AccessSvc:         accessSvc,
		AuthRateLimitRPM:  1000,
		APIRateLimitRPM:   1000,
	})

	srv := httptest.NewServer(mux)
	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookie jar: %v", err)
	}
	client := &http.Client{Jar: jar}

	env := &testEnv{BaseURL: srv.URL, Client: client, DB: db}
	return env, srv.Close
}

func doJSON(t *testing.T, client *http.Client, method, url string, payload any, headers map[string]string) (*http.Response, apiEnvelope) {
	t.Helper()
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal payload: %v", err)
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, url, body)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read response: %v", err)
	}
	var env apiEnvelope
	_ = json.Unmarshal(raw, &env)
	return resp, env
}

func itoa(v uint) string {
	return strconv.FormatUint(uint64(v), 10)
}

func uintPtr(v uint) *uint { return &v }

func seedPermission(t *testing.T, db *gorm.DB, resource, action string, scope domain.Scope, tenantID *uint) domain.Permission {
	t.Helper()
	perm := domain.Permission{
		Name:     resource + ":" + action,
		Resource: resource,
		Action:   action,
		Scope:    scope,
		TenantID: tenantID,
		IsActive: true,
	}
	if tenantID != nil {
		perm.Name = perm.Name + "@" + itoa(*tenantID)
	}
	if err := db.Create(&perm).Error; err != nil {
		t.Fatalf("seed permission %s:%s: %v", resource, action, err)
	}
	return perm
}

func seedRole(t *testing.T, db *gorm.DB, name string, scope domain.Scope, tenantID *uint, system bool, perms ...domain.Permission) domain.Role {
	t.Helper()
	role := domain.Role{
		Name:         name,
		Scope:        scope,
		TenantID:     tenantID,
		IsSystemRole: system,
		IsActive:     true,
	}
	if err := db.Create(&role).Error; err != nil {
		t.Fatalf("seed role %s: %v", name, err)
	}
	for _, p := range perms {
		if err := db.Create(&domain.RolePermission{RoleID: role.ID, PermissionID: p.ID}).Error; err != nil {
			t.Fatalf("grant %s to %s: %v", p.Name, name, err)
		}
	}
	return role
}

func seedTenant(t *testing.T, db *gorm.DB, name string) domain.Tenant {
	t.Helper()
	tenant := domain.Tenant{Name: name, IsActive: true}
	if err := db.Create(&tenant).Error; err != nil {
		t.Fatalf("seed tenant %s: %v", name, err)
	}
	return tenant
}

func seedUser(t *testing.T, db *gorm.DB, email string, globalRoles ...domain.Role) domain.User {
	t.Helper()
	user := domain.User{Email: email, Name: email, Status: "active"}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("seed user %s: %v", email, err)
	}
	hash, err := security.HashPassword(testPassword)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	if err := db.Create(&domain.LocalCredential{UserID: user.ID, PasswordHash: hash}).Error; err != nil {
		t.Fatalf("seed credential: %v", err)
	}
	for _, role := range globalRoles {
		if err := db.Create(&domain.UserRole{UserID: user.ID, RoleID: role.ID}).Error; err != nil {
			t.Fatalf("bind role %s: %v", role.Name, err)
		}
	}
	return user
}

func seedMembership(t *testing.T, db *gorm.DB, userID, tenantID, roleID uint, primary bool) {
	t.Helper()
	m := domain.UserTenant{UserID: userID, TenantID: tenantID, RoleID: roleID, IsPrimary: primary}
	if err := db.Create(&m).Error; err != nil {
		t.Fatalf("seed membership: %v", err)
	}
}

func login(t *testing.T, env *testEnv, email string) string {
	t.Helper()
	resp, body := doJSON(t, env.Client, http.MethodPost, env.BaseURL+"/api/v1/auth/login", map[string]string{
		"email":    email,
		"password": testPassword,
	}, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login %s: expected 200, got %d", email, resp.StatusCode)
	}
	var payload struct {
		CSRFToken string `json:"csrf_token"`
	}
	if err := json.Unmarshal(body.Data, &payload); err != nil {
		t.Fatalf("decode login payload: %v", err)
	}
	if payload.CSRFToken == "" {
		t.Fatal("expected csrf token in login response")
	}
	return payload.CSRFToken
}
