package repository

import (
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"go-tenant-rbac-service/internal/database"
	"go-tenant-rbac-service/internal/domain"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func uintPtr(v uint) *uint { return &v }

func mustCreate(t *testing.T, db *gorm.DB, value any) {
	t.Helper()
	if err := db.Create(value).Error; err != nil {
		t.Fatalf("create %T: %v", value, err)
	}
}

func seedPermission(t *testing.T, db *gorm.DB, name string, scope domain.Scope, tenantID *uint) domain.Permission {
	t.Helper()
	perm := domain.Permission{
		Name:        name,
		DisplayName: name,
		Resource:    name,
		Action:      "read",
		Scope:       scope,
		TenantID:    tenantID,
		IsActive:    true,
	}
	mustCreate(t, db, &perm)
	return perm
}

func seedRole(t *testing.T, db *gorm.DB, name string, scope domain.Scope, tenantID *uint) domain.Role {
	t.Helper()
	role := domain.Role{
		Name:        name,
		DisplayName: name,
		Scope:       scope,
		TenantID:    tenantID,
		IsActive:    true,
	}
	mustCreate(t, db, &role)
	return role
}

func seedUser(t *testing.T, db *gorm.DB, email string) domain.User {
	t.Helper()
	user := domain.User{Email: email, Name: email, Status: "active"}
	mustCreate(t, db, &user)
	return user
}

func seedTenant(t *testing.T, db *gorm.DB, name string) domain.Tenant {
	t.Helper()
	tenant := domain.Tenant{Name: name, DisplayName: name, IsActive: true}
	mustCreate(t, db, &tenant)
	return tenant
}
