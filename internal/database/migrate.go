package database

import (
	"go-tenant-rbac-service/internal/domain"

	"gorm.io/gorm"
)

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&domain.User{},
		&domain.LocalCredential{},
		&domain.Tenant{},
		&domain.Role{},
		&domain.Permission{},
		&domain.RolePermission{},
		&domain.UserRole{},
		&domain.UserTenant{},
		&domain.Session{},
	)
}
