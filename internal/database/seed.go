package database

import (
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"go-tenant-rbac-service/internal/domain"
)

// SeedReport summarizes what a seed run changed.
type SeedReport struct {
	CreatedPermissions int
	CreatedRoles       int
	BoundAdminUser     bool
	Noop               bool
}

var seedResources = []string{"user", "role", "permission", "tenant", "product", "order", "inventory", "customer", "report"}

var seedActions = []string{"read", "write", "delete"}

// seedExtraPermissions are grants outside the resource/action grid. The
// assignment endpoints check role:assign rather than role:write.
var seedExtraPermissions = [][2]string{{"role", "assign"}}

// SeedSync makes the default GLOBAL permission catalog and the system admin
// role exist, and binds the bootstrap admin user when one matches adminEmail.
// Running it twice is a no-op.
func SeedSync(db *gorm.DB, adminEmail string) (SeedReport, error) {
	var report SeedReport
	err := db.Transaction(func(tx *gorm.DB) error {
		for _, resource := range seedResources {
			for _, action := range seedActions {
				created, err := ensurePermission(tx, resource, action)
				if err != nil {
					return err
				}
				if created {
					report.CreatedPermissions++
				}
			}
		}
		for _, extra := range seedExtraPermissions {
			created, err := ensurePermission(tx, extra[0], extra[1])
			if err != nil {
				return err
			}
			if created {
				report.CreatedPermissions++
			}
		}

		adminCreated, err := ensureAdminRole(tx)
		if err != nil {
			return err
		}
		if adminCreated {
			report.CreatedRoles++
		}

		bound, err := bindBootstrapAdmin(tx, adminEmail)
		if err != nil {
			return err
		}
		report.BoundAdminUser = bound
		return nil
	})
	if err != nil {
		return SeedReport{}, err
	}
	report.Noop = report.CreatedPermissions == 0 && report.CreatedRoles == 0 && !report.BoundAdminUser
	return report, nil
}

func ensurePermission(tx *gorm.DB, resource, action string) (bool, error) {
	name := resource + ":" + action
	var existing domain.Permission
	err := tx.Where("name = ? AND scope = ? AND tenant_id IS NULL", name, domain.ScopeGlobal).First(&existing).Error
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return false, fmt.Errorf("lookup permission %s: %w", name, err)
	}
	perm := domain.Permission{
		Name:        name,
		DisplayName: titleCase(action) + " " + titleCase(resource),
		Resource:    resource,
		Action:      action,
		Scope:       domain.ScopeGlobal,
		IsActive:    true,
	}
	if err := tx.Create(&perm).Error; err != nil {
		return false, fmt.Errorf("create permission %s: %w", name, err)
	}
	return true, nil
}

func ensureAdminRole(tx *gorm.DB) (bool, error) {
	var role domain.Role
	err := tx.Where("name = ? AND scope = ? AND tenant_id IS NULL", "admin", domain.ScopeGlobal).First(&role).Error
	created := false
	if errors.Is(err, gorm.ErrRecordNotFound) {
		role = domain.Role{
			Name:         "admin",
			DisplayName:  "Administrator",
			Description:  "Platform administrator with every permission",
			IsSystemRole: true,
			Scope:        domain.ScopeGlobal,
			IsActive:     true,
		}
		if err := tx.Create(&role).Error; err != nil {
			return false, fmt.Errorf("create admin role: %w", err)
		}
		created = true
	} else if err != nil {
		return false, fmt.Errorf("lookup admin role: %w", err)
	}

	var perms []domain.Permission
	if err := tx.Where("scope = ?", domain.ScopeGlobal).Find(&perms).Error; err != nil {
		return created, fmt.Errorf("list global permissions: %w", err)
	}
	for _, p := range perms {
		var count int64
		if err := tx.Model(&domain.RolePermission{}).
			Where("role_id = ? AND permission_id = ?", role.ID, p.ID).Count(&count).Error; err != nil {
			return created, fmt.Errorf("lookup admin grant: %w", err)
		}
		if count > 0 {
			continue
		}
		if err := tx.Create(&domain.RolePermission{RoleID: role.ID, PermissionID: p.ID}).Error; err != nil {
			return created, fmt.Errorf("grant %s to admin: %w", p.Name, err)
		}
	}
	return created, nil
}

func bindBootstrapAdmin(tx *gorm.DB, adminEmail string) (bool, error) {
	email := strings.TrimSpace(strings.ToLower(adminEmail))
	if email == "" {
		return false, nil
	}
	var user domain.User
	if err := tx.Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("lookup bootstrap admin: %w", err)
	}
	var role domain.Role
	if err := tx.Where("name = ? AND scope = ?", "admin", domain.ScopeGlobal).First(&role).Error; err != nil {
		return false, fmt.Errorf("lookup admin role for bootstrap: %w", err)
	}
	var count int64
	if err := tx.Model(&domain.UserRole{}).
		Where("user_id = ? AND role_id = ?", user.ID, role.ID).Count(&count).Error; err != nil {
		return false, fmt.Errorf("lookup bootstrap binding: %w", err)
	}
	if count > 0 {
		return false, nil
	}
	if err := tx.Create(&domain.UserRole{UserID: user.ID, RoleID: role.ID}).Error; err != nil {
		return false, fmt.Errorf("bind bootstrap admin: %w", err)
	}
	return true, nil
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
