package repository

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"go-tenant-rbac-service/internal/domain"
	"go-tenant-rbac-service/internal/observability"
)

var ErrRoleNotFound = errors.New("role not found")

type RoleRepository interface {
	List() ([]domain.Role, error)
	FindByID(id uint) (*domain.Role, error)
	FindByIDs(ids []uint) ([]domain.Role, error)
	FindByNameScope(name string, scope domain.Scope, tenantID *uint) (*domain.Role, error)
	Create(role *domain.Role) error
	// CreateWithGrants inserts the role and its initial grant set in one
	// transaction; a failed grant insert rolls the role back too.
	CreateWithGrants(role *domain.Role, permissionIDs []uint, grantedBy uint) error
	Update(role *domain.Role) error
	DeleteByID(id uint) error
	// ReplacePermissions deletes every existing grant for the role and
	// inserts the new set inside one transaction. An empty set clears.
	ReplacePermissions(roleID uint, permissionIDs []uint, grantedBy uint) error
	FindRolePermissions(roleID uint) ([]domain.Permission, error)
	// BindTenant stamps TENANT-scoped roles with the tenant they are
	// available in.
	BindTenant(tenantID uint, roleIDs []uint) error
}

type GormRoleRepository struct{ db *gorm.DB }

func NewRoleRepository(db *gorm.DB) RoleRepository {
	return &GormRoleRepository{db: db}
}

func (r *GormRoleRepository) List() ([]domain.Role, error) {
	var roles []domain.Role
	if err := r.db.Preload("Permissions").Order("name asc").Find(&roles).Error; err != nil {
		observability.RecordRepositoryOperation(context.Background(), "role", "list", "error")
		return nil, err
	}
	observability.RecordRepositoryOperation(context.Background(), "role", "list", "success")
	return roles, nil
}

func (r *GormRoleRepository) FindByID(id uint) (*domain.Role, error) {
	var role domain.Role
	if err := r.db.Preload("Permissions").First(&role, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			observability.RecordRepositoryOperation(context.Background(), "role", "find_by_id", "not_found")
			return nil, ErrRoleNotFound
		}
		observability.RecordRepositoryOperation(context.Background(), "role", "find_by_id", "error")
		return nil, err
	}
	observability.RecordRepositoryOperation(context.Background(), "role", "find_by_id", "success")
	return &role, nil
}

func (r *GormRoleRepository) FindByIDs(ids []uint) ([]domain.Role, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var roles []domain.Role
	if err := r.db.Where("id IN ?", ids).Find(&roles).Error; err != nil {
		observability.RecordRepositoryOperation(context.Background(), "role", "find_by_ids", "error")
		return nil, err
	}
	observability.RecordRepositoryOperation(context.Background(), "role", "find_by_ids", "success")
	return roles, nil
}

func (r *GormRoleRepository) FindByNameScope(name string, scope domain.Scope, tenantID *uint) (*domain.Role, error) {
	tx := r.db.Where("name = ? AND scope = ?", strings.TrimSpace(name), scope)
	if tenantID != nil {
		tx = tx.Where("tenant_id = ?", *tenantID)
	} else {
		tx = tx.Where("tenant_id IS NULL")
	}
	var role domain.Role
	if err := tx.First(&role).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRoleNotFound
		}
		observability.RecordRepositoryOperation(context.Background(), "role", "find_by_name", "error")
		return nil, err
	}
	return &role, nil
}

func (r *GormRoleRepository) Create(role *domain.Role) error {
	if err := r.db.Omit("Permissions").Create(role).Error; err != nil {
		observability.RecordRepositoryOperation(context.Background(), "role", "create", "error")
		return err
	}
	observability.RecordRepositoryOperation(context.Background(), "role", "create", "success")
	return nil
}

func (r *GormRoleRepository) CreateWithGrants(role *domain.Role, permissionIDs []uint, grantedBy uint) error {
	err := r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Permissions").Create(role).Error; err != nil {
			return err
		}
		if len(permissionIDs) == 0 {
			return nil
		}
		grants := make([]domain.RolePermission, 0, len(permissionIDs))
		seen := make(map[uint]struct{}, len(permissionIDs))
		for _, pid := range permissionIDs {
			if _, dup := seen[pid]; dup {
				continue
			}
			seen[pid] = struct{}{}
			grants = append(grants, domain.RolePermission{RoleID: role.ID, PermissionID: pid, GrantedBy: grantedBy})
		}
		return tx.Create(&grants).Error
	})
	if err != nil {
		observability.RecordRepositoryOperation(context.Background(), "role", "create", "error")
		return err
	}
	observability.RecordRepositoryOperation(context.Background(), "role", "create", "success")
	return nil
}

func (r *GormRoleRepository) Update(role *domain.Role) error {
	// Scope and tenant binding stay immutable on update; BindTenant is the
	// only path that moves tenant_id.
	res := r.db.Model(&domain.Role{}).Where("id = ?", role.ID).Updates(map[string]any{
		"name":         strings.TrimSpace(role.Name),
		"display_name": strings.TrimSpace(role.DisplayName),
		"description":  strings.TrimSpace(role.Description),
		"is_active":    role.IsActive,
	})
	if res.Error != nil {
		observability.RecordRepositoryOperation(context.Background(), "role", "update", "error")
		return res.Error
	}
	if res.RowsAffected == 0 {
		observability.RecordRepositoryOperation(context.Background(), "role", "update", "not_found")
		return ErrRoleNotFound
	}
	observability.RecordRepositoryOperation(context.Background(), "role", "update", "success")
	return nil
}

func (r *GormRoleRepository) DeleteByID(id uint) error {
	err := r.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Delete(&domain.Role{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrRoleNotFound
		}
		if err := tx.Where("role_id = ?", id).Delete(&domain.RolePermission{}).Error; err != nil {
			return err
		}
		if err := tx.Where("role_id = ?", id).Delete(&domain.UserRole{}).Error; err != nil {
			return err
		}
		return tx.Where("role_id = ?", id).Delete(&domain.UserTenant{}).Error
	})
	if err != nil {
		if errors.Is(err, ErrRoleNotFound) {
			observability.RecordRepositoryOperation(context.Background(), "role", "delete", "not_found")
			return err
		}
		observability.RecordRepositoryOperation(context.Background(), "role", "delete", "error")
		return err
	}
	observability.RecordRepositoryOperation(context.Background(), "role", "delete", "success")
	return nil
}

func (r *GormRoleRepository) ReplacePermissions(roleID uint, permissionIDs []uint, grantedBy uint) error {
	err := r.db.Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&domain.Role{}).Where("id = ?", roleID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return ErrRoleNotFound
		}
		if err := tx.Where("role_id = ?", roleID).Delete(&domain.RolePermission{}).Error; err != nil {
			return err
		}
		if len(permissionIDs) == 0 {
			return nil
		}
		grants := make([]domain.RolePermission, 0, len(permissionIDs))
		seen := make(map[uint]struct{}, len(permissionIDs))
		for _, pid := range permissionIDs {
			if _, dup := seen[pid]; dup {
				continue
			}
			seen[pid] = struct{}{}
			grants = append(grants, domain.RolePermission{RoleID: roleID, PermissionID: pid, GrantedBy: grantedBy})
		}
		return tx.Create(&grants).Error
	})
	if err != nil {
		if errors.Is(err, ErrRoleNotFound) {
			observability.RecordRepositoryOperation(context.Background(), "role", "replace_permissions", "not_found")
			return err
		}
		observability.RecordRepositoryOperation(context.Background(), "role", "replace_permissions", "error")
		return err
	}
	observability.RecordRepositoryOperation(context.Background(), "role", "replace_permissions", "success")
	return nil
}

func (r *GormRoleRepository) FindRolePermissions(roleID uint) ([]domain.Permission, error) {
	var perms []domain.Permission
	err := r.db.Model(&domain.Permission{}).
		Joins("JOIN role_permissions ON role_permissions.permission_id = permissions.id").
		Where("role_permissions.role_id = ?", roleID).
		Order("permissions.name asc").
		Find(&perms).Error
	if err != nil {
		observability.RecordRepositoryOperation(context.Background(), "role", "find_permissions", "error")
		return nil, err
	}
	observability.RecordRepositoryOperation(context.Background(), "role", "find_permissions", "success")
	return perms, nil
}

func (r *GormRoleRepository) BindTenant(tenantID uint, roleIDs []uint) error {
	if len(roleIDs) == 0 {
		return nil
	}
	err := r.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&domain.Role{}).
			Where("id IN ? AND scope = ?", roleIDs, domain.ScopeTenant).
			Update("tenant_id", tenantID)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected != int64(len(roleIDs)) {
			return ErrRoleNotFound
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrRoleNotFound) {
			observability.RecordRepositoryOperation(context.Background(), "role", "bind_tenant", "not_found")
			return err
		}
		observability.RecordRepositoryOperation(context.Background(), "role", "bind_tenant", "error")
		return err
	}
	observability.RecordRepositoryOperation(context.Background(), "role", "bind_tenant", "success")
	return nil
}
