package repository

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"go-tenant-rbac-service/internal/domain"
	"go-tenant-rbac-service/internal/observability"
)

var ErrPermissionNotFound = errors.New("permission not found")

type PermissionListQuery struct {
	PageRequest
	SortBy    string
	SortOrder string
	Resource  string
	Scope     domain.Scope
	TenantID  *uint
}

type PermissionRepository interface {
	List() ([]domain.Permission, error)
	ListPaged(q PermissionListQuery) (PageResult[domain.Permission], error)
	FindByID(id uint) (*domain.Permission, error)
	FindByIDs(ids []uint) ([]domain.Permission, error)
	FindByNameScope(name string, scope domain.Scope, tenantID *uint) (*domain.Permission, error)
	Create(perm *domain.Permission) error
	Update(perm *domain.Permission) error
	DeleteByID(id uint) error
	// FindActiveByRoleIDs joins role_permissions to permissions and returns
	// only active permissions, deduplicated across roles.
	FindActiveByRoleIDs(roleIDs []uint) ([]domain.Permission, error)
}

type GormPermissionRepository struct{ db *gorm.DB }

func NewPermissionRepository(db *gorm.DB) PermissionRepository {
	return &GormPermissionRepository{db: db}
}

var permissionSortColumns = map[string]struct{}{
	"name": {}, "resource": {}, "action": {}, "scope": {}, "created_at": {},
}

func (r *GormPermissionRepository) List() ([]domain.Permission, error) {
	var perms []domain.Permission
	if err := r.db.Order("name asc").Find(&perms).Error; err != nil {
		observability.RecordRepositoryOperation(context.Background(), "permission", "list", "error")
		return nil, err
	}
	observability.RecordRepositoryOperation(context.Background(), "permission", "list", "success")
	return perms, nil
}

func (r *GormPermissionRepository) ListPaged(q PermissionListQuery) (PageResult[domain.Permission], error) {
	page := normalizePageRequest(q.PageRequest)

	tx := r.db.Model(&domain.Permission{})
	if resource := strings.TrimSpace(q.Resource); resource != "" {
		tx = tx.Where("resource LIKE ?", resource+"%")
	}
	if q.Scope != "" {
		tx = tx.Where("scope = ?", q.Scope)
		if q.Scope == domain.ScopeTenant && q.TenantID != nil {
			tx = tx.Where("tenant_id = ?", *q.TenantID)
		}
	}

	var total int64
	if err := tx.Count(&total).Error; err != nil {
		observability.RecordRepositoryOperation(context.Background(), "permission", "list_paged", "error")
		return PageResult[domain.Permission]{}, err
	}

	var items []domain.Permission
	err := tx.Order(orderClause(q.SortBy, q.SortOrder, "name", permissionSortColumns)).
		Offset((page.Page - 1) * page.PageSize).
		Limit(page.PageSize).
		Find(&items).Error
	if err != nil {
		observability.RecordRepositoryOperation(context.Background(), "permission", "list_paged", "error")
		return PageResult[domain.Permission]{}, err
	}
	observability.RecordRepositoryOperation(context.Background(), "permission", "list_paged", "success")
	return PageResult[domain.Permission]{
		Items:      items,
		Page:       page.Page,
		PageSize:   page.PageSize,
		Total:      total,
		TotalPages: calcTotalPages(total, page.PageSize),
	}, nil
}

func (r *GormPermissionRepository) FindByID(id uint) (*domain.Permission, error) {
	var perm domain.Permission
	if err := r.db.First(&perm, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			observability.RecordRepositoryOperation(context.Background(), "permission", "find_by_id", "not_found")
			return nil, ErrPermissionNotFound
		}
		observability.RecordRepositoryOperation(context.Background(), "permission", "find_by_id", "error")
		return nil, err
	}
	observability.RecordRepositoryOperation(context.Background(), "permission", "find_by_id", "success")
	return &perm, nil
}

func (r *GormPermissionRepository) FindByIDs(ids []uint) ([]domain.Permission, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var perms []domain.Permission
	if err := r.db.Where("id IN ?", ids).Find(&perms).Error; err != nil {
		observability.RecordRepositoryOperation(context.Background(), "permission", "find_by_ids", "error")
		return nil, err
	}
	observability.RecordRepositoryOperation(context.Background(), "permission", "find_by_ids", "success")
	return perms, nil
}

func (r *GormPermissionRepository) FindByNameScope(name string, scope domain.Scope, tenantID *uint) (*domain.Permission, error) {
	tx := r.db.Where("name = ? AND scope = ?", strings.TrimSpace(name), scope)
	if tenantID != nil {
		tx = tx.Where("tenant_id = ?", *tenantID)
	} else {
		tx = tx.Where("tenant_id IS NULL")
	}
	var perm domain.Permission
	if err := tx.First(&perm).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPermissionNotFound
		}
		observability.RecordRepositoryOperation(context.Background(), "permission", "find_by_name", "error")
		return nil, err
	}
	return &perm, nil
}

func (r *GormPermissionRepository) Create(perm *domain.Permission) error {
	if err := r.db.Create(perm).Error; err != nil {
		observability.RecordRepositoryOperation(context.Background(), "permission", "create", "error")
		return err
	}
	observability.RecordRepositoryOperation(context.Background(), "permission", "create", "success")
	return nil
}

func (r *GormPermissionRepository) Update(perm *domain.Permission) error {
	// Scope and tenant binding are immutable; only descriptive fields and the
	// active flag move.
	res := r.db.Model(&domain.Permission{}).Where("id = ?", perm.ID).Updates(map[string]any{
		"name":         strings.TrimSpace(perm.Name),
		"display_name": strings.TrimSpace(perm.DisplayName),
		"description":  strings.TrimSpace(perm.Description),
		"resource":     strings.TrimSpace(perm.Resource),
		"action":       strings.TrimSpace(perm.Action),
		"is_active":    perm.IsActive,
	})
	if res.Error != nil {
		observability.RecordRepositoryOperation(context.Background(), "permission", "update", "error")
		return res.Error
	}
	if res.RowsAffected == 0 {
		observability.RecordRepositoryOperation(context.Background(), "permission", "update", "not_found")
		return ErrPermissionNotFound
	}
	observability.RecordRepositoryOperation(context.Background(), "permission", "update", "success")
	return nil
}

func (r *GormPermissionRepository) DeleteByID(id uint) error {
	err := r.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Delete(&domain.Permission{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrPermissionNotFound
		}
		// Referential cleanup of join rows.
		return tx.Where("permission_id = ?", id).Delete(&domain.RolePermission{}).Error
	})
	if err != nil {
		if errors.Is(err, ErrPermissionNotFound) {
			observability.RecordRepositoryOperation(context.Background(), "permission", "delete", "not_found")
			return err
		}
		observability.RecordRepositoryOperation(context.Background(), "permission", "delete", "error")
		return err
	}
	observability.RecordRepositoryOperation(context.Background(), "permission", "delete", "success")
	return nil
}

func (r *GormPermissionRepository) FindActiveByRoleIDs(roleIDs []uint) ([]domain.Permission, error) {
	if len(roleIDs) == 0 {
		return nil, nil
	}
	var perms []domain.Permission
	err := r.db.Model(&domain.Permission{}).
		Distinct("permissions.*").
		Joins("JOIN role_permissions ON role_permissions.permission_id = permissions.id").
		Where("role_permissions.role_id IN ?", roleIDs).
		Where("permissions.is_active = ?", true).
		Find(&perms).Error
	if err != nil {
		observability.RecordRepositoryOperation(context.Background(), "permission", "find_by_roles", "error")
		return nil, err
	}
	observability.RecordRepositoryOperation(context.Background(), "permission", "find_by_roles", "success")
	return perms, nil
}
