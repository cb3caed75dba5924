package repository

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"go-tenant-rbac-service/internal/domain"
	"go-tenant-rbac-service/internal/observability"
)

var ErrTenantNotFound = errors.New("tenant not found")

type TenantListQuery struct {
	PageRequest
	SortBy    string
	SortOrder string
	Name      string
}

type TenantRepository interface {
	List() ([]domain.Tenant, error)
	ListPaged(q TenantListQuery) (PageResult[domain.Tenant], error)
	FindByID(id uint) (*domain.Tenant, error)
	FindByName(name string) (*domain.Tenant, error)
	Create(tenant *domain.Tenant) error
	Update(tenant *domain.Tenant) error
	DeleteByID(id uint) error
	SetLogoObjectKey(id uint, objectKey string) error
}

type GormTenantRepository struct{ db *gorm.DB }

func NewTenantRepository(db *gorm.DB) TenantRepository {
	return &GormTenantRepository{db: db}
}

var tenantSortColumns = map[string]struct{}{
	"name": {}, "created_at": {},
}

func (r *GormTenantRepository) List() ([]domain.Tenant, error) {
	var tenants []domain.Tenant
	if err := r.db.Order("name asc").Find(&tenants).Error; err != nil {
		observability.RecordRepositoryOperation(context.Background(), "tenant", "list", "error")
		return nil, err
	}
	observability.RecordRepositoryOperation(context.Background(), "tenant", "list", "success")
	return tenants, nil
}

func (r *GormTenantRepository) ListPaged(q TenantListQuery) (PageResult[domain.Tenant], error) {
	page := normalizePageRequest(q.PageRequest)

	tx := r.db.Model(&domain.Tenant{})
	if name := strings.TrimSpace(q.Name); name != "" {
		tx = tx.Where("name LIKE ?", name+"%")
	}

	var total int64
	if err := tx.Count(&total).Error; err != nil {
		observability.RecordRepositoryOperation(context.Background(), "tenant", "list_paged", "error")
		return PageResult[domain.Tenant]{}, err
	}

	var items []domain.Tenant
	err := tx.Order(orderClause(q.SortBy, q.SortOrder, "name", tenantSortColumns)).
		Offset((page.Page - 1) * page.PageSize).
		Limit(page.PageSize).
		Find(&items).Error
	if err != nil {
		observability.RecordRepositoryOperation(context.Background(), "tenant", "list_paged", "error")
		return PageResult[domain.Tenant]{}, err
	}
	observability.RecordRepositoryOperation(context.Background(), "tenant", "list_paged", "success")
	return PageResult[domain.Tenant]{
		Items:      items,
		Page:       page.Page,
		PageSize:   page.PageSize,
		Total:      total,
		TotalPages: calcTotalPages(total, page.PageSize),
	}, nil
}

func (r *GormTenantRepository) FindByID(id uint) (*domain.Tenant, error) {
	var tenant domain.Tenant
	if err := r.db.First(&tenant, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			observability.RecordRepositoryOperation(context.Background(), "tenant", "find_by_id", "not_found")
			return nil, ErrTenantNotFound
		}
		observability.RecordRepositoryOperation(context.Background(), "tenant", "find_by_id", "error")
		return nil, err
	}
	observability.RecordRepositoryOperation(context.Background(), "tenant", "find_by_id", "success")
	return &tenant, nil
}

func (r *GormTenantRepository) FindByName(name string) (*domain.Tenant, error) {
	var tenant domain.Tenant
	if err := r.db.Where("name = ?", strings.TrimSpace(name)).First(&tenant).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTenantNotFound
		}
		observability.RecordRepositoryOperation(context.Background(), "tenant", "find_by_name", "error")
		return nil, err
	}
	return &tenant, nil
}

func (r *GormTenantRepository) Create(tenant *domain.Tenant) error {
	if err := r.db.Create(tenant).Error; err != nil {
		observability.RecordRepositoryOperation(context.Background(), "tenant", "create", "error")
		return err
	}
	observability.RecordRepositoryOperation(context.Background(), "tenant", "create", "success")
	return nil
}

func (r *GormTenantRepository) Update(tenant *domain.Tenant) error {
	res := r.db.Model(&domain.Tenant{}).Where("id = ?", tenant.ID).Updates(map[string]any{
		"name":         strings.TrimSpace(tenant.Name),
		"display_name": strings.TrimSpace(tenant.DisplayName),
		"description":  strings.TrimSpace(tenant.Description),
		"is_active":    tenant.IsActive,
	})
	if res.Error != nil {
		observability.RecordRepositoryOperation(context.Background(), "tenant", "update", "error")
		return res.Error
	}
	if res.RowsAffected == 0 {
		observability.RecordRepositoryOperation(context.Background(), "tenant", "update", "not_found")
		return ErrTenantNotFound
	}
	observability.RecordRepositoryOperation(context.Background(), "tenant", "update", "success")
	return nil
}

func (r *GormTenantRepository) DeleteByID(id uint) error {
	err := r.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Delete(&domain.Tenant{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrTenantNotFound
		}
		// Memberships of a deleted tenant are meaningless; drop them too.
		return tx.Where("tenant_id = ?", id).Delete(&domain.UserTenant{}).Error
	})
	if err != nil {
		if errors.Is(err, ErrTenantNotFound) {
			observability.RecordRepositoryOperation(context.Background(), "tenant", "delete", "not_found")
			return err
		}
		observability.RecordRepositoryOperation(context.Background(), "tenant", "delete", "error")
		return err
	}
	observability.RecordRepositoryOperation(context.Background(), "tenant", "delete", "success")
	return nil
}

func (r *GormTenantRepository) SetLogoObjectKey(id uint, objectKey string) error {
	res := r.db.Model(&domain.Tenant{}).Where("id = ?", id).Update("logo_object_key", objectKey)
	if res.Error != nil {
		observability.RecordRepositoryOperation(context.Background(), "tenant", "set_logo", "error")
		return res.Error
	}
	if res.RowsAffected == 0 {
		observability.RecordRepositoryOperation(context.Background(), "tenant", "set_logo", "not_found")
		return ErrTenantNotFound
	}
	observability.RecordRepositoryOperation(context.Background(), "tenant", "set_logo", "success")
	return nil
}
