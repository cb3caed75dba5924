package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"go-tenant-rbac-service/internal/domain"
	"go-tenant-rbac-service/internal/observability"
)

var ErrMembershipNotFound = errors.New("membership not found")

type MembershipRepository interface {
	// Upsert creates or updates the (user, tenant) membership. When the
	// membership is primary every other membership of the user loses its
	// primary mark inside the same transaction, so at most one primary
	// membership per user survives any interleaving.
	Upsert(m *domain.UserTenant) error
	ListByUser(userID uint) ([]domain.UserTenant, error)
	ListByTenant(tenantID uint) ([]domain.UserTenant, error)
	FindByUserAndTenant(userID, tenantID uint) (*domain.UserTenant, error)
	Delete(userID, tenantID uint) error
}

type GormMembershipRepository struct{ db *gorm.DB }

func NewMembershipRepository(db *gorm.DB) MembershipRepository {
	return &GormMembershipRepository{db: db}
}

func (r *GormMembershipRepository) Upsert(m *domain.UserTenant) error {
	err := r.db.Transaction(func(tx *gorm.DB) error {
		if m.IsPrimary {
			if err := tx.Model(&domain.UserTenant{}).
				Where("user_id = ? AND tenant_id <> ?", m.UserID, m.TenantID).
				Update("is_primary", false).Error; err != nil {
				return err
			}
		}
		var existing domain.UserTenant
		err := tx.Where("user_id = ? AND tenant_id = ?", m.UserID, m.TenantID).First(&existing).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			return tx.Create(m).Error
		case err != nil:
			return err
		default:
			return tx.Model(&domain.UserTenant{}).
				Where("user_id = ? AND tenant_id = ?", m.UserID, m.TenantID).
				Updates(map[string]any{"role_id": m.RoleID, "is_primary": m.IsPrimary}).Error
		}
	})
	if err != nil {
		observability.RecordRepositoryOperation(context.Background(), "membership", "upsert", "error")
		return err
	}
	observability.RecordRepositoryOperation(context.Background(), "membership", "upsert", "success")
	return nil
}

func (r *GormMembershipRepository) ListByUser(userID uint) ([]domain.UserTenant, error) {
	var memberships []domain.UserTenant
	if err := r.db.Where("user_id = ?", userID).Order("tenant_id asc").Find(&memberships).Error; err != nil {
		observability.RecordRepositoryOperation(context.Background(), "membership", "list_by_user", "error")
		return nil, err
	}
	observability.RecordRepositoryOperation(context.Background(), "membership", "list_by_user", "success")
	return memberships, nil
}

func (r *GormMembershipRepository) ListByTenant(tenantID uint) ([]domain.UserTenant, error) {
	var memberships []domain.UserTenant
	if err := r.db.Where("tenant_id = ?", tenantID).Order("user_id asc").Find(&memberships).Error; err != nil {
		observability.RecordRepositoryOperation(context.Background(), "membership", "list_by_tenant", "error")
		return nil, err
	}
	observability.RecordRepositoryOperation(context.Background(), "membership", "list_by_tenant", "success")
	return memberships, nil
}

func (r *GormMembershipRepository) FindByUserAndTenant(userID, tenantID uint) (*domain.UserTenant, error) {
	var m domain.UserTenant
	err := r.db.Where("user_id = ? AND tenant_id = ?", userID, tenantID).First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			observability.RecordRepositoryOperation(context.Background(), "membership", "find", "not_found")
			return nil, ErrMembershipNotFound
		}
		observability.RecordRepositoryOperation(context.Background(), "membership", "find", "error")
		return nil, err
	}
	observability.RecordRepositoryOperation(context.Background(), "membership", "find", "success")
	return &m, nil
}

func (r *GormMembershipRepository) Delete(userID, tenantID uint) error {
	res := r.db.Where("user_id = ? AND tenant_id = ?", userID, tenantID).Delete(&domain.UserTenant{})
	if res.Error != nil {
		observability.RecordRepositoryOperation(context.Background(), "membership", "delete", "error")
		return res.Error
	}
	if res.RowsAffected == 0 {
		observability.RecordRepositoryOperation(context.Background(), "membership", "delete", "not_found")
		return ErrMembershipNotFound
	}
	observability.RecordRepositoryOperation(context.Background(), "membership", "delete", "success")
	return nil
}
