package repository

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"go-tenant-rbac-service/internal/domain"
	"go-tenant-rbac-service/internal/observability"
)

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrCredentialNotFound = errors.New("credential not found")
)

type UserListQuery struct {
	PageRequest
	SortBy    string
	SortOrder string
	Email     string
	Status    string
}

type UserRepository interface {
	List() ([]domain.User, error)
	ListPaged(q UserListQuery) (PageResult[domain.User], error)
	FindByID(id uint) (*domain.User, error)
	FindByEmail(email string) (*domain.User, error)
	Create(user *domain.User) error
	Update(user *domain.User) error
	DeleteByID(id uint) error
	AddRole(userID, roleID uint) error
	// SetRoles replaces the user's global role bindings in one transaction.
	SetRoles(userID uint, roleIDs []uint) error
	// ActiveGlobalRoleIDs returns ids of the user's bound roles that are
	// active and GLOBAL scoped.
	ActiveGlobalRoleIDs(userID uint) ([]uint, error)
	UpsertCredential(cred *domain.LocalCredential) error
	FindCredential(userID uint) (*domain.LocalCredential, error)
}

type GormUserRepository struct{ db *gorm.DB }

func NewUserRepository(db *gorm.DB) UserRepository {
	return &GormUserRepository{db: db}
}

var userSortColumns = map[string]struct{}{
	"email": {}, "name": {}, "status": {}, "created_at": {},
}

func (r *GormUserRepository) List() ([]domain.User, error) {
	var users []domain.User
	if err := r.db.Order("email asc").Find(&users).Error; err != nil {
		observability.RecordRepositoryOperation(context.Background(), "user", "list", "error")
		return nil, err
	}
	observability.RecordRepositoryOperation(context.Background(), "user", "list", "success")
	return users, nil
}

func (r *GormUserRepository) ListPaged(q UserListQuery) (PageResult[domain.User], error) {
	page := normalizePageRequest(q.PageRequest)

	tx := r.db.Model(&domain.User{})
	if email := strings.TrimSpace(q.Email); email != "" {
		tx = tx.Where("email LIKE ?", strings.ToLower(email)+"%")
	}
	if status := strings.TrimSpace(q.Status); status != "" {
		tx = tx.Where("status = ?", status)
	}

	var total int64
	if err := tx.Count(&total).Error; err != nil {
		observability.RecordRepositoryOperation(context.Background(), "user", "list_paged", "error")
		return PageResult[domain.User]{}, err
	}

	var items []domain.User
	err := tx.Order(orderClause(q.SortBy, q.SortOrder, "email", userSortColumns)).
		Offset((page.Page - 1) * page.PageSize).
		Limit(page.PageSize).
		Find(&items).Error
	if err != nil {
		observability.RecordRepositoryOperation(context.Background(), "user", "list_paged", "error")
		return PageResult[domain.User]{}, err
	}
	observability.RecordRepositoryOperation(context.Background(), "user", "list_paged", "success")
	return PageResult[domain.User]{
		Items:      items,
		Page:       page.Page,
		PageSize:   page.PageSize,
		Total:      total,
		TotalPages: calcTotalPages(total, page.PageSize),
	}, nil
}

func (r *GormUserRepository) FindByID(id uint) (*domain.User, error) {
	var user domain.User
	if err := r.db.Preload("Roles.Permissions").First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			observability.RecordRepositoryOperation(context.Background(), "user", "find_by_id", "not_found")
			return nil, ErrUserNotFound
		}
		observability.RecordRepositoryOperation(context.Background(), "user", "find_by_id", "error")
		return nil, err
	}
	observability.RecordRepositoryOperation(context.Background(), "user", "find_by_id", "success")
	return &user, nil
}

func (r *GormUserRepository) FindByEmail(email string) (*domain.User, error) {
	var user domain.User
	err := r.db.Where("LOWER(email) = ?", strings.ToLower(strings.TrimSpace(email))).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			observability.RecordRepositoryOperation(context.Background(), "user", "find_by_email", "not_found")
			return nil, ErrUserNotFound
		}
		observability.RecordRepositoryOperation(context.Background(), "user", "find_by_email", "error")
		return nil, err
	}
	observability.RecordRepositoryOperation(context.Background(), "user", "find_by_email", "success")
	return &user, nil
}

func (r *GormUserRepository) Create(user *domain.User) error {
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	if err := r.db.Omit("Roles").Create(user).Error; err != nil {
		observability.RecordRepositoryOperation(context.Background(), "user", "create", "error")
		return err
	}
	observability.RecordRepositoryOperation(context.Background(), "user", "create", "success")
	return nil
}

func (r *GormUserRepository) Update(user *domain.User) error {
	res := r.db.Model(&domain.User{}).Where("id = ?", user.ID).Updates(map[string]any{
		"name":   strings.TrimSpace(user.Name),
		"status": strings.TrimSpace(user.Status),
	})
	if res.Error != nil {
		observability.RecordRepositoryOperation(context.Background(), "user", "update", "error")
		return res.Error
	}
	if res.RowsAffected == 0 {
		observability.RecordRepositoryOperation(context.Background(), "user", "update", "not_found")
		return ErrUserNotFound
	}
	observability.RecordRepositoryOperation(context.Background(), "user", "update", "success")
	return nil
}

func (r *GormUserRepository) DeleteByID(id uint) error {
	err := r.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Delete(&domain.User{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrUserNotFound
		}
		if err := tx.Where("user_id = ?", id).Delete(&domain.UserRole{}).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", id).Delete(&domain.UserTenant{}).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", id).Delete(&domain.LocalCredential{}).Error; err != nil {
			return err
		}
		return tx.Where("user_id = ?", id).Delete(&domain.Session{}).Error
	})
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			observability.RecordRepositoryOperation(context.Background(), "user", "delete", "not_found")
			return err
		}
		observability.RecordRepositoryOperation(context.Background(), "user", "delete", "error")
		return err
	}
	observability.RecordRepositoryOperation(context.Background(), "user", "delete", "success")
	return nil
}

func (r *GormUserRepository) AddRole(userID, roleID uint) error {
	var count int64
	if err := r.db.Model(&domain.UserRole{}).
		Where("user_id = ? AND role_id = ?", userID, roleID).
		Count(&count).Error; err != nil {
		observability.RecordRepositoryOperation(context.Background(), "user", "add_role", "error")
		return err
	}
	if count > 0 {
		return nil
	}
	if err := r.db.Create(&domain.UserRole{UserID: userID, RoleID: roleID}).Error; err != nil {
		observability.RecordRepositoryOperation(context.Background(), "user", "add_role", "error")
		return err
	}
	observability.RecordRepositoryOperation(context.Background(), "user", "add_role", "success")
	return nil
}

func (r *GormUserRepository) SetRoles(userID uint, roleIDs []uint) error {
	err := r.db.Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&domain.User{}).Where("id = ?", userID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return ErrUserNotFound
		}
		if err := tx.Where("user_id = ?", userID).Delete(&domain.UserRole{}).Error; err != nil {
			return err
		}
		if len(roleIDs) == 0 {
			return nil
		}
		bindings := make([]domain.UserRole, 0, len(roleIDs))
		seen := make(map[uint]struct{}, len(roleIDs))
		for _, rid := range roleIDs {
			if _, dup := seen[rid]; dup {
				continue
			}
			seen[rid] = struct{}{}
			bindings = append(bindings, domain.UserRole{UserID: userID, RoleID: rid})
		}
		return tx.Create(&bindings).Error
	})
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			observability.RecordRepositoryOperation(context.Background(), "user", "set_roles", "not_found")
			return err
		}
		observability.RecordRepositoryOperation(context.Background(), "user", "set_roles", "error")
		return err
	}
	observability.RecordRepositoryOperation(context.Background(), "user", "set_roles", "success")
	return nil
}

func (r *GormUserRepository) ActiveGlobalRoleIDs(userID uint) ([]uint, error) {
	var ids []uint
	err := r.db.Model(&domain.Role{}).
		Joins("JOIN user_roles ON user_roles.role_id = roles.id").
		Where("user_roles.user_id = ?", userID).
		Where("roles.is_active = ? AND roles.scope = ?", true, domain.ScopeGlobal).
		Pluck("roles.id", &ids).Error
	if err != nil {
		observability.RecordRepositoryOperation(context.Background(), "user", "global_role_ids", "error")
		return nil, err
	}
	observability.RecordRepositoryOperation(context.Background(), "user", "global_role_ids", "success")
	return ids, nil
}

func (r *GormUserRepository) UpsertCredential(cred *domain.LocalCredential) error {
	err := r.db.Transaction(func(tx *gorm.DB) error {
		var existing domain.LocalCredential
		err := tx.Where("user_id = ?", cred.UserID).First(&existing).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			return tx.Create(cred).Error
		case err != nil:
			return err
		default:
			return tx.Model(&domain.LocalCredential{}).
				Where("user_id = ?", cred.UserID).
				Update("password_hash", cred.PasswordHash).Error
		}
	})
	if err != nil {
		observability.RecordRepositoryOperation(context.Background(), "user", "upsert_credential", "error")
		return err
	}
	observability.RecordRepositoryOperation(context.Background(), "user", "upsert_credential", "success")
	return nil
}

func (r *GormUserRepository) FindCredential(userID uint) (*domain.LocalCredential, error) {
	var cred domain.LocalCredential
	if err := r.db.Where("user_id = ?", userID).First(&cred).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCredentialNotFound
		}
		observability.RecordRepositoryOperation(context.Background(), "user", "find_credential", "error")
		return nil, err
	}
	return &cred, nil
}
