package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"go-tenant-rbac-service/internal/domain"
	"go-tenant-rbac-service/internal/repository"
)

type CreateTenantInput struct {
	Name        string
	DisplayName string
	Description string
}

type UpdateTenantInput struct {
	DisplayName string
	Description string
	IsActive    bool
}

type TenantService interface {
	Create(in CreateTenantInput) (*domain.Tenant, error)
	Update(id uint, in UpdateTenantInput) (*domain.Tenant, error)
	Delete(id uint) error
	GetByID(id uint) (*domain.Tenant, error)
	List() ([]domain.Tenant, error)
	ListPaged(q repository.TenantListQuery) (repository.PageResult[domain.Tenant], error)

	// AssignRoles binds TENANT-scoped, non-system roles to the tenant so
	// they become usable as membership roles there.
	AssignRoles(tenantID uint, roleIDs []uint) error
	// AssignUser creates or updates the user's membership. A primary
	// membership demotes any previous primary of the same user.
	AssignUser(userID, tenantID, roleID uint, isPrimary bool) (*domain.UserTenant, error)
	RemoveUser(userID, tenantID uint) error
	ListMembers(tenantID uint) ([]domain.UserTenant, error)
	ListUserMemberships(userID uint) ([]domain.UserTenant, error)

	UploadLogo(ctx context.Context, tenantID uint, file io.Reader, size int64, contentType string) (string, error)
	LogoURL(ctx context.Context, tenantID uint) (string, error)
}

type tenantService struct {
	tenants     repository.TenantRepository
	roles       repository.RoleRepository
	users       repository.UserRepository
	memberships repository.MembershipRepository
	storage     StorageService
}

func NewTenantService(
	tenants repository.TenantRepository,
	roles repository.RoleRepository,
	users repository.UserRepository,
	memberships repository.MembershipRepository,
	storage StorageService,
) TenantService {
	return &tenantService{tenants: tenants, roles: roles, users: users, memberships: memberships, storage: storage}
}

func (s *tenantService) Create(in CreateTenantInput) (*domain.Tenant, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrValidation)
	}
	if _, err := s.tenants.FindByName(name); err == nil {
		return nil, fmt.Errorf("%w: tenant %q", ErrConflict, name)
	} else if !errors.Is(err, repository.ErrTenantNotFound) {
		return nil, err
	}

	tenant := &domain.Tenant{
		Name:        name,
		DisplayName: strings.TrimSpace(in.DisplayName),
		Description: strings.TrimSpace(in.Description),
		IsActive:    true,
	}
	if err := s.tenants.Create(tenant); err != nil {
		return nil, err
	}
	return tenant, nil
}

func (s *tenantService) Update(id uint, in UpdateTenantInput) (*domain.Tenant, error) {
	existing, err := s.tenants.FindByID(id)
	if err != nil {
		return nil, err
	}
	existing.DisplayName = strings.TrimSpace(in.DisplayName)
	existing.Description = strings.TrimSpace(in.Description)
	existing.IsActive = in.IsActive
	if err := s.tenants.Update(existing); err != nil {
		return nil, err
	}
	return s.tenants.FindByID(id)
}

func (s *tenantService) Delete(id uint) error {
	return s.tenants.DeleteByID(id)
}

func (s *tenantService) GetByID(id uint) (*domain.Tenant, error) {
	return s.tenants.FindByID(id)
}

func (s *tenantService) List() ([]domain.Tenant, error) {
	return s.tenants.List()
}

func (s *tenantService) ListPaged(q repository.TenantListQuery) (repository.PageResult[domain.Tenant], error) {
	return s.tenants.ListPaged(q)
}

func (s *tenantService) AssignRoles(tenantID uint, roleIDs []uint) error {
	if len(roleIDs) == 0 {
		return fmt.Errorf("%w: at least one role id is required", ErrValidation)
	}
	if _, err := s.tenants.FindByID(tenantID); err != nil {
		return err
	}
	ids := dedupeIDs(roleIDs)
	roles, err := s.roles.FindByIDs(ids)
	if err != nil {
		return err
	}
	found := make(map[uint]domain.Role, len(roles))
	for _, r := range roles {
		found[r.ID] = r
	}
	for _, id := range ids {
		role, ok := found[id]
		if !ok {
			return fmt.Errorf("%w: role %d does not exist", ErrValidation, id)
		}
		if role.IsSystemRole {
			return ErrSystemRoleProtected
		}
		if role.Scope != domain.ScopeTenant {
			return fmt.Errorf("%w: role %d is not TENANT scoped", ErrValidation, id)
		}
	}
	return s.roles.BindTenant(tenantID, ids)
}

func (s *tenantService) AssignUser(userID, tenantID, roleID uint, isPrimary bool) (*domain.UserTenant, error) {
	if _, err := s.users.FindByID(userID); err != nil {
		return nil, err
	}
	if _, err := s.tenants.FindByID(tenantID); err != nil {
		return nil, err
	}
	roles, err := s.roles.FindByIDs([]uint{roleID})
	if err != nil {
		return nil, err
	}
	if len(roles) == 0 {
		return nil, fmt.Errorf("%w: role %d does not exist", ErrValidation, roleID)
	}
	role := roles[0]
	if !role.IsActive {
		return nil, fmt.Errorf("%w: role %d is inactive", ErrValidation, roleID)
	}
	// Membership roles are either global or bound to this very tenant.
	if role.Scope == domain.ScopeTenant && !(role.TenantID != nil && *role.TenantID == tenantID) {
		return nil, fmt.Errorf("%w: role %d is not available in tenant %d", ErrValidation, roleID, tenantID)
	}

	membership := &domain.UserTenant{UserID: userID, TenantID: tenantID, RoleID: roleID, IsPrimary: isPrimary}
	if err := s.memberships.Upsert(membership); err != nil {
		return nil, err
	}
	return s.memberships.FindByUserAndTenant(userID, tenantID)
}

func (s *tenantService) RemoveUser(userID, tenantID uint) error {
	return s.memberships.Delete(userID, tenantID)
}

func (s *tenantService) ListMembers(tenantID uint) ([]domain.UserTenant, error) {
	if _, err := s.tenants.FindByID(tenantID); err != nil {
		return nil, err
	}
	return s.memberships.ListByTenant(tenantID)
}

func (s *tenantService) ListUserMemberships(userID uint) ([]domain.UserTenant, error) {
	return s.memberships.ListByUser(userID)
}

func (s *tenantService) UploadLogo(ctx context.Context, tenantID uint, file io.Reader, size int64, contentType string) (string, error) {
	tenant, err := s.tenants.FindByID(tenantID)
	if err != nil {
		return "", err
	}
	if s.storage == nil {
		return "", errors.New("object storage is not configured")
	}
	objectKey, err := s.storage.UploadLogo(ctx, tenantID, file, size, contentType)
	if err != nil {
		return "", err
	}
	if err := s.tenants.SetLogoObjectKey(tenantID, objectKey); err != nil {
		return "", err
	}
	if tenant.LogoObjectKey != "" {
		// Old logo is best-effort cleanup; the new key is already persisted.
		_ = s.storage.DeleteLogo(ctx, tenantID, tenant.LogoObjectKey)
	}
	return objectKey, nil
}

func (s *tenantService) LogoURL(ctx context.Context, tenantID uint) (string, error) {
	tenant, err := s.tenants.FindByID(tenantID)
	if err != nil {
		return "", err
	}
	if tenant.LogoObjectKey == "" {
		return "", fmt.Errorf("%w: tenant %d has no logo", ErrValidation, tenantID)
	}
	if s.storage == nil {
		return "", errors.New("object storage is not configured")
	}
	return s.storage.GenerateLogoURL(ctx, tenant.LogoObjectKey)
}
