package service

import (
	"errors"
	"fmt"
	"strings"

	"go-tenant-rbac-service/internal/domain"
	"go-tenant-rbac-service/internal/repository"
)

type CreatePermissionInput struct {
	Name        string
	DisplayName string
	Description string
	Resource    string
	Action      string
	Scope       domain.Scope
	TenantID    *uint
}

type UpdatePermissionInput struct {
	DisplayName string
	Description string
	IsActive    bool
}

type PermissionService interface {
	Create(in CreatePermissionInput) (*domain.Permission, error)
	Update(id uint, in UpdatePermissionInput) (*domain.Permission, error)
	Delete(id uint) error
	GetByID(id uint) (*domain.Permission, error)
	List() ([]domain.Permission, error)
	ListPaged(q repository.PermissionListQuery) (repository.PageResult[domain.Permission], error)
}

type permissionService struct {
	permissions repository.PermissionRepository
	tenants     repository.TenantRepository
}

func NewPermissionService(permissions repository.PermissionRepository, tenants repository.TenantRepository) PermissionService {
	return &permissionService{permissions: permissions, tenants: tenants}
}

func (s *permissionService) Create(in CreatePermissionInput) (*domain.Permission, error) {
	name := strings.TrimSpace(in.Name)
	resource := strings.TrimSpace(in.Resource)
	action := strings.TrimSpace(in.Action)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrValidation)
	}
	if resource == "" || action == "" {
		return nil, fmt.Errorf("%w: resource and action are required", ErrValidation)
	}
	if !in.Scope.Valid() {
		return nil, fmt.Errorf("%w: scope must be GLOBAL or TENANT", ErrValidation)
	}
	if err := s.checkScopeTenant(in.Scope, in.TenantID); err != nil {
		return nil, err
	}

	if _, err := s.permissions.FindByNameScope(name, in.Scope, in.TenantID); err == nil {
		return nil, fmt.Errorf("%w: permission %q in scope %s", ErrConflict, name, in.Scope)
	} else if !errors.Is(err, repository.ErrPermissionNotFound) {
		return nil, err
	}

	perm := &domain.Permission{
		Name:        name,
		DisplayName: strings.TrimSpace(in.DisplayName),
		Description: strings.TrimSpace(in.Description),
		Resource:    resource,
		Action:      action,
		Scope:       in.Scope,
		TenantID:    in.TenantID,
		IsActive:    true,
	}
	if err := s.permissions.Create(perm); err != nil {
		return nil, err
	}
	return perm, nil
}

func (s *permissionService) checkScopeTenant(scope domain.Scope, tenantID *uint) error {
	switch scope {
	case domain.ScopeGlobal:
		if tenantID != nil {
			return fmt.Errorf("%w: GLOBAL scope must not carry a tenant", ErrValidation)
		}
	case domain.ScopeTenant:
		if tenantID == nil {
			return fmt.Errorf("%w: TENANT scope requires a tenant", ErrValidation)
		}
		if _, err := s.tenants.FindByID(*tenantID); err != nil {
			if errors.Is(err, repository.ErrTenantNotFound) {
				return fmt.Errorf("%w: tenant %d does not exist", ErrValidation, *tenantID)
			}
			return err
		}
	}
	return nil
}

func (s *permissionService) Update(id uint, in UpdatePermissionInput) (*domain.Permission, error) {
	existing, err := s.permissions.FindByID(id)
	if err != nil {
		return nil, err
	}
	existing.DisplayName = strings.TrimSpace(in.DisplayName)
	existing.Description = strings.TrimSpace(in.Description)
	existing.IsActive = in.IsActive
	if err := s.permissions.Update(existing); err != nil {
		return nil, err
	}
	return s.permissions.FindByID(id)
}

func (s *permissionService) Delete(id uint) error {
	return s.permissions.DeleteByID(id)
}

func (s *permissionService) GetByID(id uint) (*domain.Permission, error) {
	return s.permissions.FindByID(id)
}

func (s *permissionService) List() ([]domain.Permission, error) {
	return s.permissions.List()
}

func (s *permissionService) ListPaged(q repository.PermissionListQuery) (repository.PageResult[domain.Permission], error) {
	return s.permissions.ListPaged(q)
}
