package service

import (
	"errors"
	"fmt"
	"strings"

	"go-tenant-rbac-service/internal/domain"
	"go-tenant-rbac-service/internal/repository"
)

type CreateRoleInput struct {
	Name        string
	DisplayName string
	Description string
	Scope       domain.Scope
	TenantID    *uint
	// PermissionIDs seeds the initial grant set; empty creates a bare role.
	PermissionIDs []uint
}

type UpdateRoleInput struct {
	Name        string
	DisplayName string
	Description string
	IsActive    bool
}

type RoleService interface {
	Create(in CreateRoleInput) (*domain.Role, error)
	Update(id uint, in UpdateRoleInput) (*domain.Role, error)
	Delete(id uint) error
	GetByID(id uint) (*domain.Role, error)
	List() ([]domain.Role, error)
	// AssignPermissions replaces the role's grant set with exactly the given
	// permission ids. System roles are rejected before any write.
	AssignPermissions(roleID uint, permissionIDs []uint, grantedBy uint) error
	GetRolePermissions(roleID uint) ([]domain.Permission, error)
}

type roleService struct {
	roles       repository.RoleRepository
	permissions repository.PermissionRepository
	tenants     repository.TenantRepository
}

func NewRoleService(
	roles repository.RoleRepository,
	permissions repository.PermissionRepository,
	tenants repository.TenantRepository,
) RoleService {
	return &roleService{roles: roles, permissions: permissions, tenants: tenants}
}

func (s *roleService) Create(in CreateRoleInput) (*domain.Role, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrValidation)
	}
	if !in.Scope.Valid() {
		return nil, fmt.Errorf("%w: scope must be GLOBAL or TENANT", ErrValidation)
	}
	switch in.Scope {
	case domain.ScopeGlobal:
		if in.TenantID != nil {
			return nil, fmt.Errorf("%w: GLOBAL scope must not carry a tenant", ErrValidation)
		}
	case domain.ScopeTenant:
		if in.TenantID != nil {
			if _, err := s.tenants.FindByID(*in.TenantID); err != nil {
				if errors.Is(err, repository.ErrTenantNotFound) {
					return nil, fmt.Errorf("%w: tenant %d does not exist", ErrValidation, *in.TenantID)
				}
				return nil, err
			}
		}
	}

	if _, err := s.roles.FindByNameScope(name, in.Scope, in.TenantID); err == nil {
		return nil, fmt.Errorf("%w: role %q in scope %s", ErrConflict, name, in.Scope)
	} else if !errors.Is(err, repository.ErrRoleNotFound) {
		return nil, err
	}

	role := &domain.Role{
		Name:        name,
		DisplayName: strings.TrimSpace(in.DisplayName),
		Description: strings.TrimSpace(in.Description),
		Scope:       in.Scope,
		TenantID:    in.TenantID,
		IsActive:    true,
	}
	if err := s.validateGrants(role, in.PermissionIDs); err != nil {
		return nil, err
	}
	// Role and initial grants land in one transaction; a failure must not
	// leave a bare role behind.
	if err := s.roles.CreateWithGrants(role, dedupeIDs(in.PermissionIDs), 0); err != nil {
		return nil, err
	}
	return s.roles.FindByID(role.ID)
}

func (s *roleService) Update(id uint, in UpdateRoleInput) (*domain.Role, error) {
	existing, err := s.roles.FindByID(id)
	if err != nil {
		return nil, err
	}
	if existing.IsSystemRole {
		return nil, ErrSystemRoleProtected
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrValidation)
	}
	existing.Name = name
	existing.DisplayName = strings.TrimSpace(in.DisplayName)
	existing.Description = strings.TrimSpace(in.Description)
	existing.IsActive = in.IsActive
	if err := s.roles.Update(existing); err != nil {
		return nil, err
	}
	return s.roles.FindByID(id)
}

func (s *roleService) Delete(id uint) error {
	existing, err := s.roles.FindByID(id)
	if err != nil {
		return err
	}
	if existing.IsSystemRole {
		return ErrSystemRoleProtected
	}
	return s.roles.DeleteByID(id)
}

func (s *roleService) GetByID(id uint) (*domain.Role, error) {
	return s.roles.FindByID(id)
}

func (s *roleService) List() ([]domain.Role, error) {
	return s.roles.List()
}

func (s *roleService) AssignPermissions(roleID uint, permissionIDs []uint, grantedBy uint) error {
	role, err := s.roles.FindByID(roleID)
	if err != nil {
		return err
	}
	if role.IsSystemRole {
		return ErrSystemRoleProtected
	}

	if err := s.validateGrants(role, permissionIDs); err != nil {
		return err
	}
	return s.roles.ReplacePermissions(roleID, permissionIDs, grantedBy)
}

// validateGrants checks that every permission id exists and is compatible
// with the role's scope before anything is written.
func (s *roleService) validateGrants(role *domain.Role, permissionIDs []uint) error {
	if len(permissionIDs) == 0 {
		return nil
	}
	perms, err := s.permissions.FindByIDs(dedupeIDs(permissionIDs))
	if err != nil {
		return err
	}
	found := make(map[uint]domain.Permission, len(perms))
	for _, p := range perms {
		found[p.ID] = p
	}
	for _, pid := range permissionIDs {
		p, ok := found[pid]
		if !ok {
			return fmt.Errorf("%w: permission %d does not exist", ErrValidation, pid)
		}
		if err := checkGrantCompatible(role, p); err != nil {
			return err
		}
	}
	return nil
}

// checkGrantCompatible rejects grants that would leak across scope or tenant
// boundaries. GLOBAL permissions may be granted to any role; TENANT
// permissions only to a TENANT role bound to the same tenant.
func checkGrantCompatible(role *domain.Role, perm domain.Permission) error {
	if perm.Scope == domain.ScopeGlobal {
		return nil
	}
	if role.Scope != domain.ScopeTenant {
		return fmt.Errorf("%w: tenant permission %d cannot be granted to a global role", ErrValidation, perm.ID)
	}
	if role.TenantID == nil || perm.TenantID == nil || *role.TenantID != *perm.TenantID {
		return fmt.Errorf("%w: permission %d belongs to a different tenant", ErrValidation, perm.ID)
	}
	return nil
}

func (s *roleService) GetRolePermissions(roleID uint) ([]domain.Permission, error) {
	if _, err := s.roles.FindByID(roleID); err != nil {
		return nil, err
	}
	return s.roles.FindRolePermissions(roleID)
}

func dedupeIDs(ids []uint) []uint {
	seen := make(map[uint]struct{}, len(ids))
	out := make([]uint, 0, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
