package service

import (
	"context"
	"errors"
	"testing"

	"go-tenant-rbac-service/internal/domain"
	"go-tenant-rbac-service/internal/repository"
)

func activeTenantRepo() *stubTenantRepository {
	return &stubTenantRepository{
		findByIDFn: func(id uint) (*domain.Tenant, error) { return &domain.Tenant{ID: id, IsActive: true}, nil },
	}
}

func TestTenantServiceAssignRolesValidation(t *testing.T) {
	roles := &stubRoleRepository{
		findByIDsFn: func(_ []uint) ([]domain.Role, error) {
			return []domain.Role{
				{ID: 1, Name: "global", Scope: domain.ScopeGlobal, IsActive: true},
			}, nil
		},
	}
	svc := NewTenantService(activeTenantRepo(), roles, &stubUserRepository{}, &stubMembershipRepository{}, nil)

	if err := svc.AssignRoles(1, nil); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error for empty role set, got %v", err)
	}
	if err := svc.AssignRoles(1, []uint{1}); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error for global role, got %v", err)
	}
	if err := svc.AssignRoles(1, []uint{1, 2}); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error for unknown role, got %v", err)
	}
}

func TestTenantServiceAssignRolesRejectsSystemRole(t *testing.T) {
	roles := &stubRoleRepository{
		findByIDsFn: func(_ []uint) ([]domain.Role, error) {
			return []domain.Role{{ID: 1, Name: "admin", Scope: domain.ScopeTenant, IsSystemRole: true, IsActive: true}}, nil
		},
		bindTenantFn: func(_ uint, _ []uint) error { t.Fatal("bind must not reach repository"); return nil },
	}
	svc := NewTenantService(activeTenantRepo(), roles, &stubUserRepository{}, &stubMembershipRepository{}, nil)

	if err := svc.AssignRoles(1, []uint{1}); !errors.Is(err, ErrSystemRoleProtected) {
		t.Fatalf("expected ErrSystemRoleProtected, got %v", err)
	}
}

func TestTenantServiceAssignRolesBindsValidSet(t *testing.T) {
	var boundTenant uint
	var boundRoles []uint
	roles := &stubRoleRepository{
		findByIDsFn: func(_ []uint) ([]domain.Role, error) {
			return []domain.Role{
				{ID: 5, Name: "viewer", Scope: domain.ScopeTenant, IsActive: true},
				{ID: 7, Name: "editor", Scope: domain.ScopeTenant, IsActive: true},
			}, nil
		},
		bindTenantFn: func(tenantID uint, roleIDs []uint) error {
			boundTenant = tenantID
			boundRoles = roleIDs
			return nil
		},
	}
	svc := NewTenantService(activeTenantRepo(), roles, &stubUserRepository{}, &stubMembershipRepository{}, nil)

	if err := svc.AssignRoles(3, []uint{5, 7, 5}); err != nil {
		t.Fatalf("assign roles: %v", err)
	}
	if boundTenant != 3 {
		t.Fatalf("expected tenant 3, got %d", boundTenant)
	}
	if len(boundRoles) != 2 {
		t.Fatalf("expected deduplicated role ids, got %v", boundRoles)
	}
}

func TestTenantServiceAssignUserValidatesRoleAvailability(t *testing.T) {
	users := &stubUserRepository{
		findByIDFn: func(id uint) (*domain.User, error) { return &domain.User{ID: id, Status: "active"}, nil },
	}
	roles := &stubRoleRepository{
		findByIDsFn: func(_ []uint) ([]domain.Role, error) {
			return []domain.Role{{ID: 9, Name: "other-viewer", Scope: domain.ScopeTenant, TenantID: uintPtr(99), IsActive: true}}, nil
		},
	}
	svc := NewTenantService(activeTenantRepo(), roles, users, &stubMembershipRepository{}, nil)

	if _, err := svc.AssignUser(1, 3, 9, false); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error for foreign tenant role, got %v", err)
	}
}

func TestTenantServiceAssignUserUpserts(t *testing.T) {
	users := &stubUserRepository{
		findByIDFn: func(id uint) (*domain.User, error) { return &domain.User{ID: id, Status: "active"}, nil },
	}
	roles := &stubRoleRepository{
		findByIDsFn: func(_ []uint) ([]domain.Role, error) {
			return []domain.Role{{ID: 9, Name: "viewer", Scope: domain.ScopeTenant, TenantID: uintPtr(3), IsActive: true}}, nil
		},
	}
	var upserted *domain.UserTenant
	memberships := &stubMembershipRepository{
		upsertFn: func(m *domain.UserTenant) error {
			upserted = m
			return nil
		},
		findByUserAndTenantFn: func(userID, tenantID uint) (*domain.UserTenant, error) {
			return &domain.UserTenant{UserID: userID, TenantID: tenantID, RoleID: 9, IsPrimary: true}, nil
		},
	}
	svc := NewTenantService(activeTenantRepo(), roles, users, memberships, nil)

	got, err := svc.AssignUser(1, 3, 9, true)
	if err != nil {
		t.Fatalf("assign user: %v", err)
	}
	if upserted == nil || upserted.UserID != 1 || upserted.TenantID != 3 || upserted.RoleID != 9 || !upserted.IsPrimary {
		t.Fatalf("unexpected upsert input: %+v", upserted)
	}
	if got == nil || !got.IsPrimary {
		t.Fatalf("unexpected membership: %+v", got)
	}
}

func TestTenantServiceCreateDuplicateConflict(t *testing.T) {
	tenants := &stubTenantRepository{
		findByNameFn: func(name string) (*domain.Tenant, error) { return &domain.Tenant{ID: 1, Name: name}, nil },
	}
	svc := NewTenantService(tenants, &stubRoleRepository{}, &stubUserRepository{}, &stubMembershipRepository{}, nil)

	if _, err := svc.Create(CreateTenantInput{Name: "acme"}); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestTenantServiceLogoURLWithoutLogo(t *testing.T) {
	tenants := &stubTenantRepository{
		findByIDFn: func(id uint) (*domain.Tenant, error) { return &domain.Tenant{ID: id, IsActive: true}, nil },
	}
	svc := NewTenantService(tenants, &stubRoleRepository{}, &stubUserRepository{}, &stubMembershipRepository{}, nil)

	if _, err := svc.LogoURL(context.Background(), 1); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error for missing logo, got %v", err)
	}
}

func TestTenantServiceRemoveUserPropagatesNotFound(t *testing.T) {
	memberships := &stubMembershipRepository{
		deleteFn: func(_, _ uint) error { return repository.ErrMembershipNotFound },
	}
	svc := NewTenantService(activeTenantRepo(), &stubRoleRepository{}, &stubUserRepository{}, memberships, nil)

	if err := svc.RemoveUser(1, 2); !errors.Is(err, repository.ErrMembershipNotFound) {
		t.Fatalf("expected ErrMembershipNotFound, got %v", err)
	}
}
