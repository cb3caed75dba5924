package service

import (
	"context"
	"errors"
	"log/slog"
	"sort"

	"go-tenant-rbac-service/internal/domain"
	"go-tenant-rbac-service/internal/observability"
	"go-tenant-rbac-service/internal/repository"
)

// AccessService resolves the effective permission set of a user and answers
// point checks against it. Resolution is read-time only; nothing is cached
// between calls, so role and grant changes take effect immediately.
type AccessService interface {
	// ResolvePermissions returns the deduplicated, sorted "resource:action"
	// keys a user holds. With a tenant id the set is the user's global
	// permissions plus the tenant permissions of their membership role in
	// that tenant. Without one the tenant portions of every membership are
	// aggregated.
	ResolvePermissions(ctx context.Context, userID uint, tenantID *uint) ([]string, error)

	// HasPermission reports whether the resolved set contains exactly
	// resource:action. No wildcard or prefix semantics.
	HasPermission(ctx context.Context, userID uint, tenantID *uint, resource, action string) (bool, error)
}

type accessService struct {
	users       repository.UserRepository
	roles       repository.RoleRepository
	permissions repository.PermissionRepository
	memberships repository.MembershipRepository
}

func NewAccessService(
	users repository.UserRepository,
	roles repository.RoleRepository,
	permissions repository.PermissionRepository,
	memberships repository.MembershipRepository,
) AccessService {
	return &accessService{users: users, roles: roles, permissions: permissions, memberships: memberships}
}

func (s *accessService) ResolvePermissions(ctx context.Context, userID uint, tenantID *uint) ([]string, error) {
	scope := "aggregate"
	if tenantID != nil {
		scope = "tenant"
	}

	keys := make(map[string]struct{})

	globalRoleIDs, err := s.users.ActiveGlobalRoleIDs(userID)
	if err != nil {
		observability.RecordPermissionResolution(ctx, scope, "error")
		return nil, err
	}
	globalPerms, err := s.permissions.FindActiveByRoleIDs(globalRoleIDs)
	if err != nil {
		observability.RecordPermissionResolution(ctx, scope, "error")
		return nil, err
	}
	for _, p := range globalPerms {
		if p.Scope == domain.ScopeGlobal {
			keys[p.Key()] = struct{}{}
		}
	}

	degraded := false
	if tenantID != nil {
		degraded, err = s.collectTenantPermissions(ctx, userID, *tenantID, keys)
	} else {
		degraded, err = s.collectAggregatePermissions(ctx, userID, keys)
	}
	if err != nil {
		observability.RecordPermissionResolution(ctx, scope, "error")
		return nil, err
	}

	out := make([]string, 0, len(keys))
	for k := range keys {
		out = append(out, k)
	}
	sort.Strings(out)

	outcome := "success"
	if degraded {
		outcome = "degraded"
	}
	observability.RecordPermissionResolution(ctx, scope, outcome)
	return out, nil
}

// collectTenantPermissions adds the tenant portion for one tenant. A broken
// membership lookup degrades the result to global-only instead of failing the
// whole resolution.
func (s *accessService) collectTenantPermissions(ctx context.Context, userID, tenantID uint, keys map[string]struct{}) (bool, error) {
	membership, err := s.memberships.FindByUserAndTenant(userID, tenantID)
	if errors.Is(err, repository.ErrMembershipNotFound) {
		return false, nil
	}
	if err != nil {
		slog.WarnContext(ctx, "tenant membership lookup failed, resolving global permissions only",
			"user_id", userID, "tenant_id", tenantID, "error", err)
		return true, nil
	}
	return false, s.addMembershipPermissions(*membership, keys)
}

func (s *accessService) collectAggregatePermissions(ctx context.Context, userID uint, keys map[string]struct{}) (bool, error) {
	memberships, err := s.memberships.ListByUser(userID)
	if err != nil {
		slog.WarnContext(ctx, "membership listing failed, resolving global permissions only",
			"user_id", userID, "error", err)
		return true, nil
	}
	for _, m := range memberships {
		if err := s.addMembershipPermissions(m, keys); err != nil {
			return false, err
		}
	}
	return false, nil
}

func (s *accessService) addMembershipPermissions(m domain.UserTenant, keys map[string]struct{}) error {
	roles, err := s.roles.FindByIDs([]uint{m.RoleID})
	if err != nil {
		return err
	}
	if len(roles) == 0 || !roles[0].IsActive {
		return nil
	}
	perms, err := s.permissions.FindActiveByRoleIDs([]uint{m.RoleID})
	if err != nil {
		return err
	}
	for _, p := range perms {
		switch p.Scope {
		case domain.ScopeGlobal:
			keys[p.Key()] = struct{}{}
		case domain.ScopeTenant:
			if p.InTenant(m.TenantID) {
				keys[p.Key()] = struct{}{}
			}
		}
	}
	return nil
}

func (s *accessService) HasPermission(ctx context.Context, userID uint, tenantID *uint, resource, action string) (bool, error) {
	perms, err := s.ResolvePermissions(ctx, userID, tenantID)
	if err != nil {
		observability.RecordAccessDecision(ctx, "error")
		return false, err
	}
	want := resource + ":" + action
	for _, p := range perms {
		if p == want {
			observability.RecordAccessDecision(ctx, "allow")
			return true, nil
		}
	}
	observability.RecordAccessDecision(ctx, "deny")
	return false, nil
}
