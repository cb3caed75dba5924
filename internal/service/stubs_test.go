package service

import (
	"errors"
	"time"

	"go-tenant-rbac-service/internal/domain"
	"go-tenant-rbac-service/internal/repository"
)

var errNotImplemented = errors.New("not implemented")

type stubUserRepository struct {
	findByIDFn            func(id uint) (*domain.User, error)
	findByEmailFn         func(email string) (*domain.User, error)
	createFn              func(user *domain.User) error
	listFn                func() ([]domain.User, error)
	setRolesFn            func(userID uint, roleIDs []uint) error
	addRoleFn             func(userID, roleID uint) error
	activeGlobalRoleIDsFn func(userID uint) ([]uint, error)
	upsertCredentialFn    func(cred *domain.LocalCredential) error
	findCredentialFn      func(userID uint) (*domain.LocalCredential, error)
}

func (s *stubUserRepository) List() ([]domain.User, error) {
	if s.listFn == nil {
		return nil, errNotImplemented
	}
	return s.listFn()
}

func (s *stubUserRepository) ListPaged(_ repository.UserListQuery) (repository.PageResult[domain.User], error) {
	return repository.PageResult[domain.User]{}, errNotImplemented
}

func (s *stubUserRepository) FindByID(id uint) (*domain.User, error) {
	if s.findByIDFn == nil {
		return nil, errNotImplemented
	}
	return s.findByIDFn(id)
}

func (s *stubUserRepository) FindByEmail(email string) (*domain.User, error) {
	if s.findByEmailFn == nil {
		return nil, errNotImplemented
	}
	return s.findByEmailFn(email)
}

func (s *stubUserRepository) Create(user *domain.User) error {
	if s.createFn == nil {
		return errNotImplemented
	}
	return s.createFn(user)
}

func (s *stubUserRepository) Update(_ *domain.User) error { return errNotImplemented }

func (s *stubUserRepository) DeleteByID(_ uint) error { return errNotImplemented }

func (s *stubUserRepository) AddRole(userID, roleID uint) error {
	if s.addRoleFn == nil {
		return errNotImplemented
	}
	return s.addRoleFn(userID, roleID)
}

func (s *stubUserRepository) SetRoles(userID uint, roleIDs []uint) error {
	if s.setRolesFn == nil {
		return errNotImplemented
	}
	return s.setRolesFn(userID, roleIDs)
}

func (s *stubUserRepository) ActiveGlobalRoleIDs(userID uint) ([]uint, error) {
	if s.activeGlobalRoleIDsFn == nil {
		return nil, errNotImplemented
	}
	return s.activeGlobalRoleIDsFn(userID)
}

func (s *stubUserRepository) UpsertCredential(cred *domain.LocalCredential) error {
	if s.upsertCredentialFn == nil {
		return errNotImplemented
	}
	return s.upsertCredentialFn(cred)
}

func (s *stubUserRepository) FindCredential(userID uint) (*domain.LocalCredential, error) {
	if s.findCredentialFn == nil {
		return nil, errNotImplemented
	}
	return s.findCredentialFn(userID)
}

type stubRoleRepository struct {
	listFn                func() ([]domain.Role, error)
	findByIDFn            func(id uint) (*domain.Role, error)
	findByIDsFn           func(ids []uint) ([]domain.Role, error)
	findByNameScopeFn     func(name string, scope domain.Scope, tenantID *uint) (*domain.Role, error)
	createFn              func(role *domain.Role) error
	createWithGrantsFn    func(role *domain.Role, permissionIDs []uint, grantedBy uint) error
	updateFn              func(role *domain.Role) error
	deleteByIDFn          func(id uint) error
	replacePermissionsFn  func(roleID uint, permissionIDs []uint, grantedBy uint) error
	findRolePermissionsFn func(roleID uint) ([]domain.Permission, error)
	bindTenantFn          func(tenantID uint, roleIDs []uint) error
}

func (s *stubRoleRepository) List() ([]domain.Role, error) {
	if s.listFn == nil {
		return nil, errNotImplemented
	}
	return s.listFn()
}

func (s *stubRoleRepository) FindByID(id uint) (*domain.Role, error) {
	if s.findByIDFn == nil {
		return nil, errNotImplemented
	}
	return s.findByIDFn(id)
}

func (s *stubRoleRepository) FindByIDs(ids []uint) ([]domain.Role, error) {
	if s.findByIDsFn == nil {
		return nil, errNotImplemented
	}
	return s.findByIDsFn(ids)
}

func (s *stubRoleRepository) FindByNameScope(name string, scope domain.Scope, tenantID *uint) (*domain.Role, error) {
	if s.findByNameScopeFn == nil {
		return nil, repository.ErrRoleNotFound
	}
	return s.findByNameScopeFn(name, scope, tenantID)
}

func (s *stubRoleRepository) Create(role *domain.Role) error {
	if s.createFn == nil {
		return errNotImplemented
	}
	return s.createFn(role)
}

func (s *stubRoleRepository) CreateWithGrants(role *domain.Role, permissionIDs []uint, grantedBy uint) error {
	if s.createWithGrantsFn == nil {
		return errNotImplemented
	}
	return s.createWithGrantsFn(role, permissionIDs, grantedBy)
}

func (s *stubRoleRepository) Update(role *domain.Role) error {
	if s.updateFn == nil {
		return errNotImplemented
	}
	return s.updateFn(role)
}

func (s *stubRoleRepository) DeleteByID(id uint) error {
	if s.deleteByIDFn == nil {
		return errNotImplemented
	}
	return s.deleteByIDFn(id)
}

func (s *stubRoleRepository) ReplacePermissions(roleID uint, permissionIDs []uint, grantedBy uint) error {
	if s.replacePermissionsFn == nil {
		return errNotImplemented
	}
	return s.replacePermissionsFn(roleID, permissionIDs, grantedBy)
}

func (s *stubRoleRepository) FindRolePermissions(roleID uint) ([]domain.Permission, error) {
	if s.findRolePermissionsFn == nil {
		return nil, errNotImplemented
	}
	return s.findRolePermissionsFn(roleID)
}

func (s *stubRoleRepository) BindTenant(tenantID uint, roleIDs []uint) error {
	if s.bindTenantFn == nil {
		return errNotImplemented
	}
	return s.bindTenantFn(tenantID, roleIDs)
}

type stubPermissionRepository struct {
	listFn                func() ([]domain.Permission, error)
	findByIDFn            func(id uint) (*domain.Permission, error)
	findByIDsFn           func(ids []uint) ([]domain.Permission, error)
	findByNameScopeFn     func(name string, scope domain.Scope, tenantID *uint) (*domain.Permission, error)
	createFn              func(perm *domain.Permission) error
	updateFn              func(perm *domain.Permission) error
	deleteByIDFn          func(id uint) error
	findActiveByRoleIDsFn func(roleIDs []uint) ([]domain.Permission, error)
}

func (s *stubPermissionRepository) List() ([]domain.Permission, error) {
	if s.listFn == nil {
		return nil, errNotImplemented
	}
	return s.listFn()
}

func (s *stubPermissionRepository) ListPaged(_ repository.PermissionListQuery) (repository.PageResult[domain.Permission], error) {
	return repository.PageResult[domain.Permission]{}, errNotImplemented
}

func (s *stubPermissionRepository) FindByID(id uint) (*domain.Permission, error) {
	if s.findByIDFn == nil {
		return nil, errNotImplemented
	}
	return s.findByIDFn(id)
}

func (s *stubPermissionRepository) FindByIDs(ids []uint) ([]domain.Permission, error) {
	if s.findByIDsFn == nil {
		return nil, errNotImplemented
	}
	return s.findByIDsFn(ids)
}

func (s *stubPermissionRepository) FindByNameScope(name string, scope domain.Scope, tenantID *uint) (*domain.Permission, error) {
	if s.findByNameScopeFn == nil {
		return nil, repository.ErrPermissionNotFound
	}
	return s.findByNameScopeFn(name, scope, tenantID)
}

func (s *stubPermissionRepository) Create(perm *domain.Permission) error {
	if s.createFn == nil {
		return errNotImplemented
	}
	return s.createFn(perm)
}

func (s *stubPermissionRepository) Update(perm *domain.Permission) error {
	if s.updateFn == nil {
		return errNotImplemented
	}
	return s.updateFn(perm)
}

func (s *stubPermissionRepository) DeleteByID(id uint) error {
	if s.deleteByIDFn == nil {
		return errNotImplemented
	}
	return s.deleteByIDFn(id)
}

func (s *stubPermissionRepository) FindActiveByRoleIDs(roleIDs []uint) ([]domain.Permission, error) {
	if s.findActiveByRoleIDsFn == nil {
		return nil, errNotImplemented
	}
	return s.findActiveByRoleIDsFn(roleIDs)
}

type stubTenantRepository struct {
	findByIDFn   func(id uint) (*domain.Tenant, error)
	findByNameFn func(name string) (*domain.Tenant, error)
	createFn     func(tenant *domain.Tenant) error
	setLogoFn    func(id uint, objectKey string) error
}

func (s *stubTenantRepository) List() ([]domain.Tenant, error) { return nil, errNotImplemented }

func (s *stubTenantRepository) ListPaged(_ repository.TenantListQuery) (repository.PageResult[domain.Tenant], error) {
	return repository.PageResult[domain.Tenant]{}, errNotImplemented
}

func (s *stubTenantRepository) FindByID(id uint) (*domain.Tenant, error) {
	if s.findByIDFn == nil {
		return nil, errNotImplemented
	}
	return s.findByIDFn(id)
}

func (s *stubTenantRepository) FindByName(name string) (*domain.Tenant, error) {
	if s.findByNameFn == nil {
		return nil, repository.ErrTenantNotFound
	}
	return s.findByNameFn(name)
}

func (s *stubTenantRepository) Create(tenant *domain.Tenant) error {
	if s.createFn == nil {
		return errNotImplemented
	}
	return s.createFn(tenant)
}

func (s *stubTenantRepository) Update(_ *domain.Tenant) error { return errNotImplemented }

func (s *stubTenantRepository) DeleteByID(_ uint) error { return errNotImplemented }

func (s *stubTenantRepository) SetLogoObjectKey(id uint, objectKey string) error {
	if s.setLogoFn == nil {
		return errNotImplemented
	}
	return s.setLogoFn(id, objectKey)
}

type stubMembershipRepository struct {
	upsertFn              func(m *domain.UserTenant) error
	listByUserFn          func(userID uint) ([]domain.UserTenant, error)
	listByTenantFn        func(tenantID uint) ([]domain.UserTenant, error)
	findByUserAndTenantFn func(userID, tenantID uint) (*domain.UserTenant, error)
	deleteFn              func(userID, tenantID uint) error
}

func (s *stubMembershipRepository) Upsert(m *domain.UserTenant) error {
	if s.upsertFn == nil {
		return errNotImplemented
	}
	return s.upsertFn(m)
}

func (s *stubMembershipRepository) ListByUser(userID uint) ([]domain.UserTenant, error) {
	if s.listByUserFn == nil {
		return nil, errNotImplemented
	}
	return s.listByUserFn(userID)
}

func (s *stubMembershipRepository) ListByTenant(tenantID uint) ([]domain.UserTenant, error) {
	if s.listByTenantFn == nil {
		return nil, errNotImplemented
	}
	return s.listByTenantFn(tenantID)
}

func (s *stubMembershipRepository) FindByUserAndTenant(userID, tenantID uint) (*domain.UserTenant, error) {
	if s.findByUserAndTenantFn == nil {
		return nil, repository.ErrMembershipNotFound
	}
	return s.findByUserAndTenantFn(userID, tenantID)
}

func (s *stubMembershipRepository) Delete(userID, tenantID uint) error {
	if s.deleteFn == nil {
		return errNotImplemented
	}
	return s.deleteFn(userID, tenantID)
}

type stubSessionRepository struct {
	createFn           func(session *domain.Session) error
	findActiveByHashFn func(hash string, now time.Time) (*domain.Session, error)
	revokeByHashFn     func(hash string, now time.Time) error
	revokeAllForUserFn func(userID uint, now time.Time) (int64, error)
}

func (s *stubSessionRepository) Create(session *domain.Session) error {
	if s.createFn == nil {
		return errNotImplemented
	}
	return s.createFn(session)
}

func (s *stubSessionRepository) FindActiveByHash(hash string, now time.Time) (*domain.Session, error) {
	if s.findActiveByHashFn == nil {
		return nil, errNotImplemented
	}
	return s.findActiveByHashFn(hash, now)
}

func (s *stubSessionRepository) RevokeByHash(hash string, now time.Time) error {
	if s.revokeByHashFn == nil {
		return errNotImplemented
	}
	return s.revokeByHashFn(hash, now)
}

func (s *stubSessionRepository) RevokeAllForUser(userID uint, now time.Time) (int64, error) {
	if s.revokeAllForUserFn == nil {
		return 0, errNotImplemented
	}
	return s.revokeAllForUserFn(userID, now)
}

func (s *stubSessionRepository) DeleteExpired(_ time.Time) (int64, error) {
	return 0, errNotImplemented
}

func uintPtr(v uint) *uint { return &v }
