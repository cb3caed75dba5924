package service

import (
	"errors"
	"fmt"
	"net/mail"
	"sort"
	"strings"

	"go-tenant-rbac-service/internal/domain"
	"go-tenant-rbac-service/internal/repository"
	"go-tenant-rbac-service/internal/security"
)

type CreateUserInput struct {
	Email    string
	Name     string
	Password string
}

type UpdateUserInput struct {
	Name   string
	Status string
}

type UserService interface {
	Create(in CreateUserInput) (*domain.User, error)
	// GetByID returns the user plus the deduplicated permission keys of
	// their global roles.
	GetByID(id uint) (*domain.User, []string, error)
	Update(id uint, in UpdateUserInput) (*domain.User, error)
	Delete(id uint) error
	List() ([]domain.User, error)
	ListPaged(q repository.UserListQuery) (repository.PageResult[domain.User], error)
	// SetRoles replaces the user's global role bindings. Only GLOBAL scoped
	// roles are bindable here; tenant roles travel through memberships.
	SetRoles(userID uint, roleIDs []uint) error
	AddRole(userID, roleID uint) error
}

type userService struct {
	users repository.UserRepository
	roles repository.RoleRepository
}

func NewUserService(users repository.UserRepository, roles repository.RoleRepository) UserService {
	return &userService{users: users, roles: roles}
}

var userStatuses = map[string]struct{}{"active": {}, "suspended": {}, "deactivated": {}}

func (s *userService) Create(in CreateUserInput) (*domain.User, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, fmt.Errorf("%w: invalid email", ErrValidation)
	}
	if strings.TrimSpace(in.Name) == "" {
		return nil, fmt.Errorf("%w: name is required", ErrValidation)
	}
	if in.Password != "" && len(in.Password) < 8 {
		return nil, fmt.Errorf("%w: password must be at least 8 characters", ErrValidation)
	}

	if _, err := s.users.FindByEmail(email); err == nil {
		return nil, fmt.Errorf("%w: user %q", ErrConflict, email)
	} else if !errors.Is(err, repository.ErrUserNotFound) {
		return nil, err
	}

	user := &domain.User{Email: email, Name: strings.TrimSpace(in.Name), Status: "active"}
	if err := s.users.Create(user); err != nil {
		return nil, err
	}
	if in.Password != "" {
		hash, err := security.HashPassword(in.Password)
		if err != nil {
			return nil, err
		}
		if err := s.users.UpsertCredential(&domain.LocalCredential{UserID: user.ID, PasswordHash: hash}); err != nil {
			return nil, err
		}
	}
	return user, nil
}

func (s *userService) GetByID(id uint) (*domain.User, []string, error) {
	user, err := s.users.FindByID(id)
	if err != nil {
		return nil, nil, err
	}
	seen := make(map[string]struct{})
	for _, role := range user.Roles {
		if !role.IsActive {
			continue
		}
		for _, p := range role.Permissions {
			if p.IsActive {
				seen[p.Key()] = struct{}{}
			}
		}
	}
	perms := make([]string, 0, len(seen))
	for k := range seen {
		perms = append(perms, k)
	}
	sort.Strings(perms)
	return user, perms, nil
}

func (s *userService) Update(id uint, in UpdateUserInput) (*domain.User, error) {
	existing, err := s.users.FindByID(id)
	if err != nil {
		return nil, err
	}
	status := strings.TrimSpace(in.Status)
	if _, ok := userStatuses[status]; !ok {
		return nil, fmt.Errorf("%w: unknown status %q", ErrValidation, status)
	}
	existing.Name = strings.TrimSpace(in.Name)
	existing.Status = status
	if err := s.users.Update(existing); err != nil {
		return nil, err
	}
	return s.users.FindByID(id)
}

func (s *userService) Delete(id uint) error {
	return s.users.DeleteByID(id)
}

func (s *userService) List() ([]domain.User, error) {
	return s.users.List()
}

func (s *userService) ListPaged(q repository.UserListQuery) (repository.PageResult[domain.User], error) {
	return s.users.ListPaged(q)
}

func (s *userService) SetRoles(userID uint, roleIDs []uint) error {
	ids := dedupeIDs(roleIDs)
	if len(ids) > 0 {
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
			if role.Scope != domain.ScopeGlobal {
				return fmt.Errorf("%w: role %d is not GLOBAL scoped", ErrValidation, id)
			}
		}
	}
	return s.users.SetRoles(userID, ids)
}

func (s *userService) AddRole(userID, roleID uint) error {
	roles, err := s.roles.FindByIDs([]uint{roleID})
	if err != nil {
		return err
	}
	if len(roles) == 0 {
		return fmt.Errorf("%w: role %d does not exist", ErrValidation, roleID)
	}
	if roles[0].Scope != domain.ScopeGlobal {
		return fmt.Errorf("%w: role %d is not GLOBAL scoped", ErrValidation, roleID)
	}
	return s.users.AddRole(userID, roleID)
}
