package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go-tenant-rbac-service/internal/domain"
	"go-tenant-rbac-service/internal/observability"
	"go-tenant-rbac-service/internal/repository"
	"go-tenant-rbac-service/internal/security"
)

type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}

type AuthService interface {
	// Login verifies the local credential and opens a refresh session.
	Login(ctx context.Context, email, password, userAgent, ip string) (*domain.User, *TokenPair, error)
	// Refresh rotates the session: the presented refresh token is revoked
	// and a fresh pair is issued. A replayed token revokes every session of
	// the user.
	Refresh(ctx context.Context, rawRefreshToken, userAgent, ip string) (*domain.User, *TokenPair, error)
	Logout(ctx context.Context, rawRefreshToken string) error
	LogoutAll(ctx context.Context, userID uint) (int64, error)
}

type authService struct {
	users    repository.UserRepository
	sessions repository.SessionRepository
	access   AccessService
	jwt      *security.JWTManager

	accessTTL  time.Duration
	refreshTTL time.Duration
	pepper     string
	now        func() time.Time
}

func NewAuthService(
	users repository.UserRepository,
	sessions repository.SessionRepository,
	access AccessService,
	jwt *security.JWTManager,
	accessTTL, refreshTTL time.Duration,
	pepper string,
) AuthService {
	return &authService{
		users:      users,
		sessions:   sessions,
		access:     access,
		jwt:        jwt,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		pepper:     pepper,
		now:        time.Now,
	}
}

func (s *authService) Login(ctx context.Context, email, password, userAgent, ip string) (*domain.User, *TokenPair, error) {
	user, err := s.users.FindByEmail(email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			observability.RecordAuthEvent(ctx, "login", "denied")
			return nil, nil, ErrInvalidCredentials
		}
		observability.RecordAuthEvent(ctx, "login", "error")
		return nil, nil, err
	}
	if user.Status != "active" {
		observability.RecordAuthEvent(ctx, "login", "denied")
		return nil, nil, ErrInvalidCredentials
	}
	cred, err := s.users.FindCredential(user.ID)
	if err != nil {
		if errors.Is(err, repository.ErrCredentialNotFound) {
			observability.RecordAuthEvent(ctx, "login", "denied")
			return nil, nil, ErrInvalidCredentials
		}
		observability.RecordAuthEvent(ctx, "login", "error")
		return nil, nil, err
	}
	if !security.CheckPassword(cred.PasswordHash, password) {
		observability.RecordAuthEvent(ctx, "login", "denied")
		return nil, nil, ErrInvalidCredentials
	}

	pair, err := s.openSession(ctx, user, userAgent, ip)
	if err != nil {
		observability.RecordAuthEvent(ctx, "login", "error")
		return nil, nil, err
	}
	observability.RecordAuthEvent(ctx, "login", "success")
	return user, pair, nil
}

func (s *authService) Refresh(ctx context.Context, rawRefreshToken, userAgent, ip string) (*domain.User, *TokenPair, error) {
	claims, err := s.jwt.ParseRefreshToken(rawRefreshToken)
	if err != nil {
		observability.RecordAuthEvent(ctx, "refresh", "denied")
		return nil, nil, fmt.Errorf("%w: %v", ErrSessionInvalid, err)
	}
	userID, err := claims.SubjectUserID()
	if err != nil {
		observability.RecordAuthEvent(ctx, "refresh", "denied")
		return nil, nil, fmt.Errorf("%w: %v", ErrSessionInvalid, err)
	}

	hash := security.HashRefreshToken(rawRefreshToken, s.pepper)
	now := s.now().UTC()
	session, err := s.sessions.FindActiveByHash(hash, now)
	if err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			// A valid JWT with no live session means the token was already
			// rotated or revoked. Treat it as replay and cut every session.
			_, _ = s.sessions.RevokeAllForUser(userID, now)
			observability.RecordAuthEvent(ctx, "refresh", "replay")
			return nil, nil, ErrSessionInvalid
		}
		observability.RecordAuthEvent(ctx, "refresh", "error")
		return nil, nil, err
	}
	if session.UserID != userID {
		observability.RecordAuthEvent(ctx, "refresh", "denied")
		return nil, nil, ErrSessionInvalid
	}

	user, err := s.users.FindByID(userID)
	if err != nil {
		observability.RecordAuthEvent(ctx, "refresh", "error")
		return nil, nil, err
	}
	if user.Status != "active" {
		observability.RecordAuthEvent(ctx, "refresh", "denied")
		return nil, nil, ErrSessionInvalid
	}

	if err := s.sessions.RevokeByHash(hash, now); err != nil {
		observability.RecordAuthEvent(ctx, "refresh", "error")
		return nil, nil, err
	}
	pair, err := s.openSession(ctx, user, userAgent, ip)
	if err != nil {
		observability.RecordAuthEvent(ctx, "refresh", "error")
		return nil, nil, err
	}
	observability.RecordAuthEvent(ctx, "refresh", "success")
	return user, pair, nil
}

func (s *authService) Logout(ctx context.Context, rawRefreshToken string) error {
	hash := security.HashRefreshToken(rawRefreshToken, s.pepper)
	err := s.sessions.RevokeByHash(hash, s.now().UTC())
	if err != nil && !errors.Is(err, repository.ErrSessionNotFound) {
		observability.RecordAuthEvent(ctx, "logout", "error")
		return err
	}
	observability.RecordAuthEvent(ctx, "logout", "success")
	return nil
}

func (s *authService) LogoutAll(ctx context.Context, userID uint) (int64, error) {
	revoked, err := s.sessions.RevokeAllForUser(userID, s.now().UTC())
	if err != nil {
		observability.RecordAuthEvent(ctx, "logout_all", "error")
		return 0, err
	}
	observability.RecordAuthEvent(ctx, "logout_all", "success")
	return revoked, nil
}

func (s *authService) openSession(ctx context.Context, user *domain.User, userAgent, ip string) (*TokenPair, error) {
	roleNames := make([]string, 0, len(user.Roles))
	for _, r := range user.Roles {
		if r.IsActive {
			roleNames = append(roleNames, r.Name)
		}
	}
	perms, err := s.access.ResolvePermissions(ctx, user.ID, nil)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	access, err := s.jwt.SignAccessToken(user.ID, roleNames, perms, s.accessTTL)
	if err != nil {
		return nil, err
	}
	refresh, err := s.jwt.SignRefreshToken(user.ID, s.refreshTTL)
	if err != nil {
		return nil, err
	}

	refreshClaims, err := s.jwt.ParseRefreshToken(refresh)
	if err != nil {
		return nil, err
	}
	session := &domain.Session{
		UserID:           user.ID,
		TokenID:          refreshClaims.ID,
		RefreshTokenHash: security.HashRefreshToken(refresh, s.pepper),
		UserAgent:        userAgent,
		IP:               ip,
		ExpiresAt:        now.Add(s.refreshTTL),
	}
	if err := s.sessions.Create(session); err != nil {
		return nil, err
	}

	return &TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessExpiresAt:  now.Add(s.accessTTL),
		RefreshExpiresAt: now.Add(s.refreshTTL),
	}, nil
}
