package services

import (
	"context"
	"errors"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/pralapin/school-service/internal/core/domain"
	"github.com/pralapin/school-service/internal/core/ports"
)

// Principal is the authenticated caller: the user and its resolved role.
type Principal struct {
	User *domain.User
	Role *domain.Role
}

type TokenPair struct {
	AccessToken  string         `json:"access_token"`
	RefreshToken string         `json:"refresh_token"`
	TokenType    string         `json:"token_type"`
	User         domain.Profile `json:"user"`
}

type AuthService struct {
	users       ports.Repository[domain.User]
	roles       ports.Repository[domain.Role]
	hasher      ports.PasswordHasher
	issuer      ports.TokenIssuer
	revocations ports.RevocationStore
	logger      *logrus.Logger
	now         Clock
}

func NewAuthService(
	users ports.Repository[domain.User],
	roles ports.Repository[domain.Role],
	hasher ports.PasswordHasher,
	issuer ports.TokenIssuer,
	revocations ports.RevocationStore,
	logger *logrus.Logger,
) *AuthService {
	return &AuthService{
		users:       users,
		roles:       roles,
		hasher:      hasher,
		issuer:      issuer,
		revocations: revocations,
		logger:      logger,
		now:         systemClock,
	}
}

var errInvalidCredentials = errors.New("invalid credentials")

// Login checks the password of an active user and issues a token pair.
func (s *AuthService) Login(ctx context.Context, email, password string) (*TokenPair, error) {
	user, err := s.users.FindOne(ctx, ports.Where(ports.Eq("email", normalizeEmail(email))))
	if errors.Is(err, domain.ErrNotFound) {
		return nil, errors.Join(domain.ErrUnauthorized, errInvalidCredentials)
	}
	if err != nil {
		return nil, err
	}
	if !user.IsActive || !s.hasher.Verify(user.HashedPassword, password) {
		s.logger.WithField("user_id", user.ID).Info("login rejected")
		return nil, errors.Join(domain.ErrUnauthorized, errInvalidCredentials)
	}
	return s.issue(user)
}

// Refresh exchanges a valid, unrevoked refresh token for a new pair. The old
// refresh token is revoked.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	claims, err := s.verifyRefresh(ctx, refreshToken)
	if err != nil {
		return nil, err
	}
	user, err := s.activeUser(ctx, claims.Subject)
	if err != nil {
		return nil, err
	}
	if err := s.revocations.Revoke(ctx, claims.ID, claims.ExpiresAt); err != nil {
		return nil, err
	}
	return s.issue(user)
}

// Logout revokes the refresh token until it would have expired.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	claims, err := s.verifyRefresh(ctx, refreshToken)
	if err != nil {
		return err
	}
	return s.revocations.Revoke(ctx, claims.ID, claims.ExpiresAt)
}

// Authenticate turns an access token into a Principal.
func (s *AuthService) Authenticate(ctx context.Context, accessToken string) (*Principal, error) {
	claims, err := s.issuer.Verify(accessToken)
	if err != nil {
		return nil, err
	}
	if claims.Type != ports.AccessToken {
		return nil, errors.Join(domain.ErrUnauthorized, errors.New("not an access token"))
	}
	user, err := s.activeUser(ctx, claims.Subject)
	if err != nil {
		return nil, err
	}
	role, err := s.roles.Get(ctx, user.Role)
	if errors.Is(err, domain.ErrNotFound) {
		// An unknown role grants nothing; permission checks reject.
		role = nil
	} else if err != nil {
		return nil, err
	}
	return &Principal{User: user, Role: role}, nil
}

// RegisterDeviceToken stores a push token on the user, keeping the most
// recent domain.MaxDeviceTokens.
func (s *AuthService) RegisterDeviceToken(ctx context.Context, user *domain.User, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return validationf("token is required")
	}
	fresh, err := s.users.Get(ctx, user.ID)
	if err != nil {
		return err
	}
	if !fresh.AddDeviceToken(token) {
		return nil
	}
	fresh.UpdatedAt = s.now()
	return s.users.Save(ctx, fresh)
}

func (s *AuthService) verifyRefresh(ctx context.Context, token string) (*ports.Claims, error) {
	claims, err := s.issuer.Verify(token)
	if err != nil {
		return nil, err
	}
	if claims.Type != ports.RefreshToken {
		return nil, errors.Join(domain.ErrUnauthorized, errors.New("not a refresh token"))
	}
	revoked, err := s.revocations.IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, err
	}
	if revoked {
		return nil, errors.Join(domain.ErrUnauthorized, errors.New("refresh token revoked"))
	}
	return claims, nil
}

func (s *AuthService) activeUser(ctx context.Context, id string) (*domain.User, error) {
	user, err := s.users.Get(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, errors.Join(domain.ErrUnauthorized, errors.New("unknown user"))
	}
	if err != nil {
		return nil, err
	}
	if !user.IsActive {
		return nil, errors.Join(domain.ErrUnauthorized, errors.New("user is inactive"))
	}
	return user, nil
}

func (s *AuthService) issue(user *domain.User) (*TokenPair, error) {
	access, err := s.issuer.IssueAccess(user.ID, user.Role)
	if err != nil {
		return nil, err
	}
	refresh, err := s.issuer.IssueRefresh(user.ID)
	if err != nil {
		return nil, err
	}
	return &TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "bearer",
		User:         user.Profile(),
	}, nil
}
