package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/storefront/internal/common"
	"github.com/dmitrijs2005/storefront/internal/cryptox"
	"github.com/dmitrijs2005/storefront/internal/logging"
	"github.com/dmitrijs2005/storefront/internal/server/auth"
	"github.com/dmitrijs2005/storefront/internal/server/models"
	"github.com/dmitrijs2005/storefront/internal/server/repositories/repomanager"
)

// UserService provides the account and session operations behind the
// /auth and /admin endpoints.
type UserService struct {
	manager repomanager.RepositoryManager
	creds   *CredentialStore
	issuer  *auth.Issuer
	logger  logging.Logger
	now     func() time.Time
}

func NewUserService(m repomanager.RepositoryManager, hasher cryptox.PasswordHasher, issuer *auth.Issuer, logger logging.Logger) *UserService {
	return &UserService{
		manager: m,
		creds:   NewCredentialStore(m.Users(), hasher),
		issuer:  issuer,
		logger:  logger.With("module", "users"),
		now:     time.Now,
	}
}

func (s *UserService) minter() minter { return minter{issuer: s.issuer, now: s.now} }

func (s *UserService) activity(ctx context.Context, userID, action string) {
	s.logger.Info(ctx, "user activity", "user_id", userID, "action", action)
}

// Credentials exposes the service's CredentialStore to sibling services.
func (s *UserService) Credentials() *CredentialStore { return s.creds }

// RegisterInput is the data a new password account starts with.
type RegisterInput struct {
	Name     string
	Email    string
	Password string
}

func (in RegisterInput) validate() error {
	switch {
	case strings.TrimSpace(in.Name) == "":
		return fmt.Errorf("%w: name is required", common.ErrValidation)
	case strings.TrimSpace(in.Email) == "":
		return fmt.Errorf("%w: email is required", common.ErrValidation)
	case in.Password == "":
		return fmt.Errorf("%w: password is required", common.ErrValidation)
	}
	return nil
}

// Register creates a user with role "user" and starts a session for it.
func (s *UserService) Register(ctx context.Context, in RegisterInput) (*Session, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	u, err := s.creds.CreateUser(ctx, in.Email, strings.TrimSpace(in.Name), in.Password, models.RoleUser)
	if err != nil {
		return nil, err
	}
	pair, err := s.minter().start(ctx, s.manager.RefreshTokens(), u)
	if err != nil {
		return nil, err
	}
	s.activity(ctx, u.ID, "register")
	return &Session{User: u, Tokens: pair}, nil
}

// Login checks the password and starts a session. Unknown email and wrong
// password are indistinguishable to the caller.
func (s *UserService) Login(ctx context.Context, email, password string) (*Session, error) {
	if strings.TrimSpace(email) == "" || password == "" {
		return nil, fmt.Errorf("%w: email and password are required", common.ErrValidation)
	}
	u, err := s.creds.FindByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, common.ErrorNotFound) {
			return nil, err
		}
		u = nil
	}
	if !s.creds.VerifyPassword(u, password) {
		return nil, common.ErrInvalidCredentials
	}
	pair, err := s.minter().start(ctx, s.manager.RefreshTokens(), u)
	if err != nil {
		return nil, err
	}
	s.activity(ctx, u.ID, "login")
	return &Session{User: u, Tokens: pair}, nil
}

// Refresh exchanges a refresh token for a new pair. The presented token is
// rotated out of the ledger in the same store operation that records its
// replacement, so it works exactly once.
func (s *UserService) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	if refreshToken == "" {
		return nil, common.ErrInvalidToken
	}
	ledger := s.manager.RefreshTokens()
	hash := cryptox.HashToken(refreshToken)

	claims, err := s.issuer.VerifyRefresh(refreshToken)
	if err != nil {
		if errors.Is(err, common.ErrTokenExpired) {
			if derr := ledger.Delete(ctx, hash); derr != nil {
				s.logger.Warn(ctx, "failed to drop expired refresh token", "error", derr)
			}
			return nil, common.ErrTokenExpired
		}
		return nil, common.ErrInvalidToken
	}

	rec, err := ledger.Find(ctx, hash)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrUnknownToken
		}
		return nil, err
	}
	if rec.UserID != claims.UserID {
		return nil, common.ErrUnknownToken
	}
	if rec.Expired(s.now()) {
		if err := ledger.Delete(ctx, hash); err != nil {
			return nil, err
		}
		return nil, common.ErrTokenExpired
	}

	u, err := s.creds.FindByID(ctx, rec.UserID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrUserGone
		}
		return nil, err
	}

	pair, next, err := s.minter().mint(u)
	if err != nil {
		return nil, err
	}
	if err := ledger.Rotate(ctx, hash, next); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrUnknownToken
		}
		return nil, err
	}
	s.activity(ctx, u.ID, "refresh")
	return pair, nil
}

// Logout revokes refreshToken if it belongs to id. With all set, or with no
// token given, every session of the user is revoked. It returns how many
// records were removed.
func (s *UserService) Logout(ctx context.Context, id models.Identity, refreshToken string, all bool) (int64, error) {
	ledger := s.manager.RefreshTokens()
	if all || refreshToken == "" {
		n, err := ledger.DeleteByUser(ctx, id.UserID)
		if err != nil {
			return 0, err
		}
		s.activity(ctx, id.UserID, "logout_all")
		return n, nil
	}

	hash := cryptox.HashToken(refreshToken)
	rec, err := ledger.Find(ctx, hash)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return 0, nil
		}
		return 0, err
	}
	if rec.UserID != id.UserID {
		return 0, nil
	}
	if err := ledger.Delete(ctx, hash); err != nil {
		return 0, err
	}
	s.activity(ctx, id.UserID, "logout")
	return 1, nil
}

// Me returns the caller's current record.
func (s *UserService) Me(ctx context.Context, userID string) (*models.User, error) {
	u, err := s.creds.FindByID(ctx, userID)
	if errors.Is(err, common.ErrorNotFound) {
		return nil, common.ErrUserGone
	}
	return u, err
}

// UpdateProfile applies the non-nil fields of p. Concurrent updates are last
// write wins.
func (s *UserService) UpdateProfile(ctx context.Context, userID string, p models.Profile) (*models.User, error) {
	if p.Name != nil && strings.TrimSpace(*p.Name) == "" {
		return nil, fmt.Errorf("%w: name must not be empty", common.ErrValidation)
	}
	u, err := s.manager.Users().UpdateProfile(ctx, userID, p)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrUserGone
		}
		return nil, err
	}
	s.activity(ctx, userID, "profile_update")
	return u, nil
}

// ChangePassword replaces the password after checking the current one, ends
// every existing session and starts a new one for the caller.
func (s *UserService) ChangePassword(ctx context.Context, userID, current, next string) (*TokenPair, error) {
	u, err := s.Me(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !s.creds.VerifyPassword(u, current) {
		return nil, common.ErrInvalidCredentials
	}
	hash, err := s.creds.HashPassword(next)
	if err != nil {
		return nil, err
	}

	var pair *TokenPair
	err = s.manager.Atomic(ctx, func(ctx context.Context, r repomanager.Repositories) error {
		if err := r.Users.SetPassword(ctx, u.ID, hash); err != nil {
			return err
		}
		if _, err := r.RefreshTokens.DeleteByUser(ctx, u.ID); err != nil {
			return err
		}
		var err error
		pair, err = s.minter().start(ctx, r.RefreshTokens, u)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.activity(ctx, u.ID, "password_change")
	return pair, nil
}

// GetUser looks up any account. Missing accounts yield common.ErrorNotFound.
func (s *UserService) GetUser(ctx context.Context, userID string) (*models.User, error) {
	return s.creds.FindByID(ctx, userID)
}

// SetRole changes an account's role and returns the updated record.
func (s *UserService) SetRole(ctx context.Context, userID string, role models.Role) (*models.User, error) {
	if !role.Valid() {
		return nil, fmt.Errorf("%w: role must be one of user, admin", common.ErrValidation)
	}
	if err := s.manager.Users().SetRole(ctx, userID, role); err != nil {
		return nil, err
	}
	s.logger.Info(ctx, "user activity", "user_id", userID, "action", "role_change", "role", string(role))
	return s.creds.FindByID(ctx, userID)
}

// SetRoleByEmail is SetRole keyed by email, for operator tooling.
func (s *UserService) SetRoleByEmail(ctx context.Context, email string, role models.Role) (*models.User, error) {
	u, err := s.creds.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	return s.SetRole(ctx, u.ID, role)
}

// CreateAdmin registers an administrator account without starting a session.
func (s *UserService) CreateAdmin(ctx context.Context, in RegisterInput) (*models.User, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	u, err := s.creds.CreateUser(ctx, in.Email, strings.TrimSpace(in.Name), in.Password, models.RoleAdmin)
	if err != nil {
		return nil, err
	}
	s.activity(ctx, u.ID, "create_admin")
	return u, nil
}
