package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/storefront/internal/common"
	"github.com/dmitrijs2005/storefront/internal/logging"
	"github.com/dmitrijs2005/storefront/internal/server/auth"
	"github.com/dmitrijs2005/storefront/internal/server/models"
	"github.com/dmitrijs2005/storefront/internal/server/repositories/repomanager"
)

// OAuthProvider runs the external half of the handshake.
type OAuthProvider interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*models.OAuthProfile, error)
}

// OAuthService maps a third-party profile onto a local account and starts a
// session for it.
type OAuthService struct {
	manager repomanager.RepositoryManager
	creds   *CredentialStore
	issuer  *auth.Issuer
	logger  logging.Logger
	now     func() time.Time
}

func NewOAuthService(m repomanager.RepositoryManager, creds *CredentialStore, issuer *auth.Issuer, logger logging.Logger) *OAuthService {
	return &OAuthService{
		manager: m,
		creds:   creds,
		issuer:  issuer,
		logger:  logger.With("module", "oauth"),
		now:     time.Now,
	}
}

// Complete finishes the handshake with code and links the resulting
// profile. Any provider failure is reported as common.ErrOAuthFailure and no
// tokens are issued.
func (s *OAuthService) Complete(ctx context.Context, p OAuthProvider, code string) (*Session, error) {
	if code == "" {
		return nil, fmt.Errorf("%w: missing authorization code", common.ErrOAuthFailure)
	}
	profile, err := p.Exchange(ctx, code)
	if err != nil {
		s.logger.Warn(ctx, "oauth exchange failed", "error", err)
		return nil, fmt.Errorf("%w: %v", common.ErrOAuthFailure, err)
	}
	return s.Link(ctx, *profile)
}

// Link resolves profile to a local user: by provider id, else by email
// (attaching the provider id and keeping the password), else by creating a
// new account.
func (s *OAuthService) Link(ctx context.Context, profile models.OAuthProfile) (*Session, error) {
	if profile.ProviderID == "" || profile.Email == "" {
		return nil, fmt.Errorf("%w: profile lacks id or email", common.ErrOAuthFailure)
	}

	u, action, err := s.resolve(ctx, profile)
	if errors.Is(err, common.ErrEmailTaken) {
		// Lost a race with a concurrent first login for the same email.
		u, action, err = s.resolve(ctx, profile)
	}
	if err != nil {
		return nil, err
	}

	pair, err := minter{issuer: s.issuer, now: s.now}.start(ctx, s.manager.RefreshTokens(), u)
	if err != nil {
		return nil, err
	}
	s.logger.Info(ctx, "user activity", "user_id", u.ID, "action", action)
	return &Session{User: u, Tokens: pair}, nil
}

func (s *OAuthService) resolve(ctx context.Context, profile models.OAuthProfile) (*models.User, string, error) {
	u, err := s.creds.FindByProviderID(ctx, profile.ProviderID)
	if err == nil {
		return u, "oauth_login", nil
	}
	if !errors.Is(err, common.ErrorNotFound) {
		return nil, "", err
	}

	u, err = s.creds.FindByEmail(ctx, profile.Email)
	switch {
	case err == nil:
		if err := s.creds.LinkProvider(ctx, u.ID, profile.ProviderID, profile.EmailVerified); err != nil {
			return nil, "", err
		}
		u.ProviderID = profile.ProviderID
		u.EmailVerified = u.EmailVerified || profile.EmailVerified
		return u, "oauth_link", nil
	case !errors.Is(err, common.ErrorNotFound):
		return nil, "", err
	}

	u, err = s.creds.CreateOAuthUser(ctx, profile)
	if err != nil {
		return nil, "", err
	}
	return u, "oauth_register", nil
}
