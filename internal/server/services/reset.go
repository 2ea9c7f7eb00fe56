package services

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/dmitrijs2005/storefront/internal/common"
	"github.com/dmitrijs2005/storefront/internal/cryptox"
	"github.com/dmitrijs2005/storefront/internal/logging"
	"github.com/dmitrijs2005/storefront/internal/server/notifier"
	"github.com/dmitrijs2005/storefront/internal/server/repositories/repomanager"
)

const DefaultResetTTL = time.Hour

// PasswordResetService issues single-use reset tokens and redeems them.
type PasswordResetService struct {
	manager     repomanager.RepositoryManager
	creds       *CredentialStore
	notifier    notifier.Notifier
	ttl         time.Duration
	frontendURL string
	logger      logging.Logger
	now         func() time.Time
}

func NewPasswordResetService(m repomanager.RepositoryManager, creds *CredentialStore, n notifier.Notifier,
	ttl time.Duration, frontendURL string, logger logging.Logger) *PasswordResetService {
	if ttl <= 0 {
		ttl = DefaultResetTTL
	}
	return &PasswordResetService{
		manager:     m,
		creds:       creds,
		notifier:    n,
		ttl:         ttl,
		frontendURL: strings.TrimRight(frontendURL, "/"),
		logger:      logger.With("module", "reset"),
		now:         time.Now,
	}
}

// RequestReset stores a fresh reset token for email and hands it to the
// notifier. It reports success whether or not the account exists.
func (s *PasswordResetService) RequestReset(ctx context.Context, email string) error {
	u, err := s.creds.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			s.logger.Debug(ctx, "password reset requested for unknown email")
			return nil
		}
		return err
	}

	token, err := cryptox.NewToken()
	if err != nil {
		return err
	}
	expires := s.now().Add(s.ttl).UTC()
	if err := s.creds.SetResetToken(ctx, u.ID, token, expires); err != nil {
		return err
	}

	msg := notifier.PasswordReset{
		Email:     u.Email,
		Token:     token,
		ResetURL:  s.frontendURL + "/reset-password?token=" + url.QueryEscape(token),
		ExpiresAt: expires,
	}
	if err := s.notifier.NotifyPasswordReset(ctx, msg); err != nil {
		s.logger.Error(ctx, "failed to hand off password reset", "user_id", u.ID, "error", err)
		return nil
	}
	s.logger.Info(ctx, "user activity", "user_id", u.ID, "action", "reset_request")
	return nil
}

// CompleteReset redeems token and sets newPassword. The token is cleared by
// the lookup itself, even when it turns out to be expired. Every refresh
// token of the account is revoked.
func (s *PasswordResetService) CompleteReset(ctx context.Context, token, newPassword string) error {
	hash, err := s.creds.HashPassword(newPassword)
	if err != nil {
		return err
	}
	u, err := s.creds.ConsumeResetToken(ctx, token, s.now())
	if err != nil {
		return err
	}
	err = s.manager.Atomic(ctx, func(ctx context.Context, r repomanager.Repositories) error {
		if err := r.Users.SetPassword(ctx, u.ID, hash); err != nil {
			return err
		}
		_, err := r.RefreshTokens.DeleteByUser(ctx, u.ID)
		return err
	})
	if err != nil {
		return err
	}
	s.logger.Info(ctx, "user activity", "user_id", u.ID, "action", "reset_complete")
	return nil
}
