package services

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/storefront/internal/cryptox"
	"github.com/dmitrijs2005/storefront/internal/server/auth"
	"github.com/dmitrijs2005/storefront/internal/server/models"
	"github.com/dmitrijs2005/storefront/internal/server/repositories/refreshtokens"
	"github.com/google/uuid"
)

// TokenPair bundles a short-lived access token and a long-lived refresh token.
type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}

// Session is what a successful register, login or OAuth link returns.
type Session struct {
	User   *models.User
	Tokens *TokenPair
}

// minter signs token pairs and builds the ledger record for the refresh half.
type minter struct {
	issuer *auth.Issuer
	now    func() time.Time
}

func (m minter) mint(u *models.User) (*TokenPair, *models.RefreshToken, error) {
	id := u.Identity()
	access, accessExp, err := m.issuer.IssueAccessToken(id)
	if err != nil {
		return nil, nil, fmt.Errorf("issue access token: %w", err)
	}
	refresh, refreshExp, err := m.issuer.IssueRefreshToken(id)
	if err != nil {
		return nil, nil, fmt.Errorf("issue refresh token: %w", err)
	}
	rec := &models.RefreshToken{
		ID:        uuid.NewString(),
		UserID:    u.ID,
		TokenHash: cryptox.HashToken(refresh),
		ExpiresAt: refreshExp,
		CreatedAt: m.now().UTC(),
	}
	return &TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: refreshExp,
	}, rec, nil
}

// start mints a pair for u and records the refresh half in the ledger.
func (m minter) start(ctx context.Context, ledger refreshtokens.Repository, u *models.User) (*TokenPair, error) {
	pair, rec, err := m.mint(u)
	if err != nil {
		return nil, err
	}
	if err := ledger.Create(ctx, rec); err != nil {
		return nil, fmt.Errorf("record refresh token: %w", err)
	}
	return pair, nil
}
