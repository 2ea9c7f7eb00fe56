package services

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/storefront/internal/common"
	"github.com/dmitrijs2005/storefront/internal/server/auth"
	"github.com/dmitrijs2005/storefront/internal/server/models"
	"github.com/dmitrijs2005/storefront/internal/server/repositories/users"
)

// SessionVerifier turns a bearer access token into a verified Identity. The
// HTTP middleware and the gRPC interceptor both go through it.
type SessionVerifier struct {
	issuer *auth.Issuer
	users  users.Repository
}

func NewSessionVerifier(issuer *auth.Issuer, repo users.Repository) *SessionVerifier {
	return &SessionVerifier{issuer: issuer, users: repo}
}

// Verify checks token and loads its user. The returned Identity carries the
// email and role currently on record, not the ones embedded at issue time,
// so a demotion takes effect on the next request.
func (v *SessionVerifier) Verify(ctx context.Context, token string) (models.Identity, error) {
	if token == "" {
		return models.Identity{}, common.ErrNoToken
	}
	claims, err := v.issuer.VerifyAccess(token)
	if err != nil {
		return models.Identity{}, err
	}
	u, err := v.users.FindByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return models.Identity{}, common.ErrUserGone
		}
		return models.Identity{}, err
	}
	return u.Identity(), nil
}

// Authorize fails with common.ErrForbidden unless id holds one of allowed.
func Authorize(id models.Identity, allowed ...models.Role) error {
	if !id.HasRole(allowed...) {
		return common.ErrForbidden
	}
	return nil
}
