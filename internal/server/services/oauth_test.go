package services

import (
	"context"
	"errors"
	"testing"

	"github.com/dmitrijs2005/storefront/internal/common"
	"github.com/dmitrijs2005/storefront/internal/server/models"
	"github.com/stretchr/testify/require"
)

type stubProvider struct {
	profile *models.OAuthProfile
	err     error
}

func (p *stubProvider) AuthCodeURL(state string) string { return "https://provider.test/auth?state=" + state }

func (p *stubProvider) Exchange(ctx context.Context, code string) (*models.OAuthProfile, error) {
	return p.profile, p.err
}

func TestOAuthLink_SameProviderIDReturnsSameUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	profile := models.OAuthProfile{ProviderID: "g-1", Email: "new@example.com", Name: "New", EmailVerified: true}

	first, err := f.oauth.Link(ctx, profile)
	require.NoError(t, err)
	require.True(t, first.User.EmailVerified)
	require.Equal(t, "g-1", first.User.ProviderID)

	profile.Email = "changed@example.com"
	second, err := f.oauth.Link(ctx, profile)
	require.NoError(t, err)
	require.Equal(t, first.User.ID, second.User.ID)
	require.NotEqual(t, first.Tokens.RefreshToken, second.Tokens.RefreshToken)
}

func TestOAuthLink_MatchingEmailLinksExistingAccount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	local := f.register(t, "user@example.com", "Secret1!")

	s, err := f.oauth.Link(ctx, models.OAuthProfile{ProviderID: "g-2", Email: "User@Example.com", EmailVerified: true})
	require.NoError(t, err)
	require.Equal(t, local.User.ID, s.User.ID)

	stored, err := f.manager.Users().FindByProviderID(ctx, "g-2")
	require.NoError(t, err)
	require.Equal(t, local.User.ID, stored.ID)
	require.True(t, stored.EmailVerified)

	_, err = f.users.Login(ctx, "user@example.com", "Secret1!")
	require.NoError(t, err, "existing password is preserved")
}

func TestOAuthLink_TokensAreUsable(t *testing.T) {
	f := newFixture(t)
	s, err := f.oauth.Link(context.Background(), models.OAuthProfile{ProviderID: "g-3", Email: "x@example.com"})
	require.NoError(t, err)

	id, err := f.verifier.Verify(context.Background(), s.Tokens.AccessToken)
	require.NoError(t, err)
	require.Equal(t, s.User.ID, id.UserID)

	_, err = f.users.Refresh(context.Background(), s.Tokens.RefreshToken)
	require.NoError(t, err)
}

func TestOAuthComplete_ProviderFailureIssuesNothing(t *testing.T) {
	f := newFixture(t)

	_, err := f.oauth.Complete(context.Background(), &stubProvider{err: errors.New("bad code")}, "code")
	require.ErrorIs(t, err, common.ErrOAuthFailure)

	_, err = f.oauth.Complete(context.Background(), &stubProvider{}, "")
	require.ErrorIs(t, err, common.ErrOAuthFailure)

	_, err = f.oauth.Link(context.Background(), models.OAuthProfile{Email: "no-id@example.com"})
	require.ErrorIs(t, err, common.ErrOAuthFailure)
}

func TestOAuthComplete_Success(t *testing.T) {
	f := newFixture(t)
	p := &stubProvider{profile: &models.OAuthProfile{ProviderID: "g-4", Email: "y@example.com", Name: "Y"}}

	s, err := f.oauth.Complete(context.Background(), p, "code")
	require.NoError(t, err)
	require.Equal(t, "Y", s.User.Name)
	require.Equal(t, models.RoleUser, s.User.Role)
}
