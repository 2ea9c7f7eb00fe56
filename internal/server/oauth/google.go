// Package oauth runs the Google authorization code handshake and reduces the
// result to a models.OAuthProfile.
package oauth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/dmitrijs2005/storefront/internal/server/models"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const googleUserInfoURL = "https://openidconnect.googleapis.com/v1/userinfo"

// GoogleOptions configures the provider. Endpoint and UserInfoURL default to
// Google's and are overridable for tests.
type GoogleOptions struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Endpoint     *oauth2.Endpoint
	UserInfoURL  string
	HTTPClient   *http.Client
}

type GoogleProvider struct {
	cfg         *oauth2.Config
	userInfoURL string
	httpClient  *http.Client
}

func NewGoogleProvider(o GoogleOptions) *GoogleProvider {
	endpoint := google.Endpoint
	if o.Endpoint != nil {
		endpoint = *o.Endpoint
	}
	userInfo := o.UserInfoURL
	if userInfo == "" {
		userInfo = googleUserInfoURL
	}
	return &GoogleProvider{
		cfg: &oauth2.Config{
			ClientID:     o.ClientID,
			ClientSecret: o.ClientSecret,
			RedirectURL:  o.RedirectURL,
			Scopes:       []string{"openid", "email", "profile"},
			Endpoint:     endpoint,
		},
		userInfoURL: userInfo,
		httpClient:  o.HTTPClient,
	}
}

// AuthCodeURL is where the browser is sent to start the handshake.
func (p *GoogleProvider) AuthCodeURL(state string) string {
	return p.cfg.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

type userInfo struct {
	Sub           string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
}

// Exchange trades code for a token and fetches the user's profile with it.
func (p *GoogleProvider) Exchange(ctx context.Context, code string) (*models.OAuthProfile, error) {
	if p.httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)
	}
	tok, err := p.cfg.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("code exchange: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.userInfoURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := p.cfg.Client(ctx, tok).Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch userinfo: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch userinfo: unexpected status %d", resp.StatusCode)
	}

	var info userInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("decode userinfo: %w", err)
	}
	if info.Sub == "" || info.Email == "" {
		return nil, fmt.Errorf("userinfo lacks sub or email")
	}
	return &models.OAuthProfile{
		ProviderID:    info.Sub,
		Email:         models.NormalizeEmail(info.Email),
		Name:          info.Name,
		EmailVerified: info.EmailVerified,
	}, nil
}
