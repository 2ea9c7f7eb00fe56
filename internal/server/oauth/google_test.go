package oauth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func newGoogleStub(t *testing.T, userinfoStatus int, info map[string]any) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		if r.Form.Get("code") != "good-code" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"at-1","token_type":"Bearer","expires_in":3600}`))
	})
	mux.HandleFunc("/userinfo", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer at-1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(userinfoStatus)
		_ = json.NewEncoder(w).Encode(info)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newProvider(srv *httptest.Server) *GoogleProvider {
	return NewGoogleProvider(GoogleOptions{
		ClientID:     "client",
		ClientSecret: "secret",
		RedirectURL:  "http://localhost:8080/auth/oauth/callback",
		Endpoint: &oauth2.Endpoint{
			AuthURL:   srv.URL + "/auth",
			TokenURL:  srv.URL + "/token",
			AuthStyle: oauth2.AuthStyleInParams,
		},
		UserInfoURL: srv.URL + "/userinfo",
		HTTPClient:  srv.Client(),
	})
}

func TestGoogleProvider_Exchange(t *testing.T) {
	srv := newGoogleStub(t, http.StatusOK, map[string]any{
		"sub": "1234", "email": "Alice@Example.com", "email_verified": true, "name": "Alice",
	})

	p, err := newProvider(srv).Exchange(context.Background(), "good-code")
	require.NoError(t, err)
	assert.Equal(t, "1234", p.ProviderID)
	assert.Equal(t, "alice@example.com", p.Email)
	assert.True(t, p.EmailVerified)
	assert.Equal(t, "Alice", p.Name)
}

func TestGoogleProvider_ExchangeFailures(t *testing.T) {
	t.Run("bad code", func(t *testing.T) {
		srv := newGoogleStub(t, http.StatusOK, map[string]any{"sub": "1", "email": "a@example.com"})
		_, err := newProvider(srv).Exchange(context.Background(), "bad-code")
		assert.Error(t, err)
	})
	t.Run("userinfo error", func(t *testing.T) {
		srv := newGoogleStub(t, http.StatusInternalServerError, map[string]any{})
		_, err := newProvider(srv).Exchange(context.Background(), "good-code")
		assert.Error(t, err)
	})
	t.Run("no email", func(t *testing.T) {
		srv := newGoogleStub(t, http.StatusOK, map[string]any{"sub": "1"})
		_, err := newProvider(srv).Exchange(context.Background(), "good-code")
		assert.Error(t, err)
	})
}

func TestGoogleProvider_AuthCodeURL(t *testing.T) {
	srv := newGoogleStub(t, http.StatusOK, nil)
	u, err := url.Parse(newProvider(srv).AuthCodeURL("state-xyz"))
	require.NoError(t, err)

	q := u.Query()
	assert.Equal(t, "state-xyz", q.Get("state"))
	assert.Equal(t, "client", q.Get("client_id"))
	assert.Equal(t, "code", q.Get("response_type"))
	assert.Contains(t, q.Get("scope"), "email")
}
