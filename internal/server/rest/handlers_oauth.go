package rest

import (
	"crypto/subtle"
	"fmt"
	"net/http"
	"net/url"

	"github.com/dmitrijs2005/storefront/internal/common"
	"github.com/dmitrijs2005/storefront/internal/cryptox"
)

const (
	oauthSessionName = "storefront_oauth"
	oauthStateKey    = "state"
)

var errOAuthState = fmt.Errorf("%w: state mismatch", common.ErrOAuthFailure)

func (s *Server) handleOAuthStart(w http.ResponseWriter, r *http.Request) {
	if s.provider == nil {
		writeMessage(w, http.StatusNotFound, "oauth login is not configured")
		return
	}
	state, err := cryptox.NewToken()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	sess, _ := s.cookies.Get(r, oauthSessionName)
	sess.Values[oauthStateKey] = state
	if err := sess.Save(r, w); err != nil {
		s.writeError(w, r, err)
		return
	}
	http.Redirect(w, r, s.provider.AuthCodeURL(state), http.StatusFound)
}

// handleOAuthCallback completes the handshake. Both outcomes are redirects
// to the frontend; tokens travel in the query string of the success one.
func (s *Server) handleOAuthCallback(w http.ResponseWriter, r *http.Request) {
	if s.provider == nil {
		writeMessage(w, http.StatusNotFound, "oauth login is not configured")
		return
	}

	sess, _ := s.cookies.Get(r, oauthSessionName)
	want, _ := sess.Values[oauthStateKey].(string)
	delete(sess.Values, oauthStateKey)
	sess.Options.MaxAge = -1
	_ = sess.Save(r, w)

	q := r.URL.Query()
	got := q.Get("state")
	if want == "" || subtle.ConstantTimeCompare([]byte(want), []byte(got)) != 1 || q.Get("error") != "" {
		s.logger.Warn(r.Context(), "oauth callback rejected", "provider_error", q.Get("error"), "state_ok", want != "" && want == got)
		authEvent("oauth", errOAuthState)
		s.redirectOAuthFailure(w, r)
		return
	}

	result, err := s.oauth.Complete(r.Context(), s.provider, q.Get("code"))
	authEvent("oauth", err)
	if err != nil {
		s.logger.Warn(r.Context(), "oauth login failed", "error", err)
		s.redirectOAuthFailure(w, r)
		return
	}

	v := url.Values{}
	v.Set("token", result.Tokens.AccessToken)
	v.Set("refreshToken", result.Tokens.RefreshToken)
	http.Redirect(w, r, s.frontendURL+"/auth/callback?"+v.Encode(), http.StatusFound)
}

func (s *Server) redirectOAuthFailure(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, s.frontendURL+"/login?error=oauth_failed", http.StatusFound)
}
