package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/storefront/internal/client/config"
	"github.com/dmitrijs2005/storefront/internal/client/session"
	"github.com/stretchr/testify/require"
)

// stubServer accepts password "Secret1!" and one refresh per refresh token.
type stubServer struct {
	mu        sync.Mutex
	access    string
	refresh   string
	loggedOut bool
	rotations int
}

func (s *stubServer) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/login", func(w http.ResponseWriter, r *http.Request) {
		var in map[string]string
		_ = json.NewDecoder(r.Body).Decode(&in)
		if in["password"] != "Secret1!" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = io.WriteString(w, `{"message":"invalid email or password"}`)
			return
		}
		s.mu.Lock()
		s.access, s.refresh = "a0", "r0"
		s.mu.Unlock()
		_, _ = io.WriteString(w, `{"user":{"id":"u1","email":"`+in["email"]+`","role":"user"},"accessToken":"a0","refreshToken":"r0"}`)
	})
	mux.HandleFunc("POST /auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		var in map[string]string
		_ = json.NewDecoder(r.Body).Decode(&in)
		s.mu.Lock()
		defer s.mu.Unlock()
		if in["refreshToken"] != s.refresh || s.refresh == "" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = io.WriteString(w, `{"message":"session invalid"}`)
			return
		}
		s.rotations++
		s.access, s.refresh = "a-next", "r-next"
		_, _ = io.WriteString(w, `{"accessToken":"a-next","refreshToken":"r-next"}`)
	})
	mux.HandleFunc("GET /auth/me", func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		ok := s.access != "" && r.Header.Get("Authorization") == "Bearer "+s.access
		s.mu.Unlock()
		if !ok {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = io.WriteString(w, `{"message":"session invalid"}`)
			return
		}
		_, _ = io.WriteString(w, `{"user":{"id":"u1","email":"user@example.com","name":"Test","role":"user"}}`)
	})
	mux.HandleFunc("POST /auth/logout", func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.loggedOut = true
		s.refresh = ""
		s.mu.Unlock()
		_, _ = io.WriteString(w, `{"message":"logged out"}`)
	})
	return mux
}

// expireAccess makes the server reject the current access token.
func (s *stubServer) expireAccess() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.access = "rotated-by-server"
}

func newTestApp(t *testing.T, input string) (*App, *stubServer, *bytes.Buffer, *session.MemoryStore) {
	t.Helper()
	stub := &stubServer{}
	srv := httptest.NewServer(stub.handler())
	t.Cleanup(srv.Close)

	cfg := &config.Config{}
	cfg.LoadDefaults()
	cfg.ServerURL = srv.URL
	cfg.RequestTimeout = 5 * time.Second

	out := &bytes.Buffer{}
	store := &session.MemoryStore{}
	app := newApp(cfg, store, strings.NewReader(input), out)
	app.getPassword = func(io.Writer) ([]byte, error) { return []byte("Secret1!"), nil }
	return app, stub, out, store
}

func TestLoginStoresSession(t *testing.T) {
	app, _, out, store := newTestApp(t, "user@example.com\n")
	ctx := context.Background()

	require.NoError(t, app.Run(ctx, []string{"login"}))
	require.Contains(t, out.String(), "Logged in as user@example.com (user)")

	c, err := store.Load(ctx)
	require.NoError(t, err)
	require.Equal(t, session.Credentials{AccessToken: "a0", RefreshToken: "r0"}, c)
}

func TestLoginWrongPassword(t *testing.T) {
	app, _, _, store := newTestApp(t, "")
	app.getPassword = func(io.Writer) ([]byte, error) { return []byte("nope"), nil }

	err := app.Run(context.Background(), []string{"-a", "ignored", "login", "-email", "user@example.com"})
	require.ErrorContains(t, err, "invalid email or password")

	c, _ := store.Load(context.Background())
	require.Empty(t, c.AccessToken)
}

func TestMe_RefreshesExpiredAccessToken(t *testing.T) {
	app, stub, out, store := newTestApp(t, "")
	ctx := context.Background()
	require.NoError(t, app.Run(ctx, []string{"login", "-email", "user@example.com"}))

	stub.expireAccess()
	require.NoError(t, app.Run(ctx, []string{"me"}))
	require.Contains(t, out.String(), "email:    user@example.com")
	require.Equal(t, 1, stub.rotations)

	c, _ := store.Load(ctx)
	require.Equal(t, "r-next", c.RefreshToken)
}

func TestMe_SessionEndsWhenRefreshFails(t *testing.T) {
	app, stub, out, store := newTestApp(t, "")
	ctx := context.Background()
	require.NoError(t, app.Run(ctx, []string{"login", "-email", "user@example.com"}))

	stub.expireAccess()
	stub.mu.Lock()
	stub.refresh = "revoked"
	stub.mu.Unlock()

	err := app.Run(ctx, []string{"me"})
	require.True(t, errors.Is(err, session.ErrSessionExpired))
	require.Equal(t, 1, strings.Count(out.String(), "Your session has ended"))

	c, _ := store.Load(ctx)
	require.Equal(t, session.Credentials{}, c)
}

func TestRefreshAndLogout(t *testing.T) {
	app, stub, out, store := newTestApp(t, "")
	ctx := context.Background()
	require.NoError(t, app.Run(ctx, []string{"login", "-email", "user@example.com"}))

	require.NoError(t, app.Run(ctx, []string{"refresh"}))
	require.Contains(t, out.String(), "Session refreshed")

	require.NoError(t, app.Run(ctx, []string{"logout", "-all"}))
	require.True(t, stub.loggedOut)
	c, _ := store.Load(ctx)
	require.Equal(t, session.Credentials{}, c)

	require.ErrorContains(t, app.Run(ctx, []string{"refresh"}), "not logged in")
}

func TestUnknownCommand(t *testing.T) {
	app, _, out, _ := newTestApp(t, "")
	require.Error(t, app.Run(context.Background(), []string{"nope"}))
	require.Contains(t, out.String(), "commands:")
	require.NoError(t, app.Run(context.Background(), nil))
}
