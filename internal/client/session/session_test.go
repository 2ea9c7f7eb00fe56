package session

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dmitrijs2005/storefront/internal/client/repositories/metadata"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func TestRedirectGate_DebouncesWithinWindow(t *testing.T) {
	clock := &fakeClock{t: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	var fired int
	g := NewRedirectGate(func() { fired++ }, nil).WithClock(clock.Now)

	require.True(t, g.Trigger())
	require.True(t, g.Redirecting())
	require.False(t, g.Trigger())

	clock.Advance(4 * time.Second)
	require.False(t, g.Trigger())

	clock.Advance(time.Second)
	require.False(t, g.Redirecting())
	require.True(t, g.Trigger())
	require.Equal(t, 2, fired)
}

func TestRedirectGate_CompleteResets(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	var fired int
	g := NewRedirectGate(func() { fired++ }, nil).WithClock(clock.Now)

	require.True(t, g.Trigger())
	g.Complete()
	require.False(t, g.Redirecting())
	require.True(t, g.Trigger())
	require.Equal(t, 2, fired)
}

func TestRedirectGate_OnLoginViewSuppressesAndResets(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	var fired int
	onLogin := false
	g := NewRedirectGate(func() { fired++ }, func() bool { return onLogin }).WithClock(clock.Now)

	require.True(t, g.Trigger())
	onLogin = true
	require.False(t, g.Trigger())
	require.False(t, g.Redirecting())

	onLogin = false
	require.True(t, g.Trigger())
	require.Equal(t, 2, fired)
}

func TestRedirectGate_ConcurrentTriggersFireOnce(t *testing.T) {
	var fired atomic.Int32
	g := NewRedirectGate(func() { fired.Add(1) }, nil)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			g.Trigger()
		}()
	}
	wg.Wait()
	require.Equal(t, int32(1), fired.Load())
}

func TestMetadataStore(t *testing.T) {
	ctx := context.Background()
	db, err := metadata.Open(ctx, filepath.Join(t.TempDir(), "client.db"))
	require.NoError(t, err)
	defer db.Close()

	s := NewMetadataStore(metadata.NewSQLiteRepository(db))
	c, err := s.Load(ctx)
	require.NoError(t, err)
	require.Equal(t, Credentials{}, c)

	want := Credentials{AccessToken: "a", RefreshToken: "r"}
	require.NoError(t, s.Save(ctx, want))
	c, err = s.Load(ctx)
	require.NoError(t, err)
	require.Equal(t, want, c)

	require.NoError(t, s.Clear(ctx))
	c, err = s.Load(ctx)
	require.NoError(t, err)
	require.Equal(t, Credentials{}, c)
}

// identityStub accepts access token "access-N" where N is the current
// generation and rotates refresh token "refresh-N" to generation N+1.
type identityStub struct {
	mu           sync.Mutex
	generation   int
	refreshCalls atomic.Int32
	refreshDelay time.Duration
	refreshFails bool
	// accountGone makes /auth/me reject every token while refresh still
	// succeeds.
	accountGone bool
	bodies      []string
}

func (s *identityStub) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		s.refreshCalls.Add(1)
		time.Sleep(s.refreshDelay)
		var in struct {
			RefreshToken string `json:"refreshToken"`
		}
		_ = json.NewDecoder(r.Body).Decode(&in)

		s.mu.Lock()
		defer s.mu.Unlock()
		if s.refreshFails || in.RefreshToken != tokenFor("refresh", s.generation) {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = io.WriteString(w, `{"message":"session invalid"}`)
			return
		}
		s.generation++
		_ = json.NewEncoder(w).Encode(map[string]string{
			"accessToken":  tokenFor("access", s.generation),
			"refreshToken": tokenFor("refresh", s.generation),
		})
	})
	mux.HandleFunc("/auth/me", func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		ok := !s.accountGone && r.Header.Get("Authorization") == "Bearer "+tokenFor("access", s.generation)
		if r.Body != nil {
			b, _ := io.ReadAll(r.Body)
			s.bodies = append(s.bodies, string(b))
		}
		s.mu.Unlock()
		if !ok {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = io.WriteString(w, `{"user":{}}`)
	})
	return mux
}

func tokenFor(kind string, gen int) string {
	return kind + "-" + string(rune('0'+gen))
}

type sessionEnv struct {
	stub    *identityStub
	store   *MemoryStore
	client  *http.Client
	url     string
	fired   *atomic.Int32
	manager *Manager
}

func newSessionEnv(t *testing.T, stub *identityStub) *sessionEnv {
	t.Helper()
	srv := httptest.NewServer(stub.handler())
	t.Cleanup(srv.Close)

	fired := &atomic.Int32{}
	store := &MemoryStore{}
	gate := NewRedirectGate(func() { fired.Add(1) }, nil)
	m := NewManager(srv.URL+"/", store, gate, nil, 5*time.Second)
	return &sessionEnv{stub: stub, store: store, client: m.HTTPClient(), url: srv.URL, fired: fired, manager: m}
}

func (e *sessionEnv) get(t *testing.T) (*http.Response, error) {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, e.url+"/auth/me", nil)
	require.NoError(t, err)
	return e.client.Do(req)
}

func TestTransport_AttachesBearer(t *testing.T) {
	e := newSessionEnv(t, &identityStub{})
	require.NoError(t, e.manager.SignIn(context.Background(), Credentials{AccessToken: "access-0", RefreshToken: "refresh-0"}))

	resp, err := e.get(t)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, int32(0), e.stub.refreshCalls.Load())
}

func TestTransport_RefreshesOnceAndRetries(t *testing.T) {
	e := newSessionEnv(t, &identityStub{generation: 1})
	require.NoError(t, e.manager.SignIn(context.Background(), Credentials{AccessToken: "access-0", RefreshToken: "refresh-1"}))

	req, err := http.NewRequest(http.MethodPost, e.url+"/auth/me", strings.NewReader(`{"k":"v"}`))
	require.NoError(t, err)
	resp, err := e.client.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, int32(1), e.stub.refreshCalls.Load())
	require.Equal(t, []string{`{"k":"v"}`, `{"k":"v"}`}, e.stub.bodies)

	c, err := e.manager.Credentials(context.Background())
	require.NoError(t, err)
	require.Equal(t, Credentials{AccessToken: "access-2", RefreshToken: "refresh-2"}, c)
	require.Equal(t, int32(0), e.fired.Load())
}

func TestTransport_FailedRefreshClearsAndRedirects(t *testing.T) {
	e := newSessionEnv(t, &identityStub{refreshFails: true})
	require.NoError(t, e.manager.SignIn(context.Background(), Credentials{AccessToken: "stale", RefreshToken: "refresh-0"}))

	_, err := e.get(t)
	require.True(t, errors.Is(err, ErrSessionExpired), "got %v", err)

	c, err := e.store.Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, Credentials{}, c)
	require.Equal(t, int32(1), e.fired.Load())
	require.Equal(t, int32(1), e.stub.refreshCalls.Load())
}

func TestTransport_RejectedRetryClearsAndRedirects(t *testing.T) {
	e := newSessionEnv(t, &identityStub{generation: 1, accountGone: true})
	require.NoError(t, e.manager.SignIn(context.Background(), Credentials{AccessToken: "access-0", RefreshToken: "refresh-1"}))

	_, err := e.get(t)
	require.True(t, errors.Is(err, ErrSessionExpired), "got %v", err)

	c, err := e.store.Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, Credentials{}, c)
	require.Equal(t, int32(1), e.stub.refreshCalls.Load(), "no second refresh")
	require.Equal(t, int32(1), e.fired.Load())
}

func TestTransport_NoSessionPassesThrough(t *testing.T) {
	e := newSessionEnv(t, &identityStub{})

	resp, err := e.get(t)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.Equal(t, int32(0), e.stub.refreshCalls.Load())
	require.Equal(t, int32(0), e.fired.Load())
}

func TestTransport_ConcurrentUnauthorizedShareOneRefresh(t *testing.T) {
	e := newSessionEnv(t, &identityStub{generation: 1, refreshDelay: 50 * time.Millisecond})
	require.NoError(t, e.manager.SignIn(context.Background(), Credentials{AccessToken: "access-0", RefreshToken: "refresh-1"}))

	var wg sync.WaitGroup
	codes := make([]int, 10)
	errs := make([]error, 10)
	for i := range codes {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			resp, err := e.get(t)
			errs[i] = err
			if err == nil {
				codes[i] = resp.StatusCode
				resp.Body.Close()
			}
		}(i)
	}
	wg.Wait()

	for i := range codes {
		require.NoError(t, errs[i])
		require.Equal(t, http.StatusOK, codes[i])
	}
	require.Equal(t, int32(1), e.stub.refreshCalls.Load())
	require.Equal(t, int32(0), e.fired.Load())
}

func TestTransport_ConcurrentFailuresRedirectOnce(t *testing.T) {
	e := newSessionEnv(t, &identityStub{refreshFails: true, refreshDelay: 20 * time.Millisecond})
	require.NoError(t, e.manager.SignIn(context.Background(), Credentials{AccessToken: "stale", RefreshToken: "refresh-0"}))

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if resp, err := e.get(t); err == nil {
				resp.Body.Close()
			}
		}()
	}
	wg.Wait()

	require.Equal(t, int32(1), e.fired.Load())
}
