package session

import (
	"sync"
	"time"
)

// DefaultRedirectWindow is how long a fired redirect suppresses further ones.
const DefaultRedirectWindow = 5 * time.Second

type gateState int

const (
	gateIdle gateState = iota
	gateRedirecting
)

// RedirectGate debounces redirects to the login view. It moves from idle to
// redirecting when a redirect fires and back to idle when the redirect
// completes, when the login view is reached or when the window elapses.
type RedirectGate struct {
	mu       sync.Mutex
	state    gateState
	firedAt  time.Time
	window   time.Duration
	now      func() time.Time
	redirect func()
	onLogin  func() bool
}

// NewRedirectGate returns a gate that calls redirect to send the user to the
// login view. onLoginView may be nil.
func NewRedirectGate(redirect func(), onLoginView func() bool) *RedirectGate {
	return &RedirectGate{
		window:   DefaultRedirectWindow,
		now:      time.Now,
		redirect: redirect,
		onLogin:  onLoginView,
	}
}

// WithClock replaces the gate's time source.
func (g *RedirectGate) WithClock(now func() time.Time) *RedirectGate {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.now = now
	return g
}

// Trigger fires the redirect unless one fired within the window or the user
// is already on the login view. It reports whether it fired.
func (g *RedirectGate) Trigger() bool {
	g.mu.Lock()
	if g.onLogin != nil && g.onLogin() {
		g.state = gateIdle
		g.mu.Unlock()
		return false
	}
	now := g.now()
	if g.state == gateRedirecting && now.Sub(g.firedAt) < g.window {
		g.mu.Unlock()
		return false
	}
	g.state = gateRedirecting
	g.firedAt = now
	g.mu.Unlock()

	if g.redirect != nil {
		g.redirect()
	}
	return true
}

// Complete marks the in-flight redirect as finished.
func (g *RedirectGate) Complete() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.state = gateIdle
}

// Redirecting reports whether a redirect is in flight and still inside its
// suppression window.
func (g *RedirectGate) Redirecting() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state == gateRedirecting && g.now().Sub(g.firedAt) < g.window
}
