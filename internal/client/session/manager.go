package session

import (
	"context"
	"net/http"
	"strings"
	"time"
)

// Manager ties a CredentialStore, a RedirectGate and a Transport together.
type Manager struct {
	store     CredentialStore
	gate      *RedirectGate
	transport *Transport
	timeout   time.Duration
}

// NewManager builds a session for the identity service at baseURL.
func NewManager(baseURL string, store CredentialStore, gate *RedirectGate, base http.RoundTripper, timeout time.Duration) *Manager {
	refreshURL := strings.TrimRight(baseURL, "/") + "/auth/refresh"
	return &Manager{
		store:     store,
		gate:      gate,
		transport: NewTransport(base, store, gate, refreshURL),
		timeout:   timeout,
	}
}

// HTTPClient returns a client whose requests carry the session.
func (m *Manager) HTTPClient() *http.Client {
	return &http.Client{Transport: m.transport, Timeout: m.timeout}
}

// SignIn stores a fresh session. Reaching a signed-in state ends any
// in-flight login redirect.
func (m *Manager) SignIn(ctx context.Context, c Credentials) error {
	if err := m.store.Save(ctx, c); err != nil {
		return err
	}
	if m.gate != nil {
		m.gate.Complete()
	}
	return nil
}

// SignOut forgets the local session.
func (m *Manager) SignOut(ctx context.Context) error {
	return m.store.Clear(ctx)
}

func (m *Manager) Credentials(ctx context.Context) (Credentials, error) {
	return m.store.Load(ctx)
}
