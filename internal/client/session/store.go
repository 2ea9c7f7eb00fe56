// Package session is the client side of the storefront login: it keeps the
// access and refresh credentials, attaches the access credential to
// outgoing requests, refreshes it once when the server rejects it and sends
// the user back to the login view when that fails.
package session

import (
	"context"
	"sync"

	"github.com/dmitrijs2005/storefront/internal/client/repositories/metadata"
)

// Credentials is the locally held session.
type Credentials struct {
	AccessToken  string
	RefreshToken string
}

// CredentialStore persists Credentials between requests and runs.
type CredentialStore interface {
	Load(ctx context.Context) (Credentials, error)
	Save(ctx context.Context, c Credentials) error
	Clear(ctx context.Context) error
}

const (
	accessTokenKey  = "access_token"
	refreshTokenKey = "refresh_token"
)

// MetadataStore keeps Credentials in the client's SQLite metadata table.
type MetadataStore struct {
	repo metadata.Repository
}

func NewMetadataStore(repo metadata.Repository) *MetadataStore {
	return &MetadataStore{repo: repo}
}

func (s *MetadataStore) Load(ctx context.Context) (Credentials, error) {
	access, err := s.repo.Get(ctx, accessTokenKey)
	if err != nil {
		return Credentials{}, err
	}
	refresh, err := s.repo.Get(ctx, refreshTokenKey)
	if err != nil {
		return Credentials{}, err
	}
	return Credentials{AccessToken: string(access), RefreshToken: string(refresh)}, nil
}

func (s *MetadataStore) Save(ctx context.Context, c Credentials) error {
	return s.repo.SetMany(ctx, map[string][]byte{
		accessTokenKey:  []byte(c.AccessToken),
		refreshTokenKey: []byte(c.RefreshToken),
	})
}

func (s *MetadataStore) Clear(ctx context.Context) error {
	return s.repo.Delete(ctx, accessTokenKey, refreshTokenKey)
}

// MemoryStore is a CredentialStore for a single process.
type MemoryStore struct {
	mu sync.Mutex
	c  Credentials
}

func (s *MemoryStore) Load(context.Context) (Credentials, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.c, nil
}

func (s *MemoryStore) Save(_ context.Context, c Credentials) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.c = c
	return nil
}

func (s *MemoryStore) Clear(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.c = Credentials{}
	return nil
}
