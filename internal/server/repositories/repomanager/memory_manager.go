package repomanager

import (
	"context"

	"github.com/dmitrijs2005/storefront/internal/server/repositories/memstore"
	"github.com/dmitrijs2005/storefront/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/storefront/internal/server/repositories/users"
)

// MemoryRepositoryManager keeps everything in process. Used for local runs
// and tests; state is lost on exit.
type MemoryRepositoryManager struct {
	store *memstore.Store
}

func NewMemoryRepositoryManager() *MemoryRepositoryManager {
	return &MemoryRepositoryManager{store: memstore.New()}
}

func (m *MemoryRepositoryManager) Users() users.Repository { return m.store.Users() }

func (m *MemoryRepositoryManager) RefreshTokens() refreshtokens.Repository {
	return m.store.RefreshTokens()
}

func (m *MemoryRepositoryManager) Atomic(ctx context.Context, fn func(ctx context.Context, r Repositories) error) error {
	return fn(ctx, Repositories{Users: m.Users(), RefreshTokens: m.RefreshTokens()})
}

func (m *MemoryRepositoryManager) RunMigrations(context.Context) error { return nil }

func (m *MemoryRepositoryManager) Close(context.Context) error { return nil }
