// Package repomanager selects a storage backend and hands out the Credential
// Store and Refresh Ledger bound to it.
package repomanager

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/storefront/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/storefront/internal/server/repositories/users"
)

const (
	BackendPostgres = "postgres"
	BackendMongo    = "mongo"
	BackendMemory   = "memory"
)

// Repositories is the pair of stores a unit of work operates on.
type Repositories struct {
	Users         users.Repository
	RefreshTokens refreshtokens.Repository
}

type RepositoryManager interface {
	RunMigrations(ctx context.Context) error
	Users() users.Repository
	RefreshTokens() refreshtokens.Repository
	// Atomic runs fn against repositories that share one unit of work where
	// the backend supports it. An error from fn rolls the work back.
	Atomic(ctx context.Context, fn func(ctx context.Context, r Repositories) error) error
	Close(ctx context.Context) error
}

// Options picks the backend and its connection settings.
type Options struct {
	Backend       string
	DatabaseDSN   string
	MongoURI      string
	MongoDatabase string
}

// Open connects to the backend named in opts.
func Open(ctx context.Context, opts Options) (RepositoryManager, error) {
	switch opts.Backend {
	case BackendPostgres, "":
		return OpenPostgres(ctx, opts.DatabaseDSN)
	case BackendMongo:
		return OpenMongo(ctx, opts.MongoURI, opts.MongoDatabase)
	case BackendMemory:
		return NewMemoryRepositoryManager(), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", opts.Backend)
	}
}
