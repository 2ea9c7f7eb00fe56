package repomanager

import (
	"context"

	"github.com/dmitrijs2005/storefront/internal/server/repositories/mongostore"
	"github.com/dmitrijs2005/storefront/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/storefront/internal/server/repositories/users"
	"go.mongodb.org/mongo-driver/mongo"
)

// MongoRepositoryManager serves both stores from one MongoDB database.
type MongoRepositoryManager struct {
	client *mongo.Client
	store  *mongostore.Store
}

func OpenMongo(ctx context.Context, uri, database string) (*MongoRepositoryManager, error) {
	client, err := mongostore.Connect(ctx, uri)
	if err != nil {
		return nil, err
	}
	return &MongoRepositoryManager{client: client, store: mongostore.New(client.Database(database))}, nil
}

func (m *MongoRepositoryManager) Users() users.Repository { return m.store.Users() }

func (m *MongoRepositoryManager) RefreshTokens() refreshtokens.Repository {
	return m.store.RefreshTokens()
}

// Atomic calls fn with the plain repositories. Each store operation is
// atomic on its own; multi-document transactions would need a replica set.
func (m *MongoRepositoryManager) Atomic(ctx context.Context, fn func(ctx context.Context, r Repositories) error) error {
	return fn(ctx, Repositories{Users: m.Users(), RefreshTokens: m.RefreshTokens()})
}

// RunMigrations creates the collection indexes.
func (m *MongoRepositoryManager) RunMigrations(ctx context.Context) error {
	return m.store.EnsureIndexes(ctx)
}

func (m *MongoRepositoryManager) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}
