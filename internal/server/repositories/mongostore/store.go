// Package mongostore implements the Credential Store and Refresh Ledger on
// MongoDB. Atomicity of the compound operations comes from single-document
// commands: FindOneAndUpdate for reset consumption and an in-place UpdateOne
// for rotation.
package mongostore

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	usersCollection  = "users"
	tokensCollection = "refresh_tokens"
)

type Store struct {
	users  *mongo.Collection
	tokens *mongo.Collection
	now    func() time.Time
}

func New(db *mongo.Database) *Store {
	return &Store{
		users:  db.Collection(usersCollection),
		tokens: db.Collection(tokensCollection),
		now:    time.Now,
	}
}

// Connect opens a client for uri and verifies it with a ping.
func Connect(ctx context.Context, uri string) (*mongo.Client, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping: %w", err)
	}
	return client, nil
}

// EnsureIndexes creates the uniqueness and lookup indexes both repositories
// rely on. It is idempotent.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	_, err := s.users.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true).SetName("users_email_key")},
		{
			Keys:    bson.D{{Key: "provider_id", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("users_provider_id_key").
				SetPartialFilterExpression(bson.M{"provider_id": bson.M{"$type": "string"}}),
		},
		{
			Keys:    bson.D{{Key: "reset_token_hash", Value: 1}},
			Options: options.Index().SetName("users_reset_token_hash_idx").
				SetPartialFilterExpression(bson.M{"reset_token_hash": bson.M{"$type": "string"}}),
		},
	})
	if err != nil {
		return fmt.Errorf("create user indexes: %w", err)
	}

	_, err = s.tokens.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "token_hash", Value: 1}}, Options: options.Index().SetUnique(true).SetName("refresh_tokens_hash_key")},
		{Keys: bson.D{{Key: "user_id", Value: 1}}, Options: options.Index().SetName("refresh_tokens_user_idx")},
		// Housekeeping only: the ledger still checks expiry itself.
		{Keys: bson.D{{Key: "expires_at", Value: 1}}, Options: options.Index().SetExpireAfterSeconds(0).SetName("refresh_tokens_ttl")},
	})
	if err != nil {
		return fmt.Errorf("create refresh token indexes: %w", err)
	}
	return nil
}

func (s *Store) Users() *UserRepository { return &UserRepository{coll: s.users, now: s.now} }

func (s *Store) RefreshTokens() *RefreshTokenRepository { return &RefreshTokenRepository{coll: s.tokens} }
