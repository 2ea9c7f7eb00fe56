package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/storefront/internal/common"
	"github.com/dmitrijs2005/storefront/internal/server/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

type refreshTokenDocument struct {
	ID        string    `bson:"_id"`
	UserID    string    `bson:"user_id"`
	TokenHash string    `bson:"token_hash"`
	ExpiresAt time.Time `bson:"expires_at"`
	CreatedAt time.Time `bson:"created_at"`
}

// RefreshTokenRepository implements refreshtokens.Repository on MongoDB.
type RefreshTokenRepository struct {
	coll *mongo.Collection
}

func (r *RefreshTokenRepository) Create(ctx context.Context, t *models.RefreshToken) error {
	doc := refreshTokenDocument{ID: t.ID, UserID: t.UserID, TokenHash: t.TokenHash, ExpiresAt: t.ExpiresAt.UTC(), CreatedAt: t.CreatedAt.UTC()}
	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("mongo error: %w", err)
	}
	return nil
}

func (r *RefreshTokenRepository) Find(ctx context.Context, tokenHash string) (*models.RefreshToken, error) {
	var doc refreshTokenDocument
	if err := r.coll.FindOne(ctx, bson.M{"token_hash": tokenHash}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("mongo error: %w", err)
	}
	return &models.RefreshToken{ID: doc.ID, UserID: doc.UserID, TokenHash: doc.TokenHash, ExpiresAt: doc.ExpiresAt, CreatedAt: doc.CreatedAt}, nil
}

func (r *RefreshTokenRepository) Delete(ctx context.Context, tokenHash string) error {
	if _, err := r.coll.DeleteOne(ctx, bson.M{"token_hash": tokenHash}); err != nil {
		return fmt.Errorf("mongo error: %w", err)
	}
	return nil
}

func (r *RefreshTokenRepository) DeleteByUser(ctx context.Context, userID string) (int64, error) {
	res, err := r.coll.DeleteMany(ctx, bson.M{"user_id": userID})
	if err != nil {
		return 0, fmt.Errorf("mongo error: %w", err)
	}
	return res.DeletedCount, nil
}

// Rotate rewrites the old record in place with one UpdateOne, so the swap
// from oldHash to next is a single-document write: it either lands whole or
// leaves the old record untouched. The record keeps its original _id.
func (r *RefreshTokenRepository) Rotate(ctx context.Context, oldHash string, next *models.RefreshToken) error {
	filter := bson.M{"token_hash": oldHash, "user_id": next.UserID}
	update := bson.M{"$set": bson.M{
		"token_hash": next.TokenHash,
		"expires_at": next.ExpiresAt.UTC(),
		"created_at": next.CreatedAt.UTC(),
	}}
	res, err := r.coll.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("mongo error: %w", err)
	}
	if res.MatchedCount == 0 {
		return common.ErrorNotFound
	}
	return nil
}
