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
	"go.mongodb.org/mongo-driver/mongo/options"
)

type userDocument struct {
	ID             string     `bson:"_id"`
	Email          string     `bson:"email"`
	Name           string     `bson:"name"`
	PasswordHash   string     `bson:"password_hash"`
	Role           string     `bson:"role"`
	EmailVerified  bool       `bson:"email_verified"`
	ProviderID     string     `bson:"provider_id,omitempty"`
	Phone          string     `bson:"phone"`
	Address        string     `bson:"address"`
	ResetTokenHash string     `bson:"reset_token_hash,omitempty"`
	ResetExpiresAt *time.Time `bson:"reset_expires_at,omitempty"`
	CreatedAt      time.Time  `bson:"created_at"`
	UpdatedAt      time.Time  `bson:"updated_at"`
}

func toDocument(u *models.User) userDocument {
	return userDocument{
		ID:             u.ID,
		Email:          models.NormalizeEmail(u.Email),
		Name:           u.Name,
		PasswordHash:   u.PasswordHash,
		Role:           string(u.Role),
		EmailVerified:  u.EmailVerified,
		ProviderID:     u.ProviderID,
		Phone:          u.Phone,
		Address:        u.Address,
		ResetTokenHash: u.ResetTokenHash,
		ResetExpiresAt: u.ResetExpiresAt,
		CreatedAt:      u.CreatedAt,
		UpdatedAt:      u.UpdatedAt,
	}
}

func (d *userDocument) model() *models.User {
	return &models.User{
		ID:             d.ID,
		Email:          d.Email,
		Name:           d.Name,
		PasswordHash:   d.PasswordHash,
		Role:           models.Role(d.Role),
		EmailVerified:  d.EmailVerified,
		ProviderID:     d.ProviderID,
		Phone:          d.Phone,
		Address:        d.Address,
		ResetTokenHash: d.ResetTokenHash,
		ResetExpiresAt: d.ResetExpiresAt,
		CreatedAt:      d.CreatedAt,
		UpdatedAt:      d.UpdatedAt,
	}
}

// UserRepository implements users.Repository on a MongoDB collection.
type UserRepository struct {
	coll *mongo.Collection
	now  func() time.Time
}

func (r *UserRepository) Create(ctx context.Context, u *models.User) (*models.User, error) {
	now := r.now().UTC()
	doc := toDocument(u)
	doc.CreatedAt, doc.UpdatedAt = now, now

	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, common.ErrEmailTaken
		}
		return nil, fmt.Errorf("mongo error: %w", err)
	}
	return doc.model(), nil
}

func (r *UserRepository) findOne(ctx context.Context, filter bson.M) (*models.User, error) {
	var doc userDocument
	if err := r.coll.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("mongo error: %w", err)
	}
	return doc.model(), nil
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.findOne(ctx, bson.M{"email": models.NormalizeEmail(email)})
}

func (r *UserRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *UserRepository) FindByProviderID(ctx context.Context, providerID string) (*models.User, error) {
	return r.findOne(ctx, bson.M{"provider_id": providerID})
}

func (r *UserRepository) updateByID(ctx context.Context, id string, update bson.M) error {
	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return fmt.Errorf("mongo error: %w", err)
	}
	if res.MatchedCount == 0 {
		return common.ErrorNotFound
	}
	return nil
}

func (r *UserRepository) SetPassword(ctx context.Context, id string, passwordHash string) error {
	return r.updateByID(ctx, id, bson.M{"$set": bson.M{"password_hash": passwordHash, "updated_at": r.now().UTC()}})
}

func (r *UserRepository) SetResetToken(ctx context.Context, id string, tokenHash string, expiresAt time.Time) error {
	return r.updateByID(ctx, id, bson.M{"$set": bson.M{
		"reset_token_hash": tokenHash,
		"reset_expires_at": expiresAt.UTC(),
		"updated_at":       r.now().UTC(),
	}})
}

// ConsumeResetToken unsets the reset fields with FindOneAndUpdate and judges
// expiry on the pre-image, so a racing consumer sees no match.
func (r *UserRepository) ConsumeResetToken(ctx context.Context, tokenHash string, now time.Time) (*models.User, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.Before)
	update := bson.M{
		"$unset": bson.M{"reset_token_hash": "", "reset_expires_at": ""},
		"$set":   bson.M{"updated_at": now.UTC()},
	}

	var before userDocument
	err := r.coll.FindOneAndUpdate(ctx, bson.M{"reset_token_hash": tokenHash}, update, opts).Decode(&before)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("mongo error: %w", err)
	}
	if before.ResetExpiresAt == nil || !before.ResetExpiresAt.After(now) {
		return nil, common.ErrorNotFound
	}
	u := before.model()
	u.ResetTokenHash = ""
	u.ResetExpiresAt = nil
	return u, nil
}

func (r *UserRepository) LinkProvider(ctx context.Context, id string, providerID string, emailVerified bool) error {
	set := bson.M{"provider_id": providerID, "updated_at": r.now().UTC()}
	if emailVerified {
		set["email_verified"] = true
	}
	err := r.updateByID(ctx, id, bson.M{"$set": set})
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("provider already linked to another account: %w", err)
	}
	return err
}

func (r *UserRepository) UpdateProfile(ctx context.Context, id string, p models.Profile) (*models.User, error) {
	set := bson.M{"updated_at": r.now().UTC()}
	if p.Name != nil {
		set["name"] = *p.Name
	}
	if p.Phone != nil {
		set["phone"] = *p.Phone
	}
	if p.Address != nil {
		set["address"] = *p.Address
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var doc userDocument
	if err := r.coll.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set}, opts).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("mongo error: %w", err)
	}
	return doc.model(), nil
}

func (r *UserRepository) SetRole(ctx context.Context, id string, role models.Role) error {
	return r.updateByID(ctx, id, bson.M{"$set": bson.M{"role": string(role), "updated_at": r.now().UTC()}})
}
