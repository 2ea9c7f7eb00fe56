// Package services contains the identity service's business logic: account
// registration and login, refresh rotation, session verification, OAuth
// account linking and the password reset flow.
package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/storefront/internal/common"
	"github.com/dmitrijs2005/storefront/internal/cryptox"
	"github.com/dmitrijs2005/storefront/internal/server/models"
	"github.com/dmitrijs2005/storefront/internal/server/repositories/users"
	"github.com/google/uuid"
)

// CredentialStore layers password handling over a users.Repository. It is
// the only place plaintext passwords are turned into hashes or compared.
type CredentialStore struct {
	users  users.Repository
	hasher cryptox.PasswordHasher

	dummyOnce sync.Once
	dummyHash string
}

func NewCredentialStore(repo users.Repository, hasher cryptox.PasswordHasher) *CredentialStore {
	return &CredentialStore{users: repo, hasher: hasher}
}

// CreateUser hashes plaintext and stores a new account. The email is
// case-folded first; a duplicate fails with common.ErrEmailTaken.
func (c *CredentialStore) CreateUser(ctx context.Context, email, name, plaintext string, role models.Role) (*models.User, error) {
	hash, err := c.HashPassword(plaintext)
	if err != nil {
		return nil, err
	}
	if role == "" {
		role = models.RoleUser
	}
	return c.users.Create(ctx, &models.User{
		ID:           uuid.NewString(),
		Email:        models.NormalizeEmail(email),
		Name:         name,
		PasswordHash: hash,
		Role:         role,
	})
}

// CreateOAuthUser stores an account for a first-time provider login. The
// password is a random value nobody ever sees, so the account can only be
// entered through the provider or after a password reset.
func (c *CredentialStore) CreateOAuthUser(ctx context.Context, p models.OAuthProfile) (*models.User, error) {
	placeholder, err := cryptox.NewToken()
	if err != nil {
		return nil, err
	}
	hash, err := c.HashPassword(placeholder)
	if err != nil {
		return nil, err
	}
	name := p.Name
	if name == "" {
		name = models.NormalizeEmail(p.Email)
	}
	return c.users.Create(ctx, &models.User{
		ID:            uuid.NewString(),
		Email:         models.NormalizeEmail(p.Email),
		Name:          name,
		PasswordHash:  hash,
		Role:          models.RoleUser,
		EmailVerified: p.EmailVerified,
		ProviderID:    p.ProviderID,
	})
}

func (c *CredentialStore) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return c.users.FindByEmail(ctx, models.NormalizeEmail(email))
}

func (c *CredentialStore) FindByID(ctx context.Context, id string) (*models.User, error) {
	return c.users.FindByID(ctx, id)
}

func (c *CredentialStore) FindByProviderID(ctx context.Context, providerID string) (*models.User, error) {
	return c.users.FindByProviderID(ctx, providerID)
}

// VerifyPassword compares plaintext against the user's hash. A nil user is
// checked against a throwaway hash so that a missing account costs the same
// time as a wrong password.
func (c *CredentialStore) VerifyPassword(u *models.User, plaintext string) bool {
	if u == nil {
		c.hasher.Compare(c.fakeHash(), plaintext)
		return false
	}
	return c.hasher.Compare(u.PasswordHash, plaintext)
}

func (c *CredentialStore) fakeHash() string {
	c.dummyOnce.Do(func() {
		c.dummyHash, _ = c.hasher.Hash(uuid.NewString())
	})
	return c.dummyHash
}

func (c *CredentialStore) HashPassword(plaintext string) (string, error) {
	if plaintext == "" {
		return "", fmt.Errorf("%w: password is required", common.ErrValidation)
	}
	return c.hasher.Hash(plaintext)
}

// SetPassword re-hashes plaintext and stores it for userID.
func (c *CredentialStore) SetPassword(ctx context.Context, userID, plaintext string) error {
	hash, err := c.HashPassword(plaintext)
	if err != nil {
		return err
	}
	return c.users.SetPassword(ctx, userID, hash)
}

// SetResetToken stores only the hash of token.
func (c *CredentialStore) SetResetToken(ctx context.Context, userID, token string, expiry time.Time) error {
	return c.users.SetResetToken(ctx, userID, cryptox.HashToken(token), expiry)
}

// ConsumeResetToken finds and clears the reset token in one store step.
// Unknown, already used and expired tokens all fail with
// common.ErrInvalidOrExpired.
func (c *CredentialStore) ConsumeResetToken(ctx context.Context, token string, now time.Time) (*models.User, error) {
	if token == "" {
		return nil, common.ErrInvalidOrExpired
	}
	u, err := c.users.ConsumeResetToken(ctx, cryptox.HashToken(token), now)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrInvalidOrExpired
		}
		return nil, err
	}
	return u, nil
}

func (c *CredentialStore) LinkProvider(ctx context.Context, userID, providerID string, emailVerified bool) error {
	return c.users.LinkProvider(ctx, userID, providerID, emailVerified)
}
