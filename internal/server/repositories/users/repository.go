// Package users declares the Credential Store contract and its PostgreSQL
// implementation. The store holds no policy: hashing, validation and token
// generation happen in the service layer.
package users

import (
	"context"
	"time"

	"github.com/dmitrijs2005/storefront/internal/server/models"
)

// Repository persists user records. Emails are passed in already
// normalized (models.NormalizeEmail). Lookups that match nothing return
// common.ErrorNotFound.
type Repository interface {
	// Create inserts u and fails with common.ErrEmailTaken when the email
	// is already registered.
	Create(ctx context.Context, u *models.User) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	FindByProviderID(ctx context.Context, providerID string) (*models.User, error)

	SetPassword(ctx context.Context, id string, passwordHash string) error
	SetResetToken(ctx context.Context, id string, tokenHash string, expiresAt time.Time) error

	// ConsumeResetToken finds the user holding tokenHash and clears the
	// reset fields in the same atomic step. If the stored expiry is not
	// after now the fields are still cleared and common.ErrorNotFound is
	// returned.
	ConsumeResetToken(ctx context.Context, tokenHash string, now time.Time) (*models.User, error)

	LinkProvider(ctx context.Context, id string, providerID string, emailVerified bool) error
	UpdateProfile(ctx context.Context, id string, p models.Profile) (*models.User, error)
	SetRole(ctx context.Context, id string, role models.Role) error
}
