// Package refreshtokens declares the Refresh Ledger contract and its
// PostgreSQL implementation.
package refreshtokens

import (
	"context"

	"github.com/dmitrijs2005/storefront/internal/server/models"
)

// Repository keeps one record per live refresh credential, keyed by the
// credential's hash. Missing records yield common.ErrorNotFound.
type Repository interface {
	Create(ctx context.Context, t *models.RefreshToken) error
	Find(ctx context.Context, tokenHash string) (*models.RefreshToken, error)
	// Delete removes the record; deleting a missing record is not an error.
	Delete(ctx context.Context, tokenHash string) error
	// DeleteByUser revokes every record owned by userID and reports how
	// many were removed.
	DeleteByUser(ctx context.Context, userID string) (int64, error)
	// Rotate deletes oldHash and inserts next as one atomic step. If oldHash
	// is no longer on record nothing is inserted and common.ErrorNotFound is
	// returned, so of two concurrent rotations of the same token exactly
	// one succeeds.
	Rotate(ctx context.Context, oldHash string, next *models.RefreshToken) error
}
