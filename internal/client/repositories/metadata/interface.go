package metadata

import (
	"context"
)

// Repository is a small key/value store in the client's SQLite file.
// Get returns (nil, nil) for a missing key.
type Repository interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	// SetMany writes all values in one transaction.
	SetMany(ctx context.Context, values map[string][]byte) error
	// Delete removes keys in one transaction. Missing keys are ignored.
	Delete(ctx context.Context, keys ...string) error
}
