// Package memstore keeps users and refresh records in process memory. It
// backs the "memory" store backend for local runs and the service tests.
// Every operation holds the store mutex, which makes the compound
// operations (Rotate, ConsumeResetToken) atomic.
package memstore

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrijs2005/storefront/internal/common"
	"github.com/dmitrijs2005/storefront/internal/server/models"
)

type Store struct {
	mu     sync.Mutex
	now    func() time.Time
	users  map[string]*models.User
	tokens map[string]*models.RefreshToken
}

func New() *Store {
	return &Store{
		now:    time.Now,
		users:  make(map[string]*models.User),
		tokens: make(map[string]*models.RefreshToken),
	}
}

// Users returns the Credential Store view of s.
func (s *Store) Users() *UserRepository { return &UserRepository{s: s} }

// RefreshTokens returns the Refresh Ledger view of s.
func (s *Store) RefreshTokens() *RefreshTokenRepository { return &RefreshTokenRepository{s: s} }

type UserRepository struct {
	s *Store
}

func clone(u *models.User) *models.User {
	c := *u
	if u.ResetExpiresAt != nil {
		t := *u.ResetExpiresAt
		c.ResetExpiresAt = &t
	}
	return &c
}

// findLocked scans users; the caller holds s.mu.
func (s *Store) findLocked(match func(*models.User) bool) *models.User {
	for _, u := range s.users {
		if match(u) {
			return u
		}
	}
	return nil
}

func (r *UserRepository) Create(ctx context.Context, u *models.User) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	email := models.NormalizeEmail(u.Email)
	if r.s.findLocked(func(x *models.User) bool { return models.NormalizeEmail(x.Email) == email }) != nil {
		return nil, common.ErrEmailTaken
	}
	c := clone(u)
	now := r.s.now().UTC()
	c.CreatedAt, c.UpdatedAt = now, now
	r.s.users[c.ID] = c
	return clone(c), nil
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	email = models.NormalizeEmail(email)
	return r.find(func(u *models.User) bool { return models.NormalizeEmail(u.Email) == email })
}

func (r *UserRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	return r.find(func(u *models.User) bool { return u.ID == id })
}

func (r *UserRepository) FindByProviderID(ctx context.Context, providerID string) (*models.User, error) {
	return r.find(func(u *models.User) bool { return providerID != "" && u.ProviderID == providerID })
}

func (r *UserRepository) find(match func(*models.User) bool) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if u := r.s.findLocked(match); u != nil {
		return clone(u), nil
	}
	return nil, common.ErrorNotFound
}

func (r *UserRepository) update(id string, fn func(u *models.User)) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	fn(u)
	u.UpdatedAt = r.s.now().UTC()
	return clone(u), nil
}

func (r *UserRepository) SetPassword(ctx context.Context, id string, passwordHash string) error {
	_, err := r.update(id, func(u *models.User) { u.PasswordHash = passwordHash })
	return err
}

func (r *UserRepository) SetResetToken(ctx context.Context, id string, tokenHash string, expiresAt time.Time) error {
	_, err := r.update(id, func(u *models.User) {
		u.ResetTokenHash = tokenHash
		u.ResetExpiresAt = &expiresAt
	})
	return err
}

func (r *UserRepository) ConsumeResetToken(ctx context.Context, tokenHash string, now time.Time) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	u := r.s.findLocked(func(x *models.User) bool { return tokenHash != "" && x.ResetTokenHash == tokenHash })
	if u == nil {
		return nil, common.ErrorNotFound
	}
	expires := u.ResetExpiresAt
	u.ResetTokenHash = ""
	u.ResetExpiresAt = nil
	u.UpdatedAt = now.UTC()
	if expires == nil || !expires.After(now) {
		return nil, common.ErrorNotFound
	}
	return clone(u), nil
}

func (r *UserRepository) LinkProvider(ctx context.Context, id string, providerID string, emailVerified bool) error {
	_, err := r.update(id, func(u *models.User) {
		u.ProviderID = providerID
		u.EmailVerified = u.EmailVerified || emailVerified
	})
	return err
}

func (r *UserRepository) UpdateProfile(ctx context.Context, id string, p models.Profile) (*models.User, error) {
	return r.update(id, func(u *models.User) { p.Apply(u) })
}

func (r *UserRepository) SetRole(ctx context.Context, id string, role models.Role) error {
	_, err := r.update(id, func(u *models.User) { u.Role = role })
	return err
}

type RefreshTokenRepository struct {
	s *Store
}

func (r *RefreshTokenRepository) Create(ctx context.Context, t *models.RefreshToken) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c := *t
	r.s.tokens[t.TokenHash] = &c
	return nil
}

func (r *RefreshTokenRepository) Find(ctx context.Context, tokenHash string) (*models.RefreshToken, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.tokens[tokenHash]
	if !ok {
		return nil, common.ErrorNotFound
	}
	c := *t
	return &c, nil
}

func (r *RefreshTokenRepository) Delete(ctx context.Context, tokenHash string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.tokens, tokenHash)
	return nil
}

func (r *RefreshTokenRepository) DeleteByUser(ctx context.Context, userID string) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for h, t := range r.s.tokens {
		if t.UserID == userID {
			delete(r.s.tokens, h)
			n++
		}
	}
	return n, nil
}

func (r *RefreshTokenRepository) Rotate(ctx context.Context, oldHash string, next *models.RefreshToken) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	old, ok := r.s.tokens[oldHash]
	if !ok || old.UserID != next.UserID {
		return common.ErrorNotFound
	}
	delete(r.s.tokens, oldHash)
	c := *next
	r.s.tokens[next.TokenHash] = &c
	return nil
}

// Len reports the number of live ledger records.
func (r *RefreshTokenRepository) Len() int {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return len(r.s.tokens)
}
