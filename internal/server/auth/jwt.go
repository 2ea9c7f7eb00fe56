// Package auth issues and verifies the service's bearer credentials: short
// lived access tokens and long lived refresh tokens, both HS256 JWTs signed
// with one process-wide secret.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/storefront/internal/common"
	"github.com/dmitrijs2005/storefront/internal/server/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	// TokenIssuer is written to and required in the iss claim.
	TokenIssuer = "storefront-identity"

	DefaultAccessTTL = 24 * time.Hour

	// RefreshTTL is fixed: refresh credentials always live seven days.
	RefreshTTL = 7 * 24 * time.Hour
)

type TokenType string

const (
	TypeAccess  TokenType = "access"
	TypeRefresh TokenType = "refresh"
)

// Claims is the payload of both token types. Refresh tokens leave Email and
// Role empty.
type Claims struct {
	jwt.RegisteredClaims
	UserID string      `json:"userId"`
	Email  string      `json:"email,omitempty"`
	Role   models.Role `json:"role,omitempty"`
	Type   TokenType   `json:"typ"`
}

// Issuer mints and verifies tokens. It is safe for concurrent use.
type Issuer struct {
	secret    []byte
	accessTTL time.Duration
	now       func() time.Time
}

// NewIssuer refuses to build an issuer without a secret so that a
// misconfigured process cannot start signing with a guessable key.
func NewIssuer(secret string, accessTTL time.Duration) (*Issuer, error) {
	if secret == "" {
		return nil, common.ErrMissingSecret
	}
	if accessTTL <= 0 {
		accessTTL = DefaultAccessTTL
	}
	return &Issuer{
		secret:    []byte(secret),
		accessTTL: accessTTL,
		now:       time.Now,
	}, nil
}

// WithClock returns a copy of the issuer that reads time from now.
func (i *Issuer) WithClock(now func() time.Time) *Issuer {
	c := *i
	c.now = now
	return &c
}

func (i *Issuer) AccessTTL() time.Duration { return i.accessTTL }

// IssueAccessToken signs {userId, email, role, exp} for id. The returned
// time is the embedded expiry.
func (i *Issuer) IssueAccessToken(id models.Identity) (string, time.Time, error) {
	return i.sign(Claims{
		UserID: id.UserID,
		Email:  id.Email,
		Role:   id.Role,
		Type:   TypeAccess,
	}, i.accessTTL)
}

// IssueRefreshToken signs a minimal payload for id.UserID. Each token gets
// a random jti, so two tokens minted in the same second still differ.
func (i *Issuer) IssueRefreshToken(id models.Identity) (string, time.Time, error) {
	return i.sign(Claims{
		RegisteredClaims: jwt.RegisteredClaims{ID: uuid.NewString()},
		UserID:           id.UserID,
		Type:             TypeRefresh,
	}, RefreshTTL)
}

func (i *Issuer) sign(c Claims, ttl time.Duration) (string, time.Time, error) {
	now := i.now()
	exp := jwt.NewNumericDate(now.Add(ttl))

	c.Issuer = TokenIssuer
	c.Subject = c.UserID
	c.IssuedAt = jwt.NewNumericDate(now)
	c.ExpiresAt = exp

	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign %s token: %w", c.Type, err)
	}
	return s, exp.Time, nil
}

// Verify checks signature, issuer and expiry. It fails with
// common.ErrTokenExpired for an expired but otherwise genuine token and
// common.ErrInvalidToken for everything else.
func (i *Issuer) Verify(token string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(TokenIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, common.ErrTokenExpired
		}
		return nil, common.ErrInvalidToken
	}
	if claims.UserID == "" {
		return nil, common.ErrInvalidToken
	}
	return claims, nil
}

// VerifyAccess is Verify restricted to access tokens.
func (i *Issuer) VerifyAccess(token string) (*Claims, error) {
	return i.verifyType(token, TypeAccess)
}

// VerifyRefresh is Verify restricted to refresh tokens.
func (i *Issuer) VerifyRefresh(token string) (*Claims, error) {
	return i.verifyType(token, TypeRefresh)
}

func (i *Issuer) verifyType(token string, want TokenType) (*Claims, error) {
	c, err := i.Verify(token)
	if err != nil {
		return nil, err
	}
	if c.Type != want {
		return nil, common.ErrInvalidToken
	}
	return c, nil
}
