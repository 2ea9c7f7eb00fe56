package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/storefront/internal/common"
	"github.com/dmitrijs2005/storefront/internal/dbx"
	"github.com/dmitrijs2005/storefront/internal/server/models"
)

const userColumns = `id, email, name, password_hash, role, email_verified, provider_id, phone, address, reset_token_hash, reset_expires_at, created_at, updated_at`

// PostgresRepository implements Repository over dbx.DBTX
// (satisfied by *sql.DB or *sql.Tx).
type PostgresRepository struct {
	db  dbx.DBTX
	now func() time.Time
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db, now: time.Now}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*models.User, error) {
	var (
		u          models.User
		role       string
		providerID sql.NullString
		resetHash  sql.NullString
		resetExp   sql.NullTime
	)
	err := row.Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &role, &u.EmailVerified,
		&providerID, &u.Phone, &u.Address, &resetHash, &resetExp, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	u.Role = models.Role(role)
	u.ProviderID = providerID.String
	u.ResetTokenHash = resetHash.String
	if resetExp.Valid {
		t := resetExp.Time
		u.ResetExpiresAt = &t
	}
	return &u, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func (r *PostgresRepository) Create(ctx context.Context, u *models.User) (*models.User, error) {
	query := `
		INSERT INTO users (id, email, name, password_hash, role, email_verified, provider_id, phone, address, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)
	`
	now := r.now().UTC()
	_, err := r.db.ExecContext(ctx, query, u.ID, u.Email, u.Name, u.PasswordHash, string(u.Role),
		u.EmailVerified, nullString(u.ProviderID), u.Phone, u.Address, now)
	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return nil, common.ErrEmailTaken
		}
		return nil, fmt.Errorf("error performing sql request: %w", err)
	}
	created := *u
	created.CreatedAt = now
	created.UpdatedAt = now
	return &created, nil
}

func (r *PostgresRepository) findOne(ctx context.Context, where string, arg any) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE ` + where
	return scanUser(r.db.QueryRowContext(ctx, query, arg))
}

func (r *PostgresRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.findOne(ctx, `lower(email) = lower($1)`, email)
}

func (r *PostgresRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	return r.findOne(ctx, `id = $1`, id)
}

func (r *PostgresRepository) FindByProviderID(ctx context.Context, providerID string) (*models.User, error) {
	return r.findOne(ctx, `provider_id = $1`, providerID)
}

func (r *PostgresRepository) exec(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

func (r *PostgresRepository) SetPassword(ctx context.Context, id string, passwordHash string) error {
	return r.exec(ctx, `UPDATE users SET password_hash = $2, updated_at = $3 WHERE id = $1`,
		id, passwordHash, r.now().UTC())
}

func (r *PostgresRepository) SetResetToken(ctx context.Context, id string, tokenHash string, expiresAt time.Time) error {
	return r.exec(ctx, `UPDATE users SET reset_token_hash = $2, reset_expires_at = $3, updated_at = $4 WHERE id = $1`,
		id, tokenHash, expiresAt.UTC(), r.now().UTC())
}

// ConsumeResetToken locks the matching row, clears the reset fields and
// returns the row together with the expiry it had before clearing, all in
// one statement. A concurrent consumer blocks on the row lock and then finds
// no match.
func (r *PostgresRepository) ConsumeResetToken(ctx context.Context, tokenHash string, now time.Time) (*models.User, error) {
	query := `
		WITH target AS (
			SELECT id, reset_expires_at FROM users WHERE reset_token_hash = $1 FOR UPDATE
		)
		UPDATE users u
		SET reset_token_hash = NULL, reset_expires_at = NULL, updated_at = $2
		FROM target
		WHERE u.id = target.id
		RETURNING u.id, u.email, u.name, u.password_hash, u.role, u.email_verified, u.provider_id, u.phone, u.address, u.reset_token_hash, target.reset_expires_at, u.created_at, u.updated_at
	`
	u, err := scanUser(r.db.QueryRowContext(ctx, query, tokenHash, now.UTC()))
	if err != nil {
		return nil, err
	}
	expired := u.ResetExpiresAt == nil || !u.ResetExpiresAt.After(now)
	u.ResetTokenHash = ""
	u.ResetExpiresAt = nil
	if expired {
		return nil, common.ErrorNotFound
	}
	return u, nil
}

func (r *PostgresRepository) LinkProvider(ctx context.Context, id string, providerID string, emailVerified bool) error {
	err := r.exec(ctx, `UPDATE users SET provider_id = $2, email_verified = email_verified OR $3, updated_at = $4 WHERE id = $1`,
		id, providerID, emailVerified, r.now().UTC())
	if dbx.IsUniqueViolation(err) {
		return fmt.Errorf("provider already linked to another account: %w", err)
	}
	return err
}

// UpdateProfile writes only the fields set in p; COALESCE keeps the rest.
func (r *PostgresRepository) UpdateProfile(ctx context.Context, id string, p models.Profile) (*models.User, error) {
	query := `
		UPDATE users
		SET name = COALESCE($2, name), phone = COALESCE($3, phone), address = COALESCE($4, address), updated_at = $5
		WHERE id = $1
		RETURNING ` + userColumns
	return scanUser(r.db.QueryRowContext(ctx, query, id,
		optional(p.Name), optional(p.Phone), optional(p.Address), r.now().UTC()))
}

func optional(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func (r *PostgresRepository) SetRole(ctx context.Context, id string, role models.Role) error {
	return r.exec(ctx, `UPDATE users SET role = $2, updated_at = $3 WHERE id = $1`, id, string(role), r.now().UTC())
}
