package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/FilipeAphrody/sentinel-accounts/internal/domain"
)

// PostgresUserRepo implements domain.UserRepository using PostgreSQL.
type PostgresUserRepo struct {
	db *sql.DB
}

// NewPostgresUserRepo creates a new repository instance.
func NewPostgresUserRepo(db *sql.DB) *PostgresUserRepo {
	return &PostgresUserRepo{db: db}
}

const userColumns = `
	u.id, u.email, u.password_hash, r.name, u.first_name, u.last_name, u.verification_state,
	COALESCE(u.verification_token, ''), u.verification_expires_at,
	COALESCE(u.reset_token, ''), u.reset_expires_at,
	u.mfa_enabled, COALESCE(u.mfa_secret, ''), u.created_at, u.updated_at`

// We join with 'roles' to get the role name directly, avoiding N+1 queries.
const selectUser = `SELECT` + userColumns + `
	FROM users u
	JOIN roles r ON u.role_id = r.id
`

// GetByEmail retrieves a user by their (normalized) email address.
func (r *PostgresUserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.getOne(ctx, "query user", selectUser+"WHERE u.email = $1", email)
}

// GetByID retrieves a user by their UUID.
func (r *PostgresUserRepo) GetByID(ctx context.Context, id string) (*domain.User, error) {
	return r.getOne(ctx, "query user", selectUser+"WHERE u.id = $1", id)
}

// ConsumeVerificationToken verifies the holder of token. The WHERE clause
// re-checks the token inside the UPDATE, so of two concurrent redemptions
// only one matches a row.
func (r *PostgresUserRepo) ConsumeVerificationToken(ctx context.Context, token string, now time.Time) (*domain.User, error) {
	if token == "" {
		return nil, domain.ErrNotFound
	}
	query := `
		WITH u AS (
			UPDATE users
			SET verification_state = $3, verification_token = NULL, verification_expires_at = NULL, updated_at = $2
			WHERE verification_token = $1 AND verification_expires_at > $2 AND verification_state = $4
			RETURNING *
		)
		SELECT` + userColumns + `
		FROM u
		JOIN roles r ON u.role_id = r.id
	`
	return r.getOne(ctx, "consume verification token", query,
		token, now, domain.StateVerified, domain.StateUnverified)
}

// ConsumeResetToken replaces the password of the holder of token and clears
// the token in the same statement.
func (r *PostgresUserRepo) ConsumeResetToken(ctx context.Context, token string, now time.Time, passwordHash string) (*domain.User, error) {
	if token == "" {
		return nil, domain.ErrNotFound
	}
	query := `
		WITH u AS (
			UPDATE users
			SET password_hash = $3, reset_token = NULL, reset_expires_at = NULL, updated_at = $2
			WHERE reset_token = $1 AND reset_expires_at > $2
			RETURNING *
		)
		SELECT` + userColumns + `
		FROM u
		JOIN roles r ON u.role_id = r.id
	`
	return r.getOne(ctx, "consume reset token", query, token, now, passwordHash)
}

func (r *PostgresUserRepo) getOne(ctx context.Context, op, query string, args ...any) (*domain.User, error) {
	var (
		user                domain.User
		verifyExp, resetExp sql.NullTime
	)
	err := r.db.QueryRowContext(ctx, query, args...).Scan(
		&user.ID,
		&user.Email,
		&user.PasswordHash,
		&user.Role,
		&user.FirstName,
		&user.LastName,
		&user.State,
		&user.VerificationToken,
		&verifyExp,
		&user.ResetToken,
		&resetExp,
		&user.MFAEnabled,
		&user.MFASecret,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, storeErr(op, err)
	}

	if verifyExp.Valid {
		user.VerificationExpires = verifyExp.Time
	}
	if resetExp.Valid {
		user.ResetExpires = resetExp.Time
	}
	return &user, nil
}

// Create inserts a new user. The caller assigns ID and timestamps.
func (r *PostgresUserRepo) Create(ctx context.Context, user *domain.User) error {
	// 1. Resolve Role Name to ID
	var roleID int
	err := r.db.QueryRowContext(ctx, "SELECT id FROM roles WHERE name = $1", user.Role).Scan(&roleID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: unknown role %q", domain.ErrValidation, user.Role)
		}
		return storeErr("resolve role", err)
	}

	// 2. Insert User
	query := `
		INSERT INTO users (id, email, password_hash, role_id, first_name, last_name, verification_state,
		                   verification_token, verification_expires_at, reset_token, reset_expires_at,
		                   mfa_enabled, mfa_secret, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`
	_, err = r.db.ExecContext(ctx, query,
		user.ID,
		user.Email,
		user.PasswordHash,
		roleID,
		user.FirstName,
		user.LastName,
		user.State,
		nullString(user.VerificationToken),
		nullTime(user.VerificationExpires),
		nullString(user.ResetToken),
		nullTime(user.ResetExpires),
		user.MFAEnabled,
		nullString(user.MFASecret),
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: email already registered", domain.ErrConflict)
		}
		return storeErr("insert user", err)
	}

	return nil
}

// Update writes back every mutable column of user.
func (r *PostgresUserRepo) Update(ctx context.Context, user *domain.User) error {
	query := `
		UPDATE users
		SET email = $1, password_hash = $2, role_id = (SELECT id FROM roles WHERE name = $3),
		    first_name = $4, last_name = $5, verification_state = $6,
		    verification_token = $7, verification_expires_at = $8,
		    reset_token = $9, reset_expires_at = $10,
		    mfa_enabled = $11, mfa_secret = $12, updated_at = $13
		WHERE id = $14
	`
	result, err := r.db.ExecContext(ctx, query,
		user.Email,
		user.PasswordHash,
		user.Role,
		user.FirstName,
		user.LastName,
		user.State,
		nullString(user.VerificationToken),
		nullTime(user.VerificationExpires),
		nullString(user.ResetToken),
		nullTime(user.ResetExpires),
		user.MFAEnabled,
		nullString(user.MFASecret),
		user.UpdatedAt,
		user.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: email already registered", domain.ErrConflict)
		}
		return storeErr("update user", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return storeErr("update user", err)
	}
	if rows == 0 {
		return domain.ErrNotFound
	}

	return nil
}
