package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/FilipeAphrody/sentinel-accounts/internal/domain"
)

// PostgresProfileRepo implements domain.ProfileRepository using PostgreSQL.
type PostgresProfileRepo struct {
	db *sql.DB
}

func NewPostgresProfileRepo(db *sql.DB) *PostgresProfileRepo {
	return &PostgresProfileRepo{db: db}
}

func (r *PostgresProfileRepo) Get(ctx context.Context, userID string) (*domain.Profile, error) {
	query := `
		SELECT user_id, first_name, last_name, phone, bio, birth_date, country, city, address, photo_url, updated_at
		FROM profiles
		WHERE user_id = $1
	`

	var (
		p     domain.Profile
		birth sql.NullTime
	)
	err := r.db.QueryRowContext(ctx, query, userID).Scan(
		&p.UserID,
		&p.FirstName,
		&p.LastName,
		&p.Phone,
		&p.Bio,
		&birth,
		&p.Location.Country,
		&p.Location.City,
		&p.Location.Address,
		&p.PhotoURL,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, storeErr("query profile", err)
	}

	if birth.Valid {
		d := birth.Time
		p.BirthDate = &d
	}
	return &p, nil
}

func (r *PostgresProfileRepo) Create(ctx context.Context, p *domain.Profile) error {
	query := `
		INSERT INTO profiles (user_id, first_name, last_name, phone, bio, birth_date, country, city, address, photo_url, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := r.db.ExecContext(ctx, query, profileArgs(p)...)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: profile already exists", domain.ErrConflict)
		}
		return storeErr("insert profile", err)
	}
	return nil
}

func (r *PostgresProfileRepo) Update(ctx context.Context, p *domain.Profile) error {
	query := `
		UPDATE profiles
		SET first_name = $2, last_name = $3, phone = $4, bio = $5, birth_date = $6,
		    country = $7, city = $8, address = $9, photo_url = $10, updated_at = $11
		WHERE user_id = $1
	`
	result, err := r.db.ExecContext(ctx, query, profileArgs(p)...)
	if err != nil {
		return storeErr("update profile", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return storeErr("update profile", err)
	}
	if rows == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func profileArgs(p *domain.Profile) []any {
	var birth sql.NullTime
	if p.BirthDate != nil {
		birth = sql.NullTime{Time: *p.BirthDate, Valid: true}
	}
	return []any{
		p.UserID,
		p.FirstName,
		p.LastName,
		p.Phone,
		p.Bio,
		birth,
		p.Location.Country,
		p.Location.City,
		p.Location.Address,
		p.PhotoURL,
		p.UpdatedAt,
	}
}
