package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/FilipeAphrody/sentinel-accounts/internal/domain"
)

// PostgresActivityRepo implements domain.ActivityLog on the activity_logs table.
type PostgresActivityRepo struct {
	db *sql.DB
}

func NewPostgresActivityRepo(db *sql.DB) *PostgresActivityRepo {
	return &PostgresActivityRepo{db: db}
}

// Record inserts an immutable record into the activity_logs table.
func (r *PostgresActivityRepo) Record(ctx context.Context, entry domain.ActivityEntry) error {
	metaJSON, err := json.Marshal(entry.Detail)
	if err != nil || entry.Detail == nil {
		metaJSON = []byte("{}")
	}

	query := `
		INSERT INTO activity_logs (user_id, action, ip_address, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	// user_id is NULL for anonymous events such as a failed login on an unknown email.
	_, err = r.db.ExecContext(ctx, query,
		nullString(entry.UserID),
		string(entry.Action),
		nullString(entry.IP),
		metaJSON,
		entry.Timestamp,
	)
	if err != nil {
		return storeErr("insert activity", err)
	}
	return nil
}

// List returns the newest entries recorded for userID.
func (r *PostgresActivityRepo) List(ctx context.Context, userID string, limit int) ([]domain.ActivityEntry, error) {
	query := `
		SELECT user_id, action, COALESCE(ip_address, ''), metadata, created_at
		FROM activity_logs
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`
	rows, err := r.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, storeErr("list activity", err)
	}
	defer rows.Close()

	entries := make([]domain.ActivityEntry, 0, limit)
	for rows.Next() {
		var (
			entry  domain.ActivityEntry
			action string
			meta   []byte
		)
		if err := rows.Scan(&entry.UserID, &action, &entry.IP, &meta, &entry.Timestamp); err != nil {
			return nil, storeErr("scan activity", err)
		}
		entry.Action = domain.Action(action)
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &entry.Detail); err != nil {
				return nil, fmt.Errorf("decode activity metadata: %w", err)
			}
		}
		if len(entry.Detail) == 0 {
			entry.Detail = nil
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("list activity", err)
	}
	return entries, nil
}
