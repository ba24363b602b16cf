package repository

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FilipeAphrody/sentinel-accounts/internal/domain"
)

var mockUserColumns = []string{
	"id", "email", "password_hash", "name", "first_name", "last_name", "verification_state",
	"verification_token", "verification_expires_at", "reset_token", "reset_expires_at",
	"mfa_enabled", "mfa_secret", "created_at", "updated_at",
}

func newMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	})
	return db, mock
}

func TestPostgresUserRepo_GetByEmail(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPostgresUserRepo(db)
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	expires := created.Add(24 * time.Hour)

	rows := sqlmock.NewRows(mockUserColumns).AddRow(
		"u-1", "alice@example.com", "hash", "admin", "Alice", "Liddell", "unverified",
		"vtok", expires, "", nil,
		false, "", created, created,
	)
	mock.ExpectQuery(`(?s)SELECT .* FROM users u\s+JOIN roles r ON u.role_id = r.id\s+WHERE u.email = \$1`).
		WithArgs("alice@example.com").
		WillReturnRows(rows)

	u, err := repo.GetByEmail(context.Background(), "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, "u-1", u.ID)
	assert.Equal(t, domain.RoleAdmin, u.Role)
	assert.Equal(t, domain.StateUnverified, u.State)
	assert.Equal(t, "vtok", u.VerificationToken)
	assert.True(t, expires.Equal(u.VerificationExpires))
	assert.True(t, u.ResetExpires.IsZero())
}

func TestPostgresUserRepo_NotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPostgresUserRepo(db)

	mock.ExpectQuery(`WHERE u.id = \$1`).
		WithArgs("ghost").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByID(context.Background(), "ghost")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestPostgresUserRepo_DBErrorIsStoreUnavailable(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPostgresUserRepo(db)
	boom := errors.New("connection refused")

	mock.ExpectQuery(`WHERE u.email = \$1`).
		WithArgs("alice@example.com").
		WillReturnError(boom)

	_, err := repo.GetByEmail(context.Background(), "alice@example.com")
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, domain.ErrNotFound)
}

func TestPostgresUserRepo_EmptyTokenSkipsQuery(t *testing.T) {
	db, _ := newMockDB(t)
	repo := NewPostgresUserRepo(db)
	now := time.Now()

	_, err := repo.ConsumeVerificationToken(context.Background(), "", now)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = repo.ConsumeResetToken(context.Background(), "", now, "hash")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestPostgresUserRepo_ConsumeVerificationToken(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPostgresUserRepo(db)
	now := time.Date(2026, 3, 1, 13, 0, 0, 0, time.UTC)
	created := now.Add(-time.Hour)

	mock.ExpectQuery(`(?s)UPDATE users\s+SET verification_state = \$3, verification_token = NULL.*` +
		`WHERE verification_token = \$1 AND verification_expires_at > \$2 AND verification_state = \$4.*JOIN roles`).
		WithArgs("vtok", now, "verified", "unverified").
		WillReturnRows(sqlmock.NewRows(mockUserColumns).AddRow(
			"u-1", "alice@example.com", "hash", "user", "Alice", "", "verified",
			"", nil, "", nil,
			false, "", created, now,
		))

	u, err := repo.ConsumeVerificationToken(context.Background(), "vtok", now)
	require.NoError(t, err)
	assert.True(t, u.IsVerified())
	assert.Empty(t, u.VerificationToken)
}

// A token that was already redeemed, or has expired, matches no row.
func TestPostgresUserRepo_ConsumeResetTokenNoMatch(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPostgresUserRepo(db)
	now := time.Date(2026, 3, 1, 13, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`(?s)SET password_hash = \$3, reset_token = NULL.*WHERE reset_token = \$1 AND reset_expires_at > \$2`).
		WithArgs("rtok", now, "new-hash").
		WillReturnRows(sqlmock.NewRows(mockUserColumns))

	_, err := repo.ConsumeResetToken(context.Background(), "rtok", now, "new-hash")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestPostgresUserRepo_ConsumeResetTokenStoreError(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPostgresUserRepo(db)

	mock.ExpectQuery(`reset_token = \$1`).WillReturnError(errors.New("connection reset"))

	_, err := repo.ConsumeResetToken(context.Background(), "rtok", time.Now(), "new-hash")
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
}

func newTestUser() *domain.User {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return &domain.User{
		ID:                  "u-1",
		Email:               "alice@example.com",
		PasswordHash:        "hash",
		Role:                domain.RoleUser,
		FirstName:           "Alice",
		State:               domain.StateUnverified,
		VerificationToken:   "vtok",
		VerificationExpires: now.Add(24 * time.Hour),
		CreatedAt:           now,
		UpdatedAt:           now,
	}
}

func TestPostgresUserRepo_Create(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPostgresUserRepo(db)
	u := newTestUser()

	mock.ExpectQuery(`SELECT id FROM roles WHERE name = \$1`).
		WithArgs("user").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	mock.ExpectExec(`(?s)INSERT INTO users \(id, email, .*\) VALUES`).
		WithArgs("u-1", "alice@example.com", "hash", 1, "Alice", "",
			sqlmock.AnyArg(), "vtok", sqlmock.AnyArg(), nil, nil,
			false, nil, u.CreatedAt, u.UpdatedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Create(context.Background(), u))
}

func TestPostgresUserRepo_CreateDuplicateEmail(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPostgresUserRepo(db)

	mock.ExpectQuery(`SELECT id FROM roles`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	mock.ExpectExec(`INSERT INTO users`).
		WillReturnError(&pq.Error{Code: "23505", Message: "duplicate key value violates unique constraint"})

	err := repo.Create(context.Background(), newTestUser())
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestPostgresUserRepo_CreateUnknownRole(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPostgresUserRepo(db)
	u := newTestUser()
	u.Role = "root"

	mock.ExpectQuery(`SELECT id FROM roles`).
		WithArgs("root").
		WillReturnError(sql.ErrNoRows)

	err := repo.Create(context.Background(), u)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestPostgresUserRepo_Update(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPostgresUserRepo(db)
	u := newTestUser()
	u.State = domain.StateVerified
	u.ClearVerificationToken()

	mock.ExpectExec(`(?s)UPDATE users\s+SET email = \$1.*WHERE id = \$14`).
		WithArgs("alice@example.com", "hash", "user", "Alice", "", "verified",
			nil, nil, nil, nil, false, nil, u.UpdatedAt, "u-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Update(context.Background(), u))
}

func TestPostgresUserRepo_UpdateMissingRow(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPostgresUserRepo(db)

	mock.ExpectExec(`UPDATE users`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Update(context.Background(), newTestUser())
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestPostgresProfileRepo_GetAndUpdate(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPostgresProfileRepo(db)
	updated := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	birth := time.Date(1990, 5, 17, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`(?s)SELECT user_id, .* FROM profiles\s+WHERE user_id = \$1`).
		WithArgs("u-1").
		WillReturnRows(sqlmock.NewRows([]string{
			"user_id", "first_name", "last_name", "phone", "bio", "birth_date",
			"country", "city", "address", "photo_url", "updated_at",
		}).AddRow("u-1", "Alice", "Liddell", "", "", birth, "UK", "Oxford", "", "", updated))

	p, err := repo.Get(context.Background(), "u-1")
	require.NoError(t, err)
	require.NotNil(t, p.BirthDate)
	assert.True(t, birth.Equal(*p.BirthDate))
	assert.Equal(t, "Oxford", p.Location.City)

	mock.ExpectExec(`(?s)UPDATE profiles.*WHERE user_id = \$1`).
		WithArgs("u-1", "Alice", "Liddell", "", "", sqlmock.AnyArg(), "UK", "Oxford", "", "", updated).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.Update(context.Background(), p))
}

func TestPostgresProfileRepo_GetMissing(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPostgresProfileRepo(db)

	mock.ExpectQuery(`FROM profiles`).WillReturnError(sql.ErrNoRows)

	_, err := repo.Get(context.Background(), "u-404")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestPostgresActivityRepo_Record(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPostgresActivityRepo(db)
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	// Anonymous entries carry a NULL user id.
	mock.ExpectExec(`INSERT INTO activity_logs`).
		WithArgs(nil, "login_failed", "198.51.100.4", []byte(`{"reason":"unknown_email"}`), ts).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := repo.Record(context.Background(), domain.ActivityEntry{
		Action:    domain.ActionLoginFailed,
		Detail:    map[string]any{"reason": "unknown_email"},
		Timestamp: ts,
		IP:        "198.51.100.4",
	})
	require.NoError(t, err)
}

func TestPostgresActivityRepo_RecordFailure(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPostgresActivityRepo(db)

	mock.ExpectExec(`INSERT INTO activity_logs`).
		WillReturnError(errors.New("disk full"))

	err := repo.Record(context.Background(), domain.ActivityEntry{UserID: "u-1", Action: domain.ActionUserLogin})
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
}

func TestPostgresActivityRepo_List(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPostgresActivityRepo(db)
	newer := time.Date(2026, 3, 1, 13, 0, 0, 0, time.UTC)
	older := newer.Add(-time.Hour)

	mock.ExpectQuery(`(?s)SELECT user_id, action, .* FROM activity_logs\s+WHERE user_id = \$1\s+ORDER BY created_at DESC, id DESC\s+LIMIT \$2`).
		WithArgs("u-1", 20).
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "action", "ip_address", "metadata", "created_at"}).
			AddRow("u-1", "password_changed", "198.51.100.4", []byte(`{}`), newer).
			AddRow("u-1", "user_role_updated", "", []byte(`{"from":"user","to":"admin"}`), older))

	entries, err := repo.List(context.Background(), "u-1", 20)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, domain.ActionPasswordChanged, entries[0].Action)
	assert.Equal(t, "198.51.100.4", entries[0].IP)
	assert.Nil(t, entries[0].Detail)
	assert.Equal(t, "admin", entries[1].Detail["to"])
	assert.True(t, older.Equal(entries[1].Timestamp))
}

func TestPostgresActivityRepo_ListFailure(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPostgresActivityRepo(db)

	mock.ExpectQuery(`FROM activity_logs`).WillReturnError(errors.New("connection reset"))

	_, err := repo.List(context.Background(), "u-1", 20)
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
}
