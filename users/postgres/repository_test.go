package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"

	apperrors "github.com/friendshare/identity-server/internal/errors"
	"github.com/friendshare/identity-server/internal/utils"
	"github.com/friendshare/identity-server/users"
)

func newMockRepo(t *testing.T) (*Repository, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewRepository(db), mock
}

func userRows(user *users.User) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "email", "username", "password_hash", "first_name", "last_name", "bio", "photo_url",
		"roles", "email_confirmed", "is_active", "failed_login_attempts", "lockout_until",
		"refresh_token", "refresh_token_expires_at", "confirmation_token", "reset_token", "reset_token_expires_at",
		"created_at", "updated_at",
	}).AddRow(
		user.ID, user.Email, user.Username, user.PasswordHash, user.FirstName, user.LastName, user.Bio, user.PhotoURL,
		"user,admin", user.EmailConfirmed, user.IsActive, user.FailedLoginAttempts, user.LockoutUntil,
		user.RefreshToken, user.RefreshTokenExpiry, user.ConfirmationToken, user.ResetToken, user.ResetTokenExpiry,
		user.CreatedAt, user.UpdatedAt,
	)
}

func TestCreateReturnsTimestamps(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Now()

	mock.ExpectQuery(`INSERT INTO users`).
		WithArgs(sqlmock.AnyArg(), "john.doe@example.com", "johnd", "hash",
			"", "", "", "", "user", false, true, nil).
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))

	user := &users.User{
		Email:        "john.doe@example.com",
		Username:     "johnd",
		PasswordHash: "hash",
		Roles:        []string{"user"},
		IsActive:     true,
	}
	require.NoError(t, repo.Create(context.Background(), user))
	require.NotEmpty(t, user.ID)
	require.Equal(t, now, user.CreatedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateMapsUniqueViolations(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(`INSERT INTO users`).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "users_email_key"})
	err := repo.Create(context.Background(), &users.User{Email: "a@b.c", Username: "a"})
	require.ErrorIs(t, err, apperrors.ErrDuplicateEmail)

	mock.ExpectQuery(`INSERT INTO users`).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "users_username_key"})
	err = repo.Create(context.Background(), &users.User{Email: "a@b.c", Username: "a"})
	require.ErrorIs(t, err, apperrors.ErrDuplicateUsername)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetByEmail(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Now()

	stored := &users.User{
		ID:             "user-1",
		Email:          "john.doe@example.com",
		Username:       "johnd",
		PasswordHash:   "hash",
		EmailConfirmed: true,
		IsActive:       true,
		RefreshToken:   utils.Ptr("live-refresh"),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	mock.ExpectQuery(`SELECT (.+) FROM users WHERE email = \$1`).
		WithArgs("john.doe@example.com").
		WillReturnRows(userRows(stored))

	user, err := repo.GetByEmail(context.Background(), "john.doe@example.com")
	require.NoError(t, err)
	require.Equal(t, "user-1", user.ID)
	require.Equal(t, []string{"user", "admin"}, user.Roles)
	require.Equal(t, "live-refresh", utils.Value(user.RefreshToken))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetByIDNotFound(t *testing.T) {
	repo, mock := newMockRepo(t)

	// An empty result set surfaces as sql.ErrNoRows from Scan.
	mock.ExpectQuery(`SELECT (.+) FROM users WHERE id = \$1`).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := repo.GetByID(context.Background(), "missing")
	require.ErrorIs(t, err, apperrors.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateRefreshTokenSuccess(t *testing.T) {
	repo, mock := newMockRepo(t)
	expiry := time.Now().Add(time.Hour)

	mock.ExpectExec(`UPDATE users\s+SET refresh_token = \$2`).
		WithArgs("user-1", "new-value", expiry, "old-value").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.UpdateRefreshToken(context.Background(), "user-1", utils.Ptr("old-value"), "new-value", expiry)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateRefreshTokenConflict(t *testing.T) {
	repo, mock := newMockRepo(t)
	expiry := time.Now().Add(time.Hour)

	mock.ExpectExec(`UPDATE users\s+SET refresh_token = \$2`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	err := repo.UpdateRefreshToken(context.Background(), "user-1", utils.Ptr("stale"), "new-value", expiry)
	require.ErrorIs(t, err, apperrors.ErrRefreshConflict)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateRefreshTokenMissingAccount(t *testing.T) {
	repo, mock := newMockRepo(t)
	expiry := time.Now().Add(time.Hour)

	mock.ExpectExec(`UPDATE users\s+SET refresh_token = \$2`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs("gone").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	err := repo.UpdateRefreshToken(context.Background(), "gone", nil, "new-value", expiry)
	require.ErrorIs(t, err, apperrors.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestClearRefreshToken(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec(`UPDATE users\s+SET refresh_token = NULL`).
		WithArgs("user-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.ClearRefreshToken(context.Background(), "user-1"))

	mock.ExpectExec(`UPDATE users\s+SET refresh_token = NULL`).
		WithArgs("gone").
		WillReturnResult(sqlmock.NewResult(0, 0))
	require.ErrorIs(t, repo.ClearRefreshToken(context.Background(), "gone"), apperrors.ErrNotFound)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDelete(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec(`DELETE FROM users WHERE id = \$1`).
		WithArgs("user-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.Delete(context.Background(), "user-1"))

	mock.ExpectExec(`DELETE FROM users WHERE id = \$1`).
		WithArgs("gone").
		WillReturnResult(sqlmock.NewResult(0, 0))
	require.ErrorIs(t, repo.Delete(context.Background(), "gone"), apperrors.ErrNotFound)

	require.NoError(t, mock.ExpectationsWereMet())
}
