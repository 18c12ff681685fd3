package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	apperrors "github.com/friendshare/identity-server/internal/errors"
	"github.com/friendshare/identity-server/users"
)

const pgUniqueViolation = "23505"

var _ users.UserRepo = (*Repository)(nil)

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const userColumns = `id, email, username, password_hash, first_name, last_name, bio, photo_url,
       roles, email_confirmed, is_active, failed_login_attempts, lockout_until,
       refresh_token, refresh_token_expires_at, confirmation_token, reset_token, reset_token_expires_at,
       created_at, updated_at`

func (r *Repository) Create(ctx context.Context, user *users.User) error {
	if user.ID == "" {
		user.ID = uuid.New().String()
	}

	query := `INSERT INTO users (id, email, username, password_hash, first_name, last_name, bio, photo_url,
                roles, email_confirmed, is_active, confirmation_token)
         VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
         RETURNING created_at, updated_at`

	err := r.db.QueryRowContext(ctx, query,
		user.ID, user.Email, user.Username, user.PasswordHash,
		user.FirstName, user.LastName, user.Bio, user.PhotoURL,
		strings.Join(user.Roles, ","), user.EmailConfirmed, user.IsActive,
		user.ConfirmationToken,
	).Scan(&user.CreatedAt, &user.UpdatedAt)

	if err != nil {
		return duplicateOr(err)
	}
	return nil
}

func (r *Repository) Update(ctx context.Context, user *users.User) error {
	query := `UPDATE users
         SET email = $2, username = $3, password_hash = $4, first_name = $5, last_name = $6,
             bio = $7, photo_url = $8, roles = $9, email_confirmed = $10, is_active = $11,
             failed_login_attempts = $12, lockout_until = $13,
             confirmation_token = $14, reset_token = $15, reset_token_expires_at = $16,
             updated_at = now()
         WHERE id = $1`

	res, err := r.db.ExecContext(ctx, query,
		user.ID, user.Email, user.Username, user.PasswordHash,
		user.FirstName, user.LastName, user.Bio, user.PhotoURL,
		strings.Join(user.Roles, ","), user.EmailConfirmed, user.IsActive,
		user.FailedLoginAttempts, user.LockoutUntil,
		user.ConfirmationToken, user.ResetToken, user.ResetTokenExpiry,
	)
	if err != nil {
		return duplicateOr(err)
	}
	return requireRow(res, apperrors.ErrNotFound)
}

func (r *Repository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return requireRow(res, apperrors.ErrNotFound)
}

func (r *Repository) GetByID(ctx context.Context, id string) (*users.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return r.scanUser(r.db.QueryRowContext(ctx, query, id))
}

func (r *Repository) GetByEmail(ctx context.Context, email string) (*users.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	return r.scanUser(r.db.QueryRowContext(ctx, query, email))
}

func (r *Repository) GetByUsername(ctx context.Context, username string) (*users.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE username = $1`
	return r.scanUser(r.db.QueryRowContext(ctx, query, username))
}

// UpdateRefreshToken is the conditional write behind at-most-once rotation.
// IS NOT DISTINCT FROM makes NULL compare equal to NULL, so a nil
// expectedOld only matches an empty refresh slot.
func (r *Repository) UpdateRefreshToken(ctx context.Context, id string, expectedOld *string, newValue string, expiry time.Time) error {
	query := `UPDATE users
         SET refresh_token = $2, refresh_token_expires_at = $3, updated_at = now()
         WHERE id = $1 AND refresh_token IS NOT DISTINCT FROM $4`

	res, err := r.db.ExecContext(ctx, query, id, newValue, expiry, expectedOld)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if rows > 0 {
		return nil
	}

	// Nothing updated: either the account is gone or another rotation won.
	var exists bool
	err = r.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if !exists {
		return apperrors.ErrNotFound
	}
	return apperrors.ErrRefreshConflict
}

func (r *Repository) ClearRefreshToken(ctx context.Context, id string) error {
	query := `UPDATE users
         SET refresh_token = NULL, refresh_token_expires_at = NULL, updated_at = now()
         WHERE id = $1`

	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return requireRow(res, apperrors.ErrNotFound)
}

func (r *Repository) scanUser(row *sql.Row) (*users.User, error) {
	user := &users.User{}
	var roles string

	err := row.Scan(
		&user.ID, &user.Email, &user.Username, &user.PasswordHash,
		&user.FirstName, &user.LastName, &user.Bio, &user.PhotoURL,
		&roles, &user.EmailConfirmed, &user.IsActive,
		&user.FailedLoginAttempts, &user.LockoutUntil,
		&user.RefreshToken, &user.RefreshTokenExpiry,
		&user.ConfirmationToken, &user.ResetToken, &user.ResetTokenExpiry,
		&user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	if roles != "" {
		user.Roles = strings.Split(roles, ",")
	}
	return user, nil
}

func requireRow(res sql.Result, missing error) error {
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if rows == 0 {
		return missing
	}
	return nil
}

func duplicateOr(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		if strings.Contains(pgErr.ConstraintName, "email") {
			return apperrors.ErrDuplicateEmail
		}
		return apperrors.ErrDuplicateUsername
	}
	return fmt.Errorf("db error: %w", err)
}
