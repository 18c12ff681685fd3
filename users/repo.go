package users

import (
	"context"
	"time"
)

// UserRepo is the account directory contract. Reads and writes to the
// refresh fields must be read-modify-write consistent per account:
// UpdateRefreshToken is a conditional write and returns ErrRefreshConflict
// when the stored value no longer matches expectedOld, so two concurrent
// rotations of the same credential can never both commit.
type UserRepo interface {
	Create(ctx context.Context, user *User) error
	Update(ctx context.Context, user *User) error
	Delete(ctx context.Context, id string) error

	GetByID(ctx context.Context, id string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByUsername(ctx context.Context, username string) (*User, error)

	// UpdateRefreshToken overwrites the refresh slot only if the stored value
	// matches expectedOld exactly (nil matches only a NULL slot). Returns
	// ErrRefreshConflict on mismatch and ErrNotFound for an absent account.
	UpdateRefreshToken(ctx context.Context, id string, expectedOld *string, newValue string, expiry time.Time) error

	// ClearRefreshToken empties the refresh slot unconditionally.
	ClearRefreshToken(ctx context.Context, id string) error
}
