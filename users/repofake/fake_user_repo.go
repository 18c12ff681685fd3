package repofake

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/friendshare/identity-server/internal/errors"
	"github.com/friendshare/identity-server/users"
)

var _ users.UserRepo = (*FakeUserRepo)(nil)

// FakeUserRepo is an in-memory account directory for tests and local
// development. UpdateRefreshToken performs its compare-and-swap under the
// repo lock, so it honors the same at-most-once rotation contract as the
// real store.
type FakeUserRepo struct {
	users       map[string]*users.User
	emailIds    map[string]string // email to user id
	usernameIds map[string]string // username to user id
	lock        sync.RWMutex
}

func NewFakeUserRepo() *FakeUserRepo {
	return &FakeUserRepo{
		users:       make(map[string]*users.User),
		emailIds:    make(map[string]string),
		usernameIds: make(map[string]string),
	}
}

func (ur *FakeUserRepo) Create(_ context.Context, user *users.User) error {
	ur.lock.Lock()
	defer ur.lock.Unlock()

	if _, ok := ur.emailIds[user.Email]; ok {
		return apperrors.ErrDuplicateEmail
	}
	if _, ok := ur.usernameIds[user.Username]; ok {
		return apperrors.ErrDuplicateUsername
	}

	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	stored := *user
	ur.users[user.ID] = &stored
	ur.emailIds[user.Email] = user.ID
	ur.usernameIds[user.Username] = user.ID
	return nil
}

func (ur *FakeUserRepo) Update(_ context.Context, user *users.User) error {
	ur.lock.Lock()
	defer ur.lock.Unlock()

	existing, ok := ur.users[user.ID]
	if !ok {
		return apperrors.ErrNotFound
	}
	delete(ur.emailIds, existing.Email)
	delete(ur.usernameIds, existing.Username)

	// The refresh slot is owned by UpdateRefreshToken/ClearRefreshToken. A
	// stale copy committed here must not revert a rotation that happened
	// after the copy was read.
	stored := *user
	stored.RefreshToken = existing.RefreshToken
	stored.RefreshTokenExpiry = existing.RefreshTokenExpiry
	ur.users[user.ID] = &stored
	ur.emailIds[user.Email] = user.ID
	ur.usernameIds[user.Username] = user.ID
	return nil
}

func (ur *FakeUserRepo) Delete(_ context.Context, id string) error {
	ur.lock.Lock()
	defer ur.lock.Unlock()

	user, ok := ur.users[id]
	if !ok {
		return apperrors.ErrNotFound
	}
	delete(ur.emailIds, user.Email)
	delete(ur.usernameIds, user.Username)
	delete(ur.users, id)
	return nil
}

func (ur *FakeUserRepo) GetByID(_ context.Context, id string) (*users.User, error) {
	ur.lock.RLock()
	defer ur.lock.RUnlock()

	user, ok := ur.users[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	copied := *user
	return &copied, nil
}

func (ur *FakeUserRepo) GetByEmail(_ context.Context, email string) (*users.User, error) {
	ur.lock.RLock()
	defer ur.lock.RUnlock()

	id, ok := ur.emailIds[email]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	copied := *ur.users[id]
	return &copied, nil
}

func (ur *FakeUserRepo) GetByUsername(_ context.Context, username string) (*users.User, error) {
	ur.lock.RLock()
	defer ur.lock.RUnlock()

	id, ok := ur.usernameIds[username]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	copied := *ur.users[id]
	return &copied, nil
}

func (ur *FakeUserRepo) UpdateRefreshToken(_ context.Context, id string, expectedOld *string, newValue string, expiry time.Time) error {
	ur.lock.Lock()
	defer ur.lock.Unlock()

	user, ok := ur.users[id]
	if !ok {
		return apperrors.ErrNotFound
	}

	if !refreshMatches(user.RefreshToken, expectedOld) {
		return apperrors.ErrRefreshConflict
	}

	value := newValue
	expiresAt := expiry
	user.RefreshToken = &value
	user.RefreshTokenExpiry = &expiresAt
	return nil
}

func (ur *FakeUserRepo) ClearRefreshToken(_ context.Context, id string) error {
	ur.lock.Lock()
	defer ur.lock.Unlock()

	user, ok := ur.users[id]
	if !ok {
		return apperrors.ErrNotFound
	}
	user.RefreshToken = nil
	user.RefreshTokenExpiry = nil
	return nil
}

// refreshMatches compares exactly: nil only matches nil, strings must be
// byte-for-byte equal.
func refreshMatches(stored, expected *string) bool {
	if stored == nil || expected == nil {
		return stored == nil && expected == nil
	}
	return *stored == *expected
}
