package users_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	apperrors "github.com/friendshare/identity-server/internal/errors"
	"github.com/friendshare/identity-server/users"
)

func TestPasswordHashRoundTrip(t *testing.T) {
	hash, err := users.HashPassword("Password1")
	require.NoError(t, err)
	require.NotEqual(t, "Password1", hash)

	require.True(t, users.CheckPasswordHash("Password1", hash))
	require.False(t, users.CheckPasswordHash("password1", hash))
	require.False(t, users.CheckPasswordHash("", hash))
}

func TestValidatePasswordStrength(t *testing.T) {
	tests := []struct {
		name     string
		password string
		wantErr  bool
	}{
		{name: "valid", password: "Password1", wantErr: false},
		{name: "too short", password: "Pass1", wantErr: true},
		{name: "no upper case", password: "password1", wantErr: true},
		{name: "no lower case", password: "PASSWORD1", wantErr: true},
		{name: "no digit", password: "Passwords", wantErr: true},
		{name: "empty", password: "", wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := users.ValidatePasswordStrength(tc.password)
			if !tc.wantErr {
				require.NoError(t, err)
				return
			}
			var validationErr *apperrors.ValidationError
			require.ErrorAs(t, err, &validationErr)
		})
	}
}

func TestDisplayName(t *testing.T) {
	user := &users.User{Username: "johnd", FirstName: "John", LastName: "Doe"}
	require.Equal(t, "John Doe", user.DisplayName())

	user = &users.User{Username: "johnd"}
	require.Equal(t, "johnd", user.DisplayName())

	user = &users.User{Username: "johnd", FirstName: "John"}
	require.Equal(t, "John", user.DisplayName())
}

func TestIsLockedOut(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	user := &users.User{}
	require.False(t, user.IsLockedOut(now))

	until := now.Add(5 * time.Minute)
	user.LockoutUntil = &until
	require.True(t, user.IsLockedOut(now))
	require.False(t, user.IsLockedOut(now.Add(6*time.Minute)))
}
