// Package email delivers account-lifecycle mail: confirmation links after
// registration and password-reset links.
package email

import "context"

type Sender interface {
	SendConfirmation(ctx context.Context, to, userID, token string) error
	SendPasswordReset(ctx context.Context, to, email, token string) error
}
