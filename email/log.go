package email

import (
	"context"

	"github.com/rs/zerolog/log"
)

var _ Sender = (*LogSender)(nil)

// LogSender writes mail to the log instead of sending it. Used in DEV and in
// tests.
type LogSender struct{}

func NewLogSender() *LogSender { return &LogSender{} }

func (LogSender) SendConfirmation(_ context.Context, to, userID, token string) error {
	log.Info().Str("to", to).Str("user_id", userID).Str("token", token).Msg("confirmation email (not sent)")
	return nil
}

func (LogSender) SendPasswordReset(_ context.Context, to, email, token string) error {
	log.Info().Str("to", to).Str("email", email).Str("token", token).Msg("password reset email (not sent)")
	return nil
}
