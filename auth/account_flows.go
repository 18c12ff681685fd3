package auth

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	apperrors "github.com/friendshare/identity-server/internal/errors"
	"github.com/friendshare/identity-server/users"
)

const (
	securityTokenBytes = 32
	resetTokenTTL      = time.Hour
)

// RegisterRequest carries a new account registration.
type RegisterRequest struct {
	Username        string `json:"username"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
	FirstName       string `json:"firstName,omitempty"`
	LastName        string `json:"lastName,omitempty"`
}

// Register creates an unconfirmed account and emails a confirmation token.
// No token pair is issued until the email is confirmed.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*users.User, error) {
	if req.Password != req.ConfirmPassword {
		return nil, apperrors.Validation("passwords do not match")
	}
	if err := users.ValidatePasswordStrength(req.Password); err != nil {
		return nil, err
	}

	if _, err := s.repo.GetByEmail(ctx, req.Email); err == nil {
		return nil, apperrors.ErrDuplicateEmail
	}
	if _, err := s.repo.GetByUsername(ctx, req.Username); err == nil {
		return nil, apperrors.ErrDuplicateUsername
	}

	hash, err := users.HashPassword(req.Password)
	if err != nil {
		return nil, errors.Wrap(err, "Service.Register HashPassword")
	}

	confirmToken, err := newSecurityToken()
	if err != nil {
		return nil, errors.Wrap(err, "Service.Register token generation")
	}

	user := &users.User{
		Username:          req.Username,
		Email:             req.Email,
		PasswordHash:      hash,
		FirstName:         req.FirstName,
		LastName:          req.LastName,
		Roles:             []string{"user"},
		IsActive:          true,
		EmailConfirmed:    false,
		ConfirmationToken: &confirmToken,
		CreatedAt:         s.nowTime().UTC(),
	}

	if err := s.repo.Create(ctx, user); err != nil {
		return nil, err
	}

	if err := s.mail.SendConfirmation(ctx, user.Email, user.ID, confirmToken); err != nil {
		return nil, errors.Wrap(err, "Service.Register SendConfirmation")
	}

	log.Info().Str("user_id", user.ID).Msg("user registered")
	return user, nil
}

// ConfirmEmail redeems a confirmation token. The token is single use: it is
// cleared the moment confirmation succeeds.
func (s *Service) ConfirmEmail(ctx context.Context, userID, presentedToken string) error {
	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return apperrors.ErrInvalidConfirmationToken
	}

	if user.ConfirmationToken == nil || !tokensEqual(*user.ConfirmationToken, presentedToken) {
		return apperrors.ErrInvalidConfirmationToken
	}

	user.EmailConfirmed = true
	user.ConfirmationToken = nil
	if err := s.repo.Update(ctx, user); err != nil {
		return errors.Wrap(err, "Service.ConfirmEmail Update")
	}

	log.Info().Str("user_id", user.ID).Msg("email confirmed")
	return nil
}

// ForgotPassword stores a reset token and emails it. It always reports
// success so the response cannot be used to test whether an email is
// registered.
func (s *Service) ForgotPassword(ctx context.Context, emailAddr string) error {
	user, err := s.repo.GetByEmail(ctx, emailAddr)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil
		}
		return errors.Wrap(err, "Service.ForgotPassword GetByEmail")
	}

	resetToken, err := newSecurityToken()
	if err != nil {
		return errors.Wrap(err, "Service.ForgotPassword token generation")
	}

	expiry := s.nowTime().Add(resetTokenTTL)
	user.ResetToken = &resetToken
	user.ResetTokenExpiry = &expiry
	if err := s.repo.Update(ctx, user); err != nil {
		return errors.Wrap(err, "Service.ForgotPassword Update")
	}

	if err := s.mail.SendPasswordReset(ctx, user.Email, user.Email, resetToken); err != nil {
		return errors.Wrap(err, "Service.ForgotPassword SendPasswordReset")
	}

	log.Info().Str("user_id", user.ID).Msg("password reset requested")
	return nil
}

// ResetPassword redeems a reset token, stores the new password hash, and
// empties the refresh slot so existing sessions cannot refresh anymore.
func (s *Service) ResetPassword(ctx context.Context, emailAddr, presentedToken, newPassword string) error {
	user, err := s.repo.GetByEmail(ctx, emailAddr)
	if err != nil {
		return apperrors.ErrInvalidResetToken
	}

	if user.ResetToken == nil || user.ResetTokenExpiry == nil {
		return apperrors.ErrInvalidResetToken
	}
	if !tokensEqual(*user.ResetToken, presentedToken) {
		return apperrors.ErrInvalidResetToken
	}
	if !user.ResetTokenExpiry.After(s.nowTime()) {
		return apperrors.ErrInvalidResetToken
	}

	if err := users.ValidatePasswordStrength(newPassword); err != nil {
		return err
	}

	hash, err := users.HashPassword(newPassword)
	if err != nil {
		return errors.Wrap(err, "Service.ResetPassword HashPassword")
	}

	user.PasswordHash = hash
	user.ResetToken = nil
	user.ResetTokenExpiry = nil
	user.FailedLoginAttempts = 0
	user.LockoutUntil = nil
	if err := s.repo.Update(ctx, user); err != nil {
		return errors.Wrap(err, "Service.ResetPassword Update")
	}

	if err := s.repo.ClearRefreshToken(ctx, user.ID); err != nil && !errors.Is(err, apperrors.ErrNotFound) {
		return errors.Wrap(err, "Service.ResetPassword ClearRefreshToken")
	}

	log.Info().Str("user_id", user.ID).Msg("password reset")
	return nil
}

func newSecurityToken() (string, error) {
	b := make([]byte, securityTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func tokensEqual(stored, presented string) bool {
	return subtle.ConstantTimeCompare([]byte(stored), []byte(presented)) == 1
}
