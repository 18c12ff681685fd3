// Package auth implements the authentication token lifecycle: issuing
// access/refresh pairs at login, rotating them on refresh, and revoking them
// at logout, plus the account flows around them (registration, email
// confirmation, password reset).
package auth

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/friendshare/identity-server/email"
	apperrors "github.com/friendshare/identity-server/internal/errors"
	"github.com/friendshare/identity-server/token"
	"github.com/friendshare/identity-server/users"
)

// TokenPair is an issued access/refresh credential pair.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// Config is the slice of server configuration the lifecycle manager needs.
type Config interface {
	GetRefreshTokenExpiry() time.Duration
	GetMaxFailedLogins() int
	GetLockoutDuration() time.Duration
}

// Service orchestrates the token lifecycle. It holds no mutable state of its
// own: everything it decides on lives in the account record, and the refresh
// rotation relies on the repo's conditional update for its at-most-once
// guarantee.
type Service struct {
	repo    users.UserRepo
	tokens  *token.Manager
	mail    email.Sender
	config  Config
	nowTime func() time.Time
}

type ServiceOption func(*Service)

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) ServiceOption {
	return func(s *Service) {
		s.nowTime = nowFunc
	}
}

// NewService initialises the lifecycle manager with required dependencies.
func NewService(repo users.UserRepo, tokens *token.Manager, mail email.Sender, cfg Config, options ...ServiceOption) (*Service, error) {
	if repo == nil {
		return nil, errors.New("[NewService] user repo is required")
	}
	if tokens == nil {
		return nil, errors.New("[NewService] token manager is required")
	}
	if mail == nil {
		return nil, errors.New("[NewService] email sender is required")
	}
	if cfg == nil {
		return nil, errors.New("[NewService] config is required")
	}

	s := &Service{
		repo:    repo,
		tokens:  tokens,
		mail:    mail,
		config:  cfg,
		nowTime: time.Now,
	}

	for _, opt := range options {
		opt(s)
	}

	return s, nil
}

// Login verifies credentials and, on success, issues a fresh pair and
// overwrites the account's refresh slot.
//
// Absent accounts and wrong passwords yield the same denial so the response
// cannot be used to enumerate accounts. The deactivated/unconfirmed checks
// run before password verification, which does leak existence for those two
// states; that ordering comes from the product and is kept deliberately.
func (s *Service) Login(ctx context.Context, emailAddr, password string) (*TokenPair, error) {
	user, err := s.repo.GetByEmail(ctx, emailAddr)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.ErrInvalidCredentials
		}
		return nil, errors.Wrap(err, "Service.Login GetByEmail")
	}

	if !user.IsActive {
		return nil, apperrors.ErrAccountDeactivated
	}
	if !user.EmailConfirmed {
		return nil, apperrors.ErrAccountUnconfirmed
	}

	now := s.nowTime()
	if user.IsLockedOut(now) {
		return nil, apperrors.ErrAccountLocked
	}

	if !users.CheckPasswordHash(password, user.PasswordHash) {
		return nil, s.recordFailedAttempt(ctx, user, now)
	}

	if user.FailedLoginAttempts > 0 || user.LockoutUntil != nil {
		user.FailedLoginAttempts = 0
		user.LockoutUntil = nil
		if err := s.repo.Update(ctx, user); err != nil {
			return nil, errors.Wrap(err, "Service.Login reset failed attempts")
		}
	}

	pair, err := s.issuePair(ctx, user, user.RefreshToken, now)
	if err != nil {
		return nil, err
	}

	log.Info().Str("user_id", user.ID).Msg("user logged in")
	return pair, nil
}

// Refresh exchanges an expired-but-authentic access token plus the live
// refresh credential for a brand new pair. The presented refresh value is
// invalidated the instant the rotation commits; a concurrent attempt with
// the same value loses the conditional update and is denied.
func (s *Service) Refresh(ctx context.Context, accessToken, refreshValue string) (*TokenPair, error) {
	claims, err := s.tokens.VerifyExpired(accessToken)
	if err != nil {
		return nil, apperrors.ErrInvalidToken
	}
	if claims.Subject == "" {
		return nil, apperrors.ErrInvalidToken
	}

	user, err := s.repo.GetByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.ErrInvalidRefresh
		}
		return nil, errors.Wrap(err, "Service.Refresh GetByID")
	}

	now := s.nowTime()
	if !refreshValid(user, refreshValue, now) {
		return nil, apperrors.ErrInvalidRefresh
	}

	pair, err := s.rotate(ctx, user, refreshValue, now)
	if err != nil {
		return nil, err
	}

	log.Info().Str("user_id", user.ID).Msg("token pair refreshed")
	return pair, nil
}

// Revoke clears the account's refresh slot. It is idempotent: revoking an
// account with no live refresh credential, or one that does not exist,
// still reports success. Already-issued access tokens stay valid until
// their expiry; revocation only stops future refreshes.
func (s *Service) Revoke(ctx context.Context, userID string) error {
	err := s.repo.ClearRefreshToken(ctx, userID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil
		}
		return errors.Wrap(err, "Service.Revoke ClearRefreshToken")
	}

	log.Info().Str("user_id", userID).Msg("refresh credential revoked")
	return nil
}

// rotate commits the new pair with a conditional write keyed on the
// presented refresh value. A conflict is retried exactly once after
// re-reading the account; if the stored value no longer matches the
// presented one (the normal race-loser case) or the retry conflicts again,
// the rotation is denied.
func (s *Service) rotate(ctx context.Context, user *users.User, presented string, now time.Time) (*TokenPair, error) {
	pair, err := s.issuePairConditional(ctx, user, &presented, now)
	if err == nil {
		return pair, nil
	}
	if !errors.Is(err, apperrors.ErrRefreshConflict) {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.ErrInvalidRefresh
		}
		return nil, err
	}

	reread, err := s.repo.GetByID(ctx, user.ID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.ErrInvalidRefresh
		}
		return nil, errors.Wrap(err, "Service.rotate reread")
	}
	if reread.RefreshToken == nil || *reread.RefreshToken != presented {
		return nil, apperrors.ErrInvalidRefresh
	}

	pair, err = s.issuePairConditional(ctx, reread, &presented, now)
	if err != nil {
		if errors.Is(err, apperrors.ErrRefreshConflict) || errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.ErrInvalidRefresh
		}
		return nil, errors.Wrap(err, "Service.rotate retry")
	}
	return pair, nil
}

// issuePair mints and persists a new pair, retrying a conflicting write once
// with a re-read expected value. Used by Login, where the overwrite is not
// keyed on a client-presented credential.
func (s *Service) issuePair(ctx context.Context, user *users.User, expectedOld *string, now time.Time) (*TokenPair, error) {
	pair, err := s.issuePairConditional(ctx, user, expectedOld, now)
	if err == nil {
		return pair, nil
	}
	if !errors.Is(err, apperrors.ErrRefreshConflict) {
		return nil, err
	}

	reread, err := s.repo.GetByID(ctx, user.ID)
	if err != nil {
		return nil, errors.Wrap(err, "Service.issuePair reread")
	}
	pair, err = s.issuePairConditional(ctx, reread, reread.RefreshToken, now)
	if err != nil {
		return nil, errors.Wrap(err, "Service.issuePair retry")
	}
	return pair, nil
}

func (s *Service) issuePairConditional(ctx context.Context, user *users.User, expectedOld *string, now time.Time) (*TokenPair, error) {
	accessToken, err := s.tokens.CreateAccessToken(user)
	if err != nil {
		return nil, errors.Wrap(err, "Service.issuePair CreateAccessToken")
	}

	refreshToken, err := s.tokens.NewRefreshCredential()
	if err != nil {
		return nil, errors.Wrap(err, "Service.issuePair NewRefreshCredential")
	}

	expiry := now.Add(s.config.GetRefreshTokenExpiry())
	if err := s.repo.UpdateRefreshToken(ctx, user.ID, expectedOld, refreshToken, expiry); err != nil {
		return nil, err
	}

	return &TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    s.tokens.ExpiryFor(now),
	}, nil
}

func (s *Service) recordFailedAttempt(ctx context.Context, user *users.User, now time.Time) error {
	user.FailedLoginAttempts++
	denial := apperrors.ErrInvalidCredentials

	if user.FailedLoginAttempts >= s.config.GetMaxFailedLogins() {
		until := now.Add(s.config.GetLockoutDuration())
		user.LockoutUntil = &until
		user.FailedLoginAttempts = 0
		denial = apperrors.ErrAccountLocked
		log.Warn().Str("user_id", user.ID).Time("until", until).Msg("account locked out")
	}

	if err := s.repo.Update(ctx, user); err != nil {
		log.Err(err).Str("user_id", user.ID).Msg("failed to record login attempt")
	}
	return denial
}

// refreshValid checks the stored slot: the value must exist, match the
// presented one exactly (no normalization), and not be past its stored expiry.
func refreshValid(user *users.User, presented string, now time.Time) bool {
	if user.RefreshToken == nil || user.RefreshTokenExpiry == nil {
		return false
	}
	if *user.RefreshToken != presented {
		return false
	}
	return user.RefreshTokenExpiry.After(now)
}
