package users

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	apperrors "github.com/friendshare/identity-server/internal/errors"
)

// Profile is the externally visible subset of a User.
type Profile struct {
	ID             string `json:"id"`
	Username       string `json:"username"`
	Email          string `json:"email"`
	FirstName      string `json:"first_name,omitempty"`
	LastName       string `json:"last_name,omitempty"`
	Bio            string `json:"bio,omitempty"`
	PhotoURL       string `json:"photo_url,omitempty"`
	EmailConfirmed bool   `json:"email_confirmed"`
}

// UpdateProfileRequest carries partial profile updates. Nil fields are kept
// as they are.
type UpdateProfileRequest struct {
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
	Bio       *string `json:"bio"`
	PhotoURL  *string `json:"photo_url"`
}

// Service handles profile operations against the account directory.
type Service struct {
	repo UserRepo
}

func NewService(repo UserRepo) *Service {
	return &Service{repo: repo}
}

func (s *Service) GetProfile(ctx context.Context, userID string) (*Profile, error) {
	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return toProfile(user), nil
}

func (s *Service) UpdateProfile(ctx context.Context, userID string, req UpdateProfileRequest) (*Profile, error) {
	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if req.FirstName != nil {
		user.FirstName = *req.FirstName
	}
	if req.LastName != nil {
		user.LastName = *req.LastName
	}
	if req.Bio != nil {
		user.Bio = *req.Bio
	}
	if req.PhotoURL != nil {
		user.PhotoURL = *req.PhotoURL
	}
	user.UpdatedAt = time.Now().UTC()

	if err := s.repo.Update(ctx, user); err != nil {
		return nil, err
	}

	log.Info().Str("user_id", userID).Msg("profile updated")
	return toProfile(user), nil
}

// ChangePassword verifies the current password, stores a new hash, and
// empties the refresh slot to force a fresh login everywhere.
func (s *Service) ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error {
	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return err
	}

	if !CheckPasswordHash(currentPassword, user.PasswordHash) {
		return apperrors.ErrInvalidCredentials
	}
	if err := ValidatePasswordStrength(newPassword); err != nil {
		return err
	}

	hash, err := HashPassword(newPassword)
	if err != nil {
		return err
	}
	user.PasswordHash = hash
	user.UpdatedAt = time.Now().UTC()

	if err := s.repo.Update(ctx, user); err != nil {
		return err
	}
	if err := s.repo.ClearRefreshToken(ctx, userID); err != nil {
		return err
	}

	log.Info().Str("user_id", userID).Msg("password changed")
	return nil
}

func (s *Service) DeleteAccount(ctx context.Context, userID string) error {
	if err := s.repo.Delete(ctx, userID); err != nil {
		return err
	}
	log.Info().Str("user_id", userID).Msg("account deleted")
	return nil
}

func toProfile(user *User) *Profile {
	return &Profile{
		ID:             user.ID,
		Username:       user.Username,
		Email:          user.Email,
		FirstName:      user.FirstName,
		LastName:       user.LastName,
		Bio:            user.Bio,
		PhotoURL:       user.PhotoURL,
		EmailConfirmed: user.EmailConfirmed,
	}
}
