package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/friendshare/identity-server/auth"
	apperrors "github.com/friendshare/identity-server/internal/errors"
	"github.com/friendshare/identity-server/internal/utils"
	"github.com/friendshare/identity-server/users"
)

const contentTypeJSON = "application/json; charset=utf-8"

// AuthResponse is the wire shape shared by the register/login/refresh
// endpoints.
type AuthResponse struct {
	Success      bool           `json:"success"`
	Message      string         `json:"message,omitempty"`
	Token        *string        `json:"token,omitempty"`
	RefreshToken *string        `json:"refreshToken,omitempty"`
	Expiration   *time.Time     `json:"expiration,omitempty"`
	User         *users.Profile `json:"user,omitempty"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

type confirmEmailRequest struct {
	UserID string `json:"userId"`
	Token  string `json:"token"`
}

type forgotPasswordRequest struct {
	Email string `json:"email"`
}

type resetPasswordRequest struct {
	Email       string `json:"email"`
	Token       string `json:"token"`
	NewPassword string `json:"newPassword"`
}

func (s *Server) RegisterHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req auth.RegisterRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		if _, err := s.auth.Register(r.Context(), req); err != nil {
			writeDenial(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, AuthResponse{
			Success: true,
			Message: "Registration successful. Please check your email to confirm your account.",
		})
	}
}

func (s *Server) LoginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req loginRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		pair, err := s.auth.Login(r.Context(), req.Email, req.Password)
		if err != nil {
			writeDenial(w, err)
			return
		}

		writeJSON(w, http.StatusOK, issuedResponse("Login successful.", pair))
	}
}

func (s *Server) RefreshHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req refreshRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		pair, err := s.auth.Refresh(r.Context(), req.AccessToken, req.RefreshToken)
		if err != nil {
			writeDenial(w, err)
			return
		}

		writeJSON(w, http.StatusOK, issuedResponse("Token refreshed successfully.", pair))
	}
}

func (s *Server) RevokeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := UserIDFromContext(r.Context())
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		if err := s.auth.Revoke(r.Context(), userID); err != nil {
			writeDenial(w, err)
			return
		}

		writeJSON(w, http.StatusOK, AuthResponse{Success: true, Message: "Logged out."})
	}
}

func (s *Server) ConfirmEmailHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req confirmEmailRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		if err := s.auth.ConfirmEmail(r.Context(), req.UserID, req.Token); err != nil {
			writeDenial(w, err)
			return
		}

		writeJSON(w, http.StatusOK, AuthResponse{
			Success: true,
			Message: "Email confirmed successfully. You can now log in.",
		})
	}
}

func (s *Server) ForgotPasswordHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req forgotPasswordRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		if err := s.auth.ForgotPassword(r.Context(), req.Email); err != nil {
			writeDenial(w, err)
			return
		}

		// Same response whether or not the account exists.
		writeJSON(w, http.StatusOK, AuthResponse{
			Success: true,
			Message: "If an account with that email exists, a password reset link has been sent.",
		})
	}
}

func (s *Server) ResetPasswordHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req resetPasswordRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		if err := s.auth.ResetPassword(r.Context(), req.Email, req.Token, req.NewPassword); err != nil {
			writeDenial(w, err)
			return
		}

		writeJSON(w, http.StatusOK, AuthResponse{
			Success: true,
			Message: "Password reset successful. You can now log in with your new password.",
		})
	}
}

func issuedResponse(message string, pair *auth.TokenPair) AuthResponse {
	return AuthResponse{
		Success:      true,
		Message:      message,
		Token:        utils.Ptr(pair.AccessToken),
		RefreshToken: utils.Ptr(pair.RefreshToken),
		Expiration:   utils.Ptr(pair.ExpiresAt),
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, AuthResponse{Success: false, Message: "Invalid request body."})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Err(err).Msg("failed to encode response")
	}
}

// writeDenial maps service denials onto HTTP statuses. The login denial for
// an unknown email and a wrong password is identical on purpose.
func writeDenial(w http.ResponseWriter, err error) {
	status, message := http.StatusInternalServerError, "Internal server error."

	switch {
	case errors.Is(err, apperrors.ErrInvalidCredentials):
		status, message = http.StatusUnauthorized, "Invalid email or password."
	case errors.Is(err, apperrors.ErrAccountDeactivated):
		status, message = http.StatusForbidden, "Your account has been deactivated."
	case errors.Is(err, apperrors.ErrAccountUnconfirmed):
		status, message = http.StatusForbidden, "Please confirm your email before logging in."
	case errors.Is(err, apperrors.ErrAccountLocked):
		status, message = http.StatusForbidden, "Your account is temporarily locked. Please try again later."
	case errors.Is(err, apperrors.ErrInvalidToken):
		status, message = http.StatusUnauthorized, "Invalid token."
	case errors.Is(err, apperrors.ErrInvalidRefresh):
		status, message = http.StatusUnauthorized, "Invalid or expired refresh token."
	case errors.Is(err, apperrors.ErrDuplicateEmail):
		status, message = http.StatusConflict, "An account with this email already exists."
	case errors.Is(err, apperrors.ErrDuplicateUsername):
		status, message = http.StatusConflict, "This username is already taken."
	case errors.Is(err, apperrors.ErrInvalidConfirmationToken):
		status, message = http.StatusBadRequest, "Invalid confirmation request."
	case errors.Is(err, apperrors.ErrInvalidResetToken):
		status, message = http.StatusBadRequest, "Invalid password reset request."
	case errors.Is(err, apperrors.ErrNotFound):
		status, message = http.StatusNotFound, "Not found."
	default:
		var validationErr *apperrors.ValidationError
		if errors.As(err, &validationErr) {
			status, message = http.StatusBadRequest, validationErr.Reason
		} else {
			log.Err(err).Msg("request failed")
		}
	}

	writeJSON(w, status, AuthResponse{Success: false, Message: message})
}
