package server

import (
	"net/http"

	"github.com/friendshare/identity-server/users"
)

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

func (s *Server) GetProfileHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, _ := UserIDFromContext(r.Context())

		profile, err := s.users.GetProfile(r.Context(), userID)
		if err != nil {
			writeDenial(w, err)
			return
		}
		writeJSON(w, http.StatusOK, profile)
	}
}

func (s *Server) UpdateProfileHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, _ := UserIDFromContext(r.Context())

		var req users.UpdateProfileRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		profile, err := s.users.UpdateProfile(r.Context(), userID, req)
		if err != nil {
			writeDenial(w, err)
			return
		}
		writeJSON(w, http.StatusOK, profile)
	}
}

func (s *Server) ChangePasswordHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, _ := UserIDFromContext(r.Context())

		var req changePasswordRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		if err := s.users.ChangePassword(r.Context(), userID, req.CurrentPassword, req.NewPassword); err != nil {
			writeDenial(w, err)
			return
		}
		writeJSON(w, http.StatusOK, AuthResponse{
			Success: true,
			Message: "Password changed successfully. Please log in again.",
		})
	}
}

func (s *Server) DeleteProfileHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, _ := UserIDFromContext(r.Context())

		if err := s.users.DeleteAccount(r.Context(), userID); err != nil {
			writeDenial(w, err)
			return
		}
		writeJSON(w, http.StatusOK, AuthResponse{Success: true, Message: "Account deleted."})
	}
}
