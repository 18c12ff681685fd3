package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/friendshare/identity-server/internal/config"
	"github.com/friendshare/identity-server/server"
	"github.com/friendshare/identity-server/users"
	"github.com/friendshare/identity-server/users/repofake"
)

const testPassword = "Password1"

type sentMail struct {
	To     string
	UserID string
	Token  string
}

type captureSender struct {
	mu            sync.Mutex
	confirmations []sentMail
	resets        []sentMail
}

func (c *captureSender) SendConfirmation(_ context.Context, to, userID, token string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.confirmations = append(c.confirmations, sentMail{To: to, UserID: userID, Token: token})
	return nil
}

func (c *captureSender) SendPasswordReset(_ context.Context, to, email, token string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resets = append(c.resets, sentMail{To: to, UserID: email, Token: token})
	return nil
}

type serverFixture struct {
	server *server.Server
	repo   *repofake.FakeUserRepo
	mail   *captureSender
}

func testConfig() *config.EnvVars {
	return &config.EnvVars{
		Port:               "8080",
		AppName:            "FriendShare Identity",
		Env:                "DEV",
		BaseURL:            "http://localhost:8080",
		SigningSecret:      "0123456789abcdef0123456789abcdef",
		Issuer:             "friendshare",
		Audience:           "friendshare-api",
		AccessTokenExpiry:  15 * time.Minute,
		RefreshTokenExpiry: 168 * time.Hour,
		RefreshTokenLength: 64,
		MaxFailedLogins:    5,
		LockoutDuration:    5 * time.Minute,
	}
}

func setupTestServer(t *testing.T) *serverFixture {
	f := &serverFixture{
		repo: repofake.NewFakeUserRepo(),
		mail: &captureSender{},
	}
	srv, err := server.New(testConfig(), f.repo, f.mail)
	require.NoError(t, err)
	f.server = srv
	return f
}

func (f *serverFixture) do(t *testing.T, method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	f.server.ServeHTTP(rec, req)
	return rec
}

func decodeAuthResponse(t *testing.T, rec *httptest.ResponseRecorder) server.AuthResponse {
	var resp server.AuthResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}

// register creates a confirmed account through the public API.
func (f *serverFixture) register(t *testing.T, email, username string) {
	rec := f.do(t, http.MethodPost, server.RouteRegister, map[string]string{
		"username":        username,
		"email":           email,
		"password":        testPassword,
		"confirmPassword": testPassword,
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	f.mail.mu.Lock()
	mail := f.mail.confirmations[len(f.mail.confirmations)-1]
	f.mail.mu.Unlock()

	rec = f.do(t, http.MethodPost, server.RouteConfirmEmail, map[string]string{
		"userId": mail.UserID,
		"token":  mail.Token,
	})
	require.Equal(t, http.StatusOK, rec.Code)
}

func (f *serverFixture) login(t *testing.T, email string) server.AuthResponse {
	rec := f.do(t, http.MethodPost, server.RouteLogin, map[string]string{
		"email":    email,
		"password": testPassword,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeAuthResponse(t, rec)
	require.True(t, resp.Success)
	require.NotNil(t, resp.Token)
	require.NotNil(t, resp.RefreshToken)
	return resp
}

func TestRegisterLoginRefreshRevokeFlow(t *testing.T) {
	f := setupTestServer(t)
	f.register(t, "john.doe@example.com", "johnd")

	login := f.login(t, "john.doe@example.com")

	rec := f.do(t, http.MethodPost, server.RouteRefresh, map[string]string{
		"accessToken":  *login.Token,
		"refreshToken": *login.RefreshToken,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	refreshed := decodeAuthResponse(t, rec)
	require.NotEqual(t, *login.RefreshToken, *refreshed.RefreshToken)

	// The consumed refresh credential is gone.
	rec = f.do(t, http.MethodPost, server.RouteRefresh, map[string]string{
		"accessToken":  *login.Token,
		"refreshToken": *login.RefreshToken,
	})
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.do(t, http.MethodPost, server.RouteRevoke, nil,
		"Authorization", "Bearer "+*refreshed.Token)
	require.Equal(t, http.StatusOK, rec.Code)

	// Revoking twice is still a success.
	rec = f.do(t, http.MethodPost, server.RouteRevoke, nil,
		"Authorization", "Bearer "+*refreshed.Token)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodPost, server.RouteRefresh, map[string]string{
		"accessToken":  *refreshed.Token,
		"refreshToken": *refreshed.RefreshToken,
	})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLoginDenialStatuses(t *testing.T) {
	f := setupTestServer(t)
	f.register(t, "john.doe@example.com", "johnd")

	rec := f.do(t, http.MethodPost, server.RouteLogin, map[string]string{
		"email": "nobody@example.com", "password": testPassword,
	})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	unknown := decodeAuthResponse(t, rec)

	rec = f.do(t, http.MethodPost, server.RouteLogin, map[string]string{
		"email": "john.doe@example.com", "password": "WrongPass1",
	})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	wrongPassword := decodeAuthResponse(t, rec)

	// Unknown email and wrong password are indistinguishable on the wire.
	require.Equal(t, unknown.Message, wrongPassword.Message)

	user, err := f.repo.GetByEmail(context.Background(), "john.doe@example.com")
	require.NoError(t, err)
	user.IsActive = false
	require.NoError(t, f.repo.Update(context.Background(), user))

	rec = f.do(t, http.MethodPost, server.RouteLogin, map[string]string{
		"email": "john.doe@example.com", "password": testPassword,
	})
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRegisterValidationStatuses(t *testing.T) {
	f := setupTestServer(t)
	f.register(t, "john.doe@example.com", "johnd")

	rec := f.do(t, http.MethodPost, server.RouteRegister, map[string]string{
		"username": "other", "email": "other@example.com",
		"password": "weak", "confirmPassword": "weak",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPost, server.RouteRegister, map[string]string{
		"username": "other", "email": "john.doe@example.com",
		"password": testPassword, "confirmPassword": testPassword,
	})
	require.Equal(t, http.StatusConflict, rec.Code)

	rec = f.do(t, http.MethodPost, server.RouteRegister, map[string]string{
		"username": "johnd", "email": "other@example.com",
		"password": testPassword, "confirmPassword": testPassword,
	})
	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestBearerAuthMiddleware(t *testing.T) {
	f := setupTestServer(t)
	f.register(t, "john.doe@example.com", "johnd")
	login := f.login(t, "john.doe@example.com")

	rec := f.do(t, http.MethodGet, server.RouteProfile, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.do(t, http.MethodGet, server.RouteProfile, nil,
		"Authorization", "Bearer not-a-token")
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.do(t, http.MethodGet, server.RouteProfile, nil,
		"Authorization", "Bearer "+*login.Token)
	require.Equal(t, http.StatusOK, rec.Code)

	var profile users.Profile
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&profile))
	require.Equal(t, "johnd", profile.Username)
	require.Equal(t, "john.doe@example.com", profile.Email)
}

func TestProfileUpdateAndPasswordChange(t *testing.T) {
	f := setupTestServer(t)
	f.register(t, "john.doe@example.com", "johnd")
	login := f.login(t, "john.doe@example.com")
	bearer := "Bearer " + *login.Token

	rec := f.do(t, http.MethodPut, server.RouteProfile, map[string]string{
		"first_name": "John", "bio": "Hello there",
	}, "Authorization", bearer)
	require.Equal(t, http.StatusOK, rec.Code)

	var profile users.Profile
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&profile))
	require.Equal(t, "John", profile.FirstName)
	require.Equal(t, "Hello there", profile.Bio)

	rec = f.do(t, http.MethodPost, server.RouteProfilePassword, map[string]string{
		"currentPassword": "WrongPass1", "newPassword": "Fresher2",
	}, "Authorization", bearer)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.do(t, http.MethodPost, server.RouteProfilePassword, map[string]string{
		"currentPassword": testPassword, "newPassword": "Fresher2",
	}, "Authorization", bearer)
	require.Equal(t, http.StatusOK, rec.Code)

	// Password change emptied the refresh slot.
	rec = f.do(t, http.MethodPost, server.RouteRefresh, map[string]string{
		"accessToken":  *login.Token,
		"refreshToken": *login.RefreshToken,
	})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestForgotAndResetPasswordEndpoints(t *testing.T) {
	f := setupTestServer(t)
	f.register(t, "john.doe@example.com", "johnd")

	// Identical response for unknown and known addresses.
	rec := f.do(t, http.MethodPost, server.RouteForgotPassword, map[string]string{"email": "nobody@example.com"})
	require.Equal(t, http.StatusOK, rec.Code)
	rec = f.do(t, http.MethodPost, server.RouteForgotPassword, map[string]string{"email": "john.doe@example.com"})
	require.Equal(t, http.StatusOK, rec.Code)

	f.mail.mu.Lock()
	require.Len(t, f.mail.resets, 1)
	reset := f.mail.resets[0]
	f.mail.mu.Unlock()

	rec = f.do(t, http.MethodPost, server.RouteResetPassword, map[string]string{
		"email": "john.doe@example.com", "token": "bad-token", "newPassword": "Fresher2",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPost, server.RouteResetPassword, map[string]string{
		"email": "john.doe@example.com", "token": reset.Token, "newPassword": "Fresher2",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodPost, server.RouteLogin, map[string]string{
		"email": "john.doe@example.com", "password": "Fresher2",
	})
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestInvalidJSONBody(t *testing.T) {
	f := setupTestServer(t)

	req := httptest.NewRequest(http.MethodPost, server.RouteLogin, bytes.NewBufferString("{not json"))
	rec := httptest.NewRecorder()
	f.server.ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}
