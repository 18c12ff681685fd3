package token

import (
	"crypto/rand"
	"encoding/base64"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	apperrors "github.com/friendshare/identity-server/internal/errors"
	"github.com/friendshare/identity-server/internal/utils"
	"github.com/friendshare/identity-server/users"
)

// Claims is the verified content of an access token.
type Claims struct {
	Subject   string
	Email     string
	Name      string
	TokenID   string
	Roles     []string
	Issuer    string
	Audience  string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Manager issues access tokens and opaque refresh credentials. It is
// stateless: verification is a pure function of the signing secret, and
// refresh credentials are only generated here, never stored.
type Manager struct {
	signer        Signer
	issuer        string
	audience      string
	accessExpiry  time.Duration
	refreshLength int
	nowFunc       func() time.Time
}

type ManagerOption func(*Manager)

// WithNowFunc overrides the clock (primarily for testing)
func WithNowFunc(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		m.nowFunc = now
	}
}

// New creates a Manager. Issuer, audience and expiries come from settings
// fixed at construction, not from ambient state.
func New(signer Signer, issuer, audience string, accessExpiry time.Duration, refreshLength int, options ...ManagerOption) *Manager {
	m := &Manager{
		signer:        signer,
		issuer:        issuer,
		audience:      audience,
		accessExpiry:  accessExpiry,
		refreshLength: refreshLength,
		nowFunc:       time.Now,
	}

	for _, opt := range options {
		opt(m)
	}

	if m.accessExpiry == 0 {
		m.accessExpiry = 15 * time.Minute
	}
	if m.refreshLength == 0 {
		m.refreshLength = 64 // 512 bits
	}
	return m
}

// CreateAccessToken mints a signed access token for the user. Every token
// carries a fresh jti so two tokens issued in the same second still differ.
func (m *Manager) CreateAccessToken(user *users.User) (string, error) {
	now := m.nowFunc()

	claims := jwt.MapClaims{
		"iss":   m.issuer,
		"aud":   m.audience,
		"sub":   user.ID,
		"email": user.Email,
		"name":  user.DisplayName(),
		"roles": user.Roles,
		"iat":   now.Unix(),
		"exp":   now.Add(m.accessExpiry).Unix(),
		"jti":   uuid.New().String(),
	}

	signedToken, err := m.signer.Sign(claims)
	if err != nil {
		return "", errors.Wrap(err, "Manager.CreateAccessToken")
	}
	return signedToken, nil
}

// VerifyExpired checks a token's signature, algorithm, issuer and audience
// but deliberately skips the expiry check. It exists for the refresh flow,
// which accepts an expired access token as a cryptographically authentic
// pointer to the account. It never rejects solely because the token expired.
func (m *Manager) VerifyExpired(rawToken string) (*Claims, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)

	parsed, err := parser.Parse(rawToken, m.signer.GetVerificationKey)
	if err != nil || !parsed.Valid {
		return nil, apperrors.ErrInvalidToken
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, apperrors.ErrInvalidToken
	}

	// Issuer and audience still matter even for an expired token: a token
	// minted for another service must not act as an identity pointer here.
	if iss, _ := claims["iss"].(string); iss != m.issuer {
		return nil, apperrors.ErrInvalidToken
	}
	if aud, _ := claims["aud"].(string); aud != m.audience {
		return nil, apperrors.ErrInvalidToken
	}

	return claimsFromMap(claims), nil
}

// Verify fully validates a live access token, including its expiry.
func (m *Manager) Verify(rawToken string) (*Claims, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(m.issuer),
		jwt.WithAudience(m.audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.nowFunc),
	)

	parsed, err := parser.Parse(rawToken, m.signer.GetVerificationKey)
	if err != nil || !parsed.Valid {
		return nil, apperrors.ErrInvalidToken
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, apperrors.ErrInvalidToken
	}
	return claimsFromMap(claims), nil
}

// ExpiryFor returns the access-token expiry for tokens minted at now.
func (m *Manager) ExpiryFor(now time.Time) time.Time {
	return now.Add(m.accessExpiry)
}

// NewRefreshCredential generates an opaque high-entropy refresh value.
// The default length is 64 bytes (512 bits of randomness).
func (m *Manager) NewRefreshCredential() (string, error) {
	tokenBytes := make([]byte, m.refreshLength)
	if _, err := rand.Read(tokenBytes); err != nil {
		return "", errors.Wrap(err, "Manager.NewRefreshCredential rand.Read")
	}
	return base64.StdEncoding.EncodeToString(tokenBytes), nil
}

func claimsFromMap(claims jwt.MapClaims) *Claims {
	sub, _ := claims["sub"].(string)
	email, _ := claims["email"].(string)
	name, _ := claims["name"].(string)
	jti, _ := claims["jti"].(string)
	iss, _ := claims["iss"].(string)
	aud, _ := claims["aud"].(string)
	iat, _ := claims["iat"].(float64)
	exp, _ := claims["exp"].(float64)

	var roles []string
	if claimRoles, ok := claims["roles"].([]any); ok {
		roles = utils.ToStringSlice(claimRoles)
	}

	return &Claims{
		Subject:   sub,
		Email:     email,
		Name:      name,
		TokenID:   jti,
		Roles:     roles,
		Issuer:    iss,
		Audience:  aud,
		IssuedAt:  time.Unix(int64(iat), 0),
		ExpiresAt: time.Unix(int64(exp), 0),
	}
}
