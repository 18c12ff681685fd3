package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// minSecretBytes is the smallest signing secret accepted at startup. A short
// secret makes HS256 brute-forceable, so this is fatal rather than a warning.
const minSecretBytes = 32

// EnvVars is the environment-backed Config implementation.
type EnvVars struct {
	Port    string `env:"PORT" envDefault:"8080"`
	AppName string `env:"APP_NAME" envDefault:"FriendShare Identity"`
	Env     string `env:"ENV" envDefault:"DEV"`
	BaseURL string `env:"BASE_URL" envDefault:"http://localhost:8080"`
	DSN     string `env:"DATABASE_DSN"`

	SigningSecret      string        `env:"JWT_SECRET"`
	Issuer             string        `env:"JWT_ISSUER" envDefault:"friendshare"`
	Audience           string        `env:"JWT_AUDIENCE" envDefault:"friendshare-api"`
	AccessTokenExpiry  time.Duration `env:"ACCESS_TOKEN_EXPIRY" envDefault:"15m"`
	RefreshTokenExpiry time.Duration `env:"REFRESH_TOKEN_EXPIRY" envDefault:"168h"`
	RefreshTokenLength int           `env:"REFRESH_TOKEN_LENGTH" envDefault:"64"`

	MaxFailedLogins int           `env:"MAX_FAILED_LOGINS" envDefault:"5"`
	LockoutDuration time.Duration `env:"LOCKOUT_DURATION" envDefault:"5m"`

	SMTPHost     string `env:"SMTP_HOST" envDefault:"smtp.gmail.com"`
	SMTPPort     string `env:"SMTP_PORT" envDefault:"587"`
	SMTPAccount  string `env:"SMTP_ACCOUNT"`
	SMTPPassword string `env:"SMTP_PASSWORD"`
}

var _ Config = (*EnvVars)(nil)

// New parses the environment and validates the result. Misconfiguration of
// the signing key is a startup failure, never a per-request error.
func New() (*EnvVars, error) {
	c := &EnvVars{}
	if err := env.Parse(c); err != nil {
		return nil, fmt.Errorf("config.New: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *EnvVars) Validate() error {
	if len(c.SigningSecret) < minSecretBytes {
		return fmt.Errorf("JWT_SECRET must be at least %d bytes, got %d", minSecretBytes, len(c.SigningSecret))
	}
	if c.AccessTokenExpiry <= 0 || c.RefreshTokenExpiry <= 0 {
		return fmt.Errorf("token expiries must be positive")
	}
	if c.RefreshTokenLength < 32 {
		return fmt.Errorf("REFRESH_TOKEN_LENGTH must be at least 32 bytes")
	}
	return nil
}

func (c *EnvVars) GetPort() string {
	port := c.Port
	if !strings.HasPrefix(port, ":") {
		port = fmt.Sprintf(":%s", port)
	}
	return port
}

func (c *EnvVars) GetAppName() string     { return c.AppName }
func (c *EnvVars) GetEnv() string         { return c.Env }
func (c *EnvVars) GetBaseURL() string     { return c.BaseURL }
func (c *EnvVars) GetDatabaseDSN() string { return c.DSN }

func (c *EnvVars) GetSigningSecret() string             { return c.SigningSecret }
func (c *EnvVars) GetIssuer() string                    { return c.Issuer }
func (c *EnvVars) GetAudience() string                  { return c.Audience }
func (c *EnvVars) GetAccessTokenExpiry() time.Duration  { return c.AccessTokenExpiry }
func (c *EnvVars) GetRefreshTokenExpiry() time.Duration { return c.RefreshTokenExpiry }
func (c *EnvVars) GetRefreshTokenLength() int           { return c.RefreshTokenLength }

func (c *EnvVars) GetMaxFailedLogins() int           { return c.MaxFailedLogins }
func (c *EnvVars) GetLockoutDuration() time.Duration { return c.LockoutDuration }

func (c *EnvVars) GetSMTPHost() string     { return c.SMTPHost }
func (c *EnvVars) GetSMTPPort() string     { return c.SMTPPort }
func (c *EnvVars) GetSMTPAccount() string  { return c.SMTPAccount }
func (c *EnvVars) GetSMTPPassword() string { return c.SMTPPassword }
