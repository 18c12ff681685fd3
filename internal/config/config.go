package config

import "time"

type Config interface {
	EnvConfig
	TokenConfig
	SecurityConfig
	SMTPConfig
}

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetEnv() string
	GetBaseURL() string
	GetDatabaseDSN() string
}

// TokenConfig carries the settings for the credential signer. Values are
// fixed at startup; nothing reads the environment after New returns.
type TokenConfig interface {
	GetSigningSecret() string
	GetIssuer() string
	GetAudience() string
	GetAccessTokenExpiry() time.Duration
	GetRefreshTokenExpiry() time.Duration
	GetRefreshTokenLength() int
}

type SecurityConfig interface {
	GetMaxFailedLogins() int
	GetLockoutDuration() time.Duration
}

type SMTPConfig interface {
	GetSMTPHost() string
	GetSMTPPort() string
	GetSMTPAccount() string
	GetSMTPPassword() string
}
