package auth

// Service principal credentials, access tokens and error kinds

import (
	"errors"
	"strings"
	"time"
)

var (
	// ErrAuthNotConfigured means the credentials were missing or unusable at startup.
	// It is permanent for the lifetime of the Provider.
	ErrAuthNotConfigured = errors.New("azure authentication is not configured")

	// ErrExchangeFailed wraps any failure of the token endpoint call.
	ErrExchangeFailed = errors.New("token exchange failed")
)

// Credentials identify the service principal used for the client-credential grant.
type Credentials struct {
	TenantID     string
	ClientID     string
	ClientSecret string
}

// Valid reports whether all three values are present.
func (c Credentials) Valid() bool {
	return strings.TrimSpace(c.TenantID) != "" &&
		strings.TrimSpace(c.ClientID) != "" &&
		strings.TrimSpace(c.ClientSecret) != ""
}

// String never includes the secret.
func (c Credentials) String() string {
	secret := "(not set)"
	if strings.TrimSpace(c.ClientSecret) != "" {
		secret = "***"
	}
	return "tenant=" + c.TenantID + " client=" + c.ClientID + " secret=" + secret
}

// Token is an issued access token.
type Token struct {
	Value     string
	ExpiresAt time.Time
}

// ExpiresIn returns the remaining lifetime relative to now.
func (t Token) ExpiresIn(now time.Time) time.Duration {
	return t.ExpiresAt.Sub(now)
}
