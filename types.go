package auth

import (
	"context"
	"fmt"
	"time"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Error(format string, args ...any)
}

// Config holds the session client options
type Config interface {
	GetBaseURL() string
	GetRequestTimeout() time.Duration
	GetProfileTimeout() time.Duration
	GetMaxRetries() int
	GetRetryDelay() time.Duration
	GetMaxContentLength() int64
	GetMaxRedirects() int
	GetGateCapacity() int
	GetCSRFCookieName() string
	GetCSRFHeaderName() string
	GetIdleTimeout() time.Duration
	GetIdleCheckInterval() time.Duration
}

// CredentialStore persists the token pair and the cached user profile
// between sessions. Implementations must tolerate a corrupt stored
// profile by reporting "no user" instead of failing.
type CredentialStore interface {
	Credential(ctx context.Context) (*Credential, error)
	SetCredential(ctx context.Context, cred Credential) error
	User(ctx context.Context) (*UserProfile, error)
	SetUser(ctx context.Context, user *UserProfile) error
	Clear(ctx context.Context) error
}

// TokenRefresher exchanges the stored refresh token for a new credential.
// The transport drives it once per original request on a 401 response.
type TokenRefresher interface {
	RefreshToken(ctx context.Context) (*Credential, error)
}

// SessionState is the lifecycle phase of the session manager.
type SessionState string

const (
	StateAnonymous      SessionState = "anonymous"
	StateAuthenticating SessionState = "authenticating"
	StateAuthenticated  SessionState = "authenticated"
	StateRefreshing     SessionState = "refreshing"
)

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] AUTH "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] AUTH "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] AUTH "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}
