package authgate

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// SignUpOptions carry the registration extras forwarded to the hosted
// identity provider: a post-confirmation redirect target and session metadata
// such as the display name.
type SignUpOptions struct {
	RedirectTo string
	Metadata   map[string]any
}

// OAuthOptions carry the redirect target and extra authorize parameters for
// an OAuth sign-in.
type OAuthOptions struct {
	RedirectTo  string
	QueryParams map[string]string
}

// SessionStore is the hosted identity provider contract. All calls are
// asynchronous and non-blocking from the caller's perspective; the store owns
// the session, we only cache a non-owning copy.
type SessionStore interface {
	// GetCurrentSession returns the current session or nil when signed out.
	GetCurrentSession(ctx context.Context) (*Session, error)

	// OnSessionChange registers a push callback fired on sign-in, sign-out,
	// and token refresh. The returned function severs the subscription and
	// must be called on teardown.
	OnSessionChange(fn func(*Session)) (unsubscribe func())

	SignInWithPassword(ctx context.Context, email, password string) (*Session, error)
	SignUp(ctx context.Context, email, password string, opts SignUpOptions) error

	// SignInWithOAuth returns the authorize URL the browser should be sent
	// to. The provider redirects away, so success means "redirect initiated".
	SignInWithOAuth(ctx context.Context, provider string, opts OAuthOptions) (string, error)

	SignOut(ctx context.Context) error
}

// EntitlementStore holds per-user plan/subscription rows.
type EntitlementStore interface {
	// QueryActiveEntitlement returns the most recent active row for the user,
	// or nil when none exists.
	QueryActiveEntitlement(ctx context.Context, userID uuid.UUID) (*PlanEntitlement, error)
}

// Config holds authgate options
type Config interface {
	GetSigningKey() string
	GetLoginPath() string
	GetAdminPathPrefix() string
	GetAdminHomePath() string
	GetDashboardPath() string
	GetLandingPath() string
	GetAdminEmails() []string
	GetOAuthRedirect() string
	GetSignUpRedirect() string
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] AUTHGATE "+newline(format), args...)
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] AUTHGATE "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] AUTHGATE "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] AUTHGATE "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}
