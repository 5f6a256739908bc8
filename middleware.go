package authgate

import (
	"net/http"

	"github.com/goliatone/go-router"
)

// SessionReader extracts the cached session from a request, typically from
// the provider token carried in a cookie or Authorization header.
type SessionReader func(c router.Context) (*Session, error)

// CookieSessionReader reads the provider token from a cookie and parses it
// with the local signing key.
func CookieSessionReader(cookieName string, signingKey []byte) SessionReader {
	return func(c router.Context) (*Session, error) {
		raw := c.Cookies(cookieName)
		if raw == "" {
			return nil, ErrUnableToFindSession
		}
		return SessionFromToken(raw, signingKey)
	}
}

// BearerSessionReader reads the provider token from the Authorization
// header.
func BearerSessionReader(signingKey []byte) SessionReader {
	return func(c router.Context) (*Session, error) {
		raw := c.Header("Authorization")
		if len(raw) > 7 && raw[:7] == "Bearer " {
			return SessionFromToken(raw[7:], signingKey)
		}
		return nil, ErrUnableToFindSession
	}
}

// RequireRole wraps an individual protected subtree: no session, or a role
// below the requirement, redirects to the caller-supplied path. This is the
// scoped variant of the policy table (rules 1 and 3 only); the full table
// lives in RouteGuard.Evaluate.
func (g *RouteGuard) RequireRole(role Role, redirectTo string, reader SessionReader) router.MiddlewareFunc {
	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(c router.Context) error {
			session, err := reader(c)
			if err != nil || session == nil {
				return redirect(c, redirectTo)
			}

			user := session.User()
			if role == RoleAdmin && g.allow.RoleFor(user) != RoleAdmin {
				return redirect(c, redirectTo)
			}

			c.SetContext(WithSessionContext(WithContext(c.Context(), user), session))
			return next(c)
		}
	}
}

func redirect(c router.Context, path string) error {
	statusCode := http.StatusSeeOther
	if c.Method() == string(router.GET) {
		statusCode = http.StatusFound
	}
	return c.Redirect(path, statusCode)
}
