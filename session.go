package authgate

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// Session is a non-owning cached copy of the provider's session. The hosted
// store owns the real thing; this copy is replaced wholesale on every
// provider-pushed change and on initial load.
type Session struct {
	AccessToken string         `json:"access_token,omitempty"`
	UserID      string         `json:"user_id,omitempty"`
	Email       string         `json:"email,omitempty"`
	ExpiresAt   *time.Time     `json:"expires_at,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// User is derived entirely from the session; it is never mutated locally,
// only replaced when the session changes.
type User struct {
	ID       string `json:"id,omitempty"`
	Email    string `json:"email,omitempty"`
	FullName string `json:"full_name,omitempty"`
}

// User derives the user from the cached session.
func (s *Session) User() *User {
	if s == nil || s.UserID == "" {
		return nil
	}

	u := &User{
		ID:    s.UserID,
		Email: s.Email,
	}

	if s.Metadata != nil {
		if name, ok := s.Metadata["full_name"].(string); ok {
			u.FullName = name
		}
	}

	return u
}

// UserUUID parses the provider-issued user identifier.
func (s *Session) UserUUID() (uuid.UUID, error) {
	if s == nil {
		return uuid.Nil, ErrUnableToFindSession
	}
	return uuid.Parse(s.UserID)
}

// Expired reports whether the session's access token is past its expiry.
func (s *Session) Expired(now time.Time) bool {
	if s == nil || s.ExpiresAt == nil {
		return false
	}
	return now.After(*s.ExpiresAt)
}

func (s Session) String() string {
	exp := "<nil>"
	if s.ExpiresAt != nil {
		exp = s.ExpiresAt.Format(time.RFC1123)
	}
	return fmt.Sprintf("user=%s email=%s exp=%s", s.UserID, s.Email, exp)
}

// ErrUnableToFindSession is the error when the request carries no session
var ErrUnableToFindSession = goerrors.New("unable to find session", goerrors.CategoryAuth).
	WithTextCode("NO_SESSION").
	WithCode(goerrors.CodeUnauthorized)

// ErrUnableToDecodeSession is returned when the session token cannot be parsed
var ErrUnableToDecodeSession = goerrors.New("unable to decode session", goerrors.CategoryAuth).
	WithTextCode("BAD_SESSION_TOKEN").
	WithCode(goerrors.CodeUnauthorized)

// SessionFromToken parses a provider-issued HS256 access token into a
// Session. Use provider-level validators (e.g. gotrue.TokenValidator) when
// the hosted store signs with an asymmetric key.
func SessionFromToken(raw string, signingKey []byte) (*Session, error) {
	token, err := jwt.Parse(raw, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return signingKey, nil
	})
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryAuth, "unable to decode session").
			WithTextCode("BAD_SESSION_TOKEN").
			WithCode(goerrors.CodeUnauthorized)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrUnableToDecodeSession
	}

	return SessionFromClaims(raw, claims)
}

// SessionFromClaims builds a Session from verified token claims.
func SessionFromClaims(raw string, claims jwt.MapClaims) (*Session, error) {
	session := &Session{AccessToken: raw}

	if sub, err := claims.GetSubject(); err == nil {
		session.UserID = sub
	}

	if email, ok := claims["email"].(string); ok {
		session.Email = email
	}

	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		session.ExpiresAt = &exp.Time
	}

	if meta, ok := claims["user_metadata"].(map[string]any); ok {
		session.Metadata = meta
	}

	if session.UserID == "" {
		return nil, ErrUnableToDecodeSession
	}

	return session, nil
}

// sessionEqual is the idempotence check for Manager.applySession: the dual
// initialization paths may deliver the same session twice and must not fan
// out a change for an equal value.
func sessionEqual(a, b *Session) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.AccessToken == b.AccessToken && a.UserID == b.UserID
}
