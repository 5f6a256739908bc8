package gotrue

import (
	"fmt"
	"log"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"
	authgate "github.com/primevalon/go-authgate"
)

// TokenValidator verifies access tokens issued by the hosted provider,
// either with the project's shared signing secret or against its JWKS
// endpoint when asymmetric keys are in play.
type TokenValidator struct {
	keyFunc jwt.Keyfunc
}

// NewHMACValidator verifies HS256 tokens with the project secret.
func NewHMACValidator(signingKey string) *TokenValidator {
	return &TokenValidator{
		keyFunc: func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected jwt signing method=%v", t.Header["alg"])
			}
			return []byte(signingKey), nil
		},
	}
}

// NewJWKSValidator pulls the provider's key set and keeps it refreshed in
// the background.
func NewJWKSValidator(jwksURL string) (*TokenValidator, error) {
	jwks, err := keyfunc.Get(jwksURL, keyfunc.Options{
		RefreshErrorHandler: func(err error) {
			log.Printf("failed to do a background refresh of JWT set: %s", err)
		},
		RefreshInterval:   time.Hour,
		RefreshRateLimit:  time.Minute * 5,
		RefreshTimeout:    time.Second * 10,
		RefreshUnknownKID: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get JWK set: %w", err)
	}

	return &TokenValidator{keyFunc: jwks.Keyfunc}, nil
}

// Validate parses and verifies a raw access token, returning the session it
// encodes.
func (v *TokenValidator) Validate(raw string) (*authgate.Session, error) {
	token, err := jwt.Parse(raw, v.keyFunc)
	if err != nil {
		return nil, authgate.ErrUnableToDecodeSession
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, authgate.ErrUnableToDecodeSession
	}

	return authgate.SessionFromClaims(raw, claims)
}
