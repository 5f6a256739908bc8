package authgate

import (
	"context"
	"errors"
	"net"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

// Error taxonomy surfaced by Manager operations. Store-layer failures are
// translated into exactly one of these at the Manager boundary; callers never
// see the provider's raw error unless it is unrecognized.
var (
	ErrInvalidCredentials = goerrors.New("Invalid email or password.", goerrors.CategoryAuth).
				WithTextCode("INVALID_CREDENTIALS").
				WithCode(goerrors.CodeUnauthorized)

	ErrAlreadyRegistered = goerrors.New("This email is already registered.", goerrors.CategoryConflict).
				WithTextCode("ALREADY_REGISTERED").
				WithCode(goerrors.CodeConflict)

	ErrWeakPassword = goerrors.New("Password must be at least 6 characters.", goerrors.CategoryValidation).
			WithTextCode("WEAK_PASSWORD").
			WithCode(goerrors.CodeBadRequest)

	ErrInvalidEmail = goerrors.New("Please enter a valid email address.", goerrors.CategoryValidation).
			WithTextCode("INVALID_EMAIL").
			WithCode(goerrors.CodeBadRequest)

	ErrConnection = goerrors.New("Connection error. Please try again.", goerrors.CategoryOperation).
			WithTextCode("CONNECTION_ERROR").
			WithCode(goerrors.CodeInternal)

	ErrMissingFields = goerrors.New("Please fill in all fields.", goerrors.CategoryValidation).
				WithTextCode("MISSING_FIELDS").
				WithCode(goerrors.CodeBadRequest)
)

// ErrNoEmptyString is returned when hashing an empty password
var ErrNoEmptyString = errors.New("can't use empty string")

// ErrMismatchedHashAndPassword is the error for password mismatches
var ErrMismatchedHashAndPassword = errors.New("mismatched hash and password")

// IsInvalidCredentialsError checks for the provider's bad-password responses
func IsInvalidCredentialsError(err error) bool {
	return containsAny(err,
		"invalid login credentials",
		"invalid grant",
		"invalid_grant",
		"invalid email or password",
		"mismatched hash and password",
	)
}

// IsAlreadyRegisteredError checks for duplicate registration responses
func IsAlreadyRegisteredError(err error) bool {
	return containsAny(err,
		"already registered",
		"already been registered",
		"already exists",
	)
}

// IsWeakPasswordError checks for below-minimum-length password responses
func IsWeakPasswordError(err error) bool {
	return containsAny(err,
		"password should be at least",
		"weak password",
		"password is too short",
	)
}

// IsInvalidEmailError checks for malformed email responses
func IsInvalidEmailError(err error) bool {
	return containsAny(err,
		"unable to validate email",
		"invalid email",
		"invalid format",
	)
}

// IsConnectionError checks for network/connectivity failures, including
// timeouts
func IsConnectionError(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	return containsAny(err,
		"connection refused",
		"no such host",
		"network is unreachable",
		"timeout",
		"timed out",
	)
}

// TranslateProviderError maps a raw provider error into the taxonomy above.
// Unrecognized errors are passed through so the provider's own message
// reaches the caller as a fallback.
func TranslateProviderError(err error) error {
	if err == nil {
		return nil
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) && richErr.TextCode != "" {
		// already translated
		return err
	}

	switch {
	case IsConnectionError(err):
		return taxonomyError(ErrConnection, err)
	case IsInvalidCredentialsError(err):
		return taxonomyError(ErrInvalidCredentials, err)
	case IsAlreadyRegisteredError(err):
		return taxonomyError(ErrAlreadyRegistered, err)
	case IsWeakPasswordError(err):
		return taxonomyError(ErrWeakPassword, err)
	case IsInvalidEmailError(err):
		return taxonomyError(ErrInvalidEmail, err)
	}

	return goerrors.Wrap(err, goerrors.CategoryAuth, err.Error()).
		WithCode(goerrors.CodeUnauthorized)
}

func taxonomyError(base *goerrors.Error, source error) error {
	clone := base.Clone()
	if clone == nil {
		return base
	}
	clone.Source = source
	return clone
}

func containsAny(err error, fragments ...string) bool {
	if err == nil {
		return false
	}

	msg := strings.ToLower(err.Error())
	for _, f := range fragments {
		if strings.Contains(msg, f) {
			return true
		}
	}
	return false
}
