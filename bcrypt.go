package authgate

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// passwordHashCost trades hash time for resistance to offline cracking.
const passwordHashCost = 14

// HashPassword hashes a cleartext password for storage.
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", ErrNoEmptyString
	}

	h, err := bcrypt.GenerateFromPassword([]byte(password), passwordHashCost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}

// ComparePasswordAndHash checks a cleartext password against its stored
// hash. A mismatch returns ErrMismatchedHashAndPassword.
func ComparePasswordAndHash(password, hash string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return ErrMismatchedHashAndPassword
	}
	return err
}
