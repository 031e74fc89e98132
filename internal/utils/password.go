package utils

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// AdminHashCost is the bcrypt cost used for the operator password hash
// printed by `server -hash-password`.
const AdminHashCost = 12

// ErrEmptyPassword is returned when hashing an empty password.
var ErrEmptyPassword = errors.New("empty password")

// HashPassword returns the bcrypt hash of plain.  A cost below
// bcrypt.MinCost falls back to AdminHashCost.
func HashPassword(plain string, cost int) (string, error) {
	if plain == "" {
		return "", ErrEmptyPassword
	}
	if cost < bcrypt.MinCost {
		cost = AdminHashCost
	}
	b, err := bcrypt.GenerateFromPassword([]byte(plain), cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// VerifyPassword reports whether plain matches the configured hash.  An
// empty hash never matches, which keeps admin login disabled until
// ADMIN_PASSWORD_HASH is set.
func VerifyPassword(hash, plain string) bool {
	if hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}
