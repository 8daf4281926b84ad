package users

import (
	"unicode"

	"golang.org/x/crypto/bcrypt"
)

const (
	minPasswordLength = 8
	// bcrypt only accepts passwords of up to 72 bytes.
	maxPasswordBytes = 72
)

// HashPassword wraps bcrypt.GenerateFromPassword for local auth storage.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// VerifyPassword wraps bcrypt.CompareHashAndPassword for local auth checks.
func VerifyPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// ValidatePasswordStrength returns a human-readable reason when password is
// too weak, or "" when it is acceptable.
func ValidatePasswordStrength(password string) string {
	if len([]rune(password)) < minPasswordLength {
		return "must be at least 8 characters"
	}
	if len(password) > maxPasswordBytes {
		return "must be at most 72 bytes"
	}

	var upper, lower, digit, symbol bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			symbol = true
		}
	}
	switch {
	case !upper:
		return "must contain an upper-case letter"
	case !lower:
		return "must contain a lower-case letter"
	case !digit:
		return "must contain a digit"
	case !symbol:
		return "must contain a symbol"
	}
	return ""
}
