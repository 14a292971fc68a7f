package auth

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"
)

// bcrypt only reads the first 72 bytes of input. Truncation must happen on
// both the hash and verify paths or longer passwords fail intermittently.
const maxPasswordBytes = 72

const DefaultBcryptCost = 12

const passwordSymbols = "!@#$%^&*()_+-=[]{}|;:,.<>?"

// PasswordPolicy hashes, verifies and scores passwords.
type PasswordPolicy struct {
	cost int
}

func NewPasswordPolicy(cost int) PasswordPolicy {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultBcryptCost
	}
	return PasswordPolicy{cost: cost}
}

func (p PasswordPolicy) Hash(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword(truncatePassword(password), p.cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// Verify compares in constant time via bcrypt itself. A malformed hash is
// reported as a mismatch, never an error.
func (p PasswordPolicy) Verify(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), truncatePassword(password)) == nil
}

// Strength checks every rule independently and returns all violations in
// rule order; the caller surfaces the first one as the primary message.
func (p PasswordPolicy) Strength(password string) (bool, []string) {
	var violations []string

	if utf8.RuneCountInString(password) < 8 {
		violations = append(violations, "password must be at least 8 characters")
	}

	var hasUpper, hasLower, hasDigit, hasSymbol bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		case strings.ContainsRune(passwordSymbols, r):
			hasSymbol = true
		}
	}

	if !hasUpper {
		violations = append(violations, "password must contain at least one uppercase letter")
	}
	if !hasLower {
		violations = append(violations, "password must contain at least one lowercase letter")
	}
	if !hasDigit {
		violations = append(violations, "password must contain at least one digit")
	}
	if !hasSymbol {
		violations = append(violations, "password must contain at least one special character")
	}

	return len(violations) == 0, violations
}

func truncatePassword(password string) []byte {
	b := []byte(password)
	if len(b) > maxPasswordBytes {
		b = b[:maxPasswordBytes]
	}
	return b
}
