package auth

import "regexp"

var (
	emailRegex    = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	usernameRegex = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)
	digitRegex    = regexp.MustCompile(`^[0-9]`)
)

func ValidateEmail(email string) error {
	if email == "" || len(email) > 255 || !emailRegex.MatchString(email) {
		return ErrInvalidEmail
	}
	return nil
}

// ValidateUsername allows 3-50 characters of letters, digits and
// underscores, not starting with a digit.
func ValidateUsername(username string) error {
	if len(username) < 3 || len(username) > 50 {
		return ErrInvalidUsername
	}
	if !usernameRegex.MatchString(username) || digitRegex.MatchString(username) {
		return ErrInvalidUsername
	}
	return nil
}
