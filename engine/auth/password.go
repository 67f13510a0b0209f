package auth

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"
)

// bcrypt ignores everything past 72 bytes.
const maxPasswordBytes = 72

// PolicyError lists every rule a password broke.
type PolicyError struct {
	TooLong  bool
	Problems []string
}

func (e *PolicyError) Error() string {
	if e.TooLong {
		return fmt.Sprintf("Password must be %d characters or fewer", maxPasswordBytes)
	}
	return "Password must contain: " + strings.Join(e.Problems, ", ")
}

// ValidatePassword returns a *PolicyError unless p has at least eight
// characters, an uppercase letter and a digit, and fits in 72 bytes.
func ValidatePassword(p string) error {
	if len(p) > maxPasswordBytes {
		return &PolicyError{TooLong: true}
	}
	var problems []string
	if utf8.RuneCountInString(p) < 8 {
		problems = append(problems, "at least 8 characters")
	}
	if !strings.ContainsFunc(p, unicode.IsUpper) {
		problems = append(problems, "at least 1 uppercase letter")
	}
	if !strings.ContainsFunc(p, unicode.IsDigit) {
		problems = append(problems, "at least 1 digit")
	}
	if len(problems) > 0 {
		return &PolicyError{Problems: problems}
	}
	return nil
}

func hashPassword(p string, cost int) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(p), cost)
	if err != nil {
		return "", fmt.Errorf("auth: hash password: %w", err)
	}
	return string(h), nil
}

func checkPassword(hash, p string) bool {
	return hash != "" && bcrypt.CompareHashAndPassword([]byte(hash), []byte(p)) == nil
}
