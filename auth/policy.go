package auth

import (
	"errors"
	"strings"
	"unicode"
)

// ValidateMasterPassword applies the master password policy requirements.
// It gates setup and password change, never unlock: an already-established
// password must keep working even if the policy tightens later.
func ValidateMasterPassword(pw string) error {
	if len(pw) < 12 {
		return errors.New("password must be at least 12 characters long")
	}
	if !hasClass(pw, unicode.IsUpper) {
		return errors.New("password must include an uppercase letter")
	}
	if !hasClass(pw, unicode.IsDigit) {
		return errors.New("password must include a digit")
	}
	if !strings.ContainsAny(pw, specialChars) {
		return errors.New("password must include a special character")
	}
	if a := LocalScore(pw); levelFor(a.Score) < LevelFair {
		return errors.New("password is too guessable")
	}
	return nil
}
