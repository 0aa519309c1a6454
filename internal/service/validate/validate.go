package validate

import (
	"errors"
	"strings"
	"unicode/utf8"
)

const (
	PasswordMinLength = 8
	PasswordSymbols   = `!@#$%^&*()_+-=[]{};':"\|,.<>/?`
)

var (
	ErrPasswordTooShort = errors.New("password is too short")
	ErrPasswordNoLower  = errors.New("password must contain a lowercase letter")
	ErrPasswordNoUpper  = errors.New("password must contain an uppercase letter")
	ErrPasswordNoDigit  = errors.New("password must contain a digit")
	ErrPasswordNoSymbol = errors.New("password must contain a symbol")
)

// Password checks password strength
// Letters and digits are ASCII only, symbols are from PasswordSymbols
// Other characters are allowed but count to no class
func Password(password string) error {
	if utf8.RuneCountInString(password) < PasswordMinLength {
		return ErrPasswordTooShort
	}

	var lower, upper, digit, symbol bool
	for _, r := range password {
		switch {
		case r >= 'a' && r <= 'z':
			lower = true
		case r >= 'A' && r <= 'Z':
			upper = true
		case r >= '0' && r <= '9':
			digit = true
		case strings.ContainsRune(PasswordSymbols, r):
			symbol = true
		}
	}

	switch {
	case !lower:
		return ErrPasswordNoLower
	case !upper:
		return ErrPasswordNoUpper
	case !digit:
		return ErrPasswordNoDigit
	case !symbol:
		return ErrPasswordNoSymbol
	default:
		return nil
	}
}
