package validate

import (
	"math/rand/v2"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPassword(t *testing.T) {
	tests := []struct {
		name     string
		password string
		want     error
	}{
		{"valid", "Abcdef1!", nil},
		{"valid long", "correct-Horse-battery-staple-9", nil},
		{"short with every class", `aA1\`, ErrPasswordTooShort},
		{"exactly min length", "aB3$efgh", nil},
		{"one less than min length", "aB3$efg", ErrPasswordTooShort},
		{"empty", "", ErrPasswordTooShort},
		{"no lowercase", "ABCDEF1!", ErrPasswordNoLower},
		{"no uppercase", "abcdef1!", ErrPasswordNoUpper},
		{"no digit", "Abcdefg!", ErrPasswordNoDigit},
		{"no symbol", "Abcdefg1", ErrPasswordNoSymbol},
		{"symbol out of set", "Abcdef1~", ErrPasswordNoSymbol},
		{"non ascii letters do not count", "Абвгдеж1!", ErrPasswordNoLower},
		{"line break is just another character", "Abcdef1!\n", nil},
		{"spaces allowed", "Abc def1!", nil},
		{"length counted in runes", "Ab1!ééé", ErrPasswordTooShort},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Password(tt.password)

			if tt.want == nil {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, tt.want)
		})
	}

	t.Run("every listed symbol accepted", func(t *testing.T) {
		for _, r := range PasswordSymbols {
			require.NoError(t, Password("Abcdef1"+string(r)), "symbol %q", r)
		}
	})
}

// Generate valid passwords and break exactly one rule in each
func TestPassword_Generated(t *testing.T) {
	const (
		lower  = "abcdefghijklmnopqrstuvwxyz"
		upper  = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
		digits = "0123456789"
	)

	rnd := rand.New(rand.NewPCG(1, 2))
	pick := func(set string) byte { return set[rnd.IntN(len(set))] }

	// Password of given length built only from given classes, every class used at least once
	generate := func(length int, classes ...string) string {
		b := make([]byte, 0, length)
		for _, class := range classes {
			b = append(b, pick(class))
		}
		for len(b) < length {
			b = append(b, pick(classes[rnd.IntN(len(classes))]))
		}
		rnd.Shuffle(len(b), func(i, j int) { b[i], b[j] = b[j], b[i] })
		return string(b)
	}

	for range 200 {
		length := PasswordMinLength + rnd.IntN(24)

		valid := generate(length, lower, upper, digits, PasswordSymbols)
		require.NoError(t, Password(valid), "password %q", valid)

		short := generate(PasswordMinLength-1, lower, upper, digits, PasswordSymbols)
		require.ErrorIs(t, Password(short), ErrPasswordTooShort, "password %q", short)

		noLower := generate(length, upper, digits, PasswordSymbols)
		require.ErrorIs(t, Password(noLower), ErrPasswordNoLower, "password %q", noLower)

		noUpper := generate(length, lower, digits, PasswordSymbols)
		require.ErrorIs(t, Password(noUpper), ErrPasswordNoUpper, "password %q", noUpper)

		noDigit := generate(length, lower, upper, PasswordSymbols)
		require.ErrorIs(t, Password(noDigit), ErrPasswordNoDigit, "password %q", noDigit)

		noSymbol := generate(length, lower, upper, digits)
		require.ErrorIs(t, Password(noSymbol), ErrPasswordNoSymbol, "password %q", noSymbol)
		require.False(t, strings.ContainsAny(noSymbol, PasswordSymbols))
	}
}
