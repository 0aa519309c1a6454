package auth

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func Test_BcryptHasher(t *testing.T) {
	t.Parallel()

	h := BcryptHasher{Cost: bcrypt.MinCost}

	t.Run("hash password", func(t *testing.T) {
		got, err := h.Hash("Abcdef1!")
		require.NoError(t, err)

		require.Len(t, got, 60, "bcrypt length is 60 letters as far as i know")
		require.Equal(t, "$2a$", got[:4], "bcrypt has should have prefix '$2a$'")
		require.NotContains(t, got, "Abcdef1!", "hash must not hold plaintext")
	})

	t.Run("default cost", func(t *testing.T) {
		got, err := BcryptHasher{}.Hash("Abcdef1!")
		require.NoError(t, err)

		cost, err := bcrypt.Cost([]byte(got))
		require.NoError(t, err)
		require.Equal(t, bcrypt.DefaultCost, cost)
	})

	t.Run("compare password ok", func(t *testing.T) {
		hash, err := h.Hash("Abcdef1!")
		require.NoError(t, err)

		err = h.Compare(hash, "Abcdef1!")

		require.NoError(t, err)
	})

	t.Run("fail compare if wrong password", func(t *testing.T) {
		hash, err := h.Hash("Abcdef1!")
		require.NoError(t, err)

		err = h.Compare(hash, "wrong")

		require.Error(t, err)
	})

	t.Run("long passwords differ after 72 bytes", func(t *testing.T) {
		prefix := strings.Repeat("a", 72)
		hash, err := h.Hash(prefix + "Abcdef1!")
		require.NoError(t, err)

		err = h.Compare(hash, prefix+"other")

		require.Error(t, err)
	})

	t.Run("unusable hash", func(t *testing.T) {
		first, err := unusablePasswordHash(h)
		require.NoError(t, err)
		second, err := unusablePasswordHash(h)
		require.NoError(t, err)

		require.NotEqual(t, first, second)
		require.Error(t, h.Compare(first, ""), "empty password must not match")
	})
}
