package tokenmanager

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nkiryanov/todo/internal/apperrors"
	"github.com/nkiryanov/todo/internal/models"
)

var (
	accessKey  = base64.StdEncoding.EncodeToString([]byte("test-access-secret-key"))
	refreshKey = base64.StdEncoding.EncodeToString([]byte("test-refresh-secret-key"))
)

func mustParseTime(value string) time.Time {
	dt, err := time.Parse("2006-01-02 15:04:05Z07:00", value)
	if err != nil {
		panic(err)
	}
	return dt
}

func newManager(t *testing.T, now time.Time) *TokenManager {
	t.Helper()
	m, err := New(Config{AccessKey: accessKey, RefreshKey: refreshKey})
	require.NoError(t, err, "token manager should be created without errors")
	m.now = func() time.Time { return now }
	return m
}

func Test_TokenManager(t *testing.T) {
	t.Parallel()

	now := mustParseTime("2025-01-01 19:00:01Z")

	t.Run("new defaults", func(t *testing.T) {
		m, err := New(Config{AccessKey: accessKey, RefreshKey: refreshKey})
		require.NoError(t, err, "token manager should be created without errors")

		require.Equal(t, []byte("test-access-secret-key"), m.accessKey)
		require.Equal(t, []byte("test-refresh-secret-key"), m.refreshKey)
		require.Equal(t, defaultAccessTokenTTL, m.accessTTL, "default access token TTL should be set")
		require.Equal(t, defaultRefreshTokenTTL, m.refreshTTL, "default refresh token TTL")
		require.Equal(t, defaultSigningMethod, m.alg.Alg(), "default signing method should be set")
	})

	t.Run("new config errors", func(t *testing.T) {
		tests := []struct {
			name string
			cfg  Config
		}{
			{"empty access key", Config{RefreshKey: refreshKey}},
			{"empty refresh key", Config{AccessKey: accessKey}},
			{"access key not base64", Config{AccessKey: "not base64!", RefreshKey: refreshKey}},
			{"same keys", Config{AccessKey: accessKey, RefreshKey: accessKey}},
			{"not hmac alg", Config{AccessKey: accessKey, RefreshKey: refreshKey, Alg: "RS256"}},
			{"unknown alg", Config{AccessKey: accessKey, RefreshKey: refreshKey, Alg: "nope"}},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				_, err := New(tt.cfg)

				require.Error(t, err)
			})
		}
	})

	t.Run("mint claims", func(t *testing.T) {
		m := newManager(t, now)

		issued, err := m.Mint("alice", models.TokenFlavorAccess)
		require.NoError(t, err)

		claims := &Claims{}
		_, err = jwt.ParseWithClaims(issued.Value, claims, func(token *jwt.Token) (any, error) {
			return []byte("test-access-secret-key"), nil
		}, jwt.WithTimeFunc(func() time.Time { return now }))
		require.NoError(t, err)

		assert.Equal(t, "alice", claims.Subject)
		assert.Equal(t, models.TokenFlavorAccess, claims.Type)
		assert.NotEmpty(t, claims.ID, "token has to has jti")
		assert.Equal(t, now, claims.IssuedAt.UTC())
		assert.Equal(t, now.Add(time.Hour), claims.ExpiresAt.UTC())
		assert.True(t, issued.ExpiresAt.Equal(now.Add(time.Hour)), "issued expires at should match claims")
	})

	t.Run("mint uses ttl per flavor", func(t *testing.T) {
		m := newManager(t, now)

		access, err := m.Mint("alice", models.TokenFlavorAccess)
		require.NoError(t, err)
		refresh, err := m.Mint("alice", models.TokenFlavorRefresh)
		require.NoError(t, err)
		custom, err := m.MintWithTTL("alice", 14*24*time.Hour, models.TokenFlavorRefresh)
		require.NoError(t, err)

		assert.Equal(t, now.Add(time.Hour), access.ExpiresAt)
		assert.Equal(t, now.Add(30*24*time.Hour), refresh.ExpiresAt)
		assert.Equal(t, now.Add(14*24*time.Hour), custom.ExpiresAt)
	})

	t.Run("mint unknown flavor", func(t *testing.T) {
		m := newManager(t, now)

		_, err := m.Mint("alice", models.TokenFlavor("other"))

		require.ErrorIs(t, err, apperrors.ErrTokenUnsupported)
	})

	t.Run("tokens minted in same second differ", func(t *testing.T) {
		m := newManager(t, now)

		first, err := m.Mint("alice", models.TokenFlavorRefresh)
		require.NoError(t, err)
		second, err := m.Mint("alice", models.TokenFlavorRefresh)
		require.NoError(t, err)

		require.NotEqual(t, first.Value, second.Value)
	})

	t.Run("verify ok", func(t *testing.T) {
		m := newManager(t, now)

		for _, flavor := range []models.TokenFlavor{models.TokenFlavorAccess, models.TokenFlavorRefresh} {
			issued, err := m.Mint("alice", flavor)
			require.NoError(t, err)

			subject, err := m.Verify(issued.Value, flavor)

			require.NoError(t, err, "flavor %s", flavor)
			require.Equal(t, "alice", subject)
		}
	})

	t.Run("verify with wrong flavor", func(t *testing.T) {
		m := newManager(t, now)

		access, err := m.Mint("alice", models.TokenFlavorAccess)
		require.NoError(t, err)
		refresh, err := m.Mint("alice", models.TokenFlavorRefresh)
		require.NoError(t, err)

		_, err = m.Verify(access.Value, models.TokenFlavorRefresh)
		require.ErrorIs(t, err, apperrors.ErrTokenUnsupported, "access token must not pass as refresh")

		_, err = m.Verify(refresh.Value, models.TokenFlavorAccess)
		require.ErrorIs(t, err, apperrors.ErrTokenUnsupported, "refresh token must not pass as access")
	})

	t.Run("verify token signed with the right key but wrong typ claim", func(t *testing.T) {
		m := newManager(t, now)

		// Signed by the access key but claims to be a refresh token
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
			RegisteredClaims: jwt.RegisteredClaims{
				Subject:   "alice",
				ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
			},
			Type: models.TokenFlavorRefresh,
		})
		value, err := token.SignedString([]byte("test-access-secret-key"))
		require.NoError(t, err)

		_, err = m.Verify(value, models.TokenFlavorAccess)

		require.ErrorIs(t, err, apperrors.ErrTokenUnsupported)
	})

	t.Run("verify expiry boundary", func(t *testing.T) {
		m := newManager(t, now)
		issued, err := m.MintWithTTL("alice", time.Minute, models.TokenFlavorAccess)
		require.NoError(t, err)

		m.now = func() time.Time { return issued.ExpiresAt.Add(-time.Second) }
		_, err = m.Verify(issued.Value, models.TokenFlavorAccess)
		require.NoError(t, err, "token must be valid one second before expiry")

		m.now = func() time.Time { return issued.ExpiresAt }
		_, err = m.Verify(issued.Value, models.TokenFlavorAccess)
		require.ErrorIs(t, err, apperrors.ErrTokenExpired, "token must be rejected exactly at expiry")
	})

	t.Run("verify failures", func(t *testing.T) {
		m := newManager(t, now)
		issued, err := m.Mint("alice", models.TokenFlavorAccess)
		require.NoError(t, err)

		other, err := New(Config{
			AccessKey:  base64.StdEncoding.EncodeToString([]byte("another-access-key")),
			RefreshKey: refreshKey,
		})
		require.NoError(t, err)
		other.now = m.now
		foreign, err := other.Mint("alice", models.TokenFlavorAccess)
		require.NoError(t, err)

		noExp := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
			RegisteredClaims: jwt.RegisteredClaims{Subject: "alice"},
			Type:             models.TokenFlavorAccess,
		})
		noExpValue, err := noExp.SignedString([]byte("test-access-secret-key"))
		require.NoError(t, err)

		hs512 := jwt.NewWithClaims(jwt.SigningMethodHS512, Claims{
			RegisteredClaims: jwt.RegisteredClaims{Subject: "alice", ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour))},
			Type:             models.TokenFlavorAccess,
		})
		hs512Value, err := hs512.SignedString([]byte("test-access-secret-key"))
		require.NoError(t, err)

		tests := []struct {
			name  string
			token string
			want  error
		}{
			{"empty", "", apperrors.ErrTokenEmpty},
			{"garbage", "not-a-jwt", apperrors.ErrTokenMalformed},
			{"truncated", issued.Value[:len(issued.Value)/2], apperrors.ErrTokenMalformed},
			{"missing exp", noExpValue, apperrors.ErrTokenMalformed},
			{"signed with other key", foreign.Value, apperrors.ErrTokenUnsupported},
			{"signed with other alg", hs512Value, apperrors.ErrTokenUnsupported},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				_, err := m.Verify(tt.token, models.TokenFlavorAccess)

				require.ErrorIs(t, err, tt.want)
			})
		}
	})
}
