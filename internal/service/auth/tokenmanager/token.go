package tokenmanager

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/nkiryanov/todo/internal/apperrors"
	"github.com/nkiryanov/todo/internal/models"
)

const (
	defaultAccessTokenTTL  = time.Hour
	defaultSigningMethod   = "HS256"
	defaultRefreshTokenTTL = 30 * 24 * time.Hour
)

type Claims struct {
	jwt.RegisteredClaims
	Type models.TokenFlavor `json:"typ"`
}

// Token manager with sensible default
type Config struct {
	// Base64 encoded keys to sign access and refresh tokens
	// Both required and must differ
	AccessKey  string
	RefreshKey string

	// JWT MAC (Message Authentication Code) algorithm
	// If not set than default is used
	Alg string

	// Access and refresh token lifetimes
	// If not set than default is used
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

type TokenManager struct {
	accessKey  []byte
	refreshKey []byte

	// JWT MAC (Message Authentication Code) algorithm
	alg jwt.SigningMethod

	// Access and refresh token lifetimes
	accessTTL  time.Duration
	refreshTTL time.Duration

	now func() time.Time
}

func New(cfg Config) (*TokenManager, error) {
	decodeKey := func(name string, value string) ([]byte, error) {
		if value == "" {
			return nil, fmt.Errorf("%s key must not be empty", name)
		}
		key, err := base64.StdEncoding.DecodeString(value)
		if err != nil {
			return nil, fmt.Errorf("%s key is not valid base64: %w", name, err)
		}
		return key, nil
	}

	accessKey, err := decodeKey("access", cfg.AccessKey)
	if err != nil {
		return nil, err
	}
	refreshKey, err := decodeKey("refresh", cfg.RefreshKey)
	if err != nil {
		return nil, err
	}
	if bytes.Equal(accessKey, refreshKey) {
		return nil, errors.New("access and refresh keys must differ")
	}

	if cfg.Alg == "" {
		cfg.Alg = defaultSigningMethod
	}
	alg := jwt.GetSigningMethod(cfg.Alg)
	if _, ok := alg.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("unsupported signing method %q", cfg.Alg)
	}

	setDefaultDuration := func(field *time.Duration, def time.Duration) {
		if *field == 0 {
			*field = def
		}
	}
	setDefaultDuration(&cfg.AccessTTL, defaultAccessTokenTTL)
	setDefaultDuration(&cfg.RefreshTTL, defaultRefreshTokenTTL)

	return &TokenManager{
		accessKey:  accessKey,
		refreshKey: refreshKey,
		alg:        alg,
		accessTTL:  cfg.AccessTTL,
		refreshTTL: cfg.RefreshTTL,
		now:        time.Now,
	}, nil
}

// Mint token of the flavor with lifetime from config
func (m *TokenManager) Mint(subject string, flavor models.TokenFlavor) (models.IssuedToken, error) {
	switch flavor {
	case models.TokenFlavorAccess:
		return m.MintWithTTL(subject, m.accessTTL, flavor)
	case models.TokenFlavorRefresh:
		return m.MintWithTTL(subject, m.refreshTTL, flavor)
	default:
		return models.IssuedToken{}, fmt.Errorf("mint: %w", apperrors.ErrTokenUnsupported)
	}
}

func (m *TokenManager) MintWithTTL(subject string, ttl time.Duration, flavor models.TokenFlavor) (models.IssuedToken, error) {
	key, err := m.key(flavor)
	if err != nil {
		return models.IssuedToken{}, fmt.Errorf("mint: %w", err)
	}

	now := m.now().Truncate(time.Second)
	expiresAt := now.Add(ttl)

	token := jwt.NewWithClaims(
		m.alg,
		Claims{
			RegisteredClaims: jwt.RegisteredClaims{
				ID:        uuid.NewString(),
				Subject:   subject,
				IssuedAt:  jwt.NewNumericDate(now),
				ExpiresAt: jwt.NewNumericDate(expiresAt),
			},
			Type: flavor,
		},
	)

	value, err := token.SignedString(key)
	if err != nil {
		return models.IssuedToken{}, fmt.Errorf("error while signing %s token. Err: %w", flavor, err)
	}

	return models.IssuedToken{Value: value, ExpiresAt: expiresAt}, nil
}

// Verify token signature, expiry and flavor and return its subject
// Error wraps one of apperrors.ErrToken* sentinels
func (m *TokenManager) Verify(token string, flavor models.TokenFlavor) (string, error) {
	if token == "" {
		return "", apperrors.ErrTokenEmpty
	}

	key, err := m.key(flavor)
	if err != nil {
		return "", err
	}

	claims := &Claims{}
	_, err = jwt.ParseWithClaims(
		token,
		claims,
		func(t *jwt.Token) (any, error) {
			return key, nil
		},
		jwt.WithValidMethods([]string{m.alg.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)

	switch {
	case err == nil:
	case errors.Is(err, jwt.ErrTokenMalformed), errors.Is(err, jwt.ErrTokenRequiredClaimMissing):
		return "", fmt.Errorf("%w: %w", apperrors.ErrTokenMalformed, err)
	case errors.Is(err, jwt.ErrTokenExpired):
		return "", fmt.Errorf("%w: %w", apperrors.ErrTokenExpired, err)
	default:
		return "", fmt.Errorf("%w: %w", apperrors.ErrTokenUnsupported, err)
	}

	if claims.Type != flavor {
		return "", fmt.Errorf("%w: expected %s token, got %q", apperrors.ErrTokenUnsupported, flavor, claims.Type)
	}
	if claims.Subject == "" {
		return "", fmt.Errorf("%w: subject is empty", apperrors.ErrTokenMalformed)
	}

	return claims.Subject, nil
}

func (m *TokenManager) key(flavor models.TokenFlavor) ([]byte, error) {
	switch flavor {
	case models.TokenFlavorAccess:
		return m.accessKey, nil
	case models.TokenFlavorRefresh:
		return m.refreshKey, nil
	default:
		return nil, apperrors.ErrTokenUnsupported
	}
}
