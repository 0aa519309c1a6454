package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nkiryanov/todo/internal/apperrors"
	"github.com/nkiryanov/todo/internal/logger"
	"github.com/nkiryanov/todo/internal/models"
	"github.com/nkiryanov/todo/internal/repository"
	"github.com/nkiryanov/todo/internal/service/validate"
)

const (
	defaultLoginRefreshTTL   = 14 * 24 * time.Hour
	defaultRotatedRefreshTTL = 30 * 24 * time.Hour
	defaultResetTokenTTL     = 15 * time.Minute
	defaultProviderTimeout   = 5 * time.Second

	resetPasswordSubject = "Reset password"
)

// Client safe messages
const (
	msgBadCredentials  = "Username or password is incorrect"
	msgInvalidToken    = "Invalid or expired token"
	msgRefreshUsed     = "Refresh token is invalid or already used"
	msgUsernameExists  = "Username already exists"
	msgEmailExists     = "Email already exists"
	msgUserExists      = "User already exists"
	msgInvalidPassword = "Invalid password format"
	msgNoUserInfo      = "Can't get user info"
	msgEmailNotExists  = "Email does not exist"
	msgResetInvalid    = "Token is invalid"
	msgResetExpired    = "Token is expired"
)

// Interface to create or compare user password hashes
type PasswordHasher interface {
	// Generate Hash from password
	Hash(password string) (string, error)

	// Compare known hashedPassword and user provided password
	// Must be protected against timing attacks
	Compare(hashedPassword string, password string) error
}

type TokenManager interface {
	Mint(subject string, flavor models.TokenFlavor) (models.IssuedToken, error)
	MintWithTTL(subject string, ttl time.Duration, flavor models.TokenFlavor) (models.IssuedToken, error)
	Verify(token string, flavor models.TokenFlavor) (string, error)
}

// External identity provider, exchanges its access token for the user email
type IdentityProvider interface {
	UserEmail(ctx context.Context, accessToken string) (string, error)
}

type Mailer interface {
	Send(ctx context.Context, to string, subject string, body string) error
}

type Config struct {
	// Base URL of the frontend, reset password link points there
	FrontendURL string

	// Lifetime of refresh token issued on login and on rotation
	// If not set than default is used
	LoginRefreshTTL   time.Duration
	RotatedRefreshTTL time.Duration

	// Lifetime of reset password token
	// If not set than default is used
	ResetTokenTTL time.Duration

	// Timeout of identity provider exchange
	ProviderTimeout time.Duration

	// Hasher to user during user registration or login process
	Hasher PasswordHasher
}

type RegisterParams struct {
	Username string
	Email    string
	Password string
}

// Auth service
type AuthService struct {
	frontendURL string

	loginRefreshTTL   time.Duration
	rotatedRefreshTTL time.Duration
	resetTokenTTL     time.Duration
	providerTimeout   time.Duration

	// hasher to hash or compare user passwords
	hasher PasswordHasher

	// Hash compared against when user is not found, so both branches take similar time
	dummyHash string

	// Manager to mint and verify access and refresh tokens
	tokens TokenManager

	// Repositories to access long term data
	storage repository.Storage

	provider IdentityProvider
	mailer   Mailer
	logger   logger.Logger

	now func() time.Time
}

func NewService(cfg Config, tokens TokenManager, storage repository.Storage, provider IdentityProvider, mailer Mailer, l logger.Logger) (*AuthService, error) {
	if tokens == nil || storage == nil {
		return nil, errors.New("token manager and storage must not be nil")
	}
	if provider == nil || mailer == nil {
		return nil, errors.New("identity provider and mailer must not be nil")
	}
	if l == nil {
		l = logger.NewNoOpLogger()
	}

	// Set default bcrypt hasher if not user provided by user
	hasher := cfg.Hasher
	if hasher == nil {
		hasher = DefaultHasher
	}

	setDefaultDuration := func(field *time.Duration, def time.Duration) {
		if *field == 0 {
			*field = def
		}
	}
	setDefaultDuration(&cfg.LoginRefreshTTL, defaultLoginRefreshTTL)
	setDefaultDuration(&cfg.RotatedRefreshTTL, defaultRotatedRefreshTTL)
	setDefaultDuration(&cfg.ResetTokenTTL, defaultResetTokenTTL)
	setDefaultDuration(&cfg.ProviderTimeout, defaultProviderTimeout)

	dummyHash, err := unusablePasswordHash(hasher)
	if err != nil {
		return nil, err
	}

	return &AuthService{
		frontendURL:       strings.TrimRight(cfg.FrontendURL, "/"),
		loginRefreshTTL:   cfg.LoginRefreshTTL,
		rotatedRefreshTTL: cfg.RotatedRefreshTTL,
		resetTokenTTL:     cfg.ResetTokenTTL,
		providerTimeout:   cfg.ProviderTimeout,
		hasher:            hasher,
		dummyHash:         dummyHash,
		tokens:            tokens,
		storage:           storage,
		provider:          provider,
		mailer:            mailer,
		logger:            l,
		now:               time.Now,
	}, nil
}

// Login with username or email and password
// Previous refresh token of the user stops working
func (s *AuthService) Login(ctx context.Context, identity string, password string) (models.AuthResult, error) {
	var res models.AuthResult

	user, err := s.storage.User().GetUserByIdentity(ctx, identity)
	switch {
	case errors.Is(err, apperrors.ErrUserNotFound):
		_ = s.hasher.Compare(s.dummyHash, password)
		return res, apperrors.Unauthenticated(msgBadCredentials, err)
	case err != nil:
		return res, fmt.Errorf("login: %w", err)
	}

	err = s.hasher.Compare(user.PasswordHash, password)
	if err != nil {
		return res, apperrors.Unauthenticated(msgBadCredentials, err)
	}

	return s.startSession(ctx, user)
}

// Mint access and refresh tokens and save refresh one as the only live one for the user
func (s *AuthService) startSession(ctx context.Context, user models.User) (models.AuthResult, error) {
	var res models.AuthResult

	access, err := s.tokens.Mint(user.Username, models.TokenFlavorAccess)
	if err != nil {
		return res, fmt.Errorf("login: %w", err)
	}
	refresh, err := s.tokens.MintWithTTL(user.Username, s.loginRefreshTTL, models.TokenFlavorRefresh)
	if err != nil {
		return res, fmt.Errorf("login: %w", err)
	}

	_, err = s.storage.Token().Upsert(ctx, models.ServerToken{
		UserID:    user.ID,
		Value:     refresh.Value,
		Purpose:   models.TokenPurposeRefresh,
		ExpiresAt: s.now().Add(s.loginRefreshTTL),
	})
	if err != nil {
		return res, fmt.Errorf("login: %w", err)
	}

	return models.AuthResult{
		User:         user.Profile(),
		AccessToken:  access.Value,
		RefreshToken: refresh.Value,
	}, nil
}

// Register new user and login
func (s *AuthService) Register(ctx context.Context, params RegisterParams) (models.AuthResult, error) {
	var res models.AuthResult
	users := s.storage.User()

	taken, err := users.ExistsByUsername(ctx, params.Username)
	if err != nil {
		return res, fmt.Errorf("register: %w", err)
	}
	if taken {
		return res, apperrors.InvalidInput(msgUsernameExists)
	}

	taken, err = users.ExistsByEmail(ctx, params.Email)
	if err != nil {
		return res, fmt.Errorf("register: %w", err)
	}
	if taken {
		return res, apperrors.InvalidInput(msgEmailExists)
	}

	if err := validate.Password(params.Password); err != nil {
		return res, apperrors.InvalidInput(msgInvalidPassword)
	}

	hash, err := s.hasher.Hash(params.Password)
	if err != nil {
		return res, fmt.Errorf("can't use this as password, error=%w", err)
	}

	_, err = users.CreateUser(ctx, repository.CreateUserParams{
		Username:     params.Username,
		Email:        params.Email,
		PasswordHash: hash,
	})
	switch {
	case errors.Is(err, apperrors.ErrUserAlreadyExists):
		return res, apperrors.InvalidInput(msgUserExists)
	case err != nil:
		return res, fmt.Errorf("register: %w", err)
	}

	return s.Login(ctx, params.Username, params.Password)
}

// Refresh exchanges refresh token for a new pair
// The row is rotated in place, so the used refresh token never works again
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (models.AuthResult, error) {
	var res models.AuthResult

	username, err := s.tokens.Verify(refreshToken, models.TokenFlavorRefresh)
	if err != nil {
		s.logger.Info("Refresh token rejected", "reason", err)
		return res, apperrors.Unauthenticated(msgInvalidToken, err)
	}

	user, err := s.storage.User().GetUserByUsername(ctx, username)
	switch {
	case errors.Is(err, apperrors.ErrUserNotFound):
		return res, apperrors.Unauthenticated(msgInvalidToken, err)
	case err != nil:
		return res, fmt.Errorf("refresh: %w", err)
	}

	row, err := s.storage.Token().FindByValue(ctx, refreshToken)
	switch {
	case errors.Is(err, apperrors.ErrTokenNotFound):
		s.logger.Info("Refresh token is not in ledger", "user_id", user.ID)
		return res, apperrors.Unauthenticated(msgRefreshUsed, err)
	case err != nil:
		return res, fmt.Errorf("refresh: %w", err)
	case row.Purpose != models.TokenPurposeRefresh || row.UserID != user.ID:
		s.logger.Warn("Refresh token belongs to other user or purpose", "user_id", user.ID, "token_id", row.ID)
		return res, apperrors.Unauthenticated(msgRefreshUsed, nil)
	case row.Expired(s.now()):
		if err := s.storage.Token().Delete(ctx, row.ID); err != nil {
			s.logger.Error("Failed to delete expired refresh token", "token_id", row.ID, "error", err)
		}
		return res, apperrors.Unauthenticated(msgRefreshUsed, apperrors.ErrTokenExpired)
	}

	access, err := s.tokens.Mint(user.Username, models.TokenFlavorAccess)
	if err != nil {
		return res, fmt.Errorf("refresh: %w", err)
	}
	refresh, err := s.tokens.MintWithTTL(user.Username, s.rotatedRefreshTTL, models.TokenFlavorRefresh)
	if err != nil {
		return res, fmt.Errorf("refresh: %w", err)
	}

	_, err = s.storage.Token().Replace(ctx, row.ID, refreshToken, refresh.Value, s.now().Add(s.rotatedRefreshTTL))
	switch {
	case errors.Is(err, apperrors.ErrTokenNotFound):
		// Concurrent refresh with the same token has rotated it first
		return res, apperrors.Unauthenticated(msgRefreshUsed, err)
	case err != nil:
		return res, fmt.Errorf("refresh: %w", err)
	}

	return models.AuthResult{
		User:         user.Profile(),
		AccessToken:  access.Value,
		RefreshToken: refresh.Value,
	}, nil
}

// LoginWithGoogle logs in the owner of Google access token
// User is created on the first login, its password is unusable until reset
func (s *AuthService) LoginWithGoogle(ctx context.Context, googleToken string) (models.AuthResult, error) {
	var res models.AuthResult

	providerCtx, cancel := context.WithTimeout(ctx, s.providerTimeout)
	defer cancel()

	email, err := s.provider.UserEmail(providerCtx, googleToken)
	if err != nil || email == "" {
		s.logger.Warn("Identity provider exchange failed", "error", err)
		return res, apperrors.Upstream(msgNoUserInfo, err)
	}

	user, err := s.storage.User().GetUserByEmail(ctx, email)
	switch {
	case errors.Is(err, apperrors.ErrUserNotFound):
		user, err = s.provisionUser(ctx, email)
		if err != nil {
			return res, fmt.Errorf("google login: %w", err)
		}
	case err != nil:
		return res, fmt.Errorf("google login: %w", err)
	}

	access, err := s.tokens.Mint(user.Username, models.TokenFlavorAccess)
	if err != nil {
		return res, fmt.Errorf("google login: %w", err)
	}

	return models.AuthResult{
		User:        user.Profile(),
		AccessToken: access.Value,
	}, nil
}

func (s *AuthService) provisionUser(ctx context.Context, email string) (models.User, error) {
	var user models.User
	users := s.storage.User()

	username, err := s.freeUsername(ctx, usernameFromEmail(email))
	if err != nil {
		return user, err
	}

	hash, err := unusablePasswordHash(s.hasher)
	if err != nil {
		return user, err
	}

	user, err = users.CreateUser(ctx, repository.CreateUserParams{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
	})
	if errors.Is(err, apperrors.ErrUserAlreadyExists) {
		// Concurrent login of the same google user has created it first
		return users.GetUserByEmail(ctx, email)
	}
	if err != nil {
		return user, err
	}

	s.logger.Info("User provisioned from identity provider", "user_id", user.ID, "username", user.Username)
	return user, nil
}

// Return base if nobody uses it as username, otherwise base with random suffix
func (s *AuthService) freeUsername(ctx context.Context, base string) (string, error) {
	const attempts = 5

	candidate := base
	for range attempts {
		taken, err := s.storage.User().ExistsByUsername(ctx, candidate)
		if err != nil {
			return "", err
		}
		if !taken {
			return candidate, nil
		}

		suffix, err := randomHex(3)
		if err != nil {
			return "", err
		}
		candidate = base + "-" + suffix
	}

	return "", fmt.Errorf("no free username for %q after %d attempts", base, attempts)
}

// Local part of email or the whole string if it is not an email
func usernameFromEmail(email string) string {
	if i := strings.IndexByte(email, '@'); i != -1 {
		email = email[:i]
	}
	if email == "" {
		return "user"
	}
	return email
}

// ForgotPassword sends the user a link with single use reset password token
func (s *AuthService) ForgotPassword(ctx context.Context, email string) error {
	return apperrors.Internal(s.forgotPassword(ctx, email))
}

func (s *AuthService) forgotPassword(ctx context.Context, email string) error {
	user, err := s.storage.User().GetUserByEmail(ctx, email)
	switch {
	case errors.Is(err, apperrors.ErrUserNotFound):
		return apperrors.InvalidInput(msgEmailNotExists)
	case err != nil:
		return err
	}

	value, err := newResetToken()
	if err != nil {
		return err
	}

	_, err = s.storage.Token().Upsert(ctx, models.ServerToken{
		UserID:    user.ID,
		Value:     value,
		Purpose:   models.TokenPurposeResetPassword,
		ExpiresAt: s.now().Add(s.resetTokenTTL),
	})
	if err != nil {
		return err
	}

	body := "Please click the link below to reset your password:\n" + s.resetLink(value)
	return s.mailer.Send(ctx, user.Email, resetPasswordSubject, body)
}

func (s *AuthService) resetLink(token string) string {
	return s.frontendURL + "/reset-password/?token=" + url.QueryEscape(token)
}

// ResetPassword sets new password by reset token
// Token works once, all user sessions are revoked
func (s *AuthService) ResetPassword(ctx context.Context, token string, newPassword string) error {
	return apperrors.Internal(s.resetPassword(ctx, token, newPassword))
}

func (s *AuthService) resetPassword(ctx context.Context, token string, newPassword string) error {
	if token == "" {
		return apperrors.InvalidInput(msgResetInvalid)
	}

	row, err := s.storage.Token().FindByValue(ctx, token)
	switch {
	case errors.Is(err, apperrors.ErrTokenNotFound):
		return apperrors.InvalidInput(msgResetInvalid)
	case err != nil:
		return err
	case row.Purpose != models.TokenPurposeResetPassword:
		return apperrors.InvalidInput(msgResetInvalid)
	}

	user, err := s.storage.User().GetUserByID(ctx, row.UserID)
	switch {
	case errors.Is(err, apperrors.ErrUserNotFound):
		return apperrors.InvalidInput(msgResetInvalid)
	case err != nil:
		return err
	}

	if row.Expired(s.now()) {
		if err := s.storage.Token().Delete(ctx, row.ID); err != nil {
			s.logger.Error("Failed to delete expired reset token", "token_id", row.ID, "error", err)
		}
		return apperrors.InvalidInput(msgResetExpired)
	}

	if err := validate.Password(newPassword); err != nil {
		return apperrors.InvalidInput(msgInvalidPassword)
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return err
	}

	return s.storage.InTx(ctx, func(tx repository.Storage) error {
		if err := tx.User().UpdatePassword(ctx, user.ID, hash); err != nil {
			return err
		}
		if err := tx.Token().Delete(ctx, row.ID); err != nil {
			return err
		}
		return tx.Token().DeleteByUserAndPurpose(ctx, user.ID, models.TokenPurposeRefresh)
	})
}

// Authenticate resolves the owner of access token
func (s *AuthService) Authenticate(ctx context.Context, accessToken string) (models.User, error) {
	username, err := s.tokens.Verify(accessToken, models.TokenFlavorAccess)
	if err != nil {
		s.logger.Debug("Access token rejected", "reason", err)
		return models.User{}, apperrors.Unauthenticated(msgInvalidToken, err)
	}

	user, err := s.storage.User().GetUserByUsername(ctx, username)
	switch {
	case errors.Is(err, apperrors.ErrUserNotFound):
		return user, apperrors.Unauthenticated(msgInvalidToken, err)
	case err != nil:
		return user, fmt.Errorf("authenticate: %w", err)
	}

	return user, nil
}

// Opaque reset token: uuid hex and 16 random bytes base64url encoded
func newResetToken() (string, error) {
	id := uuid.New()

	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("error while generate reset token. Err: %w", err)
	}

	return hex.EncodeToString(id[:]) + base64.RawURLEncoding.EncodeToString(b), nil
}

func randomHex(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
