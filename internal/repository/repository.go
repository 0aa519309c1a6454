package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/nkiryanov/todo/internal/models"
)

type CreateUserParams struct {
	Username     string
	Email        string
	PasswordHash string
}

// User repository interface
type UserRepo interface {
	// Create user
	// If user with username or email exists already has to return error apperrors.ErrUserAlreadyExists
	CreateUser(ctx context.Context, arg CreateUserParams) (models.User, error)

	// Get user by it's id, username, email or any of username and email (identity)
	// If user not found must return apperrors.ErrUserNotFound
	GetUserByID(ctx context.Context, userID uuid.UUID) (models.User, error)
	GetUserByUsername(ctx context.Context, username string) (models.User, error)
	GetUserByEmail(ctx context.Context, email string) (models.User, error)
	GetUserByIdentity(ctx context.Context, identity string) (models.User, error)

	ExistsByUsername(ctx context.Context, username string) (bool, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)

	// Replace password hash
	// If user not found must return apperrors.ErrUserNotFound
	UpdatePassword(ctx context.Context, userID uuid.UUID, passwordHash string) error
}

// Server side tokens (refresh and password reset) repository interface
type TokenRepo interface {
	// Create token in repository
	Create(ctx context.Context, token models.ServerToken) (models.ServerToken, error)

	// Save token as the only one of its purpose for the user
	// Existing row of the same (user, purpose) is overwritten, so the last writer wins
	Upsert(ctx context.Context, token models.ServerToken) (models.ServerToken, error)

	// Replace token value and expiry in place
	// Row is updated only if it still holds 'currentValue', otherwise apperrors.ErrTokenNotFound returned
	Replace(ctx context.Context, tokenID uuid.UUID, currentValue string, newValue string, expiresAt time.Time) (models.ServerToken, error)

	// Delete token by id. Deleting absent token is not an error
	Delete(ctx context.Context, tokenID uuid.UUID) error

	// Delete user token of the purpose if any
	DeleteByUserAndPurpose(ctx context.Context, userID uuid.UUID, purpose models.TokenPurpose) error

	// Delete all the tokens expired before 'before'. Returns count of deleted rows
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)

	// Find tokens
	// If token not found must return apperrors.ErrTokenNotFound
	FindByUserAndPurpose(ctx context.Context, userID uuid.UUID, purpose models.TokenPurpose) (models.ServerToken, error)
	FindByValue(ctx context.Context, value string) (models.ServerToken, error)
}

// Storage groups repositories and allows to run them in one transaction
type Storage interface {
	User() UserRepo
	Token() TokenRepo

	// Run fn in transaction. Commit if fn returns nil, rollback otherwise
	InTx(ctx context.Context, fn func(Storage) error) error
}
