package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/nkiryanov/todo/internal/apperrors"
	"github.com/nkiryanov/todo/internal/models"
)

type TokenRepo struct {
	DB DBTX
}

const createToken = `-- name: CreateToken
INSERT INTO tokens (id, user_id, value, purpose, expires_at)
VALUES ($1, $2, $3, $4, $5)
RETURNING id, user_id, value, purpose, expires_at, created_at, updated_at
`

// Create token
// If token.ID is not set the new one is generated
func (r *TokenRepo) Create(ctx context.Context, token models.ServerToken) (models.ServerToken, error) {
	if token.ID == uuid.Nil {
		token.ID = uuid.New()
	}

	rows, err := r.DB.Query(ctx, createToken, token.ID, token.UserID, token.Value, token.Purpose, token.ExpiresAt)
	created, err := collectOne(rows, err, rowToToken)
	if err != nil {
		return created, fmt.Errorf("db error: %w", err)
	}

	return created, nil
}

const upsertToken = `-- name: UpsertToken
INSERT INTO tokens (id, user_id, value, purpose, expires_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (user_id, purpose) DO UPDATE
SET value = EXCLUDED.value, expires_at = EXCLUDED.expires_at, updated_at = now()
RETURNING id, user_id, value, purpose, expires_at, created_at, updated_at
`

// Upsert creates token or overwrites the user's token of the same purpose
// Concurrent calls never fail on (user, purpose) uniqueness: the one committed last is kept
func (r *TokenRepo) Upsert(ctx context.Context, token models.ServerToken) (models.ServerToken, error) {
	if token.ID == uuid.Nil {
		token.ID = uuid.New()
	}

	rows, err := r.DB.Query(ctx, upsertToken, token.ID, token.UserID, token.Value, token.Purpose, token.ExpiresAt)
	saved, err := collectOne(rows, err, rowToToken)
	if err != nil {
		return saved, fmt.Errorf("db error: %w", err)
	}

	return saved, nil
}

const replaceToken = `-- name: ReplaceToken only if it holds the current value
UPDATE tokens
SET value = $3, expires_at = $4, updated_at = now()
WHERE id = $1 AND value = $2
RETURNING id, user_id, value, purpose, expires_at, created_at, updated_at
`

// Replace token value and expiry
// Two concurrent calls with the same current value: only the first one succeeds, the second gets ErrTokenNotFound
func (r *TokenRepo) Replace(ctx context.Context, id uuid.UUID, currentValue string, newValue string, expiresAt time.Time) (models.ServerToken, error) {
	rows, err := r.DB.Query(ctx, replaceToken, id, currentValue, newValue, expiresAt)
	return r.result(collectOne(rows, err, rowToToken))
}

const deleteToken = `-- name: DeleteToken
DELETE FROM tokens
WHERE id = $1
`

func (r *TokenRepo) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.DB.Exec(ctx, deleteToken, id)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

const deleteTokenByUserAndPurpose = `-- name: DeleteTokenByUserAndPurpose
DELETE FROM tokens
WHERE user_id = $1 AND purpose = $2
`

func (r *TokenRepo) DeleteByUserAndPurpose(ctx context.Context, userID uuid.UUID, purpose models.TokenPurpose) error {
	_, err := r.DB.Exec(ctx, deleteTokenByUserAndPurpose, userID, purpose)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

const deleteExpiredTokens = `-- name: DeleteExpiredTokens
DELETE FROM tokens
WHERE expires_at <= $1
`

func (r *TokenRepo) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	tag, err := r.DB.Exec(ctx, deleteExpiredTokens, before)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return tag.RowsAffected(), nil
}

const findTokenByUserAndPurpose = `-- name: FindTokenByUserAndPurpose
SELECT id, user_id, value, purpose, expires_at, created_at, updated_at
FROM tokens
WHERE user_id = $1 AND purpose = $2
`

func (r *TokenRepo) FindByUserAndPurpose(ctx context.Context, userID uuid.UUID, purpose models.TokenPurpose) (models.ServerToken, error) {
	rows, err := r.DB.Query(ctx, findTokenByUserAndPurpose, userID, purpose)
	return r.result(collectOne(rows, err, rowToToken))
}

const findTokenByValue = `-- name: FindTokenByValue
SELECT id, user_id, value, purpose, expires_at, created_at, updated_at
FROM tokens
WHERE value = $1
`

// Find token by value
// It returns token even it is expired already
func (r *TokenRepo) FindByValue(ctx context.Context, value string) (models.ServerToken, error) {
	rows, err := r.DB.Query(ctx, findTokenByValue, value)
	return r.result(collectOne(rows, err, rowToToken))
}

func (r *TokenRepo) result(token models.ServerToken, err error) (models.ServerToken, error) {
	switch {
	case err == nil:
		return token, nil
	case errors.Is(err, pgx.ErrNoRows):
		return token, fmt.Errorf("repo error: %w", apperrors.ErrTokenNotFound)
	default:
		return token, fmt.Errorf("db error: %w", err)
	}
}

func rowToToken(row pgx.CollectableRow) (models.ServerToken, error) {
	var t models.ServerToken
	err := row.Scan(&t.ID, &t.UserID, &t.Value, &t.Purpose, &t.ExpiresAt, &t.CreatedAt, &t.UpdatedAt)
	return t, err
}
