package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/nkiryanov/todo/internal/apperrors"
	"github.com/nkiryanov/todo/internal/models"
	"github.com/nkiryanov/todo/internal/repository"
)

type UserRepo struct {
	DB DBTX
}

const createUser = `-- name: CreateUser
INSERT INTO users (id, username, email, password_hash)
VALUES ($1, $2, $3, $4)
RETURNING id, created_at, updated_at, username, email, password_hash
`

func (r *UserRepo) CreateUser(ctx context.Context, arg repository.CreateUserParams) (models.User, error) {
	rows, err := r.DB.Query(ctx, createUser, uuid.New(), arg.Username, arg.Email, arg.PasswordHash)
	user, err := collectOne(rows, err, rowToUser)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return user, apperrors.ErrUserAlreadyExists
		}

		return user, fmt.Errorf("db error: %w", err)
	}

	return user, nil
}

const getUserByID = `-- name: getUserByID
SELECT id, created_at, updated_at, username, email, password_hash
FROM users
WHERE id = $1
`

func (r *UserRepo) GetUserByID(ctx context.Context, id uuid.UUID) (models.User, error) {
	return r.getOne(ctx, getUserByID, id)
}

const getUserByUsername = `-- name: getUserByUsername
SELECT id, created_at, updated_at, username, email, password_hash
FROM users
WHERE username = $1
`

func (r *UserRepo) GetUserByUsername(ctx context.Context, username string) (models.User, error) {
	return r.getOne(ctx, getUserByUsername, username)
}

const getUserByEmail = `-- name: getUserByEmail
SELECT id, created_at, updated_at, username, email, password_hash
FROM users
WHERE email = $1
`

func (r *UserRepo) GetUserByEmail(ctx context.Context, email string) (models.User, error) {
	return r.getOne(ctx, getUserByEmail, email)
}

// Username match wins if the identity is someone's username and other one's email
const getUserByIdentity = `-- name: getUserByIdentity
SELECT id, created_at, updated_at, username, email, password_hash
FROM users
WHERE username = $1 OR email = $1
ORDER BY (username = $1) DESC
LIMIT 1
`

func (r *UserRepo) GetUserByIdentity(ctx context.Context, identity string) (models.User, error) {
	return r.getOne(ctx, getUserByIdentity, identity)
}

const existsByUsername = `-- name: existsByUsername
SELECT EXISTS (SELECT 1 FROM users WHERE username = $1)
`

func (r *UserRepo) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	return r.exists(ctx, existsByUsername, username)
}

const existsByEmail = `-- name: existsByEmail
SELECT EXISTS (SELECT 1 FROM users WHERE email = $1)
`

func (r *UserRepo) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	return r.exists(ctx, existsByEmail, email)
}

const updatePassword = `-- name: updatePassword
UPDATE users
SET password_hash = $2, updated_at = now()
WHERE id = $1
`

func (r *UserRepo) UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	tag, err := r.DB.Exec(ctx, updatePassword, id, passwordHash)
	switch {
	case err != nil:
		return fmt.Errorf("db error: %w", err)
	case tag.RowsAffected() == 0:
		return apperrors.ErrUserNotFound
	default:
		return nil
	}
}

func (r *UserRepo) getOne(ctx context.Context, query string, arg any) (models.User, error) {
	rows, err := r.DB.Query(ctx, query, arg)
	user, err := collectOne(rows, err, rowToUser)

	switch {
	case err == nil:
		return user, nil
	case errors.Is(err, pgx.ErrNoRows):
		return user, apperrors.ErrUserNotFound
	default:
		return user, fmt.Errorf("db error: %w", err)
	}
}

func (r *UserRepo) exists(ctx context.Context, query string, arg any) (bool, error) {
	rows, err := r.DB.Query(ctx, query, arg)
	ok, err := collectOne(rows, err, pgx.RowTo[bool])
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return ok, nil
}

func rowToUser(row pgx.CollectableRow) (models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.CreatedAt, &u.UpdatedAt, &u.Username, &u.Email, &u.PasswordHash)
	return u, err
}
