package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/require"

	"github.com/nkiryanov/todo/internal/apperrors"
	"github.com/nkiryanov/todo/internal/models"
	"github.com/nkiryanov/todo/internal/repository"
)

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, mock.ExpectationsWereMet())
		mock.Close()
	})
	return mock
}

var errConnLost = errors.New("conn lost")

func TestUserRepo_Mock(t *testing.T) {
	t.Run("create maps unique violation", func(t *testing.T) {
		mock := newMock(t)
		r := UserRepo{DB: mock}

		mock.ExpectQuery(`INSERT INTO users`).
			WithArgs(pgxmock.AnyArg(), "alice", "alice@example.com", "hash").
			WillReturnError(&pgconn.PgError{Code: pgerrcode.UniqueViolation})

		_, err := r.CreateUser(context.Background(), repository.CreateUserParams{Username: "alice", Email: "alice@example.com", PasswordHash: "hash"})

		require.ErrorIs(t, err, apperrors.ErrUserAlreadyExists)
	})

	t.Run("create wraps other errors", func(t *testing.T) {
		mock := newMock(t)
		r := UserRepo{DB: mock}

		mock.ExpectQuery(`INSERT INTO users`).
			WithArgs(pgxmock.AnyArg(), "alice", "alice@example.com", "hash").
			WillReturnError(errConnLost)

		_, err := r.CreateUser(context.Background(), repository.CreateUserParams{Username: "alice", Email: "alice@example.com", PasswordHash: "hash"})

		require.ErrorIs(t, err, errConnLost)
		require.NotErrorIs(t, err, apperrors.ErrUserAlreadyExists)
	})

	t.Run("get by identity db error is not 'not found'", func(t *testing.T) {
		mock := newMock(t)
		r := UserRepo{DB: mock}

		mock.ExpectQuery(`WHERE username = \$1 OR email = \$1`).
			WithArgs("alice").
			WillReturnError(errConnLost)

		_, err := r.GetUserByIdentity(context.Background(), "alice")

		require.ErrorIs(t, err, errConnLost)
		require.NotErrorIs(t, err, apperrors.ErrUserNotFound)
	})

	t.Run("exists db error", func(t *testing.T) {
		mock := newMock(t)
		r := UserRepo{DB: mock}

		mock.ExpectQuery(`SELECT EXISTS`).
			WithArgs("alice").
			WillReturnError(errConnLost)

		ok, err := r.ExistsByUsername(context.Background(), "alice")

		require.ErrorIs(t, err, errConnLost)
		require.False(t, ok)
	})

	t.Run("update password zero rows", func(t *testing.T) {
		mock := newMock(t)
		r := UserRepo{DB: mock}
		id := uuid.New()

		mock.ExpectExec(`UPDATE users`).
			WithArgs(id, "hash").
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))

		err := r.UpdatePassword(context.Background(), id, "hash")

		require.ErrorIs(t, err, apperrors.ErrUserNotFound)
	})
}

func TestTokenRepo_Mock(t *testing.T) {
	t.Run("replace db error", func(t *testing.T) {
		mock := newMock(t)
		r := TokenRepo{DB: mock}
		id := uuid.New()
		expiresAt := time.Now()

		mock.ExpectQuery(`UPDATE tokens`).
			WithArgs(id, "old", "new", expiresAt).
			WillReturnError(errConnLost)

		_, err := r.Replace(context.Background(), id, "old", "new", expiresAt)

		require.ErrorIs(t, err, errConnLost)
		require.NotErrorIs(t, err, apperrors.ErrTokenNotFound)
	})

	t.Run("upsert db error", func(t *testing.T) {
		mock := newMock(t)
		r := TokenRepo{DB: mock}
		userID := uuid.New()
		expiresAt := time.Now().Add(time.Hour)

		mock.ExpectQuery(`ON CONFLICT \(user_id, purpose\) DO UPDATE`).
			WithArgs(pgxmock.AnyArg(), userID, "value", models.TokenPurposeRefresh, expiresAt).
			WillReturnError(errConnLost)

		_, err := r.Upsert(context.Background(), models.ServerToken{UserID: userID, Value: "value", Purpose: models.TokenPurposeRefresh, ExpiresAt: expiresAt})

		require.ErrorIs(t, err, errConnLost)
	})

	t.Run("delete expired returns affected rows", func(t *testing.T) {
		mock := newMock(t)
		r := TokenRepo{DB: mock}
		before := time.Now()

		mock.ExpectExec(`DELETE FROM tokens`).
			WithArgs(before).
			WillReturnResult(pgxmock.NewResult("DELETE", 3))

		n, err := r.DeleteExpired(context.Background(), before)

		require.NoError(t, err)
		require.EqualValues(t, 3, n)
	})

	t.Run("delete by user and purpose db error", func(t *testing.T) {
		mock := newMock(t)
		r := TokenRepo{DB: mock}
		userID := uuid.New()

		mock.ExpectExec(`DELETE FROM tokens`).
			WithArgs(userID, models.TokenPurposeRefresh).
			WillReturnError(errConnLost)

		err := r.DeleteByUserAndPurpose(context.Background(), userID, models.TokenPurposeRefresh)

		require.ErrorIs(t, err, errConnLost)
	})
}

func TestStorage_InTx_Mock(t *testing.T) {
	t.Run("commit on success", func(t *testing.T) {
		mock := newMock(t)
		s := NewStorage(mock)
		userID := uuid.New()

		mock.ExpectBegin()
		mock.ExpectExec(`DELETE FROM tokens`).
			WithArgs(userID, models.TokenPurposeRefresh).
			WillReturnResult(pgxmock.NewResult("DELETE", 1))
		mock.ExpectCommit()

		err := s.InTx(context.Background(), func(tx repository.Storage) error {
			return tx.Token().DeleteByUserAndPurpose(context.Background(), userID, models.TokenPurposeRefresh)
		})

		require.NoError(t, err)
	})

	t.Run("rollback on error", func(t *testing.T) {
		mock := newMock(t)
		s := NewStorage(mock)
		fnErr := errors.New("boom")

		mock.ExpectBegin()
		mock.ExpectRollback()

		err := s.InTx(context.Background(), func(tx repository.Storage) error {
			return fnErr
		})

		require.ErrorIs(t, err, fnErr)
	})

	t.Run("begin error", func(t *testing.T) {
		mock := newMock(t)
		s := NewStorage(mock)

		mock.ExpectBegin().WillReturnError(errConnLost)

		err := s.InTx(context.Background(), func(tx repository.Storage) error {
			t.Fatal("must not be called")
			return nil
		})

		require.ErrorIs(t, err, errConnLost)
	})
}
