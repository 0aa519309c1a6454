package user

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/nkiryanov/todo/internal/apperrors"
	"github.com/nkiryanov/todo/internal/models"
	"github.com/nkiryanov/todo/internal/repository"
)

const msgUserNotFound = "User not found"

type UserService struct {
	storage repository.Storage
}

func NewService(storage repository.Storage) *UserService {
	return &UserService{
		storage: storage,
	}
}

func (s *UserService) GetByID(ctx context.Context, id uuid.UUID) (models.User, error) {
	return s.result(s.storage.User().GetUserByID(ctx, id))
}

// FindByIdentity finds user by id, username or email
// Identity that looks like uuid is tried as id first
func (s *UserService) FindByIdentity(ctx context.Context, identity string) (models.User, error) {
	if id, err := uuid.Parse(identity); err == nil {
		user, err := s.GetByID(ctx, id)
		if apperrors.KindOf(err) != apperrors.KindNotFound {
			return user, err
		}
	}

	return s.result(s.storage.User().GetUserByIdentity(ctx, identity))
}

func (s *UserService) result(user models.User, err error) (models.User, error) {
	switch {
	case err == nil:
		return user, nil
	case errors.Is(err, apperrors.ErrUserNotFound):
		return user, apperrors.NotFound(msgUserNotFound)
	default:
		return user, fmt.Errorf("can't get user. Err: %w", err)
	}
}
