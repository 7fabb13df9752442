package repository

import (
	"context"

	"kakeibo/internal/domain"
)

// UserRepository defines persistence operations for User entities.
// Create returns errs.ErrDuplicateEmail when the email is already taken;
// lookups return errs.ErrNotFound on a miss.
type UserRepository interface {
	Init(ctx context.Context) error
	Create(ctx context.Context, user *domain.User) (int64, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByID(ctx context.Context, id int64) (*domain.User, error)
}
