package repository

import (
	"context"

	"kakeibo/internal/domain"
)

// ItemRepository defines persistence operations for ledger items.
// Get, Update and Delete constrain by (id, userID) so an item owned by
// another user behaves exactly like a missing one (errs.ErrNotFound).
type ItemRepository interface {
	Init(ctx context.Context) error
	Create(ctx context.Context, item *domain.Item) (int64, error)
	Get(ctx context.Context, id, userID int64) (*domain.Item, error)
	List(ctx context.Context, filter domain.ItemFilter) ([]domain.Item, error)
	Update(ctx context.Context, item *domain.Item) error
	Delete(ctx context.Context, id, userID int64) error
}
