package repository

import (
	"context"

	"kakeibo/internal/domain"
)

// SessionRepository persists server-side sessions and their one-shot flash
// queue. Get only returns sessions that have not expired; TakeFlash returns
// the queued messages and clears them in the same call.
type SessionRepository interface {
	Init(ctx context.Context) error
	Create(ctx context.Context, session *domain.Session) error
	Get(ctx context.Context, token string) (*domain.Session, error)
	Delete(ctx context.Context, token string) error
	AppendFlash(ctx context.Context, token string, flash ...domain.Flash) error
	TakeFlash(ctx context.Context, token string) ([]domain.Flash, error)
	DeleteExpired(ctx context.Context) (int64, error)
}
