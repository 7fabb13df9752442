package sqlite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"kakeibo/internal/domain"
	"kakeibo/internal/errs"
)

func TestUserRepository_CreateAndLookup(t *testing.T) {
	db := newTestDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	user := &domain.User{Email: "a@example.com", PasswordHash: "hash"}
	id, err := repo.Create(ctx, user)
	require.NoError(t, err)
	require.Equal(t, id, user.ID)
	require.False(t, user.CreatedAt.IsZero())

	byEmail, err := repo.GetByEmail(ctx, "a@example.com")
	require.NoError(t, err)
	require.Equal(t, id, byEmail.ID)
	require.Equal(t, "hash", byEmail.PasswordHash)

	byID, err := repo.GetByID(ctx, id)
	require.NoError(t, err)
	require.Equal(t, "a@example.com", byID.Email)
}

func TestUserRepository_DuplicateEmail(t *testing.T) {
	db := newTestDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	_, err := repo.Create(ctx, &domain.User{Email: "a@example.com", PasswordHash: "h1"})
	require.NoError(t, err)

	_, err = repo.Create(ctx, &domain.User{Email: "a@example.com", PasswordHash: "h2"})
	require.ErrorIs(t, err, errs.ErrDuplicateEmail)

	var count int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM users`).Scan(&count))
	require.Equal(t, 1, count)
}

func TestUserRepository_NotFound(t *testing.T) {
	db := newTestDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	_, err := repo.GetByEmail(ctx, "ghost@example.com")
	require.ErrorIs(t, err, errs.ErrNotFound)

	_, err = repo.GetByID(ctx, 42)
	require.ErrorIs(t, err, errs.ErrNotFound)
}
