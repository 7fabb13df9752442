package sqlite

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/require"

	"kakeibo/internal/domain"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()
	require.NoError(t, NewUserRepository(db).Init(ctx))
	require.NoError(t, NewItemRepository(db).Init(ctx))
	require.NoError(t, NewSessionRepository(db).Init(ctx))
	return db
}

// seedUser registers a user row so items and sessions can reference it.
func seedUser(t *testing.T, db *sql.DB, email string) int64 {
	t.Helper()

	id, err := NewUserRepository(db).Create(context.Background(), &domain.User{
		Email:        email,
		PasswordHash: "x",
	})
	require.NoError(t, err)
	return id
}
