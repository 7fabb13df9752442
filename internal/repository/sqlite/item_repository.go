package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"kakeibo/internal/domain"
	"kakeibo/internal/errs"
	"kakeibo/internal/repository"
)

const createItemsTable = `
CREATE TABLE IF NOT EXISTS items (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id INTEGER NOT NULL REFERENCES users(id),
	event TEXT NOT NULL DEFAULT '',
	amount INTEGER NOT NULL,
	type TEXT NOT NULL,
	date DATETIME NOT NULL,
	memo TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);
`

const createItemsIndex = `
CREATE INDEX IF NOT EXISTS idx_items_user_date ON items(user_id, date);
`

type ItemRepository struct {
	db *sql.DB
}

func NewItemRepository(db *sql.DB) repository.ItemRepository {
	return &ItemRepository{db: db}
}

func (r *ItemRepository) Init(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, createItemsTable); err != nil {
		return fmt.Errorf("create items table: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, createItemsIndex); err != nil {
		return fmt.Errorf("create items index: %w", err)
	}
	return nil
}

func (r *ItemRepository) Create(ctx context.Context, item *domain.Item) (int64, error) {
	now := time.Now().UTC()
	item.CreatedAt = now
	item.UpdatedAt = now

	res, err := r.db.ExecContext(ctx, `
INSERT INTO items (user_id, event, amount, type, date, memo, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		item.UserID,
		item.Event,
		item.Amount,
		string(item.Type),
		item.Date.UTC(),
		item.Memo,
		item.CreatedAt,
		item.UpdatedAt,
	)
	if err != nil {
		return 0, fmt.Errorf("insert item: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("item last insert id: %w", err)
	}
	item.ID = id
	return id, nil
}

func (r *ItemRepository) Get(ctx context.Context, id, userID int64) (*domain.Item, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, user_id, event, amount, type, date, memo, created_at, updated_at
FROM items
WHERE id = ? AND user_id = ?`,
		id,
		userID,
	)
	return scanItem(row)
}

func (r *ItemRepository) List(ctx context.Context, filter domain.ItemFilter) ([]domain.Item, error) {
	query := `
SELECT id, user_id, event, amount, type, date, memo, created_at, updated_at
FROM items
WHERE user_id = ?`
	args := []any{filter.UserID}

	if filter.Type.Valid() {
		query += ` AND type = ?`
		args = append(args, string(filter.Type))
	}
	if filter.Start != nil {
		query += ` AND date >= ?`
		args = append(args, filter.Start.UTC())
	}
	if filter.EndExclusive != nil {
		query += ` AND date < ?`
		args = append(args, filter.EndExclusive.UTC())
	}
	query += `
ORDER BY date DESC, id ASC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query items: %w", err)
	}
	defer rows.Close()

	var items []domain.Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *item)
	}

	return items, rows.Err()
}

func (r *ItemRepository) Update(ctx context.Context, item *domain.Item) error {
	item.UpdatedAt = time.Now().UTC()
	res, err := r.db.ExecContext(ctx, `
UPDATE items
SET event=?, amount=?, type=?, date=?, memo=?, updated_at=?
WHERE id=? AND user_id=?`,
		item.Event,
		item.Amount,
		string(item.Type),
		item.Date.UTC(),
		item.Memo,
		item.UpdatedAt,
		item.ID,
		item.UserID,
	)
	if err != nil {
		return fmt.Errorf("update item: %w", err)
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("item update rows affected: %w", err)
	}
	if aff == 0 {
		return errs.ErrNotFound
	}
	return nil
}

func (r *ItemRepository) Delete(ctx context.Context, id, userID int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM items WHERE id=? AND user_id=?`, id, userID)
	if err != nil {
		return fmt.Errorf("delete item: %w", err)
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("item delete rows affected: %w", err)
	}
	if aff == 0 {
		return errs.ErrNotFound
	}
	return nil
}

func scanItem(scanner interface {
	Scan(dest ...any) error
}) (*domain.Item, error) {
	var (
		item     domain.Item
		itemType string
	)
	if err := scanner.Scan(
		&item.ID,
		&item.UserID,
		&item.Event,
		&item.Amount,
		&itemType,
		&item.Date,
		&item.Memo,
		&item.CreatedAt,
		&item.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, fmt.Errorf("scan item: %w", err)
	}
	item.Type = domain.ItemType(itemType)
	return &item, nil
}
