package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"kakeibo/internal/domain"
	"kakeibo/internal/errs"
	"kakeibo/internal/repository"
)

const createSessionsTable = `
CREATE TABLE IF NOT EXISTS sessions (
	token TEXT PRIMARY KEY,
	user_id INTEGER NOT NULL REFERENCES users(id),
	flash TEXT NOT NULL DEFAULT '[]',
	created_at DATETIME NOT NULL,
	expires_at DATETIME NOT NULL
);
`

type SessionRepository struct {
	db *sql.DB
}

func NewSessionRepository(db *sql.DB) repository.SessionRepository {
	return &SessionRepository{db: db}
}

func (r *SessionRepository) Init(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, createSessionsTable); err != nil {
		return fmt.Errorf("create sessions table: %w", err)
	}
	return nil
}

func (r *SessionRepository) Create(ctx context.Context, session *domain.Session) error {
	session.CreatedAt = time.Now().UTC()
	_, err := r.db.ExecContext(ctx, `
INSERT INTO sessions (token, user_id, flash, created_at, expires_at)
VALUES (?, ?, '[]', ?, ?)`,
		session.Token,
		session.UserID,
		session.CreatedAt,
		session.ExpiresAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

func (r *SessionRepository) Get(ctx context.Context, token string) (*domain.Session, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT token, user_id, created_at, expires_at
FROM sessions
WHERE token = ? AND expires_at > ?`,
		token,
		time.Now().UTC(),
	)

	var session domain.Session
	if err := row.Scan(
		&session.Token,
		&session.UserID,
		&session.CreatedAt,
		&session.ExpiresAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, fmt.Errorf("scan session: %w", err)
	}
	return &session, nil
}

func (r *SessionRepository) Delete(ctx context.Context, token string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE token = ?`, token); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func (r *SessionRepository) AppendFlash(ctx context.Context, token string, flash ...domain.Flash) error {
	if len(flash) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin flash tx: %w", err)
	}
	defer tx.Rollback()

	current, err := readFlash(tx.QueryRowContext(ctx, `SELECT flash FROM sessions WHERE token = ?`, token))
	if err != nil {
		return err
	}

	raw, err := json.Marshal(append(current, flash...))
	if err != nil {
		return fmt.Errorf("encode flash: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE sessions SET flash = ? WHERE token = ?`, string(raw), token); err != nil {
		return fmt.Errorf("update flash: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit flash: %w", err)
	}
	return nil
}

func (r *SessionRepository) TakeFlash(ctx context.Context, token string) ([]domain.Flash, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin flash tx: %w", err)
	}
	defer tx.Rollback()

	flash, err := readFlash(tx.QueryRowContext(ctx, `SELECT flash FROM sessions WHERE token = ?`, token))
	if err != nil {
		return nil, err
	}
	if len(flash) == 0 {
		return nil, tx.Commit()
	}

	if _, err := tx.ExecContext(ctx, `UPDATE sessions SET flash = '[]' WHERE token = ?`, token); err != nil {
		return nil, fmt.Errorf("clear flash: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit flash: %w", err)
	}
	return flash, nil
}

func (r *SessionRepository) DeleteExpired(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at <= ?`, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("expired sessions rows affected: %w", err)
	}
	return aff, nil
}

func readFlash(row *sql.Row) ([]domain.Flash, error) {
	var raw string
	if err := row.Scan(&raw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, fmt.Errorf("scan flash: %w", err)
	}

	var flash []domain.Flash
	if err := json.Unmarshal([]byte(raw), &flash); err != nil {
		return nil, fmt.Errorf("decode flash: %w", err)
	}
	return flash, nil
}
