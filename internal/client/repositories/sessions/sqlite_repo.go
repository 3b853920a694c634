package sessions

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/drivekeeper/internal/client/models"
	"github.com/dmitrijs2005/drivekeeper/internal/common"
	"github.com/dmitrijs2005/drivekeeper/internal/dbx"
)

type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Put(ctx context.Context, s *models.StoredSession) error {
	query := `INSERT INTO sessions (identity, audience, iv, ciphertext, updated_at)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(identity, audience) DO UPDATE SET
				iv = excluded.iv,
				ciphertext = excluded.ciphertext,
				updated_at = excluded.updated_at
	`
	_, err := r.db.ExecContext(ctx, query, s.Identity, s.Audience, s.IV, s.Ciphertext, s.UpdatedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to upsert session %s/%s: %w", s.Identity, s.Audience, err)
	}
	return nil
}

func (r *SQLiteRepository) Get(ctx context.Context, identity, audience string) (*models.StoredSession, error) {
	query := `SELECT identity, audience, iv, ciphertext, updated_at FROM sessions WHERE identity = ? AND audience = ?`

	s, err := scanSession(r.db.QueryRowContext(ctx, query, identity, audience))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("session %s/%s: %w", identity, audience, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session %s/%s: %w", identity, audience, err)
	}
	return s, nil
}

func (r *SQLiteRepository) Delete(ctx context.Context, identity, audience string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE identity = ? AND audience = ?`, identity, audience)
	if err != nil {
		return fmt.Errorf("failed to delete session %s/%s: %w", identity, audience, err)
	}
	return nil
}

func (r *SQLiteRepository) List(ctx context.Context) ([]*models.StoredSession, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT identity, audience, iv, ciphertext, updated_at FROM sessions ORDER BY identity, audience`)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var result []*models.StoredSession
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session row: %w", err)
		}
		result = append(result, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate session rows: %w", err)
	}
	return result, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(row scanner) (*models.StoredSession, error) {
	var (
		s       models.StoredSession
		updated int64
	)
	if err := row.Scan(&s.Identity, &s.Audience, &s.IV, &s.Ciphertext, &updated); err != nil {
		return nil, err
	}
	s.UpdatedAt = time.UnixMilli(updated).UTC()
	return &s, nil
}
