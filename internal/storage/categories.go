package storage

import (
	"context"
	"database/sql"
	"errors"

	"jobdesk/internal/domain"
)

// SeedCategories inserts defaults only when the workspace has no categories
// at all. It reports whether it seeded. Safe to race: the count and inserts
// share a transaction and inserts ignore duplicates.
func (s *SQLite) SeedCategories(ctx context.Context, workspace int64, defaults []string) (bool, error) {
	seeded := false
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var n int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM categories WHERE workspace_id = ?`, workspace).Scan(&n); err != nil {
			return domain.Infra(err)
		}
		if n > 0 {
			return nil
		}
		now := s.stamp()
		for _, name := range defaults {
			if _, err := tx.ExecContext(ctx,
				`INSERT OR IGNORE INTO categories(workspace_id, name, created_at) VALUES(?,?,?)`,
				workspace, name, now); err != nil {
				return domain.Infra(err)
			}
		}
		seeded = len(defaults) > 0
		return nil
	})
	return seeded, err
}

func (s *SQLite) CountCategories(ctx context.Context, workspace int64) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM categories WHERE workspace_id = ?`, workspace).Scan(&n)
	return n, domain.Infra(err)
}

func (s *SQLite) HasCategory(ctx context.Context, workspace int64, name string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM categories WHERE workspace_id = ? AND name = ?`, workspace, name).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, domain.Infra(err)
	}
	return true, nil
}

// AddCategory reports false when the name was already present.
func (s *SQLite) AddCategory(ctx context.Context, workspace int64, name string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO categories(workspace_id, name, created_at) VALUES(?,?,?)`,
		workspace, name, s.stamp())
	return affected(res, err)
}

// RemoveCategory reports false when the name was absent.
func (s *SQLite) RemoveCategory(ctx context.Context, workspace int64, name string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM categories WHERE workspace_id = ? AND name = ?`, workspace, name)
	return affected(res, err)
}

func (s *SQLite) ListCategories(ctx context.Context, workspace int64) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name FROM categories WHERE workspace_id = ? ORDER BY name`, workspace)
	if err != nil {
		return nil, domain.Infra(err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, domain.Infra(err)
		}
		out = append(out, name)
	}
	return out, domain.Infra(rows.Err())
}

func affected(res sql.Result, err error) (bool, error) {
	if err != nil {
		return false, domain.Infra(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, domain.Infra(err)
	}
	return n > 0, nil
}
