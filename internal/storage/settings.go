package storage

import (
	"context"
	"database/sql"
	"errors"

	"jobdesk/internal/domain"
)

func (s *SQLite) GetSetting(ctx context.Context, workspace int64, key string) (string, bool, error) {
	var v string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM settings WHERE workspace_id = ? AND key = ?`, workspace, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, domain.Infra(err)
	}
	return v, true, nil
}

func (s *SQLite) SetSetting(ctx context.Context, workspace int64, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO settings(workspace_id, key, value) VALUES(?,?,?)
		 ON CONFLICT(workspace_id, key) DO UPDATE SET value = excluded.value`,
		workspace, key, value)
	return domain.Infra(err)
}

func (s *SQLite) DeleteSetting(ctx context.Context, workspace int64, key string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM settings WHERE workspace_id = ? AND key = ?`, workspace, key)
	return domain.Infra(err)
}

// WorkspacesWithSetting lists every workspace that has key configured.
func (s *SQLite) WorkspacesWithSetting(ctx context.Context, key string) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT workspace_id FROM settings WHERE key = ? AND value != '' ORDER BY workspace_id`, key)
	if err != nil {
		return nil, domain.Infra(err)
	}
	defer rows.Close()

	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, domain.Infra(err)
		}
		out = append(out, id)
	}
	return out, domain.Infra(rows.Err())
}
