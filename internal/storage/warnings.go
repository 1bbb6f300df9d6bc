package storage

import (
	"context"
	"database/sql"
	"errors"

	"jobdesk/internal/domain"
)

func (s *SQLite) AddWarning(ctx context.Context, w domain.Warning) (domain.Warning, error) {
	if w.CreatedAt.IsZero() {
		w.CreatedAt = s.now()
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO warnings(workspace_id, user_id, moderator_id, reason, created_at) VALUES(?,?,?,?,?)`,
		w.WorkspaceID, w.UserID, w.ModeratorID, w.Reason, formatTime(w.CreatedAt))
	if err != nil {
		return w, domain.Infra(err)
	}
	w.ID, err = res.LastInsertId()
	return w, domain.Infra(err)
}

// RemoveLatestWarning deletes the user's newest warning and returns it.
// ok is false when the user has none.
func (s *SQLite) RemoveLatestWarning(ctx context.Context, workspace, user int64) (domain.Warning, bool, error) {
	var (
		w  domain.Warning
		ok bool
	)
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var at string
		err := tx.QueryRowContext(ctx,
			`SELECT id, workspace_id, user_id, moderator_id, reason, created_at FROM warnings
			 WHERE workspace_id = ? AND user_id = ? ORDER BY id DESC LIMIT 1`, workspace, user).
			Scan(&w.ID, &w.WorkspaceID, &w.UserID, &w.ModeratorID, &w.Reason, &at)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return domain.Infra(err)
		}
		w.CreatedAt = parseTime(at)
		if _, err := tx.ExecContext(ctx, `DELETE FROM warnings WHERE id = ?`, w.ID); err != nil {
			return domain.Infra(err)
		}
		ok = true
		return nil
	})
	return w, ok, err
}

// ListWarnings returns the user's newest warnings first.
func (s *SQLite) ListWarnings(ctx context.Context, workspace, user int64, limit int) ([]domain.Warning, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, workspace_id, user_id, moderator_id, reason, created_at FROM warnings
		 WHERE workspace_id = ? AND user_id = ? ORDER BY id DESC LIMIT ?`, workspace, user, limit)
	if err != nil {
		return nil, domain.Infra(err)
	}
	defer rows.Close()

	var out []domain.Warning
	for rows.Next() {
		var (
			w  domain.Warning
			at string
		)
		if err := rows.Scan(&w.ID, &w.WorkspaceID, &w.UserID, &w.ModeratorID, &w.Reason, &at); err != nil {
			return nil, domain.Infra(err)
		}
		w.CreatedAt = parseTime(at)
		out = append(out, w)
	}
	return out, domain.Infra(rows.Err())
}
