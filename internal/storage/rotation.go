package storage

import (
	"context"
	"database/sql"
	"errors"

	"jobdesk/internal/domain"
)

// AddRosterMember appends user to the end of the rotation. It reports false
// when the user is already on the roster.
func (s *SQLite) AddRosterMember(ctx context.Context, workspace, user int64) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO rotation_members(workspace_id, user_id, added_at) VALUES(?,?,?)`,
		workspace, user, s.stamp())
	return affected(res, err)
}

func (s *SQLite) RemoveRosterMember(ctx context.Context, workspace, user int64) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM rotation_members WHERE workspace_id = ? AND user_id = ?`, workspace, user)
	return affected(res, err)
}

// ListRoster returns members in insertion order.
func (s *SQLite) ListRoster(ctx context.Context, workspace int64) ([]domain.RosterEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, workspace_id, user_id, added_at FROM rotation_members WHERE workspace_id = ? ORDER BY id`, workspace)
	if err != nil {
		return nil, domain.Infra(err)
	}
	defer rows.Close()

	var out []domain.RosterEntry
	for rows.Next() {
		var (
			e  domain.RosterEntry
			at string
		)
		if err := rows.Scan(&e.ID, &e.WorkspaceID, &e.UserID, &at); err != nil {
			return nil, domain.Infra(err)
		}
		e.AddedAt = parseTime(at)
		out = append(out, e)
	}
	return out, domain.Infra(rows.Err())
}

// GetRotationState reports ok=false when the workspace never advanced.
func (s *SQLite) GetRotationState(ctx context.Context, workspace int64) (domain.RotationState, bool, error) {
	st := domain.RotationState{WorkspaceID: workspace}
	var at string
	err := s.db.QueryRowContext(ctx,
		`SELECT current_index, last_rotate_at FROM rotation_state WHERE workspace_id = ?`, workspace).
		Scan(&st.CurrentIndex, &at)
	if errors.Is(err, sql.ErrNoRows) {
		return st, false, nil
	}
	if err != nil {
		return st, false, domain.Infra(err)
	}
	st.LastRotateAt = parseTime(at)
	return st, true, nil
}

// AdvanceRotation increments the rotation index by exactly one in a single
// upsert. A workspace without a row starts at index 0, so the first advance
// lands on the first roster member.
func (s *SQLite) AdvanceRotation(ctx context.Context, workspace int64) (domain.RotationState, error) {
	st := domain.RotationState{WorkspaceID: workspace}
	var at string
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO rotation_state(workspace_id, current_index, last_rotate_at) VALUES(?, 0, ?)
		 ON CONFLICT(workspace_id) DO UPDATE SET
		   current_index = current_index + 1, last_rotate_at = excluded.last_rotate_at
		 RETURNING current_index, last_rotate_at`, workspace, s.stamp()).Scan(&st.CurrentIndex, &at)
	if err != nil {
		return st, domain.Infra(err)
	}
	st.LastRotateAt = parseTime(at)
	return st, nil
}
