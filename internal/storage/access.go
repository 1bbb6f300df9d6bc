package storage

import (
	"context"
	"database/sql"
	"errors"

	"jobdesk/internal/domain"
)

// ---- managers ----

func (s *SQLite) AddManager(ctx context.Context, workspace, user, addedBy int64) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO managers(workspace_id, user_id, added_by, added_at) VALUES(?,?,?,?)`,
		workspace, user, addedBy, s.stamp())
	return affected(res, err)
}

func (s *SQLite) RemoveManager(ctx context.Context, workspace, user int64) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM managers WHERE workspace_id = ? AND user_id = ?`, workspace, user)
	return affected(res, err)
}

func (s *SQLite) IsManager(ctx context.Context, workspace, user int64) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM managers WHERE workspace_id = ? AND user_id = ?`, workspace, user).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, domain.Infra(err)
	}
	return true, nil
}

func (s *SQLite) ListManagers(ctx context.Context, workspace int64) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT user_id FROM managers WHERE workspace_id = ? ORDER BY added_at, user_id`, workspace)
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

// ---- roles ----

func (s *SQLite) PutRole(ctx context.Context, r domain.Role) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO roles(workspace_id, name, rank) VALUES(?,?,?)
		 ON CONFLICT(workspace_id, name) DO UPDATE SET rank = excluded.rank`,
		r.WorkspaceID, r.Name, r.Rank)
	return domain.Infra(err)
}

// DeleteRole removes the role and every grant of it.
func (s *SQLite) DeleteRole(ctx context.Context, workspace int64, name string) (bool, error) {
	removed := false
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM roles WHERE workspace_id = ? AND name = ?`, workspace, name)
		if removed, err = affected(res, err); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `DELETE FROM member_roles WHERE workspace_id = ? AND role = ?`, workspace, name)
		return domain.Infra(err)
	})
	return removed, err
}

func (s *SQLite) GetRole(ctx context.Context, workspace int64, name string) (domain.Role, bool, error) {
	r := domain.Role{WorkspaceID: workspace, Name: name}
	err := s.db.QueryRowContext(ctx, `SELECT rank FROM roles WHERE workspace_id = ? AND name = ?`, workspace, name).Scan(&r.Rank)
	if errors.Is(err, sql.ErrNoRows) {
		return r, false, nil
	}
	if err != nil {
		return r, false, domain.Infra(err)
	}
	return r, true, nil
}

// ListRoles returns roles by descending rank.
func (s *SQLite) ListRoles(ctx context.Context, workspace int64) ([]domain.Role, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT workspace_id, name, rank FROM roles WHERE workspace_id = ? ORDER BY rank DESC, name`, workspace)
	if err != nil {
		return nil, domain.Infra(err)
	}
	defer rows.Close()
	return collectRoles(rows)
}

func (s *SQLite) GrantRole(ctx context.Context, workspace, user int64, role string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO member_roles(workspace_id, user_id, role) VALUES(?,?,?)`, workspace, user, role)
	return affected(res, err)
}

func (s *SQLite) RevokeRole(ctx context.Context, workspace, user int64, role string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM member_roles WHERE workspace_id = ? AND user_id = ? AND role = ?`, workspace, user, role)
	return affected(res, err)
}

// MemberRoles returns the defined roles a user holds.
func (s *SQLite) MemberRoles(ctx context.Context, workspace, user int64) ([]domain.Role, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT r.workspace_id, r.name, r.rank FROM member_roles m
		 JOIN roles r ON r.workspace_id = m.workspace_id AND r.name = m.role
		 WHERE m.workspace_id = ? AND m.user_id = ?
		 ORDER BY r.rank DESC`, workspace, user)
	if err != nil {
		return nil, domain.Infra(err)
	}
	defer rows.Close()
	return collectRoles(rows)
}

func collectRoles(rows *sql.Rows) ([]domain.Role, error) {
	var out []domain.Role
	for rows.Next() {
		var r domain.Role
		if err := rows.Scan(&r.WorkspaceID, &r.Name, &r.Rank); err != nil {
			return nil, domain.Infra(err)
		}
		out = append(out, r)
	}
	return out, domain.Infra(rows.Err())
}
