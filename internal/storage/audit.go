package storage

import (
	"context"

	"jobdesk/internal/domain"
)

func (s *SQLite) AppendAudit(ctx context.Context, e AuditEntry) error {
	if e.At.IsZero() {
		e.At = s.now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO audit(at, request_id, actor_id, workspace_id, action, target, err, meta)
		 VALUES(?,?,?,?,?,?,?,?)`,
		formatTime(e.At), nullStr(e.RequestID), e.ActorID, e.WorkspaceID, e.Action, e.Target,
		nullStr(e.Error), nullStr(e.MetaJSON),
	)
	return domain.Infra(err)
}

// RecentAudit returns the newest entries of a workspace, newest first.
func (s *SQLite) RecentAudit(ctx context.Context, workspace int64, limit int) ([]AuditEntry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT at, COALESCE(request_id,''), actor_id, workspace_id, action, target, COALESCE(err,''), COALESCE(meta,'')
		 FROM audit WHERE workspace_id = ? ORDER BY id DESC LIMIT ?`, workspace, limit)
	if err != nil {
		return nil, domain.Infra(err)
	}
	defer rows.Close()

	var out []AuditEntry
	for rows.Next() {
		var e AuditEntry
		var at string
		if err := rows.Scan(&at, &e.RequestID, &e.ActorID, &e.WorkspaceID, &e.Action, &e.Target, &e.Error, &e.MetaJSON); err != nil {
			return nil, domain.Infra(err)
		}
		e.At = parseTime(at)
		out = append(out, e)
	}
	return out, domain.Infra(rows.Err())
}
