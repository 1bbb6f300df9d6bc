package storage

import (
	"context"
	"database/sql"
	"errors"

	"jobdesk/internal/domain"
	"jobdesk/internal/transport"
)

// GetBoardView returns domain.ErrNoBoard if the workspace never initialized one.
func (s *SQLite) GetBoardView(ctx context.Context, workspace int64) (domain.BoardView, error) {
	v := domain.BoardView{WorkspaceID: workspace}
	err := s.db.QueryRowContext(ctx,
		`SELECT chat_id, thread_id, message_id, page FROM board_views WHERE workspace_id = ?`, workspace).
		Scan(&v.Ref.ChatID, &v.Ref.ThreadID, &v.Ref.MessageID, &v.Page)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.BoardView{}, domain.ErrNoBoard
	}
	if err != nil {
		return domain.BoardView{}, domain.Infra(err)
	}
	return v, nil
}

// SaveBoardView replaces the workspace's board location and page.
func (s *SQLite) SaveBoardView(ctx context.Context, v domain.BoardView) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO board_views(workspace_id, chat_id, thread_id, message_id, page, updated_at)
		 VALUES(?,?,?,?,?,?)
		 ON CONFLICT(workspace_id) DO UPDATE SET
		   chat_id = excluded.chat_id, thread_id = excluded.thread_id,
		   message_id = excluded.message_id, page = excluded.page, updated_at = excluded.updated_at`,
		v.WorkspaceID, v.Ref.ChatID, v.Ref.ThreadID, v.Ref.MessageID, v.Page, s.stamp())
	return domain.Infra(err)
}

// SetBoardPage persists a new current page for an existing board message.
// ref guards against overwriting a board that Init replaced meanwhile.
func (s *SQLite) SetBoardPage(ctx context.Context, workspace int64, ref transport.MessageRef, page int) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE board_views SET page = ?, updated_at = ?
		 WHERE workspace_id = ? AND chat_id = ? AND message_id = ?`,
		page, s.stamp(), workspace, ref.ChatID, ref.MessageID)
	return affected(res, err)
}
