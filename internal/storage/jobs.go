package storage

import (
	"context"
	"database/sql"
	"errors"

	"jobdesk/internal/domain"
	"jobdesk/internal/transport"
)

const jobColumns = `workspace_id, id, title, description, category, open_to_all, status, claimed_by,
	created_by, created_at, board_chat_id, board_thread_id, board_message_id`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(r rowScanner) (domain.Job, error) {
	var (
		j                           domain.Job
		openToAll                   int
		status, createdAt           string
		claimedBy                   sql.NullInt64
		boardChat, boardThread, msg sql.NullInt64
	)
	err := r.Scan(&j.WorkspaceID, &j.ID, &j.Title, &j.Description, &j.Category, &openToAll, &status,
		&claimedBy, &j.CreatedBy, &createdAt, &boardChat, &boardThread, &msg)
	if err != nil {
		return domain.Job{}, err
	}
	j.OpenToAll = openToAll != 0
	j.Status = domain.Status(status)
	j.CreatedAt = parseTime(createdAt)
	if claimedBy.Valid {
		j.ClaimedBy = domain.Int64Ptr(claimedBy.Int64)
	}
	if msg.Valid {
		j.BoardRef = &transport.MessageRef{
			ChatID:    boardChat.Int64,
			ThreadID:  int(boardThread.Int64),
			MessageID: int(msg.Int64),
		}
	}
	return j, nil
}

// CreateJob allocates the next per-workspace id and inserts an open job.
// Ids are never reused, even after deletes.
func (s *SQLite) CreateJob(ctx context.Context, workspace int64, in domain.NewJob) (domain.Job, error) {
	var job domain.Job
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var id int64
		err := tx.QueryRowContext(ctx,
			`INSERT INTO job_seq(workspace_id, last_id) VALUES(?, 1)
			 ON CONFLICT(workspace_id) DO UPDATE SET last_id = last_id + 1
			 RETURNING last_id`, workspace).Scan(&id)
		if err != nil {
			return domain.Infra(err)
		}
		openToAll := 0
		if in.OpenToAll {
			openToAll = 1
		}
		now := s.now()
		_, err = tx.ExecContext(ctx,
			`INSERT INTO jobs(workspace_id, id, title, description, category, open_to_all, status, created_by, created_at)
			 VALUES(?,?,?,?,?,?,?,?,?)`,
			workspace, id, in.Title, in.Description, in.Category, openToAll, string(domain.StatusOpen), in.CreatedBy, formatTime(now))
		if err != nil {
			return domain.Infra(err)
		}
		job = domain.Job{
			WorkspaceID: workspace,
			ID:          id,
			Title:       in.Title,
			Description: in.Description,
			Category:    in.Category,
			OpenToAll:   in.OpenToAll,
			Status:      domain.StatusOpen,
			CreatedBy:   in.CreatedBy,
			CreatedAt:   now.UTC(),
		}
		return nil
	})
	return job, err
}

// GetJob returns domain.ErrJobNotFound when the id does not exist in workspace.
func (s *SQLite) GetJob(ctx context.Context, workspace, id int64) (domain.Job, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE workspace_id = ? AND id = ?`, workspace, id)
	j, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Job{}, domain.ErrJobNotFound
	}
	if err != nil {
		return domain.Job{}, domain.Infra(err)
	}
	return j, nil
}

// CompareAndSwapJob moves a job from expect to next in one conditional
// UPDATE. It reports false when the stored state no longer equals expect
// (or the job is gone); the caller decides what that means.
func (s *SQLite) CompareAndSwapJob(ctx context.Context, workspace, id int64, expect, next domain.State) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE jobs SET status = ?, claimed_by = ?
		 WHERE workspace_id = ? AND id = ? AND status = ? AND claimed_by IS ?`,
		string(next.Status), nullInt64(next.ClaimedBy),
		workspace, id, string(expect.Status), nullInt64(expect.ClaimedBy))
	if err != nil {
		return false, domain.Infra(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, domain.Infra(err)
	}
	return n == 1, nil
}

// DeleteJob removes the job and returns the row as it was.
func (s *SQLite) DeleteJob(ctx context.Context, workspace, id int64) (domain.Job, error) {
	var job domain.Job
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE workspace_id = ? AND id = ?`, workspace, id)
		j, err := scanJob(row)
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrJobNotFound
		}
		if err != nil {
			return domain.Infra(err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM jobs WHERE workspace_id = ? AND id = ?`, workspace, id); err != nil {
			return domain.Infra(err)
		}
		job = j
		return nil
	})
	return job, err
}

// SetJobBoardRef records where the job's card was posted.
func (s *SQLite) SetJobBoardRef(ctx context.Context, workspace, id int64, ref transport.MessageRef) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE jobs SET board_chat_id = ?, board_thread_id = ?, board_message_id = ?
		 WHERE workspace_id = ? AND id = ?`,
		ref.ChatID, ref.ThreadID, ref.MessageID, workspace, id)
	if err != nil {
		return domain.Infra(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrJobNotFound
	}
	return nil
}

// ListJobs returns the newest jobs first. An empty status lists every status.
func (s *SQLite) ListJobs(ctx context.Context, workspace int64, status domain.Status, limit int) ([]domain.Job, error) {
	if limit <= 0 {
		limit = 20
	}
	var (
		rows *sql.Rows
		err  error
	)
	if status == "" {
		rows, err = s.db.QueryContext(ctx,
			`SELECT `+jobColumns+` FROM jobs WHERE workspace_id = ? ORDER BY id DESC LIMIT ?`, workspace, limit)
	} else {
		rows, err = s.db.QueryContext(ctx,
			`SELECT `+jobColumns+` FROM jobs WHERE workspace_id = ? AND status = ? ORDER BY id DESC LIMIT ?`,
			workspace, string(status), limit)
	}
	if err != nil {
		return nil, domain.Infra(err)
	}
	defer rows.Close()
	return collectJobs(rows)
}

// OpenJobsPage counts open jobs, clamps page, and reads that page in one
// transaction so the count and the rows agree.
func (s *SQLite) OpenJobsPage(ctx context.Context, workspace int64, page, size int) ([]domain.Job, domain.Window, error) {
	var (
		jobs []domain.Job
		win  domain.Window
	)
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var total int
		err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM jobs WHERE workspace_id = ? AND status = ?`,
			workspace, string(domain.StatusOpen)).Scan(&total)
		if err != nil {
			return domain.Infra(err)
		}
		win = domain.PageWindow(total, page, size)
		rows, err := tx.QueryContext(ctx,
			`SELECT `+jobColumns+` FROM jobs WHERE workspace_id = ? AND status = ?
			 ORDER BY id DESC LIMIT ? OFFSET ?`,
			workspace, string(domain.StatusOpen), win.Limit, win.Offset)
		if err != nil {
			return domain.Infra(err)
		}
		defer rows.Close()
		jobs, err = collectJobs(rows)
		return err
	})
	return jobs, win, err
}

func collectJobs(rows *sql.Rows) ([]domain.Job, error) {
	var out []domain.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, domain.Infra(err)
		}
		out = append(out, j)
	}
	return out, domain.Infra(rows.Err())
}
