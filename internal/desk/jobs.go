package desk

import (
	"context"
	"fmt"
	"strings"

	"jobdesk/internal/board"
	"jobdesk/internal/domain"
	"jobdesk/internal/eventbus"
	"jobdesk/internal/jobs"
	logx "jobdesk/pkg/logx"
	"jobdesk/pkg/tgui"
)

const listLimit = 20

type NewJob struct {
	Title       string
	Category    string
	Description string
}

// CreateJob posts a job and its card in the requesting chat. A failed card
// post leaves the job without a board_ref.
func (s *Service) CreateJob(ctx context.Context, r Request, in NewJob) (domain.Job, error) {
	if err := s.require(ctx, r, s.Perms.IsManagerOrAdmin); err != nil {
		return domain.Job{}, err
	}
	job, err := s.Engine.Create(ctx, r.Workspace, jobs.CreateInput{
		Title:       in.Title,
		Description: in.Description,
		Category:    in.Category,
		CreatedBy:   r.ActorID,
	})
	if err != nil {
		return domain.Job{}, err
	}

	if s.Notify != nil {
		ref, err := s.Notify.PublishBoard(ctx, r.Chat, board.FormatCard(job, ""))
		if err != nil {
			s.log.Warn("job card post failed", logx.Workspace(r.Workspace), logx.Int64("job", job.ID), logx.Err(err))
		} else if err := s.Store.SetJobBoardRef(ctx, r.Workspace, job.ID, ref); err != nil {
			s.log.Warn("job card ref not saved", logx.Workspace(r.Workspace), logx.Int64("job", job.ID), logx.Err(err))
		} else {
			job.BoardRef = &ref
		}
	}

	s.refreshBoard(ctx, r.Workspace)
	s.logLine(ctx, r.Workspace, tgui.H(fmt.Sprintf("🆕 Job #%d created by %s: %s (%s)",
		job.ID, r.actor(), tgui.B(job.Title), badge(job))))
	s.emit(eventbus.JobCreated, r, jobTarget(job.ID), job.Title)
	return job, nil
}

func (s *Service) ClaimJob(ctx context.Context, r Request, id int64) (domain.Job, error) {
	hasRole, err := s.Perms.HasMinimumClaimRole(ctx, r.Workspace, r.ActorID)
	if err != nil {
		return domain.Job{}, err
	}
	job, err := s.Engine.Claim(ctx, r.Workspace, id, r.ActorID, hasRole)
	if err != nil {
		return job, err
	}
	s.afterChange(ctx, r, job, eventbus.JobClaimed, fmt.Sprintf("📝 Job #%d claimed by %s.", job.ID, r.actor()))
	return job, nil
}

func (s *Service) UnclaimJob(ctx context.Context, r Request, id int64) (domain.Job, error) {
	privileged, err := s.Perms.IsModerator(ctx, r.Workspace, r.ActorID)
	if err != nil {
		return domain.Job{}, err
	}
	job, err := s.Engine.Unclaim(ctx, r.Workspace, id, r.ActorID, privileged)
	if err != nil {
		return job, err
	}
	s.afterChange(ctx, r, job, eventbus.JobUnclaimed, fmt.Sprintf("📤 Job #%d unclaimed by %s.", job.ID, r.actor()))
	return job, nil
}

// CloseJob is allowed for the claimer and for managers.
func (s *Service) CloseJob(ctx context.Context, r Request, id int64) (domain.Job, error) {
	privileged, err := s.Perms.IsManagerOrAdmin(ctx, r.Workspace, r.ActorID)
	if err != nil {
		return domain.Job{}, err
	}
	job, err := s.Engine.Close(ctx, r.Workspace, id, r.ActorID, privileged)
	if err != nil {
		return job, err
	}
	s.afterChange(ctx, r, job, eventbus.JobClosed, fmt.Sprintf("🔒 Job #%d closed by %s.", job.ID, r.actor()))
	return job, nil
}

func (s *Service) ReopenJob(ctx context.Context, r Request, id int64) (domain.Job, error) {
	privileged, err := s.Perms.IsManagerOrAdmin(ctx, r.Workspace, r.ActorID)
	if err != nil {
		return domain.Job{}, err
	}
	job, err := s.Engine.Reopen(ctx, r.Workspace, id, privileged)
	if err != nil {
		return job, err
	}
	s.afterChange(ctx, r, job, eventbus.JobReopened, fmt.Sprintf("🔓 Job #%d reopened by %s.", job.ID, r.actor()))
	return job, nil
}

type Deleted struct {
	Job domain.Job
	// MessageRemoved reports whether the job card was deleted too.
	MessageRemoved bool
}

func (s *Service) DeleteJob(ctx context.Context, r Request, id int64, reason string) (Deleted, error) {
	privileged, err := s.Perms.IsManagerOrAdmin(ctx, r.Workspace, r.ActorID)
	if err != nil {
		return Deleted{}, err
	}
	job, ref, err := s.Engine.Delete(ctx, r.Workspace, id, privileged)
	if err != nil {
		return Deleted{}, err
	}
	out := Deleted{Job: job}
	if ref != nil && s.Notify != nil {
		if err := s.Notify.DeleteMessage(ctx, *ref); err != nil {
			s.log.Info("job card not removed", logx.Workspace(r.Workspace), logx.Int64("job", id), logx.Err(err))
		} else {
			out.MessageRemoved = true
		}
	}

	s.refreshBoard(ctx, r.Workspace)
	details := []string{"status=" + string(job.Status)}
	if job.ClaimedBy != nil {
		details = append(details, "claimed_by="+tgui.Mention(s.name(ctx, r.Workspace, *job.ClaimedBy), *job.ClaimedBy).String())
	}
	if job.Category != "" {
		details = append(details, "category="+tgui.Esc(job.Category).String())
	}
	line := fmt.Sprintf("🗑️ Job #%d (%s) deleted by %s. %s.", job.ID, tgui.B(job.Title), r.actor(), strings.Join(details, ", "))
	if reason = strings.TrimSpace(reason); reason != "" {
		line += " Reason: " + tgui.Esc(reason).String()
	}
	if out.MessageRemoved {
		line += " (message removed)"
	}
	s.logLine(ctx, r.Workspace, tgui.H(line))
	s.emit(eventbus.JobDeleted, r, jobTarget(job.ID), reason)
	return out, nil
}

// ListJobs returns the newest jobs, optionally filtered by status.
func (s *Service) ListJobs(ctx context.Context, r Request, status domain.Status) ([]domain.Job, error) {
	return s.Engine.List(ctx, r.Workspace, status, listLimit)
}

func (s *Service) GetJob(ctx context.Context, r Request, id int64) (domain.Job, error) {
	return s.Engine.Get(ctx, r.Workspace, id)
}

// afterChange runs the side effects shared by every state transition.
func (s *Service) afterChange(ctx context.Context, r Request, job domain.Job, event, line string) {
	s.refreshCard(ctx, job)
	s.refreshBoard(ctx, r.Workspace)
	s.logLine(ctx, r.Workspace, tgui.H(line))
	s.emit(event, r, jobTarget(job.ID), string(job.Status))
}

func (s *Service) refreshCard(ctx context.Context, job domain.Job) {
	if job.BoardRef == nil || s.Notify == nil {
		return
	}
	claimer := ""
	if job.ClaimedBy != nil {
		claimer = s.name(ctx, job.WorkspaceID, *job.ClaimedBy)
	}
	if err := s.Notify.ReplaceBoard(ctx, *job.BoardRef, board.FormatCard(job, claimer)); err != nil {
		s.log.Debug("job card refresh failed", logx.Workspace(job.WorkspaceID), logx.Int64("job", job.ID), logx.Err(err))
	}
}

func badge(j domain.Job) string {
	if j.OpenToAll {
		return "🌐 Open to all"
	}
	return "🔒 Role-gated"
}
