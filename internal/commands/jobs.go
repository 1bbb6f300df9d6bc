package commands

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"jobdesk/internal/desk"
	"jobdesk/internal/domain"
	"jobdesk/internal/transport/telegram/router"
	"jobdesk/pkg/tgui"
)

const onlyManagers = "Only managers or chat admins can use this command."

func (s *Set) jobPost(ctx context.Context, r *router.Request) error {
	in := desk.NewJob{
		Title:       strings.Join(r.Args, " "),
		Category:    flag(r, "category", "c"),
		Description: flag(r, "desc", "d"),
	}
	return s.createJob(ctx, r, in)
}

// jobAdd takes the pipe-separated form "title | category | description".
func (s *Set) jobAdd(ctx context.Context, r *router.Request) error {
	parts := strings.SplitN(strings.Join(r.RawArgs, " "), "|", 3)
	in := desk.NewJob{Title: strings.TrimSpace(parts[0])}
	if len(parts) > 1 {
		in.Category = strings.TrimSpace(parts[1])
	}
	if len(parts) > 2 {
		in.Description = strings.TrimSpace(parts[2])
	}
	return s.createJob(ctx, r, in)
}

func (s *Set) createJob(ctx context.Context, r *router.Request, in desk.NewJob) error {
	job, err := s.Desk.CreateJob(ctx, deskRequest(r), in)
	if err != nil {
		return fail(ctx, r, err, "Only managers or chat admins can create jobs.")
	}
	// The card is the confirmation; only speak when it could not be posted.
	if job.BoardRef == nil {
		return replyf(ctx, r, "🆕 Job <code>#%d</code> created: %s", job.ID, tgui.B(job.Title))
	}
	return nil
}

func (s *Set) jobList(ctx context.Context, r *router.Request) error {
	var status domain.Status
	if len(r.Args) > 0 {
		status = domain.Status(strings.ToLower(r.Args[0]))
		if !status.Valid() {
			return fail(ctx, r, usage("/job_list [open|claimed|closed]"), "")
		}
	}
	dr := deskRequest(r)
	list, err := s.Desk.ListJobs(ctx, dr, status)
	if err != nil {
		return fail(ctx, r, err, "")
	}
	if len(list) == 0 {
		return r.Reply(ctx, "No jobs found.")
	}
	lines := make([]string, 0, len(list))
	for _, j := range list {
		lines = append(lines, s.jobLine(ctx, dr, j))
	}
	return r.Reply(ctx, strings.Join(lines, "\n"))
}

func (s *Set) jobLine(ctx context.Context, dr desk.Request, j domain.Job) string {
	badge := "🔒"
	if j.OpenToAll {
		badge = "🌐"
	}
	line := fmt.Sprintf("<code>#%d</code> %s %s", j.ID, badge, tgui.B(j.Title))
	if j.Category != "" {
		line += " [" + tgui.Esc(j.Category).String() + "]"
	}
	line += " - " + string(j.Status)
	if id := j.ClaimedByID(); id != 0 {
		line += " by " + tgui.Mention(s.Desk.Perms.DisplayName(ctx, dr.Workspace, id), id).String()
	}
	return line
}

func (s *Set) jobClaim(ctx context.Context, r *router.Request) error {
	id, err := jobID(r, "/job_claim <id>")
	if err != nil {
		return fail(ctx, r, err, "")
	}
	if _, err := s.Desk.ClaimJob(ctx, deskRequest(r), id); err != nil {
		return fail(ctx, r, err, "You don't have permission to claim this job.")
	}
	return replyf(ctx, r, "✅ You claimed job #%d.", id)
}

func (s *Set) jobUnclaim(ctx context.Context, r *router.Request) error {
	id, err := jobID(r, "/job_unclaim <id>")
	if err != nil {
		return fail(ctx, r, err, "")
	}
	if _, err := s.Desk.UnclaimJob(ctx, deskRequest(r), id); err != nil {
		return fail(ctx, r, err, "Only the claimer or a moderator can unclaim.")
	}
	return replyf(ctx, r, "↩️ You unclaimed job #%d.", id)
}

func (s *Set) jobClose(ctx context.Context, r *router.Request) error {
	id, err := jobID(r, "/job_close <id>")
	if err != nil {
		return fail(ctx, r, err, "")
	}
	if _, err := s.Desk.CloseJob(ctx, deskRequest(r), id); err != nil {
		return fail(ctx, r, err, "Only the claimer or a manager can close this job.")
	}
	return replyf(ctx, r, "🔒 Job #%d closed.", id)
}

func (s *Set) jobOpen(ctx context.Context, r *router.Request) error {
	id, err := jobID(r, "/job_open <id>")
	if err != nil {
		return fail(ctx, r, err, "")
	}
	if _, err := s.Desk.ReopenJob(ctx, deskRequest(r), id); err != nil {
		return fail(ctx, r, err, onlyManagers)
	}
	return replyf(ctx, r, "🔓 Job #%d reopened.", id)
}

func (s *Set) jobDelete(ctx context.Context, r *router.Request) error {
	id, err := jobID(r, "/job_delete <id> [reason...]")
	if err != nil {
		return fail(ctx, r, err, "")
	}
	reason := strings.Join(r.Args[1:], " ")
	out, err := s.Desk.DeleteJob(ctx, deskRequest(r), id, reason)
	if err != nil {
		return fail(ctx, r, err, onlyManagers)
	}
	suffix := ""
	if out.MessageRemoved {
		suffix = " (message removed)"
	}
	return replyf(ctx, r, "🗑️ Deleted job <code>#%d</code>: %s%s.", id, tgui.B(out.Job.Title), suffix)
}

func (s *Set) cardClaim(ctx context.Context, r *router.Request, payload string) error {
	id, err := strconv.ParseInt(payload, 10, 64)
	if err != nil {
		return toast(ctx, r, "", domain.ErrJobNotFound, "")
	}
	if _, err := s.Desk.ClaimJob(ctx, deskRequest(r), id); err != nil {
		return toast(ctx, r, "", err, "You don't have permission to claim this job.")
	}
	_ = toast(ctx, r, fmt.Sprintf("Claimed job #%d.", id), nil, "")
	return replyf(ctx, r, "✅ %s claimed job #%d.", tgui.Mention(r.FromName, r.FromID), id)
}

func (s *Set) cardUnclaim(ctx context.Context, r *router.Request, payload string) error {
	id, err := strconv.ParseInt(payload, 10, 64)
	if err != nil {
		return toast(ctx, r, "", domain.ErrJobNotFound, "")
	}
	if _, err := s.Desk.UnclaimJob(ctx, deskRequest(r), id); err != nil {
		return toast(ctx, r, "", err, "Only the claimer or a moderator can unclaim.")
	}
	_ = toast(ctx, r, fmt.Sprintf("Unclaimed job #%d.", id), nil, "")
	return replyf(ctx, r, "↩️ %s unclaimed job #%d.", tgui.Mention(r.FromName, r.FromID), id)
}

// flag returns the first non-empty flag among names.
func flag(r *router.Request, names ...string) string {
	for _, n := range names {
		if v := strings.TrimSpace(r.Flags[n]); v != "" {
			return v
		}
	}
	return ""
}
