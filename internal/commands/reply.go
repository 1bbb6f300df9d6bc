package commands

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"jobdesk/internal/desk"
	"jobdesk/internal/domain"
	"jobdesk/internal/transport/telegram/router"
	logx "jobdesk/pkg/logx"
	"jobdesk/pkg/tgui"
)

const genericFailure = "Something went wrong. Please try again."

// usageError is returned by argument parsing; the reply is the usage line.
type usageError struct{ usage string }

func (e usageError) Error() string { return "usage: " + e.usage }

func usage(u string) error { return usageError{usage: u} }

func deskRequest(r *router.Request) desk.Request {
	return desk.Request{
		ID:        r.ReqID,
		Workspace: r.Workspace(),
		Chat:      r.Chat,
		ActorID:   r.FromID,
		ActorName: r.FromName,
	}
}

// subject resolves the target member from the replied-to message or from
// args[i] as a numeric user id. consumed reports whether args[i] was used.
func subject(r *router.Request, i int, u string) (sub desk.Subject, consumed bool, err error) {
	if r.ReplyToID != 0 {
		return desk.Subject{ID: r.ReplyToID, Name: r.ReplyToName}, false, nil
	}
	if i < len(r.Args) {
		if id, err := strconv.ParseInt(strings.TrimPrefix(r.Args[i], "@"), 10, 64); err == nil && id > 0 {
			return desk.Subject{ID: id}, true, nil
		}
	}
	return desk.Subject{}, false, usage(u)
}

func jobID(r *router.Request, u string) (int64, error) {
	if len(r.Args) == 0 {
		return 0, usage(u)
	}
	id, err := strconv.ParseInt(strings.TrimPrefix(r.Args[0], "#"), 10, 64)
	if err != nil || id <= 0 {
		return 0, usage(u)
	}
	return id, nil
}

// errText maps an error kind to the reply shown to the member.
func errText(err error) string {
	var ue usageError
	switch {
	case errors.As(err, &ue):
		return "Usage: " + tgui.Code(ue.usage).String()
	case errors.Is(err, domain.ErrJobNotFound):
		return "Job not found."
	case errors.Is(err, domain.ErrAlreadyClaimed):
		return "Already claimed."
	case errors.Is(err, domain.ErrClosed):
		return "Job is closed."
	case errors.Is(err, domain.ErrNotClaimed):
		return "Job is not claimed."
	case errors.Is(err, domain.ErrNotClosed):
		return "Only closed jobs can be reopened."
	case errors.Is(err, domain.ErrContended):
		return "The job changed at the same time. Please try again."
	case errors.Is(err, domain.ErrNoBoard):
		return "No job board yet. Run /board init first."
	case errors.Is(err, domain.ErrNoTarget):
		return "General chat not set. Run /set_general there first."
	case errors.Is(err, domain.ErrRoleNotFound):
		return "Role not found. Create it with /role add &lt;name&gt; &lt;rank&gt;."
	case errors.Is(err, domain.ErrEmptyTitle):
		return "A title is required."
	case errors.Is(err, domain.ErrEmptyName):
		return "A name is required."
	case errors.Is(err, domain.ErrEmptyReason):
		return "A reason is required."
	case errors.Is(err, domain.ErrForbidden):
		return "You don't have permission to do that."
	case errors.Is(err, domain.ErrInvalid):
		return "Invalid input."
	}
	return genericFailure
}

// fail replies with the member-facing text of err. Only unexpected errors
// are returned so the request log records them.
func fail(ctx context.Context, r *router.Request, err error, forbidden string) error {
	text := errText(err)
	if forbidden != "" && errors.Is(err, domain.ErrForbidden) {
		text = forbidden
	}
	if rerr := r.Reply(ctx, text); rerr != nil {
		r.Logger.Debug("reply failed", logx.Err(rerr))
	}
	if isClient(err) {
		return nil
	}
	return err
}

// isClient reports whether err is the member's doing rather than ours.
func isClient(err error) bool {
	var ue usageError
	if errors.As(err, &ue) {
		return true
	}
	k := domain.Kind(err)
	return k != nil && k != domain.ErrInfrastructure
}

// toast answers a callback with a short popup, reporting errors like fail.
func toast(ctx context.Context, r *router.Request, text string, err error, forbidden string) error {
	if err != nil {
		text = errText(err)
		if forbidden != "" && errors.Is(err, domain.ErrForbidden) {
			text = forbidden
		}
	}
	// Popups are plain text.
	text = strings.NewReplacer("&lt;", "<", "&gt;", ">", "<code>", "", "</code>", "").Replace(text)
	if aerr := r.Adapter.AnswerCallback(ctx, r.CallbackID(), text); aerr != nil {
		r.Logger.Debug("answer callback failed", logx.Err(aerr))
	}
	if err == nil || isClient(err) {
		return nil
	}
	return err
}

func replyf(ctx context.Context, r *router.Request, format string, args ...any) error {
	return r.Reply(ctx, fmt.Sprintf(format, args...))
}

func mention(s desk.Subject) string { return tgui.Mention(s.Name, s.ID).String() }
