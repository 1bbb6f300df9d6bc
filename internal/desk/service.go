package desk

import (
	"context"
	"errors"
	"fmt"

	"jobdesk/internal/board"
	"jobdesk/internal/category"
	"jobdesk/internal/domain"
	"jobdesk/internal/eventbus"
	"jobdesk/internal/jobs"
	"jobdesk/internal/rotation"
	"jobdesk/internal/storage"
	"jobdesk/internal/transport"
	logx "jobdesk/pkg/logx"
	"jobdesk/pkg/tgui"
)

// Permissions answers capability questions for a subject in a workspace.
type Permissions interface {
	IsAdmin(ctx context.Context, workspace, subject int64) (bool, error)
	IsManagerOrAdmin(ctx context.Context, workspace, subject int64) (bool, error)
	IsModerator(ctx context.Context, workspace, subject int64) (bool, error)
	HasMinimumClaimRole(ctx context.Context, workspace, subject int64) (bool, error)
	DisplayName(ctx context.Context, workspace, subject int64) string
}

// Notifier delivers announcements, log lines and standalone messages.
type Notifier interface {
	Announce(ctx context.Context, workspace int64, text string) error
	Log(ctx context.Context, workspace int64, text string) error
	PublishBoard(ctx context.Context, to transport.ChatTarget, msg tgui.Message) (transport.MessageRef, error)
	ReplaceBoard(ctx context.Context, ref transport.MessageRef, msg tgui.Message) error
	DeleteMessage(ctx context.Context, ref transport.MessageRef) error
}

// Store holds the records the desk manages directly.
type Store interface {
	SetJobBoardRef(ctx context.Context, workspace, id int64, ref transport.MessageRef) error

	GetSetting(ctx context.Context, workspace int64, key string) (string, bool, error)
	SetSetting(ctx context.Context, workspace int64, key, value string) error

	AddManager(ctx context.Context, workspace, user, addedBy int64) (bool, error)
	RemoveManager(ctx context.Context, workspace, user int64) (bool, error)
	ListManagers(ctx context.Context, workspace int64) ([]int64, error)

	PutRole(ctx context.Context, r domain.Role) error
	DeleteRole(ctx context.Context, workspace int64, name string) (bool, error)
	GetRole(ctx context.Context, workspace int64, name string) (domain.Role, bool, error)
	ListRoles(ctx context.Context, workspace int64) ([]domain.Role, error)
	GrantRole(ctx context.Context, workspace, user int64, role string) (bool, error)
	RevokeRole(ctx context.Context, workspace, user int64, role string) (bool, error)

	AddWarning(ctx context.Context, w domain.Warning) (domain.Warning, error)
	RemoveLatestWarning(ctx context.Context, workspace, user int64) (domain.Warning, bool, error)
	ListWarnings(ctx context.Context, workspace, user int64, limit int) ([]domain.Warning, error)

	AppendAudit(ctx context.Context, e storage.AuditEntry) error
}

// Request identifies who asked for an operation and where.
type Request struct {
	ID        string
	Workspace int64
	Chat      transport.ChatTarget
	ActorID   int64
	ActorName string
}

func (r Request) actor() tgui.H { return tgui.Mention(r.ActorName, r.ActorID) }

// Subject is a user an operation acts upon.
type Subject struct {
	ID   int64
	Name string
}

func (s Subject) mention() tgui.H { return tgui.Mention(s.Name, s.ID) }

type Deps struct {
	Store    Store
	Engine   *jobs.Engine
	Gate     *category.Gate
	Board    *board.Paginator
	Rotation *rotation.Service
	Perms    Permissions
	Notify   Notifier
	Bus      eventbus.Bus
}

type Service struct {
	Deps
	log logx.Logger
}

func New(d Deps, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{Deps: d, log: log.With(logx.Component("desk"))}
}

type check func(ctx context.Context, workspace, subject int64) (bool, error)

func (s *Service) require(ctx context.Context, r Request, can check) error {
	ok, err := can(ctx, r.Workspace, r.ActorID)
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrNotAllowed
	}
	return nil
}

// refreshBoard re-renders the live board in place. A workspace without a
// board is fine.
func (s *Service) refreshBoard(ctx context.Context, workspace int64) {
	if s.Board == nil {
		return
	}
	if _, err := s.Board.Sync(ctx, workspace, 0); err != nil && !errors.Is(err, domain.ErrNoBoard) {
		s.log.Warn("board refresh failed", logx.Workspace(workspace), logx.Err(err))
	}
}

func (s *Service) logLine(ctx context.Context, workspace int64, line tgui.H) {
	if s.Notify == nil {
		return
	}
	if err := s.Notify.Log(ctx, workspace, line.String()); err != nil {
		s.log.Warn("log line failed", logx.Workspace(workspace), logx.Err(err))
	}
}

func (s *Service) emit(typ string, r Request, target, detail string) {
	if s.Bus == nil {
		return
	}
	s.Bus.Publish(eventbus.Event{Type: typ, Data: eventbus.Change{
		RequestID:   r.ID,
		WorkspaceID: r.Workspace,
		ActorID:     r.ActorID,
		Target:      target,
		Detail:      detail,
	}})
}

func (s *Service) name(ctx context.Context, workspace, user int64) string {
	if s.Perms == nil || user == 0 {
		return ""
	}
	return s.Perms.DisplayName(ctx, workspace, user)
}

func jobTarget(id int64) string { return fmt.Sprintf("job:%d", id) }

func userTarget(id int64) string { return fmt.Sprintf("user:%d", id) }
