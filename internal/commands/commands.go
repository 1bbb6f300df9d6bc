// Package commands binds chat commands and inline buttons to the desk.
package commands

import (
	"context"
	"sync/atomic"
	"time"

	"jobdesk/internal/board"
	"jobdesk/internal/desk"
	"jobdesk/internal/notifier"
	"jobdesk/internal/storage"
	"jobdesk/internal/task/scheduler"
	"jobdesk/internal/transport/telegram/router"
	logx "jobdesk/pkg/logx"
)

// AuditReader lists the newest audit entries of a workspace.
type AuditReader interface {
	RecentAudit(ctx context.Context, workspace int64, limit int) ([]storage.AuditEntry, error)
}

// Schedules exposes the scheduler state for /status.
type Schedules interface {
	Snapshot() scheduler.Snapshot
}

// History exposes recently delivered notifications for /status.
type History interface {
	Snapshot() []notifier.HistoryItem
}

type Deps struct {
	Desk      *desk.Service
	Audit     AuditReader
	Schedules Schedules
	History   History
}

type Set struct {
	Deps
	log logx.Logger
	pin atomic.Bool
}

func New(d Deps, log logx.Logger) *Set {
	if log.IsZero() {
		log = logx.Nop()
	}
	s := &Set{Deps: d, log: log.With(logx.Component("commands"))}
	s.pin.Store(true)
	return s
}

// SetBoardPin sets whether /board init pins the board unless --nopin is given.
func (s *Set) SetBoardPin(v bool) { s.pin.Store(v) }

const quick = 15 * time.Second

// Commands returns every chat command. /help is injected by the router.
func (s *Set) Commands() []router.Command {
	cmds := []router.Command{
		{Route: "job_post", Description: "create a job", Usage: `/job_post "<title>" [--category <name>] [--desc <text>]`, Handle: s.jobPost},
		{Route: "job_add", Description: "create a job (title | category | description)", Usage: "/job_add <title> | <category> | <description>", Handle: s.jobAdd},
		{Route: "job_list", Description: "list recent jobs", Usage: "/job_list [open|claimed|closed]", Handle: s.jobList},
		{Route: "job_claim", Description: "claim a job", Usage: "/job_claim <id>", Handle: s.jobClaim},
		{Route: "job_unclaim", Description: "release a claimed job", Usage: "/job_unclaim <id>", Handle: s.jobUnclaim},
		{Route: "job_close", Description: "close a job (claimer or manager)", Usage: "/job_close <id>", Handle: s.jobClose},
		{Route: "job_open", Description: "re-open a closed job", Usage: "/job_open <id>", Handle: s.jobOpen},
		{Route: "job_delete", Description: "delete a job", Usage: "/job_delete <id> [reason...]", Handle: s.jobDelete},

		{Route: "board init", Description: "create or replace the job board", Usage: "/board init [--nopin]", Handle: s.boardInit},
		{Route: "board refresh", Description: "refresh the job board", Usage: "/board refresh", Handle: s.boardRefresh},

		{Route: "openall add", Description: "add an open-to-all category", Usage: "/openall add <name>", Handle: s.openAllAdd},
		{Route: "openall remove", Description: "remove an open-to-all category", Usage: "/openall remove <name>", Handle: s.openAllRemove},
		{Route: "openall list", Description: "list open-to-all categories", Usage: "/openall list", Handle: s.openAllList},

		{Route: "rotation add", Description: "add a member to the interview rotation", Usage: "/rotation add (reply | <user_id>)", Handle: s.rotationAdd},
		{Route: "rotation remove", Description: "remove a member from the rotation", Usage: "/rotation remove (reply | <user_id>)", Handle: s.rotationRemove},
		{Route: "rotation list", Description: "list the rotation", Usage: "/rotation list", Handle: s.rotationList},
		{Route: "interview", Description: "announce the current interview candidate", Usage: "/interview", Handle: s.interview},

		{Route: "admin add", Description: "add a manager", Usage: "/admin add (reply | <user_id>)", Handle: s.adminAdd},
		{Route: "admin remove", Description: "remove a manager", Usage: "/admin remove (reply | <user_id>)", Handle: s.adminRemove},
		{Route: "admin list", Description: "list managers", Usage: "/admin list", Handle: s.adminList},

		{Route: "role add", Description: "create or re-rank a role", Usage: "/role add <name> <rank>", Handle: s.roleAdd},
		{Route: "role remove", Description: "delete a role", Usage: "/role remove <name>", Handle: s.roleRemove},
		{Route: "role grant", Description: "grant a role", Usage: "/role grant <name> (reply | <user_id>)", Handle: s.roleGrant},
		{Route: "role revoke", Description: "revoke a role", Usage: "/role revoke <name> (reply | <user_id>)", Handle: s.roleRevoke},
		{Route: "role list", Description: "list roles", Usage: "/role list", Handle: s.roleList},

		{Route: "set_min_claim_role", Description: "minimum role for role-gated jobs", Usage: "/set_min_claim_role <role>", Handle: s.setMinClaimRole},
		{Route: "set_manager_role", Description: "role with manager access", Usage: "/set_manager_role <role>", Handle: s.setManagerRole},
		{Route: "set_general", Description: "announce in this chat", Usage: "/set_general", Handle: s.setGeneral},
		{Route: "set_log", Description: "log actions in this chat", Usage: "/set_log", Handle: s.setLog},

		{Route: "warn add", Description: "warn a member", Usage: "/warn add (reply | <user_id>) <reason...>", Handle: s.warnAdd},
		{Route: "warn remove", Description: "remove the latest warning", Usage: "/warn remove (reply | <user_id>)", Handle: s.warnRemove},
		{Route: "warn list", Description: "list warnings", Usage: "/warn list (reply | <user_id>)", Handle: s.warnList},

		{Route: "audit", Description: "recent audit entries", Usage: "/audit [n]", Access: router.AccessOwnerOnly, Handle: s.audit},
		{Route: "status", Description: "pipeline and schedule status", Usage: "/status", Access: router.AccessOwnerOnly, Handle: s.status},
	}
	for i := range cmds {
		if cmds[i].Timeout == 0 {
			cmds[i].Timeout = quick
		}
	}
	return cmds
}

// Callbacks returns the inline-button routes of the board and job cards.
func (s *Set) Callbacks() []router.CallbackRoute {
	return []router.CallbackRoute{
		{Scope: board.Scope, Action: "prev", Description: "previous page", Timeout: quick, Handle: s.pageBoard(-1)},
		{Scope: board.Scope, Action: "refresh", Description: "refresh page", Timeout: quick, Handle: s.pageBoard(0)},
		{Scope: board.Scope, Action: "next", Description: "next page", Timeout: quick, Handle: s.pageBoard(1)},
		{Scope: board.CardScope, Action: "claim", Description: "claim from card", Timeout: quick, Handle: s.cardClaim},
		{Scope: board.CardScope, Action: "unclaim", Description: "unclaim from card", Timeout: quick, Handle: s.cardUnclaim},
	}
}
