package router

import (
	"context"
	"time"

	kit "jobdesk/internal/transport"
	logx "jobdesk/pkg/logx"
)

type Access int

const (
	AccessEveryone Access = iota
	AccessOwnerOnly
)

// Command is a routable slash command. Route is a space separated path such
// as "job_post" or "board init"; Aliases are extra root-level names.
type Command struct {
	Route       string
	Aliases     []string
	Description string
	Usage       string
	Access      Access

	Timeout time.Duration // overrides Options.DefaultTimeout when > 0
	Handle  HandlerFunc
}

type CallbackHandlerFunc func(ctx context.Context, req *Request, payload string) error

// CallbackAccess limits who may press a button. Board buttons are public;
// handlers check per-action authority themselves.
type CallbackAccess int

const (
	CallbackAccessEveryone CallbackAccess = iota
	CallbackAccessOwnerOnly
)

// CallbackRoute matches callback data "<scope>:<action>[:payload]".
type CallbackRoute struct {
	Scope       string
	Action      string
	Description string
	Access      CallbackAccess
	Timeout     time.Duration
	Handle      CallbackHandlerFunc
}

func (r CallbackRoute) key() string { return "cb:" + r.Scope + ":" + r.Action }

type Request struct {
	Update   kit.Update
	Chat     kit.ChatTarget
	FromID   int64
	FromName string
	Path     []string // matched route tokens, message updates only
	Command  string   // route, or "cb:<scope>:<action>"
	Args     []string
	Payload  string

	// Author of the replied-to message, used as an implicit target.
	ReplyToID   int64
	ReplyToName string

	RawArgs   []string
	Flags     map[string]string
	BoolFlags map[string]bool
	ReqID     string

	Adapter kit.Adapter
	Logger  logx.Logger
}

// Workspace is the chat the request belongs to.
func (r *Request) Workspace() int64 { return r.Chat.ChatID }

// Reply sends an HTML message to the request's chat and thread.
func (r *Request) Reply(ctx context.Context, text string) error {
	_, err := r.Adapter.SendText(ctx, r.Chat, text, htmlOpts())
	return err
}

func (r *Request) CallbackID() string {
	if r.Update.Callback == nil {
		return ""
	}
	return r.Update.Callback.ID
}

func htmlOpts() *kit.SendOptions { return &kit.SendOptions{ParseMode: "HTML", DisablePreview: true} }
