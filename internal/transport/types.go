package transport

import "context"

type UpdateKind string

const (
	UpdateMessage  UpdateKind = "message"
	UpdateCallback UpdateKind = "callback"
)

type Update struct {
	Kind     UpdateKind
	Message  *Message
	Callback *Callback
}

type Message struct {
	ID           int
	ChatID       int64
	ThreadID     int // forum topic thread id (0 if none)
	FromID       int64
	FromUsername string
	FromName     string
	Text         string
	IsGroup      bool

	// ReplyToFromID is the author of the message this one replies to (0 if none).
	ReplyToFromID   int64
	ReplyToFromName string
}

type Callback struct {
	ID        string
	FromID    int64
	FromName  string
	ChatID    int64
	ThreadID  int
	MessageID int
	Data      string
}

type ChatTarget struct {
	ChatID   int64
	ThreadID int
}

type MessageRef struct {
	ChatID    int64
	ThreadID  int
	MessageID int
}

func (r MessageRef) Target() ChatTarget { return ChatTarget{ChatID: r.ChatID, ThreadID: r.ThreadID} }

func (r MessageRef) IsZero() bool { return r.ChatID == 0 && r.MessageID == 0 }

type SendOptions struct {
	ParseMode          string
	DisablePreview     bool
	ReplyMarkupAdapter any // adapter-specific markup (Telegram: *telebot.ReplyMarkup)
}

type Adapter interface {
	Start(ctx context.Context, out chan<- Update) error
	Stop(ctx context.Context) error

	SendText(ctx context.Context, to ChatTarget, text string, opt *SendOptions) (MessageRef, error)
	EditText(ctx context.Context, ref MessageRef, text string, opt *SendOptions) error
	DeleteMessage(ctx context.Context, ref MessageRef) error
	PinMessage(ctx context.Context, ref MessageRef) error
	AnswerCallback(ctx context.Context, callbackID string, text string) error
}

// MemberStatus mirrors the chat-level status of a user.
type MemberStatus string

const (
	StatusCreator       MemberStatus = "creator"
	StatusAdministrator MemberStatus = "administrator"
	StatusMember        MemberStatus = "member"
	StatusRestricted    MemberStatus = "restricted"
	StatusLeft          MemberStatus = "left"
	StatusKicked        MemberStatus = "kicked"
)

type Member struct {
	UserID            int64
	DisplayName       string
	Status            MemberStatus
	CanDeleteMessages bool
	CanChangeInfo     bool
}

// MemberLookup is implemented by adapters that can resolve chat membership.
type MemberLookup interface {
	Member(ctx context.Context, chatID, userID int64) (Member, error)
}

// BotCommand represents a single bot command menu entry.
type BotCommand struct {
	Command     string
	Description string
}

// CommandMenuUpdater is an optional interface that adapters can implement
// to update platform-specific bot command menus.
type CommandMenuUpdater interface {
	UpdateMenuCommands(ctx context.Context, cmds []BotCommand) error
}
