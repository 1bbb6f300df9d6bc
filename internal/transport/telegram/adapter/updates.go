package adapter

import (
	"strings"

	tele "gopkg.in/telebot.v4"

	kit "jobdesk/internal/transport"
)

func (a *Adapter) registerHandlers() {
	a.bot.Handle(tele.OnText, func(c tele.Context) error {
		if m := c.Message(); m != nil && m.Sender != nil && m.Chat != nil {
			a.forward(kit.Update{Kind: kit.UpdateMessage, Message: messageOf(m)})
		}
		return nil
	})
	a.bot.Handle(tele.OnCallback, func(c tele.Context) error {
		if cb := callbackOf(c.Callback(), c.Message()); cb != nil {
			a.forward(kit.Update{Kind: kit.UpdateCallback, Callback: cb})
		}
		return nil
	})
}

// forward passes up to the current consumer without blocking the poller.
func (a *Adapter) forward(up kit.Update) {
	out, _ := a.out.Load().(chan<- kit.Update)
	if out == nil {
		return
	}
	select {
	case out <- up:
	default:
		a.dropped.Add(1)
	}
}

func messageOf(m *tele.Message) *kit.Message {
	out := &kit.Message{
		ID:           m.ID,
		ChatID:       m.Chat.ID,
		ThreadID:     m.ThreadID,
		FromID:       m.Sender.ID,
		FromUsername: m.Sender.Username,
		FromName:     displayName(m.Sender),
		Text:         m.Text,
		IsGroup:      m.Chat.Type == tele.ChatGroup || m.Chat.Type == tele.ChatSuperGroup,
	}
	// In forum topics every message "replies" to the topic root; ignore that.
	if rt := m.ReplyTo; rt != nil && rt.Sender != nil && rt.ID != m.ThreadID {
		out.ReplyToFromID = rt.Sender.ID
		out.ReplyToFromName = displayName(rt.Sender)
	}
	return out
}

// callbackOf returns nil for callbacks without a sender or a source message
// (inline-mode buttons), which have no workspace.
func callbackOf(cb *tele.Callback, m *tele.Message) *kit.Callback {
	if cb == nil || cb.Sender == nil || m == nil || m.Chat == nil {
		return nil
	}
	return &kit.Callback{
		ID:        cb.ID,
		FromID:    cb.Sender.ID,
		FromName:  displayName(cb.Sender),
		ChatID:    m.Chat.ID,
		ThreadID:  m.ThreadID,
		MessageID: m.ID,
		// telebot prefixes unique-button data with \f.
		Data: strings.TrimPrefix(cb.Data, "\f"),
	}
}

func displayName(u *tele.User) string {
	if u == nil {
		return ""
	}
	if name := strings.TrimSpace(u.FirstName + " " + u.LastName); name != "" {
		return name
	}
	if u.Username != "" {
		return "@" + u.Username
	}
	return ""
}
