package adapter

import (
	"context"
	"hash/fnv"

	tele "gopkg.in/telebot.v4"

	kit "jobdesk/internal/transport"
	logx "jobdesk/pkg/logx"
)

// Member resolves the chat-level status and rights of a user.
func (a *Adapter) Member(ctx context.Context, chatID, userID int64) (kit.Member, error) {
	if err := ctx.Err(); err != nil {
		return kit.Member{}, err
	}
	cm, err := a.bot.ChatMemberOf(&tele.Chat{ID: chatID}, &tele.User{ID: userID})
	if err != nil {
		return kit.Member{}, err
	}
	return memberOf(userID, cm), nil
}

func memberOf(userID int64, cm *tele.ChatMember) kit.Member {
	m := kit.Member{UserID: userID, Status: kit.MemberStatus(cm.Role)}
	if cm.User != nil {
		m.DisplayName = displayName(cm.User)
	}
	switch m.Status {
	case kit.StatusCreator:
		m.CanDeleteMessages, m.CanChangeInfo = true, true
	case kit.StatusAdministrator:
		m.CanDeleteMessages, m.CanChangeInfo = cm.CanDeleteMessages, cm.CanChangeInfo
	}
	return m
}

// UpdateMenuCommands publishes the bot's command menu. Unchanged lists are
// not resent.
func (a *Adapter) UpdateMenuCommands(ctx context.Context, cmds []kit.BotCommand) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	a.menuMu.Lock()
	defer a.menuMu.Unlock()

	sum := menuHash(cmds)
	if sum == a.menuHash {
		return nil
	}
	tc := make([]tele.Command, 0, len(cmds))
	for _, c := range cmds {
		if c.Command != "" {
			tc = append(tc, tele.Command{Text: c.Command, Description: c.Description})
		}
	}
	if err := a.bot.SetCommands(tc); err != nil {
		return err
	}
	a.menuHash = sum
	a.log.Info("menu commands updated", logx.Int("count", len(tc)))
	return nil
}

func menuHash(cmds []kit.BotCommand) uint64 {
	h := fnv.New64a()
	for _, c := range cmds {
		_, _ = h.Write([]byte(c.Command))
		_, _ = h.Write([]byte{0})
		_, _ = h.Write([]byte(c.Description))
		_, _ = h.Write([]byte{0})
	}
	return h.Sum64()
}
