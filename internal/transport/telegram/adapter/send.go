package adapter

import (
	"context"
	"strings"

	tele "gopkg.in/telebot.v4"

	kit "jobdesk/internal/transport"
)

// textLimit stays under Telegram's 4096 character cap with room for entities.
const textLimit = 4000

// splitText cuts s into chunks of at most limit runes. It prefers newline
// boundaries and, for HTML, avoids cutting inside a tag.
func splitText(s string, limit int, html bool) []string {
	if limit <= 0 {
		limit = textLimit
	}
	rs := []rune(s)
	if len(rs) <= limit {
		return []string{s}
	}

	var out []string
	for start := 0; start < len(rs); {
		end := min(start+limit, len(rs))
		if end < len(rs) {
			end = cutPoint(rs, start, end, limit, html)
		}
		out = append(out, strings.TrimRight(string(rs[start:end]), "\n"))
		for start = end; start < len(rs) && rs[start] == '\n'; start++ {
		}
	}
	return out
}

// cutPoint moves end back to the last newline in the window (if it keeps at
// least a third of the window) and then before any unclosed HTML tag.
func cutPoint(rs []rune, start, end, limit int, html bool) int {
	for i := end - 1; i > start && i-start >= limit/3; i-- {
		if rs[i] == '\n' {
			end = i + 1
			break
		}
	}
	if !html {
		return end
	}
	open, closed := -1, -1
	for i := start; i < end; i++ {
		switch rs[i] {
		case '<':
			open = i
		case '>':
			closed = i
		}
	}
	if open > closed && open > start+1 {
		return open
	}
	return end
}

func sendOptions(opt *kit.SendOptions, threadID int, withMarkup bool) *tele.SendOptions {
	so := &tele.SendOptions{
		ParseMode:             opt.ParseMode,
		DisableWebPagePreview: opt.DisablePreview,
		ThreadID:              threadID,
	}
	if rm, ok := opt.ReplyMarkupAdapter.(*tele.ReplyMarkup); ok && withMarkup {
		so.ReplyMarkup = rm
	}
	return so
}

func isHTML(opt *kit.SendOptions) bool { return strings.EqualFold(opt.ParseMode, tele.ModeHTML) }

// SendText sends text, split when too long. The returned ref is the first
// chunk, which also carries the reply markup.
func (a *Adapter) SendText(ctx context.Context, to kit.ChatTarget, text string, opt *kit.SendOptions) (kit.MessageRef, error) {
	if opt == nil {
		opt = &kit.SendOptions{}
	}
	var first kit.MessageRef
	err := a.sendChunks(ctx, to, splitText(text, textLimit, isHTML(opt)), opt, func(m *tele.Message) {
		first = kit.MessageRef{ChatID: to.ChatID, ThreadID: to.ThreadID, MessageID: m.ID}
	})
	return first, err
}

func (a *Adapter) sendChunks(ctx context.Context, to kit.ChatTarget, chunks []string, opt *kit.SendOptions, onFirst func(*tele.Message)) error {
	chat := &tele.Chat{ID: to.ChatID}
	for i, chunk := range chunks {
		if err := ctx.Err(); err != nil {
			return err
		}
		m, err := a.bot.Send(chat, chunk, sendOptions(opt, to.ThreadID, i == 0 && onFirst != nil))
		if err != nil {
			return err
		}
		if i == 0 && onFirst != nil {
			onFirst(m)
		}
	}
	return nil
}

// EditText replaces ref's text. Overflow beyond one message is sent as new
// messages. An edit to identical content counts as success.
func (a *Adapter) EditText(ctx context.Context, ref kit.MessageRef, text string, opt *kit.SendOptions) error {
	if opt == nil {
		opt = &kit.SendOptions{}
	}
	chunks := splitText(text, textLimit, isHTML(opt))
	msg := &tele.Message{ID: ref.MessageID, Chat: &tele.Chat{ID: ref.ChatID}}
	if _, err := a.bot.Edit(msg, chunks[0], sendOptions(opt, 0, true)); err != nil && !isNotModified(err) {
		return err
	}
	return a.sendChunks(ctx, ref.Target(), chunks[1:], opt, nil)
}

func (a *Adapter) AnswerCallback(ctx context.Context, callbackID string, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return a.bot.Respond(&tele.Callback{ID: callbackID}, &tele.CallbackResponse{Text: text})
}

func (a *Adapter) DeleteMessage(ctx context.Context, ref kit.MessageRef) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return a.bot.Delete(&tele.Message{ID: ref.MessageID, Chat: &tele.Chat{ID: ref.ChatID}})
}

// PinMessage pins ref without notifying members.
func (a *Adapter) PinMessage(ctx context.Context, ref kit.MessageRef) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return a.bot.Pin(&tele.Message{ID: ref.MessageID, Chat: &tele.Chat{ID: ref.ChatID}}, tele.Silent)
}

// isNotModified reports Telegram's "message is not modified" rejection.
func isNotModified(err error) bool {
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "message is not modified")
}
