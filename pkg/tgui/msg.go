package tgui

import (
	"context"
	"strings"

	"jobdesk/internal/transport"

	tele "gopkg.in/telebot.v4"
)

// Message is a rendered payload: HTML text plus send options.
type Message struct {
	Text string
	Opt  *transport.SendOptions
}

// Send posts m through ad.
func (m Message) Send(ctx context.Context, ad transport.Adapter, to transport.ChatTarget) (transport.MessageRef, error) {
	return ad.SendText(ctx, to, m.Text, m.options())
}

// Edit replaces the message at ref with m.
func (m Message) Edit(ctx context.Context, ad transport.Adapter, ref transport.MessageRef) error {
	return ad.EditText(ctx, ref, m.Text, m.options())
}

func (m Message) options() *transport.SendOptions {
	if m.Opt == nil {
		return &transport.SendOptions{ParseMode: ParseModeHTML, DisablePreview: true}
	}
	return m.Opt
}

// Builder assembles HTML lines. Every text input is escaped.
type Builder struct {
	rm    *tele.ReplyMarkup
	lines []string
}

func New() *Builder { return &Builder{} }

// Inline attaches an inline keyboard. nil or empty keyboards are ignored.
func (b *Builder) Inline(kb *Inline) *Builder {
	if kb == nil || kb.Rows() == 0 {
		b.rm = nil
		return b
	}
	b.rm = kb.Markup()
	return b
}

// Title adds a bold title line. emoji is optional.
func (b *Builder) Title(emoji, title string) *Builder {
	t := strings.TrimSpace(title)
	if t == "" {
		return b
	}
	line := B(t)
	if e := strings.TrimSpace(emoji); e != "" {
		line = Esc(e) + " " + line
	}
	b.lines = append(b.lines, string(line))
	return b
}

// Line adds an escaped line; blank input adds an empty line.
func (b *Builder) Line(s string) *Builder {
	b.lines = append(b.lines, string(Esc(s)))
	return b
}

// HTML adds a pre-built safe line.
func (b *Builder) HTML(h H) *Builder {
	b.lines = append(b.lines, string(h))
	return b
}

func (b *Builder) Blank() *Builder { return b.Line("") }

// KV adds "• key: value".
func (b *Builder) KV(key, value string) *Builder {
	key = strings.TrimSpace(key)
	if key == "" {
		return b
	}
	b.lines = append(b.lines, "• "+string(B(key))+": "+string(Esc(strings.TrimSpace(value))))
	return b
}

// Bullets adds one "• item" line per non-blank item.
func (b *Builder) Bullets(items ...string) *Builder {
	for _, it := range items {
		if it = strings.TrimSpace(it); it != "" {
			b.Line("• " + it)
		}
	}
	return b
}

func (b *Builder) Build() Message {
	text := strings.Trim(strings.Join(b.lines, "\n"), "\n")
	opt := &transport.SendOptions{ParseMode: ParseModeHTML, DisablePreview: true}
	if b.rm != nil {
		opt.ReplyMarkupAdapter = b.rm
	}
	return Message{Text: text, Opt: opt}
}
