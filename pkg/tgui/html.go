package tgui

import (
	"fmt"
	"html"
	"strings"
)

// H is HTML that is safe to send with ParseMode "HTML".
type H string

func (h H) String() string { return string(h) }

// Esc escapes text for Telegram HTML parse mode.
func Esc(s string) H { return H(html.EscapeString(s)) }

// Raw marks s as already-safe HTML.
func Raw(s string) H { return H(s) }

func tag(name string, inner H) H { return H("<" + name + ">" + string(inner) + "</" + name + ">") }

func B(s string) H    { return tag("b", Esc(s)) }
func I(s string) H    { return tag("i", Esc(s)) }
func Code(s string) H { return tag("code", Esc(s)) }

func Link(text, url string) H {
	return H(fmt.Sprintf(`<a href="%s">%s</a>`, html.EscapeString(url), html.EscapeString(text)))
}

// Mention links to a Telegram user. An empty name falls back to the id.
func Mention(name string, userID int64) H {
	if strings.TrimSpace(name) == "" {
		name = fmt.Sprintf("user %d", userID)
	}
	return Link(name, fmt.Sprintf("tg://user?id=%d", userID))
}

// JoinH joins non-blank parts with sep.
func JoinH(sep string, parts ...H) H {
	ss := make([]string, 0, len(parts))
	for _, p := range parts {
		if strings.TrimSpace(string(p)) != "" {
			ss = append(ss, string(p))
		}
	}
	return H(strings.Join(ss, sep))
}
