package router

import (
	"sort"
	"strings"

	kit "jobdesk/internal/transport"
)

// Telegram limits for setMyCommands.
const (
	menuNameMax  = 32
	menuDescMax  = 256
	menuEntryMax = 100
)

// sanitizeTelegramCommand maps s onto Telegram's [a-z0-9_]{1,32} command
// alphabet. Separators collapse to one underscore; other runes are dropped.
func sanitizeTelegramCommand(s string) string {
	var b strings.Builder
	pendingSep := false
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			if pendingSep && b.Len() > 0 {
				b.WriteByte('_')
			}
			pendingSep = false
			b.WriteRune(r)
		case r == '_', r == '-', r == '/', r == ' ', r == '\t':
			pendingSep = true
		}
	}
	out := b.String()
	if out == "" {
		return ""
	}
	if out[0] >= '0' && out[0] <= '9' {
		out = "cmd_" + out
	}
	if len(out) > menuNameMax {
		out = strings.TrimRight(out[:menuNameMax], "_")
	}
	return out
}

// menuName is the single-token name a route is reachable by, e.g.
// "board init" becomes "board_init".
func menuName(route []string) (string, bool) {
	out := sanitizeTelegramCommand(strings.Join(route, "_"))
	return out, out != ""
}

// menuCommands builds the autocomplete list: top-level entries first, then
// shortcuts for multi-token routes, capped at Telegram's limit.
func menuCommands(root *cmdNode, cmds []Command) []kit.BotCommand {
	type entry struct {
		kit.BotCommand
		prio int
	}
	byName := map[string]entry{}
	add := func(name, desc string, locked bool, prio int) {
		if name = sanitizeTelegramCommand(name); name == "" {
			return
		}
		desc = strings.Join(strings.Fields(desc), " ")
		if desc == "" {
			desc = name
		}
		if locked {
			desc = "🔒 " + desc
		}
		if len(desc) > menuDescMax {
			desc = desc[:menuDescMax]
		}
		if cur, ok := byName[name]; ok && cur.prio <= prio {
			return
		}
		byName[name] = entry{kit.BotCommand{Command: name, Description: desc}, prio}
	}

	for _, name := range root.childNames() {
		if n, _ := root.child(name); n != nil {
			add(name, nodeSummary(n), ownerOnly(n), 0)
		}
	}
	for _, c := range cmds {
		route := splitRoute(c.Route)
		if len(route) < 2 {
			continue
		}
		if name, ok := menuName(route); ok {
			desc := c.Description
			if strings.TrimSpace(desc) == "" {
				desc = strings.Join(route, " ")
			}
			add(name, desc, c.Access == AccessOwnerOnly, 1)
		}
	}

	entries := make([]entry, 0, len(byName))
	for _, e := range byName {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].prio != entries[j].prio {
			return entries[i].prio < entries[j].prio
		}
		return entries[i].Command < entries[j].Command
	})

	out := make([]kit.BotCommand, 0, min(len(entries), menuEntryMax))
	for _, e := range entries[:min(len(entries), menuEntryMax)] {
		out = append(out, e.BotCommand)
	}
	return out
}
