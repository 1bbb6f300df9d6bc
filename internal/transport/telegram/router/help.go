package router

import (
	"sort"
	"strings"

	"jobdesk/pkg/tgui"
)

const helpTip = "Tip: reply to a member's message to target them with /admin, /warn or /rotation."

// helpText renders HTML help for the node at path, or the top-level list.
func (m *CommandManager) helpText(path []string) string {
	t := m.table()
	root, alias := t.root, t.alias

	if len(path) == 0 {
		return helpTop(root)
	}
	cur, full := root, make([]string, 0, len(path))
	for _, p := range path {
		if n, ok := cur.child(p); ok {
			cur, full = n, append(full, p)
			continue
		}
		if leaf := alias[p]; leaf != nil && leaf.cmd != nil {
			cur, full = leaf, splitRoute(leaf.cmd.Route)
			break
		}
		return tgui.New().
			Title("❓", "Unknown command").
			HTML("Type "+tgui.Code("/help")+" to list commands.").
			Build().Text
	}
	return helpNode(cur, full)
}

// entryLine renders "• [🔒 ]<code>/cmd</code> - desc".
func entryLine(cmd, desc string, locked bool) tgui.H {
	h := tgui.Raw("• ")
	if locked {
		h += "🔒 "
	}
	h += tgui.Code(cmd)
	if desc != "" {
		h += " - " + tgui.Esc(desc)
	}
	return h
}

func helpTop(root *cmdNode) string {
	type row struct {
		name, desc string
		lock       bool
	}
	var rows []row
	for _, name := range root.childNames() {
		if n, _ := root.child(name); n != nil {
			rows = append(rows, row{name, nodeSummary(n), ownerOnly(n)})
		}
	}
	// Owner-only entries go last; names stay sorted within each group.
	sort.SliceStable(rows, func(i, j int) bool { return !rows[i].lock && rows[j].lock })

	b := tgui.New().
		Title("📚", "Commands").
		HTML("Type " + tgui.Code("/help <cmd>") + " for details.").
		Blank()
	for _, r := range rows {
		b.HTML(entryLine("/"+r.name, r.desc, r.lock))
	}
	return b.Blank().Line(helpTip).Build().Text
}

func helpNode(cur *cmdNode, full []string) string {
	b := tgui.New().HTML("📚 " + tgui.B("Help") + " " + tgui.Code("/"+strings.Join(full, " ")))

	if c := cur.cmd; c != nil {
		if d := strings.TrimSpace(c.Description); d != "" {
			b.Line(d)
		}
		if c.Access == AccessOwnerOnly {
			b.HTML("🔒 " + tgui.I("Owner only"))
		}
		if u := strings.TrimSpace(c.Usage); u != "" {
			b.Blank().HTML(tgui.B("Usage")).HTML(tgui.Code(u))
		}
		if short := shortcuts(*c); len(short) > 0 {
			b.Blank().HTML(tgui.B("Shortcuts"))
			for _, s := range short {
				b.HTML("• " + tgui.Code("/"+s))
			}
		}
	} else {
		b.Line("Command group.")
		if ownerOnly(cur) {
			b.HTML("🔒 " + tgui.I("Owner only"))
		}
	}

	if len(cur.children) > 0 {
		b.Blank().HTML(tgui.B("Subcommands"))
		for _, name := range cur.childNames() {
			n, _ := cur.child(name)
			if n == nil {
				continue
			}
			cmd := "/" + strings.Join(append(append([]string(nil), full...), name), " ")
			b.HTML(entryLine(cmd, nodeSummary(n), ownerOnly(n)))
		}
	}
	return b.Build().Text
}

// nodeSummary is a command's description, or a hint of a group's children.
func nodeSummary(n *cmdNode) string {
	if n.cmd != nil {
		if d := strings.TrimSpace(n.cmd.Description); d != "" {
			return d
		}
	}
	kids := n.childNames()
	if len(kids) == 0 {
		return ""
	}
	shown := kids[:min(3, len(kids))]
	s := "subcommands: " + strings.Join(shown, ", ")
	if len(kids) > len(shown) {
		s += ", …"
	}
	return s
}

// ownerOnly reports whether n, or every command below a group, is owner-only.
func ownerOnly(n *cmdNode) bool {
	if n.cmd != nil {
		return n.cmd.Access == AccessOwnerOnly
	}
	for _, ch := range n.children {
		if !ownerOnly(ch) {
			return false
		}
	}
	return true
}

// shortcuts lists the alternative names a command answers to.
func shortcuts(c Command) []string {
	seen := map[string]bool{}
	var out []string
	add := func(s string) {
		if s != "" && !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	if name, ok := menuName(splitRoute(c.Route)); ok {
		add(name)
	}
	for _, a := range c.Aliases {
		if a = strings.TrimSpace(a); a == "" || strings.Contains(a, " ") {
			continue
		}
		add(a)
		add(sanitizeTelegramCommand(a))
	}
	sort.Strings(out)
	return out
}
