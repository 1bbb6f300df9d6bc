package router

import (
	"context"
	"strings"
	"time"

	kit "jobdesk/internal/transport"
	logx "jobdesk/pkg/logx"
)

const menuUpdateTimeout = 5 * time.Second

func (m *CommandManager) helpCommand() Command {
	return Command{
		Route:       "help",
		Aliases:     []string{"h", "start"},
		Description: "show available commands",
		Usage:       "/help [cmd] [sub...]",
		Handle: func(ctx context.Context, req *Request) error {
			return req.Reply(ctx, m.helpText(req.Args))
		},
	}
}

// SetRegistry replaces every route at once. /help is always added. The bot
// menu is refreshed in the background when the adapter supports it.
func (m *CommandManager) SetRegistry(cmds []Command, cbs []CallbackRoute) {
	cmds = append(cmds, m.helpCommand())

	t := emptyRoutes()
	var listed []Command
	for _, c := range cmds {
		route := splitRoute(c.Route)
		if len(route) == 0 || c.Handle == nil {
			continue
		}
		t.root.add(route, c)
		listed = append(listed, c)
		t.addAliases(route, c.Aliases)
	}
	for _, r := range cbs {
		r.Scope, r.Action = strings.TrimSpace(r.Scope), strings.TrimSpace(r.Action)
		if r.Scope == "" || r.Action == "" || r.Handle == nil {
			continue
		}
		if t.callbacks[r.Scope] == nil {
			t.callbacks[r.Scope] = map[string]CallbackRoute{}
		}
		t.callbacks[r.Scope][r.Action] = r
	}

	m.mu.Lock()
	m.routes = t
	m.mu.Unlock()

	m.publishMenu(menuCommands(t.root, listed))
}

// addAliases registers explicit aliases plus the Telegram-safe menu name of
// multi-token routes (/board_init). A single-token route is never aliased to
// itself, which would stop "/board init" from reaching the subcommand.
func (t *routeTable) addAliases(route []string, aliases []string) {
	leaf := t.root.find(route)
	if leaf == nil {
		return
	}
	setOnce := func(name string) {
		if _, taken := t.alias[name]; name != "" && !taken {
			t.alias[name] = leaf
		}
	}
	if name, ok := menuName(route); ok && (len(route) > 1 || name != route[0]) {
		setOnce(name)
	}
	for _, a := range aliases {
		a = strings.TrimSpace(a)
		if a == "" || strings.Contains(a, " ") {
			continue
		}
		t.alias[a] = leaf
		setOnce(sanitizeTelegramCommand(a))
	}
}

func (m *CommandManager) publishMenu(menu []kit.BotCommand) {
	up, ok := m.adapter.(kit.CommandMenuUpdater)
	if !ok {
		return
	}
	run := func(parent context.Context) {
		ctx, cancel := context.WithTimeout(parent, menuUpdateTimeout)
		defer cancel()
		if err := up.UpdateMenuCommands(ctx, menu); err != nil {
			m.log.Warn("menu update failed", logx.Err(err))
		}
	}

	m.runMu.Lock()
	appSup := m.appSup
	m.runMu.Unlock()
	if appSup != nil {
		appSup.Go0("telegram.menu.update", run)
		return
	}
	go run(context.Background())
}
