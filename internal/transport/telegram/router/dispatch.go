package router

import (
	"context"
	"runtime/debug"
	"strconv"
	"strings"
	"time"

	"jobdesk/internal/runtime/supervisor"
	kit "jobdesk/internal/transport"
	logx "jobdesk/pkg/logx"
)

const (
	drainTimeout = 3 * time.Second
	busyText     = "Busy, try again."
)

// DispatchLoop reads updates until ctx ends or updates closes. Handlers run
// on the worker pool; a full queue answers "busy" instead of blocking.
func (m *CommandManager) DispatchLoop(ctx context.Context, updates <-chan kit.Update) error {
	sup := supervisor.New(ctx,
		supervisor.WithLogger(m.log.With(logx.Component("telegram.router"))),
		supervisor.WithCancelOnError(false),
	)
	m.setSupervisor(sup, true)
	m.log.Info("command dispatcher started", logx.Int("workers", m.workers), logx.Int("job_queue_cap", cap(m.jobs)))

	for i := range m.workers {
		sup.GoRestart("command.worker."+strconv.Itoa(i), func(c context.Context) error {
			return m.work(c, i)
		}, supervisor.WithRestartBackoff(200*time.Millisecond, 5*time.Second))
	}

	defer func() {
		// Not running before close so late submits degrade to "busy".
		m.setSupervisor(sup, false)
		close(m.jobs)
		wctx, cancel := context.WithTimeout(context.Background(), drainTimeout)
		_ = sup.Wait(wctx)
		cancel()
		m.setSupervisor(nil, false)
		m.log.Info("command dispatcher stopped")
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case up, ok := <-updates:
			if !ok {
				m.log.Info("updates channel closed")
				return nil
			}
			switch up.Kind {
			case kit.UpdateMessage:
				m.routeMessage(ctx, up)
			case kit.UpdateCallback:
				m.routeCallback(ctx, up)
			}
		}
	}
}

func (m *CommandManager) work(ctx context.Context, idx int) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case job, ok := <-m.jobs:
			if !ok {
				return nil
			}
			m.runJob(idx, job)
		}
	}
}

// runJob keeps the worker alive if a job panics past the middleware.
func (m *CommandManager) runJob(idx int, job func()) {
	if job == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			m.log.Error("panic in command job", logx.Int("worker", idx), logx.Any("panic", r), logx.Stack(string(debug.Stack())))
		}
	}()
	job()
}

// submit enqueues without blocking. It tolerates a closed queue during shutdown.
func (m *CommandManager) submit(fn func()) (ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	select {
	case m.jobs <- fn:
		return true
	default:
		return false
	}
}

// commandWord extracts the lowercased command from "/Cmd@bot".
func commandWord(tok string) string {
	w := strings.ToLower(strings.TrimPrefix(tok, "/"))
	if i := strings.IndexByte(w, '@'); i >= 0 {
		w = w[:i]
	}
	return w
}

func (m *CommandManager) routeMessage(ctx context.Context, up kit.Update) {
	msg := up.Message
	if msg == nil {
		return
	}
	text := strings.TrimSpace(msg.Text)
	if !strings.HasPrefix(text, "/") {
		return
	}
	parts := tokenizeCommandLine(text)
	if len(parts) == 0 {
		return
	}
	word, args := commandWord(parts[0]), parts[1:]
	to := kit.ChatTarget{ChatID: msg.ChatID, ThreadID: msg.ThreadID}
	t := m.table()

	if leaf := t.alias[word]; leaf != nil && leaf.cmd != nil {
		m.runCommand(ctx, up, *leaf.cmd, splitRoute(leaf.cmd.Route), args)
		return
	}
	top, ok := t.root.child(word)
	if !ok {
		// Groups share the chat with other bots; stay quiet there.
		if !msg.IsGroup {
			_, _ = m.adapter.SendText(ctx, to, "Unknown command. Try /help", nil)
		}
		return
	}
	node, sub, rest := top.descend(args)
	path := append([]string{word}, sub...)
	if node.cmd == nil {
		_, _ = m.adapter.SendText(ctx, to, m.helpText(path), htmlOpts())
		return
	}
	m.runCommand(ctx, up, *node.cmd, path, rest)
}

func (m *CommandManager) newRequest(up kit.Update, chat kit.ChatTarget, fromID int64, fromName, key string) *Request {
	rid := newReqID()
	return &Request{
		Update:   up,
		Chat:     chat,
		FromID:   fromID,
		FromName: fromName,
		Command:  key,
		ReqID:    rid,
		Adapter:  m.adapter,
		Logger: m.log.With(
			logx.String("rid", rid),
			logx.Int64("chat_id", chat.ChatID),
			logx.Int64("from_id", fromID),
			logx.String("cmd", key),
		),
	}
}

func (m *CommandManager) runCommand(ctx context.Context, up kit.Update, cmd Command, path, args []string) {
	msg := up.Message
	to := kit.ChatTarget{ChatID: msg.ChatID, ThreadID: msg.ThreadID}
	if cmd.Access == AccessOwnerOnly && !m.isOwner(msg.FromID) {
		_, _ = m.adapter.SendText(ctx, to, "unauthorized", nil)
		return
	}

	req := m.newRequest(up, to, msg.FromID, msg.FromName, cmd.Route)
	req.Path = path
	req.RawArgs = args
	req.Args, req.Flags, req.BoolFlags = parseFlags(args)
	req.ReplyToID, req.ReplyToName = msg.ReplyToFromID, msg.ReplyToFromName

	h := m.wrap(cmd.Handle, cmd.Timeout)
	if !m.submit(func() { _ = h(ctx, req) }) {
		_, _ = m.adapter.SendText(ctx, to, busyText, nil)
	}
}

func (m *CommandManager) routeCallback(ctx context.Context, up kit.Update) {
	cb := up.Callback
	if cb == nil {
		return
	}
	scope, rest, ok := strings.Cut(strings.TrimSpace(cb.Data), ":")
	if !ok {
		_ = m.adapter.AnswerCallback(ctx, cb.ID, "")
		return
	}
	action, payload, _ := strings.Cut(rest, ":")
	route, ok := m.table().callbacks[scope][action]
	if !ok {
		_ = m.adapter.AnswerCallback(ctx, cb.ID, "")
		return
	}
	if route.Access == CallbackAccessOwnerOnly && !m.isOwner(cb.FromID) {
		_ = m.adapter.AnswerCallback(ctx, cb.ID, "forbidden")
		return
	}

	req := m.newRequest(up, kit.ChatTarget{ChatID: cb.ChatID, ThreadID: cb.ThreadID}, cb.FromID, cb.FromName, route.key())
	req.Payload = payload
	h := m.wrap(func(c context.Context, r *Request) error {
		return route.Handle(c, r, payload)
	}, route.Timeout)

	// Handlers answer with a toast when they have one; Telegram ignores the
	// second, empty answer.
	if !m.submit(func() {
		_ = h(ctx, req)
		_ = m.adapter.AnswerCallback(ctx, cb.ID, "")
	}) {
		_ = m.adapter.AnswerCallback(ctx, cb.ID, busyText)
	}
}
