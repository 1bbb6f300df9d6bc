package router

import (
	"context"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	kit "jobdesk/internal/transport"
	logx "jobdesk/pkg/logx"
)

func TestTokenizeCommandLine(t *testing.T) {
	t.Parallel()
	cases := []struct {
		in   string
		want []string
	}{
		{"", nil},
		{"/job_list", []string{"/job_list"}},
		{`/job_post "Write recap" --category promo`, []string{"/job_post", "Write recap", "--category", "promo"}},
		{`/role add 'Senior  Writer'`, []string{"/role", "add", "Senior  Writer"}},
		{`/job_post “Smart quotes” x`, []string{"/job_post", "Smart quotes", "x"}},
		{`/a b\ c`, []string{"/a", "b c"}},
		{`/a ""`, []string{"/a", ""}},
	}
	for _, c := range cases {
		if got := tokenizeCommandLine(c.in); !reflect.DeepEqual(got, c.want) {
			t.Fatalf("tokenize(%q)=%q want %q", c.in, got, c.want)
		}
	}
}

func TestParseFlags(t *testing.T) {
	t.Parallel()
	pos, flags, bools := parseFlags([]string{"init", "--nopin", "--category", "promo", "-x=1", "-ab", "-42"})
	if !reflect.DeepEqual(pos, []string{"init", "-42"}) {
		t.Fatalf("pos=%q", pos)
	}
	if flags["category"] != "promo" || flags["x"] != "1" {
		t.Fatalf("flags=%v", flags)
	}
	if !bools["nopin"] || !bools["a"] || !bools["b"] {
		t.Fatalf("bools=%v", bools)
	}
}

func TestSanitizeTelegramCommand(t *testing.T) {
	t.Parallel()
	cases := map[string]string{
		"Board Init":    "board_init",
		"set-min-role":  "set_min_role",
		"__x__":         "x",
		"9lives":        "cmd_9lives",
		"!!!":           "",
		"job/claim now": "job_claim_now",
	}
	for in, want := range cases {
		if got := sanitizeTelegramCommand(in); got != want {
			t.Fatalf("sanitize(%q)=%q want %q", in, got, want)
		}
	}
}

type fakeAdapter struct {
	mu       sync.Mutex
	sent     []string
	answered []string
	menu     []kit.BotCommand
}

func (f *fakeAdapter) Start(context.Context, chan<- kit.Update) error { return nil }
func (f *fakeAdapter) Stop(context.Context) error                      { return nil }
func (f *fakeAdapter) SendText(_ context.Context, _ kit.ChatTarget, text string, _ *kit.SendOptions) (kit.MessageRef, error) {
	f.mu.Lock()
	f.sent = append(f.sent, text)
	f.mu.Unlock()
	return kit.MessageRef{}, nil
}
func (f *fakeAdapter) EditText(context.Context, kit.MessageRef, string, *kit.SendOptions) error {
	return nil
}
func (f *fakeAdapter) DeleteMessage(context.Context, kit.MessageRef) error { return nil }
func (f *fakeAdapter) PinMessage(context.Context, kit.MessageRef) error    { return nil }
func (f *fakeAdapter) AnswerCallback(_ context.Context, _ string, text string) error {
	f.mu.Lock()
	f.answered = append(f.answered, text)
	f.mu.Unlock()
	return nil
}

func (f *fakeAdapter) texts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sent...)
}

func runManager(t *testing.T, m *CommandManager) (chan<- kit.Update, func()) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan kit.Update, 8)
	done := make(chan struct{})
	go func() {
		_ = m.DispatchLoop(ctx, ch)
		close(done)
	}()
	return ch, func() {
		cancel()
		<-done
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met")
}

func message(from int64, text string) kit.Update {
	return kit.Update{Kind: kit.UpdateMessage, Message: &kit.Message{ChatID: -100, FromID: from, FromName: "Ann", Text: text, IsGroup: true}}
}

func TestRoutesSubcommandsAliasesAndFlags(t *testing.T) {
	t.Parallel()
	ad := &fakeAdapter{}
	m := NewCommandManager(logx.Nop(), ad, []int64{1}, Options{Workers: 2})

	got := make(chan *Request, 4)
	handle := func(ctx context.Context, r *Request) error { got <- r; return nil }
	m.SetRegistry([]Command{
		{Route: "board init", Handle: handle},
		{Route: "job_post", Aliases: []string{"job_add"}, Handle: handle},
		{Route: "status", Access: AccessOwnerOnly, Handle: handle},
	}, nil)
	in, stop := runManager(t, m)
	defer stop()

	in <- message(2, "/board init --nopin")
	r := <-got
	if r.Command != "board init" || !r.BoolFlags["nopin"] || r.Workspace() != -100 {
		t.Fatalf("req=%+v", r)
	}

	in <- message(2, "/board_init@jobdesk_bot")
	if r = <-got; r.Command != "board init" {
		t.Fatalf("alias cmd=%q", r.Command)
	}

	in <- message(2, `/job_add "Recap" --category promo`)
	r = <-got
	if r.Command != "job_post" || !reflect.DeepEqual(r.Args, []string{"Recap"}) || r.Flags["category"] != "promo" {
		t.Fatalf("req=%+v", r)
	}
	if r.ReqID == "" || r.FromName != "Ann" {
		t.Fatalf("req meta=%+v", r)
	}

	in <- message(2, "/status")
	waitFor(t, func() bool {
		for _, s := range ad.texts() {
			if s == "unauthorized" {
				return true
			}
		}
		return false
	})

	in <- message(1, "/status")
	if r = <-got; r.Command != "status" {
		t.Fatalf("owner cmd=%q", r.Command)
	}
}

func TestContainerShowsHelp(t *testing.T) {
	t.Parallel()
	ad := &fakeAdapter{}
	m := NewCommandManager(logx.Nop(), ad, nil, Options{Workers: 1})
	noop := func(context.Context, *Request) error { return nil }
	m.SetRegistry([]Command{
		{Route: "warn add", Description: "warn a member", Handle: noop},
		{Route: "warn remove", Handle: noop},
	}, nil)
	in, stop := runManager(t, m)
	defer stop()

	in <- message(2, "/warn")
	waitFor(t, func() bool {
		for _, s := range ad.texts() {
			if strings.Contains(s, "/warn add") && strings.Contains(s, "warn a member") {
				return true
			}
		}
		return false
	})
}

func TestRoutesCallbacks(t *testing.T) {
	t.Parallel()
	ad := &fakeAdapter{}
	m := NewCommandManager(logx.Nop(), ad, []int64{1}, Options{Workers: 1})
	payloads := make(chan string, 2)
	m.SetRegistry(nil, []CallbackRoute{
		{Scope: "job", Action: "claim", Handle: func(_ context.Context, r *Request, p string) error {
			payloads <- p
			return nil
		}},
		{Scope: "ops", Action: "reset", Access: CallbackAccessOwnerOnly, Handle: func(context.Context, *Request, string) error {
			payloads <- "reset"
			return nil
		}},
	})
	in, stop := runManager(t, m)
	defer stop()

	in <- kit.Update{Kind: kit.UpdateCallback, Callback: &kit.Callback{ID: "c1", FromID: 2, ChatID: -100, Data: "job:claim:42"}}
	if p := <-payloads; p != "42" {
		t.Fatalf("payload=%q", p)
	}

	in <- kit.Update{Kind: kit.UpdateCallback, Callback: &kit.Callback{ID: "c2", FromID: 2, ChatID: -100, Data: "ops:reset"}}
	waitFor(t, func() bool {
		ad.mu.Lock()
		defer ad.mu.Unlock()
		for _, a := range ad.answered {
			if a == "forbidden" {
				return true
			}
		}
		return false
	})
	select {
	case p := <-payloads:
		t.Fatalf("owner-only callback ran: %q", p)
	default:
	}
}

func TestHelpListsOwnerCommandsLast(t *testing.T) {
	t.Parallel()
	m := NewCommandManager(logx.Nop(), &fakeAdapter{}, nil, Options{})
	noop := func(context.Context, *Request) error { return nil }
	m.SetRegistry([]Command{
		{Route: "audit", Description: "recent audit", Access: AccessOwnerOnly, Handle: noop},
		{Route: "job_list", Description: "list jobs", Handle: noop},
	}, nil)
	txt := m.helpText(nil)
	a, j := strings.Index(txt, "/audit"), strings.Index(txt, "/job_list")
	if a < 0 || j < 0 || a < j {
		t.Fatalf("help order wrong:\n%s", txt)
	}
	if !strings.Contains(m.helpText([]string{"nope"}), "Unknown command") {
		t.Fatalf("unknown help missing")
	}
}

func TestMenuCommandsOrderAndShortcuts(t *testing.T) {
	t.Parallel()
	noop := func(context.Context, *Request) error { return nil }
	root := newRoot()
	cmds := []Command{
		{Route: "job_list", Description: "list jobs", Handle: noop},
		{Route: "board init", Description: "create the board", Handle: noop},
		{Route: "board refresh", Handle: noop},
		{Route: "audit", Description: "recent audit", Access: AccessOwnerOnly, Handle: noop},
	}
	for _, c := range cmds {
		root.add(splitRoute(c.Route), c)
	}

	got := menuCommands(root, cmds)
	var names []string
	for _, c := range got {
		names = append(names, c.Command)
	}
	want := "audit,board,job_list,board_init,board_refresh"
	if strings.Join(names, ",") != want {
		t.Fatalf("menu=%v want %s", names, want)
	}
	if got[0].Description != "🔒 recent audit" {
		t.Fatalf("owner-only entry not marked: %q", got[0].Description)
	}
	if got[4].Description != "board refresh" {
		t.Fatalf("empty description should fall back to route, got %q", got[4].Description)
	}
}

func TestMiddlewareRecoverAndTimeout(t *testing.T) {
	t.Parallel()
	m := NewCommandManager(logx.Nop(), &fakeAdapter{}, nil, Options{DefaultTimeout: time.Second})
	req := &Request{Logger: logx.Nop()}

	err := m.wrap(func(context.Context, *Request) error { panic("boom") }, 0)(context.Background(), req)
	if err == nil || !strings.Contains(err.Error(), "boom") {
		t.Fatalf("panic not converted: %v", err)
	}

	var deadline time.Time
	_ = m.wrap(func(ctx context.Context, _ *Request) error {
		deadline, _ = ctx.Deadline()
		return nil
	}, 50*time.Millisecond)(context.Background(), req)
	if deadline.IsZero() || time.Until(deadline) > 50*time.Millisecond {
		t.Fatalf("route timeout not applied")
	}
}
