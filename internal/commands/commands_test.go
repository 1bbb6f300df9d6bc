package commands

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"jobdesk/internal/board"
	"jobdesk/internal/category"
	"jobdesk/internal/desk"
	"jobdesk/internal/domain"
	"jobdesk/internal/eventbus"
	"jobdesk/internal/jobs"
	"jobdesk/internal/rotation"
	"jobdesk/internal/storage"
	"jobdesk/internal/transport"
	"jobdesk/internal/transport/telegram/router"
	logx "jobdesk/pkg/logx"
	"jobdesk/pkg/tgui"
)

const (
	ws       = -1001
	adminID  = 1
	mgrID    = 2
	modID    = 3
	writerID = 4
	guestID  = 5
)

// fakeChat records replies and callback answers, and backs the desk notifier.
type fakeChat struct {
	mu       sync.Mutex
	next     int
	replies  []string
	answers  []string
	messages map[transport.MessageRef]string
}

func newFakeChat() *fakeChat { return &fakeChat{messages: map[transport.MessageRef]string{}} }

func (f *fakeChat) Start(context.Context, chan<- transport.Update) error { return nil }
func (f *fakeChat) Stop(context.Context) error                            { return nil }
func (f *fakeChat) SendText(_ context.Context, _ transport.ChatTarget, text string, _ *transport.SendOptions) (transport.MessageRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replies = append(f.replies, text)
	return transport.MessageRef{}, nil
}
func (f *fakeChat) EditText(context.Context, transport.MessageRef, string, *transport.SendOptions) error {
	return nil
}
func (f *fakeChat) DeleteMessage(context.Context, transport.MessageRef) error { return nil }
func (f *fakeChat) PinMessage(context.Context, transport.MessageRef) error    { return nil }
func (f *fakeChat) AnswerCallback(_ context.Context, _ string, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.answers = append(f.answers, text)
	return nil
}

func (f *fakeChat) Announce(context.Context, int64, string) error { return nil }
func (f *fakeChat) Log(context.Context, int64, string) error      { return nil }
func (f *fakeChat) PublishBoard(_ context.Context, to transport.ChatTarget, msg tgui.Message) (transport.MessageRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.next++
	ref := transport.MessageRef{ChatID: to.ChatID, MessageID: f.next}
	f.messages[ref] = msg.Text
	return ref, nil
}
func (f *fakeChat) ReplaceBoard(_ context.Context, ref transport.MessageRef, msg tgui.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages[ref] = msg.Text
	return nil
}

func (f *fakeChat) lastReply() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.replies) == 0 {
		return ""
	}
	return f.replies[len(f.replies)-1]
}

func (f *fakeChat) lastAnswer() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.answers) == 0 {
		return ""
	}
	return f.answers[0]
}

type fakePerms struct{}

func (fakePerms) IsAdmin(_ context.Context, _, s int64) (bool, error) { return s == adminID, nil }
func (fakePerms) IsManagerOrAdmin(_ context.Context, _, s int64) (bool, error) {
	return s == adminID || s == mgrID, nil
}
func (fakePerms) IsModerator(_ context.Context, _, s int64) (bool, error) { return s == modID, nil }
func (fakePerms) HasMinimumClaimRole(_ context.Context, _, s int64) (bool, error) {
	return s == writerID, nil
}
func (fakePerms) DisplayName(_ context.Context, _, s int64) string { return fmt.Sprintf("u%d", s) }

func newSet(t *testing.T) (*Set, *fakeChat, *storage.SQLite) {
	t.Helper()
	st, err := storage.Open(storage.Config{Path: filepath.Join(t.TempDir(), "cmd.db")}, logx.Nop())
	if err != nil {
		t.Fatalf("storage.Open() error = %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	chat := newFakeChat()
	bus := eventbus.New()
	gate := category.NewGate(st, logx.Nop())
	d := desk.New(desk.Deps{
		Store:    st,
		Engine:   jobs.NewEngine(st, gate, logx.Nop()),
		Gate:     gate,
		Board:    board.NewPaginator(st, chat, 8, logx.Nop()),
		Rotation: rotation.New(rotation.Config{}, st, chat, nil, logx.Nop(), bus),
		Perms:    fakePerms{},
		Notify:   chat,
		Bus:      bus,
	}, logx.Nop())
	return New(Deps{Desk: d, Audit: st}, logx.Nop()), chat, st
}

func cmd(chat *fakeChat, from int64, args ...string) *router.Request {
	return &router.Request{
		Update:    transport.Update{Kind: transport.UpdateMessage},
		Chat:      transport.ChatTarget{ChatID: ws},
		FromID:    from,
		FromName:  fmt.Sprintf("u%d", from),
		Args:      args,
		RawArgs:   args,
		Flags:     map[string]string{},
		BoolFlags: map[string]bool{},
		ReqID:     "rid",
		Adapter:   chat,
		Logger:    logx.Nop(),
	}
}

func TestErrText(t *testing.T) {
	t.Parallel()
	cases := []struct {
		err  error
		want string
	}{
		{domain.ErrAlreadyClaimed, "Already claimed."},
		{domain.ErrClosed, "Job is closed."},
		{domain.ErrNotClaimed, "Job is not claimed."},
		{domain.ErrNotClosed, "Only closed jobs can be reopened."},
		{domain.ErrJobNotFound, "Job not found."},
		{fmt.Errorf("wrap: %w", domain.ErrNoBoard), "No job board yet. Run /board init first."},
		{domain.Infra(errors.New("disk full")), genericFailure},
		{errors.New("surprise"), genericFailure},
		{usage("/x <id>"), "Usage: <code>/x &lt;id&gt;</code>"},
	}
	for _, c := range cases {
		if got := errText(c.err); got != c.want {
			t.Fatalf("errText(%v)=%q want %q", c.err, got, c.want)
		}
	}
}

func TestIsClient(t *testing.T) {
	t.Parallel()
	if !isClient(domain.ErrAlreadyClaimed) || !isClient(usage("x")) {
		t.Fatalf("client errors misclassified")
	}
	if isClient(domain.Infra(errors.New("x"))) || isClient(errors.New("x")) {
		t.Fatalf("server errors misclassified")
	}
}

func TestSubjectResolution(t *testing.T) {
	t.Parallel()
	r := cmd(nil, adminID, "42")
	u, consumed, err := subject(r, 0, "u")
	if err != nil || u.ID != 42 || !consumed {
		t.Fatalf("id form: %+v %v %v", u, consumed, err)
	}

	r.ReplyToID, r.ReplyToName = 7, "Bo"
	u, consumed, err = subject(r, 0, "u")
	if err != nil || u.ID != 7 || u.Name != "Bo" || consumed {
		t.Fatalf("reply form: %+v %v %v", u, consumed, err)
	}

	_, _, err = subject(cmd(nil, adminID, "bob"), 0, "u")
	var ue usageError
	if !errors.As(err, &ue) {
		t.Fatalf("expected usage error, got %v", err)
	}
}

func TestRoleAndSubject(t *testing.T) {
	t.Parallel()
	name, u, err := roleAndSubject(cmd(nil, adminID, "Senior", "Writer", "42"), "u")
	if err != nil || name != "Senior Writer" || u.ID != 42 {
		t.Fatalf("got %q %+v %v", name, u, err)
	}
	if _, _, err := roleAndSubject(cmd(nil, adminID, "42"), "u"); err == nil {
		t.Fatalf("missing role name should fail")
	}
}

func TestJobFlow(t *testing.T) {
	t.Parallel()
	s, chat, st := newSet(t)
	ctx := context.Background()

	if err := s.jobPost(ctx, cmd(chat, guestID, "Nope")); err != nil {
		t.Fatalf("jobPost() error = %v", err)
	}
	if got := chat.lastReply(); got != "Only managers or chat admins can create jobs." {
		t.Fatalf("reply = %q", got)
	}

	r := cmd(chat, mgrID, "Write", "recap")
	r.Flags["category"] = "Reviews"
	if err := s.jobPost(ctx, r); err != nil {
		t.Fatalf("jobPost() error = %v", err)
	}
	job, err := st.GetJob(ctx, ws, 1)
	if err != nil || job.Title != "Write recap" || job.Category != "reviews" {
		t.Fatalf("job = %+v, %v", job, err)
	}

	if err := s.jobClaim(ctx, cmd(chat, writerID, "1")); err != nil {
		t.Fatalf("jobClaim() error = %v", err)
	}
	if got := chat.lastReply(); got != "✅ You claimed job #1." {
		t.Fatalf("reply = %q", got)
	}
	if err := s.jobClaim(ctx, cmd(chat, writerID, "#1")); err != nil {
		t.Fatalf("jobClaim() error = %v", err)
	}
	if got := chat.lastReply(); got != "Already claimed." {
		t.Fatalf("reply = %q", got)
	}

	if err := s.jobList(ctx, cmd(chat, guestID)); err != nil {
		t.Fatalf("jobList() error = %v", err)
	}
	if got := chat.lastReply(); !strings.Contains(got, "#1") || !strings.Contains(got, "claimed by") {
		t.Fatalf("list = %q", got)
	}

	if err := s.jobOpen(ctx, cmd(chat, mgrID, "1")); err != nil {
		t.Fatalf("jobOpen() error = %v", err)
	}
	if got := chat.lastReply(); got != "Only closed jobs can be reopened." {
		t.Fatalf("reply = %q", got)
	}

	if err := s.jobClaim(ctx, cmd(chat, writerID)); err != nil {
		t.Fatalf("jobClaim() error = %v", err)
	}
	if got := chat.lastReply(); !strings.HasPrefix(got, "Usage:") {
		t.Fatalf("reply = %q", got)
	}
}

func TestJobAddPipeForm(t *testing.T) {
	t.Parallel()
	s, chat, st := newSet(t)
	ctx := context.Background()
	r := cmd(chat, mgrID, "Promo", "post", "|", "promo", "codes", "|", "Two", "lines")
	if err := s.jobAdd(ctx, r); err != nil {
		t.Fatalf("jobAdd() error = %v", err)
	}
	job, err := st.GetJob(ctx, ws, 1)
	if err != nil {
		t.Fatalf("GetJob() error = %v", err)
	}
	if job.Title != "Promo post" || job.Description != "Two lines" || !job.OpenToAll {
		t.Fatalf("job = %+v", job)
	}
}

func TestCardClaimToasts(t *testing.T) {
	t.Parallel()
	s, chat, _ := newSet(t)
	ctx := context.Background()

	r := cmd(chat, writerID)
	r.Update = transport.Update{Kind: transport.UpdateCallback, Callback: &transport.Callback{ID: "cb"}}
	if err := s.cardClaim(ctx, r, "99"); err != nil {
		t.Fatalf("cardClaim() error = %v", err)
	}
	if got := chat.lastAnswer(); got != "Job not found." {
		t.Fatalf("toast = %q", got)
	}
}

func TestWarnViaReply(t *testing.T) {
	t.Parallel()
	s, chat, st := newSet(t)
	ctx := context.Background()

	r := cmd(chat, modID, "late", "again")
	r.ReplyToID, r.ReplyToName = writerID, "Wri"
	if err := s.warnAdd(ctx, r); err != nil {
		t.Fatalf("warnAdd() error = %v", err)
	}
	if got := chat.lastReply(); !strings.Contains(got, "Warned") || !strings.Contains(got, "late again") {
		t.Fatalf("reply = %q", got)
	}
	list, err := st.ListWarnings(ctx, ws, writerID, 10)
	if err != nil || len(list) != 1 || list[0].ModeratorID != modID {
		t.Fatalf("warnings = %+v, %v", list, err)
	}

	r = cmd(chat, guestID, "x")
	r.ReplyToID = writerID
	if err := s.warnAdd(ctx, r); err != nil {
		t.Fatalf("warnAdd() error = %v", err)
	}
	if got := chat.lastReply(); got != "You don't have permission to warn." {
		t.Fatalf("reply = %q", got)
	}
}

func TestCommandsAreRoutable(t *testing.T) {
	t.Parallel()
	s, _, _ := newSet(t)
	seen := map[string]bool{}
	for _, c := range s.Commands() {
		if c.Handle == nil || c.Timeout == 0 {
			t.Fatalf("command %q incomplete", c.Route)
		}
		if seen[c.Route] {
			t.Fatalf("duplicate route %q", c.Route)
		}
		seen[c.Route] = true
	}
	for _, cb := range s.Callbacks() {
		data := tgui.Data(cb.Scope, cb.Action, "1")
		if _, _, _, ok := tgui.ParseData(data); !ok {
			t.Fatalf("callback %s:%s not parseable", cb.Scope, cb.Action)
		}
	}
}
