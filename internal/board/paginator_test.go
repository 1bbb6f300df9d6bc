package board

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"jobdesk/internal/domain"
	"jobdesk/internal/storage"
	"jobdesk/internal/transport"
	logx "jobdesk/pkg/logx"
	"jobdesk/pkg/tgui"
)

type fakePublisher struct {
	mu       sync.Mutex
	next     int
	live     map[transport.MessageRef]string
	deleted  []transport.MessageRef
	pinned   []transport.MessageRef
	replaced int
}

func newFakePublisher() *fakePublisher {
	return &fakePublisher{live: map[transport.MessageRef]string{}}
}

func (f *fakePublisher) PublishBoard(_ context.Context, to transport.ChatTarget, msg tgui.Message) (transport.MessageRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.next++
	ref := transport.MessageRef{ChatID: to.ChatID, ThreadID: to.ThreadID, MessageID: f.next}
	f.live[ref] = msg.Text
	return ref, nil
}

func (f *fakePublisher) ReplaceBoard(_ context.Context, ref transport.MessageRef, msg tgui.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.live[ref]; !ok {
		return errors.New("message to edit not found")
	}
	f.live[ref] = msg.Text
	f.replaced++
	return nil
}

func (f *fakePublisher) DeleteMessage(_ context.Context, ref transport.MessageRef) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.live, ref)
	f.deleted = append(f.deleted, ref)
	return nil
}

func (f *fakePublisher) PinMessage(_ context.Context, ref transport.MessageRef) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pinned = append(f.pinned, ref)
	return nil
}

func setup(t *testing.T, openJobs int) (*Paginator, *storage.SQLite, *fakePublisher) {
	t.Helper()
	st, err := storage.Open(storage.Config{Path: filepath.Join(t.TempDir(), "board.db")}, logx.Nop())
	if err != nil {
		t.Fatalf("storage.Open() error = %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	for i := 0; i < openJobs; i++ {
		if _, err := st.CreateJob(context.Background(), 1, domain.NewJob{Title: "job"}); err != nil {
			t.Fatalf("CreateJob() error = %v", err)
		}
	}
	pub := newFakePublisher()
	return NewPaginator(st, pub, 8, logx.Nop()), st, pub
}

func TestRenderClamps(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name      string
		jobs      int
		page      int
		wantPage  int
		wantPages int
		wantLen   int
	}{
		{"empty", 0, 1, 1, 1, 0},
		{"seventeen page three", 17, 3, 3, 3, 1},
		{"seventeen clamp high", 17, 99, 3, 3, 1},
		{"seventeen clamp zero", 17, 0, 1, 3, 8},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			p, _, _ := setup(t, tc.jobs)
			got, err := p.Render(context.Background(), 1, tc.page)
			if err != nil {
				t.Fatalf("Render() error = %v", err)
			}
			if got.Page != tc.wantPage || got.TotalPages != tc.wantPages || len(got.Jobs) != tc.wantLen {
				t.Fatalf("Render() = page %d/%d with %d jobs", got.Page, got.TotalPages, len(got.Jobs))
			}
		})
	}
}

func TestRenderOrdersNewestFirst(t *testing.T) {
	t.Parallel()
	p, _, _ := setup(t, 10)

	got, _ := p.Render(context.Background(), 1, 1)
	if got.Jobs[0].ID != 10 || got.Jobs[7].ID != 3 {
		t.Fatalf("page 1 ids = %d..%d", got.Jobs[0].ID, got.Jobs[7].ID)
	}
}

func TestSyncWithoutBoard(t *testing.T) {
	t.Parallel()
	p, _, pub := setup(t, 3)

	if _, err := p.Sync(context.Background(), 1, 0); !errors.Is(err, domain.ErrNoBoard) {
		t.Fatalf("Sync() error = %v, want ErrNoBoard", err)
	}
	if len(pub.live) != 0 {
		t.Fatalf("Sync() must not create a board")
	}
}

func TestSyncMovesAndClamps(t *testing.T) {
	t.Parallel()
	p, st, pub := setup(t, 17)
	ctx := context.Background()

	view, err := p.Init(ctx, 1, transport.ChatTarget{ChatID: -100}, true)
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	if len(pub.pinned) != 1 {
		t.Fatalf("Init(pin) should pin")
	}
	for _, step := range []struct{ delta, want int }{{+1, 2}, {+1, 3}, {+1, 3}, {-5, 1}, {0, 1}} {
		page, err := p.Sync(ctx, 1, step.delta)
		if err != nil {
			t.Fatalf("Sync(%d) error = %v", step.delta, err)
		}
		stored, _ := st.GetBoardView(ctx, 1)
		if page.Page != step.want || stored.Page != step.want {
			t.Fatalf("Sync(%d) page = %d stored = %d, want %d", step.delta, page.Page, stored.Page, step.want)
		}
	}
	if !strings.Contains(pub.live[view.Ref], "Page 1/3 • 17 open job(s)") {
		t.Fatalf("board text = %q", pub.live[view.Ref])
	}
}

func TestInitSupersedes(t *testing.T) {
	t.Parallel()
	p, st, pub := setup(t, 2)
	ctx := context.Background()

	first, _ := p.Init(ctx, 1, transport.ChatTarget{ChatID: -100}, false)
	_, _ = p.Sync(ctx, 1, 0)
	second, err := p.Init(ctx, 1, transport.ChatTarget{ChatID: -100, ThreadID: 4}, false)
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	if len(pub.deleted) != 1 || pub.deleted[0] != first.Ref {
		t.Fatalf("deleted = %v, want first board", pub.deleted)
	}
	if len(pub.live) != 1 {
		t.Fatalf("live boards = %d, want 1", len(pub.live))
	}
	stored, _ := st.GetBoardView(ctx, 1)
	if stored.Ref != second.Ref || stored.Page != 1 {
		t.Fatalf("stored view = %+v", stored)
	}
}

func TestFormat(t *testing.T) {
	t.Parallel()

	page := Page{
		Window: domain.PageWindow(1, 1, 8),
		Jobs: []domain.Job{
			{ID: 4, Title: "Post <promo> codes", Category: "promo codes", OpenToAll: true},
		},
	}
	msg := Format(page)
	for _, want := range []string{"<b>#4</b> Post &lt;promo&gt; codes", "promo codes • ✅ Open to all", "Page 1/1 • 1 open job(s)"} {
		if !strings.Contains(msg.Text, want) {
			t.Fatalf("Format() missing %q in %q", want, msg.Text)
		}
	}
	if msg.Opt.ReplyMarkupAdapter == nil {
		t.Fatalf("Format() should attach the pager keyboard")
	}
	empty := Format(Page{Window: domain.PageWindow(0, 1, 8)})
	if !strings.Contains(empty.Text, "No open jobs right now.") {
		t.Fatalf("empty board text = %q", empty.Text)
	}
}
