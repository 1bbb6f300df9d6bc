package desk

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"jobdesk/internal/board"
	"jobdesk/internal/category"
	"jobdesk/internal/domain"
	"jobdesk/internal/eventbus"
	"jobdesk/internal/jobs"
	"jobdesk/internal/rotation"
	"jobdesk/internal/storage"
	"jobdesk/internal/transport"
	logx "jobdesk/pkg/logx"
	"jobdesk/pkg/tgui"
)

type fakeNotifier struct {
	mu        sync.Mutex
	next      int
	live      map[transport.MessageRef]string
	logs      []string
	announces []string
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{live: map[transport.MessageRef]string{}}
}

func (f *fakeNotifier) Announce(_ context.Context, _ int64, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.announces = append(f.announces, text)
	return nil
}

func (f *fakeNotifier) Log(_ context.Context, _ int64, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logs = append(f.logs, text)
	return nil
}

func (f *fakeNotifier) PublishBoard(_ context.Context, to transport.ChatTarget, msg tgui.Message) (transport.MessageRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.next++
	ref := transport.MessageRef{ChatID: to.ChatID, ThreadID: to.ThreadID, MessageID: f.next}
	f.live[ref] = msg.Text
	return ref, nil
}

func (f *fakeNotifier) ReplaceBoard(_ context.Context, ref transport.MessageRef, msg tgui.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.live[ref]; !ok {
		return errors.New("message to edit not found")
	}
	f.live[ref] = msg.Text
	return nil
}

func (f *fakeNotifier) DeleteMessage(_ context.Context, ref transport.MessageRef) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.live[ref]; !ok {
		return errors.New("message to delete not found")
	}
	delete(f.live, ref)
	return nil
}

func (f *fakeNotifier) PinMessage(context.Context, transport.MessageRef) error { return nil }

func (f *fakeNotifier) text(ref transport.MessageRef) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.live[ref]
}

func (f *fakeNotifier) lastLog() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.logs) == 0 {
		return ""
	}
	return f.logs[len(f.logs)-1]
}

// fakePerms grants by subject id.
type fakePerms struct {
	admins, managers, mods, claimers map[int64]bool
}

func (p fakePerms) IsAdmin(_ context.Context, _, s int64) (bool, error) { return p.admins[s], nil }
func (p fakePerms) IsManagerOrAdmin(_ context.Context, _, s int64) (bool, error) {
	return p.admins[s] || p.managers[s], nil
}
func (p fakePerms) IsModerator(_ context.Context, _, s int64) (bool, error) { return p.mods[s], nil }
func (p fakePerms) HasMinimumClaimRole(_ context.Context, _, s int64) (bool, error) {
	return p.claimers[s], nil
}
func (p fakePerms) DisplayName(context.Context, int64, int64) string { return "" }

const (
	ws       = -1001
	adminID  = 1
	mgrID    = 2
	modID    = 3
	writerID = 4
	guestID  = 5
)

type fixture struct {
	desk  *Service
	store *storage.SQLite
	note  *fakeNotifier
	bus   eventbus.Bus
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st, err := storage.Open(storage.Config{Path: filepath.Join(t.TempDir(), "desk.db")}, logx.Nop())
	if err != nil {
		t.Fatalf("storage.Open() error = %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	note := newFakeNotifier()
	bus := eventbus.New()
	gate := category.NewGate(st, logx.Nop())
	d := New(Deps{
		Store:    st,
		Engine:   jobs.NewEngine(st, gate, logx.Nop()),
		Gate:     gate,
		Board:    board.NewPaginator(st, note, 8, logx.Nop()),
		Rotation: rotation.New(rotation.Config{}, st, note, nil, logx.Nop(), bus),
		Perms: fakePerms{
			admins:   map[int64]bool{adminID: true},
			managers: map[int64]bool{mgrID: true},
			mods:     map[int64]bool{modID: true},
			claimers: map[int64]bool{writerID: true},
		},
		Notify: note,
		Bus:    bus,
	}, logx.Nop())
	return &fixture{desk: d, store: st, note: note, bus: bus}
}

func req(actor int64) Request {
	return Request{ID: "req-1", Workspace: ws, Chat: transport.ChatTarget{ChatID: ws, ThreadID: 9}, ActorID: actor}
}

func TestCreateJobRequiresManager(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	_, err := f.desk.CreateJob(context.Background(), req(guestID), NewJob{Title: "x"})
	if !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
}

func TestCreateJobPostsCardAndLogs(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	job, err := f.desk.CreateJob(ctx, req(mgrID), NewJob{Title: "Promo post", Category: "  Promo   Codes "})
	if err != nil {
		t.Fatalf("CreateJob() error = %v", err)
	}
	if !job.OpenToAll {
		t.Fatalf("seeded category should be open to all")
	}
	if job.BoardRef == nil || !strings.Contains(f.note.text(*job.BoardRef), "Job #1") {
		t.Fatalf("card not posted: %+v", job.BoardRef)
	}
	stored, err := f.store.GetJob(ctx, ws, job.ID)
	if err != nil || stored.BoardRef == nil || *stored.BoardRef != *job.BoardRef {
		t.Fatalf("board ref not stored: %+v %v", stored.BoardRef, err)
	}
	if !strings.Contains(f.note.lastLog(), "created by") {
		t.Fatalf("log line = %q", f.note.lastLog())
	}
}

func TestClaimRefreshesBoardAndCard(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	view, err := f.desk.InitBoard(ctx, req(adminID), false)
	if err != nil {
		t.Fatalf("InitBoard() error = %v", err)
	}
	job, err := f.desk.CreateJob(ctx, req(mgrID), NewJob{Title: "Interview recap"})
	if err != nil {
		t.Fatalf("CreateJob() error = %v", err)
	}
	if !strings.Contains(f.note.text(view.Ref), "Interview recap") {
		t.Fatalf("board not refreshed after create: %q", f.note.text(view.Ref))
	}

	if _, err := f.desk.ClaimJob(ctx, req(guestID), job.ID); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("role-gated claim by guest: %v", err)
	}
	if _, err := f.desk.ClaimJob(ctx, req(writerID), job.ID); err != nil {
		t.Fatalf("ClaimJob() error = %v", err)
	}
	if strings.Contains(f.note.text(view.Ref), "Interview recap") {
		t.Fatalf("claimed job still on board")
	}
	if !strings.Contains(f.note.text(*job.BoardRef), "Claimed by") {
		t.Fatalf("card not refreshed: %q", f.note.text(*job.BoardRef))
	}
	if _, err := f.desk.ClaimJob(ctx, req(adminID), job.ID); !errors.Is(err, domain.ErrAlreadyClaimed) {
		t.Fatalf("second claim: %v", err)
	}
}

func TestUnclaimNeedsClaimerOrModerator(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	job, _ := f.desk.CreateJob(ctx, req(mgrID), NewJob{Title: "t", Category: "promo codes"})
	if _, err := f.desk.ClaimJob(ctx, req(guestID), job.ID); err != nil {
		t.Fatalf("open-to-all claim: %v", err)
	}
	if _, err := f.desk.UnclaimJob(ctx, req(writerID), job.ID); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("stranger unclaim: %v", err)
	}
	if _, err := f.desk.UnclaimJob(ctx, req(modID), job.ID); err != nil {
		t.Fatalf("moderator unclaim: %v", err)
	}
}

func TestCloseThenDeleteRemovesCard(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	job, _ := f.desk.CreateJob(ctx, req(mgrID), NewJob{Title: "t", Category: "promo codes"})
	_, _ = f.desk.ClaimJob(ctx, req(guestID), job.ID)

	closed, err := f.desk.CloseJob(ctx, req(guestID), job.ID)
	if err != nil || closed.Status != domain.StatusClosed || closed.ClaimedByID() != guestID {
		t.Fatalf("claimer close: %+v %v", closed, err)
	}

	if _, err := f.desk.DeleteJob(ctx, req(guestID), job.ID, ""); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("unprivileged delete: %v", err)
	}
	del, err := f.desk.DeleteJob(ctx, req(adminID), job.ID, "duplicate")
	if err != nil {
		t.Fatalf("DeleteJob() error = %v", err)
	}
	if !del.MessageRemoved || f.note.text(*job.BoardRef) != "" {
		t.Fatalf("card should be removed: %+v", del)
	}
	if !strings.Contains(f.note.lastLog(), "Reason: duplicate") || !strings.Contains(f.note.lastLog(), "(message removed)") {
		t.Fatalf("log line = %q", f.note.lastLog())
	}
	if _, err := f.store.GetJob(ctx, ws, job.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("job still present: %v", err)
	}
}

func TestPageBoardWithoutBoard(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	if _, err := f.desk.PageBoard(context.Background(), req(guestID), 1); !errors.Is(err, domain.ErrNoBoard) {
		t.Fatalf("expected ErrNoBoard, got %v", err)
	}
}

func TestRoleSettings(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.desk.SetMinClaimRole(ctx, req(adminID), "Writer"); !errors.Is(err, domain.ErrRoleNotFound) {
		t.Fatalf("unknown role: %v", err)
	}
	if _, err := f.desk.PutRole(ctx, req(adminID), "  Senior  Writer ", 5); err != nil {
		t.Fatalf("PutRole() error = %v", err)
	}
	role, err := f.desk.SetMinClaimRole(ctx, req(adminID), "senior writer")
	if err != nil || role.Rank != 5 {
		t.Fatalf("SetMinClaimRole() = %+v, %v", role, err)
	}
	v, ok, _ := f.store.GetSetting(ctx, ws, domain.SettingMinClaimRole)
	if !ok || v != "senior writer" {
		t.Fatalf("setting = %q %v", v, ok)
	}
	if _, err := f.desk.PutRole(ctx, req(mgrID), "x", 1); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("manager must not edit roles: %v", err)
	}
}

func TestWarningsLogAndRequireModerator(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	target := Subject{ID: guestID, Name: "Guest"}

	if _, err := f.desk.Warn(ctx, req(writerID), target, "spam"); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("non-moderator warn: %v", err)
	}
	if _, err := f.desk.Warn(ctx, req(modID), target, "spam"); err != nil {
		t.Fatalf("Warn() error = %v", err)
	}
	if !strings.Contains(f.note.lastLog(), "warned by") {
		t.Fatalf("log line = %q", f.note.lastLog())
	}
	if _, ok, err := f.desk.Unwarn(ctx, req(modID), target); !ok || err != nil {
		t.Fatalf("Unwarn() = %v %v", ok, err)
	}
	if _, ok, _ := f.desk.Unwarn(ctx, req(modID), target); ok {
		t.Fatalf("nothing left to remove")
	}
}

func TestAnnounceTargetAndInterview(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	if err := f.desk.SetAnnounceTarget(ctx, req(adminID)); err != nil {
		t.Fatalf("SetAnnounceTarget() error = %v", err)
	}
	if v, _, _ := f.store.GetSetting(ctx, ws, domain.SettingAnnounceThread); v != "9" {
		t.Fatalf("thread setting = %q", v)
	}
	if _, ok, err := f.desk.AnnounceInterview(ctx, req(guestID)); ok || err != nil {
		t.Fatalf("empty roster: %v %v", ok, err)
	}
	if added, err := f.desk.AddToRotation(ctx, req(mgrID), Subject{ID: 77}); !added || err != nil {
		t.Fatalf("AddToRotation() = %v %v", added, err)
	}
	if added, _ := f.desk.AddToRotation(ctx, req(mgrID), Subject{ID: 77}); added {
		t.Fatalf("duplicate roster member added")
	}
	if _, ok, err := f.desk.AnnounceInterview(ctx, req(guestID)); !ok || err != nil {
		t.Fatalf("AnnounceInterview() = %v %v", ok, err)
	}
	if len(f.note.announces) != 1 || !strings.Contains(f.note.announces[0], "tg://user?id=77") {
		t.Fatalf("announces = %v", f.note.announces)
	}
}

func TestAuditorPersistsEvents(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a := NewAuditor(f.store, f.bus, logx.Nop())
	done := make(chan struct{})
	go func() {
		_ = a.Run(ctx)
		close(done)
	}()
	// Let Run subscribe before publishing.
	deadline := time.Now().Add(2 * time.Second)
	var entries []storage.AuditEntry
	for time.Now().Before(deadline) {
		f.desk.emit(eventbus.JobCreated, req(mgrID), jobTarget(1), "t")
		time.Sleep(20 * time.Millisecond)
		entries, _ = f.store.RecentAudit(context.Background(), ws, 10)
		if len(entries) > 0 {
			break
		}
	}
	if len(entries) == 0 {
		t.Fatalf("no audit entries written")
	}
	if entries[0].Action != eventbus.JobCreated || entries[0].Target != "job:1" || entries[0].RequestID != "req-1" {
		t.Fatalf("entry = %+v", entries[0])
	}
	cancel()
	<-done
}
