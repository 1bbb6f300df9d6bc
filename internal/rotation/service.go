package rotation

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"jobdesk/internal/domain"
	"jobdesk/internal/eventbus"
	"jobdesk/internal/task/scheduler"
	logx "jobdesk/pkg/logx"
	"jobdesk/pkg/tgui"
)

// Schedule names registered on the trigger service.
const (
	ReminderTask = "rotation.reminder"
	AdvanceTask  = "rotation.advance"
)

const (
	defaultReminderEvery = 48 * time.Hour
	defaultRotateEvery   = 7 * 24 * time.Hour
	defaultParallelism   = 4
)

type Config struct {
	Enabled       bool
	ReminderEvery time.Duration
	RotateEvery   time.Duration
	TaskTimeout   time.Duration
	// Parallelism bounds concurrent workspaces per tick.
	Parallelism int
}

func (c Config) withDefaults() Config {
	if c.ReminderEvery <= 0 {
		c.ReminderEvery = defaultReminderEvery
	}
	if c.RotateEvery <= 0 {
		c.RotateEvery = defaultRotateEvery
	}
	if c.Parallelism <= 0 {
		c.Parallelism = defaultParallelism
	}
	return c
}

type Store interface {
	ListRoster(ctx context.Context, workspace int64) ([]domain.RosterEntry, error)
	GetRotationState(ctx context.Context, workspace int64) (domain.RotationState, bool, error)
	AdvanceRotation(ctx context.Context, workspace int64) (domain.RotationState, error)
	AddRosterMember(ctx context.Context, workspace, user int64) (bool, error)
	RemoveRosterMember(ctx context.Context, workspace, user int64) (bool, error)
	WorkspacesWithSetting(ctx context.Context, key string) ([]int64, error)
}

// Announcer delivers rendered announcements to a workspace.
type Announcer interface {
	Announce(ctx context.Context, workspace int64, text string) error
}

// Timers is the subset of the trigger service the rotation uses.
type Timers interface {
	AddInterval(name string, every, timeout time.Duration, job scheduler.Job) error
	Remove(name string) bool
}

// Directory resolves display names for mentions. Optional.
type Directory interface {
	DisplayName(ctx context.Context, workspace, user int64) string
}

// Candidate is the current duty holder of a workspace.
type Candidate struct {
	UserID     int64
	Position   int
	RosterSize int
}

type Service struct {
	store  Store
	ann    Announcer
	timers Timers
	log    logx.Logger
	bus    eventbus.Bus

	ready atomic.Bool

	mu  sync.Mutex
	cfg Config
	dir Directory
}

func New(cfg Config, store Store, ann Announcer, timers Timers, log logx.Logger, bus eventbus.Bus) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{
		store:  store,
		ann:    ann,
		timers: timers,
		log:    log.With(logx.Component("rotation")),
		bus:    bus,
		cfg:    cfg.withDefaults(),
	}
}

func (s *Service) SetDirectory(d Directory) {
	s.mu.Lock()
	s.dir = d
	s.mu.Unlock()
}

// Register installs both timers, or removes them when rotation is disabled.
func (s *Service) Register() error {
	s.mu.Lock()
	cfg := s.cfg
	s.mu.Unlock()
	return s.register(cfg)
}

// Apply swaps config and re-registers the timers.
func (s *Service) Apply(cfg Config) error {
	cfg = cfg.withDefaults()
	s.mu.Lock()
	s.cfg = cfg
	s.mu.Unlock()
	return s.register(cfg)
}

func (s *Service) register(cfg Config) error {
	if s.timers == nil {
		return nil
	}
	if !cfg.Enabled {
		s.timers.Remove(ReminderTask)
		s.timers.Remove(AdvanceTask)
		return nil
	}
	if err := s.timers.AddInterval(ReminderTask, cfg.ReminderEvery, cfg.TaskTimeout, s.RemindAll); err != nil {
		return fmt.Errorf("register %s: %w", ReminderTask, err)
	}
	if err := s.timers.AddInterval(AdvanceTask, cfg.RotateEvery, cfg.TaskTimeout, s.AdvanceAll); err != nil {
		return fmt.Errorf("register %s: %w", AdvanceTask, err)
	}
	s.log.Info("timers registered",
		logx.Duration("reminder_every", cfg.ReminderEvery), logx.Duration("rotate_every", cfg.RotateEvery))
	return nil
}

// MarkReady lets timer ticks through. Before it, ticks are no-ops.
func (s *Service) MarkReady() { s.ready.Store(true) }

func (s *Service) Ready() bool { return s.ready.Load() }

// Current returns the roster entry at current_index mod len(roster). It does
// not mutate anything. ok is false for an empty roster.
func (s *Service) Current(ctx context.Context, workspace int64) (Candidate, bool, error) {
	roster, err := s.store.ListRoster(ctx, workspace)
	if err != nil {
		return Candidate{}, false, err
	}
	if len(roster) == 0 {
		return Candidate{}, false, nil
	}
	st, _, err := s.store.GetRotationState(ctx, workspace)
	if err != nil {
		return Candidate{}, false, err
	}
	pos := position(st.CurrentIndex, len(roster))
	return Candidate{UserID: roster[pos].UserID, Position: pos, RosterSize: len(roster)}, true, nil
}

func position(index int64, n int) int {
	p := index % int64(n)
	if p < 0 {
		p += int64(n)
	}
	return int(p)
}

// Advance moves the rotation forward by exactly one and returns the new
// current candidate.
func (s *Service) Advance(ctx context.Context, workspace int64) (Candidate, bool, error) {
	if _, err := s.store.AdvanceRotation(ctx, workspace); err != nil {
		return Candidate{}, false, err
	}
	return s.Current(ctx, workspace)
}

func (s *Service) Add(ctx context.Context, workspace, user int64) (bool, error) {
	return s.store.AddRosterMember(ctx, workspace, user)
}

func (s *Service) Remove(ctx context.Context, workspace, user int64) (bool, error) {
	return s.store.RemoveRosterMember(ctx, workspace, user)
}

func (s *Service) Roster(ctx context.Context, workspace int64) ([]domain.RosterEntry, error) {
	return s.store.ListRoster(ctx, workspace)
}

// AnnounceNow posts the current candidate without advancing.
func (s *Service) AnnounceNow(ctx context.Context, workspace int64) (Candidate, bool, error) {
	c, ok, err := s.Current(ctx, workspace)
	if err != nil || !ok {
		return c, ok, err
	}
	cfg := s.config()
	text := fmt.Sprintf("📣 This week's interview: %s! (reminders %s)", s.mention(ctx, workspace, c.UserID), every(cfg.ReminderEvery))
	if err := s.ann.Announce(ctx, workspace, text); err != nil {
		return c, true, err
	}
	return c, true, nil
}

// RemindAll is the reminder tick.
func (s *Service) RemindAll(ctx context.Context) error {
	return s.fanOut(ctx, ReminderTask, s.remind)
}

// AdvanceAll is the rotation tick.
func (s *Service) AdvanceAll(ctx context.Context) error {
	return s.fanOut(ctx, AdvanceTask, s.advance)
}

func (s *Service) remind(ctx context.Context, workspace int64) error {
	c, ok, err := s.Current(ctx, workspace)
	if err != nil || !ok {
		return err
	}
	text := fmt.Sprintf("⏰ Interview reminder: Next up is %s! (pinging %s)",
		s.mention(ctx, workspace, c.UserID), every(s.config().ReminderEvery))
	if err := s.ann.Announce(ctx, workspace, text); err != nil {
		return err
	}
	s.emit(eventbus.RotationReminded, workspace, c)
	return nil
}

func (s *Service) advance(ctx context.Context, workspace int64) error {
	c, ok, err := s.Advance(ctx, workspace)
	if err != nil || !ok {
		return err
	}
	text := fmt.Sprintf("📣 This week's interview: %s! (will ping %s)",
		s.mention(ctx, workspace, c.UserID), every(s.config().ReminderEvery))
	if err := s.ann.Announce(ctx, workspace, text); err != nil {
		return err
	}
	s.emit(eventbus.RotationAdvanced, workspace, c)
	return nil
}

// fanOut runs fn for every workspace with an announcement target. Failures
// are logged per workspace and never returned.
func (s *Service) fanOut(ctx context.Context, task string, fn func(context.Context, int64) error) error {
	if !s.ready.Load() {
		s.log.Debug("tick ignored before ready", logx.String("task", task))
		return nil
	}
	workspaces, err := s.store.WorkspacesWithSetting(ctx, domain.SettingAnnounceChat)
	if err != nil {
		s.log.Warn("workspace scan failed", logx.String("task", task), logx.Err(err))
		return nil
	}

	var failed atomic.Int64
	var g errgroup.Group
	g.SetLimit(s.config().Parallelism)
	for _, ws := range workspaces {
		g.Go(func() error {
			if err := fn(ctx, ws); err != nil {
				failed.Add(1)
				s.log.Warn("workspace tick failed", logx.String("task", task), logx.Workspace(ws),
					logx.Bool("retryable", domain.IsRetryable(err)), logx.Err(err))
			}
			return nil
		})
	}
	_ = g.Wait()

	s.log.Debug("tick done", logx.String("task", task), logx.Int("workspaces", len(workspaces)),
		logx.Int64("failed", failed.Load()))
	return nil
}

func (s *Service) config() Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}

func (s *Service) mention(ctx context.Context, workspace, user int64) tgui.H {
	s.mu.Lock()
	dir := s.dir
	s.mu.Unlock()
	name := ""
	if dir != nil {
		name = dir.DisplayName(ctx, workspace, user)
	}
	return tgui.Mention(name, user)
}

func (s *Service) emit(typ string, workspace int64, c Candidate) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(eventbus.Event{Type: typ, Data: eventbus.Change{
		WorkspaceID: workspace,
		Target:      strconv.FormatInt(c.UserID, 10),
		Detail:      fmt.Sprintf("position %d/%d", c.Position+1, c.RosterSize),
	}})
}

// every renders a period for humans: "every 2 days", "every day", "every 6h0m0s".
func every(d time.Duration) string {
	const day = 24 * time.Hour
	switch {
	case d == day:
		return "every day"
	case d > 0 && d%day == 0:
		return fmt.Sprintf("every %d days", int64(d/day))
	default:
		return "every " + d.String()
	}
}
