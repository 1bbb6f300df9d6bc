package scheduler

import (
	"context"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"jobdesk/internal/eventbus"
	logx "jobdesk/pkg/logx"
)

const defaultTimeout = 2 * time.Minute

func New(cfg Config, log logx.Logger, bus eventbus.Bus) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{
		cfg: cfg,
		log: log.With(logx.Component("scheduler")),
		bus: bus,
		// SecondOptional allows both 5-field and 6-field (with seconds) cron specs.
		parser: cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
	}
}

// Apply swaps config; a timezone change restarts cron with the same schedules.
func (s *Service) Apply(cfg Config) {
	s.mu.Lock()
	defer s.mu.Unlock()

	oldTZ := strings.TrimSpace(s.cfg.Timezone)
	s.cfg = cfg
	if s.c != nil && oldTZ != strings.TrimSpace(cfg.Timezone) {
		s.restartLocked()
	}
}

// Start begins triggering every registered schedule. Schedules added before
// Start are held and registered now.
func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.c != nil {
		return
	}
	s.base, s.cancel = context.WithCancel(context.WithoutCancel(ctx))
	s.startCronLocked()
	s.log.Info("service started", logx.String("tz", s.loc.String()), logx.Int("schedules", len(s.defs)))
}

// Stop stops triggering and waits (bounded by ctx) for in-flight jobs.
func (s *Service) Stop(ctx context.Context) {
	start := time.Now()

	s.mu.Lock()
	c := s.c
	s.c = nil
	cancel := s.cancel
	s.mu.Unlock()

	if c != nil {
		select {
		case <-c.Stop().Done():
		case <-ctx.Done():
		}
	}
	if cancel != nil {
		cancel()
	}
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		s.log.Warn("stop timed out waiting for jobs")
	}
	s.log.Info("service stopped", logx.Duration("took", time.Since(start)))
}

func (s *Service) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	loc := s.loc
	if loc == nil {
		loc = s.loadLocationLocked()
	}
	out := Snapshot{Running: s.c != nil, Timezone: loc.String()}
	for _, d := range s.defs {
		it := ScheduleInfo{Name: d.name, Spec: d.spec, Timeout: d.timeout, StartupSpread: d.startupSpread}
		if s.c != nil && d.entryID != 0 {
			e := s.c.Entry(d.entryID)
			it.Next, it.Prev = e.Next, e.Prev
		}
		out.Schedules = append(out.Schedules, it)
	}
	return out
}

func (s *Service) startCronLocked() {
	s.loc = s.loadLocationLocked()
	cl := cronLogger{log: s.log}
	s.c = cron.New(
		cron.WithParser(s.parser),
		cron.WithLocation(s.loc),
		cron.WithLogger(cl),
	)
	for i := range s.defs {
		if err := s.addCronLocked(&s.defs[i]); err != nil {
			s.log.Error("schedule register failed", logx.String("name", s.defs[i].name), logx.Err(err))
		}
	}
	s.c.Start()
}

// restartLocked does not wait for running jobs; they may be blocked on s.mu.
func (s *Service) restartLocked() {
	s.c.Stop()
	s.startCronLocked()
	s.log.Info("service restarted", logx.String("tz", s.loc.String()), logx.Int("schedules", len(s.defs)))
}

func (s *Service) loadLocationLocked() *time.Location {
	tz := strings.TrimSpace(s.cfg.Timezone)
	if tz == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		s.log.Warn("invalid timezone; falling back to Local", logx.String("tz", tz), logx.Err(err))
		return time.Local
	}
	return loc
}

// cronLogger adapts logx to cron.Logger.
type cronLogger struct{ log logx.Logger }

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug("cron: "+msg, logx.Any("kv", keysAndValues))
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error("cron: "+msg, logx.Err(err), logx.Any("kv", keysAndValues))
}
