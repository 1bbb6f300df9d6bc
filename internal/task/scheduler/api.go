package scheduler

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	logx "jobdesk/pkg/logx"
)

// AddSchedule parses schedule and registers either a cron or an interval
// task under name, replacing any schedule of the same name.
//
// Supported schedule formats:
//   - Cron: "*/5 * * * *", "0 9 * * 1", "@weekly", "@every 48h"
//   - Interval duration: "48h", "2h30m"
//   - Interval HH:MM: "00:50" (50 minutes)
func (s *Service) AddSchedule(name, schedule string, timeout time.Duration, job Job) error {
	ps, err := ParseSchedule(schedule)
	if err != nil {
		return err
	}
	switch ps.Kind {
	case SpecCron:
		return s.AddCron(name, ps.Cron, timeout, job)
	case SpecInterval:
		return s.AddInterval(name, ps.Every, timeout, job)
	default:
		return fmt.Errorf("unsupported schedule kind")
	}
}

func (s *Service) AddCron(name, spec string, timeout time.Duration, job Job) error {
	if _, err := s.parser.Parse(spec); err != nil {
		return fmt.Errorf("invalid cron %q: %w", spec, err)
	}
	return s.add(name, spec, timeout, job)
}

func (s *Service) AddInterval(name string, every, timeout time.Duration, job Job) error {
	if every <= 0 {
		return errors.New("interval must be > 0")
	}
	return s.add(name, "@every "+every.String(), timeout, job)
}

func (s *Service) add(name, spec string, timeout time.Duration, job Job) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return errors.New("name required")
	}
	if job == nil {
		return errors.New("job required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeLocked(name)
	s.defs = append(s.defs, scheduleDef{name: name, spec: spec, timeout: timeout, job: job})
	if s.c == nil {
		return nil
	}
	d := &s.defs[len(s.defs)-1]
	if err := s.addCronLocked(d); err != nil {
		return err
	}
	s.log.Debug("schedule registered", logx.String("name", name), logx.String("spec", spec),
		logx.Duration("timeout", timeout), logx.Duration("spread", d.startupSpread))
	return nil
}

// Remove unschedules name. It reports whether anything was removed.
func (s *Service) Remove(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.removeLocked(strings.TrimSpace(name))
}

func (s *Service) removeLocked(name string) bool {
	removed := false
	n := 0
	for _, d := range s.defs {
		if d.name == name {
			if s.c != nil && d.entryID != 0 {
				s.c.Remove(d.entryID)
			}
			removed = true
			continue
		}
		s.defs[n] = d
		n++
	}
	s.defs = s.defs[:n]
	return removed
}

// RunNow runs the named schedule's job once, outside its timer, honoring the
// same overlap rule. It returns false when no such schedule exists.
func (s *Service) RunNow(name string) bool {
	s.mu.Lock()
	var d *scheduleDef
	for i := range s.defs {
		if s.defs[i].name == name {
			cp := s.defs[i]
			d = &cp
			break
		}
	}
	s.mu.Unlock()
	if d == nil {
		return false
	}
	s.run(d.name, d.timeout, d.job)
	return true
}

func (s *Service) addCronLocked(d *scheduleDef) error {
	name, timeout, job := d.name, d.timeout, d.job
	fn := cron.FuncJob(func() { s.run(name, timeout, job) })

	if every, ok := everyOf(d.spec); ok {
		sched, jitter := makeIntervalScheduleWithSpread(every, time.Now().In(s.loc), d.name)
		d.startupSpread = jitter
		d.entryID = s.c.Schedule(sched, fn)
		return nil
	}
	d.startupSpread = 0
	eid, err := s.c.AddJob(d.spec, fn)
	if err == nil {
		d.entryID = eid
	}
	return err
}

func everyOf(spec string) (time.Duration, bool) {
	spec = strings.TrimSpace(spec)
	if !strings.HasPrefix(spec, "@every") {
		return 0, false
	}
	every, err := time.ParseDuration(strings.TrimSpace(strings.TrimPrefix(spec, "@every")))
	if err != nil || every <= 0 {
		return 0, false
	}
	return every, true
}

func parseHHMM(s string) (hour int, minute int, err error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid time %q, expected HH:MM", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, 0, fmt.Errorf("invalid hour in %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, 0, fmt.Errorf("invalid minute in %q", s)
	}
	return h, m, nil
}

// AddWeekly registers a weekly cron at HH:MM on weekday (scheduler timezone).
func (s *Service) AddWeekly(name string, weekday time.Weekday, atHHMM string, timeout time.Duration, job Job) error {
	h, m, err := parseHHMM(atHHMM)
	if err != nil {
		return err
	}
	return s.AddCron(name, fmt.Sprintf("%d %d * * %d", m, h, int(weekday)), timeout, job)
}
