package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"jobdesk/internal/eventbus"
	logx "jobdesk/pkg/logx"
)

func TestParseScheduleVariants(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		raw      string
		kind     SpecKind
		source   string
		duration time.Duration
	}{
		{name: "cron", raw: "0 9 * * 1", kind: SpecCron, source: "cron"},
		{name: "descriptor", raw: "@every 48h", kind: SpecCron, source: "cron"},
		{name: "prefixed cron", raw: "cron:0 0 * * *", kind: SpecCron, source: "cron"},
		{name: "duration", raw: "168h", kind: SpecInterval, source: "duration", duration: 168 * time.Hour},
		{name: "prefixed interval", raw: "interval:45s", kind: SpecInterval, source: "duration", duration: 45 * time.Second},
		{name: "prefixed every", raw: "every:48h", kind: SpecInterval, source: "duration", duration: 48 * time.Hour},
		{name: "hhmm", raw: "01:30", kind: SpecInterval, source: "hhmm", duration: 90 * time.Minute},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := ParseSchedule(tt.raw)
			if err != nil {
				t.Fatalf("ParseSchedule(%q) error: %v", tt.raw, err)
			}
			if got.Kind != tt.kind {
				t.Fatalf("Kind = %v, want %v", got.Kind, tt.kind)
			}
			if got.Source != tt.source {
				t.Fatalf("Source = %s, want %s", got.Source, tt.source)
			}
			if tt.kind == SpecInterval && got.Every != tt.duration {
				t.Fatalf("Every = %v, want %v", got.Every, tt.duration)
			}
		})
	}
}

func TestParseScheduleInvalid(t *testing.T) {
	t.Parallel()
	for _, raw := range []string{"", "not-a-schedule", "-5m", "00:00", "01:75"} {
		if _, err := ParseSchedule(raw); err == nil {
			t.Fatalf("ParseSchedule(%q) expected error", raw)
		}
	}
}

func TestParseHHMM(t *testing.T) {
	t.Parallel()
	h, m, err := parseHHMM("23:15")
	if err != nil {
		t.Fatalf("parseHHMM error: %v", err)
	}
	if h != 23 || m != 15 {
		t.Fatalf("unexpected result: %d:%d", h, m)
	}
	if _, _, err := parseHHMM("24:00"); err == nil {
		t.Fatal("expected error for invalid hour")
	}
}

func TestSpreadDelaysOnlyFirstRun(t *testing.T) {
	t.Parallel()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	sched, jitter := makeIntervalScheduleWithSpread(48*time.Hour, now, "rotation.reminder")
	if jitter < 0 || jitter >= maxStartupSpread {
		t.Fatalf("jitter = %v", jitter)
	}
	first := sched.Next(now)
	if first != now.Add(48*time.Hour+jitter) {
		t.Fatalf("first = %v", first)
	}
	if second := sched.Next(first); second.Sub(first) != 48*time.Hour {
		t.Fatalf("second run gap = %v", second.Sub(first))
	}
}

func TestAddScheduleUpsertsByName(t *testing.T) {
	t.Parallel()
	s := New(Config{}, logx.Nop(), nil)
	job := func(context.Context) error { return nil }

	if err := s.AddSchedule("rotation.advance", "168h", 0, job); err != nil {
		t.Fatalf("AddSchedule() error = %v", err)
	}
	if err := s.AddSchedule("rotation.advance", "@weekly", 0, job); err != nil {
		t.Fatalf("AddSchedule() error = %v", err)
	}
	snap := s.Snapshot()
	if len(snap.Schedules) != 1 || snap.Schedules[0].Spec != "@weekly" {
		t.Fatalf("schedules = %+v", snap.Schedules)
	}
	if err := s.AddCron("bad", "not cron at all", 0, job); err == nil {
		t.Fatalf("AddCron() should reject invalid specs")
	}
	if !s.Remove("rotation.advance") || s.Remove("rotation.advance") {
		t.Fatalf("Remove() should report once")
	}
}

func TestRunNowSkipsOverlapAndRecovers(t *testing.T) {
	t.Parallel()
	bus := eventbus.New()
	events, unsub := bus.Subscribe(16)
	defer unsub()
	s := New(Config{}, logx.Nop(), bus)

	release := make(chan struct{})
	started := make(chan struct{})
	var calls atomic.Int32
	_ = s.AddInterval("slow", time.Hour, time.Second, func(ctx context.Context) error {
		calls.Add(1)
		close(started)
		<-release
		return errors.New("boom")
	})
	_ = s.AddInterval("panics", time.Hour, time.Second, func(ctx context.Context) error {
		panic("bad job")
	})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.RunNow("slow")
	}()
	<-started
	s.RunNow("slow") // overlaps, skipped
	close(release)
	wg.Wait()
	s.RunNow("panics")

	if calls.Load() != 1 {
		t.Fatalf("calls = %d, want 1", calls.Load())
	}
	var skipped, failed int
	for i := 0; i < 3; i++ {
		res := (<-events).Data.(eventbus.TaskResult)
		if res.Skipped {
			skipped++
		} else if res.Err != "" {
			failed++
		}
	}
	if skipped != 1 || failed != 2 {
		t.Fatalf("skipped = %d failed = %d", skipped, failed)
	}
	if s.RunNow("missing") {
		t.Fatalf("RunNow(missing) = true")
	}
}
