package app

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"jobdesk/internal/config"
	logx "jobdesk/pkg/logx"
)

func TestLatestDrainsBurst(t *testing.T) {
	t.Parallel()

	ch := make(chan *config.Config, 4)
	a, b, c := &config.Config{}, &config.Config{}, &config.Config{}
	ch <- b
	ch <- nil
	ch <- c
	if got := latest(ch, a); got != c {
		t.Fatalf("latest returned %p want %p", got, c)
	}
	if got := latest(ch, a); got != a {
		t.Fatalf("empty channel should keep current")
	}
}

func TestRunStepCompletes(t *testing.T) {
	t.Parallel()

	var ran atomic.Bool
	runStep(context.Background(), logx.Nop(), "ok", time.Second, func(context.Context) error {
		ran.Store(true)
		return errors.New("logged, not returned")
	})
	if !ran.Load() {
		t.Fatalf("step did not run")
	}
}

func TestRunStepBoundedByDeadline(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	release := make(chan struct{})
	defer close(release)
	start := time.Now()
	runStep(ctx, logx.Nop(), "stuck", 10*time.Second, func(context.Context) error {
		<-release
		return nil
	})
	if d := time.Since(start); d > 2*time.Second {
		t.Fatalf("runStep waited %v past the caller deadline", d)
	}
}

func TestRunStepRecoversPanic(t *testing.T) {
	t.Parallel()

	runStep(context.Background(), logx.Nop(), "boom", time.Second, func(context.Context) error {
		panic("boom")
	})
}
