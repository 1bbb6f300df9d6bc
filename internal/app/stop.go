package app

import (
	"context"
	"fmt"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	logx "jobdesk/pkg/logx"
)

// Stop shuts components down in dependency order. Each step is bounded so
// one stuck component cannot stall the rest.
func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil {
		return nil
	}
	a.log.Info("stopping", logx.String("reason", string(reason)))
	a.notifySystemd(daemon.SdNotifyStopping)
	a.sup.Cancel()

	step := func(name string, max time.Duration, fn func(context.Context) error) {
		runStep(ctx, a.log, name, max, fn)
	}
	step("scheduler", 2*time.Second, func(c context.Context) error { a.sched.Stop(c); return nil })
	step("notifier", 2*time.Second, func(c context.Context) error { a.notif.Stop(c); return nil })
	step("adapter", 2*time.Second, a.adapter.Stop)
	step("supervisor", 2*time.Second, a.sup.Wait)
	step("storage", time.Second, func(context.Context) error { return a.store.Close() })

	a.log.Info("stopped")
	return a.logs.Close()
}

// runStep runs fn with an upper bound that never extends ctx's deadline.
// fn must honor its context; a step that overruns is logged and left behind.
func runStep(ctx context.Context, log logx.Logger, name string, max time.Duration, fn func(context.Context) error) {
	start := time.Now()
	if dl, ok := ctx.Deadline(); ok {
		max = min(max, time.Until(dl))
	}
	stepCtx, cancel := context.WithTimeout(ctx, max)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("panic in stop step %s: %v", name, r)
			}
		}()
		done <- fn(stepCtx)
	}()

	select {
	case err := <-done:
		if err != nil {
			log.Warn("stop step error", logx.String("name", name), logx.Err(err))
		}
		took := time.Since(start)
		if took >= 500*time.Millisecond {
			log.Info("stop step end", logx.String("name", name), logx.Duration("took", took))
		} else {
			log.Debug("stop step end", logx.String("name", name), logx.Duration("took", took))
		}
	case <-stepCtx.Done():
		log.Warn("stop step deadline reached (continuing)",
			logx.String("name", name), logx.Err(stepCtx.Err()), logx.Duration("elapsed", time.Since(start)))
		go func() {
			err := <-done
			log.Info("stop step finished after deadline",
				logx.String("name", name), logx.Err(err), logx.Duration("took", time.Since(start)))
		}()
	}
}
