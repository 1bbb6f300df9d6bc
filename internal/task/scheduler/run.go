package scheduler

import (
	"context"
	"fmt"
	"time"

	"jobdesk/internal/eventbus"
	logx "jobdesk/pkg/logx"
)

// run executes job once with its timeout. A run of the same name still in
// flight makes this call a no-op.
func (s *Service) run(name string, timeout time.Duration, job Job) {
	if _, busy := s.running.LoadOrStore(name, struct{}{}); busy {
		s.log.Debug("schedule trigger skipped", logx.String("schedule", name))
		s.publish(eventbus.TaskResult{Name: name, Skipped: true})
		return
	}
	defer s.running.Delete(name)

	s.mu.Lock()
	base := s.base
	if timeout <= 0 {
		timeout = s.cfg.DefaultTimeout
	}
	s.mu.Unlock()
	if base == nil {
		base = context.Background()
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	s.wg.Add(1)
	defer s.wg.Done()

	ctx, cancel := context.WithTimeout(base, timeout)
	defer cancel()

	start := time.Now()
	err := safeRun(ctx, job)
	took := time.Since(start)

	res := eventbus.TaskResult{Name: name, TookMS: took.Milliseconds()}
	if err != nil {
		res.Err = err.Error()
		s.log.Warn("task failed", logx.String("schedule", name), logx.Duration("took", took), logx.Err(err))
	} else {
		s.log.Debug("task done", logx.String("schedule", name), logx.Duration("took", took))
	}
	s.publish(res)
}

func (s *Service) publish(res eventbus.TaskResult) {
	if s.bus != nil {
		s.bus.Publish(eventbus.Event{Type: eventbus.TaskFinished, Data: res})
	}
}

func safeRun(ctx context.Context, job Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return job(ctx)
}
