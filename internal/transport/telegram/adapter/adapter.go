// Package adapter connects the transport interfaces to the Telegram Bot API
// through telebot.
package adapter

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	tele "gopkg.in/telebot.v4"

	rtsup "jobdesk/internal/runtime/supervisor"
	kit "jobdesk/internal/transport"
	logx "jobdesk/pkg/logx"
)

const (
	defaultPollTimeout = 10 * time.Second
	dropReportEvery    = 5 * time.Second
	stopGrace          = 2 * time.Second
)

type Config struct {
	Token       string
	PollTimeout time.Duration
}

var errPollerExited = errors.New("telegram poller exited")

type Adapter struct {
	log logx.Logger
	bot *tele.Bot

	// out holds the current chan<- kit.Update; handlers read it on every update.
	out atomic.Value

	runMu   sync.Mutex
	running bool
	sup     *rtsup.Supervisor

	// dropped counts updates lost because the consumer fell behind.
	dropped atomic.Uint64

	menuMu   sync.Mutex
	menuHash uint64
}

func New(cfg Config, log logx.Logger) (*Adapter, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = defaultPollTimeout
	}
	b, err := tele.NewBot(tele.Settings{
		Token:  cfg.Token,
		Poller: &tele.LongPoller{Timeout: cfg.PollTimeout},
	})
	if err != nil {
		return nil, err
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	a := &Adapter{log: log, bot: b}
	a.setOut(nil)
	a.registerHandlers()
	return a, nil
}

func (a *Adapter) setOut(ch chan<- kit.Update) { a.out.Store(ch) }

// Supervisor returns the adapter's goroutine supervisor, nil before Start.
func (a *Adapter) Supervisor() *rtsup.Supervisor {
	a.runMu.Lock()
	defer a.runMu.Unlock()
	return a.sup
}

// Start begins long polling and forwards updates to out without blocking;
// updates that do not fit are counted and reported periodically.
func (a *Adapter) Start(ctx context.Context, out chan<- kit.Update) error {
	a.runMu.Lock()
	if a.running {
		a.runMu.Unlock()
		return nil
	}
	a.running = true
	a.setOut(out)
	// Adapter failures are contained here and never cancel the app.
	sup := rtsup.New(ctx,
		rtsup.WithLogger(a.log.With(logx.Component("telegram.adapter"))),
		rtsup.WithCancelOnError(false))
	a.sup = sup
	a.runMu.Unlock()

	sup.Go0("updates.drop_report", func(c context.Context) {
		t := time.NewTicker(dropReportEvery)
		defer t.Stop()
		for {
			select {
			case <-c.Done():
				a.reportDropped(cap(out))
				return
			case <-t.C:
				a.reportDropped(cap(out))
			}
		}
	})
	sup.Go0("telebot.stop_on_cancel", func(c context.Context) {
		<-c.Done()
		a.bot.Stop()
	})
	// bot.Start blocks until Stop; an early return while ctx is live is
	// treated as a failure so the supervisor restarts polling.
	sup.GoRestart("telebot.poll", func(c context.Context) error {
		a.log.Info("polling started")
		a.bot.Start()
		a.log.Info("polling stopped")
		if c.Err() != nil {
			return nil
		}
		return errPollerExited
	}, rtsup.WithRestartBackoff(500*time.Millisecond, 10*time.Second))
	return nil
}

func (a *Adapter) reportDropped(capacity int) {
	if n := a.dropped.Swap(0); n > 0 {
		a.log.Warn("incoming updates dropped (channel full)",
			logx.Int64("count", int64(n)), logx.Int("chan_cap", capacity))
	}
}

// Stop cancels polling and waits up to a short grace period. Shutdown is
// never failed because Telegram's long poll is slow to return.
func (a *Adapter) Stop(ctx context.Context) error {
	a.runMu.Lock()
	sup, wasRunning := a.sup, a.running
	a.sup, a.running = nil, false
	a.setOut(nil)
	a.runMu.Unlock()

	if !wasRunning || sup == nil {
		return nil
	}
	a.log.Info("stopping", logx.Int64("dropped_pending", int64(a.dropped.Load())))
	sup.Cancel()
	go a.bot.Stop()

	wctx, cancel := context.WithTimeout(ctx, stopGrace)
	defer cancel()
	if err := sup.Wait(wctx); err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			a.log.Warn("telegram stop timed out", logx.Err(err))
		} else {
			a.log.Debug("telegram stopped with supervisor error", logx.Err(err))
		}
	}
	return nil
}
