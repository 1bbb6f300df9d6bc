package notifier

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"math/rand"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"jobdesk/internal/domain"
	"jobdesk/internal/eventbus"
	rtsup "jobdesk/internal/runtime/supervisor"
	"jobdesk/internal/transport"
	logx "jobdesk/pkg/logx"
	"jobdesk/pkg/tgui"
)

var (
	ErrQueueFull = errors.New("notifier queue full")
	ErrStopped   = errors.New("notifier stopped")
)

const sendTimeout = 10 * time.Second

type job struct {
	channel   string
	workspace int64
	to        transport.ChatTarget
	text      string
	key       string
}

// Service is safe for concurrent use.
type Service struct {
	mu sync.Mutex

	log     logx.Logger
	adapter transport.Adapter
	targets Targets
	bus     eventbus.Bus

	cfg     Config
	limiter *rate.Limiter

	accepting bool
	sendWG    sync.WaitGroup

	queue    chan job
	sup      *rtsup.Supervisor
	stopDone chan struct{} // non-nil while stopping

	// key -> suppress until
	dmu   sync.Mutex
	dedup map[string]time.Time

	hmu     sync.Mutex
	history []HistoryItem
}

func New(cfg Config, adapter transport.Adapter, targets Targets, log logx.Logger, bus eventbus.Bus) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	s := &Service{
		adapter: adapter,
		targets: targets,
		log:     log.With(logx.Component("notifier")),
		bus:     bus,
		dedup:   map[string]time.Time{},
	}
	s.applyLocked(cfg)
	return s
}

func (s *Service) Apply(cfg Config) {
	s.mu.Lock()
	s.applyLocked(cfg)
	s.mu.Unlock()
}

func (s *Service) applyLocked(cfg Config) {
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 512
	}
	if cfg.RatePerSec <= 0 {
		cfg.RatePerSec = 3
	}
	if cfg.RetryMax < 0 {
		cfg.RetryMax = 0
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = 500 * time.Millisecond
	}
	if cfg.RetryMaxDelay <= 0 {
		cfg.RetryMaxDelay = 10 * time.Second
	}
	if cfg.DedupWindow < 0 {
		cfg.DedupWindow = 0
	}
	if cfg.DedupMaxEntries <= 0 {
		cfg.DedupMaxEntries = 2000
	}
	s.cfg = cfg
	// burst = rate per sec, so short spikes don't block too hard.
	if s.limiter == nil {
		s.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.RatePerSec)
		return
	}
	s.limiter.SetLimit(rate.Limit(cfg.RatePerSec))
	s.limiter.SetBurst(cfg.RatePerSec)
}

// Supervisor returns the worker supervisor (nil if not started).
func (s *Service) Supervisor() *rtsup.Supervisor {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sup
}

// Start launches the workers. It is idempotent.
func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	if s.stopDone != nil {
		done := s.stopDone
		s.mu.Unlock()
		select {
		case <-done:
		case <-ctx.Done():
			return
		}
		s.mu.Lock()
	}
	if s.queue != nil {
		s.mu.Unlock()
		return
	}

	s.queue = make(chan job, s.cfg.QueueSize)
	s.accepting = true
	workers := s.cfg.Workers
	s.sup = rtsup.New(ctx,
		rtsup.WithLogger(s.log),
		// delivery is best-effort; a worker failure must not take the app down.
		rtsup.WithCancelOnError(false),
	)
	sup, q := s.sup, s.queue
	s.mu.Unlock()

	for i := 0; i < workers; i++ {
		sup.GoRestart(fmt.Sprintf("notifier.worker.%d", i), func(c context.Context) error {
			s.workerLoop(c, q)
			if s.stopping() || c.Err() != nil {
				return nil
			}
			return errors.New("notifier worker exited unexpectedly")
		})
	}
	s.log.Info("service started", logx.Int("workers", workers))
}

func (s *Service) stopping() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopDone != nil
}

// Stop stops intake and drains the queue best-effort until ctx is done.
func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	q, sup := s.queue, s.sup
	if q == nil {
		s.mu.Unlock()
		return
	}
	if s.stopDone != nil {
		done := s.stopDone
		s.mu.Unlock()
		select {
		case <-done:
		case <-ctx.Done():
		}
		return
	}
	done := make(chan struct{})
	s.stopDone = done
	s.accepting = false
	s.mu.Unlock()

	go func() {
		defer close(done)
		// In-flight enqueues finish before the queue closes.
		s.sendWG.Wait()
		close(q)
		_ = sup.Wait(context.Background())

		s.mu.Lock()
		s.queue = nil
		s.stopDone = nil
		s.sup = nil
		s.mu.Unlock()
	}()

	select {
	case <-done:
	case <-ctx.Done():
		sup.Cancel()
	}
}

// Announce queues text for the workspace announcement target.
func (s *Service) Announce(ctx context.Context, workspace int64, text string) error {
	to, ok, err := s.Target(ctx, workspace, ChannelAnnounce)
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrNoTarget
	}
	return s.enqueue(ctx, job{channel: ChannelAnnounce, workspace: workspace, to: to, text: text})
}

// Log queues text for the workspace log target. No target means no-op.
func (s *Service) Log(ctx context.Context, workspace int64, text string) error {
	to, ok, err := s.Target(ctx, workspace, ChannelLog)
	if err != nil || !ok {
		return err
	}
	return s.enqueue(ctx, job{channel: ChannelLog, workspace: workspace, to: to, text: text})
}

// Target resolves a channel to the chat configured for the workspace.
func (s *Service) Target(ctx context.Context, workspace int64, channel string) (transport.ChatTarget, bool, error) {
	chatKey, threadKey := domain.SettingAnnounceChat, domain.SettingAnnounceThread
	if channel == ChannelLog {
		chatKey, threadKey = domain.SettingLogChat, domain.SettingLogThread
	}
	if s.targets == nil {
		return transport.ChatTarget{}, false, nil
	}
	raw, ok, err := s.targets.GetSetting(ctx, workspace, chatKey)
	if err != nil || !ok {
		return transport.ChatTarget{}, false, err
	}
	chatID, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || chatID == 0 {
		s.log.Warn("bad chat target setting", logx.Workspace(workspace), logx.String("key", chatKey), logx.String("value", raw))
		return transport.ChatTarget{}, false, nil
	}
	to := transport.ChatTarget{ChatID: chatID}
	if rawThread, ok, err := s.targets.GetSetting(ctx, workspace, threadKey); err != nil {
		return transport.ChatTarget{}, false, err
	} else if ok {
		to.ThreadID, _ = strconv.Atoi(strings.TrimSpace(rawThread))
	}
	return to, true, nil
}

func (s *Service) enqueue(ctx context.Context, j job) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.TrimSpace(j.text) == "" {
		return nil
	}

	s.mu.Lock()
	if !s.accepting || s.queue == nil {
		s.mu.Unlock()
		return domain.Infra(ErrStopped)
	}
	q := s.queue
	window, maxEntries := s.cfg.DedupWindow, s.cfg.DedupMaxEntries
	s.sendWG.Add(1)
	s.mu.Unlock()
	defer s.sendWG.Done()

	j.key = dedupKey(j)
	if window > 0 && !s.dedupAllow(j.key, window, maxEntries) {
		s.publish(EventDeduped, j, nil)
		return nil
	}

	select {
	case q <- j:
		s.publish(EventQueued, j, nil)
		return nil
	default:
		s.publish(EventDropped, j, ErrQueueFull)
		return domain.Infra(ErrQueueFull)
	}
}

// PublishBoard posts msg and returns its reference.
func (s *Service) PublishBoard(ctx context.Context, to transport.ChatTarget, msg tgui.Message) (transport.MessageRef, error) {
	var ref transport.MessageRef
	err := s.call(ctx, func(c context.Context, ad transport.Adapter) error {
		var err error
		ref, err = msg.Send(c, ad, to)
		return err
	})
	return ref, err
}

// ReplaceBoard edits the message at ref in place.
func (s *Service) ReplaceBoard(ctx context.Context, ref transport.MessageRef, msg tgui.Message) error {
	return s.call(ctx, func(c context.Context, ad transport.Adapter) error { return msg.Edit(c, ad, ref) })
}

func (s *Service) DeleteMessage(ctx context.Context, ref transport.MessageRef) error {
	return s.call(ctx, func(c context.Context, ad transport.Adapter) error { return ad.DeleteMessage(c, ref) })
}

func (s *Service) PinMessage(ctx context.Context, ref transport.MessageRef) error {
	return s.call(ctx, func(c context.Context, ad transport.Adapter) error { return ad.PinMessage(c, ref) })
}

// call runs one synchronous adapter call under the shared limiter.
func (s *Service) call(ctx context.Context, fn func(context.Context, transport.Adapter) error) error {
	s.mu.Lock()
	ad, lim := s.adapter, s.limiter
	s.mu.Unlock()
	if ad == nil {
		return domain.Infra(ErrStopped)
	}
	if err := lim.Wait(ctx); err != nil {
		return domain.Infra(err)
	}
	cctx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()
	if err := fn(cctx, ad); err != nil {
		return domain.Infra(err)
	}
	return nil
}

func (s *Service) Snapshot() []HistoryItem {
	s.hmu.Lock()
	defer s.hmu.Unlock()
	return append([]HistoryItem(nil), s.history...)
}

func (s *Service) appendHistory(j job) {
	s.hmu.Lock()
	s.history = append(s.history, HistoryItem{At: time.Now(), Channel: j.channel, Workspace: j.workspace, Text: j.text})
	if len(s.history) > 300 {
		s.history = s.history[len(s.history)-300:]
	}
	s.hmu.Unlock()
}

func (s *Service) workerLoop(ctx context.Context, q <-chan job) {
	for {
		select {
		case <-ctx.Done():
			return
		case j, ok := <-q:
			if !ok {
				return
			}
			s.sendWithRetry(ctx, j)
		}
	}
}

func (s *Service) sendWithRetry(ctx context.Context, j job) {
	s.mu.Lock()
	cfg, lim, ad := s.cfg, s.limiter, s.adapter
	s.mu.Unlock()
	if ad == nil {
		return
	}

	opt := &transport.SendOptions{ParseMode: tgui.ParseModeHTML, DisablePreview: true}
	maxAttempts := 1 + cfg.RetryMax

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := lim.Wait(ctx); err != nil {
			return
		}
		callCtx, cancel := context.WithTimeout(ctx, sendTimeout)
		_, err := ad.SendText(callCtx, j.to, j.text, opt)
		cancel()
		if err == nil {
			s.appendHistory(j)
			s.publish(EventSent, j, nil)
			return
		}
		lastErr = err
		s.log.Debug("send failed", logx.String("channel", j.channel), logx.Workspace(j.workspace),
			logx.Int("attempt", attempt), logx.Int("max", maxAttempts), logx.Err(err))
		if attempt >= maxAttempts {
			break
		}

		t := time.NewTimer(retryDelay(cfg, attempt))
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
			return
		}
	}

	s.log.Warn("send gave up", logx.String("channel", j.channel), logx.Workspace(j.workspace), logx.Err(lastErr))
	s.publish(EventFailed, j, lastErr)
}

func (s *Service) publish(typ string, j job, err error) {
	if s.bus == nil {
		return
	}
	now := time.Now()
	ev := NotificationEvent{Channel: j.channel, Workspace: j.workspace, ChatID: j.to.ChatID, ThreadID: j.to.ThreadID, Key: j.key, At: now}
	if err != nil {
		ev.Error = err.Error()
	}
	s.bus.Publish(eventbus.Event{Type: typ, Time: now, Data: ev})
}

func dedupKey(j job) string {
	h := fnv.New64a()
	_, _ = fmt.Fprintf(h, "%s|%d:%d|", j.channel, j.to.ChatID, j.to.ThreadID)
	_, _ = h.Write([]byte(j.text))
	return strconv.FormatUint(h.Sum64(), 16)
}

func (s *Service) dedupAllow(key string, window time.Duration, maxEntries int) bool {
	now := time.Now()
	s.dmu.Lock()
	defer s.dmu.Unlock()

	if until, ok := s.dedup[key]; ok && now.Before(until) {
		return false
	}
	s.dedup[key] = now.Add(window)

	for k, until := range s.dedup {
		if !now.Before(until) {
			delete(s.dedup, k)
		}
	}
	// Evict earliest expiry until within cap.
	for len(s.dedup) > maxEntries {
		var oldest string
		var oldestAt time.Time
		for k, t := range s.dedup {
			if oldest == "" || t.Before(oldestAt) {
				oldest, oldestAt = k, t
			}
		}
		delete(s.dedup, oldest)
	}
	return true
}

// retryDelay is the wait before attempt+1: base*2^(attempt-1), capped, with
// 0.7..1.3 jitter.
func retryDelay(cfg Config, attempt int) time.Duration {
	d := cfg.RetryBase
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= cfg.RetryMaxDelay {
			d = cfg.RetryMaxDelay
			break
		}
	}
	d = time.Duration(float64(d) * (0.7 + rand.Float64()*0.6))
	return min(max(d, 0), cfg.RetryMaxDelay)
}
