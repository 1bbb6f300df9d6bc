package logx

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"jobdesk/internal/transport"
)

const chatMaxLen = 3500

type chatItem struct {
	to  transport.ChatTarget
	msg string
}

// chatSink is a zerolog LevelWriter that mirrors lines to an operator chat.
// It never blocks the logging call site; overflow and rate excess are dropped.
type chatSink struct {
	mu       sync.Mutex
	sender   transport.Adapter
	target   transport.ChatTarget
	minLevel zerolog.Level
	limiter  *rate.Limiter

	queue  chan chatItem
	once   sync.Once
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func newChatSink(sender transport.Adapter) *chatSink {
	return &chatSink{
		sender:   sender,
		minLevel: zerolog.WarnLevel,
		limiter:  rate.NewLimiter(1, 1),
		queue:    make(chan chatItem, 256),
	}
}

func (c *chatSink) setSender(sender transport.Adapter) {
	c.mu.Lock()
	c.sender = sender
	c.mu.Unlock()
}

func (c *chatSink) configure(cfg ChatConfig) {
	rps := cfg.RatePerSec
	if rps < 1 {
		rps = 1
	}
	c.mu.Lock()
	c.target = transport.ChatTarget{ChatID: cfg.ChatID, ThreadID: cfg.ThreadID}
	c.minLevel = ParseLevel(cfg.MinLevel, zerolog.WarnLevel)
	c.limiter = rate.NewLimiter(rate.Limit(rps), rps)
	c.mu.Unlock()
	if cfg.Enabled && cfg.ChatID == 0 {
		fmt.Fprintln(Stderr(), "logx: chat logging enabled but logging.chat.chat_id is not set")
	}
}

func (c *chatSink) start() {
	c.once.Do(func() {
		ctx, cancel := context.WithCancel(context.Background())
		c.mu.Lock()
		c.cancel = cancel
		c.mu.Unlock()
		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			c.run(ctx)
		}()
	})
}

func (c *chatSink) stop() {
	c.mu.Lock()
	cancel := c.cancel
	c.cancel = nil
	c.mu.Unlock()
	if cancel != nil {
		cancel()
		c.wg.Wait()
	}
}

func (c *chatSink) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case it := <-c.queue:
			c.mu.Lock()
			sender := c.sender
			c.mu.Unlock()
			if sender == nil {
				continue
			}
			_, _ = sender.SendText(ctx, it.to, it.msg, &transport.SendOptions{DisablePreview: true})
		}
	}
}

func (c *chatSink) Write(p []byte) (int, error) { return c.WriteLevel(zerolog.InfoLevel, p) }

func (c *chatSink) WriteLevel(level zerolog.Level, p []byte) (int, error) {
	c.mu.Lock()
	to, minLvl, lim, sender := c.target, c.minLevel, c.limiter, c.sender
	c.mu.Unlock()

	if to.ChatID == 0 || sender == nil || level < minLvl || !lim.Allow() {
		return len(p), nil
	}
	msg := formatChatLine(p)
	if msg == "" {
		return len(p), nil
	}
	select {
	case c.queue <- chatItem{to: to, msg: msg}:
	default:
	}
	return len(p), nil
}

// formatChatLine turns a zerolog JSON line into "[LEVEL] msg" plus sorted
// key=value lines.
func formatChatLine(p []byte) string {
	var m map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(string(p))), &m); err != nil {
		return truncate(strings.TrimSpace(string(p)), chatMaxLen)
	}

	lvl, _ := m["level"].(string)
	msg, _ := m["message"].(string)

	var b strings.Builder
	if lvl != "" {
		b.WriteString("[" + strings.ToUpper(lvl) + "] ")
	}
	b.WriteString(msg)

	keys := make([]string, 0, len(m))
	for k := range m {
		switch k {
		case "time", "level", "message":
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		limit := 600
		if k == "stack" {
			limit = 900
		}
		b.WriteString("\n- " + k + "=" + truncate(fmt.Sprint(m[k]), limit))
	}
	return truncate(b.String(), chatMaxLen)
}

func truncate(s string, maxN int) string {
	if maxN <= 0 || len(s) <= maxN {
		return s
	}
	if maxN < 10 {
		return s[:maxN]
	}
	return s[:maxN-3] + "..."
}
