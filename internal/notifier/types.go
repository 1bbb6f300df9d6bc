package notifier

import (
	"context"
	"time"
)

// Config controls the async pipeline. Zero values take defaults.
type Config struct {
	Workers         int
	QueueSize       int
	RatePerSec      int
	RetryMax        int
	RetryBase       time.Duration
	RetryMaxDelay   time.Duration
	DedupWindow     time.Duration
	DedupMaxEntries int
}

// Targets reads the per-workspace settings that hold chat targets.
type Targets interface {
	GetSetting(ctx context.Context, workspace int64, key string) (string, bool, error)
}

// Channel names.
const (
	ChannelAnnounce = "announce"
	ChannelLog      = "log"
)

type HistoryItem struct {
	At        time.Time
	Channel   string
	Workspace int64
	Text      string
}

// NotificationEvent is published on the bus for pipeline lifecycle events.
type NotificationEvent struct {
	Channel   string    `json:"channel"`
	Workspace int64     `json:"workspace"`
	ChatID    int64     `json:"chat_id"`
	ThreadID  int       `json:"thread_id,omitempty"`
	Key       string    `json:"key"`
	At        time.Time `json:"at"`
	Error     string    `json:"error,omitempty"`
}

// Event types.
const (
	EventQueued  = "notifier.queued"
	EventSent    = "notifier.sent"
	EventFailed  = "notifier.failed"
	EventDropped = "notifier.dropped"
	EventDeduped = "notifier.deduped"
)
