package config

// Config is the on-disk shape. Durations are Go duration strings.
type Config struct {
	Telegram TelegramConfig `json:"telegram"`
	Logging  LoggingConfig  `json:"logging"`
	Storage  StorageConfig  `json:"storage"`
	Notifier NotifierConfig `json:"notifier"`
	Board    BoardConfig    `json:"board"`
	Rotation RotationConfig `json:"rotation"`
	Commands CommandsConfig `json:"commands"`
}

type TelegramConfig struct {
	Token        string  `json:"token"`
	OwnerUserIDs []int64 `json:"owner_user_ids"`
	// PollTimeout is a Go duration string (e.g. "10s", "2m").
	PollTimeout string `json:"poll_timeout"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
	Chat    LoggingChat `json:"chat"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// LoggingChat mirrors warnings to an operator chat.
type LoggingChat struct {
	Enabled    bool   `json:"enabled"`
	ChatID     int64  `json:"chat_id"`
	ThreadID   int    `json:"thread_id"`
	MinLevel   string `json:"min_level"`
	RatePerSec int    `json:"rate_per_sec"`
}

// StorageConfig selects the SQLite file. Changes need a restart.
//
// Example:
//
//	"storage": { "path": "./data/jobdesk.db", "busy_timeout": "5s" }
type StorageConfig struct {
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"`
}

// NotifierConfig controls the async announcement pipeline.
//
// Defaults (when fields are omitted/zero):
//   - workers: 2
//   - queue_size: 256
//   - rate_per_sec: 20
//   - retry_max: 3
//   - retry_base: "500ms"
//   - retry_max_delay: "10s"
//   - dedup_window: "0s" (disabled)
type NotifierConfig struct {
	Workers         int    `json:"workers"`
	QueueSize       int    `json:"queue_size"`
	RatePerSec      int    `json:"rate_per_sec"`
	RetryMax        int    `json:"retry_max"`
	RetryBase       string `json:"retry_base"`
	RetryMaxDelay   string `json:"retry_max_delay"`
	DedupWindow     string `json:"dedup_window,omitempty"`
	DedupMaxEntries int    `json:"dedup_max_entries,omitempty"`
}

type BoardConfig struct {
	PageSize int `json:"page_size"`
	// Pin is a pointer so an explicit false survives defaults.
	Pin *bool `json:"pin,omitempty"`
}

type RotationConfig struct {
	Enabled       *bool  `json:"enabled,omitempty"`
	ReminderEvery string `json:"reminder_every"`
	RotateEvery   string `json:"rotate_every"`
	// Timezone is an IANA name; empty means Local.
	Timezone    string `json:"timezone,omitempty"`
	TaskTimeout string `json:"task_timeout,omitempty"`
	Parallelism int    `json:"parallelism,omitempty"`
}

type CommandsConfig struct {
	Workers   int    `json:"workers"`
	QueueSize int    `json:"queue_size"`
	Timeout   string `json:"timeout"`
}
