package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"jobdesk/internal/notifier"
	"jobdesk/internal/rotation"
	"jobdesk/internal/storage"
	"jobdesk/internal/task/scheduler"
	logx "jobdesk/pkg/logx"
)

// TokenEnv overrides telegram.token when set.
const TokenEnv = "JOBDESK_TOKEN"

const (
	defaultPageSize    = 8
	maxPageSize        = 50
	defaultPollTimeout = 10 * time.Second
	defaultCmdTimeout  = 15 * time.Second
)

// Runtime is the validated, typed view every component is configured from.
type Runtime struct {
	Token       string
	Owners      []int64
	PollTimeout time.Duration

	Logging   logx.Config
	Storage   storage.Config
	Notifier  notifier.Config
	Scheduler scheduler.Config
	Rotation  rotation.Config

	BoardPageSize int
	BoardPin      bool

	CommandWorkers   int
	CommandQueueSize int
	CommandTimeout   time.Duration
}

// applyEnv lets the environment supply secrets the file should not hold.
func applyEnv(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv(TokenEnv)); v != "" {
		cfg.Telegram.Token = v
	}
}

// Resolve validates cfg and converts it into a Runtime with defaults applied.
func Resolve(cfg *Config) (Runtime, error) {
	if cfg == nil {
		return Runtime{}, errors.New("config is nil")
	}
	var (
		rt   Runtime
		errs []error
	)
	// dur parses a duration field; empty or zero means def.
	dur := func(path, raw string, def time.Duration) time.Duration {
		s := strings.TrimSpace(raw)
		if s == "" {
			return def
		}
		d, err := time.ParseDuration(s)
		switch {
		case err != nil:
			errs = append(errs, fmt.Errorf("%s: invalid duration %q: %w", path, raw, err))
		case d < 0:
			errs = append(errs, fmt.Errorf("%s: duration must be >= 0", path))
		case d > 0:
			return d
		}
		return def
	}

	rt.Token = strings.TrimSpace(cfg.Telegram.Token)
	if rt.Token == "" {
		errs = append(errs, fmt.Errorf("telegram.token is empty (or set %s)", TokenEnv))
	}
	rt.Owners = append([]int64(nil), cfg.Telegram.OwnerUserIDs...)
	rt.PollTimeout = dur("telegram.poll_timeout", cfg.Telegram.PollTimeout, defaultPollTimeout)

	lc := cfg.Logging
	rt.Logging = logx.Config{
		Level:   lc.Level,
		Console: lc.Console,
		File:    logx.FileConfig{Enabled: lc.File.Enabled, Path: lc.File.Path},
		Chat: logx.ChatConfig{
			Enabled:    lc.Chat.Enabled,
			ChatID:     lc.Chat.ChatID,
			ThreadID:   lc.Chat.ThreadID,
			MinLevel:   lc.Chat.MinLevel,
			RatePerSec: lc.Chat.RatePerSec,
		},
	}
	if lc.File.Enabled && strings.TrimSpace(lc.File.Path) == "" {
		errs = append(errs, errors.New("logging.file.path is required when file logging is enabled"))
	}

	rt.Storage = storage.Config{
		Path:        strings.TrimSpace(cfg.Storage.Path),
		BusyTimeout: dur("storage.busy_timeout", cfg.Storage.BusyTimeout, 0),
	}
	if rt.Storage.Path == "" {
		rt.Storage.Path = "jobdesk.db"
	}

	nc := cfg.Notifier
	if nc.Workers < 0 || nc.QueueSize < 0 || nc.RatePerSec < 0 || nc.RetryMax < 0 {
		errs = append(errs, errors.New("notifier: counts must be >= 0"))
	}
	rt.Notifier = notifier.Config{
		Workers:         nc.Workers,
		QueueSize:       nc.QueueSize,
		RatePerSec:      nc.RatePerSec,
		RetryMax:        nc.RetryMax,
		RetryBase:       dur("notifier.retry_base", nc.RetryBase, 0),
		RetryMaxDelay:   dur("notifier.retry_max_delay", nc.RetryMaxDelay, 0),
		DedupWindow:     dur("notifier.dedup_window", nc.DedupWindow, 0),
		DedupMaxEntries: nc.DedupMaxEntries,
	}

	rt.BoardPageSize = cfg.Board.PageSize
	switch {
	case rt.BoardPageSize == 0:
		rt.BoardPageSize = defaultPageSize
	case rt.BoardPageSize < 0 || rt.BoardPageSize > maxPageSize:
		errs = append(errs, fmt.Errorf("board.page_size must be within 1..%d", maxPageSize))
	}
	rt.BoardPin = cfg.Board.Pin == nil || *cfg.Board.Pin

	rc := cfg.Rotation
	rt.Rotation = rotation.Config{
		Enabled:       rc.Enabled == nil || *rc.Enabled,
		ReminderEvery: dur("rotation.reminder_every", rc.ReminderEvery, 0),
		RotateEvery:   dur("rotation.rotate_every", rc.RotateEvery, 0),
		TaskTimeout:   dur("rotation.task_timeout", rc.TaskTimeout, 0),
		Parallelism:   rc.Parallelism,
	}
	if rc.Parallelism < 0 {
		errs = append(errs, errors.New("rotation.parallelism must be >= 0"))
	}
	rt.Scheduler = scheduler.Config{Timezone: strings.TrimSpace(rc.Timezone)}
	if rt.Scheduler.Timezone != "" {
		if _, err := time.LoadLocation(rt.Scheduler.Timezone); err != nil {
			errs = append(errs, fmt.Errorf("rotation.timezone: %w", err))
		}
	}

	cc := cfg.Commands
	if cc.Workers < 0 || cc.QueueSize < 0 {
		errs = append(errs, errors.New("commands: counts must be >= 0"))
	}
	rt.CommandWorkers = cc.Workers
	rt.CommandQueueSize = cc.QueueSize
	rt.CommandTimeout = dur("commands.timeout", cc.Timeout, defaultCmdTimeout)

	if err := errors.Join(errs...); err != nil {
		return Runtime{}, err
	}
	return rt, nil
}
