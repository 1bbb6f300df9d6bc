package config

import (
	"reflect"
	"sort"
	"strings"

	logx "jobdesk/pkg/logx"
)

// SummarizeChange returns the changed top-level sections and safe attrs for
// logging them. The bot token is never included.
func SummarizeChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	changed := make([]string, 0, 7)
	attrs := make([]logx.Field, 0, 16)

	ot, nt := oldCfg.Telegram, newCfg.Telegram
	if strings.TrimSpace(ot.PollTimeout) != strings.TrimSpace(nt.PollTimeout) ||
		!reflect.DeepEqual(ot.OwnerUserIDs, nt.OwnerUserIDs) ||
		(ot.Token != nt.Token) {
		changed = append(changed, "telegram")
		attrs = append(attrs,
			logx.Int("telegram.owner_count", len(nt.OwnerUserIDs)),
			logx.Bool("telegram.token_changed", ot.Token != nt.Token),
		)
	}

	if !reflect.DeepEqual(oldCfg.Logging, newCfg.Logging) {
		l := newCfg.Logging
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logging.level", l.Level),
			logx.Bool("logging.console", l.Console),
			logx.Bool("logging.file_enabled", l.File.Enabled),
			logx.Bool("logging.chat_enabled", l.Chat.Enabled),
		)
	}

	if oldCfg.Storage != newCfg.Storage {
		changed = append(changed, "storage")
		attrs = append(attrs, logx.Bool("storage.restart_required", true))
	}

	if oldCfg.Notifier != newCfg.Notifier {
		n := newCfg.Notifier
		changed = append(changed, "notifier")
		attrs = append(attrs,
			logx.Int("notifier.workers", n.Workers),
			logx.Int("notifier.rate_per_sec", n.RatePerSec),
			logx.Int("notifier.retry_max", n.RetryMax),
		)
	}

	if !reflect.DeepEqual(oldCfg.Board, newCfg.Board) {
		changed = append(changed, "board")
		attrs = append(attrs, logx.Int("board.page_size", newCfg.Board.PageSize))
	}

	if !reflect.DeepEqual(oldCfg.Rotation, newCfg.Rotation) {
		r := newCfg.Rotation
		changed = append(changed, "rotation")
		attrs = append(attrs,
			logx.String("rotation.reminder_every", r.ReminderEvery),
			logx.String("rotation.rotate_every", r.RotateEvery),
			logx.String("rotation.timezone", r.Timezone),
		)
	}

	if oldCfg.Commands != newCfg.Commands {
		changed = append(changed, "commands")
		attrs = append(attrs, logx.String("commands.timeout", newCfg.Commands.Timeout))
	}

	sort.Strings(changed)
	return changed, attrs
}
