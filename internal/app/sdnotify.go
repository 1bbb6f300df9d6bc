package app

import (
	"context"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	logx "jobdesk/pkg/logx"
)

// notifySystemd sends state to the service manager. Outside systemd
// (NOTIFY_SOCKET unset) it is a no-op.
func (a *App) notifySystemd(state string) {
	sent, err := daemon.SdNotify(false, state)
	if err != nil {
		a.log.Warn("sd_notify failed", logx.String("state", state), logx.Err(err))
		return
	}
	if sent {
		a.log.Debug("sd_notify sent", logx.String("state", state))
	}
}

// startWatchdog pings the systemd watchdog at half its configured interval.
func (a *App) startWatchdog() {
	every, err := daemon.SdWatchdogEnabled(false)
	if err != nil {
		a.log.Warn("systemd watchdog check failed", logx.Err(err))
		return
	}
	if every <= 0 {
		return
	}
	a.sup.Go0("systemd.watchdog", func(c context.Context) {
		t := time.NewTicker(every / 2)
		defer t.Stop()
		for {
			select {
			case <-c.Done():
				return
			case <-t.C:
				a.notifySystemd(daemon.SdNotifyWatchdog)
			}
		}
	})
	a.log.Info("systemd watchdog enabled", logx.Duration("interval", every))
}
