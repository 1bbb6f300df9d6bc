package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/coreos/go-systemd/v22/daemon"

	"jobdesk/internal/access"
	"jobdesk/internal/board"
	"jobdesk/internal/category"
	"jobdesk/internal/commands"
	"jobdesk/internal/config"
	"jobdesk/internal/desk"
	"jobdesk/internal/eventbus"
	"jobdesk/internal/jobs"
	"jobdesk/internal/notifier"
	"jobdesk/internal/rotation"
	"jobdesk/internal/runtime/supervisor"
	"jobdesk/internal/storage"
	"jobdesk/internal/task/scheduler"
	kit "jobdesk/internal/transport"
	telegram "jobdesk/internal/transport/telegram/adapter"
	"jobdesk/internal/transport/telegram/router"
	logx "jobdesk/pkg/logx"
)

const updatesBuffer = 256

type App struct {
	cfgm *config.Manager
	rt   config.Runtime
	sup  *supervisor.Supervisor

	log   logx.Logger
	logs  *logx.Service
	bus   eventbus.Bus
	store *storage.SQLite

	adapter *telegram.Adapter

	sched   *scheduler.Service
	notif   *notifier.Service
	gate    *access.Gate
	pager   *board.Paginator
	rot     *rotation.Service
	auditor *desk.Auditor
	cmdm    *router.CommandManager
	cmds    *commands.Set

	updates chan kit.Update
}

// New loads the config and builds every component. Nothing runs until Start.
func New(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	rt, err := config.Resolve(cfg)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	logs, log := logx.New(rt.Logging, nil)
	cfgm.SetLogger(log)

	ad, err := telegram.New(telegram.Config{Token: rt.Token, PollTimeout: rt.PollTimeout},
		log.With(logx.Component("telegram")))
	if err != nil {
		_ = logs.Close()
		return nil, err
	}
	logs.SetSender(ad)

	store, err := storage.Open(rt.Storage, log.With(logx.Component("storage")))
	if err != nil {
		_ = logs.Close()
		return nil, err
	}

	bus := eventbus.New()
	sched := scheduler.New(rt.Scheduler, log.With(logx.Component("scheduler")), bus)
	notif := notifier.New(rt.Notifier, ad, store, log.With(logx.Component("notifier")), bus)
	gate := access.NewGate(store, ad, rt.Owners, log)

	cats := category.NewGate(store, log)
	pager := board.NewPaginator(store, notif, rt.BoardPageSize, log)
	rot := rotation.New(rt.Rotation, store, notif, sched, log, bus)
	rot.SetDirectory(gate)

	dsk := desk.New(desk.Deps{
		Store:    store,
		Engine:   jobs.NewEngine(store, cats, log),
		Gate:     cats,
		Board:    pager,
		Rotation: rot,
		Perms:    gate,
		Notify:   notif,
		Bus:      bus,
	}, log)

	set := commands.New(commands.Deps{
		Desk:      dsk,
		Audit:     store,
		Schedules: sched,
		History:   notif,
	}, log)
	set.SetBoardPin(rt.BoardPin)

	cmdm := router.NewCommandManager(log.With(logx.Component("commands")), ad, rt.Owners, router.Options{
		Workers:        rt.CommandWorkers,
		QueueSize:      rt.CommandQueueSize,
		DefaultTimeout: rt.CommandTimeout,
	})

	a := &App{
		cfgm:    cfgm,
		rt:      rt,
		log:     log.With(logx.Component("app")),
		logs:    logs,
		bus:     bus,
		store:   store,
		adapter: ad,
		sched:   sched,
		notif:   notif,
		gate:    gate,
		pager:   pager,
		rot:     rot,
		auditor: desk.NewAuditor(store, bus, log),
		cmdm:    cmdm,
		cmds:    set,
		updates: make(chan kit.Update, updatesBuffer),
	}
	return a, nil
}

// Done is closed when the app context is canceled by a fatal error or Stop.
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error seen by the supervisor.
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Start(ctx context.Context) error {
	a.sup = supervisor.New(ctx, supervisor.WithLogger(a.log), supervisor.WithCancelOnError(true))
	a.cmdm.SetAppSupervisor(a.sup)
	a.cmdm.SetRegistry(a.cmds.Commands(), a.cmds.Callbacks())

	if err := a.adapter.Start(a.sup.Context(), a.updates); err != nil {
		return err
	}
	a.sup.Go("commands.dispatch", func(c context.Context) error {
		return a.cmdm.DispatchLoop(c, a.updates)
	})
	a.sup.Go("audit", a.auditor.Run)

	a.notif.Start(a.sup.Context())
	a.sched.Start(a.sup.Context())
	if err := a.rot.Register(); err != nil {
		return fmt.Errorf("rotation: %w", err)
	}
	// Timers may fire from here on; before this they skip.
	a.rot.MarkReady()

	a.watchEvents()
	a.watchConfig()
	a.startWatchdog()
	a.notifySystemd(daemon.SdNotifyReady)

	a.log.Info("app started",
		logx.Int("owners", len(a.rt.Owners)),
		logx.Int("page_size", a.rt.BoardPageSize),
		logx.Bool("rotation", a.rt.Rotation.Enabled))
	return nil
}

// watchEvents mirrors bus traffic to debug logs.
func (a *App) watchEvents() {
	events, unsub := a.bus.Subscribe(128)
	a.sup.Go0("eventbus.log", func(c context.Context) {
		defer unsub()
		for {
			select {
			case <-c.Done():
				return
			case e, ok := <-events:
				if !ok {
					return
				}
				a.log.Debug("event", logx.String("type", e.Type), logx.Time("time", e.Time))
			}
		}
	})
}

func (a *App) watchConfig() {
	sub := a.cfgm.Subscribe(8)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		last := a.cfgm.Get()
		for {
			select {
			case <-c.Done():
				return
			case next, ok := <-sub:
				if !ok {
					return
				}
				next = latest(sub, next)
				a.reload(last, next)
				last = next
			}
		}
	})
	a.sup.Go("config.watch", a.cfgm.Watch)
}

// latest drains ch so a burst of reloads applies only the newest config.
func latest(ch <-chan *config.Config, cur *config.Config) *config.Config {
	for {
		select {
		case next, ok := <-ch:
			if !ok {
				return cur
			}
			if next != nil {
				cur = next
			}
		default:
			return cur
		}
	}
}

// reload applies the hot-reloadable parts of a new config. The manager has
// already validated it, so a Resolve error here means a racing edit.
func (a *App) reload(prev, next *config.Config) {
	sections, attrs := config.SummarizeChange(prev, next)
	if len(sections) == 0 {
		a.log.Debug("config reload received, no effective changes")
		return
	}
	rt, err := config.Resolve(next)
	if err != nil {
		a.log.Warn("config reload rejected; keeping previous", logx.Err(err))
		return
	}

	for _, s := range sections {
		switch s {
		case "storage":
			a.log.Warn("storage config changed; restart required")
		case "telegram":
			if rt.Token != a.rt.Token || rt.PollTimeout != a.rt.PollTimeout {
				a.log.Warn("telegram token or poll timeout changed; restart required")
			}
		case "commands":
			a.log.Warn("command worker settings changed; restart required")
		}
	}

	a.logs.Apply(rt.Logging)
	a.gate.SetOwners(rt.Owners)
	a.cmdm.SetOwners(rt.Owners)
	a.notif.Apply(rt.Notifier)
	a.pager.SetPageSize(rt.BoardPageSize)
	a.cmds.SetBoardPin(rt.BoardPin)
	a.sched.Apply(rt.Scheduler)
	if err := a.rot.Apply(rt.Rotation); err != nil {
		a.log.Warn("rotation reschedule failed", logx.Err(err))
	}

	// Keep restart-only values from the running instance.
	rt.Token, rt.PollTimeout, rt.Storage = a.rt.Token, a.rt.PollTimeout, a.rt.Storage
	rt.CommandWorkers, rt.CommandQueueSize, rt.CommandTimeout = a.rt.CommandWorkers, a.rt.CommandQueueSize, a.rt.CommandTimeout
	a.rt = rt

	fields := append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)
	a.log.Info("config applied", fields...)
}
