package router

import (
	"runtime"
	"slices"
	"sync"
	"time"

	"jobdesk/internal/runtime/supervisor"
	kit "jobdesk/internal/transport"
	logx "jobdesk/pkg/logx"
)

const defaultQueueSize = 256

type Options struct {
	Workers        int
	QueueSize      int
	DefaultTimeout time.Duration
}

// CommandManager routes updates to registered commands and callbacks and
// runs them on a bounded worker pool.
type CommandManager struct {
	mu     sync.RWMutex
	routes *routeTable
	owners []int64

	log     logx.Logger
	adapter kit.Adapter
	workers int
	timeout time.Duration

	runMu   sync.Mutex
	running bool
	sup     *supervisor.Supervisor
	appSup  *supervisor.Supervisor

	jobs chan func()
}

// routeTable is swapped whole on SetRegistry so readers never see a partial set.
type routeTable struct {
	root      *cmdNode
	alias     map[string]*cmdNode
	callbacks map[string]map[string]CallbackRoute
}

func emptyRoutes() *routeTable {
	return &routeTable{root: newRoot(), alias: map[string]*cmdNode{}, callbacks: map[string]map[string]CallbackRoute{}}
}

func NewCommandManager(log logx.Logger, adapter kit.Adapter, owners []int64, opt Options) *CommandManager {
	if log.IsZero() {
		log = logx.Nop()
	}
	if opt.QueueSize <= 0 {
		opt.QueueSize = defaultQueueSize
	}
	if opt.Workers <= 0 {
		opt.Workers = max(runtime.NumCPU(), 2)
	}
	return &CommandManager{
		routes:  emptyRoutes(),
		owners:  slices.Clone(owners),
		log:     log,
		adapter: adapter,
		workers: opt.Workers,
		timeout: opt.DefaultTimeout,
		jobs:    make(chan func(), opt.QueueSize),
	}
}

// SetAppSupervisor runs background work such as menu updates under the
// app's lifecycle.
func (m *CommandManager) SetAppSupervisor(sup *supervisor.Supervisor) {
	m.runMu.Lock()
	m.appSup = sup
	m.runMu.Unlock()
}

// Supervisor returns the dispatcher's supervisor, nil when not running.
func (m *CommandManager) Supervisor() *supervisor.Supervisor {
	m.runMu.Lock()
	defer m.runMu.Unlock()
	if !m.running {
		return nil
	}
	return m.sup
}

func (m *CommandManager) setSupervisor(sup *supervisor.Supervisor, running bool) {
	m.runMu.Lock()
	m.sup, m.running = sup, running
	m.runMu.Unlock()
}

// SetOwners replaces the owner list used by owner-only routes. Safe during
// hot reload.
func (m *CommandManager) SetOwners(owners []int64) {
	cp := slices.Clone(owners)
	m.mu.Lock()
	m.owners = cp
	m.mu.Unlock()
}

func (m *CommandManager) isOwner(id int64) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Contains(m.owners, id)
}

func (m *CommandManager) table() *routeTable {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.routes
}

func (m *CommandManager) timeoutFor(d time.Duration) time.Duration {
	if d > 0 {
		return d
	}
	return m.timeout
}
