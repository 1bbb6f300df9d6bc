package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"jobdesk/internal/eventbus"
	logx "jobdesk/pkg/logx"
)

// Config controls the trigger service.
type Config struct {
	Timezone       string // IANA TZ, e.g. "Asia/Jakarta"; empty means Local
	DefaultTimeout time.Duration
}

// Job is the unit a schedule runs.
type Job func(ctx context.Context) error

type scheduleDef struct {
	name          string
	spec          string // cron spec or @every
	timeout       time.Duration
	job           Job
	entryID       cron.EntryID
	startupSpread time.Duration
}

type Service struct {
	mu sync.Mutex

	log logx.Logger
	cfg Config
	loc *time.Location
	bus eventbus.Bus

	parser cron.Parser
	c      *cron.Cron
	defs   []scheduleDef

	// base is cancelled by Stop so in-flight jobs see shutdown.
	base   context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	running sync.Map // schedule name -> struct{} while a run is in flight
}

type ScheduleInfo struct {
	Name          string
	Spec          string
	Timeout       time.Duration
	StartupSpread time.Duration
	Next          time.Time
	Prev          time.Time
}

type Snapshot struct {
	Running   bool
	Timezone  string
	Schedules []ScheduleInfo
}
