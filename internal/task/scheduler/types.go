package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"cadence/internal/eventbus"
	"cadence/internal/task/engine"
	logx "cadence/pkg/logx"
)

// MinInterval is the resolution of the cron clock.
const MinInterval = time.Second

var (
	ErrInvalidKey      = errors.New("invalid timer key")
	ErrInvalidInterval = errors.New("invalid timer interval")
	ErrNilJob          = errors.New("timer job is nil")
)

// Dispatcher runs fired callbacks off the timer goroutine.
type Dispatcher interface {
	Enqueue(t engine.Task) error
}

// DispatcherFunc adapts a function to Dispatcher.
type DispatcherFunc func(t engine.Task) error

func (f DispatcherFunc) Enqueue(t engine.Task) error { return f(t) }

type Config struct {
	// Location of the cron clock. Nil means time.Local.
	Location *time.Location
	// StartupSpread delays the first fire of timers registered in the first
	// StartupWindow after Start by a random amount up to this value, so a
	// reload of many schedules does not fire them all at once. 0 disables it.
	StartupSpread time.Duration
	StartupWindow time.Duration
	// TaskTimeout bounds one callback run. 0 uses the dispatcher default.
	TaskTimeout time.Duration
}

type registration struct {
	key          string
	every        time.Duration
	job          func(ctx context.Context) error
	ver          uint64
	entryID      cron.EntryID
	registeredAt time.Time
	spread       time.Duration

	fires    uint64
	lastFire time.Time
}

type Service struct {
	mu sync.Mutex

	log  logx.Logger
	cfg  Config
	bus  eventbus.Bus
	disp Dispatcher

	c         *cron.Cron
	startedAt time.Time
	regs      map[string]*registration
	verSeq    uint64

	enqMu       sync.Mutex
	lastEnqWarn map[string]time.Time
}

// TimerInfo describes one live registration.
type TimerInfo struct {
	Key          string        `json:"key"`
	Every        time.Duration `json:"every"`
	Next         time.Time     `json:"next"`
	Prev         time.Time     `json:"prev"`
	Fires        uint64        `json:"fires"`
	LastFire     time.Time     `json:"last_fire"`
	RegisteredAt time.Time     `json:"registered_at"`
}

type Snapshot struct {
	Running  bool        `json:"running"`
	Timezone string      `json:"timezone"`
	Timers   []TimerInfo `json:"timers"`
}
