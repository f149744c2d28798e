// Package app wires the schedule store, timer engine, actions and control API
// into one process and owns their lifecycle.
package app

import (
	"context"
	"fmt"
	"time"

	"cadence/internal/actions"
	"cadence/internal/api"
	"cadence/internal/config"
	"cadence/internal/eventbus"
	"cadence/internal/observability/pprof"
	rtsup "cadence/internal/runtime/supervisor"
	"cadence/internal/schedule"
	"cadence/internal/storage"
	"cadence/internal/task/engine"
	"cadence/internal/task/scheduler"
	logx "cadence/pkg/logx"
)

type App struct {
	cfgm *config.ConfigManager
	res  config.Resolved
	sup  *rtsup.Supervisor

	log   logx.Logger
	logs  *logx.Service
	bus   eventbus.Bus
	store storage.Store

	engine  *engine.Service
	timers  *scheduler.Service
	actions *actions.Registry
	sched   *schedule.Manager
	api     *api.Server
	pprof   *pprof.Service
}

// Status is served by GET /status.
type Status struct {
	Timers     scheduler.Snapshot `json:"timers"`
	Engine     engine.Snapshot    `json:"task_engine"`
	Supervisor *rtsup.Snapshot    `json:"supervisor,omitempty"`
	Events     eventStats         `json:"events"`
}

type eventStats struct {
	Dropped uint64 `json:"dropped"`
}

func NewApp(cfgPath string) (*App, error) {
	cfgm := config.NewConfigManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}
	res, err := resolve(cfg)
	if err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	logSvc, log := logx.New(logConfig(cfg))
	bus := eventbus.New()

	store, err := storage.Open(storageConfig(res), log.With(logx.String("comp", "storage")))
	if err != nil {
		_ = logSvc.Close()
		return nil, err
	}
	log.Info("storage opened", logx.String("driver", res.Storage.Driver), logx.String("path", res.Storage.Path))

	engineSvc := engine.New(engineConfig(res), log.With(logx.String("comp", "taskengine")), bus)
	timers := scheduler.New(timerConfig(res), engineSvc, log.With(logx.String("comp", "timers")), bus)
	acts := actions.New(actionsConfig(res), log.With(logx.String("comp", "actions")))
	mgr := schedule.New(store, timers, acts, log.With(logx.String("comp", "schedule")), bus)

	a := &App{
		cfgm:    cfgm,
		res:     res,
		log:     log.With(logx.String("comp", "app")),
		logs:    logSvc,
		bus:     bus,
		store:   store,
		engine:  engineSvc,
		timers:  timers,
		actions: acts,
		sched:   mgr,
		pprof:   pprof.New(pprofConfig(res), log.With(logx.String("comp", "pprof"))),
	}
	a.api = api.New(apiConfig(res), mgr, a.status, log.With(logx.String("comp", "http")))
	return a, nil
}

// Done is closed when the app supervisor context is canceled (fatal error or Stop()).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor (if any).
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

// Addr is the bound control API address, or "" before Start.
func (a *App) Addr() string { return a.api.Addr() }

func (a *App) status() any {
	st := Status{
		Timers: a.timers.Snapshot(),
		Engine: a.engine.Snapshot(),
		Events: eventStats{Dropped: eventbus.Dropped(a.bus)},
	}
	if a.sup != nil {
		snap := a.sup.Snapshot()
		st.Supervisor = &snap
	}
	return st
}

// resolve applies defaults and the cross-component checks that config.Resolve
// cannot make on its own.
func resolve(cfg *config.Config) (config.Resolved, error) {
	res, err := config.Resolve(cfg)
	if err != nil {
		return res, err
	}
	if err := pprof.Validate(pprofConfig(res)); err != nil {
		return res, fmt.Errorf("pprof: %w", err)
	}
	return res, nil
}

// Start brings the components up in dependency order: workers, timers,
// reconcile from storage, then the listener. A bind error is returned before
// anything is served. Stop must still be called after a failed Start.
func (a *App) Start(ctx context.Context) error {
	a.sup = rtsup.New(ctx, rtsup.WithLogger(a.log), rtsup.WithCancelOnError(true))

	// transactional config reload: validate before commit/publish
	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))
	a.cfgm.SetValidator(func(_ context.Context, cfg *config.Config) error {
		_, err := resolve(cfg)
		return err
	})

	a.engine.Start(a.sup.Context())
	a.timers.Start(a.sup.Context())

	if a.res.Scheduler.Reload {
		rctx, cancel := context.WithTimeout(a.sup.Context(), 30*time.Second)
		ok, failed, err := a.sched.ReconcileAll(rctx)
		cancel()
		if err != nil {
			return fmt.Errorf("reload schedules: %w", err)
		}
		fields := []logx.Field{logx.Int("armed", ok), logx.Int("failed", failed)}
		if failed > 0 {
			a.log.Warn("schedules reloaded with failures", fields...)
		} else {
			a.log.Info("schedules reloaded", fields...)
		}
	}

	if err := a.api.Listen(); err != nil {
		return fmt.Errorf("http listen %s: %w", a.res.HTTP.Addr, err)
	}
	a.sup.Go("http.serve", a.api.Serve)

	if a.pprof.Enabled() {
		a.pprof.Start(a.sup.Context())
	}

	// Optional: log events for observability/debug (components can also subscribe themselves).
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
				// Keep this debug-level to avoid noise from short intervals.
				a.log.Debug("event", logx.String("type", e.Type), logx.Time("time", e.Time))
			}
		}
	})

	a.sup.Go0("config.reload", a.reloadLoop)
	a.sup.Go("config.watch", a.cfgm.Watch)

	a.log.Info("app started", logx.String("addr", a.api.Addr()))
	return nil
}

func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil {
		return nil
	}
	a.log.Info("stopping", logx.String("reason", string(reason)))

	// First, cancel the app run context so background loops start unwinding immediately.
	a.sup.Cancel()

	shutdown := a.res.HTTP.ShutdownTimeout
	a.step(ctx, "http", shutdown, a.api.Shutdown)
	// Timers first so nothing new reaches the engine; the engine then drains in-flight actions.
	a.step(ctx, "timers", 2*time.Second, func(c context.Context) error { a.timers.Stop(c); return nil })
	a.step(ctx, "taskengine", a.res.Actions.Timeout, func(c context.Context) error { a.engine.Stop(c); return nil })
	a.step(ctx, "pprof", 1*time.Second, func(c context.Context) error { a.pprof.Stop(c); return nil })
	a.step(ctx, "storage", 1*time.Second, func(context.Context) error { return a.store.Close() })

	// Finally, wait for supervised goroutines (config watch/reload, http serve, etc.)
	a.step(ctx, "supervisor", 2*time.Second, a.sup.Wait)

	a.log.Info("stopped")
	return a.logs.Close()
}
