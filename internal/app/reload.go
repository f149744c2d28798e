package app

import (
	"context"
	"strings"
	"time"

	"cadence/internal/config"
	"cadence/internal/eventbus"
	logx "cadence/pkg/logx"
)

// reloadLoop applies published configs to the live components. Sections that
// only take effect at startup are logged and otherwise ignored.
func (a *App) reloadLoop(c context.Context) {
	sub := a.cfgm.Subscribe(8)
	defer a.cfgm.Unsubscribe(sub)

	// Track last applied config to generate a safe diff summary.
	lastApplied := a.cfgm.Get()
	for {
		select {
		case <-c.Done():
			return
		case newCfg, ok := <-sub:
			if !ok {
				return
			}
			// Coalesce bursts: keep only the latest config in the channel.
		drain:
			for {
				select {
				case newer := <-sub:
					if newer != nil {
						newCfg = newer
					}
				default:
					break drain
				}
			}
			a.applyConfig(c, lastApplied, newCfg)
			lastApplied = newCfg
		}
	}
}

func (a *App) applyConfig(c context.Context, prev, next *config.Config) {
	res, err := resolve(next)
	if err != nil {
		// The manager validates before publishing; this only guards against drift.
		a.log.Warn("invalid config; keeping previous", logx.Err(err))
		return
	}

	sections, attrs := config.SummarizeConfigChange(prev, next)
	if len(sections) == 0 {
		a.log.Info("config reloaded (no changes)")
		return
	}
	fields := append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)
	a.log.Debug("config change summary", fields...)

	if restart := config.RequiresRestart(sections); len(restart) > 0 {
		a.log.Warn("config changed; restart required for changes to take effect",
			logx.String("sections", strings.Join(restart, ",")))
	}

	a.logs.Apply(logConfig(next))
	a.timers.Apply(timerConfig(res))
	a.engine.Apply(c, engineConfig(res))
	a.actions.Apply(actionsConfig(res))
	a.api.SetRate(res.HTTP.RatePerSec, res.HTTP.Burst)
	a.pprof.Reconfigure(c, pprofConfig(res))

	a.bus.Publish(eventbus.Event{Type: eventbus.TypeConfigReloaded, Time: time.Now(), Data: sections})

	// Keep the final log line concise and human-friendly (details are in debug logs).
	a.log.Info("config reloaded", fields...)
}
