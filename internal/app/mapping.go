package app

import (
	"cadence/internal/actions"
	"cadence/internal/api"
	"cadence/internal/config"
	"cadence/internal/observability/pprof"
	"cadence/internal/storage"
	"cadence/internal/task/engine"
	"cadence/internal/task/scheduler"
	logx "cadence/pkg/logx"
)

func logConfig(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		JSON:    cfg.Logging.JSON,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	}
}

func storageConfig(r config.Resolved) storage.Config {
	return storage.Config{
		Driver:      r.Storage.Driver,
		Path:        r.Storage.Path,
		BusyTimeout: r.Storage.BusyTimeout,
	}
}

func engineConfig(r config.Resolved) engine.Config {
	return engine.Config{
		Workers:        r.TaskEngine.Workers,
		QueueSize:      r.TaskEngine.QueueSize,
		DefaultTimeout: r.TaskEngine.DefaultTimeout,
		HistorySize:    r.TaskEngine.HistorySize,
	}
}

// timerConfig bounds one fired callback by the action timeout plus headroom
// for the history write.
func timerConfig(r config.Resolved) scheduler.Config {
	return scheduler.Config{
		Location:      r.Scheduler.Timezone,
		StartupSpread: r.Scheduler.StartupSpread,
		StartupWindow: r.Scheduler.StartupWindow,
		TaskTimeout:   r.Actions.Timeout + r.Storage.BusyTimeout,
	}
}

func actionsConfig(r config.Resolved) actions.Config {
	return actions.Config{
		SoundFile:    r.Actions.SoundFile,
		SoundCommand: r.Actions.SoundCommand,
		Timeout:      r.Actions.Timeout,
		DryRun:       r.Actions.DryRun,
	}
}

func apiConfig(r config.Resolved) api.Config {
	return api.Config{
		Addr:         r.HTTP.Addr,
		BasePath:     r.HTTP.BasePath,
		ReadTimeout:  r.HTTP.ReadTimeout,
		WriteTimeout: r.HTTP.WriteTimeout,
		RatePerSec:   r.HTTP.RatePerSec,
		Burst:        r.HTTP.Burst,
	}
}

func pprofConfig(r config.Resolved) pprof.Config {
	return pprof.Config{
		Enabled:       r.Pprof.Enabled,
		Addr:          r.Pprof.Addr,
		Prefix:        r.Pprof.Prefix,
		Token:         r.Pprof.Token,
		AllowInsecure: r.Pprof.AllowInsecure,
	}
}
