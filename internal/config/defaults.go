package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	DefaultHTTPAddr        = "127.0.0.1:5001"
	DefaultStorageDriver   = "sqlite"
	DefaultStoragePath     = "./data/cadence.db"
	DefaultSoundFile       = "alert.wav"
	DefaultActionTimeout   = 30 * time.Second
	DefaultShutdownTimeout = 5 * time.Second
	DefaultPprofAddr       = "127.0.0.1:6060"
)

// Resolved is the typed view of Config with defaults applied and durations parsed.
type Resolved struct {
	HTTP       ResolvedHTTP
	Storage    ResolvedStorage
	Scheduler  ResolvedScheduler
	TaskEngine ResolvedTaskEngine
	Actions    ResolvedActions
	Pprof      PprofConfig
}

type ResolvedScheduler struct {
	Timezone      *time.Location
	Reload        bool
	StartupSpread time.Duration
	StartupWindow time.Duration
}

type ResolvedHTTP struct {
	Addr            string
	BasePath        string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	RatePerSec      int
	Burst           int
}

type ResolvedStorage struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration
}

type ResolvedTaskEngine struct {
	Workers        int
	QueueSize      int
	DefaultTimeout time.Duration
	HistorySize    int
}

type ResolvedActions struct {
	SoundFile    string
	SoundCommand []string
	Timeout      time.Duration
	DryRun       bool
}

// Resolve validates cfg and applies defaults. All problems are reported together.
func Resolve(cfg *Config) (Resolved, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	var (
		out  Resolved
		errs []error
	)
	keep := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	// http
	h := cfg.HTTP
	out.HTTP.Addr = strings.TrimSpace(h.Addr)
	if out.HTTP.Addr == "" {
		out.HTTP.Addr = DefaultHTTPAddr
	}
	out.HTTP.BasePath = normalizeBasePath(h.BasePath)
	var err error
	out.HTTP.ReadTimeout, err = ParseDurationOrDefault("http.read_timeout", h.ReadTimeout, 15*time.Second)
	keep(err)
	out.HTTP.WriteTimeout, err = ParseDurationOrDefault("http.write_timeout", h.WriteTimeout, 60*time.Second)
	keep(err)
	out.HTTP.ShutdownTimeout, err = ParseDurationOrDefault("http.shutdown_timeout", h.ShutdownTimeout, DefaultShutdownTimeout)
	keep(err)
	if h.RatePerSec < 0 {
		keep(fmt.Errorf("http.rate_per_sec: must be >= 0"))
	}
	out.HTTP.RatePerSec = max(0, h.RatePerSec)
	out.HTTP.Burst = h.Burst
	if out.HTTP.Burst <= 0 {
		out.HTTP.Burst = max(1, out.HTTP.RatePerSec)
	}

	// storage
	s := cfg.Storage
	out.Storage.Driver = strings.ToLower(strings.TrimSpace(s.Driver))
	if out.Storage.Driver == "" {
		out.Storage.Driver = DefaultStorageDriver
	}
	if out.Storage.Driver != "sqlite" {
		keep(fmt.Errorf("storage.driver: unsupported driver %q", s.Driver))
	}
	out.Storage.Path = strings.TrimSpace(s.Path)
	if out.Storage.Path == "" {
		out.Storage.Path = DefaultStoragePath
	}
	out.Storage.BusyTimeout, err = ParseDurationOrDefault("storage.busy_timeout", s.BusyTimeout, 5*time.Second)
	keep(err)

	// scheduler
	sc := cfg.Scheduler
	out.Scheduler.Timezone = time.Local
	if tz := strings.TrimSpace(sc.Timezone); tz != "" {
		loc, lerr := time.LoadLocation(tz)
		if lerr != nil {
			keep(fmt.Errorf("scheduler.timezone: %w", lerr))
		} else {
			out.Scheduler.Timezone = loc
		}
	}
	out.Scheduler.Reload = true
	if sc.ReloadOnStart != nil {
		out.Scheduler.Reload = *sc.ReloadOnStart
	}
	out.Scheduler.StartupSpread, err = ParseDurationField("scheduler.startup_spread", sc.StartupSpread)
	keep(err)
	out.Scheduler.StartupWindow, err = ParseDurationOrDefault("scheduler.startup_window", sc.StartupWindow, 30*time.Second)
	keep(err)

	// task engine
	te := TaskEngineConfig{}
	if cfg.TaskEngine != nil {
		te = *cfg.TaskEngine
	}
	out.TaskEngine.Workers = te.Workers
	if out.TaskEngine.Workers <= 0 {
		out.TaskEngine.Workers = 2
	}
	out.TaskEngine.QueueSize = te.QueueSize
	if out.TaskEngine.QueueSize <= 0 {
		out.TaskEngine.QueueSize = 64
	}
	out.TaskEngine.HistorySize = te.HistorySize
	if out.TaskEngine.HistorySize <= 0 {
		out.TaskEngine.HistorySize = 200
	}
	out.TaskEngine.DefaultTimeout, err = ParseDurationOrDefault("task_engine.default_timeout", te.DefaultTimeout, 2*time.Minute)
	keep(err)

	// actions
	a := cfg.Actions
	out.Actions.SoundFile = strings.TrimSpace(a.SoundFile)
	if out.Actions.SoundFile == "" {
		out.Actions.SoundFile = DefaultSoundFile
	}
	for _, arg := range a.SoundCommand {
		if strings.TrimSpace(arg) == "" {
			keep(fmt.Errorf("actions.sound_command: empty argument"))
			break
		}
	}
	out.Actions.SoundCommand = append([]string(nil), a.SoundCommand...)
	out.Actions.Timeout, err = ParseDurationOrDefault("actions.timeout", a.Timeout, DefaultActionTimeout)
	keep(err)
	out.Actions.DryRun = a.DryRun

	// pprof
	out.Pprof = cfg.Pprof
	out.Pprof.Addr = strings.TrimSpace(out.Pprof.Addr)
	if out.Pprof.Addr == "" {
		out.Pprof.Addr = DefaultPprofAddr
	}
	out.Pprof.Token = strings.TrimSpace(out.Pprof.Token)

	if len(errs) > 0 {
		return out, errors.Join(errs...)
	}
	return out, nil
}

func normalizeBasePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" || p == "/" {
		return ""
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return strings.TrimRight(p, "/")
}
