package config

// Config is the on-disk configuration (JSON or YAML).
//
// All durations are Go duration strings (e.g. "500ms", "10s", "1m").
type Config struct {
	Logging    LoggingConfig     `json:"logging"`
	HTTP       HTTPConfig        `json:"http"`
	Storage    StorageConfig     `json:"storage"`
	Scheduler  SchedulerConfig   `json:"scheduler"`
	TaskEngine *TaskEngineConfig `json:"task_engine,omitempty"`
	Actions    ActionsConfig     `json:"actions"`
	Pprof      PprofConfig       `json:"pprof,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	JSON    bool        `json:"json,omitempty"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// HTTPConfig controls the control API listener.
//
// Addr and BasePath are read once at startup; the rate limiter follows reloads.
type HTTPConfig struct {
	Addr     string `json:"addr,omitempty"`      // default: "127.0.0.1:5001"
	BasePath string `json:"base_path,omitempty"` // default: "" (routes at root)

	ReadTimeout     string `json:"read_timeout,omitempty"`
	WriteTimeout    string `json:"write_timeout,omitempty"`
	ShutdownTimeout string `json:"shutdown_timeout,omitempty"`

	// RatePerSec limits mutating requests (POST/PUT/DELETE). 0 disables limiting.
	RatePerSec int `json:"rate_per_sec,omitempty"`
	Burst      int `json:"burst,omitempty"`
}

// StorageConfig controls the schedule store.
//
// Example:
//
//	"storage": { "driver": "sqlite", "path": "./data/cadence.db" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"`
}

// SchedulerConfig controls the timer engine.
type SchedulerConfig struct {
	// Timezone used by the cron clock (IANA name, default: local).
	Timezone string `json:"timezone,omitempty"`
	// ReloadOnStart re-arms timers for every active schedule at startup. Default true.
	ReloadOnStart *bool `json:"reload_on_start,omitempty"`
	// StartupSpread delays the first fire of timers armed during the first
	// StartupWindow by up to this much. Empty or "0" disables it.
	StartupSpread string `json:"startup_spread,omitempty"`
	StartupWindow string `json:"startup_window,omitempty"` // default: "30s"
}

// TaskEngineConfig controls the worker pool that runs fired actions.
//
// Defaults (when fields are omitted/zero):
//   - workers: 2
//   - queue_size: 64
//   - default_timeout: "2m"
//   - history_size: 200
type TaskEngineConfig struct {
	Workers        int    `json:"workers,omitempty"`
	QueueSize      int    `json:"queue_size,omitempty"`
	DefaultTimeout string `json:"default_timeout,omitempty"`
	HistorySize    int    `json:"history_size,omitempty"`
}

// ActionsConfig controls the side-effect callbacks.
type ActionsConfig struct {
	// SoundFile is passed as the last argument to SoundCommand.
	SoundFile string `json:"sound_file,omitempty"` // default: "alert.wav"
	// SoundCommand is the player argv. Empty picks a per-OS default.
	SoundCommand []string `json:"sound_command,omitempty"`
	// Timeout bounds a single action. Default "30s".
	Timeout string `json:"timeout,omitempty"`
	// DryRun logs actions instead of performing them.
	DryRun bool `json:"dry_run,omitempty"`
}

// PprofConfig controls the optional pprof HTTP server.
//
// A non-loopback addr requires token or allow_insecure.
type PprofConfig struct {
	Enabled       bool   `json:"enabled"`
	Addr          string `json:"addr,omitempty"`   // default: "127.0.0.1:6060"
	Prefix        string `json:"prefix,omitempty"` // default: "/debug/pprof/"
	Token         string `json:"token,omitempty"`
	AllowInsecure bool   `json:"allow_insecure,omitempty"`
}
