package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDecodeJSONAndYAML(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		file string
		data string
	}{
		{
			name: "json",
			file: "config.json",
			data: `{"http":{"addr":"127.0.0.1:9000"},"scheduler":{"timezone":"UTC"},"actions":{"sound_file":"a.wav"}}`,
		},
		{
			name: "yaml",
			file: "config.yaml",
			data: "http:\n  addr: 127.0.0.1:9000\nscheduler:\n  timezone: UTC\nactions:\n  sound_file: a.wav\n",
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg, err := Decode(tt.file, []byte(tt.data))
			if err != nil {
				t.Fatalf("Decode error: %v", err)
			}
			if cfg.HTTP.Addr != "127.0.0.1:9000" {
				t.Fatalf("HTTP.Addr = %q", cfg.HTTP.Addr)
			}
			if cfg.Scheduler.Timezone != "UTC" {
				t.Fatalf("Scheduler.Timezone = %q", cfg.Scheduler.Timezone)
			}
			if cfg.Actions.SoundFile != "a.wav" {
				t.Fatalf("Actions.SoundFile = %q", cfg.Actions.SoundFile)
			}
		})
	}
}

func TestDecodeRejectsUnknownFieldsAndTrailingData(t *testing.T) {
	t.Parallel()
	if _, err := Decode("c.json", []byte(`{"smtp":{}}`)); err == nil {
		t.Fatalf("expected unknown field error")
	}
	if _, err := Decode("c.yaml", []byte("http:\n  port: 1\n")); err == nil {
		t.Fatalf("expected unknown field error for yaml")
	}
	if _, err := Decode("c.json", []byte(`{} {}`)); err == nil {
		t.Fatalf("expected trailing data error")
	}
}

func TestResolveDefaults(t *testing.T) {
	t.Parallel()
	r, err := Resolve(&Config{})
	if err != nil {
		t.Fatalf("Resolve error: %v", err)
	}
	if r.HTTP.Addr != DefaultHTTPAddr {
		t.Fatalf("Addr = %q", r.HTTP.Addr)
	}
	if r.Storage.Driver != "sqlite" || r.Storage.Path != DefaultStoragePath {
		t.Fatalf("Storage = %+v", r.Storage)
	}
	if r.TaskEngine.Workers != 2 || r.TaskEngine.QueueSize != 64 || r.TaskEngine.DefaultTimeout != 2*time.Minute {
		t.Fatalf("TaskEngine = %+v", r.TaskEngine)
	}
	if r.Actions.SoundFile != DefaultSoundFile || r.Actions.Timeout != DefaultActionTimeout {
		t.Fatalf("Actions = %+v", r.Actions)
	}
	if !r.Scheduler.Reload {
		t.Fatalf("Reload should default to true")
	}
	if r.Scheduler.Timezone != time.Local {
		t.Fatalf("Timezone = %v, want Local", r.Scheduler.Timezone)
	}
	if r.Scheduler.StartupSpread != 0 || r.Scheduler.StartupWindow != 30*time.Second {
		t.Fatalf("Scheduler = %+v", r.Scheduler)
	}
	if r.Pprof.Enabled || r.Pprof.Addr != DefaultPprofAddr {
		t.Fatalf("Pprof = %+v", r.Pprof)
	}
}

func TestResolveCollectsErrors(t *testing.T) {
	t.Parallel()
	cfg := &Config{
		HTTP:      HTTPConfig{ReadTimeout: "soon", RatePerSec: -1},
		Storage:   StorageConfig{Driver: "postgres"},
		Scheduler: SchedulerConfig{Timezone: "Nowhere/City", StartupSpread: "fast"},
		Actions:   ActionsConfig{Timeout: "-5s"},
	}
	_, err := Resolve(cfg)
	if err == nil {
		t.Fatalf("expected error")
	}
	for _, want := range []string{"http.read_timeout", "http.rate_per_sec", "storage.driver", "scheduler.timezone", "scheduler.startup_spread", "actions.timeout"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("error %q does not mention %s", err, want)
		}
	}
}

func TestNormalizeBasePath(t *testing.T) {
	t.Parallel()
	cases := map[string]string{"": "", "/": "", "api": "/api", "/api/": "/api", " /v1 ": "/v1"}
	for in, want := range cases {
		if got := normalizeBasePath(in); got != want {
			t.Fatalf("normalizeBasePath(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSummarizeConfigChange(t *testing.T) {
	t.Parallel()
	oldCfg := &Config{Logging: LoggingConfig{Level: "info"}, Storage: StorageConfig{Path: "a.db"}}
	newCfg := &Config{
		Logging:   LoggingConfig{Level: "debug"},
		Storage:   StorageConfig{Path: "b.db"},
		Scheduler: SchedulerConfig{Timezone: "UTC"},
		HTTP:      HTTPConfig{RatePerSec: 5},
	}
	changed, attrs := SummarizeConfigChange(oldCfg, newCfg)
	want := []string{"http.rate", "logging", "scheduler", "storage"}
	if strings.Join(changed, ",") != strings.Join(want, ",") {
		t.Fatalf("changed = %v, want %v", changed, want)
	}
	if len(attrs) == 0 {
		t.Fatalf("expected attrs")
	}
	if got := RequiresRestart(changed); len(got) != 1 || got[0] != "storage" {
		t.Fatalf("RequiresRestart = %v", got)
	}
}

func TestConfigManagerLoadAndReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	if err := os.WriteFile(path, []byte(`{"logging":{"level":"info"}}`), 0o644); err != nil {
		t.Fatal(err)
	}

	m := NewConfigManager(path)
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.Logging.Level != "info" || m.Get() != cfg {
		t.Fatalf("unexpected committed config: %+v", m.Get())
	}

	sub := m.Subscribe(1)
	defer m.Unsubscribe(sub)

	// Same content is not republished.
	if m.reload(context.Background()) {
		t.Fatalf("reload published unchanged config")
	}

	if err := os.WriteFile(path, []byte(`{"logging":{"level":"debug"}}`), 0o644); err != nil {
		t.Fatal(err)
	}
	if !m.reload(context.Background()) {
		t.Fatalf("reload did not publish changed config")
	}
	select {
	case got := <-sub:
		if got.Logging.Level != "debug" {
			t.Fatalf("published level = %q", got.Logging.Level)
		}
	default:
		t.Fatalf("subscriber did not receive config")
	}

	// Validator rejection keeps the previous config.
	m.SetValidator(func(ctx context.Context, cfg *Config) error { return context.Canceled })
	if err := os.WriteFile(path, []byte(`{"logging":{"level":"warn"}}`), 0o644); err != nil {
		t.Fatal(err)
	}
	if m.reload(context.Background()) {
		t.Fatalf("reload published rejected config")
	}
	if m.Get().Logging.Level != "debug" {
		t.Fatalf("committed level = %q, want debug", m.Get().Logging.Level)
	}
}

func TestPublishKeepsNewestForSlowSubscriber(t *testing.T) {
	t.Parallel()
	m := NewConfigManager("unused.json")
	sub := m.Subscribe(1)
	first := &Config{Logging: LoggingConfig{Level: "info"}}
	second := &Config{Logging: LoggingConfig{Level: "debug"}}
	m.publish(first)
	m.publish(second)
	if got := <-sub; got != second {
		t.Fatalf("got %+v, want newest config", got)
	}
	m.Unsubscribe(sub)
	if _, ok := <-sub; ok {
		t.Fatalf("channel should be closed after Unsubscribe")
	}
}

func TestExampleConfigResolves(t *testing.T) {
	t.Parallel()
	data, err := os.ReadFile(filepath.Join("..", "..", "config.example.yaml"))
	if err != nil {
		t.Fatalf("read example: %v", err)
	}
	cfg, err := Decode("config.example.yaml", data)
	if err != nil {
		t.Fatalf("Decode error: %v", err)
	}
	r, err := Resolve(cfg)
	if err != nil {
		t.Fatalf("Resolve error: %v", err)
	}
	if r.HTTP.BasePath != "/api" || r.Scheduler.StartupSpread != 10*time.Second {
		t.Fatalf("resolved = %+v", r)
	}
}
