// Package actions holds the side effects a schedule can trigger: playing the
// alert sound, opening a web form and opening a local file.
//
// Every action logs its own failure and also returns it, so callers that run
// several actions can aggregate the outcome.
package actions

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	logx "cadence/pkg/logx"
)

var (
	ErrInvalidURL  = errors.New("invalid form url")
	ErrInvalidPath = errors.New("invalid file path")
)

// Opener hands URLs and files to the desktop.
type Opener interface {
	OpenURL(url string) error
	OpenFile(path string) error
}

// Player plays an audio file to completion.
type Player interface {
	Play(ctx context.Context, file string) error
}

type Config struct {
	SoundFile    string
	SoundCommand []string
	Timeout      time.Duration
	DryRun       bool
}

type Registry struct {
	log    logx.Logger
	opener Opener

	mu           sync.RWMutex
	cfg          Config
	player       Player
	customPlayer bool
}

type Option func(*Registry)

func WithOpener(o Opener) Option { return func(r *Registry) { r.opener = o } }

func WithPlayer(p Player) Option {
	return func(r *Registry) {
		r.player = p
		r.customPlayer = true
	}
}

func New(cfg Config, log logx.Logger, opts ...Option) *Registry {
	if log.IsZero() {
		log = logx.Nop()
	}
	r := &Registry{
		log:    log,
		cfg:    withDefaults(cfg),
		opener: browserOpener{},
		player: newCommandPlayer(cfg.SoundCommand),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

func withDefaults(cfg Config) Config {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return cfg
}

// Apply swaps the config. Actions already running keep the old one.
func (r *Registry) Apply(cfg Config) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cfg = withDefaults(cfg)
	if !r.customPlayer {
		r.player = newCommandPlayer(cfg.SoundCommand)
	}
}

func (r *Registry) current() (Config, Player) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.cfg, r.player
}

// PlayAlert plays the configured alert sound for a schedule.
func (r *Registry) PlayAlert(ctx context.Context, scheduleID int64) error {
	log := r.log.With(logx.Int64("schedule_id", scheduleID), logx.String("action", "sound"))
	cfg, player := r.current()
	file := cfg.SoundFile
	if cfg.DryRun {
		log.Info("alert sound (dry run)", logx.String("file", file))
		return nil
	}
	if _, err := os.Stat(file); err != nil {
		err = fmt.Errorf("alert sound %q: %w", file, err)
		log.Error("alert sound failed", logx.Err(err))
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()
	if err := player.Play(ctx, file); err != nil {
		err = fmt.Errorf("play %q: %w", file, err)
		log.Error("alert sound failed", logx.Err(err))
		return err
	}
	log.Info("alert sound played", logx.String("file", file))
	return nil
}

// OpenForm opens a web form in the default browser.
func (r *Registry) OpenForm(ctx context.Context, scheduleID int64, rawURL string) error {
	log := r.log.With(logx.Int64("schedule_id", scheduleID), logx.String("action", "form"))
	if err := ValidateFormURL(rawURL); err != nil {
		log.Error("open form failed", logx.Err(err))
		return err
	}
	cfg, _ := r.current()
	if cfg.DryRun {
		log.Info("open form (dry run)", logx.String("url", rawURL))
		return nil
	}
	if err := withTimeout(ctx, cfg.Timeout, func() error { return r.opener.OpenURL(rawURL) }); err != nil {
		err = fmt.Errorf("open form: %w", err)
		log.Error("open form failed", logx.Err(err))
		return err
	}
	log.Info("form opened", logx.String("url", rawURL))
	return nil
}

// OpenFile opens a local file with its default application.
func (r *Registry) OpenFile(ctx context.Context, scheduleID int64, path string) error {
	log := r.log.With(logx.Int64("schedule_id", scheduleID), logx.String("action", "file"))
	abs, err := resolvePath(path)
	if err != nil {
		log.Error("open file failed", logx.Err(err))
		return err
	}
	cfg, _ := r.current()
	if cfg.DryRun {
		log.Info("open file (dry run)", logx.String("path", abs))
		return nil
	}
	if _, err := os.Stat(abs); err != nil {
		err = fmt.Errorf("open file %q: %w", abs, err)
		log.Error("open file failed", logx.Err(err))
		return err
	}
	if err := withTimeout(ctx, cfg.Timeout, func() error { return r.opener.OpenFile(abs) }); err != nil {
		err = fmt.Errorf("open file %q: %w", abs, err)
		log.Error("open file failed", logx.Err(err))
		return err
	}
	log.Info("file opened", logx.String("path", abs))
	return nil
}

// withTimeout runs fn, giving up when ctx or d ends first.
// The opener helpers do not take a context, so fn may outlive the call.
func withTimeout(ctx context.Context, d time.Duration, fn func() error) error {
	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- fn() }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ValidateFormURL accepts absolute http(s) URLs only.
func ValidateFormURL(raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fmt.Errorf("%w: empty", ErrInvalidURL)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: scheme must be http or https", ErrInvalidURL)
	}
	if u.Host == "" {
		return fmt.Errorf("%w: missing host", ErrInvalidURL)
	}
	return nil
}

func resolvePath(path string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidPath)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidPath, err)
	}
	return abs, nil
}
