package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"cadence/internal/eventbus"
	logx "cadence/pkg/logx"
)

func New(cfg Config, disp Dispatcher, log logx.Logger, bus eventbus.Bus) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	if bus == nil {
		bus = eventbus.Nop()
	}
	return &Service{
		cfg:         cfg,
		log:         log,
		bus:         bus,
		disp:        disp,
		regs:        map[string]*registration{},
		lastEnqWarn: map[string]time.Time{},
	}
}

func (s *Service) location() *time.Location {
	if s.cfg.Location == nil {
		return time.Local
	}
	return s.cfg.Location
}

// Apply swaps the config. A timezone change restarts the cron clock and
// re-arms every registration.
func (s *Service) Apply(cfg Config) {
	s.mu.Lock()
	defer s.mu.Unlock()

	oldLoc := s.location()
	s.cfg = cfg
	if s.c == nil {
		return
	}
	if oldLoc.String() != s.location().String() {
		s.restartLocked()
	}
}

func (s *Service) newCronLocked() *cron.Cron {
	cl := cronLogger{log: s.log}
	return cron.New(
		cron.WithLocation(s.location()),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl)),
	)
}

// Start arms every registration made so far and starts the clock. A canceled
// ctx leaves the engine stopped.
func (s *Service) Start(ctx context.Context) {
	if err := ctx.Err(); err != nil {
		s.log.Warn("timer engine not started", logx.Err(err))
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.c != nil {
		return
	}
	s.c = s.newCronLocked()
	s.startedAt = time.Now()
	for _, r := range s.regs {
		s.armLocked(r)
	}
	s.c.Start()
	s.log.Info("timer engine started", logx.String("tz", s.location().String()), logx.Int("timers", len(s.regs)))
}

// Stop halts the clock. Registrations are kept and re-armed by the next Start.
func (s *Service) Stop(ctx context.Context) {
	start := time.Now()

	s.mu.Lock()
	c := s.c
	s.c = nil
	for _, r := range s.regs {
		r.entryID = 0
	}
	s.mu.Unlock()

	if c != nil {
		select {
		case <-c.Stop().Done():
		case <-ctx.Done():
		}
	}
	s.log.Info("timer engine stopped", logx.Duration("took", time.Since(start)))
}

func (s *Service) restartLocked() {
	// Do not wait for the old clock's jobs here: a firing job takes s.mu.
	if s.c != nil {
		s.c.Stop()
	}
	s.c = s.newCronLocked()
	for _, r := range s.regs {
		s.armLocked(r)
	}
	s.c.Start()
	s.log.Info("timer engine restarted", logx.String("tz", s.location().String()), logx.Int("timers", len(s.regs)))
}
