package scheduler

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"cadence/internal/eventbus"
	"cadence/internal/task/engine"
	logx "cadence/pkg/logx"
)

func validateKey(key string) error {
	if strings.TrimSpace(key) == "" {
		return fmt.Errorf("%w: empty key", ErrInvalidKey)
	}
	if strings.TrimSpace(key) != key {
		return fmt.Errorf("%w: %q has surrounding whitespace", ErrInvalidKey, key)
	}
	return nil
}

// Register arms job to run every interval under key, replacing any previous
// timer for the key. The first fire is one interval from now.
//
// If the engine is not started yet the registration is kept and armed by Start.
func (s *Service) Register(key string, every time.Duration, job func(ctx context.Context) error) error {
	if err := validateKey(key); err != nil {
		return err
	}
	if every < MinInterval {
		return fmt.Errorf("%w: %s is below %s", ErrInvalidInterval, every, MinInterval)
	}
	if job == nil {
		return ErrNilJob
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	replaced := s.removeLocked(key)
	s.verSeq++
	r := &registration{
		key:          key,
		every:        every,
		job:          job,
		ver:          s.verSeq,
		registeredAt: time.Now(),
	}
	s.regs[key] = r
	if s.c != nil {
		s.armLocked(r)
	}

	s.log.Debug("timer registered",
		logx.String("key", key),
		logx.Duration("every", every),
		logx.Bool("replaced", replaced),
		logx.Duration("spread", r.spread),
	)
	return nil
}

// Unregister removes the timer for key. It reports false when no timer existed.
// Once it returns, the old callback will not start.
func (s *Service) Unregister(key string) (bool, error) {
	if err := validateKey(key); err != nil {
		return false, err
	}
	s.mu.Lock()
	removed := s.removeLocked(key)
	s.mu.Unlock()

	if removed {
		s.log.Debug("timer removed", logx.String("key", key))
	}
	return removed, nil
}

// Next returns the next fire time of key. ok is false when the key has no
// armed timer.
func (s *Service) Next(key string) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.regs[key]
	if r == nil || s.c == nil || r.entryID == 0 {
		return time.Time{}, false
	}
	next := s.c.Entry(r.entryID).Next
	return next, !next.IsZero()
}

// Keys returns the registered keys, sorted.
func (s *Service) Keys() []string {
	s.mu.Lock()
	keys := make([]string, 0, len(s.regs))
	for k := range s.regs {
		keys = append(keys, k)
	}
	s.mu.Unlock()
	sort.Strings(keys)
	return keys
}

// removeLocked drops the registration and its cron entry. Call with s.mu held.
func (s *Service) removeLocked(key string) bool {
	r := s.regs[key]
	if r == nil {
		return false
	}
	if s.c != nil && r.entryID != 0 {
		s.c.Remove(r.entryID)
	}
	delete(s.regs, key)
	return true
}

// current reports whether ver is still the live version of key.
func (s *Service) current(key string, ver uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.regs[key]
	return r != nil && r.ver == ver
}

// armLocked adds r to the running cron. Call with s.mu held and s.c non-nil.
func (s *Service) armLocked(r *registration) {
	key, ver := r.key, r.ver
	fire := cron.FuncJob(func() { s.fire(key, ver) })

	sched := cron.Schedule(cron.Every(r.every))
	r.spread = 0
	if s.cfg.StartupSpread > 0 && time.Since(s.startedAt) < s.cfg.StartupWindow {
		sched, r.spread = withStartupSpread(r.every, s.cfg.StartupSpread, time.Now().In(s.location()), key)
	}
	r.entryID = s.c.Schedule(sched, fire)
}

func (s *Service) fire(key string, ver uint64) {
	now := time.Now()
	s.mu.Lock()
	r := s.regs[key]
	if r == nil || r.ver != ver {
		s.mu.Unlock()
		return
	}
	r.fires++
	r.lastFire = now
	job := r.job
	timeout := s.cfg.TaskTimeout
	s.mu.Unlock()

	s.bus.Publish(eventbus.Event{Type: eventbus.TypeTimerFired, Time: now, Data: key})

	if s.disp == nil {
		return
	}
	err := s.disp.Enqueue(engine.Task{
		Name:    key,
		Timeout: timeout,
		Overlap: engine.OverlapSkipIfRunning,
		Run: func(ctx context.Context) error {
			// Unregistered or replaced while queued.
			if !s.current(key, ver) {
				return nil
			}
			return job(ctx)
		},
	})
	if err != nil {
		s.reportEnqueueError(key, err)
	}
}
