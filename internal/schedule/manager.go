// Package schedule keeps live timers consistent with persisted schedules.
//
// Every mutation runs in one store transaction. Timers are reconciled after
// the write is staged and before commit, so a timer failure rolls the write
// back and a commit failure restores the previous timers.
//
// Lock order: a store transaction is always begun before the per-schedule
// lock is taken, and no store call is made while holding the lock without
// that transaction.
package schedule

import (
	"context"
	"time"

	"cadence/internal/eventbus"
	"cadence/internal/storage"
	logx "cadence/pkg/logx"
)

type Manager struct {
	log     logx.Logger
	store   storage.Store
	timers  Timers
	actions Actions
	bus     eventbus.Bus
	locks   *keyLocks
	now     func() time.Time
}

func New(store storage.Store, timers Timers, acts Actions, log logx.Logger, bus eventbus.Bus) *Manager {
	if log.IsZero() {
		log = logx.Nop()
	}
	if bus == nil {
		bus = eventbus.Nop()
	}
	return &Manager{
		log:     log,
		store:   store,
		timers:  timers,
		actions: acts,
		bus:     bus,
		locks:   newKeyLocks(),
		now:     time.Now,
	}
}

// Create persists a new schedule and arms its timers.
func (m *Manager) Create(ctx context.Context, in Input) (View, error) {
	s, err := in.validate()
	if err != nil {
		return View{}, err
	}

	tx, err := m.store.Begin(ctx)
	if err != nil {
		return View{}, storeErr("begin", 0, err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := tx.CreateSchedule(ctx, &s); err != nil {
		return View{}, storeErr("create", 0, err)
	}
	unlock := m.locks.lock(s.ID)
	defer unlock()

	kinds, err := m.reconcile(s)
	if err != nil {
		m.unregisterAll(s.ID)
		return View{}, err
	}
	if err := tx.Commit(); err != nil {
		m.unregisterAll(s.ID)
		return View{}, storeErr("commit", s.ID, err)
	}

	m.log.Info("schedule created",
		logx.Int64("schedule_id", s.ID),
		logx.Int("interval_minutes", s.IntervalMinutes),
		logx.Bool("active", s.IsActive),
		logx.Int("timers", len(kinds)),
	)
	m.publish(eventbus.TypeScheduleReconciled, ReconciledEvent{ScheduleID: s.ID, Kinds: kinds})
	return m.view(s), nil
}

// Update applies a partial change and rebuilds the schedule's timers.
func (m *Manager) Update(ctx context.Context, id int64, p storage.Patch) (View, error) {
	p, err := validatePatch(p)
	if err != nil {
		return View{}, err
	}

	tx, err := m.store.Begin(ctx)
	if err != nil {
		return View{}, storeErr("begin", id, err)
	}
	defer func() { _ = tx.Rollback() }()
	unlock := m.locks.lock(id)
	defer unlock()

	old, err := tx.GetSchedule(ctx, id)
	if err != nil {
		return View{}, storeErr("get", id, err)
	}
	next := p.Apply(old)
	if err := tx.UpdateSchedule(ctx, &next); err != nil {
		return View{}, storeErr("update", id, err)
	}

	kinds, err := m.reconcile(next)
	if err != nil {
		m.restore(old)
		return View{}, err
	}
	if err := tx.Commit(); err != nil {
		m.restore(old)
		return View{}, storeErr("commit", id, err)
	}

	m.log.Info("schedule updated",
		logx.Int64("schedule_id", id),
		logx.Int("interval_minutes", next.IntervalMinutes),
		logx.Bool("active", next.IsActive),
		logx.Int("timers", len(kinds)),
	)
	m.publish(eventbus.TypeScheduleReconciled, ReconciledEvent{ScheduleID: id, Kinds: kinds})
	return m.view(next), nil
}

// Delete tears down the schedule's timers, then removes the record.
// History entries are kept.
func (m *Manager) Delete(ctx context.Context, id int64) error {
	tx, err := m.store.Begin(ctx)
	if err != nil {
		return storeErr("begin", id, err)
	}
	defer func() { _ = tx.Rollback() }()
	unlock := m.locks.lock(id)
	defer unlock()

	old, err := tx.GetSchedule(ctx, id)
	if err != nil {
		return storeErr("get", id, err)
	}
	if err := m.remove(id); err != nil {
		m.restore(old)
		return err
	}
	if err := tx.DeleteSchedule(ctx, id); err != nil {
		m.restore(old)
		return storeErr("delete", id, err)
	}
	if err := tx.Commit(); err != nil {
		m.restore(old)
		return storeErr("commit", id, err)
	}

	m.log.Info("schedule deleted", logx.Int64("schedule_id", id))
	m.publish(eventbus.TypeScheduleRemoved, RemovedEvent{ScheduleID: id})
	return nil
}

func (m *Manager) Get(ctx context.Context, id int64) (View, error) {
	s, err := m.store.GetSchedule(ctx, id)
	if err != nil {
		return View{}, storeErr("get", id, err)
	}
	return m.view(s), nil
}

func (m *Manager) List(ctx context.Context) ([]View, error) {
	all, err := m.store.ListSchedules(ctx)
	if err != nil {
		return nil, storeErr("list", 0, err)
	}
	out := make([]View, 0, len(all))
	for _, s := range all {
		out = append(out, m.view(s))
	}
	return out, nil
}

// History returns the newest entries first. limit <= 0 returns everything.
func (m *Manager) History(ctx context.Context, limit int) ([]storage.HistoryEntry, error) {
	h, err := m.store.ListHistory(ctx, limit)
	if err != nil {
		return nil, storeErr("list history", 0, err)
	}
	return h, nil
}

// view attaches the anchor timer's next fire time. It is informational only.
func (m *Manager) view(s storage.Schedule) View {
	v := View{Schedule: s}
	if next, ok := m.timers.Next(TimerKey(s.ID, KindSound)); ok {
		v.NextRunAt = &next
	}
	return v
}

func (m *Manager) publish(typ string, data any) {
	m.bus.Publish(eventbus.Event{Type: typ, Time: m.now(), Data: data})
}
