package schedule

import (
	"context"
	"errors"
	"fmt"

	"cadence/internal/storage"
	logx "cadence/pkg/logx"
)

// timerKinds returns the kinds that must have a live timer. Sound is the
// cycle anchor: it runs whenever the schedule is schedulable at all.
func timerKinds(s storage.Schedule) []Kind {
	if !s.IsActive || s.IntervalMinutes <= 0 {
		return nil
	}
	return actionKinds(s)
}

// actionKinds returns the kinds whose parameters are set, ignoring the
// active flag and the interval.
func actionKinds(s storage.Schedule) []Kind {
	kinds := []Kind{KindSound}
	if s.GoogleFormURL != "" {
		kinds = append(kinds, KindForm)
	}
	if s.ExcelPath != "" {
		kinds = append(kinds, KindFile)
	}
	return kinds
}

func hasKind(kinds []Kind, k Kind) bool {
	for _, v := range kinds {
		if v == k {
			return true
		}
	}
	return false
}

// Reconcile re-reads schedule id and makes its live timers match the stored
// row. A missing row loses all of its timers.
func (m *Manager) Reconcile(ctx context.Context, id int64) error {
	_, err := m.reconcileID(ctx, id)
	return err
}

// reconcileID reads the row inside a transaction so the lock order matches
// Create, Update and Delete. The transaction is only read from.
func (m *Manager) reconcileID(ctx context.Context, id int64) ([]Kind, error) {
	tx, err := m.store.Begin(ctx)
	if err != nil {
		return nil, storeErr("begin", id, err)
	}
	defer func() { _ = tx.Rollback() }()
	unlock := m.locks.lock(id)
	defer unlock()

	s, err := tx.GetSchedule(ctx, id)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return nil, m.remove(id)
	case err != nil:
		return nil, storeErr("get", id, err)
	}
	return m.reconcile(s)
}

// reconcile registers every eligible kind and unregisters the rest. Every
// kind is attempted; failures are joined. Call with the schedule lock held.
func (m *Manager) reconcile(s storage.Schedule) ([]Kind, error) {
	want := timerKinds(s)
	var errs []error
	for _, k := range Kinds {
		key := TimerKey(s.ID, k)
		if hasKind(want, k) {
			if err := m.timers.Register(key, s.Interval(), m.job(s, k)); err != nil {
				errs = append(errs, fmt.Errorf("register %s: %w", key, err))
			}
			continue
		}
		if _, err := m.timers.Unregister(key); err != nil {
			errs = append(errs, fmt.Errorf("unregister %s: %w", key, err))
		}
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("%w: %w", ErrTimerRegistration, errors.Join(errs...))
	}
	return want, nil
}

// remove unregisters all timer keys of id.
func (m *Manager) remove(id int64) error {
	var errs []error
	for _, k := range Kinds {
		if _, err := m.timers.Unregister(TimerKey(id, k)); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrTimerRegistration, errors.Join(errs...))
	}
	return nil
}

// unregisterAll is remove for rollback paths, where failures can only be logged.
func (m *Manager) unregisterAll(id int64) {
	if err := m.remove(id); err != nil {
		m.log.Error("timer rollback failed", logx.Int64("schedule_id", id), logx.Err(err))
	}
}

// restore re-arms the timers of a schedule whose change was rolled back.
func (m *Manager) restore(old storage.Schedule) {
	if _, err := m.reconcile(old); err != nil {
		m.log.Error("timer restore failed; next reconcile will retry",
			logx.Int64("schedule_id", old.ID), logx.Err(err))
	}
}

// ReconcileAll arms timers for every active schedule and drops timers whose
// schedule is gone or no longer eligible. Each row is re-read under its lock,
// so a change that lands after the listing is not undone. Per-schedule
// failures are counted and logged; err is set only when the store cannot be
// listed or ctx ends.
func (m *Manager) ReconcileAll(ctx context.Context) (ok, failed int, err error) {
	list, err := m.store.ListActiveSchedules(ctx)
	if err != nil {
		return 0, 0, storeErr("list active", 0, err)
	}

	live := make(map[int64]struct{}, len(list))
	for _, s := range list {
		live[s.ID] = struct{}{}
		if err := ctx.Err(); err != nil {
			return ok, failed, err
		}
		if _, rerr := m.reconcileID(ctx, s.ID); rerr != nil {
			failed++
			m.log.Warn("schedule reconcile failed", logx.Int64("schedule_id", s.ID), logx.Err(rerr))
			continue
		}
		ok++
	}

	pruned, err := m.pruneOrphans(ctx, live)
	m.log.Info("schedules reconciled",
		logx.Int("ok", ok),
		logx.Int("failed", failed),
		logx.Int("pruned", pruned),
	)
	return ok, failed, err
}

// pruneOrphans reconciles timers whose schedule was not in the active listing.
func (m *Manager) pruneOrphans(ctx context.Context, live map[int64]struct{}) (int, error) {
	seen := map[int64]struct{}{}
	for _, key := range m.timers.Keys() {
		id, _, ok := parseTimerKey(key)
		if !ok {
			continue
		}
		if _, ok := live[id]; ok {
			continue
		}
		seen[id] = struct{}{}
	}

	pruned := 0
	for id := range seen {
		if err := ctx.Err(); err != nil {
			return pruned, err
		}
		if _, err := m.reconcileID(ctx, id); err != nil {
			m.log.Warn("orphan timer cleanup failed", logx.Int64("schedule_id", id), logx.Err(err))
			continue
		}
		pruned++
	}
	return pruned, nil
}
