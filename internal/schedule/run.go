package schedule

import (
	"context"
	"errors"
	"fmt"

	"cadence/internal/eventbus"
	"cadence/internal/storage"
	logx "cadence/pkg/logx"
)

// job builds the timer callback for kind k of s. Parameters are bound at
// registration; an update re-registers with the new values.
func (m *Manager) job(s storage.Schedule, k Kind) func(ctx context.Context) error {
	id, url, path := s.ID, s.GoogleFormURL, s.ExcelPath
	switch k {
	case KindForm:
		return func(ctx context.Context) error { return m.actions.OpenForm(ctx, id, url) }
	case KindFile:
		return func(ctx context.Context) error { return m.actions.OpenFile(ctx, id, path) }
	default:
		// The anchor closes the cycle whether or not the sound played.
		return func(ctx context.Context) error {
			actErr := m.actions.PlayAlert(ctx, id)
			_, histErr := m.recordHistory(ctx, id, storage.SourceTimer)
			m.publish(eventbus.TypeScheduleRan, RanEvent{ScheduleID: id, Source: storage.SourceTimer, Failed: boolCount(actErr != nil)})
			return errors.Join(actErr, histErr)
		}
	}
}

func (m *Manager) invoke(ctx context.Context, s storage.Schedule, k Kind) error {
	switch k {
	case KindSound:
		return m.actions.PlayAlert(ctx, s.ID)
	case KindForm:
		return m.actions.OpenForm(ctx, s.ID, s.GoogleFormURL)
	case KindFile:
		return m.actions.OpenFile(ctx, s.ID, s.ExcelPath)
	}
	return fmt.Errorf("unknown action kind %q", k)
}

// RunNow runs every action of an active schedule once, bypassing timers, and
// records one history entry.
//
// All actions are attempted even when one fails. A failed history write is
// reported as ErrHistoryRecording: the actions did run. RunNow holds no
// schedule lock while actions run; a Delete that wins the race leaves no
// history row and the error also matches ErrNotFound.
func (m *Manager) RunNow(ctx context.Context, id int64) (RunReport, error) {
	s, err := m.store.GetSchedule(ctx, id)
	if err != nil {
		return RunReport{}, storeErr("get", id, err)
	}
	if !s.IsActive {
		return RunReport{}, fmt.Errorf("%w: id %d", ErrInactive, id)
	}

	report := RunReport{ScheduleID: id}
	var actErrs []error
	for _, k := range actionKinds(s) {
		res := ActionResult{Kind: k, OK: true}
		if err := m.invoke(ctx, s, k); err != nil {
			res.OK = false
			res.Error = err.Error()
			actErrs = append(actErrs, fmt.Errorf("%s: %w", k, err))
		}
		report.Actions = append(report.Actions, res)
	}
	if len(report.Actions) == 0 {
		return report, nil
	}

	var errs []error
	if len(actErrs) > 0 {
		errs = append(errs, fmt.Errorf("%w: %w", ErrActionExecution, errors.Join(actErrs...)))
	}
	// The side effects already happened; a dropped request must not lose them.
	entry, err := m.recordHistory(context.WithoutCancel(ctx), id, storage.SourceRunNow)
	if err != nil {
		errs = append(errs, err)
	} else {
		report.History = &entry
	}

	m.log.Info("schedule run now",
		logx.Int64("schedule_id", id),
		logx.Int("actions", len(report.Actions)),
		logx.Int("failed", len(actErrs)),
		logx.Bool("recorded", report.History != nil),
	)
	m.publish(eventbus.TypeScheduleRan, RanEvent{ScheduleID: id, Source: storage.SourceRunNow, Failed: len(actErrs)})
	return report, errors.Join(errs...)
}

func (m *Manager) recordHistory(ctx context.Context, id int64, source string) (storage.HistoryEntry, error) {
	entry, err := m.store.AppendHistory(ctx, storage.HistoryEntry{
		ScheduleID:  id,
		CompletedAt: m.now(),
		Source:      source,
	})
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			m.log.Warn("schedule deleted during run; history not recorded",
				logx.Int64("schedule_id", id), logx.String("source", source))
			return storage.HistoryEntry{}, fmt.Errorf("%w: %w: id %d", ErrHistoryRecording, ErrNotFound, id)
		}
		m.log.Error("history append failed",
			logx.Int64("schedule_id", id), logx.String("source", source), logx.Err(err))
		return storage.HistoryEntry{}, fmt.Errorf("%w: %w", ErrHistoryRecording, err)
	}
	m.publish(eventbus.TypeHistoryRecorded, entry)
	return entry, nil
}

func boolCount(b bool) int {
	if b {
		return 1
	}
	return 0
}
