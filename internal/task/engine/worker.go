package engine

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"cadence/internal/eventbus"
	logx "cadence/pkg/logx"
)

// slowTaskThreshold promotes completion logs from debug to info.
const slowTaskThreshold = 750 * time.Millisecond

func (s *Service) worker(ctx context.Context, stopCh <-chan struct{}, queue chan queuedTask) {
	for {
		// A closed stopCh wins over queued work.
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		default:
		}

		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		case qt := <-queue:
			s.inFlight.Add(1)
			s.execOne(ctx, qt)
			s.inFlight.Add(-1)
		}
	}
}

func (s *Service) execOne(ctx context.Context, qt queuedTask) {
	if qt.state != nil {
		defer qt.state.release()
	}

	start := time.Now()
	queueDelay := max(0, start.Sub(qt.enqueuedAt))
	name := qt.task.Name

	s.log.Debug("task started", logx.String("task", name), logx.Duration("queue_delay", queueDelay))

	runCtx := ctx
	if qt.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, qt.timeout)
		defer cancel()
	}

	err := runTask(runCtx, qt.task, s.log)

	dur := time.Since(start)
	item := HistoryItem{ID: qt.task.ID, Name: name, Started: start, QueueDelay: queueDelay, Duration: dur}
	if err != nil {
		item.Error = err.Error()
		s.failed.Add(1)
		s.log.Warn("task failed", logx.String("task", name), logx.Err(err), logx.Duration("dur", dur))
	} else {
		s.completed.Add(1)
		if dur >= slowTaskThreshold {
			s.log.Info("task completed", logx.String("task", name), logx.Duration("dur", dur))
		} else {
			s.log.Debug("task completed", logx.String("task", name), logx.Duration("dur", dur))
		}
	}
	s.record(item)
	s.bus.Publish(eventbus.Event{Type: eventbus.TypeTaskFinished, Data: TaskEvent{
		ID:         item.ID,
		Name:       name,
		Started:    start,
		QueueDelay: queueDelay,
		Duration:   dur,
		Error:      item.Error,
	}})
}

// runTask converts a panic into an error so one bad task cannot kill a worker.
func runTask(ctx context.Context, t Task, log logx.Logger) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
			log.Error("task panic", logx.String("task", t.Name), logx.Any("panic", r), logx.Stack(string(debug.Stack())))
		}
	}()
	return t.Run(ctx)
}
