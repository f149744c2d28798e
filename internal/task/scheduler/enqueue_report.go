package scheduler

import (
	"errors"
	"fmt"
	"time"

	"cadence/internal/task/engine"
	logx "cadence/pkg/logx"
)

const enqueueWarnThrottle = 5 * time.Second

// reportEnqueueError logs a failed dispatch, at most once per key per throttle window.
func (s *Service) reportEnqueueError(key string, err error) {
	if err == nil {
		return
	}
	// The previous run of this key is still going; expected for slow actions.
	if errors.Is(err, engine.ErrOverlapSkip) {
		s.log.Debug("timer fire skipped", logx.String("key", key), logx.Err(err))
		return
	}

	now := time.Now()
	s.enqMu.Lock()
	last := s.lastEnqWarn[key]
	if !last.IsZero() && now.Sub(last) < enqueueWarnThrottle {
		s.enqMu.Unlock()
		return
	}
	s.lastEnqWarn[key] = now
	s.enqMu.Unlock()

	s.log.Warn("timer failed to dispatch", logx.String("key", key), logx.Err(err))
}

// cronLogger routes robfig/cron's internal logging into logx.
type cronLogger struct {
	log logx.Logger
}

// Info is called by cron for every wake/schedule; keep it at trace.
func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Trace("cron: "+msg, kvFields(keysAndValues)...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error("cron: "+msg, append(kvFields(keysAndValues), logx.Err(err))...)
}

func kvFields(kv []interface{}) []logx.Field {
	out := make([]logx.Field, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		out = append(out, logx.Any(fmt.Sprint(kv[i]), kv[i+1]))
	}
	return out
}
