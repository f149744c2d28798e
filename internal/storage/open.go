package storage

import (
	"context"
	"errors"
	"strings"

	logx "cadence/pkg/logx"
)

// Store is the persistence API used by the schedule manager.
type Store interface {
	// Begin starts a transaction for schedule mutations.
	Begin(ctx context.Context) (Tx, error)

	GetSchedule(ctx context.Context, id int64) (Schedule, error)
	ListSchedules(ctx context.Context) ([]Schedule, error)
	// ListActiveSchedules returns active schedules with a positive interval.
	ListActiveSchedules(ctx context.Context) ([]Schedule, error)

	// AppendHistory inserts one history row and stamps the schedule's
	// last_run_at in the same transaction. It returns ErrNotFound and writes
	// nothing when the schedule no longer exists.
	AppendHistory(ctx context.Context, e HistoryEntry) (HistoryEntry, error)
	// ListHistory returns the newest entries first. limit <= 0 means all.
	ListHistory(ctx context.Context, limit int) ([]HistoryEntry, error)

	Close() error
}

// Tx stages schedule mutations. Exactly one of Commit or Rollback must be
// called; Rollback after Commit is a no-op.
type Tx interface {
	CreateSchedule(ctx context.Context, s *Schedule) error
	GetSchedule(ctx context.Context, id int64) (Schedule, error)
	UpdateSchedule(ctx context.Context, s *Schedule) error
	DeleteSchedule(ctx context.Context, id int64) error
	Commit() error
	Rollback() error
}

// Open initializes the configured store.
func Open(cfg Config, log logx.Logger) (Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if log.IsZero() {
		log = logx.Nop()
	}

	switch driver {
	case "", "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	default:
		return nil, errors.New("unknown storage driver: " + driver)
	}
}

// IsNotFound reports whether err means the row does not exist.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }
