package storage

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	logx "cadence/pkg/logx"
)

//go:embed migrations.sql
var migrations string

const scheduleColumns = `id, description, interval_minutes, is_active, excel_path, google_form_url, last_run_at, created_at, updated_at`

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("sqlite path is required")
	}
	if path != ":memory:" && !strings.HasPrefix(path, "file:") {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// One connection: SQLite has a single writer, and pragmas stay applied.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	busy := cfg.BusyTimeout
	if busy <= 0 {
		busy = 5 * time.Second
	}
	pragmas := []string{
		fmt.Sprintf("PRAGMA busy_timeout = %d", busy.Milliseconds()),
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			log.Warn("sqlite pragma failed", logx.String("pragma", p), logx.Err(err))
		}
	}

	st := &sqliteStore{db: db, log: log}
	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite migrate: %w", err)
	}
	log.Debug("sqlite store opened", logx.String("path", path))
	return st, nil
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, migrations)
	return err
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *sqliteStore) Begin(ctx context.Context) (Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &sqliteTx{tx: tx}, nil
}

func (s *sqliteStore) GetSchedule(ctx context.Context, id int64) (Schedule, error) {
	return getSchedule(ctx, s.db, id)
}

func (s *sqliteStore) ListSchedules(ctx context.Context) ([]Schedule, error) {
	return listSchedules(ctx, s.db, `SELECT `+scheduleColumns+` FROM schedules ORDER BY id`)
}

func (s *sqliteStore) ListActiveSchedules(ctx context.Context) ([]Schedule, error) {
	return listSchedules(ctx, s.db,
		`SELECT `+scheduleColumns+` FROM schedules WHERE is_active = 1 AND interval_minutes > 0 ORDER BY id`)
}

func (s *sqliteStore) AppendHistory(ctx context.Context, e HistoryEntry) (HistoryEntry, error) {
	if e.CompletedAt.IsZero() {
		e.CompletedAt = time.Now()
	}
	if strings.TrimSpace(e.Source) == "" {
		e.Source = SourceTimer
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return HistoryEntry{}, err
	}
	defer func() { _ = tx.Rollback() }()

	ms := e.CompletedAt.UnixMilli()
	// Stamp first: a schedule deleted while its actions ran gets no new entry.
	upd, err := tx.ExecContext(ctx,
		`UPDATE schedules SET last_run_at = ? WHERE id = ?`, ms, e.ScheduleID,
	)
	if err != nil {
		return HistoryEntry{}, err
	}
	if n, err := upd.RowsAffected(); err != nil {
		return HistoryEntry{}, err
	} else if n == 0 {
		return HistoryEntry{}, ErrNotFound
	}
	res, err := tx.ExecContext(ctx,
		`INSERT INTO history(schedule_id, completed_at, source) VALUES(?,?,?)`,
		e.ScheduleID, ms, e.Source,
	)
	if err != nil {
		return HistoryEntry{}, err
	}
	if e.ID, err = res.LastInsertId(); err != nil {
		return HistoryEntry{}, err
	}
	if err := tx.QueryRowContext(ctx,
		`SELECT description FROM schedules WHERE id = ?`, e.ScheduleID,
	).Scan(&e.Description); err != nil {
		return HistoryEntry{}, err
	}
	if err := tx.Commit(); err != nil {
		return HistoryEntry{}, err
	}
	e.CompletedAt = time.UnixMilli(ms)
	return e, nil
}

func (s *sqliteStore) ListHistory(ctx context.Context, limit int) ([]HistoryEntry, error) {
	q := `SELECT h.id, h.schedule_id, COALESCE(s.description, ''), h.completed_at, h.source
		FROM history h LEFT JOIN schedules s ON s.id = h.schedule_id
		ORDER BY h.completed_at DESC, h.id DESC`
	args := []any{}
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []HistoryEntry{}
	for rows.Next() {
		var (
			e  HistoryEntry
			ms int64
		)
		if err := rows.Scan(&e.ID, &e.ScheduleID, &e.Description, &ms, &e.Source); err != nil {
			return nil, err
		}
		e.CompletedAt = time.UnixMilli(ms)
		out = append(out, e)
	}
	return out, rows.Err()
}

type sqliteTx struct {
	tx *sql.Tx
}

func (t *sqliteTx) CreateSchedule(ctx context.Context, s *Schedule) error {
	now := time.Now()
	s.CreatedAt = now
	s.UpdatedAt = now
	res, err := t.tx.ExecContext(ctx,
		`INSERT INTO schedules(description, interval_minutes, is_active, excel_path, google_form_url, last_run_at, created_at, updated_at)
		 VALUES(?,?,?,?,?,?,?,?)`,
		s.Description, s.IntervalMinutes, boolInt(s.IsActive), s.ExcelPath, s.GoogleFormURL,
		nullMillis(s.LastRunAt), now.UnixMilli(), now.UnixMilli(),
	)
	if err != nil {
		return err
	}
	s.ID, err = res.LastInsertId()
	return err
}

func (t *sqliteTx) GetSchedule(ctx context.Context, id int64) (Schedule, error) {
	return getSchedule(ctx, t.tx, id)
}

func (t *sqliteTx) UpdateSchedule(ctx context.Context, s *Schedule) error {
	now := time.Now()
	res, err := t.tx.ExecContext(ctx,
		`UPDATE schedules SET description = ?, interval_minutes = ?, is_active = ?, excel_path = ?,
		 google_form_url = ?, updated_at = ? WHERE id = ?`,
		s.Description, s.IntervalMinutes, boolInt(s.IsActive), s.ExcelPath, s.GoogleFormURL,
		now.UnixMilli(), s.ID,
	)
	if err != nil {
		return err
	}
	if err := requireRow(res); err != nil {
		return err
	}
	s.UpdatedAt = now
	return nil
}

func (t *sqliteTx) DeleteSchedule(ctx context.Context, id int64) error {
	res, err := t.tx.ExecContext(ctx, `DELETE FROM schedules WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (t *sqliteTx) Commit() error { return t.tx.Commit() }

func (t *sqliteTx) Rollback() error {
	if err := t.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return err
	}
	return nil
}

func getSchedule(ctx context.Context, q querier, id int64) (Schedule, error) {
	row := q.QueryRowContext(ctx, `SELECT `+scheduleColumns+` FROM schedules WHERE id = ?`, id)
	s, err := scanSchedule(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Schedule{}, fmt.Errorf("schedule %d: %w", id, ErrNotFound)
	}
	return s, err
}

func listSchedules(ctx context.Context, q querier, query string, args ...any) ([]Schedule, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Schedule{}
	for rows.Next() {
		s, err := scanSchedule(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSchedule(r scanner) (Schedule, error) {
	var (
		s                Schedule
		active           int
		lastRun          sql.NullInt64
		created, updated int64
	)
	if err := r.Scan(&s.ID, &s.Description, &s.IntervalMinutes, &active, &s.ExcelPath,
		&s.GoogleFormURL, &lastRun, &created, &updated); err != nil {
		return Schedule{}, err
	}
	s.IsActive = active != 0
	if lastRun.Valid {
		t := time.UnixMilli(lastRun.Int64)
		s.LastRunAt = &t
	}
	s.CreatedAt = time.UnixMilli(created)
	s.UpdatedAt = time.UnixMilli(updated)
	return s, nil
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullMillis(t *time.Time) any {
	if t == nil || t.IsZero() {
		return nil
	}
	return t.UnixMilli()
}
