package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	logx "cadence/pkg/logx"
)

func newTestStore(t *testing.T) Store {
	t.Helper()
	st, err := Open(Config{Driver: "sqlite", Path: filepath.Join(t.TempDir(), "test.db")}, logx.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func createSchedule(t *testing.T, st Store, s Schedule) Schedule {
	t.Helper()
	ctx := context.Background()
	tx, err := st.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.CreateSchedule(ctx, &s))
	require.NoError(t, tx.Commit())
	return s
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open(Config{Driver: "postgres"}, logx.Nop())
	require.Error(t, err)
}

func TestCreateGetList(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	a := createSchedule(t, st, Schedule{Description: "stand up", IntervalMinutes: 30, IsActive: true, GoogleFormURL: "https://example.com/f"})
	b := createSchedule(t, st, Schedule{Description: "paused", IntervalMinutes: 10, IsActive: false})
	c := createSchedule(t, st, Schedule{Description: "no interval", IntervalMinutes: 0, IsActive: true})
	assert.NotZero(t, a.ID)
	assert.NotEqual(t, a.ID, b.ID)

	got, err := st.GetSchedule(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "stand up", got.Description)
	assert.Equal(t, 30*time.Minute, got.Interval())
	assert.True(t, got.IsActive)
	assert.Equal(t, "https://example.com/f", got.GoogleFormURL)
	assert.Nil(t, got.LastRunAt)

	all, err := st.ListSchedules(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	active, err := st.ListActiveSchedules(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, a.ID, active[0].ID)
	_ = c

	_, err = st.GetSchedule(ctx, 9999)
	assert.True(t, IsNotFound(err))
}

func TestRollbackDiscardsChanges(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	s := createSchedule(t, st, Schedule{Description: "original", IntervalMinutes: 5, IsActive: true})

	tx, err := st.Begin(ctx)
	require.NoError(t, err)
	s.Description = "changed"
	require.NoError(t, tx.UpdateSchedule(ctx, &s))
	inTx, err := tx.GetSchedule(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, "changed", inTx.Description)
	require.NoError(t, tx.Rollback())
	require.NoError(t, tx.Rollback())

	got, err := st.GetSchedule(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, "original", got.Description)
}

func TestUpdateAndDeleteMissing(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	tx, err := st.Begin(ctx)
	require.NoError(t, err)
	defer func() { _ = tx.Rollback() }()

	assert.ErrorIs(t, tx.UpdateSchedule(ctx, &Schedule{ID: 42, Description: "x", IntervalMinutes: 1}), ErrNotFound)
	assert.ErrorIs(t, tx.DeleteSchedule(ctx, 42), ErrNotFound)
}

func TestHistoryAppendAndList(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	s := createSchedule(t, st, Schedule{Description: "drink water", IntervalMinutes: 60, IsActive: true})

	t0 := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	e1, err := st.AppendHistory(ctx, HistoryEntry{ScheduleID: s.ID, CompletedAt: t0})
	require.NoError(t, err)
	assert.Equal(t, SourceTimer, e1.Source)
	assert.Equal(t, "drink water", e1.Description)

	e2, err := st.AppendHistory(ctx, HistoryEntry{ScheduleID: s.ID, CompletedAt: t0.Add(time.Hour), Source: SourceRunNow})
	require.NoError(t, err)
	assert.Greater(t, e2.ID, e1.ID)

	got, err := st.GetSchedule(ctx, s.ID)
	require.NoError(t, err)
	require.NotNil(t, got.LastRunAt)
	assert.True(t, got.LastRunAt.Equal(t0.Add(time.Hour)))

	hist, err := st.ListHistory(ctx, 0)
	require.NoError(t, err)
	require.Len(t, hist, 2)
	assert.Equal(t, e2.ID, hist[0].ID, "newest first")
	assert.Equal(t, SourceRunNow, hist[0].Source)

	limited, err := st.ListHistory(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestHistorySurvivesScheduleDelete(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	s := createSchedule(t, st, Schedule{Description: "temp", IntervalMinutes: 1, IsActive: true})
	_, err := st.AppendHistory(ctx, HistoryEntry{ScheduleID: s.ID})
	require.NoError(t, err)

	tx, err := st.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.DeleteSchedule(ctx, s.ID))
	require.NoError(t, tx.Commit())

	hist, err := st.ListHistory(ctx, 10)
	require.NoError(t, err)
	require.Len(t, hist, 1)
	assert.Equal(t, s.ID, hist[0].ScheduleID)
	assert.Empty(t, hist[0].Description)

	_, err = st.AppendHistory(ctx, HistoryEntry{ScheduleID: s.ID, Source: SourceRunNow})
	require.ErrorIs(t, err, ErrNotFound)
	hist, err = st.ListHistory(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, hist, 1, "no entry for a deleted schedule")
}

func TestPatchApply(t *testing.T) {
	desc := "new"
	iv := 15
	off := false
	base := Schedule{ID: 1, Description: "old", IntervalMinutes: 5, IsActive: true, ExcelPath: "a.xlsx"}

	assert.True(t, Patch{}.Empty())
	assert.Equal(t, base, Patch{}.Apply(base))

	got := Patch{Description: &desc, IntervalMinutes: &iv, IsActive: &off}.Apply(base)
	assert.Equal(t, "new", got.Description)
	assert.Equal(t, 15, got.IntervalMinutes)
	assert.False(t, got.IsActive)
	assert.Equal(t, "a.xlsx", got.ExcelPath)
	assert.Equal(t, "old", base.Description, "Apply must not mutate its input")
}
